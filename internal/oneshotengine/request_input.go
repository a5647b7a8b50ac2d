package oneshotengine

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/rs/zerolog"

	"github.com/streamkit/streamkit/internal/node"
	"github.com/streamkit/streamkit/internal/packet"
)

const requestBodyChunkBytes = 64 * 1024

// requestBodySource streams a live request body in place of an http_input
// node's usual URL fetch. A Run call that is given a non-nil body overlays
// this factory onto the "http_input" kind for that one run only, so the
// pipeline's declared source still satisfies the compiler's oneshot
// mode-sanity check (it requires an http_input or file_reader source) while
// never performing a real HTTP round trip: the caller already has the
// bytes in hand. A pipeline fetching real remote media by URL is
// unaffected — Run only installs this override when body is non-nil.
type requestBodySource struct {
	body   io.Reader
	logger zerolog.Logger
}

func newRequestBodySourceFactory(body io.Reader) node.Factory {
	return func(_ json.RawMessage, logger zerolog.Logger) (node.Instance, error) {
		if body == nil {
			return nil, fmt.Errorf("oneshotengine: no request body was supplied to this run")
		}
		return &requestBodySource{body: body, logger: logger}, nil
	}
}

func (r *requestBodySource) Process(context.Context, string, packet.Packet, node.EmitContext) (node.Result, error) {
	return node.ResultOK, nil
}

func (r *requestBodySource) UpdateParams(context.Context, json.RawMessage) error {
	return fmt.Errorf("http_input: url is not tunable")
}

func (r *requestBodySource) Flush(ctx context.Context, ectx node.EmitContext) error {
	buf := make([]byte, requestBodyChunkBytes)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		n, err := r.body.Read(buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			if emitErr := ectx.Emit("out", packet.NewBinary(chunk, "application/octet-stream")); emitErr != nil {
				return emitErr
			}
		}
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("oneshotengine: read request body: %w", err)
		}
	}
}

func (r *requestBodySource) Destroy(context.Context) error { return nil }
