package builtin

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/streamkit/streamkit/internal/node"
	"github.com/streamkit/streamkit/internal/packet"
)

// maxHTTPInputBytes bounds a oneshot http_input fetch: it is a request-body
// collector, not a bulk transfer node.
const maxHTTPInputBytes = 64 << 20

type httpInputParams struct {
	URL            string `json:"url"`
	TimeoutSeconds int    `json:"timeout_seconds"`
}

// HTTPInputDefinition describes the http_input source: fetches one URL and
// emits its body as a single Binary packet, tagged with the response's
// Content-Type. Built for oneshot request-scoped pipelines.
var HTTPInputDefinition = node.Definition{
	Kind:        "http_input",
	Description: "fetches a URL once and emits its body as a Binary packet",
	ParamSchema: json.RawMessage(`{"type":"object","required":["url"],"properties":{"url":{"type":"string"},"timeout_seconds":{"type":"integer"}}}`),
	Outputs: []node.OutputPin{
		{Name: "out", Cardinality: node.CardinalityBroadcast, Produces: packet.PacketType{Variant: packet.VariantBinary}},
	},
	Categories: []string{"oneshot"},
}

type httpInput struct {
	url     string
	timeout time.Duration
	logger  zerolog.Logger
}

// NewHTTPInput constructs an http_input instance.
func NewHTTPInput(params json.RawMessage, logger zerolog.Logger) (node.Instance, error) {
	var p httpInputParams
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, fmt.Errorf("http_input: decode params: %w", err)
	}
	if p.URL == "" {
		return nil, fmt.Errorf("http_input: url is required")
	}
	timeout := 30 * time.Second
	if p.TimeoutSeconds > 0 {
		timeout = time.Duration(p.TimeoutSeconds) * time.Second
	}
	return &httpInput{url: p.URL, timeout: timeout, logger: logger}, nil
}

func (h *httpInput) Process(context.Context, string, packet.Packet, node.EmitContext) (node.Result, error) {
	return node.ResultOK, nil
}

func (h *httpInput) UpdateParams(context.Context, json.RawMessage) error {
	return fmt.Errorf("http_input: url is not tunable")
}

func (h *httpInput) Flush(ctx context.Context, ectx node.EmitContext) error {
	reqCtx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, h.url, nil)
	if err != nil {
		return fmt.Errorf("http_input: build request: %w", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("http_input: fetch %s: %w", h.url, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxHTTPInputBytes+1))
	if err != nil {
		return fmt.Errorf("http_input: read body: %w", err)
	}
	if len(body) > maxHTTPInputBytes {
		return fmt.Errorf("http_input: response exceeds %d byte limit", maxHTTPInputBytes)
	}

	contentType := resp.Header.Get("Content-Type")
	return ectx.Emit("out", packet.NewBinary(body, contentType))
}

func (h *httpInput) Destroy(context.Context) error { return nil }

// httpOutputParams is empty: http_output takes no parameters. Its instance
// type, httpOutput, accumulates the bytes an oneshot pipeline's http_output
// node receives so they can be returned as the request's HTTP response once
// the pipeline finishes.
type httpOutputParams struct{}

// HTTPOutputDefinition describes the http_output sink: collects whatever
// arrives on its input pin. In a oneshot run this becomes the request's
// HTTP response body; a dynamic session has no equivalent single-response
// concept, so it's used there as a plain terminal sink (e.g. in tests
// exercising a graph's shape without a real downstream consumer).
var HTTPOutputDefinition = node.Definition{
	Kind:        "http_output",
	Description: "collects whatever arrives on its input pin",
	Inputs: []node.InputPin{
		{Name: "in", Cardinality: node.CardinalityOne, Accepts: []packet.PacketType{packet.AnyType}},
	},
	Categories: []string{"oneshot", "dynamic"},
}

type httpOutput struct {
	mu          sync.Mutex
	chunks      [][]byte
	textMode    bool
	contentType string
}

// Collector is implemented by sink nodes that accumulate their received
// bytes for a caller to retrieve once a run finishes, rather than
// forwarding them further downstream. The oneshot engine type-asserts a
// sink's node.Instance against this interface to assemble its response
// without needing to know the concrete sink kind. ContentType reports the
// MIME type to serve the collected bytes as, derived from whatever the
// pipeline actually produced rather than guessed by the caller.
type Collector interface {
	Collected() []byte
	ContentType() string
}

var _ Collector = (*httpOutput)(nil)

// NewHTTPOutput constructs an http_output instance.
func NewHTTPOutput(json.RawMessage, zerolog.Logger) (node.Instance, error) {
	return &httpOutput{}, nil
}

func (o *httpOutput) Process(_ context.Context, _ string, p packet.Packet, _ node.EmitContext) (node.Result, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	switch p.Variant {
	case packet.VariantText, packet.VariantTranscription:
		o.textMode = true
		o.chunks = append(o.chunks, []byte(p.Text))
	case packet.VariantBinary:
		o.chunks = append(o.chunks, p.Bytes)
		if p.ContentType != "" {
			o.contentType = p.ContentType
		}
	case packet.VariantOpusAudio:
		o.chunks = append(o.chunks, p.Bytes)
	case packet.VariantRawAudio:
		o.chunks = append(o.chunks, p.Samples)
	case packet.VariantCustom:
		o.chunks = append(o.chunks, p.Payload)
	}
	return node.ResultOK, nil
}

func (o *httpOutput) UpdateParams(context.Context, json.RawMessage) error { return nil }
func (o *httpOutput) Flush(context.Context, node.EmitContext) error       { return nil }
func (o *httpOutput) Destroy(context.Context) error                      { return nil }

// Collected returns every chunk received so far, concatenated.
func (o *httpOutput) Collected() []byte {
	o.mu.Lock()
	defer o.mu.Unlock()
	total := 0
	for _, c := range o.chunks {
		total += len(c)
	}
	out := make([]byte, 0, total)
	for _, c := range o.chunks {
		out = append(out, c...)
	}
	return out
}

// ContentType reports the MIME type to serve Collected's bytes as: the
// last non-empty content type a Binary packet advertised; otherwise
// "text/plain; charset=utf-8" if any Text/Transcription packet arrived;
// otherwise "application/octet-stream".
func (o *httpOutput) ContentType() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.contentType != "" {
		return o.contentType
	}
	if o.textMode {
		return "text/plain; charset=utf-8"
	}
	return "application/octet-stream"
}
