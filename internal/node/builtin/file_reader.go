// Package builtin provides the reference node kinds shipped with every
// engine: enough sources, sinks and transforms to run oneshot and dynamic
// pipelines end-to-end without pulling in a real codec, MoQ, or STT
// collaborator. Those remain plugin-host territory, reached only through
// the node.Instance contract.
package builtin

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"

	"github.com/streamkit/streamkit/internal/node"
	"github.com/streamkit/streamkit/internal/packet"
)

const fileReaderChunkBytes = 64 * 1024

type fileReaderParams struct {
	Path string `json:"path"`
}

// FileReaderDefinition describes the file_reader source: reads a file from
// local disk and emits it as a sequence of Binary packets.
var FileReaderDefinition = node.Definition{
	Kind:        "file_reader",
	Description: "reads a file from local disk and emits Binary packets",
	ParamSchema: json.RawMessage(`{"type":"object","required":["path"],"properties":{"path":{"type":"string"}}}`),
	Outputs: []node.OutputPin{
		{Name: "out", Cardinality: node.CardinalityBroadcast, Produces: packet.PacketType{Variant: packet.VariantBinary}},
	},
	Categories: []string{"oneshot", "dynamic"},
}

type fileReader struct {
	path   string
	logger zerolog.Logger
}

// NewFileReader constructs a file_reader instance.
func NewFileReader(params json.RawMessage, logger zerolog.Logger) (node.Instance, error) {
	var p fileReaderParams
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, fmt.Errorf("file_reader: decode params: %w", err)
	}
	if p.Path == "" {
		return nil, fmt.Errorf("file_reader: path is required")
	}
	return &fileReader{path: p.Path, logger: logger}, nil
}

// Process is a no-op: file_reader is a source, it has no input pins and
// emits entirely from Flush.
func (r *fileReader) Process(context.Context, string, packet.Packet, node.EmitContext) (node.Result, error) {
	return node.ResultOK, nil
}

func (r *fileReader) UpdateParams(context.Context, json.RawMessage) error {
	return fmt.Errorf("file_reader: path is not tunable")
}

// Flush reads the whole file in chunks and emits it once, then signals
// completion by returning nil: the engine closes the node's output once
// Flush returns for a source with no further input to drain.
func (r *fileReader) Flush(ctx context.Context, ectx node.EmitContext) error {
	f, err := os.Open(r.path)
	if err != nil {
		return fmt.Errorf("file_reader: open %s: %w", r.path, err)
	}
	defer f.Close()

	buf := make([]byte, fileReaderChunkBytes)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		n, err := f.Read(buf)
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
			return fmt.Errorf("file_reader: read %s: %w", r.path, err)
		}
	}
}

func (r *fileReader) Destroy(context.Context) error { return nil }
