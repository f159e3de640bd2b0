package rpc

import (
	"encoding/json"

	"connectrpc.com/connect"
)

// codecName replaces Connect's built-in protobuf JSON codec, so plain Go
// structs travel as application/json.
const codecName = "json"

type jsonCodec struct{}

// Codec returns the JSON codec shared by handlers and clients.
func Codec() connect.Codec { return jsonCodec{} }

func (jsonCodec) Name() string { return codecName }

func (jsonCodec) Marshal(v any) ([]byte, error) {
	return json.Marshal(v)
}

func (jsonCodec) Unmarshal(data []byte, v any) error {
	if len(data) == 0 {
		return nil
	}
	return json.Unmarshal(data, v)
}
