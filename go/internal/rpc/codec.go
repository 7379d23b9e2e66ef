package rpc

import (
	"bytes"
	"encoding/json"
	"fmt"

	"connectrpc.com/connect"
)

// Codec marshals plain Go structs as JSON. It registers under the name
// "json", so it serves application/json in place of the protobuf JSON codec.
type Codec struct{}

var _ connect.Codec = Codec{}

func (Codec) Name() string { return "json" }

func (Codec) Marshal(message any) ([]byte, error) {
	data, err := json.Marshal(message)
	if err != nil {
		return nil, fmt.Errorf("marshal %T: %w", message, err)
	}
	return data, nil
}

// Unmarshal treats an empty body as an empty object.
func (Codec) Unmarshal(data []byte, message any) error {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, message); err != nil {
		return fmt.Errorf("unmarshal %T: %w", message, err)
	}
	return nil
}
