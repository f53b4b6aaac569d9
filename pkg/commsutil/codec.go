package commsutil

import (
	"encoding/json"
	"fmt"

	"github.com/morezero/agent-exchange/pkg/a2a"
)

// EncodePayload serializes a value to JSON bytes.
func EncodePayload(v interface{}) ([]byte, error) {
	return json.Marshal(v)
}

// DecodePayload deserializes JSON bytes into the given target.
func DecodePayload(data []byte, v interface{}) error {
	return json.Unmarshal(data, v)
}

// DecodeResponse decodes a worker response and enforces the result-xor-error rule.
// Every failure wraps a2a.ErrProtocolError.
func DecodeResponse(data []byte) (*a2a.ResponseEnvelope, error) {
	var resp a2a.ResponseEnvelope
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("%w: undecodable response: %v", a2a.ErrProtocolError, err)
	}
	if err := resp.Validate(); err != nil {
		return nil, err
	}
	return &resp, nil
}
