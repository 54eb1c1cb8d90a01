package remote

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/getmockd/embedhttpd/pkg/message"
)

// Envelope types.
const (
	TypeAttached = "attached"
	TypeRequest  = "request"
	TypeResponse = "response"
	TypeError    = "error"
)

// Envelope is the frame exchanged between Endpoint and Client.
type Envelope struct {
	Type       string             `json:"type"`
	InstanceID message.InstanceID `json:"instanceId,omitempty"`
	RequestID  string             `json:"requestId,omitempty"`
	Request    *message.Request   `json:"request,omitempty"`
	Response   *message.Response  `json:"response,omitempty"`
	Error      string             `json:"error,omitempty"`
}

// Encode serializes the envelope to JSON.
func (e *Envelope) Encode() ([]byte, error) {
	return json.Marshal(e)
}

// DecodeEnvelope parses a JSON envelope. An envelope without a type is
// rejected.
func DecodeEnvelope(data []byte) (*Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("invalid envelope: %w", err)
	}
	if env.Type == "" {
		return nil, errors.New("invalid envelope: missing type")
	}
	return &env, nil
}
