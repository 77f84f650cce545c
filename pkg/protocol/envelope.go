// Package protocol defines the websocket wire format. Envelopes are
// serialized with MessagePack; the Type field selects the payload shape
// from the closed set in events.go.
package protocol

import (
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
)

// Envelope wraps every frame in both directions. Body holds the raw
// payload bytes so dispatch can decode lazily by Type.
type Envelope struct {
	Type string             `msgpack:"type" json:"type"`
	Body msgpack.RawMessage `msgpack:"body" json:"body"`
}

// Encode builds a wire frame for the given type and payload.
func Encode(eventType string, payload any) ([]byte, error) {
	body, err := msgpack.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s payload: %w", eventType, err)
	}
	return msgpack.Marshal(&Envelope{Type: eventType, Body: body})
}

// Decode parses a wire frame into an envelope without touching the body.
func Decode(frame []byte) (*Envelope, error) {
	var env Envelope
	if err := msgpack.Unmarshal(frame, &env); err != nil {
		return nil, fmt.Errorf("failed to unmarshal envelope: %w", err)
	}
	if env.Type == "" {
		return nil, fmt.Errorf("envelope missing type")
	}
	return &env, nil
}

// DecodeBody unpacks the envelope payload into target.
func (e *Envelope) DecodeBody(target any) error {
	if err := msgpack.Unmarshal(e.Body, target); err != nil {
		return fmt.Errorf("failed to unmarshal %s payload: %w", e.Type, err)
	}
	return nil
}
