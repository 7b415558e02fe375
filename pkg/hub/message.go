// Package hub fans status events out to websocket watchers using the
// channel-based register/unregister/broadcast pattern.
package hub

import "encoding/json"

// Message is one JSON payload queued for every client.
type Message struct {
	// Topic names the event for logging ("status", "decoders").
	Topic string
	Data  []byte
}

// NewJSONMessage encodes v as a message.
func NewJSONMessage(topic string, v any) (Message, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return Message{}, err
	}
	return Message{Topic: topic, Data: data}, nil
}
