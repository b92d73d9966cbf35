package broker

import "time"

// Envelope is the wire frame shared by both directions. The core never
// writes raw strings to a connection.
type Envelope struct {
	Event     string `json:"event"`
	Data      any    `json:"data"`
	Timestamp int64  `json:"timestamp"`
	RequestID string `json:"request_id,omitempty"`
}

// NewEnvelope builds a server-side envelope stamped with the current time.
func NewEnvelope(event string, data any) Envelope {
	return Envelope{
		Event:     event,
		Data:      data,
		Timestamp: time.Now().UnixMilli(),
	}
}

// WithRequestID returns a copy carrying the client's correlation id.
func (e Envelope) WithRequestID(id string) Envelope {
	e.RequestID = id
	return e
}
