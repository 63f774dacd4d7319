// Package fidcommon holds value types shared across the chat, provider,
// tooling, memory, and harness layers: session and trace identifiers and the
// insertion-ordered metadata map attached to requests and manifests.
package fidcommon

import "github.com/google/uuid"

// SessionID identifies a durable conversation. Two SessionID values are the
// same session iff they compare equal as strings.
type SessionID string

// NewSessionID returns a fresh, practically-unique session id.
func NewSessionID() SessionID {
	return SessionID(uuid.NewString())
}

// String returns the id's textual form.
func (s SessionID) String() string {
	return string(s)
}

// TraceID correlates a single tool execution or provider call across logs
// and spans.
type TraceID string

// NewTraceID returns a fresh, practically-unique trace id.
func NewTraceID() TraceID {
	return TraceID(uuid.NewString())
}

func (t TraceID) String() string {
	return string(t)
}
