package db

import "time"

// Session represents a row in the sessions table.
type Session struct {
	ThreadID  string    `json:"thread_id"`
	TurnCount int       `json:"turn_count"`
	Created   time.Time `json:"created"`
	Modified  time.Time `json:"modified"`
}

// SessionMessage represents a row in the session_messages table.
// Parts holds the JSON-encoded message parts.
type SessionMessage struct {
	Seq       int64     `json:"seq"`
	ThreadID  string    `json:"thread_id"`
	MessageID string    `json:"message_id"`
	Role      string    `json:"role"`
	Parts     []byte    `json:"parts"`
	Route     *string   `json:"route,omitempty"`
	Created   time.Time `json:"created"`
}
