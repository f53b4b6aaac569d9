// Package events defines the turn-completed event and its publishers.
package events

// TurnCompletedEvent is emitted after a supervisor turn produces an answer.
type TurnCompletedEvent struct {
	ThreadID   string `json:"threadId"`
	Route      string `json:"route"`
	Category   string `json:"category"`
	AgentID    string `json:"agentId,omitempty"`
	DurationMs int64  `json:"durationMs"`
	HistoryLen int    `json:"historyLen"`
	Timestamp  string `json:"timestamp"`
}
