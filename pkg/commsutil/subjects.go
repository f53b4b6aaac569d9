package commsutil

import (
	"fmt"
	"strings"
)

// Default NATS subjects.
const (
	SubjectTurnCompleted = "exchange.turn.completed"
	TopicPrefix          = "a2a"
)

// BuildAgentTopic builds the request/reply topic a worker agent listens on.
func BuildAgentTopic(agentID string, major uint64) string {
	return fmt.Sprintf("%s.%s.v%d", TopicPrefix, sanitizeToken(agentID), major)
}

// BuildTurnSubject builds the granular turn event subject for a route.
func BuildTurnSubject(base, route string) string {
	return fmt.Sprintf("%s.%s", base, sanitizeToken(route))
}

// sanitizeToken keeps a value inside a single subject token.
func sanitizeToken(s string) string {
	r := strings.NewReplacer(".", "_", " ", "_", "*", "_", ">", "_")
	return r.Replace(s)
}
