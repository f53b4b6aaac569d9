package registry

import (
	"github.com/morezero/agent-exchange/pkg/transport"
)

// Skill is a named capability a worker agent offers.
type Skill struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	Tags        []string `json:"tags,omitempty"`
	Examples    []string `json:"examples,omitempty"`
}

// AgentDescriptor is the immutable description of a worker agent.
type AgentDescriptor struct {
	ID          string            `json:"id"`
	Name        string            `json:"name"`
	Description string            `json:"description,omitempty"`
	Address     transport.Address `json:"address"`
	Version     string            `json:"version"`
	Skills      []Skill           `json:"skills"`
}

// HasSkill reports whether the agent advertises skillID.
func (d *AgentDescriptor) HasSkill(skillID string) bool {
	for _, s := range d.Skills {
		if s.ID == skillID {
			return true
		}
	}
	return false
}

// HealthOutput is the output of Health.
type HealthOutput struct {
	Status    string `json:"status"`
	Agents    int    `json:"agents"`
	Skills    int    `json:"skills"`
	Timestamp string `json:"timestamp"`
}
