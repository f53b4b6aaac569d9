// Package bootstrap loads agent discovery records (agent cards) for the exchange.
package bootstrap

// SkillCard describes one skill advertised by an agent.
type SkillCard struct {
	ID          string   `json:"id" yaml:"id"`
	Name        string   `json:"name" yaml:"name"`
	Description string   `json:"description,omitempty" yaml:"description,omitempty"`
	Tags        []string `json:"tags,omitempty" yaml:"tags,omitempty"`
	Examples    []string `json:"examples,omitempty" yaml:"examples,omitempty"`
}

// AgentCard is the discovery record of a worker agent.
type AgentCard struct {
	ID                 string      `json:"id" yaml:"id"`
	Name               string      `json:"name" yaml:"name"`
	Description        string      `json:"description,omitempty" yaml:"description,omitempty"`
	URL                string      `json:"url" yaml:"url"`
	Version            string      `json:"version" yaml:"version"`
	DefaultInputModes  []string    `json:"defaultInputModes,omitempty" yaml:"defaultInputModes,omitempty"`
	DefaultOutputModes []string    `json:"defaultOutputModes,omitempty" yaml:"defaultOutputModes,omitempty"`
	Skills             []SkillCard `json:"skills" yaml:"skills"`
}

// Catalog is the root of an agent cards file.
type Catalog struct {
	Name   string      `json:"name,omitempty" yaml:"name,omitempty"`
	Agents []AgentCard `json:"agents" yaml:"agents"`
}

// Find returns the card with the given agent id, or nil.
func (c *Catalog) Find(agentID string) *AgentCard {
	if c == nil {
		return nil
	}
	for i := range c.Agents {
		if c.Agents[i].ID == agentID {
			return &c.Agents[i]
		}
	}
	return nil
}

// Endpoints carries the base URLs of the built-in worker agents.
type Endpoints struct {
	WeatherURL string
	FarmURL    string
}
