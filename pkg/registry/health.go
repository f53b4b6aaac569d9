package registry

import (
	"time"
)

// Health reports whether the registry holds at least one agent.
func (r *Registry) Health() *HealthOutput {
	status := "healthy"
	if len(r.agents) == 0 {
		status = "unhealthy"
	}

	return &HealthOutput{
		Status:    status,
		Agents:    len(r.agents),
		Skills:    len(r.bySkill),
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
}
