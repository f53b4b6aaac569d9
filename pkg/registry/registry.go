// Package registry holds the catalog of worker agents and resolves skill ids to them.
package registry

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"sort"
	"strings"

	"github.com/Masterminds/semver/v3"

	"github.com/morezero/agent-exchange/pkg/a2a"
	"github.com/morezero/agent-exchange/pkg/bootstrap"
	"github.com/morezero/agent-exchange/pkg/commsutil"
	"github.com/morezero/agent-exchange/pkg/transport"
)

const logPrefix = "registry:registry"

const defaultVersion = "1.0.0"

// ErrInvalidCatalog is returned by New for inconsistent agent cards.
var ErrInvalidCatalog = errors.New("invalid agent catalog")

// Registry maps skill ids to agent descriptors. It is read-only after New.
type Registry struct {
	agents  []*AgentDescriptor
	bySkill map[string]*AgentDescriptor
}

// New validates the cards and builds the registry.
func New(cards []bootstrap.AgentCard) (*Registry, error) {
	r := &Registry{bySkill: make(map[string]*AgentDescriptor)}
	seenAgents := make(map[string]bool, len(cards))

	for _, card := range cards {
		desc, err := descriptorFromCard(card)
		if err != nil {
			return nil, err
		}
		if seenAgents[desc.ID] {
			return nil, fmt.Errorf("%s - duplicate agent id %q: %w", logPrefix, desc.ID, ErrInvalidCatalog)
		}
		seenAgents[desc.ID] = true

		for _, s := range desc.Skills {
			if other, ok := r.bySkill[s.ID]; ok {
				return nil, fmt.Errorf("%s - skill %q advertised by both %q and %q: %w",
					logPrefix, s.ID, other.ID, desc.ID, ErrInvalidCatalog)
			}
			r.bySkill[s.ID] = desc
		}
		r.agents = append(r.agents, desc)
	}

	sort.Slice(r.agents, func(i, j int) bool { return r.agents[i].ID < r.agents[j].ID })

	slog.Info(fmt.Sprintf("%s - Registry built with %d agents and %d skills", logPrefix, len(r.agents), len(r.bySkill)))
	return r, nil
}

func descriptorFromCard(card bootstrap.AgentCard) (*AgentDescriptor, error) {
	id := strings.TrimSpace(card.ID)
	if id == "" {
		return nil, fmt.Errorf("%s - agent %q has no id: %w", logPrefix, card.Name, ErrInvalidCatalog)
	}

	version := card.Version
	if version == "" {
		version = defaultVersion
	}
	v, err := semver.NewVersion(version)
	if err != nil {
		return nil, fmt.Errorf("%s - agent %q has invalid version %q: %w", logPrefix, id, version, ErrInvalidCatalog)
	}

	u, err := url.Parse(card.URL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("%s - agent %q has invalid url %q: %w", logPrefix, id, card.URL, ErrInvalidCatalog)
	}

	if len(card.Skills) == 0 {
		return nil, fmt.Errorf("%s - agent %q advertises no skills: %w", logPrefix, id, ErrInvalidCatalog)
	}
	skills := make([]Skill, 0, len(card.Skills))
	seen := make(map[string]bool, len(card.Skills))
	for _, sc := range card.Skills {
		if sc.ID == "" {
			return nil, fmt.Errorf("%s - agent %q has a skill without id: %w", logPrefix, id, ErrInvalidCatalog)
		}
		if seen[sc.ID] {
			return nil, fmt.Errorf("%s - agent %q lists skill %q twice: %w", logPrefix, id, sc.ID, ErrInvalidCatalog)
		}
		seen[sc.ID] = true
		skills = append(skills, Skill{
			ID:          sc.ID,
			Name:        sc.Name,
			Description: sc.Description,
			Tags:        append([]string(nil), sc.Tags...),
			Examples:    append([]string(nil), sc.Examples...),
		})
	}

	return &AgentDescriptor{
		ID:          id,
		Name:        card.Name,
		Description: card.Description,
		Address: transport.Address{
			URL:   card.URL,
			Topic: commsutil.BuildAgentTopic(id, v.Major()),
		},
		Version: v.String(),
		Skills:  skills,
	}, nil
}

// Resolve returns the agent that advertises skillID.
func (r *Registry) Resolve(skillID string) (*AgentDescriptor, error) {
	desc, ok := r.bySkill[skillID]
	if !ok {
		return nil, fmt.Errorf("%s - no agent for skill %q: %w", logPrefix, skillID, a2a.ErrUnknownSkill)
	}
	return desc, nil
}

// Agent returns the descriptor with the given agent id, or nil.
func (r *Registry) Agent(agentID string) *AgentDescriptor {
	for _, d := range r.agents {
		if d.ID == agentID {
			return d
		}
	}
	return nil
}

// Agents returns all descriptors ordered by id.
func (r *Registry) Agents() []*AgentDescriptor {
	out := make([]*AgentDescriptor, len(r.agents))
	copy(out, r.agents)
	return out
}

// SkillIDs returns every registered skill id, sorted.
func (r *Registry) SkillIDs() []string {
	ids := make([]string, 0, len(r.bySkill))
	for id := range r.bySkill {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
