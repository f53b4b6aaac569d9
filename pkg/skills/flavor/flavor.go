// Package flavor implements the estimate_flavor skill on top of an LLM.
package flavor

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/morezero/agent-exchange/pkg/a2a"
	"github.com/morezero/agent-exchange/pkg/worker"
)

const logPrefix = "flavor:flavor"

// SystemPrompt frames every completion.
const SystemPrompt = `You are a coffee farming expert and flavor profile connoisseur.
Given a question about a coffee-growing region, season, altitude or growing
conditions, describe the expected flavor profile of the beans: tasting notes,
aroma, acidity, body and sweetness. Be concise and specific. If the question
does not name a region or growing condition you can reason about, say what
information is missing instead of guessing.`

// Completer produces one completion for a system and a user prompt.
type Completer interface {
	Complete(ctx context.Context, system, user string) (string, error)
	Name() string
}

// Skill estimates flavor profiles.
type Skill struct {
	llm Completer
}

// New creates a flavor skill backed by llm.
func New(llm Completer) *Skill {
	return &Skill{llm: llm}
}

// Execute sends prompt to the LLM and returns its answer.
func (s *Skill) Execute(ctx context.Context, prompt string) (string, error) {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return "", worker.Fail(a2a.ErrInvalidInput, "Prompt must be a non-empty string.")
	}

	out, err := s.llm.Complete(ctx, SystemPrompt, prompt)
	if err != nil {
		slog.Error(fmt.Sprintf("%s - %s completion failed: %v", logPrefix, s.llm.Name(), err))
		return "", worker.Fail(a2a.ErrComputationFailed, "Flavor profile estimation failed. Please try again later.")
	}

	out = strings.TrimSpace(out)
	if out == "" {
		return "", worker.Fail(a2a.ErrComputationFailed, "No flavor profile could be estimated for this request.")
	}
	slog.Debug(fmt.Sprintf("%s - Estimated flavor profile (%d chars)", logPrefix, len(out)))
	return out, nil
}
