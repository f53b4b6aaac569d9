package routing

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"

	"github.com/morezero/agent-exchange/pkg/a2a"
)

const summaryLogPrefix = "routing:summary"

// EmptyHistoryText is the summary of a thread with no turns.
const EmptyHistoryText = "We haven't discussed anything yet in this conversation."

const maxAnswerRunes = 200

const summaryTemplate = `Here's a summary of our conversation so far:{{range $i, $t := .}}
{{inc $i}}. You asked: {{$t.Question}}
   I answered: {{$t.Answer}}
{{- end}}`

type summaryTurn struct {
	Question string
	Answer   string
}

// Summarizer renders a thread history as a short recap.
type Summarizer struct {
	tmpl *template.Template
}

// NewSummarizer parses the built-in template.
func NewSummarizer() *Summarizer {
	funcs := template.FuncMap{"inc": func(i int) int { return i + 1 }}
	return &Summarizer{tmpl: template.Must(template.New("summary").Funcs(funcs).Parse(summaryTemplate))}
}

// Summarize pairs user messages with the answer that followed them.
func (s *Summarizer) Summarize(history []a2a.Message) (string, error) {
	turns := pairTurns(history)
	if len(turns) == 0 {
		return EmptyHistoryText, nil
	}

	var buf bytes.Buffer
	if err := s.tmpl.Execute(&buf, turns); err != nil {
		return "", fmt.Errorf("%s - failed to render summary: %w", summaryLogPrefix, err)
	}
	return buf.String(), nil
}

func pairTurns(history []a2a.Message) []summaryTurn {
	var turns []summaryTurn
	for _, m := range history {
		text := strings.TrimSpace(m.Text())
		switch m.Role {
		case a2a.RoleUser:
			turns = append(turns, summaryTurn{Question: text})
		case a2a.RoleAgent:
			if len(turns) == 0 || turns[len(turns)-1].Answer != "" {
				continue
			}
			turns[len(turns)-1].Answer = truncateRunes(text, maxAnswerRunes)
		}
	}
	return turns
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
