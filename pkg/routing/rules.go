package routing

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/morezero/agent-exchange/pkg/a2a"
	"github.com/morezero/agent-exchange/pkg/bootstrap"
)

const logPrefix = "routing:rules"

// CapabilityText is returned for help-intent turns.
const CapabilityText = "I can help you learn about coffee flavor profiles, taste characteristics, and sensory profiles, " +
	"as well as get weather information for coffee regions. You can ask me questions like: " +
	"What are the flavor notes of Colombian coffee in winter? What's the weather like in Colombia? " +
	"Get the current weather for Brazil."

// CannotAssistText is returned when nothing else matches.
const CannotAssistText = "I'm sorry, I cannot assist with that request. I specialize in coffee flavor profiles, " +
	"taste characteristics, sensory profiles, and weather information for coffee regions. " +
	"You can ask me about coffee flavors for different regions and seasons, weather conditions in " +
	"coffee-growing areas, or ask 'what can you do' to learn more about my capabilities."

var (
	sessionPattern = regexp.MustCompile(`(?i)\b(conversation history|chat history|what have we (discussed|talked about)|what did we (discuss|talk about)|what did i (ask|say)|previous (question|questions|messages?)|summari[sz]e (our|this|the) (conversation|chat))\b`)
	weatherPattern = regexp.MustCompile(`(?i)\b(weather|temperatures?|climates?|current conditions|wind(y|s)?|forecast(s|ing|ed)?|meteorological)\b`)
	flavorPattern  = regexp.MustCompile(`(?i)\b(flavou?rs?|tastes?|tasting|sensory|profiles?|notes|aromas?|acidity|body)\b`)
	helpPattern    = regexp.MustCompile(`(?i)\b(what can you do|help|capabilit(y|ies)|what do you do)\b`)

	locationMarker = regexp.MustCompile(`(?i)\b(?:in|for)\s+`)
	leadingArticle = regexp.MustCompile(`(?i)^(the)\s+`)
	trailingTime   = regexp.MustCompile(`(?i)[\s,]+(?:(?:in|for|over)\s+)?` + timeExpr + `$`)
	onlyTime       = regexp.MustCompile(`(?i)^` + timeExpr + `$`)
)

const timeExpr = `(?:right now|now|today|tonight|tomorrow(?: (?:morning|afternoon|evening|night))?|currently|at the moment|` +
	`this (?:morning|afternoon|evening|week|weekend)|(?:the )?(?:next|coming) (?:few days|days|week|weekend|\d+ days)|the weekend)`

// RuleClassifier classifies with word-boundary keyword rules in strict
// priority: session context, weather, flavor, help, unknown.
type RuleClassifier struct {
	weatherSkill string
	flavorSkill  string
	summarizer   *Summarizer
}

// NewRuleClassifier creates a classifier routing to the built-in skills.
func NewRuleClassifier() *RuleClassifier {
	return &RuleClassifier{
		weatherSkill: bootstrap.SkillWeather,
		flavorSkill:  bootstrap.SkillFlavor,
		summarizer:   NewSummarizer(),
	}
}

// Classify implements Classifier.
func (c *RuleClassifier) Classify(_ context.Context, text string, history []a2a.Message) (Decision, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return Decision{}, fmt.Errorf("%s - empty text: %w", logPrefix, a2a.ErrInvalidInput)
	}

	var d Decision
	switch {
	case sessionPattern.MatchString(trimmed):
		summary, err := c.summarizer.Summarize(history)
		if err != nil {
			return Decision{}, err
		}
		d = Decision{Kind: Local, Category: CategorySessionContext, Text: summary}
	case weatherPattern.MatchString(trimmed):
		d = Decision{Kind: Dispatch, Category: CategoryWeather, SkillID: c.weatherSkill, Payload: ExtractLocation(trimmed)}
	case flavorPattern.MatchString(trimmed):
		d = Decision{Kind: Dispatch, Category: CategoryFlavor, SkillID: c.flavorSkill, Payload: trimmed}
	case helpPattern.MatchString(trimmed):
		d = Decision{Kind: Local, Category: CategoryCapability, Text: CapabilityText}
	default:
		d = Decision{Kind: Local, Category: CategoryUnknown, Text: CannotAssistText}
	}

	slog.Debug(fmt.Sprintf("%s - Classified %q as %s (%s)", logPrefix, trimmed, d.Category, d.Kind))
	return d, nil
}

// ExtractLocation pulls the place name out of a weather question.
// It takes the last "in|for <place>" phrase that is not only a time
// expression and falls back to the whole text.
func ExtractLocation(text string) string {
	trimmed := strings.TrimSpace(text)
	marks := locationMarker.FindAllStringIndex(trimmed, -1)
	for i := len(marks) - 1; i >= 0; i-- {
		phrase := trimmed[marks[i][1]:]
		if end := strings.IndexAny(phrase, "?!.;"); end >= 0 {
			phrase = phrase[:end]
		}
		if loc := cleanLocation(phrase); loc != "" && !onlyTime.MatchString(loc) {
			return loc
		}
	}
	return trimmed
}

func cleanLocation(phrase string) string {
	loc := leadingArticle.ReplaceAllString(strings.TrimSpace(phrase), "")
	for {
		next := trailingTime.ReplaceAllString(loc, "")
		if next == loc {
			break
		}
		loc = next
	}
	return strings.Trim(loc, " ,")
}
