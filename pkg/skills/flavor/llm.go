package flavor

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	anthropicoption "github.com/anthropics/anthropic-sdk-go/option"
	"github.com/openai/openai-go"
	openaioption "github.com/openai/openai-go/option"
)

const llmLogPrefix = "flavor:llm"

// Providers accepted by NewCompleter.
const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
)

const (
	defaultTemperature = 0.7
	defaultMaxTokens   = 1024
)

var errNoChoices = errors.New("completion has no choices")

// CompleterOptions selects and configures an LLM provider.
type CompleterOptions struct {
	Provider string
	Model    string
	APIKey   string
}

// NewCompleter returns the Completer for opts.Provider.
func NewCompleter(opts CompleterOptions) (Completer, error) {
	switch strings.ToLower(strings.TrimSpace(opts.Provider)) {
	case ProviderOpenAI, "":
		return NewOpenAICompleter(opts.APIKey, opts.Model), nil
	case ProviderAnthropic:
		return NewAnthropicCompleter(opts.APIKey, opts.Model), nil
	default:
		return nil, fmt.Errorf("%s - unsupported LLM provider: %s", llmLogPrefix, opts.Provider)
	}
}

// OpenAICompleter uses the OpenAI Chat Completions API.
type OpenAICompleter struct {
	client *openai.Client
	model  string
}

// NewOpenAICompleter creates an OpenAI completer. An empty key falls back to OPENAI_API_KEY.
func NewOpenAICompleter(apiKey, model string) *OpenAICompleter {
	var opts []openaioption.RequestOption
	if apiKey != "" {
		opts = append(opts, openaioption.WithAPIKey(apiKey))
	}
	client := openai.NewClient(opts...)
	if model == "" {
		model = openai.ChatModelGPT4oMini
	}
	return &OpenAICompleter{client: &client, model: model}
}

func (c *OpenAICompleter) Name() string { return ProviderOpenAI }

func (c *OpenAICompleter) Complete(ctx context.Context, system, user string) (string, error) {
	resp, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: c.model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(system),
			openai.UserMessage(user),
		},
		Temperature:         openai.Float(defaultTemperature),
		MaxCompletionTokens: openai.Int(defaultMaxTokens),
	})
	if err != nil {
		return "", fmt.Errorf("%s - openai api error: %w", llmLogPrefix, err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%s - %w", llmLogPrefix, errNoChoices)
	}
	return resp.Choices[0].Message.Content, nil
}

// AnthropicCompleter uses the Anthropic Messages API.
type AnthropicCompleter struct {
	client *anthropic.Client
	model  anthropic.Model
}

// NewAnthropicCompleter creates an Anthropic completer. An empty key falls back to ANTHROPIC_API_KEY.
func NewAnthropicCompleter(apiKey, model string) *AnthropicCompleter {
	var opts []anthropicoption.RequestOption
	if apiKey != "" {
		opts = append(opts, anthropicoption.WithAPIKey(apiKey))
	}
	client := anthropic.NewClient(opts...)
	m := anthropic.Model(model)
	if model == "" {
		m = anthropic.ModelClaude3_5Sonnet20241022
	}
	return &AnthropicCompleter{client: &client, model: m}
}

func (c *AnthropicCompleter) Name() string { return ProviderAnthropic }

func (c *AnthropicCompleter) Complete(ctx context.Context, system, user string) (string, error) {
	resp, err := c.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:       c.model,
		MaxTokens:   defaultMaxTokens,
		Temperature: anthropic.Float(defaultTemperature),
		System:      []anthropic.TextBlockParam{{Text: system}},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(user)),
		},
	})
	if err != nil {
		return "", fmt.Errorf("%s - anthropic api error: %w", llmLogPrefix, err)
	}

	var b strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			b.WriteString(block.AsText().Text)
		}
	}
	return b.String(), nil
}
