package agentclient

import (
	"context"
	"fmt"
	"strings"

	"github.com/morezero/agent-exchange/pkg/a2a"
	"github.com/morezero/agent-exchange/pkg/bootstrap"
)

// WeatherInput is the payload of the get_weather skill.
type WeatherInput struct {
	Location string
}

// WeatherOutput is the weather summary text.
type WeatherOutput struct {
	Report string
}

// FlavorProfileInput is the payload of the estimate_flavor skill.
type FlavorProfileInput struct {
	Prompt string
}

// FlavorProfileOutput is the flavor profile text.
type FlavorProfileOutput struct {
	Profile string
}

// GetWeather invokes the weather skill.
func (c *Client) GetWeather(ctx context.Context, in WeatherInput) (WeatherOutput, error) {
	if err := c.requireSkill(bootstrap.SkillWeather); err != nil {
		return WeatherOutput{}, err
	}
	out, err := c.Invoke(ctx, in.Location)
	if err != nil {
		return WeatherOutput{}, err
	}
	return WeatherOutput{Report: out}, nil
}

// EstimateFlavor invokes the flavor profile skill.
func (c *Client) EstimateFlavor(ctx context.Context, in FlavorProfileInput) (FlavorProfileOutput, error) {
	if err := c.requireSkill(bootstrap.SkillFlavor); err != nil {
		return FlavorProfileOutput{}, err
	}
	if strings.TrimSpace(in.Prompt) == "" {
		return FlavorProfileOutput{}, fmt.Errorf("%s - flavor prompt is empty: %w", logPrefix, a2a.ErrInvalidInput)
	}
	out, err := c.Invoke(ctx, in.Prompt)
	if err != nil {
		return FlavorProfileOutput{}, err
	}
	return FlavorProfileOutput{Profile: out}, nil
}

func (c *Client) requireSkill(skillID string) error {
	if c.skillID != skillID {
		return fmt.Errorf("%s - client serves %q, not %q: %w", logPrefix, c.skillID, skillID, a2a.ErrUnknownSkill)
	}
	return nil
}
