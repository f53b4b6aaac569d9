package bootstrap

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

const logPrefix = "bootstrap:loader"

// Built-in agent and skill identifiers.
const (
	WeatherAgentID = "weather-agent"
	FarmAgentID    = "flavor-profile-farm-agent"
	SkillWeather   = "get_weather"
	SkillFlavor    = "estimate_flavor"
)

// LoadCatalog loads agent cards from the first readable file.
// It tries paths in order: first any paths passed in, then AGENT_CARDS_FILE env, then defaults.
// When nothing parses, fallback is returned.
func LoadCatalog(fallback *Catalog, paths ...string) (*Catalog, error) {
	all := make([]string, 0, len(paths)+4)
	for _, p := range paths {
		if p != "" {
			all = append(all, p)
		}
	}
	if envPath := os.Getenv("AGENT_CARDS_FILE"); envPath != "" {
		all = append(all, envPath)
	}
	all = append(all, "config/agents.yaml", "config/agents.json", "agents.json")

	for _, p := range all {
		data, err := os.ReadFile(p)
		if err != nil {
			continue
		}

		cfg, err := ParseCatalog(p, data)
		if err != nil {
			slog.Warn(fmt.Sprintf("%s - Failed to parse agent cards file %s: %v", logPrefix, p, err))
			continue
		}

		slog.Info(fmt.Sprintf("%s - Loaded %d agent cards from %s", logPrefix, len(cfg.Agents), p))
		return cfg, nil
	}

	if fallback == nil {
		return nil, fmt.Errorf("%s - no agent cards file found and no default catalog", logPrefix)
	}
	slog.Info(fmt.Sprintf("%s - Using default agent catalog", logPrefix))
	return fallback, nil
}

// ParseCatalog decodes YAML or JSON depending on the file extension.
func ParseCatalog(path string, data []byte) (*Catalog, error) {
	var cfg Catalog
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("%s - failed to decode yaml: %w", logPrefix, err)
		}
	default:
		if err := json.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("%s - failed to decode json: %w", logPrefix, err)
		}
	}
	if len(cfg.Agents) == 0 {
		return nil, fmt.Errorf("%s - catalog has no agents", logPrefix)
	}
	return &cfg, nil
}

// GetDefaultCatalog returns the built-in catalog of the weather and farm agents.
func GetDefaultCatalog(ep Endpoints) *Catalog {
	return &Catalog{
		Name:   "coffee-exchange",
		Agents: []AgentCard{WeatherAgentCard(ep.WeatherURL), FarmAgentCard(ep.FarmURL)},
	}
}

// WeatherAgentCard returns the card of the weather agent served at url.
func WeatherAgentCard(url string) AgentCard {
	return AgentCard{
		ID:                 WeatherAgentID,
		Name:               "Coffee Weather Agent",
		Description:        "An agent that provides weather information for coffee-growing regions.",
		URL:                url,
		Version:            "1.0.0",
		DefaultInputModes:  []string{"text"},
		DefaultOutputModes: []string{"text"},
		Skills: []SkillCard{{
			ID:          SkillWeather,
			Name:        "Get Weather Information",
			Description: "Returns current weather conditions for a location.",
			Tags:        []string{"weather", "climate", "temperature", "coffee"},
			Examples: []string{
				"What's the weather like in Colombia?",
				"Get the current weather for Brazil.",
			},
		}},
	}
}

// FarmAgentCard returns the card of the flavor profile farm agent served at url.
func FarmAgentCard(url string) AgentCard {
	return AgentCard{
		ID:                 FarmAgentID,
		Name:               "Coffee Farm Flavor Agent",
		Description:        "An AI agent that estimates the flavor profile of coffee beans using growing conditions like season and altitude.",
		URL:                url,
		Version:            "1.0.0",
		DefaultInputModes:  []string{"text"},
		DefaultOutputModes: []string{"text"},
		Skills: []SkillCard{{
			ID:          SkillFlavor,
			Name:        "Estimate Flavor Profile",
			Description: "Analyzes a natural language prompt and returns the expected flavor profile for a coffee-growing region and/or season.",
			Tags:        []string{"coffee", "flavor", "farm"},
			Examples: []string{
				"What flavors can I expect from coffee in Huila during harvest?",
				"Describe the taste of beans grown in Sidamo in the dry season",
				"How does Yirgacheffe coffee taste?",
			},
		}},
	}
}

// AgentURL formats the base URL of an agent listening on host:port.
func AgentURL(host string, port int) string {
	return fmt.Sprintf("http://%s:%d/", host, port)
}
