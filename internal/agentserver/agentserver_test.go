package agentserver

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/morezero/agent-exchange/internal/config"
	"github.com/morezero/agent-exchange/pkg/a2a"
	"github.com/morezero/agent-exchange/pkg/bootstrap"
	"github.com/morezero/agent-exchange/pkg/skills/flavor"
	"github.com/morezero/agent-exchange/pkg/skills/weather"
	"github.com/morezero/agent-exchange/pkg/worker"
)

const agentserverTestPrefix = "agentserver:agentserver_test"

func testConfig() *config.Config {
	return &config.Config{
		Transport:        "NATS",
		RequestTimeout:   5 * time.Second,
		WeatherAgentHost: "weather",
		WeatherAgentPort: 9998,
		FarmAgentHost:    "farm",
		FarmAgentPort:    9999,
		LLMProvider:      "openai",
		OpenAIAPIKey:     "sk-test",
	}
}

func TestAgentCard_BuiltIn(t *testing.T) {
	t.Setenv("AGENT_CARDS_FILE", "")
	cfg := testConfig()
	cfg.AgentCardsFile = filepath.Join(t.TempDir(), "missing.yaml")

	tests := []struct {
		kind    Kind
		wantID  string
		wantURL string
	}{
		{KindWeather, bootstrap.WeatherAgentID, "http://weather:9998/"},
		{KindFarm, bootstrap.FarmAgentID, "http://farm:9999/"},
	}
	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			card, err := agentCard(tt.kind, cfg)
			if err != nil {
				t.Fatalf("%s - unexpected error: %v", agentserverTestPrefix, err)
			}
			if card.ID != tt.wantID || card.URL != tt.wantURL {
				t.Errorf("%s - card = %s at %s, want %s at %s", agentserverTestPrefix, card.ID, card.URL, tt.wantID, tt.wantURL)
			}
		})
	}
}

func TestAgentCard_FromFile(t *testing.T) {
	t.Setenv("AGENT_CARDS_FILE", "")
	doc := `
agents:
  - id: weather-agent
    name: Regional Weather
    url: http://weather.internal:7000/
    version: 2.3.0
    skills:
      - id: get_weather
        name: Get Weather
`
	path := filepath.Join(t.TempDir(), "agents.yaml")
	if err := os.WriteFile(path, []byte(doc), 0o600); err != nil {
		t.Fatalf("%s - write failed: %v", agentserverTestPrefix, err)
	}
	cfg := testConfig()
	cfg.AgentCardsFile = path

	card, err := agentCard(KindWeather, cfg)
	if err != nil {
		t.Fatalf("%s - unexpected error: %v", agentserverTestPrefix, err)
	}
	if card.Name != "Regional Weather" || card.Version != "2.3.0" {
		t.Errorf("%s - expected card from file, got %+v", agentserverTestPrefix, card)
	}

	// The file does not list the farm agent, so the built-in card is used.
	farm, err := agentCard(KindFarm, cfg)
	if err != nil {
		t.Fatalf("%s - unexpected error: %v", agentserverTestPrefix, err)
	}
	if farm.ID != bootstrap.FarmAgentID || farm.URL != "http://farm:9999/" {
		t.Errorf("%s - expected built-in farm card, got %+v", agentserverTestPrefix, farm)
	}
}

func TestAgentTopic(t *testing.T) {
	card := bootstrap.WeatherAgentCard("http://weather:9998/")
	card.Version = "3.1.4"
	topic, err := agentTopic(card)
	if err != nil {
		t.Fatalf("%s - unexpected error: %v", agentserverTestPrefix, err)
	}
	if topic != "a2a.weather-agent.v3" {
		t.Errorf("%s - topic = %q, want a2a.weather-agent.v3", agentserverTestPrefix, topic)
	}

	card.URL = "not a url"
	if _, err := agentTopic(card); err == nil {
		t.Errorf("%s - expected error for invalid card", agentserverTestPrefix)
	}
}

func TestBuildSkills(t *testing.T) {
	tests := []struct {
		name      string
		kind      Kind
		provider  string
		wantSkill string
		wantErr   bool
	}{
		{"weather", KindWeather, "", bootstrap.SkillWeather, false},
		{"farm openai", KindFarm, "openai", bootstrap.SkillFlavor, false},
		{"farm anthropic", KindFarm, "Anthropic", bootstrap.SkillFlavor, false},
		{"farm unknown provider", KindFarm, "llama", "", true},
		{"unknown kind", Kind("mill"), "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig()
			cfg.LLMProvider = tt.provider
			cfg.AnthropicAPIKey = "sk-ant-test"

			skills, err := buildSkills(tt.kind, cfg)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("%s - expected error", agentserverTestPrefix)
				}
				return
			}
			if err != nil {
				t.Fatalf("%s - unexpected error: %v", agentserverTestPrefix, err)
			}
			if len(skills) != 1 || skills[tt.wantSkill] == nil {
				t.Fatalf("%s - expected only skill %s, got %v", agentserverTestPrefix, tt.wantSkill, skills)
			}
			switch tt.kind {
			case KindWeather:
				if _, ok := skills[tt.wantSkill].(*weather.Skill); !ok {
					t.Errorf("%s - expected *weather.Skill", agentserverTestPrefix)
				}
			case KindFarm:
				if _, ok := skills[tt.wantSkill].(*flavor.Skill); !ok {
					t.Errorf("%s - expected *flavor.Skill", agentserverTestPrefix)
				}
			}
		})
	}
}

func TestValidate(t *testing.T) {
	cfg := testConfig()
	if err := validate(KindWeather, cfg); err != nil {
		t.Errorf("%s - weather: unexpected error: %v", agentserverTestPrefix, err)
	}
	if err := validate(KindFarm, cfg); err != nil {
		t.Errorf("%s - farm: unexpected error: %v", agentserverTestPrefix, err)
	}

	cfg.OpenAIAPIKey = ""
	if err := validate(KindFarm, cfg); err == nil {
		t.Errorf("%s - expected error for farm agent without API key", agentserverTestPrefix)
	}
	if err := validate(Kind("mill"), cfg); err == nil {
		t.Errorf("%s - expected error for unknown kind", agentserverTestPrefix)
	}
}

func TestListenPort(t *testing.T) {
	cfg := testConfig()
	if got := listenPort(KindWeather, cfg); got != 9998 {
		t.Errorf("%s - weather port = %d", agentserverTestPrefix, got)
	}
	if got := listenPort(KindFarm, cfg); got != 9999 {
		t.Errorf("%s - farm port = %d", agentserverTestPrefix, got)
	}
}

func TestNewHandler(t *testing.T) {
	card := bootstrap.WeatherAgentCard("http://weather:9998/")
	rt, err := worker.NewRuntime(card, map[string]worker.Skill{
		bootstrap.SkillWeather: worker.SkillFunc(func(_ context.Context, input string) (string, error) {
			return "Sunny in " + input, nil
		}),
	})
	if err != nil {
		t.Fatalf("%s - NewRuntime failed: %v", agentserverTestPrefix, err)
	}
	h := newHandler(rt, time.Second)

	t.Run("health", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
		var out map[string]string
		if err := json.NewDecoder(rec.Body).Decode(&out); err != nil {
			t.Fatalf("%s - decode: %v", agentserverTestPrefix, err)
		}
		if rec.Code != http.StatusOK || out["agent"] != bootstrap.WeatherAgentID {
			t.Errorf("%s - unexpected health %d %v", agentserverTestPrefix, rec.Code, out)
		}
	})

	t.Run("agent card", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, worker.AgentCardPath, nil))
		var out bootstrap.AgentCard
		if err := json.NewDecoder(rec.Body).Decode(&out); err != nil {
			t.Fatalf("%s - decode: %v", agentserverTestPrefix, err)
		}
		if out.ID != bootstrap.WeatherAgentID {
			t.Errorf("%s - card id = %q", agentserverTestPrefix, out.ID)
		}
	})

	t.Run("envelope", func(t *testing.T) {
		body, _ := json.Marshal(&a2a.RequestEnvelope{
			ID:      "req-1",
			SkillID: bootstrap.SkillWeather,
			Message: &a2a.Message{ID: "m-1", Role: a2a.RoleUser, Parts: []a2a.Part{{Text: "Colombia"}}},
		})
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", bytes.NewReader(body)))

		var out a2a.ResponseEnvelope
		if err := json.NewDecoder(rec.Body).Decode(&out); err != nil {
			t.Fatalf("%s - decode: %v", agentserverTestPrefix, err)
		}
		if out.Error != nil || out.Result == nil || len(out.Result.Parts) != 1 || out.Result.Parts[0].Text != "Sunny in Colombia" {
			t.Errorf("%s - unexpected response %+v", agentserverTestPrefix, out)
		}
	})
}
