// Package agentserver runs one worker agent process: its skill runtime served over HTTP and, for the brokered policy, NATS.
package agentserver

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	comms "github.com/nats-io/nats.go"

	"github.com/morezero/agent-exchange/internal/config"
	"github.com/morezero/agent-exchange/internal/tracer"
	"github.com/morezero/agent-exchange/pkg/bootstrap"
	"github.com/morezero/agent-exchange/pkg/commsutil"
	"github.com/morezero/agent-exchange/pkg/registry"
	"github.com/morezero/agent-exchange/pkg/skills/flavor"
	"github.com/morezero/agent-exchange/pkg/skills/weather"
	"github.com/morezero/agent-exchange/pkg/transport"
	"github.com/morezero/agent-exchange/pkg/worker"
)

const logPrefix = "agentserver:agentserver"

// Kind selects which built-in agent the process runs.
type Kind string

const (
	KindWeather Kind = "weather"
	KindFarm    Kind = "farm"
)

// Run starts the agent, blocks until shutdown signal, then cleans up.
func Run(kind Kind) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("%s - failed to load config: %w", logPrefix, err)
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.SlogLevel()})))

	if err := validate(kind, cfg); err != nil {
		return err
	}
	policy, _ := cfg.TransportPolicy()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	shutdownTracer, err := tracer.Setup(ctx, tracer.Options{Enabled: cfg.TracingEnabled, Exporter: cfg.TracingExporter})
	if err != nil {
		return fmt.Errorf("%s - failed to set up tracing: %w", logPrefix, err)
	}
	defer func() {
		if err := shutdownTracer(context.Background()); err != nil {
			slog.Warn(fmt.Sprintf("%s - tracer shutdown: %v", logPrefix, err))
		}
	}()

	card, err := agentCard(kind, cfg)
	if err != nil {
		return err
	}
	skills, err := buildSkills(kind, cfg)
	if err != nil {
		return err
	}
	rt, err := worker.NewRuntime(card, skills)
	if err != nil {
		return fmt.Errorf("%s - failed to create runtime: %w", logPrefix, err)
	}

	slog.Info(fmt.Sprintf("%s - Starting %s (transport %s)", logPrefix, card.ID, policy))

	// Brokered agents answer on their registry topic.
	var nc *comms.Conn
	var sub *comms.Subscription
	if policy == transport.PolicyBrokered {
		topic, err := agentTopic(card)
		if err != nil {
			return err
		}
		nc, err = commsutil.Connect(cfg.COMMSURL, card.ID)
		if err != nil {
			return fmt.Errorf("%s - failed to connect to NATS: %w", logPrefix, err)
		}
		sub, err = rt.ServeNATS(ctx, nc, topic, cfg.RequestTimeout)
		if err != nil {
			nc.Close()
			return err
		}
		slog.Info(fmt.Sprintf("%s - Serving %s on %s", logPrefix, card.ID, topic))
	}

	addr := fmt.Sprintf(":%d", listenPort(kind, cfg))
	httpServer := &http.Server{Addr: addr, Handler: newHandler(rt, cfg.RequestTimeout)}
	go func() {
		slog.Info(fmt.Sprintf("%s - HTTP server listening on %s", logPrefix, addr))
		if err := httpServer.ListenAndServe(); err != http.ErrServerClosed {
			slog.Error(fmt.Sprintf("%s - HTTP server error: %v", logPrefix, err))
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	slog.Info(fmt.Sprintf("%s - Received signal %s, shutting down", logPrefix, sig))

	if sub != nil {
		sub.Unsubscribe()
	}
	shutdownCtx, shutdownCancel := context.WithTimeout(ctx, cfg.RequestTimeout)
	defer shutdownCancel()
	httpServer.Shutdown(shutdownCtx)
	if nc != nil {
		nc.Drain()
	}

	slog.Info(fmt.Sprintf("%s - Shutdown complete", logPrefix))
	return nil
}

func validate(kind Kind, cfg *config.Config) error {
	switch kind {
	case KindWeather:
		return cfg.ValidateForWeatherAgent()
	case KindFarm:
		return cfg.ValidateForFarmAgent()
	}
	return fmt.Errorf("%s - unknown agent kind %q", logPrefix, kind)
}

func listenPort(kind Kind, cfg *config.Config) int {
	if kind == KindFarm {
		return cfg.FarmAgentPort
	}
	return cfg.WeatherAgentPort
}

// agentCard returns the card for kind, taken from the agent cards file when it lists the agent.
func agentCard(kind Kind, cfg *config.Config) (bootstrap.AgentCard, error) {
	builtin := bootstrap.GetDefaultCatalog(bootstrap.Endpoints{
		WeatherURL: bootstrap.AgentURL(cfg.WeatherAgentHost, cfg.WeatherAgentPort),
		FarmURL:    bootstrap.AgentURL(cfg.FarmAgentHost, cfg.FarmAgentPort),
	})
	catalog, err := bootstrap.LoadCatalog(builtin, cfg.AgentCardsFile)
	if err != nil {
		return bootstrap.AgentCard{}, fmt.Errorf("%s - failed to load agent cards: %w", logPrefix, err)
	}

	id := bootstrap.WeatherAgentID
	if kind == KindFarm {
		id = bootstrap.FarmAgentID
	}
	if card := catalog.Find(id); card != nil {
		return *card, nil
	}
	slog.Warn(fmt.Sprintf("%s - %s not in agent cards, using built-in card", logPrefix, id))
	return *builtin.Find(id), nil
}

// agentTopic derives the brokered topic the exchange addresses this agent on.
func agentTopic(card bootstrap.AgentCard) (string, error) {
	reg, err := registry.New([]bootstrap.AgentCard{card})
	if err != nil {
		return "", fmt.Errorf("%s - invalid agent card: %w", logPrefix, err)
	}
	return reg.Agent(card.ID).Address.Topic, nil
}

func buildSkills(kind Kind, cfg *config.Config) (map[string]worker.Skill, error) {
	switch kind {
	case KindWeather:
		return map[string]worker.Skill{
			bootstrap.SkillWeather: weather.New(weather.Options{
				GeocodeURL:  cfg.WeatherGeocodeURL,
				ForecastURL: cfg.WeatherForecastURL,
				Timeout:     cfg.RequestTimeout,
			}),
		}, nil
	case KindFarm:
		apiKey := cfg.OpenAIAPIKey
		if strings.EqualFold(cfg.LLMProvider, flavor.ProviderAnthropic) {
			apiKey = cfg.AnthropicAPIKey
		}
		llm, err := flavor.NewCompleter(flavor.CompleterOptions{
			Provider: cfg.LLMProvider,
			Model:    cfg.LLMModel,
			APIKey:   apiKey,
		})
		if err != nil {
			return nil, err
		}
		slog.Info(fmt.Sprintf("%s - Flavor skill using %s", logPrefix, llm.Name()))
		return map[string]worker.Skill{bootstrap.SkillFlavor: flavor.New(llm)}, nil
	}
	return nil, fmt.Errorf("%s - unknown agent kind %q", logPrefix, kind)
}

// newHandler serves the runtime plus health endpoints.
func newHandler(rt *worker.Runtime, requestTimeout time.Duration) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"status": "ok", "agent": rt.Card().ID})
	})
	mux.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"status": "ready"})
	})
	mux.Handle("/", rt.HTTPHandler(requestTimeout))
	return mux
}
