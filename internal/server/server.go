// Package server orchestrates the exchange: NATS client, agent registry, transport, session store, supervisor, HTTP front door.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	comms "github.com/nats-io/nats.go"
	"golang.org/x/time/rate"

	"github.com/morezero/agent-exchange/internal/config"
	"github.com/morezero/agent-exchange/internal/tracer"
	"github.com/morezero/agent-exchange/pkg/agentclient"
	"github.com/morezero/agent-exchange/pkg/bootstrap"
	"github.com/morezero/agent-exchange/pkg/commsutil"
	"github.com/morezero/agent-exchange/pkg/db"
	"github.com/morezero/agent-exchange/pkg/events"
	"github.com/morezero/agent-exchange/pkg/registry"
	"github.com/morezero/agent-exchange/pkg/routing"
	"github.com/morezero/agent-exchange/pkg/session"
	"github.com/morezero/agent-exchange/pkg/supervisor"
	"github.com/morezero/agent-exchange/pkg/transport"
)

const logPrefix = "server:server"

// registryForServer is the part of the agent registry the HTTP handlers read.
type registryForServer interface {
	Agents() []*registry.AgentDescriptor
	Health() *registry.HealthOutput
}

// turnServer runs conversation turns for the prompt endpoint.
type turnServer interface {
	Serve(ctx context.Context, prompt, threadID string) (*supervisor.TurnResult, error)
	ServeStream(ctx context.Context, prompt, threadID string) <-chan supervisor.StreamEvent
}

// Server is the exchange front door.
type Server struct {
	cfg        *config.Config
	reg        registryForServer
	turns      turnServer
	store      session.Store
	limiter    *rate.Limiter
	httpServer *http.Server
}

// Run starts the exchange, blocks until shutdown signal, then cleans up.
func Run() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("%s - failed to load config: %w", logPrefix, err)
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.SlogLevel()})))

	if err := cfg.ValidateForServe(); err != nil {
		return err
	}
	policy, _ := cfg.TransportPolicy()

	slog.Info(fmt.Sprintf("%s - Starting agent exchange (transport %s)", logPrefix, policy))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Step 1: Tracing
	shutdownTracer, err := tracer.Setup(ctx, tracer.Options{Enabled: cfg.TracingEnabled, Exporter: cfg.TracingExporter})
	if err != nil {
		return fmt.Errorf("%s - failed to set up tracing: %w", logPrefix, err)
	}
	defer func() {
		if err := shutdownTracer(context.Background()); err != nil {
			slog.Warn(fmt.Sprintf("%s - tracer shutdown: %v", logPrefix, err))
		}
	}()

	// Step 2: Agent cards and registry
	catalog, err := bootstrap.LoadCatalog(bootstrap.GetDefaultCatalog(bootstrap.Endpoints{
		WeatherURL: bootstrap.AgentURL(cfg.WeatherAgentHost, cfg.WeatherAgentPort),
		FarmURL:    bootstrap.AgentURL(cfg.FarmAgentHost, cfg.FarmAgentPort),
	}), cfg.AgentCardsFile)
	if err != nil {
		return fmt.Errorf("%s - failed to load agent cards: %w", logPrefix, err)
	}
	reg, err := registry.New(catalog.Agents)
	if err != nil {
		return fmt.Errorf("%s - failed to build registry: %w", logPrefix, err)
	}

	// Step 3: Connect to NATS when the transport or turn events need it
	var nc *comms.Conn
	if policy == transport.PolicyBrokered || cfg.EventsEnabled {
		nc, err = commsutil.Connect(cfg.COMMSURL, cfg.COMMSName)
		switch {
		case err == nil:
			slog.Info(fmt.Sprintf("%s - Connected to NATS at %s", logPrefix, cfg.COMMSURL))
		case policy == transport.PolicyBrokered:
			return fmt.Errorf("%s - failed to connect to NATS: %w", logPrefix, err)
		default:
			slog.Warn(fmt.Sprintf("%s - NATS unavailable, turn events disabled: %v", logPrefix, err))
			nc = nil
		}
	}
	closeNATS := func() {
		if nc != nil {
			nc.Drain()
		}
	}

	// Step 4: Transport and client pool
	tr, err := transport.New(transport.Config{
		Policy:         policy,
		RequestTimeout: cfg.RequestTimeout,
		Conn:           nc,
	})
	if err != nil {
		closeNATS()
		return fmt.Errorf("%s - failed to create transport: %w", logPrefix, err)
	}
	clients := agentclient.NewPool(tr, agentclient.Options{
		Breaker: agentclient.BreakerConfig{
			MaxFailures: cfg.BreakerMaxFailures,
			Timeout:     cfg.BreakerTimeout,
		},
	})

	// Step 5: Session store
	store, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		closeNATS()
		return err
	}

	// Step 6: Turn events
	var publisher events.EventPublisher = &events.NoOpPublisher{}
	if cfg.EventsEnabled && nc != nil {
		publisher = events.NewCommsPublisher(nc, &events.CommsPublisherOpts{Subject: cfg.TurnEventSubject})
	}

	sup, err := supervisor.New(supervisor.Params{
		Registry:   reg,
		Clients:    clients,
		Store:      store,
		Classifier: routing.NewRuleClassifier(),
		Publisher:  publisher,
	})
	if err != nil {
		closeStore()
		closeNATS()
		return fmt.Errorf("%s - failed to create supervisor: %w", logPrefix, err)
	}

	// Step 7: HTTP front door
	s := newServer(cfg, reg, sup, store)
	s.httpServer = &http.Server{Addr: httpAddr(cfg), Handler: s.routes()}
	go func() {
		slog.Info(fmt.Sprintf("%s - HTTP server listening on %s", logPrefix, s.httpServer.Addr))
		if err := s.httpServer.ListenAndServe(); err != http.ErrServerClosed {
			slog.Error(fmt.Sprintf("%s - HTTP server error: %v", logPrefix, err))
		}
	}()

	slog.Info(fmt.Sprintf("%s - Agent exchange is ready", logPrefix))

	// Wait for shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	slog.Info(fmt.Sprintf("%s - Received signal %s, shutting down", logPrefix, sig))

	// Graceful shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(ctx, cfg.RequestTimeout)
	defer shutdownCancel()
	s.httpServer.Shutdown(shutdownCtx)
	clients.CloseAll()
	closeStore()
	closeNATS()

	slog.Info(fmt.Sprintf("%s - Shutdown complete", logPrefix))
	return nil
}

// openStore builds the configured session store. The returned func releases it.
func openStore(ctx context.Context, cfg *config.Config) (session.Store, func(), error) {
	if cfg.SessionStore != config.SessionStorePostgres {
		slog.Info(fmt.Sprintf("%s - Using in-memory session store", logPrefix))
		return session.NewMemoryStore(), func() {}, nil
	}

	pool, err := db.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, nil, fmt.Errorf("%s - failed to connect to database: %w", logPrefix, err)
	}
	if cfg.RunMigrations {
		migrations, err := db.LoadMigrationFiles(cfg.MigrationPath)
		if err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("%s - failed to load migrations: %w", logPrefix, err)
		}
		if err := db.RunMigrations(ctx, pool, migrations); err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("%s - failed to run migrations: %w", logPrefix, err)
		}
	}
	slog.Info(fmt.Sprintf("%s - Using postgres session store", logPrefix))
	return session.NewPostgresStore(db.NewRepository(pool)), pool.Close, nil
}

func httpAddr(cfg *config.Config) string {
	if cfg.HTTPAddr != "" {
		return cfg.HTTPAddr
	}
	return fmt.Sprintf(":%d", cfg.HTTPPort)
}

func newServer(cfg *config.Config, reg registryForServer, turns turnServer, store session.Store) *Server {
	s := &Server{cfg: cfg, reg: reg, turns: turns, store: store}
	if cfg.RateLimitRPS > 0 {
		s.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimitRPS), cfg.RateLimitBurst)
	}
	return s
}

// routes builds the front door mux. Only the prompt endpoint is rate limited.
func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleHome())
	mux.Handle("/agent/prompt", s.rateLimit(s.handlePrompt()))
	mux.HandleFunc("/agents", s.handleAgents())
	mux.HandleFunc("/health", s.handleHealth())
	mux.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	})
	return withCORS(mux)
}

// rateLimit rejects requests beyond the configured rate with 429.
func (s *Server) rateLimit(next http.Handler) http.Handler {
	if s.limiter == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.limiter.Allow() {
			writeJSON(w, http.StatusTooManyRequests, errorBody{Detail: "Too many requests"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

// withCORS allows browser clients from any origin.
func withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("Access-Control-Allow-Origin", "*")
		h.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		h.Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// healthOutput is the /health body.
type healthOutput struct {
	Status    string          `json:"status"`
	Agents    int             `json:"agents"`
	Skills    int             `json:"skills"`
	Checks    map[string]bool `json:"checks"`
	Timestamp string          `json:"timestamp"`
}

// health combines registry health with a session store ping when the store supports it.
func (s *Server) health(ctx context.Context) *healthOutput {
	h := s.reg.Health()
	out := &healthOutput{
		Status:    h.Status,
		Agents:    h.Agents,
		Skills:    h.Skills,
		Checks:    map[string]bool{"registry": h.Status == "healthy"},
		Timestamp: h.Timestamp,
	}
	if p, ok := s.store.(session.Pinger); ok {
		err := p.Ping(ctx)
		out.Checks["sessionStore"] = err == nil
		if err != nil {
			slog.Warn(fmt.Sprintf("%s - session store ping failed: %v", logPrefix, err))
			out.Status = "unhealthy"
		}
	}
	return out
}

func (s *Server) handleHealth() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), s.cfg.HealthCheckTimeout)
		defer cancel()
		h := s.health(ctx)
		status := http.StatusOK
		if h.Status != "healthy" {
			status = http.StatusServiceUnavailable
		}
		writeJSON(w, status, h)
	}
}

func (s *Server) handleAgents() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			w.Header().Set("Allow", http.MethodGet)
			writeJSON(w, http.StatusMethodNotAllowed, errorBody{Detail: "Method not allowed"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{"agents": s.reg.Agents()})
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error(fmt.Sprintf("%s - response encode: %v", logPrefix, err))
	}
}

// homePageTemplate is the HTML for the exchange home page (white bg, black/blue text).
const homePageTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="UTF-8">
  <meta name="viewport" content="width=device-width, initial-scale=1">
  <title>Coffee Exchange</title>
  <style>
    * { box-sizing: border-box; }
    body { background: #fff; color: #000; font-family: system-ui, sans-serif; margin: 0; padding: 2rem; line-height: 1.5; }
    h1, h2 { color: #0066cc; }
    .status-healthy { color: #0066cc; font-weight: bold; }
    .status-unhealthy { color: #cc0000; font-weight: bold; }
    table { border-collapse: collapse; width: 100%; max-width: 900px; margin-top: 0.5rem; }
    th, td { text-align: left; padding: 0.5rem 0.75rem; border: 1px solid #ccc; vertical-align: top; }
    th { background: #f0f4f8; color: #0066cc; }
    .meta { color: #333; font-size: 0.9rem; margin-top: 1rem; }
    code { background: #f5f5f5; padding: 0 0.25rem; }
    section { margin-bottom: 2rem; }
  </style>
</head>
<body>
  <h1>Coffee Exchange</h1>
  <p class="meta">Routes prompts to worker agents over {{.Transport}}. Send <code>POST /agent/prompt</code> with <code>{"prompt": "..."}</code>.</p>

  <section>
    <h2>Health</h2>
    <p>Status: <span class="status-{{.Health.Status}}">{{.Health.Status}}</span></p>
    <p>Timestamp: {{.Health.Timestamp}}</p>
  </section>

  <section>
    <h2>Agents</h2>
    {{if not .Agents}}
    <p>No agents registered.</p>
    {{else}}
    <table>
      <thead>
        <tr><th>Agent</th><th>Name</th><th>Version</th><th>Skills</th><th>Address</th></tr>
      </thead>
      <tbody>
        {{range .Agents}}
        <tr>
          <td>{{.ID}}</td>
          <td>{{.Name}}</td>
          <td>{{.Version}}</td>
          <td>{{range .Skills}}{{.ID}} {{end}}</td>
          <td>{{.Address.URL}}<br>{{.Address.Topic}}</td>
        </tr>
        {{end}}
      </tbody>
    </table>
    {{end}}
  </section>
</body>
</html>
`

// homeData is the data passed to the home page template.
type homeData struct {
	Transport string
	Health    *healthOutput
	Agents    []*registry.AgentDescriptor
}

// handleHome returns an HTTP handler for the exchange home page.
func (s *Server) handleHome() http.HandlerFunc {
	tmpl := template.Must(template.New("home").Parse(homePageTemplate))
	return func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		ctx, cancel := context.WithTimeout(r.Context(), s.cfg.HealthCheckTimeout)
		defer cancel()

		policy, err := s.cfg.TransportPolicy()
		if err != nil {
			policy = s.cfg.Transport
		}
		data := homeData{
			Transport: policy,
			Health:    s.health(ctx),
			Agents:    s.reg.Agents(),
		}

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if err := tmpl.Execute(w, data); err != nil {
			slog.Error(fmt.Sprintf("%s - home template execute: %v", logPrefix, err))
			http.Error(w, "internal error", http.StatusInternalServerError)
		}
	}
}
