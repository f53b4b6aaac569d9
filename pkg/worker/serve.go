package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	comms "github.com/nats-io/nats.go"

	"github.com/morezero/agent-exchange/pkg/a2a"
	"github.com/morezero/agent-exchange/pkg/commsutil"
)

const serveLogPrefix = "worker:serve"

// AgentCardPath is where the runtime publishes its agent card.
const AgentCardPath = "/.well-known/agent.json"

const maxRequestBytes = 1 << 20

// HTTPHandler serves envelopes posted to any path and the agent card at AgentCardPath.
func (r *Runtime) HTTPHandler(requestTimeout time.Duration) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc(AgentCardPath, func(w http.ResponseWriter, req *http.Request) {
		if req.Method != http.MethodGet {
			w.Header().Set("Allow", http.MethodGet)
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(r.card); err != nil {
			slog.Error(fmt.Sprintf("%s - agent card encode: %v", serveLogPrefix, err))
		}
	})
	mux.HandleFunc("/", func(w http.ResponseWriter, req *http.Request) {
		if req.Method != http.MethodPost {
			w.Header().Set("Allow", http.MethodPost)
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}

		body, err := io.ReadAll(io.LimitReader(req.Body, maxRequestBytes))
		if err != nil {
			writeEnvelope(w, http.StatusBadRequest, a2a.ErrorResponse("", a2a.CodeInvalidRequest, "Failed to read request"))
			return
		}

		var env a2a.RequestEnvelope
		if err := commsutil.DecodePayload(body, &env); err != nil {
			slog.Error(fmt.Sprintf("%s - failed to decode request: %v", serveLogPrefix, err))
			writeEnvelope(w, http.StatusBadRequest, a2a.ErrorResponse("", a2a.CodeInvalidRequest, "Failed to decode request"))
			return
		}

		ctx, cancel := context.WithTimeout(req.Context(), requestTimeout)
		defer cancel()

		writeEnvelope(w, http.StatusOK, r.Handle(ctx, &env))
	})
	return mux
}

func writeEnvelope(w http.ResponseWriter, status int, resp *a2a.ResponseEnvelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.Error(fmt.Sprintf("%s - failed to encode response: %v", serveLogPrefix, err))
	}
}

// ServeNATS answers envelopes published on topic. Replicas of the same agent
// share a queue group so each request is handled once.
func (r *Runtime) ServeNATS(ctx context.Context, nc *comms.Conn, topic string, requestTimeout time.Duration) (*comms.Subscription, error) {
	sub, err := nc.QueueSubscribe(topic, r.card.ID, func(msg *comms.Msg) {
		var req a2a.RequestEnvelope
		if err := commsutil.DecodePayload(msg.Data, &req); err != nil {
			slog.Error(fmt.Sprintf("%s - failed to decode request: %v", serveLogPrefix, err))
			respond(msg, a2a.ErrorResponse("", a2a.CodeInvalidRequest, "Failed to decode request"))
			return
		}

		reqCtx, cancel := context.WithTimeout(ctx, requestTimeout)
		defer cancel()

		respond(msg, r.Handle(reqCtx, &req))
	})
	if err != nil {
		return nil, fmt.Errorf("%s - failed to subscribe to %s: %w", serveLogPrefix, topic, err)
	}
	slog.Info(fmt.Sprintf("%s - Agent %s subscribed to %s", serveLogPrefix, r.card.ID, topic))
	return sub, nil
}

func respond(msg *comms.Msg, resp *a2a.ResponseEnvelope) {
	data, err := commsutil.EncodePayload(resp)
	if err != nil {
		slog.Error(fmt.Sprintf("%s - failed to encode response: %v", serveLogPrefix, err))
		return
	}
	if err := msg.Respond(data); err != nil {
		slog.Error(fmt.Sprintf("%s - failed to respond: %v", serveLogPrefix, err))
	}
}
