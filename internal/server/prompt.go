package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/morezero/agent-exchange/pkg/a2a"
	"github.com/morezero/agent-exchange/pkg/supervisor"
)

const promptLogPrefix = "server:prompt"

// promptRequest is the body of POST /agent/prompt.
type promptRequest struct {
	Prompt   string `json:"prompt"`
	ThreadID string `json:"thread_id,omitempty"`
	Stream   bool   `json:"stream,omitempty"`
}

// promptResponse is the non-streaming reply.
type promptResponse struct {
	Response string `json:"response"`
	ThreadID string `json:"thread_id"`
}

type errorBody struct {
	Detail string `json:"detail"`
}

// handlePrompt serves one turn. Invalid input is 400; any other failure is 500.
func (s *Server) handlePrompt() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.Header().Set("Allow", http.MethodPost)
			writeJSON(w, http.StatusMethodNotAllowed, errorBody{Detail: "Method not allowed"})
			return
		}

		var req promptRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			slog.Warn(fmt.Sprintf("%s - failed to decode request: %v", promptLogPrefix, err))
			writeJSON(w, http.StatusBadRequest, errorBody{Detail: "Invalid request body"})
			return
		}

		threadID := strings.TrimSpace(req.ThreadID)
		if threadID == "" {
			threadID = uuid.NewString()
		}
		slog.Info(fmt.Sprintf("%s - Received prompt on thread %s (stream=%t)", promptLogPrefix, threadID, req.Stream))

		if req.Stream {
			s.streamTurn(w, r, req.Prompt, threadID)
			return
		}

		res, err := s.turns.Serve(r.Context(), req.Prompt, threadID)
		if err != nil {
			if supervisor.IsInvalidInput(err) {
				slog.Warn(fmt.Sprintf("%s - rejected prompt on thread %s: %v", promptLogPrefix, threadID, err))
				writeJSON(w, http.StatusBadRequest, errorBody{Detail: publicError(err)})
				return
			}
			slog.Error(fmt.Sprintf("%s - turn on thread %s failed: %v", promptLogPrefix, threadID, err))
			writeJSON(w, http.StatusInternalServerError, errorBody{Detail: "Operation failed: " + publicError(err)})
			return
		}
		writeJSON(w, http.StatusOK, promptResponse{Response: res.Response, ThreadID: res.ThreadID})
	}
}

// streamTurn writes the turn as server-sent events, one "data:" line per event.
func (s *Server) streamTurn(w http.ResponseWriter, r *http.Request, prompt, threadID string) {
	flusher, _ := w.(http.Flusher)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	for ev := range s.turns.ServeStream(r.Context(), prompt, threadID) {
		if ev.Err != nil {
			slog.Error(fmt.Sprintf("%s - streamed turn on thread %s failed: %v", promptLogPrefix, threadID, ev.Err))
			ev.Error = publicError(ev.Err)
		}
		data, err := json.Marshal(ev)
		if err != nil {
			slog.Error(fmt.Sprintf("%s - event encode: %v", promptLogPrefix, err))
			return
		}
		if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
			return
		}
		if flusher != nil {
			flusher.Flush()
		}
	}
}

// publicError is the caller-facing text for a failed turn. The full chain stays in the logs.
func publicError(err error) string {
	var remote *a2a.RemoteAgentError
	switch {
	case errors.Is(err, a2a.ErrInvalidInput):
		return "Prompt must not be empty"
	case errors.As(err, &remote):
		return "The agent could not complete the request"
	case errors.Is(err, a2a.ErrRemoteTimeout):
		return "The agent did not respond in time"
	case errors.Is(err, a2a.ErrTransportUnavailable):
		return "The agent is unavailable"
	case errors.Is(err, a2a.ErrUnknownSkill):
		return "No agent can handle this request"
	}
	return "Unexpected error"
}
