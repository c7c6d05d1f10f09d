// Package http exposes the message API over HTTP.
package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"

	"crowd-safety-service/internal/dispatch"
	"crowd-safety-service/internal/observability"
	"crowd-safety-service/internal/router"
)

// analyzeRequest is the single inbound message envelope.
type analyzeRequest struct {
	UserID  string          `json:"user_id"`
	Message json.RawMessage `json:"message"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// NewRouter constructs the HTTP router over the message router and the
// dispatch engine.
func NewRouter(rt *router.Router, engine *dispatch.Engine) http.Handler {
	r := chi.NewRouter()

	// Basic middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(observability.RequestLogger)

	// Health endpoints
	r.Get("/v1/liveness", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Get("/v1/readiness", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})

	// API routes
	r.Route("/v1", func(r chi.Router) {
		r.Post("/analyze", handleAnalyze(rt))
		r.Get("/dispatches/recent", handleRecentDispatches(engine))
	})

	return r
}

// handleAnalyze runs one message through the router. Unroutable input and
// invalid priorities are clarification requests, not server faults.
func handleAnalyze(rt *router.Router) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req analyzeRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "request body must be JSON with user_id and message"})
			return
		}
		if req.UserID == "" {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "user_id is required"})
			return
		}
		if len(req.Message) == 0 {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "message is required"})
			return
		}

		resp, err := rt.Handle(r.Context(), req.UserID, string(req.Message))
		if err != nil {
			switch {
			case errors.Is(err, router.ErrUnroutable):
				writeJSON(w, http.StatusBadRequest, errorResponse{
					Error: "message not understood; send an event document, a chat action (report, query, help), or a dispatch request",
				})
			case errors.Is(err, router.ErrInvalidPriority):
				writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
			default:
				log.Error().Err(err).Str("userId", req.UserID).Msg("Message handling failed")
				writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
			}
			return
		}

		writeJSON(w, http.StatusOK, resp)
	}
}

func handleRecentDispatches(engine *dispatch.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := 20
		if v := r.URL.Query().Get("limit"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n <= 0 {
				writeJSON(w, http.StatusBadRequest, errorResponse{Error: "limit must be a positive integer"})
				return
			}
			limit = n
		}

		recent, err := engine.RecentDispatches(r.Context(), limit)
		if err != nil {
			log.Error().Err(err).Msg("Failed to fetch recent dispatches")
			writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"dispatches": recent})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("Failed to encode response")
	}
}
