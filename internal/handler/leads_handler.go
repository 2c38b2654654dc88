package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/asherv/martpal-go/internal/service"
)

// ============================================================
// Funnel queries
// ============================================================

func leadsSummaryHandler(leads *service.LeadService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/leads/summary")
		defer span.End()

		summary, err := leads.Summary(ctx, UserIDFromContext(ctx))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		writeJSON(w, http.StatusOK, summary)
	}
}

func leadsListHandler(leads *service.LeadService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/leads/{segment}")
		defer span.End()

		segment := chi.URLParam(r, "segment")
		platform := r.URL.Query().Get("platform")
		span.SetAttributes(attribute.String("lead.segment", segment))

		list, err := leads.List(ctx, UserIDFromContext(ctx), segment, platform)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		writeJSON(w, http.StatusOK, list)
	}
}

// ============================================================
// Funnel mutations
// ============================================================

type moveRequest struct {
	Target string `json:"target"`
}

func leadsMoveHandler(leads *service.LeadService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/leads/{segment}/{id}/move")
		defer span.End()

		var req moveRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		segment := chi.URLParam(r, "segment")
		leadID := chi.URLParam(r, "id")
		span.SetAttributes(
			attribute.String("lead.segment", segment),
			attribute.String("lead.target", req.Target),
		)

		moved, err := leads.Move(ctx, UserIDFromContext(ctx), segment, leadID, req.Target)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		writeJSON(w, http.StatusOK, moved)
	}
}

func leadsDeleteHandler(leads *service.LeadService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "DELETE /v1/leads/{segment}/{id}")
		defer span.End()

		segment := chi.URLParam(r, "segment")
		leadID := chi.URLParam(r, "id")

		if err := leads.Delete(ctx, UserIDFromContext(ctx), segment, leadID); err != nil {
			handleServiceError(w, err, logger)
			return
		}

		w.WriteHeader(http.StatusNoContent)
	}
}

// ============================================================
// Live funnel stream
// ============================================================

// leadsWatchHandler streams funnel change events over SSE. Keepalive
// comments are written on the keepalive interval so idle proxies do
// not cut the connection.
func leadsWatchHandler(leads *service.LeadService, keepalive time.Duration, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		flusher, ok := w.(http.Flusher)
		if !ok {
			writeError(w, http.StatusInternalServerError, "streaming not supported")
			return
		}

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		w.WriteHeader(http.StatusOK)
		flusher.Flush()

		events := leads.Watch(ctx, UserIDFromContext(ctx))
		ticker := time.NewTicker(keepalive)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				fmt.Fprint(w, ": keepalive\n\n")
				flusher.Flush()
			case evt, open := <-events:
				if !open {
					return
				}
				payload, err := json.Marshal(evt)
				if err != nil {
					logger.Warn("failed to encode funnel event", zap.Error(err))
					continue
				}
				fmt.Fprintf(w, "event: %s\ndata: %s\n\n", evt.Kind, payload)
				flusher.Flush()
			}
		}
	}
}
