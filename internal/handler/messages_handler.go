package handler

import (
	"encoding/json"
	"net/http"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/asherv/martpal-go/internal/domain"
	"github.com/asherv/martpal-go/internal/service"
)

// ============================================================
// Outbound messaging
// ============================================================

func messagesSendHandler(messages *service.MessageService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/messages/send")
		defer span.End()

		var req domain.SendRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		span.SetAttributes(
			attribute.String("message.segment", req.Segment),
			attribute.Int("message.recipients", len(req.LeadIDs)),
		)

		report, err := messages.SendNow(ctx, UserIDFromContext(ctx), &req)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		writeJSON(w, http.StatusOK, report)
	}
}

func messagesScheduleHandler(messages *service.MessageService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/messages/schedule")
		defer span.End()

		var req domain.ScheduleRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		scheduled, err := messages.Schedule(ctx, UserIDFromContext(ctx), &req)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		writeJSON(w, http.StatusCreated, map[string]any{"scheduledCount": scheduled})
	}
}

func messagesScheduledListHandler(messages *service.MessageService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/messages/scheduled")
		defer span.End()

		list, err := messages.ListScheduled(ctx, UserIDFromContext(ctx))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		writeJSON(w, http.StatusOK, list)
	}
}
