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
// External source connection
// ============================================================

func sourceConnectHandler(sources *service.SourceService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/source/connect")
		defer span.End()

		var creds domain.SourceCredentials
		if err := json.NewDecoder(r.Body).Decode(&creds); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		span.SetAttributes(attribute.String("source.project", creds.ProjectID))

		status, err := sources.Connect(ctx, UserIDFromContext(ctx), creds)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		writeJSON(w, http.StatusOK, status)
	}
}

func sourceStatusHandler(sources *service.SourceService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/source/status")
		defer span.End()

		status, err := sources.Status(ctx, UserIDFromContext(ctx))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		writeJSON(w, http.StatusOK, status)
	}
}

func sourceDisconnectHandler(sources *service.SourceService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "DELETE /v1/source")
		defer span.End()

		purge := r.URL.Query().Get("purge") == "true"
		if err := sources.Disconnect(ctx, UserIDFromContext(ctx), purge); err != nil {
			handleServiceError(w, err, logger)
			return
		}

		writeJSON(w, http.StatusOK, map[string]any{"disconnected": true, "purged": purge})
	}
}

// ============================================================
// Import
// ============================================================

type importRequest struct {
	Collection string `json:"collection"`
}

func sourceImportHandler(imports *service.ImportService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/source/import")
		defer span.End()

		var req importRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		span.SetAttributes(attribute.String("source.collection", req.Collection))

		result, err := imports.ImportCollection(ctx, UserIDFromContext(ctx), req.Collection)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		writeJSON(w, http.StatusOK, result)
	}
}
