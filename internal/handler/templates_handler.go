package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/asherv/martpal-go/internal/domain"
	"github.com/asherv/martpal-go/internal/service"
)

// ============================================================
// Message templates
// ============================================================

func templatesCreateHandler(templates *service.TemplateService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/templates")
		defer span.End()

		var tpl domain.Template
		if err := json.NewDecoder(r.Body).Decode(&tpl); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		created, err := templates.Create(ctx, UserIDFromContext(ctx), &tpl)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		writeJSON(w, http.StatusCreated, created)
	}
}

func templatesListHandler(templates *service.TemplateService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/templates")
		defer span.End()

		list, err := templates.List(ctx, UserIDFromContext(ctx))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		writeJSON(w, http.StatusOK, list)
	}
}

func templatesDeleteHandler(templates *service.TemplateService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "DELETE /v1/templates/{id}")
		defer span.End()

		if err := templates.Delete(ctx, UserIDFromContext(ctx), chi.URLParam(r, "id")); err != nil {
			handleServiceError(w, err, logger)
			return
		}

		w.WriteHeader(http.StatusNoContent)
	}
}
