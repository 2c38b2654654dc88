package service

import (
	"context"
	"strings"

	"go.opentelemetry.io/otel"
	"go.uber.org/zap"

	"github.com/asherv/martpal-go/internal/domain"
	"github.com/asherv/martpal-go/internal/port"
)

var templateTracer = otel.Tracer("service/templates")

// TemplateService manages reusable message bodies.
type TemplateService struct {
	store  port.TemplateStore
	logger *zap.Logger
}

// NewTemplateService creates a template service.
func NewTemplateService(store port.TemplateStore, logger *zap.Logger) *TemplateService {
	return &TemplateService{store: store, logger: logger}
}

func (s *TemplateService) Create(ctx context.Context, userID string, tpl *domain.Template) (*domain.Template, error) {
	ctx, span := templateTracer.Start(ctx, "TemplateService.Create")
	defer span.End()

	if strings.TrimSpace(tpl.Name) == "" {
		return nil, &domain.ErrValidation{Field: "name", Message: "name is required"}
	}
	if strings.TrimSpace(tpl.Content) == "" {
		return nil, &domain.ErrValidation{Field: "content", Message: "content is required"}
	}

	created, err := s.store.CreateTemplate(ctx, userID, tpl)
	if err != nil {
		return nil, err
	}

	s.logger.Info("template created",
		zap.String("user_id", userID),
		zap.String("template_id", created.ID),
	)
	return created, nil
}

func (s *TemplateService) List(ctx context.Context, userID string) ([]domain.Template, error) {
	ctx, span := templateTracer.Start(ctx, "TemplateService.List")
	defer span.End()

	return s.store.ListTemplates(ctx, userID)
}

func (s *TemplateService) Delete(ctx context.Context, userID, templateID string) error {
	ctx, span := templateTracer.Start(ctx, "TemplateService.Delete")
	defer span.End()

	return s.store.DeleteTemplate(ctx, userID, templateID)
}
