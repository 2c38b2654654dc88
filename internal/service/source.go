package service

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/asherv/martpal-go/internal/bus"
	"github.com/asherv/martpal-go/internal/domain"
	"github.com/asherv/martpal-go/internal/port"
)

var sourceTracer = otel.Tracer("service/source")

// SourceService manages the operator's connection to an external document
// database: connecting, probing, persisting credentials across restarts and
// tearing everything down on disconnect.
type SourceService struct {
	connector port.SourceConnector
	creds     port.CredentialStore
	leads     port.LeadStore
	events    *bus.Bus
	logger    *zap.Logger
}

// NewSourceService creates a source service.
func NewSourceService(connector port.SourceConnector, creds port.CredentialStore, leads port.LeadStore, events *bus.Bus, logger *zap.Logger) *SourceService {
	return &SourceService{
		connector: connector,
		creds:     creds,
		leads:     leads,
		events:    events,
		logger:    logger,
	}
}

// ============================================================
// Connect -- POST /v1/source/connect
// ============================================================

// Connect validates the credentials against the remote project and persists
// them so the connection survives restarts.
func (s *SourceService) Connect(ctx context.Context, userID string, creds domain.SourceCredentials) (*domain.SourceStatus, error) {
	ctx, span := sourceTracer.Start(ctx, "SourceService.Connect")
	defer span.End()
	span.SetAttributes(attribute.String("source.project", creds.ProjectID))

	handle, err := s.connector.Connect(ctx, creds)
	if err != nil {
		return nil, err
	}

	collections, err := handle.ListCollections(ctx)
	if err != nil {
		return nil, &domain.ErrConnectionFailed{ProjectID: creds.ProjectID, Err: err}
	}

	// Keep the last-imported collection when reconnecting to the same
	// project; a different project starts fresh.
	cfg := &domain.SourceConfig{Credentials: creds}
	if prev, ok, err := s.creds.Get(userID); err == nil && ok && prev.Credentials.ProjectID == creds.ProjectID {
		cfg.LastCollection = prev.LastCollection
	}
	if err := s.creds.Set(userID, cfg); err != nil {
		return nil, fmt.Errorf("persist credentials: %w", err)
	}

	s.logger.Info("source connection established",
		zap.String("user_id", userID),
		zap.String("project_id", creds.ProjectID),
		zap.Int("collections", len(collections)),
	)

	return &domain.SourceStatus{
		Connected:      true,
		ProjectID:      creds.ProjectID,
		Collections:    collections,
		LastCollection: cfg.LastCollection,
	}, nil
}

// ============================================================
// Status -- GET /v1/source/status
// ============================================================

// Status reports the stored connection, probing the remote project for its
// collections. A failing probe still reports the connection with a warning;
// stored credentials outlive transient outages.
func (s *SourceService) Status(ctx context.Context, userID string) (*domain.SourceStatus, error) {
	ctx, span := sourceTracer.Start(ctx, "SourceService.Status")
	defer span.End()

	cfg, ok, err := s.creds.Get(userID)
	if err != nil {
		return nil, fmt.Errorf("load credentials: %w", err)
	}
	if !ok {
		return &domain.SourceStatus{Connected: false}, nil
	}

	status := &domain.SourceStatus{
		Connected:      true,
		ProjectID:      cfg.Credentials.ProjectID,
		LastCollection: cfg.LastCollection,
	}

	handle, err := s.handleFromConfig(ctx, cfg)
	if err != nil {
		status.Warning = "stored connection could not be verified"
		return status, nil
	}

	collections, err := handle.ListCollections(ctx)
	if err != nil {
		status.Warning = "stored connection could not be verified"
		return status, nil
	}
	status.Collections = collections
	return status, nil
}

// ============================================================
// Disconnect -- DELETE /v1/source
// ============================================================

// Disconnect removes the stored credentials and drops the live handle.
// With purge set, the operator's entire imported lead container goes too.
func (s *SourceService) Disconnect(ctx context.Context, userID string, purge bool) error {
	ctx, span := sourceTracer.Start(ctx, "SourceService.Disconnect")
	defer span.End()

	cfg, ok, err := s.creds.Get(userID)
	if err != nil {
		return fmt.Errorf("load credentials: %w", err)
	}
	if !ok {
		return &domain.ErrConnectionMissing{}
	}

	if purge {
		if err := s.leads.PurgeLeads(ctx, userID); err != nil {
			return fmt.Errorf("purge leads: %w", err)
		}
	}

	if err := s.creds.Remove(userID); err != nil {
		return fmt.Errorf("remove credentials: %w", err)
	}
	s.connector.Drop(cfg.Credentials.ProjectID)

	s.events.Publish(bus.Event{
		Kind:      bus.KindSourcePurged,
		UserID:    userID,
		Timestamp: time.Now().UTC(),
		Payload:   map[string]any{"projectId": cfg.Credentials.ProjectID, "purged": purge},
	})

	s.logger.Info("source disconnected",
		zap.String("user_id", userID),
		zap.String("project_id", cfg.Credentials.ProjectID),
		zap.Bool("purged", purge),
	)
	return nil
}

// ============================================================
// Handle access for the import engine
// ============================================================

// HandleFor returns a live handle to the operator's connected source,
// reconnecting from stored credentials when needed.
func (s *SourceService) HandleFor(ctx context.Context, userID string) (port.SourceHandle, error) {
	ctx, span := sourceTracer.Start(ctx, "SourceService.HandleFor")
	defer span.End()

	cfg, ok, err := s.creds.Get(userID)
	if err != nil {
		return nil, fmt.Errorf("load credentials: %w", err)
	}
	if !ok {
		return nil, &domain.ErrConnectionMissing{}
	}
	return s.handleFromConfig(ctx, cfg)
}

// SetLastCollection records which collection the operator last imported.
func (s *SourceService) SetLastCollection(userID, collection string) {
	cfg, ok, err := s.creds.Get(userID)
	if err != nil || !ok {
		return
	}
	cfg.LastCollection = collection
	if err := s.creds.Set(userID, cfg); err != nil {
		s.logger.Warn("failed to persist last collection",
			zap.String("user_id", userID),
			zap.Error(err),
		)
	}
}

func (s *SourceService) handleFromConfig(ctx context.Context, cfg *domain.SourceConfig) (port.SourceHandle, error) {
	if handle, ok := s.connector.Get(cfg.Credentials.ProjectID); ok {
		return handle, nil
	}
	return s.connector.Connect(ctx, cfg.Credentials)
}
