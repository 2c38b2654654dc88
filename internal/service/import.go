package service

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/asherv/martpal-go/internal/bus"
	"github.com/asherv/martpal-go/internal/domain"
	"github.com/asherv/martpal-go/internal/infra/observability"
	"github.com/asherv/martpal-go/internal/port"
)

var importTracer = otel.Tracer("service/import")

// ImportService pulls records from the operator's connected source and files
// them into the cold segment, deduplicating against what is already there.
type ImportService struct {
	source  *SourceService
	leads   port.LeadStore
	events  *bus.Bus
	metrics *observability.Metrics
	// dedupFold selects case-insensitive matching for the import-time
	// duplicate check.
	dedupFold bool
	logger    *zap.Logger
}

// NewImportService creates an import service.
func NewImportService(source *SourceService, leads port.LeadStore, events *bus.Bus, metrics *observability.Metrics, dedupFold bool, logger *zap.Logger) *ImportService {
	return &ImportService{
		source:    source,
		leads:     leads,
		events:    events,
		metrics:   metrics,
		dedupFold: dedupFold,
		logger:    logger,
	}
}

// ============================================================
// ImportCollection -- POST /v1/source/import
// ============================================================

// ImportCollection fetches every record of one source collection and inserts
// the new ones as cold leads. Records are processed sequentially so a
// re-import never races against its own duplicate check. Per-record problems
// are counted, never raised; only infrastructure failures abort the run.
func (s *ImportService) ImportCollection(ctx context.Context, userID, collection string) (*domain.ImportResult, error) {
	ctx, span := importTracer.Start(ctx, "ImportService.ImportCollection")
	defer span.End()
	span.SetAttributes(
		attribute.String("user.id", userID),
		attribute.String("source.collection", collection),
	)

	if collection == "" {
		return nil, &domain.ErrValidation{Field: "collection", Message: "collection is required"}
	}

	handle, err := s.source.HandleFor(ctx, userID)
	if err != nil {
		return nil, err
	}

	started := time.Now()
	records, err := handle.FetchAll(ctx, collection)
	if err != nil {
		return nil, err
	}

	result := &domain.ImportResult{Collection: collection}

	// Validate up front: when nothing survives validation the operator's
	// container is left untouched.
	candidates := make([]*domain.Lead, 0, len(records))
	for _, record := range records {
		lead := leadFromRecord(record)
		if !lead.Valid() {
			result.Invalid++
			continue
		}
		candidates = append(candidates, lead)
	}

	if len(candidates) > 0 {
		if err := s.leads.EnsureContainer(ctx, userID); err != nil {
			return nil, err
		}
	}

	for _, lead := range candidates {
		existing, err := s.leads.FindLeadByKey(ctx, userID, domain.SegmentCold, lead.Name, lead.Platform, lead.Contact, s.dedupFold)
		if err != nil {
			result.Failed++
			s.logger.Warn("import: duplicate check failed",
				zap.String("user_id", userID),
				zap.String("lead_name", lead.Name),
				zap.Error(err),
			)
			continue
		}
		if existing != nil {
			result.Duplicates++
			continue
		}

		if _, err := s.leads.CreateLead(ctx, userID, domain.SegmentCold, lead); err != nil {
			result.Failed++
			s.logger.Warn("import: insert failed",
				zap.String("user_id", userID),
				zap.String("lead_name", lead.Name),
				zap.Error(err),
			)
			continue
		}
		result.Imported++
	}

	s.source.SetLastCollection(userID, collection)
	s.metrics.RecordImport(*result)
	s.metrics.RecordRequestDuration("import", time.Since(started))

	s.events.Publish(bus.Event{
		Kind:      bus.KindLeadImported,
		UserID:    userID,
		Timestamp: time.Now().UTC(),
		Payload:   result,
	})

	s.logger.Info("import completed",
		zap.String("user_id", userID),
		zap.String("collection", collection),
		zap.Int("imported", result.Imported),
		zap.Int("duplicates", result.Duplicates),
		zap.Int("invalid", result.Invalid),
		zap.Int("failed", result.Failed),
	)
	return result, nil
}

// leadFromRecord maps one raw source record onto a cold lead. Whatever
// status the record carried upstream is discarded.
func leadFromRecord(record map[string]any) *domain.Lead {
	lead := &domain.Lead{
		Name:     stringField(record, "name"),
		Contact:  stringField(record, "contact"),
		Platform: stringField(record, "platform"),
		Status:   domain.SegmentCold,
	}
	switch v := record["orderRate"].(type) {
	case float64:
		lead.OrderRate = v
	case int64:
		lead.OrderRate = float64(v)
	}
	return lead
}

func stringField(record map[string]any, key string) string {
	s, _ := record[key].(string)
	return s
}
