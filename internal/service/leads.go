package service

import (
	"context"
	"strings"
	"time"
	"unicode"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/asherv/martpal-go/internal/bus"
	"github.com/asherv/martpal-go/internal/domain"
	"github.com/asherv/martpal-go/internal/infra/observability"
	"github.com/asherv/martpal-go/internal/port"
)

var leadTracer = otel.Tracer("service/leads")

// LeadService serves the funnel views and moves leads between segments.
type LeadService struct {
	leads   port.LeadStore
	events  *bus.Bus
	metrics *observability.Metrics
	logger  *zap.Logger
}

// NewLeadService creates a lead service.
func NewLeadService(leads port.LeadStore, events *bus.Bus, metrics *observability.Metrics, logger *zap.Logger) *LeadService {
	return &LeadService{
		leads:   leads,
		events:  events,
		metrics: metrics,
		logger:  logger,
	}
}

// ============================================================
// List -- GET /v1/leads/{segment}
// ============================================================

// List returns one segment's leads shaped for display: names title-cased
// and near-duplicates collapsed. The stored documents stay untouched; the
// cleanup is a read-time presentation, always case-insensitive.
func (s *LeadService) List(ctx context.Context, userID, segment, platform string) ([]domain.Lead, error) {
	ctx, span := leadTracer.Start(ctx, "LeadService.List")
	defer span.End()
	span.SetAttributes(attribute.String("lead.segment", segment))

	if !domain.ValidSegment(segment) {
		return nil, &domain.ErrValidation{Field: "segment", Message: "unknown segment"}
	}
	if platform != "" && platform != domain.PlatformEmail && platform != domain.PlatformWhatsApp {
		return nil, &domain.ErrValidation{Field: "platform", Message: "unknown platform"}
	}

	leads, err := s.leads.ListLeads(ctx, userID, segment)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool, len(leads))
	out := make([]domain.Lead, 0, len(leads))
	for _, lead := range leads {
		if platform != "" && lead.Platform != platform {
			continue
		}
		key := strings.ToLower(lead.Name) + "|" + strings.ToLower(lead.Platform) + "|" + strings.ToLower(lead.Contact)
		if seen[key] {
			continue
		}
		seen[key] = true

		lead.Name = titleCase(lead.Name)
		out = append(out, lead)
	}
	return out, nil
}

// ============================================================
// Summary -- GET /v1/leads/summary
// ============================================================

// Summary counts every segment concurrently for the dashboard.
func (s *LeadService) Summary(ctx context.Context, userID string) (*domain.LeadSummary, error) {
	ctx, span := leadTracer.Start(ctx, "LeadService.Summary")
	defer span.End()

	var summary domain.LeadSummary

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		n, err := s.leads.CountLeads(gctx, userID, domain.SegmentCold)
		summary.Cold = n
		return err
	})
	g.Go(func() error {
		n, err := s.leads.CountLeads(gctx, userID, domain.SegmentWarm)
		summary.Warm = n
		return err
	})
	g.Go(func() error {
		n, err := s.leads.CountLeads(gctx, userID, domain.SegmentHot)
		summary.Hot = n
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return &summary, nil
}

// ============================================================
// Move -- POST /v1/leads/{segment}/{id}/move
// ============================================================

// Move relocates a lead into another segment under the same identifier:
// write the copy first, then delete the original, so a crash in between
// duplicates rather than loses the lead.
func (s *LeadService) Move(ctx context.Context, userID, segment, leadID, target string) (*domain.Lead, error) {
	ctx, span := leadTracer.Start(ctx, "LeadService.Move")
	defer span.End()
	span.SetAttributes(
		attribute.String("lead.id", leadID),
		attribute.String("lead.target", target),
	)

	if !domain.ValidSegment(segment) {
		return nil, &domain.ErrValidation{Field: "segment", Message: "unknown segment"}
	}
	if !domain.ValidSegment(target) {
		return nil, &domain.ErrValidation{Field: "target", Message: "unknown segment"}
	}
	if segment == target {
		return nil, &domain.ErrValidation{Field: "target", Message: "lead is already in that segment"}
	}

	lead, err := s.leads.GetLead(ctx, userID, segment, leadID)
	if err != nil {
		return nil, err
	}

	lead.Status = target
	if err := s.leads.PutLead(ctx, userID, target, leadID, lead); err != nil {
		return nil, err
	}
	if err := s.leads.DeleteLead(ctx, userID, segment, leadID); err != nil {
		return nil, err
	}

	s.metrics.IncrLeadMoved(target)
	s.events.Publish(bus.Event{
		Kind:      bus.KindLeadMoved,
		UserID:    userID,
		Timestamp: time.Now().UTC(),
		Payload:   map[string]any{"leadId": leadID, "from": segment, "to": target},
	})

	s.logger.Info("lead moved",
		zap.String("user_id", userID),
		zap.String("lead_id", leadID),
		zap.String("from", segment),
		zap.String("to", target),
	)
	return lead, nil
}

// ============================================================
// Delete -- DELETE /v1/leads/{segment}/{id}
// ============================================================

func (s *LeadService) Delete(ctx context.Context, userID, segment, leadID string) error {
	ctx, span := leadTracer.Start(ctx, "LeadService.Delete")
	defer span.End()
	span.SetAttributes(attribute.String("lead.id", leadID))

	if !domain.ValidSegment(segment) {
		return &domain.ErrValidation{Field: "segment", Message: "unknown segment"}
	}

	// Resolve first so deleting a missing lead is a 404, not a no-op.
	if _, err := s.leads.GetLead(ctx, userID, segment, leadID); err != nil {
		return err
	}
	if err := s.leads.DeleteLead(ctx, userID, segment, leadID); err != nil {
		return err
	}

	s.events.Publish(bus.Event{
		Kind:      bus.KindLeadDeleted,
		UserID:    userID,
		Timestamp: time.Now().UTC(),
		Payload:   map[string]any{"leadId": leadID, "segment": segment},
	})
	return nil
}

// ============================================================
// Watch -- GET /v1/leads/watch (SSE)
// ============================================================

// Watch streams this operator's lead mutations until ctx is done. The
// returned channel closes when the caller goes away.
func (s *LeadService) Watch(ctx context.Context, userID string) <-chan bus.Event {
	events, unsubscribe := s.events.Subscribe("leads.", 16)
	out := make(chan bus.Event)

	go func() {
		defer close(out)
		defer unsubscribe()
		for {
			select {
			case <-ctx.Done():
				return
			case evt, ok := <-events:
				if !ok {
					return
				}
				if evt.UserID != userID {
					continue
				}
				select {
				case out <- evt:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out
}

// titleCase uppercases the first letter of each word.
func titleCase(s string) string {
	prev := ' '
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(prev) {
			prev = r
			return unicode.ToUpper(r)
		}
		prev = r
		return r
	}, s)
}
