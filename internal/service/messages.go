package service

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/asherv/martpal-go/internal/domain"
	"github.com/asherv/martpal-go/internal/infra/observability"
	"github.com/asherv/martpal-go/internal/infra/resilience"
	"github.com/asherv/martpal-go/internal/port"
)

var messageTracer = otel.Tracer("service/messages")

const fallbackRecipientName = "Customer"

// namePlaceholder is what message bodies carry where the lead's name goes.
var namePlaceholder = "{{name}}"

var htmlTagPattern = regexp.MustCompile(`<[^>]*>`)

// MessageService renders message bodies and fans them out over the per-lead
// channel, immediately or into the scheduled store.
type MessageService struct {
	leads     port.LeadStore
	scheduled port.ScheduledMessageStore
	senders   map[string]port.ChannelSender
	bulkhead  *resilience.Bulkhead
	metrics   *observability.Metrics
	logger    *zap.Logger
}

// NewMessageService creates a message service. senders maps platform names
// to their channel implementations.
func NewMessageService(leads port.LeadStore, scheduled port.ScheduledMessageStore, senders map[string]port.ChannelSender, bulkhead *resilience.Bulkhead, metrics *observability.Metrics, logger *zap.Logger) *MessageService {
	return &MessageService{
		leads:     leads,
		scheduled: scheduled,
		senders:   senders,
		bulkhead:  bulkhead,
		metrics:   metrics,
		logger:    logger,
	}
}

// ============================================================
// SendNow -- POST /v1/messages/send
// ============================================================

// SendNow dispatches the message to every selected lead concurrently. Leads
// on an unknown platform are skipped without failing the batch; delivery
// failures are collected per lead. The batch itself always comes back.
func (s *MessageService) SendNow(ctx context.Context, userID string, req *domain.SendRequest) (*domain.SendReport, error) {
	ctx, span := messageTracer.Start(ctx, "MessageService.SendNow")
	defer span.End()
	span.SetAttributes(
		attribute.String("lead.segment", req.Segment),
		attribute.Int("lead.count", len(req.LeadIDs)),
	)

	if err := validateDispatch(req.Segment, req.LeadIDs, req.Message); err != nil {
		return nil, err
	}

	report := &domain.SendReport{Failures: []string{}}
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	for _, leadID := range req.LeadIDs {
		leadID := leadID
		g.Go(func() error {
			if err := s.bulkhead.Acquire(gctx); err != nil {
				return err
			}
			defer s.bulkhead.Release()

			lead, err := s.leads.GetLead(gctx, userID, req.Segment, leadID)
			if err != nil {
				mu.Lock()
				report.Failures = append(report.Failures, fmt.Sprintf("%s: %v", leadID, err))
				mu.Unlock()
				return nil
			}

			sender, ok := s.senders[lead.Platform]
			if !ok {
				// Unknown platform: skip silently, matching the
				// best-effort batch contract.
				mu.Lock()
				report.Skipped++
				mu.Unlock()
				return nil
			}

			// Greet with the display-cased name, same as the funnel views.
			text := RenderMessage(req.Message, titleCase(lead.Name))
			if err := sender.Send(gctx, lead.Contact, text); err != nil {
				s.metrics.IncrMessage(lead.Platform, "failed")
				s.logger.Warn("message delivery failed",
					zap.String("user_id", userID),
					zap.String("lead_id", leadID),
					zap.String("platform", lead.Platform),
					zap.Error(err),
				)
				mu.Lock()
				report.Failures = append(report.Failures, fmt.Sprintf("%s: %v", leadID, err))
				mu.Unlock()
				return nil
			}

			s.metrics.IncrMessage(lead.Platform, "sent")
			mu.Lock()
			report.Sent++
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	s.logger.Info("send batch completed",
		zap.String("user_id", userID),
		zap.Int("sent", report.Sent),
		zap.Int("skipped", report.Skipped),
		zap.Int("failed", len(report.Failures)),
	)
	return report, nil
}

// ============================================================
// Schedule -- POST /v1/messages/schedule
// ============================================================

// Schedule stores one deferred dispatch per lead, keyed by lead ID so a
// re-schedule replaces the previous entry. Actually delivering at the
// stored time is owned by an external worker.
func (s *MessageService) Schedule(ctx context.Context, userID string, req *domain.ScheduleRequest) (int, error) {
	ctx, span := messageTracer.Start(ctx, "MessageService.Schedule")
	defer span.End()
	span.SetAttributes(attribute.Int("lead.count", len(req.LeadIDs)))

	if err := validateDispatch(req.Segment, req.LeadIDs, req.Message); err != nil {
		return 0, err
	}
	when, err := time.Parse(time.RFC3339, req.ScheduledTime)
	if err != nil {
		return 0, &domain.ErrValidation{Field: "scheduledTime", Message: "must be an RFC 3339 timestamp"}
	}
	if !when.After(time.Now()) {
		return 0, &domain.ErrValidation{Field: "scheduledTime", Message: "must be in the future"}
	}

	stored := 0
	for _, leadID := range req.LeadIDs {
		lead, err := s.leads.GetLead(ctx, userID, req.Segment, leadID)
		if err != nil {
			return stored, err
		}

		msg := &domain.ScheduledMessage{
			LeadID:        leadID,
			Message:       req.Message,
			ScheduledTime: req.ScheduledTime,
			Status:        "scheduled",
			Platform:      lead.Platform,
			Contact:       lead.Contact,
		}
		if err := s.scheduled.PutScheduledMessage(ctx, userID, msg); err != nil {
			return stored, err
		}
		stored++
	}

	s.logger.Info("messages scheduled",
		zap.String("user_id", userID),
		zap.Int("count", stored),
		zap.String("scheduled_time", req.ScheduledTime),
	)
	return stored, nil
}

// ============================================================
// ListScheduled -- GET /v1/messages/scheduled
// ============================================================

func (s *MessageService) ListScheduled(ctx context.Context, userID string) ([]domain.ScheduledMessage, error) {
	ctx, span := messageTracer.Start(ctx, "MessageService.ListScheduled")
	defer span.End()

	return s.scheduled.ListScheduledMessages(ctx, userID)
}

// ============================================================
// Rendering
// ============================================================

func validateDispatch(segment string, leadIDs []string, message string) error {
	if !domain.ValidSegment(segment) {
		return &domain.ErrValidation{Field: "segment", Message: "unknown segment"}
	}
	if len(leadIDs) == 0 {
		return &domain.ErrValidation{Field: "leadIds", Message: "at least one lead is required"}
	}
	if strings.TrimSpace(message) == "" {
		return &domain.ErrValidation{Field: "message", Message: "message is required"}
	}
	return nil
}

// RenderMessage turns a rich-text message body into plain text addressed to
// one recipient: paragraph and line-break tags become newlines, every other
// tag is stripped, and the name placeholder is filled in. A lead without a
// name is greeted generically.
func RenderMessage(body, name string) string {
	text := body
	for _, tag := range []string{"<p>", "</p>", "<br>", "<br/>", "<br />"} {
		text = strings.ReplaceAll(text, tag, "\n")
	}
	text = htmlTagPattern.ReplaceAllString(text, "")
	text = strings.TrimSpace(text)

	recipient := strings.TrimSpace(name)
	if recipient == "" {
		recipient = fallbackRecipientName
	}
	return strings.ReplaceAll(text, namePlaceholder, recipient)
}
