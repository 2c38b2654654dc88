package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/asherv/martpal-go/internal/domain"
	"github.com/asherv/martpal-go/internal/infra/observability"
	"github.com/asherv/martpal-go/internal/infra/resilience"
	"github.com/asherv/martpal-go/internal/port"
	"github.com/asherv/martpal-go/internal/service"
)

type messageFixture struct {
	leads     *memLeadStore
	scheduled *memScheduledStore
	email     *recordingSender
	whatsapp  *recordingSender
	svc       *service.MessageService
}

func newMessageFixture() *messageFixture {
	leads := newMemLeadStore()
	scheduled := newMemScheduledStore()
	email := &recordingSender{}
	whatsapp := &recordingSender{}

	svc := service.NewMessageService(
		leads,
		scheduled,
		map[string]port.ChannelSender{
			domain.PlatformEmail:    email,
			domain.PlatformWhatsApp: whatsapp,
		},
		resilience.NewBulkhead(8),
		observability.NewMetrics(),
		zap.NewNop(),
	)
	return &messageFixture{leads: leads, scheduled: scheduled, email: email, whatsapp: whatsapp, svc: svc}
}

func TestRenderMessage_StripsMarkupAndFillsName(t *testing.T) {
	got := service.RenderMessage("<p>Hi {{name}}</p>", "Ana")
	assert.Equal(t, "Hi Ana", got)
}

func TestRenderMessage_FallbackName(t *testing.T) {
	got := service.RenderMessage("<p>Hi {{name}}</p>", "  ")
	assert.Equal(t, "Hi Customer", got)
}

func TestRenderMessage_LineBreaksAndNestedTags(t *testing.T) {
	got := service.RenderMessage("<p>Hello <strong>{{name}}</strong></p><p>New <em>offers</em><br>inside</p>", "Bo")
	assert.Equal(t, "Hello Bo\n\nNew offers\ninside", got)
}

func TestSendNow_RoutesByPlatform(t *testing.T) {
	f := newMessageFixture()
	emailID := seedLead(t, f.leads, domain.SegmentCold, domain.Lead{Name: "Ana", Contact: "ana@x.com", Platform: "email", Status: "cold"})
	waID := seedLead(t, f.leads, domain.SegmentCold, domain.Lead{Name: "Bo", Contact: "+100", Platform: "whatsapp", Status: "cold"})

	report, err := f.svc.SendNow(context.Background(), "u1", &domain.SendRequest{
		Segment: domain.SegmentCold,
		LeadIDs: []string{emailID, waID},
		Message: "<p>Hi {{name}}</p>",
	})
	require.NoError(t, err)
	assert.Equal(t, 2, report.Sent)
	assert.Equal(t, 0, report.Skipped)
	assert.Empty(t, report.Failures)

	emailSends := f.email.sent()
	require.Len(t, emailSends, 1)
	assert.Equal(t, "ana@x.com", emailSends[0].destination)
	assert.Equal(t, "Hi Ana", emailSends[0].text)

	waSends := f.whatsapp.sent()
	require.Len(t, waSends, 1)
	assert.Equal(t, "+100", waSends[0].destination)
	assert.Equal(t, "Hi Bo", waSends[0].text)
}

func TestSendNow_SkipsUnknownPlatformSilently(t *testing.T) {
	f := newMessageFixture()
	okID := seedLead(t, f.leads, domain.SegmentCold, domain.Lead{Name: "Ana", Contact: "ana@x.com", Platform: "email", Status: "cold"})
	oddID := seedLead(t, f.leads, domain.SegmentCold, domain.Lead{Name: "Cy", Contact: "@cy", Platform: "telegram", Status: "cold"})

	report, err := f.svc.SendNow(context.Background(), "u1", &domain.SendRequest{
		Segment: domain.SegmentCold,
		LeadIDs: []string{okID, oddID},
		Message: "hi {{name}}",
	})
	require.NoError(t, err)
	assert.Equal(t, 1, report.Sent)
	assert.Equal(t, 1, report.Skipped)
	assert.Empty(t, report.Failures)
}

func TestSendNow_CollectsDeliveryFailures(t *testing.T) {
	f := newMessageFixture()
	f.whatsapp.err = errors.New("gateway down")
	emailID := seedLead(t, f.leads, domain.SegmentCold, domain.Lead{Name: "Ana", Contact: "ana@x.com", Platform: "email", Status: "cold"})
	waID := seedLead(t, f.leads, domain.SegmentCold, domain.Lead{Name: "Bo", Contact: "+100", Platform: "whatsapp", Status: "cold"})

	report, err := f.svc.SendNow(context.Background(), "u1", &domain.SendRequest{
		Segment: domain.SegmentCold,
		LeadIDs: []string{emailID, waID},
		Message: "hi",
	})
	require.NoError(t, err)
	assert.Equal(t, 1, report.Sent)
	require.Len(t, report.Failures, 1)
	assert.Contains(t, report.Failures[0], waID)
}

func TestSendNow_Validation(t *testing.T) {
	f := newMessageFixture()
	var validation *domain.ErrValidation

	_, err := f.svc.SendNow(context.Background(), "u1", &domain.SendRequest{Segment: "nope", LeadIDs: []string{"x"}, Message: "hi"})
	require.ErrorAs(t, err, &validation)

	_, err = f.svc.SendNow(context.Background(), "u1", &domain.SendRequest{Segment: domain.SegmentCold, Message: "hi"})
	require.ErrorAs(t, err, &validation)

	_, err = f.svc.SendNow(context.Background(), "u1", &domain.SendRequest{Segment: domain.SegmentCold, LeadIDs: []string{"x"}, Message: "   "})
	require.ErrorAs(t, err, &validation)
}

func TestSchedule_StoresOneEntryPerLead(t *testing.T) {
	f := newMessageFixture()
	id1 := seedLead(t, f.leads, domain.SegmentWarm, domain.Lead{Name: "Ana", Contact: "ana@x.com", Platform: "email", Status: "warm"})
	id2 := seedLead(t, f.leads, domain.SegmentWarm, domain.Lead{Name: "Bo", Contact: "+100", Platform: "whatsapp", Status: "warm"})

	when := time.Now().Add(2 * time.Hour).UTC().Format(time.RFC3339)
	count, err := f.svc.Schedule(context.Background(), "u1", &domain.ScheduleRequest{
		Segment:       domain.SegmentWarm,
		LeadIDs:       []string{id1, id2},
		Message:       "<p>offer for {{name}}</p>",
		ScheduledTime: when,
	})
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	stored, err := f.svc.ListScheduled(context.Background(), "u1")
	require.NoError(t, err)
	require.Len(t, stored, 2)

	byLead := map[string]domain.ScheduledMessage{}
	for _, msg := range stored {
		byLead[msg.LeadID] = msg
	}
	assert.Equal(t, "scheduled", byLead[id1].Status)
	assert.Equal(t, when, byLead[id1].ScheduledTime)
	assert.Equal(t, "whatsapp", byLead[id2].Platform)
	assert.Equal(t, "+100", byLead[id2].Contact)
}

func TestSchedule_ReplacesExistingEntryForLead(t *testing.T) {
	f := newMessageFixture()
	id := seedLead(t, f.leads, domain.SegmentWarm, domain.Lead{Name: "Ana", Contact: "ana@x.com", Platform: "email", Status: "warm"})

	first := time.Now().Add(time.Hour).UTC().Format(time.RFC3339)
	second := time.Now().Add(3 * time.Hour).UTC().Format(time.RFC3339)

	_, err := f.svc.Schedule(context.Background(), "u1", &domain.ScheduleRequest{
		Segment: domain.SegmentWarm, LeadIDs: []string{id}, Message: "v1", ScheduledTime: first,
	})
	require.NoError(t, err)
	_, err = f.svc.Schedule(context.Background(), "u1", &domain.ScheduleRequest{
		Segment: domain.SegmentWarm, LeadIDs: []string{id}, Message: "v2", ScheduledTime: second,
	})
	require.NoError(t, err)

	stored, err := f.svc.ListScheduled(context.Background(), "u1")
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, "v2", stored[0].Message)
	assert.Equal(t, second, stored[0].ScheduledTime)
}

func TestSchedule_RejectsPastTime(t *testing.T) {
	f := newMessageFixture()
	id := seedLead(t, f.leads, domain.SegmentWarm, domain.Lead{Name: "Ana", Contact: "ana@x.com", Platform: "email", Status: "warm"})

	past := time.Now().Add(-time.Minute).UTC().Format(time.RFC3339)
	_, err := f.svc.Schedule(context.Background(), "u1", &domain.ScheduleRequest{
		Segment: domain.SegmentWarm, LeadIDs: []string{id}, Message: "late", ScheduledTime: past,
	})
	var validation *domain.ErrValidation
	require.ErrorAs(t, err, &validation)

	_, err = f.svc.Schedule(context.Background(), "u1", &domain.ScheduleRequest{
		Segment: domain.SegmentWarm, LeadIDs: []string{id}, Message: "bad", ScheduledTime: "tomorrow",
	})
	require.ErrorAs(t, err, &validation)
}
