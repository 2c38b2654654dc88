package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/asherv/martpal-go/internal/bus"
	"github.com/asherv/martpal-go/internal/domain"
	"github.com/asherv/martpal-go/internal/infra/observability"
	"github.com/asherv/martpal-go/internal/service"
)

func newLeadFixture() (*memLeadStore, *bus.Bus, *service.LeadService) {
	leads := newMemLeadStore()
	events := bus.New()
	svc := service.NewLeadService(leads, events, observability.NewMetrics(), zap.NewNop())
	return leads, events, svc
}

func seedLead(t *testing.T, store *memLeadStore, segment string, lead domain.Lead) string {
	t.Helper()
	created, err := store.CreateLead(context.Background(), "u1", segment, &lead)
	require.NoError(t, err)
	return created.ID
}

func TestLeadList_CapitalizesAndDeduplicates(t *testing.T) {
	store, _, svc := newLeadFixture()
	seedLead(t, store, domain.SegmentCold, domain.Lead{Name: "ana silva", Contact: "ana@x.com", Platform: "email", Status: "cold"})
	seedLead(t, store, domain.SegmentCold, domain.Lead{Name: "ANA SILVA", Contact: "ANA@X.COM", Platform: "email", Status: "cold"})
	seedLead(t, store, domain.SegmentCold, domain.Lead{Name: "bo", Contact: "+100", Platform: "whatsapp", Status: "cold"})

	out, err := svc.List(context.Background(), "u1", domain.SegmentCold, "")
	require.NoError(t, err)
	require.Len(t, out, 2)

	names := map[string]bool{}
	for _, l := range out {
		names[l.Name] = true
	}
	assert.True(t, names["Ana Silva"])
	assert.True(t, names["Bo"])
}

func TestLeadList_PlatformFilter(t *testing.T) {
	store, _, svc := newLeadFixture()
	seedLead(t, store, domain.SegmentCold, domain.Lead{Name: "ana", Contact: "ana@x.com", Platform: "email", Status: "cold"})
	seedLead(t, store, domain.SegmentCold, domain.Lead{Name: "bo", Contact: "+100", Platform: "whatsapp", Status: "cold"})

	out, err := svc.List(context.Background(), "u1", domain.SegmentCold, domain.PlatformWhatsApp)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "Bo", out[0].Name)

	_, err = svc.List(context.Background(), "u1", domain.SegmentCold, "pigeon")
	var validation *domain.ErrValidation
	require.ErrorAs(t, err, &validation)
}

func TestLeadList_UnknownSegment(t *testing.T) {
	_, _, svc := newLeadFixture()

	_, err := svc.List(context.Background(), "u1", "tepid", "")
	var validation *domain.ErrValidation
	require.ErrorAs(t, err, &validation)
}

func TestLeadMove_KeepsIDAndUpdatesStatus(t *testing.T) {
	store, _, svc := newLeadFixture()
	id := seedLead(t, store, domain.SegmentCold, domain.Lead{Name: "Ana", Contact: "ana@x.com", Platform: "email", Status: "cold"})

	moved, err := svc.Move(context.Background(), "u1", domain.SegmentCold, id, domain.SegmentWarm)
	require.NoError(t, err)
	assert.Equal(t, domain.SegmentWarm, moved.Status)

	// Gone from cold, present in warm under the same ID.
	_, err = store.GetLead(context.Background(), "u1", domain.SegmentCold, id)
	var notFound *domain.ErrNotFound
	require.ErrorAs(t, err, &notFound)

	warm, err := store.GetLead(context.Background(), "u1", domain.SegmentWarm, id)
	require.NoError(t, err)
	assert.Equal(t, "Ana", warm.Name)
	assert.Equal(t, domain.SegmentWarm, warm.Status)
}

func TestLeadMove_RoundTripRestoresSegment(t *testing.T) {
	store, _, svc := newLeadFixture()
	id := seedLead(t, store, domain.SegmentCold, domain.Lead{Name: "Ana", Contact: "ana@x.com", Platform: "email", Status: "cold"})

	_, err := svc.Move(context.Background(), "u1", domain.SegmentCold, id, domain.SegmentHot)
	require.NoError(t, err)
	_, err = svc.Move(context.Background(), "u1", domain.SegmentHot, id, domain.SegmentCold)
	require.NoError(t, err)

	back, err := store.GetLead(context.Background(), "u1", domain.SegmentCold, id)
	require.NoError(t, err)
	assert.Equal(t, domain.SegmentCold, back.Status)

	hotCount, err := store.CountLeads(context.Background(), "u1", domain.SegmentHot)
	require.NoError(t, err)
	assert.Equal(t, 0, hotCount)
}

func TestLeadMove_SameSegmentRejected(t *testing.T) {
	store, _, svc := newLeadFixture()
	id := seedLead(t, store, domain.SegmentCold, domain.Lead{Name: "Ana", Contact: "ana@x.com", Platform: "email", Status: "cold"})

	_, err := svc.Move(context.Background(), "u1", domain.SegmentCold, id, domain.SegmentCold)
	var validation *domain.ErrValidation
	require.ErrorAs(t, err, &validation)
}

func TestLeadMove_MissingLead(t *testing.T) {
	_, _, svc := newLeadFixture()

	_, err := svc.Move(context.Background(), "u1", domain.SegmentCold, "ghost", domain.SegmentWarm)
	var notFound *domain.ErrNotFound
	require.ErrorAs(t, err, &notFound)
}

func TestLeadSummary_CountsAllSegments(t *testing.T) {
	store, _, svc := newLeadFixture()
	seedLead(t, store, domain.SegmentCold, domain.Lead{Name: "a", Contact: "a@x.com", Platform: "email", Status: "cold"})
	seedLead(t, store, domain.SegmentCold, domain.Lead{Name: "b", Contact: "b@x.com", Platform: "email", Status: "cold"})
	seedLead(t, store, domain.SegmentWarm, domain.Lead{Name: "c", Contact: "c@x.com", Platform: "email", Status: "warm"})

	summary, err := svc.Summary(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Cold)
	assert.Equal(t, 1, summary.Warm)
	assert.Equal(t, 0, summary.Hot)
}

func TestLeadDelete_MissingLead(t *testing.T) {
	_, _, svc := newLeadFixture()

	err := svc.Delete(context.Background(), "u1", domain.SegmentCold, "ghost")
	var notFound *domain.ErrNotFound
	require.ErrorAs(t, err, &notFound)
}

func TestLeadWatch_DeliversOwnEventsOnly(t *testing.T) {
	store, _, svc := newLeadFixture()
	id := seedLead(t, store, domain.SegmentCold, domain.Lead{Name: "Ana", Contact: "ana@x.com", Platform: "email", Status: "cold"})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	stream := svc.Watch(ctx, "u1")

	// Another operator's mutation must not leak into u1's stream.
	other, err := store.CreateLead(context.Background(), "other", domain.SegmentCold, &domain.Lead{Name: "x", Contact: "x@x.com", Platform: "email", Status: "cold"})
	require.NoError(t, err)
	_, err = svc.Move(context.Background(), "other", domain.SegmentCold, other.ID, domain.SegmentWarm)
	require.NoError(t, err)

	_, err = svc.Move(context.Background(), "u1", domain.SegmentCold, id, domain.SegmentWarm)
	require.NoError(t, err)

	select {
	case evt := <-stream:
		assert.Equal(t, bus.KindLeadMoved, evt.Kind)
		assert.Equal(t, "u1", evt.UserID)
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for watch event")
	}
}
