package service_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/asherv/martpal-go/internal/bus"
	"github.com/asherv/martpal-go/internal/domain"
	"github.com/asherv/martpal-go/internal/service"
)

type sourceFixture struct {
	leads     *memLeadStore
	creds     *memCredStore
	handle    *fakeSourceHandle
	connector *fakeConnector
	events    *bus.Bus
	svc       *service.SourceService
}

func newSourceFixture() *sourceFixture {
	leads := newMemLeadStore()
	creds := newMemCredStore()
	handle := &fakeSourceHandle{
		projectID:   "proj-1",
		collections: []string{"customers", "orders"},
		records:     map[string][]map[string]any{},
	}
	connector := newFakeConnector(handle)
	events := bus.New()
	return &sourceFixture{
		leads:     leads,
		creds:     creds,
		handle:    handle,
		connector: connector,
		events:    events,
		svc:       service.NewSourceService(connector, creds, leads, events, zap.NewNop()),
	}
}

func TestSourceConnect_PersistsCredentials(t *testing.T) {
	f := newSourceFixture()

	status, err := f.svc.Connect(context.Background(), "u1", domain.SourceCredentials{
		APIKey: "k", ProjectID: "proj-1",
	})
	require.NoError(t, err)
	assert.True(t, status.Connected)
	assert.Equal(t, []string{"customers", "orders"}, status.Collections)

	cfg, ok, err := f.creds.Get("u1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "proj-1", cfg.Credentials.ProjectID)
}

func TestSourceConnect_Failure(t *testing.T) {
	f := newSourceFixture()
	f.connector.failConnect = true

	_, err := f.svc.Connect(context.Background(), "u1", domain.SourceCredentials{
		APIKey: "k", ProjectID: "proj-1",
	})
	var failed *domain.ErrConnectionFailed
	require.ErrorAs(t, err, &failed)

	// Nothing persisted for a failed probe.
	_, ok, err := f.creds.Get("u1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSourceStatus_NotConnected(t *testing.T) {
	f := newSourceFixture()

	status, err := f.svc.Status(context.Background(), "u1")
	require.NoError(t, err)
	assert.False(t, status.Connected)
}

func TestSourceStatus_ReconnectsFromStoredCredentials(t *testing.T) {
	f := newSourceFixture()
	_, err := f.svc.Connect(context.Background(), "u1", domain.SourceCredentials{APIKey: "k", ProjectID: "proj-1"})
	require.NoError(t, err)

	// Simulate a restart: the live handle is gone, credentials remain.
	f.connector.Drop("proj-1")

	status, err := f.svc.Status(context.Background(), "u1")
	require.NoError(t, err)
	assert.True(t, status.Connected)
	assert.Equal(t, []string{"customers", "orders"}, status.Collections)
}

func TestSourceStatus_WarnsWhenProbeFails(t *testing.T) {
	f := newSourceFixture()
	_, err := f.svc.Connect(context.Background(), "u1", domain.SourceCredentials{APIKey: "k", ProjectID: "proj-1"})
	require.NoError(t, err)

	f.handle.failList = true

	status, err := f.svc.Status(context.Background(), "u1")
	require.NoError(t, err)
	assert.True(t, status.Connected)
	assert.NotEmpty(t, status.Warning)
	assert.Empty(t, status.Collections)
}

func TestSourceDisconnect_PurgesLeads(t *testing.T) {
	f := newSourceFixture()
	_, err := f.svc.Connect(context.Background(), "u1", domain.SourceCredentials{APIKey: "k", ProjectID: "proj-1"})
	require.NoError(t, err)

	_, err = f.leads.CreateLead(context.Background(), "u1", domain.SegmentCold, &domain.Lead{
		Name: "Ana", Contact: "ana@x.com", Platform: "email", Status: "cold",
	})
	require.NoError(t, err)

	require.NoError(t, f.svc.Disconnect(context.Background(), "u1", true))

	count, err := f.leads.CountLeads(context.Background(), "u1", domain.SegmentCold)
	require.NoError(t, err)
	assert.Equal(t, 0, count)

	_, ok, err := f.creds.Get("u1")
	require.NoError(t, err)
	assert.False(t, ok)

	_, connected := f.connector.Get("proj-1")
	assert.False(t, connected)
}

func TestSourceDisconnect_KeepsLeadsWithoutPurge(t *testing.T) {
	f := newSourceFixture()
	_, err := f.svc.Connect(context.Background(), "u1", domain.SourceCredentials{APIKey: "k", ProjectID: "proj-1"})
	require.NoError(t, err)

	_, err = f.leads.CreateLead(context.Background(), "u1", domain.SegmentCold, &domain.Lead{
		Name: "Ana", Contact: "ana@x.com", Platform: "email", Status: "cold",
	})
	require.NoError(t, err)

	require.NoError(t, f.svc.Disconnect(context.Background(), "u1", false))

	count, err := f.leads.CountLeads(context.Background(), "u1", domain.SegmentCold)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestSourceDisconnect_WithoutConnection(t *testing.T) {
	f := newSourceFixture()

	err := f.svc.Disconnect(context.Background(), "u1", false)
	var missing *domain.ErrConnectionMissing
	require.ErrorAs(t, err, &missing)
}
