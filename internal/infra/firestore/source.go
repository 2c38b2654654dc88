package firestore

import (
	"context"
	"net/http"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/asherv/martpal-go/internal/domain"
	"github.com/asherv/martpal-go/internal/infra/resilience"
	"github.com/asherv/martpal-go/internal/port"
)

// Manager establishes and caches connections to operator-supplied source
// projects. Handles are shared by project ID, so two operators pointing at
// the same project reuse one client and one circuit breaker.
type Manager struct {
	httpClient *http.Client
	baseURL    string
	cfg        resilience.Config
	logger     *zap.Logger

	mu      sync.RWMutex
	handles map[string]*Client
}

// NewManager creates a source connection manager.
func NewManager(httpClient *http.Client, baseURL string, cfg resilience.Config, logger *zap.Logger) *Manager {
	return &Manager{
		httpClient: httpClient,
		baseURL:    baseURL,
		cfg:        cfg,
		logger:     logger,
		handles:    make(map[string]*Client),
	}
}

// Connect validates the credentials by listing root collections and returns
// a live handle. An existing handle for the same project is reused.
func (m *Manager) Connect(ctx context.Context, creds domain.SourceCredentials) (port.SourceHandle, error) {
	ctx, span := tracer.Start(ctx, "SourceManager.Connect")
	defer span.End()
	span.SetAttributes(attribute.String("firestore.project", creds.ProjectID))

	if creds.ProjectID == "" {
		return nil, &domain.ErrValidation{Field: "projectId", Message: "project id is required"}
	}
	if creds.APIKey == "" {
		return nil, &domain.ErrValidation{Field: "apiKey", Message: "api key is required"}
	}

	m.mu.RLock()
	handle, ok := m.handles[creds.ProjectID]
	m.mu.RUnlock()

	if !ok {
		handle = NewClient(
			m.httpClient,
			m.baseURL,
			creds.ProjectID,
			creds.APIKey,
			resilience.NewCircuitBreaker("source-"+creds.ProjectID),
			m.cfg,
			m.logger,
		)
	}

	// Probe the project before handing the connection out.
	if _, err := handle.ListCollections(ctx); err != nil {
		return nil, &domain.ErrConnectionFailed{ProjectID: creds.ProjectID, Err: err}
	}

	m.mu.Lock()
	m.handles[creds.ProjectID] = handle
	m.mu.Unlock()

	m.logger.Info("source connected", zap.String("project_id", creds.ProjectID))
	return handle, nil
}

// Get returns an existing handle without probing the remote project.
func (m *Manager) Get(projectID string) (port.SourceHandle, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	handle, ok := m.handles[projectID]
	if !ok {
		return nil, false
	}
	return handle, true
}

// Drop forgets the handle for a project.
func (m *Manager) Drop(projectID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.handles, projectID)
}
