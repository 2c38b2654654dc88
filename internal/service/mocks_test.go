package service_test

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/asherv/martpal-go/internal/domain"
	"github.com/asherv/martpal-go/internal/port"
)

// ============================================================
// In-memory test doubles for the storage and transport ports
// ============================================================

type memLeadStore struct {
	mu          sync.Mutex
	nextID      int
	containers  map[string]bool
	data        map[string]map[string]map[string]*domain.Lead // user -> segment -> id
	ensureCalls int
	failCreate  bool
}

func newMemLeadStore() *memLeadStore {
	return &memLeadStore{
		containers: map[string]bool{},
		data:       map[string]map[string]map[string]*domain.Lead{},
	}
}

func (m *memLeadStore) segmentMap(userID, segment string) map[string]*domain.Lead {
	if m.data[userID] == nil {
		m.data[userID] = map[string]map[string]*domain.Lead{}
	}
	if m.data[userID][segment] == nil {
		m.data[userID][segment] = map[string]*domain.Lead{}
	}
	return m.data[userID][segment]
}

func (m *memLeadStore) EnsureContainer(_ context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ensureCalls++
	m.containers[userID] = true
	return nil
}

func (m *memLeadStore) ListLeads(_ context.Context, userID, segment string) ([]domain.Lead, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Lead
	for _, l := range m.segmentMap(userID, segment) {
		out = append(out, *l)
	}
	return out, nil
}

func (m *memLeadStore) GetLead(_ context.Context, userID, segment, leadID string) (*domain.Lead, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.segmentMap(userID, segment)[leadID]
	if !ok {
		return nil, &domain.ErrNotFound{Resource: "lead", ID: leadID}
	}
	cp := *l
	return &cp, nil
}

func (m *memLeadStore) CreateLead(_ context.Context, userID, segment string, lead *domain.Lead) (*domain.Lead, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failCreate {
		return nil, &domain.ErrExternalService{Service: "test", Err: fmt.Errorf("create failed")}
	}
	m.nextID++
	cp := *lead
	cp.ID = fmt.Sprintf("lead-%d", m.nextID)
	m.segmentMap(userID, segment)[cp.ID] = &cp
	return &cp, nil
}

func (m *memLeadStore) PutLead(_ context.Context, userID, segment, leadID string, lead *domain.Lead) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *lead
	cp.ID = leadID
	m.segmentMap(userID, segment)[leadID] = &cp
	return nil
}

func (m *memLeadStore) DeleteLead(_ context.Context, userID, segment, leadID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.segmentMap(userID, segment), leadID)
	return nil
}

func (m *memLeadStore) CountLeads(_ context.Context, userID, segment string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.segmentMap(userID, segment)), nil
}

func (m *memLeadStore) FindLeadByKey(_ context.Context, userID, segment, name, platform, contact string, fold bool) (*domain.Lead, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, l := range m.segmentMap(userID, segment) {
		if fold {
			if strings.EqualFold(l.Name, name) && strings.EqualFold(l.Platform, platform) && strings.EqualFold(l.Contact, contact) {
				cp := *l
				return &cp, nil
			}
			continue
		}
		if l.Name == name && l.Platform == platform && l.Contact == contact {
			cp := *l
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *memLeadStore) PurgeLeads(_ context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, userID)
	delete(m.containers, userID)
	return nil
}

type memScheduledStore struct {
	mu   sync.Mutex
	data map[string]map[string]*domain.ScheduledMessage // user -> leadID
}

func newMemScheduledStore() *memScheduledStore {
	return &memScheduledStore{data: map[string]map[string]*domain.ScheduledMessage{}}
}

func (m *memScheduledStore) PutScheduledMessage(_ context.Context, userID string, msg *domain.ScheduledMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.data[userID] == nil {
		m.data[userID] = map[string]*domain.ScheduledMessage{}
	}
	cp := *msg
	m.data[userID][msg.LeadID] = &cp
	return nil
}

func (m *memScheduledStore) ListScheduledMessages(_ context.Context, userID string) ([]domain.ScheduledMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.ScheduledMessage
	for _, msg := range m.data[userID] {
		out = append(out, *msg)
	}
	return out, nil
}

type memUserStore struct {
	mu     sync.Mutex
	users  map[string]*domain.User
	hashes map[string]string
}

func newMemUserStore() *memUserStore {
	return &memUserStore{users: map[string]*domain.User{}, hashes: map[string]string{}}
}

func (m *memUserStore) CreateUser(_ context.Context, user *domain.User, passwordHash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *user
	m.users[user.ID] = &cp
	m.hashes[user.ID] = passwordHash
	return nil
}

func (m *memUserStore) GetUser(_ context.Context, userID string) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[userID]
	if !ok {
		return nil, &domain.ErrNotFound{Resource: "user", ID: userID}
	}
	cp := *u
	return &cp, nil
}

func (m *memUserStore) GetUserByEmail(_ context.Context, email string) (*domain.User, string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, u := range m.users {
		if u.Email == email {
			cp := *u
			return &cp, m.hashes[id], nil
		}
	}
	return nil, "", nil
}

type memCredStore struct {
	mu   sync.Mutex
	data map[string]*domain.SourceConfig
}

func newMemCredStore() *memCredStore {
	return &memCredStore{data: map[string]*domain.SourceConfig{}}
}

func (m *memCredStore) Get(userID string) (*domain.SourceConfig, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cfg, ok := m.data[userID]
	if !ok {
		return nil, false, nil
	}
	cp := *cfg
	return &cp, true, nil
}

func (m *memCredStore) Set(userID string, cfg *domain.SourceConfig) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *cfg
	m.data[userID] = &cp
	return nil
}

func (m *memCredStore) Remove(userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, userID)
	return nil
}

type fakeSourceHandle struct {
	projectID   string
	collections []string
	records     map[string][]map[string]any
	failList    bool
}

func (f *fakeSourceHandle) ProjectID() string { return f.projectID }

func (f *fakeSourceHandle) ListCollections(context.Context) ([]string, error) {
	if f.failList {
		return nil, &domain.ErrExternalService{Service: "test", Err: fmt.Errorf("unreachable")}
	}
	return f.collections, nil
}

func (f *fakeSourceHandle) FetchAll(_ context.Context, collection string) ([]map[string]any, error) {
	recs, ok := f.records[collection]
	if !ok {
		return nil, &domain.ErrFetchFailed{Collection: collection, Err: fmt.Errorf("no such collection")}
	}
	return recs, nil
}

type fakeConnector struct {
	mu          sync.Mutex
	handle      *fakeSourceHandle
	failConnect bool
	connected   map[string]port.SourceHandle
}

func newFakeConnector(handle *fakeSourceHandle) *fakeConnector {
	return &fakeConnector{handle: handle, connected: map[string]port.SourceHandle{}}
}

func (f *fakeConnector) Connect(_ context.Context, creds domain.SourceCredentials) (port.SourceHandle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failConnect {
		return nil, &domain.ErrConnectionFailed{ProjectID: creds.ProjectID, Err: fmt.Errorf("refused")}
	}
	f.connected[creds.ProjectID] = f.handle
	return f.handle, nil
}

func (f *fakeConnector) Get(projectID string) (port.SourceHandle, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	h, ok := f.connected[projectID]
	return h, ok
}

func (f *fakeConnector) Drop(projectID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.connected, projectID)
}

type recordingSender struct {
	mu    sync.Mutex
	sends []sentMessage
	err   error
}

type sentMessage struct {
	destination string
	text        string
}

func (r *recordingSender) Send(_ context.Context, destination, text string) error {
	if r.err != nil {
		return r.err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sends = append(r.sends, sentMessage{destination: destination, text: text})
	return nil
}

func (r *recordingSender) sent() []sentMessage {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]sentMessage, len(r.sends))
	copy(out, r.sends)
	return out
}

type memTemplateStore struct {
	mu     sync.Mutex
	nextID int
	items  map[string]map[string]*domain.Template // userID -> templateID -> template
}

func newMemTemplateStore() *memTemplateStore {
	return &memTemplateStore{items: map[string]map[string]*domain.Template{}}
}

func (m *memTemplateStore) CreateTemplate(_ context.Context, userID string, tpl *domain.Template) (*domain.Template, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.items[userID] == nil {
		m.items[userID] = map[string]*domain.Template{}
	}
	m.nextID++
	created := *tpl
	created.ID = fmt.Sprintf("tpl-%d", m.nextID)
	m.items[userID][created.ID] = &created
	return &created, nil
}

func (m *memTemplateStore) ListTemplates(_ context.Context, userID string) ([]domain.Template, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Template
	for _, tpl := range m.items[userID] {
		out = append(out, *tpl)
	}
	return out, nil
}

func (m *memTemplateStore) DeleteTemplate(_ context.Context, userID, templateID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.items[userID], templateID)
	return nil
}
