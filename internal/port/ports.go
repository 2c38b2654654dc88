// Package port defines the interfaces (ports) for external dependencies.
// Following hexagonal architecture, these ports decouple the domain/service
// layer from concrete implementations.
package port

import (
	"context"

	"github.com/asherv/martpal-go/internal/domain"
)

// LeadStore is the operator's own segmented lead repository. Leads live in
// per-user sub-collections named after the funnel segments.
type LeadStore interface {
	// EnsureContainer idempotently creates the per-user lead container
	// marker document. Sub-collections come into existence with their
	// first document.
	EnsureContainer(ctx context.Context, userID string) error

	ListLeads(ctx context.Context, userID, segment string) ([]domain.Lead, error)
	GetLead(ctx context.Context, userID, segment, leadID string) (*domain.Lead, error)

	// CreateLead inserts with a store-assigned identifier.
	CreateLead(ctx context.Context, userID, segment string, lead *domain.Lead) (*domain.Lead, error)

	// PutLead writes under an explicit identifier, creating or replacing.
	PutLead(ctx context.Context, userID, segment, leadID string, lead *domain.Lead) error

	DeleteLead(ctx context.Context, userID, segment, leadID string) error
	CountLeads(ctx context.Context, userID, segment string) (int, error)

	// FindLeadByKey looks up a lead by its dedup key (name, platform,
	// contact). fold selects case-insensitive comparison; exact match
	// otherwise. Returns nil, nil when no lead matches.
	FindLeadByKey(ctx context.Context, userID, segment, name, platform, contact string, fold bool) (*domain.Lead, error)

	// PurgeLeads removes the operator's entire lead container: every
	// document in every segment plus the marker document.
	PurgeLeads(ctx context.Context, userID string) error
}

// TemplateStore persists per-operator message templates.
type TemplateStore interface {
	CreateTemplate(ctx context.Context, userID string, tpl *domain.Template) (*domain.Template, error)
	ListTemplates(ctx context.Context, userID string) ([]domain.Template, error)
	DeleteTemplate(ctx context.Context, userID, templateID string) error
}

// ScheduledMessageStore persists deferred dispatch records, one per lead.
type ScheduledMessageStore interface {
	PutScheduledMessage(ctx context.Context, userID string, msg *domain.ScheduledMessage) error
	ListScheduledMessages(ctx context.Context, userID string) ([]domain.ScheduledMessage, error)
}

// UserStore persists operator accounts and their credentials.
type UserStore interface {
	CreateUser(ctx context.Context, user *domain.User, passwordHash string) error
	GetUser(ctx context.Context, userID string) (*domain.User, error)
	// GetUserByEmail returns nil, nil when no account exists.
	GetUserByEmail(ctx context.Context, email string) (*domain.User, string, error)
}

// SourceHandle is an established read-only connection to an external
// document database.
type SourceHandle interface {
	ProjectID() string
	// ListCollections enumerates top-level collections at the root path.
	ListCollections(ctx context.Context) ([]string, error)
	// FetchAll fetches every document of the named collection into memory.
	FetchAll(ctx context.Context, collection string) ([]map[string]any, error)
}

// SourceConnector establishes named connections to external sources. An
// existing handle for the same project is reused rather than duplicated.
type SourceConnector interface {
	Connect(ctx context.Context, creds domain.SourceCredentials) (SourceHandle, error)
	Get(projectID string) (SourceHandle, bool)
	Drop(projectID string)
}

// ChannelSender delivers one rendered plain-text message to a destination
// address on a single platform.
type ChannelSender interface {
	Send(ctx context.Context, destination, text string) error
}

// CredentialStore durably persists external-source connection parameters
// across sessions, keyed by operator.
type CredentialStore interface {
	Get(userID string) (*domain.SourceConfig, bool, error)
	Set(userID string, cfg *domain.SourceConfig) error
	Remove(userID string) error
}

// Cache provides generic caching with TTL.
type Cache[T any] interface {
	Get(key string) (T, bool)
	Set(key string, value T)
	Delete(key string)
}
