package bus

import "time"

// Event kinds published by the lead service. Subscribers filter by prefix,
// so "leads." matches every lead mutation.
const (
	KindLeadCreated  = "leads.created"
	KindLeadMoved    = "leads.moved"
	KindLeadDeleted  = "leads.deleted"
	KindLeadImported = "leads.imported"
	KindSourcePurged = "source.purged"
)

// Event represents a domain event published on the bus.
type Event struct {
	Kind      string    `json:"kind"`
	UserID    string    `json:"user_id"`
	Timestamp time.Time `json:"timestamp"`
	Payload   any       `json:"payload,omitempty"`
}
