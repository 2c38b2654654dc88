package domain

// SendRequest asks for an immediate dispatch to the selected leads.
type SendRequest struct {
	Segment string   `json:"segment"`
	LeadIDs []string `json:"leadIds"`
	Message string   `json:"message"`
}

// ScheduleRequest defers a dispatch to a later time. The timestamp is stored
// as received; delivery at time T is owned by an external worker.
type ScheduleRequest struct {
	Segment       string   `json:"segment"`
	LeadIDs       []string `json:"leadIds"`
	Message       string   `json:"message"`
	ScheduledTime string   `json:"scheduledTime"`
}

// ScheduledMessage is one deferred dispatch, keyed by lead within the
// operator's scheduled-messages collection.
type ScheduledMessage struct {
	LeadID        string `json:"leadId"`
	Message       string `json:"message"`
	ScheduledTime string `json:"scheduledTime"`
	Status        string `json:"status"`
	Platform      string `json:"platform"`
	Contact       string `json:"contact"`
}

// SendReport summarizes a best-effort fan-out: leads with an unknown
// platform are skipped and appear in neither count.
type SendReport struct {
	Sent     int      `json:"sentCount"`
	Skipped  int      `json:"skippedCount"`
	Failures []string `json:"failures"`
}
