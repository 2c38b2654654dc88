package domain

// SourceCredentials is the opaque bag addressing an operator-supplied
// external Firestore project. Persisted across sessions until the operator
// disconnects.
type SourceCredentials struct {
	APIKey     string `json:"apiKey"`
	AuthDomain string `json:"authDomain"`
	ProjectID  string `json:"projectId"`
}

// SourceConfig is what the credential store persists per operator:
// the connection parameters plus the last collection imported from.
type SourceConfig struct {
	Credentials    SourceCredentials `json:"credentials"`
	LastCollection string            `json:"lastCollection,omitempty"`
}

// SourceStatus describes the current external-source connection.
type SourceStatus struct {
	Connected      bool     `json:"connected"`
	ProjectID      string   `json:"projectId,omitempty"`
	Collections    []string `json:"collections,omitempty"`
	LastCollection string   `json:"lastCollection,omitempty"`
	Warning        string   `json:"warning,omitempty"`
}
