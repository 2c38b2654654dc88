package domain

// Template is a reusable message body owned per operator, independent of
// any lead.
type Template struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Content string `json:"content"`
}
