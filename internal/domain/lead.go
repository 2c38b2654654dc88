package domain

// Funnel segments a lead can occupy. A lead lives in exactly one segment
// at a time; the segment is the storage location, with Status kept in sync.
const (
	SegmentCold = "cold"
	SegmentWarm = "warm"
	SegmentHot  = "hot"
)

// Segments lists the funnel segments ordered by recency.
func Segments() []string {
	return []string{SegmentCold, SegmentWarm, SegmentHot}
}

// ValidSegment reports whether s names a known funnel segment.
func ValidSegment(s string) bool {
	return s == SegmentCold || s == SegmentWarm || s == SegmentHot
}

// Messaging platforms recognized on a lead record.
const (
	PlatformEmail    = "email"
	PlatformWhatsApp = "whatsapp"
)

// Lead is a prospective-customer record inside one funnel segment.
type Lead struct {
	ID        string  `json:"id"`
	Name      string  `json:"name"`
	Contact   string  `json:"contact"`
	Platform  string  `json:"platform"`
	Status    string  `json:"status"`
	OrderRate float64 `json:"orderRate"`
}

// Valid reports whether the record carries the fields required at import
// time. Records failing this check are dropped without individual reporting.
func (l *Lead) Valid() bool {
	return l.Name != "" && l.Contact != "" && l.Platform != ""
}

// ImportResult is the aggregate outcome of one import run. Per-record
// outcomes are accumulated instead of raised, so a single bad record never
// aborts the batch.
type ImportResult struct {
	Collection string `json:"collection"`
	Imported   int    `json:"importedCount"`
	Duplicates int    `json:"duplicateCount"`
	Invalid    int    `json:"invalidCount"`
	Failed     int    `json:"failedCount"`
}

// LeadSummary holds per-segment lead counts for the dashboard.
type LeadSummary struct {
	Cold int `json:"cold"`
	Warm int `json:"warm"`
	Hot  int `json:"hot"`
}
