package domain

import "time"

// StockState is the normalized availability signal of a vendor offer.
type StockState string

const (
	StockInStock    StockState = "in_stock"
	StockOutOfStock StockState = "out_of_stock"
	StockUnknown    StockState = "unknown"
)

// CandidateRecord is one discovered product before enrichment. The
// Normalizer constructs it once from a raw record; every downstream stage
// consumes this fixed shape.
type CandidateRecord struct {
	CommerceID  string
	CrossID     string
	Title       string
	Price       float64
	ImageURL    string
	SourceURL   string
	VendorName  string
	StockState  StockState
	RawCategory string
}

// DedupKey identifies the physical product across vendors: the cross-vendor
// identifier when present, the vendor-specific id otherwise.
func (c CandidateRecord) DedupKey() string {
	if c.CrossID != "" {
		return "x:" + c.CrossID
	}
	return "c:" + c.CommerceID
}

// QueueEntry is an accepted candidate awaiting classification.
type QueueEntry struct {
	Candidate CandidateRecord
	QueuedAt  time.Time
}

// SEOFields carries the generated marketing copy for a published product.
type SEOFields struct {
	Title           string    `json:"title"`
	MetaDescription string    `json:"meta_description"`
	Description     string    `json:"description"`
	Pros            []string  `json:"pros"`
	Cons            []string  `json:"cons"`
	FAQs            []FAQPair `json:"faqs"`
	Verdict         string    `json:"verdict"`
}

// FAQPair is a question/answer entry of the generated FAQ block.
type FAQPair struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// ClassificationResult is the structured output of the classification
// boundary for one candidate.
type ClassificationResult struct {
	Accepted     bool      `json:"accepted"`
	QualityScore int       `json:"quality_score"`
	Category     string    `json:"category"`
	AudienceTags []string  `json:"audience_tags"`
	SEO          SEOFields `json:"seo"`
	Slug         string    `json:"slug"`
}

// ProcessStatus enumerates terminal outcomes recorded in the processed log.
type ProcessStatus string

const (
	StatusPublished ProcessStatus = "published"
	StatusRejected  ProcessStatus = "rejected"
	StatusError     ProcessStatus = "error"
)

// ProcessedRecord is one append-only log entry. A later record for the same
// commerce id supersedes earlier ones; nothing is ever rewritten in place.
type ProcessedRecord struct {
	CommerceID string
	Status     ProcessStatus
	Reason     string
	HTTPCode   int
	RunID      string
	RecordedAt time.Time

	// Candidate holds the original record for error outcomes so a manual
	// requeue pass can re-admit the entry without re-discovering it.
	Candidate *CandidateRecord
}

// PublishOutcome reports one publish attempt against the content boundary.
type PublishOutcome struct {
	Status   ProcessStatus
	PublicID int64
	HTTPCode int
	Reason   string
}

// PublishedInventoryItem is the reconciler's view of an already-published
// product. Its lifecycle is owned by the content boundary; only a snapshot
// is read here.
type PublishedInventoryItem struct {
	PublicID   int64      `json:"public_id"`
	VendorID   string     `json:"vendor_id"`
	CrossID    string     `json:"cross_id"`
	StockState StockState `json:"stock_state"`
	Price      float64    `json:"price"`
	URL        string     `json:"url"`
}

// VendorFeedRow is one normalized row of a freshly downloaded vendor feed.
type VendorFeedRow struct {
	VendorID   string
	CrossID    string
	Title      string
	Price      float64
	URL        string
	VendorName string
	StockState StockState
}

// InstructionKind names the reconciliation actions emitted for the content
// boundary. There is deliberately no hard-delete kind.
type InstructionKind string

const (
	InstructionSoftDelist  InstructionKind = "soft_delist"
	InstructionResurrect   InstructionKind = "resurrect"
	InstructionPriceUpdate InstructionKind = "price_update"
)

// UpdateInstruction tells the caller how to heal one published item. The
// reconciler emits instructions; applying them is the caller's job.
type UpdateInstruction struct {
	Kind     InstructionKind
	PublicID int64
	VendorID string
	Price    float64
	URL      string
	Reason   string
}

// RunReport aggregates counters of one pipeline or reconciliation run for
// operational reporting.
type RunReport struct {
	RunID      string
	StartedAt  time.Time
	FinishedAt time.Time

	Discovered  int
	Invalid     int
	Accepted    int
	Duplicates  int
	FilteredOut int

	Published int
	Rejected  int
	Errors    int

	Delisted    int
	Resurrected int
	Repriced    int
}
