// Package extraction implements the Event Extractor: a provider-first,
// rule-fallback pipeline that turns one raw memory's text into zero or
// more structured ExtractedEvent values, plus the pure time-phrase
// parser used to resolve event timestamps.
package extraction

// ExtractedEvent is one structured observation pulled from free text,
// before it is persisted as a store.EventMemory. Method records which
// strategy produced it, per spec §4.2's observability requirement.
type ExtractedEvent struct {
	Actor      string
	Action     string
	Target     string
	Quantity   *float64
	Unit       *string
	Confidence float64
	Method     string // "provider" | "rule"
}

const (
	MethodProvider = "provider"
	MethodRule     = "rule"
)
