package model

// OutcomeStatus classifies the result of processing one feature
type OutcomeStatus string

const (
	// StatusPublished means a row was created (with or without imagery attached)
	StatusPublished OutcomeStatus = "published"
	// StatusSkippedNoDate means the feature had no verifiedDate to target
	StatusSkippedNoDate OutcomeStatus = "skipped_no_date"
	// StatusSkippedGeometry means the feature geometry was not a usable point
	StatusSkippedGeometry OutcomeStatus = "skipped_bad_geometry"
	// StatusNoImagery means the imagery endpoint produced no artifact
	StatusNoImagery OutcomeStatus = "no_imagery"
	// StatusFailed means an unclassified error occurred
	StatusFailed OutcomeStatus = "failed"
)

// Outcome is the per-feature result returned by the driving loop's steps.
// The loop pattern-matches on Status rather than relying on propagated
// errors; Err carries detail for logging only.
type Outcome struct {
	FeatureID string
	Status    OutcomeStatus
	RecordID  string // Airtable row id when published
	ImagePath string // local artifact path when imagery was produced
	Err       error
}

// OK reports whether the feature ended up published
func (o Outcome) OK() bool {
	return o.Status == StatusPublished
}
