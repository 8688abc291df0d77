package discovery

import "encoding/json"

// DeviceTemplate is a user's discovery intent: opaque capability
// requirements plus an ordered list of scoring criteria. Templates are
// treated as immutable while a request is in flight; the scorer only reads
// them.
type DeviceTemplate struct {
	ID      string `json:"id"`
	OwnerID string `json:"ownerId"`
	Name    string `json:"name,omitempty"`

	// Requirements constrain which devices repositories report. The
	// discovery core forwards them verbatim and never interprets them.
	Requirements json.RawMessage `json:"requirements,omitempty"`

	ScoringCriteria ScoringCriteria `json:"scoringCriteria"`
}

// Validate checks the template's fields and every scoring criterion,
// collecting all failures. Number criteria have their transformation
// expression syntax-checked here so that malformed expressions surface at
// creation time, not at scoring time.
func (t *DeviceTemplate) Validate() error {
	errs := &ValidationErrors{}

	if t.ID == "" {
		errs.Add("id", "The id must not be empty.")
	}
	if t.OwnerID == "" {
		errs.Add("ownerId", "The owner must not be empty.")
	}

	t.ScoringCriteria.validate(errs, "scoringCriteria")

	return errs.ErrOrNil()
}
