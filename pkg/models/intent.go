package models

// IntentResult is the outcome of resolving free-form user text against the
// action catalog. Exactly one of the three shapes holds: a direct match, a
// non-empty suggestion list, or neither (no match). Env-kind actions never
// appear in either field.
type IntentResult struct {
	MatchedActionID    string   `json:"matched_action_id,omitempty"`
	SuggestedActionIDs []string `json:"suggested_action_ids,omitempty"`
	Reply              string   `json:"reply"`
	Confidence         float64  `json:"confidence"`

	// Fallback reports that the local deterministic path produced this
	// result, whether because no remote classifier is configured or
	// because the remote call failed.
	Fallback bool `json:"-"`
}

// Matched reports whether the resolver produced a direct match.
func (r IntentResult) Matched() bool {
	return r.MatchedActionID != ""
}
