package hermes

import "time"

// ScoreComputedEvent announces a signed result. Applicant is the opaque
// label from the request, passed through unchanged.
type ScoreComputedEvent struct {
	EventID      string    `json:"event_id"`
	Applicant    string    `json:"applicant,omitempty"`
	Decision     string    `json:"decision"`
	Index        float64   `json:"index"`
	Version      string    `json:"version"`
	Signature    string    `json:"signature"`
	KeySource    string    `json:"key_source"`
	RulesFired   []int     `json:"rules_fired,omitempty"`
	RulesSkipped int       `json:"rules_skipped"`
	Timestamp    time.Time `json:"timestamp"`
}

// ScoreRejectedEvent announces a request refused before scoring.
type ScoreRejectedEvent struct {
	EventID   string    `json:"event_id"`
	Applicant string    `json:"applicant,omitempty"`
	Reason    string    `json:"reason"`
	Timestamp time.Time `json:"timestamp"`
}
