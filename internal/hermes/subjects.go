package hermes

import "strings"

const (
	StreamName   = "BURSARY_EVENTS"
	StreamMaxAge = "720h" // 30 days

	subjectScorePrefix = "bursary.score."
	subjectScoreAll    = subjectScorePrefix + ">"
)

// SubjectScoreComputed is where a result with the given decision is announced,
// e.g. bursary.score.partial.
func SubjectScoreComputed(decision string) string {
	return subjectScorePrefix + strings.ToLower(decision)
}

func SubjectScoreRejected() string { return subjectScorePrefix + "rejected" }
