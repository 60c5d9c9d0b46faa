package scheduler

// Outcome is the terminal state of one zone-update attempt. Every outcome is
// non-fatal to the enclosing batch.
type Outcome int

const (
	OutcomePending Outcome = iota
	OutcomeAuthFailed
	OutcomeNoCandidate
	OutcomeFetchFailed
	OutcomeApplied
	OutcomeSkippedNotNewer
)

func (o Outcome) String() string {
	switch o {
	case OutcomeAuthFailed:
		return "auth_failed"
	case OutcomeNoCandidate:
		return "no_candidate"
	case OutcomeFetchFailed:
		return "fetch_failed"
	case OutcomeApplied:
		return "applied"
	case OutcomeSkippedNotNewer:
		return "skipped_not_newer"
	default:
		return "pending"
	}
}

// IsError reports whether the outcome counts against Stats.Errors.
func (o Outcome) IsError() bool {
	return o == OutcomeAuthFailed || o == OutcomeFetchFailed
}

// Stats aggregates the outcomes of one update cycle.
type Stats struct {
	Processed int
	Updated   int
	Skipped   int
	Errors    int
}

// record folds a single outcome into the counters.
func (s *Stats) record(o Outcome) {
	s.Processed++
	switch {
	case o == OutcomeApplied:
		s.Updated++
	case o.IsError():
		s.Errors++
	default:
		s.Skipped++
	}
}
