package scheduler

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOutcomeString(t *testing.T) {
	assert.Equal(t, "applied", OutcomeApplied.String())
	assert.Equal(t, "skipped_not_newer", OutcomeSkippedNotNewer.String())
	assert.Equal(t, "auth_failed", OutcomeAuthFailed.String())
	assert.Equal(t, "pending", OutcomePending.String())
}

func TestStatsRecord(t *testing.T) {
	var s Stats
	s.record(OutcomeApplied)
	s.record(OutcomeNoCandidate)
	s.record(OutcomeSkippedNotNewer)
	s.record(OutcomeFetchFailed)
	s.record(OutcomeAuthFailed)

	assert.Equal(t, Stats{Processed: 5, Updated: 1, Skipped: 2, Errors: 2}, s)
}
