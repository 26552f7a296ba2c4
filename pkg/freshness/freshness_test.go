package freshness

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	threshold := time.Minute

	testCases := []struct {
		name     string
		lastSeen time.Time
		expected string
	}{
		{"just reported", now, Online},
		{"half threshold", now.Add(-30 * time.Second), Online},
		{"exactly threshold old", now.Add(-threshold), Online},
		{"one second past threshold", now.Add(-threshold - time.Second), Offline},
		{"long gone", now.Add(-24 * time.Hour), Offline},
		{"clock skew, sample from the future", now.Add(5 * time.Second), Online},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, Classify(tc.lastSeen, now, threshold))
		})
	}
}
