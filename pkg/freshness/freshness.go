// Package freshness classifies a device as online or offline from the age
// of its last accepted sample. Classification is evaluated lazily at query
// time; no background polling is involved.
package freshness

import "time"

// Status values returned by Classify.
const (
	Online  = "online"
	Offline = "offline"
)

// DefaultThreshold is the maximum sample age for a device to count as
// online when no threshold is configured.
const DefaultThreshold = time.Minute

// Classify returns Online iff now minus lastSeen is within threshold.
// The boundary is inclusive: a sample exactly threshold old is still online.
func Classify(lastSeen, now time.Time, threshold time.Duration) string {
	if now.Sub(lastSeen) <= threshold {
		return Online
	}
	return Offline
}
