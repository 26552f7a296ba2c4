// Package store persists the latest state per device. One row per device,
// overwritten wholesale on each accepted ingestion; no history is kept.
package store

import (
	"context"
	"errors"

	"hostpulse/pkg/wire"
)

// ErrNotFound is returned when a device has never been ingested.
var ErrNotFound = errors.New("device not found")

// Provider is the latest-state store. Upsert reports whether the sample
// was applied: a submission older than the stored state is accepted by the
// caller but not applied, which keeps last-seen monotonic under retries
// and reordering.
type Provider interface {
	Upsert(ctx context.Context, sample wire.Sample) (applied bool, err error)
	Exists(ctx context.Context, deviceID string) (bool, error)
	Get(ctx context.Context, deviceID string) (*wire.DeviceState, error)
	List(ctx context.Context) ([]wire.DeviceState, error)
	Close() error
}
