// Package service implements collector-side ingestion and queries over a
// latest-state provider. Online/offline status is derived lazily at read
// time from last-seen age; nothing polls in the background.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"
	"unicode"

	"go.uber.org/zap"

	"hostpulse/internal/server/store"
	"hostpulse/pkg/freshness"
	"hostpulse/pkg/wire"
)

// maxDeviceIDLength bounds identifiers at the boundary; machine ids and
// generated fallback ids are all well under this.
const maxDeviceIDLength = 100

var (
	// ErrUnknownDevice is returned by Update for a device never created.
	ErrUnknownDevice = errors.New("unknown device")
	// ErrDeviceExists is returned by Create when the device already exists.
	ErrDeviceExists = errors.New("device already exists")
)

// ValidationError marks a malformed submission; the boundary maps it to a
// client error and state stays untouched.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid submission: %s", e.Reason)
}

// Service ties ingestion and queries to one provider and one freshness
// threshold.
type Service struct {
	provider  store.Provider
	threshold time.Duration
	logger    *zap.Logger

	// now is replaceable in tests.
	now func() time.Time
}

// New creates a service. threshold is the maximum sample age for a device
// to be reported online.
func New(provider store.Provider, threshold time.Duration, logger *zap.Logger) *Service {
	return &Service{
		provider:  provider,
		threshold: threshold,
		logger:    logger,
		now:       time.Now,
	}
}

// Create ingests the first sample for a device. Returns ErrDeviceExists
// when the device was already created; the agent then falls back to its
// update path.
func (s *Service) Create(ctx context.Context, sample wire.Sample) error {
	if err := validate(sample); err != nil {
		return err
	}

	exists, err := s.provider.Exists(ctx, sample.DeviceID)
	if err != nil {
		return err
	}
	if exists {
		return ErrDeviceExists
	}

	if _, err := s.provider.Upsert(ctx, sample); err != nil {
		return err
	}

	s.logger.Info("Device created",
		zap.String("device_id", sample.DeviceID),
		zap.Time("timestamp", sample.Timestamp))
	return nil
}

// Update ingests a sample for an existing device. applied=false means the
// submission was older than the stored state: it is accepted, logged and
// ignored, which is the expected shape of at-least-once delivery, not an
// error.
func (s *Service) Update(ctx context.Context, sample wire.Sample) (applied bool, err error) {
	if err := validate(sample); err != nil {
		return false, err
	}

	exists, err := s.provider.Exists(ctx, sample.DeviceID)
	if err != nil {
		return false, err
	}
	if !exists {
		return false, ErrUnknownDevice
	}

	applied, err = s.provider.Upsert(ctx, sample)
	if err != nil {
		return false, err
	}

	if applied {
		s.logger.Debug("Device state updated",
			zap.String("device_id", sample.DeviceID),
			zap.Time("timestamp", sample.Timestamp))
	} else {
		s.logger.Debug("Ignored stale submission",
			zap.String("device_id", sample.DeviceID),
			zap.Time("timestamp", sample.Timestamp))
	}
	return applied, nil
}

// Device returns one device's latest state with its derived status.
func (s *Service) Device(ctx context.Context, deviceID string) (*wire.DeviceState, error) {
	state, err := s.provider.Get(ctx, deviceID)
	if err != nil {
		return nil, err
	}
	state.Status = freshness.Classify(state.LastSeen, s.now(), s.threshold)
	return state, nil
}

// Devices returns every known device with derived statuses. A single
// "now" is used for the whole listing so one response is internally
// consistent.
func (s *Service) Devices(ctx context.Context) ([]wire.DeviceState, error) {
	states, err := s.provider.List(ctx)
	if err != nil {
		return nil, err
	}

	now := s.now()
	for i := range states {
		states[i].Status = freshness.Classify(states[i].LastSeen, now, s.threshold)
	}
	return states, nil
}

// validate rejects malformed submissions at the boundary.
func validate(sample wire.Sample) error {
	if sample.DeviceID == "" {
		return &ValidationError{Reason: "device_id is required"}
	}
	if len(sample.DeviceID) > maxDeviceIDLength {
		return &ValidationError{Reason: fmt.Sprintf("device_id exceeds %d characters", maxDeviceIDLength)}
	}
	for _, r := range sample.DeviceID {
		if unicode.IsSpace(r) || unicode.IsControl(r) {
			return &ValidationError{Reason: "device_id contains whitespace or control characters"}
		}
	}
	if sample.Timestamp.IsZero() {
		return &ValidationError{Reason: "timestamp is required"}
	}
	return nil
}
