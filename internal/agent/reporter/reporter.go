// Package reporter delivers derived samples to the collector. It runs
// independently of the sampling cadence: the scheduler hands samples over
// through a one-slot latest-wins mailbox, so a slow or failing delivery
// can never stall the next tick. A newer sample replaces any undelivered
// pending one, since the collector only keeps the latest state anyway.
package reporter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/jpillora/backoff"
	"go.uber.org/zap"

	"hostpulse/pkg/wire"
)

// Reporter posts samples to the collector's device API with bounded
// retries. After exhausting retries the sample is dropped; a stale sample
// is not worth delivering late into a latest-state-only collector.
type Reporter struct {
	url        string
	httpClient *http.Client
	logger     *zap.Logger

	maxRetries int
	backoffMin time.Duration
	backoffMax time.Duration

	mailbox chan wire.Sample
}

// New creates a reporter targeting the collector's devices endpoint,
// e.g. "http://collector:8000/api/devices/".
func New(url string, timeout time.Duration, maxRetries int, backoffMin, backoffMax time.Duration, logger *zap.Logger) *Reporter {
	return &Reporter{
		url: url,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger:     logger,
		maxRetries: maxRetries,
		backoffMin: backoffMin,
		backoffMax: backoffMax,
		mailbox:    make(chan wire.Sample, 1),
	}
}

// Offer hands a sample to the delivery loop without ever blocking the
// caller. If a previous sample is still waiting it is superseded.
func (r *Reporter) Offer(sample wire.Sample) {
	for {
		select {
		case r.mailbox <- sample:
			return
		default:
		}
		select {
		case dropped := <-r.mailbox:
			r.logger.Debug("Superseded undelivered sample",
				zap.Time("dropped_timestamp", dropped.Timestamp),
				zap.Time("new_timestamp", sample.Timestamp))
		default:
		}
	}
}

// Run consumes the mailbox until ctx is cancelled. One delivery (including
// its retries) is in flight at a time; whatever is newest in the mailbox
// is picked up next.
func (r *Reporter) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			r.logger.Info("Reporter stopped")
			return
		case sample := <-r.mailbox:
			r.deliver(ctx, sample)
		}
	}
}

// deliver sends one sample with retries and jittered exponential backoff.
// Exhausted retries log and drop; delivery failure is never fatal.
func (r *Reporter) deliver(ctx context.Context, sample wire.Sample) {
	b := &backoff.Backoff{
		Min:    r.backoffMin,
		Max:    r.backoffMax,
		Jitter: true,
	}

	var lastErr error
	for attempt := 1; attempt <= r.maxRetries; attempt++ {
		if attempt > 1 {
			d := b.Duration()
			r.logger.Warn("Retrying sample delivery",
				zap.Int("attempt", attempt),
				zap.Int("max_retries", r.maxRetries),
				zap.Duration("backoff", d))
			select {
			case <-time.After(d):
			case <-ctx.Done():
				return
			}
		}

		err := r.send(ctx, sample)
		if err == nil {
			if attempt > 1 {
				r.logger.Info("Sample delivered after retry", zap.Int("attempts", attempt))
			} else {
				r.logger.Debug("Sample delivered",
					zap.String("device_id", sample.DeviceID),
					zap.Time("timestamp", sample.Timestamp))
			}
			return
		}

		lastErr = err
		r.logger.Warn("Failed to deliver sample",
			zap.Error(err),
			zap.Int("attempt", attempt))
	}

	r.logger.Error("Dropping sample after exhausting retries",
		zap.Int("attempts", r.maxRetries),
		zap.Time("timestamp", sample.Timestamp),
		zap.Error(lastErr))
}

// send performs one delivery attempt: PATCH to update the device's latest
// state, falling back to POST when the collector has never seen this
// device. Any non-2xx class outcome is a retryable error.
func (r *Reporter) send(ctx context.Context, sample wire.Sample) error {
	body, err := json.Marshal(sample)
	if err != nil {
		return fmt.Errorf("failed to marshal sample: %w", err)
	}

	status, err := r.request(ctx, http.MethodPatch, body)
	if err != nil {
		return err
	}

	if status == http.StatusNotFound {
		r.logger.Info("Device unknown to collector, creating",
			zap.String("device_id", sample.DeviceID))
		status, err = r.request(ctx, http.MethodPost, body)
		if err != nil {
			return err
		}
	}

	if status < 200 || status > 299 {
		return fmt.Errorf("collector rejected sample: status %d", status)
	}
	return nil
}

// request executes one HTTP call and returns the status code.
func (r *Reporter) request(ctx context.Context, method string, body []byte) (int, error) {
	req, err := http.NewRequestWithContext(ctx, method, r.url, bytes.NewReader(body))
	if err != nil {
		return 0, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	// Drain so the connection can be reused.
	io.Copy(io.Discard, resp.Body)

	return resp.StatusCode, nil
}
