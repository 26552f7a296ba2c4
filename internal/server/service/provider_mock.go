package service

import (
	"context"
	"sort"
	"sync"

	"hostpulse/internal/server/store"
	"hostpulse/pkg/wire"
)

// MemoryProvider is an in-memory store.Provider with the same timestamp
// guard as the sqlite provider. Used by tests and usable as an ephemeral
// backend.
type MemoryProvider struct {
	mu      sync.RWMutex
	devices map[string]wire.DeviceState
}

// NewMemoryProvider creates an empty in-memory provider.
func NewMemoryProvider() *MemoryProvider {
	return &MemoryProvider{devices: make(map[string]wire.DeviceState)}
}

func (p *MemoryProvider) Upsert(ctx context.Context, sample wire.Sample) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	existing, ok := p.devices[sample.DeviceID]
	if ok && sample.Timestamp.Before(existing.LastSeen) {
		return false, nil
	}

	state := wire.DeviceState{
		DeviceID:  sample.DeviceID,
		FirstSeen: sample.Timestamp,
		LastSeen:  sample.Timestamp,
		Sample:    sample,
	}
	if ok {
		state.FirstSeen = existing.FirstSeen
	}
	p.devices[sample.DeviceID] = state
	return true, nil
}

func (p *MemoryProvider) Exists(ctx context.Context, deviceID string) (bool, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	_, ok := p.devices[deviceID]
	return ok, nil
}

func (p *MemoryProvider) Get(ctx context.Context, deviceID string) (*wire.DeviceState, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	state, ok := p.devices[deviceID]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &state, nil
}

func (p *MemoryProvider) List(ctx context.Context) ([]wire.DeviceState, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	states := make([]wire.DeviceState, 0, len(p.devices))
	for _, state := range p.devices {
		states = append(states, state)
	}
	sort.Slice(states, func(i, j int) bool { return states[i].DeviceID < states[j].DeviceID })
	return states, nil
}

func (p *MemoryProvider) Close() error {
	return nil
}
