// Package cache keeps materialized results views. A cached view is only an
// optimisation: readers compare its ledger head against the store and rebuild
// it when they differ.
package cache

import (
	"context"
	"sync"

	"github.com/jaam8/election_ledger/internal/models"
)

type ResultsCache interface {
	// Get returns models.ErrCacheMiss when nothing is cached.
	Get(ctx context.Context, electionID string) (*models.ResultsView, error)
	Set(ctx context.Context, view *models.ResultsView) error
	Delete(ctx context.Context, electionID string) error
}

type Memory struct {
	mu    sync.RWMutex
	views map[string]models.ResultsView
}

func NewMemory() *Memory {
	return &Memory{views: make(map[string]models.ResultsView)}
}

func (m *Memory) Get(_ context.Context, electionID string) (*models.ResultsView, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	view, ok := m.views[electionID]
	if !ok {
		return nil, models.ErrCacheMiss
	}
	return &view, nil
}

func (m *Memory) Set(_ context.Context, view *models.ResultsView) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.views[view.ElectionID] = *view
	return nil
}

func (m *Memory) Delete(_ context.Context, electionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.views, electionID)
	return nil
}

// Nop never caches anything.
type Nop struct{}

func (Nop) Get(context.Context, string) (*models.ResultsView, error) { return nil, models.ErrCacheMiss }

func (Nop) Set(context.Context, *models.ResultsView) error { return nil }

func (Nop) Delete(context.Context, string) error { return nil }
