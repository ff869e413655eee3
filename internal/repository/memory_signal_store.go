package repository

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"SignalDesk/internal/domain/models"
	domrepo "SignalDesk/internal/domain/repository"

	"github.com/google/uuid"
)

// MemorySignalStore is a process-local SignalStore for tests and single-node runs.
type MemorySignalStore struct {
	mu      sync.RWMutex
	signals map[string]models.Signal
	now     func() time.Time
}

func NewMemorySignalStore() *MemorySignalStore {
	return &MemorySignalStore{signals: make(map[string]models.Signal), now: time.Now}
}

// newestFirst orders by creation time descending, then id.
func newestFirst(a, b models.Signal) int {
	if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
		return c
	}
	return cmp.Compare(a.ID, b.ID)
}

func (s *MemorySignalStore) Query(_ context.Context, status *models.Status) ([]models.Signal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.Signal, 0, len(s.signals))
	for _, sig := range s.signals {
		if status == nil || sig.Status == *status {
			out = append(out, sig)
		}
	}
	slices.SortFunc(out, newestFirst)
	return out, nil
}

func (s *MemorySignalStore) Get(_ context.Context, id string) (models.Signal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sig, ok := s.signals[id]
	if !ok {
		return models.Signal{}, fmt.Errorf("get %s: %w", id, domrepo.ErrNotFound)
	}
	return sig, nil
}

func (s *MemorySignalStore) Insert(_ context.Context, sig *models.Signal) error {
	if !sig.Status.Valid() {
		return fmt.Errorf("insert: invalid status %q", sig.Status)
	}
	sig.ID = uuid.NewString()
	if sig.CreatedAt.IsZero() {
		sig.CreatedAt = s.now().UTC()
	}

	s.mu.Lock()
	s.signals[sig.ID] = *sig
	s.mu.Unlock()
	return nil
}

func (s *MemorySignalStore) UpdateStatus(_ context.Context, id string, status models.Status) error {
	if !status.Valid() {
		return fmt.Errorf("update %s: invalid status %q", id, status)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sig, ok := s.signals[id]
	if !ok {
		return fmt.Errorf("update %s: %w", id, domrepo.ErrNotFound)
	}
	if sig.Status.IsTerminal() {
		return fmt.Errorf("update %s from %s to %s: %w", id, sig.Status, status, domrepo.ErrConflict)
	}
	sig.Status = status
	if status.IsTerminal() {
		t := s.now().UTC()
		sig.ClosedAt = &t
	}
	s.signals[id] = sig
	return nil
}

func (s *MemorySignalStore) Health(context.Context) error { return nil }

var _ domrepo.SignalStore = (*MemorySignalStore)(nil)
