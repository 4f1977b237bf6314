package store

import (
	"context"
	"sync"
	"time"

	"pockets/internal/core"
)

// SnapshotLog adapts a whole-log transport to Log. The log is loaded on first
// use and every mutation replaces the remote copy before it becomes visible
// locally, so a failed save leaves both sides unchanged.
type SnapshotLog struct {
	mu     sync.Mutex
	remote Snapshotter
	cached []core.Transaction
	loaded bool
}

var _ Log = (*SnapshotLog)(nil)

func NewSnapshotLog(remote Snapshotter) *SnapshotLog {
	return &SnapshotLog{remote: remote}
}

func (s *SnapshotLog) Append(ctx context.Context, t core.Transaction) (core.Transaction, error) {
	err := s.mutate(ctx, "append", func(log []core.Transaction) ([]core.Transaction, error) {
		return AppendRecord(log, t)
	})
	if err != nil {
		return core.Transaction{}, err
	}
	return t, nil
}

func (s *SnapshotLog) All(ctx context.Context) ([]core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ensureLoaded(ctx); err != nil {
		return nil, err
	}
	return append([]core.Transaction(nil), s.cached...), nil
}

func (s *SnapshotLog) Update(ctx context.Context, id string, patch core.Patch, at time.Time) (core.Transaction, error) {
	var updated core.Transaction
	err := s.mutate(ctx, "update", func(log []core.Transaction) ([]core.Transaction, error) {
		next, u, err := PatchRecord(log, id, patch, at)
		updated = u
		return next, err
	})
	return updated, err
}

func (s *SnapshotLog) Remove(ctx context.Context, id string) error {
	return s.mutate(ctx, "remove", func(log []core.Transaction) ([]core.Transaction, error) {
		return RemoveRecord(log, id)
	})
}

func (s *SnapshotLog) ApplyBatch(ctx context.Context, deletions []string, insertions []core.Transaction) error {
	return s.mutate(ctx, "apply batch", func(log []core.Transaction) ([]core.Transaction, error) {
		return ApplyRecords(log, deletions, insertions)
	})
}

func (s *SnapshotLog) mutate(ctx context.Context, op string, fn func([]core.Transaction) ([]core.Transaction, error)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ensureLoaded(ctx); err != nil {
		return err
	}
	next, err := fn(s.cached)
	if err != nil {
		return err
	}
	if err := s.remote.SaveAll(ctx, next); err != nil {
		return core.Storage(op, err)
	}
	s.cached = next
	return nil
}

func (s *SnapshotLog) ensureLoaded(ctx context.Context) error {
	if s.loaded {
		return nil
	}
	log, err := s.remote.Load(ctx)
	if err != nil {
		return core.Storage("load", err)
	}
	s.cached, s.loaded = log, true
	return nil
}
