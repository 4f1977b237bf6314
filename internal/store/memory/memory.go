package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"pockets/internal/core"
	"pockets/internal/store"
)

// Store keeps the log and the pocket/goal directory in memory. When created
// with NewFromFile every mutation is also written to a JSON file before it
// becomes visible.
type Store struct {
	mu      sync.Mutex
	path    string
	items   []core.Transaction
	pockets map[string]core.Pocket
	goals   map[string]core.Goal
	order   map[string]int
	seq     int
}

var (
	_ store.Log       = (*Store)(nil)
	_ store.Directory = (*Store)(nil)
)

func New() *Store {
	return &Store{
		pockets: map[string]core.Pocket{},
		goals:   map[string]core.Goal{},
		order:   map[string]int{},
	}
}

// NewFromFile loads path if it exists and persists every change to it.
func NewFromFile(path string) (*Store, error) {
	s := New()
	s.path = path
	snap, err := readFile(path)
	if err != nil {
		return nil, err
	}
	s.items = snap.transactions()
	for _, p := range snap.pockets() {
		s.pockets[p.ID] = p
		s.track(p.ID)
	}
	for _, g := range snap.goals() {
		s.goals[g.ID] = g
		s.track(g.ID)
	}
	return s, nil
}

// Append stores the record.
func (s *Store) Append(_ context.Context, t core.Transaction) (core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	next, err := store.AppendRecord(s.items, t)
	if err != nil {
		return core.Transaction{}, err
	}
	if err := s.commit(next, s.pockets, s.goals); err != nil {
		return core.Transaction{}, core.Storage("append", err)
	}
	return t, nil
}

func (s *Store) All(_ context.Context) ([]core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.Transaction(nil), s.items...), nil
}

func (s *Store) Update(_ context.Context, id string, patch core.Patch, at time.Time) (core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	next, updated, err := store.PatchRecord(s.items, id, patch, at)
	if err != nil {
		return core.Transaction{}, err
	}
	if err := s.commit(next, s.pockets, s.goals); err != nil {
		return core.Transaction{}, core.Storage("update", err)
	}
	return updated, nil
}

func (s *Store) Remove(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	next, err := store.RemoveRecord(s.items, id)
	if err != nil {
		return err
	}
	return core.Storage("remove", s.commit(next, s.pockets, s.goals))
}

func (s *Store) ApplyBatch(_ context.Context, deletions []string, insertions []core.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	next, err := store.ApplyRecords(s.items, deletions, insertions)
	if err != nil {
		return err
	}
	return core.Storage("apply batch", s.commit(next, s.pockets, s.goals))
}

func (s *Store) CreatePocket(_ context.Context, p core.Pocket) (core.Pocket, error) {
	if err := p.Validate(); err != nil {
		return core.Pocket{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.pockets[p.ID]; ok || p.ID == "" {
		return core.Pocket{}, &core.ValidationError{Field: "id", Reason: fmt.Sprintf("pocket id %q already in use", p.ID)}
	}
	if p.Kind == core.PocketMain {
		for _, other := range s.pockets {
			if other.Kind == core.PocketMain {
				return core.Pocket{}, &core.ValidationError{Field: "kind", Reason: "a main pocket already exists"}
			}
		}
	}
	pockets := copyMap(s.pockets)
	pockets[p.ID] = p
	if err := s.commit(s.items, pockets, s.goals); err != nil {
		return core.Pocket{}, core.Storage("create pocket", err)
	}
	s.track(p.ID)
	return p, nil
}

func (s *Store) Pocket(_ context.Context, id string) (core.Pocket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.pockets[id]
	if !ok {
		return core.Pocket{}, core.NotFound("pocket", id)
	}
	return p, nil
}

func (s *Store) ListPockets(_ context.Context) ([]core.Pocket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.Pocket, 0, len(s.pockets))
	for _, p := range s.pockets {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return s.order[out[i].ID] < s.order[out[j].ID] })
	return out, nil
}

func (s *Store) RemovePocket(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.pockets[id]
	if !ok {
		return core.NotFound("pocket", id)
	}
	if p.Kind == core.PocketMain {
		return &core.ValidationError{Field: "id", Reason: core.ErrMainNotDeletable.Error()}
	}
	pockets := copyMap(s.pockets)
	delete(pockets, id)
	return core.Storage("remove pocket", s.commit(s.items, pockets, s.goals))
}

func (s *Store) CreateGoal(_ context.Context, g core.Goal) (core.Goal, error) {
	if err := g.Validate(); err != nil {
		return core.Goal{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.goals[g.ID]; ok || g.ID == "" {
		return core.Goal{}, &core.ValidationError{Field: "id", Reason: fmt.Sprintf("goal id %q already in use", g.ID)}
	}
	goals := copyMap(s.goals)
	goals[g.ID] = g
	if err := s.commit(s.items, s.pockets, goals); err != nil {
		return core.Goal{}, core.Storage("create goal", err)
	}
	s.track(g.ID)
	return g, nil
}

func (s *Store) Goal(_ context.Context, id string) (core.Goal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.goals[id]
	if !ok {
		return core.Goal{}, core.NotFound("goal", id)
	}
	return g, nil
}

func (s *Store) ListGoals(_ context.Context) ([]core.Goal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.Goal, 0, len(s.goals))
	for _, g := range s.goals {
		out = append(out, g)
	}
	sort.Slice(out, func(i, j int) bool { return s.order[out[i].ID] < s.order[out[j].ID] })
	return out, nil
}

func (s *Store) RemoveGoal(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.goals[id]; !ok {
		return core.NotFound("goal", id)
	}
	goals := copyMap(s.goals)
	delete(goals, id)
	return core.Storage("remove goal", s.commit(s.items, s.pockets, goals))
}

// commit persists the new state when file-backed, then swaps it in.
func (s *Store) commit(items []core.Transaction, pockets map[string]core.Pocket, goals map[string]core.Goal) error {
	if s.path != "" {
		if err := writeFile(s.path, newSnapshot(items, s.sorted(pockets), s.sortedGoals(goals))); err != nil {
			return err
		}
	}
	s.items, s.pockets, s.goals = items, pockets, goals
	return nil
}

func (s *Store) track(id string) {
	if _, ok := s.order[id]; !ok {
		s.seq++
		s.order[id] = s.seq
	}
}

func (s *Store) sorted(pockets map[string]core.Pocket) []core.Pocket {
	out := make([]core.Pocket, 0, len(pockets))
	for _, p := range pockets {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return s.rank(out[i].ID) < s.rank(out[j].ID) })
	return out
}

func (s *Store) sortedGoals(goals map[string]core.Goal) []core.Goal {
	out := make([]core.Goal, 0, len(goals))
	for _, g := range goals {
		out = append(out, g)
	}
	sort.Slice(out, func(i, j int) bool { return s.rank(out[i].ID) < s.rank(out[j].ID) })
	return out
}

// rank orders untracked ids (being created) last.
func (s *Store) rank(id string) int {
	if n, ok := s.order[id]; ok {
		return n
	}
	return s.seq + 1
}

func copyMap[V any](in map[string]V) map[string]V {
	out := make(map[string]V, len(in)+1)
	for k, v := range in {
		out[k] = v
	}
	return out
}
