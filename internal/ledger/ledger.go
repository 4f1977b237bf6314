// Package ledger is the engine that guards every balance-affecting change.
//
// All writes go through the transaction log; balances are folds over the log
// and are never stored. Mutations touching the same pocket or goal are
// serialized, and pocket deletion excludes every other mutation while its
// compensating batch is planned and applied.
package ledger

import (
	"context"
	"fmt"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"pockets/internal/cache"
	"pockets/internal/core"
	applog "pockets/internal/log"
	"pockets/internal/store"
)

// Ledger validates requests and appends the resulting records to a log.
type Ledger struct {
	log       store.Log
	pockets   PocketLister
	publisher Publisher
	logger    *applog.Logger
	now       func() time.Time
	newID     func() string
	locks     *lockSet

	views *cache.LRUCache[view]
	gen   atomic.Uint64
}

// Options configure a Ledger. Zero values select defaults.
type Options struct {
	Publisher Publisher
	Logger    *applog.Logger
	// Now is the clock used for date clamping and audit timestamps.
	Now   func() time.Time
	NewID func() string
	// Cache, when set, holds projections until the next mutation or TTL expiry.
	Cache *cache.LRUCache[view]
	// Pockets, when set, limits PocketBalances to pockets that still exist.
	Pockets PocketLister
}

// PocketLister names the pockets that currently exist.
type PocketLister interface {
	ListPockets(ctx context.Context) ([]core.Pocket, error)
}

// view is the cached read side: the log and its projections at one generation.
type view struct {
	log     []core.Transaction
	pockets map[string]core.Money
	goals   map[string]core.Money
}

// NewViewCache returns a cache sized for ledger projections.
func NewViewCache(ttl time.Duration) *cache.LRUCache[view] {
	return cache.NewLRUCache[view](4, ttl)
}

func New(log store.Log, opts Options) *Ledger {
	l := &Ledger{
		log:       log,
		pockets:   opts.Pockets,
		publisher: opts.Publisher,
		logger:    opts.Logger,
		now:       opts.Now,
		newID:     opts.NewID,
		locks:     newLockSet(),
		views:     opts.Cache,
	}
	if l.logger == nil {
		l.logger = applog.Discard()
	}
	l.logger = l.logger.WithComponent(applog.ComponentLedger)
	if l.now == nil {
		l.now = time.Now
	}
	if l.newID == nil {
		l.newID = NewID
	}
	return l
}

// NewID returns a time-ordered UUIDv7, falling back to a random UUID.
func NewID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

// Filter narrows Transactions. Empty fields match everything.
type Filter struct {
	PocketID string
	GoalID   string
}

func (f Filter) match(t core.Transaction) bool {
	if f.PocketID != "" && t.PocketID != f.PocketID && t.TransferToPocketID != f.PocketID {
		return false
	}
	if f.GoalID != "" && t.GoalID != f.GoalID && t.TransferToGoalID != f.GoalID {
		return false
	}
	return true
}

// Transactions lists records in log order.
func (l *Ledger) Transactions(ctx context.Context, f Filter) ([]core.Transaction, error) {
	v, err := l.read(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]core.Transaction, 0, len(v.log))
	for _, t := range v.log {
		if f.match(t) {
			out = append(out, t)
		}
	}
	return out, nil
}

// PocketBalances projects the current balance of every pocket. With a pocket
// lister configured, only existing pockets are reported.
func (l *Ledger) PocketBalances(ctx context.Context) (map[string]core.Money, error) {
	v, err := l.read(ctx)
	if err != nil {
		return nil, err
	}
	if l.pockets == nil {
		return copyBalances(v.pockets), nil
	}
	pockets, err := l.pockets.ListPockets(ctx)
	if err != nil {
		return nil, core.Storage("list pockets", err)
	}
	return core.KeepPockets(v.pockets, pockets), nil
}

// GoalBalances projects the available balance of every goal.
func (l *Ledger) GoalBalances(ctx context.Context) (map[string]core.Money, error) {
	v, err := l.read(ctx)
	if err != nil {
		return nil, err
	}
	return copyBalances(v.goals), nil
}

// GoalFunding projects how much each goal was funded by income over its lifetime.
func (l *Ledger) GoalFunding(ctx context.Context) (map[string]core.Money, error) {
	v, err := l.read(ctx)
	if err != nil {
		return nil, err
	}
	return core.GoalFunding(v.log), nil
}

// MonthSummary aggregates income and expense for one calendar month.
func (l *Ledger) MonthSummary(ctx context.Context, year, month int) (core.MonthOverview, error) {
	if month < 1 || month > 12 {
		return core.MonthOverview{}, &core.ValidationError{Field: "month", Reason: core.ErrInvalidMonth.Error()}
	}
	v, err := l.read(ctx)
	if err != nil {
		return core.MonthOverview{}, err
	}
	return core.SummarizeMonth(v.log, year, month), nil
}

// read returns the current view, from cache when this generation is cached.
func (l *Ledger) read(ctx context.Context) (view, error) {
	key := "view@" + strconv.FormatUint(l.gen.Load(), 10)
	if l.views != nil {
		if v, ok := l.views.Get(key); ok {
			return v, nil
		}
	}
	all, err := l.log.All(ctx)
	if err != nil {
		return view{}, core.Storage("load", err)
	}
	v := view{log: all, pockets: core.PocketBalances(all), goals: core.GoalBalances(all)}
	if l.views != nil {
		l.views.Set(key, v)
	}
	return v, nil
}

// load always reads the log itself. Guards decide on it rather than on a
// cached view so another process's writes are seen.
func (l *Ledger) load(ctx context.Context) ([]core.Transaction, error) {
	all, err := l.log.All(ctx)
	if err != nil {
		return nil, core.Storage("load", err)
	}
	return all, nil
}

// invalidate moves to a new generation and drops cached views.
func (l *Ledger) invalidate() {
	l.gen.Add(1)
	if l.views != nil {
		l.views.Purge()
	}
}

// append stores one record and runs the post-commit steps.
func (l *Ledger) append(ctx context.Context, op string, t core.Transaction) (core.Transaction, error) {
	stored, err := l.log.Append(ctx, t)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("%s: %w", op, core.Storage("append", err))
	}
	l.invalidate()
	l.publish(ctx, Event{Type: EventAppended, TransactionIDs: []string{stored.ID}, PocketID: stored.PocketID, GoalID: goalOf(stored)})
	return stored, nil
}

func (l *Ledger) stamp(t core.Transaction) core.Transaction {
	now := l.now()
	t.ID = l.newID()
	t.Date = ClampDate(t.Date, now)
	t.CreatedAt = now
	t.UpdatedAt = now
	return t
}

func goalOf(t core.Transaction) string {
	if t.GoalID != "" {
		return t.GoalID
	}
	return t.TransferToGoalID
}

func copyBalances(in map[string]core.Money) map[string]core.Money {
	out := make(map[string]core.Money, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func fields(t core.Transaction) applog.LogFields {
	return applog.NewFields().
		WithTransaction(t.ID, string(t.Kind), t.Amount.Cents).
		WithPocket(t.PocketID, t.TransferToPocketID).
		WithGoal(goalOf(t))
}
