package ledger

import (
	"context"
	"fmt"

	"pockets/internal/core"
	applog "pockets/internal/log"
)

// Entry is a plain income or expense request. It is also the shape in which
// structured candidates from receipt scanning arrive.
type Entry struct {
	Kind     core.Kind
	PocketID string
	// GoalID sends income straight into a goal. Expenses may not set it.
	GoalID      string
	Amount      core.Money
	Description string
	Category    string
	// Date defaults to today and is clamped to today when in the future.
	Date core.Date
}

func (e Entry) record(kind core.Kind) core.Transaction {
	return core.Transaction{
		Kind:        kind,
		Amount:      e.Amount,
		Description: e.Description,
		Category:    e.Category,
		Date:        e.Date,
		PocketID:    e.PocketID,
		GoalID:      e.GoalID,
	}
}

// Record dispatches an entry by kind: income is recorded directly, expense goes
// through the sufficiency guard.
func (l *Ledger) Record(ctx context.Context, e Entry) (core.Transaction, error) {
	switch e.Kind {
	case core.Income:
		return l.RecordIncome(ctx, e)
	case core.Expense:
		return l.Spend(ctx, e)
	case core.Transfer:
		return core.Transaction{}, &core.ValidationError{Field: "kind", Reason: "transfers go through the transfer operations"}
	default:
		return core.Transaction{}, &core.ValidationError{Field: "kind", Reason: fmt.Sprintf("unknown transaction kind %q", e.Kind)}
	}
}

// RecordIncome appends an income entry to a pocket, or to a goal when GoalID is
// set. Goal income does not touch any pocket balance.
func (l *Ledger) RecordIncome(ctx context.Context, e Entry) (core.Transaction, error) {
	t, err := l.validateEntry(e, core.Income)
	if err == nil {
		t, err = l.append(ctx, applog.OpIncome, t)
	}
	l.logger.Op(ctx, applog.OpIncome, err, fields(t).WithPocket(e.PocketID, "").WithGoal(e.GoalID))
	return t, err
}

// RecordExpense appends an expense entry. It does not check the pocket's
// balance; callers run the sufficiency guard first, or use Spend.
func (l *Ledger) RecordExpense(ctx context.Context, e Entry) (core.Transaction, error) {
	t, err := l.validateEntry(e, core.Expense)
	if err == nil {
		t, err = l.append(ctx, applog.OpExpense, t)
	}
	l.logger.Op(ctx, applog.OpExpense, err, fields(t).WithPocket(e.PocketID, ""))
	return t, err
}

// CheckSufficiency is the advisory guard: it rejects an expense of amount
// against pocketID when the pocket's current projection is smaller.
func (l *Ledger) CheckSufficiency(ctx context.Context, pocketID string, amount core.Money) error {
	log, err := l.load(ctx)
	if err != nil {
		return err
	}
	return checkSufficiency(log, pocketID, amount)
}

// Spend runs the sufficiency guard and records the expense while holding the
// pocket's lock, so concurrent spends from one pocket cannot both pass.
func (l *Ledger) Spend(ctx context.Context, e Entry) (core.Transaction, error) {
	if err := checkEntry(e, core.Expense); err != nil {
		l.logger.Op(ctx, applog.OpExpense, err, applog.NewFields().WithPocket(e.PocketID, ""))
		return core.Transaction{}, err
	}
	unlock := l.locks.lock(pocketKey(e.PocketID))
	defer unlock()

	if err := l.CheckSufficiency(ctx, e.PocketID, e.Amount); err != nil {
		l.logger.Op(ctx, applog.OpExpense, err, applog.NewFields().WithPocket(e.PocketID, "").WithTransaction("", string(core.Expense), e.Amount.Cents))
		return core.Transaction{}, err
	}
	return l.RecordExpense(ctx, e)
}

func checkEntry(e Entry, kind core.Kind) error {
	if err := requirePositive(e.Amount); err != nil {
		return err
	}
	if kind == core.Expense && e.GoalID != "" {
		return &core.ValidationError{Field: "goal_id", Reason: "goals accept income only"}
	}
	if e.PocketID == "" && e.GoalID == "" {
		return &core.ValidationError{Field: "pocket_id", Reason: "pocket is required"}
	}
	return nil
}

func (l *Ledger) validateEntry(e Entry, kind core.Kind) (core.Transaction, error) {
	if err := checkEntry(e, kind); err != nil {
		return core.Transaction{}, err
	}
	t := l.stamp(e.record(kind))
	if err := t.Validate(); err != nil {
		return core.Transaction{}, err
	}
	return t, nil
}

// UpdateTransaction edits amount, description, category or date. The record
// keeps its id, kind, direction and creation time. Raising an expense's amount
// re-runs the sufficiency guard. An edit that would leave the record's goal
// below zero, such as lowering goal income a later withdrawal already spent,
// is rejected.
func (l *Ledger) UpdateTransaction(ctx context.Context, id string, patch core.Patch) (core.Transaction, error) {
	unlock := l.locks.lockAll()
	defer unlock()

	updated, err := l.update(ctx, id, patch)
	l.logger.Op(ctx, applog.OpUpdate, err, fields(updated).WithTransaction(id, string(updated.Kind), updated.Amount.Cents))
	return updated, err
}

func (l *Ledger) update(ctx context.Context, id string, patch core.Patch) (core.Transaction, error) {
	log, err := l.load(ctx)
	if err != nil {
		return core.Transaction{}, err
	}
	idx := -1
	for i := range log {
		if log[i].ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return core.Transaction{}, core.NotFound("transaction", id)
	}
	current := log[idx]

	if patch.Amount != nil {
		if err := requirePositive(*patch.Amount); err != nil {
			return core.Transaction{}, err
		}
	}
	if patch.Date != nil {
		d := ClampDate(*patch.Date, l.now())
		patch.Date = &d
	}
	candidate := patch.Apply(current)
	if err := candidate.Validate(); err != nil {
		return core.Transaction{}, err
	}

	if candidate.Amount.Cents > current.Amount.Cents {
		rest := make([]core.Transaction, 0, len(log)-1)
		rest = append(rest, log[:idx]...)
		rest = append(rest, log[idx+1:]...)
		switch current.Shape() {
		case core.ShapePocketExpense:
			err = checkSufficiency(rest, current.PocketID, candidate.Amount)
		case core.ShapeGoalWithdrawal:
			err = checkGoalAvailable(rest, current.GoalID, candidate.Amount)
		case core.ShapePocketIncome, core.ShapeGoalIncome, core.ShapePocketTransfer, core.ShapeGoalAllocation, core.ShapeInvalid:
		}
		if err != nil {
			return core.Transaction{}, err
		}
	}
	after := append([]core.Transaction(nil), log...)
	after[idx] = candidate
	if err := checkGoalNotOverdrawn(log, after, goalOf(current)); err != nil {
		return core.Transaction{}, err
	}

	updated, err := l.log.Update(ctx, id, patch, l.now())
	if err != nil {
		return core.Transaction{}, core.Storage("update", err)
	}
	l.invalidate()
	l.publish(ctx, Event{Type: EventUpdated, TransactionIDs: []string{id}, PocketID: updated.PocketID, GoalID: goalOf(updated)})
	return updated, nil
}

// RemoveTransaction deletes one record. Balances follow from the remaining log.
// Removing goal income or an allocation that later withdrawals depend on is
// rejected.
func (l *Ledger) RemoveTransaction(ctx context.Context, id string) error {
	unlock := l.locks.lockAll()
	defer unlock()

	err := l.remove(ctx, id)
	l.logger.Op(ctx, applog.OpRemove, err, applog.NewFields().WithTransaction(id, "", 0))
	return err
}

func (l *Ledger) remove(ctx context.Context, id string) error {
	log, err := l.load(ctx)
	if err != nil {
		return err
	}
	after := make([]core.Transaction, 0, len(log))
	var removed *core.Transaction
	for i := range log {
		if log[i].ID == id {
			removed = &log[i]
			continue
		}
		after = append(after, log[i])
	}
	if removed == nil {
		return core.NotFound("transaction", id)
	}
	if err := checkGoalNotOverdrawn(log, after, goalOf(*removed)); err != nil {
		return err
	}

	if err := l.log.Remove(ctx, id); err != nil {
		return core.Storage("remove", err)
	}
	l.invalidate()
	l.publish(ctx, Event{Type: EventRemoved, TransactionIDs: []string{id}, PocketID: removed.PocketID, GoalID: goalOf(*removed)})
	return nil
}
