package ledger

import (
	"context"
	"time"

	"pockets/internal/core"
	applog "pockets/internal/log"
	"pockets/internal/store"
)

// Plan is the compensating batch for deleting one pocket: records to remove and
// records to add, applied together or not at all.
type Plan struct {
	PocketID   string
	Deletions  []string
	Insertions []core.Transaction
	// Retired is set when the log also removed the pocket from the directory
	// in the same step.
	Retired bool
}

// Empty reports whether the plan changes nothing.
func (p Plan) Empty() bool { return len(p.Deletions) == 0 && len(p.Insertions) == 0 }

// PlanPocketDeletion computes the batch that detaches pocketID from log.
//
// Money the pocket sent elsewhere stays where it went: each outbound transfer is
// replaced by an income on the destination. Money it received is handed back:
// each inbound transfer is replaced by an expense on the source. The pocket's
// own income and expenses are dropped. Records that involve a goal are kept, so
// goal balances and every surviving pocket's balance are unchanged.
func PlanPocketDeletion(log []core.Transaction, pocketID string, now time.Time, newID func() string) Plan {
	plan := Plan{PocketID: pocketID}
	for _, t := range log {
		switch t.Shape() {
		case core.ShapePocketTransfer:
			switch pocketID {
			case t.PocketID:
				plan.Deletions = append(plan.Deletions, t.ID)
				plan.Insertions = append(plan.Insertions, compensate(t, core.Income, t.TransferToPocketID, core.OriginDeletedPocket, now, newID))
			case t.TransferToPocketID:
				plan.Deletions = append(plan.Deletions, t.ID)
				plan.Insertions = append(plan.Insertions, compensate(t, core.Expense, t.PocketID, core.OriginRevertedTransfer, now, newID))
			}
		case core.ShapePocketIncome, core.ShapePocketExpense:
			if t.PocketID == pocketID {
				plan.Deletions = append(plan.Deletions, t.ID)
			}
		case core.ShapeGoalIncome, core.ShapeGoalAllocation, core.ShapeGoalWithdrawal, core.ShapeInvalid:
		}
	}
	return plan
}

func compensate(t core.Transaction, kind core.Kind, pocketID string, origin core.Origin, now time.Time, newID func() string) core.Transaction {
	return core.Transaction{
		ID:          newID(),
		Kind:        kind,
		Amount:      t.Amount,
		Description: t.Description,
		Category:    t.Category,
		Date:        t.Date,
		CreatedAt:   now,
		UpdatedAt:   now,
		PocketID:    pocketID,
		Origin:      origin,
	}
}

// DeletePocket reconciles the log for a pocket that is going away. No other
// mutation runs while the plan is computed and applied. The main pocket cannot
// be deleted.
func (l *Ledger) DeletePocket(ctx context.Context, pocket core.Pocket) (Plan, error) {
	plan, err := l.deletePocket(ctx, pocket)
	l.logger.Op(ctx, applog.OpDeletePocket, err, applog.NewFields().
		WithPocket(pocket.ID, "").
		With(applog.FieldDeletions, len(plan.Deletions)).
		With(applog.FieldInsertions, len(plan.Insertions)))
	return plan, err
}

func (l *Ledger) deletePocket(ctx context.Context, pocket core.Pocket) (Plan, error) {
	if pocket.Kind == core.PocketMain {
		return Plan{}, &core.ValidationError{Field: "pocket_id", Reason: core.ErrMainNotDeletable.Error()}
	}
	if pocket.ID == "" {
		return Plan{}, &core.ValidationError{Field: "pocket_id", Reason: "pocket is required"}
	}

	unlock := l.locks.lockAll()
	defer unlock()

	log, err := l.load(ctx)
	if err != nil {
		return Plan{}, err
	}
	plan := PlanPocketDeletion(log, pocket.ID, l.now(), l.newID)
	if r, ok := l.log.(store.PocketRetirer); ok {
		if err := r.RetirePocket(ctx, pocket.ID, plan.Deletions, plan.Insertions); err != nil {
			return Plan{}, core.Storage("retire_pocket", err)
		}
		plan.Retired = true
	} else if !plan.Empty() {
		if err := l.log.ApplyBatch(ctx, plan.Deletions, plan.Insertions); err != nil {
			return Plan{}, &core.StorageError{Op: "apply_batch", Err: err}
		}
	}
	if plan.Empty() {
		return plan, nil
	}
	l.invalidate()

	ids := make([]string, 0, len(plan.Deletions)+len(plan.Insertions))
	ids = append(ids, plan.Deletions...)
	for _, t := range plan.Insertions {
		ids = append(ids, t.ID)
	}
	l.publish(ctx, Event{Type: EventReconciled, TransactionIDs: ids, PocketID: pocket.ID})
	return plan, nil
}
