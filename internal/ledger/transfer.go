package ledger

import (
	"context"

	"pockets/internal/core"
	applog "pockets/internal/log"
)

// TransferRequest carries the optional free-text parts of a transfer.
type TransferRequest struct {
	Amount      core.Money
	Description string
	Category    string
	Date        core.Date
}

func (r TransferRequest) record() core.Transaction {
	return core.Transaction{
		Kind:        core.Transfer,
		Amount:      r.Amount,
		Description: r.Description,
		Category:    r.Category,
		Date:        r.Date,
	}
}

// TransferBetweenPockets moves money from one pocket to another.
func (l *Ledger) TransferBetweenPockets(ctx context.Context, from, to string, req TransferRequest) (core.Transaction, error) {
	t, err := l.transferBetweenPockets(ctx, from, to, req)
	l.logger.Op(ctx, applog.OpTransfer, err, fields(t).WithPocket(from, to).WithTransaction(t.ID, string(core.Transfer), req.Amount.Cents))
	return t, err
}

func (l *Ledger) transferBetweenPockets(ctx context.Context, from, to string, req TransferRequest) (core.Transaction, error) {
	if err := requirePositive(req.Amount); err != nil {
		return core.Transaction{}, err
	}
	if from == "" || to == "" {
		return core.Transaction{}, &core.ValidationError{Field: "pocket_id", Reason: "source and destination pockets are required"}
	}
	if from == to {
		return core.Transaction{}, &core.ValidationError{Field: "transfer_to_pocket_id", Reason: "cannot transfer to the same pocket"}
	}

	t := req.record()
	t.PocketID = from
	t.TransferToPocketID = to
	t = l.stamp(t)
	if err := t.Validate(); err != nil {
		return core.Transaction{}, err
	}

	unlock := l.locks.lock(pocketKey(from), pocketKey(to))
	defer unlock()
	return l.append(ctx, applog.OpTransfer, t)
}

// AllocateToGoal moves money from a pocket into a goal.
func (l *Ledger) AllocateToGoal(ctx context.Context, fromPocket, toGoal string, req TransferRequest) (core.Transaction, error) {
	t, err := l.allocateToGoal(ctx, fromPocket, toGoal, req)
	l.logger.Op(ctx, applog.OpAllocate, err, fields(t).WithPocket(fromPocket, "").WithGoal(toGoal).WithTransaction(t.ID, string(core.Transfer), req.Amount.Cents))
	return t, err
}

func (l *Ledger) allocateToGoal(ctx context.Context, fromPocket, toGoal string, req TransferRequest) (core.Transaction, error) {
	if err := requirePositive(req.Amount); err != nil {
		return core.Transaction{}, err
	}
	if fromPocket == "" || toGoal == "" {
		return core.Transaction{}, &core.ValidationError{Field: "transfer_to_goal_id", Reason: "source pocket and destination goal are required"}
	}

	t := req.record()
	t.PocketID = fromPocket
	t.TransferToGoalID = toGoal
	t = l.stamp(t)
	if err := t.Validate(); err != nil {
		return core.Transaction{}, err
	}

	unlock := l.locks.lock(pocketKey(fromPocket), goalKey(toGoal))
	defer unlock()
	return l.append(ctx, applog.OpAllocate, t)
}

// WithdrawFromGoal pays money from a goal out to a pocket. The amount may not
// exceed what the goal holds: income funding it plus allocations in, minus
// earlier withdrawals.
func (l *Ledger) WithdrawFromGoal(ctx context.Context, fromGoal, toPocket string, req TransferRequest) (core.Transaction, error) {
	t, err := l.withdrawFromGoal(ctx, fromGoal, toPocket, req)
	l.logger.Op(ctx, applog.OpWithdraw, err, fields(t).WithPocket("", toPocket).WithGoal(fromGoal).WithTransaction(t.ID, string(core.Transfer), req.Amount.Cents))
	return t, err
}

func (l *Ledger) withdrawFromGoal(ctx context.Context, fromGoal, toPocket string, req TransferRequest) (core.Transaction, error) {
	if err := requirePositive(req.Amount); err != nil {
		return core.Transaction{}, err
	}
	if fromGoal == "" || toPocket == "" {
		return core.Transaction{}, &core.ValidationError{Field: "goal_id", Reason: "source goal and destination pocket are required"}
	}

	unlock := l.locks.lock(goalKey(fromGoal), pocketKey(toPocket))
	defer unlock()

	log, err := l.load(ctx)
	if err != nil {
		return core.Transaction{}, err
	}
	if err := checkGoalAvailable(log, fromGoal, req.Amount); err != nil {
		return core.Transaction{}, err
	}

	t := req.record()
	t.GoalID = fromGoal
	t.TransferToPocketID = toPocket
	t.PocketID = toPocket
	t = l.stamp(t)
	if err := t.Validate(); err != nil {
		return core.Transaction{}, err
	}
	return l.append(ctx, applog.OpWithdraw, t)
}
