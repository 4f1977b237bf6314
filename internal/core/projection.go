package core

// Projections are pure folds over the full log. They keep no state between calls.

// PocketBalances folds every record into a balance per pocket. Goal income lives
// in the goal and does not touch any pocket.
func PocketBalances(log []Transaction) map[string]Money {
	out := make(map[string]Money)
	for _, t := range log {
		switch t.Shape() {
		case ShapePocketIncome:
			out[t.PocketID] = out[t.PocketID].Add(t.Amount)
		case ShapeGoalIncome:
		case ShapePocketExpense:
			out[t.PocketID] = out[t.PocketID].Sub(t.Amount)
		case ShapePocketTransfer:
			out[t.PocketID] = out[t.PocketID].Sub(t.Amount)
			out[t.TransferToPocketID] = out[t.TransferToPocketID].Add(t.Amount)
		case ShapeGoalAllocation:
			out[t.PocketID] = out[t.PocketID].Sub(t.Amount)
		case ShapeGoalWithdrawal:
			out[t.TransferToPocketID] = out[t.TransferToPocketID].Add(t.Amount)
		case ShapeInvalid:
		}
	}
	return out
}

// GoalBalances is the available balance of every goal: income funding it plus
// allocations in, minus withdrawals out.
func GoalBalances(log []Transaction) map[string]Money {
	out := make(map[string]Money)
	for _, t := range log {
		switch t.Shape() {
		case ShapeGoalIncome:
			out[t.GoalID] = out[t.GoalID].Add(t.Amount)
		case ShapeGoalAllocation:
			out[t.TransferToGoalID] = out[t.TransferToGoalID].Add(t.Amount)
		case ShapeGoalWithdrawal:
			out[t.GoalID] = out[t.GoalID].Sub(t.Amount)
		case ShapePocketIncome, ShapePocketExpense, ShapePocketTransfer, ShapeInvalid:
		}
	}
	return out
}

// GoalFunding counts only income entries tagged with a goal: the lifetime amount
// a goal was funded by income, regardless of allocations and withdrawals.
func GoalFunding(log []Transaction) map[string]Money {
	out := make(map[string]Money)
	for _, t := range log {
		if t.Shape() == ShapeGoalIncome {
			out[t.GoalID] = out[t.GoalID].Add(t.Amount)
		}
	}
	return out
}

// GoalAvailable is the single-goal fold the withdrawal guard decides on.
func GoalAvailable(log []Transaction, goalID string) Money {
	var bal Money
	for _, t := range log {
		switch t.Shape() {
		case ShapeGoalIncome:
			if t.GoalID == goalID {
				bal = bal.Add(t.Amount)
			}
		case ShapeGoalAllocation:
			if t.TransferToGoalID == goalID {
				bal = bal.Add(t.Amount)
			}
		case ShapeGoalWithdrawal:
			if t.GoalID == goalID {
				bal = bal.Sub(t.Amount)
			}
		case ShapePocketIncome, ShapePocketExpense, ShapePocketTransfer, ShapeInvalid:
		}
	}
	return bal
}

// KeepPockets narrows balances to the given pockets, each present even when
// it has no records. A deleted pocket can still be named by goal allocations
// and withdrawals left in the log; this drops its leftover entry.
func KeepPockets(balances map[string]Money, pockets []Pocket) map[string]Money {
	out := make(map[string]Money, len(pockets))
	for _, p := range pockets {
		out[p.ID] = balances[p.ID]
	}
	return out
}

// TotalValue sums balances, skipping the excluded ids.
func TotalValue(balances map[string]Money, exclude ...string) Money {
	skip := make(map[string]struct{}, len(exclude))
	for _, id := range exclude {
		skip[id] = struct{}{}
	}
	var total Money
	for id, m := range balances {
		if _, ok := skip[id]; ok {
			continue
		}
		total = total.Add(m)
	}
	return total
}
