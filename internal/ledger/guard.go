package ledger

import (
	"time"

	"pockets/internal/core"
)

// ClampDate rewrites dates after today to today. A zero date also means today.
func ClampDate(d core.Date, now time.Time) core.Date {
	today := core.DateOf(now)
	if d.IsZero() || d.After(today) {
		return today
	}
	return core.DateOf(d.Time)
}

func requirePositive(amount core.Money) error {
	if amount.Cents <= 0 {
		return &core.ValidationError{Field: "amount", Reason: "amount must be positive"}
	}
	return nil
}

// checkSufficiency rejects spending more than the pocket holds in log.
func checkSufficiency(log []core.Transaction, pocketID string, amount core.Money) error {
	current := core.PocketBalances(log)[pocketID]
	if amount.Cents > current.Cents {
		return &core.InsufficientBalanceError{Current: current, Requested: amount}
	}
	return nil
}

// checkGoalAvailable rejects withdrawing more than the goal holds in log.
func checkGoalAvailable(log []core.Transaction, goalID string, amount core.Money) error {
	available := core.GoalAvailable(log, goalID)
	if amount.Cents > available.Cents {
		return &core.InsufficientBalanceError{Current: available, Requested: amount, Goal: true}
	}
	return nil
}

// checkGoalNotOverdrawn rejects an edit of history that would leave goalID
// holding less than nothing. before and after are the log around the edit.
func checkGoalNotOverdrawn(before, after []core.Transaction, goalID string) error {
	if goalID == "" {
		return nil
	}
	left := core.GoalAvailable(after, goalID)
	if left.Cents >= 0 {
		return nil
	}
	current := core.GoalAvailable(before, goalID)
	return &core.InsufficientBalanceError{Current: current, Requested: current.Sub(left), Goal: true}
}
