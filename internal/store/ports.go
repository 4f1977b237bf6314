// Package store defines the persistence boundary of the ledger.
package store

import (
	"context"
	"time"

	"pockets/internal/core"
)

// Ports for outbound adapters.
type (
	// Log is the transaction log. It checks record shape only; business rules
	// belong to the ledger.
	Log interface {
		Append(ctx context.Context, t core.Transaction) (core.Transaction, error)
		// All returns every record in creation order.
		All(ctx context.Context) ([]core.Transaction, error)
		// Update returns core.ErrNotFound for unknown ids. ID and CreatedAt are kept.
		Update(ctx context.Context, id string, patch core.Patch, at time.Time) (core.Transaction, error)
		Remove(ctx context.Context, id string) error
		// ApplyBatch removes and inserts records in one all-or-nothing step.
		ApplyBatch(ctx context.Context, deletions []string, insertions []core.Transaction) error
	}

	// PocketRetirer is a Log that shares storage with the pocket directory.
	// RetirePocket applies a reconciliation batch and removes the pocket in one
	// all-or-nothing step.
	PocketRetirer interface {
		RetirePocket(ctx context.Context, pocketID string, deletions []string, insertions []core.Transaction) error
	}

	// Snapshotter is a whole-log transport: it can only load and replace the
	// entire log.
	Snapshotter interface {
		Load(ctx context.Context) ([]core.Transaction, error)
		SaveAll(ctx context.Context, log []core.Transaction) error
	}

	PocketDirectory interface {
		CreatePocket(ctx context.Context, p core.Pocket) (core.Pocket, error)
		Pocket(ctx context.Context, id string) (core.Pocket, error)
		ListPockets(ctx context.Context) ([]core.Pocket, error)
		RemovePocket(ctx context.Context, id string) error
	}

	GoalDirectory interface {
		CreateGoal(ctx context.Context, g core.Goal) (core.Goal, error)
		Goal(ctx context.Context, id string) (core.Goal, error)
		ListGoals(ctx context.Context) ([]core.Goal, error)
		RemoveGoal(ctx context.Context, id string) error
	}

	Directory interface {
		PocketDirectory
		GoalDirectory
	}
)
