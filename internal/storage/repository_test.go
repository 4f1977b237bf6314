package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"pockets/internal/core"
)

func newTestRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	repo, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "data", "pockets.db"))
	if err != nil {
		t.Fatalf("open repository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func record(id string, kind core.Kind, pocket string, cents int64) core.Transaction {
	at := time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)
	return core.Transaction{
		ID:        id,
		Kind:      kind,
		Amount:    core.Money{Cents: cents},
		Date:      core.NewDate(2025, 3, 1),
		CreatedAt: at,
		UpdatedAt: at,
		PocketID:  pocket,
	}
}

func TestRepositoryLogRoundTrip(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	in := record("a", core.Income, "main", 1000)
	in.Description = "salary"
	in.Category = "work"
	if _, err := repo.Append(ctx, in); err != nil {
		t.Fatalf("append: %v", err)
	}
	tr := record("b", core.Transfer, "main", 400)
	tr.TransferToPocketID = "fun"
	if _, err := repo.Append(ctx, tr); err != nil {
		t.Fatalf("append transfer: %v", err)
	}
	if _, err := repo.Append(ctx, in); !errors.Is(err, core.ErrValidation) {
		t.Fatalf("expected duplicate rejection, got %v", err)
	}

	all, err := repo.All(ctx)
	if err != nil {
		t.Fatalf("all: %v", err)
	}
	if len(all) != 2 || all[0].ID != "a" || all[1].ID != "b" {
		t.Fatalf("unexpected log: %+v", all)
	}
	got := all[0]
	if got.Description != "salary" || got.Category != "work" || got.Date.String() != "2025-03-01" || !got.CreatedAt.Equal(in.CreatedAt) {
		t.Fatalf("fields lost in round trip: %+v", got)
	}
	if all[1].TransferToPocketID != "fun" {
		t.Fatalf("transfer destination lost: %+v", all[1])
	}
}

func TestRepositoryUpdateAndRemove(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	if _, err := repo.Append(ctx, record("a", core.Expense, "main", 500)); err != nil {
		t.Fatalf("append: %v", err)
	}

	amount := core.Money{Cents: 750}
	desc := "groceries"
	at := time.Date(2025, 3, 2, 9, 0, 0, 0, time.UTC)
	updated, err := repo.Update(ctx, "a", core.Patch{Amount: &amount, Description: &desc}, at)
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Amount.Cents != 750 || updated.Description != "groceries" || !updated.UpdatedAt.Equal(at) {
		t.Fatalf("unexpected update: %+v", updated)
	}
	all, _ := repo.All(ctx)
	if all[0].Amount.Cents != 750 || all[0].Kind != core.Expense {
		t.Fatalf("update not persisted: %+v", all[0])
	}

	if _, err := repo.Update(ctx, "missing", core.Patch{Description: &desc}, at); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	zero := core.Money{}
	if _, err := repo.Update(ctx, "a", core.Patch{Amount: &zero}, at); !errors.Is(err, core.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}

	if err := repo.Remove(ctx, "a"); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if err := repo.Remove(ctx, "a"); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestRepositoryApplyBatchIsAtomic(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	for _, tx := range []core.Transaction{
		record("a", core.Income, "p", 100),
		record("b", core.Expense, "p", 40),
	} {
		if _, err := repo.Append(ctx, tx); err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	err := repo.ApplyBatch(ctx, []string{"a", "missing"}, []core.Transaction{record("c", core.Income, "q", 100)})
	if !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	all, _ := repo.All(ctx)
	if len(all) != 2 {
		t.Fatalf("failed batch changed the log: %+v", all)
	}

	comp := record("c", core.Income, "q", 100)
	comp.Origin = core.OriginDeletedPocket
	if err := repo.ApplyBatch(ctx, []string{"a", "b"}, []core.Transaction{comp}); err != nil {
		t.Fatalf("apply: %v", err)
	}
	all, _ = repo.All(ctx)
	if len(all) != 1 || all[0].ID != "c" || all[0].Origin != core.OriginDeletedPocket {
		t.Fatalf("unexpected log after batch: %+v", all)
	}
}

func TestRepositoryRetirePocketIsAtomic(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	for _, p := range []core.Pocket{
		{ID: "main", Name: "Main", Kind: core.PocketMain},
		{ID: "p", Name: "Trip", Kind: core.PocketSaving},
	} {
		if _, err := repo.CreatePocket(ctx, p); err != nil {
			t.Fatalf("create %s: %v", p.ID, err)
		}
	}
	if _, err := repo.Append(ctx, record("a", core.Income, "p", 100)); err != nil {
		t.Fatalf("append: %v", err)
	}

	tests := []struct {
		name      string
		pocket    string
		deletions []string
		want      error
	}{
		{"unknown record", "p", []string{"missing"}, core.ErrNotFound},
		{"unknown pocket", "nope", []string{"a"}, core.ErrNotFound},
		{"main pocket", "main", nil, core.ErrValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := repo.RetirePocket(ctx, tt.pocket, tt.deletions, nil)
			if !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
			if _, err := repo.Pocket(ctx, "p"); err != nil {
				t.Fatalf("pocket removed by a failed retire: %v", err)
			}
			if all, _ := repo.All(ctx); len(all) != 1 {
				t.Fatalf("failed retire changed the log: %+v", all)
			}
		})
	}

	if err := repo.RetirePocket(ctx, "p", []string{"a"}, nil); err != nil {
		t.Fatalf("retire: %v", err)
	}
	if _, err := repo.Pocket(ctx, "p"); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected pocket gone, got %v", err)
	}
	if all, _ := repo.All(ctx); len(all) != 0 {
		t.Fatalf("log after retire: %+v", all)
	}
}

func TestRepositoryDirectory(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	if _, err := repo.CreatePocket(ctx, core.Pocket{ID: "main", Name: "Main", Kind: core.PocketMain}); err != nil {
		t.Fatalf("create main: %v", err)
	}
	if _, err := repo.CreatePocket(ctx, core.Pocket{ID: "other", Name: "Other", Kind: core.PocketMain}); !errors.Is(err, core.ErrValidation) {
		t.Fatalf("expected second main rejection, got %v", err)
	}
	if _, err := repo.CreatePocket(ctx, core.Pocket{ID: "fun", Name: "Fun", Icon: "🎉", Kind: core.PocketSpending}); err != nil {
		t.Fatalf("create pocket: %v", err)
	}
	pockets, err := repo.ListPockets(ctx)
	if err != nil || len(pockets) != 2 || pockets[1].Icon != "🎉" {
		t.Fatalf("pockets = %+v err=%v", pockets, err)
	}
	if err := repo.RemovePocket(ctx, "main"); !errors.Is(err, core.ErrValidation) {
		t.Fatalf("expected main removal rejection, got %v", err)
	}
	if err := repo.RemovePocket(ctx, "fun"); err != nil {
		t.Fatalf("remove pocket: %v", err)
	}
	if _, err := repo.Pocket(ctx, "fun"); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}

	ret := 7.5
	g := core.Goal{ID: "house", Name: "House", TargetAmount: core.Money{Cents: 100000}, DurationMonths: 24, Kind: core.GoalInvestment, AnnualReturnPercentage: &ret}
	if _, err := repo.CreateGoal(ctx, g); err != nil {
		t.Fatalf("create goal: %v", err)
	}
	got, err := repo.Goal(ctx, "house")
	if err != nil || got.AnnualReturnPercentage == nil || *got.AnnualReturnPercentage != 7.5 || got.DurationMonths != 24 {
		t.Fatalf("goal = %+v err=%v", got, err)
	}
	if err := repo.RemoveGoal(ctx, "house"); err != nil {
		t.Fatalf("remove goal: %v", err)
	}
	goals, _ := repo.ListGoals(ctx)
	if len(goals) != 0 {
		t.Fatalf("goals = %+v", goals)
	}
}

func TestRepositoryMirrorVersion(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	if _, pending, err := repo.PendingMirror(ctx); err != nil || pending {
		t.Fatalf("fresh database pending=%v err=%v", pending, err)
	}
	if _, err := repo.Append(ctx, record("a", core.Income, "p", 100)); err != nil {
		t.Fatalf("append: %v", err)
	}
	log, version, err := repo.Snapshot(ctx)
	if err != nil || len(log) != 1 || version != 1 {
		t.Fatalf("snapshot = %d records v%d err=%v", len(log), version, err)
	}
	if _, pending, _ := repo.PendingMirror(ctx); !pending {
		t.Fatal("expected pending mirror after append")
	}
	if err := repo.MarkMirrored(ctx, version); err != nil {
		t.Fatalf("mark: %v", err)
	}
	if _, pending, _ := repo.PendingMirror(ctx); pending {
		t.Fatal("mirror still pending after mark")
	}
}
