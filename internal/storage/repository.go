package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"pockets/internal/core"

	_ "modernc.org/sqlite"
)

const timeLayout = time.RFC3339Nano

// SQLiteRepository is the durable transaction log and pocket/goal directory.
type SQLiteRepository struct {
	db      *sql.DB
	queries *Queries
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// One writer keeps batch transactions from failing with SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db, queries: New(db)}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Append implements store.Log
func (r *SQLiteRepository) Append(ctx context.Context, t core.Transaction) (core.Transaction, error) {
	if err := t.Validate(); err != nil {
		return core.Transaction{}, err
	}
	err := r.inTx(ctx, func(q *Queries) error {
		if _, err := q.GetTransaction(ctx, t.ID); err == nil {
			return &core.ValidationError{Field: "id", Reason: "duplicate transaction id " + t.ID}
		} else if !errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("check transaction: %w", err)
		}
		if err := q.InsertTransaction(ctx, toRow(t)); err != nil {
			return fmt.Errorf("insert transaction: %w", err)
		}
		return q.BumpVersion(ctx)
	})
	if err != nil {
		return core.Transaction{}, err
	}

	slog.DebugContext(ctx, "Transaction saved to SQLite",
		"id", t.ID,
		"kind", t.Kind,
		"amount_cents", t.Amount.Cents)
	return t, nil
}

// All implements store.Log
func (r *SQLiteRepository) All(ctx context.Context) ([]core.Transaction, error) {
	rows, err := r.queries.ListTransactions(ctx)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	out := make([]core.Transaction, 0, len(rows))
	for _, row := range rows {
		t, err := fromRow(row)
		if err != nil {
			return nil, fmt.Errorf("decode transaction %s: %w", row.ID, err)
		}
		out = append(out, t)
	}
	return out, nil
}

// Update implements store.Log
func (r *SQLiteRepository) Update(ctx context.Context, id string, patch core.Patch, at time.Time) (core.Transaction, error) {
	var updated core.Transaction
	err := r.inTx(ctx, func(q *Queries) error {
		row, err := q.GetTransaction(ctx, id)
		if errors.Is(err, sql.ErrNoRows) {
			return core.NotFound("transaction", id)
		}
		if err != nil {
			return fmt.Errorf("get transaction: %w", err)
		}
		current, err := fromRow(row)
		if err != nil {
			return fmt.Errorf("decode transaction %s: %w", id, err)
		}
		updated = patch.Apply(current)
		updated.UpdatedAt = at
		if err := updated.Validate(); err != nil {
			return err
		}
		if _, err := q.UpdateTransaction(ctx, toRow(updated)); err != nil {
			return fmt.Errorf("update transaction: %w", err)
		}
		return q.BumpVersion(ctx)
	})
	if err != nil {
		return core.Transaction{}, err
	}
	return updated, nil
}

// Remove implements store.Log
func (r *SQLiteRepository) Remove(ctx context.Context, id string) error {
	return r.inTx(ctx, func(q *Queries) error {
		n, err := q.DeleteTransaction(ctx, id)
		if err != nil {
			return fmt.Errorf("delete transaction: %w", err)
		}
		if n == 0 {
			return core.NotFound("transaction", id)
		}
		return q.BumpVersion(ctx)
	})
}

// ApplyBatch implements store.Log. The whole batch runs in one SQL transaction.
func (r *SQLiteRepository) ApplyBatch(ctx context.Context, deletions []string, insertions []core.Transaction) error {
	for _, t := range insertions {
		if err := t.Validate(); err != nil {
			return err
		}
	}
	err := r.inTx(ctx, func(q *Queries) error {
		if err := applyBatch(ctx, q, deletions, insertions); err != nil {
			return err
		}
		return q.BumpVersion(ctx)
	})
	if err != nil {
		return err
	}

	slog.InfoContext(ctx, "Applied transaction batch",
		"deletions", len(deletions),
		"insertions", len(insertions))
	return nil
}

// RetirePocket implements store.PocketRetirer. The batch and the directory
// removal share one SQL transaction.
func (r *SQLiteRepository) RetirePocket(ctx context.Context, pocketID string, deletions []string, insertions []core.Transaction) error {
	for _, t := range insertions {
		if err := t.Validate(); err != nil {
			return err
		}
	}
	err := r.inTx(ctx, func(q *Queries) error {
		row, err := q.GetPocket(ctx, pocketID)
		if errors.Is(err, sql.ErrNoRows) {
			return core.NotFound("pocket", pocketID)
		}
		if err != nil {
			return fmt.Errorf("get pocket: %w", err)
		}
		if core.PocketKind(row.Kind) == core.PocketMain {
			return &core.ValidationError{Field: "pocket_id", Reason: core.ErrMainNotDeletable.Error()}
		}
		if err := applyBatch(ctx, q, deletions, insertions); err != nil {
			return err
		}
		if _, err := q.DeletePocket(ctx, pocketID); err != nil {
			return fmt.Errorf("delete pocket: %w", err)
		}
		return q.BumpVersion(ctx)
	})
	if err != nil {
		return err
	}

	slog.InfoContext(ctx, "Retired pocket",
		"pocket_id", pocketID,
		"deletions", len(deletions),
		"insertions", len(insertions))
	return nil
}

func applyBatch(ctx context.Context, q *Queries, deletions []string, insertions []core.Transaction) error {
	for _, id := range deletions {
		n, err := q.DeleteTransaction(ctx, id)
		if err != nil {
			return fmt.Errorf("delete transaction %s: %w", id, err)
		}
		if n == 0 {
			return core.NotFound("transaction", id)
		}
	}
	for _, t := range insertions {
		if err := q.InsertTransaction(ctx, toRow(t)); err != nil {
			return fmt.Errorf("insert transaction %s: %w", t.ID, err)
		}
	}
	return nil
}

// CreatePocket implements store.PocketDirectory
func (r *SQLiteRepository) CreatePocket(ctx context.Context, p core.Pocket) (core.Pocket, error) {
	if err := p.Validate(); err != nil {
		return core.Pocket{}, err
	}
	err := r.inTx(ctx, func(q *Queries) error {
		if _, err := q.GetPocket(ctx, p.ID); err == nil {
			return &core.ValidationError{Field: "id", Reason: "duplicate pocket id " + p.ID}
		} else if !errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("check pocket: %w", err)
		}
		if p.Kind == core.PocketMain {
			n, err := q.CountMainPockets(ctx)
			if err != nil {
				return fmt.Errorf("count main pockets: %w", err)
			}
			if n > 0 {
				return &core.ValidationError{Field: "kind", Reason: "a main pocket already exists"}
			}
		}
		return q.InsertPocket(ctx, Pocket{ID: p.ID, Name: p.Name, Icon: p.Icon, Color: p.Color, Kind: string(p.Kind)})
	})
	if err != nil {
		return core.Pocket{}, err
	}
	return p, nil
}

// Pocket implements store.PocketDirectory
func (r *SQLiteRepository) Pocket(ctx context.Context, id string) (core.Pocket, error) {
	row, err := r.queries.GetPocket(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Pocket{}, core.NotFound("pocket", id)
	}
	if err != nil {
		return core.Pocket{}, fmt.Errorf("get pocket: %w", err)
	}
	return pocketFromRow(row), nil
}

// ListPockets implements store.PocketDirectory
func (r *SQLiteRepository) ListPockets(ctx context.Context) ([]core.Pocket, error) {
	rows, err := r.queries.ListPockets(ctx)
	if err != nil {
		return nil, fmt.Errorf("list pockets: %w", err)
	}
	out := make([]core.Pocket, 0, len(rows))
	for _, row := range rows {
		out = append(out, pocketFromRow(row))
	}
	return out, nil
}

// RemovePocket implements store.PocketDirectory. The main pocket cannot be removed.
func (r *SQLiteRepository) RemovePocket(ctx context.Context, id string) error {
	p, err := r.Pocket(ctx, id)
	if err != nil {
		return err
	}
	if p.Kind == core.PocketMain {
		return &core.ValidationError{Field: "pocket_id", Reason: core.ErrMainNotDeletable.Error()}
	}
	n, err := r.queries.DeletePocket(ctx, id)
	if err != nil {
		return fmt.Errorf("delete pocket: %w", err)
	}
	if n == 0 {
		return core.NotFound("pocket", id)
	}
	return nil
}

// CreateGoal implements store.GoalDirectory
func (r *SQLiteRepository) CreateGoal(ctx context.Context, g core.Goal) (core.Goal, error) {
	if err := g.Validate(); err != nil {
		return core.Goal{}, err
	}
	if _, err := r.queries.GetGoal(ctx, g.ID); err == nil {
		return core.Goal{}, &core.ValidationError{Field: "id", Reason: "duplicate goal id " + g.ID}
	} else if !errors.Is(err, sql.ErrNoRows) {
		return core.Goal{}, fmt.Errorf("check goal: %w", err)
	}
	row := Goal{
		ID:                g.ID,
		Name:              g.Name,
		TargetAmountCents: g.TargetAmount.Cents,
		DurationMonths:    int64(g.DurationMonths),
		Kind:              string(g.Kind),
	}
	if g.AnnualReturnPercentage != nil {
		row.AnnualReturnPercentage = sql.NullFloat64{Float64: *g.AnnualReturnPercentage, Valid: true}
	}
	if err := r.queries.InsertGoal(ctx, row); err != nil {
		return core.Goal{}, fmt.Errorf("insert goal: %w", err)
	}
	return g, nil
}

// Goal implements store.GoalDirectory
func (r *SQLiteRepository) Goal(ctx context.Context, id string) (core.Goal, error) {
	row, err := r.queries.GetGoal(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Goal{}, core.NotFound("goal", id)
	}
	if err != nil {
		return core.Goal{}, fmt.Errorf("get goal: %w", err)
	}
	return goalFromRow(row), nil
}

// ListGoals implements store.GoalDirectory
func (r *SQLiteRepository) ListGoals(ctx context.Context) ([]core.Goal, error) {
	rows, err := r.queries.ListGoals(ctx)
	if err != nil {
		return nil, fmt.Errorf("list goals: %w", err)
	}
	out := make([]core.Goal, 0, len(rows))
	for _, row := range rows {
		out = append(out, goalFromRow(row))
	}
	return out, nil
}

// RemoveGoal implements store.GoalDirectory
func (r *SQLiteRepository) RemoveGoal(ctx context.Context, id string) error {
	n, err := r.queries.DeleteGoal(ctx, id)
	if err != nil {
		return fmt.Errorf("delete goal: %w", err)
	}
	if n == 0 {
		return core.NotFound("goal", id)
	}
	return nil
}

// PendingMirror reports the current log version and whether the spreadsheet
// mirror is behind it.
func (r *SQLiteRepository) PendingMirror(ctx context.Context) (int64, bool, error) {
	s, err := r.queries.GetMirrorState(ctx)
	if err != nil {
		return 0, false, fmt.Errorf("get mirror state: %w", err)
	}
	return s.Version, s.MirroredVersion < s.Version, nil
}

// MarkMirrored records that the mirror holds the log as of version.
func (r *SQLiteRepository) MarkMirrored(ctx context.Context, version int64) error {
	if err := r.queries.MarkMirrored(ctx, version, time.Now().UTC().Format(timeLayout)); err != nil {
		return fmt.Errorf("mark mirrored: %w", err)
	}
	slog.InfoContext(ctx, "Mirror marked as synced", "version", version)
	return nil
}

// Snapshot returns the log together with the version it was read at.
func (r *SQLiteRepository) Snapshot(ctx context.Context) ([]core.Transaction, int64, error) {
	var (
		log     []core.Transaction
		version int64
	)
	err := r.inTx(ctx, func(q *Queries) error {
		s, err := q.GetMirrorState(ctx)
		if err != nil {
			return fmt.Errorf("get mirror state: %w", err)
		}
		version = s.Version
		rows, err := q.ListTransactions(ctx)
		if err != nil {
			return fmt.Errorf("list transactions: %w", err)
		}
		for _, row := range rows {
			t, err := fromRow(row)
			if err != nil {
				return fmt.Errorf("decode transaction %s: %w", row.ID, err)
			}
			log = append(log, t)
		}
		return nil
	})
	return log, version, err
}

func (r *SQLiteRepository) inTx(ctx context.Context, fn func(q *Queries) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := fn(r.queries.WithTx(tx)); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			slog.ErrorContext(ctx, "Failed to roll back transaction", "error", rbErr)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func toRow(t core.Transaction) Transaction {
	return Transaction{
		ID:                 t.ID,
		Kind:               string(t.Kind),
		AmountCents:        t.Amount.Cents,
		Description:        t.Description,
		Category:           t.Category,
		Date:               t.Date.String(),
		CreatedAt:          t.CreatedAt.UTC().Format(timeLayout),
		UpdatedAt:          t.UpdatedAt.UTC().Format(timeLayout),
		PocketID:           t.PocketID,
		TransferToPocketID: t.TransferToPocketID,
		GoalID:             t.GoalID,
		TransferToGoalID:   t.TransferToGoalID,
		Origin:             string(t.Origin),
	}
}

func fromRow(row Transaction) (core.Transaction, error) {
	date, err := core.ParseDate(row.Date)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("parse date: %w", err)
	}
	created, err := time.Parse(timeLayout, row.CreatedAt)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("parse created_at: %w", err)
	}
	updated, err := time.Parse(timeLayout, row.UpdatedAt)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("parse updated_at: %w", err)
	}
	return core.Transaction{
		ID:                 row.ID,
		Kind:               core.Kind(row.Kind),
		Amount:             core.Money{Cents: row.AmountCents},
		Description:        row.Description,
		Category:           row.Category,
		Date:               date,
		CreatedAt:          created,
		UpdatedAt:          updated,
		PocketID:           row.PocketID,
		TransferToPocketID: row.TransferToPocketID,
		GoalID:             row.GoalID,
		TransferToGoalID:   row.TransferToGoalID,
		Origin:             core.Origin(row.Origin),
	}, nil
}

func pocketFromRow(row Pocket) core.Pocket {
	return core.Pocket{ID: row.ID, Name: row.Name, Icon: row.Icon, Color: row.Color, Kind: core.PocketKind(row.Kind)}
}

func goalFromRow(row Goal) core.Goal {
	g := core.Goal{
		ID:             row.ID,
		Name:           row.Name,
		TargetAmount:   core.Money{Cents: row.TargetAmountCents},
		DurationMonths: int(row.DurationMonths),
		Kind:           core.GoalKind(row.Kind),
	}
	if row.AnnualReturnPercentage.Valid {
		v := row.AnnualReturnPercentage.Float64
		g.AnnualReturnPercentage = &v
	}
	return g
}
