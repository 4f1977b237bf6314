package storage

import (
	"context"
	"database/sql"
)

// DBTX is satisfied by both *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(context.Context, string, ...any) (sql.Result, error)
	QueryContext(context.Context, string, ...any) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...any) *sql.Row
}

// Queries holds the statements used by the repository.
type Queries struct {
	db DBTX
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

func (q *Queries) WithTx(tx *sql.Tx) *Queries {
	return &Queries{db: tx}
}

// Transaction is one row of the transactions table.
type Transaction struct {
	Seq                int64
	ID                 string
	Kind               string
	AmountCents        int64
	Description        string
	Category           string
	Date               string
	CreatedAt          string
	UpdatedAt          string
	PocketID           string
	TransferToPocketID string
	GoalID             string
	TransferToGoalID   string
	Origin             string
}

type Pocket struct {
	ID    string
	Name  string
	Icon  string
	Color string
	Kind  string
}

type Goal struct {
	ID                     string
	Name                   string
	TargetAmountCents      int64
	DurationMonths         int64
	Kind                   string
	AnnualReturnPercentage sql.NullFloat64
}

type MirrorState struct {
	Version         int64
	MirroredVersion int64
	MirroredAt      sql.NullString
}

const transactionColumns = `seq, id, kind, amount_cents, description, category, date, created_at, updated_at,
	pocket_id, transfer_to_pocket_id, goal_id, transfer_to_goal_id, origin`

const insertTransaction = `INSERT INTO transactions (id, kind, amount_cents, description, category, date, created_at, updated_at,
	pocket_id, transfer_to_pocket_id, goal_id, transfer_to_goal_id, origin)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

func (q *Queries) InsertTransaction(ctx context.Context, t Transaction) error {
	_, err := q.db.ExecContext(ctx, insertTransaction,
		t.ID, t.Kind, t.AmountCents, t.Description, t.Category, t.Date, t.CreatedAt, t.UpdatedAt,
		t.PocketID, t.TransferToPocketID, t.GoalID, t.TransferToGoalID, t.Origin)
	return err
}

const listTransactions = `SELECT ` + transactionColumns + ` FROM transactions ORDER BY seq`

func (q *Queries) ListTransactions(ctx context.Context) ([]Transaction, error) {
	rows, err := q.db.QueryContext(ctx, listTransactions)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Transaction
	for rows.Next() {
		var i Transaction
		if err := scanTransaction(rows, &i); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	return items, rows.Err()
}

const getTransaction = `SELECT ` + transactionColumns + ` FROM transactions WHERE id = ?`

func (q *Queries) GetTransaction(ctx context.Context, id string) (Transaction, error) {
	var i Transaction
	err := scanTransaction(q.db.QueryRowContext(ctx, getTransaction, id), &i)
	return i, err
}

const updateTransaction = `UPDATE transactions
SET amount_cents = ?, description = ?, category = ?, date = ?, updated_at = ?
WHERE id = ?`

func (q *Queries) UpdateTransaction(ctx context.Context, t Transaction) (int64, error) {
	res, err := q.db.ExecContext(ctx, updateTransaction, t.AmountCents, t.Description, t.Category, t.Date, t.UpdatedAt, t.ID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const deleteTransaction = `DELETE FROM transactions WHERE id = ?`

func (q *Queries) DeleteTransaction(ctx context.Context, id string) (int64, error) {
	res, err := q.db.ExecContext(ctx, deleteTransaction, id)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const insertPocket = `INSERT INTO pockets (id, name, icon, color, kind) VALUES (?, ?, ?, ?, ?)`

func (q *Queries) InsertPocket(ctx context.Context, p Pocket) error {
	_, err := q.db.ExecContext(ctx, insertPocket, p.ID, p.Name, p.Icon, p.Color, p.Kind)
	return err
}

const getPocket = `SELECT id, name, icon, color, kind FROM pockets WHERE id = ?`

func (q *Queries) GetPocket(ctx context.Context, id string) (Pocket, error) {
	var p Pocket
	err := q.db.QueryRowContext(ctx, getPocket, id).Scan(&p.ID, &p.Name, &p.Icon, &p.Color, &p.Kind)
	return p, err
}

const listPockets = `SELECT id, name, icon, color, kind FROM pockets ORDER BY seq`

func (q *Queries) ListPockets(ctx context.Context) ([]Pocket, error) {
	rows, err := q.db.QueryContext(ctx, listPockets)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Pocket
	for rows.Next() {
		var p Pocket
		if err := rows.Scan(&p.ID, &p.Name, &p.Icon, &p.Color, &p.Kind); err != nil {
			return nil, err
		}
		items = append(items, p)
	}
	return items, rows.Err()
}

const countMainPockets = `SELECT COUNT(*) FROM pockets WHERE kind = 'main'`

func (q *Queries) CountMainPockets(ctx context.Context) (int64, error) {
	var n int64
	err := q.db.QueryRowContext(ctx, countMainPockets).Scan(&n)
	return n, err
}

const deletePocket = `DELETE FROM pockets WHERE id = ?`

func (q *Queries) DeletePocket(ctx context.Context, id string) (int64, error) {
	res, err := q.db.ExecContext(ctx, deletePocket, id)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const insertGoal = `INSERT INTO goals (id, name, target_amount_cents, duration_months, kind, annual_return_percentage)
VALUES (?, ?, ?, ?, ?, ?)`

func (q *Queries) InsertGoal(ctx context.Context, g Goal) error {
	_, err := q.db.ExecContext(ctx, insertGoal, g.ID, g.Name, g.TargetAmountCents, g.DurationMonths, g.Kind, g.AnnualReturnPercentage)
	return err
}

const goalColumns = `id, name, target_amount_cents, duration_months, kind, annual_return_percentage`

const getGoal = `SELECT ` + goalColumns + ` FROM goals WHERE id = ?`

func (q *Queries) GetGoal(ctx context.Context, id string) (Goal, error) {
	var g Goal
	err := q.db.QueryRowContext(ctx, getGoal, id).Scan(&g.ID, &g.Name, &g.TargetAmountCents, &g.DurationMonths, &g.Kind, &g.AnnualReturnPercentage)
	return g, err
}

const listGoals = `SELECT ` + goalColumns + ` FROM goals ORDER BY seq`

func (q *Queries) ListGoals(ctx context.Context) ([]Goal, error) {
	rows, err := q.db.QueryContext(ctx, listGoals)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Goal
	for rows.Next() {
		var g Goal
		if err := rows.Scan(&g.ID, &g.Name, &g.TargetAmountCents, &g.DurationMonths, &g.Kind, &g.AnnualReturnPercentage); err != nil {
			return nil, err
		}
		items = append(items, g)
	}
	return items, rows.Err()
}

const deleteGoal = `DELETE FROM goals WHERE id = ?`

func (q *Queries) DeleteGoal(ctx context.Context, id string) (int64, error) {
	res, err := q.db.ExecContext(ctx, deleteGoal, id)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const bumpVersion = `UPDATE mirror_state SET version = version + 1 WHERE id = 1`

func (q *Queries) BumpVersion(ctx context.Context) error {
	_, err := q.db.ExecContext(ctx, bumpVersion)
	return err
}

const getMirrorState = `SELECT version, mirrored_version, mirrored_at FROM mirror_state WHERE id = 1`

func (q *Queries) GetMirrorState(ctx context.Context) (MirrorState, error) {
	var s MirrorState
	err := q.db.QueryRowContext(ctx, getMirrorState).Scan(&s.Version, &s.MirroredVersion, &s.MirroredAt)
	return s, err
}

const markMirrored = `UPDATE mirror_state SET mirrored_version = MAX(mirrored_version, ?), mirrored_at = ? WHERE id = 1`

func (q *Queries) MarkMirrored(ctx context.Context, version int64, at string) error {
	_, err := q.db.ExecContext(ctx, markMirrored, version, at)
	return err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanTransaction(s scanner, i *Transaction) error {
	return s.Scan(
		&i.Seq, &i.ID, &i.Kind, &i.AmountCents, &i.Description, &i.Category, &i.Date, &i.CreatedAt, &i.UpdatedAt,
		&i.PocketID, &i.TransferToPocketID, &i.GoalID, &i.TransferToGoalID, &i.Origin,
	)
}
