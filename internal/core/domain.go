package core

import (
	"errors"
	"strings"
	"time"
)

const (
	Income   Kind = "income"
	Expense  Kind = "expense"
	Transfer Kind = "transfer"
)

const (
	PocketMain       PocketKind = "main"
	PocketSpending   PocketKind = "spending"
	PocketSaving     PocketKind = "saving"
	PocketInvestment PocketKind = "investment"
)

const (
	GoalSaving     GoalKind = "saving"
	GoalInvestment GoalKind = "investment"
)

// Origins tag records generated by pocket reconciliation.
const (
	OriginUser             Origin = ""
	OriginDeletedPocket    Origin = "deleted_pocket"
	OriginRevertedTransfer Origin = "reverted_transfer"
)

type (
	Kind       string
	PocketKind string
	GoalKind   string
	Origin     string

	Date struct {
		time.Time
	}

	Money struct {
		Cents int64
	}

	// Transaction is the only persisted fact of the ledger.
	Transaction struct {
		ID          string
		Kind        Kind
		Amount      Money
		Description string
		Category    string
		Date        Date
		CreatedAt   time.Time
		UpdatedAt   time.Time

		PocketID           string
		TransferToPocketID string
		GoalID             string
		TransferToGoalID   string

		Origin Origin
	}

	// Patch carries the editable fields of a transaction. Nil fields are left alone.
	Patch struct {
		Amount      *Money
		Description *string
		Category    *string
		Date        *Date
	}

	Pocket struct {
		ID    string
		Name  string
		Icon  string
		Color string
		Kind  PocketKind
	}

	Goal struct {
		ID                     string
		Name                   string
		TargetAmount           Money
		DurationMonths         int
		Kind                   GoalKind
		AnnualReturnPercentage *float64
	}
)

var (
	ErrZeroDate         = errors.New("date cannot be zero")
	ErrInvalidMonth     = errors.New("invalid month")
	ErrInvalidAmount    = errors.New("invalid amount")
	ErrEmptyName        = errors.New("empty name")
	ErrMainNotDeletable = errors.New("main pocket cannot be deleted")
)

func (k Kind) IsValid() bool {
	switch k {
	case Income, Expense, Transfer:
		return true
	}
	return false
}

func (k PocketKind) IsValid() bool {
	switch k {
	case PocketMain, PocketSpending, PocketSaving, PocketInvestment:
		return true
	}
	return false
}

func (k GoalKind) IsValid() bool {
	switch k {
	case GoalSaving, GoalInvestment:
		return true
	}
	return false
}

// Validate rejects the zero date. Out-of-range days and months cannot occur:
// NewDate and ParseDate normalize or reject them.
func (d Date) Validate() error {
	if d.IsZero() {
		return ErrZeroDate
	}
	return nil
}

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates t to its calendar day in t's location.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return NewDate(y, int(m), d)
}

// After reports whether d is a later calendar day than other.
func (d Date) After(other Date) bool {
	return d.Time.After(other.Time)
}

// String formats the date as YYYY-MM-DD.
func (d Date) String() string {
	return d.Format("2006-01-02")
}

// ParseDate parses a date string in YYYY-MM-DD format.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse("2006-01-02", strings.TrimSpace(s))
	if err != nil {
		return Date{}, err
	}
	return Date{Time: t}, nil
}

func (m Money) Validate() error {
	if m.Cents <= 0 {
		return ErrInvalidAmount
	}
	return nil
}

func (m Money) Add(n Money) Money { return Money{Cents: m.Cents + n.Cents} }
func (m Money) Sub(n Money) Money { return Money{Cents: m.Cents - n.Cents} }

// Shape classifies a transaction by kind and direction fields. It is the closed
// union every fold switches over.
type Shape int

const (
	ShapeInvalid Shape = iota
	ShapePocketIncome
	ShapeGoalIncome
	ShapePocketExpense
	ShapePocketTransfer
	ShapeGoalAllocation
	ShapeGoalWithdrawal
)

func (s Shape) String() string {
	switch s {
	case ShapePocketIncome:
		return "pocket_income"
	case ShapeGoalIncome:
		return "goal_income"
	case ShapePocketExpense:
		return "pocket_expense"
	case ShapePocketTransfer:
		return "pocket_transfer"
	case ShapeGoalAllocation:
		return "goal_allocation"
	case ShapeGoalWithdrawal:
		return "goal_withdrawal"
	default:
		return "invalid"
	}
}

// Shape returns the shape of t, or ShapeInvalid when the direction fields do not
// match any allowed combination for its kind.
func (t Transaction) Shape() Shape {
	toPocket := t.TransferToPocketID != ""
	goal := t.GoalID != ""
	toGoal := t.TransferToGoalID != ""

	switch t.Kind {
	case Income:
		switch {
		case toPocket || toGoal:
			return ShapeInvalid
		case goal:
			return ShapeGoalIncome
		case t.PocketID != "":
			return ShapePocketIncome
		}
	case Expense:
		if toPocket || goal || toGoal || t.PocketID == "" {
			return ShapeInvalid
		}
		return ShapePocketExpense
	case Transfer:
		switch {
		case toGoal && !toPocket && !goal:
			if t.PocketID == "" {
				return ShapeInvalid
			}
			return ShapeGoalAllocation
		case goal && toPocket && !toGoal:
			return ShapeGoalWithdrawal
		case toPocket && !goal && !toGoal:
			if t.PocketID == "" || t.PocketID == t.TransferToPocketID {
				return ShapeInvalid
			}
			return ShapePocketTransfer
		}
	}
	return ShapeInvalid
}

// Validate checks the record's shape. Business rules such as sufficiency belong
// to the ledger.
func (t Transaction) Validate() error {
	if !t.Kind.IsValid() {
		return &ValidationError{Field: "kind", Reason: "unknown transaction kind " + string(t.Kind)}
	}
	if err := t.Amount.Validate(); err != nil {
		return &ValidationError{Field: "amount", Reason: "amount must be positive"}
	}
	if err := t.Date.Validate(); err != nil {
		return &ValidationError{Field: "date", Reason: err.Error()}
	}
	if t.Kind == Expense && t.GoalID != "" {
		return &ValidationError{Field: "goal_id", Reason: "goals accept income only"}
	}
	if t.Shape() == ShapeInvalid {
		return &ValidationError{Field: "kind", Reason: "direction fields do not match a " + string(t.Kind) + " entry"}
	}
	if len(t.Description) > 200 {
		return &ValidationError{Field: "description", Reason: "description too long (max 200 characters)"}
	}
	return nil
}

func (p Pocket) Validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return &ValidationError{Field: "name", Reason: ErrEmptyName.Error()}
	}
	if !p.Kind.IsValid() {
		return &ValidationError{Field: "kind", Reason: "unknown pocket kind " + string(p.Kind)}
	}
	return nil
}

func (g Goal) Validate() error {
	if strings.TrimSpace(g.Name) == "" {
		return &ValidationError{Field: "name", Reason: ErrEmptyName.Error()}
	}
	if !g.Kind.IsValid() {
		return &ValidationError{Field: "kind", Reason: "unknown goal kind " + string(g.Kind)}
	}
	if err := g.TargetAmount.Validate(); err != nil {
		return &ValidationError{Field: "target_amount", Reason: "target amount must be positive"}
	}
	if g.DurationMonths < 1 {
		return &ValidationError{Field: "duration_months", Reason: "duration must be at least one month"}
	}
	if g.AnnualReturnPercentage != nil && *g.AnnualReturnPercentage < 0 {
		return &ValidationError{Field: "annual_return_percentage", Reason: "annual return cannot be negative"}
	}
	return nil
}

// Apply returns a copy of t with the patch's non-nil fields set.
func (p Patch) Apply(t Transaction) Transaction {
	if p.Amount != nil {
		t.Amount = *p.Amount
	}
	if p.Description != nil {
		t.Description = *p.Description
	}
	if p.Category != nil {
		t.Category = *p.Category
	}
	if p.Date != nil {
		t.Date = *p.Date
	}
	return t
}
