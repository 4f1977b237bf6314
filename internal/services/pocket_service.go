package services

import (
	"context"
	"errors"
	"fmt"

	"pockets/internal/core"
	"pockets/internal/ledger"
	applog "pockets/internal/log"
	"pockets/internal/store"
)

// ErrPocketLimit is returned when the entitlement collaborator refuses another pocket.
var ErrPocketLimit = errors.New("pocket limit reached")

// Entitlement decides whether the user may create another pocket.
type Entitlement interface {
	MayCreatePocket(count int) bool
}

// PocketLimit allows up to n pockets, the main pocket included. Zero or less
// means unlimited.
type PocketLimit int

func (n PocketLimit) MayCreatePocket(count int) bool {
	return n <= 0 || count < int(n)
}

// PocketView is a pocket with its projected balance.
type PocketView struct {
	core.Pocket
	Balance core.Money
}

// GoalView is a goal with its available balance and lifetime income funding.
type GoalView struct {
	core.Goal
	Balance core.Money
	Funded  core.Money
}

// Progress is the available balance as a percentage of the target.
func (g GoalView) Progress() float64 {
	if g.TargetAmount.Cents <= 0 {
		return 0
	}
	return float64(g.Balance.Cents) * 100 / float64(g.TargetAmount.Cents)
}

// MonthlyContribution is what must be added each month over the goal's duration
// to reach the target from the current balance, rounded up.
func (g GoalView) MonthlyContribution() core.Money {
	remaining := g.TargetAmount.Cents - g.Balance.Cents
	if remaining <= 0 || g.DurationMonths < 1 {
		return core.Money{}
	}
	months := int64(g.DurationMonths)
	return core.Money{Cents: (remaining + months - 1) / months}
}

type Options struct {
	Entitlement    Entitlement
	MainPocketName string
	NewID          func() string
	Logger         *applog.Logger
}

// PocketService checks directory membership around ledger operations: money
// only moves between pockets and goals that exist.
type PocketService struct {
	ledger      *ledger.Ledger
	dir         store.Directory
	entitlement Entitlement
	mainName    string
	newID       func() string
	logger      *applog.Logger
}

func NewPocketService(l *ledger.Ledger, dir store.Directory, opts Options) *PocketService {
	s := &PocketService{
		ledger:      l,
		dir:         dir,
		entitlement: opts.Entitlement,
		mainName:    opts.MainPocketName,
		newID:       opts.NewID,
		logger:      opts.Logger,
	}
	if s.entitlement == nil {
		s.entitlement = PocketLimit(0)
	}
	if s.mainName == "" {
		s.mainName = "Main"
	}
	if s.newID == nil {
		s.newID = ledger.NewID
	}
	if s.logger == nil {
		s.logger = applog.Discard()
	}
	return s
}

// Ledger exposes the underlying engine for reads and record edits.
func (s *PocketService) Ledger() *ledger.Ledger { return s.ledger }

// EnsureMainPocket returns the main pocket, creating it on first start.
func (s *PocketService) EnsureMainPocket(ctx context.Context) (core.Pocket, error) {
	pockets, err := s.dir.ListPockets(ctx)
	if err != nil {
		return core.Pocket{}, core.Storage("list pockets", err)
	}
	for _, p := range pockets {
		if p.Kind == core.PocketMain {
			return p, nil
		}
	}
	main, err := s.dir.CreatePocket(ctx, core.Pocket{ID: s.newID(), Name: s.mainName, Kind: core.PocketMain})
	if err != nil {
		return core.Pocket{}, core.Storage("create main pocket", err)
	}
	s.logger.InfoContext(ctx, "Main pocket created", applog.FieldPocketID, main.ID)
	return main, nil
}

// CreatePocket adds a non-main pocket when the entitlement allows it.
func (s *PocketService) CreatePocket(ctx context.Context, p core.Pocket) (core.Pocket, error) {
	if p.Kind == core.PocketMain {
		return core.Pocket{}, &core.ValidationError{Field: "kind", Reason: "the main pocket is created automatically"}
	}
	if err := p.Validate(); err != nil {
		return core.Pocket{}, err
	}
	pockets, err := s.dir.ListPockets(ctx)
	if err != nil {
		return core.Pocket{}, core.Storage("list pockets", err)
	}
	if !s.entitlement.MayCreatePocket(len(pockets)) {
		return core.Pocket{}, fmt.Errorf("create pocket %q: %w", p.Name, ErrPocketLimit)
	}
	if p.ID == "" {
		p.ID = s.newID()
	}
	created, err := s.dir.CreatePocket(ctx, p)
	if err != nil {
		return core.Pocket{}, core.Storage("create pocket", err)
	}
	return created, nil
}

// DeletePocket reconciles the log for the pocket, then drops it from the
// directory unless the log already did so atomically. The main pocket is
// refused.
func (s *PocketService) DeletePocket(ctx context.Context, id string) (ledger.Plan, error) {
	p, err := s.dir.Pocket(ctx, id)
	if err != nil {
		return ledger.Plan{}, core.Storage("get pocket", err)
	}
	plan, err := s.ledger.DeletePocket(ctx, p)
	if err != nil {
		return ledger.Plan{}, err
	}
	if plan.Retired {
		return plan, nil
	}
	if err := s.dir.RemovePocket(ctx, id); err != nil {
		return plan, core.Storage("remove pocket", err)
	}
	return plan, nil
}

// ListPockets returns every pocket with its balance.
func (s *PocketService) ListPockets(ctx context.Context) ([]PocketView, error) {
	pockets, err := s.dir.ListPockets(ctx)
	if err != nil {
		return nil, core.Storage("list pockets", err)
	}
	balances, err := s.ledger.PocketBalances(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]PocketView, 0, len(pockets))
	for _, p := range pockets {
		out = append(out, PocketView{Pocket: p, Balance: balances[p.ID]})
	}
	return out, nil
}

// TotalValue is the money held across existing pockets. Goal balances are not
// included, and neither are records left behind by deleted pockets.
func (s *PocketService) TotalValue(ctx context.Context) (core.Money, error) {
	pockets, err := s.dir.ListPockets(ctx)
	if err != nil {
		return core.Money{}, core.Storage("list pockets", err)
	}
	balances, err := s.ledger.PocketBalances(ctx)
	if err != nil {
		return core.Money{}, err
	}
	return core.TotalValue(core.KeepPockets(balances, pockets)), nil
}

// CreateGoal adds a goal to the directory.
func (s *PocketService) CreateGoal(ctx context.Context, g core.Goal) (core.Goal, error) {
	if err := g.Validate(); err != nil {
		return core.Goal{}, err
	}
	if g.ID == "" {
		g.ID = s.newID()
	}
	created, err := s.dir.CreateGoal(ctx, g)
	if err != nil {
		return core.Goal{}, core.Storage("create goal", err)
	}
	return created, nil
}

// ListGoals returns every goal with its balances.
func (s *PocketService) ListGoals(ctx context.Context) ([]GoalView, error) {
	goals, err := s.dir.ListGoals(ctx)
	if err != nil {
		return nil, core.Storage("list goals", err)
	}
	balances, err := s.ledger.GoalBalances(ctx)
	if err != nil {
		return nil, err
	}
	funding, err := s.ledger.GoalFunding(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]GoalView, 0, len(goals))
	for _, g := range goals {
		out = append(out, GoalView{Goal: g, Balance: balances[g.ID], Funded: funding[g.ID]})
	}
	return out, nil
}

// DeleteGoal removes a goal that holds nothing. Money must be withdrawn first.
func (s *PocketService) DeleteGoal(ctx context.Context, id string) error {
	if _, err := s.dir.Goal(ctx, id); err != nil {
		return core.Storage("get goal", err)
	}
	balances, err := s.ledger.GoalBalances(ctx)
	if err != nil {
		return err
	}
	if bal := balances[id]; bal.Cents > 0 {
		return &core.ValidationError{Field: "goal_id", Reason: fmt.Sprintf("goal still holds %d; withdraw it first", bal.Cents)}
	}
	if err := s.dir.RemoveGoal(ctx, id); err != nil {
		return core.Storage("remove goal", err)
	}
	return nil
}

// RecordIncome records income into an existing pocket or goal.
func (s *PocketService) RecordIncome(ctx context.Context, e ledger.Entry) (core.Transaction, error) {
	if err := s.requireTargets(ctx, e.PocketID, e.GoalID); err != nil {
		return core.Transaction{}, err
	}
	return s.ledger.RecordIncome(ctx, e)
}

// Spend records a guarded expense from an existing pocket.
func (s *PocketService) Spend(ctx context.Context, e ledger.Entry) (core.Transaction, error) {
	if err := s.requireTargets(ctx, e.PocketID, ""); err != nil {
		return core.Transaction{}, err
	}
	return s.ledger.Spend(ctx, e)
}

// Transfer moves money between two existing pockets.
func (s *PocketService) Transfer(ctx context.Context, from, to string, req ledger.TransferRequest) (core.Transaction, error) {
	if err := s.requireTargets(ctx, from, ""); err != nil {
		return core.Transaction{}, err
	}
	if err := s.requireTargets(ctx, to, ""); err != nil {
		return core.Transaction{}, err
	}
	return s.ledger.TransferBetweenPockets(ctx, from, to, req)
}

// Allocate moves money from an existing pocket into an existing goal.
func (s *PocketService) Allocate(ctx context.Context, pocketID, goalID string, req ledger.TransferRequest) (core.Transaction, error) {
	if err := s.requireTargets(ctx, pocketID, goalID); err != nil {
		return core.Transaction{}, err
	}
	return s.ledger.AllocateToGoal(ctx, pocketID, goalID, req)
}

// Withdraw pays money from an existing goal out to an existing pocket.
func (s *PocketService) Withdraw(ctx context.Context, goalID, pocketID string, req ledger.TransferRequest) (core.Transaction, error) {
	if err := s.requireTargets(ctx, pocketID, goalID); err != nil {
		return core.Transaction{}, err
	}
	return s.ledger.WithdrawFromGoal(ctx, goalID, pocketID, req)
}

// requireTargets looks up the non-empty ids in the directory.
func (s *PocketService) requireTargets(ctx context.Context, pocketID, goalID string) error {
	if pocketID != "" {
		if _, err := s.dir.Pocket(ctx, pocketID); err != nil {
			return core.Storage("get pocket", err)
		}
	}
	if goalID != "" {
		if _, err := s.dir.Goal(ctx, goalID); err != nil {
			return core.Storage("get goal", err)
		}
	}
	return nil
}
