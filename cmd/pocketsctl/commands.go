package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/google/subcommands"

	"pockets/internal/cli"
	"pockets/internal/core"
	"pockets/internal/ledger"
)

// app is what every command shares: a way to open the ledger and where to print.
type app struct {
	currency string
	out      io.Writer
	open     func(ctx context.Context) (*cli.Runtime, error)
}

func (a *app) commands() []subcommands.Command {
	return []subcommands.Command{
		&balancesCmd{app: a},
		&entryCmd{app: a, kind: core.Income},
		&entryCmd{app: a, kind: core.Expense},
		&moveCmd{app: a, mode: moveTransfer},
		&moveCmd{app: a, mode: moveAllocate},
		&moveCmd{app: a, mode: moveWithdraw},
		&createPocketCmd{app: a},
		&createGoalCmd{app: a},
		&deletePocketCmd{app: a},
		&summaryCmd{app: a},
	}
}

// run opens the ledger, runs fn, and maps the outcome to an exit status.
func (a *app) run(ctx context.Context, fn func(rt *cli.Runtime) error) subcommands.ExitStatus {
	rt, err := a.open(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return subcommands.ExitFailure
	}
	defer rt.Close()

	if err := fn(rt); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		var verr *core.ValidationError
		if errors.As(err, &verr) {
			return subcommands.ExitUsageError
		}
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}

func (a *app) amount(raw string) (core.Money, error) {
	m, err := core.ParseAmount(raw, a.currency)
	if err != nil {
		return core.Money{}, &core.ValidationError{Field: "amount", Reason: fmt.Sprintf("invalid amount %q", raw)}
	}
	return m, nil
}

func (a *app) format(m core.Money) string { return m.Format(a.currency) }

func parseDateFlag(raw string) (core.Date, error) {
	if raw == "" {
		return core.Date{}, nil
	}
	d, err := core.ParseDate(raw)
	if err != nil {
		return core.Date{}, &core.ValidationError{Field: "date", Reason: "date must be YYYY-MM-DD"}
	}
	return d, nil
}

// pocketID resolves "main", an id, or a pocket name.
func pocketID(ctx context.Context, rt *cli.Runtime, ref string) (string, error) {
	if ref == "" || strings.EqualFold(ref, "main") {
		return rt.Main.ID, nil
	}
	views, err := rt.Service.ListPockets(ctx)
	if err != nil {
		return "", err
	}
	for _, v := range views {
		if v.ID == ref || strings.EqualFold(v.Name, ref) {
			return v.ID, nil
		}
	}
	return "", core.NotFound("pocket", ref)
}

// goalID resolves an id or a goal name.
func goalID(ctx context.Context, rt *cli.Runtime, ref string) (string, error) {
	if ref == "" {
		return "", &core.ValidationError{Field: "goal", Reason: "a goal is required"}
	}
	views, err := rt.Service.ListGoals(ctx)
	if err != nil {
		return "", err
	}
	for _, v := range views {
		if v.ID == ref || strings.EqualFold(v.Name, ref) {
			return v.ID, nil
		}
	}
	return "", core.NotFound("goal", ref)
}

func (a *app) printTransaction(t core.Transaction) {
	fmt.Fprintf(a.out, "%s %s %s %s", t.ID, t.Date, t.Shape(), a.format(t.Amount))
	if t.Description != "" {
		fmt.Fprintf(a.out, " %q", t.Description)
	}
	fmt.Fprintln(a.out)
}

type balancesCmd struct {
	*app
}

func (*balancesCmd) Name() string     { return "balances" }
func (*balancesCmd) Synopsis() string { return "show pocket and goal balances" }
func (*balancesCmd) Usage() string {
	return `balances

  Lists every pocket and goal with its projected balance.
`
}
func (*balancesCmd) SetFlags(*flag.FlagSet) {}

func (c *balancesCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	return c.run(ctx, func(rt *cli.Runtime) error {
		pockets, err := rt.Service.ListPockets(ctx)
		if err != nil {
			return err
		}
		goals, err := rt.Service.ListGoals(ctx)
		if err != nil {
			return err
		}
		total, err := rt.Service.TotalValue(ctx)
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(c.out, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "POCKET\tKIND\tBALANCE\tID")
		for _, p := range pockets {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", p.Name, p.Kind, c.format(p.Balance), p.ID)
		}
		fmt.Fprintf(w, "Total\t\t%s\t\n", c.format(total))
		if len(goals) > 0 {
			fmt.Fprintln(w, "\nGOAL\tTARGET\tBALANCE\tPROGRESS")
			for _, g := range goals {
				fmt.Fprintf(w, "%s\t%s\t%s\t%.1f%%\n", g.Name, c.format(g.TargetAmount), c.format(g.Balance), g.Progress())
			}
		}
		return w.Flush()
	})
}

// entryCmd records income or a guarded expense.
type entryCmd struct {
	*app
	kind        core.Kind
	pocket      string
	goal        string
	description string
	category    string
	date        string
}

func (c *entryCmd) Name() string {
	if c.kind == core.Income {
		return "income"
	}
	return "spend"
}

func (c *entryCmd) Synopsis() string {
	if c.kind == core.Income {
		return "record income into a pocket or goal"
	}
	return "record an expense, refused when the pocket cannot cover it"
}

func (c *entryCmd) Usage() string {
	return c.Name() + ` [-pocket <pocket>] [-goal <goal>] [-d <description>] [-c <category>] [-date YYYY-MM-DD] <amount>

  Pockets are named by id or name; "main" is the default.
`
}

func (c *entryCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.pocket, "pocket", "main", "Pocket id or name.")
	if c.kind == core.Income {
		f.StringVar(&c.goal, "goal", "", "Goal id or name; the income then funds the goal instead of a pocket.")
	}
	f.StringVar(&c.description, "d", "", "Description.")
	f.StringVar(&c.category, "c", "", "Category.")
	f.StringVar(&c.date, "date", "", "Date (defaults to today).")
}

func (c *entryCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "Error: exactly one amount is required")
		return subcommands.ExitUsageError
	}
	return c.run(ctx, func(rt *cli.Runtime) error {
		amount, err := c.amount(f.Arg(0))
		if err != nil {
			return err
		}
		date, err := parseDateFlag(c.date)
		if err != nil {
			return err
		}
		e := ledger.Entry{Kind: c.kind, Amount: amount, Description: c.description, Category: c.category, Date: date}
		if c.goal != "" {
			if e.GoalID, err = goalID(ctx, rt, c.goal); err != nil {
				return err
			}
		} else if e.PocketID, err = pocketID(ctx, rt, c.pocket); err != nil {
			return err
		}

		var t core.Transaction
		if c.kind == core.Income {
			t, err = rt.Service.RecordIncome(ctx, e)
		} else {
			t, err = rt.Service.Spend(ctx, e)
		}
		if err != nil {
			return err
		}
		c.printTransaction(t)
		return nil
	})
}

type moveMode int

const (
	moveTransfer moveMode = iota
	moveAllocate
	moveWithdraw
)

// moveCmd covers the three transfer shapes.
type moveCmd struct {
	*app
	mode        moveMode
	from        string
	to          string
	description string
	date        string
}

func (c *moveCmd) Name() string {
	switch c.mode {
	case moveAllocate:
		return "allocate"
	case moveWithdraw:
		return "withdraw"
	default:
		return "transfer"
	}
}

func (c *moveCmd) Synopsis() string {
	switch c.mode {
	case moveAllocate:
		return "move money from a pocket into a goal"
	case moveWithdraw:
		return "move money from a goal back to a pocket"
	default:
		return "move money between two pockets"
	}
}

func (c *moveCmd) Usage() string {
	return c.Name() + ` -from <ref> -to <ref> [-d <description>] [-date YYYY-MM-DD] <amount>
`
}

func (c *moveCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.from, "from", "", "Source pocket (transfer, allocate) or goal (withdraw).")
	f.StringVar(&c.to, "to", "", "Destination pocket (transfer, withdraw) or goal (allocate).")
	f.StringVar(&c.description, "d", "", "Description.")
	f.StringVar(&c.date, "date", "", "Date (defaults to today).")
}

func (c *moveCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() != 1 || c.from == "" || c.to == "" {
		fmt.Fprintln(os.Stderr, "Error: -from, -to and one amount are required")
		return subcommands.ExitUsageError
	}
	return c.run(ctx, func(rt *cli.Runtime) error {
		amount, err := c.amount(f.Arg(0))
		if err != nil {
			return err
		}
		date, err := parseDateFlag(c.date)
		if err != nil {
			return err
		}
		req := ledger.TransferRequest{Amount: amount, Description: c.description, Date: date}

		var t core.Transaction
		switch c.mode {
		case moveTransfer:
			from, err := pocketID(ctx, rt, c.from)
			if err != nil {
				return err
			}
			to, err := pocketID(ctx, rt, c.to)
			if err != nil {
				return err
			}
			t, err = rt.Service.Transfer(ctx, from, to, req)
			if err != nil {
				return err
			}
		case moveAllocate:
			from, err := pocketID(ctx, rt, c.from)
			if err != nil {
				return err
			}
			to, err := goalID(ctx, rt, c.to)
			if err != nil {
				return err
			}
			t, err = rt.Service.Allocate(ctx, from, to, req)
			if err != nil {
				return err
			}
		case moveWithdraw:
			from, err := goalID(ctx, rt, c.from)
			if err != nil {
				return err
			}
			to, err := pocketID(ctx, rt, c.to)
			if err != nil {
				return err
			}
			t, err = rt.Service.Withdraw(ctx, from, to, req)
			if err != nil {
				return err
			}
		}
		c.printTransaction(t)
		return nil
	})
}

type createPocketCmd struct {
	*app
	kind  string
	icon  string
	color string
}

func (*createPocketCmd) Name() string     { return "create-pocket" }
func (*createPocketCmd) Synopsis() string { return "add a pocket" }
func (*createPocketCmd) Usage() string {
	return `create-pocket [-kind spending|saving|investment] [-icon <icon>] [-color <color>] <name>
`
}

func (c *createPocketCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.kind, "kind", string(core.PocketSpending), "Pocket kind.")
	f.StringVar(&c.icon, "icon", "", "Icon.")
	f.StringVar(&c.color, "color", "", "Color.")
}

func (c *createPocketCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "Error: exactly one name is required")
		return subcommands.ExitUsageError
	}
	return c.run(ctx, func(rt *cli.Runtime) error {
		p, err := rt.Service.CreatePocket(ctx, core.Pocket{Name: f.Arg(0), Kind: core.PocketKind(c.kind), Icon: c.icon, Color: c.color})
		if err != nil {
			return err
		}
		fmt.Fprintf(c.out, "%s %s (%s)\n", p.ID, p.Name, p.Kind)
		return nil
	})
}

type createGoalCmd struct {
	*app
	kind   string
	target string
	months int
}

func (*createGoalCmd) Name() string     { return "create-goal" }
func (*createGoalCmd) Synopsis() string { return "add a saving or investment goal" }
func (*createGoalCmd) Usage() string {
	return `create-goal -target <amount> -months <n> [-kind saving|investment] <name>
`
}

func (c *createGoalCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.kind, "kind", string(core.GoalSaving), "Goal kind.")
	f.StringVar(&c.target, "target", "", "Target amount.")
	f.IntVar(&c.months, "months", 12, "Duration in months.")
}

func (c *createGoalCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "Error: exactly one name is required")
		return subcommands.ExitUsageError
	}
	return c.run(ctx, func(rt *cli.Runtime) error {
		target, err := c.amount(c.target)
		if err != nil {
			return err
		}
		g, err := rt.Service.CreateGoal(ctx, core.Goal{Name: f.Arg(0), Kind: core.GoalKind(c.kind), TargetAmount: target, DurationMonths: c.months})
		if err != nil {
			return err
		}
		fmt.Fprintf(c.out, "%s %s target %s over %d months\n", g.ID, g.Name, c.format(g.TargetAmount), g.DurationMonths)
		return nil
	})
}

type deletePocketCmd struct {
	*app
}

func (*deletePocketCmd) Name() string     { return "delete-pocket" }
func (*deletePocketCmd) Synopsis() string { return "delete a pocket and reconcile its transfers" }
func (*deletePocketCmd) Usage() string {
	return `delete-pocket <pocket>

  Records of the pocket are removed. Transfers with other pockets are replaced
  by income or expense records on the other side, so their balances do not move.
`
}
func (*deletePocketCmd) SetFlags(*flag.FlagSet) {}

func (c *deletePocketCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "Error: exactly one pocket is required")
		return subcommands.ExitUsageError
	}
	return c.run(ctx, func(rt *cli.Runtime) error {
		id, err := pocketID(ctx, rt, f.Arg(0))
		if err != nil {
			return err
		}
		plan, err := rt.Service.DeletePocket(ctx, id)
		if err != nil {
			return err
		}
		fmt.Fprintf(c.out, "deleted pocket %s: %d records removed, %d compensating records added\n",
			id, len(plan.Deletions), len(plan.Insertions))
		for _, t := range plan.Insertions {
			c.printTransaction(t)
		}
		return nil
	})
}

type summaryCmd struct {
	*app
	month string
}

func (*summaryCmd) Name() string     { return "summary" }
func (*summaryCmd) Synopsis() string { return "income and expense for a month" }
func (*summaryCmd) Usage() string {
	return `summary [-m YYYY-MM]
`
}

func (c *summaryCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.month, "m", "", "Month as YYYY-MM (defaults to the current month).")
}

func (c *summaryCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	month := time.Now()
	if c.month != "" {
		m, err := time.Parse("2006-01", c.month)
		if err != nil {
			fmt.Fprintln(os.Stderr, "Error: month must be YYYY-MM")
			return subcommands.ExitUsageError
		}
		month = m
	}
	return c.run(ctx, func(rt *cli.Runtime) error {
		ov, err := rt.Ledger.MonthSummary(ctx, month.Year(), int(month.Month()))
		if err != nil {
			return err
		}
		w := tabwriter.NewWriter(c.out, 0, 4, 2, ' ', 0)
		fmt.Fprintf(w, "%04d-%02d\n", ov.Year, ov.Month)
		fmt.Fprintf(w, "Income\t%s\n", c.format(ov.Income))
		fmt.Fprintf(w, "Expense\t%s\n", c.format(ov.Expense))
		fmt.Fprintf(w, "Net\t%s\n", c.format(ov.Net()))
		for _, cat := range ov.ByCategory {
			fmt.Fprintf(w, "  %s\t%s\n", cat.Name, c.format(cat.Amount))
		}
		return w.Flush()
	})
}
