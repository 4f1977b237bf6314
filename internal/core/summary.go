package core

import "sort"

// CategoryAmount represents an amount aggregated by category name.
type CategoryAmount struct {
	Name   string
	Amount Money
}

// MonthOverview is a compact summary for a specific year+month.
type MonthOverview struct {
	Year       int
	Month      int // 1-12
	Income     Money
	Expense    Money
	ByCategory []CategoryAmount // expenses only, largest first
}

// Net is income minus expense for the month.
func (o MonthOverview) Net() Money { return o.Income.Sub(o.Expense) }

// SummarizeMonth aggregates user-visible income and expense for one month.
// Transfers move money between pockets and goals and are left out. Records
// produced by pocket reconciliation are counted like any other.
func SummarizeMonth(log []Transaction, year, month int) MonthOverview {
	out := MonthOverview{Year: year, Month: month}
	byCat := map[string]Money{}
	for _, t := range log {
		if t.Date.Year() != year || int(t.Date.Month()) != month {
			continue
		}
		switch t.Shape() {
		case ShapePocketIncome, ShapeGoalIncome:
			out.Income = out.Income.Add(t.Amount)
		case ShapePocketExpense:
			out.Expense = out.Expense.Add(t.Amount)
			name := t.Category
			if name == "" {
				name = "Uncategorized"
			}
			byCat[name] = byCat[name].Add(t.Amount)
		case ShapePocketTransfer, ShapeGoalAllocation, ShapeGoalWithdrawal, ShapeInvalid:
		}
	}
	for name, amt := range byCat {
		out.ByCategory = append(out.ByCategory, CategoryAmount{Name: name, Amount: amt})
	}
	sort.Slice(out.ByCategory, func(i, j int) bool {
		a, b := out.ByCategory[i], out.ByCategory[j]
		if a.Amount.Cents != b.Amount.Cents {
			return a.Amount.Cents > b.Amount.Cents
		}
		return a.Name < b.Name
	})
	return out
}
