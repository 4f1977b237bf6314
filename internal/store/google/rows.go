package google

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"pockets/internal/core"
)

var header = []string{
	"ID", "Kind", "AmountCents", "Description", "Category", "Date", "CreatedAt", "UpdatedAt",
	"PocketID", "ToPocketID", "GoalID", "ToGoalID", "Origin",
}

// lastColumn is the column letter of the final header entry.
const lastColumn = "M"

func encodeRows(log []core.Transaction) [][]any {
	out := make([][]any, 0, len(log)+1)
	h := make([]any, len(header))
	for i, v := range header {
		h[i] = v
	}
	out = append(out, h)
	for _, t := range log {
		out = append(out, []any{
			t.ID,
			string(t.Kind),
			strconv.FormatInt(t.Amount.Cents, 10),
			t.Description,
			t.Category,
			t.Date.String(),
			t.CreatedAt.UTC().Format(time.RFC3339Nano),
			t.UpdatedAt.UTC().Format(time.RFC3339Nano),
			t.PocketID,
			t.TransferToPocketID,
			t.GoalID,
			t.TransferToGoalID,
			string(t.Origin),
		})
	}
	return out
}

// parseRows converts a values matrix with a header row back into records.
// Columns are located by header name so reordered sheets still load.
func parseRows(values [][]any) ([]core.Transaction, error) {
	if len(values) == 0 {
		return nil, nil
	}
	headers := toStrings(values[0])
	cols := make(map[string]int, len(header))
	var missing []string
	for _, name := range header {
		i := indexOf(headers, name)
		if i == -1 {
			missing = append(missing, name)
		}
		cols[name] = i
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("unexpected ledger header: missing %s; got headers=%v", strings.Join(missing, ","), headers)
	}

	out := make([]core.Transaction, 0, len(values)-1)
	for i := 1; i < len(values); i++ {
		row := toStrings(values[i])
		get := func(name string) string { return safeGet(row, cols[name]) }
		if get("ID") == "" {
			continue
		}
		cents, err := strconv.ParseInt(get("AmountCents"), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("row %d: amount %q: %w", i+1, get("AmountCents"), err)
		}
		date, err := core.ParseDate(get("Date"))
		if err != nil {
			return nil, fmt.Errorf("row %d: date %q: %w", i+1, get("Date"), err)
		}
		t := core.Transaction{
			ID:                 get("ID"),
			Kind:               core.Kind(get("Kind")),
			Amount:             core.Money{Cents: cents},
			Description:        get("Description"),
			Category:           get("Category"),
			Date:               date,
			PocketID:           get("PocketID"),
			TransferToPocketID: get("ToPocketID"),
			GoalID:             get("GoalID"),
			TransferToGoalID:   get("ToGoalID"),
			Origin:             core.Origin(get("Origin")),
		}
		// Timestamps are informational; a hand-edited cell does not block loading.
		t.CreatedAt, _ = time.Parse(time.RFC3339Nano, get("CreatedAt"))
		t.UpdatedAt, _ = time.Parse(time.RFC3339Nano, get("UpdatedAt"))
		out = append(out, t)
	}
	return out, nil
}

func toStrings(in []any) []string {
	out := make([]string, len(in))
	for i, v := range in {
		switch n := v.(type) {
		case float64:
			out[i] = strconv.FormatFloat(n, 'f', -1, 64)
		default:
			out[i] = strings.TrimSpace(fmt.Sprint(v))
		}
	}
	return out
}

func indexOf(arr []string, target string) int {
	for i, v := range arr {
		if strings.EqualFold(strings.TrimSpace(v), strings.TrimSpace(target)) {
			return i
		}
	}
	return -1
}

func safeGet(arr []string, idx int) string {
	if idx < 0 || idx >= len(arr) {
		return ""
	}
	return arr[idx]
}
