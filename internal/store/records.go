package store

import (
	"fmt"
	"time"

	"pockets/internal/core"
)

// Helpers shared by slice-backed logs. None of them mutate their input.

// AppendRecord validates t and returns log with t appended.
func AppendRecord(log []core.Transaction, t core.Transaction) ([]core.Transaction, error) {
	if err := t.Validate(); err != nil {
		return nil, err
	}
	if indexOf(log, t.ID) >= 0 {
		return nil, &core.ValidationError{Field: "id", Reason: fmt.Sprintf("duplicate transaction id %q", t.ID)}
	}
	out := make([]core.Transaction, 0, len(log)+1)
	out = append(out, log...)
	return append(out, t), nil
}

// PatchRecord applies patch to the record with the given id.
func PatchRecord(log []core.Transaction, id string, patch core.Patch, at time.Time) ([]core.Transaction, core.Transaction, error) {
	i := indexOf(log, id)
	if i < 0 {
		return nil, core.Transaction{}, core.NotFound("transaction", id)
	}
	updated := patch.Apply(log[i])
	updated.ID = log[i].ID
	updated.CreatedAt = log[i].CreatedAt
	updated.UpdatedAt = at
	if err := updated.Validate(); err != nil {
		return nil, core.Transaction{}, err
	}
	out := append([]core.Transaction(nil), log...)
	out[i] = updated
	return out, updated, nil
}

// RemoveRecord drops the record with the given id.
func RemoveRecord(log []core.Transaction, id string) ([]core.Transaction, error) {
	i := indexOf(log, id)
	if i < 0 {
		return nil, core.NotFound("transaction", id)
	}
	out := make([]core.Transaction, 0, len(log)-1)
	out = append(out, log[:i]...)
	return append(out, log[i+1:]...), nil
}

// ApplyRecords removes deletions and appends insertions. Any unknown deletion id
// or invalid insertion fails the whole batch.
func ApplyRecords(log []core.Transaction, deletions []string, insertions []core.Transaction) ([]core.Transaction, error) {
	drop := make(map[string]struct{}, len(deletions))
	for _, id := range deletions {
		if indexOf(log, id) < 0 {
			return nil, core.NotFound("transaction", id)
		}
		drop[id] = struct{}{}
	}
	out := make([]core.Transaction, 0, len(log)-len(drop)+len(insertions))
	for _, t := range log {
		if _, ok := drop[t.ID]; !ok {
			out = append(out, t)
		}
	}
	for _, t := range insertions {
		var err error
		if out, err = AppendRecord(out, t); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func indexOf(log []core.Transaction, id string) int {
	for i := range log {
		if log[i].ID == id {
			return i
		}
	}
	return -1
}
