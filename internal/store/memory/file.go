package memory

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"pockets/internal/core"
)

// fileSnapshot is the on-disk shape of a file-backed Store.
type fileSnapshot struct {
	Version      int          `json:"version"`
	Transactions []fileRecord `json:"transactions"`
	Pockets      []filePocket `json:"pockets"`
	Goals        []fileGoal   `json:"goals"`
}

type fileRecord struct {
	ID                 string    `json:"id"`
	Kind               string    `json:"kind"`
	AmountCents        int64     `json:"amount_cents"`
	Description        string    `json:"description,omitempty"`
	Category           string    `json:"category,omitempty"`
	Date               string    `json:"date"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
	PocketID           string    `json:"pocket_id,omitempty"`
	TransferToPocketID string    `json:"transfer_to_pocket_id,omitempty"`
	GoalID             string    `json:"goal_id,omitempty"`
	TransferToGoalID   string    `json:"transfer_to_goal_id,omitempty"`
	Origin             string    `json:"origin,omitempty"`
}

type filePocket struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Icon  string `json:"icon,omitempty"`
	Color string `json:"color,omitempty"`
	Kind  string `json:"kind"`
}

type fileGoal struct {
	ID                     string   `json:"id"`
	Name                   string   `json:"name"`
	TargetCents            int64    `json:"target_cents"`
	DurationMonths         int      `json:"duration_months"`
	Kind                   string   `json:"kind"`
	AnnualReturnPercentage *float64 `json:"annual_return_percentage,omitempty"`
}

func newSnapshot(items []core.Transaction, pockets []core.Pocket, goals []core.Goal) fileSnapshot {
	snap := fileSnapshot{Version: 1}
	for _, t := range items {
		snap.Transactions = append(snap.Transactions, fileRecord{
			ID:                 t.ID,
			Kind:               string(t.Kind),
			AmountCents:        t.Amount.Cents,
			Description:        t.Description,
			Category:           t.Category,
			Date:               t.Date.String(),
			CreatedAt:          t.CreatedAt,
			UpdatedAt:          t.UpdatedAt,
			PocketID:           t.PocketID,
			TransferToPocketID: t.TransferToPocketID,
			GoalID:             t.GoalID,
			TransferToGoalID:   t.TransferToGoalID,
			Origin:             string(t.Origin),
		})
	}
	for _, p := range pockets {
		snap.Pockets = append(snap.Pockets, filePocket{ID: p.ID, Name: p.Name, Icon: p.Icon, Color: p.Color, Kind: string(p.Kind)})
	}
	for _, g := range goals {
		snap.Goals = append(snap.Goals, fileGoal{
			ID:                     g.ID,
			Name:                   g.Name,
			TargetCents:            g.TargetAmount.Cents,
			DurationMonths:         g.DurationMonths,
			Kind:                   string(g.Kind),
			AnnualReturnPercentage: g.AnnualReturnPercentage,
		})
	}
	return snap
}

func (f fileSnapshot) transactions() []core.Transaction {
	out := make([]core.Transaction, 0, len(f.Transactions))
	for _, r := range f.Transactions {
		d, _ := core.ParseDate(r.Date)
		out = append(out, core.Transaction{
			ID:                 r.ID,
			Kind:               core.Kind(r.Kind),
			Amount:             core.Money{Cents: r.AmountCents},
			Description:        r.Description,
			Category:           r.Category,
			Date:               d,
			CreatedAt:          r.CreatedAt,
			UpdatedAt:          r.UpdatedAt,
			PocketID:           r.PocketID,
			TransferToPocketID: r.TransferToPocketID,
			GoalID:             r.GoalID,
			TransferToGoalID:   r.TransferToGoalID,
			Origin:             core.Origin(r.Origin),
		})
	}
	return out
}

func (f fileSnapshot) pockets() []core.Pocket {
	out := make([]core.Pocket, 0, len(f.Pockets))
	for _, p := range f.Pockets {
		out = append(out, core.Pocket{ID: p.ID, Name: p.Name, Icon: p.Icon, Color: p.Color, Kind: core.PocketKind(p.Kind)})
	}
	return out
}

func (f fileSnapshot) goals() []core.Goal {
	out := make([]core.Goal, 0, len(f.Goals))
	for _, g := range f.Goals {
		out = append(out, core.Goal{
			ID:                     g.ID,
			Name:                   g.Name,
			TargetAmount:           core.Money{Cents: g.TargetCents},
			DurationMonths:         g.DurationMonths,
			Kind:                   core.GoalKind(g.Kind),
			AnnualReturnPercentage: g.AnnualReturnPercentage,
		})
	}
	return out
}

// readFile returns an empty snapshot when path does not exist yet.
func readFile(path string) (fileSnapshot, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return fileSnapshot{Version: 1}, nil
	}
	if err != nil {
		return fileSnapshot{}, fmt.Errorf("read %s: %w", path, err)
	}
	var snap fileSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return fileSnapshot{}, fmt.Errorf("decode %s: %w", path, err)
	}
	return snap, nil
}

// writeFile replaces path atomically through a temp file in the same directory.
func writeFile(path string, snap fileSnapshot) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create data directory: %w", err)
	}
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".ledger-*.json")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("replace %s: %w", path, err)
	}
	return nil
}
