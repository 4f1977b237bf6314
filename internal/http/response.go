package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"pockets/internal/core"
	applog "pockets/internal/log"
	"pockets/internal/services"
)

type moneyJSON struct {
	Cents   int64  `json:"cents"`
	Display string `json:"display"`
}

type transactionJSON struct {
	ID                 string    `json:"id"`
	Kind               string    `json:"kind"`
	Shape              string    `json:"shape"`
	Amount             moneyJSON `json:"amount"`
	Description        string    `json:"description,omitempty"`
	Category           string    `json:"category,omitempty"`
	Date               string    `json:"date"`
	PocketID           string    `json:"pocket_id,omitempty"`
	TransferToPocketID string    `json:"transfer_to_pocket_id,omitempty"`
	GoalID             string    `json:"goal_id,omitempty"`
	TransferToGoalID   string    `json:"transfer_to_goal_id,omitempty"`
	Origin             string    `json:"origin,omitempty"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}

type pocketJSON struct {
	ID      string    `json:"id"`
	Name    string    `json:"name"`
	Icon    string    `json:"icon,omitempty"`
	Color   string    `json:"color,omitempty"`
	Kind    string    `json:"kind"`
	Balance moneyJSON `json:"balance"`
}

type goalJSON struct {
	ID                     string    `json:"id"`
	Name                   string    `json:"name"`
	Kind                   string    `json:"kind"`
	TargetAmount           moneyJSON `json:"target_amount"`
	DurationMonths         int       `json:"duration_months"`
	AnnualReturnPercentage *float64  `json:"annual_return_percentage,omitempty"`
	Balance                moneyJSON `json:"balance"`
	Funded                 moneyJSON `json:"funded"`
	ProgressPercent        float64   `json:"progress_percent"`
	MonthlyContribution    moneyJSON `json:"monthly_contribution"`
}

type categoryJSON struct {
	Name   string    `json:"name"`
	Amount moneyJSON `json:"amount"`
}

type summaryJSON struct {
	Year       int            `json:"year"`
	Month      int            `json:"month"`
	Income     moneyJSON      `json:"income"`
	Expense    moneyJSON      `json:"expense"`
	Net        moneyJSON      `json:"net"`
	ByCategory []categoryJSON `json:"by_category"`
}

type deletePocketJSON struct {
	PocketID   string            `json:"pocket_id"`
	Deleted    []string          `json:"deleted_transaction_ids"`
	Inserted   []transactionJSON `json:"inserted_transactions"`
	Reconciled bool              `json:"reconciled"`
}

type errorJSON struct {
	Error     string     `json:"error"`
	Code      string     `json:"code"`
	Field     string     `json:"field,omitempty"`
	Current   *moneyJSON `json:"current,omitempty"`
	Requested *moneyJSON `json:"requested,omitempty"`
	RequestID string     `json:"request_id,omitempty"`
}

func (s *Server) money(m core.Money) moneyJSON {
	return moneyJSON{Cents: m.Cents, Display: m.Format(s.currency)}
}

func (s *Server) transaction(t core.Transaction) transactionJSON {
	return transactionJSON{
		ID:                 t.ID,
		Kind:               string(t.Kind),
		Shape:              t.Shape().String(),
		Amount:             s.money(t.Amount),
		Description:        t.Description,
		Category:           t.Category,
		Date:               t.Date.String(),
		PocketID:           t.PocketID,
		TransferToPocketID: t.TransferToPocketID,
		GoalID:             t.GoalID,
		TransferToGoalID:   t.TransferToGoalID,
		Origin:             string(t.Origin),
		CreatedAt:          t.CreatedAt,
		UpdatedAt:          t.UpdatedAt,
	}
}

func (s *Server) transactions(ts []core.Transaction) []transactionJSON {
	out := make([]transactionJSON, 0, len(ts))
	for _, t := range ts {
		out = append(out, s.transaction(t))
	}
	return out
}

func (s *Server) pocket(p services.PocketView) pocketJSON {
	return pocketJSON{
		ID:      p.ID,
		Name:    p.Name,
		Icon:    p.Icon,
		Color:   p.Color,
		Kind:    string(p.Kind),
		Balance: s.money(p.Balance),
	}
}

func (s *Server) goal(g services.GoalView) goalJSON {
	return goalJSON{
		ID:                     g.ID,
		Name:                   g.Name,
		Kind:                   string(g.Kind),
		TargetAmount:           s.money(g.TargetAmount),
		DurationMonths:         g.DurationMonths,
		AnnualReturnPercentage: g.AnnualReturnPercentage,
		Balance:                s.money(g.Balance),
		Funded:                 s.money(g.Funded),
		ProgressPercent:        g.Progress(),
		MonthlyContribution:    s.money(g.MonthlyContribution()),
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps the ledger's error taxonomy onto status codes.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	body := errorJSON{Error: err.Error(), RequestID: w.Header().Get("X-Request-ID")}
	status := http.StatusInternalServerError

	var verr *core.ValidationError
	var ierr *core.InsufficientBalanceError
	switch {
	case errors.Is(err, errBadRequest):
		status, body.Code = http.StatusBadRequest, "bad_request"
	case errors.As(err, &verr):
		status, body.Code, body.Field = http.StatusUnprocessableEntity, "validation", verr.Field
	case errors.As(err, &ierr):
		status, body.Code = http.StatusConflict, "insufficient_balance"
		if ierr.Goal {
			body.Code = "exceeds_goal_balance"
		}
		cur, req := s.money(ierr.Current), s.money(ierr.Requested)
		body.Current, body.Requested = &cur, &req
	case errors.Is(err, services.ErrPocketLimit):
		status, body.Code = http.StatusForbidden, "pocket_limit"
	case errors.Is(err, core.ErrNotFound):
		status, body.Code = http.StatusNotFound, "not_found"
	case errors.Is(err, core.ErrStorage):
		status, body.Code = http.StatusServiceUnavailable, "storage"
		body.Error = "storage unavailable"
	default:
		body.Code = "internal"
		body.Error = "internal error"
	}

	logger := applog.FromContext(r.Context())
	if status >= http.StatusInternalServerError {
		logger.ErrorContext(r.Context(), "Request failed", applog.FieldError, err, applog.FieldStatusCode, status)
	} else {
		logger.DebugContext(r.Context(), "Request rejected", applog.FieldError, err, applog.FieldStatusCode, status)
	}
	writeJSON(w, status, body)
}

func (s *Server) writeRateLimited(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusTooManyRequests, errorJSON{
		Error:     "rate limit exceeded, try again later",
		Code:      "rate_limited",
		RequestID: w.Header().Get("X-Request-ID"),
	})
}
