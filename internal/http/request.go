package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"pockets/internal/core"
)

const maxBodyBytes = 64 << 10

// errBadRequest marks malformed request bodies and query strings.
var errBadRequest = errors.New("bad request")

// decodeJSON reads one JSON object into dst, rejecting unknown fields.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("%w: decode body: %v", errBadRequest, err)
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return fmt.Errorf("%w: body must contain a single JSON object", errBadRequest)
	}
	return nil
}

// entryRequest is the body of income and expense requests.
type entryRequest struct {
	PocketID    string `json:"pocket_id"`
	GoalID      string `json:"goal_id"`
	Amount      string `json:"amount"`
	Description string `json:"description"`
	Category    string `json:"category"`
	Date        string `json:"date"`
}

// transferRequest covers transfers, allocations and withdrawals. Which ids
// are read depends on the route.
type transferRequest struct {
	FromPocketID string `json:"from_pocket_id"`
	ToPocketID   string `json:"to_pocket_id"`
	PocketID     string `json:"pocket_id"`
	GoalID       string `json:"goal_id"`
	Amount       string `json:"amount"`
	Description  string `json:"description"`
	Category     string `json:"category"`
	Date         string `json:"date"`
}

type patchRequest struct {
	Amount      *string `json:"amount"`
	Description *string `json:"description"`
	Category    *string `json:"category"`
	Date        *string `json:"date"`
}

type pocketRequest struct {
	Name  string `json:"name"`
	Icon  string `json:"icon"`
	Color string `json:"color"`
	Kind  string `json:"kind"`
}

type goalRequest struct {
	Name                   string   `json:"name"`
	TargetAmount           string   `json:"target_amount"`
	DurationMonths         int      `json:"duration_months"`
	Kind                   string   `json:"kind"`
	AnnualReturnPercentage *float64 `json:"annual_return_percentage"`
}

// parseAmount reads a decimal amount in the server's currency.
func (s *Server) parseAmount(field, raw string) (core.Money, error) {
	m, err := core.ParseAmount(raw, s.currency)
	if err != nil {
		return core.Money{}, &core.ValidationError{Field: field, Reason: fmt.Sprintf("invalid amount %q", raw)}
	}
	return m, nil
}

// parseOptionalDate returns the zero date for an empty string; the ledger
// then records today.
func parseOptionalDate(raw string) (core.Date, error) {
	if strings.TrimSpace(raw) == "" {
		return core.Date{}, nil
	}
	d, err := core.ParseDate(raw)
	if err != nil {
		return core.Date{}, &core.ValidationError{Field: "date", Reason: "date must be YYYY-MM-DD"}
	}
	return d, nil
}

// parseYearMonth extracts year and month from query parameters, defaulting to
// the current month. Malformed numbers are rejected rather than ignored.
func (s *Server) parseYearMonth(r *http.Request) (year, month int, err error) {
	now := s.now()
	year, month = now.Year(), int(now.Month())
	q := r.URL.Query()
	if v := strings.TrimSpace(q.Get("year")); v != "" {
		if year, err = strconv.Atoi(v); err != nil {
			return 0, 0, fmt.Errorf("%w: year must be a number", errBadRequest)
		}
	}
	if v := strings.TrimSpace(q.Get("month")); v != "" {
		if month, err = strconv.Atoi(v); err != nil {
			return 0, 0, fmt.Errorf("%w: month must be a number", errBadRequest)
		}
	}
	return year, month, nil
}

// sanitizeInput removes control characters except tab and newlines, and trims.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != '\t' && r != '\n' && r != '\r' {
			return -1
		}
		return r
	}, s)
}
