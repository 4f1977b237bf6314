package http

import "net/http"

// handleSummary reports income, expense and expense categories for a month.
func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	year, month, err := s.parseYearMonth(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	ctx, cancel := s.requestContext(r)
	defer cancel()

	ov, err := s.svc.Ledger().MonthSummary(ctx, year, month)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	out := summaryJSON{
		Year:       ov.Year,
		Month:      ov.Month,
		Income:     s.money(ov.Income),
		Expense:    s.money(ov.Expense),
		Net:        s.money(ov.Net()),
		ByCategory: make([]categoryJSON, 0, len(ov.ByCategory)),
	}
	for _, c := range ov.ByCategory {
		out.ByCategory = append(out.ByCategory, categoryJSON{Name: c.Name, Amount: s.money(c.Amount)})
	}
	writeJSON(w, http.StatusOK, out)
}
