package http

import (
	"net/http"
	"strings"

	"pockets/internal/core"
	"pockets/internal/ledger"
)

func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := s.requestContext(r)
	defer cancel()

	q := r.URL.Query()
	list, err := s.svc.Ledger().Transactions(ctx, ledger.Filter{
		PocketID: strings.TrimSpace(q.Get("pocket_id")),
		GoalID:   strings.TrimSpace(q.Get("goal_id")),
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"transactions": s.transactions(list)})
}

// entry converts an income or expense body into a ledger entry.
func (s *Server) entry(req entryRequest, kind core.Kind) (ledger.Entry, error) {
	amount, err := s.parseAmount("amount", req.Amount)
	if err != nil {
		return ledger.Entry{}, err
	}
	date, err := parseOptionalDate(req.Date)
	if err != nil {
		return ledger.Entry{}, err
	}
	return ledger.Entry{
		Kind:        kind,
		PocketID:    strings.TrimSpace(req.PocketID),
		GoalID:      strings.TrimSpace(req.GoalID),
		Amount:      amount,
		Description: sanitizeInput(req.Description),
		Category:    sanitizeInput(req.Category),
		Date:        date,
	}, nil
}

func (s *Server) handleRecordIncome(w http.ResponseWriter, r *http.Request) {
	s.handleEntry(w, r, core.Income)
}

func (s *Server) handleSpend(w http.ResponseWriter, r *http.Request) {
	s.handleEntry(w, r, core.Expense)
}

func (s *Server) handleEntry(w http.ResponseWriter, r *http.Request, kind core.Kind) {
	var req entryRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	e, err := s.entry(req, kind)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	ctx, cancel := s.requestContext(r)
	defer cancel()

	var t core.Transaction
	if kind == core.Income {
		t, err = s.svc.RecordIncome(ctx, e)
	} else {
		t, err = s.svc.Spend(ctx, e)
	}
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, s.transaction(t))
}

func (s *Server) transferRequest(req transferRequest) (ledger.TransferRequest, error) {
	amount, err := s.parseAmount("amount", req.Amount)
	if err != nil {
		return ledger.TransferRequest{}, err
	}
	date, err := parseOptionalDate(req.Date)
	if err != nil {
		return ledger.TransferRequest{}, err
	}
	return ledger.TransferRequest{
		Amount:      amount,
		Description: sanitizeInput(req.Description),
		Category:    sanitizeInput(req.Category),
		Date:        date,
	}, nil
}

// handleMovement decodes a transfer-shaped body and runs move with it.
func (s *Server) handleMovement(w http.ResponseWriter, r *http.Request, move func(r *http.Request, body transferRequest, tr ledger.TransferRequest) (core.Transaction, error)) {
	var body transferRequest
	if err := decodeJSON(w, r, &body); err != nil {
		s.writeError(w, r, err)
		return
	}
	tr, err := s.transferRequest(body)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	ctx, cancel := s.requestContext(r)
	defer cancel()

	t, err := move(r.WithContext(ctx), body, tr)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, s.transaction(t))
}

func (s *Server) handleTransfer(w http.ResponseWriter, r *http.Request) {
	s.handleMovement(w, r, func(r *http.Request, b transferRequest, tr ledger.TransferRequest) (core.Transaction, error) {
		return s.svc.Transfer(r.Context(), strings.TrimSpace(b.FromPocketID), strings.TrimSpace(b.ToPocketID), tr)
	})
}

func (s *Server) handleAllocate(w http.ResponseWriter, r *http.Request) {
	s.handleMovement(w, r, func(r *http.Request, b transferRequest, tr ledger.TransferRequest) (core.Transaction, error) {
		return s.svc.Allocate(r.Context(), strings.TrimSpace(b.PocketID), strings.TrimSpace(b.GoalID), tr)
	})
}

func (s *Server) handleWithdraw(w http.ResponseWriter, r *http.Request) {
	s.handleMovement(w, r, func(r *http.Request, b transferRequest, tr ledger.TransferRequest) (core.Transaction, error) {
		return s.svc.Withdraw(r.Context(), strings.TrimSpace(b.GoalID), strings.TrimSpace(b.PocketID), tr)
	})
}

func (s *Server) handleUpdateTransaction(w http.ResponseWriter, r *http.Request) {
	var req patchRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	var patch core.Patch
	if req.Amount != nil {
		m, err := s.parseAmount("amount", *req.Amount)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		patch.Amount = &m
	}
	if req.Description != nil {
		d := sanitizeInput(*req.Description)
		patch.Description = &d
	}
	if req.Category != nil {
		c := sanitizeInput(*req.Category)
		patch.Category = &c
	}
	if req.Date != nil {
		d, err := core.ParseDate(*req.Date)
		if err != nil {
			s.writeError(w, r, &core.ValidationError{Field: "date", Reason: "date must be YYYY-MM-DD"})
			return
		}
		patch.Date = &d
	}

	ctx, cancel := s.requestContext(r)
	defer cancel()

	t, err := s.svc.Ledger().UpdateTransaction(ctx, r.PathValue("id"), patch)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s.transaction(t))
}

func (s *Server) handleRemoveTransaction(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := s.requestContext(r)
	defer cancel()

	if err := s.svc.Ledger().RemoveTransaction(ctx, r.PathValue("id")); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
