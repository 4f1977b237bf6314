package http

import (
	"net/http"

	"pockets/internal/core"
	"pockets/internal/services"
)

func (s *Server) handleListGoals(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := s.requestContext(r)
	defer cancel()

	views, err := s.svc.ListGoals(ctx)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	out := make([]goalJSON, 0, len(views))
	for _, v := range views {
		out = append(out, s.goal(v))
	}
	writeJSON(w, http.StatusOK, map[string]any{"goals": out})
}

func (s *Server) handleCreateGoal(w http.ResponseWriter, r *http.Request) {
	var req goalRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	target, err := s.parseAmount("target_amount", req.TargetAmount)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	ctx, cancel := s.requestContext(r)
	defer cancel()

	g, err := s.svc.CreateGoal(ctx, core.Goal{
		Name:                   sanitizeInput(req.Name),
		TargetAmount:           target,
		DurationMonths:         req.DurationMonths,
		Kind:                   core.GoalKind(sanitizeInput(req.Kind)),
		AnnualReturnPercentage: req.AnnualReturnPercentage,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, s.goal(services.GoalView{Goal: g}))
}

func (s *Server) handleDeleteGoal(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := s.requestContext(r)
	defer cancel()

	if err := s.svc.DeleteGoal(ctx, r.PathValue("id")); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
