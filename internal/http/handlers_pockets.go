package http

import (
	"net/http"

	"pockets/internal/core"
)

func (s *Server) handleListPockets(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := s.requestContext(r)
	defer cancel()

	views, err := s.svc.ListPockets(ctx)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	total, err := s.svc.TotalValue(ctx)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	out := make([]pocketJSON, 0, len(views))
	for _, v := range views {
		out = append(out, s.pocket(v))
	}
	writeJSON(w, http.StatusOK, map[string]any{"pockets": out, "total": s.money(total)})
}

func (s *Server) handleCreatePocket(w http.ResponseWriter, r *http.Request) {
	var req pocketRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	ctx, cancel := s.requestContext(r)
	defer cancel()

	p, err := s.svc.CreatePocket(ctx, core.Pocket{
		Name:  sanitizeInput(req.Name),
		Icon:  sanitizeInput(req.Icon),
		Color: sanitizeInput(req.Color),
		Kind:  core.PocketKind(sanitizeInput(req.Kind)),
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, pocketJSON{ID: p.ID, Name: p.Name, Icon: p.Icon, Color: p.Color, Kind: string(p.Kind), Balance: s.money(core.Money{})})
}

// handleDeletePocket reconciles the log and reports the compensating records.
func (s *Server) handleDeletePocket(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := s.requestContext(r)
	defer cancel()

	id := r.PathValue("id")
	plan, err := s.svc.DeletePocket(ctx, id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	deleted := plan.Deletions
	if deleted == nil {
		deleted = []string{}
	}
	writeJSON(w, http.StatusOK, deletePocketJSON{
		PocketID:   id,
		Deleted:    deleted,
		Inserted:   s.transactions(plan.Insertions),
		Reconciled: !plan.Empty(),
	})
}
