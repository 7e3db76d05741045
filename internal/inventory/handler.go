package inventory

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/dgknshn20/yapigraniterp/internal/platform/httpx"
	"github.com/dgknshn20/yapigraniterp/internal/shared"
)

// Handler exposes the management-style sweeper trigger.
type Handler struct {
	sweeper *Sweeper
}

func NewHandler(sweeper *Sweeper) *Handler {
	return &Handler{sweeper: sweeper}
}

// Routes mounts the reservation job routes, admin only.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.With(shared.RequireRoles(shared.RoleAdmin)).Post("/reservations/sweep", h.sweep)
	return r
}

func (h *Handler) sweep(w http.ResponseWriter, r *http.Request) {
	released, err := h.sweeper.SweepExpired(r.Context(), time.Now().UTC())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]int{"released": released})
}
