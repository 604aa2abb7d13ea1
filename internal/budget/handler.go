package budget

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/frahmantamala/expense-insights/internal"
	"github.com/frahmantamala/expense-insights/internal/transport"
	"github.com/go-chi/chi"
)

type ServiceAPI interface {
	GetBudget(ctx context.Context, userID int64, month, year int) (*Budget, error)
	UpdateBudget(ctx context.Context, actor internal.Actor, userID int64, month, year int, dto UpdateBudgetDTO) (*Budget, error)
	AddCustomCategory(ctx context.Context, actor internal.Actor, userID int64, month, year int, dto CustomCategoryDTO) (*CustomCategory, error)
	RemoveCustomCategory(ctx context.Context, actor internal.Actor, userID int64, month, year int, categoryID int64) error
}

type Handler struct {
	*transport.BaseHandler
	Service ServiceAPI
}

func NewHandler(svc ServiceAPI, lg *slog.Logger) *Handler {
	return &Handler{BaseHandler: transport.NewBaseHandler(lg), Service: svc}
}

// GetBudget handles GET /budgets/{year}/{month}
func (h *Handler) GetBudget(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.Actor(w, r)
	if !ok {
		return
	}
	year, month, ok := h.period(w, r)
	if !ok {
		return
	}
	b, err := h.Service.GetBudget(r.Context(), actor.UserID, month, year)
	if err != nil {
		h.WriteAppError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, b)
}

// UpdateBudget handles PUT /budgets/{year}/{month}
func (h *Handler) UpdateBudget(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.Actor(w, r)
	if !ok {
		return
	}
	year, month, ok := h.period(w, r)
	if !ok {
		return
	}
	var dto UpdateBudgetDTO
	if err := h.DecodeJSON(r, &dto); err != nil {
		h.WriteAppError(w, err)
		return
	}
	b, err := h.Service.UpdateBudget(r.Context(), actor, actor.UserID, month, year, dto)
	if err != nil {
		h.WriteAppError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, b)
}

// AddCustomCategory handles POST /budgets/{year}/{month}/categories
func (h *Handler) AddCustomCategory(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.Actor(w, r)
	if !ok {
		return
	}
	year, month, ok := h.period(w, r)
	if !ok {
		return
	}
	var dto CustomCategoryDTO
	if err := h.DecodeJSON(r, &dto); err != nil {
		h.WriteAppError(w, err)
		return
	}
	c, err := h.Service.AddCustomCategory(r.Context(), actor, actor.UserID, month, year, dto)
	if err != nil {
		h.WriteAppError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusCreated, c)
}

// RemoveCustomCategory handles DELETE /budgets/{year}/{month}/categories/{id}
func (h *Handler) RemoveCustomCategory(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.Actor(w, r)
	if !ok {
		return
	}
	year, month, ok := h.period(w, r)
	if !ok {
		return
	}
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		h.WriteError(w, http.StatusBadRequest, "invalid category ID")
		return
	}
	if err := h.Service.RemoveCustomCategory(r.Context(), actor, actor.UserID, month, year, id); err != nil {
		h.WriteAppError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) period(w http.ResponseWriter, r *http.Request) (year, month int, ok bool) {
	year, err := strconv.Atoi(chi.URLParam(r, "year"))
	if err != nil {
		h.WriteError(w, http.StatusBadRequest, "invalid year")
		return 0, 0, false
	}
	month, err = strconv.Atoi(chi.URLParam(r, "month"))
	if err != nil {
		h.WriteError(w, http.StatusBadRequest, "invalid month")
		return 0, 0, false
	}
	return year, month, true
}
