package category

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/frahmantamala/expense-insights/internal"
	"github.com/frahmantamala/expense-insights/internal/transport"
)

type ServiceAPI interface {
	GetAllCategories(ctx context.Context, actor internal.Actor, userID int64, prefix string) (*CategoriesResponse, error)
}

type Handler struct {
	*transport.BaseHandler
	Service ServiceAPI
}

func NewHandler(service ServiceAPI, lg *slog.Logger) *Handler {
	return &Handler{
		BaseHandler: transport.NewBaseHandler(lg),
		Service:     service,
	}
}

// GetCategories handles GET /categories?prefix=&user_id=
func (h *Handler) GetCategories(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.Actor(w, r)
	if !ok {
		return
	}
	userID, err := transport.QueryInt64(r, "user_id")
	if err != nil {
		h.WriteAppError(w, err)
		return
	}
	categories, err := h.Service.GetAllCategories(r.Context(), actor, userID, r.URL.Query().Get("prefix"))
	if err != nil {
		h.WriteAppError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, categories)
}
