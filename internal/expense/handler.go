package expense

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/frahmantamala/expense-insights/internal"
	"github.com/frahmantamala/expense-insights/internal/core/timeframe"
	"github.com/frahmantamala/expense-insights/internal/transport"
	"github.com/go-chi/chi"
)

type ServiceAPI interface {
	CreateExpense(ctx context.Context, actor internal.Actor, dto CreateExpenseDTO) (*Expense, error)
	GetExpense(ctx context.Context, actor internal.Actor, id int64) (*Expense, error)
	UpdateExpense(ctx context.Context, actor internal.Actor, id int64, dto UpdateExpenseDTO) (*Expense, error)
	DeleteExpense(ctx context.Context, actor internal.Actor, id int64) error
	ListExpenses(ctx context.Context, actor internal.Actor, userID int64, allUsers bool, filter ListFilter, sort Sort, page PageRequest) (*Page, error)
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

// CreateExpense handles POST /expenses
func (h *Handler) CreateExpense(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.Actor(w, r)
	if !ok {
		return
	}

	var dto CreateExpenseDTO
	if err := h.DecodeJSON(r, &dto); err != nil {
		h.WriteAppError(w, err)
		return
	}

	exp, err := h.Service.CreateExpense(r.Context(), actor, dto)
	if err != nil {
		h.WriteAppError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusCreated, exp)
}

func (h *Handler) GetExpense(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.Actor(w, r)
	if !ok {
		return
	}
	id, ok := h.expenseID(w, r)
	if !ok {
		return
	}

	exp, err := h.Service.GetExpense(r.Context(), actor, id)
	if err != nil {
		h.WriteAppError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, exp)
}

func (h *Handler) UpdateExpense(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.Actor(w, r)
	if !ok {
		return
	}
	id, ok := h.expenseID(w, r)
	if !ok {
		return
	}

	var dto UpdateExpenseDTO
	if err := h.DecodeJSON(r, &dto); err != nil {
		h.WriteAppError(w, err)
		return
	}

	exp, err := h.Service.UpdateExpense(r.Context(), actor, id, dto)
	if err != nil {
		h.WriteAppError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, exp)
}

func (h *Handler) DeleteExpense(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.Actor(w, r)
	if !ok {
		return
	}
	id, ok := h.expenseID(w, r)
	if !ok {
		return
	}

	if err := h.Service.DeleteExpense(r.Context(), actor, id); err != nil {
		h.WriteAppError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListExpenses handles GET /expenses?search=&category=&timeframe=this+month&sort=-amount&page=&page_size=&user_id=&all_users=
func (h *Handler) ListExpenses(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.Actor(w, r)
	if !ok {
		return
	}

	q := r.URL.Query()
	userID, err := transport.QueryInt64(r, "user_id")
	if err != nil {
		h.WriteAppError(w, err)
		return
	}
	pageNumber, _ := strconv.Atoi(q.Get("page"))
	pageSize, _ := strconv.Atoi(q.Get("page_size"))

	filter := ListFilter{
		Search:         q.Get("search"),
		Category:       q.Get("category"),
		ExcludeImports: q.Get("exclude_imports") == "true",
	}
	if raw := q.Get("timeframe"); raw != "" {
		rel, err := timeframe.ParseRelative(raw)
		if err != nil {
			h.WriteAppError(w, internal.NewValidationFieldError("timeframe", err.Error(), internal.ErrCodeInvalidPeriod))
			return
		}
		current, _ := rel.Resolve(time.Now())
		filter.Period = &current
	}

	page, err := h.Service.ListExpenses(r.Context(), actor, userID, q.Get("all_users") == "true",
		filter, ParseSort(q.Get("sort")), PageRequest{Number: pageNumber, Size: pageSize})
	if err != nil {
		h.WriteAppError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, page)
}

func (h *Handler) expenseID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		h.WriteError(w, http.StatusBadRequest, "invalid expense ID")
		return 0, false
	}
	return id, true
}
