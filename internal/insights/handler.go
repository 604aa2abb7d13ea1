package insights

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/frahmantamala/expense-insights/internal"
	"github.com/frahmantamala/expense-insights/internal/budget"
	"github.com/frahmantamala/expense-insights/internal/core/timeframe"
	"github.com/frahmantamala/expense-insights/internal/llm"
	"github.com/frahmantamala/expense-insights/internal/transport"
	"github.com/go-chi/chi"
)

type ServiceAPI interface {
	Insights(ctx context.Context, actor internal.Actor, userID int64, kind timeframe.Kind) (*Insights, error)
	Answer(ctx context.Context, actor internal.Actor, userID int64, utterance, humor string) (*QueryAnswer, error)
	Chat(ctx context.Context, actor internal.Actor, userID int64, req llm.ChatRequest) (*llm.ChatResponse, error)
	VoiceAnswer(ctx context.Context, actor internal.Actor, userID int64, audio io.Reader, filename, humor string) (*QueryAnswer, error)
	Forecast(ctx context.Context, actor internal.Actor, userID int64, category *string, horizon int) (*ForecastAnswer, error)
	PredictCurrentFromLast(ctx context.Context, actor internal.Actor, userID int64) (*PredictionAnswer, error)
	BudgetUsage(ctx context.Context, actor internal.Actor, userID int64, month, year int) (*budget.Usage, error)
}

type Handler struct {
	*transport.BaseHandler
	Service       ServiceAPI
	maxAudioBytes int64
}

func NewHandler(service ServiceAPI, maxAudioBytes int64, lg *slog.Logger) *Handler {
	return &Handler{
		BaseHandler:   transport.NewBaseHandler(lg),
		Service:       service,
		maxAudioBytes: maxAudioBytes,
	}
}

type queryRequest struct {
	Query      string `json:"query"`
	HumorLevel string `json:"humor_level"`
}

// Query handles POST /query
func (h *Handler) Query(w http.ResponseWriter, r *http.Request) {
	actor, userID, ok := h.target(w, r)
	if !ok {
		return
	}
	var req queryRequest
	if err := h.DecodeJSON(r, &req); err != nil {
		h.WriteAppError(w, err)
		return
	}
	ans, err := h.Service.Answer(r.Context(), actor, userID, req.Query, req.HumorLevel)
	if err != nil {
		h.WriteAppError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, ans)
}

// VoiceQuery handles POST /query/voice with a multipart "audio" file.
func (h *Handler) VoiceQuery(w http.ResponseWriter, r *http.Request) {
	actor, userID, ok := h.target(w, r)
	if !ok {
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, h.maxAudioBytes)
	if err := r.ParseMultipartForm(h.maxAudioBytes); err != nil {
		h.WriteError(w, http.StatusBadRequest, "invalid audio upload")
		return
	}
	file, header, err := r.FormFile("audio")
	if err != nil {
		h.WriteError(w, http.StatusBadRequest, "audio file is required")
		return
	}
	defer file.Close()

	ans, err := h.Service.VoiceAnswer(r.Context(), actor, userID, file, header.Filename, r.FormValue("humor_level"))
	if err != nil {
		h.WriteAppError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, ans)
}

// Chat handles POST /chat
func (h *Handler) Chat(w http.ResponseWriter, r *http.Request) {
	actor, userID, ok := h.target(w, r)
	if !ok {
		return
	}
	var req llm.ChatRequest
	if err := h.DecodeJSON(r, &req); err != nil {
		h.WriteAppError(w, err)
		return
	}
	resp, err := h.Service.Chat(r.Context(), actor, userID, req)
	if err != nil {
		h.WriteAppError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, resp)
}

// Insights handles GET /insights?period=week|month|year
func (h *Handler) Insights(w http.ResponseWriter, r *http.Request) {
	actor, userID, ok := h.target(w, r)
	if !ok {
		return
	}
	kind, err := timeframe.ParseKind(r.URL.Query().Get("period"))
	if err != nil {
		h.WriteAppError(w, internal.NewValidationFieldError("period", err.Error(), internal.ErrCodeInvalidPeriod))
		return
	}
	out, err := h.Service.Insights(r.Context(), actor, userID, kind)
	if err != nil {
		h.WriteAppError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, out)
}

// Forecast handles GET /forecast?category=&horizon=
func (h *Handler) Forecast(w http.ResponseWriter, r *http.Request) {
	actor, userID, ok := h.target(w, r)
	if !ok {
		return
	}
	var category *string
	if c := strings.TrimSpace(r.URL.Query().Get("category")); c != "" {
		category = &c
	}
	horizon := 0
	if raw := r.URL.Query().Get("horizon"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			h.WriteAppError(w, internal.NewValidationFieldError("horizon", "horizon must be an integer", internal.ErrCodeValidationFailed))
			return
		}
		horizon = n
	}
	out, err := h.Service.Forecast(r.Context(), actor, userID, category, horizon)
	if err != nil {
		h.WriteAppError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, out)
}

// Predictions handles GET /predictions
func (h *Handler) Predictions(w http.ResponseWriter, r *http.Request) {
	actor, userID, ok := h.target(w, r)
	if !ok {
		return
	}
	out, err := h.Service.PredictCurrentFromLast(r.Context(), actor, userID)
	if err != nil {
		h.WriteAppError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, out)
}

// BudgetUsage handles GET /budgets/{year}/{month}/usage
func (h *Handler) BudgetUsage(w http.ResponseWriter, r *http.Request) {
	actor, userID, ok := h.target(w, r)
	if !ok {
		return
	}
	year, err := strconv.Atoi(chi.URLParam(r, "year"))
	if err != nil {
		h.WriteError(w, http.StatusBadRequest, "invalid year")
		return
	}
	month, err := strconv.Atoi(chi.URLParam(r, "month"))
	if err != nil {
		h.WriteError(w, http.StatusBadRequest, "invalid month")
		return
	}
	usage, err := h.Service.BudgetUsage(r.Context(), actor, userID, month, year)
	if err != nil {
		h.WriteAppError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, usage)
}

// target reads the caller and the optional user_id an admin may act for.
func (h *Handler) target(w http.ResponseWriter, r *http.Request) (internal.Actor, int64, bool) {
	actor, ok := h.Actor(w, r)
	if !ok {
		return internal.Actor{}, 0, false
	}
	userID, err := transport.QueryInt64(r, "user_id")
	if err != nil {
		h.WriteAppError(w, err)
		return internal.Actor{}, 0, false
	}
	return actor, userID, true
}
