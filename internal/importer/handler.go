package importer

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/frahmantamala/expense-insights/internal"
	"github.com/frahmantamala/expense-insights/internal/transport"
	"github.com/go-chi/chi"
)

const multipartMemory = 8 << 20

type ServiceAPI interface {
	Upload(ctx context.Context, actor internal.Actor, in UploadInput) (*ImportBatch, error)
	CreateQueryBatch(ctx context.Context, actor internal.Actor, in QueryInput) (*ImportBatch, error)
	CreateTableBatch(ctx context.Context, actor internal.Actor, in TableInput) (*ImportBatch, error)
	GetBatch(ctx context.Context, actor internal.Actor, id int64) (*ImportBatch, error)
	ListBatches(ctx context.Context, actor internal.Actor, userID int64) ([]*ImportBatch, error)
	DeleteBatch(ctx context.Context, actor internal.Actor, id int64) error
	Recover(ctx context.Context, actor internal.Actor, id int64) (*ImportBatch, error)
}

type Handler struct {
	*transport.BaseHandler
	Service        ServiceAPI
	MaxUploadBytes int64
}

func NewHandler(service ServiceAPI, maxUploadBytes int64, lg *slog.Logger) *Handler {
	return &Handler{
		BaseHandler:    transport.NewBaseHandler(lg),
		Service:        service,
		MaxUploadBytes: maxUploadBytes,
	}
}

// Upload handles POST /imports as multipart/form-data with a "file" part.
func (h *Handler) Upload(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.Actor(w, r)
	if !ok {
		return
	}

	if h.MaxUploadBytes > 0 {
		// leave headroom for the multipart envelope; the service enforces the exact cap
		r.Body = http.MaxBytesReader(w, r.Body, h.MaxUploadBytes+multipartMemory)
	}
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.WriteAppError(w, internal.NewValidationFieldError("file", "file exceeds the upload limit", internal.ErrCodeUploadTooLarge))
			return
		}
		h.WriteAppError(w, internal.NewValidationError("invalid multipart form", internal.ErrCodeValidationFailed))
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		h.WriteAppError(w, internal.NewValidationFieldError("file", "file is required", internal.ErrCodeValidationFailed))
		return
	}
	defer file.Close()

	in := UploadInput{Filename: header.Filename, Reader: file}
	if d := strings.TrimSpace(r.FormValue("description")); d != "" {
		in.Description = &d
	}

	b, err := h.Service.Upload(r.Context(), actor, in)
	if err != nil {
		h.WriteAppError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusAccepted, b)
}

func (h *Handler) CreateQueryBatch(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.Actor(w, r)
	if !ok {
		return
	}
	var in QueryInput
	if err := h.DecodeJSON(r, &in); err != nil {
		h.WriteAppError(w, err)
		return
	}
	b, err := h.Service.CreateQueryBatch(r.Context(), actor, in)
	if err != nil {
		h.WriteAppError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusAccepted, b)
}

func (h *Handler) CreateTableBatch(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.Actor(w, r)
	if !ok {
		return
	}
	var in TableInput
	if err := h.DecodeJSON(r, &in); err != nil {
		h.WriteAppError(w, err)
		return
	}
	b, err := h.Service.CreateTableBatch(r.Context(), actor, in)
	if err != nil {
		h.WriteAppError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusAccepted, b)
}

func (h *Handler) ListBatches(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.Actor(w, r)
	if !ok {
		return
	}
	userID, err := transport.QueryInt64(r, "user_id")
	if err != nil {
		h.WriteAppError(w, err)
		return
	}
	batches, err := h.Service.ListBatches(r.Context(), actor, userID)
	if err != nil {
		h.WriteAppError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, batches)
}

func (h *Handler) GetBatch(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.Actor(w, r)
	if !ok {
		return
	}
	id, ok := h.batchID(w, r)
	if !ok {
		return
	}
	b, err := h.Service.GetBatch(r.Context(), actor, id)
	if err != nil {
		h.WriteAppError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, b)
}

func (h *Handler) DeleteBatch(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.Actor(w, r)
	if !ok {
		return
	}
	id, ok := h.batchID(w, r)
	if !ok {
		return
	}
	if err := h.Service.DeleteBatch(r.Context(), actor, id); err != nil {
		h.WriteAppError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) Recover(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.Actor(w, r)
	if !ok {
		return
	}
	id, ok := h.batchID(w, r)
	if !ok {
		return
	}
	b, err := h.Service.Recover(r.Context(), actor, id)
	if err != nil && !internal.IsType(err, internal.ErrorTypeImportFailed) {
		h.WriteAppError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, b)
}

func (h *Handler) batchID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		h.WriteError(w, http.StatusBadRequest, "invalid import batch ID")
		return 0, false
	}
	return id, true
}
