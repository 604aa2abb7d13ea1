package importer

import (
	"time"

	importDatamodel "github.com/frahmantamala/expense-insights/internal/core/datamodel/importbatch"
	"github.com/frahmantamala/expense-insights/internal/importer/source"
)

type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// Terminal reports whether the batch can no longer change status.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

type ImportBatch struct {
	ID            int64       `json:"id"`
	UserID        int64       `json:"user_id"`
	Filename      string      `json:"filename"`
	Path          string      `json:"-"`
	Size          int64       `json:"size"`
	SourceKind    source.Kind `json:"source_kind"`
	SourceRef     string      `json:"source_ref,omitempty"`
	SourceURL     string      `json:"source_url,omitempty"`
	RowCount      int         `json:"row_count"`
	ImportedCount int         `json:"imported_count"`
	RejectedCount int         `json:"rejected_count"`
	Status        Status      `json:"status"`
	ErrorMessage  *string     `json:"error_message,omitempty"`
	Description   *string     `json:"description,omitempty"`
	UploadedAt    time.Time   `json:"uploaded_at"`
	CompletedAt   *time.Time  `json:"completed_at,omitempty"`
}

// Outcome is what a successful run records on the batch.
type Outcome struct {
	RowCount      int
	ImportedCount int
	RejectedCount int
}

func ToDataModel(b *ImportBatch) *importDatamodel.ImportBatch {
	return &importDatamodel.ImportBatch{
		ID:            b.ID,
		UserID:        b.UserID,
		Filename:      b.Filename,
		Path:          b.Path,
		Size:          b.Size,
		SourceKind:    string(b.SourceKind),
		SourceRef:     b.SourceRef,
		SourceURL:     b.SourceURL,
		RowCount:      b.RowCount,
		ImportedCount: b.ImportedCount,
		RejectedCount: b.RejectedCount,
		Status:        string(b.Status),
		ErrorMessage:  b.ErrorMessage,
		Description:   b.Description,
		UploadedAt:    b.UploadedAt,
		CompletedAt:   b.CompletedAt,
	}
}

func FromDataModel(b *importDatamodel.ImportBatch) *ImportBatch {
	return &ImportBatch{
		ID:            b.ID,
		UserID:        b.UserID,
		Filename:      b.Filename,
		Path:          b.Path,
		Size:          b.Size,
		SourceKind:    source.Kind(b.SourceKind),
		SourceRef:     b.SourceRef,
		SourceURL:     b.SourceURL,
		RowCount:      b.RowCount,
		ImportedCount: b.ImportedCount,
		RejectedCount: b.RejectedCount,
		Status:        Status(b.Status),
		ErrorMessage:  b.ErrorMessage,
		Description:   b.Description,
		UploadedAt:    b.UploadedAt,
		CompletedAt:   b.CompletedAt,
	}
}
