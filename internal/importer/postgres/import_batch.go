package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/frahmantamala/expense-insights/internal"
	importDatamodel "github.com/frahmantamala/expense-insights/internal/core/datamodel/importbatch"
	"github.com/frahmantamala/expense-insights/internal/importer"
	"gorm.io/gorm"
)

type ImportBatchRepository struct {
	db *gorm.DB
}

func NewImportBatchRepository(db *gorm.DB) importer.RepositoryAPI {
	return &ImportBatchRepository{db: db}
}

func (r *ImportBatchRepository) Create(ctx context.Context, b *importer.ImportBatch) error {
	row := importer.ToDataModel(b)
	if err := r.db.WithContext(ctx).Create(row).Error; err != nil {
		return err
	}
	b.ID = row.ID
	return nil
}

func (r *ImportBatchRepository) GetByID(ctx context.Context, id int64) (*importer.ImportBatch, error) {
	var row importDatamodel.ImportBatch
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, internal.ErrBatchNotFound
		}
		return nil, err
	}
	return importer.FromDataModel(&row), nil
}

func (r *ImportBatchRepository) ListByUser(ctx context.Context, userID int64) ([]*importer.ImportBatch, error) {
	var rows []*importDatamodel.ImportBatch
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("uploaded_at DESC, id DESC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make([]*importer.ImportBatch, len(rows))
	for i, row := range rows {
		out[i] = importer.FromDataModel(row)
	}
	return out, nil
}

func (r *ImportBatchRepository) Claim(ctx context.Context, id int64) (bool, error) {
	result := r.db.WithContext(ctx).Model(&importDatamodel.ImportBatch{}).
		Where("id = ? AND status = ?", id, string(importer.StatusPending)).
		Update("status", string(importer.StatusProcessing))
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

func (r *ImportBatchRepository) Complete(ctx context.Context, id int64, outcome importer.Outcome, at time.Time) error {
	return r.finish(ctx, id, map[string]interface{}{
		"status":         string(importer.StatusCompleted),
		"row_count":      outcome.RowCount,
		"imported_count": outcome.ImportedCount,
		"rejected_count": outcome.RejectedCount,
		"error_message":  nil,
		"completed_at":   at,
	})
}

func (r *ImportBatchRepository) Fail(ctx context.Context, id int64, message string, at time.Time) error {
	return r.finish(ctx, id, map[string]interface{}{
		"status":         string(importer.StatusFailed),
		"imported_count": 0,
		"error_message":  message,
		"completed_at":   at,
	})
}

// finish only moves batches out of processing, so terminal states never change.
func (r *ImportBatchRepository) finish(ctx context.Context, id int64, updates map[string]interface{}) error {
	result := r.db.WithContext(ctx).Model(&importDatamodel.ImportBatch{}).
		Where("id = ? AND status = ?", id, string(importer.StatusProcessing)).
		Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return internal.ErrBatchNotClaimable
	}
	return nil
}

func (r *ImportBatchRepository) Delete(ctx context.Context, id int64) error {
	result := r.db.WithContext(ctx).Where("id = ?", id).Delete(&importDatamodel.ImportBatch{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return internal.ErrBatchNotFound
	}
	return nil
}
