package postgres

import (
	"context"
	"errors"

	"github.com/frahmantamala/expense-insights/internal"
	notificationDatamodel "github.com/frahmantamala/expense-insights/internal/core/datamodel/notification"
	"github.com/frahmantamala/expense-insights/internal/notification"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const listLimit = 100

type NotificationRepository struct {
	db *gorm.DB
}

func NewNotificationRepository(db *gorm.DB) notification.RepositoryAPI {
	return &NotificationRepository{db: db}
}

var dedupColumns = []clause.Column{{Name: "user_id"}, {Name: "dedup_key"}, {Name: "created_day"}}

// CreateOrEscalate relies on the unique (user_id, dedup_key, created_day) index, so concurrent
// callers cannot both insert.
func (r *NotificationRepository) CreateOrEscalate(ctx context.Context, n *notification.Notification) (bool, error) {
	row := notification.ToDataModel(n)
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: dedupColumns, DoNothing: true}).
		Create(row)
	if res.Error != nil {
		return false, res.Error
	}
	if res.RowsAffected > 0 {
		n.ID = row.ID
		return true, nil
	}

	res = r.db.WithContext(ctx).Model(&notificationDatamodel.Notification{}).
		Where("user_id = ? AND dedup_key = ? AND created_day = ? AND severity < ?",
			row.UserID, row.DedupKey, row.CreatedDay, row.Severity).
		Updates(map[string]any{
			"title":        row.Title,
			"body":         row.Body,
			"kind":         row.Kind,
			"severity":     row.Severity,
			"is_read":      false,
			"related_id":   row.RelatedID,
			"related_type": row.RelatedType,
			"created_at":   row.CreatedAt,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *NotificationRepository) ListByUser(ctx context.Context, userID int64, unreadOnly bool) ([]*notification.Notification, error) {
	q := r.db.WithContext(ctx).Where("user_id = ?", userID)
	if unreadOnly {
		q = q.Where("is_read = ?", false)
	}
	var rows []*notificationDatamodel.Notification
	if err := q.Order("created_at DESC, id DESC").Limit(listLimit).Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]*notification.Notification, len(rows))
	for i, row := range rows {
		out[i] = notification.FromDataModel(row)
	}
	return out, nil
}

func (r *NotificationRepository) GetByID(ctx context.Context, id int64) (*notification.Notification, error) {
	var row notificationDatamodel.Notification
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, internal.ErrNotificationNotFound
		}
		return nil, err
	}
	return notification.FromDataModel(&row), nil
}

func (r *NotificationRepository) MarkRead(ctx context.Context, id int64) error {
	return r.db.WithContext(ctx).Model(&notificationDatamodel.Notification{}).
		Where("id = ?", id).
		Update("is_read", true).Error
}
