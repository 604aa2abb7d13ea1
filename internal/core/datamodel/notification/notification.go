package notification

import "time"

type Notification struct {
	ID          int64     `gorm:"primaryKey"`
	UserID      int64     `gorm:"column:user_id;not null;uniqueIndex:idx_notifications_dedup,priority:1"`
	Title       string    `gorm:"column:title;size:150;not null"`
	Body        string    `gorm:"column:body;not null"`
	Kind        string    `gorm:"column:kind;size:20;not null"`
	Severity    int       `gorm:"column:severity;not null"`
	DedupKey    string    `gorm:"column:dedup_key;size:150;not null;uniqueIndex:idx_notifications_dedup,priority:2"`
	CreatedDay  time.Time `gorm:"column:created_day;type:date;not null;uniqueIndex:idx_notifications_dedup,priority:3"`
	IsRead      bool      `gorm:"column:is_read;not null"`
	RelatedID   *int64    `gorm:"column:related_id"`
	RelatedType *string   `gorm:"column:related_type;size:50"`
	CreatedAt   time.Time `gorm:"column:created_at;not null"`
}

func (Notification) TableName() string {
	return "notifications"
}
