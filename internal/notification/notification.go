package notification

import (
	"time"

	notificationDatamodel "github.com/frahmantamala/expense-insights/internal/core/datamodel/notification"
)

type Kind string

const (
	KindInfo    Kind = "info"
	KindWarning Kind = "warning"
	KindDanger  Kind = "danger"
	KindSuccess Kind = "success"
)

// Severity orders kinds for escalation: a danger alert replaces a same-day warning.
func (k Kind) Severity() int {
	switch k {
	case KindDanger:
		return 2
	case KindWarning:
		return 1
	default:
		return 0
	}
}

type Notification struct {
	ID          int64     `json:"id"`
	UserID      int64     `json:"user_id"`
	Title       string    `json:"title"`
	Body        string    `json:"body"`
	Kind        Kind      `json:"kind"`
	DedupKey    string    `json:"-"`
	CreatedDay  time.Time `json:"-"`
	IsRead      bool      `json:"is_read"`
	RelatedID   *int64    `json:"related_id,omitempty"`
	RelatedType *string   `json:"related_type,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// NotifyInput describes an alert to raise. Related* point at the record that caused it.
// DedupKey groups alerts that count as the same one for the day; it defaults to the title.
type NotifyInput struct {
	UserID      int64
	DedupKey    string
	Title       string
	Body        string
	Kind        Kind
	RelatedID   *int64
	RelatedType *string
}

func ToDataModel(n *Notification) *notificationDatamodel.Notification {
	return &notificationDatamodel.Notification{
		ID:          n.ID,
		UserID:      n.UserID,
		Title:       n.Title,
		Body:        n.Body,
		Kind:        string(n.Kind),
		Severity:    n.Kind.Severity(),
		DedupKey:    n.DedupKey,
		CreatedDay:  n.CreatedDay,
		IsRead:      n.IsRead,
		RelatedID:   n.RelatedID,
		RelatedType: n.RelatedType,
		CreatedAt:   n.CreatedAt,
	}
}

func FromDataModel(n *notificationDatamodel.Notification) *Notification {
	return &Notification{
		ID:          n.ID,
		UserID:      n.UserID,
		Title:       n.Title,
		Body:        n.Body,
		Kind:        Kind(n.Kind),
		DedupKey:    n.DedupKey,
		CreatedDay:  n.CreatedDay,
		IsRead:      n.IsRead,
		RelatedID:   n.RelatedID,
		RelatedType: n.RelatedType,
		CreatedAt:   n.CreatedAt,
	}
}
