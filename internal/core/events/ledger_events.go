package events

import "time"

const (
	EventTypeExpenseCreated  = "expense.created"
	EventTypeExpenseUpdated  = "expense.updated"
	EventTypeExpenseDeleted  = "expense.deleted"
	EventTypeImportCompleted = "import.completed"
	EventTypeImportDeleted   = "import.deleted"
)

type ExpenseCreatedEvent struct {
	BaseEvent
	ExpenseID int64     `json:"expense_id"`
	Category  string    `json:"category"`
	Date      time.Time `json:"date"`
}

func NewExpenseCreatedEvent(expenseID, userID int64, category string, date time.Time) *ExpenseCreatedEvent {
	return &ExpenseCreatedEvent{
		BaseEvent: newBase(EventTypeExpenseCreated, userID),
		ExpenseID: expenseID,
		Category:  category,
		Date:      date,
	}
}

// ExpenseUpdatedEvent carries the row's state after the change.
type ExpenseUpdatedEvent struct {
	BaseEvent
	ExpenseID int64     `json:"expense_id"`
	Category  string    `json:"category"`
	Date      time.Time `json:"date"`
}

func NewExpenseUpdatedEvent(expenseID, userID int64, category string, date time.Time) *ExpenseUpdatedEvent {
	return &ExpenseUpdatedEvent{
		BaseEvent: newBase(EventTypeExpenseUpdated, userID),
		ExpenseID: expenseID,
		Category:  category,
		Date:      date,
	}
}

type ExpenseDeletedEvent struct {
	BaseEvent
	ExpenseID int64 `json:"expense_id"`
}

func NewExpenseDeletedEvent(expenseID, userID int64) *ExpenseDeletedEvent {
	return &ExpenseDeletedEvent{
		BaseEvent: newBase(EventTypeExpenseDeleted, userID),
		ExpenseID: expenseID,
	}
}

type ImportCompletedEvent struct {
	BaseEvent
	BatchID       int64 `json:"batch_id"`
	ImportedCount int   `json:"imported_count"`
}

func NewImportCompletedEvent(batchID, userID int64, imported int) *ImportCompletedEvent {
	return &ImportCompletedEvent{
		BaseEvent:     newBase(EventTypeImportCompleted, userID),
		BatchID:       batchID,
		ImportedCount: imported,
	}
}

// ImportDeletedEvent is published after a batch and its expenses are removed.
type ImportDeletedEvent struct {
	BaseEvent
	BatchID      int64 `json:"batch_id"`
	RemovedCount int64 `json:"removed_count"`
}

func NewImportDeletedEvent(batchID, userID, removed int64) *ImportDeletedEvent {
	return &ImportDeletedEvent{
		BaseEvent:    newBase(EventTypeImportDeleted, userID),
		BatchID:      batchID,
		RemovedCount: removed,
	}
}
