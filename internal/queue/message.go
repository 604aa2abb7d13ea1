package queue

import (
	"encoding/json"
	"time"
)

// ImportMessage asks a worker to process one import batch. The worker loads everything else
// from the database.
type ImportMessage struct {
	BatchID   int64     `json:"batch_id"`
	Timestamp time.Time `json:"timestamp"`
}

func NewImportMessage(batchID int64) *ImportMessage {
	return &ImportMessage{BatchID: batchID, Timestamp: time.Now()}
}

func (m *ImportMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func ImportMessageFromJSON(data []byte) (*ImportMessage, error) {
	var msg ImportMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
