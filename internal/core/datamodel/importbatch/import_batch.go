package importbatch

import "time"

type ImportBatch struct {
	ID            int64      `gorm:"primaryKey"`
	UserID        int64      `gorm:"column:user_id;not null;index"`
	Filename      string     `gorm:"column:filename;size:255;not null"`
	Path          string     `gorm:"column:path;size:1024"`
	Size          int64      `gorm:"column:size;not null"`
	SourceKind    string     `gorm:"column:source_kind;size:20;not null"`
	SourceRef     string     `gorm:"column:source_ref;size:255"`
	SourceURL     string     `gorm:"column:source_url;size:1024"`
	RowCount      int        `gorm:"column:row_count;not null"`
	ImportedCount int        `gorm:"column:imported_count;not null"`
	RejectedCount int        `gorm:"column:rejected_count;not null"`
	Status        string     `gorm:"column:status;size:20;not null;index"`
	ErrorMessage  *string    `gorm:"column:error_message"`
	Description   *string    `gorm:"column:description;size:255"`
	UploadedAt    time.Time  `gorm:"column:uploaded_at;not null"`
	UpdatedAt     time.Time  `gorm:"column:updated_at;autoUpdateTime"`
	CompletedAt   *time.Time `gorm:"column:completed_at"`
}

func (ImportBatch) TableName() string {
	return "import_batches"
}
