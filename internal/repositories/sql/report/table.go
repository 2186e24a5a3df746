package report

import (
	"time"

	"gorm.io/gorm"
)

const (
	tableName = "reports"
	createdAt = "CreatedAt"

	// FilenameMaxLen matches the size of the filename column.
	FilenameMaxLen = 255
)

// Report is one persisted analysis. Confidence is a percentage in [0,100].
// HeatmapPath is the image shown to the user: the composite when saliency
// succeeded, otherwise the original upload.
type Report struct {
	ID           uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	Filename     string    `gorm:"size:255" json:"filename"`
	Prediction   string    `gorm:"size:100" json:"prediction"`
	Confidence   float64   `json:"confidence"`
	HeatmapPath  string    `gorm:"size:255" json:"heatmap_path"`
	OriginalPath string    `gorm:"size:255" json:"original_path"`
	CreatedAt    time.Time `json:"created_at"`
}

func (Report) TableName() string {
	return tableName
}

func (r *Report) BeforeCreate(tx *gorm.DB) (err error) {
	if r.CreatedAt.IsZero() {
		tx.Statement.SetColumn(createdAt, time.Now().UTC())
	}
	return
}
