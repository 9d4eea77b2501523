package model

import "time"

// Prediction is one served classification. The uploaded bytes are never
// stored, only their digest.
type Prediction struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	RequestID  string    `gorm:"size:36;not null;index" json:"request_id"`
	Filename   string    `gorm:"size:255" json:"filename"`
	SizeBytes  int64     `gorm:"not null" json:"size_bytes"`
	SHA256     string    `gorm:"column:sha256;size:64;not null;index" json:"sha256"`
	Label      string    `gorm:"size:64;index" json:"label"`
	Confidence float64   `json:"confidence"`
	Error      string    `gorm:"size:255" json:"error,omitempty"`
	Cached     bool      `json:"cached"`
	CreatedAt  time.Time `gorm:"index" json:"created_at"`
}
