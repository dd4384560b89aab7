package models

import "time"

// Poster generation job states.
const (
	PosterStatusPending    = "pending"
	PosterStatusProcessing = "processing"
	PosterStatusCompleted  = "completed"
	PosterStatusFailed     = "failed"
)

// Poster is a generated poster owned by an account. Generation is paid for
// up front through the wallet service; the SpendReference ties the spend,
// the poster and a possible refund together in the credit ledger.
type Poster struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	AccountID      uint      `gorm:"not null;index:idx_posters_account_created,priority:1" json:"account_id"`
	JobID          string    `gorm:"type:varchar(36);default:'';index" json:"job_id"`
	Prompt         string    `gorm:"type:varchar(2000);not null" json:"prompt"`
	Style          string    `gorm:"type:varchar(200);default:''" json:"style"`
	Size           string    `gorm:"type:varchar(20);default:'1024x1024'" json:"size"`
	Status         string    `gorm:"type:varchar(20);not null;default:'pending';index" json:"status"`
	SpendReference string    `gorm:"type:varchar(255);not null" json:"spend_reference"`
	SpendAmount    int       `gorm:"not null;default:0" json:"spend_amount"`
	ImageURL       string    `gorm:"type:varchar(500);default:''" json:"image_url"`
	StorageKey     string    `gorm:"type:varchar(500);default:''" json:"-"`
	IsPublic       bool      `gorm:"not null;default:false;index" json:"is_public"`
	ErrorMessage   string    `gorm:"type:varchar(1000);default:''" json:"error_message,omitempty"`
	CreatedAt      time.Time `gorm:"autoCreateTime;index:idx_posters_account_created,priority:2" json:"created_at"`
	UpdatedAt      time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}
