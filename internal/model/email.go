package model

import (
	"time"
)

// SMTPSetting holds outgoing mail credentials. A row with a nil BranchID is
// the platform-global fallback; branch rows take precedence for that branch.
type SMTPSetting struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	BranchID  *uint     `json:"branch_id,omitempty" gorm:"index"`
	Host      string    `json:"host" gorm:"type:varchar(255);not null"`
	Port      int       `json:"port" gorm:"not null;default:587"`
	Username  string    `json:"username" gorm:"type:varchar(255);not null"`
	Password  string    `json:"-" gorm:"type:varchar(255);not null"`
	UseTLS    bool      `json:"use_tls" gorm:"default:true;not null"`
	FromEmail string    `json:"from_email" gorm:"type:varchar(255);not null"`
	UpdatedBy uint      `json:"updated_by" gorm:"not null"`
	UpdatedAt time.Time `json:"updated_at"`
}

// EmailLog records every notification attempt, failed ones included. Billing
// state transitions commit regardless of what lands here.
type EmailLog struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	BranchID  *uint     `json:"branch_id,omitempty" gorm:"index"`
	ToEmail   string    `json:"to_email" gorm:"type:varchar(255);not null"`
	Subject   string    `json:"subject" gorm:"type:varchar(255);not null"`
	Status    string    `json:"status" gorm:"type:varchar(30);not null"` // "sent" or "failed"
	Error     string    `json:"error,omitempty" gorm:"type:text"`
	SentBy    *uint     `json:"sent_by,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// AuditLog is a best-effort action trail. Writes here must never fail a request.
type AuditLog struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	BranchID  *uint     `json:"branch_id,omitempty" gorm:"index"`
	StudentID *uint     `json:"student_id,omitempty"`
	UserID    uint      `json:"user_id" gorm:"not null"`
	TypeEvent string    `json:"type_event" gorm:"type:varchar(80);not null"`
	Action    string    `json:"action,omitempty" gorm:"type:varchar(80)"`
	Details   string    `json:"details,omitempty" gorm:"type:text"`
	CreatedAt time.Time `json:"created_at"`
}
