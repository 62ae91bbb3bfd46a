package model

import (
	"time"
)

// User represents a back-office account. BranchID is the legacy single-branch
// pointer kept in sync opportunistically with Membership rows, which are the
// authoritative multi-branch visibility record.
type User struct {
	ID                 uint      `json:"id" gorm:"primaryKey"`
	BranchID           *uint     `json:"branch_id,omitempty" gorm:"index"`
	Username           string    `json:"username" gorm:"type:varchar(80);uniqueIndex;not null"`
	Email              string    `json:"email" gorm:"type:varchar(120);uniqueIndex;not null"`
	DisplayName        string    `json:"display_name,omitempty" gorm:"type:varchar(120)"`
	Phone              string    `json:"phone,omitempty" gorm:"type:varchar(40)"`
	PasswordHash       string    `json:"-" gorm:"type:varchar(255);not null"`
	PlatformRole       string    `json:"platform_role,omitempty" gorm:"type:varchar(50)"`
	Role               string    `json:"role" gorm:"type:varchar(30);not null;default:'EMPLOYEE'"`
	IsActive           bool      `json:"is_active" gorm:"default:true;not null"`
	MustChangePassword bool      `json:"must_change_password" gorm:"default:false;not null"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`

	// Relations
	Branch      *Branch      `json:"branch,omitempty" gorm:"foreignKey:BranchID"`
	Memberships []Membership `json:"memberships,omitempty" gorm:"foreignKey:UserID"`
}

// Membership links a user to a branch beyond the legacy single-pointer field.
// The (user, branch) pair is unique.
type Membership struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	UserID    uint      `json:"user_id" gorm:"not null;uniqueIndex:uq_membership_user_branch"`
	BranchID  uint      `json:"branch_id" gorm:"not null;uniqueIndex:uq_membership_user_branch"`
	Role      string    `json:"role" gorm:"type:varchar(30);not null;default:'STAFF'"` // OWNER or STAFF
	CreatedAt time.Time `json:"created_at"`

	Branch *Branch `json:"branch,omitempty" gorm:"foreignKey:BranchID"`
}
