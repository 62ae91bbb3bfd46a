package model

import (
	"time"
)

// Branch represents a single agency location. It is the unit of data
// isolation and billing for the whole back office.
type Branch struct {
	ID          uint      `json:"id" gorm:"primaryKey"`
	Name        string    `json:"name" gorm:"type:varchar(120);not null"`
	Slug        string    `json:"slug" gorm:"type:varchar(120);uniqueIndex"`
	CountryCode string    `json:"country_code" gorm:"type:varchar(10);not null"`
	City        string    `json:"city,omitempty" gorm:"type:varchar(120)"`
	Address     string    `json:"address,omitempty" gorm:"type:varchar(255)"`
	Phone       string    `json:"phone,omitempty" gorm:"type:varchar(80)"`
	Email       string    `json:"email,omitempty" gorm:"type:varchar(120)"`
	LogoURL     string    `json:"logo_url,omitempty" gorm:"type:varchar(255)"`
	WebsiteURL  string    `json:"website_url,omitempty" gorm:"type:varchar(255)"`
	Timezone    string    `json:"timezone,omitempty" gorm:"type:varchar(80)"`
	CreatedAt   time.Time `json:"created_at"`
}
