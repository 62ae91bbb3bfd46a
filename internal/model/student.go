package model

import (
	"time"

	"gorm.io/gorm"
)

// Student is a tenant-scoped CRM record. Deletion is soft: archived students
// keep their rows but never surface through scoped queries.
type Student struct {
	ID                 uint           `json:"id" gorm:"primaryKey"`
	BranchID           *uint          `json:"branch_id,omitempty" gorm:"index"`
	Matricule          string         `json:"matricule" gorm:"type:varchar(50);uniqueIndex;not null"`
	LastName           string         `json:"last_name" gorm:"type:varchar(120);not null"`
	FirstNames         string         `json:"first_names" gorm:"type:varchar(160);not null"`
	Gender             string         `json:"gender" gorm:"type:varchar(20);not null"`
	BirthDate          *time.Time     `json:"birth_date,omitempty"`
	Email              string         `json:"email,omitempty" gorm:"type:varchar(120)"`
	Phone              string         `json:"phone,omitempty" gorm:"type:varchar(40)"`
	Address            string         `json:"address,omitempty" gorm:"type:text"`
	FieldOfStudy       string         `json:"field_of_study" gorm:"type:varchar(120);not null"`
	Level              string         `json:"level" gorm:"type:varchar(80);not null"`
	Promotion          string         `json:"promotion" gorm:"type:varchar(20);not null"`
	WishedCountry      string         `json:"wished_country,omitempty" gorm:"type:varchar(120)"`
	WishedCity         string         `json:"wished_city,omitempty" gorm:"type:varchar(120)"`
	WishedProgram      string         `json:"wished_program,omitempty" gorm:"type:varchar(255)"`
	ProjectNotes       string         `json:"project_notes,omitempty" gorm:"type:text"`
	GlobalStatus       string         `json:"global_status" gorm:"type:varchar(30);not null;default:'prospect'"`
	EnrollmentStatus   string         `json:"enrollment_status" gorm:"type:varchar(20);not null;default:'actif'"`
	CreatedAt          time.Time      `json:"created_at"`
	UpdatedAt          time.Time      `json:"updated_at"`
	DeletedAt          gorm.DeletedAt `json:"-" gorm:"index"`

	Branch *Branch `json:"branch,omitempty" gorm:"foreignKey:BranchID"`
}

// StudyCase tracks one study-abroad procedure for a student.
type StudyCase struct {
	ID                    uint       `json:"id" gorm:"primaryKey"`
	StudentID             uint       `json:"student_id" gorm:"index;not null"`
	BranchID              uint       `json:"branch_id" gorm:"index;not null"`
	DestinationCountry    string     `json:"destination_country,omitempty" gorm:"type:varchar(120)"`
	DestinationCity       string     `json:"destination_city,omitempty" gorm:"type:varchar(120)"`
	Status                string     `json:"status" gorm:"type:varchar(40);not null;default:'nouveau'"`
	StartDate             *time.Time `json:"start_date,omitempty"`
	ExpectedDepartureDate *time.Time `json:"expected_departure_date,omitempty"`
	ActualDepartureDate   *time.Time `json:"actual_departure_date,omitempty"`
	ArrivalDate           *time.Time `json:"arrival_date,omitempty"`
	IsActive              bool       `json:"is_active" gorm:"default:true;not null"`
	CreatedAt             time.Time  `json:"created_at"`
	UpdatedAt             time.Time  `json:"updated_at"`

	Student *Student `json:"student,omitempty" gorm:"foreignKey:StudentID"`
	Branch  *Branch  `json:"branch,omitempty" gorm:"foreignKey:BranchID"`
}

// Appointment is a tenant-scoped booking request from a student or visitor.
type Appointment struct {
	ID             uint       `json:"id" gorm:"primaryKey"`
	StudentID      *uint      `json:"student_id,omitempty" gorm:"index"`
	BranchID       *uint      `json:"branch_id,omitempty" gorm:"index"`
	Motif          string     `json:"motif" gorm:"type:varchar(255);not null"`
	RequestedDate  time.Time  `json:"requested_date" gorm:"not null"`
	RequestedSlot  string     `json:"requested_slot" gorm:"type:varchar(80);not null"`
	ResponderName  string     `json:"responder_name,omitempty" gorm:"type:varchar(255)"`
	ResponderEmail string     `json:"responder_email,omitempty" gorm:"type:varchar(255)"`
	ResponderPhone string     `json:"responder_phone,omitempty" gorm:"type:varchar(80)"`
	Comment        string     `json:"comment,omitempty" gorm:"type:text"`
	Status         string     `json:"status" gorm:"type:varchar(20);not null;default:'pending'"`
	AdminComment   string     `json:"admin_comment,omitempty" gorm:"type:text"`
	ProcessedBy    *uint      `json:"processed_by,omitempty"`
	ProcessedAt    *time.Time `json:"processed_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
}
