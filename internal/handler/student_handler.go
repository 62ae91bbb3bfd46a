package handler

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/EUDYDEV/eproject-saas/internal/authz"
	"github.com/EUDYDEV/eproject-saas/internal/model"
	"github.com/EUDYDEV/eproject-saas/pkg/database"
	"github.com/EUDYDEV/eproject-saas/pkg/logger"
)

// StudentRequest defines the structure for student creation/update requests
type StudentRequest struct {
	Matricule        string     `json:"matricule"`
	LastName         string     `json:"last_name" validate:"required,max=120"`
	FirstNames       string     `json:"first_names" validate:"required,max=160"`
	Gender           string     `json:"gender" validate:"required,max=20"`
	BirthDate        *time.Time `json:"birth_date"`
	Email            string     `json:"email" validate:"omitempty,email"`
	Phone            string     `json:"phone" validate:"max=40"`
	Address          string     `json:"address"`
	FieldOfStudy     string     `json:"field_of_study" validate:"required,max=120"`
	Level            string     `json:"level" validate:"required,max=80"`
	Promotion        string     `json:"promotion" validate:"required,max=20"`
	WishedCountry    string     `json:"wished_country" validate:"max=120"`
	WishedCity       string     `json:"wished_city" validate:"max=120"`
	WishedProgram    string     `json:"wished_program" validate:"max=255"`
	ProjectNotes     string     `json:"project_notes"`
	GlobalStatus     string     `json:"global_status"`
	EnrollmentStatus string     `json:"enrollment_status"`
	BranchID         *uint      `json:"branch_id"`
}

// scopedStudent fetches one student through the actor's visibility scope. An
// out-of-scope id looks exactly like a missing one.
func scopedStudent(c echo.Context, actor authz.Actor) (*model.Student, error) {
	var student model.Student
	q := resolver.ScopeQuery(database.GetDB().Model(&model.Student{}), &model.Student{}, actor)
	if err := q.First(&student, c.Param("id")).Error; err != nil {
		return nil, err
	}
	return &student, nil
}

// ListStudents retrieves the students visible to the actor, with optional
// filtering.
func ListStudents(c echo.Context) error {
	log := logger.FromEcho(c)
	actor := authz.ActorFromEcho(c)

	var students []model.Student
	query := resolver.ScopeQuery(database.GetDB().Model(&model.Student{}), &model.Student{}, actor)

	if search := strings.TrimSpace(c.QueryParam("q")); search != "" {
		like := "%" + strings.ToLower(search) + "%"
		query = query.Where(
			"LOWER(last_name) LIKE ? OR LOWER(first_names) LIKE ? OR LOWER(matricule) LIKE ?",
			like, like, like)
	}
	if status := c.QueryParam("status"); status != "" {
		query = query.Where("global_status = ?", status)
	}
	if promotion := c.QueryParam("promotion"); promotion != "" {
		query = query.Where("promotion = ?", promotion)
	}

	if err := query.Order("last_name ASC, first_names ASC").Find(&students).Error; err != nil {
		log.Error("Failed to list students", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to retrieve students"})
	}

	return c.JSON(http.StatusOK, students)
}

func GetStudent(c echo.Context) error {
	log := logger.FromEcho(c)
	actor := authz.ActorFromEcho(c)

	student, err := scopedStudent(c, actor)
	if err != nil {
		log.Warn("Student not found", zap.String("student_id", c.Param("id")))
		return c.JSON(http.StatusNotFound, echo.Map{"error": "student not found"})
	}

	// Attach the student's procedures for the detail page.
	var cases []model.StudyCase
	database.GetDB().Where("student_id = ?", student.ID).Order("created_at DESC").Find(&cases)

	return c.JSON(http.StatusOK, echo.Map{
		"student":    student,
		"procedures": cases,
	})
}

// generateMatricule builds a reasonably unique enrollment number when the
// request leaves it blank.
func generateMatricule() string {
	return fmt.Sprintf("ETU-%d-%s", time.Now().Year(),
		strings.ToUpper(uuid.New().String()[:8]))
}

func CreateStudent(c echo.Context) error {
	log := logger.FromEcho(c)
	actor := authz.ActorFromEcho(c)

	var req StudentRequest
	if err := c.Bind(&req); err != nil {
		log.Error("Invalid request data", zap.Error(err))
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request data"})
	}
	if err := validate.Struct(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "validation failed", "details": err.Error()})
	}

	branchID := req.BranchID
	if branchID == nil {
		branchID = actor.BranchID
	}
	if branchID != nil && !resolver.CanAccessBranch(branchID, actor) {
		log.Warn("Branch out of scope for student creation",
			zap.Uint("user_id", actor.UserID),
			zap.Uint("branch_id", *branchID))
		return c.JSON(http.StatusForbidden, echo.Map{"error": "branch is outside your scope"})
	}

	matricule := strings.TrimSpace(req.Matricule)
	if matricule == "" {
		matricule = generateMatricule()
	}
	var count int64
	database.GetDB().Model(&model.Student{}).Where("matricule = ?", matricule).Count(&count)
	if count > 0 {
		return c.JSON(http.StatusConflict, echo.Map{"error": "a student with this matricule already exists"})
	}

	student := model.Student{
		BranchID:         branchID,
		Matricule:        matricule,
		LastName:         req.LastName,
		FirstNames:       req.FirstNames,
		Gender:           req.Gender,
		BirthDate:        req.BirthDate,
		Email:            req.Email,
		Phone:            req.Phone,
		Address:          req.Address,
		FieldOfStudy:     req.FieldOfStudy,
		Level:            req.Level,
		Promotion:        req.Promotion,
		WishedCountry:    req.WishedCountry,
		WishedCity:       req.WishedCity,
		WishedProgram:    req.WishedProgram,
		ProjectNotes:     req.ProjectNotes,
		GlobalStatus:     req.GlobalStatus,
		EnrollmentStatus: req.EnrollmentStatus,
	}
	if student.GlobalStatus == "" {
		student.GlobalStatus = "prospect"
	}
	if student.EnrollmentStatus == "" {
		student.EnrollmentStatus = "actif"
	}

	if err := database.GetDB().Create(&student).Error; err != nil {
		log.Error("Failed to create student", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to create student"})
	}

	log.Info("Student created",
		zap.Uint("student_id", student.ID),
		zap.String("matricule", student.Matricule))
	return c.JSON(http.StatusCreated, student)
}

func UpdateStudent(c echo.Context) error {
	log := logger.FromEcho(c)
	actor := authz.ActorFromEcho(c)

	student, err := scopedStudent(c, actor)
	if err != nil {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "student not found"})
	}

	var req StudentRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request data"})
	}
	if err := validate.Struct(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "validation failed", "details": err.Error()})
	}

	// The matricule and branch never change through this endpoint.
	student.LastName = req.LastName
	student.FirstNames = req.FirstNames
	student.Gender = req.Gender
	student.BirthDate = req.BirthDate
	student.Email = req.Email
	student.Phone = req.Phone
	student.Address = req.Address
	student.FieldOfStudy = req.FieldOfStudy
	student.Level = req.Level
	student.Promotion = req.Promotion
	student.WishedCountry = req.WishedCountry
	student.WishedCity = req.WishedCity
	student.WishedProgram = req.WishedProgram
	student.ProjectNotes = req.ProjectNotes
	if req.GlobalStatus != "" {
		student.GlobalStatus = req.GlobalStatus
	}
	if req.EnrollmentStatus != "" {
		student.EnrollmentStatus = req.EnrollmentStatus
	}

	if err := database.GetDB().Save(student).Error; err != nil {
		log.Error("Failed to update student", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to update student"})
	}

	log.Info("Student updated", zap.Uint("student_id", student.ID))
	return c.JSON(http.StatusOK, student)
}

// DeleteStudent archives a student. The row stays for history but never
// surfaces through scoped queries again.
func DeleteStudent(c echo.Context) error {
	log := logger.FromEcho(c)
	actor := authz.ActorFromEcho(c)

	student, err := scopedStudent(c, actor)
	if err != nil {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "student not found"})
	}

	if err := database.GetDB().Delete(student).Error; err != nil {
		log.Error("Failed to archive student", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to archive student"})
	}

	log.Info("Student archived", zap.Uint("student_id", student.ID))
	return c.JSON(http.StatusOK, echo.Map{"message": "student archived"})
}
