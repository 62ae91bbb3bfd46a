package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/EUDYDEV/eproject-saas/internal/authz"
	"github.com/EUDYDEV/eproject-saas/internal/model"
	"github.com/EUDYDEV/eproject-saas/pkg/database"
	"github.com/EUDYDEV/eproject-saas/pkg/logger"
)

// Study-abroad procedure pipeline statuses, in rough chronological order.
var caseStatuses = map[string]bool{
	"nouveau":      true,
	"en_cours":     true,
	"complet":      true,
	"visa_obtenu":  true,
	"visa_refuse":  true,
	"parti":        true,
	"annule":       true,
}

// CaseRequest defines the structure for procedure creation requests
type CaseRequest struct {
	StudentID             uint       `json:"student_id" validate:"required"`
	DestinationCountry    string     `json:"destination_country" validate:"max=120"`
	DestinationCity       string     `json:"destination_city" validate:"max=120"`
	StartDate             *time.Time `json:"start_date"`
	ExpectedDepartureDate *time.Time `json:"expected_departure_date"`
}

// ListCases retrieves the procedures visible to the actor.
func ListCases(c echo.Context) error {
	log := logger.FromEcho(c)
	actor := authz.ActorFromEcho(c)

	var cases []model.StudyCase
	query := resolver.ScopeQuery(database.GetDB().Model(&model.StudyCase{}), &model.StudyCase{}, actor)

	if status := c.QueryParam("status"); status != "" {
		query = query.Where("status = ?", status)
	}
	if studentID := c.QueryParam("student_id"); studentID != "" {
		query = query.Where("student_id = ?", studentID)
	}

	if err := query.Preload("Student").Order("created_at DESC").Find(&cases).Error; err != nil {
		log.Error("Failed to list procedures", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to retrieve procedures"})
	}

	return c.JSON(http.StatusOK, cases)
}

// CreateCase opens a new procedure for a student the actor can see. The
// procedure lands on the student's branch, not the actor's.
func CreateCase(c echo.Context) error {
	log := logger.FromEcho(c)
	actor := authz.ActorFromEcho(c)

	var req CaseRequest
	if err := c.Bind(&req); err != nil {
		log.Error("Invalid request data", zap.Error(err))
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request data"})
	}
	if err := validate.Struct(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "validation failed", "details": err.Error()})
	}

	var student model.Student
	q := resolver.ScopeQuery(database.GetDB().Model(&model.Student{}), &model.Student{}, actor)
	if err := q.First(&student, req.StudentID).Error; err != nil {
		log.Warn("Student out of scope for procedure creation",
			zap.Uint("user_id", actor.UserID),
			zap.Uint("student_id", req.StudentID))
		return c.JSON(http.StatusNotFound, echo.Map{"error": "student not found"})
	}
	if student.BranchID == nil {
		return c.JSON(http.StatusConflict, echo.Map{"error": "student is not attached to a branch"})
	}

	studyCase := model.StudyCase{
		StudentID:             student.ID,
		BranchID:              *student.BranchID,
		DestinationCountry:    req.DestinationCountry,
		DestinationCity:       req.DestinationCity,
		Status:                "nouveau",
		StartDate:             req.StartDate,
		ExpectedDepartureDate: req.ExpectedDepartureDate,
		IsActive:              true,
	}
	if err := database.GetDB().Create(&studyCase).Error; err != nil {
		log.Error("Failed to create procedure", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to create procedure"})
	}

	log.Info("Procedure created",
		zap.Uint("case_id", studyCase.ID),
		zap.Uint("student_id", student.ID))
	return c.JSON(http.StatusCreated, studyCase)
}

// UpdateCaseStatus moves a procedure through the pipeline.
func UpdateCaseStatus(c echo.Context) error {
	log := logger.FromEcho(c)
	actor := authz.ActorFromEcho(c)

	var req struct {
		Status              string     `json:"status" validate:"required"`
		ActualDepartureDate *time.Time `json:"actual_departure_date"`
		ArrivalDate         *time.Time `json:"arrival_date"`
	}
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request data"})
	}
	if !caseStatuses[req.Status] {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "unknown procedure status"})
	}

	var studyCase model.StudyCase
	q := resolver.ScopeQuery(database.GetDB().Model(&model.StudyCase{}), &model.StudyCase{}, actor)
	if err := q.First(&studyCase, c.Param("id")).Error; err != nil {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "procedure not found"})
	}

	studyCase.Status = req.Status
	if req.ActualDepartureDate != nil {
		studyCase.ActualDepartureDate = req.ActualDepartureDate
	}
	if req.ArrivalDate != nil {
		studyCase.ArrivalDate = req.ArrivalDate
	}
	if req.Status == "annule" || req.Status == "parti" {
		studyCase.IsActive = false
	}

	if err := database.GetDB().Save(&studyCase).Error; err != nil {
		log.Error("Failed to update procedure", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to update procedure"})
	}

	log.Info("Procedure status updated",
		zap.Uint("case_id", studyCase.ID),
		zap.String("status", req.Status))
	return c.JSON(http.StatusOK, studyCase)
}
