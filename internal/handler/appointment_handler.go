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

// AppointmentRequest defines the structure for appointment creation requests
type AppointmentRequest struct {
	StudentID      *uint     `json:"student_id"`
	BranchID       *uint     `json:"branch_id"`
	Motif          string    `json:"motif" validate:"required,max=255"`
	RequestedDate  time.Time `json:"requested_date" validate:"required"`
	RequestedSlot  string    `json:"requested_slot" validate:"required,max=80"`
	ResponderName  string    `json:"responder_name" validate:"max=255"`
	ResponderEmail string    `json:"responder_email" validate:"omitempty,email"`
	ResponderPhone string    `json:"responder_phone" validate:"max=80"`
	Comment        string    `json:"comment"`
}

func ListAppointments(c echo.Context) error {
	log := logger.FromEcho(c)
	actor := authz.ActorFromEcho(c)

	var appointments []model.Appointment
	query := resolver.ScopeQuery(database.GetDB().Model(&model.Appointment{}), &model.Appointment{}, actor)

	if status := c.QueryParam("status"); status != "" {
		query = query.Where("status = ?", status)
	}

	if err := query.Order("requested_date ASC").Find(&appointments).Error; err != nil {
		log.Error("Failed to list appointments", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to retrieve appointments"})
	}

	return c.JSON(http.StatusOK, appointments)
}

func CreateAppointment(c echo.Context) error {
	log := logger.FromEcho(c)
	actor := authz.ActorFromEcho(c)

	var req AppointmentRequest
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
		return c.JSON(http.StatusForbidden, echo.Map{"error": "branch is outside your scope"})
	}

	appointment := model.Appointment{
		StudentID:      req.StudentID,
		BranchID:       branchID,
		Motif:          req.Motif,
		RequestedDate:  req.RequestedDate,
		RequestedSlot:  req.RequestedSlot,
		ResponderName:  req.ResponderName,
		ResponderEmail: req.ResponderEmail,
		ResponderPhone: req.ResponderPhone,
		Comment:        req.Comment,
		Status:         "pending",
	}
	if err := database.GetDB().Create(&appointment).Error; err != nil {
		log.Error("Failed to create appointment", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to create appointment"})
	}

	log.Info("Appointment created", zap.Uint("appointment_id", appointment.ID))
	return c.JSON(http.StatusCreated, appointment)
}

// ProcessAppointment accepts or declines a pending appointment and records
// who processed it. The requester gets an email when they left an address.
func ProcessAppointment(c echo.Context) error {
	log := logger.FromEcho(c)
	actor := authz.ActorFromEcho(c)

	var req struct {
		Status       string `json:"status" validate:"required,oneof=accepted declined"`
		AdminComment string `json:"admin_comment"`
	}
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request data"})
	}
	if err := validate.Struct(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "validation failed", "details": err.Error()})
	}

	var appointment model.Appointment
	q := resolver.ScopeQuery(database.GetDB().Model(&model.Appointment{}), &model.Appointment{}, actor)
	if err := q.First(&appointment, c.Param("id")).Error; err != nil {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "appointment not found"})
	}
	if appointment.Status != "pending" {
		return c.JSON(http.StatusConflict, echo.Map{"error": "appointment has already been processed"})
	}

	now := time.Now().UTC()
	appointment.Status = req.Status
	appointment.AdminComment = req.AdminComment
	appointment.ProcessedBy = &actor.UserID
	appointment.ProcessedAt = &now

	if err := database.GetDB().Save(&appointment).Error; err != nil {
		log.Error("Failed to process appointment", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to process appointment"})
	}

	if appointment.ResponderEmail != "" {
		subject := "Votre demande de rendez-vous"
		body := "Votre demande de rendez-vous a été acceptée."
		if req.Status == "declined" {
			body = "Votre demande de rendez-vous n'a pas pu être retenue."
		}
		if req.AdminComment != "" {
			body += "\n\n" + req.AdminComment
		}
		if err := mail.Send(appointment.BranchID, appointment.ResponderEmail, subject,
			"<p>"+body+"</p>", body, &actor.UserID); err != nil {
			log.Warn("Appointment notification failed", zap.Error(err))
		}
	}

	log.Info("Appointment processed",
		zap.Uint("appointment_id", appointment.ID),
		zap.String("status", req.Status))
	return c.JSON(http.StatusOK, appointment)
}
