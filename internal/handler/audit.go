package handler

import (
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/EUDYDEV/eproject-saas/internal/model"
	"github.com/EUDYDEV/eproject-saas/pkg/database"
	"github.com/EUDYDEV/eproject-saas/pkg/logger"
)

// recordAudit appends a best-effort trail entry. A failed write is logged
// and swallowed: the audit trail never fails the request it describes.
func recordAudit(c echo.Context, userID uint, typeEvent, details string, branchID *uint, action string) {
	row := model.AuditLog{
		UserID:    userID,
		BranchID:  branchID,
		TypeEvent: typeEvent,
		Action:    action,
		Details:   details,
	}
	if err := database.GetDB().Create(&row).Error; err != nil {
		logger.FromEcho(c).Warn("Audit write failed",
			zap.String("type_event", typeEvent),
			zap.Error(err))
	}
}
