package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/EUDYDEV/eproject-saas/internal/authz"
	"github.com/EUDYDEV/eproject-saas/internal/model"
	"github.com/EUDYDEV/eproject-saas/pkg/database"
	"github.com/EUDYDEV/eproject-saas/pkg/logger"
)

type branchCounts struct {
	BranchID uint  `json:"branch_id"`
	Count    int64 `json:"count"`
}

// Dashboard returns per-branch activity counts across the actor's visible
// branches.
func Dashboard(c echo.Context) error {
	log := logger.FromEcho(c)
	actor := authz.ActorFromEcho(c)

	ids := resolver.VisibleBranchIDs(actor)
	if ids == nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "authentication required"})
	}

	var branches []model.Branch
	if err := database.GetDB().Where("id IN ?", ids).Order("name ASC").Find(&branches).Error; err != nil {
		log.Error("Failed to load branches for dashboard", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to build dashboard"})
	}

	countByBranch := func(dest *[]branchCounts, m interface{}, extra string) {
		q := database.GetDB().Model(m).
			Select("branch_id, COUNT(*) AS count").
			Where("branch_id IN ?", ids).
			Group("branch_id")
		if extra != "" {
			q = q.Where(extra)
		}
		if err := q.Scan(dest).Error; err != nil {
			log.Warn("Dashboard count query failed", zap.Error(err))
		}
	}

	var students, activeCases, pendingAppointments []branchCounts
	countByBranch(&students, &model.Student{}, "")
	countByBranch(&activeCases, &model.StudyCase{}, "is_active = true")
	countByBranch(&pendingAppointments, &model.Appointment{}, "status = 'pending'")

	asMap := func(rows []branchCounts) map[uint]int64 {
		m := make(map[uint]int64, len(rows))
		for _, r := range rows {
			m[r.BranchID] = r.Count
		}
		return m
	}
	studentMap := asMap(students)
	caseMap := asMap(activeCases)
	apptMap := asMap(pendingAppointments)

	entries := make([]echo.Map, 0, len(branches))
	for _, b := range branches {
		entries = append(entries, echo.Map{
			"branch":               b,
			"students":             studentMap[b.ID],
			"active_procedures":    caseMap[b.ID],
			"pending_appointments": apptMap[b.ID],
		})
	}

	return c.JSON(http.StatusOK, echo.Map{"branches": entries})
}
