package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/EUDYDEV/eproject-saas/pkg/database"
)

func HealthCheck(c echo.Context) error {
	sqlDB, err := database.GetDB().DB()
	if err != nil || sqlDB.Ping() != nil {
		return c.JSON(http.StatusServiceUnavailable, echo.Map{
			"status":   "degraded",
			"database": "down",
		})
	}
	return c.JSON(http.StatusOK, echo.Map{
		"status":   "ok",
		"database": "up",
	})
}

// RobotsTxt keeps crawlers out of the back office.
func RobotsTxt(c echo.Context) error {
	return c.String(http.StatusOK, "User-agent: *\nDisallow: /\n")
}

func SitemapXML(c echo.Context) error {
	return c.Blob(http.StatusOK, "application/xml",
		[]byte(`<?xml version="1.0" encoding="UTF-8"?><urlset xmlns="http://www.sitemaps.org/schemas/sitemap/0.9"></urlset>`))
}
