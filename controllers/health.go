package controllers

import (
	"musicschool_go/services"

	"github.com/gofiber/fiber/v2"
)

// HealthController exposes the dependency health report.
type HealthController struct {
	service *services.HealthService
}

func NewHealthController(service *services.HealthService) *HealthController {
	if service == nil {
		service = services.NewHealthService("", "")
	}
	return &HealthController{service: service}
}

// GetHealthStatus returns 503 only when a critical dependency is down.
func (hc *HealthController) GetHealthStatus(c *fiber.Ctx) error {
	report := hc.service.Report(c.UserContext())
	return c.Status(services.HTTPStatus(report.Status)).JSON(report)
}
