package controllers

import (
	"strings"

	"musicschool_go/models"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

type StudentController struct {
	Resource[models.Student, *models.Student]
}

// StudentStatusRequest is the body of PATCH /students/:id/status
type StudentStatusRequest struct {
	Status string `json:"status" validate:"required"`
}

func NewStudentController() *StudentController {
	return &StudentController{Resource[models.Student, *models.Student]{
		Label:   "Student",
		Filters: map[string]string{"status": "status"},
		Order:   "first_name ASC, last_name ASC",
		Scope: func(c *fiber.Ctx, db *gorm.DB) (*gorm.DB, error) {
			if q := strings.TrimSpace(c.Query("search")); q != "" {
				like := "%" + q + "%"
				db = db.Where("first_name LIKE ? OR last_name LIKE ? OR parent_name LIKE ? OR phone LIKE ?", like, like, like, like)
			}
			return db, nil
		},
		Prepare: func(c *fiber.Ctx, s *models.Student) error {
			s.FirstName = strings.TrimSpace(s.FirstName)
			s.LastName = strings.TrimSpace(s.LastName)
			s.Status = strings.ToUpper(strings.TrimSpace(s.Status))
			if s.Status == "" {
				s.Status = models.StudentActive
			}
			return nil
		},
	}}
}

func isStudentStatus(status string) bool {
	switch status {
	case models.StudentActive, models.StudentInactive, models.StudentFrozen, models.StudentGraduated:
		return true
	}
	return false
}

// GetStudentsByStatus returns students with the status in the path
func (sc *StudentController) GetStudentsByStatus(c *fiber.Ctx) error {
	status := strings.ToUpper(c.Params("status"))
	if !isStudentStatus(status) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid student status",
		})
	}
	return sc.Find(c, func(db *gorm.DB) *gorm.DB {
		return db.Where("status = ?", status)
	})
}

// UpdateStudentStatus changes only the status of a student
func (sc *StudentController) UpdateStudentStatus(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return writeError(c, err)
	}

	var req StudentStatusRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}
	status := strings.ToUpper(strings.TrimSpace(req.Status))
	if !isStudentStatus(status) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid student status",
		})
	}
	return sc.Updates(c, id, map[string]interface{}{"status": status})
}
