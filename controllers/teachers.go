package controllers

import (
	"strings"

	"musicschool_go/database"
	"musicschool_go/models"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

type TeacherController struct {
	Resource[models.Teacher, *models.Teacher]
}

func NewTeacherController() *TeacherController {
	return &TeacherController{Resource[models.Teacher, *models.Teacher]{
		Label:   "Teacher",
		Filters: map[string]string{"is_active": "is_active", "specialization": "specialization"},
		Order:   "first_name ASC, last_name ASC",
		Scope: func(c *fiber.Ctx, db *gorm.DB) (*gorm.DB, error) {
			if q := strings.TrimSpace(c.Query("search")); q != "" {
				like := "%" + q + "%"
				db = db.Where("first_name LIKE ? OR last_name LIKE ? OR email LIKE ?", like, like, like)
			}
			return db, nil
		},
		Prepare: func(c *fiber.Ctx, t *models.Teacher) error {
			t.FirstName = strings.TrimSpace(t.FirstName)
			t.LastName = strings.TrimSpace(t.LastName)
			t.Email = strings.TrimSpace(t.Email)
			return nil
		},
	}}
}

// GetActiveTeachers returns teachers that can be booked
func (tc *TeacherController) GetActiveTeachers(c *fiber.Ctx) error {
	var teachers []models.Teacher
	if err := database.DB.Where("is_active = ?", true).Order(tc.order()).Find(&teachers).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to fetch teachers",
		})
	}
	return c.JSON(teachers)
}
