package controllers

import (
	"errors"
	"strings"

	"musicschool_go/database"
	"musicschool_go/middleware"
	"musicschool_go/models"
	"musicschool_go/services"
	"musicschool_go/services/finance"
	"musicschool_go/utils"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

type AttendanceController struct {
	Resource[models.LessonAttendance, *models.LessonAttendance]
	service *services.AttendanceService
}

// MarkAttendanceRequest is the body of PUT /lesson_attendances/mark
type MarkAttendanceRequest struct {
	LessonScheduleID uint   `json:"lesson_schedule_id" validate:"required"`
	LessonDate       string `json:"lesson_date" validate:"required"`
	Status           string `json:"status" validate:"required"`
	Notes            string `json:"notes"`
}

// PaidRequest is the body of PATCH /lesson_attendances/:id/paid
type PaidRequest struct {
	IsPaid bool `json:"is_paid"`
}

func NewAttendanceController(service *services.AttendanceService) *AttendanceController {
	return &AttendanceController{
		Resource: Resource[models.LessonAttendance, *models.LessonAttendance]{
			Label:    "Attendance",
			Preloads: []string{"LessonSchedule", "LessonSchedule.Student", "LessonSchedule.Teacher"},
			Filters: map[string]string{
				"lesson_schedule_id": "lesson_schedule_id",
				"lesson_date":        "lesson_date",
				"status":             "status",
				"is_paid":            "is_paid",
			},
			Order: "lesson_date DESC, id DESC",
			Scope: attendanceScope,
			Prepare: func(c *fiber.Ctx, a *models.LessonAttendance) error {
				a.Status = strings.ToUpper(strings.TrimSpace(a.Status))
				if a.Status == "" {
					a.Status = models.AttendanceScheduled
				}
				if !models.IsValidAttendanceStatus(a.Status) {
					return fiber.NewError(fiber.StatusBadRequest, services.ErrInvalidStatus.Error())
				}
				if _, err := utils.ParseDate(a.LessonDate, nil); err != nil {
					return fiber.NewError(fiber.StatusBadRequest, services.ErrInvalidDate.Error())
				}
				return nil
			},
		},
		service: service,
	}
}

// attendanceScope filters on lesson_date with the shared start_date/end_date
// parameters. lesson_date is stored as text, so the bounds stay strings.
func attendanceScope(c *fiber.Ctx, db *gorm.DB) (*gorm.DB, error) {
	from, to := c.Query("start_date"), c.Query("end_date")
	if _, _, err := utils.ParseDateRange(from, to, nil); err != nil {
		return nil, fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	if from != "" {
		db = db.Where("lesson_date >= ?", from)
	}
	if to != "" {
		db = db.Where("lesson_date <= ?", to)
	}
	if teacherID := c.Query("teacher_id"); teacherID != "" {
		db = db.Where("lesson_schedule_id IN (?)",
			database.DB.Model(&models.LessonSchedule{}).Select("id").Where("teacher_id = ?", teacherID))
	}
	if studentID := c.Query("student_id"); studentID != "" {
		db = db.Where("lesson_schedule_id IN (?)",
			database.DB.Model(&models.LessonSchedule{}).Select("id").Where("student_id = ?", studentID))
	}
	return db, nil
}

// MarkAttendance sets the status of one lesson occurrence, creating the record on first mark
func (ac *AttendanceController) MarkAttendance(c *fiber.Ctx) error {
	var req MarkAttendanceRequest
	if ok, err := utils.BindAndValidate(c, &req); !ok {
		return err
	}

	change, err := ac.service.SetStatus(c.UserContext(), req.LessonScheduleID, req.LessonDate, req.Status, req.Notes)
	switch {
	case errors.Is(err, services.ErrInvalidStatus), errors.Is(err, services.ErrInvalidDate):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, services.ErrScheduleNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": err.Error()})
	case err != nil:
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to update attendance"})
	}

	middleware.SetActivity(c, change.Attendance.ID, fiber.Map{
		"lesson_schedule_id": req.LessonScheduleID,
		"lesson_date":        req.LessonDate,
		"status":             change.Attendance.Status,
		"previous_status":    change.PreviousStatus,
	})

	status := fiber.StatusOK
	if change.Created {
		status = fiber.StatusCreated
	}
	return c.Status(status).JSON(change)
}

// GetAttendancesByDateRange lists records with lesson_date in [start_date, end_date]
func (ac *AttendanceController) GetAttendancesByDateRange(c *fiber.Ctx) error {
	if c.Query("start_date") == "" || c.Query("end_date") == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "start_date and end_date are required",
		})
	}
	return ac.Find(c)
}

// GetAttendancesByStatus lists records with the status in the path
func (ac *AttendanceController) GetAttendancesByStatus(c *fiber.Ctx) error {
	status := strings.ToUpper(c.Params("status"))
	if !models.IsValidAttendanceStatus(status) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": services.ErrInvalidStatus.Error(),
		})
	}
	return ac.Find(c, func(db *gorm.DB) *gorm.DB { return db.Where("status = ?", status) })
}

// GetAttendanceStats aggregates counts and lesson money for the filtered records
func (ac *AttendanceController) GetAttendanceStats(c *fiber.Ctx) error {
	query, err := ac.listQuery(c)
	if err != nil {
		return writeError(c, err)
	}

	var records []models.LessonAttendance
	if err := query.Find(&records).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to fetch attendance",
		})
	}
	return c.JSON(finance.AttendanceStats(records))
}

// MarkPaid flags a lesson as paid or unpaid
func (ac *AttendanceController) MarkPaid(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return writeError(c, err)
	}

	req := PaidRequest{IsPaid: true}
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "Invalid request body",
			})
		}
	}
	return ac.Updates(c, id, map[string]interface{}{"is_paid": req.IsPaid})
}
