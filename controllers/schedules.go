package controllers

import (
	"encoding/json"
	"strings"
	"time"

	"musicschool_go/config"
	"musicschool_go/database"
	"musicschool_go/models"
	"musicschool_go/services"
	"musicschool_go/services/weekgrid"
	"musicschool_go/utils"

	"github.com/gofiber/fiber/v2"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

const dayOrder = "FIELD(day_of_week, 'MONDAY', 'TUESDAY', 'WEDNESDAY', 'THURSDAY', 'FRIDAY', 'SATURDAY', 'SUNDAY'), start_time ASC"

type LessonScheduleController struct {
	Resource[models.LessonSchedule, *models.LessonSchedule]
	hub services.Broadcaster
}

func NewLessonScheduleController(hub services.Broadcaster) *LessonScheduleController {
	return &LessonScheduleController{
		Resource: Resource[models.LessonSchedule, *models.LessonSchedule]{
			Label:    "Lesson schedule",
			Preloads: []string{"Student", "Teacher", "LessonType", "Classroom"},
			Filters: map[string]string{
				"teacher_id":     "teacher_id",
				"student_id":     "student_id",
				"classroom_id":   "classroom_id",
				"lesson_type_id": "lesson_type_id",
				"is_active":      "is_active",
			},
			Order: dayOrder,
			Scope: func(c *fiber.Ctx, db *gorm.DB) (*gorm.DB, error) {
				if day := c.Query("day_of_week"); day != "" {
					db = db.Where("day_of_week = ?", strings.ToUpper(day))
				}
				return db, nil
			},
			Prepare: prepareSchedule,
		},
		hub: hub,
	}
}

func prepareSchedule(c *fiber.Ctx, s *models.LessonSchedule) error {
	s.DayOfWeek = strings.ToUpper(strings.TrimSpace(s.DayOfWeek))
	start, ok := weekgrid.NormalizeClock(s.StartTime)
	if !ok {
		return fiber.NewError(fiber.StatusBadRequest, "start_time must be HH:mm")
	}
	s.StartTime = start
	if s.EndTime != "" {
		end, ok := weekgrid.NormalizeClock(s.EndTime)
		if !ok {
			return fiber.NewError(fiber.StatusBadRequest, "end_time must be HH:mm")
		}
		if end <= start {
			return fiber.NewError(fiber.StatusBadRequest, "end_time must be after start_time")
		}
		s.EndTime = end
	}
	return nil
}

func (sc *LessonScheduleController) Create(c *fiber.Ctx) error {
	return sc.notify(c, "schedule.created", sc.Resource.Create)
}

func (sc *LessonScheduleController) Update(c *fiber.Ctx) error {
	return sc.notify(c, "schedule.updated", sc.Resource.Update)
}

func (sc *LessonScheduleController) Delete(c *fiber.Ctx) error {
	return sc.notify(c, "schedule.deleted", sc.Resource.Delete)
}

// notify runs h and, when it succeeded, pushes the change to live consoles.
func (sc *LessonScheduleController) notify(c *fiber.Ctx, event string, h fiber.Handler) error {
	if err := h(c); err != nil {
		return err
	}
	if sc.hub == nil || c.Response().StatusCode() >= fiber.StatusBadRequest {
		return nil
	}
	var data interface{} = fiber.Map{"id": c.Params("id")}
	if event != "schedule.deleted" {
		data = json.RawMessage(c.Response().Body())
	}
	sc.hub.Broadcast(fiber.Map{"type": event, "data": data})
	return nil
}

// GetSchedulesByTeacher returns the weekly slots of one teacher
func (sc *LessonScheduleController) GetSchedulesByTeacher(c *fiber.Ctx) error {
	id, err := paramID(c, "teacher_id")
	if err != nil {
		return writeError(c, err)
	}
	return sc.Find(c, func(db *gorm.DB) *gorm.DB { return db.Where("teacher_id = ?", id) })
}

// GetSchedulesByStudent returns the weekly slots of one student
func (sc *LessonScheduleController) GetSchedulesByStudent(c *fiber.Ctx) error {
	id, err := paramID(c, "student_id")
	if err != nil {
		return writeError(c, err)
	}
	return sc.Find(c, func(db *gorm.DB) *gorm.DB { return db.Where("student_id = ?", id) })
}

// GetSchedulesByDay returns every slot on a weekday
func (sc *LessonScheduleController) GetSchedulesByDay(c *fiber.Ctx) error {
	day := strings.ToUpper(c.Params("day"))
	if !models.IsValidDay(day) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid day of week",
		})
	}
	return sc.Find(c, func(db *gorm.DB) *gorm.DB { return db.Where("day_of_week = ?", day) })
}

func gridHours() (int, int) {
	if cfg := config.AppConfig; cfg != nil && cfg.GridEndHour > cfg.GridStartHour {
		return cfg.GridStartHour, cfg.GridEndHour
	}
	return 9, 21
}

// GetWeeklyGrid resolves the classroom by hour calendar for the week of ?date=
func (sc *LessonScheduleController) GetWeeklyGrid(c *fiber.Ctx) error {
	loc := schoolLocation()
	ref := time.Now().In(loc)
	if v := c.Query("date"); v != "" {
		d, err := utils.ParseDate(v, loc)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
		}
		ref = d
	}

	var filter weekgrid.Filter
	var err error
	if filter.TeacherID, err = queryID(c, "teacher_id"); err != nil {
		return writeError(c, err)
	}
	if filter.StudentID, err = queryID(c, "student_id"); err != nil {
		return writeError(c, err)
	}
	if filter.LessonTypeID, err = queryID(c, "lesson_type_id"); err != nil {
		return writeError(c, err)
	}
	if day := strings.ToUpper(c.Query("day")); day != "" {
		if !models.IsValidDay(day) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid day of week"})
		}
		filter.Day = day
	}

	in, err := loadWeek(c, weekgrid.WeekStart(ref))
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to load weekly schedule",
		})
	}
	in.Reference = ref
	in.Filter = filter
	in.Slots = weekgrid.HourSlots(gridHours())

	return c.JSON(weekgrid.Resolve(in))
}

// loadWeek reads the collections the grid needs concurrently.
func loadWeek(c *fiber.Ctx, start time.Time) (weekgrid.Input, error) {
	var in weekgrid.Input
	db := database.DB.WithContext(c.UserContext())
	from := start.Format(weekgrid.DateLayout)
	to := start.AddDate(0, 0, 6).Format(weekgrid.DateLayout)

	var g errgroup.Group
	g.Go(func() error {
		return db.Where("is_active = ?", true).Order("start_time ASC, id ASC").Find(&in.Schedules).Error
	})
	g.Go(func() error {
		return db.Where("lesson_date BETWEEN ? AND ?", from, to).Find(&in.Attendances).Error
	})
	g.Go(func() error { return db.Find(&in.Students).Error })
	g.Go(func() error { return db.Find(&in.Teachers).Error })
	g.Go(func() error { return db.Order("name ASC").Find(&in.Classrooms).Error })
	g.Go(func() error { return db.Find(&in.LessonTypes).Error })
	return in, g.Wait()
}
