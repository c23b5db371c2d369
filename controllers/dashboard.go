package controllers

import (
	"strings"
	"time"

	"musicschool_go/database"
	"musicschool_go/models"
	"musicschool_go/services/finance"
	"musicschool_go/services/weekgrid"
	"musicschool_go/utils"

	"github.com/gofiber/fiber/v2"
	"golang.org/x/sync/errgroup"
)

type DashboardController struct{}

// DashboardSummary is the landing page payload
type DashboardSummary struct {
	From             string                    `json:"from"`
	To               string                    `json:"to"`
	ActiveStudents   int64                     `json:"active_students"`
	ActiveTeachers   int64                     `json:"active_teachers"`
	Classrooms       int64                     `json:"classrooms"`
	WeeklyLessons    int64                     `json:"weekly_lessons"`
	LessonsToday     int64                     `json:"lessons_today"`
	Finance          finance.Totals            `json:"finance"`
	PaymentsTotal    float64                   `json:"payments_total"`
	SalesTotal       float64                   `json:"sales_total"`
	Attendance       finance.AttendanceSummary `json:"attendance"`
	LowStockProducts []models.Product          `json:"low_stock_products"`
}

const lowStockThreshold = 3

// GetSummary aggregates counts and money for start_date..end_date, defaulting to the current month
func (dc *DashboardController) GetSummary(c *fiber.Ctx) error {
	loc := schoolLocation()
	now := time.Now().In(loc)
	from, to := c.Query("start_date"), c.Query("end_date")
	if from == "" {
		from = time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, loc).Format(weekgrid.DateLayout)
	}
	if to == "" {
		to = now.Format(weekgrid.DateLayout)
	}
	start, end, err := utils.ParseDateRange(from, to, loc)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	db := database.DB.WithContext(c.UserContext())
	today := strings.ToUpper(now.Weekday().String())
	out := DashboardSummary{From: from, To: to}

	var (
		g           errgroup.Group
		txs         []models.FinancialTransaction
		payments    []models.LessonPayment
		sales       []models.Sale
		attendances []models.LessonAttendance
	)
	g.Go(func() error {
		return db.Model(&models.Student{}).Where("status = ?", models.StudentActive).Count(&out.ActiveStudents).Error
	})
	g.Go(func() error {
		return db.Model(&models.Teacher{}).Where("is_active = ?", true).Count(&out.ActiveTeachers).Error
	})
	g.Go(func() error {
		return db.Model(&models.Classroom{}).Where("is_active = ?", true).Count(&out.Classrooms).Error
	})
	g.Go(func() error {
		return db.Model(&models.LessonSchedule{}).Where("is_active = ?", true).Count(&out.WeeklyLessons).Error
	})
	g.Go(func() error {
		return db.Model(&models.LessonSchedule{}).Where("is_active = ? AND day_of_week = ?", true, today).Count(&out.LessonsToday).Error
	})
	g.Go(func() error {
		return db.Where("transaction_date BETWEEN ? AND ?", start, end).Find(&txs).Error
	})
	g.Go(func() error {
		return db.Where("payment_date BETWEEN ? AND ?", start, end).Find(&payments).Error
	})
	g.Go(func() error {
		return db.Where("sale_date BETWEEN ? AND ?", start, end).Find(&sales).Error
	})
	g.Go(func() error {
		return db.Where("lesson_date BETWEEN ? AND ?", from, to).Find(&attendances).Error
	})
	g.Go(func() error {
		return db.Where("is_active = ? AND stock <= ?", true, lowStockThreshold).Order("stock ASC").Find(&out.LowStockProducts).Error
	})
	if err := g.Wait(); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to build dashboard",
		})
	}

	out.Finance = finance.Summarize(txs)
	out.PaymentsTotal = finance.SumPayments(payments)
	out.SalesTotal = finance.SumSales(sales)
	out.Attendance = finance.AttendanceStats(attendances)
	return c.JSON(out)
}
