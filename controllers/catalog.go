package controllers

import (
	"strings"

	"musicschool_go/database"
	"musicschool_go/models"
	"musicschool_go/services"
	"musicschool_go/services/finance"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

type ClassroomController struct {
	Resource[models.Classroom, *models.Classroom]
}

func NewClassroomController() *ClassroomController {
	return &ClassroomController{Resource[models.Classroom, *models.Classroom]{
		Label:   "Classroom",
		Filters: map[string]string{"is_active": "is_active"},
		Order:   "name ASC",
		Prepare: func(c *fiber.Ctx, r *models.Classroom) error {
			r.Name = strings.TrimSpace(r.Name)
			return nil
		},
	}}
}

// GetActiveClassrooms returns rooms shown as grid columns
func (cc *ClassroomController) GetActiveClassrooms(c *fiber.Ctx) error {
	return cc.Find(c, activeOnly)
}

type LessonTypeController struct {
	Resource[models.LessonType, *models.LessonType]
}

func NewLessonTypeController() *LessonTypeController {
	return &LessonTypeController{Resource[models.LessonType, *models.LessonType]{
		Label:   "Lesson type",
		Filters: map[string]string{"is_active": "is_active"},
		Order:   "name ASC",
		Prepare: func(c *fiber.Ctx, lt *models.LessonType) error {
			lt.Name = strings.TrimSpace(lt.Name)
			lt.DefaultPrice = finance.Round2(lt.DefaultPrice)
			return nil
		},
	}}
}

// GetActiveLessonTypes returns lesson types open for booking
func (lc *LessonTypeController) GetActiveLessonTypes(c *fiber.Ctx) error {
	return lc.Find(c, activeOnly)
}

func activeOnly(db *gorm.DB) *gorm.DB {
	return db.Where("is_active = ?", true)
}

// PricingController manages lesson packages
type PricingController struct {
	Resource[models.Pricing, *models.Pricing]
}

func NewPricingController() *PricingController {
	return &PricingController{Resource[models.Pricing, *models.Pricing]{
		Label:   "Pricing",
		Filters: map[string]string{"lesson_type_id": "lesson_type_id", "is_active": "is_active"},
		Order:   "lesson_count ASC",
	}}
}

type LessonPricingController struct {
	Resource[models.LessonPricing, *models.LessonPricing]
}

func NewLessonPricingController() *LessonPricingController {
	return &LessonPricingController{Resource[models.LessonPricing, *models.LessonPricing]{
		Label:    "Lesson pricing",
		Preloads: []string{"LessonType", "Teacher"},
		Filters:  map[string]string{"lesson_type_id": "lesson_type_id", "teacher_id": "teacher_id", "is_active": "is_active"},
		Order:    "lesson_type_id ASC, teacher_id ASC",
		Prepare: func(c *fiber.Ctx, p *models.LessonPricing) error {
			if p.TeacherID != nil && *p.TeacherID == 0 {
				p.TeacherID = nil
			}
			p.PricePerLesson = finance.Round2(p.PricePerLesson)
			return nil
		},
	}}
}

// ResolvePrice returns the per-lesson price the attendance upsert would use
func (lc *LessonPricingController) ResolvePrice(c *fiber.Ctx) error {
	lessonTypeID, err := queryID(c, "lesson_type_id")
	if err != nil {
		return writeError(c, err)
	}
	if lessonTypeID == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "lesson_type_id is required",
		})
	}
	teacherID, err := queryID(c, "teacher_id")
	if err != nil {
		return writeError(c, err)
	}

	price, err := services.ResolveLessonPrice(database.DB.WithContext(c.UserContext()), lessonTypeID, teacherID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to resolve price",
		})
	}
	return c.JSON(fiber.Map{
		"lesson_type_id":   lessonTypeID,
		"teacher_id":       teacherID,
		"price_per_lesson": price,
	})
}

type ProductController struct {
	Resource[models.Product, *models.Product]
}

// StockRequest sets the stock to Stock, or moves it by Delta when Stock is absent
type StockRequest struct {
	Stock *int `json:"stock"`
	Delta int  `json:"delta"`
}

func NewProductController() *ProductController {
	return &ProductController{Resource[models.Product, *models.Product]{
		Label:   "Product",
		Filters: map[string]string{"is_active": "is_active", "sku": "sku"},
		Order:   "name ASC",
		Prepare: func(c *fiber.Ctx, p *models.Product) error {
			p.Name = strings.TrimSpace(p.Name)
			p.SKU = strings.ToUpper(strings.TrimSpace(p.SKU))
			return nil
		},
	}}
}

// UpdateStock adjusts product stock
func (pc *ProductController) UpdateStock(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return writeError(c, err)
	}

	var req StockRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	product, err := pc.load(id, false)
	if err != nil {
		return writeError(c, err)
	}
	stock := product.Stock + req.Delta
	if req.Stock != nil {
		stock = *req.Stock
	}
	if stock < 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Stock cannot be negative",
		})
	}
	return pc.Updates(c, id, map[string]interface{}{"stock": stock})
}
