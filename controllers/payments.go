package controllers

import (
	"errors"

	"musicschool_go/database"
	"musicschool_go/middleware"
	"musicschool_go/models"
	"musicschool_go/services"
	"musicschool_go/services/finance"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

type LessonPaymentController struct {
	Resource[models.LessonPayment, *models.LessonPayment]
}

func NewLessonPaymentController() *LessonPaymentController {
	return &LessonPaymentController{Resource[models.LessonPayment, *models.LessonPayment]{
		Label:    "Lesson payment",
		Preloads: []string{"Student"},
		Filters:  map[string]string{"student_id": "student_id", "payment_method": "payment_method"},
		Order:    "payment_date DESC, id DESC",
		Scope: func(c *fiber.Ctx, db *gorm.DB) (*gorm.DB, error) {
			scope, err := dateRange(c, "payment_date")
			if err != nil {
				return nil, err
			}
			return db.Scopes(scope), nil
		},
	}}
}

// ledgerError maps ledger service errors to responses.
func ledgerError(c *fiber.Ctx, err error, fallback string) error {
	switch {
	case errors.Is(err, services.ErrInvalidPayment):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, services.ErrProductNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, services.ErrInsufficientStock):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": err.Error()})
	}
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": fallback})
}

// Create stores a payment together with its LESSON_PAYMENT income entry
func (pc *LessonPaymentController) Create(c *fiber.Ctx) error {
	var payment models.LessonPayment
	if ok, err := pc.decode(c, &payment); !ok {
		return err
	}

	var student models.Student
	if err := database.DB.Select("id").First(&student, payment.StudentID).Error; err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Student not found"})
	}

	if err := services.RecordLessonPayment(database.DB.WithContext(c.UserContext()), &payment); err != nil {
		return ledgerError(c, err, "Failed to create lesson payment")
	}
	middleware.SetActivity(c, payment.ID, fiber.Map{"net_amount": payment.NetAmount})

	if fresh, err := pc.load(payment.ID, true); err == nil {
		return c.Status(fiber.StatusCreated).JSON(fresh)
	}
	return c.Status(fiber.StatusCreated).JSON(payment)
}

// Update edits a payment and resyncs its income entry
func (pc *LessonPaymentController) Update(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return writeError(c, err)
	}
	payment, err := pc.load(id, false)
	if err != nil {
		return writeError(c, err)
	}
	if ok, err := pc.decode(c, payment); !ok {
		return err
	}
	if err := services.UpdateLessonPayment(database.DB.WithContext(c.UserContext()), payment); err != nil {
		return ledgerError(c, err, "Failed to update lesson payment")
	}
	return c.JSON(payment)
}

// Delete removes a payment and its income entry
func (pc *LessonPaymentController) Delete(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return writeError(c, err)
	}
	payment, err := pc.load(id, false)
	if err != nil {
		return writeError(c, err)
	}
	if err := services.DeleteLessonPayment(database.DB.WithContext(c.UserContext()), payment); err != nil {
		return ledgerError(c, err, "Failed to delete lesson payment")
	}
	return c.JSON(fiber.Map{"message": "Lesson payment deleted successfully"})
}

// GetPaymentsByStudent lists the payments of one student
func (pc *LessonPaymentController) GetPaymentsByStudent(c *fiber.Ctx) error {
	id, err := paramID(c, "student_id")
	if err != nil {
		return writeError(c, err)
	}
	return pc.Find(c, func(db *gorm.DB) *gorm.DB { return db.Where("student_id = ?", id) })
}

// GetPaymentsTotal sums net amounts of the filtered payments
func (pc *LessonPaymentController) GetPaymentsTotal(c *fiber.Ctx) error {
	query, err := pc.listQuery(c)
	if err != nil {
		return writeError(c, err)
	}
	var payments []models.LessonPayment
	if err := query.Find(&payments).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to fetch lesson payments",
		})
	}
	return c.JSON(fiber.Map{
		"total": finance.SumPayments(payments),
		"count": len(payments),
	})
}

type SaleController struct {
	Resource[models.Sale, *models.Sale]
}

func NewSaleController() *SaleController {
	return &SaleController{Resource[models.Sale, *models.Sale]{
		Label:    "Sale",
		Preloads: []string{"Product", "Student"},
		Filters:  map[string]string{"product_id": "product_id", "student_id": "student_id"},
		Order:    "sale_date DESC, id DESC",
		Scope: func(c *fiber.Ctx, db *gorm.DB) (*gorm.DB, error) {
			scope, err := dateRange(c, "sale_date")
			if err != nil {
				return nil, err
			}
			return db.Scopes(scope), nil
		},
	}}
}

// Create sells a product: stock, sale and PRODUCT_SALE income in one transaction
func (sc *SaleController) Create(c *fiber.Ctx) error {
	var sale models.Sale
	if ok, err := sc.decode(c, &sale); !ok {
		return err
	}
	if sale.ProductID == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "product_id is required"})
	}

	if err := services.RecordSale(database.DB.WithContext(c.UserContext()), &sale); err != nil {
		return ledgerError(c, err, "Failed to create sale")
	}
	middleware.SetActivity(c, sale.ID, fiber.Map{"product_id": sale.ProductID, "quantity": sale.Quantity, "total": sale.Total})

	if fresh, err := sc.load(sale.ID, true); err == nil {
		return c.Status(fiber.StatusCreated).JSON(fresh)
	}
	return c.Status(fiber.StatusCreated).JSON(sale)
}

// Update only edits notes; quantities and prices are fixed once stock moved
func (sc *SaleController) Update(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return writeError(c, err)
	}
	var req struct {
		Notes string `json:"notes"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	return sc.Updates(c, id, map[string]interface{}{"notes": req.Notes})
}

// Delete voids a sale and puts the items back in stock
func (sc *SaleController) Delete(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return writeError(c, err)
	}
	sale, err := sc.load(id, false)
	if err != nil {
		return writeError(c, err)
	}
	if err := services.DeleteSale(database.DB.WithContext(c.UserContext()), sale); err != nil {
		return ledgerError(c, err, "Failed to delete sale")
	}
	return c.JSON(fiber.Map{"message": "Sale deleted successfully"})
}

// GetSalesTotal sums totals of the filtered sales
func (sc *SaleController) GetSalesTotal(c *fiber.Ctx) error {
	query, err := sc.listQuery(c)
	if err != nil {
		return writeError(c, err)
	}
	var sales []models.Sale
	if err := query.Find(&sales).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to fetch sales",
		})
	}
	return c.JSON(fiber.Map{
		"total": finance.SumSales(sales),
		"count": len(sales),
	})
}
