package services

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"musicschool_go/models"
	"musicschool_go/services/finance"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrProductNotFound   = errors.New("product not found")
	ErrInvalidPayment    = errors.New("invalid payment")
)

// Reference types linking income transactions back to their source rows.
const (
	ReferenceLessonPayment = "lesson_payment"
	ReferenceSale          = "sale"
)

var paymentMethods = map[string]bool{"CASH": true, "CARD": true, "TRANSFER": true}

// PricePayment validates p and fills its derived fields.
func PricePayment(p *models.LessonPayment, now time.Time) error {
	if p.StudentID == 0 {
		return fmt.Errorf("%w: student_id is required", ErrInvalidPayment)
	}
	if p.Amount <= 0 {
		return fmt.Errorf("%w: amount must be positive", ErrInvalidPayment)
	}
	if p.DiscountPercent < 0 || p.DiscountPercent > 100 {
		return fmt.Errorf("%w: discount_percent must be between 0 and 100", ErrInvalidPayment)
	}
	p.PaymentMethod = strings.ToUpper(strings.TrimSpace(p.PaymentMethod))
	if p.PaymentMethod == "" {
		p.PaymentMethod = "CASH"
	}
	if !paymentMethods[p.PaymentMethod] {
		return fmt.Errorf("%w: unknown payment method %q", ErrInvalidPayment, p.PaymentMethod)
	}
	if p.PaymentDate.IsZero() {
		p.PaymentDate = now
	}
	p.Amount = finance.Round2(p.Amount)
	p.NetAmount = finance.ApplyDiscount(p.Amount, p.DiscountPercent)
	return nil
}

// PriceSale fills unit price, tax rate and totals of s from product.
// A zero unit price means the product's list price.
func PriceSale(s *models.Sale, product models.Product, now time.Time) error {
	if s.Quantity <= 0 {
		return fmt.Errorf("%w: quantity must be positive", ErrInvalidPayment)
	}
	if s.DiscountPercent < 0 || s.DiscountPercent > 100 {
		return fmt.Errorf("%w: discount_percent must be between 0 and 100", ErrInvalidPayment)
	}
	if s.UnitPrice <= 0 {
		s.UnitPrice = product.Price
	}
	s.TaxRate = product.TaxRate
	line := finance.LineTotals(s.Quantity, s.UnitPrice, s.DiscountPercent, s.TaxRate)
	s.Subtotal, s.TaxAmount, s.Total = line.Subtotal, line.TaxAmount, line.Total
	if s.SaleDate.IsZero() {
		s.SaleDate = now
	}
	return nil
}

func incomeFor(refType string, refID uint, amount float64, date time.Time, description string) *models.FinancialTransaction {
	category := models.CategoryLessonPayment
	if refType == ReferenceSale {
		category = models.CategoryProductSale
	}
	id := refID
	return &models.FinancialTransaction{
		Type:            models.TransactionIncome,
		Category:        category,
		Amount:          amount,
		TransactionDate: date,
		Description:     description,
		ReferenceType:   refType,
		ReferenceID:     &id,
	}
}

func linked(tx *gorm.DB, refType string, refID uint) *gorm.DB {
	return tx.Model(&models.FinancialTransaction{}).
		Where("reference_type = ? AND reference_id = ?", refType, refID)
}

// RecordLessonPayment stores p and its income transaction atomically.
func RecordLessonPayment(db *gorm.DB, p *models.LessonPayment) error {
	if err := PricePayment(p, time.Now()); err != nil {
		return err
	}
	return db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).Create(p).Error; err != nil {
			return fmt.Errorf("create payment: %w", err)
		}
		desc := fmt.Sprintf("Lesson payment #%d (student %d)", p.ID, p.StudentID)
		if err := tx.Create(incomeFor(ReferenceLessonPayment, p.ID, p.NetAmount, p.PaymentDate, desc)).Error; err != nil {
			return fmt.Errorf("create transaction: %w", err)
		}
		return nil
	})
}

// UpdateLessonPayment saves p and keeps its income transaction in step.
func UpdateLessonPayment(db *gorm.DB, p *models.LessonPayment) error {
	if err := PricePayment(p, time.Now()); err != nil {
		return err
	}
	return db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).Save(p).Error; err != nil {
			return err
		}
		return linked(tx, ReferenceLessonPayment, p.ID).Updates(map[string]interface{}{
			"amount":           p.NetAmount,
			"transaction_date": p.PaymentDate,
		}).Error
	})
}

// DeleteLessonPayment soft-deletes p and its income transaction.
func DeleteLessonPayment(db *gorm.DB, p *models.LessonPayment) error {
	return db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Delete(p).Error; err != nil {
			return err
		}
		return linked(tx, ReferenceLessonPayment, p.ID).Delete(&models.FinancialTransaction{}).Error
	})
}

// RecordSale decrements product stock, stores s and its income transaction
// in one database transaction. The product row is locked for the duration.
func RecordSale(db *gorm.DB, s *models.Sale) error {
	return db.Transaction(func(tx *gorm.DB) error {
		var product models.Product
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&product, s.ProductID).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrProductNotFound
		}
		if err != nil {
			return err
		}
		if err := PriceSale(s, product, time.Now()); err != nil {
			return err
		}
		if product.Stock < s.Quantity {
			return fmt.Errorf("%w: %d left of %s", ErrInsufficientStock, product.Stock, product.Name)
		}

		if err := tx.Model(&product).Update("stock", gorm.Expr("stock - ?", s.Quantity)).Error; err != nil {
			return err
		}
		if err := tx.Omit(clause.Associations).Create(s).Error; err != nil {
			return fmt.Errorf("create sale: %w", err)
		}
		desc := fmt.Sprintf("%d x %s", s.Quantity, product.Name)
		return tx.Create(incomeFor(ReferenceSale, s.ID, s.Total, s.SaleDate, desc)).Error
	})
}

// DeleteSale restocks the product and removes the sale with its transaction.
func DeleteSale(db *gorm.DB, s *models.Sale) error {
	return db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.Product{}).Where("id = ?", s.ProductID).
			Update("stock", gorm.Expr("stock + ?", s.Quantity)).Error; err != nil {
			return err
		}
		if err := tx.Delete(s).Error; err != nil {
			return err
		}
		return linked(tx, ReferenceSale, s.ID).Delete(&models.FinancialTransaction{}).Error
	})
}
