package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"musicschool_go/models"
)

func TestPricePayment(t *testing.T) {
	now := time.Date(2024, 3, 4, 10, 0, 0, 0, time.UTC)
	p := models.LessonPayment{StudentID: 1, Amount: 1000, DiscountPercent: 15, PaymentMethod: "card"}
	require.NoError(t, PricePayment(&p, now))
	assert.Equal(t, 850.0, p.NetAmount)
	assert.Equal(t, "CARD", p.PaymentMethod)
	assert.Equal(t, now, p.PaymentDate)

	p = models.LessonPayment{StudentID: 1, Amount: 200}
	require.NoError(t, PricePayment(&p, now))
	assert.Equal(t, "CASH", p.PaymentMethod)
	assert.Equal(t, 200.0, p.NetAmount)
}

func TestPricePaymentRejects(t *testing.T) {
	tests := []struct {
		name string
		p    models.LessonPayment
	}{
		{"no student", models.LessonPayment{Amount: 10}},
		{"zero amount", models.LessonPayment{StudentID: 1}},
		{"discount over 100", models.LessonPayment{StudentID: 1, Amount: 10, DiscountPercent: 120}},
		{"unknown method", models.LessonPayment{StudentID: 1, Amount: 10, PaymentMethod: "CHEQUE"}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.ErrorIs(t, PricePayment(&tc.p, time.Now()), ErrInvalidPayment)
		})
	}
}

func TestPriceSale(t *testing.T) {
	product := models.Product{Name: "Guitar strings", Price: 100, TaxRate: 20}

	s := models.Sale{ProductID: 1, Quantity: 3, DiscountPercent: 10}
	require.NoError(t, PriceSale(&s, product, time.Now()))
	assert.Equal(t, 100.0, s.UnitPrice)
	assert.Equal(t, 270.0, s.Subtotal)
	assert.Equal(t, 54.0, s.TaxAmount)
	assert.Equal(t, 324.0, s.Total)
	assert.False(t, s.SaleDate.IsZero())

	s = models.Sale{ProductID: 1, Quantity: 1, UnitPrice: 80}
	require.NoError(t, PriceSale(&s, product, time.Now()))
	assert.Equal(t, 96.0, s.Total)

	s = models.Sale{ProductID: 1}
	assert.ErrorIs(t, PriceSale(&s, product, time.Now()), ErrInvalidPayment)
}

func TestIncomeForCategory(t *testing.T) {
	now := time.Now()
	tx := incomeFor(ReferenceSale, 9, 50, now, "x")
	assert.Equal(t, models.CategoryProductSale, tx.Category)
	assert.Equal(t, uint(9), *tx.ReferenceID)

	tx = incomeFor(ReferenceLessonPayment, 3, 50, now, "y")
	assert.Equal(t, models.CategoryLessonPayment, tx.Category)
	assert.Equal(t, models.TransactionIncome, tx.Type)
}
