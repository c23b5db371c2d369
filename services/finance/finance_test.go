package finance

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"musicschool_go/models"
)

func tx(typ, category string, amount float64, day int) models.FinancialTransaction {
	return models.FinancialTransaction{
		Type:            typ,
		Category:        category,
		Amount:          amount,
		TransactionDate: time.Date(2024, 3, day, 10, 0, 0, 0, time.UTC),
	}
}

func TestSummarize(t *testing.T) {
	tests := []struct {
		name string
		txs  []models.FinancialTransaction
		want Totals
	}{
		{"empty", nil, Totals{}},
		{"income only", []models.FinancialTransaction{
			tx(models.TransactionIncome, "LESSON_PAYMENT", 1500, 1),
			tx(models.TransactionIncome, "PRODUCT_SALE", 250.5, 2),
		}, Totals{Income: 1750.5, Net: 1750.5, Count: 2}},
		{"mixed", []models.FinancialTransaction{
			tx(models.TransactionIncome, "LESSON_PAYMENT", 1000, 1),
			tx(models.TransactionExpense, "RENT", 400, 1),
			tx(models.TransactionExpense, "SALARY", 700, 3),
		}, Totals{Income: 1000, Expense: 1100, Net: -100, Count: 3}},
		{"float noise", []models.FinancialTransaction{
			tx(models.TransactionIncome, "X", 0.1, 1),
			tx(models.TransactionIncome, "X", 0.2, 1),
		}, Totals{Income: 0.3, Net: 0.3, Count: 2}},
		{"unknown type ignored in sums", []models.FinancialTransaction{
			tx("TRANSFER", "X", 99, 1),
		}, Totals{Count: 1}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := Summarize(tc.txs)
			assert.Equal(t, tc.want, got)
			assert.Equal(t, Round2(got.Income-got.Expense), got.Net)
		})
	}
}

func TestByCategory(t *testing.T) {
	got := ByCategory([]models.FinancialTransaction{
		tx(models.TransactionIncome, "LESSON_PAYMENT", 100, 1),
		tx(models.TransactionExpense, "RENT", 500, 1),
		tx(models.TransactionIncome, "PRODUCT_SALE", 300, 2),
		tx(models.TransactionIncome, "LESSON_PAYMENT", 250, 3),
	})
	require.Len(t, got, 3)
	assert.Equal(t, CategoryTotal{Type: "EXPENSE", Category: "RENT", Amount: 500, Count: 1}, got[0])
	assert.Equal(t, CategoryTotal{Type: "INCOME", Category: "LESSON_PAYMENT", Amount: 350, Count: 2}, got[1])
	assert.Equal(t, CategoryTotal{Type: "INCOME", Category: "PRODUCT_SALE", Amount: 300, Count: 1}, got[2])

	assert.Empty(t, ByCategory(nil))
}

func TestByDay(t *testing.T) {
	got := ByDay([]models.FinancialTransaction{
		tx(models.TransactionIncome, "A", 100, 5),
		tx(models.TransactionExpense, "B", 30, 2),
		tx(models.TransactionIncome, "A", 50, 2),
	})
	require.Len(t, got, 2)
	assert.Equal(t, DayTotal{Date: "2024-03-02", Income: 50, Expense: 30, Net: 20}, got[0])
	assert.Equal(t, DayTotal{Date: "2024-03-05", Income: 100, Net: 100}, got[1])
}

func TestApplyDiscountAndLineTotals(t *testing.T) {
	assert.Equal(t, 90.0, ApplyDiscount(100, 10))
	assert.Equal(t, 100.0, ApplyDiscount(100, -5))
	assert.Equal(t, 0.0, ApplyDiscount(100, 150))
	assert.Equal(t, 33.33, ApplyDiscount(33.333, 0))

	line := LineTotals(3, 50, 10, 20)
	assert.Equal(t, Line{Subtotal: 135, TaxAmount: 27, Total: 162}, line)

	line = LineTotals(1, 19.99, 0, 0)
	assert.Equal(t, Line{Subtotal: 19.99, Total: 19.99}, line)
}

func TestCommission(t *testing.T) {
	teacher, school := Commission(1000, 40)
	assert.Equal(t, 400.0, teacher)
	assert.Equal(t, 600.0, school)

	teacher, school = Commission(333.33, 33.3)
	assert.Equal(t, 111, int(teacher))
	assert.Equal(t, Round2(333.33-teacher), school)

	teacher, school = Commission(500, 0)
	assert.Zero(t, teacher)
	assert.Equal(t, 500.0, school)
}

func TestAttendanceStats(t *testing.T) {
	got := AttendanceStats([]models.LessonAttendance{
		{Status: models.AttendanceCompleted, LessonPrice: 500, TeacherCommission: 200, SchoolShare: 300, IsPaid: true},
		{Status: models.AttendanceCompleted, LessonPrice: 400, TeacherCommission: 160, SchoolShare: 240},
		{Status: models.AttendanceAbsent, LessonPrice: 400},
		{Status: models.AttendanceCancelled},
	})
	assert.Equal(t, 4, got.Total)
	assert.Equal(t, 2, got.ByStatus[models.AttendanceCompleted])
	assert.Equal(t, 1, got.ByStatus[models.AttendanceAbsent])
	assert.Equal(t, 0, got.ByStatus[models.AttendanceRescheduled])
	assert.Equal(t, 900.0, got.LessonRevenue)
	assert.Equal(t, 360.0, got.TeacherCommission)
	assert.Equal(t, 540.0, got.SchoolShare)
	assert.Equal(t, 400.0, got.Unpaid)

	empty := AttendanceStats(nil)
	assert.Zero(t, empty.Total)
	assert.Len(t, empty.ByStatus, len(models.AttendanceStatuses))
}

func TestSumPaymentsAndSales(t *testing.T) {
	assert.Equal(t, 150.5, SumPayments([]models.LessonPayment{{NetAmount: 100}, {NetAmount: 50.5}}))
	assert.Equal(t, 0.0, SumPayments(nil))
	assert.Equal(t, 30.0, SumSales([]models.Sale{{Total: 10}, {Total: 20}}))
}
