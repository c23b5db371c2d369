// Package finance reduces fetched collections into display totals.
package finance

import (
	"math"
	"sort"

	"musicschool_go/models"
)

const dayLayout = "2006-01-02"

// Totals is the income/expense/net summary of a transaction list.
type Totals struct {
	Income  float64 `json:"income"`
	Expense float64 `json:"expense"`
	Net     float64 `json:"net"`
	Count   int     `json:"count"`
}

// CategoryTotal sums transactions of one type and category.
type CategoryTotal struct {
	Type     string  `json:"type"`
	Category string  `json:"category"`
	Amount   float64 `json:"amount"`
	Count    int     `json:"count"`
}

// DayTotal sums transactions of one calendar day.
type DayTotal struct {
	Date    string  `json:"date"`
	Income  float64 `json:"income"`
	Expense float64 `json:"expense"`
	Net     float64 `json:"net"`
}

// Round2 rounds to two decimals, half away from zero.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// Summarize computes income, expense and net. Transactions of unknown type
// are counted but not summed.
func Summarize(txs []models.FinancialTransaction) Totals {
	var t Totals
	for _, tx := range txs {
		t.Count++
		switch tx.Type {
		case models.TransactionIncome:
			t.Income += tx.Amount
		case models.TransactionExpense:
			t.Expense += tx.Amount
		}
	}
	t.Income = Round2(t.Income)
	t.Expense = Round2(t.Expense)
	t.Net = Round2(t.Income - t.Expense)
	return t
}

// ByCategory groups by (type, category), sorted by type then descending amount.
func ByCategory(txs []models.FinancialTransaction) []CategoryTotal {
	type key struct{ typ, cat string }
	idx := make(map[key]int)
	out := []CategoryTotal{}
	for _, tx := range txs {
		k := key{tx.Type, tx.Category}
		i, ok := idx[k]
		if !ok {
			i = len(out)
			idx[k] = i
			out = append(out, CategoryTotal{Type: tx.Type, Category: tx.Category})
		}
		out[i].Amount += tx.Amount
		out[i].Count++
	}
	for i := range out {
		out[i].Amount = Round2(out[i].Amount)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Type != out[j].Type {
			return out[i].Type < out[j].Type
		}
		if out[i].Amount != out[j].Amount {
			return out[i].Amount > out[j].Amount
		}
		return out[i].Category < out[j].Category
	})
	return out
}

// ByDay groups by transaction date, sorted ascending.
func ByDay(txs []models.FinancialTransaction) []DayTotal {
	idx := make(map[string]int)
	out := []DayTotal{}
	for _, tx := range txs {
		d := tx.TransactionDate.Format(dayLayout)
		i, ok := idx[d]
		if !ok {
			i = len(out)
			idx[d] = i
			out = append(out, DayTotal{Date: d})
		}
		switch tx.Type {
		case models.TransactionIncome:
			out[i].Income += tx.Amount
		case models.TransactionExpense:
			out[i].Expense += tx.Amount
		}
	}
	for i := range out {
		out[i].Income = Round2(out[i].Income)
		out[i].Expense = Round2(out[i].Expense)
		out[i].Net = Round2(out[i].Income - out[i].Expense)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	return out
}

// ApplyDiscount subtracts percent of amount. Percent is clamped to [0, 100].
func ApplyDiscount(amount, percent float64) float64 {
	percent = math.Max(0, math.Min(100, percent))
	return Round2(amount * (100 - percent) / 100)
}

// Line is the priced breakdown of a sale line.
type Line struct {
	Subtotal  float64 `json:"subtotal"`
	TaxAmount float64 `json:"tax_amount"`
	Total     float64 `json:"total"`
}

// LineTotals prices qty units: discount applies before tax.
func LineTotals(qty int, unitPrice, discountPercent, taxRate float64) Line {
	subtotal := ApplyDiscount(float64(qty)*unitPrice, discountPercent)
	tax := Round2(subtotal * math.Max(0, taxRate) / 100)
	return Line{Subtotal: subtotal, TaxAmount: tax, Total: Round2(subtotal + tax)}
}

// Commission splits a lesson price between teacher and school.
func Commission(price, ratePercent float64) (teacher, school float64) {
	ratePercent = math.Max(0, math.Min(100, ratePercent))
	teacher = Round2(price * ratePercent / 100)
	return teacher, Round2(price - teacher)
}

// AttendanceSummary aggregates attendance records for dashboards and payroll.
type AttendanceSummary struct {
	Total             int            `json:"total"`
	ByStatus          map[string]int `json:"by_status"`
	LessonRevenue     float64        `json:"lesson_revenue"`
	TeacherCommission float64        `json:"teacher_commission"`
	SchoolShare       float64        `json:"school_share"`
	Unpaid            float64        `json:"unpaid"`
}

// AttendanceStats counts records by status. Money sums include only
// COMPLETED lessons; unpaid sums completed lessons not yet paid.
func AttendanceStats(records []models.LessonAttendance) AttendanceSummary {
	s := AttendanceSummary{ByStatus: make(map[string]int, len(models.AttendanceStatuses))}
	for _, st := range models.AttendanceStatuses {
		s.ByStatus[st] = 0
	}
	for _, r := range records {
		s.Total++
		s.ByStatus[r.Status]++
		if r.Status != models.AttendanceCompleted {
			continue
		}
		s.LessonRevenue += r.LessonPrice
		s.TeacherCommission += r.TeacherCommission
		s.SchoolShare += r.SchoolShare
		if !r.IsPaid {
			s.Unpaid += r.LessonPrice
		}
	}
	s.LessonRevenue = Round2(s.LessonRevenue)
	s.TeacherCommission = Round2(s.TeacherCommission)
	s.SchoolShare = Round2(s.SchoolShare)
	s.Unpaid = Round2(s.Unpaid)
	return s
}

// SumPayments totals net amounts of lesson payments.
func SumPayments(payments []models.LessonPayment) float64 {
	var sum float64
	for _, p := range payments {
		sum += p.NetAmount
	}
	return Round2(sum)
}

// SumSales totals sale totals.
func SumSales(sales []models.Sale) float64 {
	var sum float64
	for _, s := range sales {
		sum += s.Total
	}
	return Round2(sum)
}
