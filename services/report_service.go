package services

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"musicschool_go/models"
	"musicschool_go/services/finance"

	"github.com/xuri/excelize/v2"
)

const (
	sheetTransactions = "Transactions"
	sheetCategories   = "By Category"
	sheetSummary      = "Summary"
)

var ErrUnsupportedFile = errors.New("unsupported file type (csv, xlsx)")

// TransactionColumns is the header of exported and imported transaction sheets.
var TransactionColumns = []string{"Date", "Type", "Category", "Amount", "Description", "Reference"}

// ExportTransactions renders transactions with their summary and category
// breakdown as an xlsx workbook.
func ExportTransactions(txs []models.FinancialTransaction) (*bytes.Buffer, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", sheetTransactions); err != nil {
		return nil, err
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, err
	}
	money, err := f.NewStyle(&excelize.Style{NumFmt: 4})
	if err != nil {
		return nil, err
	}

	header := make([]interface{}, len(TransactionColumns))
	for i, h := range TransactionColumns {
		header[i] = h
	}
	if err := f.SetSheetRow(sheetTransactions, "A1", &header); err != nil {
		return nil, err
	}
	_ = f.SetRowStyle(sheetTransactions, 1, 1, bold)

	for i, tx := range txs {
		ref := ""
		if tx.ReferenceType != "" && tx.ReferenceID != nil {
			ref = fmt.Sprintf("%s#%d", tx.ReferenceType, *tx.ReferenceID)
		}
		row := []interface{}{
			tx.TransactionDate.Format("2006-01-02"),
			tx.Type,
			tx.Category,
			finance.Round2(tx.Amount),
			tx.Description,
			ref,
		}
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := f.SetSheetRow(sheetTransactions, cell, &row); err != nil {
			return nil, err
		}
	}
	if len(txs) > 0 {
		_ = f.SetCellStyle(sheetTransactions, "D2", fmt.Sprintf("D%d", len(txs)+1), money)
	}
	_ = f.SetColWidth(sheetTransactions, "A", "A", 12)
	_ = f.SetColWidth(sheetTransactions, "C", "C", 20)
	_ = f.SetColWidth(sheetTransactions, "E", "E", 40)

	if _, err := f.NewSheet(sheetCategories); err != nil {
		return nil, err
	}
	_ = f.SetSheetRow(sheetCategories, "A1", &[]interface{}{"Type", "Category", "Amount", "Count"})
	_ = f.SetRowStyle(sheetCategories, 1, 1, bold)
	for i, ct := range finance.ByCategory(txs) {
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		_ = f.SetSheetRow(sheetCategories, cell, &[]interface{}{ct.Type, ct.Category, ct.Amount, ct.Count})
	}

	if _, err := f.NewSheet(sheetSummary); err != nil {
		return nil, err
	}
	totals := finance.Summarize(txs)
	rows := [][]interface{}{
		{"Income", totals.Income},
		{"Expense", totals.Expense},
		{"Net", totals.Net},
		{"Transactions", totals.Count},
	}
	for i, r := range rows {
		cell, _ := excelize.CoordinatesToCellName(1, i+1)
		_ = f.SetSheetRow(sheetSummary, cell, &r)
	}
	_ = f.SetColStyle(sheetSummary, "A", bold)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to write workbook: %w", err)
	}
	return buf, nil
}

// ReadRows reads a csv or the first sheet of an xlsx file.
func ReadRows(filename string, r io.Reader) ([][]string, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".csv":
		cr := csv.NewReader(r)
		cr.TrimLeadingSpace = true
		cr.FieldsPerRecord = -1
		return cr.ReadAll()
	case ".xlsx":
		f, err := excelize.OpenReader(r)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		sheet := f.GetSheetName(0)
		if sheet == "" {
			sheet = "Sheet1"
		}
		return f.GetRows(sheet)
	default:
		return nil, ErrUnsupportedFile
	}
}

// ParseTransactionRows maps imported rows to transactions. The first row is
// the header; Date, Type, Category and Amount are required columns. Rows
// that fail to parse are reported by their 1-based row number.
func ParseTransactionRows(rows [][]string, loc *time.Location) ([]models.FinancialTransaction, []string, error) {
	if len(rows) == 0 {
		return nil, nil, errors.New("file is empty")
	}
	if loc == nil {
		loc = time.Local
	}

	col := map[string]int{}
	for i, h := range rows[0] {
		col[strings.ToLower(strings.TrimSpace(h))] = i
	}
	for _, req := range []string{"date", "type", "category", "amount"} {
		if _, ok := col[req]; !ok {
			return nil, nil, fmt.Errorf("missing column: %s", req)
		}
	}

	var out []models.FinancialTransaction
	var problems []string
	for i := 1; i < len(rows); i++ {
		r := rows[i]
		get := func(key string) string {
			if idx, ok := col[key]; ok && idx < len(r) {
				return strings.TrimSpace(r[idx])
			}
			return ""
		}
		if strings.Join(r, "") == "" {
			continue
		}

		date, ok := parseImportDate(get("date"), loc)
		if !ok {
			problems = append(problems, fmt.Sprintf("row %d: invalid date %q", i+1, get("date")))
			continue
		}
		amount, err := strconv.ParseFloat(strings.ReplaceAll(get("amount"), ",", ""), 64)
		if err != nil {
			problems = append(problems, fmt.Sprintf("row %d: invalid amount %q", i+1, get("amount")))
			continue
		}
		typ := strings.ToUpper(get("type"))
		if typ == "" {
			typ = models.TransactionIncome
			if amount < 0 {
				typ = models.TransactionExpense
			}
		}
		if typ != models.TransactionIncome && typ != models.TransactionExpense {
			problems = append(problems, fmt.Sprintf("row %d: invalid type %q", i+1, get("type")))
			continue
		}
		category := strings.ToUpper(get("category"))
		if category == "" {
			problems = append(problems, fmt.Sprintf("row %d: category is required", i+1))
			continue
		}
		if amount < 0 {
			amount = -amount
		}

		out = append(out, models.FinancialTransaction{
			Type:            typ,
			Category:        category,
			Amount:          finance.Round2(amount),
			TransactionDate: date,
			Description:     get("description"),
			ReferenceType:   "IMPORT",
		})
	}
	return out, problems, nil
}

func parseImportDate(s string, loc *time.Location) (time.Time, bool) {
	for _, layout := range []string{"2006-01-02", "02.01.2006", "02/01/2006", "2006-01-02 15:04:05", time.RFC3339} {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
