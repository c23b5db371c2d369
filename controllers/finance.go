package controllers

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"musicschool_go/config"
	"musicschool_go/database"
	"musicschool_go/middleware"
	"musicschool_go/models"
	"musicschool_go/services"
	"musicschool_go/services/finance"
	"musicschool_go/storage"
	"musicschool_go/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

const importBatchSize = 200

type FinancialTransactionController struct {
	Resource[models.FinancialTransaction, *models.FinancialTransaction]
	store storage.ObjectStore
}

// NewFinancialTransactionController accepts a nil store; uploads are then refused.
func NewFinancialTransactionController(store storage.ObjectStore) *FinancialTransactionController {
	return &FinancialTransactionController{
		Resource: Resource[models.FinancialTransaction, *models.FinancialTransaction]{
			Label:   "Financial transaction",
			Filters: map[string]string{"type": "type", "category": "category", "reference_type": "reference_type"},
			Order:   "transaction_date DESC, id DESC",
			Scope: func(c *fiber.Ctx, db *gorm.DB) (*gorm.DB, error) {
				scope, err := dateRange(c, "transaction_date")
				if err != nil {
					return nil, err
				}
				return db.Scopes(scope), nil
			},
			Prepare: func(c *fiber.Ctx, tx *models.FinancialTransaction) error {
				tx.Type = strings.ToUpper(strings.TrimSpace(tx.Type))
				tx.Category = strings.ToUpper(strings.TrimSpace(tx.Category))
				tx.Amount = finance.Round2(tx.Amount)
				if tx.Amount <= 0 {
					return fiber.NewError(fiber.StatusBadRequest, "amount must be positive")
				}
				if tx.TransactionDate.IsZero() {
					tx.TransactionDate = time.Now()
				}
				return nil
			},
		},
		store: store,
	}
}

func (fc *FinancialTransactionController) filtered(c *fiber.Ctx) ([]models.FinancialTransaction, error) {
	query, err := fc.listQuery(c)
	if err != nil {
		return nil, err
	}
	var txs []models.FinancialTransaction
	if err := query.Order(fc.order()).Find(&txs).Error; err != nil {
		return nil, fiber.NewError(fiber.StatusInternalServerError, "Failed to fetch financial transactions")
	}
	return txs, nil
}

// GetSummary returns income, expense and net of the filtered transactions
func (fc *FinancialTransactionController) GetSummary(c *fiber.Ctx) error {
	txs, err := fc.filtered(c)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(finance.Summarize(txs))
}

// GetByCategory groups the filtered transactions by type and category
func (fc *FinancialTransactionController) GetByCategory(c *fiber.Ctx) error {
	txs, err := fc.filtered(c)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(finance.ByCategory(txs))
}

// GetByDay groups the filtered transactions by calendar day
func (fc *FinancialTransactionController) GetByDay(c *fiber.Ctx) error {
	txs, err := fc.filtered(c)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(finance.ByDay(txs))
}

// Export downloads the filtered transactions as xlsx, or stores the file on
// S3 when ?upload=true and returns its location
func (fc *FinancialTransactionController) Export(c *fiber.Ctx) error {
	txs, err := fc.filtered(c)
	if err != nil {
		return writeError(c, err)
	}

	buf, err := services.ExportTransactions(txs)
	if err != nil {
		logrus.WithError(err).Error("Transaction export failed")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to build export"})
	}

	now := time.Now().In(schoolLocation())
	fileName := fmt.Sprintf("transactions_%s.xlsx", now.Format("20060102_150405"))

	if c.QueryBool("upload") {
		if fc.store == nil {
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": storage.ErrNotConfigured.Error()})
		}
		key := storage.ObjectKey("exports/transactions", ".xlsx", now)
		url, err := fc.store.Put(c.UserContext(), key, storage.ContentType(".xlsx"), buf.Bytes())
		if err != nil {
			logrus.WithError(err).WithField("key", key).Error("Export upload failed")
			return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"error": "Failed to upload export"})
		}
		return c.JSON(fiber.Map{
			"file_name": fileName,
			"key":       key,
			"url":       url,
			"count":     len(txs),
		})
	}

	c.Set(fiber.HeaderContentType, storage.ContentType(".xlsx"))
	c.Set(fiber.HeaderContentDisposition, fmt.Sprintf(`attachment; filename="%s"`, fileName))
	return c.SendStream(bytes.NewReader(buf.Bytes()), buf.Len())
}

// Import reads a csv or xlsx upload (form field "file") and inserts every
// valid row. Rows that fail to parse are listed and skipped. ?dry_run=true
// only reports.
func (fc *FinancialTransactionController) Import(c *fiber.Ctx) error {
	fh, err := c.FormFile("file")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "file is required"})
	}
	if !utils.IsValidFileExtension(fh.Filename, []string{"csv", "xlsx"}) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": services.ErrUnsupportedFile.Error()})
	}
	if cfg := config.AppConfig; cfg != nil && cfg.MaxFileSize > 0 && fh.Size > cfg.MaxFileSize {
		return c.Status(fiber.StatusRequestEntityTooLarge).JSON(fiber.Map{"error": "File too large"})
	}

	f, err := fh.Open()
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Failed to read file"})
	}
	defer f.Close()

	rows, err := services.ReadRows(fh.Filename, f)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}
	txs, problems, err := services.ParseTransactionRows(rows, schoolLocation())
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	resp := fiber.Map{
		"file_name": fh.Filename,
		"parsed":    len(txs),
		"problems":  problems,
		"summary":   finance.Summarize(txs),
	}
	if c.QueryBool("dry_run") || len(txs) == 0 {
		resp["imported"] = 0
		return c.JSON(resp)
	}

	if err := database.DB.WithContext(c.UserContext()).CreateInBatches(&txs, importBatchSize).Error; err != nil {
		logrus.WithError(err).WithField("file", fh.Filename).Error("Transaction import failed")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to import transactions"})
	}
	resp["imported"] = len(txs)
	middleware.SetActivity(c, 0, fiber.Map{"file_name": fh.Filename, "imported": len(txs), "skipped": len(problems)})
	return c.Status(fiber.StatusCreated).JSON(resp)
}
