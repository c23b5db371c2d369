package controllers

import (
	"errors"
	"strconv"
	"time"

	"musicschool_go/config"
	"musicschool_go/utils"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

// paramID parses a numeric route parameter.
func paramID(c *fiber.Ctx, name string) (uint, error) {
	id, err := strconv.ParseUint(c.Params(name), 10, 32)
	if err != nil || id == 0 {
		return 0, fiber.NewError(fiber.StatusBadRequest, "Invalid "+name)
	}
	return uint(id), nil
}

// queryID parses an optional numeric query parameter; 0 means unset.
func queryID(c *fiber.Ctx, name string) (uint, error) {
	v := c.Query(name)
	if v == "" {
		return 0, nil
	}
	id, err := strconv.ParseUint(v, 10, 32)
	if err != nil {
		return 0, fiber.NewError(fiber.StatusBadRequest, "Invalid "+name)
	}
	return uint(id), nil
}

// writeError renders err as {"error": ...}, keeping the status of fiber errors.
func writeError(c *fiber.Ctx, err error) error {
	var fe *fiber.Error
	if errors.As(err, &fe) {
		return c.Status(fe.Code).JSON(fiber.Map{"error": fe.Message})
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Record not found"})
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "Record already exists"})
	}
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
}

func schoolLocation() *time.Location {
	return config.AppConfig.Location()
}

// dateRange reads start_date/end_date and returns a scope limiting column to
// the inclusive range.
func dateRange(c *fiber.Ctx, column string) (func(*gorm.DB) *gorm.DB, error) {
	start, end, err := utils.ParseDateRange(c.Query("start_date"), c.Query("end_date"), schoolLocation())
	if err != nil {
		return nil, fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	return func(db *gorm.DB) *gorm.DB {
		if !start.IsZero() {
			db = db.Where(column+" >= ?", start)
		}
		if !end.IsZero() {
			db = db.Where(column+" <= ?", end)
		}
		return db
	}, nil
}
