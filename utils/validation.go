package utils

import (
	"errors"
	"math"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

var validate = validator.New()

// ValidateStruct runs the `validate` tags of s.
func ValidateStruct(s interface{}) error {
	return validate.Struct(s)
}

// ValidationError writes a 400 listing the failed field tags.
func ValidationError(c *fiber.Ctx, err error) error {
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}
	fields := make(map[string]string, len(ve))
	for _, fe := range ve {
		fields[fe.Field()] = fe.Tag()
	}
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
		"error":  "Validation failed",
		"fields": fields,
	})
}

// BindAndValidate parses the JSON body into out and validates it. On failure
// the response is already written and ok is false.
func BindAndValidate(c *fiber.Ctx, out interface{}) (ok bool, err error) {
	if err := c.BodyParser(out); err != nil {
		return false, c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	if err := ValidateStruct(out); err != nil {
		return false, ValidationError(c, err)
	}
	return true, nil
}

// Paginated is the envelope of list endpoints that accept page/limit.
type Paginated struct {
	Data       interface{} `json:"data"`
	Total      int64       `json:"total"`
	Page       int         `json:"page"`
	Limit      int         `json:"limit"`
	TotalPages int         `json:"total_pages"`
}

const (
	DefaultPageSize = 20
	MaxPageSize     = 200
)

// PageParams reads page and limit, clamped to sane bounds.
func PageParams(c *fiber.Ctx) (page, limit int) {
	page, _ = strconv.Atoi(c.Query("page", "1"))
	if page <= 0 {
		page = 1
	}
	limit, _ = strconv.Atoi(c.Query("limit", strconv.Itoa(DefaultPageSize)))
	switch {
	case limit > MaxPageSize:
		limit = MaxPageSize
	case limit <= 0:
		limit = DefaultPageSize
	}
	return page, limit
}

// Paginate is a GORM scope applying the request's page and limit.
func Paginate(c *fiber.Ctx) func(db *gorm.DB) *gorm.DB {
	page, limit := PageParams(c)
	return func(db *gorm.DB) *gorm.DB {
		return db.Offset((page - 1) * limit).Limit(limit)
	}
}

func NewPaginated(c *fiber.Ctx, data interface{}, total int64) Paginated {
	page, limit := PageParams(c)
	pages := 0
	if total > 0 {
		pages = int(math.Ceil(float64(total) / float64(limit)))
	}
	return Paginated{Data: data, Total: total, Page: page, Limit: limit, TotalPages: pages}
}
