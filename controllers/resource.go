package controllers

import (
	"errors"

	"musicschool_go/database"
	"musicschool_go/middleware"
	"musicschool_go/models"
	"musicschool_go/utils"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Record is a pointer to a model embedding models.BaseModel.
type Record[T any] interface {
	*T
	GetBase() models.BaseModel
	SetBase(models.BaseModel)
}

// Resource serves list/get/create/update/delete for one model. Lists return
// a plain array unless the request carries ?page=, in which case the
// utils.Paginated envelope is returned.
type Resource[T any, PT Record[T]] struct {
	// Label names the record in messages ("Teacher not found").
	Label    string
	Preloads []string
	// Filters maps query parameters to equality conditions on columns.
	Filters map[string]string
	Order   string
	// Scope adds request specific conditions to list queries.
	Scope func(c *fiber.Ctx, db *gorm.DB) (*gorm.DB, error)
	// Prepare normalizes a decoded body before validation. Returning a
	// *fiber.Error keeps its status code.
	Prepare func(c *fiber.Ctx, item PT) error
}

func (r *Resource[T, PT]) preload(db *gorm.DB) *gorm.DB {
	for _, p := range r.Preloads {
		db = db.Preload(p)
	}
	return db
}

func (r *Resource[T, PT]) listQuery(c *fiber.Ctx) (*gorm.DB, error) {
	query := database.DB.Model(new(T))
	for param, column := range r.Filters {
		if v := c.Query(param); v != "" {
			query = query.Where(column+" = ?", filterValue(v))
		}
	}
	if r.Scope != nil {
		return r.Scope(c, query)
	}
	return query, nil
}

// filterValue turns true/false into booleans so tinyint columns compare correctly.
func filterValue(v string) interface{} {
	switch v {
	case "true":
		return true
	case "false":
		return false
	}
	return v
}

func (r *Resource[T, PT]) order() string {
	if r.Order == "" {
		return "id ASC"
	}
	return r.Order
}

// Find runs the list query with extra conditions and writes the response.
func (r *Resource[T, PT]) Find(c *fiber.Ctx, scopes ...func(*gorm.DB) *gorm.DB) error {
	query, err := r.listQuery(c)
	if err != nil {
		return writeError(c, err)
	}
	query = query.Scopes(scopes...)

	var items []T
	if c.Query("page") == "" {
		if err := r.preload(query).Order(r.order()).Find(&items).Error; err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to fetch " + r.Label + " list"})
		}
		return c.JSON(items)
	}

	var total int64
	if err := query.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to count " + r.Label + " list"})
	}
	if err := r.preload(query).Order(r.order()).Scopes(utils.Paginate(c)).Find(&items).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to fetch " + r.Label + " list"})
	}
	return c.JSON(utils.NewPaginated(c, items, total))
}

// List returns all records matching the configured filters.
func (r *Resource[T, PT]) List(c *fiber.Ctx) error {
	return r.Find(c)
}

func (r *Resource[T, PT]) load(id uint, preload bool) (PT, error) {
	item := PT(new(T))
	db := database.DB
	if preload {
		db = r.preload(db)
	}
	if err := db.First(item, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fiber.NewError(fiber.StatusNotFound, r.Label+" not found")
		}
		return nil, err
	}
	return item, nil
}

// Get returns one record by id.
func (r *Resource[T, PT]) Get(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return writeError(c, err)
	}
	item, err := r.load(id, true)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(item)
}

// decode parses and validates the body into item.
func (r *Resource[T, PT]) decode(c *fiber.Ctx, item PT) (bool, error) {
	base := item.GetBase()
	if err := c.BodyParser(item); err != nil {
		return false, c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	item.SetBase(base)
	if r.Prepare != nil {
		if err := r.Prepare(c, item); err != nil {
			return false, writeError(c, err)
		}
	}
	if err := utils.ValidateStruct(item); err != nil {
		return false, utils.ValidationError(c, err)
	}
	return true, nil
}

// Create inserts a record from the request body.
func (r *Resource[T, PT]) Create(c *fiber.Ctx) error {
	item := PT(new(T))
	if ok, err := r.decode(c, item); !ok {
		return err
	}

	if err := database.DB.Omit(clause.Associations).Create(item).Error; err != nil {
		return r.saveError(c, err, "Failed to create "+r.Label)
	}
	id := item.GetBase().ID
	if fresh, err := r.load(id, true); err == nil {
		item = fresh
	}
	middleware.SetActivity(c, id, nil)
	return c.Status(fiber.StatusCreated).JSON(item)
}

// Update overwrites the fields present in the body.
func (r *Resource[T, PT]) Update(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return writeError(c, err)
	}
	item, err := r.load(id, false)
	if err != nil {
		return writeError(c, err)
	}
	if ok, err := r.decode(c, item); !ok {
		return err
	}

	if err := database.DB.Omit(clause.Associations).Save(item).Error; err != nil {
		return r.saveError(c, err, "Failed to update "+r.Label)
	}
	if fresh, err := r.load(id, true); err == nil {
		item = fresh
	}
	return c.JSON(item)
}

// saveError answers 409 for unique key collisions, soft-deleted rows
// included, and 500 with fallback otherwise.
func (r *Resource[T, PT]) saveError(c *fiber.Ctx, err error, fallback string) error {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": r.Label + " already exists"})
	}
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": fallback})
}

// Delete soft-deletes a record.
func (r *Resource[T, PT]) Delete(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return writeError(c, err)
	}
	item, err := r.load(id, false)
	if err != nil {
		return writeError(c, err)
	}
	if err := database.DB.Delete(item).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to delete " + r.Label})
	}
	return c.JSON(fiber.Map{"message": r.Label + " deleted successfully"})
}

// Updates applies a column map to the record and returns the reloaded row.
func (r *Resource[T, PT]) Updates(c *fiber.Ctx, id uint, values map[string]interface{}) error {
	item, err := r.load(id, false)
	if err != nil {
		return writeError(c, err)
	}
	if err := database.DB.Model(item).Updates(values).Error; err != nil {
		return r.saveError(c, err, "Failed to update "+r.Label)
	}
	middleware.SetActivity(c, id, values)
	if fresh, err := r.load(id, true); err == nil {
		item = fresh
	}
	return c.JSON(item)
}
