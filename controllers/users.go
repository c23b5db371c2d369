package controllers

import (
	"strings"

	"musicschool_go/database"
	"musicschool_go/middleware"
	"musicschool_go/models"
	"musicschool_go/utils"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

type UserController struct{}

// UpdateUserRequest holds the editable account fields; empty values are left unchanged
type UpdateUserRequest struct {
	Email     string `json:"email" validate:"omitempty,email"`
	Role      string `json:"role"`
	Status    string `json:"status"`
	TeacherID *uint  `json:"teacher_id"`
}

// GetUsers returns user accounts, optionally filtered by role and status
func (uc *UserController) GetUsers(c *fiber.Ctx) error {
	query := database.DB.Model(&models.User{})
	if role := c.Query("role"); role != "" {
		query = query.Where("role = ?", role)
	}
	if status := c.Query("status"); status != "" {
		query = query.Where("status = ?", status)
	}

	var total int64
	query.Session(&gorm.Session{}).Count(&total)

	var users []models.User
	if err := query.Order("username ASC").Scopes(utils.Paginate(c)).Find(&users).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to fetch users",
		})
	}

	views := make([]fiber.Map, len(users))
	for i := range users {
		views[i] = userView(&users[i])
	}
	return c.JSON(utils.NewPaginated(c, views, total))
}

// GetUser returns a specific user by ID
func (uc *UserController) GetUser(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return writeError(c, err)
	}

	var user models.User
	if err := database.DB.First(&user, id).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "User not found",
		})
	}
	return c.JSON(fiber.Map{"user": userView(&user)})
}

// UpdateUser changes role, status, email or teacher link of an account
func (uc *UserController) UpdateUser(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return writeError(c, err)
	}

	var user models.User
	if err := database.DB.First(&user, id).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "User not found",
		})
	}

	var req UpdateUserRequest
	if ok, err := utils.BindAndValidate(c, &req); !ok {
		return err
	}

	if req.Role != "" && !utils.IsValidRole(req.Role) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid role",
		})
	}
	if req.Status != "" && !utils.IsValidUserStatus(req.Status) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid status",
		})
	}

	updates := map[string]interface{}{}
	if email := strings.TrimSpace(req.Email); email != "" {
		updates["email"] = email
	}
	if req.Role != "" {
		updates["role"] = req.Role
	}
	if req.Status != "" {
		updates["status"] = req.Status
	}
	if req.TeacherID != nil {
		updates["teacher_id"] = *req.TeacherID
	}
	if len(updates) == 0 {
		return c.JSON(fiber.Map{"user": userView(&user)})
	}

	if err := database.DB.Model(&user).Updates(updates).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to update user",
		})
	}
	middleware.SetActivity(c, user.ID, updates)
	database.DB.First(&user, id)

	return c.JSON(fiber.Map{
		"message": "User updated successfully",
		"user":    userView(&user),
	})
}

// DeleteUser soft-deletes an account other than the caller's own
func (uc *UserController) DeleteUser(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return writeError(c, err)
	}

	if current, err := middleware.GetCurrentUser(c); err == nil && current.ID == id {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "You cannot delete your own account",
		})
	}

	var user models.User
	if err := database.DB.First(&user, id).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "User not found",
		})
	}

	if err := database.DB.Delete(&user).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to delete user",
		})
	}
	middleware.SetActivity(c, user.ID, fiber.Map{"username": user.Username})

	return c.JSON(fiber.Map{
		"message": "User deleted successfully",
	})
}
