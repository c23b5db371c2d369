package controllers

import (
	"errors"
	"strings"

	"musicschool_go/database"
	"musicschool_go/middleware"
	"musicschool_go/models"
	"musicschool_go/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

type AuthController struct{}

// LoginRequest represents the login request body
type LoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// RegisterRequest represents the registration request body
type RegisterRequest struct {
	Username  string `json:"username" validate:"required,min=3,max=50"`
	Password  string `json:"password" validate:"required,min=6"`
	Email     string `json:"email" validate:"omitempty,email"`
	Role      string `json:"role" validate:"required"`
	TeacherID *uint  `json:"teacher_id"`
}

// ChangePasswordRequest represents the password change body
type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password" validate:"required"`
	NewPassword     string `json:"new_password" validate:"required,min=6"`
}

func userView(user *models.User) fiber.Map {
	return fiber.Map{
		"id":         user.ID,
		"username":   user.Username,
		"email":      user.Email,
		"role":       user.Role,
		"status":     user.Status,
		"teacher_id": user.TeacherID,
	}
}

// Login authenticates a user and returns a JWT token
func (ac *AuthController) Login(c *fiber.Ctx) error {
	var req LoginRequest
	if ok, err := utils.BindAndValidate(c, &req); !ok {
		return err
	}

	var user models.User
	if err := database.DB.Where("username = ? AND status = ?", strings.TrimSpace(req.Username), "active").First(&user).Error; err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "Invalid credentials",
		})
	}

	if err := utils.CheckPassword(req.Password, user.Password); err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "Invalid credentials",
		})
	}

	token, err := middleware.GenerateToken(&user)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to generate token",
		})
	}

	c.Locals("user", &user)
	middleware.LogActivity(c, "LOGIN", "auth", user.ID, fiber.Map{
		"username": user.Username,
		"role":     user.Role,
	})

	return c.JSON(fiber.Map{
		"message": "Login successful",
		"token":   token,
		"user":    userView(&user),
	})
}

// Logout blacklists the current token until it expires
func (ac *AuthController) Logout(c *fiber.Ctx) error {
	claims, err := middleware.GetCurrentClaims(c)
	if err != nil {
		return writeError(c, err)
	}

	if err := middleware.RevokeToken(c.UserContext(), claims); err != nil {
		// logout still succeeds; the token simply lives until expiry
		logrus.WithError(err).WithField("user_id", claims.UserID).Warn("Failed to revoke token")
	}

	middleware.LogActivity(c, "LOGOUT", "auth", claims.UserID, fiber.Map{"username": claims.Username})
	return c.JSON(fiber.Map{"message": "Logged out successfully"})
}

// Profile returns the authenticated user
func (ac *AuthController) Profile(c *fiber.Ctx) error {
	user, err := middleware.GetCurrentUser(c)
	if err != nil {
		return writeError(c, err)
	}

	resp := fiber.Map{"user": userView(user)}
	if user.TeacherID != nil {
		var teacher models.Teacher
		if err := database.DB.First(&teacher, *user.TeacherID).Error; err == nil {
			resp["teacher"] = teacher
		}
	}
	return c.JSON(resp)
}

// ChangePassword replaces the password of the authenticated user
func (ac *AuthController) ChangePassword(c *fiber.Ctx) error {
	user, err := middleware.GetCurrentUser(c)
	if err != nil {
		return writeError(c, err)
	}

	var req ChangePasswordRequest
	if ok, err := utils.BindAndValidate(c, &req); !ok {
		return err
	}

	if err := utils.CheckPassword(req.CurrentPassword, user.Password); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Current password is incorrect",
		})
	}

	hashed, err := utils.HashPassword(req.NewPassword)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to hash password",
		})
	}

	if err := database.DB.Model(user).Update("password", hashed).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to update password",
		})
	}

	middleware.LogActivity(c, "UPDATE", "auth", user.ID, fiber.Map{"field": "password"})
	return c.JSON(fiber.Map{"message": "Password changed successfully"})
}

// Register creates a new user account (owner/admin only)
func (ac *AuthController) Register(c *fiber.Ctx) error {
	var req RegisterRequest
	if ok, err := utils.BindAndValidate(c, &req); !ok {
		return err
	}

	if !utils.IsValidRole(req.Role) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid role",
		})
	}

	// only owners create owners
	if claims, err := middleware.GetCurrentClaims(c); err == nil && req.Role == utils.RoleOwner && claims.Role != utils.RoleOwner {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"error": "Only owners can create owner accounts",
		})
	}

	var existing models.User
	if err := database.DB.Where("username = ?", req.Username).First(&existing).Error; err == nil {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error": "Username already exists",
		})
	}

	hashed, err := utils.HashPassword(req.Password)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to hash password",
		})
	}

	user := models.User{
		Username:  req.Username,
		Password:  hashed,
		Email:     req.Email,
		Role:      req.Role,
		Status:    "active",
		TeacherID: req.TeacherID,
	}
	if err := database.DB.Create(&user).Error; err != nil {
		// a soft-deleted account still holds its username
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{
				"error": "Username already exists",
			})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to create user",
		})
	}

	middleware.LogActivity(c, "CREATE", "users", user.ID, fiber.Map{
		"username": user.Username,
		"role":     user.Role,
	})

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message": "User created successfully",
		"user":    userView(&user),
	})
}
