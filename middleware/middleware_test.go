package middleware

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"musicschool_go/config"
	"musicschool_go/models"
)

func withConfig(t *testing.T) {
	t.Helper()
	prev := config.AppConfig
	config.AppConfig = &config.Config{JWTSecret: "test-secret-0123456789", JWTExpiresIn: time.Hour}
	t.Cleanup(func() { config.AppConfig = prev })
}

func TestGenerateAndParseToken(t *testing.T) {
	withConfig(t)
	teacherID := uint(4)
	user := &models.User{Username: "ayse", Role: "teacher", TeacherID: &teacherID}
	user.ID = 9

	token, err := GenerateToken(user)
	require.NoError(t, err)

	claims, err := ParseToken(token)
	require.NoError(t, err)
	assert.Equal(t, uint(9), claims.UserID)
	assert.Equal(t, "teacher", claims.Role)
	require.NotNil(t, claims.TeacherID)
	assert.Equal(t, uint(4), *claims.TeacherID)
	assert.NotEmpty(t, claims.ID)

	other, err := GenerateToken(user)
	require.NoError(t, err)
	otherClaims, err := ParseToken(other)
	require.NoError(t, err)
	assert.NotEqual(t, claims.ID, otherClaims.ID)
}

func TestParseTokenRejects(t *testing.T) {
	withConfig(t)

	expired := jwt.NewWithClaims(jwt.SigningMethodHS256, &Claims{
		UserID: 1,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
		},
	})
	s, err := expired.SignedString([]byte(config.AppConfig.JWTSecret))
	require.NoError(t, err)
	_, err = ParseToken(s)
	assert.Error(t, err)

	wrongKey := jwt.NewWithClaims(jwt.SigningMethodHS256, &Claims{UserID: 1})
	s, err = wrongKey.SignedString([]byte("another-secret"))
	require.NoError(t, err)
	_, err = ParseToken(s)
	assert.Error(t, err)

	_, err = ParseToken("garbage")
	assert.Error(t, err)
}

func TestJWTMiddlewareRejectsMissingHeader(t *testing.T) {
	withConfig(t)
	app := fiber.New()
	app.Get("/", JWTMiddleware(), func(c *fiber.Ctx) error { return c.SendString("ok") })

	resp, err := app.Test(httptest.NewRequest("GET", "/", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)

	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set("Authorization", "Token abc")
	resp, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)

	req = httptest.NewRequest("GET", "/", nil)
	req.Header.Set("Authorization", "Bearer not-a-jwt")
	resp, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}

func TestRequireRole(t *testing.T) {
	app := fiber.New()
	setRole := func(role string) fiber.Handler {
		return func(c *fiber.Ctx) error {
			if role != "" {
				c.Locals("claims", &Claims{Role: role})
			}
			return c.Next()
		}
	}
	ok := func(c *fiber.Ctx) error { return c.SendString("ok") }
	app.Get("/admin", setRole("admin"), RequireOwnerOrAdmin(), ok)
	app.Get("/teacher", setRole("teacher"), RequireStaffOrAbove(), ok)
	app.Get("/anon", setRole(""), RequireOwnerOrAdmin(), ok)

	cases := map[string]int{
		"/admin":   fiber.StatusOK,
		"/teacher": fiber.StatusForbidden,
		"/anon":    fiber.StatusUnauthorized,
	}
	for path, want := range cases {
		resp, err := app.Test(httptest.NewRequest("GET", path, nil))
		require.NoError(t, err)
		assert.Equal(t, want, resp.StatusCode, path)
	}
}

func TestActionAndResource(t *testing.T) {
	assert.Equal(t, "CREATE", ActionForMethod("POST"))
	assert.Equal(t, "UPDATE", ActionForMethod("PATCH"))
	assert.Equal(t, "DELETE", ActionForMethod("DELETE"))
	assert.Empty(t, ActionForMethod("GET"))

	assert.Equal(t, "lesson_attendances", ResourceFromPath("/api/lesson_attendances/mark"))
	assert.Equal(t, "health", ResourceFromPath("/health"))
}
