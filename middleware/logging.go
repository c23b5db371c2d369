package middleware

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"musicschool_go/database"
	"musicschool_go/models"

	"github.com/go-redis/redis/v8"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// LogQueueKey is the Redis sorted set of cached activity log keys, scored by unix time.
const LogQueueKey = "logs:queue"

// LoggerMiddleware logs HTTP requests
func LoggerMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		logrus.WithFields(logrus.Fields{
			"method":     c.Method(),
			"path":       c.Path(),
			"status":     c.Response().StatusCode(),
			"duration":   time.Since(start).String(),
			"ip":         c.IP(),
			"user_agent": c.Get("User-Agent"),
		}).Info("HTTP Request")

		return err
	}
}

// LogActivity records a mutation. The entry goes to the Redis queue when
// available and straight to the database otherwise.
func LogActivity(c *fiber.Ctx, action, resource string, resourceID uint, details interface{}) {
	var userID uint
	if user, err := GetCurrentUser(c); err == nil {
		userID = user.ID
	}

	entry := models.ActivityLog{
		UserID:     userID,
		Action:     action,
		Resource:   resource,
		ResourceID: resourceID,
		IPAddress:  c.IP(),
		UserAgent:  c.Get("User-Agent"),
	}
	entry.CreatedAt = time.Now()

	meta := map[string]interface{}{
		"details":        details,
		"integrity_hash": integrityHash(entry),
		"request_id":     c.Get("X-Request-ID", uuid.NewString()),
		"method":         c.Method(),
		"path":           c.Path(),
		"query":          string(c.Request().URI().QueryString()),
		"status_code":    c.Response().StatusCode(),
	}
	if b, err := json.Marshal(meta); err == nil {
		entry.Details = b
	}

	go func(al models.ActivityLog) {
		defer func() {
			if r := recover(); r != nil {
				logrus.WithField("panic", r).Error("panic recovered in LogActivity goroutine")
			}
		}()

		if err := cacheActivityLog(context.Background(), al); err != nil {
			if database.DB == nil {
				logrus.WithError(err).Error("Cannot persist activity log: no database")
				return
			}
			if dbErr := database.DB.Create(&al).Error; dbErr != nil {
				logrus.WithError(dbErr).Error("Failed to save activity log to database")
			}
		}
	}(entry)
}

func integrityHash(log models.ActivityLog) string {
	data := fmt.Sprintf("%d:%s:%s:%d:%s:%s:%s",
		log.UserID, log.Action, log.Resource, log.ResourceID,
		log.IPAddress, log.UserAgent, log.CreatedAt.Format(time.RFC3339Nano))
	return fmt.Sprintf("%x", sha256.Sum256([]byte(data)))
}

func cacheActivityLog(ctx context.Context, log models.ActivityLog) error {
	rdb := database.GetRedisClient()
	if rdb == nil {
		return fmt.Errorf("redis client is nil")
	}

	data, err := json.Marshal(log)
	if err != nil {
		return fmt.Errorf("failed to marshal log: %w", err)
	}

	key := fmt.Sprintf("log:%d:%s:%d", log.UserID, log.Action, time.Now().UnixNano())
	if err := rdb.Set(ctx, key, data, 48*time.Hour).Err(); err != nil {
		return fmt.Errorf("failed to cache log: %w", err)
	}
	if err := rdb.ZAdd(ctx, LogQueueKey, &redis.Z{
		Score:  float64(log.CreatedAt.Unix()),
		Member: key,
	}).Err(); err != nil {
		logrus.WithError(err).Error("Failed to add log to processing queue")
	}
	return nil
}

// LogActivityMiddleware logs successful POST/PUT/PATCH/DELETE requests.
func LogActivityMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if c.Method() == fiber.MethodGet || strings.Contains(c.Path(), "/auth/") {
			return c.Next()
		}

		err := c.Next()

		action := ActionForMethod(c.Method())
		if action == "" || c.Response().StatusCode() >= 400 {
			return err
		}

		var resourceID uint
		if id, ok := c.Locals(activityIDKey).(uint); ok {
			resourceID = id
		} else if id, perr := strconv.ParseUint(c.Params("id"), 10, 64); perr == nil {
			resourceID = uint(id)
		}
		LogActivity(c, action, ResourceFromPath(c.Path()), resourceID, c.Locals(activityDetailsKey))
		return err
	}
}

const (
	activityIDKey      = "activity_id"
	activityDetailsKey = "activity_details"
)

// SetActivity attaches the affected record id and details to the activity
// entry LogActivityMiddleware writes for this request.
func SetActivity(c *fiber.Ctx, resourceID uint, details interface{}) {
	c.Locals(activityIDKey, resourceID)
	if details != nil {
		c.Locals(activityDetailsKey, details)
	}
}

// ActionForMethod maps an HTTP method to an activity action.
func ActionForMethod(method string) string {
	switch method {
	case fiber.MethodPost:
		return "CREATE"
	case fiber.MethodPut, fiber.MethodPatch:
		return "UPDATE"
	case fiber.MethodDelete:
		return "DELETE"
	}
	return ""
}

// ResourceFromPath returns the segment after /api.
func ResourceFromPath(path string) string {
	parts := strings.Split(strings.Trim(path, "/"), "/")
	if len(parts) >= 2 && parts[0] == "api" {
		return parts[1]
	}
	if len(parts) > 0 {
		return parts[0]
	}
	return ""
}
