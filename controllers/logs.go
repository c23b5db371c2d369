package controllers

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"musicschool_go/database"
	"musicschool_go/models"
	"musicschool_go/services"
	"musicschool_go/storage"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

type LogController struct {
	archive *services.LogArchiveService
}

func NewLogController(archive *services.LogArchiveService) *LogController {
	return &LogController{archive: archive}
}

// LogResponse represents a log entry response
type LogResponse struct {
	ID         uint                   `json:"id"`
	UserID     uint                   `json:"user_id"`
	Username   string                 `json:"username,omitempty"`
	Action     string                 `json:"action"`
	Resource   string                 `json:"resource"`
	ResourceID uint                   `json:"resource_id"`
	Details    map[string]interface{} `json:"details,omitempty"`
	IPAddress  string                 `json:"ip_address"`
	CreatedAt  time.Time              `json:"created_at"`
}

type LogsStatsResponse struct {
	Total             int64            `json:"total"`
	TotalToday        int64            `json:"total_today"`
	ActionBreakdown   map[string]int64 `json:"action_breakdown"`
	ResourceBreakdown map[string]int64 `json:"resource_breakdown"`
}

var activityLogs = Resource[models.ActivityLog, *models.ActivityLog]{
	Label:    "Activity log",
	Preloads: []string{"User"},
	Filters: map[string]string{
		"user_id":    "user_id",
		"action":     "action",
		"resource":   "resource",
		"ip_address": "ip_address",
	},
	Order: "created_at DESC",
	Scope: func(c *fiber.Ctx, db *gorm.DB) (*gorm.DB, error) {
		scope, err := dateRange(c, "created_at")
		if err != nil {
			return nil, err
		}
		return db.Scopes(scope), nil
	},
}

func toLogResponse(l models.ActivityLog) LogResponse {
	out := LogResponse{
		ID:         l.ID,
		UserID:     l.UserID,
		Username:   l.User.Username,
		Action:     l.Action,
		Resource:   l.Resource,
		ResourceID: l.ResourceID,
		IPAddress:  l.IPAddress,
		CreatedAt:  l.CreatedAt,
	}
	if !l.Details.IsNull() {
		var details map[string]interface{}
		if err := json.Unmarshal(l.Details, &details); err == nil {
			out.Details = details
		}
	}
	return out
}

// GetLogs retrieves activity logs, newest first
func (lc *LogController) GetLogs(c *fiber.Ctx) error {
	query, err := activityLogs.listQuery(c)
	if err != nil {
		return writeError(c, err)
	}

	var total int64
	if err := query.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		logrus.WithError(err).Error("Failed to count logs")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to retrieve logs count",
		})
	}

	page, limit := logPage(c)
	var rows []models.ActivityLog
	if err := activityLogs.preload(query).Order(activityLogs.order()).
		Offset((page - 1) * limit).Limit(limit).Find(&rows).Error; err != nil {
		logrus.WithError(err).Error("Failed to retrieve logs")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to retrieve logs",
		})
	}

	logs := make([]LogResponse, len(rows))
	for i, l := range rows {
		logs[i] = toLogResponse(l)
	}
	return c.JSON(fiber.Map{
		"logs":        logs,
		"total":       total,
		"page":        page,
		"limit":       limit,
		"total_pages": (total + int64(limit) - 1) / int64(limit),
	})
}

// logPage reads page and limit with a larger default than other lists.
func logPage(c *fiber.Ctx) (int, int) {
	page, limit := c.QueryInt("page", 1), c.QueryInt("limit", 50)
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 500 {
		limit = 50
	}
	return page, limit
}

// GetLogStats counts logs by action and resource
func (lc *LogController) GetLogStats(c *fiber.Ctx) error {
	now := time.Now()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())

	stats := LogsStatsResponse{
		ActionBreakdown:   make(map[string]int64),
		ResourceBreakdown: make(map[string]int64),
	}
	database.DB.Model(&models.ActivityLog{}).Count(&stats.Total)
	database.DB.Model(&models.ActivityLog{}).Where("created_at >= ?", today).Count(&stats.TotalToday)

	type bucket struct {
		Key   string
		Count int64
	}
	var buckets []bucket
	database.DB.Model(&models.ActivityLog{}).Select("action AS `key`, COUNT(*) AS count").Group("action").Scan(&buckets)
	for _, b := range buckets {
		stats.ActionBreakdown[b.Key] = b.Count
	}
	buckets = nil
	database.DB.Model(&models.ActivityLog{}).Select("resource AS `key`, COUNT(*) AS count").Group("resource").Scan(&buckets)
	for _, b := range buckets {
		stats.ResourceBreakdown[b.Key] = b.Count
	}
	return c.JSON(stats)
}

// FlushLogs moves every queued log from Redis into MySQL
func (lc *LogController) FlushLogs(c *fiber.Ctx) error {
	n, err := lc.archive.FlushCachedLogs(c.UserContext(), 0)
	if err != nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(fiber.Map{"message": "Logs flushed", "flushed": n})
}

// ArchiveLogs zips logs older than ?days= (default 30) to S3 and deletes them
func (lc *LogController) ArchiveLogs(c *fiber.Ctx) error {
	days := c.QueryInt("days", 30)
	if days < services.MinArchiveAgeDays {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": fmt.Sprintf("days must be at least %d", services.MinArchiveAgeDays),
		})
	}

	archive, err := lc.archive.ArchiveOldLogs(c.UserContext(), days)
	switch {
	case errors.Is(err, storage.ErrNotConfigured):
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": err.Error()})
	case err != nil:
		logrus.WithError(err).Error("Manual log archive failed")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to archive logs"})
	case archive == nil:
		return c.JSON(fiber.Map{"message": "No logs to archive"})
	}
	return c.Status(fiber.StatusCreated).JSON(archive)
}

// GetArchives lists archived batches
func (lc *LogController) GetArchives(c *fiber.Ctx) error {
	archives, err := lc.archive.ListArchives(c.UserContext())
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to list archives"})
	}
	return c.JSON(archives)
}

// DownloadArchive streams an archive zip from S3
func (lc *LogController) DownloadArchive(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return writeError(c, err)
	}

	body, name, err := lc.archive.OpenArchive(c.UserContext(), id)
	switch {
	case errors.Is(err, services.ErrArchiveNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, storage.ErrNotConfigured):
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": err.Error()})
	case err != nil:
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"error": "Failed to download archive"})
	}

	c.Set(fiber.HeaderContentType, storage.ContentType(".zip"))
	c.Set(fiber.HeaderContentDisposition, fmt.Sprintf(`attachment; filename="%s"`, name))
	return c.SendStream(body)
}
