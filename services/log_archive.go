package services

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"time"

	"musicschool_go/middleware"
	"musicschool_go/models"
	"musicschool_go/storage"

	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// MinArchiveAgeDays is the youngest a log may be before it is archived.
const MinArchiveAgeDays = 7

var ErrArchiveNotFound = errors.New("archive not found")

// LogArchiveService moves cached activity logs into MySQL and old rows into S3.
type LogArchiveService struct {
	db    *gorm.DB
	redis *redis.Client
	store storage.ObjectStore
}

// ArchivedLog is one activity log row inside an archive.
type ArchivedLog struct {
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

// NewLogArchiveService accepts nil redis or store; the matching jobs then no-op with an error.
func NewLogArchiveService(db *gorm.DB, rdb *redis.Client, store storage.ObjectStore) *LogArchiveService {
	return &LogArchiveService{db: db, redis: rdb, store: store}
}

// FlushCachedLogs persists queued logs older than olderThan and returns how many moved.
func (s *LogArchiveService) FlushCachedLogs(ctx context.Context, olderThan time.Duration) (int, error) {
	if s.redis == nil {
		return 0, fmt.Errorf("redis client not available")
	}

	cutoff := time.Now().Add(-olderThan)
	keys, err := s.redis.ZRangeByScore(ctx, middleware.LogQueueKey, &redis.ZRangeBy{
		Min: "0",
		Max: strconv.FormatInt(cutoff.Unix(), 10),
	}).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to read log queue: %w", err)
	}

	moved := 0
	for _, key := range keys {
		raw, err := s.redis.Get(ctx, key).Result()
		if errors.Is(err, redis.Nil) {
			s.redis.ZRem(ctx, middleware.LogQueueKey, key)
			continue
		}
		if err != nil {
			logrus.WithError(err).WithField("key", key).Warn("Failed to read cached log")
			continue
		}

		var entry models.ActivityLog
		if err := json.Unmarshal([]byte(raw), &entry); err != nil {
			logrus.WithError(err).WithField("key", key).Warn("Dropping unreadable cached log")
			s.redis.ZRem(ctx, middleware.LogQueueKey, key)
			continue
		}
		entry.ID = 0
		if err := s.db.WithContext(ctx).Create(&entry).Error; err != nil {
			logrus.WithError(err).Error("Failed to save cached log")
			continue
		}

		pipe := s.redis.Pipeline()
		pipe.Del(ctx, key)
		pipe.ZRem(ctx, middleware.LogQueueKey, key)
		if _, err := pipe.Exec(ctx); err != nil {
			logrus.WithError(err).WithField("key", key).Warn("Failed to remove flushed log from cache")
		}
		moved++
	}

	logrus.WithFields(logrus.Fields{"queued": len(keys), "moved": moved}).Info("Cached activity logs flushed")
	return moved, nil
}

// ArchiveOldLogs zips logs older than daysOld days, uploads the zip, deletes
// the rows and records a LogArchive. Returns nil, nil when nothing is old enough.
func (s *LogArchiveService) ArchiveOldLogs(ctx context.Context, daysOld int) (*models.LogArchive, error) {
	if daysOld < MinArchiveAgeDays {
		return nil, fmt.Errorf("minimum archive age is %d days", MinArchiveAgeDays)
	}
	if s.store == nil {
		return nil, storage.ErrNotConfigured
	}

	cutoff := time.Now().AddDate(0, 0, -daysOld)
	var rows, batch []models.ActivityLog
	err := s.db.WithContext(ctx).Preload("User").
		Where("created_at < ?", cutoff).
		FindInBatches(&batch, 1000, func(*gorm.DB, int) error {
			rows = append(rows, batch...)
			return nil
		}).Error
	if err != nil {
		return nil, fmt.Errorf("failed to fetch logs for archiving: %w", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}

	logs := make([]ArchivedLog, 0, len(rows))
	for _, r := range rows {
		logs = append(logs, toArchived(r))
	}

	fileName := fmt.Sprintf("activity_logs_%s.zip", cutoff.Format("2006-01-02"))
	buf, err := BuildLogArchive(logs, fileName)
	if err != nil {
		return nil, err
	}

	key := fmt.Sprintf("logs/archived/%d/%02d/%s", cutoff.Year(), cutoff.Month(), fileName)
	if _, err := s.store.Put(ctx, key, "application/zip", buf.Bytes()); err != nil {
		return nil, err
	}

	archive := &models.LogArchive{
		FileName:    fileName,
		S3Key:       key,
		StartDate:   logs[0].CreatedAt,
		EndDate:     logs[len(logs)-1].CreatedAt,
		RecordCount: len(logs),
		FileSize:    int64(buf.Len()),
		Status:      "completed",
	}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("created_at < ?", cutoff).Delete(&models.ActivityLog{}).Error; err != nil {
			return err
		}
		return tx.Create(archive).Error
	})
	if err != nil {
		return nil, fmt.Errorf("failed to finalize archive: %w", err)
	}

	logrus.WithFields(logrus.Fields{"key": key, "records": len(logs)}).Info("Activity logs archived")
	return archive, nil
}

func toArchived(l models.ActivityLog) ArchivedLog {
	a := ArchivedLog{
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
		var d map[string]interface{}
		if err := json.Unmarshal(l.Details, &d); err == nil {
			a.Details = d
		}
	}
	return a
}

// BuildLogArchive writes a zip holding activity_logs.json, activity_logs.csv and metadata.json.
func BuildLogArchive(logs []ArchivedLog, fileName string) (*bytes.Buffer, error) {
	buf := new(bytes.Buffer)
	zw := zip.NewWriter(buf)

	jf, err := zw.Create("activity_logs.json")
	if err != nil {
		return nil, err
	}
	enc := json.NewEncoder(jf)
	enc.SetIndent("", "  ")
	if err := enc.Encode(logs); err != nil {
		return nil, fmt.Errorf("failed to encode logs: %w", err)
	}

	cf, err := zw.Create("activity_logs.csv")
	if err != nil {
		return nil, err
	}
	w := csv.NewWriter(cf)
	_ = w.Write([]string{"ID", "User ID", "Username", "Action", "Resource", "Resource ID", "IP Address", "Created At", "Details"})
	for _, l := range logs {
		details := ""
		if l.Details != nil {
			if b, err := json.Marshal(l.Details); err == nil {
				details = string(b)
			}
		}
		_ = w.Write([]string{
			strconv.FormatUint(uint64(l.ID), 10),
			strconv.FormatUint(uint64(l.UserID), 10),
			l.Username, l.Action, l.Resource,
			strconv.FormatUint(uint64(l.ResourceID), 10),
			l.IPAddress,
			l.CreatedAt.Format("2006-01-02 15:04:05"),
			details,
		})
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}

	mf, err := zw.Create("metadata.json")
	if err != nil {
		return nil, err
	}
	meta := map[string]interface{}{
		"file_name":      fileName,
		"created_at":     time.Now().UTC(),
		"record_count":   len(logs),
		"schema_version": "1.0",
	}
	if len(logs) > 0 {
		meta["date_range"] = map[string]time.Time{"start": logs[0].CreatedAt, "end": logs[len(logs)-1].CreatedAt}
	}
	if err := json.NewEncoder(mf).Encode(meta); err != nil {
		return nil, err
	}

	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("failed to close zip: %w", err)
	}
	return buf, nil
}

// ListArchives returns archive records, newest first.
func (s *LogArchiveService) ListArchives(ctx context.Context) ([]models.LogArchive, error) {
	var archives []models.LogArchive
	if err := s.db.WithContext(ctx).Order("created_at DESC").Find(&archives).Error; err != nil {
		return nil, err
	}
	return archives, nil
}

// OpenArchive streams the zip of archive id.
func (s *LogArchiveService) OpenArchive(ctx context.Context, id uint) (io.ReadCloser, string, error) {
	if s.store == nil {
		return nil, "", storage.ErrNotConfigured
	}
	var archive models.LogArchive
	err := s.db.WithContext(ctx).First(&archive, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, "", ErrArchiveNotFound
	}
	if err != nil {
		return nil, "", err
	}
	body, err := s.store.Get(ctx, archive.S3Key)
	if err != nil {
		return nil, "", err
	}
	return body, archive.FileName, nil
}

// RegisterJobs schedules the hourly flush and the nightly archive.
func (s *LogArchiveService) RegisterJobs(sched *Scheduler, retentionDays int) error {
	if err := sched.Add("logs.flush", "@hourly", func() {
		if _, err := s.FlushCachedLogs(context.Background(), 0); err != nil {
			logrus.WithError(err).Debug("Log flush skipped")
		}
	}); err != nil {
		return err
	}
	return sched.Add("logs.archive", "30 3 * * *", func() {
		if _, err := s.ArchiveOldLogs(context.Background(), retentionDays); err != nil {
			logrus.WithError(err).Warn("Log archive failed")
		}
	})
}
