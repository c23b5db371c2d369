package storage

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"musicschool_go/config"
)

func TestObjectKey(t *testing.T) {
	now := time.Date(2024, 3, 5, 12, 0, 0, 0, time.UTC)

	key := ObjectKey("/exports/finance/", ".XLSX", now)
	assert.Regexp(t, regexp.MustCompile(`^exports/finance/2024/03/05/[0-9a-f]{16}\.xlsx$`), key)

	noExt := ObjectKey("logs", "", now)
	assert.Regexp(t, regexp.MustCompile(`^logs/2024/03/05/[0-9a-f]{16}$`), noExt)

	assert.NotEqual(t, ObjectKey("a", "zip", now), ObjectKey("a", "zip", now))
}

func TestKeyFromURL(t *testing.T) {
	s := &StorageService{bucket: "school", region: "eu-central-1"}
	url := s.URL("exports/x.xlsx")
	assert.Equal(t, "https://school.s3.eu-central-1.amazonaws.com/exports/x.xlsx", url)
	assert.Equal(t, "exports/x.xlsx", KeyFromURL(url))
	assert.Empty(t, KeyFromURL("https://example.com/x"))
}

func TestContentType(t *testing.T) {
	assert.Equal(t, "application/zip", ContentType(".zip"))
	assert.Equal(t, "text/csv", ContentType("CSV"))
	assert.Equal(t, "application/octet-stream", ContentType("bin"))
}

func TestNewStorageServiceRequiresBucket(t *testing.T) {
	_, err := NewStorageService(context.Background(), &config.Config{AWSRegion: "eu-central-1"})
	assert.ErrorIs(t, err, ErrNotConfigured)

	_, err = NewStorageService(context.Background(), nil)
	assert.ErrorIs(t, err, ErrNotConfigured)
}
