package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func lookup(values map[string]string) func(key, def string) string {
	return func(key, def string) string {
		if v, ok := values[key]; ok {
			return v
		}
		return def
	}
}

func TestParseDuration(t *testing.T) {
	tests := []struct {
		input string
		want  time.Duration
	}{
		{"24h", 24 * time.Hour},
		{"90m", 90 * time.Minute},
		{"7d", 7 * 24 * time.Hour},
		{"2w", 14 * 24 * time.Hour},
		{" 3D ", 3 * 24 * time.Hour},
	}
	for _, tc := range tests {
		t.Run(tc.input, func(t *testing.T) {
			got, err := ParseDuration(tc.input)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}

	for _, bad := range []string{"", "abc", "xd", "0w"} {
		_, err := ParseDuration(bad)
		assert.Error(t, err, "input %q", bad)
	}
}

func TestBuildDefaults(t *testing.T) {
	cfg, err := build(lookup(nil))
	require.NoError(t, err)

	assert.Equal(t, "3000", cfg.Port)
	assert.Equal(t, 24*time.Hour, cfg.JWTExpiresIn)
	assert.Equal(t, 9, cfg.GridStartHour)
	assert.Equal(t, 21, cfg.GridEndHour)
	assert.Equal(t, "0 18 * * *", cfg.ReminderCron)
	assert.Equal(t, "root:@tcp(localhost:3306)/musicschool?charset=utf8mb4&parseTime=True&loc=Local", cfg.GetDSN())
}

func TestBuildRejectsBadGridHours(t *testing.T) {
	_, err := build(lookup(map[string]string{"GRID_START_HOUR": "20", "GRID_END_HOUR": "10"}))
	assert.Error(t, err)

	_, err = build(lookup(map[string]string{"GRID_END_HOUR": "25"}))
	assert.Error(t, err)
}

func TestValidateConfigProduction(t *testing.T) {
	cfg := &Config{AppEnv: "production", DBPassword: "secret", JWTSecret: "short"}
	assert.Error(t, validateConfig(cfg))

	cfg.JWTSecret = "a-much-longer-jwt-secret"
	assert.NoError(t, validateConfig(cfg))

	cfg.DBPassword = " "
	assert.Error(t, validateConfig(cfg))

	assert.NoError(t, validateConfig(&Config{AppEnv: "development"}))
}

func TestLocationFallback(t *testing.T) {
	assert.Equal(t, time.Local, (&Config{SchoolTimezone: "Not/AZone"}).Location())
	assert.Equal(t, time.Local, (*Config)(nil).Location())
}
