// Package config tests.
package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/p-blackswan/project-health/internal/models"
)

func TestLoad_Defaults(t *testing.T) {
	os.Clearenv()
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "development", cfg.Environment)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, ":8090", cfg.MgmtListenAddr)
	assert.Equal(t, AuthAPIKey, cfg.MgmtAuthMode)
	assert.Equal(t, 20, cfg.MgmtRateLimitRPS)
	assert.Equal(t, 40, cfg.MgmtRateLimitBurst)
	assert.Equal(t, "projects.yaml", cfg.ProjectsFile)
	assert.Equal(t, "project-health.db", cfg.DBPath)
	assert.Equal(t, 720*time.Hour, cfg.ResultRetention)
	assert.Equal(t, 300*time.Second, cfg.MonitorInterval)
	assert.Equal(t, 60*time.Second, cfg.CycleTimeout)
	assert.Equal(t, 30, cfg.HistoryLimit)
	assert.Equal(t, 2.0, cfg.BlockedTaskThresholdDays)
	assert.Equal(t, 7, cfg.ApproachingDeadlineDays)
	assert.Equal(t, 3, cfg.OverdueThresholdDays)
	assert.Equal(t, 25.0, cfg.ResourceLowThreshold)
	assert.Equal(t, 0.7, cfg.HighRiskThreshold)
	assert.Equal(t, 6*time.Hour, cfg.NotifyDedupWindow)
	assert.Equal(t, models.SeverityHigh, cfg.MinSeverity())
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("MONITOR_INTERVAL", "1m")
	t.Setenv("BLOCKED_TASK_THRESHOLD_DAYS", "1.5")
	t.Setenv("OVERDUE_THRESHOLD_DAYS", "5")
	t.Setenv("NOTIFY_MIN_SEVERITY", "Critical")
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, time.Minute, cfg.MonitorInterval)
	assert.Equal(t, models.SeverityCritical, cfg.MinSeverity())

	th := cfg.AlertThresholds()
	assert.Equal(t, 1.5, th.BlockedTaskThresholdDays)
	assert.Equal(t, 5, th.OverdueThresholdDays)
	assert.Equal(t, 7, th.ApproachingDeadlineDays)
}

func TestLoad_InvalidDuration(t *testing.T) {
	t.Setenv("CYCLE_TIMEOUT", "soon")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "loading config")
}

func TestLoadWithPrefix(t *testing.T) {
	t.Setenv("PH_PROJECTS_FILE", "/etc/ph/projects.json")
	cfg, err := LoadWithPrefix("PH")
	require.NoError(t, err)
	assert.Equal(t, "/etc/ph/projects.json", cfg.ProjectsFile)
}

func TestConfig_EnabledFlags(t *testing.T) {
	cfg := &Config{}
	assert.False(t, cfg.SlackEnabled())
	assert.False(t, cfg.PersistenceEnabled())

	cfg.SlackBotToken = "xoxb-test"
	assert.False(t, cfg.SlackEnabled())
	cfg.SlackAlertChannel = "C123"
	assert.True(t, cfg.SlackEnabled())

	cfg.DBPath = "/tmp/ph.db"
	assert.True(t, cfg.PersistenceEnabled())
}

func TestConfig_CORSOrigins(t *testing.T) {
	cfg := &Config{MgmtCORSOrigins: "https://a.example, ,https://b.example"}
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSOrigins())
	assert.Nil(t, (&Config{}).CORSOrigins())
}

func TestConfig_Validate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			MgmtAuthMode:      AuthAPIKey,
			MgmtAPIKey:        "k",
			MonitorInterval:   time.Minute,
			CycleTimeout:      time.Second,
			HistoryLimit:      30,
			NotifyMinSeverity: "high",
		}
	}
	require.NoError(t, valid().Validate())

	tests := []struct {
		name   string
		mutate func(*Config)
		errStr string
	}{
		{"missing api key", func(c *Config) { c.MgmtAPIKey = "" }, "MGMT_API_KEY"},
		{"missing jwt secret", func(c *Config) { c.MgmtAuthMode = AuthJWT }, "MGMT_JWT_SECRET"},
		{"bad auth mode", func(c *Config) { c.MgmtAuthMode = "basic" }, "MGMT_AUTH_MODE"},
		{"zero interval", func(c *Config) { c.MonitorInterval = 0 }, "MONITOR_INTERVAL"},
		{"zero timeout", func(c *Config) { c.CycleTimeout = 0 }, "CYCLE_TIMEOUT"},
		{"zero history", func(c *Config) { c.HistoryLimit = 0 }, "HISTORY_LIMIT"},
		{"bad severity", func(c *Config) { c.NotifyMinSeverity = "urgent" }, "NOTIFY_MIN_SEVERITY"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errStr)
		})
	}

	none := valid()
	none.MgmtAuthMode = AuthNone
	none.MgmtAPIKey = ""
	assert.NoError(t, none.Validate())
}
