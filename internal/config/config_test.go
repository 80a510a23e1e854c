package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AlteproSolutions/tsk-arista-wifi-psk-rotator/internal/domain/model"
)

// allConfigKeys lists every key Load and Source read.
var allConfigKeys = []string{
	KeyBaseURL, KeyLocationID, KeyNodeID, KeyNetworkName, KeyVerifyTLS,
	KeySessionVersion, KeyDeviceConfigVersion, KeyNameFields, KeyPassphrasePath,
	KeyRotationHour, KeyRotationMinute, KeyRotationTimezone, KeyTestInterval,
	KeyBackendPort, KeyListenAddr, KeyLogLevel, KeyLogFile, KeyDataDir, KeyDBPath,
	KeySecretKey, KeyAgeFile, KeyAgeIdentityFile, KeyStatusNotice, KeyAdminToken,
}

// isolateConfigEnv saves and unsets all PSKROTATOR_ env vars so tests don't
// inherit values from the host environment.
// t.Cleanup restores original values after the test.
func isolateConfigEnv(t *testing.T) {
	t.Helper()
	for _, key := range allConfigKeys {
		key = EnvPrefix + "_" + key
		if orig, ok := os.LookupEnv(key); ok {
			t.Cleanup(func() { os.Setenv(key, orig) })
		} else {
			t.Cleanup(func() { os.Unsetenv(key) })
		}
		os.Unsetenv(key)
	}
}

func writeConfig(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

const fullConfig = `{
  "WM_BASE_URL": "https://wifi.example.com/",
  "WM_LOCATION_ID": 12,
  "WM_NODE_ID": "0",
  "SSID_PROFILE_NAME": "Guest",
  "VERIFY_SSL": false,
  "WM_SESSION_VERSION": "latest",
  "WM_DEVICECONFIG_VERSION": "17",
  "BACKEND_PORT": 9090,
  "ROTATION_HOUR": 3,
  "ROTATION_MINUTE": 15,
  "LOG_LEVEL": "debug",
  "LOG_FILE": "rotate.log",
  "DATA_DIR": "/var/lib/pskrotator",
  "ADMIN_TOKEN": "s3cret"
}`

func TestLoad_Success(t *testing.T) {
	isolateConfigEnv(t)
	path := writeConfig(t, "config.json", fullConfig)

	cfg, err := Load(path)

	require.NoError(t, err)
	assert.NoError(t, cfg.FileErr)
	assert.NoError(t, cfg.ScheduleErr)
	assert.Equal(t, "127.0.0.1:9090", cfg.ListenAddr)
	assert.Equal(t, "/var/lib/pskrotator", cfg.DataDir)
	assert.Equal(t, "pskrotator.db", cfg.DBPath)
	assert.Equal(t, slog.LevelDebug, cfg.LogLevel)
	assert.Equal(t, "rotate.log", cfg.LogFile)
	assert.Equal(t, "s3cret", cfg.AdminToken)
	assert.Equal(t, model.ScheduleDaily, cfg.Schedule.Kind)
	assert.Equal(t, 3, cfg.Schedule.Hour)
	assert.Equal(t, 15, cfg.Schedule.Minute)
}

func TestLoad_Defaults(t *testing.T) {
	isolateConfigEnv(t)
	path := writeConfig(t, "config.json", `{}`)

	cfg, err := Load(path)

	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:8081", cfg.ListenAddr)
	assert.Equal(t, "data", cfg.DataDir)
	assert.Equal(t, slog.LevelInfo, cfg.LogLevel)
	assert.Equal(t, model.DefaultSchedule(), cfg.Schedule)
	assert.Empty(t, cfg.AdminToken)
}

func TestLoad_EnvOverrides(t *testing.T) {
	isolateConfigEnv(t)
	path := writeConfig(t, "config.json", fullConfig)
	t.Setenv("PSKROTATOR_LISTEN_ADDR", "0.0.0.0:8443")
	t.Setenv("PSKROTATOR_TEST_ROTATION_EVERY_MINUTES", "5")
	t.Setenv("PSKROTATOR_SECRET_KEY", "from-env")

	cfg, err := Load(path)

	require.NoError(t, err)
	assert.Equal(t, "0.0.0.0:8443", cfg.ListenAddr)
	assert.Equal(t, "from-env", cfg.SecretKey)
	assert.Equal(t, model.ScheduleInterval, cfg.Schedule.Kind)
	assert.Equal(t, 5*time.Minute, cfg.Schedule.Interval)
}

func TestLoad_YAML(t *testing.T) {
	isolateConfigEnv(t)
	path := writeConfig(t, "config.yaml", "ROTATION_HOUR: 4\nROTATION_TIMEZONE: Europe/Prague\n")

	cfg, err := Load(path)

	require.NoError(t, err)
	assert.Equal(t, 4, cfg.Schedule.Hour)
	require.NotNil(t, cfg.Schedule.Location)
	assert.Equal(t, "Europe/Prague", cfg.Schedule.Location.String())
}

func TestLoad_MissingFileFallsBack(t *testing.T) {
	isolateConfigEnv(t)

	cfg, err := Load(filepath.Join(t.TempDir(), "config.json"))

	require.NoError(t, err)
	assert.True(t, cfg.FileMissing())
	assert.Error(t, cfg.ScheduleErr)
	assert.Equal(t, model.DefaultSchedule(), cfg.Schedule)
}

func TestLoad_UnparseableFileFallsBack(t *testing.T) {
	isolateConfigEnv(t)
	path := writeConfig(t, "config.json", `{"ROTATION_HOUR": 5,`)

	cfg, err := Load(path)

	require.NoError(t, err)
	assert.Error(t, cfg.FileErr)
	assert.False(t, cfg.FileMissing())
	assert.Equal(t, model.DefaultSchedule(), cfg.Schedule)
}

func TestLoad_InvalidScheduleFallsBack(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"hour out of range", `{"ROTATION_HOUR": 25}`},
		{"hour not a number", `{"ROTATION_HOUR": "two"}`},
		{"unknown timezone", `{"ROTATION_TIMEZONE": "Mars/Olympus"}`},
		{"interval not a number", `{"TEST_ROTATION_EVERY_MINUTES": "soon"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			isolateConfigEnv(t)
			cfg, err := Load(writeConfig(t, "config.json", tt.body))

			require.NoError(t, err)
			assert.Error(t, cfg.ScheduleErr)
			assert.Equal(t, model.DefaultSchedule(), cfg.Schedule)
		})
	}
}

func TestLoad_InvalidListenAddr(t *testing.T) {
	isolateConfigEnv(t)

	_, err := Load(writeConfig(t, "config.json", `{"LISTEN_ADDR": "no-port"}`))
	assert.Error(t, err)

	_, err = Load(writeConfig(t, "config.json", `{"BACKEND_PORT": 70000}`))
	assert.Error(t, err)
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		name string
		want slog.Level
	}{
		{"DEBUG", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"WARNING", slog.LevelWarn},
		{"warn", slog.LevelWarn},
		{"ERROR", slog.LevelError},
		{"CRITICAL", slog.LevelError},
		{"", slog.LevelInfo},
		{"verbose", slog.LevelInfo},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseLevel(tt.name))
		})
	}
}
