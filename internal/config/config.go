// Package config loads the rotator configuration from a JSON or YAML file
// with PSKROTATOR_-prefixed environment variable overrides.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata" // ROTATION_TIMEZONE must resolve in minimal images.

	"github.com/spf13/cast"
	"github.com/spf13/viper"

	"github.com/AlteproSolutions/tsk-arista-wifi-psk-rotator/internal/domain/model"
)

// EnvPrefix prefixes every environment override, e.g. PSKROTATOR_WM_BASE_URL.
const EnvPrefix = "PSKROTATOR"

// Configuration keys. Every key may also be set as EnvPrefix + "_" + key.
const (
	KeyBaseURL             = "WM_BASE_URL"
	KeyLocationID          = "WM_LOCATION_ID"
	KeyNodeID              = "WM_NODE_ID"
	KeyNetworkName         = "SSID_PROFILE_NAME"
	KeyVerifyTLS           = "VERIFY_SSL"
	KeySessionVersion      = "WM_SESSION_VERSION"
	KeyDeviceConfigVersion = "WM_DEVICECONFIG_VERSION"
	KeyNameFields          = "PROFILE_NAME_FIELDS"
	KeyPassphrasePath      = "PSK_FIELD_PATH"

	KeyRotationHour     = "ROTATION_HOUR"
	KeyRotationMinute   = "ROTATION_MINUTE"
	KeyRotationTimezone = "ROTATION_TIMEZONE"
	KeyTestInterval     = "TEST_ROTATION_EVERY_MINUTES"

	KeyBackendPort     = "BACKEND_PORT"
	KeyListenAddr      = "LISTEN_ADDR"
	KeyLogLevel        = "LOG_LEVEL"
	KeyLogFile         = "LOG_FILE"
	KeyDataDir         = "DATA_DIR"
	KeyDBPath          = "DB_PATH"
	KeySecretKey       = "SECRET_KEY"
	KeyAgeFile         = "CREDENTIALS_AGE_FILE"
	KeyAgeIdentityFile = "AGE_IDENTITY_FILE"
	KeyStatusNotice    = "STATUS_NOTICE"
	KeyAdminToken      = "ADMIN_TOKEN"
)

// Config holds the process-level settings read once at startup. Controller
// settings are resolved per rotation by Source.
type Config struct {
	ListenAddr      string
	DataDir         string
	DBPath          string
	LogLevel        slog.Level
	LogFile         string
	SecretKey       string
	AgeFile         string
	AgeIdentityFile string
	StatusNotice    string
	AdminToken      string

	Schedule model.ScheduleSpec
	// ScheduleErr is set when the schedule could not be read and Schedule
	// holds model.DefaultSchedule instead.
	ScheduleErr error
	// FileErr is set when the config file could not be read or parsed;
	// defaults and environment overrides still apply.
	FileErr error
}

func newViper(path string) *viper.Viper {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()

	v.SetDefault(KeyBackendPort, 8081)
	v.SetDefault(KeyLogLevel, "INFO")
	v.SetDefault(KeyDataDir, "data")
	v.SetDefault(KeyDBPath, "pskrotator.db")
	v.SetDefault(KeyRotationHour, 2)
	v.SetDefault(KeyRotationMinute, 0)
	v.SetDefault(KeyTestInterval, 0)
	v.SetDefault(KeyVerifyTLS, true)
	v.SetDefault(KeySessionVersion, "latest")
	v.SetDefault(KeyDeviceConfigVersion, "17")
	return v
}

// read loads path into a fresh viper instance. A missing file is reported
// as an error wrapping fs.ErrNotExist; v is usable either way.
func read(path string) (*viper.Viper, error) {
	v := newViper(path)
	if err := v.ReadInConfig(); err != nil {
		return v, fmt.Errorf("read config %s: %w", path, err)
	}
	return v, nil
}

// Load reads process-level settings. It fails only on values that are
// present but unusable; an unreadable file is recorded in FileErr and the
// schedule falls back to daily 02:00.
func Load(path string) (*Config, error) {
	v, fileErr := read(path)

	listenAddr, err := listenAddr(v)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		ListenAddr:      listenAddr,
		DataDir:         v.GetString(KeyDataDir),
		DBPath:          v.GetString(KeyDBPath),
		LogLevel:        ParseLevel(v.GetString(KeyLogLevel)),
		LogFile:         v.GetString(KeyLogFile),
		SecretKey:       v.GetString(KeySecretKey),
		AgeFile:         v.GetString(KeyAgeFile),
		AgeIdentityFile: v.GetString(KeyAgeIdentityFile),
		StatusNotice:    v.GetString(KeyStatusNotice),
		AdminToken:      v.GetString(KeyAdminToken),
		FileErr:         fileErr,
	}
	if cfg.DataDir == "" {
		return nil, fmt.Errorf("%s must not be empty", KeyDataDir)
	}

	if fileErr != nil {
		cfg.Schedule, cfg.ScheduleErr = model.DefaultSchedule(), fileErr
	} else if spec, err := schedule(v); err != nil {
		cfg.Schedule, cfg.ScheduleErr = model.DefaultSchedule(), err
	} else {
		cfg.Schedule = spec
	}

	return cfg, nil
}

// FileMissing reports whether FileErr is caused by an absent config file.
func (c *Config) FileMissing() bool {
	return errors.Is(c.FileErr, fs.ErrNotExist)
}

func listenAddr(v *viper.Viper) (string, error) {
	if addr := v.GetString(KeyListenAddr); addr != "" {
		if _, _, err := net.SplitHostPort(addr); err != nil {
			return "", fmt.Errorf("%s has invalid address %q: %w", KeyListenAddr, addr, err)
		}
		return addr, nil
	}

	port, err := toInt64(v.Get(KeyBackendPort))
	if err != nil || port < 1 || port > 65535 {
		return "", fmt.Errorf("%s must be a port number, got %v", KeyBackendPort, v.Get(KeyBackendPort))
	}
	return net.JoinHostPort("127.0.0.1", strconv.FormatInt(port, 10)), nil
}

// schedule resolves the rotation timing: a positive test interval wins over
// the daily time.
func schedule(v *viper.Viper) (model.ScheduleSpec, error) {
	minutes, err := toInt64(v.Get(KeyTestInterval))
	if err != nil {
		return model.ScheduleSpec{}, fmt.Errorf("%s: %w", KeyTestInterval, err)
	}
	if minutes > 0 {
		return model.IntervalSchedule(time.Duration(minutes) * time.Minute)
	}

	hour, err := toInt64(v.Get(KeyRotationHour))
	if err != nil {
		return model.ScheduleSpec{}, fmt.Errorf("%s: %w", KeyRotationHour, err)
	}
	minute, err := toInt64(v.Get(KeyRotationMinute))
	if err != nil {
		return model.ScheduleSpec{}, fmt.Errorf("%s: %w", KeyRotationMinute, err)
	}

	var loc *time.Location
	if tz := v.GetString(KeyRotationTimezone); tz != "" {
		loc, err = time.LoadLocation(tz)
		if err != nil {
			return model.ScheduleSpec{}, fmt.Errorf("%s: %w", KeyRotationTimezone, err)
		}
	}
	return model.DailySchedule(int(hour), int(minute), loc)
}

// ParseLevel maps a LOG_LEVEL name to a slog level. Unknown names yield Info.
func ParseLevel(name string) slog.Level {
	switch strings.ToUpper(strings.TrimSpace(name)) {
	case "DEBUG":
		return slog.LevelDebug
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR", "CRITICAL":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// toInt64 accepts JSON numbers and decimal strings.
func toInt64(raw any) (int64, error) {
	if s, ok := raw.(string); ok {
		return strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	}
	return cast.ToInt64E(raw)
}

// toStringList accepts a list or a comma/dot separated string.
func toStringList(raw any, sep string) ([]string, error) {
	var items []string
	if s, ok := raw.(string); ok {
		items = strings.Split(s, sep)
	} else {
		list, err := cast.ToStringSliceE(raw)
		if err != nil {
			return nil, err
		}
		items = list
	}

	out := make([]string, 0, len(items))
	for _, item := range items {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out, nil
}
