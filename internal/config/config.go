// Package config loads ~/.schoolday/config.toml with SD_ environment
// overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/spf13/viper"
)

const (
	Dir       = ".schoolday"
	envPrefix = "SD"

	KeyProfilesPath        = "profiles.path"
	KeySecretsPath         = "secrets.path"
	KeySnapshotBackend     = "snapshot.backend"
	KeySnapshotPath        = "snapshot.path"
	KeyDedupWindow         = "sync.dedup_window"
	KeyTTLAppointments     = "sync.ttl.appointments"
	KeyTTLHomework         = "sync.ttl.homework"
	KeyTTLGrades           = "sync.ttl.grades"
	KeyTTLMessages         = "sync.ttl.messages"
	KeyPaginationRequests  = "pagination.max_requests"
	KeyPaginationPageSize  = "pagination.page_size"
	KeyAPITimeout          = "api.timeout"
	KeyAPIBreakerFailures  = "api.breaker.failures"
	KeyAPIBreakerCooldown  = "api.breaker.cooldown"
	KeyLogLevel            = "log.level"
	KeyLogFormat           = "log.format"
	KeyTimezone            = "timezone"
	BackendTOML            = "toml"
	BackendSQLite          = "sqlite"
	defaultSnapshotTOML    = "snapshot.toml"
	defaultSnapshotSQLite  = "snapshot.db"
	defaultTimezone        = "Europe/Amsterdam"
	defaultBreakerFailures = 5
)

type Config struct {
	ProfilesPath    string
	SecretsPath     string
	SnapshotBackend string
	SnapshotPath    string
	Sync            Sync
	PageSize        int
	MaxRequests     int
	APITimeout      time.Duration
	BreakerFailures uint32
	BreakerCooldown time.Duration
	LogLevel        string
	LogFormat       string
	Location        *time.Location
}

type Sync struct {
	DedupWindow  time.Duration
	Appointments time.Duration
	Homework     time.Duration
	Grades       time.Duration
	Messages     time.Duration
}

// New returns a viper instance with every default set, the config file
// read when present and SD_* environment overrides enabled.
func New(homeDir string) (*viper.Viper, error) {
	v := viper.New()
	base := filepath.Join(homeDir, Dir)

	v.SetDefault(KeyProfilesPath, filepath.Join(base, "profiles.toml"))
	v.SetDefault(KeySecretsPath, filepath.Join(base, "secrets"))
	v.SetDefault(KeySnapshotBackend, BackendTOML)
	v.SetDefault(KeyDedupWindow, 15*time.Second)
	v.SetDefault(KeyTTLAppointments, 3*time.Minute)
	v.SetDefault(KeyTTLHomework, 5*time.Minute)
	v.SetDefault(KeyTTLGrades, 15*time.Minute)
	v.SetDefault(KeyTTLMessages, 3*time.Minute)
	v.SetDefault(KeyPaginationRequests, 5)
	v.SetDefault(KeyPaginationPageSize, 100)
	v.SetDefault(KeyAPITimeout, 30*time.Second)
	v.SetDefault(KeyAPIBreakerFailures, defaultBreakerFailures)
	v.SetDefault(KeyAPIBreakerCooldown, 30*time.Second)
	v.SetDefault(KeyLogLevel, "warn")
	v.SetDefault(KeyLogFormat, "console")
	v.SetDefault(KeyTimezone, defaultTimezone)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(base)
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	// The snapshot path default depends on the backend, which may itself
	// come from the file or the environment.
	if v.GetString(KeySnapshotPath) == "" {
		file := defaultSnapshotTOML
		if v.GetString(KeySnapshotBackend) == BackendSQLite {
			file = defaultSnapshotSQLite
		}
		v.Set(KeySnapshotPath, filepath.Join(base, file))
	}

	return v, nil
}

// Load reads and validates the typed configuration from v.
func Load(v *viper.Viper) (Config, error) {
	cfg := Config{
		ProfilesPath:    v.GetString(KeyProfilesPath),
		SecretsPath:     v.GetString(KeySecretsPath),
		SnapshotBackend: strings.ToLower(strings.TrimSpace(v.GetString(KeySnapshotBackend))),
		SnapshotPath:    v.GetString(KeySnapshotPath),
		Sync: Sync{
			DedupWindow:  v.GetDuration(KeyDedupWindow),
			Appointments: v.GetDuration(KeyTTLAppointments),
			Homework:     v.GetDuration(KeyTTLHomework),
			Grades:       v.GetDuration(KeyTTLGrades),
			Messages:     v.GetDuration(KeyTTLMessages),
		},
		PageSize:        v.GetInt(KeyPaginationPageSize),
		MaxRequests:     v.GetInt(KeyPaginationRequests),
		APITimeout:      v.GetDuration(KeyAPITimeout),
		BreakerFailures: v.GetUint32(KeyAPIBreakerFailures),
		BreakerCooldown: v.GetDuration(KeyAPIBreakerCooldown),
		LogLevel:        v.GetString(KeyLogLevel),
		LogFormat:       v.GetString(KeyLogFormat),
	}

	switch cfg.SnapshotBackend {
	case BackendTOML, BackendSQLite:
	default:
		return Config{}, fmt.Errorf("unsupported snapshot backend %q", cfg.SnapshotBackend)
	}

	for key, value := range map[string]time.Duration{
		KeyDedupWindow:     cfg.Sync.DedupWindow,
		KeyTTLAppointments: cfg.Sync.Appointments,
		KeyTTLHomework:     cfg.Sync.Homework,
		KeyTTLGrades:       cfg.Sync.Grades,
		KeyTTLMessages:     cfg.Sync.Messages,
	} {
		if value <= 0 {
			return Config{}, fmt.Errorf("%s must be positive, got %s", key, value)
		}
	}
	if cfg.PageSize <= 0 || cfg.MaxRequests <= 0 {
		return Config{}, fmt.Errorf("pagination settings must be positive, got page_size=%d max_requests=%d", cfg.PageSize, cfg.MaxRequests)
	}

	loc, err := time.LoadLocation(v.GetString(KeyTimezone))
	if err != nil {
		return Config{}, fmt.Errorf("load timezone: %w", err)
	}
	cfg.Location = loc

	return cfg, nil
}

// HomeDir resolves the user's home directory.
func HomeDir() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}
	return homeDir, nil
}
