package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"

	"github.com/journeygrid/journeygrid/internal/app/config"
	"github.com/journeygrid/journeygrid/internal/util"
)

// SettingFile is the name of the settings file under the home directory
const SettingFile = "setting.yaml"

// Environment variables
const (
	EnvHome       = "JOURNEYGRID_HOME"
	EnvServerAddr = "JOURNEYGRID_SERVER_ADDR"
	EnvRedisURL   = "JOURNEYGRID_REDIS_URL"
	EnvJWTSecret  = "JOURNEYGRID_JWT_SECRET"
)

// RawSettings represents the structure of setting.yaml.
// Nil fields were absent from the file and receive defaults.
type RawSettings struct {
	DBPath       *string `yaml:"db_path"`
	ServerURL    *string `yaml:"server_url"`
	AuthToken    *string `yaml:"auth_token"`
	LogLevel     *string `yaml:"log_level"`
	LogFormat    *string `yaml:"log_format"`
	HistoryLimit *int    `yaml:"history_limit"`

	Autosave RawAutosave `yaml:"autosave"`
	Sync     RawSync     `yaml:"sync"`
	Backup   RawBackup   `yaml:"backup"`
	Server   RawServer   `yaml:"server"`
}

type RawAutosave struct {
	LocalDelayMS   *int `yaml:"local_delay_ms"`
	RemoteDelayMS  *int `yaml:"remote_delay_ms"`
	JournalDelayMS *int `yaml:"journal_delay_ms"`
}

type RawSync struct {
	IdleAfterSec      *int  `yaml:"idle_after_sec"`
	BreakerFailures   *int  `yaml:"breaker_failures"`
	BreakerTimeoutSec *int  `yaml:"breaker_timeout_sec"`
	AutoSync          *bool `yaml:"auto_sync"`
}

type RawBackup struct {
	Type     *string `yaml:"type"`
	BaseDir  *string `yaml:"base_dir"`
	S3Bucket *string `yaml:"s3_bucket"`
	S3Prefix *string `yaml:"s3_prefix"`
	S3Region *string `yaml:"s3_region"`
}

type RawServer struct {
	Addr          *string  `yaml:"addr"`
	RedisURL      *string  `yaml:"redis_url"`
	JWTSecret     *string  `yaml:"jwt_secret"`
	TokenTTLHours *int     `yaml:"token_ttl_hours"`
	CORSOrigins   []string `yaml:"cors_origins"`
}

// ResolveHome returns JOURNEYGRID_HOME, or ~/.journeygrid
func ResolveHome() string {
	if v := os.Getenv(EnvHome); v != "" {
		return v
	}
	if dir, err := os.UserHomeDir(); err == nil {
		return filepath.Join(dir, ".journeygrid")
	}
	return ".journeygrid"
}

// LoadSettings loads configuration from <home>/setting.yaml.
// Priority: environment > setting.yaml > defaults
func LoadSettings(fs afero.Fs, home string) (*config.AppConfig, error) {
	settings := &RawSettings{}
	configSource := "default"
	settingPath := ""

	path := filepath.Join(home, SettingFile)
	data, err := afero.ReadFile(fs, path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, settings); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", path, err)
		}
		configSource = "yaml"
		settingPath = path
	case !os.IsNotExist(err):
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	applyDefaults(settings, home)
	if applyEnv(settings) {
		configSource += "+env"
	}
	if err := check(settings); err != nil {
		return nil, fmt.Errorf("invalid %s: %w", path, err)
	}
	return buildAppConfig(settings, home, configSource, settingPath), nil
}

// SaveAuthToken writes token into setting.yaml, keeping every other key
func SaveAuthToken(fs afero.Fs, home, token string) error {
	path := filepath.Join(home, SettingFile)
	doc := map[string]interface{}{}
	if data, err := afero.ReadFile(fs, path); err == nil {
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return fmt.Errorf("failed to parse %s: %w", path, err)
		}
	}
	if doc == nil {
		doc = map[string]interface{}{}
	}
	doc["auth_token"] = token
	out, err := yaml.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}
	return util.WriteFileAtomic(fs, path, out, 0o600)
}

func applyDefaults(s *RawSettings, home string) {
	setString(&s.DBPath, filepath.Join(home, "journeygrid.db"))
	setString(&s.ServerURL, "")
	setString(&s.AuthToken, "")
	setString(&s.LogLevel, "warn")
	setString(&s.LogFormat, "console")
	setInt(&s.HistoryLimit, 100)

	setInt(&s.Autosave.LocalDelayMS, 1000)
	setInt(&s.Autosave.RemoteDelayMS, 5000)
	setInt(&s.Autosave.JournalDelayMS, 1000)

	setInt(&s.Sync.IdleAfterSec, 60)
	setInt(&s.Sync.BreakerFailures, 5)
	setInt(&s.Sync.BreakerTimeoutSec, 30)
	if s.Sync.AutoSync == nil {
		v := true
		s.Sync.AutoSync = &v
	}

	setString(&s.Backup.Type, "local")
	setString(&s.Backup.BaseDir, filepath.Join(home, "backups"))
	setString(&s.Backup.S3Bucket, "")
	setString(&s.Backup.S3Prefix, "journeygrid")
	setString(&s.Backup.S3Region, "")

	setString(&s.Server.Addr, ":8080")
	setString(&s.Server.RedisURL, "redis://localhost:6379/0")
	setString(&s.Server.JWTSecret, "")
	setInt(&s.Server.TokenTTLHours, 24*30)
	if s.Server.CORSOrigins == nil {
		s.Server.CORSOrigins = []string{"*"}
	}
}

// applyEnv applies server overrides and reports whether any was set
func applyEnv(s *RawSettings) bool {
	applied := false
	for env, dst := range map[string]**string{
		EnvServerAddr: &s.Server.Addr,
		EnvRedisURL:   &s.Server.RedisURL,
		EnvJWTSecret:  &s.Server.JWTSecret,
	} {
		if v, ok := os.LookupEnv(env); ok && v != "" {
			v := v
			*dst = &v
			applied = true
		}
	}
	return applied
}

func check(s *RawSettings) error {
	switch *s.Backup.Type {
	case "local", "s3", "mock":
	default:
		return fmt.Errorf("backup.type must be local, s3 or mock, got %q", *s.Backup.Type)
	}
	switch strings.ToLower(*s.LogFormat) {
	case "console", "json":
	default:
		return fmt.Errorf("log_format must be console or json, got %q", *s.LogFormat)
	}
	if *s.HistoryLimit <= 0 {
		return fmt.Errorf("history_limit must be positive, got %d", *s.HistoryLimit)
	}
	return nil
}

func buildAppConfig(s *RawSettings, home, configSource, settingPath string) *config.AppConfig {
	ms := func(v *int) time.Duration { return time.Duration(*v) * time.Millisecond }
	sec := func(v *int) time.Duration { return time.Duration(*v) * time.Second }
	return config.NewAppConfig(config.Values{
		Home:         home,
		DBPath:       *s.DBPath,
		ServerURL:    strings.TrimRight(*s.ServerURL, "/"),
		AuthToken:    *s.AuthToken,
		HistoryLimit: *s.HistoryLimit,
		LogLevel:     *s.LogLevel,
		LogFormat:    strings.ToLower(*s.LogFormat),

		LocalDelay:   ms(s.Autosave.LocalDelayMS),
		RemoteDelay:  ms(s.Autosave.RemoteDelayMS),
		JournalDelay: ms(s.Autosave.JournalDelayMS),

		IdleAfter:       sec(s.Sync.IdleAfterSec),
		BreakerFailures: *s.Sync.BreakerFailures,
		BreakerTimeout:  sec(s.Sync.BreakerTimeoutSec),
		AutoSync:        *s.Sync.AutoSync,

		BackupType:     *s.Backup.Type,
		BackupBaseDir:  *s.Backup.BaseDir,
		BackupS3Bucket: *s.Backup.S3Bucket,
		BackupS3Prefix: *s.Backup.S3Prefix,
		BackupS3Region: *s.Backup.S3Region,

		ServerAddr:  *s.Server.Addr,
		RedisURL:    *s.Server.RedisURL,
		JWTSecret:   *s.Server.JWTSecret,
		TokenTTL:    time.Duration(*s.Server.TokenTTLHours) * time.Hour,
		CORSOrigins: s.Server.CORSOrigins,

		ConfigSource: configSource,
		SettingPath:  settingPath,
	})
}

func setString(p **string, def string) {
	if *p == nil {
		*p = &def
	}
}

func setInt(p **int, def int) {
	if *p == nil {
		*p = &def
	}
}

// CreateDefaultSettings returns the content of a default setting.yaml
func CreateDefaultSettings(home string) []byte {
	settings := &RawSettings{}
	applyDefaults(settings, home)
	data, _ := yaml.Marshal(settings)
	return data
}
