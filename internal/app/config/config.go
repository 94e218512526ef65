package config

import "time"

// Config provides read-only access to application configuration.
// The app layer reads settings through it without knowing where they came from.
type Config interface {
	// Core settings
	Home() string       // Base directory (JOURNEYGRID_HOME)
	DBPath() string     // Local SQLite database file
	ServerURL() string  // Sync server base URL; empty means offline-only
	AuthToken() string  // Bearer token for the sync server
	HistoryLimit() int  // Undo stack depth

	// Logging
	LogLevel() string
	LogFormat() string

	// Autosave
	LocalDelay() time.Duration   // Debounce before writing a journey locally
	RemoteDelay() time.Duration  // Debounce before pushing a journey
	JournalDelay() time.Duration // Debounce before writing a journal locally

	// Sync
	IdleAfter() time.Duration      // Time before a terminal sync status reverts to idle
	BreakerFailures() int          // Consecutive transport failures that open the breaker
	BreakerTimeout() time.Duration // Time the breaker stays open
	AutoSync() bool                // Force-sync after each CLI command

	// Snapshot backups
	BackupType() string // "local", "s3" or "mock"
	BackupBaseDir() string
	BackupS3Bucket() string
	BackupS3Prefix() string
	BackupS3Region() string

	// Reference server
	ServerAddr() string
	RedisURL() string
	JWTSecret() string
	TokenTTL() time.Duration
	CORSOrigins() []string

	// Metadata
	ConfigSource() string // "yaml" or "default"; "+env" is appended when overrides applied
	SettingPath() string  // Path to setting.yaml if loaded from file
}

// Values is the flat set of resolved settings an AppConfig is built from
type Values struct {
	Home         string
	DBPath       string
	ServerURL    string
	AuthToken    string
	HistoryLimit int
	LogLevel     string
	LogFormat    string

	LocalDelay   time.Duration
	RemoteDelay  time.Duration
	JournalDelay time.Duration

	IdleAfter       time.Duration
	BreakerFailures int
	BreakerTimeout  time.Duration
	AutoSync        bool

	BackupType     string
	BackupBaseDir  string
	BackupS3Bucket string
	BackupS3Prefix string
	BackupS3Region string

	ServerAddr  string
	RedisURL    string
	JWTSecret   string
	TokenTTL    time.Duration
	CORSOrigins []string

	ConfigSource string
	SettingPath  string
}

// AppConfig is the concrete implementation of Config
type AppConfig struct {
	v Values
}

// NewAppConfig creates an AppConfig from resolved values.
// The infrastructure layer calls it after merging file, defaults and environment.
func NewAppConfig(v Values) *AppConfig {
	v.CORSOrigins = append([]string(nil), v.CORSOrigins...)
	return &AppConfig{v: v}
}

func (c *AppConfig) Home() string      { return c.v.Home }
func (c *AppConfig) DBPath() string    { return c.v.DBPath }
func (c *AppConfig) ServerURL() string { return c.v.ServerURL }
func (c *AppConfig) AuthToken() string { return c.v.AuthToken }
func (c *AppConfig) HistoryLimit() int { return c.v.HistoryLimit }
func (c *AppConfig) LogLevel() string  { return c.v.LogLevel }
func (c *AppConfig) LogFormat() string { return c.v.LogFormat }

func (c *AppConfig) LocalDelay() time.Duration   { return c.v.LocalDelay }
func (c *AppConfig) RemoteDelay() time.Duration  { return c.v.RemoteDelay }
func (c *AppConfig) JournalDelay() time.Duration { return c.v.JournalDelay }

func (c *AppConfig) IdleAfter() time.Duration      { return c.v.IdleAfter }
func (c *AppConfig) BreakerFailures() int          { return c.v.BreakerFailures }
func (c *AppConfig) BreakerTimeout() time.Duration { return c.v.BreakerTimeout }
func (c *AppConfig) AutoSync() bool                { return c.v.AutoSync }

func (c *AppConfig) BackupType() string     { return c.v.BackupType }
func (c *AppConfig) BackupBaseDir() string  { return c.v.BackupBaseDir }
func (c *AppConfig) BackupS3Bucket() string { return c.v.BackupS3Bucket }
func (c *AppConfig) BackupS3Prefix() string { return c.v.BackupS3Prefix }
func (c *AppConfig) BackupS3Region() string { return c.v.BackupS3Region }

func (c *AppConfig) ServerAddr() string      { return c.v.ServerAddr }
func (c *AppConfig) RedisURL() string        { return c.v.RedisURL }
func (c *AppConfig) JWTSecret() string       { return c.v.JWTSecret }
func (c *AppConfig) TokenTTL() time.Duration { return c.v.TokenTTL }

// CORSOrigins returns a copy of the allowed origins
func (c *AppConfig) CORSOrigins() []string {
	return append([]string(nil), c.v.CORSOrigins...)
}

// ConfigSource returns where the configuration came from
func (c *AppConfig) ConfigSource() string { return c.v.ConfigSource }

// SettingPath returns the path to setting.yaml if loaded from file
func (c *AppConfig) SettingPath() string { return c.v.SettingPath }

// WithAuthToken returns a copy carrying a different token
func (c *AppConfig) WithAuthToken(token string) *AppConfig {
	v := c.v
	v.AuthToken = token
	return NewAppConfig(v)
}
