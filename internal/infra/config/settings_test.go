package config

import (
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func clearEnv(t *testing.T) {
	for _, k := range []string{EnvServerAddr, EnvRedisURL, EnvJWTSecret} {
		t.Setenv(k, "")
	}
}

func TestLoadSettings(t *testing.T) {
	tests := []struct {
		name       string
		file       string
		envVars    map[string]string
		wantDB     string
		wantLocal  time.Duration
		wantRemote time.Duration
		wantAuto   bool
		wantAddr   string
		wantSource string
	}{
		{
			name:       "Default values only",
			wantDB:     "/home/u/.journeygrid/journeygrid.db",
			wantLocal:  time.Second,
			wantRemote: 5 * time.Second,
			wantAuto:   true,
			wantAddr:   ":8080",
			wantSource: "default",
		},
		{
			name: "YAML file only",
			file: `
db_path: /data/jg.db
autosave:
  local_delay_ms: 250
  remote_delay_ms: 2000
sync:
  auto_sync: false
server:
  addr: ":9000"
`,
			wantDB:     "/data/jg.db",
			wantLocal:  250 * time.Millisecond,
			wantRemote: 2 * time.Second,
			wantAuto:   false,
			wantAddr:   ":9000",
			wantSource: "yaml",
		},
		{
			name:       "YAML with ENV override",
			file:       "server:\n  addr: \":9000\"\n",
			envVars:    map[string]string{EnvServerAddr: ":7000"},
			wantDB:     "/home/u/.journeygrid/journeygrid.db",
			wantLocal:  time.Second,
			wantRemote: 5 * time.Second,
			wantAuto:   true,
			wantAddr:   ":7000",
			wantSource: "yaml+env",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range tt.envVars {
				t.Setenv(k, v)
			}
			fs := afero.NewMemMapFs()
			home := "/home/u/.journeygrid"
			if tt.file != "" {
				require.NoError(t, afero.WriteFile(fs, home+"/"+SettingFile, []byte(tt.file), 0o644))
			}

			cfg, err := LoadSettings(fs, home)
			require.NoError(t, err)

			assert.Equal(t, home, cfg.Home())
			assert.Equal(t, tt.wantDB, cfg.DBPath())
			assert.Equal(t, tt.wantLocal, cfg.LocalDelay())
			assert.Equal(t, tt.wantRemote, cfg.RemoteDelay())
			assert.Equal(t, tt.wantAuto, cfg.AutoSync())
			assert.Equal(t, tt.wantAddr, cfg.ServerAddr())
			assert.Equal(t, tt.wantSource, cfg.ConfigSource())
		})
	}
}

func TestLoadSettings_Defaults(t *testing.T) {
	clearEnv(t)
	cfg, err := LoadSettings(afero.NewMemMapFs(), "/h")
	require.NoError(t, err)

	assert.Equal(t, "", cfg.ServerURL())
	assert.Equal(t, 100, cfg.HistoryLimit())
	assert.Equal(t, "warn", cfg.LogLevel())
	assert.Equal(t, "console", cfg.LogFormat())
	assert.Equal(t, time.Second, cfg.JournalDelay())
	assert.Equal(t, time.Minute, cfg.IdleAfter())
	assert.Equal(t, 5, cfg.BreakerFailures())
	assert.Equal(t, 30*time.Second, cfg.BreakerTimeout())
	assert.Equal(t, "local", cfg.BackupType())
	assert.Equal(t, "/h/backups", cfg.BackupBaseDir())
	assert.Equal(t, 720*time.Hour, cfg.TokenTTL())
	assert.Equal(t, []string{"*"}, cfg.CORSOrigins())
	assert.Empty(t, cfg.SettingPath())
}

func TestLoadSettings_TrimsServerURL(t *testing.T) {
	clearEnv(t)
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/h/setting.yaml", []byte("server_url: http://sync.example.com/\n"), 0o644))

	cfg, err := LoadSettings(fs, "/h")
	require.NoError(t, err)
	assert.Equal(t, "http://sync.example.com", cfg.ServerURL())
	assert.Equal(t, "/h/setting.yaml", cfg.SettingPath())
}

func TestLoadSettings_Invalid(t *testing.T) {
	tests := []struct {
		name string
		file string
	}{
		{"Malformed YAML", "db_path: [unclosed"},
		{"Unknown backup type", "backup:\n  type: ftp\n"},
		{"Unknown log format", "log_format: xml\n"},
		{"Non-positive history", "history_limit: 0\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			fs := afero.NewMemMapFs()
			require.NoError(t, afero.WriteFile(fs, "/h/setting.yaml", []byte(tt.file), 0o644))
			_, err := LoadSettings(fs, "/h")
			assert.Error(t, err)
		})
	}
}

func TestResolveHome(t *testing.T) {
	t.Setenv(EnvHome, "/custom/home")
	assert.Equal(t, "/custom/home", ResolveHome())
}

func TestSaveAuthToken_KeepsOtherKeys(t *testing.T) {
	clearEnv(t)
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/h/setting.yaml", []byte("server_url: http://sync\nhistory_limit: 7\n"), 0o644))

	require.NoError(t, SaveAuthToken(fs, "/h", "tok-1"))

	cfg, err := LoadSettings(fs, "/h")
	require.NoError(t, err)
	assert.Equal(t, "tok-1", cfg.AuthToken())
	assert.Equal(t, "http://sync", cfg.ServerURL())
	assert.Equal(t, 7, cfg.HistoryLimit())
}

func TestSaveAuthToken_CreatesFile(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, SaveAuthToken(fs, "/new", "tok"))

	data, err := afero.ReadFile(fs, "/new/setting.yaml")
	require.NoError(t, err)
	var doc map[string]string
	require.NoError(t, yaml.Unmarshal(data, &doc))
	assert.Equal(t, "tok", doc["auth_token"])
}

func TestCreateDefaultSettings(t *testing.T) {
	clearEnv(t)
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/h/setting.yaml", CreateDefaultSettings("/h"), 0o644))

	cfg, err := LoadSettings(fs, "/h")
	require.NoError(t, err)
	assert.Equal(t, "yaml", cfg.ConfigSource())
	assert.Equal(t, "/h/journeygrid.db", cfg.DBPath())
	assert.True(t, cfg.AutoSync())
}
