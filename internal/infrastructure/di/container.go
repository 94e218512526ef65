package di

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/journeygrid/journeygrid/internal/adapter/controller/cli"
	"github.com/journeygrid/journeygrid/internal/adapter/presenter"
	appconfig "github.com/journeygrid/journeygrid/internal/app/config"
	"github.com/journeygrid/journeygrid/internal/application/port/output"
	infraconfig "github.com/journeygrid/journeygrid/internal/infra/config"
	"github.com/journeygrid/journeygrid/internal/infrastructure/logging"
	"github.com/journeygrid/journeygrid/internal/infrastructure/observability"
)

// metricsNamespace prefixes every exported metric
const metricsNamespace = "journeygrid"

// Container is the composition root. It holds what every command shares and
// opens the per-command local session on demand.
type Container struct {
	config  Config
	fs      afero.Fs
	home    string
	cfg     appconfig.Config
	logger  *zap.Logger
	metrics *observability.Collector
}

// Config holds configuration for the container
type Config struct {
	Home         string   // Data directory; default JOURNEYGRID_HOME or ~/.journeygrid
	Fs           afero.Fs // Filesystem for settings and local backups; default the OS filesystem
	OutputWriter io.Writer
	Version      string
	BuildInfo    string
}

// NewContainer loads the settings and builds the shared infrastructure
func NewContainer(config Config) (*Container, error) {
	c := &Container{config: config, fs: config.Fs, home: config.Home}
	if c.config.OutputWriter == nil {
		c.config.OutputWriter = os.Stdout
	}
	if c.fs == nil {
		c.fs = afero.NewOsFs()
	}
	if c.home == "" {
		c.home = infraconfig.ResolveHome()
	}

	cfg, err := infraconfig.LoadSettings(c.fs, c.home)
	if err != nil {
		return nil, fmt.Errorf("failed to load settings: %w", err)
	}
	c.cfg = cfg

	logger, err := logging.New(cfg.LogLevel(), cfg.LogFormat())
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}
	c.logger = logger.With(zap.String("config_source", cfg.ConfigSource()))
	c.metrics = observability.NewCollector(metricsNamespace)

	return c, nil
}

// Presenter returns the presenter for an --output value
func (c *Container) Presenter(format string) output.Presenter {
	if format == "json" {
		return presenter.NewJSONPresenter(c.config.OutputWriter)
	}
	return presenter.NewCLIPresenter(c.config.OutputWriter)
}

// GetRootCommand builds the root Cobra command
func (c *Container) GetRootCommand() *cobra.Command {
	return cli.NewRootBuilder(
		c.OpenApp,
		c.Serve,
		c.Presenter,
		c.config.OutputWriter,
		c.config.Version,
		c.config.BuildInfo,
	).Build()
}

// GetConfig returns the loaded settings
func (c *Container) GetConfig() appconfig.Config {
	return c.cfg
}

// GetLogger returns the shared logger
func (c *Container) GetLogger() *zap.Logger {
	return c.logger
}

// Close flushes the logger
func (c *Container) Close() error {
	_ = c.logger.Sync()
	return nil
}
