// Package cli implements the kitbash command-line interface.
//
// kitbash works on project files (kitbash.toml): a canvas plus a stack of
// image layers with their transforms. Commands edit the project, render
// previews, export per-layer PNG artifacts and serve the project over HTTP.
//
// # Commands
//
//   - init, add, remove, layers, set, reorder: edit a project
//   - preview: render what the editor shows to a PNG
//   - export: write layer PNGs plus data.json as a ZIP or a directory
//   - import-meta: apply an exported data.json back onto a project
//   - serve: HTTP preview/export service
//   - cache, config, completion: housekeeping
//
// # Logging
//
// All commands support --verbose (-v) for debug-level logging, which also
// reports export and cache events through the observability hooks.
package cli

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/matzehuels/kitbash/pkg/buildinfo"
	"github.com/matzehuels/kitbash/pkg/cache"
	"github.com/matzehuels/kitbash/pkg/config"
	"github.com/matzehuels/kitbash/pkg/export"
	"github.com/matzehuels/kitbash/pkg/observability"
	"github.com/matzehuels/kitbash/pkg/project"
)

// Log levels exported for use in main.go.
const (
	LogDebug = log.DebugLevel
	LogInfo  = log.InfoLevel
)

// CLI holds shared state for all commands.
type CLI struct {
	Logger *log.Logger

	configPath  string
	projectPath string
	verbose     bool
	cfg         config.Config
}

// New creates a new CLI instance with a default logger.
func New(w io.Writer, level log.Level) *CLI {
	return &CLI{
		Logger: newLogger(w, level),
		cfg:    config.Default(),
	}
}

// SetLogLevel updates the logger's level. At debug level export, cache and
// HTTP events are logged as well.
func (c *CLI) SetLogLevel(level log.Level) {
	c.Logger.SetLevel(level)
	if level <= log.DebugLevel {
		observability.SetExportHooks(observability.LogExportHooks{Logger: c.Logger})
		observability.SetCacheHooks(observability.LogCacheHooks{Logger: c.Logger})
		observability.SetHTTPHooks(observability.LogHTTPHooks{Logger: c.Logger})
	} else {
		observability.Reset()
	}
}

// RootCommand creates the root cobra command with all subcommands registered.
func (c *CLI) RootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:          "kitbash",
		Short:        "Kitbash composes sprite fragments and exports them per layer",
		Long:         `Kitbash is a CLI tool for assembling sprites from image fragments: place layers on a fixed canvas, preview the composite and export every layer as its own full-canvas PNG together with a data.json describing the arrangement.`,
		Version:       buildinfo.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			level := LogInfo
			if c.verbose {
				level = LogDebug
			}
			c.SetLogLevel(level)
			return c.loadConfig()
		},
	}

	root.SetVersionTemplate(buildinfo.Template())
	root.PersistentFlags().StringVar(&c.configPath, "config", "", "config file (default $XDG_CONFIG_HOME/kitbash/config.toml)")
	root.PersistentFlags().StringVarP(&c.projectPath, "project", "p", project.FileName, "project file")
	root.PersistentFlags().BoolVarP(&c.verbose, "verbose", "v", false, "enable debug logging")

	root.AddCommand(c.initCommand())
	root.AddCommand(c.addCommand())
	root.AddCommand(c.removeCommand())
	root.AddCommand(c.layersCommand())
	root.AddCommand(c.setCommand())
	root.AddCommand(c.reorderCommand())
	root.AddCommand(c.previewCommand())
	root.AddCommand(c.exportCommand())
	root.AddCommand(c.importMetaCommand())
	root.AddCommand(c.serveCommand())
	root.AddCommand(c.cacheCommand())
	root.AddCommand(c.configCommand())
	root.AddCommand(c.completionCommand())

	return root
}

func (c *CLI) loadConfig() error {
	cfg, err := config.Load(c.configPath)
	if err != nil {
		return err
	}
	c.cfg = cfg
	return nil
}

// =============================================================================
// Runner Factory
// =============================================================================

// newRunner creates an export runner backed by the configured cache. Keys
// are scoped by project format version. The caller closes the returned cache.
func (c *CLI) newRunner(ctx context.Context, noCache bool) (*export.Runner, cache.Cache, error) {
	store, err := c.newCache(ctx, noCache)
	if err != nil {
		return nil, nil, err
	}
	keyer := cache.NewScopedKeyer(nil, fmt.Sprintf("v%d:", project.FormatVersion))
	r := export.NewRunner(store, keyer, c.Logger)
	r.TTL = c.cfg.Cache.TTL
	return r, store, nil
}

func (c *CLI) newCache(ctx context.Context, noCache bool) (cache.Cache, error) {
	if noCache {
		return cache.NewNullCache(), nil
	}
	switch c.cfg.Cache.Backend {
	case config.BackendRedis:
		ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		return cache.NewRedisCache(ctx, cache.RedisConfig{
			Addr:     c.cfg.Cache.RedisAddr,
			Password: c.cfg.Cache.RedisPassword,
			DB:       c.cfg.Cache.RedisDB,
		})
	case config.BackendNone:
		return cache.NewNullCache(), nil
	}
	if c.cfg.Cache.Dir == "" {
		return cache.NewNullCache(), nil
	}
	return cache.NewFileCache(c.cfg.Cache.Dir)
}

// =============================================================================
// Project Helpers
// =============================================================================

// openProject opens the project named by --project.
func (c *CLI) openProject() (*project.Project, error) {
	p, err := project.Open(c.projectPath)
	if err != nil {
		return nil, err
	}
	c.Logger.Debug("opened project", "path", p.Path, "layers", p.Session.Store.Len())
	return p, nil
}

// editProject opens the project, applies fn and saves the result.
func (c *CLI) editProject(fn func(p *project.Project) error) (*project.Project, error) {
	p, err := c.openProject()
	if err != nil {
		return nil, err
	}
	if err := fn(p); err != nil {
		return nil, err
	}
	if err := p.Save(); err != nil {
		return nil, err
	}
	return p, nil
}
