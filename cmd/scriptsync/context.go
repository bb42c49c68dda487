package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"

	"github.com/spf13/cobra"

	"scriptsync/internal/config"
	"scriptsync/internal/logging"
	"scriptsync/internal/pipeline"
	"scriptsync/internal/runstore"
)

type commandContext struct {
	configFlag   *string
	logLevelFlag *string
	verboseFlag  *bool

	configOnce  sync.Once
	config      *config.Config
	configPath  string
	configFound bool
	configErr   error
}

func newCommandContext(configFlag, logLevelFlag *string, verboseFlag *bool) *commandContext {
	return &commandContext{
		configFlag:   configFlag,
		logLevelFlag: logLevelFlag,
		verboseFlag:  verboseFlag,
	}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, resolved, found, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		if level := c.logLevel(); level != "" {
			cfg.Logging.Level = level
		}
		c.config = cfg
		c.configPath = resolved
		c.configFound = found
	})
	return c.config, c.configErr
}

func (c *commandContext) logLevel() string {
	if c.verboseFlag != nil && *c.verboseFlag {
		return "debug"
	}
	if c.logLevelFlag != nil {
		return strings.TrimSpace(*c.logLevelFlag)
	}
	return ""
}

func (c *commandContext) logger() (*slog.Logger, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	logger, err := logging.NewFromConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	return logger, nil
}

func (c *commandContext) withStore(fn func(*config.Config, *runstore.Store) error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	store, err := runstore.Open(cfg)
	if err != nil {
		return fmt.Errorf("open run ledger: %w", err)
	}
	defer store.Close()
	return fn(cfg, store)
}

// withPipeline builds a pipeline over the ledger and runs fn with a context
// cancelled on SIGINT or SIGTERM.
func (c *commandContext) withPipeline(cmd *cobra.Command, fn func(context.Context, *pipeline.Pipeline) error) error {
	logger, err := c.logger()
	if err != nil {
		return err
	}
	return c.withStore(func(cfg *config.Config, store *runstore.Store) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return fn(ctx, pipeline.New(cfg, store, logger))
	})
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
