package main

import (
	"context"
	"errors"
	"os"
	"sync"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/Clark-Hu/disc-catalog/internal/app"
	"github.com/Clark-Hu/disc-catalog/internal/config"
	"github.com/Clark-Hu/disc-catalog/internal/logging"
	"github.com/Clark-Hu/disc-catalog/internal/store"
)

type commandContext struct {
	envFile *string
	verbose *bool

	configOnce sync.Once
	config     config.Config
	configErr  error
}

func newCommandContext(envFile *string, verbose *bool) *commandContext {
	return &commandContext{envFile: envFile, verbose: verbose}
}

func (c *commandContext) ensureConfig() (config.Config, error) {
	c.configOnce.Do(func() {
		path := ".env"
		if c.envFile != nil && *c.envFile != "" {
			path = *c.envFile
		}
		if err := godotenv.Load(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			c.configErr = err
			return
		}
		c.config, c.configErr = config.LoadTools()
	})
	return c.config, c.configErr
}

func (c *commandContext) logger() zerolog.Logger {
	cfg, _ := c.ensureConfig()
	level := cfg.LogLevel
	if c.verbose != nil && *c.verbose {
		level = "debug"
	}
	return logging.New("development", level)
}

// withStore opens the database for the duration of fn.
func (c *commandContext) withStore(ctx context.Context, fn func(*store.Store) error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	st, err := app.OpenStore(ctx, cfg, c.logger())
	if err != nil {
		return err
	}
	defer st.Close()
	return fn(st)
}
