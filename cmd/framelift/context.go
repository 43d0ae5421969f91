package main

import (
	"strings"
	"sync"

	"framelift/internal/config"
	"framelift/internal/enhance"
	"framelift/internal/jobs"
)

type commandContext struct {
	configFlag *string

	configOnce sync.Once
	config     *config.Config
	configErr  error
}

func newCommandContext(configFlag *string) *commandContext {
	return &commandContext{configFlag: configFlag}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		if c.config != nil {
			return
		}
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, _, _, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

// injectConfig seeds a pre-built configuration, bypassing file loading.
func (c *commandContext) injectConfig(cfg *config.Config) {
	c.configOnce.Do(func() {
		c.config = cfg
	})
}

// withRegistry opens the job registry for the duration of one command.
func (c *commandContext) withRegistry(fn func(*jobs.Registry) error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	registry, err := jobs.Open(cfg)
	if err != nil {
		return err
	}
	defer registry.Close()
	return fn(registry)
}

// withService wraps the registry in the enhance facade. The CLI has no
// workflow manager in-process, so cancellation flips registry state only;
// an in-flight daemon run keeps going but its completion is discarded.
func (c *commandContext) withService(fn func(*enhance.Service, *jobs.Registry) error) error {
	return c.withRegistry(func(registry *jobs.Registry) error {
		cfg, err := c.ensureConfig()
		if err != nil {
			return err
		}
		return fn(enhance.NewService(cfg, registry, nil, nil), registry)
	})
}
