package main

import (
	"strings"
	"sync"

	"github.com/jguynes74-create/Smooth-Edit/internal/config"
)

type commandContext struct {
	configFlag *string
	addrFlag   *string

	configOnce sync.Once
	config     *config.Config
	configErr  error
}

func newCommandContext(configFlag, addrFlag *string) *commandContext {
	return &commandContext{
		configFlag: configFlag,
		addrFlag:   addrFlag,
	}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, _, _, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

func (c *commandContext) configValue() *config.Config {
	cfg, _ := c.ensureConfig()
	return cfg
}

// apiAddr resolves the daemon API address from the flag or the config.
func (c *commandContext) apiAddr() string {
	if c.addrFlag != nil && strings.TrimSpace(*c.addrFlag) != "" {
		return strings.TrimSpace(*c.addrFlag)
	}
	if cfg := c.configValue(); cfg != nil {
		return cfg.Paths.APIBind
	}
	return ""
}

func (c *commandContext) apiToken() string {
	if cfg := c.configValue(); cfg != nil {
		return cfg.Paths.APIToken
	}
	return ""
}

func (c *commandContext) client() (*apiClient, error) {
	return newAPIClient(c.apiAddr(), c.apiToken())
}
