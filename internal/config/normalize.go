package config

import (
	"fmt"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeOracle()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	fields := []struct {
		name  string
		value *string
	}{
		{"paths.upload_dir", &c.Paths.UploadDir},
		{"paths.work_dir", &c.Paths.WorkDir},
		{"paths.artifact_dir", &c.Paths.ArtifactDir},
		{"paths.data_dir", &c.Paths.DataDir},
		{"paths.log_dir", &c.Paths.LogDir},
	}
	for _, field := range fields {
		expanded, err := expandPath(*field.value)
		if err != nil {
			return fmt.Errorf("%s: %w", field.name, err)
		}
		*field.value = expanded
	}
	c.Paths.APIBind = strings.TrimSpace(c.Paths.APIBind)
	c.Paths.APIToken = strings.TrimSpace(c.Paths.APIToken)
	return nil
}

func (c *Config) normalizeOracle() {
	c.Oracle.BaseURL = strings.TrimRight(strings.TrimSpace(c.Oracle.BaseURL), "/")
	c.Oracle.APIKey = strings.TrimSpace(c.Oracle.APIKey)
	if c.Oracle.TimeoutSeconds <= 0 {
		c.Oracle.TimeoutSeconds = defaultOracleTimeoutSeconds
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
