package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizePull()
	c.normalizeMaintenance()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.RepositoryDir) == "" {
		c.Paths.RepositoryDir = defaultRepositoryDir
	}
	if c.Paths.RepositoryDir, err = expandPath(c.Paths.RepositoryDir); err != nil {
		return fmt.Errorf("paths.repository_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.StateDir) == "" {
		c.Paths.StateDir = defaultStateDir
	}
	if c.Paths.StateDir, err = expandPath(c.Paths.StateDir); err != nil {
		return fmt.Errorf("paths.state_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizePull() {
	if c.Pull.MinimumInterval <= 0 {
		c.Pull.MinimumInterval = defaultMinimumInterval
	}
	if c.Pull.UpdateTimeout < 0 {
		c.Pull.UpdateTimeout = 0
	}
	c.Pull.UpdaterBinary = strings.TrimSpace(c.Pull.UpdaterBinary)
	if c.Pull.UpdaterBinary == "" {
		if value, ok := os.LookupEnv("PHABRICATOR_UPDATER"); ok {
			c.Pull.UpdaterBinary = strings.TrimSpace(value)
		}
	}
}

func (c *Config) normalizeMaintenance() {
	c.Maintenance.Schedule = strings.TrimSpace(c.Maintenance.Schedule)
	if c.Maintenance.Schedule == "" {
		c.Maintenance.Schedule = defaultMaintenanceSchedule
	}
	if c.Maintenance.StatusRetentionDays < 0 {
		c.Maintenance.StatusRetentionDays = 0
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	if c.Logging.RetentionDays < 0 {
		c.Logging.RetentionDays = 0
	}
}
