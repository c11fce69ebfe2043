package config

import (
	"errors"
	"fmt"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validatePull(); err != nil {
		return err
	}
	if err := c.validateMaintenance(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validatePaths() error {
	if c.Paths.RepositoryDir == "" {
		return errors.New("paths.repository_dir must be set")
	}
	if c.Paths.StateDir == "" {
		return errors.New("paths.state_dir must be set")
	}
	if c.Paths.RepositoryDir == c.Paths.StateDir {
		return errors.New("paths.repository_dir and paths.state_dir must differ")
	}
	return nil
}

func (c *Config) validatePull() error {
	if err := ensurePositiveMap(map[string]int{
		"pull.minimum_interval": c.Pull.MinimumInterval,
	}); err != nil {
		return err
	}
	if c.Pull.UpdateTimeout < 0 {
		return errors.New("pull.update_timeout must be >= 0 (seconds)")
	}
	return nil
}

func (c *Config) validateMaintenance() error {
	if c.Maintenance.Schedule == "" {
		return errors.New("maintenance.schedule must be set")
	}
	if c.Maintenance.StatusRetentionDays < 0 {
		return errors.New("maintenance.status_retention_days must be >= 0")
	}
	return nil
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
