package config

const (
	defaultRepositoryDir       = "~/.local/share/phabricator/repositories"
	defaultStateDir            = "~/.local/share/phabricator/state"
	defaultLogDir              = "~/.local/share/phabricator/logs"
	defaultMinimumInterval     = 15
	defaultUpdateTimeout       = 0
	defaultMaintenanceSchedule = "17 3 * * *"
	defaultStatusRetentionDays = 30
	defaultLogFormat           = "console"
	defaultLogLevel            = "info"
	defaultLogRetentionDays    = 60
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			RepositoryDir: defaultRepositoryDir,
			StateDir:      defaultStateDir,
			LogDir:        defaultLogDir,
		},
		Pull: Pull{
			MinimumInterval: defaultMinimumInterval,
			UpdateTimeout:   defaultUpdateTimeout,
		},
		Maintenance: Maintenance{
			Schedule:            defaultMaintenanceSchedule,
			StatusRetentionDays: defaultStatusRetentionDays,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetentionDays,
		},
	}
}
