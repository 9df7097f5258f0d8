package config

type Config struct {
	Repository RepositoryConfig `yaml:"repository"`
	Archive    ArchiveConfig    `yaml:"archive"`
	Schedule   ScheduleSection  `yaml:"schedule"`
	Daemon     DaemonConfig     `yaml:"daemon"`
	Retention  RetentionConfig  `yaml:"retention"`
	Logging    LoggingConfig    `yaml:"logging"`
	Verbose    bool             `yaml:"verbose"`
}

type RepositoryConfig struct {
	Location   string `yaml:"location"`
	Passphrase string `yaml:"passphrase"` // usually $(BORG_PASSPHRASE)
	Binary     string `yaml:"binary"`     // defaults to "borg"
	RemotePath string `yaml:"remotePath"` // borg --remote-path
	LockWait   int    `yaml:"lockWait"`   // borg --lock-wait seconds
}

type ArchiveConfig struct {
	Name            string   `yaml:"name"` // empty = epoch seconds at creation
	Paths           []string `yaml:"paths"`
	IncludePatterns []string `yaml:"includePatterns"`
	ExcludePatterns []string `yaml:"excludePatterns"`
}

type ScheduleSection struct {
	Expression string `yaml:"expression"` // e.g. "0 0 * * 1"
	Timezone   string `yaml:"timezone"`   // IANA name, e.g. "Etc/UTC"
}

type DaemonConfig struct {
	Enabled bool   `yaml:"enabled"`
	PIDFile string `yaml:"pidFile"`
	Stdout  string `yaml:"stdout"`
	Stderr  string `yaml:"stderr"`
	WorkDir string `yaml:"workDir"`
}

type RetentionConfig struct {
	LastCount int             `yaml:"lastCount"`
	Rules     []RetentionRule `yaml:"rules"`
}

type RetentionRule struct {
	Name  string `yaml:"name"` // "hourly", "daily", "weekly", "monthly", "yearly"
	Count int    `yaml:"count"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`  // "info", "debug", etc.
	Format string `yaml:"format"` // "json", "text"
	File   string `yaml:"file"`
}

// Configured reports whether a logging sink was explicitly requested.
func (l LoggingConfig) Configured() bool {
	return l.Level != ""
}
