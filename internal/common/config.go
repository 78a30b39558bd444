package common

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

type Config struct {
	Reporter ReporterConfig `toml:"reporter"`
	Jira     JiraConfig     `toml:"jira"`
	Logging  LoggingConfig  `toml:"logging"`
}

type ReporterConfig struct {
	Name        string `toml:"name"`
	Environment string `toml:"environment"`
}

// JiraConfig holds the tracker connection and the ordered list of projects
// issues are searched for and created in.
type JiraConfig struct {
	URL            string   `toml:"url"`
	User           string   `toml:"user"`
	Password       string   `toml:"password"`
	Projects       []string `toml:"projects"`
	TimeoutSeconds int      `toml:"timeout_seconds"`
}

type LoggingConfig struct {
	Level      string `toml:"level"`
	Format     string `toml:"format"`
	Output     string `toml:"output"`
	MaxSize    int    `toml:"max_size"`
	MaxBackups int    `toml:"max_backups"`
}

func DefaultConfig() *Config {
	return &Config{
		Reporter: ReporterConfig{
			Name:        "kapajira",
			Environment: "development",
		},
		Jira: JiraConfig{
			TimeoutSeconds: 30,
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "text",
			Output:     "both",
			MaxSize:    100,
			MaxBackups: 3,
		},
	}
}

// LoadConfig reads configuration with priority defaults -> TOML -> environment.
// An empty path auto-detects a config file next to the executable or in the
// working directory.
func LoadConfig(configFile string) (*Config, error) {
	config := DefaultConfig()

	if configFile == "" {
		configFile = detectConfigFile()
	}

	if configFile != "" {
		data, err := os.ReadFile(configFile)
		if err != nil {
			return nil, NewConfigurationError("read_failed", "failed to read config file").
				WithContext("path", configFile).
				WithCause(err)
		}

		if err := toml.Unmarshal(data, config); err != nil {
			return nil, NewConfigurationError("parse_failed", "failed to parse config file").
				WithContext("path", configFile).
				WithCause(err)
		}
	}

	applyEnvOverrides(config)

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

func detectConfigFile() string {
	execPath, _ := os.Executable()
	execDir := filepath.Dir(execPath)
	execName := filepath.Base(execPath)
	execName = execName[:len(execName)-len(filepath.Ext(execName))]

	possiblePaths := []string{
		filepath.Join(execDir, execName+".toml"),
		filepath.Join(execDir, "kapajira.toml"),
		"kapajira.toml",
	}

	for _, path := range possiblePaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

func applyEnvOverrides(config *Config) {
	if url := os.Getenv("JIRA_URL"); url != "" {
		config.Jira.URL = url
	}
	if user := os.Getenv("JIRA_USER"); user != "" {
		config.Jira.User = user
	}
	if password := os.Getenv("JIRA_PASSWORD"); password != "" {
		config.Jira.Password = password
	}
	if projects := os.Getenv("JIRA_PROJECTS"); projects != "" {
		config.Jira.Projects = splitList(projects)
	}
	if timeout := os.Getenv("JIRA_TIMEOUT_SECONDS"); timeout != "" {
		if seconds, err := strconv.Atoi(timeout); err == nil {
			config.Jira.TimeoutSeconds = seconds
		}
	}

	if logLevel := os.Getenv("LOG_LEVEL"); logLevel != "" {
		config.Logging.Level = logLevel
	}
	if logOutput := os.Getenv("LOG_OUTPUT"); logOutput != "" {
		config.Logging.Output = logOutput
	}
}

func splitList(value string) []string {
	var items []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return items
}

func (c *Config) Validate() error {
	if err := c.Jira.Validate(); err != nil {
		return err
	}

	if c.Jira.TimeoutSeconds <= 0 {
		c.Jira.TimeoutSeconds = 30
	}

	validLogLevels := []string{"debug", "info", "warn", "error", "fatal", "panic"}
	if !slices.Contains(validLogLevels, c.Logging.Level) {
		return NewConfigurationError("invalid_log_level", fmt.Sprintf("invalid log level: %s", c.Logging.Level))
	}

	validOutputs := []string{"console", "file", "both"}
	if !slices.Contains(validOutputs, c.Logging.Output) {
		return NewConfigurationError("invalid_log_output", fmt.Sprintf("invalid log output: %s", c.Logging.Output))
	}

	return nil
}

// Validate reports the first missing connection setting.
func (j *JiraConfig) Validate() error {
	if j.URL == "" {
		return NewConfigurationError("missing_key", "jira url is required")
	}
	if j.User == "" {
		return NewConfigurationError("missing_key", "jira user is required")
	}
	if j.Password == "" {
		return NewConfigurationError("missing_key", "jira password is required")
	}
	if len(j.Projects) == 0 {
		return NewConfigurationError("missing_key", "at least one jira project must be configured")
	}
	for _, project := range j.Projects {
		if project == "" {
			return NewConfigurationError("missing_key", "jira project key cannot be empty")
		}
	}
	return nil
}
