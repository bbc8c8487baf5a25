package app

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"
)

// DefaultFile is loaded when no build file is given and it exists in the
// working directory.
const DefaultFile = "build.hcl"

// Config holds all the necessary configuration for an App instance to run.
type Config struct {
	Files       []string // build files or directories
	Goals       []string
	DefaultGoal string // used when Goals is empty, overrides the file's default_goal

	Params      []string // key=value
	Secrets     []string // key=value, always secret
	ParamsFiles []string
	// Environ is the environment parameters are read from. Nil means os.Environ().
	Environ []string

	Plan bool // print the order and exit
	List bool // list targets and exit

	LogFormat string
	LogLevel  string
	NoColor   bool

	StatusPort    int
	EventsURL     string
	EventsTimeout time.Duration
}

var (
	logLevels  = []string{"debug", "info", "warn", "error"}
	logFormats = []string{"text", "json"}
)

// NewConfig validates cfg and fills in defaults.
func NewConfig(cfg Config) (*Config, error) {
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if cfg.LogFormat == "" {
		cfg.LogFormat = "text"
	}
	cfg.LogLevel = strings.ToLower(cfg.LogLevel)
	cfg.LogFormat = strings.ToLower(cfg.LogFormat)

	if !contains(logLevels, cfg.LogLevel) {
		return nil, fmt.Errorf("invalid log-level %q: must be one of %s", cfg.LogLevel, strings.Join(logLevels, ", "))
	}
	if !contains(logFormats, cfg.LogFormat) {
		return nil, fmt.Errorf("invalid log-format %q: must be one of %s", cfg.LogFormat, strings.Join(logFormats, ", "))
	}
	if cfg.StatusPort < 0 || cfg.StatusPort > 65535 {
		return nil, fmt.Errorf("invalid status-port %d: must be between 0 and 65535", cfg.StatusPort)
	}
	if cfg.Plan && cfg.List {
		return nil, errors.New("--plan and --list cannot be used together")
	}

	if len(cfg.Files) == 0 {
		if info, err := os.Stat(DefaultFile); err == nil && !info.IsDir() {
			cfg.Files = []string{DefaultFile}
		}
	}
	if cfg.Environ == nil {
		cfg.Environ = os.Environ()
	}

	return &cfg, nil
}

func contains(values []string, v string) bool {
	for _, s := range values {
		if s == v {
			return true
		}
	}
	return false
}
