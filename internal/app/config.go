package app

import "fmt"

// Run modes.
const (
	ModeExport = "export"
	ModePush   = "push"
	ModeServe  = "serve"
)

// Config holds all the necessary configuration for an App instance to run.
type Config struct {
	Mode string

	// RepoDir is the local git checkout jobs are generated for (export and
	// push modes).
	RepoDir string
	// OutputDir is where export mode writes the job XML files.
	OutputDir string
	// SettingsPath points at the HCL settings file (push and serve modes).
	SettingsPath string
	// ListenAddress overrides the settings file's listen address when set.
	ListenAddress string

	LogFormat string
	LogLevel  string
}

func NewConfig(cfg Config) (*Config, error) {
	switch cfg.Mode {
	case ModeExport, ModePush, ModeServe:
	default:
		return nil, fmt.Errorf("unknown mode %q: must be %s, %s or %s", cfg.Mode, ModeExport, ModePush, ModeServe)
	}
	if cfg.RepoDir == "" {
		cfg.RepoDir = "."
	}
	if cfg.OutputDir == "" {
		cfg.OutputDir = "."
	}
	return &cfg, nil
}
