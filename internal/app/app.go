package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/vk/jobsmith/internal/compiler"
	"github.com/vk/jobsmith/internal/ctxlog"
	"github.com/vk/jobsmith/internal/document"
	"github.com/vk/jobsmith/internal/jenkins"
	"github.com/vk/jobsmith/internal/repository"
	"github.com/vk/jobsmith/internal/settings"
	"github.com/vk/jobsmith/internal/webhook"
)

// App encapsulates the application's dependencies, configuration, and lifecycle.
type App struct {
	outW   io.Writer
	logger *slog.Logger
	config *Config
}

// NewApp is the constructor for the main application. It returns a fully
// initialized App instance with its own isolated logger.
func NewApp(outW io.Writer, config *Config) *App {
	logger := newLogger(config.LogLevel, config.LogFormat, os.Stderr)
	logger.Debug("Logger configured successfully.")
	return &App{outW: outW, logger: logger, config: config}
}

// Run executes the configured mode.
func (a *App) Run(ctx context.Context) error {
	ctx = ctxlog.WithLogger(ctx, a.logger)
	a.logger.Debug("App.Run method started.", "mode", a.config.Mode)

	switch a.config.Mode {
	case ModeExport:
		return a.runExport(ctx)
	case ModePush:
		return a.runPush(ctx)
	case ModeServe:
		return a.runServe(ctx)
	}
	return fmt.Errorf("unknown mode %q", a.config.Mode)
}

// localJobs generates the jobs of the job file in the configured repository
// directory, for the branch the checkout is on.
func (a *App) localJobs(ctx context.Context) (repository.Repository, []jenkins.Job, error) {
	repo, err := gitRepository(ctx, a.config.RepoDir)
	if err != nil {
		return repository.Repository{}, nil, err
	}
	a.logger.Info("Generating jobs", "repository", repo.String())

	contents, err := os.ReadFile(filepath.Join(a.config.RepoDir, document.Filename))
	if err != nil {
		return repository.Repository{}, nil, fmt.Errorf("reading %s: %w", document.Filename, err)
	}
	doc, err := document.Parse(contents)
	if err != nil {
		return repository.Repository{}, nil, err
	}

	accepts, err := compiler.AcceptsBranch(doc, repo.Branch)
	if err != nil {
		return repository.Repository{}, nil, err
	}
	if !accepts {
		a.logger.Warn("Branch rejected by branch_patterns, no jobs generated", "branch", repo.Branch)
		return repo, nil, nil
	}

	jobs, err := jenkins.NewGenerator().GenerateAll(doc, repo)
	if err != nil {
		return repository.Repository{}, nil, err
	}
	return repo, jobs, nil
}

func (a *App) runExport(ctx context.Context) error {
	repo, jobs, err := a.localJobs(ctx)
	if err != nil {
		return err
	}
	publisher, err := jenkins.NewPublisher(repo, jobs)
	if err != nil {
		return err
	}
	if err := publisher.PublishToDirectory(a.config.OutputDir); err != nil {
		return err
	}
	for _, job := range jobs {
		fmt.Fprintln(a.outW, job.Name)
	}
	a.logger.Info("Jobs exported.", "count", len(jobs), "directory", a.config.OutputDir)
	return nil
}

func (a *App) runPush(ctx context.Context) error {
	cfg, err := settings.Load(ctx, a.config.SettingsPath)
	if err != nil {
		return err
	}
	jenkinsCfg, err := cfg.RequireJenkins()
	if err != nil {
		return err
	}

	repo, jobs, err := a.localJobs(ctx)
	if err != nil {
		return err
	}
	publisher, err := jenkins.NewPublisher(repo, jobs)
	if err != nil {
		return err
	}
	client := jenkins.NewClient(jenkinsCfg.URL, jenkinsCfg.Username, jenkinsCfg.Password)
	result, err := publisher.PublishToServer(ctx, client)
	if err != nil {
		return err
	}

	for _, name := range result.New {
		fmt.Fprintln(a.outW, "NEW - "+name)
	}
	for _, name := range result.Updated {
		fmt.Fprintln(a.outW, "UPD - "+name)
	}
	for _, name := range result.Deleted {
		fmt.Fprintln(a.outW, "DEL - "+name)
	}
	return nil
}

func (a *App) runServe(ctx context.Context) error {
	cfg, err := settings.Load(ctx, a.config.SettingsPath)
	if err != nil {
		return err
	}
	jenkinsCfg, err := cfg.RequireJenkins()
	if err != nil {
		return err
	}

	parseStash := func(ctx context.Context, _ http.Header, body []byte) ([]webhook.PushRequest, error) {
		stashCfg, err := cfg.RequireStash()
		if err != nil {
			return nil, err
		}
		return webhook.ParseStashPush(ctx, body, webhook.NewStashClient(stashCfg))
	}
	parseGitHub := func(ctx context.Context, header http.Header, body []byte) ([]webhook.PushRequest, error) {
		if cfg.GitHub == nil {
			return nil, fmt.Errorf("settings file has no github block")
		}
		return webhook.ParseGitHubPush(ctx, header, body, cfg.GitHub.WebhookSecret, webhook.NewGitHubClient(cfg.GitHub))
	}

	server := webhook.NewServer(VersionTitle(), parseStash, parseGitHub, webhook.NewSynchronizer(jenkinsCfg))

	addr := cfg.Server.ListenAddress
	if a.config.ListenAddress != "" {
		addr = a.config.ListenAddress
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	a.logger.Info("Initializing webhook server", "version", VersionTitle())
	return server.ListenAndServe(ctx, addr)
}
