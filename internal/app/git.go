package app

import (
	"context"
	"fmt"
	"os/exec"
	"strings"

	"github.com/vk/jobsmith/internal/repository"
)

// gitRepository reads the origin url and current branch of a local checkout.
func gitRepository(ctx context.Context, dir string) (repository.Repository, error) {
	url, err := gitOutput(ctx, dir, "config", "--local", "--get", "remote.origin.url")
	if err != nil {
		return repository.Repository{}, fmt.Errorf("reading git origin url in %s: %w", dir, err)
	}
	branch, err := gitOutput(ctx, dir, "rev-parse", "--abbrev-ref", "HEAD")
	if err != nil {
		return repository.Repository{}, fmt.Errorf("reading git branch in %s: %w", dir, err)
	}
	return repository.Repository{URL: url, Branch: branch}, nil
}

func gitOutput(ctx context.Context, dir string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = dir
	out, err := cmd.Output()
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(out)), nil
}
