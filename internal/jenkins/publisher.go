package jenkins

import (
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/vk/jobsmith/internal/ctxlog"
	"github.com/vk/jobsmith/internal/repository"
)

// ServerAPI is the slice of the Jenkins REST API the publisher needs.
// *Client implements it; tests substitute a fake.
type ServerAPI interface {
	ListJobs(ctx context.Context) ([]string, error)
	JobConfig(ctx context.Context, name string) (string, error)
	CreateJob(ctx context.Context, name, configXML string) error
	ReconfigJob(ctx context.Context, name, configXML string) error
	DeleteJob(ctx context.Context, name string) error
}

const publishRetries = 3

// publishRetrySleep is a variable so tests can shorten it.
var publishRetrySleep = time.Second

// PublishResult lists the job names touched by one publish, each sorted
// alphabetically.
type PublishResult struct {
	New     []string
	Updated []string
	Deleted []string
}

// Publisher synchronizes a repository's generated jobs with a Jenkins
// server: new jobs are created, existing ones reconfigured, and jobs that
// belong to the same repository and branch but were not generated this time
// are deleted.
type Publisher struct {
	repo repository.Repository
	jobs map[string]Job
}

// NewPublisher returns a publisher for the given jobs. Every job must belong
// to repo; the repository determines which server jobs are candidates for
// deletion.
func NewPublisher(repo repository.Repository, jobs []Job) (*Publisher, error) {
	byName := make(map[string]Job, len(jobs))
	for _, job := range jobs {
		if job.Repository != repo {
			return nil, fmt.Errorf("job %q belongs to %s, not %s", job.Name, job.Repository, repo)
		}
		byName[job.Name] = job
	}
	return &Publisher{repo: repo, jobs: byName}, nil
}

// PublishToServer uploads the jobs to a Jenkins server and deletes the
// repository's stale jobs.
func (p *Publisher) PublishToServer(ctx context.Context, server ServerAPI) (PublishResult, error) {
	logger := ctxlog.FromContext(ctx)

	matching, err := p.matchingJobs(ctx, server)
	if err != nil {
		return PublishResult{}, err
	}

	var result PublishResult
	for name := range p.jobs {
		if _, exists := matching[name]; exists {
			result.Updated = append(result.Updated, name)
		} else {
			result.New = append(result.New, name)
		}
	}
	for name := range matching {
		if _, generated := p.jobs[name]; !generated {
			result.Deleted = append(result.Deleted, name)
		}
	}
	sort.Strings(result.New)
	sort.Strings(result.Updated)
	sort.Strings(result.Deleted)

	for _, name := range result.New {
		logger.Info("Creating job", "job", name)
		if err := retry(ctx, func() error { return server.CreateJob(ctx, name, p.jobs[name].XML) }); err != nil {
			return PublishResult{}, err
		}
	}
	for _, name := range result.Updated {
		logger.Info("Updating job", "job", name)
		if err := retry(ctx, func() error { return server.ReconfigJob(ctx, name, p.jobs[name].XML) }); err != nil {
			return PublishResult{}, err
		}
	}
	for _, name := range result.Deleted {
		logger.Info("Deleting job", "job", name)
		if err := retry(ctx, func() error { return server.DeleteJob(ctx, name) }); err != nil {
			return PublishResult{}, err
		}
	}
	return result, nil
}

// PublishToDirectory writes each job's XML to a file named after the job.
func (p *Publisher) PublishToDirectory(dir string) error {
	names := make([]string, 0, len(p.jobs))
	for name := range p.jobs {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, []byte(p.jobs[name].XML), 0o644); err != nil {
			return fmt.Errorf("writing job %q: %w", name, err)
		}
	}
	return nil
}

// retry runs fn, retrying on transient HTTP errors. Proxies in front of
// Jenkins intermittently answer 403 or 502 to otherwise valid requests.
func retry(ctx context.Context, fn func() error) error {
	var lastErr error
	for attempt := 0; attempt < publishRetries; attempt++ {
		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		var statusErr *StatusError
		if !errors.As(lastErr, &statusErr) || !statusErr.transient() {
			return lastErr
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(publishRetrySleep):
		}
	}
	return lastErr
}

// matchingJobs returns the names of the server jobs that belong to the
// publisher's repository and branch. Candidates are pre-filtered by name
// prefix, then confirmed by reading the branch out of each job's SCM
// configuration. Reading SCM information alone would be safer but needs one
// config fetch per job on the server.
func (p *Publisher) matchingJobs(ctx context.Context, server ServerAPI) (map[string]struct{}, error) {
	names, err := server.ListJobs(ctx)
	if err != nil {
		return nil, err
	}

	matching := map[string]struct{}{}
	prefix := p.repo.Name() + "-" + p.repo.Branch
	for _, name := range names {
		if !strings.HasPrefix(name, prefix) {
			continue
		}
		config, err := server.JobConfig(ctx, name)
		if err != nil {
			return nil, err
		}
		branch, err := p.jobBranch(name, config)
		if err != nil {
			return nil, err
		}
		if branch == p.repo.Branch {
			matching[name] = struct{}{}
		}
	}
	return matching, nil
}

type gitSCMConfig struct {
	URL    string `xml:"userRemoteConfigs>hudson.plugins.git.UserRemoteConfig>url"`
	Branch string `xml:"branches>hudson.plugins.git.BranchSpec>name"`
}

type jobSCMConfig struct {
	Branch string         `xml:"scm>branches>hudson.plugins.git.BranchSpec>name"`
	SCMs   []gitSCMConfig `xml:"scm>scms>hudson.plugins.git.GitSCM"`
}

// jobBranch extracts the branch a server job builds from its config.xml.
// MultiSCM jobs list several repositories; the branch comes from the SCM
// whose url matches the publisher's repository.
func (p *Publisher) jobBranch(jobName, configXML string) (string, error) {
	var config jobSCMConfig
	if err := xml.Unmarshal([]byte(configXML), &config); err != nil {
		return "", fmt.Errorf("parsing config of job %q: %w", jobName, err)
	}

	if branch := strings.TrimSpace(config.Branch); branch != "" {
		return branch, nil
	}

	// ssh://host/repo and ssh://host/repo.git are the same repository, and
	// hosts treat the url case-insensitively.
	wanted := map[string]struct{}{}
	repoLower := strings.ToLower(p.repo.URL)
	wanted[repoLower] = struct{}{}
	if !strings.HasSuffix(repoLower, ".git") {
		wanted[repoLower+".git"] = struct{}{}
	}

	var checked []string
	for _, scm := range config.SCMs {
		scmURL := strings.TrimSpace(scm.URL)
		checked = append(checked, scmURL)
		urlLower := strings.ToLower(scmURL)
		candidates := []string{urlLower}
		if !strings.HasSuffix(urlLower, ".git") {
			candidates = append(candidates, urlLower+".git")
		}
		for _, candidate := range candidates {
			if _, ok := wanted[candidate]; ok {
				return strings.TrimSpace(scm.Branch), nil
			}
		}
	}

	var msg strings.Builder
	fmt.Fprintf(&msg, "could not find SCM for repository %q in job %q\n", p.repo.URL, jobName)
	fmt.Fprintf(&msg, "the local repository origin is set to %q, and the possible matches are:\n", p.repo.URL)
	for _, scmURL := range checked {
		fmt.Fprintf(&msg, " - %s\n", scmURL)
	}
	msg.WriteString(`if needed a repository origin url can be set with "git remote set-url origin <URL>"`)
	return "", errors.New(msg.String())
}
