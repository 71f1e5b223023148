package webhook

import (
	"context"

	"github.com/vk/jobsmith/internal/compiler"
	"github.com/vk/jobsmith/internal/ctxlog"
	"github.com/vk/jobsmith/internal/document"
	"github.com/vk/jobsmith/internal/jenkins"
	"github.com/vk/jobsmith/internal/repository"
	"github.com/vk/jobsmith/internal/settings"
)

// Synchronizer compiles a push request's job file and publishes the result
// to the Jenkins server. A request without a job file, or whose document
// rejects the branch, publishes an empty job set, which deletes every job
// the branch had.
type Synchronizer struct {
	generator *jenkins.Generator
	newServer func() jenkins.ServerAPI
}

// NewSynchronizer returns a synchronizer publishing to the configured
// Jenkins server.
func NewSynchronizer(cfg *settings.Jenkins) *Synchronizer {
	return &Synchronizer{
		generator: jenkins.NewGenerator(),
		newServer: func() jenkins.ServerAPI {
			return jenkins.NewClient(cfg.URL, cfg.Username, cfg.Password)
		},
	}
}

// Process implements Processor.
func (s *Synchronizer) Process(ctx context.Context, req PushRequest) (jenkins.PublishResult, error) {
	logger := ctxlog.FromContext(ctx)
	repo := repository.Repository{URL: req.CloneURL, Branch: req.Branch}

	var jobs []jenkins.Job
	if req.FileExists {
		doc, err := document.Parse(req.FileContents)
		if err != nil {
			return jenkins.PublishResult{}, err
		}
		accepts, err := compiler.AcceptsBranch(doc, req.Branch)
		if err != nil {
			return jenkins.PublishResult{}, err
		}
		if accepts {
			jobs, err = s.generator.GenerateAll(doc, repo)
			if err != nil {
				return jenkins.PublishResult{}, err
			}
		} else {
			logger.Info("Branch rejected by branch_patterns, removing its jobs", "branch", req.Branch)
		}
	} else {
		logger.Info("No job file at pushed commit, removing the branch's jobs", "branch", req.Branch)
	}

	publisher, err := jenkins.NewPublisher(repo, jobs)
	if err != nil {
		return jenkins.PublishResult{}, err
	}
	return publisher.PublishToServer(ctx, s.newServer())
}
