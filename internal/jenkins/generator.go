package jenkins

import (
	"sort"
	"strings"

	"github.com/vk/jobsmith/internal/compiler"
	"github.com/vk/jobsmith/internal/document"
	"github.com/vk/jobsmith/internal/repository"
	"github.com/vk/jobsmith/internal/xmlnode"
)

const gitSCMClass = "hudson.plugins.git.GitSCM"

// Generator renders resolved specs into Jenkins jobs.
type Generator struct {
	registry *Registry
}

// NewGenerator returns a generator backed by the core renderer registry.
func NewGenerator() *Generator {
	return &Generator{registry: NewRegistry()}
}

// NewGeneratorWithRegistry returns a generator backed by a custom registry.
func NewGeneratorWithRegistry(registry *Registry) *Generator {
	return &Generator{registry: registry}
}

// Generate renders one resolved spec into a Job. The job name is the
// repository's job group ("{name}-{branch}") followed by the instance's
// primary matrix values in declared variable order.
func (g *Generator) Generate(repo repository.Repository, spec compiler.ResolvedSpec) (Job, error) {
	// Reject unrenderable options before building anything, in a stable
	// order so the same document always reports the same offending key.
	names := make([]string, 0, len(spec.Options))
	for option := range spec.Options {
		names = append(names, option)
	}
	sort.Strings(names)
	for _, option := range names {
		if _, ok := g.registry.Lookup(option); !ok {
			return Job{}, &UnsupportedOptionError{Option: option}
		}
	}

	d := newJobDocument(repo)

	suffix := strings.Join(primaryValues(spec), "-")
	jobName := repo.JobGroup()
	label := repo.Name()
	if suffix != "" {
		jobName += "-" + suffix
		label += "-" + suffix
	}
	// Default slave label; the label_expression option overwrites it.
	d.root.SetText("assignedNode", label)

	for _, option := range g.registry.order {
		value, ok := spec.Options[option]
		if !ok {
			continue
		}
		fn, _ := g.registry.Lookup(option)
		if err := fn(d, value); err != nil {
			return Job{}, err
		}
	}

	// The mailer must be the last publisher: Jenkins runs publishers in
	// document order and the failure e-mail has to see the test results.
	if publishers := d.root.Find("publishers"); publishers != nil {
		if mailer := publishers.Remove("hudson.tasks.Mailer"); mailer != nil {
			publishers.Append(mailer)
		}
	}

	return Job{Name: jobName, Repository: repo, XML: d.root.Contents(true)}, nil
}

// GenerateAll compiles a parsed document and renders every resulting job, in
// the compiler's deterministic enumeration order.
func (g *Generator) GenerateAll(doc *document.Document, repo repository.Repository) ([]Job, error) {
	specs, err := compiler.Compile(doc, repo)
	if err != nil {
		return nil, err
	}
	jobs := make([]Job, 0, len(specs))
	for _, spec := range specs {
		job, err := g.Generate(repo, spec)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, nil
}

func primaryValues(spec compiler.ResolvedSpec) []string {
	names := spec.Instance.Names()
	values := make([]string, 0, len(names))
	for _, name := range names {
		v, _ := spec.Instance.Value(name)
		values = append(values, v.Primary)
	}
	return values
}

// jobDocument is the in-progress XML tree of one job, with the bits of
// shared state renderers need: the git SCM element (relocated when
// additional repositories turn the job into a MultiSCM one) and the
// repository for derived defaults.
type jobDocument struct {
	root *xmlnode.Node
	git  *xmlnode.Node
	repo repository.Repository
}

// newJobDocument creates the project skeleton every job starts from:
// housekeeping defaults plus the git SCM block checking out the job's
// repository and branch.
func newJobDocument(repo repository.Repository) *jobDocument {
	root := xmlnode.New("project")
	root.SetText("description", "<!-- Managed by jobsmith -->")
	root.SetText("keepDependencies", "false")
	root.SetText("logRotator/daysToKeep", "7")
	root.SetText("logRotator/numToKeep", "-1")
	root.SetText("logRotator/artifactDaysToKeep", "-1")
	root.SetText("logRotator/artifactNumToKeep", "-1")
	root.SetText("blockBuildWhenDownstreamBuilding", "false")
	root.SetText("blockBuildWhenUpstreamBuilding", "false")
	root.SetText("concurrentBuild", "false")
	root.SetText("canRoam", "false")

	git := root.Path("scm")
	git.Set("@class", gitSCMClass)

	d := &jobDocument{root: root, git: git, repo: repo}

	defaults := document.NewMap()
	defaults.Set("url", repo.URL)
	defaults.Set("target_dir", repo.Name())
	defaults.Set("branch", repo.Branch)
	// Defaults are well-formed by construction; setGit cannot fail on them.
	_ = d.setGit(defaults, git)

	return d
}
