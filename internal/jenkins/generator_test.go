package jenkins

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vk/jobsmith/internal/document"
	"github.com/vk/jobsmith/internal/repository"
)

var testRepo = repository.Repository{
	URL:    "ssh://git@server:7999/team/space.git",
	Branch: "master",
}

// generate compiles a document and renders every job, failing the test on
// any error.
func generate(t *testing.T, contents string) []Job {
	t.Helper()
	doc, err := document.Parse([]byte(contents))
	require.NoError(t, err)
	jobs, err := NewGenerator().GenerateAll(doc, testRepo)
	require.NoError(t, err)
	return jobs
}

// generateOne renders a document expected to produce exactly one job.
func generateOne(t *testing.T, contents string) Job {
	t.Helper()
	jobs := generate(t, contents)
	require.Len(t, jobs, 1)
	return jobs[0]
}

func TestGenerateDefaultSkeleton(t *testing.T) {
	job := generateOne(t, `build_shell_commands: []`)
	assert.Equal(t, "space-master", job.Name)
	assert.Equal(t, testRepo, job.Repository)

	expected := `<?xml version="1.0" ?>
<project>
  <description>&lt;!-- Managed by jobsmith --&gt;</description>
  <keepDependencies>false</keepDependencies>
  <logRotator>
    <daysToKeep>7</daysToKeep>
    <numToKeep>-1</numToKeep>
    <artifactDaysToKeep>-1</artifactDaysToKeep>
    <artifactNumToKeep>-1</artifactNumToKeep>
  </logRotator>
  <blockBuildWhenDownstreamBuilding>false</blockBuildWhenDownstreamBuilding>
  <blockBuildWhenUpstreamBuilding>false</blockBuildWhenUpstreamBuilding>
  <concurrentBuild>false</concurrentBuild>
  <canRoam>false</canRoam>
  <scm class="hudson.plugins.git.GitSCM">
    <configVersion>2</configVersion>
    <relativeTargetDir>space</relativeTargetDir>
    <userRemoteConfigs>
      <hudson.plugins.git.UserRemoteConfig>
        <url>ssh://git@server:7999/team/space.git</url>
      </hudson.plugins.git.UserRemoteConfig>
    </userRemoteConfigs>
    <branches>
      <hudson.plugins.git.BranchSpec>
        <name>master</name>
      </hudson.plugins.git.BranchSpec>
    </branches>
    <extensions>
      <hudson.plugins.git.extensions.impl.LocalBranch>
        <localBranch>master</localBranch>
      </hudson.plugins.git.extensions.impl.LocalBranch>
      <hudson.plugins.git.extensions.impl.CloneOption>
        <noTags>true</noTags>
      </hudson.plugins.git.extensions.impl.CloneOption>
      <hudson.plugins.git.extensions.impl.CleanCheckout/>
      <hudson.plugins.git.extensions.impl.GitLFSPull/>
    </extensions>
    <localBranch>master</localBranch>
  </scm>
  <assignedNode>space</assignedNode>
</project>`
	assert.Equal(t, expected, job.XML)
}

func TestGenerateJobNamesIncludeMatrixValues(t *testing.T) {
	jobs := generate(t, `
matrix:
  mode:
    - app
    - cases
  platform:
    - win64,windows
    - linux64
build_shell_commands:
  - make
`)
	require.Len(t, jobs, 4)

	var names []string
	for _, job := range jobs {
		names = append(names, job.Name)
	}
	// Primary values in declared variable order, enumeration order preserved.
	assert.Equal(t, []string{
		"space-master-app-win64",
		"space-master-app-linux64",
		"space-master-cases-win64",
		"space-master-cases-linux64",
	}, names)

	assert.Contains(t, jobs[0].XML, "<assignedNode>space-app-win64</assignedNode>")
}

func TestGenerateLabelExpressionOverridesDefaultLabel(t *testing.T) {
	job := generateOne(t, `label_expression: "win64&&dist-12.0"`)
	assert.Contains(t, job.XML, "<assignedNode>win64&amp;&amp;dist-12.0</assignedNode>")
	assert.NotContains(t, job.XML, "<assignedNode>space</assignedNode>")
}

func TestGenerateMailerRendersLast(t *testing.T) {
	job := generateOne(t, `
email_notification: dev@example.com
junit_patterns:
  - "junit*.xml"
`)
	xunitIndex := indexOf(t, job.XML, "<xunit>")
	mailerIndex := indexOf(t, job.XML, "<hudson.tasks.Mailer>")
	assert.Greater(t, mailerIndex, xunitIndex, "the mailer must be the last publisher")
}

func TestGenerateUnsupportedOption(t *testing.T) {
	doc, err := document.Parse([]byte(`made_up_option: "value"`))
	require.NoError(t, err)

	_, err = NewGenerator().GenerateAll(doc, testRepo)
	var unsupported *UnsupportedOptionError
	require.ErrorAs(t, err, &unsupported)
	assert.Equal(t, "made_up_option", unsupported.Option)
	assert.Contains(t, err.Error(), "- build_shell_commands")
}

func TestGenerateRenderOrderIsFixed(t *testing.T) {
	// Declaration order of options must not affect the XML.
	a := generateOne(t, "timestamps:\ntimeout: \"60\"\nbuild_shell_commands:\n  - make\n")
	b := generateOne(t, "build_shell_commands:\n  - make\ntimeout: \"60\"\ntimestamps:\n")
	assert.Equal(t, a.XML, b.XML)
}

func TestRegistryValidate(t *testing.T) {
	require.NoError(t, NewRegistry().Validate())
}

func TestRegistryValidateMissingRenderer(t *testing.T) {
	r := &Registry{renderers: map[string]Renderer{}}
	assert.Error(t, r.Validate())
}

func TestRegistryValidateStrayRenderer(t *testing.T) {
	r := NewRegistry()
	r.Register("not_in_catalog", func(d *jobDocument, value any) error { return nil })
	assert.Error(t, r.Validate())
}

func TestRegistryDuplicatePanics(t *testing.T) {
	r := NewRegistry()
	assert.Panics(t, func() {
		r.Register("timeout", func(d *jobDocument, value any) error { return nil })
	})
}

func indexOf(t *testing.T, haystack, needle string) int {
	t.Helper()
	for i := 0; i+len(needle) <= len(haystack); i++ {
		if haystack[i:i+len(needle)] == needle {
			return i
		}
	}
	t.Fatalf("%q not found in generated XML", needle)
	return -1
}
