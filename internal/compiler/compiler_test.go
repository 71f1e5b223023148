package compiler

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

func compile(t *testing.T, contents string) []ResolvedSpec {
	t.Helper()
	doc, err := document.Parse([]byte(contents))
	require.NoError(t, err)
	specs, err := Compile(doc, testRepo)
	require.NoError(t, err)
	return specs
}

func compileErr(t *testing.T, contents string) error {
	t.Helper()
	doc, err := document.Parse([]byte(contents))
	require.NoError(t, err)
	_, err = Compile(doc, testRepo)
	require.Error(t, err)
	return err
}

func TestCompileWithoutMatrix(t *testing.T) {
	specs := compile(t, `
build_shell_commands:
  - make
timeout: "60"
`)
	require.Len(t, specs, 1)
	assert.Empty(t, specs[0].Instance.Names())
	assert.Equal(t, []any{"make"}, specs[0].Options["build_shell_commands"])
	assert.Equal(t, "60", specs[0].Options["timeout"])
}

func TestCompileMatrixExpansion(t *testing.T) {
	specs := compile(t, `
matrix:
  planet:
    - mercury
    - venus
  mode:
    - app
    - cases
build_shell_commands:
  - "build {planet} {mode}"
`)
	require.Len(t, specs, 4)

	// Deterministic enumeration: last declared variable varies fastest.
	var commands []string
	for _, spec := range specs {
		list := spec.Options["build_shell_commands"].([]any)
		require.Len(t, list, 1)
		commands = append(commands, list[0].(string))
	}
	assert.Equal(t, []string{
		"build mercury app",
		"build mercury cases",
		"build venus app",
		"build venus cases",
	}, commands)
}

func TestCompileConditionSelection(t *testing.T) {
	specs := compile(t, `
matrix:
  platform:
    - win32,windows
    - linux64
platform-win.*:timeout: "90"
platform-linux.*:timeout: "30"
`)
	require.Len(t, specs, 2)

	byPlatform := map[string]ResolvedSpec{}
	for _, spec := range specs {
		byPlatform[spec.Instance.Assignment()["platform"]] = spec
	}
	assert.Equal(t, "90", byPlatform["win32"].Options["timeout"])
	assert.Equal(t, "30", byPlatform["linux64"].Options["timeout"])
}

func TestCompileAliasMatching(t *testing.T) {
	// The clause pattern matches the value's aliases as well as the primary.
	specs := compile(t, `
matrix:
  moon:
    - europa,jupiter2
moon-jupiter2:display_name: "by alias"
`)
	require.Len(t, specs, 1)
	assert.Equal(t, "by alias", specs[0].Options["display_name"])
	assert.Equal(t, "europa", specs[0].Instance.Assignment()["moon"],
		"the primary value is what surfaces in the assignment")
}

func TestCompileListFlattening(t *testing.T) {
	specs := compile(t, `
matrix:
  platform:
    - win64
platform-win64:build_shell_commands:
  - conditional extra
build_shell_commands:
  - base one
  - base two
`)
	require.Len(t, specs, 1)
	// The bare list comes first regardless of declaration order.
	assert.Equal(t, []any{"base one", "base two", "conditional extra"},
		specs[0].Options["build_shell_commands"])
}

func TestCompileScalarConflict(t *testing.T) {
	err := compileErr(t, `
matrix:
  platform:
    - win64
platform-win64:timeout: "90"
platform-win.*:timeout: "120"
`)
	var conflict *OptionConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, "timeout", conflict.Option)
	assert.Equal(t, []string{"platform-win64:timeout", "platform-win.*:timeout"}, conflict.Keys)
}

func TestCompileBareAndConditionedScalarConflict(t *testing.T) {
	err := compileErr(t, `
matrix:
  platform:
    - win64
timeout: "30"
platform-win64:timeout: "90"
`)
	var conflict *OptionConflictError
	require.ErrorAs(t, err, &conflict)
}

func TestCompileTemplating(t *testing.T) {
	specs := compile(t, `
matrix:
  platform:
    - win64
display_name: "{name} {branch} {platform}"
`)
	require.Len(t, specs, 1)
	assert.Equal(t, "space master win64", specs[0].Options["display_name"])
}

func TestCompileTemplatingUnknownVariable(t *testing.T) {
	err := compileErr(t, `display_name: "{nope}"`)
	assert.ErrorContains(t, err, "nope")
}

func TestCompileExclude(t *testing.T) {
	specs := compile(t, `
matrix:
  planet:
    - mercury
    - venus
  mode:
    - app
    - cases
planet-venus:mode-cases:exclude: "yes"
display_name: "{planet} {mode}"
`)
	require.Len(t, specs, 3)
	for _, spec := range specs {
		assignment := spec.Instance.Assignment()
		assert.False(t, assignment["planet"] == "venus" && assignment["mode"] == "cases")
	}
}

func TestCompileExcludeTemplated(t *testing.T) {
	// The exclude value itself is templated before being interpreted.
	specs := compile(t, `
matrix:
  enabled:
    - "TRUE"
    - "FALSE"
exclude: "{enabled}"
`)
	require.Len(t, specs, 1)
	assert.Equal(t, "FALSE", specs[0].Instance.Assignment()["enabled"])
}

func TestCompileExcludeInvalidBoolean(t *testing.T) {
	err := compileErr(t, `
matrix:
  planet:
    - mercury
exclude: "maybe"
`)
	assert.ErrorContains(t, err, "maybe")
}

func TestCompileBooleanSpellings(t *testing.T) {
	for _, truthy := range []string{"TRUE", "true", "Yes", "1"} {
		doc, err := document.Parse([]byte("exclude: \"" + truthy + "\""))
		require.NoError(t, err)
		specs, err := Compile(doc, testRepo)
		require.NoError(t, err)
		assert.Empty(t, specs, truthy)
	}
	for _, falsy := range []string{"FALSE", "false", "No", "0"} {
		doc, err := document.Parse([]byte("exclude: \"" + falsy + "\""))
		require.NoError(t, err)
		specs, err := Compile(doc, testRepo)
		require.NoError(t, err)
		assert.Len(t, specs, 1, falsy)
	}
}

func TestCompileUnmatchableCondition(t *testing.T) {
	err := compileErr(t, `
matrix:
  platform:
    - win64
platform-osx:timeout: "90"
`)
	var unmatchable *UnmatchableConditionError
	require.ErrorAs(t, err, &unmatchable)
	assert.Equal(t, "platform-osx:timeout", unmatchable.Key)
}

func TestCompileUnmatchableUndeclaredVariable(t *testing.T) {
	err := compileErr(t, `
matrix:
  platform:
    - win64
mode-app:timeout: "90"
`)
	var unmatchable *UnmatchableConditionError
	require.ErrorAs(t, err, &unmatchable)
}

func TestCompileIgnoreUnmatchable(t *testing.T) {
	specs := compile(t, `
ignore_unmatchable: "true"
matrix:
  platform:
    - win64
platform-osx:timeout: "90"
`)
	require.Len(t, specs, 1)
	_, ok := specs[0].Options["timeout"]
	assert.False(t, ok, "unmatchable entry never resolves")
}

func TestCompileBranchClausesAreWildcardsForUnmatchable(t *testing.T) {
	// A branch clause that doesn't match the current branch is still
	// satisfiable on some branch, so it is not an error.
	specs := compile(t, `
branch-release-.*:timeout: "90"
`)
	require.Len(t, specs, 1)
	_, ok := specs[0].Options["timeout"]
	assert.False(t, ok)
}

func TestCompileBranchCondition(t *testing.T) {
	specs := compile(t, `
branch-master:display_name: "on master"
`)
	require.Len(t, specs, 1)
	assert.Equal(t, "on master", specs[0].Options["display_name"])
}

func TestCompileConditionedMatrixRejected(t *testing.T) {
	err := compileErr(t, `
branch-master:matrix:
  platform:
    - win64
`)
	var malformed *document.MalformedDocumentError
	require.ErrorAs(t, err, &malformed)
}

func TestCompileReservedOptionsNeverResolve(t *testing.T) {
	specs := compile(t, `
matrix:
  platform:
    - win64
branch_patterns:
  - master
ignore_unmatchable: "false"
timeout: "60"
`)
	require.Len(t, specs, 1)
	for _, reserved := range []string{"matrix", "exclude", "branch_patterns", "ignore_unmatchable"} {
		_, ok := specs[0].Options[reserved]
		assert.False(t, ok, reserved)
	}
	assert.Equal(t, "60", specs[0].Options["timeout"])
}

func TestCompileEmptyValueListYieldsNoJobs(t *testing.T) {
	specs := compile(t, `
ignore_unmatchable: "true"
matrix:
  platform: []
timeout: "60"
`)
	assert.Empty(t, specs)
}

func TestAcceptsBranch(t *testing.T) {
	testCases := []struct {
		name     string
		contents string
		branch   string
		expected bool
	}{
		{
			name:     "no patterns accepts everything",
			contents: `timeout: "60"`,
			branch:   "anything",
			expected: true,
		},
		{
			name:     "exact name",
			contents: "branch_patterns:\n  - master",
			branch:   "master",
			expected: true,
		},
		{
			name:     "prefix pattern accepts longer branch",
			contents: "branch_patterns:\n  - fb-.*",
			branch:   "fb-123",
			expected: true,
		},
		{
			name:     "rejected branch",
			contents: "branch_patterns:\n  - master",
			branch:   "fb-123",
			expected: false,
		},
		{
			name:     "any of several patterns",
			contents: "branch_patterns:\n  - master\n  - release-.*",
			branch:   "release-2.0",
			expected: true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			doc, err := document.Parse([]byte(tc.contents))
			require.NoError(t, err)
			accepts, err := AcceptsBranch(doc, tc.branch)
			require.NoError(t, err)
			assert.Equal(t, tc.expected, accepts)
		})
	}
}
