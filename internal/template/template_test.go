package template

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vk/jobsmith/internal/document"
)

func TestExpandString(t *testing.T) {
	vars := map[string]string{
		"name":     "space",
		"branch":   "master",
		"platform": "win64",
	}

	testCases := []struct {
		name      string
		input     string
		expected  string
		expectErr bool
	}{
		{name: "no placeholders", input: "make all", expected: "make all"},
		{name: "single placeholder", input: "echo {name}", expected: "echo space"},
		{name: "multiple placeholders", input: "{name}-{branch}-{platform}", expected: "space-master-win64"},
		{name: "adjacent placeholders", input: "{name}{branch}", expected: "spacemaster"},
		{name: "escaped braces", input: "dict{{a: 1}}", expected: "dict{a: 1}"},
		{name: "escaped brace before placeholder", input: "{{{name}}}", expected: "{space}"},
		{name: "empty string", input: "", expected: ""},
		{name: "error - unknown variable", input: "echo {unknown}", expectErr: true},
		{name: "error - unclosed placeholder", input: "echo {name", expectErr: true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			result, err := ExpandString(tc.input, vars)
			if tc.expectErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.expected, result)
		})
	}
}

func TestExpandStringUnknownVariableError(t *testing.T) {
	_, err := ExpandString("run {phase}", map[string]string{})
	var unknownErr *UnknownVariableError
	require.ErrorAs(t, err, &unknownErr)
	assert.Equal(t, "phase", unknownErr.Name)
	assert.Equal(t, "run {phase}", unknownErr.Template)
}

func TestExpandWalksListsAndMaps(t *testing.T) {
	vars := map[string]string{"platform": "win64", "name": "space"}

	m := document.NewMap()
	m.Set("label-{platform}", "build {name}")

	value := []any{
		"echo {platform}",
		[]any{"nested {name}"},
		m,
	}

	result, err := Expand(value, vars)
	require.NoError(t, err)

	list, ok := result.([]any)
	require.True(t, ok)
	require.Len(t, list, 3)
	assert.Equal(t, "echo win64", list[0])
	assert.Equal(t, []any{"nested space"}, list[1])

	expanded, ok := list[2].(*document.Map)
	require.True(t, ok)
	assert.Equal(t, []string{"label-win64"}, expanded.Keys())
	got, ok := expanded.Get("label-win64")
	require.True(t, ok)
	assert.Equal(t, "build space", got)
}

func TestExpandPropagatesErrors(t *testing.T) {
	_, err := Expand([]any{"ok", "bad {missing}"}, map[string]string{})
	require.Error(t, err)
}
