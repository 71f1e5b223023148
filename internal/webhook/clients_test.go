package webhook

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vk/jobsmith/internal/settings"
)

func TestStashClientFileContents(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/projects/TEAM/repos/space/raw/.jobsmith.yaml", r.URL.Path)
		switch r.URL.Query().Get("at") {
		case "8522b06a":
			io.WriteString(w, "build_shell_commands:\n- make\n")
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	client := NewStashClient(&settings.Stash{URL: server.URL})

	contents, exists, err := client.FileContents(context.Background(), "TEAM", "space", ".jobsmith.yaml", "8522b06a")
	require.NoError(t, err)
	assert.True(t, exists)
	assert.Equal(t, "build_shell_commands:\n- make\n", string(contents))

	_, exists, err = client.FileContents(context.Background(), "TEAM", "space", ".jobsmith.yaml", "missing")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestStashClientCloneURL(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/rest/api/1.0/projects/TEAM/repos/space", r.URL.Path)
		io.WriteString(w, `{"links": {"clone": [
			{"name": "http", "href": "https://server/scm/team/space.git"},
			{"name": "ssh", "href": "ssh://git@server:7999/team/space.git"}
		]}}`)
	}))
	defer server.Close()

	client := NewStashClient(&settings.Stash{URL: server.URL + "/"})
	cloneURL, err := client.CloneURL(context.Background(), "TEAM", "space")
	require.NoError(t, err)
	assert.Equal(t, "ssh://git@server:7999/team/space.git", cloneURL)
}

func TestGitHubClientFileContents(t *testing.T) {
	document := "build_shell_commands:\n- make\n"
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/repos/team/space/contents/.jobsmith.yaml", r.URL.Path)
		_, token, ok := r.BasicAuth()
		require.True(t, ok)
		assert.Equal(t, "gh-token", token)
		switch r.URL.Query().Get("ref") {
		case "0599d700":
			// The contents API wraps the base64 body in newlines.
			encoded := base64.StdEncoding.EncodeToString([]byte(document))
			fmt.Fprintf(w, `{"content": "%s\n", "encoding": "base64"}`, encoded)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	client := NewGitHubClient(&settings.GitHub{Token: "gh-token"})
	client.baseURL = server.URL

	contents, exists, err := client.FileContents(context.Background(), "team", "space", ".jobsmith.yaml", "0599d700")
	require.NoError(t, err)
	assert.True(t, exists)
	assert.Equal(t, document, string(contents))

	_, exists, err = client.FileContents(context.Background(), "team", "space", ".jobsmith.yaml", "missing")
	require.NoError(t, err)
	assert.False(t, exists)
}
