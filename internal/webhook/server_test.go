package webhook

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vk/jobsmith/internal/jenkins"
)

type fakeProcessor struct {
	result    jenkins.PublishResult
	err       error
	processed []PushRequest
}

func (f *fakeProcessor) Process(ctx context.Context, req PushRequest) (jenkins.PublishResult, error) {
	f.processed = append(f.processed, req)
	return f.result, f.err
}

func stubParser(requests []PushRequest, err error) Parser {
	return func(ctx context.Context, header http.Header, body []byte) ([]PushRequest, error) {
		return requests, err
	}
}

func serve(t *testing.T, server *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	recorder := httptest.NewRecorder()
	server.Handler().ServeHTTP(recorder, req)
	return recorder
}

func TestServerVersionBanner(t *testing.T) {
	server := NewServer("jobsmith 1.0.0", stubParser(nil, nil), stubParser(nil, nil), &fakeProcessor{})

	for _, path := range []string{"/", "/stash", "/github"} {
		resp := serve(t, server, http.MethodGet, path, "")
		assert.Equal(t, http.StatusOK, resp.Code)
		assert.Equal(t, "jobsmith 1.0.0", resp.Body.String())
	}

	// Stash's "Test Connection" button sends an empty POST.
	resp := serve(t, server, http.MethodPost, "/", "")
	assert.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, "jobsmith 1.0.0", resp.Body.String())
}

func TestServerRejectsNonJSONBody(t *testing.T) {
	server := NewServer("v", stubParser(nil, nil), stubParser(nil, nil), &fakeProcessor{})

	resp := serve(t, server, http.MethodPost, "/stash", "key=value&another=1")
	assert.Equal(t, http.StatusBadRequest, resp.Code)
	assert.Contains(t, resp.Body.String(), "only posts in JSON format accepted")
}

func TestServerReportsJobChanges(t *testing.T) {
	processor := &fakeProcessor{result: jenkins.PublishResult{
		New:     []string{"space-master-venus"},
		Updated: []string{"space-master-mercury"},
		Deleted: []string{"space-master-pluto"},
	}}
	requests := []PushRequest{{Owner: "TEAM", Repo: "space", Branch: "master"}}
	server := NewServer("v", stubParser(requests, nil), stubParser(nil, nil), processor)

	resp := serve(t, server, http.MethodPost, "/stash", `{"eventKey": "repo:refs_changed"}`)
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t,
		"NEW - space-master-venus\nUPD - space-master-mercury\nDEL - space-master-pluto",
		resp.Body.String())
	require.Len(t, processor.processed, 1)
	assert.Equal(t, "master", processor.processed[0].Branch)
}

func TestServerSignatureFailure(t *testing.T) {
	parseGitHub := stubParser(nil, &SignatureError{Reason: "computed signature does not match the one in the header"})
	server := NewServer("v", stubParser(nil, nil), parseGitHub, &fakeProcessor{})

	resp := serve(t, server, http.MethodPost, "/github", `{"ref": "refs/heads/master"}`)
	assert.Equal(t, http.StatusForbidden, resp.Code)
	assert.Contains(t, resp.Body.String(), "signature verification failed")
}

func TestServerParseFailure(t *testing.T) {
	server := NewServer("v", stubParser(nil, errors.New("stash is down")), stubParser(nil, nil), &fakeProcessor{})

	resp := serve(t, server, http.MethodPost, "/", `{"eventKey": "repo:refs_changed"}`)
	assert.Equal(t, http.StatusInternalServerError, resp.Code)
	assert.Contains(t, resp.Body.String(), "stash is down")
}

func TestServerProcessFailure(t *testing.T) {
	processor := &fakeProcessor{err: errors.New("jenkins unreachable")}
	requests := []PushRequest{{Owner: "TEAM", Repo: "space", Branch: "master"}}
	server := NewServer("v", stubParser(requests, nil), stubParser(nil, nil), processor)

	resp := serve(t, server, http.MethodPost, "/", `{"eventKey": "repo:refs_changed"}`)
	assert.Equal(t, http.StatusInternalServerError, resp.Code)
	assert.Contains(t, resp.Body.String(), "jenkins unreachable")
}
