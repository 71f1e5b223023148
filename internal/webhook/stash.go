package webhook

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/vk/jobsmith/internal/ctxlog"
	"github.com/vk/jobsmith/internal/document"
	"github.com/vk/jobsmith/internal/settings"
)

// StashClient fetches repository data from a Stash (Bitbucket Server)
// instance over its REST API.
type StashClient struct {
	baseURL  string
	username string
	password string
	http     *http.Client
}

// NewStashClient returns a client for the configured Stash instance.
func NewStashClient(cfg *settings.Stash) *StashClient {
	return &StashClient{
		baseURL:  strings.TrimRight(cfg.URL, "/"),
		username: cfg.Username,
		password: cfg.Password,
		http:     &http.Client{Timeout: 30 * time.Second},
	}
}

// FileContents fetches one file of a repository at a given ref, using the
// raw endpoint that returns the file body as plain text. The second return
// is false when the file does not exist at that ref.
func (c *StashClient) FileContents(ctx context.Context, projectKey, slug, path, ref string) ([]byte, bool, error) {
	fileURL := fmt.Sprintf("%s/projects/%s/repos/%s/raw/%s?at=%s",
		c.baseURL, url.PathEscape(projectKey), url.PathEscape(slug), path, url.QueryEscape(ref))
	body, status, err := c.get(ctx, fileURL)
	if err != nil {
		return nil, false, err
	}
	if status == http.StatusNotFound {
		return nil, false, nil
	}
	if status != http.StatusOK {
		return nil, false, fmt.Errorf("stash returned %d for %s", status, fileURL)
	}
	return body, true, nil
}

// CloneURL returns the repository's SSH clone url, read from the repository
// info endpoint.
func (c *StashClient) CloneURL(ctx context.Context, projectKey, slug string) (string, error) {
	infoURL := fmt.Sprintf("%s/rest/api/1.0/projects/%s/repos/%s",
		c.baseURL, url.PathEscape(projectKey), url.PathEscape(slug))
	body, status, err := c.get(ctx, infoURL)
	if err != nil {
		return "", err
	}
	if status != http.StatusOK {
		return "", fmt.Errorf("stash returned %d for %s", status, infoURL)
	}

	var info struct {
		Links struct {
			Clone []struct {
				Name string `json:"name"`
				Href string `json:"href"`
			} `json:"clone"`
		} `json:"links"`
	}
	if err := json.Unmarshal(body, &info); err != nil {
		return "", fmt.Errorf("decoding stash repository info: %w", err)
	}
	for _, clone := range info.Links.Clone {
		if clone.Name == "ssh" {
			return clone.Href, nil
		}
	}
	return "", fmt.Errorf("could not find the ssh clone url for %s/%s in the stash response", projectKey, slug)
}

func (c *StashClient) get(ctx context.Context, rawURL string) ([]byte, int, error) {
	logger := ctxlog.FromContext(ctx)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("building stash request: %w", err)
	}
	if c.username != "" {
		req.SetBasicAuth(c.username, c.password)
	}
	logger.Debug("Stash API request", "url", rawURL)
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("stash request failed: %w", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, fmt.Errorf("reading stash response: %w", err)
	}
	return body, resp.StatusCode, nil
}

// stashFiles is the part of StashClient push parsing needs; tests substitute
// a fake.
type stashFiles interface {
	FileContents(ctx context.Context, projectKey, slug, path, ref string) ([]byte, bool, error)
	CloneURL(ctx context.Context, projectKey, slug string) (string, error)
}

type stashPush struct {
	EventKey string `json:"eventKey"`
	Actor    struct {
		EmailAddress string `json:"emailAddress"`
	} `json:"actor"`
	Repository struct {
		Slug    string `json:"slug"`
		Project struct {
			Key string `json:"key"`
		} `json:"project"`
	} `json:"repository"`
	Changes []struct {
		Ref struct {
			ID string `json:"id"`
		} `json:"ref"`
		ToHash string `json:"toHash"`
	} `json:"changes"`
}

const branchRefPrefix = "refs/heads/"

// ParseStashPush turns a Stash push event into one request per pushed
// branch. Changes to refs other than branches (tags for instance) are
// skipped.
func ParseStashPush(ctx context.Context, payload []byte, files stashFiles) ([]PushRequest, error) {
	var push stashPush
	if err := json.Unmarshal(payload, &push); err != nil {
		return nil, fmt.Errorf("invalid stash push payload: %w", err)
	}
	if push.EventKey == "" {
		return nil, fmt.Errorf("invalid stash push payload: missing eventKey")
	}

	projectKey := push.Repository.Project.Key
	slug := push.Repository.Slug

	var requests []PushRequest
	for _, change := range push.Changes {
		branch, ok := strings.CutPrefix(change.Ref.ID, branchRefPrefix)
		if !ok {
			continue
		}

		contents, exists, err := files.FileContents(ctx, projectKey, slug, document.Filename, change.ToHash)
		if err != nil {
			return nil, err
		}
		cloneURL, err := files.CloneURL(ctx, projectKey, slug)
		if err != nil {
			return nil, err
		}

		requests = append(requests, PushRequest{
			Owner:        projectKey,
			Repo:         slug,
			PusherEmail:  push.Actor.EmailAddress,
			CloneURL:     cloneURL,
			Branch:       branch,
			Commit:       change.ToHash,
			FileContents: contents,
			FileExists:   exists,
		})
	}
	return requests, nil
}
