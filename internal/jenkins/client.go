package jenkins

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
)

// StatusError is an HTTP error response from the Jenkins server.
type StatusError struct {
	StatusCode int
	URL        string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("jenkins returned %d for %s", e.StatusCode, e.URL)
}

// transient reports whether the status is worth retrying. Jenkins behind a
// proxy intermittently answers 403 or 502 to otherwise valid requests.
func (e *StatusError) transient() bool {
	return e.StatusCode == http.StatusForbidden || e.StatusCode == http.StatusBadGateway
}

// Client talks to one Jenkins server over its REST API.
type Client struct {
	baseURL  string
	username string
	password string
	http     *http.Client
}

// NewClient returns a client for the Jenkins server at baseURL, using HTTP
// basic auth when username is not empty.
func NewClient(baseURL, username, password string) *Client {
	return &Client{
		baseURL:  strings.TrimRight(baseURL, "/"),
		username: username,
		password: password,
		http:     &http.Client{Timeout: 60 * time.Second},
	}
}

// ListJobs returns the names of every job on the server.
func (c *Client) ListJobs(ctx context.Context) ([]string, error) {
	body, err := c.do(ctx, http.MethodGet, "/api/json?tree=jobs[name]", "", nil)
	if err != nil {
		return nil, err
	}
	var payload struct {
		Jobs []struct {
			Name string `json:"name"`
		} `json:"jobs"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("decoding jenkins job list: %w", err)
	}
	names := make([]string, 0, len(payload.Jobs))
	for _, job := range payload.Jobs {
		names = append(names, job.Name)
	}
	return names, nil
}

// JobConfig fetches a job's config.xml.
func (c *Client) JobConfig(ctx context.Context, name string) (string, error) {
	body, err := c.do(ctx, http.MethodGet, "/job/"+url.PathEscape(name)+"/config.xml", "", nil)
	if err != nil {
		return "", err
	}
	return string(body), nil
}

// CreateJob creates a new job from its config.xml contents.
func (c *Client) CreateJob(ctx context.Context, name, configXML string) error {
	path := "/createItem?name=" + url.QueryEscape(name)
	_, err := c.do(ctx, http.MethodPost, path, "text/xml", strings.NewReader(configXML))
	return err
}

// ReconfigJob replaces an existing job's config.xml.
func (c *Client) ReconfigJob(ctx context.Context, name, configXML string) error {
	path := "/job/" + url.PathEscape(name) + "/config.xml"
	_, err := c.do(ctx, http.MethodPost, path, "text/xml", strings.NewReader(configXML))
	return err
}

// DeleteJob deletes a job.
func (c *Client) DeleteJob(ctx context.Context, name string) error {
	_, err := c.do(ctx, http.MethodPost, "/job/"+url.PathEscape(name)+"/doDelete", "", nil)
	return err
}

func (c *Client) do(ctx context.Context, method, path, contentType string, body io.Reader) ([]byte, error) {
	logger := ctxlog.FromContext(ctx)

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("building jenkins request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if c.username != "" {
		req.SetBasicAuth(c.username, c.password)
	}

	logger.Debug("Jenkins API request", "method", method, "path", path)
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("jenkins request failed: %w", err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading jenkins response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &StatusError{StatusCode: resp.StatusCode, URL: c.baseURL + path}
	}
	return payload, nil
}
