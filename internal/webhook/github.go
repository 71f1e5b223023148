package webhook

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
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

const signatureHeader = "x-hub-signature-256"

// SignatureError means a webhook delivery could not be authenticated. The
// server answers these with 403 rather than 500.
type SignatureError struct {
	Reason string
}

func (e *SignatureError) Error() string {
	return "signature verification failed: " + e.Reason
}

// VerifySignature checks the delivery's HMAC-SHA256 signature against the
// shared webhook secret.
//
// https://docs.github.com/en/developers/webhooks-and-events/webhooks/webhook-events-and-payloads#delivery-headers
func VerifySignature(header http.Header, body []byte, secret string) error {
	got := header.Get(signatureHeader)
	if got == "" {
		return &SignatureError{Reason: fmt.Sprintf("missing %q entry in headers", signatureHeader)}
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	want := "sha256=" + hex.EncodeToString(mac.Sum(nil))
	if !hmac.Equal([]byte(got), []byte(want)) {
		return &SignatureError{Reason: "computed signature does not match the one in the header"}
	}
	return nil
}

// GitHubClient fetches repository files through the GitHub contents API.
type GitHubClient struct {
	baseURL string
	token   string
	http    *http.Client
}

// NewGitHubClient returns a client authenticating with the configured token.
func NewGitHubClient(cfg *settings.GitHub) *GitHubClient {
	return &GitHubClient{
		baseURL: "https://api.github.com",
		token:   cfg.Token,
		http:    &http.Client{Timeout: 30 * time.Second},
	}
}

// FileContents fetches one file of a repository at a given ref. The second
// return is false when the file does not exist at that ref.
func (c *GitHubClient) FileContents(ctx context.Context, owner, repo, path, ref string) ([]byte, bool, error) {
	logger := ctxlog.FromContext(ctx)
	fileURL := fmt.Sprintf("%s/repos/%s/%s/contents/%s?ref=%s",
		c.baseURL, url.PathEscape(owner), url.PathEscape(repo), path, url.QueryEscape(ref))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fileURL, nil)
	if err != nil {
		return nil, false, fmt.Errorf("building github request: %w", err)
	}
	req.SetBasicAuth("", c.token)

	logger.Debug("GitHub API request", "url", fileURL)
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, false, fmt.Errorf("github request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, false, nil
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, false, fmt.Errorf("reading github response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, false, fmt.Errorf("github returned %d for %s", resp.StatusCode, fileURL)
	}

	var payload struct {
		Content  string `json:"content"`
		Encoding string `json:"encoding"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, false, fmt.Errorf("decoding github contents response: %w", err)
	}
	if payload.Encoding != "base64" {
		return nil, false, fmt.Errorf("unknown encoding when getting %s: %s", path, payload.Encoding)
	}
	// The contents API wraps the base64 body in newlines.
	contents, err := base64.StdEncoding.DecodeString(strings.ReplaceAll(payload.Content, "\n", ""))
	if err != nil {
		return nil, false, fmt.Errorf("decoding %s contents: %w", path, err)
	}
	return contents, true, nil
}

// gitHubFiles is the part of GitHubClient push parsing needs; tests
// substitute a fake.
type gitHubFiles interface {
	FileContents(ctx context.Context, owner, repo, path, ref string) ([]byte, bool, error)
}

type gitHubPush struct {
	Ref        string `json:"ref"`
	Repository struct {
		Name   string `json:"name"`
		SSHURL string `json:"ssh_url"`
		Owner  struct {
			Login string `json:"login"`
		} `json:"owner"`
	} `json:"repository"`
	HeadCommit *struct {
		ID string `json:"id"`
	} `json:"head_commit"`
	Pusher struct {
		Email string `json:"email"`
	} `json:"pusher"`
}

// ParseGitHubPush verifies the delivery signature and turns a GitHub push
// event into a request. A push without a head commit means the branch was
// deleted; the request then carries no file and the branch's jobs get
// removed.
func ParseGitHubPush(ctx context.Context, header http.Header, payload []byte, secret string, files gitHubFiles) ([]PushRequest, error) {
	if err := VerifySignature(header, payload, secret); err != nil {
		return nil, err
	}

	var push gitHubPush
	if err := json.Unmarshal(payload, &push); err != nil {
		return nil, fmt.Errorf("invalid github push payload: %w", err)
	}

	owner := push.Repository.Owner.Login
	repo := push.Repository.Name
	branch := strings.TrimPrefix(push.Ref, branchRefPrefix)

	request := PushRequest{
		Owner:       owner,
		Repo:        repo,
		PusherEmail: push.Pusher.Email,
		CloneURL:    push.Repository.SSHURL,
		Branch:      branch,
	}
	if push.HeadCommit != nil {
		request.Commit = push.HeadCommit.ID
		contents, exists, err := files.FileContents(ctx, owner, repo, document.Filename, request.Commit)
		if err != nil {
			return nil, err
		}
		request.FileContents = contents
		request.FileExists = exists
	}
	return []PushRequest{request}, nil
}
