// Package settings loads the jobsmith settings file.
//
// The settings file is HCL. Credentials usually live in the environment
// rather than on disk, so expressions can reference any environment variable
// through the `env` object:
//
//	jenkins {
//	  url      = "https://jenkins.example.com"
//	  username = env.JENKINS_USERNAME
//	  password = env.JENKINS_PASSWORD
//	}
package settings

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/zclconf/go-cty/cty"

	"github.com/vk/jobsmith/internal/ctxlog"
)

// DefaultListenAddress is where the webhook server listens when the settings
// file does not say otherwise.
const DefaultListenAddress = ":5000"

// Settings is the decoded settings file.
type Settings struct {
	Server  *Server  `hcl:"server,block"`
	Jenkins *Jenkins `hcl:"jenkins,block"`
	Stash   *Stash   `hcl:"stash,block"`
	GitHub  *GitHub  `hcl:"github,block"`
}

// Server configures the webhook HTTP server.
type Server struct {
	ListenAddress string `hcl:"listen_address,optional"`
}

// Jenkins configures the Jenkins server jobs are published to.
type Jenkins struct {
	URL      string `hcl:"url"`
	Username string `hcl:"username,optional"`
	Password string `hcl:"password,optional"`
}

// Stash configures the Stash (Bitbucket Server) instance push events come
// from and job files are fetched from.
type Stash struct {
	URL      string `hcl:"url"`
	Username string `hcl:"username,optional"`
	Password string `hcl:"password,optional"`
}

// GitHub configures GitHub webhook verification and file fetching.
type GitHub struct {
	Token         string `hcl:"token,optional"`
	WebhookSecret string `hcl:"webhook_secret,optional"`
}

// Load parses and decodes the settings file at path.
func Load(ctx context.Context, path string) (*Settings, error) {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("Loading settings file.", "path", path)

	parser := hclparse.NewParser()
	file, diags := parser.ParseHCLFile(path)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse settings file %s: %s", path, diags.Error())
	}

	var settings Settings
	diags = gohcl.DecodeBody(file.Body, envEvalContext(), &settings)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode settings file %s: %s", path, diags.Error())
	}

	settings.applyDefaults()
	logger.Debug("Successfully loaded settings file.", "path", path)
	return &settings, nil
}

func (s *Settings) applyDefaults() {
	if s.Server == nil {
		s.Server = &Server{}
	}
	if s.Server.ListenAddress == "" {
		s.Server.ListenAddress = DefaultListenAddress
	}
	if s.Jenkins != nil {
		s.Jenkins.URL = strings.TrimRight(s.Jenkins.URL, "/")
	}
	if s.Stash != nil {
		s.Stash.URL = strings.TrimRight(s.Stash.URL, "/")
	}
}

// RequireJenkins returns the Jenkins settings or an error when the block is
// missing. Publishing to a server is impossible without it.
func (s *Settings) RequireJenkins() (*Jenkins, error) {
	if s.Jenkins == nil || s.Jenkins.URL == "" {
		return nil, fmt.Errorf("settings file has no jenkins block with a url")
	}
	return s.Jenkins, nil
}

// RequireStash returns the Stash settings or an error when the block is
// missing.
func (s *Settings) RequireStash() (*Stash, error) {
	if s.Stash == nil || s.Stash.URL == "" {
		return nil, fmt.Errorf("settings file has no stash block with a url")
	}
	return s.Stash, nil
}

// envEvalContext exposes the process environment as the `env` object.
func envEvalContext() *hcl.EvalContext {
	env := map[string]cty.Value{}
	for _, entry := range os.Environ() {
		name, value, ok := strings.Cut(entry, "=")
		if !ok || name == "" {
			continue
		}
		env[name] = cty.StringVal(value)
	}
	return &hcl.EvalContext{
		Variables: map[string]cty.Value{
			"env": cty.ObjectVal(env),
		},
	}
}
