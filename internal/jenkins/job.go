// Package jenkins serializes resolved job specifications into Jenkins
// config.xml documents and publishes them to a Jenkins server.
//
// Each recognized option has one renderer, registered by name; the registry
// is the single source of truth for the supported option surface and is
// validated against the document option catalog at startup. Rendering order
// is fixed by the registry, not by option declaration order in the document,
// so the emitted XML is deterministic.
package jenkins

import (
	"fmt"
	"strings"

	"github.com/vk/jobsmith/internal/document"
	"github.com/vk/jobsmith/internal/repository"
)

// Job is one generated Jenkins job: its server-side name and the config.xml
// contents.
type Job struct {
	Name       string
	Repository repository.Repository
	XML        string
}

// UnsupportedOptionError reports a document option with no registered
// renderer.
type UnsupportedOptionError struct {
	Option string
}

func (e *UnsupportedOptionError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "received unknown option %q.\n\nAvailable options are:\n", e.Option)
	for _, name := range document.KnownOptions() {
		b.WriteString("- " + name + "\n")
	}
	return strings.TrimSuffix(b.String(), "\n")
}
