// Package repository describes the source control repository a compilation
// run targets. It is a plain value type: the compiler never touches the
// network, so the URL and branch are handed in by the caller.
package repository

import (
	"fmt"
	"regexp"
)

// nameFromURL extracts the repository name from its clone URL, e.g.
// "https://server/repo.git" -> "repo".
var nameFromURL = regexp.MustCompile(`.*/([^./]+)(\.git/?)?$`)

// Repository identifies a repository/branch pair used in a continuous
// integration job.
type Repository struct {
	// Clone URL, e.g. "ssh://git@server:7999/proj/repo.git".
	URL string

	// Branch the jobs are generated for.
	Branch string
}

// Name returns the repository name, derived from the clone URL.
func (r Repository) Name() string {
	m := nameFromURL.FindStringSubmatch(r.URL)
	if m == nil {
		return ""
	}
	return m[1]
}

// JobGroup returns the prefix shared by every job generated for this
// repository/branch pair. The publisher uses it to find stale jobs that
// belong to the same group on the server.
func (r Repository) JobGroup() string {
	return r.Name() + "-" + r.Branch
}

func (r Repository) String() string {
	return fmt.Sprintf("%s@%s", r.URL, r.Branch)
}
