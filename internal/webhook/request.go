// Package webhook receives push events from Stash and GitHub and keeps the
// Jenkins jobs of the pushed branches in sync with each repository's job
// file.
package webhook

import "fmt"

// PushRequest is everything needed to synchronize the jobs of one branch of
// one repository: where to clone it from, which branch moved, and the job
// file contents at the pushed commit. FileExists is false when the branch
// was deleted or carries no job file; its jobs are then removed.
type PushRequest struct {
	Owner        string
	Repo         string
	PusherEmail  string
	CloneURL     string
	Branch       string
	Commit       string
	FileContents []byte
	FileExists   bool
}

func (r PushRequest) String() string {
	return fmt.Sprintf("%s/%s@%s (%s)", r.Owner, r.Repo, r.Branch, r.Commit)
}
