//go:build !unix

package runner

import "os/exec"

// KillGroupOnCancel is a no-op where process groups are unavailable; only the
// direct child is killed on cancellation.
func KillGroupOnCancel(cmd *exec.Cmd) {}
