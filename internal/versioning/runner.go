// Package versioning wraps the content-versioning (dvc) and code-versioning
// (git) CLIs as black-box synchronous commands. Both steps are soft failure
// domains: the pipeline records their outcome but data durability never
// depends on them.
package versioning

import (
	"context"
	"os/exec"
	"strings"
)

// Outcome is the tri-state result of one versioning step.
type Outcome string

const (
	OutcomeDone     Outcome = "done"
	OutcomeNoChange Outcome = "no_change"
	OutcomeFailed   Outcome = "failed"
)

// CommandRunner executes one external command in a working directory and
// returns its combined output.
type CommandRunner interface {
	Run(ctx context.Context, dir string, name string, args ...string) (string, error)
}

type execRunner struct{}

// NewExecRunner returns a CommandRunner backed by os/exec.
func NewExecRunner() CommandRunner {
	return execRunner{}
}

func (execRunner) Run(ctx context.Context, dir string, name string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	out, err := cmd.CombinedOutput()
	return strings.TrimSpace(string(out)), err
}
