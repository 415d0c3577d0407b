package versioning

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"apod_pipeline/internal/domain"
)

// Git stages and commits the pointer metadata file. Fails softly: an
// uninitialized repository or a no-op commit is not an error.
type Git struct {
	runner  CommandRunner
	workdir string
	bin     string
	logger  *slog.Logger
	now     func() time.Time
}

func NewGit(runner CommandRunner, workdir, bin string, logger *slog.Logger) *Git {
	return &Git{
		runner:  runner,
		workdir: workdir,
		bin:     bin,
		logger:  logger.With("versioning", "git"),
		now:     time.Now,
	}
}

// CommitPointer stages pointerPath and commits it with a timestamped
// message. Returns the step outcome: no-change covers both a missing
// repository and an empty commit.
func (g *Git) CommitPointer(ctx context.Context, pointerPath string) (Outcome, error) {
	if _, err := os.Stat(filepath.Join(g.workdir, ".git")); os.IsNotExist(err) {
		g.logger.Warn("git repository not initialized, skipping commit")
		return OutcomeNoChange, nil
	}

	if out, err := g.runner.Run(ctx, g.workdir, g.bin, "add", pointerPath); err != nil {
		return OutcomeFailed, &domain.VersioningError{
			Step: "git",
			Err:  fmt.Errorf("stage pointer: %w (%s)", err, out),
		}
	}

	msg := fmt.Sprintf("Add data version pointer - %s", g.now().Format("2006-01-02 15:04:05"))
	out, err := g.runner.Run(ctx, g.workdir, g.bin, "commit", "-m", msg)
	if err != nil {
		if isNothingToCommit(out) {
			g.logger.Info("nothing new to commit")
			return OutcomeNoChange, nil
		}
		return OutcomeFailed, &domain.VersioningError{
			Step: "git",
			Err:  fmt.Errorf("commit pointer: %w (%s)", err, out),
		}
	}

	g.logger.Info("committed pointer", "pointer", pointerPath)

	return OutcomeDone, nil
}

func isNothingToCommit(output string) bool {
	out := strings.ToLower(output)
	return strings.Contains(out, "nothing to commit") ||
		strings.Contains(out, "no changes added to commit")
}
