package versioning

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"

	"apod_pipeline/internal/domain"
)

// DVC tracks the flat file with the dvc CLI, producing a pointer metadata
// file (<file>.dvc) holding the content hash and size.
type DVC struct {
	runner  CommandRunner
	workdir string
	bin     string
	logger  *slog.Logger
}

func NewDVC(runner CommandRunner, workdir, bin string, logger *slog.Logger) *DVC {
	return &DVC{
		runner:  runner,
		workdir: workdir,
		bin:     bin,
		logger:  logger.With("versioning", "dvc"),
	}
}

// Track registers filePath with dvc and returns the pointer file path.
// Initializes the dvc store first when the workdir lacks one (a no-op when
// already initialized). Hard failures come back as VersioningError.
func (d *DVC) Track(ctx context.Context, filePath string) (string, error) {
	if _, err := os.Stat(filepath.Join(d.workdir, ".dvc")); os.IsNotExist(err) {
		out, err := d.runner.Run(ctx, d.workdir, d.bin, "init", "--no-scm")
		if err != nil {
			return "", &domain.VersioningError{Step: "dvc", Err: err}
		}
		d.logger.Info("initialized dvc store", "output", out)
	}

	if _, err := d.runner.Run(ctx, d.workdir, d.bin, "add", filePath); err != nil {
		return "", &domain.VersioningError{Step: "dvc", Err: err}
	}

	pointerPath := filePath + ".dvc"
	if _, err := os.Stat(pointerPathInWorkdir(d.workdir, pointerPath)); err != nil {
		return "", &domain.VersioningError{Step: "dvc", Err: err}
	}

	d.logger.Info("tracked file", "file", filePath, "pointer", pointerPath)

	return pointerPath, nil
}

func pointerPathInWorkdir(workdir, pointerPath string) string {
	if filepath.IsAbs(pointerPath) {
		return pointerPath
	}
	return filepath.Join(workdir, pointerPath)
}
