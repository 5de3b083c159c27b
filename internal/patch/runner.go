package patch

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
)

// Applier runs one patch directory.
type Applier interface {
	Apply(ctx context.Context, patchDir string) error
}

// Runner applies every patch directory under Root in name order, skipping the
// ones the status ledger marks complete. The ledger is saved after every
// patch. It stops at the first failure.
type Runner struct {
	Root    string
	Applier Applier
	Logger  *log.Logger
}

func (r *Runner) StatusPath() string {
	return filepath.Join(r.Root, StatusFile)
}

func (r *Runner) Run(ctx context.Context) error {
	logger := r.Logger
	if logger == nil {
		logger = log.Default()
	}

	status, err := LoadStatus(r.StatusPath())
	if err != nil {
		return err
	}
	// Failures only describe the previous run.
	status.Failed = map[string]string{}

	entries, err := os.ReadDir(r.Root)
	if err != nil {
		return fmt.Errorf("failed to list patches: %w", err)
	}

	for _, entry := range entries {
		name := entry.Name()
		if status.Complete[name] {
			logger.Info("patch already complete", "patch", name)
			continue
		}
		if !entry.IsDir() {
			continue
		}

		if err := r.Applier.Apply(ctx, filepath.Join(r.Root, name)); err != nil {
			logger.Error("patch failed", "patch", name, "err", err)
			status.Failed[name] = err.Error()
			if serr := status.Save(r.StatusPath()); serr != nil {
				logger.Error("failed to save status", "err", serr)
			}
			return fmt.Errorf("patch %s: %w", name, err)
		}
		status.Complete[name] = true
		if err := status.Save(r.StatusPath()); err != nil {
			return err
		}
	}

	return status.Save(r.StatusPath())
}
