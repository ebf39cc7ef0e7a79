package engine

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"

	"github.com/fomightez/pdbepisa-binder/pkg/artifacts"
)

// Resetter deletes artifacts by naming convention. It walks the work
// directory and removes whatever matches, so an empty or missing directory is
// a no-op rather than an error.
type Resetter struct {
	workDir      string
	namer        *artifacts.Namer
	resourceName string

	// protected names are never removed, whatever they match
	protected map[string]bool

	logger  zerolog.Logger
	metrics Metrics
}

// NewResetter creates a resetter. Names in protect, such as the identifier
// list, survive every scope.
func NewResetter(
	workDir string,
	namer *artifacts.Namer,
	resourceName string,
	protect []string,
	logger zerolog.Logger,
	metrics Metrics,
) *Resetter {
	protected := make(map[string]bool, len(protect))
	for _, name := range protect {
		if name != "" {
			protected[filepath.Base(name)] = true
		}
	}
	return &Resetter{
		workDir:      workDir,
		namer:        namer,
		resourceName: resourceName,
		protected:    protected,
		logger:       logger.With().Str("component", "reset").Logger(),
		metrics:      metricsOrNop(metrics),
	}
}

// Reset removes every artifact in scope and returns the removed names.
func (r *Resetter) Reset(ctx context.Context, scope ResetScope) ([]string, error) {
	if err := scope.Validate(); err != nil {
		return nil, NewInvalidError("invalid reset scope", err)
	}

	entries, err := os.ReadDir(r.workDir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			r.logger.Debug().Str("workdir", r.workDir).Msg("Work directory absent, nothing to reset")
			return nil, nil
		}
		return nil, NewInternalError("failed to list work directory", err)
	}

	removed := make([]string, 0)
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return removed, err
		}
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if r.protected[name] || !r.matches(name, scope) {
			continue
		}

		ok, err := artifacts.RemoveIfExists(filepath.Join(r.workDir, name))
		if err != nil {
			return removed, NewInternalError(fmt.Sprintf("failed to remove %s", name), err)
		}
		if ok {
			removed = append(removed, name)
		}
	}

	r.metrics.RecordReset(scope, len(removed))
	r.logger.Info().
		Str("scope", string(scope)).
		Int("removed", len(removed)).
		Msg("Reset complete")
	return removed, nil
}

func (r *Resetter) matches(name string, scope ResetScope) bool {
	if r.generated(name) {
		return true
	}
	if scope != ScopeAll {
		return false
	}

	if name == r.resourceName {
		return true
	}
	if _, ok := r.namer.IsIntermediate(name); ok {
		return true
	}
	if base, ok := artifacts.PartialBase(name); ok {
		return base == r.resourceName || r.generated(base)
	}
	return false
}

func (r *Resetter) generated(name string) bool {
	if _, ok := r.namer.IsTrigger(name); ok {
		return true
	}
	if _, ok := r.namer.IsOutput(name); ok {
		return true
	}
	return r.namer.IsArchive(name)
}
