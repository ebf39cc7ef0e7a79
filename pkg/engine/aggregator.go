package engine

import (
	"archive/tar"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/fomightez/pdbepisa-binder/pkg/artifacts"
)

// Aggregator bundles every expected output into one timestamped archive. It
// refuses to run on an incomplete output set.
type Aggregator struct {
	workDir string
	namer   *artifacts.Namer

	// resource is removed after archiving when cleanup is enabled
	resource *Provisioner

	cleanup bool
	now     func() time.Time

	logger  zerolog.Logger
	metrics Metrics
}

// AggregatorOption configures an Aggregator.
type AggregatorOption func(*Aggregator)

// WithCleanup toggles removal of the shared resource and intermediates after
// a successful archive. Enabled by default.
func WithCleanup(enabled bool) AggregatorOption {
	return func(a *Aggregator) {
		a.cleanup = enabled
	}
}

// WithClock overrides the time source used for archive names.
func WithClock(now func() time.Time) AggregatorOption {
	return func(a *Aggregator) {
		a.now = now
	}
}

// NewAggregator creates an aggregator. resource may be nil.
func NewAggregator(
	workDir string,
	namer *artifacts.Namer,
	resource *Provisioner,
	logger zerolog.Logger,
	metrics Metrics,
	opts ...AggregatorOption,
) *Aggregator {
	a := &Aggregator{
		workDir:  workDir,
		namer:    namer,
		resource: resource,
		cleanup:  true,
		now:      time.Now,
		logger:   logger.With().Str("component", "aggregator").Logger(),
		metrics:  metricsOrNop(metrics),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Aggregate verifies every output in m exists, then writes them into a gzip
// tar named after the current minute. Members are stored by base name in
// manifest order. Outputs are never removed. A second run within the same
// minute replaces the earlier archive.
func (a *Aggregator) Aggregate(ctx context.Context, m *artifacts.Manifest) (*Archive, error) {
	ctx, span := tracer.Start(ctx, "pipeline.aggregate",
		trace.WithAttributes(attribute.Int("manifest.size", m.Len())))
	defer span.End()

	archive, err := a.aggregate(ctx, m)
	if err != nil {
		recordSpanError(span, err)
		return nil, err
	}
	span.SetAttributes(
		attribute.String("archive.name", archive.Name),
		attribute.Int64("archive.size", archive.Size),
	)
	return archive, nil
}

func (a *Aggregator) aggregate(ctx context.Context, m *artifacts.Manifest) (*Archive, error) {
	if m.Len() == 0 {
		return nil, newError(KindIncomplete, "no identifiers to aggregate", nil).WithCode(ErrCodeEmpty)
	}

	entries := m.Entries()
	var missing []string
	for _, e := range entries {
		ok, err := artifacts.Exists(filepath.Join(a.workDir, e.Output))
		if err != nil {
			return nil, NewInternalError("failed to check output", err).WithIdentifier(e.ID)
		}
		if !ok {
			missing = append(missing, e.ID)
		}
	}
	if len(missing) > 0 {
		a.logger.Warn().Strs("missing", missing).Msg("Outputs incomplete, archive not built")
		return nil, NewIncompleteError(missing)
	}

	createdAt := a.now()
	name, err := a.archiveName(createdAt)
	if err != nil {
		return nil, NewInternalError("failed to choose archive name", err)
	}
	path := filepath.Join(a.workDir, name)

	members := make([]string, 0, len(entries))
	err = artifacts.WriteAtomic(path, 0644, func(w io.Writer) error {
		gz := gzip.NewWriter(w)
		tw := tar.NewWriter(gz)
		for _, e := range entries {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := addMember(tw, filepath.Join(a.workDir, e.Output)); err != nil {
				return fmt.Errorf("failed to add %s: %w", e.Output, err)
			}
			members = append(members, e.Output)
		}
		if err := tw.Close(); err != nil {
			return err
		}
		return gz.Close()
	})
	if err != nil {
		return nil, NewInternalError("failed to write archive", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, NewInternalError("failed to stat archive", err)
	}

	archive := &Archive{
		Name:      name,
		Path:      path,
		Members:   members,
		Size:      info.Size(),
		CreatedAt: createdAt,
	}
	a.metrics.RecordArchive(len(members), archive.Size)
	a.logger.Info().
		Str("archive", name).
		Int("members", len(members)).
		Int64("bytes", archive.Size).
		Msg("Archive built")

	if a.cleanup {
		cleaned, err := a.clean(ctx, entries)
		archive.Cleaned = cleaned
		if err != nil {
			return nil, NewInternalError("failed to clean up after archiving", err)
		}
	}

	return archive, nil
}

func addMember(tw *tar.Writer, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return err
	}
	hdr, err := tar.FileInfoHeader(info, "")
	if err != nil {
		return err
	}
	hdr.Name = filepath.Base(path)

	if err := tw.WriteHeader(hdr); err != nil {
		return err
	}
	_, err = io.Copy(tw, f)
	return err
}

// clean removes the shared resource and per-item intermediates.
func (a *Aggregator) clean(ctx context.Context, entries []artifacts.Entry) ([]string, error) {
	var cleaned []string

	if a.resource != nil {
		removed, err := a.resource.Remove(ctx)
		if err != nil {
			return cleaned, err
		}
		if removed {
			cleaned = append(cleaned, filepath.Base(a.resource.Path()))
		}
	}

	for _, e := range entries {
		if e.Intermediate == "" {
			continue
		}
		removed, err := artifacts.RemoveIfExists(filepath.Join(a.workDir, e.Intermediate))
		if err != nil {
			return cleaned, fmt.Errorf("failed to remove %s: %w", e.Intermediate, err)
		}
		if removed {
			cleaned = append(cleaned, e.Intermediate)
		}
	}

	if len(cleaned) > 0 {
		a.logger.Debug().Strs("files", cleaned).Msg("Cleanup complete")
	}
	return cleaned, nil
}

// archiveName returns the first free archive name for createdAt. An earlier
// archive from the same minute is never replaced.
func (a *Aggregator) archiveName(createdAt time.Time) (string, error) {
	name := a.namer.ArchiveName(createdAt)
	for seq := 0; ; seq++ {
		taken, err := artifacts.Exists(filepath.Join(a.workDir, name))
		if err != nil {
			return "", err
		}
		if !taken {
			return name, nil
		}
		name = a.namer.ArchiveNameSeq(createdAt, seq)
	}
}
