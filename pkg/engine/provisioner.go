package engine

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/fomightez/pdbepisa-binder/pkg/artifacts"
)

// DefaultFetchTimeout bounds a single resource download.
const DefaultFetchTimeout = 2 * time.Minute

// Provisioner acquires the shared resource the transformer needs. Acquisition
// is a single critical section: concurrent callers block until the first
// finishes, and later calls are a presence check.
type Provisioner struct {
	// path is the resource location in the work directory
	path string

	// source is the URL the resource is fetched from
	source string

	client  *http.Client
	logger  zerolog.Logger
	metrics Metrics

	mu sync.Mutex
}

// ProvisionerOption configures a Provisioner.
type ProvisionerOption func(*Provisioner)

// WithHTTPClient replaces the download client.
func WithHTTPClient(c *http.Client) ProvisionerOption {
	return func(p *Provisioner) {
		p.client = c
	}
}

// NewProvisioner creates a provisioner that keeps the resource named name in
// workDir, fetching it from source when absent. Both http(s) and file URLs
// are supported.
func NewProvisioner(workDir, name, source string, logger zerolog.Logger, metrics Metrics, opts ...ProvisionerOption) *Provisioner {
	p := &Provisioner{
		path:    filepath.Join(workDir, name),
		source:  source,
		client:  defaultHTTPClient(),
		logger:  logger.With().Str("component", "provisioner").Logger(),
		metrics: metricsOrNop(metrics),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func defaultHTTPClient() *http.Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.RegisterProtocol("file", http.NewFileTransport(http.Dir("/")))
	return &http.Client{
		Transport: transport,
		Timeout:   DefaultFetchTimeout,
	}
}

// Path returns the resource location.
func (p *Provisioner) Path() string {
	return p.path
}

// Ensure makes the resource present, downloading it if needed. A failed
// download leaves no file behind.
func (p *Provisioner) Ensure(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	ok, err := artifacts.Exists(p.path)
	if err != nil {
		return NewFetchError("failed to check shared resource", err)
	}
	if ok {
		return nil
	}

	ctx, span := tracer.Start(ctx, "pipeline.fetch",
		trace.WithAttributes(attribute.String("resource.source", p.source)))
	defer span.End()

	start := time.Now()
	n, err := p.fetch(ctx)
	p.metrics.RecordFetch(err == nil, n, time.Since(start))
	if err != nil {
		recordSpanError(span, err)
		p.logger.Error().Err(err).Str("source", p.source).Msg("Failed to fetch shared resource")
		return err
	}

	p.logger.Info().
		Str("source", p.source).
		Str("path", p.path).
		Int64("bytes", n).
		Dur("duration", time.Since(start)).
		Msg("Shared resource fetched")
	return nil
}

func (p *Provisioner) fetch(ctx context.Context) (int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.source, nil)
	if err != nil {
		return 0, NewFetchError("invalid resource source", err)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return 0, NewFetchError("failed to download shared resource", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, NewFetchError("failed to download shared resource",
			fmt.Errorf("unexpected status %s from %s", resp.Status, p.source))
	}

	var n int64
	err = artifacts.WriteAtomic(p.path, 0644, func(w io.Writer) error {
		var copyErr error
		n, copyErr = io.Copy(w, resp.Body)
		return copyErr
	})
	if err != nil {
		return n, NewFetchError("failed to store shared resource", err)
	}
	return n, nil
}

// Remove deletes the resource and reports whether it was present.
func (p *Provisioner) Remove(ctx context.Context) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	removed, err := artifacts.RemoveIfExists(p.path)
	if err != nil {
		return false, fmt.Errorf("failed to remove shared resource: %w", err)
	}
	if removed {
		p.logger.Debug().Str("path", p.path).Msg("Shared resource removed")
	}
	return removed, nil
}

// Present reports whether the resource is on disk.
func (p *Provisioner) Present() bool {
	ok, err := artifacts.Exists(p.path)
	return err == nil && ok
}

var _ ResourceEnsurer = (*Provisioner)(nil)
