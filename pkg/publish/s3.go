package publish

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"path"
	"path/filepath"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/rs/zerolog"
)

// archiveContentType is sent with every uploaded archive.
const archiveContentType = "application/gzip"

// S3Config configures an S3-compatible bucket.
type S3Config struct {
	// Endpoint is host[:port] without a scheme.
	Endpoint string `yaml:"endpoint"`

	// Bucket receives the archives.
	Bucket string `yaml:"bucket"`

	// Prefix is prepended to the object key.
	Prefix string `yaml:"prefix"`

	// Region of the bucket. Setting it skips the location lookup.
	Region string `yaml:"region"`

	// AccessKey and SecretKey are static credentials.
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`

	// UseSSL selects https.
	UseSSL bool `yaml:"use_ssl"`

	// CreateBucket creates the bucket when it does not exist.
	CreateBucket bool `yaml:"create_bucket"`
}

// DefaultS3Config returns an S3Config with sensible defaults.
func DefaultS3Config() S3Config {
	return S3Config{
		Region: "us-east-1",
		UseSSL: true,
	}
}

// Validate checks if the configuration is valid.
func (c S3Config) Validate() error {
	if c.Endpoint == "" {
		return fmt.Errorf("s3 endpoint is required")
	}
	if c.Bucket == "" {
		return fmt.Errorf("s3 bucket is required")
	}
	if c.AccessKey == "" || c.SecretKey == "" {
		return fmt.Errorf("s3 access key and secret key are required")
	}
	return nil
}

// S3Publisher uploads archives to an S3-compatible bucket.
type S3Publisher struct {
	cfg    S3Config
	client *minio.Client
	logger zerolog.Logger
}

// NewS3Publisher creates an S3 publisher.
func NewS3Publisher(cfg S3Config, logger zerolog.Logger) (*S3Publisher, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:     credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure:    cfg.UseSSL,
		Region:    cfg.Region,
		Transport: newTransport(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create s3 client: %w", err)
	}

	return &S3Publisher{cfg: cfg, client: client, logger: logger}, nil
}

// Key returns the object key for a local archive path.
func (p *S3Publisher) Key(localPath string) string {
	return path.Join(p.cfg.Prefix, filepath.Base(localPath))
}

// Publish uploads the archive and returns an s3:// URL of the object.
func (p *S3Publisher) Publish(ctx context.Context, localPath string) (string, error) {
	startTime := time.Now()

	if p.cfg.CreateBucket {
		if err := ensureBucket(ctx, p.client, p.cfg.Bucket, p.cfg.Region); err != nil {
			return "", fmt.Errorf("ensure bucket %s: %w", p.cfg.Bucket, err)
		}
	}

	key := p.Key(localPath)
	info, err := p.client.FPutObject(ctx, p.cfg.Bucket, key, localPath, minio.PutObjectOptions{
		ContentType: archiveContentType,
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload archive to %s/%s: %w", p.cfg.Bucket, key, err)
	}

	p.logger.Info().
		Str("bucket", p.cfg.Bucket).
		Str("key", key).
		Int64("bytes", info.Size).
		Dur("duration", time.Since(startTime)).
		Msg("Archive uploaded")

	return fmt.Sprintf("s3://%s/%s", p.cfg.Bucket, key), nil
}

func ensureBucket(ctx context.Context, client *minio.Client, bucket string, region string) error {
	exists, err := client.BucketExists(ctx, bucket)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}
	return client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{Region: region})
}

func newTransport() *http.Transport {
	dialer := &net.Dialer{
		Timeout:   5 * time.Second,
		KeepAlive: 30 * time.Second,
	}
	return &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           dialer.DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   5 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
}
