// Package publish ships a finished archive to remote storage.
//
// Two backends exist: SFTP (golang.org/x/crypto/ssh plus github.com/pkg/sftp)
// and S3-compatible object storage (minio-go). Both upload under a temporary
// name or in a single request so a reader never observes a partial archive.
package publish

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/fomightez/pdbepisa-binder/pkg/engine"
)

// Kind selects a publishing backend.
type Kind string

const (
	// KindNone disables publishing.
	KindNone Kind = "none"

	// KindSFTP uploads over SFTP.
	KindSFTP Kind = "sftp"

	// KindS3 uploads to an S3-compatible bucket.
	KindS3 Kind = "s3"
)

// Config selects and configures the publisher.
type Config struct {
	// Kind is the backend (none, sftp, s3).
	Kind Kind `yaml:"kind" validate:"omitempty,oneof=none sftp s3"`

	// SFTP configures the SFTP backend.
	SFTP SFTPConfig `yaml:"sftp"`

	// S3 configures the S3 backend.
	S3 S3Config `yaml:"s3"`
}

// DefaultConfig returns a configuration with publishing disabled.
func DefaultConfig() Config {
	return Config{
		Kind: KindNone,
		SFTP: DefaultSFTPConfig(),
		S3:   DefaultS3Config(),
	}
}

// Validate checks the configuration of the selected backend only.
func (c Config) Validate() error {
	switch c.Kind {
	case "", KindNone:
		return nil
	case KindSFTP:
		return c.SFTP.Validate()
	case KindS3:
		return c.S3.Validate()
	default:
		return fmt.Errorf("unsupported publish kind: %s", c.Kind)
	}
}

// New builds the configured publisher. It returns nil when publishing is
// disabled.
func New(cfg Config, logger zerolog.Logger) (engine.Publisher, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid publish config: %w", err)
	}

	logger = logger.With().Str("component", "publish").Str("kind", string(cfg.Kind)).Logger()

	switch cfg.Kind {
	case KindSFTP:
		p, err := NewSFTPPublisher(cfg.SFTP, logger)
		if err != nil {
			return nil, err
		}
		return p, nil
	case KindS3:
		p, err := NewS3Publisher(cfg.S3, logger)
		if err != nil {
			return nil, err
		}
		return p, nil
	default:
		return nil, nil
	}
}
