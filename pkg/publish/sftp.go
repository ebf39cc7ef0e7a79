package publish

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"time"

	"github.com/pkg/sftp"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"
)

// partialSuffix is appended to the remote name while an upload is in flight.
const partialSuffix = ".partial"

// SFTPConfig holds SFTP connection configuration.
type SFTPConfig struct {
	// Host is the remote hostname or IP address.
	Host string `yaml:"host"`

	// Port is the SSH port (default: 22).
	Port int `yaml:"port"`

	// User is the SSH username.
	User string `yaml:"user"`

	// Password for password-based authentication.
	Password string `yaml:"password"`

	// PrivateKeyPath is the path to the private key file.
	PrivateKeyPath string `yaml:"private_key_path"`

	// PrivateKeyPassphrase is the passphrase for encrypted private keys.
	PrivateKeyPassphrase string `yaml:"private_key_passphrase"`

	// KnownHostsPath is the path to the known_hosts file.
	KnownHostsPath string `yaml:"known_hosts_path"`

	// StrictHostKeyChecking rejects hosts missing from KnownHostsPath.
	// When false any host key is accepted.
	StrictHostKeyChecking bool `yaml:"strict_host_key_checking"`

	// RemoteDir is the directory archives are uploaded to.
	RemoteDir string `yaml:"remote_dir"`

	// ConnectionTimeout is the timeout for establishing a connection.
	ConnectionTimeout time.Duration `yaml:"connection_timeout"`
}

// DefaultSFTPConfig returns an SFTPConfig with sensible defaults.
func DefaultSFTPConfig() SFTPConfig {
	return SFTPConfig{
		Port:                  22,
		KnownHostsPath:        filepath.Join(os.Getenv("HOME"), ".ssh", "known_hosts"),
		StrictHostKeyChecking: true,
		RemoteDir:             ".",
		ConnectionTimeout:     30 * time.Second,
	}
}

// Validate checks if the configuration is valid.
func (c SFTPConfig) Validate() error {
	if c.Host == "" {
		return fmt.Errorf("sftp host is required")
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid sftp port: %d", c.Port)
	}
	if c.User == "" {
		return fmt.Errorf("sftp user is required")
	}
	if c.Password == "" && c.PrivateKeyPath == "" {
		return fmt.Errorf("sftp requires a password or a private key")
	}
	if c.StrictHostKeyChecking && c.KnownHostsPath == "" {
		return fmt.Errorf("strict host key checking requires known_hosts_path")
	}
	if c.ConnectionTimeout <= 0 {
		return fmt.Errorf("connection timeout must be positive")
	}
	return nil
}

// Address returns the formatted SSH address (host:port).
func (c SFTPConfig) Address() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// ClientConfig creates an ssh.ClientConfig from the configuration.
func (c SFTPConfig) ClientConfig() (*ssh.ClientConfig, error) {
	var authMethods []ssh.AuthMethod

	if c.PrivateKeyPath != "" {
		keyBytes, err := os.ReadFile(c.PrivateKeyPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read private key: %w", err)
		}

		var signer ssh.Signer
		if c.PrivateKeyPassphrase != "" {
			signer, err = ssh.ParsePrivateKeyWithPassphrase(keyBytes, []byte(c.PrivateKeyPassphrase))
		} else {
			signer, err = ssh.ParsePrivateKey(keyBytes)
		}
		if err != nil {
			return nil, fmt.Errorf("failed to parse private key: %w", err)
		}
		authMethods = append(authMethods, ssh.PublicKeys(signer))
	}

	if c.Password != "" {
		authMethods = append(authMethods, ssh.Password(c.Password))
		// Many servers only offer keyboard-interactive for passwords.
		authMethods = append(authMethods, ssh.KeyboardInteractive(
			func(user, instruction string, questions []string, echos []bool) ([]string, error) {
				answers := make([]string, len(questions))
				for i := range answers {
					answers[i] = c.Password
				}
				return answers, nil
			},
		))
	}

	var hostKeyCallback ssh.HostKeyCallback
	if c.StrictHostKeyChecking {
		var err error
		hostKeyCallback, err = knownhosts.New(c.KnownHostsPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load known_hosts: %w", err)
		}
	} else {
		hostKeyCallback = ssh.InsecureIgnoreHostKey()
	}

	return &ssh.ClientConfig{
		User:            c.User,
		Auth:            authMethods,
		HostKeyCallback: hostKeyCallback,
		Timeout:         c.ConnectionTimeout,
	}, nil
}

// sftpDialer opens an SFTP session. The returned closer releases the
// session and its transport.
type sftpDialer func(ctx context.Context) (*sftp.Client, io.Closer, error)

// SFTPPublisher uploads archives over SFTP.
type SFTPPublisher struct {
	cfg    SFTPConfig
	dial   sftpDialer
	logger zerolog.Logger
}

// NewSFTPPublisher creates an SFTP publisher.
func NewSFTPPublisher(cfg SFTPConfig, logger zerolog.Logger) (*SFTPPublisher, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	clientConfig, err := cfg.ClientConfig()
	if err != nil {
		return nil, err
	}

	p := &SFTPPublisher{cfg: cfg, logger: logger}
	p.dial = func(ctx context.Context) (*sftp.Client, io.Closer, error) {
		return dialSFTP(ctx, cfg.Address(), clientConfig)
	}
	return p, nil
}

// newSFTPPublisherWithDialer is used by tests to supply an in-memory server.
func newSFTPPublisherWithDialer(cfg SFTPConfig, dial sftpDialer, logger zerolog.Logger) *SFTPPublisher {
	return &SFTPPublisher{cfg: cfg, dial: dial, logger: logger}
}

func dialSFTP(ctx context.Context, address string, clientConfig *ssh.ClientConfig) (*sftp.Client, io.Closer, error) {
	dialer := &net.Dialer{Timeout: clientConfig.Timeout}
	conn, err := dialer.DialContext(ctx, "tcp", address)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to %s: %w", address, err)
	}

	sshConn, chans, reqs, err := ssh.NewClientConn(conn, address, clientConfig)
	if err != nil {
		_ = conn.Close()
		return nil, nil, fmt.Errorf("ssh handshake with %s failed: %w", address, err)
	}
	sshClient := ssh.NewClient(sshConn, chans, reqs)

	client, err := sftp.NewClient(sshClient)
	if err != nil {
		_ = sshClient.Close()
		return nil, nil, fmt.Errorf("failed to create SFTP client: %w", err)
	}
	return client, sshClient, nil
}

// Publish uploads the archive to RemoteDir under a temporary name and
// renames it into place. It returns an sftp:// URL of the upload.
func (p *SFTPPublisher) Publish(ctx context.Context, localPath string) (string, error) {
	startTime := time.Now()

	localFile, err := os.Open(localPath)
	if err != nil {
		return "", fmt.Errorf("failed to open archive: %w", err)
	}
	defer localFile.Close()

	client, closer, err := p.dial(ctx)
	if err != nil {
		return "", err
	}
	defer func() {
		_ = client.Close()
		if closer != nil {
			_ = closer.Close()
		}
	}()

	remoteDir := p.cfg.RemoteDir
	if remoteDir == "" {
		remoteDir = "."
	}
	if err := client.MkdirAll(remoteDir); err != nil {
		return "", fmt.Errorf("failed to create remote directory %s: %w", remoteDir, err)
	}

	remotePath := path.Join(remoteDir, filepath.Base(localPath))
	partialPath := remotePath + partialSuffix

	remoteFile, err := client.Create(partialPath)
	if err != nil {
		return "", fmt.Errorf("failed to create remote file: %w", err)
	}

	written, err := copyWithContext(ctx, remoteFile, localFile)
	closeErr := remoteFile.Close()
	if err == nil {
		err = closeErr
	}
	if err != nil {
		_ = client.Remove(partialPath)
		return "", fmt.Errorf("failed to upload archive: %w", err)
	}

	if err := renameRemote(client, partialPath, remotePath); err != nil {
		_ = client.Remove(partialPath)
		return "", err
	}

	p.logger.Info().
		Str("local", localPath).
		Str("remote", remotePath).
		Int64("bytes", written).
		Dur("duration", time.Since(startTime)).
		Msg("Archive uploaded")

	u := url.URL{
		Scheme: "sftp",
		User:   url.User(p.cfg.User),
		Host:   p.cfg.Address(),
		Path:   remotePath,
	}
	return u.String(), nil
}

// renameRemote replaces dst with src. Servers without the posix-rename
// extension refuse to overwrite, so dst is removed first in that case.
func renameRemote(client *sftp.Client, src, dst string) error {
	if err := client.PosixRename(src, dst); err == nil {
		return nil
	}
	if err := client.Remove(dst); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to replace remote file %s: %w", dst, err)
	}
	if err := client.Rename(src, dst); err != nil {
		return fmt.Errorf("failed to rename remote file: %w", err)
	}
	return nil
}

// copyWithContext copies data from src to dst while respecting context cancellation.
func copyWithContext(ctx context.Context, dst io.Writer, src io.Reader) (int64, error) {
	buf := make([]byte, 32*1024)
	var written int64

	for {
		select {
		case <-ctx.Done():
			return written, ctx.Err()
		default:
		}

		nr, err := src.Read(buf)
		if nr > 0 {
			nw, werr := dst.Write(buf[0:nr])
			if nw > 0 {
				written += int64(nw)
			}
			if werr != nil {
				return written, werr
			}
			if nr != nw {
				return written, io.ErrShortWrite
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return written, err
		}
	}

	return written, nil
}
