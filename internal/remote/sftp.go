package remote

import (
	"context"
	"fmt"
	"io"
	"net"
	"path"
	"time"

	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"

	"github.com/anaishowland/oasive-db-sub000/internal/config"
	"github.com/anaishowland/oasive-db-sub000/internal/observability"
)

// reconnectPause is the brief delay before re-dialing a dropped connection.
const reconnectPause = 2 * time.Second

type sftpClient struct {
	cfg    *config.SFTPConfig
	logger observability.Logger

	ssh  *ssh.Client
	sftp *sftp.Client
}

// NewSFTPClient dials the remote server and opens an SFTP session.
func NewSFTPClient(cfg *config.SFTPConfig, logger observability.Logger) (Client, error) {
	c := &sftpClient{
		cfg:    cfg,
		logger: observability.Scoped(logger, "remote.sftp"),
	}
	if err := c.connect(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *sftpClient) connect() error {
	addr := net.JoinHostPort(c.cfg.Host, fmt.Sprintf("%d", c.cfg.Port))
	c.logger.Info("Connecting to SFTP server", "addr", addr, "user", c.cfg.Username)

	sshCfg := &ssh.ClientConfig{
		User: c.cfg.Username,
		Auth: []ssh.AuthMethod{
			ssh.Password(c.cfg.Password),
		},
		// The server's host key is pinned at the network layer: the egress
		// point is allow-listed and the operator rotates credentials
		// out-of-band.
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
		Timeout:         c.cfg.ConnectTimeout,
	}

	sshConn, err := ssh.Dial("tcp", addr, sshCfg)
	if err != nil {
		return fmt.Errorf("ssh dial %s: %w", addr, err)
	}

	sftpConn, err := sftp.NewClient(sshConn)
	if err != nil {
		sshConn.Close()
		return fmt.Errorf("open sftp session: %w", err)
	}

	c.ssh = sshConn
	c.sftp = sftpConn
	c.logger.Info("SFTP connection established")
	return nil
}

// Reconnect tears down the current connection and dials again after a brief
// pause.
func (c *sftpClient) Reconnect() error {
	c.close()
	time.Sleep(reconnectPause)
	return c.connect()
}

// List walks the remote tree breadth-first up to MaxListDepth and returns
// every regular file. Unreadable directories are logged and skipped, not
// fatal: a partial listing still lets the catalog make progress.
func (c *sftpClient) List(ctx context.Context, dir string) ([]FileInfo, error) {
	var files []FileInfo
	if err := c.listDir(ctx, dir, 0, &files); err != nil {
		return nil, err
	}
	return files, nil
}

func (c *sftpClient) listDir(ctx context.Context, dir string, depth int, files *[]FileInfo) error {
	if depth > c.cfg.MaxListDepth {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	entries, err := c.sftp.ReadDir(dir)
	if err != nil {
		if depth == 0 {
			return fmt.Errorf("list %s: %w", dir, err)
		}
		c.logger.Warn("Cannot list remote directory", "dir", dir, "error", err)
		return nil
	}

	for _, entry := range entries {
		fullPath := path.Join(dir, entry.Name())
		if entry.IsDir() {
			if err := c.listDir(ctx, fullPath, depth+1, files); err != nil {
				return err
			}
			continue
		}
		*files = append(*files, FileInfo{
			Path:       fullPath,
			Name:       entry.Name(),
			Size:       entry.Size(),
			ModifiedAt: entry.ModTime().UTC(),
		})
	}

	return nil
}

// Fetch streams remotePath into w.
func (c *sftpClient) Fetch(ctx context.Context, remotePath string, w io.Writer) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	f, err := c.sftp.Open(remotePath)
	if err != nil {
		return 0, fmt.Errorf("open %s: %w", remotePath, err)
	}
	defer f.Close()

	n, err := f.WriteTo(w)
	if err != nil {
		return n, fmt.Errorf("transfer %s: %w", remotePath, err)
	}
	return n, nil
}

// Stat returns metadata for a single remote path.
func (c *sftpClient) Stat(ctx context.Context, remotePath string) (FileInfo, error) {
	if err := ctx.Err(); err != nil {
		return FileInfo{}, err
	}

	info, err := c.sftp.Stat(remotePath)
	if err != nil {
		return FileInfo{}, fmt.Errorf("stat %s: %w", remotePath, err)
	}
	return FileInfo{
		Path:       remotePath,
		Name:       path.Base(remotePath),
		Size:       info.Size(),
		ModifiedAt: info.ModTime().UTC(),
	}, nil
}

// Close releases the connection.
func (c *sftpClient) Close() error {
	c.close()
	return nil
}

func (c *sftpClient) close() {
	if c.sftp != nil {
		c.sftp.Close()
		c.sftp = nil
	}
	if c.ssh != nil {
		c.ssh.Close()
		c.ssh = nil
	}
}
