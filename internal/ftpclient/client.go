// Package ftpclient implements the remote side of the ingest pipeline:
// recursive directory listing, date filtering and file download over FTP.
package ftpclient

import (
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"sort"
	"time"

	"github.com/jlaffaye/ftp"
	"github.com/rs/zerolog"

	"zakupki/ingest-service/internal/model"
)

// TransportError reports a connect, listing or transfer failure. It is the
// retryable class of the error taxonomy: the orchestrator decides whether
// to retry or move on to the next remote file.
type TransportError struct {
	Op   string // "connect", "list", "fetch"
	Path string
	Err  error
}

func (e *TransportError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("ftp %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("ftp %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// Client wraps one FTP session. The directory-listing connection and the
// file-transfer connection are the same logical session, so callers must
// not use a Client from two goroutines; the listing walk is depth-first
// and sequential for the same reason.
type Client struct {
	addr     string
	user     string
	password string
	timeout  time.Duration
	log      zerolog.Logger

	conn *ftp.ServerConn
}

// New constructs a Client. Connect must be called before any other method.
func New(addr, user, password string, timeout time.Duration, log zerolog.Logger) *Client {
	return &Client{
		addr:     addr,
		user:     user,
		password: password,
		timeout:  timeout,
		log:      log,
	}
}

// Connect dials the server and logs in. Passive mode is the library
// default, matching the archive's firewall expectations.
func (c *Client) Connect() error {
	conn, err := ftp.Dial(c.addr, ftp.DialWithTimeout(c.timeout))
	if err != nil {
		return &TransportError{Op: "connect", Err: err}
	}
	if err := conn.Login(c.user, c.password); err != nil {
		conn.Quit()
		return &TransportError{Op: "connect", Err: err}
	}

	c.conn = conn
	c.log.Info().Str("addr", c.addr).Msg("FTP connection established")
	return nil
}

// Close terminates the session. Safe to call after a failed Connect.
func (c *Client) Close() {
	if c.conn == nil {
		return
	}
	if err := c.conn.Quit(); err != nil {
		c.log.Warn().Err(err).Msg("FTP quit failed")
	}
	c.conn = nil
}

// ListAfter walks the tree under root depth-first and returns every file
// whose name carries an 8-digit date token newer than cutoff.
//
// Every level is listed with an absolute path. The session's server-side
// working directory is never changed: relying on CWD state across
// recursion levels silently relists the wrong directory once the first
// descent returns.
func (c *Client) ListAfter(root, cutoff string) ([]model.RemotePath, error) {
	if c.conn == nil {
		return nil, &TransportError{Op: "list", Path: root, Err: fmt.Errorf("not connected")}
	}

	var files []model.RemotePath
	if err := c.walk(root, cutoff, &files); err != nil {
		return nil, err
	}

	// Stable processing order across runs.
	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })

	c.log.Info().Str("root", root).Int("candidates", len(files)).Msg("listing complete")
	return files, nil
}

func (c *Client) walk(dir, cutoff string, out *[]model.RemotePath) error {
	entries, err := c.conn.List(dir)
	if err != nil {
		return &TransportError{Op: "list", Path: dir, Err: err}
	}

	for _, entry := range entries {
		if entry.Name == "." || entry.Name == ".." {
			continue
		}
		abs := path.Join(dir, entry.Name)

		switch entry.Type {
		case ftp.EntryTypeFolder:
			// A vanished or forbidden subdirectory must not abort the whole
			// walk; the caller retries the root on the next run anyway since
			// unseen filenames were never ledgered.
			if err := c.walk(abs, cutoff, out); err != nil {
				c.log.Warn().Str("dir", abs).Err(err).Msg("skipping unlistable subdirectory")
				continue
			}
		case ftp.EntryTypeFile:
			if AfterCutoff(entry.Name, cutoff) {
				*out = append(*out, model.RemotePath{Path: abs, Name: entry.Name})
			}
		}
	}

	return nil
}

// Fetch streams one remote file into localDir and returns the local path.
// The transfer writes to a .part temp name and renames on success, so a
// dropped connection never leaves a readable half-written archive behind.
func (c *Client) Fetch(remotePath, localDir string) (string, error) {
	if c.conn == nil {
		return "", &TransportError{Op: "fetch", Path: remotePath, Err: fmt.Errorf("not connected")}
	}
	if err := os.MkdirAll(localDir, 0o755); err != nil {
		return "", fmt.Errorf("create %s: %w", localDir, err)
	}

	dest := filepath.Join(localDir, path.Base(remotePath))
	tmp := dest + ".part"

	resp, err := c.conn.Retr(remotePath)
	if err != nil {
		return "", &TransportError{Op: "fetch", Path: remotePath, Err: err}
	}
	defer resp.Close()

	f, err := os.Create(tmp)
	if err != nil {
		return "", fmt.Errorf("create %s: %w", tmp, err)
	}

	if _, err := io.Copy(f, resp); err != nil {
		f.Close()
		os.Remove(tmp)
		return "", &TransportError{Op: "fetch", Path: remotePath, Err: err}
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return "", fmt.Errorf("close %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, dest); err != nil {
		os.Remove(tmp)
		return "", fmt.Errorf("rename %s: %w", tmp, err)
	}

	c.log.Debug().Str("remote", remotePath).Str("local", dest).Msg("file downloaded")
	return dest, nil
}
