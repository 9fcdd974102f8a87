// Package workspace resolves and manipulates files inside a build job's
// working directory.
package workspace

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
)

var (
	// ErrDownload is returned when fetching a URL fails.
	ErrDownload = errors.New("download failed")

	// ErrUnsupportedScheme is returned for URLs that are neither http(s) nor file.
	ErrUnsupportedScheme = errors.New("unsupported URL scheme")
)

// Files is the file access the installer and the differ need.
type Files interface {
	// Dir returns the working directory.
	Dir() string
	// Child resolves name relative to the working directory.
	Child(name string) string
	// CopyFromURL writes the content at rawURL to name.
	CopyFromURL(ctx context.Context, name, rawURL string) error
	// Chmod sets permission bits on name.
	Chmod(name string, mode fs.FileMode) error
	// ReadToString returns the whole content of name.
	ReadToString(name string) (string, error)
}

// Workspace is a Files rooted at a directory on the local disk.
type Workspace struct {
	root   string
	client *http.Client
}

// New creates a Workspace rooted at dir. Relative roots are made absolute
// so that child paths can be handed to subprocesses.
func New(dir string) (*Workspace, error) {
	root, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolving workspace %s: %w", dir, err)
	}
	return &Workspace{root: root, client: http.DefaultClient}, nil
}

// WithHTTPClient replaces the client used for downloads.
func (w *Workspace) WithHTTPClient(client *http.Client) *Workspace {
	w.client = client
	return w
}

// Dir implements Files.
func (w *Workspace) Dir() string {
	return w.root
}

// Child implements Files.
func (w *Workspace) Child(name string) string {
	return filepath.Join(w.root, name)
}

// CopyFromURL implements Files. http, https and file URLs are supported; a
// non-2xx HTTP response is an error.
func (w *Workspace) CopyFromURL(ctx context.Context, name, rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrDownload, rawURL, err)
	}

	var body io.ReadCloser
	switch u.Scheme {
	case "http", "https":
		body, err = w.get(ctx, rawURL)
	case "file":
		body, err = os.Open(filepath.FromSlash(u.Path))
		if err != nil {
			err = fmt.Errorf("%w: %s: %w", ErrDownload, rawURL, err)
		}
	default:
		return fmt.Errorf("%w: %q", ErrUnsupportedScheme, u.Scheme)
	}
	if err != nil {
		return err
	}
	defer body.Close()

	f, err := os.Create(w.Child(name))
	if err != nil {
		return err
	}
	if _, err := io.Copy(f, body); err != nil {
		f.Close()
		return fmt.Errorf("%w: %s: %w", ErrDownload, rawURL, err)
	}
	return f.Close()
}

func (w *Workspace) get(ctx context.Context, rawURL string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrDownload, rawURL, err)
	}
	resp, err := w.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrDownload, rawURL, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		resp.Body.Close()
		return nil, fmt.Errorf("%w: %s returned %s", ErrDownload, rawURL, resp.Status)
	}
	return resp.Body, nil
}

// Chmod implements Files.
func (w *Workspace) Chmod(name string, mode fs.FileMode) error {
	return os.Chmod(w.Child(name), mode)
}

// ReadToString implements Files.
func (w *Workspace) ReadToString(name string) (string, error) {
	data, err := os.ReadFile(w.Child(name))
	if err != nil {
		return "", err
	}
	return string(data), nil
}
