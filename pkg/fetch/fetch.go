package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"github.com/apex/log"
	"github.com/coding-agent-search/cass-installer/pkg/httpclient"
	"github.com/pkg/errors"
)

// ProgressFunc is a callback for download progress
type ProgressFunc func(downloaded, total int64)

// DownloadError reports a network or HTTP failure while downloading.
type DownloadError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *DownloadError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("download %s: unexpected status code: %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("download %s: %v", e.URL, e.Err)
}

func (e *DownloadError) Unwrap() error { return e.Err }

// Download downloads a file from the given URL to the destination path
func Download(ctx context.Context, client *http.Client, url, destPath string) error {
	return DownloadWithProgress(ctx, client, url, destPath, nil)
}

// DownloadWithProgress downloads a file with optional progress callback.
// There is a single attempt: a failed download is reported, never retried.
// The destination only appears once the whole body has been written.
func DownloadWithProgress(ctx context.Context, client *http.Client, url, destPath string, progress ProgressFunc) error {
	if client == nil {
		client = httpclient.NewGitHubClient()
	}

	// Create destination directory if needed
	if err := os.MkdirAll(filepath.Dir(destPath), 0755); err != nil {
		return errors.Wrap(err, "failed to create destination directory")
	}

	req, err := httpclient.NewRequest(ctx, url)
	if err != nil {
		return &DownloadError{URL: url, Err: errors.Wrap(err, "failed to create request")}
	}

	log.WithField("url", url).Debug("downloading")
	resp, err := client.Do(req)
	if err != nil {
		return &DownloadError{URL: url, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return &DownloadError{URL: url, StatusCode: resp.StatusCode}
	}

	tmpFile, err := os.CreateTemp(filepath.Dir(destPath), ".download-*")
	if err != nil {
		return errors.Wrap(err, "failed to create temporary file")
	}
	tmpPath := tmpFile.Name()
	defer os.Remove(tmpPath)
	defer tmpFile.Close()

	var written int64
	if progress != nil {
		written, err = copyWithProgress(tmpFile, resp.Body, resp.ContentLength, progress)
	} else {
		written, err = io.Copy(tmpFile, resp.Body)
	}
	if err != nil {
		return &DownloadError{URL: url, Err: errors.Wrap(err, "failed to read response body")}
	}

	// Verify we got some content
	if written == 0 {
		return &DownloadError{URL: url, Err: fmt.Errorf("no content downloaded")}
	}

	if err := tmpFile.Close(); err != nil {
		return errors.Wrap(err, "failed to close temporary file")
	}

	if err := os.Rename(tmpPath, destPath); err != nil {
		return errors.Wrap(err, "failed to move downloaded file")
	}

	return nil
}

// copyWithProgress copies data and reports progress
func copyWithProgress(dst io.Writer, src io.Reader, total int64, progress ProgressFunc) (int64, error) {
	var written int64
	buf := make([]byte, 32*1024) // 32KB buffer

	for {
		nr, readErr := src.Read(buf)
		if nr > 0 {
			nw, writeErr := dst.Write(buf[0:nr])
			if writeErr != nil {
				return written, writeErr
			}
			written += int64(nw)
			progress(written, total)
		}

		if readErr != nil {
			if readErr == io.EOF {
				return written, nil
			}
			return written, readErr
		}
	}
}
