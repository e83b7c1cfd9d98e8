package downloader

import (
	"archive/zip"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/schollz/progressbar/v3"
	"golang.org/x/term"

	"github.com/caedis/mtg-installer/internal/fsutil"
	"github.com/caedis/mtg-installer/internal/logging"
	"github.com/caedis/mtg-installer/internal/metadata"
)

const (
	archiveName   = "DOWNLOAD.zip"
	extractedName = "EXTRACTED"
)

// HTTPError is returned for a response other than 200 OK.
type HTTPError struct {
	URL        string
	StatusCode int
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("GET %s: HTTP %d %s", e.URL, e.StatusCode, http.StatusText(e.StatusCode))
}

// IsNotFound reports whether err is a 404 from the server.
func IsNotFound(err error) bool {
	var httpErr *HTTPError
	return errors.As(err, &httpErr) && httpErr.StatusCode == http.StatusNotFound
}

// Build is a downloaded and extracted component version.
type Build struct {
	Source        string
	Path          string
	ExtractedPath string
}

// Close removes the download directory and everything extracted into it.
func (b *Build) Close() error {
	return os.RemoveAll(b.Path)
}

// TempDestination creates a fresh download directory in the temp dir.
func TempDestination() (string, error) {
	dir, err := os.MkdirTemp("", "MTGDOWNLOAD_*")
	if err != nil {
		return "", fmt.Errorf("creating download destination (do you have permissions to the temporary files folder?): %w", err)
	}
	return dir, nil
}

// Download fetches version into dest/DOWNLOAD.zip and extracts it into
// dest/EXTRACTED. Local versions are copied instead of downloaded.
func (c *Catalog) Download(ctx context.Context, version *metadata.Version, dest string) (*Build, error) {
	if err := version.Validate(); err != nil {
		return nil, err
	}

	src := version.Source()
	logging.Infof("Downloading %s from %s to %s\n", version.Name, src, dest)

	archive := filepath.Join(dest, archiveName)
	extracted := filepath.Join(dest, extractedName)
	if err := os.MkdirAll(extracted, 0o755); err != nil {
		return nil, fmt.Errorf("creating download directory: %w", err)
	}
	build := &Build{Source: src, Path: dest, ExtractedPath: extracted}

	var err error
	if version.Local() {
		err = fsutil.CopyFile(src, archive)
	} else {
		err = c.fetchToFile(ctx, src, archive)
	}
	if err == nil {
		err = extractZip(archive, extracted)
	}
	if err != nil {
		build.Close()
		return nil, err
	}
	return build, nil
}

func (c *Catalog) get(ctx context.Context, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("downloading %s: %w", url, err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, &HTTPError{URL: url, StatusCode: resp.StatusCode}
	}
	return resp, nil
}

// fetch returns the body of url.
func (c *Catalog) fetch(ctx context.Context, url string) ([]byte, error) {
	logging.Debugf("Verbose: fetching %s\n", url)
	resp, err := c.get(ctx, url)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", url, err)
	}
	return data, nil
}

// fetchToFile downloads url to destPath (write to destPath.tmp, then rename).
func (c *Catalog) fetchToFile(ctx context.Context, url, destPath string) error {
	resp, err := c.get(ctx, url)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	tmpPath := destPath + ".tmp"
	f, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("creating %s: %w", filepath.Base(destPath), err)
	}

	var w io.Writer = f
	if c.progress {
		bar := progressbar.DefaultBytes(resp.ContentLength, "downloading")
		defer bar.Finish()
		w = io.MultiWriter(f, bar)
	}

	_, err = io.Copy(w, resp.Body)
	closeErr := f.Close()
	if err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("writing %s: %w", filepath.Base(destPath), err)
	}
	if closeErr != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("closing %s: %w", filepath.Base(destPath), closeErr)
	}

	if err := os.Rename(tmpPath, destPath); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("finalizing %s: %w", filepath.Base(destPath), err)
	}
	logging.Debugf("Verbose: download complete file=%s\n", destPath)
	return nil
}

func stdoutIsTerminal() bool {
	return term.IsTerminal(int(os.Stdout.Fd()))
}

// extractZip extracts every entry of zipPath below destDir. Entries that
// would escape destDir are skipped.
func extractZip(zipPath, destDir string) error {
	r, err := zip.OpenReader(zipPath)
	if err != nil && !errors.Is(err, zip.ErrInsecurePath) {
		return fmt.Errorf("opening archive: %w", err)
	}
	defer r.Close()

	cleanDest := filepath.Clean(destDir)
	for _, f := range r.File {
		destPath := filepath.Join(destDir, f.Name)

		cleanPath := filepath.Clean(destPath)
		if cleanPath != cleanDest && !strings.HasPrefix(cleanPath, cleanDest+string(os.PathSeparator)) {
			logging.Warnf("Skipping archive entry outside the extraction directory: %s", f.Name)
			continue
		}

		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(destPath, 0o755); err != nil {
				return fmt.Errorf("creating %s: %w", f.Name, err)
			}
			continue
		}

		if err := extractFile(f, destPath); err != nil {
			return err
		}
	}
	return nil
}

func extractFile(f *zip.File, destPath string) error {
	if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
		return fmt.Errorf("creating directory for %s: %w", f.Name, err)
	}

	rc, err := f.Open()
	if err != nil {
		return fmt.Errorf("opening %s in archive: %w", f.Name, err)
	}
	defer rc.Close()

	mode := f.Mode().Perm()
	if mode == 0 {
		mode = 0o644
	}
	out, err := os.OpenFile(destPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, mode)
	if err != nil {
		return fmt.Errorf("creating %s: %w", f.Name, err)
	}

	_, err = io.Copy(out, rc)
	closeErr := out.Close()
	if err != nil {
		return fmt.Errorf("extracting %s: %w", f.Name, err)
	}
	if closeErr != nil {
		return fmt.Errorf("closing %s: %w", f.Name, closeErr)
	}
	return nil
}
