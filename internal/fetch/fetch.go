// Package fetch downloads drop datasets into the local cache.
package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// DefaultURL is used when neither the config nor the command line name one.
const DefaultURL = "https://penguin-stats.io/PenguinStats/api/v2/dropstats/export.json"

const defaultFilename = "dataset.json"

// Download describes a dataset file written into the cache.
type Download struct {
	URL   string
	Path  string
	Bytes int64
}

// Fetcher performs dataset downloads.
type Fetcher struct {
	client *http.Client
	log    zerolog.Logger
}

// New creates a Fetcher with the default timeout.
func New(log zerolog.Logger) *Fetcher {
	return &Fetcher{
		client: &http.Client{Timeout: 60 * time.Second},
		log:    log,
	}
}

// Download fetches rawURL into cacheDir. The target file is replaced atomically.
func (f *Fetcher) Download(ctx context.Context, rawURL, cacheDir string) (Download, error) {
	if cacheDir == "" {
		return Download{}, fmt.Errorf("cache directory is required")
	}
	if rawURL == "" {
		rawURL = DefaultURL
	}
	filename, err := filenameFromURL(rawURL)
	if err != nil {
		return Download{}, err
	}
	if err := os.MkdirAll(cacheDir, 0o755); err != nil {
		return Download{}, fmt.Errorf("failed to create cache dir: %w", err)
	}

	f.log.Debug().Str("url", rawURL).Msg("downloading dataset")
	resp, err := f.request(ctx, rawURL)
	if err != nil {
		return Download{}, err
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode != http.StatusOK {
		return Download{}, fmt.Errorf("unexpected dataset status: %s", resp.Status)
	}

	tmpFile, err := os.CreateTemp(cacheDir, "dataset-*"+filepath.Ext(filename))
	if err != nil {
		return Download{}, fmt.Errorf("failed to create temp dataset: %w", err)
	}
	tmpPath := tmpFile.Name()
	defer func() {
		_ = tmpFile.Close()
		_ = os.Remove(tmpPath)
	}()

	n, err := io.Copy(tmpFile, resp.Body)
	if err != nil {
		return Download{}, fmt.Errorf("failed to download dataset: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return Download{}, fmt.Errorf("failed to close temp dataset: %w", err)
	}
	destPath := filepath.Join(cacheDir, filename)
	if err := os.Rename(tmpPath, destPath); err != nil {
		return Download{}, fmt.Errorf("failed to move dataset into cache: %w", err)
	}

	f.log.Info().Str("path", destPath).Int64("bytes", n).Msg("dataset downloaded")
	return Download{URL: rawURL, Path: destPath, Bytes: n}, nil
}

func (f *Fetcher) request(ctx context.Context, rawURL string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json, application/msgpack")
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	return resp, nil
}

func filenameFromURL(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("invalid dataset url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("unsupported dataset url scheme %q", u.Scheme)
	}
	name := path.Base(u.Path)
	switch strings.ToLower(path.Ext(name)) {
	case ".json", ".msgpack", ".mp":
		return name, nil
	default:
		return defaultFilename, nil
	}
}
