package forge

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/smortex/r10k/internal/core/domain"
	"go.trai.ch/zerr"
)

const httpClientTimeout = 60 * time.Second

// Release is the subset of a forge release the transport uses.
type Release struct {
	Version    string `json:"version"`
	FileURI    string `json:"file_uri"`
	FileSHA256 string `json:"file_sha256,omitempty"`
}

// ModuleInfo is the subset of a forge module the transport uses.
type ModuleInfo struct {
	Slug           string  `json:"slug"`
	CurrentRelease Release `json:"current_release"`
}

// Client talks to the forge v3 API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a Client for the forge at baseURL.
func NewClient(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: httpClientTimeout}
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
	}
}

// Module fetches the module's metadata, including its current release.
func (c *Client) Module(ctx context.Context, slug string) (*ModuleInfo, error) {
	var info ModuleInfo
	if err := c.getJSON(ctx, "/v3/modules/"+slug, &info); err != nil {
		return nil, zerr.With(err, "module", slug)
	}
	return &info, nil
}

// Release fetches one release of the module.
func (c *Client) Release(ctx context.Context, slug, version string) (*Release, error) {
	var rel Release
	if err := c.getJSON(ctx, "/v3/releases/"+slug+"-"+version, &rel); err != nil {
		return nil, zerr.With(zerr.With(err, "module", slug), "version", version)
	}
	return &rel, nil
}

// Download stores the release archive at dest, verifying its checksum when
// the forge published one.
func (c *Client) Download(ctx context.Context, rel *Release, dest string) error {
	resp, err := c.get(ctx, rel.FileURI)
	if err != nil {
		return err
	}
	defer resp.Body.Close() //nolint:errcheck // Best effort close in defer

	if err := os.MkdirAll(filepath.Dir(dest), domain.DirPerm); err != nil {
		return zerr.With(zerr.Wrap(err, "failed to create download directory"), "path", dest)
	}
	tmp, err := os.CreateTemp(filepath.Dir(dest), ".download-*")
	if err != nil {
		return zerr.With(zerr.Wrap(err, "failed to create download file"), "path", dest)
	}
	defer os.Remove(tmp.Name()) //nolint:errcheck // gone after a successful rename

	digest := sha256.New()
	if _, err := io.Copy(io.MultiWriter(tmp, digest), resp.Body); err != nil {
		_ = tmp.Close()
		return errors.Join(domain.ErrForgeRequestFailed, zerr.With(err, "uri", rel.FileURI))
	}
	if err := tmp.Close(); err != nil {
		return zerr.With(zerr.Wrap(err, "failed to write download"), "path", dest)
	}

	if rel.FileSHA256 != "" {
		if sum := hex.EncodeToString(digest.Sum(nil)); !strings.EqualFold(sum, rel.FileSHA256) {
			err := zerr.With(zerr.Wrap(domain.ErrArchiveInvalid, "checksum mismatch"), "expected", rel.FileSHA256)
			return zerr.With(err, "actual", sum)
		}
	}

	if err := os.Rename(tmp.Name(), dest); err != nil {
		return zerr.With(zerr.Wrap(err, "failed to store download"), "path", dest)
	}
	return nil
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	resp, err := c.get(ctx, path)
	if err != nil {
		return err
	}
	defer resp.Body.Close() //nolint:errcheck // Best effort close in defer

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errors.Join(domain.ErrForgeRequestFailed, zerr.With(zerr.Wrap(err, "failed to decode response"), "uri", path))
	}
	return nil
}

// get issues a GET for a path relative to the forge base URL. Non-200
// responses are closed and returned as errors.
func (c *Client) get(ctx context.Context, path string) (*http.Response, error) {
	url := c.baseURL + path
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return nil, errors.Join(domain.ErrForgeRequestFailed, zerr.With(err, "url", url))
	}
	req.Header.Set("User-Agent", "r10k")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errors.Join(domain.ErrForgeRequestFailed, zerr.With(err, "url", url))
	}

	switch resp.StatusCode {
	case http.StatusOK:
		return resp, nil
	case http.StatusNotFound:
		_ = resp.Body.Close()
		return nil, zerr.With(zerr.Wrap(domain.ErrForgeReleaseNotFound, url), "url", url)
	default:
		_ = resp.Body.Close()
		err := zerr.With(zerr.Wrap(domain.ErrForgeRequestFailed, resp.Status), "status_code", resp.StatusCode)
		return nil, zerr.With(err, "url", url)
	}
}
