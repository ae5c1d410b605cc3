package toolchain

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/spf13/afero"
)

// IsRemote reports whether a patch names an http(s) URL.
func IsRemote(patch string) bool {
	return strings.HasPrefix(patch, "http://") || strings.HasPrefix(patch, "https://")
}

func defaultHTTPClient() *http.Client { return &http.Client{Timeout: 60 * time.Second} }

// download writes the body of rawURL to dest on fs.
func download(ctx context.Context, client *http.Client, fs afero.Fs, rawURL, dest string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return fmt.Errorf("download: request: %w", err)
	}
	req.Header.Set("User-Agent", "mesos-pkg/1.0")

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("download: do: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("download %s: status %s", rawURL, resp.Status)
	}

	out, err := fs.Create(dest)
	if err != nil {
		return fmt.Errorf("download: create: %w", err)
	}
	defer out.Close()

	if _, err := io.Copy(out, resp.Body); err != nil {
		return fmt.Errorf("download: write: %w", err)
	}
	return nil
}

// patchFileName is the local name of a downloaded patch.
func patchFileName(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "remote.patch"
	}
	name := path.Base(u.Path)
	if name == "." || name == "/" || name == "" {
		return "remote.patch"
	}
	return name
}
