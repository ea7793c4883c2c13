package media

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"
)

var contentTypeExtensions = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/gif":  ".gif",
	"video/mp4":  ".mp4",
}

// Downloader fetches media files sequentially, one URL at a time. A failed
// item is logged and skipped; the batch continues.
type Downloader struct {
	httpClient *http.Client
	userAgent  string
}

// NewDownloader builds a downloader. userAgent is sent on every request;
// Reddit media hosts reject requests without one.
func NewDownloader(userAgent string) *Downloader {
	return &Downloader{
		httpClient: &http.Client{Timeout: 60 * time.Second},
		userAgent:  userAgent,
	}
}

// Download saves each URL into dir in the given order and returns how many
// items were written.
func (d *Downloader) Download(ctx context.Context, urls []string, dir string) (int, error) {
	if len(urls) == 0 {
		return 0, nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return 0, fmt.Errorf("creating media directory %s: %w", dir, err)
	}

	saved := 0
	for i, u := range urls {
		if err := ctx.Err(); err != nil {
			return saved, err
		}
		if err := d.downloadOne(ctx, u, dir, i); err != nil {
			slog.Warn("Media download failed, skipping item", "url", u, "error", err)
			continue
		}
		saved++
	}
	slog.Info("Media download finished", "saved", saved, "total", len(urls), "dir", dir)
	return saved, nil
}

func (d *Downloader) downloadOne(ctx context.Context, mediaURL, dir string, index int) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, mediaURL, nil)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("User-Agent", d.userAgent)

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("fetching media: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	name := filenameFromURL(mediaURL)
	if name == "" {
		name = fmt.Sprintf("media_item_%d%s", index, extensionFromContentType(resp.Header.Get("Content-Type")))
	} else if index > 0 {
		// Gallery items often share generic names; suffix keeps them apart.
		ext := path.Ext(name)
		name = fmt.Sprintf("%s_%d%s", strings.TrimSuffix(name, ext), index, ext)
	}
	name = sanitizeMediaFilename(name, index)

	dest := filepath.Join(dir, name)
	f, err := os.Create(dest)
	if err != nil {
		return fmt.Errorf("creating %s: %w", dest, err)
	}
	defer f.Close()

	if _, err := io.Copy(f, resp.Body); err != nil {
		os.Remove(dest)
		return fmt.Errorf("writing %s: %w", dest, err)
	}
	slog.Debug("Media item saved", "path", dest)
	return nil
}

// filenameFromURL takes the last path component, stripping any query
// string. Empty when the URL has no usable path.
func filenameFromURL(raw string) string {
	parsed, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	name := path.Base(parsed.Path)
	if name == "." || name == "/" {
		return ""
	}
	return name
}

func extensionFromContentType(contentType string) string {
	for prefix, ext := range contentTypeExtensions {
		if strings.Contains(contentType, prefix) {
			return ext
		}
	}
	return ".dat"
}

func sanitizeMediaFilename(name string, index int) string {
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '_' || r == '-' || r == '.' || r == '(' || r == ')':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	out := strings.Trim(b.String(), "_ ")
	if out == "" || out == "." {
		return fmt.Sprintf("downloaded_media_%d.dat", index)
	}
	return out
}
