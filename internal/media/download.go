package media

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"os"
	"path"
	"strings"
	"time"
)

const downloadTimeout = 10 * time.Second

const userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) " +
	"AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36"

// DownloadImage fetches an image into a temporary file. Returns nil on any
// failure: media download is always best-effort.
func DownloadImage(ctx context.Context, rawURL string, client *http.Client) *Image {
	data, contentType, err := fetchBinary(ctx, rawURL, client)
	if err != nil {
		slog.Debug("image download failed", slog.String("url", rawURL), slog.Any("error", err))
		return nil
	}
	if !strings.HasPrefix(contentType, "image/") {
		slog.Debug("not an image", slog.String("url", rawURL), slog.String("content_type", contentType))
		return nil
	}
	p, err := persistTemp(data, "img-*"+extForType(contentType, rawURL, ".jpg"))
	if err != nil {
		return nil
	}
	return &Image{Path: p, SourceURL: rawURL}
}

// DownloadVideo fetches a video into a temporary file. Returns nil on any
// failure.
func DownloadVideo(ctx context.Context, rawURL string, client *http.Client) *Video {
	data, contentType, err := fetchBinary(ctx, rawURL, client)
	if err != nil {
		slog.Debug("video download failed", slog.String("url", rawURL), slog.Any("error", err))
		return nil
	}
	ext := extForType(contentType, rawURL, ".mp4")
	p, err := persistTemp(data, "vid-*"+ext)
	if err != nil {
		return nil
	}
	return &Video{Path: p, SourceURL: rawURL, Container: strings.TrimPrefix(ext, ".")}
}

// fetchBinary downloads raw bytes with a per-request timeout. The shared
// pooled client is used as-is; a nil client falls back to a private one.
func fetchBinary(ctx context.Context, rawURL string, client *http.Client) (data []byte, contentType string, err error) {
	if client == nil {
		client = &http.Client{Timeout: downloadTimeout}
	}

	ctx, cancel := context.WithTimeout(ctx, downloadTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := client.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("get: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("status %d", resp.StatusCode)
	}

	data, err = io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", fmt.Errorf("read body: %w", err)
	}

	contentType = resp.Header.Get("Content-Type")
	if i := strings.Index(contentType, ";"); i >= 0 {
		contentType = contentType[:i]
	}
	contentType = strings.TrimSpace(contentType)
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = http.DetectContentType(data)
	}
	return data, contentType, nil
}

// extForType picks a file extension from the content type, falling back to
// the URL path extension, then to def.
func extForType(contentType, rawURL, def string) string {
	if exts, err := mime.ExtensionsByType(contentType); err == nil && len(exts) > 0 {
		// mime returns extensions unordered; prefer the common ones.
		for _, want := range []string{".jpg", ".png", ".gif", ".webp", ".mp4", ".webm"} {
			for _, e := range exts {
				if e == want {
					return e
				}
			}
		}
		return exts[0]
	}
	if ext := path.Ext(strings.SplitN(path.Base(rawURL), "?", 2)[0]); ext != "" && len(ext) <= 5 {
		return ext
	}
	return def
}

// persistTemp writes data to a new temp file and returns its path.
func persistTemp(data []byte, pattern string) (string, error) {
	f, err := os.CreateTemp("", pattern)
	if err != nil {
		return "", fmt.Errorf("create temp: %w", err)
	}
	defer f.Close()
	if _, err := f.Write(data); err != nil {
		os.Remove(f.Name())
		return "", fmt.Errorf("write temp: %w", err)
	}
	return f.Name(), nil
}
