package media

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/grafov/m3u8"
)

const hlsFetchTimeout = 10 * time.Second

// DownloadHLS reconstructs a video from an HLS playlist URL: it fetches the
// playlist, picks the best variant of a master playlist, downloads the
// segments in order and joins them into one artifact.
//
// Failure semantics: everything up to segment download is fail-fast; a failed
// segment is skipped (a content gap, logged at WARN) and the remux to MP4 is
// best-effort with a raw transport-stream fallback. The returned Video is
// tagged with the originating playlist URL. If no segment could be
// downloaded, an error is returned instead of a Video.
func DownloadHLS(ctx context.Context, playlistURL string, client *http.Client) (*Video, error) {
	if client == nil {
		client = &http.Client{Timeout: hlsFetchTimeout}
	}

	body, err := fetchHLS(ctx, playlistURL, client)
	if err != nil {
		return nil, fmt.Errorf("fetch playlist: %w", err)
	}

	playlist, kind, err := m3u8.DecodeFrom(bytes.NewReader(body), false)
	if err != nil {
		return nil, fmt.Errorf("parse playlist: %w", err)
	}

	base := playlistURL
	var mediaPl *m3u8.MediaPlaylist

	switch kind {
	case m3u8.MASTER:
		master := playlist.(*m3u8.MasterPlaylist)
		variant := selectVariant(master.Variants)
		if variant == nil {
			return nil, errors.New("master playlist has no variants")
		}
		variantURL := resolveRef(base, variant.URI)
		slog.Debug("hls variant selected",
			slog.Uint64("bandwidth", uint64(variant.Bandwidth)),
			slog.String("url", variantURL),
		)

		variantBody, err := fetchHLS(ctx, variantURL, client)
		if err != nil {
			return nil, fmt.Errorf("fetch variant playlist: %w", err)
		}
		variantPl, variantKind, err := m3u8.DecodeFrom(bytes.NewReader(variantBody), false)
		if err != nil {
			return nil, fmt.Errorf("parse variant playlist: %w", err)
		}
		if variantKind != m3u8.MEDIA {
			return nil, errors.New("variant did not resolve to a media playlist")
		}
		mediaPl = variantPl.(*m3u8.MediaPlaylist)
		base = variantURL

	case m3u8.MEDIA:
		mediaPl = playlist.(*m3u8.MediaPlaylist)

	default:
		return nil, fmt.Errorf("unknown playlist type %d", kind)
	}

	// Segment downloads are failure-isolated: a failed segment leaves a gap
	// but never aborts the reconstruction. Segments are not retried.
	var buf bytes.Buffer
	var got, lost int
	for _, seg := range mediaPl.Segments {
		if seg == nil {
			continue
		}
		segURL := resolveRef(base, seg.URI)
		data, err := fetchHLS(ctx, segURL, client)
		if err != nil {
			lost++
			slog.Warn("hls segment failed, skipping",
				slog.Uint64("seq", seg.SeqId),
				slog.String("url", segURL),
				slog.Any("error", err),
			)
			continue
		}
		got++
		buf.Write(data)
	}

	if got == 0 {
		return nil, errors.New("no segments downloaded")
	}
	if lost > 0 {
		slog.Warn("hls reconstruction has gaps", slog.Int("got", got), slog.Int("lost", lost))
	}

	data, container := remuxToMP4(ctx, buf.Bytes())
	path, err := persistTemp(data, "hls-*."+container)
	if err != nil {
		return nil, err
	}
	return &Video{Path: path, SourceURL: playlistURL, Container: container}, nil
}

// selectVariant picks the variant with the highest declared bandwidth. When
// no variant declares a bandwidth, the last-listed one is used — a legacy
// heuristic only, the playlist format does not order variants by quality.
func selectVariant(variants []*m3u8.Variant) *m3u8.Variant {
	var best *m3u8.Variant
	for _, v := range variants {
		if v == nil {
			continue
		}
		if best == nil || v.Bandwidth > best.Bandwidth {
			best = v
		}
	}
	if best != nil && best.Bandwidth == 0 {
		for i := len(variants) - 1; i >= 0; i-- {
			if variants[i] != nil {
				return variants[i]
			}
		}
	}
	return best
}

// resolveRef resolves a possibly relative playlist or segment URI against the
// URL of the playlist that referenced it.
func resolveRef(base, ref string) string {
	if strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://") {
		return ref
	}
	b, err := url.Parse(base)
	if err != nil {
		return ref
	}
	r, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	return b.ResolveReference(r).String()
}

func fetchHLS(ctx context.Context, rawURL string, client *http.Client) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, hlsFetchTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}
