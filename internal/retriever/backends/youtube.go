package backends

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/lrstanley/go-ytdlp"

	"github.com/anatolykoptev/go_retrieve/internal/media"
	"github.com/anatolykoptev/go_retrieve/internal/retriever"
)

// lookYTDLP locates the yt-dlp binary. Variable so tests can stub it out.
var lookYTDLP = func() (string, error) {
	return exec.LookPath("yt-dlp")
}

// YouTube downloads videos and shorts through yt-dlp. Above 720p YouTube
// serves video and audio separately, which would need an ffmpeg merge, so
// the format selector caps resolution at 720p.
type YouTube struct{}

func NewYouTube() *YouTube { return &YouTube{} }

func (y *YouTube) Name() string { return "youtube" }

func (y *YouTube) Match(rawURL string) bool {
	return matchDomain(rawURL, "youtube.com", "youtu.be")
}

func (y *YouTube) Fetch(ctx context.Context, rawURL string, client *http.Client) (*media.Sequence, error) {
	if _, err := lookYTDLP(); err != nil {
		slog.Warn("yt-dlp binary not found, skipping youtube backend")
		return nil, nil
	}

	retriever.Metrics.YouTubeRequests.Add(1)
	client, release := ensureClient(client)
	defer release()

	dir, err := os.MkdirTemp("", "ytdl-*")
	if err != nil {
		return nil, fmt.Errorf("temp dir: %w", err)
	}

	dl := ytdlp.New().
		ForceOverwrites().
		RestrictFilenames().
		NoPlaylist().
		Format("best[height<=720][ext=mp4]/best[height<=720]").
		Output(filepath.Join(dir, "%(id)s.%(ext)s"))

	result, err := dl.Run(ctx, rawURL)
	if err != nil {
		os.RemoveAll(dir)
		return nil, fmt.Errorf("yt-dlp: %w", err)
	}

	infos, err := result.GetExtractedInfo()
	if err != nil || len(infos) == 0 {
		os.RemoveAll(dir)
		return nil, fmt.Errorf("yt-dlp metadata: %w", err)
	}
	info := infos[0]

	var items []media.Item
	items = append(items, media.Text(formatVideoText("YouTube", info)))

	if info.Thumbnail != nil && *info.Thumbnail != "" {
		if img := media.DownloadImage(ctx, *info.Thumbnail, client); img != nil {
			retriever.Metrics.MediaDownloads.Add(1)
			items = append(items, media.FromImage(img))
		}
	}

	if vid := locateDownload(dir, info, rawURL); vid != nil {
		retriever.Metrics.MediaDownloads.Add(1)
		items = append(items, media.FromVideo(vid))
	} else {
		retriever.Metrics.MediaErrors.Add(1)
		slog.Warn("yt-dlp produced no playable file", slog.String("url", rawURL))
	}

	seq := media.NewSequence(items...)
	seq.Metadata = map[string]any{"url": rawURL}
	if info.Title != nil {
		seq.Metadata["title"] = *info.Title
	}
	if info.Uploader != nil {
		seq.Metadata["uploader"] = *info.Uploader
	}
	if info.Duration != nil {
		seq.Metadata["duration"] = *info.Duration
	}
	return seq, nil
}

// formatVideoText renders the yt-dlp metadata the same way for every
// yt-dlp-backed platform.
func formatVideoText(platform string, info *ytdlp.ExtractedInfo) string {
	str := func(p *string) string {
		if p == nil {
			return ""
		}
		return *p
	}

	uploader := str(info.Uploader)
	if uploader == "" {
		uploader = "Unknown"
	}

	// upload_date comes as YYYYMMDD.
	posted := str(info.UploadDate)
	if t, err := time.Parse("20060102", posted); err == nil {
		posted = t.Format("2006-01-02")
	}

	duration := 0
	if info.Duration != nil {
		duration = int(*info.Duration)
	}

	return fmt.Sprintf(
		"**%s Video**\nAuthor: @%s\nPosted: %s\nDuration: %ds\n\n%s",
		platform, uploader, posted, duration, str(info.Description),
	)
}

// locateDownload finds the file yt-dlp wrote. The metadata filename is
// preferred; when absent, the single file in the download dir is used.
func locateDownload(dir string, info *ytdlp.ExtractedInfo, sourceURL string) *media.Video {
	path := ""
	if info.Filename != nil && *info.Filename != "" {
		path = *info.Filename
	} else {
		entries, err := os.ReadDir(dir)
		if err != nil || len(entries) == 0 {
			return nil
		}
		path = filepath.Join(dir, entries[0].Name())
	}

	if st, err := os.Stat(path); err != nil || st.Size() == 0 {
		return nil
	}

	container := strings.TrimPrefix(filepath.Ext(path), ".")
	if container == "" {
		container = "mp4"
	}
	return &media.Video{Path: path, SourceURL: sourceURL, Container: container}
}
