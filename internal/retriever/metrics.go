package retriever

import (
	"fmt"
	"sort"
	"strings"
	"sync/atomic"
)

// Metrics tracks operational counters across the engine. Sub-packages
// increment their own counters directly (backends, scrapers, media pipeline).
var Metrics struct {
	RetrieveCalls     atomic.Int64
	BatchCalls        atomic.Int64
	URLsResolved      atomic.Int64
	URLsFailed        atomic.Int64
	XRequests         atomic.Int64
	RedditRequests    atomic.Int64
	BlueskyRequests   atomic.Int64
	YouTubeRequests   atomic.Int64
	DecodoRequests    atomic.Int64
	FirecrawlRequests atomic.Int64
	DirectRequests    atomic.Int64
	HLSDownloads      atomic.Int64
	MediaDownloads    atomic.Int64
	MediaErrors       atomic.Int64
	Reauths           atomic.Int64
}

// GetMetrics returns a snapshot of all metrics including cache stats.
func GetMetrics() map[string]int64 {
	hits, misses := CacheStats()
	return map[string]int64{
		"retrieve_calls":     Metrics.RetrieveCalls.Load(),
		"batch_calls":        Metrics.BatchCalls.Load(),
		"urls_resolved":      Metrics.URLsResolved.Load(),
		"urls_failed":        Metrics.URLsFailed.Load(),
		"x_requests":         Metrics.XRequests.Load(),
		"reddit_requests":    Metrics.RedditRequests.Load(),
		"bluesky_requests":   Metrics.BlueskyRequests.Load(),
		"youtube_requests":   Metrics.YouTubeRequests.Load(),
		"decodo_requests":    Metrics.DecodoRequests.Load(),
		"firecrawl_requests": Metrics.FirecrawlRequests.Load(),
		"direct_requests":    Metrics.DirectRequests.Load(),
		"hls_downloads":      Metrics.HLSDownloads.Load(),
		"media_downloads":    Metrics.MediaDownloads.Load(),
		"media_errors":       Metrics.MediaErrors.Load(),
		"reauths":            Metrics.Reauths.Load(),
		"cache_hits":         hits,
		"cache_misses":       misses,
	}
}

// FormatMetrics returns metrics as a simple text format for the HTTP endpoint.
func FormatMetrics() string {
	snapshot := GetMetrics()
	keys := make([]string, 0, len(snapshot))
	for k := range snapshot {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, k := range keys {
		fmt.Fprintf(&b, "%s %d\n", k, snapshot[k])
	}
	return b.String()
}
