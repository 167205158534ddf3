// Package retriever is the retrieval orchestration engine: it resolves URLs
// to multimodal content by trying an ordered chain of retrieval methods
// (platform integrations, then generic scraping services) and fans batches
// out with bounded concurrency while preserving input order.
package retriever

import (
	"context"
	"log/slog"
	"strings"

	"github.com/anatolykoptev/go_retrieve/internal/media"
)

// Options configures one retrieve call. The zero value means: default method
// chain, keep hyperlink URLs, no progress reporting, default concurrency.
type Options struct {
	Methods      []string // retrieval methods in priority order
	StripURLs    bool     // drop hyperlink targets from extracted text, keep anchor text
	ShowProgress bool     // log batch progress
	Limit        int      // max concurrently in-flight URLs (batch only)
}

func (o Options) withDefaults() Options {
	if len(o.Methods) == 0 {
		o.Methods = cfg.Methods
	}
	if o.Limit <= 0 {
		o.Limit = cfg.Limit
	}
	return o
}

// Retrieve downloads the content at the given URL. Returns nil when the URL
// is unsupported or every retrieval method failed — it never returns an
// error and never panics.
func Retrieve(ctx context.Context, rawURL string, opts Options) *media.Sequence {
	Metrics.RetrieveCalls.Add(1)
	opts = opts.withDefaults()

	seq := resolve(ctx, strings.TrimSpace(rawURL), opts, cfg.HTTPClient)
	if seq == nil {
		Metrics.URLsFailed.Add(1)
	} else {
		Metrics.URLsResolved.Add(1)
	}
	return seq
}

// RetrieveAll downloads the content of every URL in the batch. The result
// has the same length and order as the input; a URL appearing K times is
// fetched once and its result broadcast to all K positions. A total failure
// for one URL yields nil in that position; the call always completes.
func RetrieveAll(ctx context.Context, urls []string, opts Options) []*media.Sequence {
	Metrics.BatchCalls.Add(1)
	opts = opts.withDefaults()

	switch len(urls) {
	case 0:
		return []*media.Sequence{}
	case 1:
		return []*media.Sequence{Retrieve(ctx, urls[0], opts)}
	}

	// Deduplicate, keeping first-seen order for deterministic dispatch.
	unique := make([]string, 0, len(urls))
	seen := make(map[string]bool, len(urls))
	for _, u := range urls {
		u = strings.TrimSpace(u)
		if !seen[u] {
			seen[u] = true
			unique = append(unique, u)
		}
	}

	slog.Debug("batch retrieval",
		slog.Int("urls", len(urls)),
		slog.Int("unique", len(unique)),
		slog.Int("limit", opts.Limit),
	)

	tasks := make([]func(context.Context) *media.Sequence, len(unique))
	for i, u := range unique {
		tasks[i] = func(ctx context.Context) *media.Sequence {
			return Retrieve(ctx, u, opts)
		}
	}
	results := runBounded(ctx, tasks, opts.Limit, opts.ShowProgress, "retrieving URLs")

	// Broadcast back to the original order and multiplicity.
	byURL := make(map[string]*media.Sequence, len(unique))
	for i, u := range unique {
		byURL[u] = results[i]
	}
	out := make([]*media.Sequence, len(urls))
	for i, u := range urls {
		out[i] = byURL[strings.TrimSpace(u)]
	}
	return out
}
