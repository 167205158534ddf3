package retriever

import (
	"context"
	"log/slog"
	"net/http"
	"sync"

	"github.com/anatolykoptev/go_retrieve/internal/media"
)

// Recognized retrieval method tags. The set is open: callers may pass any
// tag, unknown ones are skipped with a warning.
const (
	MethodIntegrations = "integrations"
	MethodDecodo       = "decodo"
	MethodFirecrawl    = "firecrawl"
)

// Backend is a platform integration: it claims URLs by domain and fetches
// their content. Fetch must confine side effects to network requests, log
// output and the backend's own private state.
type Backend interface {
	Name() string
	Match(url string) bool
	Fetch(ctx context.Context, url string, client *http.Client) (*media.Sequence, error)
}

// Scraper is a generic scraping service tried when no integration succeeds.
type Scraper interface {
	Name() string
	Scrape(ctx context.Context, url string, stripURLs bool, client *http.Client) (*media.Sequence, error)
}

// The registries are built once at startup (backends.Init, scrape.Init) and
// read-only afterwards; the mutex only guards registration.
var (
	registryMu sync.Mutex
	backendReg []Backend
	scraperReg = map[string]Scraper{}
)

// RegisterBackend adds a platform backend to the integration registry.
// Registration order is match priority.
func RegisterBackend(b Backend) {
	registryMu.Lock()
	defer registryMu.Unlock()
	backendReg = append(backendReg, b)
	slog.Debug("backend registered", slog.String("name", b.Name()))
}

// RegisterScraper adds a scraping service under its method tag.
func RegisterScraper(s Scraper) {
	registryMu.Lock()
	defer registryMu.Unlock()
	scraperReg[s.Name()] = s
	slog.Debug("scraper registered", slog.String("name", s.Name()))
}

// ResetRegistry clears all registered backends and scrapers. Test helper.
func ResetRegistry() {
	registryMu.Lock()
	defer registryMu.Unlock()
	backendReg = nil
	scraperReg = map[string]Scraper{}
}

// resolve tries each retrieval method in order and returns the first non-nil
// result. It never panics and never returns an error: every backend failure
// is logged and converted to "no result" so the chain keeps going.
func resolve(ctx context.Context, rawURL string, opts Options, client *http.Client) *media.Sequence {
	for _, method := range opts.Methods {
		var seq *media.Sequence
		switch method {
		case MethodIntegrations:
			seq = fetchViaIntegration(ctx, rawURL, client)
		default:
			scraper, ok := scraperReg[method]
			if !ok {
				slog.Warn("unknown retrieval method, skipping", slog.String("method", method))
				continue
			}
			seq = runScraper(ctx, scraper, rawURL, opts.StripURLs, client)
		}
		if seq != nil {
			slog.Debug("retrieved", slog.String("url", rawURL), slog.String("method", method))
			return seq
		}
	}
	slog.Debug("all retrieval methods failed", slog.String("url", rawURL))
	return nil
}

// fetchViaIntegration dispatches to the first backend claiming the URL.
// Only that backend is tried: a miss falls through to the next method, not
// to another integration.
func fetchViaIntegration(ctx context.Context, rawURL string, client *http.Client) (seq *media.Sequence) {
	backend := matchBackend(rawURL)
	if backend == nil {
		return nil
	}

	defer func() {
		if r := recover(); r != nil {
			slog.Error("backend panicked",
				slog.String("backend", backend.Name()),
				slog.String("url", rawURL),
				slog.Any("panic", r),
			)
			seq = nil
		}
	}()

	seq, err := backend.Fetch(ctx, rawURL, client)
	if err != nil {
		slog.Warn("backend failed",
			slog.String("backend", backend.Name()),
			slog.String("url", rawURL),
			slog.Any("error", err),
		)
		return nil
	}
	return seq
}

func matchBackend(rawURL string) Backend {
	registryMu.Lock()
	reg := backendReg
	registryMu.Unlock()
	for _, b := range reg {
		if b.Match(rawURL) {
			return b
		}
	}
	return nil
}

func runScraper(ctx context.Context, s Scraper, rawURL string, stripURLs bool, client *http.Client) (seq *media.Sequence) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("scraper panicked",
				slog.String("scraper", s.Name()),
				slog.String("url", rawURL),
				slog.Any("panic", r),
			)
			seq = nil
		}
	}()

	seq, err := s.Scrape(ctx, rawURL, stripURLs, client)
	if err != nil {
		slog.Warn("scraper failed",
			slog.String("scraper", s.Name()),
			slog.String("url", rawURL),
			slog.Any("error", err),
		)
		return nil
	}
	return seq
}
