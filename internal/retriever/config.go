package retriever

import (
	"net/http"
	"time"

	stealth "github.com/anatolykoptev/go-stealth"
	twitter "github.com/anatolykoptev/go-twitter"
)

// Config holds all engine configuration, injected from main.
type Config struct {
	// Retrieval behaviour.
	Methods         []string // default method chain, in priority order
	Limit           int      // max concurrently in-flight URLs in a batch
	FetchTimeout    time.Duration
	MaxContentChars int

	// Platform credentials. Empty values leave the backend unconfigured:
	// it still registers but yields no result.
	XBearerToken       string
	RedditClientID     string
	RedditClientSecret string
	RedditUsername     string
	RedditPassword     string
	RedditUserAgent    string
	BlueskyHandle      string
	BlueskyPassword    string

	// Scraping services.
	DecodoUser      string
	DecodoPassword  string
	FirecrawlAPIKey string

	// Auxiliary cache (never used for retrieval results).
	CacheMaxEntries      int
	CacheCleanupInterval time.Duration

	HTTPClient    *http.Client           // shared pooled client for all in-flight tasks
	BrowserClient *stealth.BrowserClient // nil = browser-TLS direct fetch disabled
	TwitterClient *twitter.Client        // nil = X comment enrichment disabled
}

var cfg Config

// Cfg exposes the engine configuration for sub-packages (backends, scrape).
// Always points to the current cfg value.
var Cfg = &cfg

// DefaultMethods is the method chain used when the caller supplies none.
func DefaultMethods() []string {
	return []string{MethodIntegrations, MethodDecodo, MethodFirecrawl}
}

// Init initializes the engine with the given configuration.
func Init(c Config) {
	if len(c.Methods) == 0 {
		c.Methods = DefaultMethods()
	}
	if c.Limit <= 0 {
		c.Limit = 20
	}
	if c.FetchTimeout <= 0 {
		c.FetchTimeout = 10 * time.Second
	}
	if c.MaxContentChars <= 0 {
		c.MaxContentChars = 100_000
	}
	if c.HTTPClient == nil {
		c.HTTPClient = NewHTTPClient(c.FetchTimeout)
	}
	cfg = c
	Cfg = &cfg
}
