// go_retrieve — Multimodal URL Retrieval MCP server.
//
// Exposes two MCP tools: retrieve, retrieve_batch. Given one or many URLs,
// returns multimodal sequences: text plus local file paths of downloaded
// images and videos. Platform integrations (X, Reddit, Bluesky, YouTube)
// are tried first, generic scraping services (Decodo, Firecrawl) after.
package main

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/anatolykoptev/go-kit/env"
	"github.com/anatolykoptev/go-mcpserver"
	stealth "github.com/anatolykoptev/go-stealth"
	"github.com/anatolykoptev/go-stealth/proxypool"
	twitter "github.com/anatolykoptev/go-twitter"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/anatolykoptev/go_retrieve/internal/mcptools"
	"github.com/anatolykoptev/go_retrieve/internal/retriever"
	"github.com/anatolykoptev/go_retrieve/internal/retriever/backends"
	"github.com/anatolykoptev/go_retrieve/internal/retriever/scrape"
)

var (
	version = "dev"
	mcpPort = env.Str("MCP_PORT", "8893")
)

func main() {
	initEngine()

	slog.Info("starting go_retrieve",
		slog.String("port", mcpPort),
	)

	server := mcp.NewServer(&mcp.Implementation{
		Name:    "go_retrieve",
		Version: version,
	}, nil)

	mcptools.RegisterTools(server)
	slog.Info("tools registered", slog.Int("count", 2))

	if err := mcpserver.Run(server, mcpserver.Config{
		Name:    "go_retrieve",
		Version: version,
		Port:    mcpPort,
		// Batch retrieval with media downloads can run long.
		WriteTimeout: 600 * time.Second,
		Metrics:      retriever.FormatMetrics,
	}); err != nil {
		slog.Error("server failed", slog.Any("error", err))
	}
}

func initEngine() {
	c := retriever.Config{
		Methods:              env.List("RETRIEVAL_METHODS", ""),
		Limit:                env.Int("RETRIEVAL_LIMIT", 20),
		FetchTimeout:         env.Duration("FETCH_TIMEOUT", 10*time.Second),
		MaxContentChars:      env.Int("MAX_CONTENT_CHARS", 100_000),
		XBearerToken:         env.Str("X_BEARER_TOKEN", ""),
		RedditClientID:       env.Str("REDDIT_CLIENT_ID", ""),
		RedditClientSecret:   env.Str("REDDIT_CLIENT_SECRET", ""),
		RedditUsername:       env.Str("REDDIT_USERNAME", ""),
		RedditPassword:       env.Str("REDDIT_PASSWORD", ""),
		RedditUserAgent:      env.Str("REDDIT_USER_AGENT", ""),
		BlueskyHandle:        env.Str("BLUESKY_HANDLE", ""),
		BlueskyPassword:      env.Str("BLUESKY_PASSWORD", ""),
		DecodoUser:           env.Str("DECODO_USER", ""),
		DecodoPassword:       env.Str("DECODO_PASSWORD", ""),
		FirecrawlAPIKey:      env.Str("FIRECRAWL_API_KEY", ""),
		CacheMaxEntries:      env.Int("CACHE_MAX_ENTRIES", 1000),
		CacheCleanupInterval: env.Duration("CACHE_CLEANUP_INTERVAL", 300*time.Second),
		HTTPClient: &http.Client{
			Timeout: 15 * time.Second,
			Transport: &http.Transport{
				MaxIdleConns:        40,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     60 * time.Second,
			},
		},
	}

	var opts []stealth.ClientOption
	opts = append(opts, stealth.WithTimeout(15))

	if apiKey := env.Str("WEBSHARE_API_KEY", ""); apiKey != "" {
		pool, err := proxypool.NewWebshare(apiKey)
		if err != nil {
			slog.Warn("proxy pool init failed, running without proxy", slog.Any("error", err))
		} else {
			opts = append(opts, stealth.WithProxyPool(pool))
			slog.Info("proxy pool initialized", slog.Int("proxies", pool.Len()))
		}
	}

	bc, err := stealth.NewClient(opts...)
	if err != nil {
		slog.Error("stealth client init failed", slog.Any("error", err))
	} else {
		c.BrowserClient = bc
		slog.Info("stealth browser client initialized")
	}

	// Twitter client for X comment enrichment (optional — guest mode if no
	// accounts configured)
	accounts := twitter.ParseAccounts(env.Str("TWITTER_ACCOUNTS", ""))
	openCount := 2
	if len(accounts) > 0 {
		openCount = 0
	}
	tw, err := twitter.NewClient(twitter.ClientConfig{
		Accounts:         accounts,
		OpenAccountCount: openCount,
	})
	if err != nil {
		slog.Warn("twitter client init failed", slog.Any("error", err))
	} else {
		c.TwitterClient = tw
		slog.Info("twitter client ready", slog.Int("pool_size", tw.Pool().Size()))
	}

	retriever.Init(c)

	cacheTTL := env.Duration("CACHE_TTL", 6*time.Hour)
	retriever.InitCache(env.Str("REDIS_URL", ""), cacheTTL, c.CacheMaxEntries, c.CacheCleanupInterval)

	backends.Init()
	scrape.Init()
}
