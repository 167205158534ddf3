package scrape

import (
	"context"
	"fmt"
	"net/http"

	stealth "github.com/anatolykoptev/go-stealth"

	"github.com/anatolykoptev/go_retrieve/internal/media"
	"github.com/anatolykoptev/go_retrieve/internal/retriever"
)

// directScrape fetches a page without any scraping service: through the
// browser-TLS client when one is configured, plain HTTP otherwise. Used as
// the credential-less fallback of the decodo method.
func directScrape(ctx context.Context, rawURL string, stripURLs bool, client *http.Client) (*media.Sequence, error) {
	retriever.Metrics.DirectRequests.Add(1)

	html, err := fetchPage(ctx, rawURL, client)
	if err != nil {
		return nil, err
	}
	return htmlToSequence(html, rawURL, stripURLs)
}

func fetchPage(ctx context.Context, rawURL string, client *http.Client) (string, error) {
	if bc := retriever.Cfg.BrowserClient; bc != nil {
		body, _, status, err := bc.Do(http.MethodGet, rawURL, stealth.ChromeHeaders(), nil)
		if err != nil {
			return "", fmt.Errorf("browser fetch: %w", err)
		}
		if status != http.StatusOK {
			return "", fmt.Errorf("browser fetch status %d", status)
		}
		return string(body), nil
	}

	body, err := retriever.RequestStatic(ctx, rawURL, client)
	if err != nil {
		return "", fmt.Errorf("direct fetch: %w", err)
	}
	return string(body), nil
}
