package scrape

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/anatolykoptev/go_retrieve/internal/media"
	"github.com/anatolykoptev/go_retrieve/internal/retriever"
)

// Firecrawl scrapes webpages through the Firecrawl service, which returns
// markdown directly so no HTML extraction pass is needed.
type Firecrawl struct {
	apiKey   string
	endpoint string
}

func NewFirecrawl() *Firecrawl {
	return &Firecrawl{
		apiKey:   retriever.Cfg.FirecrawlAPIKey,
		endpoint: "https://api.firecrawl.dev/v2/scrape",
	}
}

func (f *Firecrawl) Name() string { return retriever.MethodFirecrawl }

type firecrawlResponse struct {
	Success bool `json:"success"`
	Data    struct {
		Markdown string `json:"markdown"`
		Metadata struct {
			Title       string `json:"title"`
			Description string `json:"description"`
			Language    string `json:"language"`
			OGImage     string `json:"ogImage"`
			StatusCode  int    `json:"statusCode"`
		} `json:"metadata"`
	} `json:"data"`
	Error string `json:"error"`
}

func (f *Firecrawl) Scrape(ctx context.Context, rawURL string, stripURLs bool, client *http.Client) (*media.Sequence, error) {
	if f.apiKey == "" {
		slog.Debug("firecrawl not configured, skipping")
		return nil, nil
	}

	retriever.Metrics.FirecrawlRequests.Add(1)

	payload, err := json.Marshal(map[string]any{
		"url":     rawURL,
		"formats": []string{"markdown"},
	})
	if err != nil {
		return nil, err
	}

	resp, err := retriever.RetryHTTP(ctx, retriever.DefaultRetryConfig, func() (*http.Response, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, f.endpoint, bytes.NewReader(payload))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", "Bearer "+f.apiKey)
		req.Header.Set("Content-Type", "application/json")
		return client.Do(req)
	})
	if err != nil {
		return nil, fmt.Errorf("firecrawl request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("firecrawl status %d", resp.StatusCode)
	}

	body, err := retriever.ReadResponseBody(resp)
	if err != nil {
		return nil, err
	}

	var out firecrawlResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("firecrawl decode: %w", err)
	}
	if !out.Success {
		return nil, fmt.Errorf("firecrawl error: %s", out.Error)
	}
	if out.Data.Markdown == "" {
		return nil, fmt.Errorf("firecrawl returned no content for %s", rawURL)
	}

	seq := markdownToSequence(out.Data.Markdown, out.Data.Metadata.Title, rawURL, stripURLs)
	if out.Data.Metadata.Description != "" {
		seq.Metadata["description"] = out.Data.Metadata.Description
	}
	if out.Data.Metadata.Language != "" {
		seq.Metadata["language"] = out.Data.Metadata.Language
	}

	if img := out.Data.Metadata.OGImage; img != "" {
		if dl := media.DownloadImage(ctx, img, client); dl != nil {
			retriever.Metrics.MediaDownloads.Add(1)
			seq.Items = append(seq.Items, media.FromImage(dl))
		}
	}
	return seq, nil
}
