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

// Decodo scrapes arbitrary webpages through the Decodo Web Scraping API.
// Without credentials it degrades to a direct browser-TLS fetch so the
// "decodo" method tag still produces results in unconfigured deployments.
type Decodo struct {
	user     string
	password string
	endpoint string
}

func NewDecodo() *Decodo {
	c := retriever.Cfg
	return &Decodo{
		user:     c.DecodoUser,
		password: c.DecodoPassword,
		endpoint: "https://scraper-api.decodo.com/v2/scrape",
	}
}

func (d *Decodo) Name() string { return retriever.MethodDecodo }

type decodoResponse struct {
	Results []struct {
		Content string `json:"content"`
		Status  int    `json:"status_code"`
	} `json:"results"`
}

func (d *Decodo) Scrape(ctx context.Context, rawURL string, stripURLs bool, client *http.Client) (*media.Sequence, error) {
	if d.user == "" || d.password == "" {
		slog.Debug("decodo not configured, fetching directly")
		return directScrape(ctx, rawURL, stripURLs, client)
	}

	retriever.Metrics.DecodoRequests.Add(1)

	payload, err := json.Marshal(map[string]string{
		"url":    rawURL,
		"target": "universal",
	})
	if err != nil {
		return nil, err
	}

	resp, err := retriever.RetryHTTP(ctx, retriever.DefaultRetryConfig, func() (*http.Response, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.endpoint, bytes.NewReader(payload))
		if err != nil {
			return nil, err
		}
		req.SetBasicAuth(d.user, d.password)
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Accept", "application/json")
		return client.Do(req)
	})
	if err != nil {
		return nil, fmt.Errorf("decodo request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("decodo status %d", resp.StatusCode)
	}

	body, err := retriever.ReadResponseBody(resp)
	if err != nil {
		return nil, err
	}

	var out decodoResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("decodo decode: %w", err)
	}
	if len(out.Results) == 0 || out.Results[0].Content == "" {
		return nil, fmt.Errorf("decodo returned no content for %s", rawURL)
	}
	if s := out.Results[0].Status; s != 0 && s != http.StatusOK {
		return nil, fmt.Errorf("decodo target status %d", s)
	}

	return htmlToSequence(out.Results[0].Content, rawURL, stripURLs)
}
