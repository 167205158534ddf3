package scrape

import (
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
	"github.com/PuerkitoBio/goquery"
	readability "github.com/go-shiori/go-readability"

	"github.com/anatolykoptev/go_retrieve/internal/media"
	"github.com/anatolykoptev/go_retrieve/internal/retriever"
)

// htmlToSequence reduces raw page HTML to a markdown text sequence: boilerplate
// is stripped with readability, the remaining article HTML converted to
// markdown. Pages readability cannot parse fall back to plain text extraction.
func htmlToSequence(html, rawURL string, stripURLs bool) (*media.Sequence, error) {
	pageURL, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse url: %w", err)
	}

	title, md := extractMarkdown(html, pageURL)
	if strings.TrimSpace(md) == "" {
		return nil, fmt.Errorf("no textual content extracted from %s", rawURL)
	}

	return markdownToSequence(md, title, rawURL, stripURLs), nil
}

// markdownToSequence applies the shared post-processing (link stripping,
// length cap) and wraps the result. Used for both converted HTML and
// markdown delivered directly by a scraping service.
func markdownToSequence(md, title, rawURL string, stripURLs bool) *media.Sequence {
	if stripURLs {
		md = retriever.StripLinks(md)
	}
	md = retriever.TruncateRunes(md, retriever.Cfg.MaxContentChars, "\n\n[content truncated]")

	text := md
	if title != "" && !strings.HasPrefix(md, "# ") {
		text = "# " + title + "\n\n" + md
	}

	seq := media.NewSequence(media.Text(text))
	seq.Metadata = map[string]any{"url": rawURL}
	if title != "" {
		seq.Metadata["title"] = title
	}
	return seq
}

func extractMarkdown(html string, pageURL *url.URL) (title, md string) {
	article, err := readability.FromReader(strings.NewReader(html), pageURL)
	if err == nil && strings.TrimSpace(article.Content) != "" {
		md, err = htmltomarkdown.ConvertString(article.Content)
		if err == nil {
			return article.Title, md
		}
		slog.Debug("markdown conversion failed, falling back to plain text",
			slog.String("url", pageURL.String()), slog.Any("error", err))
		return article.Title, article.TextContent
	}

	// Readability rejects pages without article structure. Take the raw
	// body text instead of giving up on the URL.
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", ""
	}
	doc.Find("script, style, noscript").Remove()
	title = strings.TrimSpace(doc.Find("title").First().Text())
	return title, collapseBlankLines(doc.Find("body").Text())
}

// collapseBlankLines trims every line and squeezes runs of blank lines so
// goquery's whitespace-heavy text output reads like a document.
func collapseBlankLines(s string) string {
	var out []string
	blank := true
	for _, line := range strings.Split(s, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			if !blank {
				out = append(out, "")
			}
			blank = true
			continue
		}
		out = append(out, line)
		blank = false
	}
	return strings.TrimSpace(strings.Join(out, "\n"))
}
