// Package scrape implements the generic scraping services used as fallback
// when no platform integration claims a URL: the Decodo Web Scraping API and
// the Firecrawl scraping service. Both turn arbitrary webpages into markdown
// sequences.
package scrape

import (
	"github.com/anatolykoptev/go_retrieve/internal/retriever"
)

// Init registers all scraping services with the retrieval engine. Called
// once from main after retriever.Init.
func Init() {
	retriever.RegisterScraper(NewDecodo())
	retriever.RegisterScraper(NewFirecrawl())
}
