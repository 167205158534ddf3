// Package backends holds the platform integrations: one retrieval backend
// per platform (X, Reddit, Bluesky, YouTube), each claiming URLs by domain
// and owning its private auth state.
package backends

import (
	"net/http"
	"strings"
	"time"

	"github.com/anatolykoptev/go_retrieve/internal/retriever"
)

// Init constructs every platform backend from the engine configuration and
// registers it with the retrieval chain. Registration order is match
// priority. Call once at startup, after retriever.Init.
func Init() {
	retriever.RegisterBackend(NewX())
	retriever.RegisterBackend(NewReddit())
	retriever.RegisterBackend(NewBluesky())
	retriever.RegisterBackend(NewYouTube())
}

// matchDomain reports whether the URL's domain is one of the given domains
// or a subdomain of one.
func matchDomain(rawURL string, domains ...string) bool {
	domain := retriever.GetDomain(rawURL, true)
	if domain == "" {
		return false
	}
	for _, d := range domains {
		if domain == d || strings.HasSuffix(domain, "."+d) {
			return true
		}
	}
	return false
}

// ensureClient returns the shared client when usable, otherwise a private
// one together with its release func. The release must run on every exit
// path of the call that created the client.
func ensureClient(shared *http.Client) (*http.Client, func()) {
	if shared != nil {
		return shared, func() {}
	}
	private := retriever.NewHTTPClient(10 * time.Second)
	return private, private.CloseIdleConnections
}
