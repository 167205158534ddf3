package retriever

import "testing"

func TestGetDomain(t *testing.T) {
	tests := []struct {
		name          string
		url           string
		keepSubdomain bool
		want          string
	}{
		{"plain", "https://example.com/path", false, "example.com"},
		{"strips www", "https://www.example.com", false, "example.com"},
		{"strips subdomain", "https://oauth.reddit.com/api", false, "reddit.com"},
		{"keeps subdomain", "https://oauth.reddit.com/api", true, "oauth.reddit.com"},
		{"no scheme", "bsky.app/profile/alice", false, "bsky.app"},
		{"garbage", "not a url at all", false, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := GetDomain(tt.url, tt.keepSubdomain); got != tt.want {
				t.Errorf("GetDomain(%q, %v) = %q, want %q", tt.url, tt.keepSubdomain, got, tt.want)
			}
		})
	}
}

func TestStripLinks(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"link", "see [the docs](https://example.com/docs) here", "see the docs here"},
		{"image", "![alt text](https://example.com/img.png)", "alt text"},
		{"link with title", `[home](https://example.com "Home page")`, "home"},
		{"plain text untouched", "no links here", "no links here"},
		{"image inside link text stays ordered", "[![logo](https://a/l.png)](https://a)", "logo"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := StripLinks(tt.in); got != tt.want {
				t.Errorf("StripLinks(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}
