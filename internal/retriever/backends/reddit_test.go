package backends

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"golang.org/x/time/rate"
)

func TestExtractPostInfo(t *testing.T) {
	tests := []struct {
		name    string
		url     string
		wantSub string
		wantID  string
		wantOK  bool
	}{
		{"full post url", "https://www.reddit.com/r/golang/comments/1abc2d/some_title/", "golang", "1abc2d", true},
		{"old reddit", "https://old.reddit.com/r/news/comments/9xyz/", "news", "9xyz", true},
		{"subreddit only", "https://reddit.com/r/golang", "", "", false},
		{"user page", "https://reddit.com/user/spez", "", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sub, id, ok := extractPostInfo(tt.url)
			if sub != tt.wantSub || id != tt.wantID || ok != tt.wantOK {
				t.Errorf("extractPostInfo(%q) = (%q, %q, %v), want (%q, %q, %v)",
					tt.url, sub, id, ok, tt.wantSub, tt.wantID, tt.wantOK)
			}
		})
	}
}

func TestExtractSubredditAndUser(t *testing.T) {
	if got := extractSubreddit("https://www.reddit.com/r/golang/"); got != "golang" {
		t.Errorf("extractSubreddit = %q", got)
	}
	if got := extractSubreddit("https://reddit.com/r/golang/comments/1abc/x"); got != "" {
		t.Errorf("post url should not parse as subreddit, got %q", got)
	}
	if got := extractRedditUser("https://reddit.com/u/spez"); got != "spez" {
		t.Errorf("extractRedditUser = %q", got)
	}
	if got := extractRedditUser("https://reddit.com/user/spez/"); got != "spez" {
		t.Errorf("extractRedditUser = %q", got)
	}
}

// testReddit wires a Reddit backend against local auth and API servers.
func testReddit(authURL, apiBase string) *Reddit {
	return &Reddit{
		clientID:     "id",
		clientSecret: "secret",
		userAgent:    "test-agent",
		authURL:      authURL,
		apiBase:      apiBase,
		limiter:      rate.NewLimiter(rate.Inf, 1),
	}
}

func TestRedditReauthOnExpiredToken(t *testing.T) {
	var tokens atomic.Int64
	auth := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if user, _, ok := r.BasicAuth(); !ok || user != "id" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		n := tokens.Add(1)
		fmt.Fprintf(w, `{"access_token":"tok%d","expires_in":3600}`, n)
	}))
	defer auth.Close()

	var apiCalls atomic.Int64
	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		apiCalls.Add(1)
		if r.Header.Get("Authorization") != "Bearer tok2" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		fmt.Fprint(w, `{"data":{"display_name_prefixed":"r/golang","title":"Go","public_description":"the Go subreddit","subscribers":42,"created_utc":1258675200,"over18":false}}`)
	}))
	defer api.Close()

	r := testReddit(auth.URL, api.URL)
	// Simulate a stale cached token that the API no longer accepts.
	r.token = "tok-stale"
	r.tokenExp = time.Now().Add(time.Hour)
	tokens.Add(1) // tok1 was the stale one

	seq, err := r.fetchSubreddit(context.Background(), "golang", "https://reddit.com/r/golang", api.Client())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if seq == nil {
		t.Fatal("expected a sequence")
	}
	if got := tokens.Load(); got != 2 {
		t.Errorf("auth server issued %d tokens, want 2 (one re-auth)", got)
	}
	if got := apiCalls.Load(); got != 2 {
		t.Errorf("api saw %d calls, want 2 (401 then retry)", got)
	}
}

func TestRedditAuthFailure(t *testing.T) {
	auth := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer auth.Close()

	r := testReddit(auth.URL, "http://unused.invalid")
	_, err := r.fetchSubreddit(context.Background(), "golang", "https://reddit.com/r/golang", auth.Client())
	if err == nil {
		t.Fatal("expected error when authentication fails")
	}
}

func TestRedditTokenReuse(t *testing.T) {
	var tokens atomic.Int64
	auth := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		tokens.Add(1)
		fmt.Fprint(w, `{"access_token":"tok1","expires_in":3600}`)
	}))
	defer auth.Close()

	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{"data":{"name":"spez","created_utc":1118030400,"link_karma":1,"comment_karma":2,"is_mod":true}}`)
	}))
	defer api.Close()

	r := testReddit(auth.URL, api.URL)
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		if _, err := r.fetchUser(ctx, "spez", "https://reddit.com/u/spez", api.Client()); err != nil {
			t.Fatalf("call %d: %v", i, err)
		}
	}
	if got := tokens.Load(); got != 1 {
		t.Errorf("auth server issued %d tokens, want 1 (token reused until expiry)", got)
	}
}
