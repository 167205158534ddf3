package retriever

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"testing"

	"github.com/anatolykoptev/go_retrieve/internal/media"
)

type fakeBackend struct {
	name    string
	domains []string
	fetch   func(url string) (*media.Sequence, error)
}

func (f *fakeBackend) Name() string { return f.name }

func (f *fakeBackend) Match(url string) bool {
	for _, d := range f.domains {
		if strings.Contains(url, d) {
			return true
		}
	}
	return false
}

func (f *fakeBackend) Fetch(_ context.Context, url string, _ *http.Client) (*media.Sequence, error) {
	return f.fetch(url)
}

type fakeScraper struct {
	name   string
	mu     sync.Mutex
	calls  map[string]int
	scrape func(url string) (*media.Sequence, error)
}

func (f *fakeScraper) Name() string { return f.name }

func (f *fakeScraper) Scrape(_ context.Context, url string, _ bool, _ *http.Client) (*media.Sequence, error) {
	f.mu.Lock()
	if f.calls == nil {
		f.calls = map[string]int{}
	}
	f.calls[url]++
	f.mu.Unlock()
	return f.scrape(url)
}

func textSeq(s string) *media.Sequence { return media.NewSequence(media.Text(s)) }

func initTestEngine(t *testing.T) {
	t.Helper()
	ResetRegistry()
	t.Cleanup(ResetRegistry)
	Init(Config{HTTPClient: http.DefaultClient})
}

func TestRetrieveFallsThroughChain(t *testing.T) {
	initTestEngine(t)

	RegisterBackend(&fakeBackend{
		name:    "failing",
		domains: []string{"known.com"},
		fetch:   func(string) (*media.Sequence, error) { return nil, nil },
	})
	RegisterScraper(&fakeScraper{
		name:   "decodo",
		scrape: func(url string) (*media.Sequence, error) { return textSeq("scraped " + url), nil },
	})

	seq := Retrieve(context.Background(), "https://known.com/post/1", Options{
		Methods: []string{"integrations", "decodo"},
	})
	if seq == nil {
		t.Fatal("expected fallback scraper result, got nil")
	}
	if got := seq.String(); got != "scraped https://known.com/post/1" {
		t.Errorf("got %q", got)
	}
}

func TestRetrieveMethodOrder(t *testing.T) {
	initTestEngine(t)

	RegisterBackend(&fakeBackend{
		name:    "platform",
		domains: []string{"known.com"},
		fetch:   func(string) (*media.Sequence, error) { return textSeq("platform"), nil },
	})
	scraper := &fakeScraper{
		name:   "decodo",
		scrape: func(string) (*media.Sequence, error) { return textSeq("scraped"), nil },
	}
	RegisterScraper(scraper)

	seq := Retrieve(context.Background(), "https://known.com/x", Options{
		Methods: []string{"integrations", "decodo"},
	})
	if got := seq.String(); got != "platform" {
		t.Errorf("integration should win, got %q", got)
	}
	if len(scraper.calls) != 0 {
		t.Error("scraper called although integration succeeded")
	}
}

func TestRetrieveSkipsUnknownMethod(t *testing.T) {
	initTestEngine(t)

	RegisterScraper(&fakeScraper{
		name:   "decodo",
		scrape: func(string) (*media.Sequence, error) { return textSeq("ok"), nil },
	})

	seq := Retrieve(context.Background(), "https://example.com", Options{
		Methods: []string{"nonsense", "decodo"},
	})
	if seq == nil || seq.String() != "ok" {
		t.Fatalf("unknown method should be skipped, got %v", seq)
	}
}

func TestRetrieveUnsupportedURL(t *testing.T) {
	initTestEngine(t)

	RegisterBackend(&fakeBackend{
		name:    "narrow",
		domains: []string{"only.com"},
		fetch:   func(string) (*media.Sequence, error) { return textSeq("x"), nil },
	})

	seq := Retrieve(context.Background(), "https://other.com", Options{
		Methods: []string{"integrations"},
	})
	if seq != nil {
		t.Errorf("expected nil for unsupported URL, got %v", seq)
	}
}

func TestRetrievePanickingBackend(t *testing.T) {
	initTestEngine(t)

	RegisterBackend(&fakeBackend{
		name:    "boom",
		domains: []string{"known.com"},
		fetch:   func(string) (*media.Sequence, error) { panic("backend bug") },
	})
	RegisterScraper(&fakeScraper{
		name:   "decodo",
		scrape: func(string) (*media.Sequence, error) { return textSeq("rescued"), nil },
	})

	seq := Retrieve(context.Background(), "https://known.com/a", Options{
		Methods: []string{"integrations", "decodo"},
	})
	if seq == nil || seq.String() != "rescued" {
		t.Fatalf("panic should be contained and chain continued, got %v", seq)
	}
}

func TestRetrieveAllOrderAndDedup(t *testing.T) {
	initTestEngine(t)

	scraper := &fakeScraper{
		name:   "decodo",
		scrape: func(url string) (*media.Sequence, error) { return textSeq(url), nil },
	}
	RegisterScraper(scraper)

	urls := []string{
		"https://a.com", "https://b.com", "https://a.com",
		"https://c.com", "https://b.com", "https://a.com",
	}
	results := RetrieveAll(context.Background(), urls, Options{
		Methods: []string{"decodo"},
		Limit:   2,
	})

	if len(results) != len(urls) {
		t.Fatalf("got %d results, want %d", len(results), len(urls))
	}
	for i, u := range urls {
		if results[i] == nil || results[i].String() != u {
			t.Errorf("results[%d] = %v, want sequence for %q", i, results[i], u)
		}
	}
	// Duplicates share one fetch and one sequence.
	for u, n := range scraper.calls {
		if n != 1 {
			t.Errorf("%s fetched %d times, want 1", u, n)
		}
	}
	if results[0] != results[2] || results[2] != results[5] {
		t.Error("duplicate URLs should share the same sequence")
	}
}

func TestRetrieveAllPartialFailure(t *testing.T) {
	initTestEngine(t)

	RegisterScraper(&fakeScraper{
		name: "decodo",
		scrape: func(url string) (*media.Sequence, error) {
			if strings.Contains(url, "bad") {
				return nil, nil
			}
			return textSeq(url), nil
		},
	})

	results := RetrieveAll(context.Background(),
		[]string{"https://good.com", "https://bad.com", "https://good2.com"},
		Options{Methods: []string{"decodo"}})

	if results[0] == nil || results[2] == nil {
		t.Error("healthy URLs should succeed despite a failing neighbor")
	}
	if results[1] != nil {
		t.Errorf("failed URL should yield nil, got %v", results[1])
	}
}

func TestRetrieveAllEmpty(t *testing.T) {
	initTestEngine(t)

	results := RetrieveAll(context.Background(), nil, Options{})
	if results == nil || len(results) != 0 {
		t.Errorf("empty input should yield empty non-nil slice, got %v", results)
	}
}
