package scrape

import (
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anatolykoptev/go_retrieve/internal/retriever"
)

func initTestConfig(t *testing.T) {
	t.Helper()
	retriever.Init(retriever.Config{HTTPClient: http.DefaultClient})
}

const articleHTML = `<!DOCTYPE html>
<html><head><title>Release Notes</title></head>
<body>
<article>
<h1>Release Notes</h1>
<p>The new version ships <a href="https://example.com/changelog">many fixes</a>
and improves startup time. This paragraph carries enough prose for the
readability pass to treat the page as an article worth keeping, rather than
navigation chrome to be discarded.</p>
<p>A second paragraph keeps the extraction honest: lists, links, and inline
<em>emphasis</em> should all survive the conversion to markdown.</p>
</article>
</body></html>`

func TestHTMLToSequence(t *testing.T) {
	initTestConfig(t)

	seq, err := htmlToSequence(articleHTML, "https://example.com/notes", false)
	require.NoError(t, err)

	text := seq.String()
	assert.Contains(t, text, "Release Notes")
	assert.Contains(t, text, "many fixes")
	assert.Contains(t, text, "https://example.com/changelog", "links kept when stripURLs is off")
	assert.Equal(t, "https://example.com/notes", seq.Metadata["url"])
}

func TestHTMLToSequenceStripsURLs(t *testing.T) {
	initTestConfig(t)

	seq, err := htmlToSequence(articleHTML, "https://example.com/notes", true)
	require.NoError(t, err)

	text := seq.String()
	assert.Contains(t, text, "many fixes", "anchor text survives")
	assert.NotContains(t, text, "https://example.com/changelog", "link target removed")
}

func TestHTMLToSequenceFallback(t *testing.T) {
	initTestConfig(t)

	// No article structure: readability gives up, the goquery fallback takes
	// the raw body text.
	page := `<html><head><title>Status</title><script>var x=1;</script></head>
<body><div>service is up</div><style>.a{}</style></body></html>`

	seq, err := htmlToSequence(page, "https://status.example.com", false)
	require.NoError(t, err)

	text := seq.String()
	assert.Contains(t, text, "service is up")
	assert.NotContains(t, text, "var x=1", "script content must not leak into text")
	assert.NotContains(t, text, ".a{}")
}

func TestHTMLToSequenceEmptyPage(t *testing.T) {
	initTestConfig(t)

	_, err := htmlToSequence("<html><body></body></html>", "https://example.com", false)
	require.Error(t, err, "a page without text is a scrape failure, not an empty result")
}

func TestHTMLToSequenceBadURL(t *testing.T) {
	initTestConfig(t)

	_, err := htmlToSequence(articleHTML, "://not-a-url", false)
	require.Error(t, err)
}

func TestCollapseBlankLines(t *testing.T) {
	in := "  first  \n\n\n\n  second\n\t\nthird\n\n"
	want := "first\n\nsecond\n\nthird"
	assert.Equal(t, want, collapseBlankLines(in))
}

func TestMarkdownToSequenceTitlePrefix(t *testing.T) {
	initTestConfig(t)

	t.Run("adds title heading", func(t *testing.T) {
		seq := markdownToSequence("body text", "Page Title", "https://e.com", false)
		assert.True(t, strings.HasPrefix(seq.String(), "# Page Title\n\n"))
	})

	t.Run("keeps existing heading", func(t *testing.T) {
		seq := markdownToSequence("# Own Heading\n\nbody", "Page Title", "https://e.com", false)
		assert.False(t, strings.Contains(seq.String(), "Page Title"))
	})
}
