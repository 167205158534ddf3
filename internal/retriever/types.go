package retriever

import "github.com/anatolykoptev/go_retrieve/internal/media"

type RetrieveInput struct {
	URL      string   `json:"url" jsonschema:"The URL to retrieve (webpage, X/Twitter post, Reddit post, Bluesky post, YouTube video, ...)"`
	Methods  []string `json:"methods,omitempty" jsonschema:"Retrieval methods to try in order: integrations, decodo, firecrawl. Default: all three in that order"`
	KeepURLs bool     `json:"keep_urls,omitempty" jsonschema:"Keep hyperlink URLs in the extracted text instead of reducing links to their anchor text"`
}

type RetrieveBatchInput struct {
	URLs     []string `json:"urls" jsonschema:"The URLs to retrieve. Duplicates are fetched once; results keep input order"`
	Methods  []string `json:"methods,omitempty" jsonschema:"Retrieval methods to try in order: integrations, decodo, firecrawl. Default: all three in that order"`
	KeepURLs bool     `json:"keep_urls,omitempty" jsonschema:"Keep hyperlink URLs in the extracted text instead of reducing links to their anchor text"`
	Limit    int      `json:"limit,omitempty" jsonschema:"Max concurrently in-flight URLs (default 20)"`
}

// ImageRef points at a downloaded image on local disk.
type ImageRef struct {
	Path      string `json:"path"`
	SourceURL string `json:"source_url"`
}

// VideoRef points at a downloaded video on local disk.
type VideoRef struct {
	Path      string `json:"path"`
	SourceURL string `json:"source_url"`
	Container string `json:"container"`
	SizeBytes int64  `json:"size_bytes"`
}

// RetrieveOutput is the serialized form of one retrieval result. Retrieved
// is false when the URL is unsupported or every method failed.
type RetrieveOutput struct {
	URL       string         `json:"url"`
	Retrieved bool           `json:"retrieved"`
	Text      string         `json:"text,omitempty"`
	Images    []ImageRef     `json:"images,omitempty"`
	Videos    []VideoRef     `json:"videos,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

type RetrieveBatchOutput struct {
	Results []RetrieveOutput `json:"results"`
}

// ToOutput converts a sequence into its wire form. Accepts nil, which maps
// to Retrieved=false.
func ToOutput(rawURL string, seq *media.Sequence) RetrieveOutput {
	out := RetrieveOutput{URL: rawURL}
	if seq == nil {
		return out
	}
	out.Retrieved = true
	out.Text = seq.String()
	out.Metadata = seq.Metadata
	for _, img := range seq.Images() {
		out.Images = append(out.Images, ImageRef{Path: img.Path, SourceURL: img.SourceURL})
	}
	for _, vid := range seq.Videos() {
		out.Videos = append(out.Videos, VideoRef{
			Path:      vid.Path,
			SourceURL: vid.SourceURL,
			Container: vid.Container,
			SizeBytes: vid.Size(),
		})
	}
	return out
}
