// Package media holds the multimodal content model: an ordered sequence of
// text and media items produced by a retrieval backend, plus the download
// and HLS reconstruction utilities backends use to materialize media.
package media

import (
	"fmt"
	"os"
	"strings"
)

// Image is a downloaded image backed by a temporary file.
// It is owned by the Sequence it belongs to and is not shared.
type Image struct {
	Path      string
	SourceURL string
}

// Video is a downloaded video backed by a temporary file.
// Container is the file container ("mp4", "ts", ...).
type Video struct {
	Path      string
	SourceURL string
	Container string
}

// Size returns the video file size in bytes, or 0 if the file is gone.
func (v *Video) Size() int64 {
	info, err := os.Stat(v.Path)
	if err != nil {
		return 0
	}
	return info.Size()
}

// Item is one element of a Sequence: exactly one of Text, Image, Video is set.
type Item struct {
	Text  string
	Image *Image
	Video *Video
}

// Text wraps a text segment as a sequence item.
func Text(s string) Item { return Item{Text: s} }

// FromImage wraps an image as a sequence item. Nil images are allowed and
// skipped by NewSequence, so callers can append download results directly.
func FromImage(img *Image) Item { return Item{Image: img} }

// FromVideo wraps a video as a sequence item.
func FromVideo(v *Video) Item { return Item{Video: v} }

// Sequence is an ordered list of text and media items. Item order is
// significant and preserved end-to-end. Metadata is attached by the producing
// backend and is opaque to the retrieval core.
type Sequence struct {
	Items    []Item
	Metadata map[string]any
}

// NewSequence builds a Sequence from the given items, dropping empty ones
// (empty text, nil image/video).
func NewSequence(items ...Item) *Sequence {
	seq := &Sequence{}
	for _, it := range items {
		if it.Text == "" && it.Image == nil && it.Video == nil {
			continue
		}
		seq.Items = append(seq.Items, it)
	}
	return seq
}

// Images returns all image items in order.
func (s *Sequence) Images() []*Image {
	var out []*Image
	for _, it := range s.Items {
		if it.Image != nil {
			out = append(out, it.Image)
		}
	}
	return out
}

// Videos returns all video items in order.
func (s *Sequence) Videos() []*Video {
	var out []*Video
	for _, it := range s.Items {
		if it.Video != nil {
			out = append(out, it.Video)
		}
	}
	return out
}

// String renders the sequence as text, with media items as reference markers.
func (s *Sequence) String() string {
	var b strings.Builder
	for i, it := range s.Items {
		if i > 0 {
			b.WriteString("\n")
		}
		switch {
		case it.Image != nil:
			fmt.Fprintf(&b, "[image: %s]", it.Image.Path)
		case it.Video != nil:
			fmt.Fprintf(&b, "[video: %s]", it.Video.Path)
		default:
			b.WriteString(it.Text)
		}
	}
	return b.String()
}

// Release removes the temporary files behind all media items. Safe to call
// more than once; callers that hand file paths onward should not call it.
func (s *Sequence) Release() {
	if s == nil {
		return
	}
	for _, it := range s.Items {
		if it.Image != nil && it.Image.Path != "" {
			os.Remove(it.Image.Path)
		}
		if it.Video != nil && it.Video.Path != "" {
			os.Remove(it.Video.Path)
		}
	}
}
