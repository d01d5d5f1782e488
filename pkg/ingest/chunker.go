package ingest

import (
	"strings"
	"unicode"
)

const (
	DefaultMaxChunkChars = 1000
	DefaultChunkOverlap  = 200
)

// Chunker splits text into chunks of at most MaxChars runes. Paragraphs are
// packed together while they fit; longer paragraphs are cut into windows that
// overlap by Overlap runes and end on whitespace where possible.
type Chunker struct {
	MaxChars int
	Overlap  int
}

func NewChunker(maxChars, overlap int) *Chunker {
	if maxChars <= 0 {
		maxChars = DefaultMaxChunkChars
	}
	if overlap < 0 || overlap >= maxChars {
		overlap = min(DefaultChunkOverlap, maxChars/2)
	}
	return &Chunker{MaxChars: maxChars, Overlap: overlap}
}

// Split returns the chunks of text in document order. Blank input yields no
// chunks.
func (c *Chunker) Split(text string) []string {
	var (
		chunks  []string
		current []rune
	)

	flush := func() {
		if s := strings.TrimSpace(string(current)); s != "" {
			chunks = append(chunks, s)
		}
		current = current[:0]
	}

	for _, para := range paragraphs(text) {
		p := []rune(para)

		if len(p) > c.MaxChars {
			flush()
			chunks = append(chunks, c.window(p)...)
			continue
		}

		sep := 0
		if len(current) > 0 {
			sep = 2
		}
		if len(current)+sep+len(p) > c.MaxChars {
			flush()
			sep = 0
		}
		if sep > 0 {
			current = append(current, '\n', '\n')
		}
		current = append(current, p...)
	}
	flush()

	return chunks
}

// window cuts a long paragraph into overlapping windows.
func (c *Chunker) window(p []rune) []string {
	var out []string
	start := 0
	for start < len(p) {
		end := min(start+c.MaxChars, len(p))
		if end < len(p) {
			if cut := lastSpace(p[start:end]); cut > c.Overlap {
				end = start + cut
			}
		}

		if s := strings.TrimSpace(string(p[start:end])); s != "" {
			out = append(out, s)
		}
		if end == len(p) {
			break
		}

		next := end - c.Overlap
		if next <= start {
			next = end
		}
		start = next
	}
	return out
}

func lastSpace(r []rune) int {
	for i := len(r) - 1; i > 0; i-- {
		if unicode.IsSpace(r[i]) {
			return i
		}
	}
	return -1
}

func paragraphs(text string) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	var out []string
	for _, p := range strings.Split(text, "\n\n") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
