package ingestion

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// Chunk is a bounded, section-tagged segment of a tender's combined text.
// Text carries a rendered section prefix so both similarity search and the
// model see which part of the pliego the segment came from.
type Chunk struct {
	Text    string
	Section string
}

// Body returns the chunk text without the section prefix.
func (c Chunk) Body() string {
	if idx := strings.Index(c.Text, "\n"); idx >= 0 {
		return c.Text[idx+1:]
	}
	return c.Text
}

const (
	// DefaultMaxChars keeps several paragraphs together per chunk.
	DefaultMaxChars = 15000

	generalSection = "general"
)

var (
	whitespaceRe = regexp.MustCompile(`\s+`)
	sectionRe    = regexp.MustCompile(`(?i)(solvencia técnica|solvencia económica)`)
)

// Chunker splits normalized tender text into labeled chunks.
type Chunker struct {
	MaxChars int
}

func NewChunker(maxChars int) *Chunker {
	if maxChars <= 0 {
		maxChars = DefaultMaxChars
	}
	return &Chunker{MaxChars: maxChars}
}

// Chunk normalizes whitespace, labels sections by known marker phrases, and
// splits each section into segments of at most MaxChars, preferring sentence
// boundaries. Concatenating the bodies of all chunks in order reproduces the
// normalized input exactly.
func (c *Chunker) Chunk(text string) []Chunk {
	norm := Normalize(text)
	if norm == "" {
		return []Chunk{{Text: renderSection(generalSection), Section: generalSection}}
	}

	chunks := make([]Chunk, 0, len(norm)/c.MaxChars+1)
	for _, section := range splitSections(norm) {
		for _, segment := range splitSegments(section.text, c.MaxChars) {
			chunks = append(chunks, Chunk{
				Text:    renderSection(section.label) + segment,
				Section: section.label,
			})
		}
	}
	return chunks
}

// Normalize collapses whitespace runs to single spaces and trims.
func Normalize(text string) string {
	return strings.TrimSpace(whitespaceRe.ReplaceAllString(text, " "))
}

func renderSection(label string) string {
	return "[Sección: " + label + "]\n"
}

type section struct {
	label string
	text  string
}

// splitSections cuts the text at every known marker position. The marker
// match boundaries are kept intact: section texts are exact slices covering
// the whole input.
func splitSections(text string) []section {
	matches := sectionRe.FindAllStringIndex(text, -1)
	if len(matches) == 0 {
		return []section{{label: generalSection, text: text}}
	}

	sections := make([]section, 0, len(matches)+1)
	if matches[0][0] > 0 {
		sections = append(sections, section{label: generalSection, text: text[:matches[0][0]]})
	}
	for i, m := range matches {
		end := len(text)
		if i+1 < len(matches) {
			end = matches[i+1][0]
		}
		sections = append(sections, section{
			label: text[m[0]:m[1]],
			text:  text[m[0]:end],
		})
	}
	return sections
}

// splitSegments slices text into pieces of at most max bytes, cutting after
// the last sentence end inside the window when one exists, never inside a
// UTF-8 sequence.
func splitSegments(text string, max int) []string {
	var segments []string
	for len(text) > max {
		cut := max
		for cut > 0 && !utf8.RuneStart(text[cut]) {
			cut--
		}
		if idx := strings.LastIndex(text[:cut], ". "); idx > 0 {
			cut = idx + 2
		}
		segments = append(segments, text[:cut])
		text = text[cut:]
	}
	return append(segments, text)
}
