// Package segment splits field text into translatable units and joins
// them back.
//
// A field is split into a Layout: an ordered list of pieces whose
// concatenation is exactly the original text. Translatable pieces are the
// segments that go into catalogs; every other piece (indentation, blank
// lines, paragraph separators) is kept verbatim, so a translated field can
// always be rebuilt around the original whitespace.
package segment

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"github.com/minios-linux/contentkit/catalog"
)

// Mode is the granularity used to split a field.
type Mode int

const (
	// Line makes every non-blank line its own segment.
	Line Mode = iota
	// Paragraph makes every blank-line delimited block one segment, so
	// hard-wrapped prose stays together.
	Paragraph
)

// String returns the configuration name of the mode.
func (m Mode) String() string {
	switch m {
	case Line:
		return "line"
	case Paragraph:
		return "paragraph"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// ParseMode converts a configuration value into a Mode.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "line", "lines", "linewise":
		return Line, nil
	case "paragraph", "paragraphs", "paragraphwise":
		return Paragraph, nil
	}
	return Line, fmt.Errorf("unknown granularity %q (valid: line, paragraph)", s)
}

// Piece is one span of a field's text.
type Piece struct {
	Text         string
	Translatable bool
}

// Layout is the result of splitting a field.
type Layout []Piece

// Segments returns the translatable pieces in order.
func (l Layout) Segments() []string {
	var out []string
	for _, p := range l {
		if p.Translatable {
			out = append(out, p.Text)
		}
	}
	return out
}

// String concatenates all pieces. For a Layout produced by Split it is
// the original text.
func (l Layout) String() string {
	var b strings.Builder
	for _, p := range l {
		b.WriteString(p.Text)
	}
	return b.String()
}

// Join rebuilds the text, passing every translatable piece through
// replace. The segment index counts translatable pieces only.
func (l Layout) Join(replace func(index int, text string) string) string {
	var b strings.Builder
	idx := 0
	for _, p := range l {
		if !p.Translatable {
			b.WriteString(p.Text)
			continue
		}
		b.WriteString(replace(idx, p.Text))
		idx++
	}
	return b.String()
}

// paragraphBreak matches a newline followed by one or more blank lines.
var paragraphBreak = regexp.MustCompile(`\n(?:[ \t\r\f\v]*\n)+`)

// Split splits text according to mode.
func Split(text string, mode Mode) Layout {
	if mode == Paragraph {
		return splitParagraphs(text)
	}
	return splitLines(text)
}

func splitLines(text string) Layout {
	var l Layout
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		l = appendTrimmed(l, line)
		if i < len(lines)-1 {
			l = appendRaw(l, "\n")
		}
	}
	return l
}

func splitParagraphs(text string) Layout {
	var l Layout
	prev := 0
	for _, loc := range paragraphBreak.FindAllStringIndex(text, -1) {
		l = appendTrimmed(l, text[prev:loc[0]])
		l = appendRaw(l, text[loc[0]:loc[1]])
		prev = loc[1]
	}
	return appendTrimmed(l, text[prev:])
}

// appendTrimmed appends s as leading whitespace, core and trailing
// whitespace. Only a non-empty core is translatable.
func appendTrimmed(l Layout, s string) Layout {
	core := strings.TrimFunc(s, unicode.IsSpace)
	if core == "" {
		return appendRaw(l, s)
	}
	start := strings.Index(s, core)
	l = appendRaw(l, s[:start])
	l = append(l, Piece{Text: core, Translatable: true})
	return appendRaw(l, s[start+len(core):])
}

// appendRaw appends a raw piece, merging it with a preceding raw piece.
func appendRaw(l Layout, s string) Layout {
	if s == "" {
		return l
	}
	if n := len(l); n > 0 && !l[n-1].Translatable {
		l[n-1].Text += s
		return l
	}
	return append(l, Piece{Text: s})
}

// Segment is one translatable unit of a content record.
type Segment struct {
	// Record is the path of the owning record ("/blog/first-post").
	Record string
	// Location identifies file, field and segment index.
	Location catalog.Location
	// Text is the raw segment text, the catalog key.
	Text string
	// Mode is the granularity the segment was produced with.
	Mode Mode
}
