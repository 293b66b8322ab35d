package extract

import (
	"slices"
	"strings"

	"github.com/minios-linux/contentkit/catalog"
)

// RawReference is one translatable string found in a template.
type RawReference struct {
	Text    string
	Plural  string
	Context string
	File    string
	Line    int
	// Comments are extractor comments such as "TRANSLATORS:" notes.
	Comments []string
}

// Collector groups template references into catalog entries.
// The zero value is ready to use.
type Collector struct {
	byKey map[string]*catalog.Entry
	keys  []string
}

// Add records references. Blank texts are ignored.
func (c *Collector) Add(refs ...RawReference) {
	if c.byKey == nil {
		c.byKey = make(map[string]*catalog.Entry)
	}
	for _, r := range refs {
		if strings.TrimSpace(r.Text) == "" {
			continue
		}
		key := catalog.Key(r.Context, r.Text)
		e, ok := c.byKey[key]
		if !ok {
			e = &catalog.Entry{Context: r.Context, Source: r.Text}
			c.byKey[key] = e
			c.keys = append(c.keys, key)
		}
		// The first non-empty plural wins.
		if e.SourcePlural == "" {
			e.SourcePlural = r.Plural
		}
		e.AddLocation(catalog.Location{File: r.File, Line: r.Line})
		for _, comment := range r.Comments {
			if !slices.Contains(e.ExtractedComments, comment) {
				e.ExtractedComments = append(e.ExtractedComments, comment)
			}
		}
	}
}

// Entries returns one entry per (context, text) with sorted locations,
// ordered by primary location and then key.
func (c *Collector) Entries() []*catalog.Entry {
	out := make([]*catalog.Entry, 0, len(c.keys))
	for _, key := range c.keys {
		e := c.byKey[key].Clone()
		e.SortLocations()
		out = append(out, e)
	}
	slices.SortStableFunc(out, func(a, b *catalog.Entry) int {
		la, _ := a.PrimaryLocation()
		lb, _ := b.PrimaryLocation()
		if c := catalog.Compare(la, lb); c != 0 {
			return c
		}
		return strings.Compare(a.Key(), b.Key())
	})
	return out
}
