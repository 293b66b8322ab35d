package merge

import (
	"slices"
	"strings"
	"time"

	"github.com/minios-linux/contentkit/catalog"
	"github.com/minios-linux/contentkit/segment"
)

// Builder assembles the master catalog from content segments and template
// entries.
type Builder struct {
	Project string
	// URLPrefix is joined with record paths into an extracted comment, so
	// translators can look the page up. Empty disables the comment.
	URLPrefix string
	// Now stamps fresh headers; time.Now when nil.
	Now func() time.Time
}

// Build returns the master catalog. Entries are grouped by key with all
// their locations and ordered by their smallest location, then by key.
// previous is the last master, if any: its header (and creation date) and
// the flags of its entries are kept.
func (b Builder) Build(segments []segment.Segment, templates []*catalog.Entry, previous *catalog.Catalog) *catalog.Catalog {
	byKey := make(map[string]*catalog.Entry)
	var entries []*catalog.Entry
	get := func(context, source string) *catalog.Entry {
		key := catalog.Key(context, source)
		e, ok := byKey[key]
		if !ok {
			e = &catalog.Entry{Context: context, Source: source}
			byKey[key] = e
			entries = append(entries, e)
		}
		return e
	}

	for _, s := range segments {
		e := get("", s.Text)
		e.AddLocation(s.Location)
		if url := b.url(s.Record); url != "" && !slices.Contains(e.ExtractedComments, url) {
			e.ExtractedComments = append(e.ExtractedComments, url)
		}
	}
	for _, t := range templates {
		e := get(t.Context, t.Source)
		if e.SourcePlural == "" {
			e.SourcePlural = t.SourcePlural
		}
		for _, loc := range t.Locations {
			e.AddLocation(loc)
		}
		for _, c := range t.ExtractedComments {
			if !slices.Contains(e.ExtractedComments, c) {
				e.ExtractedComments = append(e.ExtractedComments, c)
			}
		}
	}

	for _, e := range entries {
		e.SortLocations()
		if previous != nil {
			if p := previous.Find(e.Context, e.Source); p != nil {
				e.Flags = unionFlags(p.Flags, e.Flags)
			}
		}
	}
	SortEntries(entries)

	var header *catalog.Header
	if previous != nil && len(previous.Header.Fields) > 0 {
		header = previous.Header.Clone()
	} else {
		now := time.Now
		if b.Now != nil {
			now = b.Now
		}
		header = catalog.NewHeader(b.Project, "", now())
	}
	if b.Project != "" {
		header.Set(catalog.HeaderProject, b.Project)
	}
	return &catalog.Catalog{Header: header, Entries: entries}
}

func (b Builder) url(record string) string {
	if b.URLPrefix == "" {
		return ""
	}
	return strings.TrimSuffix(b.URLPrefix, "/") + record
}

// SortEntries orders entries by primary location, then key. Entries
// without locations go last.
func SortEntries(entries []*catalog.Entry) {
	slices.SortStableFunc(entries, func(a, b *catalog.Entry) int {
		la, aok := a.PrimaryLocation()
		lb, bok := b.PrimaryLocation()
		switch {
		case aok && !bok:
			return -1
		case !aok && bok:
			return 1
		case aok && bok:
			if c := catalog.Compare(la, lb); c != 0 {
				return c
			}
		}
		return strings.Compare(a.Key(), b.Key())
	})
}

// unionFlags keeps the order of base and appends missing extra flags.
func unionFlags(base, extra []string) []string {
	out := slices.Clone(base)
	for _, f := range extra {
		if !slices.Contains(out, f) {
			out = append(out, f)
		}
	}
	return out
}
