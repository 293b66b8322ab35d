// Package catalog holds the in-memory translation catalog shared by the
// extraction, merge, compile and regeneration stages.
//
// Catalogs are explicit values. Every stage receives the catalogs it works
// on and returns new ones; nothing here is global.
package catalog

import (
	"fmt"
	"slices"
	"strings"
)

// State classifies an entry for statistics and lookup.
type State int

const (
	Untranslated State = iota
	Translated
	Fuzzy
	Obsolete
)

func (s State) String() string {
	switch s {
	case Translated:
		return "translated"
	case Fuzzy:
		return "fuzzy"
	case Obsolete:
		return "obsolete"
	default:
		return "untranslated"
	}
}

// contextSeparator joins context and source in entry keys, as in MO files.
const contextSeparator = "\x04"

// Key returns the identity of a message: the source text, prefixed with
// its context when there is one.
func Key(context, source string) string {
	if context == "" {
		return source
	}
	return context + contextSeparator + source
}

// Entry is one message of a catalog.
type Entry struct {
	Context      string
	Source       string
	SourcePlural string
	Locations    []Location

	Translation        string
	PluralTranslations []string

	Fuzzy    bool
	Obsolete bool

	// PreviousSource and PreviousContext record what a fuzzy entry was
	// translated from.
	PreviousSource  string
	PreviousContext string

	TranslatorComments []string
	ExtractedComments  []string
	// Flags are the "#," flags other than fuzzy.
	Flags []string
}

// Key returns the entry's identity.
func (e *Entry) Key() string {
	return Key(e.Context, e.Source)
}

// HasTranslation reports whether any translation text is present,
// regardless of the fuzzy flag.
func (e *Entry) HasTranslation() bool {
	if e.SourcePlural == "" {
		return e.Translation != ""
	}
	for _, t := range e.PluralTranslations {
		if t != "" {
			return true
		}
	}
	return false
}

// complete reports whether every form carries a translation.
func (e *Entry) complete() bool {
	if e.SourcePlural == "" {
		return e.Translation != ""
	}
	if len(e.PluralTranslations) == 0 {
		return false
	}
	for _, t := range e.PluralTranslations {
		if t == "" {
			return false
		}
	}
	return true
}

// State reports the entry's translation state.
func (e *Entry) State() State {
	switch {
	case e.Obsolete:
		return Obsolete
	case e.Fuzzy:
		return Fuzzy
	case e.complete():
		return Translated
	default:
		return Untranslated
	}
}

// AddLocation appends loc unless an equal reference is already present.
func (e *Entry) AddLocation(loc Location) {
	for _, have := range e.Locations {
		if have.String() == loc.String() {
			return
		}
	}
	e.Locations = append(e.Locations, loc)
}

// SortLocations orders the locations and drops duplicates.
func (e *Entry) SortLocations() {
	slices.SortStableFunc(e.Locations, Compare)
	e.Locations = slices.CompactFunc(e.Locations, func(a, b Location) bool {
		return a.String() == b.String()
	})
}

// PrimaryLocation returns the smallest location of the entry.
func (e *Entry) PrimaryLocation() (Location, bool) {
	if len(e.Locations) == 0 {
		return Location{}, false
	}
	return slices.MinFunc(e.Locations, Compare), true
}

// ClearTranslation removes all translation text and the fuzzy state.
func (e *Entry) ClearTranslation() {
	e.Translation = ""
	e.PluralTranslations = nil
	e.Fuzzy = false
	e.PreviousSource = ""
	e.PreviousContext = ""
}

// Clone returns a deep copy of the entry.
func (e *Entry) Clone() *Entry {
	c := *e
	c.Locations = slices.Clone(e.Locations)
	for i := range c.Locations {
		c.Locations[i].Order = slices.Clone(c.Locations[i].Order)
	}
	c.PluralTranslations = slices.Clone(e.PluralTranslations)
	c.TranslatorComments = slices.Clone(e.TranslatorComments)
	c.ExtractedComments = slices.Clone(e.ExtractedComments)
	c.Flags = slices.Clone(e.Flags)
	return &c
}

// Standard header field names.
const (
	HeaderProject      = "Project-Id-Version"
	HeaderCreationDate = "POT-Creation-Date"
	HeaderRevisionDate = "PO-Revision-Date"
	HeaderLanguage     = "Language"
	HeaderPluralForms  = "Plural-Forms"
)

// HeaderField is one "Name: value" line of the catalog header.
type HeaderField struct {
	Name  string
	Value string
}

// Header is the catalog metadata entry.
type Header struct {
	Comments []string
	Fields   []HeaderField
	Fuzzy    bool
}

// Get returns the value of the named field, matched case-insensitively.
func (h *Header) Get(name string) string {
	if h == nil {
		return ""
	}
	for _, f := range h.Fields {
		if strings.EqualFold(f.Name, name) {
			return f.Value
		}
	}
	return ""
}

// Set replaces the named field, or appends it when missing.
func (h *Header) Set(name, value string) {
	for i, f := range h.Fields {
		if strings.EqualFold(f.Name, name) {
			h.Fields[i].Value = value
			return
		}
	}
	h.Fields = append(h.Fields, HeaderField{Name: name, Value: value})
}

// SetDefault sets the field only when it is missing or empty.
func (h *Header) SetDefault(name, value string) {
	if h.Get(name) == "" {
		h.Set(name, value)
	}
}

// Clone returns a deep copy of the header.
func (h *Header) Clone() *Header {
	if h == nil {
		return nil
	}
	return &Header{
		Comments: slices.Clone(h.Comments),
		Fields:   slices.Clone(h.Fields),
		Fuzzy:    h.Fuzzy,
	}
}

// Catalog is an ordered set of entries with a header.
type Catalog struct {
	Header  *Header
	Entries []*Entry
}

// New returns an empty catalog with the given header.
func New(h *Header) *Catalog {
	if h == nil {
		h = &Header{}
	}
	return &Catalog{Header: h}
}

// Find returns the active entry with the given key, or nil.
func (c *Catalog) Find(context, source string) *Entry {
	key := Key(context, source)
	for _, e := range c.Entries {
		if !e.Obsolete && e.Key() == key {
			return e
		}
	}
	return nil
}

// Active returns the non-obsolete entries in catalog order.
func (c *Catalog) Active() []*Entry {
	out := make([]*Entry, 0, len(c.Entries))
	for _, e := range c.Entries {
		if !e.Obsolete {
			out = append(out, e)
		}
	}
	return out
}

// Clone returns a deep copy of the catalog.
func (c *Catalog) Clone() *Catalog {
	out := &Catalog{Header: c.Header.Clone(), Entries: make([]*Entry, len(c.Entries))}
	for i, e := range c.Entries {
		out.Entries[i] = e.Clone()
	}
	return out
}

// Coalesce merges entries that share a key and an obsolete state into the
// first occurrence: locations are unioned and the first non-empty
// translation wins. It returns the keys that had duplicates.
func (c *Catalog) Coalesce() []string {
	type slot struct {
		key      string
		obsolete bool
	}
	first := make(map[slot]*Entry, len(c.Entries))
	var dups []string
	kept := c.Entries[:0]
	for _, e := range c.Entries {
		s := slot{key: e.Key(), obsolete: e.Obsolete}
		prev, ok := first[s]
		if !ok {
			first[s] = e
			kept = append(kept, e)
			continue
		}
		if !slices.Contains(dups, s.key) {
			dups = append(dups, s.key)
		}
		for _, loc := range e.Locations {
			prev.AddLocation(loc)
		}
		if !prev.HasTranslation() && e.HasTranslation() {
			prev.Translation = e.Translation
			prev.PluralTranslations = slices.Clone(e.PluralTranslations)
			prev.Fuzzy = e.Fuzzy
			prev.PreviousSource = e.PreviousSource
			prev.PreviousContext = e.PreviousContext
		}
		if prev.SourcePlural == "" {
			prev.SourcePlural = e.SourcePlural
		}
	}
	clear(c.Entries[len(kept):])
	c.Entries = kept
	return dups
}

// Stats counts entries per state.
type Stats struct {
	Total        int
	Translated   int
	Fuzzy        int
	Untranslated int
	Obsolete     int
}

// Percent returns the share of translated active entries.
func (s Stats) Percent() int {
	if s.Total == 0 {
		return 0
	}
	return s.Translated * 100 / s.Total
}

func (s Stats) String() string {
	return fmt.Sprintf("%d/%d translated, %d fuzzy, %d untranslated, %d obsolete",
		s.Translated, s.Total, s.Fuzzy, s.Untranslated, s.Obsolete)
}

// Stats returns entry counts. Total excludes obsolete entries.
func (c *Catalog) Stats() Stats {
	var s Stats
	for _, e := range c.Entries {
		switch e.State() {
		case Obsolete:
			s.Obsolete++
			continue
		case Translated:
			s.Translated++
		case Fuzzy:
			s.Fuzzy++
		default:
			s.Untranslated++
		}
		s.Total++
	}
	return s
}
