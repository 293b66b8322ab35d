// Package compile turns a merged language catalog into a lookup table and
// into GNU MO files.
//
// Fuzzy entries are compiled in on purpose: a possibly stale translation
// reads better than falling back to the source language. Obsolete and
// untranslated entries are left out.
package compile

import (
	"strconv"
	"strings"

	"github.com/leonelquinteros/gotext/plurals"

	"github.com/minios-linux/contentkit/catalog"
)

// Message is one compiled translation.
type Message struct {
	Context string
	ID      string
	Plural  string
	// Forms holds the translation, or one entry per plural form.
	Forms []string
}

// Table is an exact-match lookup of translations by source text and
// context. It is read-only after Compile and safe for concurrent use.
type Table struct {
	header   *catalog.Header
	msgs     map[string]*Message
	rule     plurals.Expression
	nplurals int
}

// Compile builds the table for c.
func Compile(c *catalog.Catalog) *Table {
	t := &Table{header: c.Header.Clone(), msgs: make(map[string]*Message)}
	t.rule, t.nplurals = pluralRule(c.Header.Get(catalog.HeaderPluralForms))

	for _, e := range c.Entries {
		if e.Obsolete || e.Source == "" || !e.HasTranslation() {
			continue
		}
		m := &Message{Context: e.Context, ID: e.Source, Plural: e.SourcePlural}
		if e.SourcePlural == "" {
			m.Forms = []string{e.Translation}
		} else {
			m.Forms = append([]string(nil), e.PluralTranslations...)
		}
		key := e.Key()
		if _, dup := t.msgs[key]; !dup {
			t.msgs[key] = m
		}
	}
	return t
}

// defaultRule is the Germanic rule used when a catalog names none.
const defaultRule = "n != 1"

// pluralRule compiles the plural expression of a Plural-Forms header.
func pluralRule(header string) (plurals.Expression, int) {
	expr, n := defaultRule, 2
	for _, part := range strings.Split(header, ";") {
		name, value, ok := strings.Cut(part, "=")
		if !ok {
			continue
		}
		switch strings.TrimSpace(name) {
		case "nplurals":
			if v, err := strconv.Atoi(strings.TrimSpace(value)); err == nil && v > 0 {
				n = v
			}
		case "plural":
			if v := strings.TrimSpace(value); v != "" {
				expr = v
			}
		}
	}
	rule, err := plurals.Compile(expr)
	if err != nil {
		rule, _ = plurals.Compile(defaultRule)
		n = 2
	}
	return rule, n
}

// Len returns the number of compiled messages.
func (t *Table) Len() int {
	return len(t.msgs)
}

// Lookup returns the singular translation of id in context ctx. It reports
// false when there is no non-empty translation.
func (t *Table) Lookup(ctx, id string) (string, bool) {
	m, ok := t.msgs[catalog.Key(ctx, id)]
	if !ok || len(m.Forms) == 0 || m.Forms[0] == "" {
		return "", false
	}
	return m.Forms[0], true
}

// Translate looks up content text, which never carries a context.
func (t *Table) Translate(text string) (string, bool) {
	return t.Lookup("", text)
}

// Get returns the translation of id, or id itself.
func (t *Table) Get(id string) string {
	return t.GetC(id, "")
}

// GetC returns the translation of id in context ctx, or id itself.
func (t *Table) GetC(id, ctx string) string {
	if s, ok := t.Lookup(ctx, id); ok {
		return s
	}
	return id
}

// GetN returns the plural form of id for n.
func (t *Table) GetN(id, plural string, n int) string {
	return t.GetNC(id, plural, n, "")
}

// GetNC returns the plural form of id for n in context ctx. Missing forms
// fall back to the source strings.
func (t *Table) GetNC(id, plural string, n int, ctx string) string {
	if m, ok := t.msgs[catalog.Key(ctx, id)]; ok {
		idx := t.PluralIndex(n)
		if m.Plural == "" {
			idx = 0
		}
		if idx < len(m.Forms) && m.Forms[idx] != "" {
			return m.Forms[idx]
		}
	}
	if n == 1 {
		return id
	}
	return plural
}

// PluralIndex returns the plural form used for n.
func (t *Table) PluralIndex(n int) int {
	if n < 0 {
		n = -n
	}
	idx := t.rule.Eval(uint32(n))
	if idx < 0 || idx >= t.nplurals {
		return 0
	}
	return idx
}
