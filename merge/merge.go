// Package merge builds the master catalog and merges it into the
// per-language catalogs, much like the msgmerge utility.
package merge

import (
	"slices"
	"time"

	"github.com/minios-linux/contentkit/catalog"
	"github.com/minios-linux/contentkit/pofile"
)

// Result is the outcome of merging one language.
type Result struct {
	Catalog *catalog.Catalog
	// Added counts master entries that start untranslated.
	Added int
	// Fuzzy counts entries that inherited a translation from changed text.
	Fuzzy int
	// Obsoleted counts entries that left the master in this merge.
	Obsoleted int
	// Duplicates lists keys that appeared more than once in old.
	Duplicates []string
}

// Merge updates a language catalog from the master. old may be nil for a
// language without a catalog yet; it is not modified.
//   - Entries still in the master keep their translation, fuzzy state and
//     translator comments; locations and extracted comments come from the
//     master.
//   - New master entries are added untranslated, unless they took the
//     place of a vanished translated entry at the same content location:
//     then they inherit its translation as fuzzy.
//   - Entries no longer in the master are appended as obsolete after all
//     active entries, in their old order.
func Merge(old, master *catalog.Catalog, lang string, now time.Time) *Result {
	res := &Result{}
	if old == nil {
		old = catalog.New(catalog.NewHeader(master.Header.Get(catalog.HeaderProject), lang, now))
	} else {
		old = old.Clone()
		res.Duplicates = old.Coalesce()
	}

	inMaster := make(map[string]bool, len(master.Entries))
	for _, m := range master.Entries {
		if !m.Obsolete {
			inMaster[m.Key()] = true
		}
	}

	// Index old entries.
	active := make(map[string]*catalog.Entry)
	obsolete := make(map[string]*catalog.Entry)
	vanished := make(map[string][]*catalog.Entry)
	for _, e := range old.Entries {
		if e.Obsolete {
			if _, ok := obsolete[e.Key()]; !ok {
				obsolete[e.Key()] = e
			}
			continue
		}
		active[e.Key()] = e
		if inMaster[e.Key()] || !e.HasTranslation() {
			continue
		}
		for _, loc := range e.Locations {
			if !loc.IsTemplate() {
				vanished[loc.String()] = append(vanished[loc.String()], e)
			}
		}
	}

	out := catalog.New(mergeHeader(old.Header, master.Header, lang))
	for _, m := range master.Entries {
		if m.Obsolete {
			continue
		}
		e := m.Clone()
		e.ClearTranslation()
		e.TranslatorComments = nil

		if o, ok := active[e.Key()]; ok {
			e.Translation = o.Translation
			e.PluralTranslations = slices.Clone(o.PluralTranslations)
			e.Fuzzy = o.Fuzzy
			e.PreviousSource = o.PreviousSource
			e.PreviousContext = o.PreviousContext
			e.TranslatorComments = slices.Clone(o.TranslatorComments)
			e.Flags = unionFlags(e.Flags, o.Flags)
		} else if o, ok := obsolete[e.Key()]; ok && o.HasTranslation() && samePlurality(e, o) {
			// Text came back: revive the old translation for review.
			e.Translation = o.Translation
			e.PluralTranslations = slices.Clone(o.PluralTranslations)
			e.TranslatorComments = slices.Clone(o.TranslatorComments)
			e.Fuzzy = true
			res.Fuzzy++
		} else if o := fuzzyMatch(e, vanished); o != nil {
			e.Translation = o.Translation
			e.PluralTranslations = slices.Clone(o.PluralTranslations)
			e.TranslatorComments = slices.Clone(o.TranslatorComments)
			e.Fuzzy = true
			e.PreviousSource = o.Source
			e.PreviousContext = o.Context
			res.Fuzzy++
		} else {
			res.Added++
		}
		out.Entries = append(out.Entries, e)
	}

	// Obsolete entries, in old order. An entry obsoleted now replaces an
	// older obsolete copy of the same key.
	newlyObsolete := make(map[string]bool)
	for _, e := range old.Entries {
		if !e.Obsolete && !inMaster[e.Key()] {
			newlyObsolete[e.Key()] = true
		}
	}
	for _, e := range old.Entries {
		key := e.Key()
		if inMaster[key] {
			continue
		}
		if e.Obsolete && newlyObsolete[key] {
			continue
		}
		o := e.Clone()
		if !e.Obsolete {
			o.Obsolete = true
			res.Obsoleted++
		}
		o.Locations = nil
		out.Entries = append(out.Entries, o)
	}

	res.Catalog = out
	return res
}

// fuzzyMatch returns the first vanished translated entry sharing a content
// location with e.
func fuzzyMatch(e *catalog.Entry, vanished map[string][]*catalog.Entry) *catalog.Entry {
	for _, loc := range e.Locations {
		if loc.IsTemplate() {
			continue
		}
		for _, o := range vanished[loc.String()] {
			if samePlurality(e, o) {
				return o
			}
		}
	}
	return nil
}

func samePlurality(a, b *catalog.Entry) bool {
	return (a.SourcePlural == "") == (b.SourcePlural == "")
}

// mergeHeader keeps the language catalog's header, takes the creation date
// from the master and fills in language fields that are missing.
func mergeHeader(old, master *catalog.Header, lang string) *catalog.Header {
	h := old.Clone()
	if h == nil {
		h = &catalog.Header{}
	}
	if date := master.Get(catalog.HeaderCreationDate); date != "" {
		h.Set(catalog.HeaderCreationDate, date)
	}
	h.SetDefault(catalog.HeaderLanguage, lang)
	h.SetDefault(catalog.HeaderPluralForms, pofile.PluralFormsForLang(lang))
	return h
}
