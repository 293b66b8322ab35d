// Package i18n translates template strings at render time from the
// compiled catalogs of a content tree.
//
// It wraps the gotext library around the MO files the pipeline writes to
// <compiled>/<lang>/LC_MESSAGES/<domain>.mo and exposes them to
// html/template through FuncMap.
//
// Usage:
//
//	tr := i18n.Load("i18n/_compiled", "contents", "de")
//	tmpl := template.New("page").Funcs(tr.FuncMap())
//	fmt.Println(tr.NGettext("%d file", "%d files", count))
package i18n

import (
	"context"
	"fmt"
	"html/template"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/leonelquinteros/gotext"

	"github.com/minios-linux/contentkit/extract"
)

// Translator looks up translations for one language. A nil Translator,
// or one whose catalog could not be found, returns its input unchanged.
type Translator struct {
	lang   string
	locale *gotext.Locale
	rec    *Recorder
}

// Load returns the translator for lang from compiledDir. If lang is empty
// it is detected from LANGUAGE, LC_ALL, LC_MESSAGES and LANG (in that
// order, matching GNU gettext behavior).
func Load(compiledDir, domain, lang string) *Translator {
	if lang == "" {
		lang = detectLanguage()
	}
	t := &Translator{lang: lang}

	mo := filepath.Join(compiledDir, lang, "LC_MESSAGES", domain+".mo")
	if _, err := os.Stat(mo); err != nil {
		return t
	}
	t.locale = gotext.NewLocale(compiledDir, lang)
	t.locale.AddDomain(domain)
	t.locale.SetDomain(domain)
	return t
}

// Language returns the language the translator was loaded for.
func (t *Translator) Language() string {
	if t == nil {
		return ""
	}
	return t.lang
}

// Loaded reports whether a compiled catalog backs the translator.
func (t *Translator) Loaded() bool {
	return t != nil && t.locale != nil
}

// Gettext translates msgid.
func (t *Translator) Gettext(msgid string) string {
	if !t.Loaded() {
		return msgid
	}
	return t.locale.Get(msgid)
}

// NGettext translates a string with plural forms. Without a catalog the
// singular is used when n == 1, the plural otherwise.
func (t *Translator) NGettext(singular, plural string, n int) string {
	if !t.Loaded() {
		if n == 1 {
			return singular
		}
		return plural
	}
	return t.locale.GetN(singular, plural, n)
}

// PGettext translates msgid in context ctx.
func (t *Translator) PGettext(ctx, msgid string) string {
	if !t.Loaded() {
		return msgid
	}
	return t.locale.GetC(msgid, ctx)
}

// NPGettext translates a plural string in context ctx.
func (t *Translator) NPGettext(ctx, singular, plural string, n int) string {
	if !t.Loaded() {
		if n == 1 {
			return singular
		}
		return plural
	}
	return t.locale.GetNC(singular, plural, n, ctx)
}

// RecordTo makes Translate report every string it sees to r. Attach a
// recorder while rendering the source language so dynamic strings reach
// the next master catalog.
func (t *Translator) RecordTo(r *Recorder) {
	t.rec = r
}

// Translate trims text and translates it. It is meant for strings that
// only exist at render time, such as values coming from record fields:
// {{ .Subtitle | translate }}.
func (t *Translator) Translate(text string) string {
	text = strings.TrimSpace(text)
	if text == "" {
		return ""
	}
	if t != nil && t.rec != nil {
		t.rec.add(text)
	}
	return t.Gettext(text)
}

// FuncMap returns the template functions backed by t. The argument order
// follows the C gettext functions, so the piped form passes the msgid last:
// {{ "Hello" | gettext }}.
func (t *Translator) FuncMap() template.FuncMap {
	return template.FuncMap{
		"gettext":         t.Gettext,
		"_":               t.Gettext,
		"ngettext":        t.NGettext,
		"pgettext":        t.PGettext,
		"npgettext":       t.NPGettext,
		"translate":       t.Translate,
		"choose_language": ChooseLanguage,
	}
}

// DynamicFile is the reference recorded for strings seen by Translate.
const DynamicFile = "(dynamic)"

// Recorder collects the strings passed to Translate. It is safe for
// concurrent use and serves them as a template reference source.
type Recorder struct {
	mu   sync.Mutex
	refs []extract.RawReference
}

func (r *Recorder) add(text string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, ref := range r.refs {
		if ref.Text == text {
			return
		}
	}
	r.refs = append(r.refs, extract.RawReference{Text: text, File: DynamicFile})
}

// References returns the recorded strings in first-seen order.
func (r *Recorder) References(ctx context.Context) ([]extract.RawReference, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.refs), nil
}

// ChooseLanguage returns the first item whose attr entry equals lang,
// otherwise the first whose attr equals fallback, otherwise nil. Values are
// compared case-insensitively with surrounding spaces ignored. items must
// be a slice of maps such as []map[string]any or []map[string]string.
func ChooseLanguage(items any, lang, fallback, attr string) any {
	list := asList(items)
	for _, want := range []string{lang, fallback} {
		want = strings.ToLower(strings.TrimSpace(want))
		if want == "" {
			continue
		}
		for _, item := range list {
			if v, ok := attribute(item, attr); ok && strings.ToLower(strings.TrimSpace(v)) == want {
				return item
			}
		}
	}
	return nil
}

func asList(items any) []any {
	switch v := items.(type) {
	case []any:
		return v
	case []map[string]any:
		out := make([]any, len(v))
		for i := range v {
			out[i] = v[i]
		}
		return out
	case []map[string]string:
		out := make([]any, len(v))
		for i := range v {
			out[i] = v[i]
		}
		return out
	}
	return nil
}

func attribute(item any, attr string) (string, bool) {
	switch m := item.(type) {
	case map[string]string:
		v, ok := m[attr]
		return v, ok
	case map[string]any:
		v, ok := m[attr]
		if !ok || v == nil {
			return "", false
		}
		if s, ok := v.(string); ok {
			return s, true
		}
		return fmt.Sprint(v), true
	}
	return "", false
}

// detectLanguage reads environment variables to determine the user's
// preferred language, following GNU gettext conventions.
func detectLanguage() string {
	for _, env := range []string{"LANGUAGE", "LC_ALL", "LC_MESSAGES", "LANG"} {
		if val := os.Getenv(env); val != "" {
			// LANGUAGE can be a colon-separated list; take the first
			if env == "LANGUAGE" {
				val, _, _ = strings.Cut(val, ":")
			}
			// Strip encoding suffix (e.g. "ru_RU.UTF-8" -> "ru_RU")
			if idx := strings.IndexByte(val, '.'); idx >= 0 {
				val = val[:idx]
			}
			if val == "C" || val == "POSIX" || val == "" {
				continue
			}
			return val
		}
	}
	return "en"
}
