package merge

import (
	"bytes"
	"reflect"
	"testing"
	"time"

	"github.com/minios-linux/contentkit/catalog"
	"github.com/minios-linux/contentkit/segment"
)

var fixedNow = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func loc(file, field string, index int, order ...int) catalog.Location {
	return catalog.Location{File: file, Field: field, Index: index, Order: order}
}

func seg(record, file, field string, index int, text string, order ...int) segment.Segment {
	return segment.Segment{Record: record, Location: loc(file, field, index, order...), Text: text, Mode: segment.Paragraph}
}

func TestBuildGroupsAndOrders(t *testing.T) {
	b := Builder{Project: "site", URLPrefix: "https://example.org/", Now: func() time.Time { return fixedNow }}

	segments := []segment.Segment{
		seg("/blog", "blog/contents.lr", "body", 0, "Shared", 1),
		seg("/", "contents.lr", "title", 0, "Welcome", 0),
		seg("/", "contents.lr", "body", 0, "Shared", 1),
		seg("/", "contents.lr", "body", 1, "Only home", 1),
	}
	templates := []*catalog.Entry{
		{Source: "Shared", Locations: []catalog.Location{{File: "templates/base.html", Line: 3}}},
		{Source: "Footer", Locations: []catalog.Location{{File: "templates/base.html", Line: 9}}},
	}

	master := b.Build(segments, templates, nil)

	var keys []string
	for _, e := range master.Entries {
		keys = append(keys, e.Source)
	}
	if want := []string{"Welcome", "Shared", "Only home", "Footer"}; !reflect.DeepEqual(keys, want) {
		t.Fatalf("master order = %v, want %v", keys, want)
	}

	shared := master.Find("", "Shared")
	var refs []string
	for _, l := range shared.Locations {
		refs = append(refs, l.String())
	}
	wantRefs := []string{"contents.lr:body:0", "blog/contents.lr:body:0", "templates/base.html:3"}
	if !reflect.DeepEqual(refs, wantRefs) {
		t.Fatalf("Shared locations = %v, want %v", refs, wantRefs)
	}
	if !reflect.DeepEqual(shared.ExtractedComments, []string{"https://example.org/blog", "https://example.org/"}) {
		t.Fatalf("Shared comments = %v", shared.ExtractedComments)
	}
	if got := master.Header.Get(catalog.HeaderCreationDate); got != "2024-05-01 12:00+0000" {
		t.Fatalf("POT-Creation-Date = %q", got)
	}
}

func TestBuildKeepsPreviousHeaderAndFlags(t *testing.T) {
	previous := catalog.New(&catalog.Header{Fields: []catalog.HeaderField{
		{Name: catalog.HeaderProject, Value: "site"},
		{Name: catalog.HeaderCreationDate, Value: "2020-01-01 00:00+0000"},
	}})
	previous.Entries = []*catalog.Entry{{Source: "Welcome", Flags: []string{"no-wrap"}}}

	b := Builder{Project: "site", Now: func() time.Time { return fixedNow }}
	master := b.Build([]segment.Segment{seg("/", "contents.lr", "title", 0, "Welcome", 0)}, nil, previous)

	if got := master.Header.Get(catalog.HeaderCreationDate); got != "2020-01-01 00:00+0000" {
		t.Fatalf("creation date not preserved: %q", got)
	}
	if e := master.Find("", "Welcome"); !reflect.DeepEqual(e.Flags, []string{"no-wrap"}) {
		t.Fatalf("flags = %v", e.Flags)
	}
	if len(master.Find("", "Welcome").ExtractedComments) != 0 {
		t.Fatal("URL comment added without a prefix")
	}
}

func masterOf(entries ...*catalog.Entry) *catalog.Catalog {
	c := catalog.New(&catalog.Header{Fields: []catalog.HeaderField{
		{Name: catalog.HeaderProject, Value: "site"},
		{Name: catalog.HeaderCreationDate, Value: "new"},
	}})
	c.Entries = entries
	return c
}

func TestMergeKeepNewObsoleteAndHeaderUpdate(t *testing.T) {
	old := catalog.New(&catalog.Header{Fields: []catalog.HeaderField{
		{Name: catalog.HeaderProject, Value: "site"},
		{Name: catalog.HeaderCreationDate, Value: "old"},
		{Name: catalog.HeaderLanguage, Value: "ru"},
	}})
	old.Entries = []*catalog.Entry{
		{
			Source:             "keep",
			Translation:        "keep-translation",
			Fuzzy:              true,
			Flags:              []string{"c-format"},
			TranslatorComments: []string{"checked"},
			Locations:          []catalog.Location{{File: "old.html", Line: 1}},
		},
		{Source: "gone", Translation: "gone-translation", Locations: []catalog.Location{{File: "unused.html", Line: 1}}},
		{Source: "already-obsolete", Translation: "x", Obsolete: true},
	}

	master := masterOf(
		&catalog.Entry{Source: "keep", ExtractedComments: []string{"auto"}, Locations: []catalog.Location{{File: "new.html", Line: 10}}, Flags: []string{"python-format"}},
		&catalog.Entry{Source: "new", SourcePlural: "news"},
	)

	res := Merge(old, master, "ru", fixedNow)
	merged := res.Catalog

	if got := merged.Header.Get(catalog.HeaderCreationDate); got != "new" {
		t.Fatalf("POT-Creation-Date = %q, want new", got)
	}
	if got := merged.Header.Get(catalog.HeaderLanguage); got != "ru" {
		t.Fatalf("Language header lost: got %q", got)
	}
	if merged.Header.Get(catalog.HeaderPluralForms) == "" {
		t.Fatal("Plural-Forms not filled in")
	}

	if len(merged.Entries) != 4 {
		t.Fatalf("entries len = %d, want 4", len(merged.Entries))
	}

	keep := merged.Entries[0]
	if keep.Source != "keep" || keep.Translation != "keep-translation" || !keep.Fuzzy {
		t.Fatalf("keep entry = %#v", keep)
	}
	if !reflect.DeepEqual(keep.Flags, []string{"python-format", "c-format"}) {
		t.Fatalf("keep flags = %v", keep.Flags)
	}
	if !reflect.DeepEqual(keep.ExtractedComments, []string{"auto"}) || !reflect.DeepEqual(keep.TranslatorComments, []string{"checked"}) {
		t.Fatalf("keep comments = %v / %v", keep.ExtractedComments, keep.TranslatorComments)
	}
	if len(keep.Locations) != 1 || keep.Locations[0].String() != "new.html:10" {
		t.Fatalf("keep locations = %v", keep.Locations)
	}

	if n := merged.Entries[1]; n.Source != "new" || n.State() != catalog.Untranslated {
		t.Fatalf("new entry = %#v", n)
	}

	gone := merged.Entries[2]
	if gone.Source != "gone" || !gone.Obsolete || gone.Locations != nil {
		t.Fatalf("third entry should be obsolete copy, got %#v", gone)
	}
	if e := merged.Entries[3]; e.Source != "already-obsolete" || !e.Obsolete {
		t.Fatalf("old obsolete entry not kept: %#v", e)
	}
	if res.Added != 1 || res.Obsoleted != 1 || res.Fuzzy != 0 {
		t.Fatalf("result counts = %+v", res)
	}

	// The input catalog is untouched.
	if old.Entries[1].Obsolete {
		t.Fatal("Merge modified its input")
	}
}

func TestMergeMarksChangedContentFuzzy(t *testing.T) {
	old := catalog.New(&catalog.Header{})
	old.Entries = []*catalog.Entry{
		{Source: "Hello world", Translation: "Hallo Welt", Locations: []catalog.Location{loc("contents.lr", "title", 0)}},
		{Source: "Menu", Translation: "Menü", Locations: []catalog.Location{{File: "templates/nav.html", Line: 2}}},
	}
	master := masterOf(
		&catalog.Entry{Source: "Hello, world", Locations: []catalog.Location{loc("contents.lr", "title", 0)}},
		&catalog.Entry{Source: "Main menu", Locations: []catalog.Location{{File: "templates/nav.html", Line: 2}}},
	)

	res := Merge(old, master, "de", fixedNow)
	c := res.Catalog

	hello := c.Find("", "Hello, world")
	if hello.State() != catalog.Fuzzy || hello.Translation != "Hallo Welt" || hello.PreviousSource != "Hello world" {
		t.Fatalf("changed content entry = %#v", hello)
	}
	if menu := c.Find("", "Main menu"); menu.State() != catalog.Untranslated {
		t.Fatalf("template location inherited a translation: %#v", menu)
	}

	var obsolete []string
	for _, e := range c.Entries {
		if e.Obsolete {
			obsolete = append(obsolete, e.Source)
		}
	}
	if !reflect.DeepEqual(obsolete, []string{"Hello world", "Menu"}) {
		t.Fatalf("obsolete entries = %v", obsolete)
	}
	if res.Fuzzy != 1 {
		t.Fatalf("Fuzzy = %d, want 1", res.Fuzzy)
	}
}

func TestMergeRevivesObsoleteEntries(t *testing.T) {
	old := catalog.New(&catalog.Header{})
	old.Entries = []*catalog.Entry{{Source: "Back", Translation: "Zurück", Obsolete: true}}
	master := masterOf(&catalog.Entry{Source: "Back", Locations: []catalog.Location{loc("contents.lr", "title", 0)}})

	c := Merge(old, master, "de", fixedNow).Catalog
	if len(c.Entries) != 1 {
		t.Fatalf("entries = %d, want 1", len(c.Entries))
	}
	if e := c.Entries[0]; e.Obsolete || !e.Fuzzy || e.Translation != "Zurück" {
		t.Fatalf("revived entry = %#v", e)
	}
}

func TestMergeNewCatalogAndIdempotence(t *testing.T) {
	master := masterOf(
		&catalog.Entry{Source: "One", Locations: []catalog.Location{loc("contents.lr", "title", 0)}},
		&catalog.Entry{Source: "Two", Locations: []catalog.Location{loc("contents.lr", "body", 0)}},
	)

	first := Merge(nil, master, "fr", fixedNow).Catalog
	if first.Header.Get(catalog.HeaderLanguage) != "fr" || first.Header.Get(catalog.HeaderPluralForms) != "nplurals=2; plural=(n > 1);" {
		t.Fatalf("fresh header = %+v", first.Header.Fields)
	}
	first.Entries[0].Translation = "Un"

	second := Merge(first, master, "fr", fixedNow.Add(time.Hour)).Catalog
	third := Merge(second, master, "fr", fixedNow.Add(2*time.Hour)).Catalog

	var a, b bytes.Buffer
	if err := catalog.PO.Encode(&a, second); err != nil {
		t.Fatal(err)
	}
	if err := catalog.PO.Encode(&b, third); err != nil {
		t.Fatal(err)
	}
	if a.String() != b.String() {
		t.Fatalf("merge is not idempotent:\n%s\n---\n%s", a.String(), b.String())
	}
	if second.Find("", "One").Translation != "Un" {
		t.Fatal("translation lost")
	}
}

func TestMergeCoalescesDuplicates(t *testing.T) {
	old := catalog.New(&catalog.Header{})
	old.Entries = []*catalog.Entry{
		{Source: "Dup"},
		{Source: "Dup", Translation: "Doppelt"},
	}
	master := masterOf(&catalog.Entry{Source: "Dup", Locations: []catalog.Location{loc("contents.lr", "title", 0)}})

	res := Merge(old, master, "de", fixedNow)
	if !reflect.DeepEqual(res.Duplicates, []string{"Dup"}) {
		t.Fatalf("Duplicates = %v", res.Duplicates)
	}
	if len(res.Catalog.Entries) != 1 || res.Catalog.Entries[0].Translation != "Doppelt" {
		t.Fatalf("coalesced catalog = %#v", res.Catalog.Entries)
	}
}
