package extract

import (
	"context"
	"go/parser"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/minios-linux/contentkit/catalog"
	"github.com/minios-linux/contentkit/content"
	"github.com/minios-linux/contentkit/segment"
)

type testSchema struct {
	translatable map[string]bool
	flows        map[string]bool
	order        map[string][]string
}

func (s testSchema) Translatable(model, field string) bool { return s.translatable[model+"."+field] }
func (s testSchema) IsFlow(model, field string) bool       { return s.flows[model+"."+field] }
func (s testSchema) FieldOrder(model string) []string      { return s.order[model] }

var pageSchema = testSchema{
	translatable: map[string]bool{
		"page.title":          true,
		"page.body":           true,
		"page.blocks":         true,
		"flowblock:text.text": true,
	},
	flows: map[string]bool{"page.blocks": true},
	order: map[string][]string{
		"page":           {"title", "body", "blocks"},
		"flowblock:text": {"text"},
	},
}

func write(t *testing.T, root, name, data string) {
	t.Helper()
	p := filepath.Join(root, filepath.FromSlash(name))
	if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(p, []byte(data), 0644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
}

func TestExtractorFollowsSchemaOrder(t *testing.T) {
	t.Parallel()

	src := "body:\n\nFirst.\n\nSecond.\n---\nauthor: Jane\n---\n_template: x.html\n---\ntitle: Hello\n---\nblocks:\n\n#### text ####\ntext: In a block\n"
	rec, err := content.Decode("about/contents.lr", []byte(src), pageSchema, "page")
	if err != nil {
		t.Fatal(err)
	}

	core, logs := observer.New(zapcore.WarnLevel)
	res := NewExtractor(pageSchema, segment.Paragraph, zap.New(core)).Extract(rec)

	var got []string
	for _, s := range res.Segments {
		got = append(got, s.Location.String()+"="+s.Text)
	}
	want := []string{
		"about/contents.lr:title:0=Hello",
		"about/contents.lr:body:0=First.",
		"about/contents.lr:body:1=Second.",
		"about/contents.lr:blocks.0.text:0=In a block",
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("segments:\n got %v\nwant %v", got, want)
	}
	if res.Segments[3].Record != "/about" || !reflect.DeepEqual(res.Segments[3].Location.Order, []int{2, 0, 0}) {
		t.Fatalf("block segment = %+v", res.Segments[3])
	}

	// "blocks" is marked translatable but holds a flow.
	if res.Skipped != 1 || logs.FilterMessage("skipping field").Len() != 1 {
		t.Fatalf("Skipped = %d, warnings = %d", res.Skipped, logs.Len())
	}
}

func TestExtractorSkipsBinaryValues(t *testing.T) {
	t.Parallel()

	rec := &content.Record{Path: "/", File: "contents.lr", Model: "page", Fields: []*content.Field{
		{Name: "title", Value: content.Scalar{Text: "bad\x00value"}},
		{Name: "body", Value: content.Scalar{Text: "fine"}},
	}}
	res := NewExtractor(pageSchema, segment.Line, nil).Extract(rec)
	if res.Skipped != 1 || len(res.Segments) != 1 || res.Segments[0].Text != "fine" {
		t.Fatalf("result = %+v", res)
	}
}

func TestCollectorDeduplicates(t *testing.T) {
	t.Parallel()

	var c Collector
	c.Add(
		RawReference{Text: "Home", File: "templates/b.html", Line: 9},
		RawReference{Text: "Home", File: "templates/a.html", Line: 3},
		RawReference{Text: "  ", File: "templates/a.html", Line: 4},
		RawReference{Text: "file", File: "templates/a.html", Line: 7},
		RawReference{Text: "file", Plural: "files", File: "templates/a.html", Line: 8},
		RawReference{Text: "Home", Context: "nav", File: "templates/a.html", Line: 1},
		RawReference{Text: "Home", File: "templates/a.html", Line: 3},
		RawReference{Text: "Home", File: "templates/partials/footer.html", Line: 2},
	)

	entries := c.Entries()
	if len(entries) != 3 {
		t.Fatalf("entries = %d, want 3", len(entries))
	}
	if entries[0].Context != "nav" || entries[1].Source != "Home" || entries[2].Source != "file" {
		t.Fatalf("entry order = %q, %q, %q", entries[0].Key(), entries[1].Key(), entries[2].Key())
	}
	home := entries[1]
	wantLocs := []catalog.Location{
		{File: "templates/a.html", Line: 3},
		{File: "templates/b.html", Line: 9},
		{File: "templates/partials/footer.html", Line: 2},
	}
	if len(home.Locations) != 3 || !reflect.DeepEqual(home.Locations, wantLocs) {
		t.Fatalf("Home locations = %v", home.Locations)
	}
	if entries[2].SourcePlural != "files" {
		t.Fatalf("plural = %q, want files", entries[2].SourcePlural)
	}
}

func TestGoTemplateSource(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	write(t, root, "templates/layout.html", `<title>{{ gettext "Welcome" }}</title>
{{ define "nav" }}<a>{{ "Home" | gettext }}</a>{{ end }}
{{ if .Items }}{{ ngettext "%d item" "%d items" (len .Items) }}{{ else }}{{ pgettext "menu" "Empty" }}{{ end }}
{{ printf "%s" (_ "Nested") }}
{{ gettext .Dynamic }}
`)
	write(t, root, "templates/broken.html", `{{ if }`)
	write(t, root, "templates/notes.txt", `{{ gettext "Ignored" }}`)

	src := GoTemplateSource{Root: root, Dirs: []string{"templates", "missing"}}
	refs, err := src.References(context.Background())
	if err != nil {
		t.Fatal(err)
	}

	type found struct {
		text, plural, ctx string
		line              int
	}
	var got []found
	for _, r := range refs {
		if r.File != "templates/layout.html" {
			t.Fatalf("unexpected file %q", r.File)
		}
		got = append(got, found{r.Text, r.Plural, r.Context, r.Line})
	}
	want := []found{
		{"Welcome", "", "", 1},
		{"Home", "", "", 2},
		{"%d item", "%d items", "", 3},
		{"Empty", "", "menu", 3},
		{"Nested", "", "", 4},
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("references:\n got %+v\nwant %+v", got, want)
	}
}

func TestGoSource(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	write(t, root, "shortcodes/tr.go", `package shortcodes

func render(n int) {
	_ = T("Read more")
	_ = i18n.N("%d comment", "%d comments", n)
	_ = T("joined " + "text")
	_ = T(someVar)
}
`)
	write(t, root, "shortcodes/tr_test.go", `package shortcodes
func x() { T("from test") }
`)

	src := GoSource{Root: root, Dirs: []string{"shortcodes"}, Keywords: []string{"T", "i18n.N:1,2"}}
	refs, err := src.References(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(refs) != 3 {
		t.Fatalf("refs = %+v", refs)
	}
	if refs[1].Text != "%d comment" || refs[1].Plural != "%d comments" || refs[1].Line != 5 {
		t.Fatalf("plural ref = %+v", refs[1])
	}
	if refs[2].Text != "joined text" || refs[2].File != "shortcodes/tr.go" {
		t.Fatalf("concat ref = %+v", refs[2])
	}
}

func TestPOTSource(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	write(t, root, "plugins.pot", `msgid ""
msgstr ""

#. TRANSLATORS: page footer
#: templates/footer.html:4 templates/base.html:10
msgid "Imprint"
msgstr ""

msgid "No reference"
msgstr ""
`)
	path := filepath.Join(root, "plugins.pot")
	refs, err := POTSource{Path: path}.References(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(refs) != 3 {
		t.Fatalf("refs = %+v", refs)
	}
	if refs[0].File != "templates/footer.html" || refs[0].Line != 4 || refs[0].Comments[0] != "TRANSLATORS: page footer" {
		t.Fatalf("first ref = %+v", refs[0])
	}
	if refs[2].File != filepath.ToSlash(path) || refs[2].Line != 0 {
		t.Fatalf("unreferenced entry = %+v", refs[2])
	}
}

func TestCommandSourceRequiresPlaceholder(t *testing.T) {
	t.Parallel()

	_, err := CommandSource{Command: []string{"pybabel", "extract", "."}}.References(context.Background())
	if err == nil {
		t.Fatal("expected error for command without output placeholder")
	}
}

func TestParseGoKeyword(t *testing.T) {
	t.Parallel()

	tests := []struct {
		spec string
		want GoKeyword
	}{
		{spec: "T", want: GoKeyword{FuncName: "T", MsgIDArg: 1}},
		{spec: "N:1,2", want: GoKeyword{FuncName: "N", MsgIDArg: 1, PluralArg: 2}},
		{spec: "N:2,3", want: GoKeyword{FuncName: "N", MsgIDArg: 2, PluralArg: 3}},
		{spec: "pgettext:1c,2", want: GoKeyword{FuncName: "pgettext", MsgIDArg: 2, ContextArg: 1}},
		{spec: "npgettext:1c,2,3", want: GoKeyword{FuncName: "npgettext", MsgIDArg: 2, PluralArg: 3, ContextArg: 1}},
		{spec: "pkg.Tr:2,3", want: GoKeyword{FuncName: "pkg.Tr", MsgIDArg: 2, PluralArg: 3}},
	}

	for _, tc := range tests {
		t.Run(tc.spec, func(t *testing.T) {
			if got := ParseGoKeyword(tc.spec); !reflect.DeepEqual(got, tc.want) {
				t.Fatalf("ParseGoKeyword(%q) = %#v, want %#v", tc.spec, got, tc.want)
			}
		})
	}
}

func TestStringFromExpr(t *testing.T) {
	t.Parallel()

	expr, err := parser.ParseExpr(`"hello" + " " + "world"`)
	if err != nil {
		t.Fatalf("ParseExpr: %v", err)
	}
	if got, ok := stringFromExpr(expr); !ok || got != "hello world" {
		t.Fatalf("stringFromExpr concat = %q, want %q", got, "hello world")
	}

	notString, err := parser.ParseExpr("someVar")
	if err != nil {
		t.Fatalf("ParseExpr: %v", err)
	}
	if got, ok := stringFromExpr(notString); ok {
		t.Fatalf("stringFromExpr(non-literal) = %q, want no match", got)
	}
}
