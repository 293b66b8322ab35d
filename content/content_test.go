package content

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

type testSchema struct {
	flows map[string]bool
	order map[string][]string
}

func (s testSchema) Translatable(model, field string) bool { return true }
func (s testSchema) IsFlow(model, field string) bool      { return s.flows[model+"."+field] }
func (s testSchema) FieldOrder(model string) []string     { return s.order[model] }

var flowSchema = testSchema{flows: map[string]bool{
	"page.blocks":             true,
	"flowblock:columns.inner": true,
}}

const sample = `_model: page
---
title: Hello World
---
body:

First paragraph.

Second line
----
still body
---
blocks:

#### text ####
text: Block one
----
note:

multi
line
#### columns ####
inner:

##### text #####
-----
text: nested
`

func TestDecodeRecord(t *testing.T) {
	rec, err := Decode("blog/post/contents.lr", []byte(sample), flowSchema, "default")
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if rec.Path != "/blog/post" || rec.Model != "page" {
		t.Fatalf("record = %q model %q", rec.Path, rec.Model)
	}

	body, _ := rec.Get("body").Text()
	if body != "First paragraph.\n\nSecond line\n---\nstill body" {
		t.Fatalf("body = %q", body)
	}
	if title := rec.Get("title"); title.Block {
		t.Fatal("inline title decoded as block")
	}

	flow, ok := rec.Get("blocks").Value.(Flow)
	if !ok || len(flow.Blocks) != 2 {
		t.Fatalf("blocks = %#v", rec.Get("blocks").Value)
	}
	first := flow.Blocks[0]
	if first.Type != "text" || len(first.Fields) != 2 {
		t.Fatalf("first block = %#v", first)
	}
	if note, _ := first.Fields[1].Text(); note != "multi\nline" {
		t.Fatalf("note = %q", note)
	}

	inner, ok := flow.Blocks[1].Fields[0].Value.(Flow)
	if !ok || len(inner.Blocks) != 1 || inner.Blocks[0].Type != "text" {
		t.Fatalf("nested flow = %#v", flow.Blocks[1].Fields[0].Value)
	}
	if text, _ := inner.Blocks[0].Fields[0].Text(); text != "nested" {
		t.Fatalf("nested text = %q", text)
	}
}

func TestEncodeIsCanonicalAndStable(t *testing.T) {
	inputs := []string{
		sample,
		"title:   padded  \n",
		"title:\n\n\n\nleading blanks\n\n\n",
		"body:\r\n\r\nwindows\r\nlines\r\n",
		"a: 1\n---\nb:\n---\nc: ---\n",
		"empty:\n",
		"",
	}
	for _, in := range inputs {
		rec, err := Decode("contents.lr", []byte(in), flowSchema, "page")
		if err != nil {
			t.Fatalf("Decode(%q): %v", in, err)
		}
		once := Encode(rec)
		again, err := Decode("contents.lr", once, flowSchema, "page")
		if err != nil {
			t.Fatalf("Decode(Encode(%q)): %v\n%s", in, err, once)
		}
		twice := Encode(again)
		if string(once) != string(twice) {
			t.Fatalf("encoding not stable for %q:\n%s\n---\n%s", in, once, twice)
		}
		if !reflect.DeepEqual(stripLines(rec.Fields), stripLines(again.Fields)) {
			t.Fatalf("fields changed across round trip for %q", in)
		}
	}
}

// stripLines drops source line numbers, which differ between inputs.
func stripLines(fields []*Field) []*Field {
	out := cloneFields(fields)
	for _, f := range out {
		f.line = 0
		if flow, ok := f.Value.(Flow); ok {
			for _, b := range flow.Blocks {
				b.Fields = stripLines(b.Fields)
			}
		}
	}
	return out
}

func TestDecodeSyntaxErrors(t *testing.T) {
	tests := []struct {
		name  string
		input string
		line  int
	}{
		{name: "no key", input: "title: ok\n---\njust text\n", line: 3},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Decode("contents.lr", []byte(tc.input), flowSchema, "page")
			var syn *SyntaxError
			if !errors.As(err, &syn) {
				t.Fatalf("Decode error = %v, want *SyntaxError", err)
			}
			if syn.Line != tc.line || syn.File != "contents.lr" {
				t.Fatalf("SyntaxError = %+v, want line %d", syn, tc.line)
			}
		})
	}
}

func TestMalformedFlowStaysScalar(t *testing.T) {
	input := "title: x\n---\nblocks:\n\nstray\n#### text ####\ntext: a\n"
	rec, err := Decode("contents.lr", []byte(input), flowSchema, "page")
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	f := rec.Get("blocks")
	text, ok := f.Text()
	if !ok || text != "stray\n#### text ####\ntext: a" {
		t.Fatalf("blocks = %#v, want raw scalar text", f.Value)
	}
	var syn *SyntaxError
	if !errors.As(f.Err, &syn) || syn.Line != 5 {
		t.Fatalf("blocks.Err = %v, want *SyntaxError at line 5", f.Err)
	}
	if got := string(Encode(rec)); got != input {
		t.Fatalf("Encode() = %q, want %q", got, input)
	}
}

func TestOrderedPutsDeclaredFieldsFirst(t *testing.T) {
	fields := []*Field{{Name: "extra"}, {Name: "body"}, {Name: "title"}, {Name: "more"}}
	got := Ordered(fields, []string{"title", "missing", "body"})

	want := []struct {
		name  string
		order int
	}{{"title", 0}, {"body", 2}, {"extra", 3}, {"more", 4}}
	if len(got) != len(want) {
		t.Fatalf("Ordered returned %d fields", len(got))
	}
	for i, w := range want {
		if got[i].Field.Name != w.name || got[i].Order != w.order {
			t.Fatalf("Ordered[%d] = %s/%d, want %s/%d", i, got[i].Field.Name, got[i].Order, w.name, w.order)
		}
	}
}

func TestSourcesAndNames(t *testing.T) {
	root := t.TempDir()
	for _, f := range []string{
		"contents.lr",
		"contents+de.lr",
		"blog/about/contents.lr",
		"blog/contents.lr",
		".git/contents.lr",
		"blog/image.png",
	} {
		p := filepath.Join(root, filepath.FromSlash(f))
		if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(p, []byte("title: x\n"), 0644); err != nil {
			t.Fatal(err)
		}
	}

	got, err := Sources(root)
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"contents.lr", "blog/contents.lr", "blog/about/contents.lr"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Sources = %v, want %v", got, want)
	}

	if alt := AltFileName("blog/contents.lr", "de"); alt != "blog/contents+de.lr" {
		t.Fatalf("AltFileName = %q", alt)
	}
	if !IsAlternative("blog/contents+de.lr") || IsAlternative("blog/contents.lr") {
		t.Fatal("IsAlternative misclassifies files")
	}
	if RecordPath("contents.lr") != "/" || RecordPath("blog/about/contents.lr") != "/blog/about" {
		t.Fatal("RecordPath returned unexpected paths")
	}
}

func TestCloneIsDeep(t *testing.T) {
	rec, err := Decode("contents.lr", []byte(sample), flowSchema, "page")
	if err != nil {
		t.Fatal(err)
	}
	c := rec.Clone()
	c.Get("title").Value = Scalar{Text: "changed"}
	c.Get("blocks").Value.(Flow).Blocks[0].Fields[0].Value = Scalar{Text: "changed"}

	if title, _ := rec.Get("title").Text(); title != "Hello World" {
		t.Fatalf("original title changed to %q", title)
	}
	if text, _ := rec.Get("blocks").Value.(Flow).Blocks[0].Fields[0].Text(); text != "Block one" {
		t.Fatalf("original block text changed to %q", text)
	}
}
