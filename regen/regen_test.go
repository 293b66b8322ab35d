package regen

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/minios-linux/contentkit/content"
	"github.com/minios-linux/contentkit/segment"
)

type mapTranslator map[string]string

func (m mapTranslator) Translate(text string) (string, bool) {
	s, ok := m[text]
	return s, ok
}

type schema struct{}

func (schema) Translatable(model, field string) bool {
	return field != "slug" && field != "image"
}
func (schema) IsFlow(model, field string) bool { return model == "page" && field == "blocks" }
func (schema) FieldOrder(model string) []string { return nil }

const page = `_model: page
---
title: Hello
---
slug: hello
---
body:

First paragraph
spans two lines.

Second paragraph.
---
blocks:

#### text ####
text: Block text
----
image: photo.jpg
`

func decode(t *testing.T) *content.Record {
	t.Helper()
	rec, err := content.Decode("contents.lr", []byte(page), schema{}, "page")
	require.NoError(t, err)
	return rec
}

func TestRecordTranslatesAndFallsBack(t *testing.T) {
	rec := decode(t)
	tr := mapTranslator{
		"Hello": "Bonjour",
		"hello": "bonjour",
		"First paragraph\nspans two lines.": "Premier paragraphe\nsur deux lignes.",
		"Second paragraph.":                  "",
		"Block text":                         "Texte du bloc",
		"photo.jpg":                          "photo-fr.jpg",
	}

	alt := Record(rec, schema{}, segment.Paragraph, tr)

	title, _ := alt.Get("title").Text()
	require.Equal(t, "Bonjour", title)

	slug, _ := alt.Get("slug").Text()
	require.Equal(t, "hello", slug, "non-translatable field must be copied")

	body, _ := alt.Get("body").Text()
	require.Equal(t, "Premier paragraphe\nsur deux lignes.\n\nSecond paragraph.", body)

	model, _ := alt.Get("_model").Text()
	require.Equal(t, "page", model)

	flow, ok := alt.Get("blocks").Value.(content.Flow)
	require.True(t, ok)
	require.Len(t, flow.Blocks, 1)
	text, _ := flow.Blocks[0].Fields[0].Text()
	require.Equal(t, "Texte du bloc", text)
	image, _ := flow.Blocks[0].Fields[1].Text()
	require.Equal(t, "photo.jpg", image)

	orig, _ := rec.Get("title").Text()
	require.Equal(t, "Hello", orig, "source record must not change")
}

func TestRecordIsDeterministic(t *testing.T) {
	tr := mapTranslator{"Hello": "Hallo", "Block text": "Blocktext"}

	first := Encode(Record(decode(t), schema{}, segment.Paragraph, tr))
	second := Encode(Record(decode(t), schema{}, segment.Paragraph, tr))
	require.Equal(t, string(first), string(second))

	again, err := content.Decode("contents+de.lr", first, schema{}, "page")
	require.NoError(t, err)
	require.Equal(t, string(first), string(Encode(again)))
}

func TestTextPreservesLayout(t *testing.T) {
	tr := mapTranslator{"Line one": "Ligne un", "Line three": "Ligne trois"}

	tests := []struct {
		name string
		text string
		mode segment.Mode
		want string
	}{
		{
			name: "line mode partial",
			text: "Line one\nLine two\n\nLine three",
			mode: segment.Line,
			want: "Ligne un\nLine two\n\nLigne trois",
		},
		{
			name: "paragraph mode needs whole paragraph",
			text: "Line one\nLine two\n\nLine three",
			mode: segment.Paragraph,
			want: "Line one\nLine two\n\nLigne trois",
		},
		{
			name: "surrounding whitespace kept",
			text: "  Line one  \n",
			mode: segment.Line,
			want: "  Ligne un  \n",
		},
		{
			name: "empty",
			text: "",
			mode: segment.Paragraph,
			want: "",
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, Text(tc.text, tc.mode, tr))
		})
	}
}
