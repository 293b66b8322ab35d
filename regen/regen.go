// Package regen produces the language variants of content records.
//
// Regeneration is a pure function of the source record and a translation
// lookup: fields are split exactly as extraction split them, every
// translatable piece is replaced by its translation when one exists, and
// all other text is copied unchanged. Running it twice on the same inputs
// yields byte-identical output.
package regen

import (
	"strings"
	"unicode/utf8"

	"github.com/minios-linux/contentkit/content"
	"github.com/minios-linux/contentkit/segment"
)

// Translator looks up the translation of one segment.
type Translator interface {
	Translate(text string) (string, bool)
}

// Record returns the variant of rec produced with tr. rec is not modified.
func Record(rec *content.Record, schema content.Schema, mode segment.Mode, tr Translator) *content.Record {
	out := rec.Clone()
	fields(out.Fields, out.Model, schema, mode, tr)
	return out
}

func fields(fs []*content.Field, model string, schema content.Schema, mode segment.Mode, tr Translator) {
	for _, f := range fs {
		if f.IsMeta() {
			continue
		}
		switch v := f.Value.(type) {
		case content.Flow:
			for _, b := range v.Blocks {
				fields(b.Fields, content.BlockModel(b.Type), schema, mode, tr)
			}
		case content.Scalar:
			if f.Err != nil || !schema.Translatable(model, f.Name) {
				continue
			}
			// Extraction skips values that are not text; copy them as is.
			if !utf8.ValidString(v.Text) || strings.ContainsRune(v.Text, 0) {
				continue
			}
			f.Value = content.Scalar{Text: Text(v.Text, mode, tr)}
		}
	}
}

// Text translates a single field value. Segments without a non-empty
// translation keep their source text.
func Text(text string, mode segment.Mode, tr Translator) string {
	return segment.Split(text, mode).Join(func(_ int, src string) string {
		if t, ok := tr.Translate(src); ok && t != "" {
			return t
		}
		return src
	})
}

// Encode returns the on-disk bytes of a variant.
func Encode(rec *content.Record) []byte {
	return content.Encode(rec)
}
