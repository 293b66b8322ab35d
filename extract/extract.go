// Package extract turns content records and templates into catalog input.
//
// Extractor splits the translatable fields of a record into segments.
// Collector groups template references (from POT files, an external
// extractor command, or the built-in Go template and Go source scanners)
// into catalog entries.
package extract

import (
	"strconv"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/minios-linux/contentkit/catalog"
	"github.com/minios-linux/contentkit/content"
	"github.com/minios-linux/contentkit/segment"
)

// Result holds the segments of one record.
type Result struct {
	Segments []segment.Segment
	// Skipped counts translatable fields whose value could not be split.
	Skipped int
}

// Extractor produces segments from records. It is safe for concurrent use.
type Extractor struct {
	schema content.Schema
	mode   segment.Mode
	log    *zap.Logger
}

// NewExtractor returns an extractor using schema and mode. A nil logger
// discards warnings.
func NewExtractor(schema content.Schema, mode segment.Mode, log *zap.Logger) *Extractor {
	if log == nil {
		log = zap.NewNop()
	}
	return &Extractor{schema: schema, mode: mode, log: log}
}

// Extract returns the segments of rec in schema order. Problems with a
// single field are logged and skipped.
func (x *Extractor) Extract(rec *content.Record) Result {
	var res Result
	x.fields(rec, rec.Fields, rec.Model, "", nil, &res)
	return res
}

func (x *Extractor) fields(rec *content.Record, fields []*content.Field, model, prefix string, order []int, res *Result) {
	for _, p := range content.Ordered(fields, x.schema.FieldOrder(model)) {
		f := p.Field
		if f.IsMeta() {
			continue
		}
		name := prefix + f.Name
		pos := append(append([]int(nil), order...), p.Order)

		switch v := f.Value.(type) {
		case content.Flow:
			if x.schema.Translatable(model, f.Name) {
				x.skip(rec, name, "flow value cannot be translated as text", res)
			}
			for i, b := range v.Blocks {
				blockPos := append(append([]int(nil), pos...), i)
				x.fields(rec, b.Fields, content.BlockModel(b.Type), name+"."+strconv.Itoa(i)+".", blockPos, res)
			}
		case content.Scalar:
			if f.Err != nil {
				x.skip(rec, name, "malformed flow value: "+f.Err.Error(), res)
				continue
			}
			if !x.schema.Translatable(model, f.Name) {
				continue
			}
			if !utf8.ValidString(v.Text) || strings.ContainsRune(v.Text, 0) {
				x.skip(rec, name, "value is not text", res)
				continue
			}
			for i, text := range segment.Split(v.Text, x.mode).Segments() {
				res.Segments = append(res.Segments, segment.Segment{
					Record: rec.Path,
					Location: catalog.Location{
						File:  rec.File,
						Field: name,
						Index: i,
						Order: pos,
					},
					Text: text,
					Mode: x.mode,
				})
			}
		}
	}
}

func (x *Extractor) skip(rec *content.Record, field, reason string, res *Result) {
	res.Skipped++
	x.log.Warn("skipping field",
		zap.String("file", rec.File),
		zap.String("field", field),
		zap.String("reason", reason))
}
