// Package content models the records of a content tree and reads and
// writes their on-disk form.
//
// A record lives in a directory as contents.lr. Its translated variants
// live next to it as contents+<lang>.lr.
package content

import (
	"fmt"
	"path"
	"strings"
)

// SourceName is the file name of a primary record.
const SourceName = "contents.lr"

// Value is the closed set of field values: Scalar or Flow.
type Value interface {
	isValue()
	clone() Value
}

// Scalar is plain field text.
type Scalar struct {
	Text string
}

// Flow is an ordered list of nested blocks.
type Flow struct {
	Blocks []*Block
}

// Block is one element of a flow field. Its fields follow the schema of
// BlockModel(Type).
type Block struct {
	Type   string
	Fields []*Field
}

func (Scalar) isValue() {}
func (Flow) isValue()   {}

func (s Scalar) clone() Value { return s }

func (f Flow) clone() Value {
	out := Flow{Blocks: make([]*Block, len(f.Blocks))}
	for i, b := range f.Blocks {
		out.Blocks[i] = &Block{Type: b.Type, Fields: cloneFields(b.Fields)}
	}
	return out
}

// Field is a named value of a record or block.
type Field struct {
	Name  string
	Value Value
	// Block records that the value was written on its own lines.
	Block bool
	// Err is set when a flow value could not be parsed. The raw text is
	// kept as a Scalar so the field round-trips unchanged.
	Err error

	line int
}

// IsMeta reports whether the field is record metadata such as _model.
func (f *Field) IsMeta() bool {
	return strings.HasPrefix(f.Name, "_")
}

// Text returns the scalar text of the field and whether it is a scalar.
func (f *Field) Text() (string, bool) {
	s, ok := f.Value.(Scalar)
	return s.Text, ok
}

func cloneFields(fields []*Field) []*Field {
	out := make([]*Field, len(fields))
	for i, f := range fields {
		c := *f
		if f.Value != nil {
			c.Value = f.Value.clone()
		}
		out[i] = &c
	}
	return out
}

// Record is one content record.
type Record struct {
	// Path is the rooted URL path of the record, e.g. "/blog/first-post".
	Path string
	// File is the source file relative to the content root.
	File string
	// Model names the record type used for schema lookups.
	Model  string
	Fields []*Field
}

// Get returns the named field, or nil.
func (r *Record) Get(name string) *Field {
	return findField(r.Fields, name)
}

func findField(fields []*Field, name string) *Field {
	for _, f := range fields {
		if f.Name == name {
			return f
		}
	}
	return nil
}

// Clone returns a deep copy of the record.
func (r *Record) Clone() *Record {
	c := *r
	c.Fields = cloneFields(r.Fields)
	return &c
}

// Schema answers per-model questions about fields. Flow blocks are looked
// up under BlockModel(type).
type Schema interface {
	Translatable(model, field string) bool
	IsFlow(model, field string) bool
	FieldOrder(model string) []string
}

// BlockModel returns the schema model name of a flow block type.
func BlockModel(blockType string) string {
	return "flowblock:" + blockType
}

// Positioned pairs a field with its position in schema order.
type Positioned struct {
	Field *Field
	Order int
}

// Ordered returns the fields in schema order: declared fields first in
// declaration order, then undeclared ones in record order.
func Ordered(fields []*Field, order []string) []Positioned {
	out := make([]Positioned, 0, len(fields))
	used := make(map[*Field]bool, len(fields))
	for i, name := range order {
		if f := findField(fields, name); f != nil && !used[f] {
			out = append(out, Positioned{Field: f, Order: i})
			used[f] = true
		}
	}
	next := len(order)
	for _, f := range fields {
		if used[f] {
			continue
		}
		out = append(out, Positioned{Field: f, Order: next})
		next++
	}
	return out
}

// RecordPath returns the URL path of the record stored at file.
func RecordPath(file string) string {
	dir := path.Dir(file)
	if dir == "." {
		return "/"
	}
	return "/" + dir
}

// AltFileName returns the name of the language variant of a source file:
// "blog/contents.lr" becomes "blog/contents+de.lr".
func AltFileName(file, lang string) string {
	dir, base := path.Split(file)
	ext := path.Ext(base)
	return dir + strings.TrimSuffix(base, ext) + "+" + lang + ext
}

// IsAlternative reports whether name is a language variant file name.
func IsAlternative(name string) bool {
	base := path.Base(name)
	return strings.HasPrefix(base, "contents+") && strings.HasSuffix(base, ".lr")
}

// SyntaxError reports malformed record text.
type SyntaxError struct {
	File string
	Line int
	Msg  string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("%s:%d: %s", e.File, e.Line, e.Msg)
}
