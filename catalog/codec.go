package catalog

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/minios-linux/contentkit/atomicfile"
	"github.com/minios-linux/contentkit/pofile"
)

// Codec reads and writes catalogs in a concrete file format.
type Codec interface {
	Decode(r io.Reader) (*Catalog, error)
	Encode(w io.Writer, c *Catalog) error
}

// PO is the GNU gettext PO/POT codec.
var PO Codec = poCodec{}

type poCodec struct{}

func (poCodec) Decode(r io.Reader) (*Catalog, error) {
	f, err := pofile.Parse(r)
	if err != nil {
		return nil, err
	}
	return FromPO(f), nil
}

func (poCodec) Encode(w io.Writer, c *Catalog) error {
	return ToPO(c).Write(w)
}

// FromPO converts a parsed PO file into a catalog.
func FromPO(f *pofile.File) *Catalog {
	c := New(headerFromPO(f.Header))
	for _, pe := range f.Entries {
		e := &Entry{
			Context:            pe.MsgCtxt,
			Source:             pe.MsgID,
			SourcePlural:       pe.MsgIDPlural,
			Translation:        pe.MsgStr,
			Fuzzy:              pe.IsFuzzy(),
			Obsolete:           pe.Obsolete,
			PreviousSource:     pe.PreviousMsgID,
			PreviousContext:    pe.PreviousMsgCtxt,
			TranslatorComments: slices.Clone(pe.TranslatorComments),
			ExtractedComments:  slices.Clone(pe.ExtractedComments),
		}
		for _, flag := range pe.Flags {
			if flag != "fuzzy" {
				e.Flags = append(e.Flags, flag)
			}
		}
		for _, ref := range pe.References {
			e.Locations = append(e.Locations, ParseLocation(ref))
		}
		if pe.MsgIDPlural != "" {
			e.Translation = ""
			e.PluralTranslations = pluralSlice(pe.MsgStrPlural)
		}
		c.Entries = append(c.Entries, e)
	}
	return c
}

func pluralSlice(m map[int]string) []string {
	n := 0
	for idx := range m {
		if idx+1 > n {
			n = idx + 1
		}
	}
	if n == 0 {
		return nil
	}
	out := make([]string, n)
	for idx, s := range m {
		out[idx] = s
	}
	return out
}

func headerFromPO(pe *pofile.Entry) *Header {
	h := &Header{}
	if pe == nil {
		return h
	}
	h.Comments = slices.Clone(pe.TranslatorComments)
	h.Fuzzy = pe.IsFuzzy()
	for _, line := range strings.Split(pe.MsgStr, "\n") {
		name, value, ok := strings.Cut(line, ":")
		if !ok || strings.TrimSpace(name) == "" {
			continue
		}
		h.Fields = append(h.Fields, HeaderField{
			Name:  strings.TrimSpace(name),
			Value: strings.TrimSpace(value),
		})
	}
	return h
}

// ToPO converts a catalog into a PO file.
func ToPO(c *Catalog) *pofile.File {
	f := pofile.NewFile()
	if c.Header != nil {
		var sb strings.Builder
		for _, field := range c.Header.Fields {
			sb.WriteString(field.Name)
			sb.WriteString(": ")
			sb.WriteString(field.Value)
			sb.WriteString("\n")
		}
		f.Header = &pofile.Entry{
			TranslatorComments: slices.Clone(c.Header.Comments),
			MsgStr:             sb.String(),
		}
		f.Header.SetFuzzy(c.Header.Fuzzy)
	}
	for _, e := range c.Entries {
		pe := &pofile.Entry{
			TranslatorComments: slices.Clone(e.TranslatorComments),
			ExtractedComments:  slices.Clone(e.ExtractedComments),
			Flags:              slices.Clone(e.Flags),
			MsgCtxt:            e.Context,
			MsgID:              e.Source,
			MsgIDPlural:        e.SourcePlural,
			MsgStrPlural:       make(map[int]string),
			Obsolete:           e.Obsolete,
		}
		if e.Fuzzy {
			pe.SetFuzzy(true)
			pe.PreviousMsgID = e.PreviousSource
			pe.PreviousMsgCtxt = e.PreviousContext
		}
		if !e.Obsolete {
			for _, loc := range e.Locations {
				pe.References = append(pe.References, loc.String())
			}
		}
		if e.SourcePlural == "" {
			pe.MsgStr = e.Translation
		} else {
			for idx, s := range e.PluralTranslations {
				pe.MsgStrPlural[idx] = s
			}
		}
		f.Entries = append(f.Entries, pe)
	}
	return f
}

// ParseError reports a catalog file that could not be read.
type ParseError struct {
	Path string
	Line int
	Msg  string
}

func (e *ParseError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("%s:%d: %s", e.Path, e.Line, e.Msg)
	}
	return fmt.Sprintf("%s: %s", e.Path, e.Msg)
}

// Load reads the catalog at path. A missing file returns an error
// matching fs.ErrNotExist; a malformed one returns a *ParseError.
func Load(path string, codec Codec) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	c, err := codec.Decode(bytes.NewReader(data))
	if err != nil {
		perr := &ParseError{Path: path, Msg: err.Error()}
		var syn *pofile.SyntaxError
		if errors.As(err, &syn) {
			perr.Line = syn.Line
			perr.Msg = syn.Msg
		}
		return nil, perr
	}
	return c, nil
}

// Store writes the catalog to path atomically. Files whose bytes would not
// change are left untouched; the result reports whether a write happened.
func Store(path string, codec Codec, c *Catalog) (bool, error) {
	var buf bytes.Buffer
	if err := codec.Encode(&buf, c); err != nil {
		return false, fmt.Errorf("encoding %s: %w", path, err)
	}
	return atomicfile.Write(path, buf.Bytes())
}

// NewHeader returns a standard header. An empty language produces a
// template (POT) header.
func NewHeader(project, language string, created time.Time) *Header {
	h := headerFromPO(pofile.MakeHeader(project, language, created))
	if language != "" {
		h.Set(HeaderPluralForms, pofile.PluralFormsForLang(language))
	}
	return h
}
