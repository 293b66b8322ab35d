package catalog

import (
	"cmp"
	"fmt"
	"slices"
	"strconv"
	"strings"
)

// Location is a place a message was found: a segment of a content field
// or a line of a template.
type Location struct {
	// File is the slash-separated source file, relative to the content
	// root for records and to the project root for templates.
	File string
	// Field is the dotted field path ("title", "blocks.2.text"). It is
	// empty for template locations.
	Field string
	// Index is the segment index within the field.
	Index int
	// Line is the 1-based template line. Zero for content locations.
	Line int
	// Order is the schema position of each element of Field. It only
	// exists in memory and refines sorting within a file.
	Order []int
}

// IsTemplate reports whether the location points into a template.
func (l Location) IsTemplate() bool {
	return l.Field == ""
}

// String formats the location as a PO reference: "file:field:index" for
// content and "file:line" for templates.
func (l Location) String() string {
	if l.IsTemplate() {
		if l.Line > 0 {
			return fmt.Sprintf("%s:%d", l.File, l.Line)
		}
		return l.File
	}
	return fmt.Sprintf("%s:%s:%d", l.File, l.Field, l.Index)
}

// ParseLocation parses a PO reference written by Location.String.
// References in other shapes become template locations without a line.
func ParseLocation(ref string) Location {
	last := strings.LastIndex(ref, ":")
	if last < 0 {
		return Location{File: ref}
	}
	n, err := strconv.Atoi(ref[last+1:])
	if err != nil || n < 0 {
		return Location{File: ref}
	}
	rest := ref[:last]
	if sep := strings.LastIndex(rest, ":"); sep > 0 {
		field := rest[sep+1:]
		if field != "" && !strings.ContainsAny(field, `/\`) {
			return Location{File: rest[:sep], Field: field, Index: n}
		}
	}
	return Location{File: rest, Line: n}
}

// Compare orders locations: content before templates, then by file in
// tree order, then by field schema order, then by segment index or line.
func Compare(a, b Location) int {
	if a.IsTemplate() != b.IsTemplate() {
		if !a.IsTemplate() {
			return -1
		}
		return 1
	}
	if c := comparePaths(a.File, b.File); c != 0 {
		return c
	}
	if a.IsTemplate() {
		return cmp.Compare(a.Line, b.Line)
	}
	if len(a.Order) > 0 && len(b.Order) > 0 {
		if c := slices.Compare(a.Order, b.Order); c != 0 {
			return c
		}
	}
	if c := strings.Compare(a.Field, b.Field); c != 0 {
		return c
	}
	return cmp.Compare(a.Index, b.Index)
}

// comparePaths compares slash-separated paths component by component,
// which puts a directory's own file before its subdirectories.
func comparePaths(a, b string) int {
	if a == b {
		return 0
	}
	da, fa := splitDir(a)
	db, fb := splitDir(b)
	if c := slices.Compare(da, db); c != 0 {
		return c
	}
	return strings.Compare(fa, fb)
}

func splitDir(p string) ([]string, string) {
	idx := strings.LastIndex(p, "/")
	if idx < 0 {
		return nil, p
	}
	return strings.Split(p[:idx], "/"), p[idx+1:]
}
