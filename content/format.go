package content

import (
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"slices"
	"strings"
)

var (
	fieldRe         = regexp.MustCompile(`^([A-Za-z0-9_][A-Za-z0-9_.-]*)[ \t]*:(.*)$`)
	blockHeaderRe   = regexp.MustCompile(`^####[ \t]*([^#\s][^#]*?)[ \t]*####[ \t]*$`)
	escapedHeaderRe = regexp.MustCompile(`^#####(.*)#####[ \t]*$`)
	headerLikeRe    = regexp.MustCompile(`^####.*####$`)
)

func isSeparator(line string) bool {
	return strings.TrimRight(line, " \t") == "---"
}

// isDashes matches value lines that would read as a separator, and their
// escaped forms.
func isDashes(line string) bool {
	t := strings.TrimRight(line, " \t")
	return len(t) >= 3 && strings.Trim(t, "-") == ""
}

// Decode parses record text. Fields the schema declares as flows are
// parsed into blocks; everything else stays scalar text.
func Decode(file string, data []byte, schema Schema, defaultModel string) (*Record, error) {
	text := strings.ReplaceAll(string(data), "\r\n", "\n")
	text = strings.TrimPrefix(text, "\ufeff")

	fields, err := parseFields(text, file, 1)
	if err != nil {
		return nil, err
	}
	model := defaultModel
	if f := findField(fields, "_model"); f != nil {
		if t, _ := f.Text(); strings.TrimSpace(t) != "" {
			model = strings.TrimSpace(t)
		}
	}
	resolveFlows(fields, model, schema, file)
	return &Record{Path: RecordPath(file), File: file, Model: model, Fields: fields}, nil
}

func parseFields(text, file string, firstLine int) ([]*Field, error) {
	var (
		fields    []*Field
		cur       *Field
		buf       []string
		inline    bool
		skipBlank bool
	)
	flush := func() {
		if cur == nil {
			return
		}
		for len(buf) > 0 && strings.TrimSpace(buf[len(buf)-1]) == "" {
			buf = buf[:len(buf)-1]
		}
		value := strings.Join(buf, "\n")
		cur.Value = Scalar{Text: value}
		cur.Block = !inline && value != ""
		fields = append(fields, cur)
		cur, buf = nil, nil
	}

	for i, line := range strings.Split(text, "\n") {
		if isSeparator(line) {
			flush()
			continue
		}
		if cur == nil {
			if strings.TrimSpace(line) == "" {
				continue
			}
			m := fieldRe.FindStringSubmatch(line)
			if m == nil {
				return nil, &SyntaxError{File: file, Line: firstLine + i, Msg: fmt.Sprintf("expected \"name: value\", got %q", line)}
			}
			cur = &Field{Name: m[1], line: firstLine + i}
			value := strings.TrimSpace(m[2])
			inline = value != ""
			skipBlank = !inline
			if inline {
				buf = []string{value}
			}
			continue
		}
		if skipBlank {
			skipBlank = false
			if strings.TrimSpace(line) == "" {
				continue
			}
		}
		if isDashes(line) {
			line = line[1:]
		}
		buf = append(buf, line)
	}
	flush()
	return fields, nil
}

// resolveFlows parses the flow fields of a model. A malformed flow stays
// scalar text with Err set; it never fails the record.
func resolveFlows(fields []*Field, model string, schema Schema, file string) {
	for _, f := range fields {
		if f.IsMeta() || !schema.IsFlow(model, f.Name) {
			continue
		}
		text, ok := f.Text()
		if !ok {
			continue
		}
		flow, err := parseFlow(text, file, f.line+2, schema)
		if err != nil {
			f.Err = err
			continue
		}
		f.Value = flow
		f.Block = true
	}
}

func parseFlow(text, file string, firstLine int, schema Schema) (Flow, error) {
	var (
		flow      Flow
		cur       *Block
		body      []string
		bodyStart int
	)
	finish := func() error {
		if cur == nil {
			return nil
		}
		fields, err := parseFields(strings.Join(body, "\n"), file, bodyStart)
		if err != nil {
			return err
		}
		resolveFlows(fields, BlockModel(cur.Type), schema, file)
		cur.Fields = fields
		flow.Blocks = append(flow.Blocks, cur)
		cur, body = nil, nil
		return nil
	}

	for i, line := range strings.Split(text, "\n") {
		if m := blockHeaderRe.FindStringSubmatch(line); m != nil {
			if err := finish(); err != nil {
				return Flow{}, err
			}
			cur = &Block{Type: m[1]}
			bodyStart = firstLine + i + 1
			continue
		}
		if cur == nil {
			if strings.TrimSpace(line) == "" {
				continue
			}
			return Flow{}, &SyntaxError{File: file, Line: firstLine + i, Msg: "text outside of a flow block"}
		}
		if m := escapedHeaderRe.FindStringSubmatch(line); m != nil {
			line = "####" + m[1] + "####"
		}
		body = append(body, line)
	}
	if err := finish(); err != nil {
		return Flow{}, err
	}
	return flow, nil
}

// Encode serializes a record in canonical form.
func Encode(r *Record) []byte {
	return []byte(encodeFields(r.Fields))
}

func encodeFields(fields []*Field) string {
	var sb strings.Builder
	for i, f := range fields {
		if i > 0 {
			sb.WriteString("---\n")
		}
		text, inlineOK := valueText(f)
		switch {
		case text == "":
			sb.WriteString(f.Name + ":\n")
		case inlineOK && !f.Block && !strings.Contains(text, "\n") && text == strings.TrimSpace(text):
			sb.WriteString(f.Name + ": " + text + "\n")
		default:
			sb.WriteString(f.Name + ":\n\n")
			for _, line := range strings.Split(text, "\n") {
				if isDashes(line) {
					line = "-" + line
				}
				sb.WriteString(line + "\n")
			}
		}
	}
	return sb.String()
}

// valueText renders a field value as text. Flows never go inline.
func valueText(f *Field) (string, bool) {
	switch v := f.Value.(type) {
	case Scalar:
		return v.Text, true
	case Flow:
		return flowText(v), false
	default:
		return "", true
	}
}

func flowText(flow Flow) string {
	var sb strings.Builder
	for _, b := range flow.Blocks {
		fmt.Fprintf(&sb, "#### %s ####\n", b.Type)
		body := strings.TrimSuffix(encodeFields(b.Fields), "\n")
		if body == "" {
			continue
		}
		for _, line := range strings.Split(body, "\n") {
			if headerLikeRe.MatchString(strings.TrimRight(line, " \t")) {
				line = "#" + strings.TrimRight(line, " \t") + "#"
			}
			sb.WriteString(line + "\n")
		}
	}
	return strings.TrimSuffix(sb.String(), "\n")
}

// ReadRecord reads and decodes the record file below root.
func ReadRecord(root, file string, schema Schema, defaultModel string) (*Record, error) {
	data, err := os.ReadFile(filepath.Join(root, filepath.FromSlash(file)))
	if err != nil {
		return nil, err
	}
	return Decode(file, data, schema, defaultModel)
}

// Sources lists the primary record files below root as slash-separated
// relative paths, parents before children. Hidden directories are skipped
// and alternatives are never returned.
func Sources(root string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if p != root && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if d.Name() != SourceName {
			return nil
		}
		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}
		files = append(files, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking %s: %w", root, err)
	}
	slices.SortFunc(files, func(a, b string) int {
		return slices.Compare(dirParts(a), dirParts(b))
	})
	return files, nil
}

func dirParts(file string) []string {
	dir := path.Dir(file)
	if dir == "." {
		return nil
	}
	return strings.Split(dir, "/")
}
