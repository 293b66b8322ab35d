// Package pofile implements reading and writing of PO/POT files
// following the GNU gettext format specification.
//
// Parsing is strict: catalogs carry translator work, so anything the
// parser does not understand is reported with its line number instead of
// being skipped.
package pofile

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/renameio/v2"
)

// Entry represents a single translatable message in a PO file.
type Entry struct {
	// TranslatorComments are lines starting with "# " (translator comments).
	TranslatorComments []string
	// ExtractedComments are lines starting with "#." (extracted/automatic comments).
	ExtractedComments []string
	// References are source locations from "#:" lines, one per item.
	References []string
	// Flags are format flags, lines starting with "#,".
	Flags []string
	// PreviousMsgCtxt stores the previous msgctxt of a fuzzy entry ("#| msgctxt").
	PreviousMsgCtxt string
	// PreviousMsgID stores the previous msgid for fuzzy entries, lines starting with "#|".
	PreviousMsgID string

	// MsgCtxt is the message context (msgctxt).
	MsgCtxt string
	// MsgID is the untranslated string.
	MsgID string
	// MsgIDPlural is the untranslated plural string.
	MsgIDPlural string
	// MsgStr is the translated string (singular or the only form).
	MsgStr string
	// MsgStrPlural maps plural form index to translated string.
	MsgStrPlural map[int]string

	// Obsolete marks entries prefixed with "#~".
	Obsolete bool
}

// IsTranslated returns true if the entry has a non-empty translation.
func (e *Entry) IsTranslated() bool {
	if e.MsgID == "" {
		return false // header entry
	}
	if e.IsFuzzy() {
		return false
	}
	if e.MsgIDPlural != "" {
		for _, v := range e.MsgStrPlural {
			if v == "" {
				return false
			}
		}
		return len(e.MsgStrPlural) > 0
	}
	return e.MsgStr != ""
}

// IsFuzzy returns true if the entry is marked fuzzy.
func (e *Entry) IsFuzzy() bool {
	return e.HasFlag("fuzzy")
}

// SetFuzzy adds or removes the fuzzy flag.
func (e *Entry) SetFuzzy(fuzzy bool) {
	if fuzzy && !e.IsFuzzy() {
		e.Flags = append([]string{"fuzzy"}, e.Flags...)
	} else if !fuzzy {
		filtered := make([]string, 0, len(e.Flags))
		for _, f := range e.Flags {
			if f != "fuzzy" {
				filtered = append(filtered, f)
			}
		}
		e.Flags = filtered
	}
}

// HasFlag checks if a specific flag is present.
func (e *Entry) HasFlag(flag string) bool {
	for _, f := range e.Flags {
		if f == flag {
			return true
		}
	}
	return false
}

// File represents a parsed PO/POT file.
type File struct {
	// Header is the metadata entry (msgid "").
	Header *Entry
	// Entries are the translatable message entries, obsolete ones included.
	Entries []*Entry
}

// NewFile creates a new empty PO file.
func NewFile() *File {
	return &File{
		Header:  &Entry{},
		Entries: make([]*Entry, 0),
	}
}

// HeaderField returns a header field value by name.
func (f *File) HeaderField(name string) string {
	if f.Header == nil {
		return ""
	}
	for _, line := range strings.Split(f.Header.MsgStr, "\n") {
		if idx := strings.Index(line, ":"); idx > 0 {
			key := strings.TrimSpace(line[:idx])
			if strings.EqualFold(key, name) {
				return strings.TrimSpace(line[idx+1:])
			}
		}
	}
	return ""
}

// SetHeaderField sets a header field value.
func (f *File) SetHeaderField(name, value string) {
	if f.Header == nil {
		f.Header = &Entry{}
	}

	lines := strings.Split(f.Header.MsgStr, "\n")
	found := false
	for i, line := range lines {
		if idx := strings.Index(line, ":"); idx > 0 {
			key := strings.TrimSpace(line[:idx])
			if strings.EqualFold(key, name) {
				lines[i] = name + ": " + value
				found = true
				break
			}
		}
	}
	if !found {
		// Insert before trailing empty line
		if len(lines) > 0 && lines[len(lines)-1] == "" {
			lines = append(lines[:len(lines)-1], name+": "+value, "")
		} else {
			lines = append(lines, name+": "+value)
		}
	}
	f.Header.MsgStr = strings.Join(lines, "\n")
}

// EntryByMsgID finds an active entry by its msgid and msgctxt.
func (f *File) EntryByMsgID(msgid, msgctxt string) *Entry {
	for _, e := range f.Entries {
		if e.MsgID == msgid && e.MsgCtxt == msgctxt && !e.Obsolete {
			return e
		}
	}
	return nil
}

// SyntaxError reports a line the parser could not understand.
type SyntaxError struct {
	Line int
	Msg  string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("line %d: %s", e.Line, e.Msg)
}

// parser holds the state of a single Parse call.
type parser struct {
	f         *File
	current   *Entry
	lastField string // tracks the last msgid/msgstr/etc. field for multiline strings
	hasMsgID  bool
	hasMsgStr bool
	startLine int
	lineNum   int
}

func (p *parser) errorf(format string, args ...any) error {
	return &SyntaxError{Line: p.lineNum, Msg: fmt.Sprintf(format, args...)}
}

func (p *parser) entry() *Entry {
	if p.current == nil {
		p.current = &Entry{MsgStrPlural: make(map[int]string)}
		p.startLine = p.lineNum
	}
	return p.current
}

func (p *parser) flush() error {
	e := p.current
	if e == nil {
		return nil
	}
	hasMsgID, hasMsgStr := p.hasMsgID, p.hasMsgStr
	p.current, p.lastField, p.hasMsgID, p.hasMsgStr = nil, "", false, false

	switch {
	case !hasMsgID && !hasMsgStr:
		// Comment-only block, e.g. a trailing remark.
		return nil
	case !hasMsgID:
		return &SyntaxError{Line: p.startLine, Msg: "msgstr without msgid"}
	case !hasMsgStr:
		return &SyntaxError{Line: p.startLine, Msg: fmt.Sprintf("msgid %q has no msgstr", e.MsgID)}
	}
	if e.MsgIDPlural == "" && len(e.MsgStrPlural) > 0 {
		return &SyntaxError{Line: p.startLine, Msg: fmt.Sprintf("msgid %q has msgstr[N] but no msgid_plural", e.MsgID)}
	}

	if e.MsgID == "" && e.MsgCtxt == "" && !e.Obsolete && len(p.f.Entries) == 0 && p.f.Header.MsgStr == "" {
		p.f.Header = e
		return nil
	}
	p.f.Entries = append(p.f.Entries, e)
	return nil
}

// Parse reads a PO/POT file from a reader.
func Parse(r io.Reader) (*File, error) {
	p := &parser{f: NewFile()}
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 1024*1024), 16*1024*1024)

	for scanner.Scan() {
		p.lineNum++
		if err := p.line(strings.TrimRight(scanner.Text(), "\r")); err != nil {
			return nil, err
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading PO file: %w", err)
	}

	// Flush last entry
	if err := p.flush(); err != nil {
		return nil, err
	}
	return p.f, nil
}

func (p *parser) line(line string) error {
	if p.lineNum == 1 {
		line = strings.TrimPrefix(line, "\ufeff")
	}

	// Empty line separates entries
	if strings.TrimSpace(line) == "" {
		return p.flush()
	}

	obsolete := false
	if strings.HasPrefix(line, "#~") {
		obsolete = true
		line = strings.TrimLeft(line[2:], " ")
		if strings.HasPrefix(line, "|") {
			line = "#" + line
		}
		if line == "" {
			return nil
		}
	}

	// A comment or a new msgid after a complete message starts the next
	// entry even without a separating blank line.
	if p.hasMsgStr && (strings.HasPrefix(line, "#") || strings.HasPrefix(line, "msgid ") || strings.HasPrefix(line, "msgctxt ")) {
		if err := p.flush(); err != nil {
			return err
		}
	}

	e := p.entry()
	if obsolete {
		e.Obsolete = true
	}

	if strings.HasPrefix(line, "#") {
		return p.comment(e, line)
	}

	keyword, rest, _ := strings.Cut(line, " ")
	switch {
	case strings.HasPrefix(line, "\""):
		return p.continuation(e, line)
	case keyword == "msgctxt":
		return p.setField(e, "msgctxt", rest, &e.MsgCtxt)
	case keyword == "msgid":
		if p.hasMsgID {
			return p.errorf("duplicate msgid")
		}
		p.hasMsgID = true
		return p.setField(e, "msgid", rest, &e.MsgID)
	case keyword == "msgid_plural":
		return p.setField(e, "msgid_plural", rest, &e.MsgIDPlural)
	case keyword == "msgstr":
		p.hasMsgStr = true
		return p.setField(e, "msgstr", rest, &e.MsgStr)
	case strings.HasPrefix(keyword, "msgstr["):
		idx, err := strconv.Atoi(strings.TrimSuffix(strings.TrimPrefix(keyword, "msgstr["), "]"))
		if err != nil || !strings.HasSuffix(keyword, "]") || idx < 0 {
			return p.errorf("invalid msgstr index: %s", keyword)
		}
		val, err := unquote(rest)
		if err != nil {
			return p.errorf("%s: %v", keyword, err)
		}
		p.hasMsgStr = true
		e.MsgStrPlural[idx] = val
		p.lastField = keyword
		return nil
	}
	return p.errorf("unexpected content: %q", line)
}

func (p *parser) setField(e *Entry, name, quoted string, dst *string) error {
	val, err := unquote(quoted)
	if err != nil {
		return p.errorf("%s: %v", name, err)
	}
	*dst = val
	p.lastField = name
	return nil
}

func (p *parser) continuation(e *Entry, line string) error {
	val, err := unquote(line)
	if err != nil {
		return p.errorf("continuation: %v", err)
	}
	switch {
	case p.lastField == "msgctxt":
		e.MsgCtxt += val
	case p.lastField == "msgid":
		e.MsgID += val
	case p.lastField == "msgid_plural":
		e.MsgIDPlural += val
	case p.lastField == "msgstr":
		e.MsgStr += val
	case p.lastField == "prev_msgid":
		e.PreviousMsgID += val
	case p.lastField == "prev_msgctxt":
		e.PreviousMsgCtxt += val
	case strings.HasPrefix(p.lastField, "msgstr["):
		idx, _ := strconv.Atoi(strings.TrimSuffix(strings.TrimPrefix(p.lastField, "msgstr["), "]"))
		e.MsgStrPlural[idx] += val
	default:
		return p.errorf("string continuation outside of a field")
	}
	return nil
}

func (p *parser) comment(e *Entry, line string) error {
	switch {
	case strings.HasPrefix(line, "#:"):
		e.References = append(e.References, strings.Fields(line[2:])...)
	case strings.HasPrefix(line, "#,"):
		for _, flag := range strings.Split(line[2:], ",") {
			flag = strings.TrimSpace(flag)
			if flag != "" && !e.HasFlag(flag) {
				e.Flags = append(e.Flags, flag)
			}
		}
	case strings.HasPrefix(line, "#."):
		e.ExtractedComments = append(e.ExtractedComments, strings.TrimSpace(line[2:]))
	case strings.HasPrefix(line, "#|"):
		prev := strings.TrimSpace(line[2:])
		if strings.HasPrefix(prev, "\"") {
			// Continuation of the previous msgid/msgctxt.
			if p.lastField == "prev_ignored" {
				return nil
			}
			if p.lastField != "prev_msgid" && p.lastField != "prev_msgctxt" {
				return p.errorf("previous-string continuation outside of a field")
			}
			return p.continuation(e, prev)
		}
		keyword, rest, _ := strings.Cut(prev, " ")
		switch keyword {
		case "msgid":
			return p.setField(e, "prev_msgid", rest, &e.PreviousMsgID)
		case "msgctxt":
			return p.setField(e, "prev_msgctxt", rest, &e.PreviousMsgCtxt)
		case "msgid_plural":
			// Previous plural forms are not tracked.
			p.lastField = "prev_ignored"
			return nil
		}
		return p.errorf("unexpected previous-string comment: %q", line)
	default:
		comment := strings.TrimPrefix(line[1:], " ")
		e.TranslatorComments = append(e.TranslatorComments, comment)
	}
	return nil
}

// ParseFile reads a PO/POT file from disk.
func ParseFile(path string) (*File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Parse(f)
}

// Write writes the PO file to a writer.
func (f *File) Write(w io.Writer) error {
	bw := bufio.NewWriter(w)

	// Write header
	if f.Header != nil {
		writeEntry(bw, f.Header)
	}

	// Write entries
	for _, e := range f.Entries {
		fmt.Fprintln(bw)
		writeEntry(bw, e)
	}

	return bw.Flush()
}

// Bytes returns the serialized PO file.
func (f *File) Bytes() ([]byte, error) {
	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// WriteFile writes the PO file to disk. The file is replaced atomically,
// so readers never observe a partially written catalog.
func (f *File) WriteFile(path string) error {
	data, err := f.Bytes()
	if err != nil {
		return err
	}
	return renameio.WriteFile(path, data, 0644)
}

func writeEntry(w *bufio.Writer, e *Entry) {
	prefix := ""
	if e.Obsolete {
		prefix = "#~ "
	}

	// Translator comments
	for _, c := range e.TranslatorComments {
		if c == "" {
			fmt.Fprintln(w, "#")
			continue
		}
		fmt.Fprintf(w, "# %s\n", c)
	}

	// Extracted comments
	for _, c := range e.ExtractedComments {
		fmt.Fprintf(w, "#. %s\n", c)
	}

	// References
	for _, ref := range e.References {
		fmt.Fprintf(w, "#: %s\n", ref)
	}

	// Flags, fuzzy first
	if len(e.Flags) > 0 {
		flags := make([]string, 0, len(e.Flags))
		if e.IsFuzzy() {
			flags = append(flags, "fuzzy")
		}
		for _, f := range e.Flags {
			if f != "fuzzy" {
				flags = append(flags, f)
			}
		}
		fmt.Fprintf(w, "#, %s\n", strings.Join(flags, ", "))
	}

	// Previous msgctxt/msgid
	if e.PreviousMsgCtxt != "" {
		writeQuotedField(w, prefix+"#| msgctxt", e.PreviousMsgCtxt)
	}
	if e.PreviousMsgID != "" {
		writeQuotedField(w, prefix+"#| msgid", e.PreviousMsgID)
	}

	// msgctxt
	if e.MsgCtxt != "" {
		writeQuotedField(w, prefix+"msgctxt", e.MsgCtxt)
	}

	// msgid
	writeQuotedField(w, prefix+"msgid", e.MsgID)

	// msgid_plural
	if e.MsgIDPlural != "" {
		writeQuotedField(w, prefix+"msgid_plural", e.MsgIDPlural)
	}

	// msgstr / msgstr[N]
	if e.MsgIDPlural == "" {
		writeQuotedField(w, prefix+"msgstr", e.MsgStr)
		return
	}
	if len(e.MsgStrPlural) == 0 {
		writeQuotedField(w, prefix+"msgstr[0]", "")
		writeQuotedField(w, prefix+"msgstr[1]", "")
		return
	}
	indices := make([]int, 0, len(e.MsgStrPlural))
	for idx := range e.MsgStrPlural {
		indices = append(indices, idx)
	}
	sort.Ints(indices)
	for _, idx := range indices {
		writeQuotedField(w, fmt.Sprintf("%smsgstr[%d]", prefix, idx), e.MsgStrPlural[idx])
	}
}

// writeQuotedField writes a PO field with proper multiline quoting.
// Continuation lines of obsolete and previous-string fields repeat the
// comment marker.
func writeQuotedField(w *bufio.Writer, field, value string) {
	if !strings.Contains(value, "\n") || value == "\n" {
		fmt.Fprintf(w, "%s %s\n", field, quote(value))
		return
	}

	linePrefix := ""
	switch {
	case strings.HasPrefix(field, "#~ #|"):
		linePrefix = "#~ #| "
	case strings.HasPrefix(field, "#~ "):
		linePrefix = "#~ "
	case strings.HasPrefix(field, "#|"):
		linePrefix = "#| "
	}

	// Multiline: use empty string on first line
	fmt.Fprintf(w, "%s \"\"\n", field)
	parts := strings.Split(value, "\n")
	for i, part := range parts {
		if i < len(parts)-1 {
			fmt.Fprintf(w, "%s%s\n", linePrefix, quote(part+"\n"))
		} else if part != "" {
			fmt.Fprintf(w, "%s%s\n", linePrefix, quote(part))
		}
	}
}

// quote produces a PO-style quoted string.
func quote(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `"`, `\"`)
	s = strings.ReplaceAll(s, "\n", `\n`)
	s = strings.ReplaceAll(s, "\r", `\r`)
	s = strings.ReplaceAll(s, "\t", `\t`)
	return `"` + s + `"`
}

// unquote removes PO-style quoting from a string.
func unquote(s string) (string, error) {
	s = strings.TrimSpace(s)
	if len(s) < 2 || s[0] != '"' || s[len(s)-1] != '"' {
		return "", fmt.Errorf("expected quoted string, got %q", s)
	}
	s = s[1 : len(s)-1]

	var result strings.Builder
	result.Grow(len(s))

	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '\\':
			if i+1 >= len(s) {
				return "", fmt.Errorf("dangling backslash")
			}
			i++
			switch s[i] {
			case 'n':
				result.WriteByte('\n')
			case 't':
				result.WriteByte('\t')
			case 'r':
				result.WriteByte('\r')
			case 'a':
				result.WriteByte('\a')
			case 'b':
				result.WriteByte('\b')
			case 'f':
				result.WriteByte('\f')
			case 'v':
				result.WriteByte('\v')
			case '\\', '"', '\'', '?':
				result.WriteByte(s[i])
			default:
				return "", fmt.Errorf("unknown escape \\%c", s[i])
			}
		case '"':
			return "", fmt.Errorf("unescaped quote")
		default:
			result.WriteByte(s[i])
		}
	}
	return result.String(), nil
}

// MakeHeader creates a standard PO/POT file header. An empty language
// produces a template (POT) header.
func MakeHeader(project, language string, created time.Time) *Entry {
	stamp := created.UTC().Format("2006-01-02 15:04+0000")

	revision := stamp
	team := ""
	if language == "" {
		revision = "YEAR-MO-DA HO:MI+ZONE"
	} else {
		team = language
	}

	headerStr := fmt.Sprintf(
		"Project-Id-Version: %s\n"+
			"Report-Msgid-Bugs-To: \n"+
			"POT-Creation-Date: %s\n"+
			"PO-Revision-Date: %s\n"+
			"Last-Translator: \n"+
			"Language-Team: %s\n"+
			"Language: %s\n"+
			"MIME-Version: 1.0\n"+
			"Content-Type: text/plain; charset=UTF-8\n"+
			"Content-Transfer-Encoding: 8bit\n",
		project, stamp, revision, team, language,
	)

	comments := []string{
		fmt.Sprintf("Translations for %s.", project),
		fmt.Sprintf("This file is distributed under the same license as the %s content.", project),
	}

	return &Entry{
		TranslatorComments: comments,
		MsgStr:             headerStr,
	}
}

// PluralFormsForLang returns the standard Plural-Forms header for a language code.
func PluralFormsForLang(lang string) string {
	// Normalize to base language
	base := strings.ToLower(lang)
	if idx := strings.IndexAny(base, "_-"); idx > 0 {
		base = base[:idx]
	}

	switch base {
	case "ja", "ko", "zh", "vi", "th", "id", "ms":
		return "nplurals=1; plural=0;"
	case "fr", "pt":
		return "nplurals=2; plural=(n > 1);"
	case "en", "de", "nl", "sv", "da", "no", "nb", "nn", "fi", "es", "it", "el", "he", "hu", "tr", "bg", "hi", "ur":
		return "nplurals=2; plural=(n != 1);"
	case "ru", "uk", "be", "hr", "sr", "bs":
		return "nplurals=3; plural=(n%10==1 && n%100!=11 ? 0 : n%10>=2 && n%10<=4 && (n%100<10 || n%100>=20) ? 1 : 2);"
	case "pl":
		return "nplurals=3; plural=(n==1 ? 0 : n%10>=2 && n%10<=4 && (n%100<10 || n%100>=20) ? 1 : 2);"
	case "cs", "sk":
		return "nplurals=3; plural=(n==1 ? 0 : n>=2 && n<=4 ? 1 : 2);"
	case "ro":
		return "nplurals=3; plural=(n==1 ? 0 : (n==0 || (n%100 > 0 && n%100 < 20)) ? 1 : 2);"
	case "lt":
		return "nplurals=3; plural=(n%10==1 && n%100!=11 ? 0 : n%10>=2 && (n%100<10 || n%100>=20) ? 1 : 2);"
	case "lv":
		return "nplurals=3; plural=(n%10==1 && n%100!=11 ? 0 : n != 0 ? 1 : 2);"
	case "ar":
		return "nplurals=6; plural=(n==0 ? 0 : n==1 ? 1 : n==2 ? 2 : n%100>=3 && n%100<=10 ? 3 : n%100>=11 ? 4 : 5);"
	default:
		return "nplurals=2; plural=(n != 1);"
	}
}
