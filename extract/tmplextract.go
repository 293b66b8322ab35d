package extract

import (
	"context"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"text/template/parse"

	"go.uber.org/zap"
)

// GoTemplateSource scans Go text/template and html/template files for
// keyword calls, both direct ({{ gettext "Hello" }}) and piped
// ({{ "Hello" | gettext }}).
type GoTemplateSource struct {
	Root string
	Dirs []string
	// Extensions selects template files; ".html" when empty.
	Extensions []string
	Keywords   []string
	// LeftDelim and RightDelim default to "{{" and "}}".
	LeftDelim  string
	RightDelim string
	Logger     *zap.Logger
}

func (s GoTemplateSource) References(ctx context.Context) ([]RawReference, error) {
	log := s.Logger
	if log == nil {
		log = zap.NewNop()
	}
	exts := s.Extensions
	if len(exts) == 0 {
		exts = []string{".html"}
	}
	files, err := findFiles(s.Root, s.Dirs, func(name string) bool {
		return slices.Contains(exts, filepath.Ext(name))
	})
	if err != nil {
		return nil, err
	}

	kwMap := keywordMap(s.Keywords)
	var refs []RawReference
	for _, file := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		data, err := os.ReadFile(filepath.Join(s.Root, filepath.FromSlash(file)))
		if err != nil {
			return nil, err
		}
		found, err := scanTemplate(file, string(data), s.LeftDelim, s.RightDelim, kwMap)
		if err != nil {
			log.Warn("skipping template", zap.String("file", file), zap.Error(err))
			continue
		}
		refs = append(refs, found...)
	}
	return refs, nil
}

// scanTemplate parses text without resolving functions, so templates can
// be scanned without the functions they are rendered with.
func scanTemplate(file, text, left, right string, kwMap map[string][]GoKeyword) ([]RawReference, error) {
	tree := parse.New(file)
	tree.Mode = parse.SkipFuncCheck | parse.ParseComments
	treeSet := make(map[string]*parse.Tree)
	if _, err := tree.Parse(text, left, right, treeSet); err != nil {
		return nil, err
	}

	names := make([]string, 0, len(treeSet))
	for name := range treeSet {
		names = append(names, name)
	}
	slices.Sort(names)

	w := &templateWalker{file: file, text: text, kwMap: kwMap}
	if _, ok := treeSet[file]; !ok && tree.Root != nil {
		w.node(tree.Root)
	}
	for _, name := range names {
		if t := treeSet[name]; t.Root != nil {
			w.node(t.Root)
		}
	}
	slices.SortStableFunc(w.refs, func(a, b RawReference) int { return a.Line - b.Line })
	return w.refs, nil
}

type templateWalker struct {
	file  string
	text  string
	kwMap map[string][]GoKeyword
	refs  []RawReference
}

func (w *templateWalker) line(pos parse.Pos) int {
	p := int(pos)
	if p > len(w.text) {
		p = len(w.text)
	}
	return strings.Count(w.text[:p], "\n") + 1
}

func (w *templateWalker) node(n parse.Node) {
	switch n := n.(type) {
	case *parse.ListNode:
		if n == nil {
			return
		}
		for _, c := range n.Nodes {
			w.node(c)
		}
	case *parse.ActionNode:
		w.pipe(n.Pipe)
	case *parse.IfNode:
		w.branch(&n.BranchNode)
	case *parse.RangeNode:
		w.branch(&n.BranchNode)
	case *parse.WithNode:
		w.branch(&n.BranchNode)
	case *parse.TemplateNode:
		w.pipe(n.Pipe)
	}
}

func (w *templateWalker) branch(b *parse.BranchNode) {
	w.pipe(b.Pipe)
	w.node(b.List)
	if b.ElseList != nil {
		w.node(b.ElseList)
	}
}

func (w *templateWalker) pipe(p *parse.PipeNode) {
	if p == nil {
		return
	}
	var prev parse.Node
	for i, cmd := range p.Cmds {
		w.command(cmd, prev, i > 0)
		prev = nil
		if len(cmd.Args) == 1 {
			prev = cmd.Args[0]
		}
		for _, arg := range cmd.Args {
			if sub, ok := arg.(*parse.PipeNode); ok {
				w.pipe(sub)
			}
		}
	}
}

// command matches a single command. In a pipeline the previous command's
// value is passed as the last argument.
func (w *templateWalker) command(cmd *parse.CommandNode, piped parse.Node, inPipe bool) {
	if len(cmd.Args) == 0 {
		return
	}
	ident, ok := cmd.Args[0].(*parse.IdentifierNode)
	if !ok {
		return
	}
	kws, ok := w.kwMap[ident.Ident]
	if !ok {
		return
	}
	args := slices.Clone(cmd.Args[1:])
	if inPipe {
		args = append(args, piped)
	}
	arg := func(pos int) (string, bool) {
		if pos < 1 || pos > len(args) {
			return "", false
		}
		s, ok := args[pos-1].(*parse.StringNode)
		if !ok {
			return "", false
		}
		return s.Text, true
	}
	line := w.line(cmd.Position())
	for _, kw := range kws {
		ref, ok := kw.match(arg)
		if !ok {
			continue
		}
		ref.File, ref.Line = w.file, line
		w.refs = append(w.refs, ref)
	}
}
