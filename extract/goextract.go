// Go AST-based string extractor for gettext-style wrapper functions.
//
// Sites that render through Go code (shortcodes, helpers) call the same
// gettext functions as their templates. This scans Go source files for
// calls to the configured keywords and reports them as template
// references.
package extract

import (
	"context"
	"go/ast"
	"go/parser"
	"go/token"
	"path/filepath"
	"strconv"
	"strings"

	"go.uber.org/zap"
)

// DefaultKeywords are the gettext functions recognized when none are
// configured.
var DefaultKeywords = []string{
	"gettext",
	"_",
	"ngettext:1,2",
	"pgettext:1c,2",
	"npgettext:1c,2,3",
}

// GoKeyword defines a function call to scan for and how to extract arguments.
// Follows xgettext --keyword syntax:
//
//	"T"             single argument: T(msgid)
//	"N:1,2"         N(singular, plural, n), args 1 and 2 are strings
//	"pgettext:1c,2" arg 1 is context, arg 2 is msgid
type GoKeyword struct {
	// FuncName is the function name to match (e.g. "T", "N", "Get").
	// Can be a bare name (matches any package) or "pkg.Func" (matches specific selector).
	FuncName string
	// MsgIDArg is the 1-based argument index for msgid (default 1).
	MsgIDArg int
	// PluralArg is the 1-based argument index for plural msgid (0 = none).
	PluralArg int
	// ContextArg is the 1-based argument index for msgctxt (0 = none).
	ContextArg int
}

// ParseGoKeyword parses an xgettext-style keyword spec into a GoKeyword.
// The first plain position is the msgid, the second the plural.
// Examples:
//
//	"T"        → GoKeyword{FuncName:"T", MsgIDArg:1}
//	"N:1,2"    → GoKeyword{FuncName:"N", MsgIDArg:1, PluralArg:2}
//	"pgettext:1c,2" → GoKeyword{FuncName:"pgettext", ContextArg:1, MsgIDArg:2}
func ParseGoKeyword(spec string) GoKeyword {
	kw := GoKeyword{MsgIDArg: 1}

	name, args, ok := strings.Cut(spec, ":")
	kw.FuncName = name
	if !ok {
		return kw
	}

	positions := 0
	for _, arg := range strings.Split(args, ",") {
		arg = strings.TrimSpace(arg)
		if strings.HasSuffix(arg, "c") {
			if n, err := strconv.Atoi(strings.TrimSuffix(arg, "c")); err == nil {
				kw.ContextArg = n
			}
			continue
		}
		n, err := strconv.Atoi(arg)
		if err != nil {
			continue
		}
		switch positions {
		case 0:
			kw.MsgIDArg = n
		case 1:
			kw.PluralArg = n
		}
		positions++
	}
	return kw
}

// keywordMap indexes keyword specs by function name; several specs can
// share a name.
func keywordMap(specs []string) map[string][]GoKeyword {
	if len(specs) == 0 {
		specs = DefaultKeywords
	}
	m := make(map[string][]GoKeyword, len(specs))
	for _, spec := range specs {
		kw := ParseGoKeyword(spec)
		m[kw.FuncName] = append(m[kw.FuncName], kw)
	}
	return m
}

// match builds a reference from call arguments. arg returns the string
// literal at a 1-based position. Calls whose required arguments are not
// literals yield nothing.
func (kw GoKeyword) match(arg func(pos int) (string, bool)) (RawReference, bool) {
	var ref RawReference
	var ok bool
	if ref.Text, ok = arg(kw.MsgIDArg); !ok || ref.Text == "" {
		return ref, false
	}
	if kw.PluralArg > 0 {
		if ref.Plural, ok = arg(kw.PluralArg); !ok || ref.Plural == "" {
			return ref, false
		}
	}
	if kw.ContextArg > 0 {
		if ref.Context, ok = arg(kw.ContextArg); !ok {
			return ref, false
		}
	}
	return ref, true
}

// GoSource scans Go source files below Root/Dirs for keyword calls.
type GoSource struct {
	Root     string
	Dirs     []string
	Keywords []string
	Logger   *zap.Logger
}

func (s GoSource) References(ctx context.Context) ([]RawReference, error) {
	log := s.Logger
	if log == nil {
		log = zap.NewNop()
	}
	files, err := findFiles(s.Root, s.Dirs, func(name string) bool {
		return filepath.Ext(name) == ".go" && !strings.HasSuffix(name, "_test.go")
	})
	if err != nil {
		return nil, err
	}

	kwMap := keywordMap(s.Keywords)
	fset := token.NewFileSet()
	var refs []RawReference
	for _, file := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		found, err := extractFromFile(fset, s.Root, file, kwMap)
		if err != nil {
			// One bad file shouldn't stop extraction.
			log.Warn("skipping Go file", zap.String("file", file), zap.Error(err))
			continue
		}
		refs = append(refs, found...)
	}
	return refs, nil
}

// extractFromFile parses a single Go file and extracts matching calls.
func extractFromFile(fset *token.FileSet, root, file string, kwMap map[string][]GoKeyword) ([]RawReference, error) {
	f, err := parser.ParseFile(fset, filepath.Join(root, filepath.FromSlash(file)), nil, parser.ParseComments)
	if err != nil {
		return nil, err
	}

	var refs []RawReference
	ast.Inspect(f, func(n ast.Node) bool {
		call, ok := n.(*ast.CallExpr)
		if !ok {
			return true
		}

		var funcName string
		switch fn := call.Fun.(type) {
		case *ast.Ident:
			// Direct call: T("...")
			funcName = fn.Name
		case *ast.SelectorExpr:
			// Selector call: pkg.Get("...") or obj.Get("...")
			funcName = fn.Sel.Name
			if ident, ok := fn.X.(*ast.Ident); ok {
				qualified := ident.Name + "." + fn.Sel.Name
				if _, found := kwMap[qualified]; found {
					funcName = qualified
				}
			}
		default:
			return true
		}

		kws, ok := kwMap[funcName]
		if !ok {
			return true
		}
		line := fset.Position(call.Lparen).Line
		for _, kw := range kws {
			ref, ok := kw.match(func(pos int) (string, bool) { return stringArgAt(call, pos) })
			if !ok {
				continue
			}
			ref.File, ref.Line = file, line
			refs = append(refs, ref)
		}
		return true
	})
	return refs, nil
}

// stringArgAt extracts the string literal value at 1-based argument position.
func stringArgAt(call *ast.CallExpr, pos int) (string, bool) {
	idx := pos - 1
	if idx < 0 || idx >= len(call.Args) {
		return "", false
	}
	return stringFromExpr(call.Args[idx])
}

// stringFromExpr extracts a string value from an AST expression.
// Handles string literals and simple concatenation (e.g. "foo" + "bar").
func stringFromExpr(expr ast.Expr) (string, bool) {
	switch e := expr.(type) {
	case *ast.BasicLit:
		if e.Kind == token.STRING {
			s, err := strconv.Unquote(e.Value)
			return s, err == nil
		}
	case *ast.BinaryExpr:
		if e.Op == token.ADD {
			left, lok := stringFromExpr(e.X)
			right, rok := stringFromExpr(e.Y)
			if lok && rok {
				return left + right, true
			}
		}
	case *ast.ParenExpr:
		return stringFromExpr(e.X)
	}
	return "", false
}
