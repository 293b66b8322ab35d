package extract

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"slices"
	"strings"

	"github.com/minios-linux/contentkit/catalog"
)

// TemplateSource yields the translatable references of a project's
// templates.
type TemplateSource interface {
	References(ctx context.Context) ([]RawReference, error)
}

// skipDirs contains directory names to skip during source file scanning.
var skipDirs = map[string]bool{
	".git":         true,
	".hg":          true,
	".svn":         true,
	"node_modules": true,
	"__pycache__":  true,
	".venv":        true,
	"venv":         true,
	"vendor":       true,
}

// findFiles returns the files below root/dirs whose name passes match,
// as sorted slash-separated paths relative to root.
func findFiles(root string, dirs []string, match func(name string) bool) ([]string, error) {
	seen := make(map[string]bool)
	var files []string
	for _, dir := range dirs {
		base := filepath.Join(root, filepath.FromSlash(dir))
		err := filepath.WalkDir(base, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				if errors.Is(err, fs.ErrNotExist) && path == base {
					return filepath.SkipDir
				}
				return err
			}
			if d.IsDir() {
				if skipDirs[d.Name()] {
					return filepath.SkipDir
				}
				return nil
			}
			if !match(d.Name()) {
				return nil
			}
			rel, err := filepath.Rel(root, path)
			if err != nil {
				return err
			}
			rel = filepath.ToSlash(rel)
			if !seen[rel] {
				seen[rel] = true
				files = append(files, rel)
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("scanning %s: %w", dir, err)
		}
	}
	slices.Sort(files)
	return files, nil
}

// POTSource reads references from a POT file written by an external
// extractor such as xgettext or pybabel.
type POTSource struct {
	Path string
}

func (s POTSource) References(ctx context.Context) ([]RawReference, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c, err := catalog.Load(s.Path, catalog.PO)
	if err != nil {
		return nil, err
	}
	var refs []RawReference
	for _, e := range c.Active() {
		ref := RawReference{
			Text:     e.Source,
			Plural:   e.SourcePlural,
			Context:  e.Context,
			Comments: e.ExtractedComments,
		}
		if len(e.Locations) == 0 {
			ref.File = filepath.ToSlash(s.Path)
			refs = append(refs, ref)
			continue
		}
		for _, loc := range e.Locations {
			r := ref
			if loc.IsTemplate() {
				r.File, r.Line = loc.File, loc.Line
			} else {
				r.File = loc.String()
			}
			refs = append(refs, r)
		}
	}
	return refs, nil
}

// OutputPlaceholder is replaced with the temporary POT path in a
// CommandSource command line.
const OutputPlaceholder = "{out}"

// CommandSource runs an external extractor that writes a POT file, e.g.
//
//	pybabel extract -F babel.cfg -o {out} templates
type CommandSource struct {
	Command []string
	// Dir is the working directory of the command.
	Dir string
}

func (s CommandSource) References(ctx context.Context) ([]RawReference, error) {
	if len(s.Command) == 0 {
		return nil, fmt.Errorf("no extractor command configured")
	}
	if !slices.ContainsFunc(s.Command, func(arg string) bool { return strings.Contains(arg, OutputPlaceholder) }) {
		return nil, fmt.Errorf("extractor command must contain %s for the output file", OutputPlaceholder)
	}

	bin, err := exec.LookPath(s.Command[0])
	if err != nil {
		return nil, fmt.Errorf("%s not found: %w", s.Command[0], err)
	}

	tmpDir, err := os.MkdirTemp("", "contentkit-extract-*")
	if err != nil {
		return nil, fmt.Errorf("creating temp directory: %w", err)
	}
	defer os.RemoveAll(tmpDir)
	potFile := filepath.Join(tmpDir, "templates.pot")

	args := make([]string, 0, len(s.Command)-1)
	for _, arg := range s.Command[1:] {
		args = append(args, strings.ReplaceAll(arg, OutputPlaceholder, potFile))
	}

	cmd := exec.CommandContext(ctx, bin, args...)
	cmd.Dir = s.Dir
	var stderrBuf strings.Builder
	cmd.Stderr = &stderrBuf
	if err := cmd.Run(); err != nil {
		if msg := strings.TrimSpace(stderrBuf.String()); msg != "" {
			return nil, fmt.Errorf("%s failed: %w: %s", s.Command[0], err, msg)
		}
		return nil, fmt.Errorf("%s failed: %w", s.Command[0], err)
	}

	// Extractors may not create the file if no strings were found.
	if _, err := os.Stat(potFile); errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	refs, err := POTSource{Path: potFile}.References(ctx)
	if err != nil {
		return nil, err
	}
	for i := range refs {
		if refs[i].File == filepath.ToSlash(potFile) {
			refs[i].File = s.Command[0]
		}
	}
	return refs, nil
}
