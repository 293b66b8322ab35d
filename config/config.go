// Package config reads the .contentkit.yaml project configuration.
//
// The file declares the languages, the content and catalog directories,
// the segmentation mode, the template reference sources and the schema of
// every model and flow block. CONTENTKIT_* environment variables override
// the scalar settings.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"

	"github.com/minios-linux/contentkit/extract"
	"github.com/minios-linux/contentkit/segment"
)

// FileName is the default config file name.
const FileName = ".contentkit.yaml"

// EnvPrefix prefixes every environment override.
const EnvPrefix = "CONTENTKIT_"

// Project is the top-level .contentkit.yaml structure.
type Project struct {
	// Project names the catalogs (Project-Id-Version).
	Project string `yaml:"project" validate:"required"`
	// SourceLang is the language of the content tree (default "en").
	SourceLang string `yaml:"source_lang" env:"SOURCE_LANG" validate:"required"`
	// Languages are the target languages.
	Languages []string `yaml:"languages" env:"LANGUAGES" envSeparator:"," validate:"dive,required"`
	// ContentDir holds the record tree, relative to the project root.
	ContentDir string `yaml:"content_dir" env:"CONTENT_DIR" validate:"required"`
	// I18nDir holds the catalogs and the compiled MO files.
	I18nDir string `yaml:"i18n_dir" env:"I18N_DIR" validate:"required"`
	// Granularity is "line" or "paragraph".
	Granularity string `yaml:"granularity" env:"GRANULARITY" validate:"oneof=line paragraph"`
	// URLPrefix is prepended to record paths in translator comments.
	URLPrefix string `yaml:"url_prefix" env:"URL_PREFIX" validate:"omitempty,url"`
	// DefaultModel is used for records without a _model field.
	DefaultModel string `yaml:"default_model" validate:"required"`
	// Workers bounds the number of records and languages processed at once.
	Workers int `yaml:"workers" env:"WORKERS" validate:"min=1,max=256"`

	Templates  Templates        `yaml:"templates"`
	Models     map[string]Model `yaml:"models" validate:"dive"`
	FlowBlocks map[string]Model `yaml:"flowblocks" validate:"dive"`

	// Root is the absolute project directory; set by Load.
	Root string `yaml:"-"`
}

// Templates configures where template references come from.
type Templates struct {
	// Dirs are scanned for Go templates.
	Dirs []string `yaml:"dirs"`
	// Extensions selects template files (default ".html").
	Extensions []string `yaml:"extensions"`
	// Keywords are xgettext-style keyword specs.
	Keywords   []string `yaml:"keywords"`
	LeftDelim  string   `yaml:"left_delim"`
	RightDelim string   `yaml:"right_delim"`
	// GoDirs are scanned for gettext calls in Go source code.
	GoDirs []string `yaml:"go_dirs"`
	// POTFiles are merged into the master catalog as they are.
	POTFiles []string `yaml:"pot_files"`
	// Command runs an external extractor; it must contain {out}.
	Command []string `yaml:"command"`
}

var validate = validator.New()

// Load reads .contentkit.yaml from rootDir, applies defaults and
// environment overrides, and validates the result. A missing file is an
// error: there is nothing to translate without a schema.
func Load(rootDir string) (*Project, error) {
	root, err := filepath.Abs(rootDir)
	if err != nil {
		return nil, err
	}
	path := filepath.Join(root, FileName)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%s not found in %s", FileName, root)
		}
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	p, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	p.Root = root
	return p, nil
}

// Parse decodes configuration text and finishes it like Load, without a
// project root.
func Parse(data []byte) (*Project, error) {
	var p Project
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := env.ParseWithOptions(&p, env.Options{Prefix: EnvPrefix}); err != nil {
		return nil, fmt.Errorf("environment overrides: %w", err)
	}
	p.applyDefaults()
	if err := p.validate(); err != nil {
		return nil, err
	}
	return &p, nil
}

func (p *Project) applyDefaults() {
	if p.SourceLang == "" {
		p.SourceLang = "en"
	}
	if p.ContentDir == "" {
		p.ContentDir = "content"
	}
	if p.I18nDir == "" {
		p.I18nDir = "i18n"
	}
	if p.Granularity == "" {
		p.Granularity = segment.Paragraph.String()
	} else if m, err := segment.ParseMode(p.Granularity); err == nil {
		p.Granularity = m.String()
	}
	if p.DefaultModel == "" {
		p.DefaultModel = "page"
	}
	if p.Workers == 0 {
		p.Workers = 4
	}
	if len(p.Templates.Keywords) == 0 {
		p.Templates.Keywords = slices.Clone(extract.DefaultKeywords)
	}

	// Deduplicate languages and drop the source language.
	var langs []string
	for _, l := range p.Languages {
		l = strings.TrimSpace(l)
		if l == "" || l == p.SourceLang || slices.Contains(langs, l) {
			continue
		}
		langs = append(langs, l)
	}
	p.Languages = langs
}

func (p *Project) validate() error {
	if err := validate.Struct(p); err != nil {
		return formatValidationError(err)
	}
	var errs []error
	for _, l := range append([]string{p.SourceLang}, p.Languages...) {
		if _, err := language.Parse(l); err != nil {
			errs = append(errs, fmt.Errorf("invalid language %q: %w", l, err))
		}
	}
	if len(p.Templates.Command) > 0 && !slices.ContainsFunc(p.Templates.Command, func(a string) bool {
		return strings.Contains(a, extract.OutputPlaceholder)
	}) {
		errs = append(errs, fmt.Errorf("templates.command must contain %s", extract.OutputPlaceholder))
	}
	return errors.Join(errs...)
}

// formatValidationError turns validator errors into readable messages.
func formatValidationError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	msgs := make([]string, 0, len(verrs))
	for _, e := range verrs {
		field := strings.ToLower(e.Namespace())
		switch e.Tag() {
		case "required":
			msgs = append(msgs, fmt.Sprintf("%s is required", field))
		case "oneof":
			msgs = append(msgs, fmt.Sprintf("%s must be one of: %s", field, e.Param()))
		case "min", "max":
			msgs = append(msgs, fmt.Sprintf("%s must be %s %s", field, e.Tag(), e.Param()))
		case "url":
			msgs = append(msgs, fmt.Sprintf("%s must be a URL", field))
		default:
			msgs = append(msgs, fmt.Sprintf("%s is invalid", field))
		}
	}
	return errors.New(strings.Join(msgs, "; "))
}

// Mode returns the configured segmentation mode.
func (p *Project) Mode() segment.Mode {
	m, err := segment.ParseMode(p.Granularity)
	if err != nil {
		return segment.Paragraph
	}
	return m
}

// AbsContentDir returns the absolute content directory.
func (p *Project) AbsContentDir() string {
	return filepath.Join(p.Root, p.ContentDir)
}

// AbsI18nDir returns the absolute catalog directory.
func (p *Project) AbsI18nDir() string {
	return filepath.Join(p.Root, p.I18nDir)
}

// MasterPath returns the master catalog path.
func (p *Project) MasterPath() string {
	return filepath.Join(p.AbsI18nDir(), "contents.pot")
}

// POPath returns the catalog path for lang.
func (p *Project) POPath(lang string) string {
	return filepath.Join(p.AbsI18nDir(), "contents+"+lang+".po")
}

// CompiledDir returns the root of the compiled MO tree.
func (p *Project) CompiledDir() string {
	return filepath.Join(p.AbsI18nDir(), "_compiled")
}

// MOPath returns the compiled catalog path for lang.
func (p *Project) MOPath(lang string) string {
	return filepath.Join(p.CompiledDir(), lang, "LC_MESSAGES", "contents.mo")
}

// TemplateSources returns the configured template reference sources in a
// fixed order: Go templates, Go code, POT files, external command.
func (p *Project) TemplateSources(log *zap.Logger) []extract.TemplateSource {
	t := p.Templates
	var sources []extract.TemplateSource
	if len(t.Dirs) > 0 {
		sources = append(sources, extract.GoTemplateSource{
			Root:       p.Root,
			Dirs:       t.Dirs,
			Extensions: t.Extensions,
			Keywords:   t.Keywords,
			LeftDelim:  t.LeftDelim,
			RightDelim: t.RightDelim,
			Logger:     log,
		})
	}
	if len(t.GoDirs) > 0 {
		sources = append(sources, extract.GoSource{Root: p.Root, Dirs: t.GoDirs, Keywords: t.Keywords, Logger: log})
	}
	for _, pot := range t.POTFiles {
		sources = append(sources, extract.POTSource{Path: filepath.Join(p.Root, pot)})
	}
	if len(t.Command) > 0 {
		sources = append(sources, extract.CommandSource{Command: t.Command, Dir: p.Root})
	}
	return sources
}
