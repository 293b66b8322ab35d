// Package pipeline runs a full translation build of a content tree:
// extraction, master catalog, per-language merge, compilation and
// regeneration of the language variants.
//
// Records are extracted concurrently. Building the master catalog waits
// for all of them, then every language is processed on its own: a broken
// catalog stops only its language. Every file is replaced atomically and
// only when its bytes change.
package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/minios-linux/contentkit/atomicfile"
	"github.com/minios-linux/contentkit/catalog"
	"github.com/minios-linux/contentkit/compile"
	"github.com/minios-linux/contentkit/config"
	"github.com/minios-linux/contentkit/content"
	"github.com/minios-linux/contentkit/extract"
	"github.com/minios-linux/contentkit/merge"
	"github.com/minios-linux/contentkit/regen"
	"github.com/minios-linux/contentkit/segment"
)

// Pipeline builds the translations of one project.
type Pipeline struct {
	cfg     *config.Project
	schema  content.Schema
	log     *zap.Logger
	codec   catalog.Codec
	sources []extract.TemplateSource
	extra   []extract.TemplateSource
	custom  bool
	now     func() time.Time
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets the diagnostics logger.
func WithLogger(log *zap.Logger) Option {
	return func(p *Pipeline) { p.log = log }
}

// WithCodec replaces the PO catalog codec.
func WithCodec(codec catalog.Codec) Option {
	return func(p *Pipeline) { p.codec = codec }
}

// WithTemplateSources replaces the template sources derived from the
// configuration.
func WithTemplateSources(sources ...extract.TemplateSource) Option {
	return func(p *Pipeline) {
		p.sources = sources
		p.custom = true
	}
}

// WithExtraSources adds template sources after the configured ones, for
// example an i18n.Recorder filled while rendering the source language.
func WithExtraSources(sources ...extract.TemplateSource) Option {
	return func(p *Pipeline) { p.extra = append(p.extra, sources...) }
}

// WithClock sets the time source for catalog headers.
func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) { p.now = now }
}

// New returns a pipeline for cfg. schema is usually cfg.Schema().
func New(cfg *config.Project, schema content.Schema, opts ...Option) *Pipeline {
	p := &Pipeline{
		cfg:    cfg,
		schema: schema,
		log:    zap.NewNop(),
		codec:  catalog.PO,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.log == nil {
		p.log = zap.NewNop()
	}
	if !p.custom {
		p.sources = cfg.TemplateSources(p.log)
	}
	p.sources = append(p.sources, p.extra...)
	return p
}

// Report summarizes a run.
type Report struct {
	Records    int
	Segments   int
	Skipped    int
	References int
	// MasterEntries is the number of entries in the master catalog.
	MasterEntries int
	MasterWritten bool
	Languages     []LanguageReport
}

// LanguageReport summarizes one language.
type LanguageReport struct {
	Lang      string
	Stats     catalog.Stats
	Added     int
	Fuzzy     int
	Obsoleted int
	// Written lists the files that changed, relative to the project root.
	Written []string
	// Err is the language's failure, if any.
	Err error
}

// extraction is the state shared by all languages after the barrier.
type extraction struct {
	records []*content.Record
	master  *catalog.Catalog
}

// Extract builds and stores the master catalog only.
func (p *Pipeline) Extract(ctx context.Context) (*Report, error) {
	rep := &Report{}
	if _, err := p.extract(ctx, rep); err != nil {
		return rep, err
	}
	return rep, nil
}

// Run performs the full build. Language failures are reported in the
// Report and returned joined; other failures abort the run before any
// language is touched.
func (p *Pipeline) Run(ctx context.Context) (*Report, error) {
	rep := &Report{}
	ex, err := p.extract(ctx, rep)
	if err != nil {
		return rep, err
	}

	rep.Languages = make([]LanguageReport, len(p.cfg.Languages))
	var g errgroup.Group
	g.SetLimit(p.cfg.Workers)
	for i, lang := range p.cfg.Languages {
		i, lang := i, lang
		g.Go(func() error {
			lr, err := p.language(ctx, lang, ex)
			lr.Err = err
			rep.Languages[i] = lr
			return nil
		})
	}
	_ = g.Wait()

	var errs []error
	for _, lr := range rep.Languages {
		if lr.Err != nil {
			p.log.Error("language failed", zap.String("lang", lr.Lang), zap.Error(lr.Err))
			errs = append(errs, lr.Err)
		}
	}
	return rep, errors.Join(errs...)
}

func (p *Pipeline) extract(ctx context.Context, rep *Report) (*extraction, error) {
	root := p.cfg.AbsContentDir()
	files, err := content.Sources(root)
	if err != nil {
		return nil, err
	}

	records := make([]*content.Record, len(files))
	results := make([]extract.Result, len(files))
	ex := extract.NewExtractor(p.schema, p.cfg.Mode(), p.log)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.cfg.Workers)
	for i, file := range files {
		i, file := i, file
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			rec, err := content.ReadRecord(root, file, p.schema, p.cfg.DefaultModel)
			if err != nil {
				return err
			}
			records[i] = rec
			results[i] = ex.Extract(rec)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var segments []segment.Segment
	for _, r := range results {
		segments = append(segments, r.Segments...)
		rep.Skipped += r.Skipped
	}
	rep.Records = len(records)
	rep.Segments = len(segments)

	var col extract.Collector
	for _, src := range p.sources {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		refs, err := src.References(ctx)
		if err != nil {
			return nil, fmt.Errorf("collecting template references: %w", err)
		}
		rep.References += len(refs)
		col.Add(refs...)
	}

	masterPath := p.cfg.MasterPath()
	previous, err := catalog.Load(masterPath, p.codec)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			// The master holds no translations; rebuild it.
			p.log.Warn("ignoring unreadable master catalog", zap.String("path", masterPath), zap.Error(err))
		}
		previous = nil
	}

	b := merge.Builder{Project: p.cfg.Project, URLPrefix: p.cfg.URLPrefix, Now: p.now}
	master := b.Build(segments, col.Entries(), previous)
	rep.MasterEntries = len(master.Entries)

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	written, err := catalog.Store(masterPath, p.codec, master)
	if err != nil {
		return nil, fmt.Errorf("writing master catalog: %w", err)
	}
	rep.MasterWritten = written
	p.log.Debug("master catalog built",
		zap.Int("records", rep.Records),
		zap.Int("segments", rep.Segments),
		zap.Int("references", rep.References),
		zap.Int("entries", rep.MasterEntries),
		zap.Bool("written", written))

	return &extraction{records: records, master: master}, nil
}

func (p *Pipeline) language(ctx context.Context, lang string, ex *extraction) (LanguageReport, error) {
	lr := LanguageReport{Lang: lang}
	log := p.log.With(zap.String("lang", lang))

	poPath := p.cfg.POPath(lang)
	old, err := catalog.Load(poPath, p.codec)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return lr, &LanguageError{Lang: lang, Path: poPath, Err: err}
		}
		old = nil
	}

	res := merge.Merge(old, ex.master, lang, p.now())
	for _, key := range res.Duplicates {
		log.Warn("coalesced duplicate catalog entry", zap.String("path", poPath), zap.String("msgid", key))
	}
	lr.Added, lr.Fuzzy, lr.Obsoleted = res.Added, res.Fuzzy, res.Obsoleted
	lr.Stats = res.Catalog.Stats()

	if err := ctx.Err(); err != nil {
		return lr, err
	}
	if err := p.store(&lr, poPath, func() (bool, error) {
		return catalog.Store(poPath, p.codec, res.Catalog)
	}); err != nil {
		return lr, &LanguageError{Lang: lang, Path: poPath, Err: err}
	}

	table := compile.Compile(res.Catalog)
	var mo bytes.Buffer
	if err := table.WriteMO(&mo); err != nil {
		return lr, &LanguageError{Lang: lang, Path: p.cfg.MOPath(lang), Err: err}
	}
	moPath := p.cfg.MOPath(lang)
	if err := p.store(&lr, moPath, func() (bool, error) {
		return atomicfile.Write(moPath, mo.Bytes())
	}); err != nil {
		return lr, &LanguageError{Lang: lang, Path: moPath, Err: err}
	}

	mode := p.cfg.Mode()
	contentDir := p.cfg.AbsContentDir()
	for _, rec := range ex.records {
		if err := ctx.Err(); err != nil {
			return lr, err
		}
		alt := regen.Record(rec, p.schema, mode, table)
		path := filepath.Join(contentDir, filepath.FromSlash(content.AltFileName(rec.File, lang)))
		if err := p.store(&lr, path, func() (bool, error) {
			return atomicfile.Write(path, regen.Encode(alt))
		}); err != nil {
			return lr, &LanguageError{Lang: lang, Path: path, Err: err}
		}
	}

	log.Debug("language built",
		zap.Stringer("stats", lr.Stats),
		zap.Int("added", lr.Added),
		zap.Int("fuzzy", lr.Fuzzy),
		zap.Int("obsoleted", lr.Obsoleted),
		zap.Int("written", len(lr.Written)))
	return lr, nil
}

// store runs write and records path in lr when it changed the file.
func (p *Pipeline) store(lr *LanguageReport, path string, write func() (bool, error)) error {
	written, err := write()
	if err != nil {
		return err
	}
	if written {
		rel, err := filepath.Rel(p.cfg.Root, path)
		if err != nil {
			rel = path
		}
		lr.Written = append(lr.Written, filepath.ToSlash(rel))
	}
	return nil
}

// Status reads the language catalogs without changing anything.
func (p *Pipeline) Status() []LanguageReport {
	reports := make([]LanguageReport, len(p.cfg.Languages))
	for i, lang := range p.cfg.Languages {
		reports[i].Lang = lang
		path := p.cfg.POPath(lang)
		c, err := catalog.Load(path, p.codec)
		if err != nil {
			reports[i].Err = &LanguageError{Lang: lang, Path: path, Err: err}
			continue
		}
		reports[i].Stats = c.Stats()
	}
	return reports
}

// IsOutput reports whether path, absolute or relative to the project
// root, is a file the pipeline writes. Hidden files count as outputs
// because atomic writes stage their data in them.
func (p *Pipeline) IsOutput(path string) bool {
	if !filepath.IsAbs(path) {
		path = filepath.Join(p.cfg.Root, path)
	}
	path = filepath.Clean(path)
	dir, base := filepath.Split(path)
	switch {
	case strings.HasPrefix(base, "."), content.IsAlternative(path), path == p.cfg.MasterPath():
		return true
	case strings.HasPrefix(path, p.cfg.CompiledDir()+string(filepath.Separator)):
		return true
	}
	return filepath.Clean(dir) == p.cfg.AbsI18nDir() &&
		strings.HasPrefix(base, "contents+") && strings.HasSuffix(base, ".po")
}
