// Command contentkit is a translation toolkit for structured content trees.
package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/text/language"
	"golang.org/x/text/language/display"

	"github.com/minios-linux/contentkit/catalog"
	"github.com/minios-linux/contentkit/config"
	"github.com/minios-linux/contentkit/pipeline"
)

// Version information (set via -ldflags during build)
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// ANSI colors
const (
	colorReset  = "\033[0m"
	colorRed    = "\033[0;31m"
	colorGreen  = "\033[0;32m"
	colorYellow = "\033[1;33m"
	colorBlue   = "\033[0;34m"
)

func logInfo(format string, args ...any) {
	fmt.Fprintf(os.Stderr, colorBlue+"[INFO]"+colorReset+" "+format+"\n", args...)
}

func logSuccess(format string, args ...any) {
	fmt.Fprintf(os.Stderr, colorGreen+"[OK]"+colorReset+" "+format+"\n", args...)
}

func logWarning(format string, args ...any) {
	fmt.Fprintf(os.Stderr, colorYellow+"[WARN]"+colorReset+" "+format+"\n", args...)
}

func logError(format string, args ...any) {
	fmt.Fprintf(os.Stderr, colorRed+"[ERROR]"+colorReset+" "+format+"\n", args...)
}

// ---------------------------------------------------------------------------
// Global flags
// ---------------------------------------------------------------------------

var (
	rootDir string
	verbose bool
)

// ---------------------------------------------------------------------------
// Root command
// ---------------------------------------------------------------------------

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "contentkit",
		Short: "Translation toolkit for structured content trees",
		Long: `contentkit: translation toolkit for structured content trees.

Extracts translatable text from contents.lr records and templates into a
gettext master catalog, merges it into per-language PO catalogs, compiles
MO files and regenerates contents+<lang>.lr variants of every record.

Commands:
  build     Run the full pipeline
  extract   Update the master catalog only
  status    Show per-language translation statistics
  watch     Rebuild whenever content, templates or catalogs change

Configuration is read from .contentkit.yaml in the project root.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global persistent flags, inherited by all subcommands
	root.PersistentFlags().StringVar(&rootDir, "root", ".", "Project root directory")
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Show debug diagnostics")

	root.AddCommand(
		newBuildCmd(),
		newExtractCmd(),
		newStatusCmd(),
		newWatchCmd(),
		newVersionCmd(),
	)

	return root
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		logError("%v", err)
		stop()
		os.Exit(1)
	}
}

// newLogger returns the console logger for library diagnostics. Without
// --verbose only warnings and errors are shown.
func newLogger() (*zap.Logger, error) {
	cfg := zap.NewDevelopmentConfig()
	cfg.DisableStacktrace = true
	cfg.DisableCaller = true
	cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	cfg.EncoderConfig.TimeKey = ""
	if !verbose {
		cfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	}
	return cfg.Build()
}

// loadPipeline reads the project configuration and builds its pipeline.
func loadPipeline() (*config.Project, *pipeline.Pipeline, *zap.Logger, error) {
	proj, err := config.Load(rootDir)
	if err != nil {
		return nil, nil, nil, err
	}
	log, err := newLogger()
	if err != nil {
		return nil, nil, nil, fmt.Errorf("creating logger: %w", err)
	}
	return proj, pipeline.New(proj, proj.Schema(), pipeline.WithLogger(log)), log, nil
}

// ---------------------------------------------------------------------------
// version (display version information)
// ---------------------------------------------------------------------------

func newVersionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Long:  `Display version, commit hash, and build date.`,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("contentkit version %s\n", version)
			fmt.Printf("  commit:    %s\n", commit)
			fmt.Printf("  built:     %s\n", date)
		},
	}

	return cmd
}

// ---------------------------------------------------------------------------
// build (full pipeline)
// ---------------------------------------------------------------------------

func newBuildCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "build",
		Short: "Extract, merge, compile and regenerate all languages",
		Long: `Run the full translation pipeline:

  1. Extract segments from every contents.lr record and template references
  2. Write the master catalog (i18n/contents.pot)
  3. Merge it into every language catalog (i18n/contents+<lang>.po)
  4. Compile MO files (i18n/_compiled/<lang>/LC_MESSAGES/contents.mo)
  5. Write contents+<lang>.lr next to every record

A language with an unreadable catalog is skipped and reported; the other
languages are still built. Files are only rewritten when they change.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			proj, p, log, err := loadPipeline()
			if err != nil {
				return err
			}
			defer log.Sync()
			return runBuild(cmd.Context(), proj, p)
		},
	}

	return cmd
}

func runBuild(ctx context.Context, proj *config.Project, p *pipeline.Pipeline) error {
	start := time.Now()
	rep, err := p.Run(ctx)
	if err == nil || len(rep.Languages) > 0 {
		logInfo("Extracted %d segments from %d records, %d template references", rep.Segments, rep.Records, rep.References)
		if rep.Skipped > 0 {
			logWarning("Skipped %d fields that are not text", rep.Skipped)
		}
		logMaster(proj, rep)
	}

	failed := 0
	for _, lr := range rep.Languages {
		if lr.Err != nil {
			failed++
			logLanguageError(lr.Err)
			continue
		}
		logSuccess("%s: %s (+%d new, %d fuzzy, %d obsoleted, %d files written)",
			lr.Lang, lr.Stats, lr.Added, lr.Fuzzy, lr.Obsoleted, len(lr.Written))
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d languages failed", failed, len(rep.Languages))
	}
	if err != nil {
		return err
	}
	logInfo("Done in %s", time.Since(start).Round(time.Millisecond))
	return nil
}

func logMaster(proj *config.Project, rep *pipeline.Report) {
	rel, err := filepath.Rel(proj.Root, proj.MasterPath())
	if err != nil {
		rel = proj.MasterPath()
	}
	if rep.MasterWritten {
		logSuccess("Master catalog %s: %d entries", rel, rep.MasterEntries)
	} else {
		logInfo("Master catalog %s unchanged (%d entries)", rel, rep.MasterEntries)
	}
}

// logLanguageError prints a language failure, naming the offending file
// and line when known.
func logLanguageError(err error) {
	var lerr *pipeline.LanguageError
	if !errors.As(err, &lerr) {
		logError("%v", err)
		return
	}
	var perr *catalog.ParseError
	if errors.As(lerr.Err, &perr) {
		logError("%s: cannot read catalog: %v", lerr.Lang, perr)
		return
	}
	logError("%s: %s: %v", lerr.Lang, lerr.Path, lerr.Err)
}

// ---------------------------------------------------------------------------
// extract (master catalog only)
// ---------------------------------------------------------------------------

func newExtractCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "extract",
		Short: "Update the master catalog only",
		Long: `Extract segments and template references and write the master
catalog (i18n/contents.pot). Language catalogs are not touched.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			proj, p, log, err := loadPipeline()
			if err != nil {
				return err
			}
			defer log.Sync()

			rep, err := p.Extract(cmd.Context())
			if err != nil {
				return err
			}
			logInfo("Extracted %d segments from %d records, %d template references", rep.Segments, rep.Records, rep.References)
			logMaster(proj, rep)
			return nil
		},
	}

	return cmd
}

// ---------------------------------------------------------------------------
// status (read-only: project info + translation stats)
// ---------------------------------------------------------------------------

func newStatusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show project info and translation statistics",
		Long: `Show the project configuration and per-language translation progress.
Does not modify any files.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			proj, p, _, err := loadPipeline()
			if err != nil {
				return err
			}
			runStatus(proj, p)
			return nil
		},
	}

	return cmd
}

func runStatus(proj *config.Project, p *pipeline.Pipeline) {
	fmt.Fprintf(os.Stderr, "\n%sProject%s\n", colorBlue, colorReset)
	fmt.Fprintln(os.Stderr, strings.Repeat("─", 60))
	fmt.Fprintf(os.Stderr, "  Name:       %s\n", proj.Project)
	fmt.Fprintf(os.Stderr, "  Root:       %s\n", proj.Root)
	fmt.Fprintf(os.Stderr, "  Content:    %s\n", proj.ContentDir)
	fmt.Fprintf(os.Stderr, "  Catalogs:   %s\n", proj.I18nDir)
	fmt.Fprintf(os.Stderr, "  Mode:       %s\n", proj.Granularity)
	fmt.Fprintf(os.Stderr, "  Source:     %s\n", langName(proj.SourceLang))
	fmt.Fprintln(os.Stderr)

	if len(proj.Languages) == 0 {
		logInfo("No target languages configured.")
		return
	}
	if !fileExists(proj.MasterPath()) {
		logInfo("No master catalog yet. Run 'contentkit build' to create it.")
		return
	}

	width := langColumnWidth(proj.Languages)
	fmt.Fprintf(os.Stderr, "%sTranslation Statistics%s\n", colorBlue, colorReset)
	fmt.Fprintln(os.Stderr, strings.Repeat("─", 60))
	fmt.Fprintf(os.Stderr, "%-*s %-10s %-8s %-9s %-9s %s\n", width+3, "Lang", "Translated", "Fuzzy", "Untrans.", "Obsolete", "Progress")

	for _, lr := range p.Status() {
		if lr.Err != nil {
			status := "missing"
			if !errors.Is(lr.Err, fs.ErrNotExist) {
				status = "unreadable"
			}
			fmt.Fprintf(os.Stderr, "%s %-10s %-8s %-9s %-9s -\n", langCell(lr.Lang, width), status, "-", "-", "-")
			continue
		}
		s := lr.Stats
		fmt.Fprintf(os.Stderr, "%s %-10d %-8d %-9d %-9d %s\n",
			langCell(lr.Lang, width), s.Translated, s.Fuzzy, s.Untranslated, s.Obsolete, progressBar(s.Percent(), 20))
	}
	fmt.Fprintln(os.Stderr)
}

// progressBar renders a colored bar followed by the percentage.
func progressBar(percent, width int) string {
	percent = max(0, min(percent, 100))
	filled := percent * width / 100
	color := colorRed
	switch {
	case percent >= 100:
		color = colorGreen
	case percent >= 50:
		color = colorYellow
	}
	return color + strings.Repeat("█", filled) + strings.Repeat("░", width-filled) + colorReset + fmt.Sprintf(" %3d%%", percent)
}

// flagFromRegion returns the flag emoji of a two-letter region code.
func flagFromRegion(region string) string {
	if len(region) != 2 {
		return ""
	}
	var sb strings.Builder
	for _, r := range strings.ToUpper(region) {
		if r < 'A' || r > 'Z' {
			return ""
		}
		sb.WriteRune(0x1F1E6 + r - 'A')
	}
	return sb.String()
}

// langFlag returns the flag of a language code: the explicit region
// subtag when there is one ("pt-BR"), otherwise the likely region.
func langFlag(lang string) string {
	parts := strings.FieldsFunc(lang, func(r rune) bool { return r == '-' || r == '_' })
	for _, p := range parts[min(1, len(parts)):] {
		if f := flagFromRegion(p); f != "" {
			return f
		}
	}
	tag, err := language.Parse(lang)
	if err != nil {
		return ""
	}
	region, conf := tag.Region()
	if conf == language.No {
		return ""
	}
	return flagFromRegion(region.String())
}

// langName returns "code (native name)" when the name is known.
func langName(lang string) string {
	tag, err := language.Parse(lang)
	if err != nil {
		return lang
	}
	if name := display.Self.Name(tag); name != "" {
		return fmt.Sprintf("%s (%s)", lang, name)
	}
	return lang
}

func langColumnWidth(langs []string) int {
	width := len("Lang")
	for _, l := range langs {
		width = max(width, len(l))
	}
	return width
}

// langCell renders the flag and code padded to the language column.
func langCell(lang string, width int) string {
	flag := langFlag(lang)
	if flag == "" {
		flag = "  "
	}
	return flag + " " + lang + strings.Repeat(" ", width-utf8.RuneCountInString(lang))
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// ---------------------------------------------------------------------------
// watch (rebuild on change)
// ---------------------------------------------------------------------------

// debounce is how long the tree must stay quiet before a rebuild.
const debounce = 300 * time.Millisecond

func newWatchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Rebuild whenever content, templates or catalogs change",
		Long: `Run a build, then watch the content tree, the template directories,
the catalogs and .contentkit.yaml, and rebuild after every change. Files
written by the build itself are ignored. Stop with Ctrl+C.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			proj, p, log, err := loadPipeline()
			if err != nil {
				return err
			}
			defer log.Sync()
			return runWatch(cmd.Context(), proj, p, log)
		},
	}

	return cmd
}

func runWatch(ctx context.Context, proj *config.Project, p *pipeline.Pipeline, log *zap.Logger) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	defer watcher.Close()

	// The project root only matters for the config file.
	if err := watcher.Add(proj.Root); err != nil {
		return fmt.Errorf("watching %s: %w", proj.Root, err)
	}
	dirs := []string{proj.AbsContentDir(), proj.AbsI18nDir()}
	for _, d := range append(proj.Templates.Dirs, proj.Templates.GoDirs...) {
		dirs = append(dirs, filepath.Join(proj.Root, d))
	}
	for _, d := range dirs {
		if err := watchTree(watcher, d); err != nil {
			return err
		}
	}

	rebuild := func() {
		if err := runBuild(ctx, proj, p); err != nil && ctx.Err() == nil {
			logError("%v", err)
		}
	}
	rebuild()
	logInfo("Watching %s for changes (Ctrl+C to stop)", proj.Root)

	trigger := make(chan struct{}, 1)
	var timer *time.Timer
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()
	reload := false

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !watchRelevant(proj.Root, p, event) {
				continue
			}
			if filepath.Base(event.Name) == config.FileName {
				reload = true
			}
			if event.Has(fsnotify.Create) {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					if err := watchTree(watcher, event.Name); err != nil {
						log.Warn("cannot watch new directory", zap.String("path", event.Name), zap.Error(err))
					}
				}
			}
			log.Debug("change detected", zap.String("path", event.Name), zap.Stringer("op", event.Op))
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(debounce, func() {
				select {
				case trigger <- struct{}{}:
				default:
				}
			})

		case <-trigger:
			if reload {
				reload = false
				next, err := config.Load(proj.Root)
				if err != nil {
					logError("Keeping previous configuration: %v", err)
				} else {
					logInfo("Configuration reloaded")
					proj = next
					p = pipeline.New(proj, proj.Schema(), pipeline.WithLogger(log))
				}
			}
			rebuild()

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Error("file watcher error", zap.Error(err))
		}
	}
}

// watchRelevant reports whether an event should cause a rebuild. Build
// outputs are ignored, except language catalogs, which translators edit.
// In the project root itself only the config file counts.
func watchRelevant(root string, p *pipeline.Pipeline, event fsnotify.Event) bool {
	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
		return false
	}
	base := filepath.Base(event.Name)
	if filepath.Dir(event.Name) == filepath.Clean(root) {
		return base == config.FileName
	}
	if !p.IsOutput(event.Name) {
		return true
	}
	return filepath.Ext(base) == ".po" && !strings.HasPrefix(base, ".")
}

// watchTree adds dir and its subdirectories, skipping hidden directories
// and the compiled catalogs. A missing dir is ignored.
func watchTree(w *fsnotify.Watcher, dir string) error {
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) && path == dir {
				return filepath.SkipDir
			}
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != dir && (strings.HasPrefix(d.Name(), ".") || d.Name() == "_compiled") {
			return filepath.SkipDir
		}
		return w.Add(path)
	})
	if err != nil {
		return fmt.Errorf("watching %s: %w", dir, err)
	}
	return nil
}
