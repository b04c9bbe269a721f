// Command redactkit blacks out pattern matches in PDF documents. Pages are
// rasterized, recognized with Tesseract, matched against PEG-style grammars,
// painted over, and reassembled as an image-only PDF, which is then
// re-recognized to verify nothing leaked through.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	charmlog "github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/wudi/redactkit/config"
	"github.com/wudi/redactkit/grammar"
	"github.com/wudi/redactkit/job"
	"github.com/wudi/redactkit/observability"
	"github.com/wudi/redactkit/ocr"
	"github.com/wudi/redactkit/ocr/tesseract"
	"github.com/wudi/redactkit/raster"
	"github.com/wudi/redactkit/raster/poppler"
	"github.com/wudi/redactkit/redact"
	"github.com/wudi/redactkit/stream"
)

const version = "0.4.0"

var (
	flagConfig   string
	flagOutput   string
	flagMatches  []string
	flagJobs     int
	flagDPI      int
	flagNoVerify bool
	flagRelaxed  bool
	flagQuiet    bool
	flagVerbose  bool
)

// exitError carries a process exit code through cobra's error return.
type exitError struct {
	code int
}

func (e *exitError) Error() string { return fmt.Sprintf("exit code %d", e.code) }

func exit(code int) error { return &exitError{code: code} }

var rootCmd = &cobra.Command{
	Use:   "redactkit INPUT...",
	Short: "Redact sensitive text in PDF documents via OCR and pattern matching",
	Long: `Redact sensitive text in PDF documents.

Each input PDF is rasterized, scanned with OCR, and matched against the
configured patterns. Matches are blacked out and the pages are reassembled
into an image-only PDF, then re-scanned to verify the redaction held.

Patterns come from -m flags and from a YAML config file, looked up as:
  1. -c/--config argument
  2. $REDACTKIT_CONFIG environment variable
  3. ./patterns.yaml (current directory)
  4. the user config directory (e.g. ~/.config/redactkit/patterns.yaml)
  5. /etc/xdg/redactkit/patterns.yaml

Examples:
  redactkit document.pdf
  redactkit document.pdf -o redacted.pdf
  redactkit data/ -o output/
  redactkit -m "jane doe" -m 555-0199 document.pdf`,
	Args:          cobra.MinimumNArgs(1),
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return run(cmd, args)
	},
}

func init() {
	f := rootCmd.Flags()
	f.StringVarP(&flagConfig, "config", "c", "", "path to config file (default: patterns.yaml)")
	f.StringVarP(&flagOutput, "output", "o", "", "output file (single input) or directory (default: output/)")
	f.StringArrayVarP(&flagMatches, "match", "m", nil, "literal text to redact (case-insensitive, repeatable)")
	f.IntVarP(&flagJobs, "jobs", "j", 0, "number of parallel workers (default: half of CPU cores)")
	f.IntVarP(&flagDPI, "dpi", "d", 0, "resolution for rendering and output (default: 300)")
	f.BoolVar(&flagNoVerify, "no-verify", false, "skip re-scanning output to verify redaction")
	f.BoolVar(&flagRelaxed, "relaxed", false, "don't fail when no matches are found")
	f.BoolVarP(&flagQuiet, "quiet", "q", false, "suppress output")
	f.BoolVarP(&flagVerbose, "verbose", "v", false, "show processing progress")
}

func newLogger() observability.Logger {
	level := charmlog.InfoLevel
	switch {
	case flagQuiet:
		level = charmlog.WarnLevel
	case flagVerbose:
		level = charmlog.DebugLevel
	}
	cl := charmlog.NewWithOptions(os.Stderr, charmlog.Options{Level: level})
	return observability.NewCharmLogger(cl)
}

func run(cmd *cobra.Command, args []string) error {
	log := newLogger()
	ctx := cmd.Context()

	// CLI shorthand patterns come before config-file patterns.
	var patterns []string
	for _, text := range flagMatches {
		if stream.NormalizeText(text) == "" {
			log.Error("match text has no letters or digits", observability.String("text", text))
			return exit(job.ExitConfigError)
		}
		patterns = append(patterns, literalPattern(text))
	}

	cfgPath, err := config.Find(flagConfig)
	if err != nil {
		log.Error("config lookup failed", observability.Error("err", err))
		return exit(job.ExitConfigError)
	}

	cfg := &config.Config{}
	if cfgPath != "" {
		log.Info("using config", observability.String("path", cfgPath))
		cfg, err = config.Load(cfgPath)
		if err != nil {
			log.Error("config load failed", observability.Error("err", err))
			return exit(job.ExitConfigError)
		}
		patterns = append(patterns, cfg.Patterns...)
	} else if len(patterns) == 0 {
		log.Error("no config file found; searched:")
		for _, cand := range config.Candidates() {
			log.Error("  " + cand)
		}
		log.Error("use -m to specify patterns or -c to specify a config file")
		return exit(job.ExitConfigError)
	}

	if len(patterns) == 0 {
		log.Error("no patterns defined; use -m or add patterns to the config file")
		return exit(job.ExitConfigError)
	}

	set, err := grammar.CompileSet(patterns)
	if err != nil {
		log.Error("pattern compilation failed", observability.Error("err", err))
		return exit(job.ExitConfigError)
	}

	inputs, skipped := collectInputs(args)
	for _, s := range skipped {
		log.Warn("skipping non-PDF input", observability.String("path", s))
	}
	if len(inputs) == 0 {
		log.Error("no PDF files found")
		return exit(job.ExitConfigError)
	}

	output := flagOutput
	if output == "" {
		output = cfg.Output
	}
	if len(inputs) > 1 && output != "" && !isDirTarget(output) {
		log.Error("cannot write multiple inputs to a single file; use a directory target (trailing /)",
			observability.Int("inputs", len(inputs)),
			observability.String("output", output))
		return exit(job.ExitConfigError)
	}

	// Flags beat config-file run parameters.
	dpi := flagDPI
	if dpi == 0 {
		dpi = cfg.DPI
	}
	workers := flagJobs
	if workers == 0 {
		workers = cfg.Jobs
	}
	strict := cfg.StrictEnabled()
	if flagRelaxed {
		strict = false
	}
	verify := !flagNoVerify && cfg.VerifyEnabled()

	engine := tesseract.New()
	rasterizer := poppler.New()
	if err := probe(ctx, engine, rasterizer); err != nil {
		log.Error("environment check failed", observability.Error("err", err))
		return exit(job.ExitIOError)
	}

	ctrl := redact.NewController(rasterizer, engine, set, redact.Options{
		DPI:       dpi,
		Languages: cfg.Languages,
		Verify:    verify,
	}, log)

	reqs := make([]job.Request, len(inputs))
	for i, in := range inputs {
		reqs[i] = job.Request{Input: in.Path, Output: resolveOutput(in, output)}
	}

	// Keep Tesseract single-threaded; parallelism comes from the pool.
	os.Setenv("OMP_THREAD_LIMIT", "1")

	runner := job.NewRunner(ctrl, job.Options{Workers: workers, Strict: strict}, log)
	summary := runner.Run(ctx, reqs)

	if code := summary.ExitCode(); code != job.ExitSuccess {
		return exit(code)
	}
	return nil
}

// probe checks the external tool dependencies before any document work, so
// a missing tesseract or poppler install fails fast instead of per file.
func probe(ctx context.Context, engine ocr.Engine, rasterizer raster.Rasterizer) error {
	if err := ocr.Probe(ctx, engine); err != nil {
		return err
	}
	return raster.Probe(ctx, rasterizer)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		var ee *exitError
		if errors.As(err, &ee) {
			os.Exit(ee.code)
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(job.ExitConfigError)
	}
}
