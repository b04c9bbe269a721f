// Package redact drives the per-document pipeline: render pages, recognize
// text, match the compiled pattern set, blacken the matched geometry,
// reassemble an image-only output, and verify it with a second recognition
// pass. Per-document failures are captured in the Outcome, never propagated
// into the caller's scheduling loop.
package redact

import (
	"context"
	"fmt"
	"image"

	"github.com/wudi/redactkit/assemble"
	"github.com/wudi/redactkit/geometry"
	"github.com/wudi/redactkit/grammar"
	"github.com/wudi/redactkit/observability"
	"github.com/wudi/redactkit/ocr"
	"github.com/wudi/redactkit/raster"
	"github.com/wudi/redactkit/stream"
)

// Category classifies a document outcome for exit-status aggregation.
type Category int

const (
	CategoryOK Category = iota
	CategoryNoMatch
	CategoryIO
	CategoryLeak
)

// Outcome is the terminal report for one document.
type Outcome struct {
	Path       string
	OutputPath string
	State      State
	Redactions int
	Leaked     int
	// RetriedDPI is the escalated resolution used on the retry pass, or zero
	// when the first pass sufficed.
	RetriedDPI int
	// Verified is true only when the verification pass ran and found the
	// output clean.
	Verified bool
	Err      error
}

// Category maps the outcome onto the failure taxonomy. Leak dominates
// everything; I/O errors beat no-match.
func (o Outcome) Category() Category {
	switch {
	case o.State == StateLeakDetected:
		return CategoryLeak
	case o.Err != nil:
		return CategoryIO
	case o.State == StateNoMatch:
		return CategoryNoMatch
	}
	return CategoryOK
}

// Options configures the controller.
type Options struct {
	// DPI is the base render resolution; the retry pass doubles it.
	DPI int
	// Languages are OCR trained-data hints.
	Languages []string
	// Verify re-recognizes the reassembled output; disabling it stops the
	// pipeline at REASSEMBLED and reports unverified success.
	Verify bool
	// Geometry tunes span-to-rectangle mapping.
	Geometry geometry.Options
	// JPEGQuality is passed through to assembly.
	JPEGQuality int
}

const defaultDPI = 300

// Controller runs the pipeline for individual documents. It is safe for
// concurrent use: the compiled pattern set is immutable and every pass owns
// its own tokens and stream.
type Controller struct {
	rasterizer raster.Rasterizer
	engine     ocr.Engine
	patterns   *grammar.Set
	mapper     *geometry.Mapper
	opts       Options
	log        observability.Logger
}

// NewController wires the pipeline dependencies together.
func NewController(r raster.Rasterizer, e ocr.Engine, patterns *grammar.Set, opts Options, log observability.Logger) *Controller {
	if log == nil {
		log = observability.NopLogger{}
	}
	if opts.DPI <= 0 {
		opts.DPI = defaultDPI
	}
	return &Controller{
		rasterizer: r,
		engine:     e,
		patterns:   patterns,
		mapper:     geometry.NewMapper(opts.Geometry, log),
		opts:       opts,
		log:        log,
	}
}

// pass holds everything one render+recognize+match cycle produced.
type pass struct {
	dpi    int
	images []image.Image
	tokens []ocr.Token
	norm   *stream.Normalized
	spans  []grammar.Span
}

// Process runs one document to a terminal state. The returned outcome always
// carries a terminal state or an error; it never panics across the boundary.
func (c *Controller) Process(ctx context.Context, inputPath, outputPath string) Outcome {
	out := Outcome{Path: inputPath, OutputPath: outputPath}
	log := c.log.With(observability.String("path", inputPath))

	pages, err := c.rasterizer.PageCount(ctx, inputPath)
	if err != nil {
		out.Err = fmt.Errorf("page count: %w", err)
		return out
	}

	state := StateRendered
	p, err := c.runPass(ctx, inputPath, pages, c.opts.DPI)
	if err != nil {
		out.Err = err
		return out
	}
	state = c.step(state, EventRecognized)

	// A single low-resolution pass must not be taken as ground truth:
	// escalate once when recognition found nothing or matching found
	// nothing, then accept the answer.
	if len(p.tokens) == 0 || len(p.spans) == 0 {
		retryDPI := c.opts.DPI * 2
		log.Debug("retrying at escalated resolution",
			observability.Int("dpi", retryDPI),
			observability.Int("tokens", len(p.tokens)),
			observability.Int("spans", len(p.spans)))
		retry, err := c.runPass(ctx, inputPath, pages, retryDPI)
		if err != nil {
			out.Err = err
			return out
		}
		p = retry
		out.RetriedDPI = retryDPI
		state = StateRendered
		state = c.step(state, EventRecognized)
	}

	if len(p.spans) == 0 {
		out.State = c.step(state, EventNoSpans)
		// Still produce the image-only output so the artifact exists for
		// inspection; the zero-redaction verdict is reported upward.
		if err := c.assemble(p, outputPath); err != nil {
			out.Err = err
		}
		return out
	}
	state = c.step(state, EventSpansFound)

	boxesByPage := c.mapper.MapAll(p.spans, p.norm, p.tokens)
	total := 0
	for pageIdx, boxes := range boxesByPage {
		rects := make([]image.Rectangle, len(boxes))
		for i, b := range boxes {
			rects[i] = b.Rect
		}
		p.images[pageIdx] = raster.FillRects(p.images[pageIdx], rects)
		total += len(boxes)
	}
	out.Redactions = total
	state = c.step(state, EventBoxesDrawn)

	if err := c.assemble(p, outputPath); err != nil {
		out.Err = err
		return out
	}
	state = c.step(state, EventAssembled)

	if !c.opts.Verify {
		out.State = state // REASSEMBLED: unverified success
		log.Debug("verification skipped", observability.Int("redactions", total))
		return out
	}

	leaked, err := c.Scan(ctx, outputPath, p.dpi)
	if err != nil {
		out.Err = fmt.Errorf("verification pass: %w", err)
		out.State = state
		return out
	}
	out.Leaked = leaked
	if leaked > 0 {
		out.State = c.step(state, EventVerifyLeak)
		log.Error("redaction leak detected",
			observability.String("output", outputPath),
			observability.Int("leaked", leaked))
		return out
	}
	out.State = c.step(state, EventVerifyClean)
	out.Verified = true
	return out
}

// Scan renders and recognizes a document and returns the number of pattern
// spans found, without redacting. This is the verification primitive.
func (c *Controller) Scan(ctx context.Context, path string, dpi int) (int, error) {
	pages, err := c.rasterizer.PageCount(ctx, path)
	if err != nil {
		return 0, fmt.Errorf("page count: %w", err)
	}
	p, err := c.runPass(ctx, path, pages, dpi)
	if err != nil {
		return 0, err
	}
	return len(p.spans), nil
}

func (c *Controller) runPass(ctx context.Context, path string, pages, dpi int) (*pass, error) {
	p := &pass{dpi: dpi, images: make([]image.Image, pages)}
	for i := 0; i < pages; i++ {
		img, err := c.rasterizer.Render(ctx, path, i, dpi)
		if err != nil {
			return nil, fmt.Errorf("render page %d: %w", i, err)
		}
		p.images[i] = img

		in, err := ocr.InputFromImage(img, i, ocr.WithLanguages(c.opts.Languages...), ocr.WithDPI(dpi))
		if err != nil {
			return nil, err
		}
		res, err := c.engine.Recognize(ctx, in)
		if err != nil {
			return nil, fmt.Errorf("recognize page %d: %w", i, err)
		}
		for _, tok := range res.Tokens {
			tok.Page = i
			tok.Sequence = len(p.tokens)
			p.tokens = append(p.tokens, tok)
		}
	}
	// The stream spans the whole document so a match may cross a page
	// boundary; geometry splitting handles the rectangles.
	p.norm = stream.Build(p.tokens)
	p.spans = c.patterns.Scan(p.norm.Runes())
	return p, nil
}

func (c *Controller) assemble(p *pass, outputPath string) error {
	pages := make([]assemble.Page, len(p.images))
	for i, img := range p.images {
		pages[i] = assemble.Page{Image: img, DPI: p.dpi}
	}
	opts := assemble.Options{BaseDPI: c.opts.DPI, JPEGQuality: c.opts.JPEGQuality}
	if err := assemble.WriteFile(outputPath, pages, opts); err != nil {
		return fmt.Errorf("assemble output: %w", err)
	}
	return nil
}

// step applies a transition that the pipeline's control flow guarantees is
// legal; an illegal one is a programming error.
func (c *Controller) step(s State, e Event) State {
	next, err := Transition(s, e)
	if err != nil {
		panic(err)
	}
	return next
}
