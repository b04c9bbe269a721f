// Package geometry converts match spans over the normalized stream into page
// rectangles to blacken. A span that begins or ends mid-token still covers
// the whole originating token's box: the recognizer provides no sub-token
// glyph geometry, so the mapper deliberately over-redacts rather than risk
// leaving part of a match visible.
package geometry

import (
	"image"
	"math"

	"github.com/wudi/redactkit/grammar"
	"github.com/wudi/redactkit/observability"
	"github.com/wudi/redactkit/ocr"
	"github.com/wudi/redactkit/stream"
)

// Box is one opaque rectangle to draw, in page pixel coordinates.
type Box struct {
	Page int
	Rect image.Rectangle
	Span grammar.Span
}

// Options tunes span-to-rectangle mapping. The line and gap thresholds are
// empirical calibrations, not invariants.
type Options struct {
	// Pad expands every rectangle by this many pixels on each side.
	Pad int
	// SameLineRatio bounds the vertical offset between two token tops,
	// relative to the first token's height, for them to count as the same
	// text line.
	SameLineRatio float64
	// MaxGap is the widest horizontal gap, in pixels, bridged when merging
	// same-line tokens into one rectangle.
	MaxGap float64
}

// DefaultOptions returns the calibrated defaults.
func DefaultOptions() Options {
	return Options{Pad: 4, SameLineRatio: 0.5, MaxGap: 50}
}

// Mapper resolves spans against one recognition pass's tokens and stream.
type Mapper struct {
	opts Options
	log  observability.Logger
}

// NewMapper constructs a mapper. A nil logger disables anomaly logging.
func NewMapper(opts Options, log observability.Logger) *Mapper {
	if log == nil {
		log = observability.NopLogger{}
	}
	if opts.SameLineRatio <= 0 {
		opts.SameLineRatio = DefaultOptions().SameLineRatio
	}
	if opts.MaxGap <= 0 {
		opts.MaxGap = DefaultOptions().MaxGap
	}
	return &Mapper{opts: opts, log: log}
}

// Map converts one span into rectangles. Consecutive tokens on the same page
// and text line merge into a single rectangle; a line wrap, page change, or
// large gap starts a new one. Tokens with empty text or a degenerate box are
// skipped with a logged anomaly. A non-empty span over usable tokens always
// yields at least one box.
func (m *Mapper) Map(span grammar.Span, n *stream.Normalized, tokens []ocr.Token) []Box {
	first, last, ok := n.TokenRange(span.Start, span.End)
	if !ok {
		return nil
	}

	var boxes []Box
	var group []ocr.Token
	flush := func() {
		if len(group) > 0 {
			boxes = append(boxes, m.merge(group, span))
			group = group[:0]
		}
	}

	for i := first; i <= last; i++ {
		tok := tokens[i]
		if tok.Text == "" || tok.Bounds.IsEmpty() {
			m.log.Warn("skipping degenerate token box",
				observability.Int("token", i),
				observability.Int("page", tok.Page),
				observability.String("text", tok.Text))
			continue
		}
		if len(group) > 0 && !m.sameLine(group[len(group)-1], tok) {
			flush()
		}
		group = append(group, tok)
	}
	flush()
	return boxes
}

func (m *Mapper) sameLine(prev, cur ocr.Token) bool {
	if prev.Page != cur.Page {
		return false
	}
	if math.Abs(prev.Bounds.Y-cur.Bounds.Y) >= prev.Bounds.Height*m.opts.SameLineRatio {
		return false
	}
	// Tokens inside one span are consecutive in reading order; only a large
	// horizontal gap (column break, wide table cell) splits the rectangle.
	return cur.Bounds.X-prev.Bounds.Right() < m.opts.MaxGap
}

func (m *Mapper) merge(group []ocr.Token, span grammar.Span) Box {
	left, top := math.MaxFloat64, math.MaxFloat64
	right, bottom := -math.MaxFloat64, -math.MaxFloat64
	for _, tok := range group {
		left = math.Min(left, tok.Bounds.X)
		top = math.Min(top, tok.Bounds.Y)
		right = math.Max(right, tok.Bounds.Right())
		bottom = math.Max(bottom, tok.Bounds.Bottom())
	}
	pad := float64(m.opts.Pad)
	return Box{
		Page: group[0].Page,
		Rect: image.Rect(
			int(math.Floor(left-pad)),
			int(math.Floor(top-pad)),
			int(math.Ceil(right+pad)),
			int(math.Ceil(bottom+pad)),
		),
		Span: span,
	}
}

// MapAll maps every span and groups the resulting boxes by page index.
func (m *Mapper) MapAll(spans []grammar.Span, n *stream.Normalized, tokens []ocr.Token) map[int][]Box {
	byPage := make(map[int][]Box)
	for _, span := range spans {
		for _, box := range m.Map(span, n, tokens) {
			byPage[box.Page] = append(byPage[box.Page], box)
		}
	}
	return byPage
}
