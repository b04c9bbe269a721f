package ocr

import (
	"context"
	"errors"
)

// ErrUnavailable is returned by Probe when the engine's backing dependency is
// missing or misconfigured. Callers are expected to probe once, before any
// document work starts.
var ErrUnavailable = errors.New("ocr: engine unavailable")

// ImageFormat identifies the content type of an OCR input image.
type ImageFormat string

const (
	ImageFormatPNG  ImageFormat = "image/png"
	ImageFormatJPEG ImageFormat = "image/jpeg"
	ImageFormatTIFF ImageFormat = "image/tiff"
)

// Region describes a rectangular area in pixel coordinates with the origin in
// the upper-left corner of the image.
type Region struct {
	X      float64
	Y      float64
	Width  float64
	Height float64
}

// IsEmpty reports whether the region has non-positive dimensions.
func (r Region) IsEmpty() bool { return r.Width <= 0 || r.Height <= 0 }

// Right returns the x coordinate of the region's right edge.
func (r Region) Right() float64 { return r.X + r.Width }

// Bottom returns the y coordinate of the region's lower edge.
func (r Region) Bottom() float64 { return r.Y + r.Height }

// Input encapsulates a single page image submitted for OCR.
type Input struct {
	// ID is an optional caller-provided identifier that is echoed back in the
	// corresponding Result.
	ID string
	// Image is the encoded image payload in the format specified by Format.
	Image []byte
	// Format declares the image content type (e.g., image/png).
	Format ImageFormat
	// PageIndex links the input back to the zero-based page index where the
	// image originated.
	PageIndex int
	// DPI carries the effective dots-per-inch for the image. Providers such as
	// Tesseract use this for scaling and layout heuristics; zero means unknown.
	DPI int
	// Languages is a list of trained-data hints (e.g., "eng", "deu").
	Languages []string
	// Metadata allows callers to pass through engine-specific knobs (e.g.,
	// "tessedit_pageseg_mode" for Tesseract) without hard-coding them into the
	// API surface.
	Metadata map[string]string
}

// Token is a single recognized word with its page-relative bounding box.
// Tokens arrive in reading order as emitted by the engine; Sequence is the
// zero-based position within that order.
type Token struct {
	Text       string
	Bounds     Region
	Page       int
	Sequence   int
	Confidence float64
}

// Result captures OCR output for a single input image.
type Result struct {
	// InputID mirrors the Input.ID that produced this result.
	InputID string
	// Tokens carries recognized words in reading order. Empty text and
	// degenerate boxes are allowed here; downstream consumers decide how to
	// treat them.
	Tokens []Token
}

// Engine is the simplest OCR provider contract: one image in, one result out.
type Engine interface {
	Name() string
	Recognize(ctx context.Context, input Input) (Result, error)
}

// BatchEngine handles multiple images in a single call, enabling providers
// that amortize setup costs or remote round-trips.
type BatchEngine interface {
	Engine
	RecognizeBatch(ctx context.Context, inputs []Input) ([]Result, error)
}

// Prober reports whether an engine's external dependency is usable. Engines
// that cannot cheaply check availability may omit the interface.
type Prober interface {
	Probe(ctx context.Context) error
}

// Probe checks engine availability if the engine supports probing. A nil
// return means the engine either probed successfully or cannot be probed.
func Probe(ctx context.Context, engine Engine) error {
	if p, ok := engine.(Prober); ok {
		return p.Probe(ctx)
	}
	return nil
}

// Recognize runs the inputs through the engine, using batch recognition when
// the engine supports it.
func Recognize(ctx context.Context, engine Engine, inputs []Input) ([]Result, error) {
	if b, ok := engine.(BatchEngine); ok {
		return b.RecognizeBatch(ctx, inputs)
	}
	results := make([]Result, 0, len(inputs))
	for _, in := range inputs {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}
		res, err := engine.Recognize(ctx, in)
		if err != nil {
			return nil, err
		}
		results = append(results, res)
	}
	return results, nil
}
