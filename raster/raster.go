// Package raster defines the page rasterization contract and the opaque
// rectangle renderer. Rasterizer backends live in subpackages (the default is
// poppler's pdftoppm); the renderer works on decoded images directly.
package raster

import (
	"context"
	"errors"
	"image"
	"image/color"
	"image/draw"
)

// ErrUnavailable is returned by Probe when the rasterizer's backing tool is
// missing. Surfaces before any document work starts.
var ErrUnavailable = errors.New("raster: backend unavailable")

// Rasterizer renders document pages to images at a requested resolution. The
// controller may render the same page twice, at an escalated DPI, on the
// no-match retry path.
type Rasterizer interface {
	Name() string
	PageCount(ctx context.Context, path string) (int, error)
	Render(ctx context.Context, path string, page int, dpi int) (image.Image, error)
}

// Prober reports whether a backend's external dependency is usable.
type Prober interface {
	Probe(ctx context.Context) error
}

// Probe checks backend availability if the backend supports probing.
func Probe(ctx context.Context, r Rasterizer) error {
	if p, ok := r.(Prober); ok {
		return p.Probe(ctx)
	}
	return nil
}

var opaqueBlack = image.NewUniform(color.Black)

// FillRects returns a copy of img with the given rectangles painted opaque
// black. Rectangles are clamped to the image bounds; empty rectangles are
// skipped. The input image is not mutated.
func FillRects(img image.Image, rects []image.Rectangle) image.Image {
	bounds := img.Bounds()
	out := image.NewNRGBA(bounds)
	draw.Draw(out, bounds, img, bounds.Min, draw.Src)
	for _, r := range rects {
		clamped := r.Intersect(bounds)
		if clamped.Empty() {
			continue
		}
		draw.Draw(out, clamped, opaqueBlack, image.Point{}, draw.Src)
	}
	return out
}
