// Package assemble writes redacted page images into an image-only PDF: one
// DCT-encoded image XObject per page, no text layer, no fonts. The output
// carries nothing recoverable beyond the pixels.
package assemble

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	"io"
	"os"
	"path/filepath"

	xdraw "golang.org/x/image/draw"
)

// Page is one rendered (and possibly redacted) page image together with the
// DPI it was rasterized at.
type Page struct {
	Image image.Image
	DPI   int
}

// Options controls assembly.
type Options struct {
	// BaseDPI sets the output resolution. Pages rasterized above it (the
	// escalated-DPI retry path renders at 2x) are downscaled back so the
	// output size does not depend on whether a retry happened. Zero means
	// keep every page at its own DPI.
	BaseDPI int
	// JPEGQuality in [1,100]; zero selects the default.
	JPEGQuality int
}

const defaultJPEGQuality = 85

// WriteFile assembles pages into a PDF at path, creating parent directories
// as needed.
func WriteFile(path string, pages []Page, opts Options) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create output directory: %w", err)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create output: %w", err)
	}
	if err := Write(f, pages, opts); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close output: %w", err)
	}
	return nil
}

// Write assembles pages into a PDF on w.
func Write(w io.Writer, pages []Page, opts Options) error {
	if len(pages) == 0 {
		return fmt.Errorf("assemble: no pages")
	}
	quality := opts.JPEGQuality
	if quality <= 0 {
		quality = defaultJPEGQuality
	}

	pw := &pdfWriter{w: w}
	pw.header()

	// Object layout: 1 catalog, 2 page tree, then (page, contents, image)
	// triples. Deterministic numbering keeps the xref trivial.
	numPages := len(pages)
	pageRef := func(i int) int { return 3 + i*3 }
	contentsRef := func(i int) int { return 4 + i*3 }
	imageRef := func(i int) int { return 5 + i*3 }

	pw.beginObj(1)
	pw.printf("<< /Type /Catalog /Pages 2 0 R >>")
	pw.endObj()

	pw.beginObj(2)
	pw.printf("<< /Type /Pages /Count %d /Kids [", numPages)
	for i := range pages {
		pw.printf(" %d 0 R", pageRef(i))
	}
	pw.printf(" ] >>")
	pw.endObj()

	for i, page := range pages {
		img, dpi := normalizePage(page, opts.BaseDPI)
		b := img.Bounds()
		ptW := float64(b.Dx()) * 72 / float64(dpi)
		ptH := float64(b.Dy()) * 72 / float64(dpi)

		pw.beginObj(pageRef(i))
		pw.printf("<< /Type /Page /Parent 2 0 R /MediaBox [0 0 %.2f %.2f] /Contents %d 0 R /Resources << /XObject << /Im0 %d 0 R >> >> >>",
			ptW, ptH, contentsRef(i), imageRef(i))
		pw.endObj()

		content := fmt.Sprintf("q\n%.2f 0 0 %.2f 0 0 cm\n/Im0 Do\nQ\n", ptW, ptH)
		pw.beginObj(contentsRef(i))
		pw.printf("<< /Length %d >>\nstream\n%s\nendstream", len(content), content)
		pw.endObj()

		var jpg bytes.Buffer
		if err := jpeg.Encode(&jpg, img, &jpeg.Options{Quality: quality}); err != nil {
			return fmt.Errorf("encode page %d: %w", i, err)
		}
		pw.beginObj(imageRef(i))
		pw.printf("<< /Type /XObject /Subtype /Image /Width %d /Height %d /ColorSpace /DeviceRGB /BitsPerComponent 8 /Filter /DCTDecode /Length %d >>\nstream\n",
			b.Dx(), b.Dy(), jpg.Len())
		pw.write(jpg.Bytes())
		pw.printf("\nendstream")
		pw.endObj()
	}

	pw.trailer(2 + numPages*3)
	return pw.err
}

// normalizePage downscales a page rasterized above the base DPI back to it.
func normalizePage(page Page, baseDPI int) (image.Image, int) {
	dpi := page.DPI
	if dpi <= 0 {
		dpi = 72
	}
	if baseDPI <= 0 || dpi <= baseDPI {
		return page.Image, dpi
	}
	b := page.Image.Bounds()
	scale := float64(baseDPI) / float64(dpi)
	dst := image.NewNRGBA(image.Rect(0, 0,
		int(float64(b.Dx())*scale+0.5),
		int(float64(b.Dy())*scale+0.5)))
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), page.Image, b, xdraw.Src, nil)
	return dst, baseDPI
}

// pdfWriter tracks byte offsets while emitting objects so the xref table can
// be written in one pass.
type pdfWriter struct {
	w       io.Writer
	off     int64
	offsets []int64
	cur     int
	err     error
}

func (p *pdfWriter) write(b []byte) {
	if p.err != nil {
		return
	}
	n, err := p.w.Write(b)
	p.off += int64(n)
	p.err = err
}

func (p *pdfWriter) printf(format string, args ...interface{}) {
	p.write([]byte(fmt.Sprintf(format, args...)))
}

func (p *pdfWriter) header() {
	// The binary comment line marks the file as non-ASCII per convention.
	p.printf("%%PDF-1.7\n%%\xe2\xe3\xcf\xd3\n")
}

func (p *pdfWriter) beginObj(num int) {
	for len(p.offsets) < num {
		p.offsets = append(p.offsets, 0)
	}
	p.offsets[num-1] = p.off
	p.cur = num
	p.printf("%d 0 obj\n", num)
}

func (p *pdfWriter) endObj() {
	p.printf("\nendobj\n")
}

func (p *pdfWriter) trailer(lastObj int) {
	xrefOff := p.off
	p.printf("xref\n0 %d\n", lastObj+1)
	p.printf("0000000000 65535 f \n")
	for i := 0; i < lastObj; i++ {
		var off int64
		if i < len(p.offsets) {
			off = p.offsets[i]
		}
		p.printf("%010d 00000 n \n", off)
	}
	p.printf("trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", lastObj+1, xrefOff)
}
