// Package poppler implements raster.Rasterizer by shelling out to the
// poppler-utils binaries (pdftoppm and pdfinfo). Like the Tesseract OCR
// engine, it requires the tools to be installed on the host.
package poppler

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"os/exec"
	"strconv"
	"strings"

	"github.com/wudi/redactkit/raster"
)

// Backend renders pages with pdftoppm and reads page counts with pdfinfo.
type Backend struct {
	PdftoppmPath string
	PdfinfoPath  string
}

// New constructs a backend using the tools from $PATH.
func New() *Backend {
	return &Backend{PdftoppmPath: "pdftoppm", PdfinfoPath: "pdfinfo"}
}

func (b *Backend) Name() string { return "poppler" }

// Probe verifies both poppler tools resolve on the host.
func (b *Backend) Probe(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}
	for _, tool := range []string{b.PdftoppmPath, b.PdfinfoPath} {
		if _, err := exec.LookPath(tool); err != nil {
			return fmt.Errorf("%w: %s not found (install poppler-utils)", raster.ErrUnavailable, tool)
		}
	}
	return nil
}

// PageCount parses the Pages field from pdfinfo output.
func (b *Backend) PageCount(ctx context.Context, path string) (int, error) {
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, b.PdfinfoPath, path)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return 0, fmt.Errorf("pdfinfo %s: %w: %s", path, err, strings.TrimSpace(stderr.String()))
	}
	for _, line := range strings.Split(stdout.String(), "\n") {
		if !strings.HasPrefix(line, "Pages:") {
			continue
		}
		n, err := strconv.Atoi(strings.TrimSpace(strings.TrimPrefix(line, "Pages:")))
		if err != nil {
			return 0, fmt.Errorf("pdfinfo %s: bad page count %q", path, line)
		}
		return n, nil
	}
	return 0, fmt.Errorf("pdfinfo %s: no Pages field in output", path)
}

// Render rasterizes one zero-based page at the given DPI. pdftoppm writes the
// PNG to stdout when the output root is "-".
func (b *Backend) Render(ctx context.Context, path string, page int, dpi int) (image.Image, error) {
	pageArg := strconv.Itoa(page + 1)
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, b.PdftoppmPath,
		"-png",
		"-r", strconv.Itoa(dpi),
		"-f", pageArg,
		"-l", pageArg,
		path, "-")
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("pdftoppm %s page %d: %w: %s", path, page, err, strings.TrimSpace(stderr.String()))
	}
	img, err := png.Decode(&stdout)
	if err != nil {
		return nil, fmt.Errorf("decode pdftoppm output for %s page %d: %w", path, page, err)
	}
	return img, nil
}
