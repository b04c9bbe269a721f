package redact

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"github.com/wudi/redactkit/grammar"
	"github.com/wudi/redactkit/ocr"
)

// fakeRasterizer serves a fixed-size white page for every render call.
type fakeRasterizer struct {
	pages        int
	countErr     error
	renderErr    error
	renderCalls  int
	renderedDPIs []int
}

func (f *fakeRasterizer) Name() string { return "fake" }

func (f *fakeRasterizer) PageCount(context.Context, string) (int, error) {
	if f.countErr != nil {
		return 0, f.countErr
	}
	return f.pages, nil
}

func (f *fakeRasterizer) Render(_ context.Context, _ string, _ int, dpi int) (image.Image, error) {
	if f.renderErr != nil {
		return nil, f.renderErr
	}
	f.renderCalls++
	f.renderedDPIs = append(f.renderedDPIs, dpi)
	img := image.NewNRGBA(image.Rect(0, 0, 400, 200))
	for y := 0; y < 200; y++ {
		for x := 0; x < 400; x++ {
			img.Set(x, y, color.White)
		}
	}
	return img, nil
}

// fakeEngine replays a scripted queue of token lists, one per Recognize call.
type fakeEngine struct {
	queue [][]ocr.Token
	calls int
}

func (f *fakeEngine) Name() string { return "fake" }

func (f *fakeEngine) Recognize(_ context.Context, _ ocr.Input) (ocr.Result, error) {
	f.calls++
	if len(f.queue) == 0 {
		return ocr.Result{}, nil
	}
	toks := f.queue[0]
	f.queue = f.queue[1:]
	return ocr.Result{Tokens: toks}, nil
}

func ssnTokens() []ocr.Token {
	return []ocr.Token{
		{Text: "SSN:", Bounds: ocr.Region{X: 20, Y: 50, Width: 40, Height: 12}},
		{Text: "123-45-6789", Bounds: ocr.Region{X: 68, Y: 50, Width: 110, Height: 12}},
	}
}

func cleanTokens() []ocr.Token {
	return []ocr.Token{
		{Text: "nothing", Bounds: ocr.Region{X: 20, Y: 50, Width: 70, Height: 12}},
		{Text: "here", Bounds: ocr.Region{X: 98, Y: 50, Width: 40, Height: 12}},
	}
}

func newTestController(t *testing.T, r *fakeRasterizer, e *fakeEngine, verify bool) *Controller {
	t.Helper()
	set, err := grammar.CompileSet([]string{`match = "123456789"`})
	if err != nil {
		t.Fatalf("CompileSet: %v", err)
	}
	return NewController(r, e, set, Options{DPI: 150, Verify: verify}, nil)
}

func outPath(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "out", "doc.pdf")
}

func TestProcessVerifiedSuccess(t *testing.T) {
	r := &fakeRasterizer{pages: 1}
	e := &fakeEngine{queue: [][]ocr.Token{ssnTokens(), cleanTokens()}}
	c := newTestController(t, r, e, true)

	out := c.Process(context.Background(), "in.pdf", outPath(t))
	if out.Err != nil {
		t.Fatalf("unexpected error: %v", out.Err)
	}
	if out.State != StateVerified || !out.Verified {
		t.Fatalf("expected VERIFIED, got %s verified=%v", out.State, out.Verified)
	}
	if out.Redactions != 1 || out.Leaked != 0 {
		t.Fatalf("unexpected counts: redactions=%d leaked=%d", out.Redactions, out.Leaked)
	}
	if out.RetriedDPI != 0 {
		t.Fatalf("no retry expected, got dpi %d", out.RetriedDPI)
	}
	if out.Category() != CategoryOK {
		t.Fatalf("unexpected category %v", out.Category())
	}
	if _, err := os.Stat(out.OutputPath); err != nil {
		t.Fatalf("output not written: %v", err)
	}
	// One recognition for the input pass, one for verification.
	if e.calls != 2 {
		t.Fatalf("expected 2 recognition calls, got %d", e.calls)
	}
}

func TestProcessLeakDetected(t *testing.T) {
	r := &fakeRasterizer{pages: 1}
	e := &fakeEngine{queue: [][]ocr.Token{ssnTokens(), ssnTokens()}}
	c := newTestController(t, r, e, true)

	out := c.Process(context.Background(), "in.pdf", outPath(t))
	if out.State != StateLeakDetected {
		t.Fatalf("expected LEAK_DETECTED, got %s", out.State)
	}
	if out.Leaked != 1 {
		t.Fatalf("expected 1 leaked span, got %d", out.Leaked)
	}
	if out.Category() != CategoryLeak {
		t.Fatalf("leak must classify as CategoryLeak")
	}
}

func TestProcessNoMatchRetriesOnce(t *testing.T) {
	r := &fakeRasterizer{pages: 1}
	e := &fakeEngine{queue: [][]ocr.Token{cleanTokens(), cleanTokens()}}
	c := newTestController(t, r, e, true)

	out := c.Process(context.Background(), "in.pdf", outPath(t))
	if out.Err != nil {
		t.Fatalf("unexpected error: %v", out.Err)
	}
	if out.State != StateNoMatch {
		t.Fatalf("expected NO_MATCH, got %s", out.State)
	}
	if out.RetriedDPI != 300 {
		t.Fatalf("expected retry at 300 DPI, got %d", out.RetriedDPI)
	}
	// First pass plus exactly one retry; no verification on a no-match.
	if e.calls != 2 {
		t.Fatalf("expected 2 recognition calls, got %d", e.calls)
	}
	if r.renderedDPIs[0] != 150 || r.renderedDPIs[1] != 300 {
		t.Fatalf("unexpected render DPIs %v", r.renderedDPIs)
	}
	if out.Category() != CategoryNoMatch {
		t.Fatalf("unexpected category %v", out.Category())
	}
	if _, err := os.Stat(out.OutputPath); err != nil {
		t.Fatalf("zero-redaction output should still be written: %v", err)
	}
}

func TestProcessBlankPageRetriesOnceNotForever(t *testing.T) {
	r := &fakeRasterizer{pages: 1}
	e := &fakeEngine{} // empty queue: every page recognizes zero tokens
	c := newTestController(t, r, e, true)

	out := c.Process(context.Background(), "in.pdf", outPath(t))
	if out.State != StateNoMatch {
		t.Fatalf("expected NO_MATCH for blank page, got %s", out.State)
	}
	if e.calls != 2 {
		t.Fatalf("blank page should retry exactly once, got %d calls", e.calls)
	}
}

func TestProcessSkipVerification(t *testing.T) {
	r := &fakeRasterizer{pages: 1}
	e := &fakeEngine{queue: [][]ocr.Token{ssnTokens()}}
	c := newTestController(t, r, e, false)

	out := c.Process(context.Background(), "in.pdf", outPath(t))
	if out.State != StateReassembled || out.Verified {
		t.Fatalf("expected unverified REASSEMBLED, got %s verified=%v", out.State, out.Verified)
	}
	if e.calls != 1 {
		t.Fatalf("verification disabled: expected 1 recognition call, got %d", e.calls)
	}
	if out.Category() != CategoryOK {
		t.Fatalf("unverified success should classify OK")
	}
}

func TestProcessIOError(t *testing.T) {
	r := &fakeRasterizer{countErr: errors.New("unreadable")}
	c := newTestController(t, r, &fakeEngine{}, true)

	out := c.Process(context.Background(), "missing.pdf", outPath(t))
	if out.Err == nil {
		t.Fatalf("expected error outcome")
	}
	if out.Category() != CategoryIO {
		t.Fatalf("expected CategoryIO, got %v", out.Category())
	}
}

func TestProcessMultiPage(t *testing.T) {
	r := &fakeRasterizer{pages: 2}
	e := &fakeEngine{queue: [][]ocr.Token{
		cleanTokens(), ssnTokens(), // input pass, pages 0 and 1
		cleanTokens(), cleanTokens(), // verification pass
	}}
	c := newTestController(t, r, e, true)

	out := c.Process(context.Background(), "in.pdf", outPath(t))
	if out.Err != nil {
		t.Fatalf("unexpected error: %v", out.Err)
	}
	if out.State != StateVerified || out.Redactions != 1 {
		t.Fatalf("expected verified single redaction, got %s/%d", out.State, out.Redactions)
	}
	if e.calls != 4 {
		t.Fatalf("expected 4 recognition calls, got %d", e.calls)
	}
}

func TestScanCountsSpans(t *testing.T) {
	r := &fakeRasterizer{pages: 1}
	e := &fakeEngine{queue: [][]ocr.Token{ssnTokens()}}
	c := newTestController(t, r, e, true)

	n, err := c.Scan(context.Background(), "doc.pdf", 150)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 span, got %d", n)
	}
}

func TestVerificationConsistency(t *testing.T) {
	// If the controller reports VERIFIED, scanning the output with the same
	// grammar finds zero spans; if it reports LEAK_DETECTED, at least one.
	for _, leak := range []bool{false, true} {
		t.Run(fmt.Sprintf("leak=%v", leak), func(t *testing.T) {
			verifyTokens := cleanTokens()
			if leak {
				verifyTokens = ssnTokens()
			}
			r := &fakeRasterizer{pages: 1}
			e := &fakeEngine{queue: [][]ocr.Token{ssnTokens(), verifyTokens}}
			c := newTestController(t, r, e, true)

			out := c.Process(context.Background(), "in.pdf", outPath(t))
			if leak && (out.State != StateLeakDetected || out.Leaked == 0) {
				t.Fatalf("expected leak, got %s leaked=%d", out.State, out.Leaked)
			}
			if !leak && (out.State != StateVerified || out.Leaked != 0) {
				t.Fatalf("expected clean verification, got %s leaked=%d", out.State, out.Leaked)
			}
		})
	}
}
