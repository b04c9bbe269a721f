package geometry

import (
	"image"
	"testing"

	"github.com/wudi/redactkit/grammar"
	"github.com/wudi/redactkit/ocr"
	"github.com/wudi/redactkit/stream"
)

// row builds one line of tokens with increasing x coordinates.
func row(page int, y float64, texts ...string) []ocr.Token {
	out := make([]ocr.Token, len(texts))
	x := 100.0
	for i, txt := range texts {
		w := float64(10 * len(txt))
		out[i] = ocr.Token{
			Text:   txt,
			Bounds: ocr.Region{X: x, Y: y, Width: w, Height: 12},
			Page:   page,
		}
		x += w + 8
	}
	return out
}

func TestMapMergesSameLineTokens(t *testing.T) {
	tokens := row(0, 200, "123", "-", "45", "-", "6789")
	n := stream.Build(tokens)
	if n.Text() != "123456789" {
		t.Fatalf("unexpected stream %q", n.Text())
	}

	m := NewMapper(DefaultOptions(), nil)
	boxes := m.Map(grammar.Span{Start: 0, End: 9}, n, tokens)
	if len(boxes) != 1 {
		t.Fatalf("expected one merged box, got %+v", boxes)
	}

	got := boxes[0].Rect
	wantMinX := int(tokens[0].Bounds.X) - 4
	wantMaxX := int(tokens[4].Bounds.Right()) + 4
	if got.Min.X != wantMinX || got.Max.X != wantMaxX {
		t.Fatalf("box x extent %v, want [%d,%d]", got, wantMinX, wantMaxX)
	}
	if got.Min.Y != 196 || got.Max.Y != 216 {
		t.Fatalf("box y extent %v, want [196,216]", got)
	}
	if boxes[0].Page != 0 {
		t.Fatalf("unexpected page %d", boxes[0].Page)
	}
}

func TestMapSplitsOnLineWrap(t *testing.T) {
	line1 := row(0, 100, "JOHN")
	line2 := row(0, 160, "DOE")
	tokens := append(line1, line2...)
	n := stream.Build(tokens)

	m := NewMapper(DefaultOptions(), nil)
	boxes := m.Map(grammar.Span{Start: 0, End: n.Len()}, n, tokens)
	if len(boxes) != 2 {
		t.Fatalf("line wrap should split into two boxes, got %+v", boxes)
	}
	if boxes[0].Rect.Max.Y > boxes[1].Rect.Min.Y {
		t.Fatalf("boxes should be vertically disjoint: %+v", boxes)
	}
}

func TestMapSplitsOnPageChange(t *testing.T) {
	p0 := row(0, 700, "JANE")
	p1 := row(1, 700, "ROE")
	tokens := append(p0, p1...)
	n := stream.Build(tokens)

	m := NewMapper(DefaultOptions(), nil)
	boxes := m.Map(grammar.Span{Start: 0, End: n.Len()}, n, tokens)
	if len(boxes) != 2 {
		t.Fatalf("page change should split boxes, got %+v", boxes)
	}
	if boxes[0].Page != 0 || boxes[1].Page != 1 {
		t.Fatalf("boxes tagged with wrong pages: %+v", boxes)
	}
}

func TestMapSplitsOnWideGap(t *testing.T) {
	tokens := row(0, 50, "123")
	far := ocr.Token{
		Text:   "456",
		Bounds: ocr.Region{X: tokens[0].Bounds.Right() + 300, Y: 50, Width: 30, Height: 12},
		Page:   0,
	}
	tokens = append(tokens, far)
	n := stream.Build(tokens)

	m := NewMapper(DefaultOptions(), nil)
	boxes := m.Map(grammar.Span{Start: 0, End: n.Len()}, n, tokens)
	if len(boxes) != 2 {
		t.Fatalf("wide gap should split boxes, got %+v", boxes)
	}
}

func TestMapWholeTokenCover(t *testing.T) {
	// The span covers only the digits inside "ACCT1234", but the emitted box
	// must cover the entire token.
	tokens := row(0, 80, "ACCT1234")
	n := stream.Build(tokens)

	m := NewMapper(DefaultOptions(), nil)
	boxes := m.Map(grammar.Span{Start: 4, End: 8}, n, tokens)
	if len(boxes) != 1 {
		t.Fatalf("expected one box, got %+v", boxes)
	}
	if boxes[0].Rect.Min.X > int(tokens[0].Bounds.X) {
		t.Fatalf("box must cover the whole token: %v vs token at %v", boxes[0].Rect, tokens[0].Bounds.X)
	}
}

func TestMapSkipsDegenerateBoxes(t *testing.T) {
	tokens := []ocr.Token{
		{Text: "123", Bounds: ocr.Region{X: 10, Y: 10, Width: 30, Height: 12}},
		{Text: "45", Bounds: ocr.Region{X: 44, Y: 10, Width: 0, Height: 0}}, // degenerate
		{Text: "6789", Bounds: ocr.Region{X: 70, Y: 10, Width: 40, Height: 12}},
	}
	n := stream.Build(tokens)

	m := NewMapper(DefaultOptions(), nil)
	boxes := m.Map(grammar.Span{Start: 0, End: n.Len()}, n, tokens)
	if len(boxes) == 0 {
		t.Fatalf("degenerate token must not drop the whole span")
	}
	for _, b := range boxes {
		if b.Rect.Empty() {
			t.Fatalf("emitted empty rectangle: %+v", b)
		}
	}
}

func TestMapRedactionMonotonicity(t *testing.T) {
	tokens := row(0, 40, "SSN", "123-45-6789", "end")
	n := stream.Build(tokens)
	span := grammar.Span{Start: 3, End: 12} // the digits

	m := NewMapper(DefaultOptions(), nil)
	boxes := m.Map(span, n, tokens)
	if len(boxes) == 0 {
		t.Fatalf("non-empty span must produce boxes")
	}
	// Every character in the span maps to a token whose box is inside the
	// union of emitted rectangles.
	for off := span.Start; off < span.End; off++ {
		o, _ := n.Origin(off)
		tok := tokens[o.Token]
		covered := false
		for _, b := range boxes {
			r := image.Rect(int(tok.Bounds.X), int(tok.Bounds.Y), int(tok.Bounds.Right()), int(tok.Bounds.Bottom()))
			if r.In(b.Rect) {
				covered = true
				break
			}
		}
		if !covered {
			t.Fatalf("offset %d (token %d) not covered by any box", off, o.Token)
		}
	}
}

func TestMapAllGroupsByPage(t *testing.T) {
	p0 := row(0, 10, "111")
	p1 := row(1, 10, "222")
	tokens := append(p0, p1...)
	n := stream.Build(tokens)

	m := NewMapper(DefaultOptions(), nil)
	byPage := m.MapAll([]grammar.Span{{Start: 0, End: 3}, {Start: 3, End: 6}}, n, tokens)
	if len(byPage[0]) != 1 || len(byPage[1]) != 1 {
		t.Fatalf("expected one box per page, got %+v", byPage)
	}
}

func TestMapEmptySpan(t *testing.T) {
	tokens := row(0, 10, "abc")
	n := stream.Build(tokens)
	m := NewMapper(DefaultOptions(), nil)
	if boxes := m.Map(grammar.Span{Start: 2, End: 2}, n, tokens); boxes != nil {
		t.Fatalf("empty span should yield no boxes, got %+v", boxes)
	}
}
