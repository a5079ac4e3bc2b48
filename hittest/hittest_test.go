package hittest

import (
	"math"
	"sync"
	"testing"

	"github.com/Oriol-1/modificador-pdf/coords"
	"github.com/Oriol-1/modificador-pdf/layout"
	"github.com/Oriol-1/modificador-pdf/model"
)

func buildPage(t *testing.T) (*model.PageSpans, []model.TextLine) {
	t.Helper()
	page := &model.PageSpans{PageIndex: 0}
	add := func(text string, x, y, size float64) {
		widths := make([]float64, 0, len(text))
		for range text {
			widths = append(widths, 0.5*size)
		}
		s := model.TextSpanMetrics{
			ID:              model.NewSpanID(0, len(page.Spans)),
			Text:            text,
			FontName:        "Helvetica",
			FontFamily:      "Helvetica",
			FontSize:        size,
			CTM:             coords.Identity(),
			TextMatrix:      coords.Translate(x, y),
			HorizontalScale: 100,
			GlyphWidths:     widths,
			Confidence:      1,
		}
		s.DeriveBBox()
		page.Append(s)
	}
	// One line with an inter-span gap, one line below it.
	add("left", 100, 700, 12)  // x 100..124
	add("right", 160, 700, 12) // x 160..190
	add("below", 100, 660, 12)
	lines := layout.NewAggregator(layout.Config{}).Lines(page)
	return page, lines
}

func newTester(t *testing.T) *Tester {
	t.Helper()
	page, lines := buildPage(t)
	tester := NewTester(nil)
	tester.Rebuild(page, lines)
	return tester
}

func TestHitCharacter(t *testing.T) {
	tester := newTester(t)
	// Third glyph of "left": x in [112, 118), hit it 25% in.
	hit := tester.HitTest(coords.Point{X: 113.5, Y: 700})
	if hit.Kind != HitCharacter {
		t.Fatalf("kind = %v", hit.Kind)
	}
	if hit.SpanID != "span-0-0" {
		t.Errorf("span = %q", hit.SpanID)
	}
	if hit.CharIndex != 2 {
		t.Errorf("charIndex = %d", hit.CharIndex)
	}
	if math.Abs(hit.CharFrac-0.25) > 1e-9 {
		t.Errorf("charFrac = %g", hit.CharFrac)
	}
	if hit.LineID == "" {
		t.Errorf("line not resolved")
	}
}

func TestHitInterSpanGap(t *testing.T) {
	tester := newTester(t)
	hit := tester.HitTest(coords.Point{X: 140, Y: 700})
	if hit.Kind != HitInterSpanGap {
		t.Fatalf("kind = %v", hit.Kind)
	}
	if hit.Before != "span-0-0" || hit.After != "span-0-1" {
		t.Errorf("neighbors = %q / %q", hit.Before, hit.After)
	}
}

func TestHitNone(t *testing.T) {
	tester := newTester(t)
	if hit := tester.HitTest(coords.Point{X: 400, Y: 400}); hit.Kind != HitNone {
		t.Errorf("kind = %v", hit.Kind)
	}
	// Vertically between the lines.
	if hit := tester.HitTest(coords.Point{X: 110, Y: 680}); hit.Kind != HitNone {
		t.Errorf("between lines kind = %v", hit.Kind)
	}
}

func TestSpansInRect(t *testing.T) {
	tester := newTester(t)
	got := tester.SpansInRect(coords.Rect{LLX: 90, LLY: 690, URX: 200, URY: 712})
	if len(got) != 2 {
		t.Fatalf("got %v", got)
	}
	if got[0] != "span-0-0" || got[1] != "span-0-1" {
		t.Errorf("order = %v", got)
	}
	got = tester.SpansInRect(coords.Rect{LLX: 0, LLY: 0, URX: 1000, URY: 1000})
	if len(got) != 3 {
		t.Errorf("full page query = %v", got)
	}
}

func TestEmptyTester(t *testing.T) {
	tester := NewTester(nil)
	if hit := tester.HitTest(coords.Point{X: 10, Y: 10}); hit.Kind != HitNone {
		t.Errorf("kind = %v", hit.Kind)
	}
	if got := tester.SpansInRect(coords.Rect{URX: 100, URY: 100}); got != nil {
		t.Errorf("spans = %v", got)
	}
}

func TestNearestSpan(t *testing.T) {
	tester := newTester(t)
	id, ok := tester.NearestSpan(coords.Point{X: 130, Y: 705})
	if !ok || id != "span-0-0" {
		t.Errorf("nearest = %q, %v", id, ok)
	}
	id, ok = tester.NearestSpan(coords.Point{X: 110, Y: 600})
	if !ok || id != "span-0-2" {
		t.Errorf("nearest below = %q, %v", id, ok)
	}
	if _, ok := NewTester(nil).NearestSpan(coords.Point{}); ok {
		t.Errorf("empty tester returned a span")
	}
}

func TestRebuildSwapsAtomically(t *testing.T) {
	tester := newTester(t)
	page, lines := buildPage(t)

	var wg sync.WaitGroup
	stop := make(chan struct{})
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-stop:
				return
			default:
			}
			hit := tester.HitTest(coords.Point{X: 113.5, Y: 700})
			// Every generation of the index contains this span; a lookup
			// observing anything else saw a torn snapshot.
			if hit.Kind != HitCharacter {
				t.Errorf("kind = %v during rebuild", hit.Kind)
				return
			}
		}
	}()
	for i := 0; i < 200; i++ {
		tester.Rebuild(page, lines)
	}
	close(stop)
	wg.Wait()
}

func TestQuadTreeCoincidentDegenerateBoxes(t *testing.T) {
	tree := newQuadTree(coords.Rect{URX: 1000, URY: 1000}, 4)
	// Zero-area boxes stacked on one point can never be separated by
	// subdividing; insertion must still terminate and keep them all.
	box := coords.Rect{LLX: 50, LLY: 50, URX: 50, URY: 50}
	for i := 0; i < 64; i++ {
		if !tree.insert(box, i) {
			t.Fatalf("insert %d refused", i)
		}
	}
	got := tree.query(coords.Rect{LLX: 40, LLY: 40, URX: 60, URY: 60})
	if len(got) != 64 {
		t.Fatalf("query returned %d of 64 entries", len(got))
	}
	seen := make(map[int]bool, len(got))
	for _, idx := range got {
		seen[idx] = true
	}
	for i := 0; i < 64; i++ {
		if !seen[i] {
			t.Errorf("entry %d lost", i)
		}
	}
}

func TestQuadTreeSubdivision(t *testing.T) {
	tree := newQuadTree(coords.Rect{URX: 1000, URY: 1000}, 4)
	// Enough entries to force several splits.
	for i := 0; i < 64; i++ {
		x := float64((i % 8) * 120)
		y := float64((i / 8) * 120)
		tree.insert(coords.Rect{LLX: x, LLY: y, URX: x + 10, URY: y + 10}, i)
	}
	got := tree.query(coords.Rect{LLX: 0, LLY: 0, URX: 130, URY: 130})
	want := map[int]bool{0: true, 1: true, 8: true, 9: true}
	if len(got) != len(want) {
		t.Fatalf("query = %v", got)
	}
	for _, idx := range got {
		if !want[idx] {
			t.Errorf("unexpected index %d", idx)
		}
	}
}
