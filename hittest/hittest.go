// Package hittest answers the question behind every interactive edit:
// what sits at this point on the page. Lookups run against an immutable
// snapshot that is rebuilt after each committed edit and swapped in
// atomically, so concurrent readers always see a coherent page, never a
// half-updated one.
package hittest

import (
	"sort"
	"sync/atomic"
	"time"

	"github.com/Oriol-1/modificador-pdf/coords"
	"github.com/Oriol-1/modificador-pdf/model"
	"github.com/Oriol-1/modificador-pdf/observability"
)

// Kind classifies what a point landed on.
type Kind int

const (
	// HitNone means empty page area.
	HitNone Kind = iota
	// HitSpan means inside a span's box but outside any measurable glyph.
	HitSpan
	// HitCharacter means a specific glyph of a span.
	HitCharacter
	// HitInterSpanGap means the whitespace between two spans on one line.
	HitInterSpanGap
	// HitLine means inside a line's box but outside all of its spans.
	HitLine
)

func (k Kind) String() string {
	switch k {
	case HitSpan:
		return "span"
	case HitCharacter:
		return "character"
	case HitInterSpanGap:
		return "inter-span-gap"
	case HitLine:
		return "line"
	default:
		return "none"
	}
}

// Hit is the result of a point lookup.
type Hit struct {
	Kind   Kind
	SpanID model.SpanID
	LineID model.LineID

	// CharIndex and CharFrac locate the glyph under the point for
	// HitCharacter: the rune index and the horizontal fraction consumed
	// within that glyph.
	CharIndex int
	CharFrac  float64

	// Before and After name the neighbors of an inter-span gap.
	Before model.SpanID
	After  model.SpanID
}

// snapshot is one immutable generation of the index.
type snapshot struct {
	page  *model.PageSpans
	lines []model.TextLine
	tree  *quadTree
}

// Tester is the concurrent-safe hit tester for one page.
type Tester struct {
	log  observability.Logger
	snap atomic.Pointer[snapshot]
}

// NewTester returns an empty tester; Rebuild installs the first snapshot.
func NewTester(log observability.Logger) *Tester {
	if log == nil {
		log = observability.NopLogger{}
	}
	return &Tester{log: log}
}

// Rebuild constructs a fresh index over the given parse and layout
// results and swaps it in. In-flight lookups finish against the previous
// snapshot.
func (t *Tester) Rebuild(page *model.PageSpans, lines []model.TextLine) {
	start := time.Now()
	snap := &snapshot{page: page, lines: lines}
	if page != nil && len(page.Spans) > 0 {
		bounds := page.Spans[0].BBox
		for i := range page.Spans {
			bounds = bounds.Union(page.Spans[i].BBox)
		}
		snap.tree = newQuadTree(bounds, 10)
		for i := range page.Spans {
			snap.tree.insert(page.Spans[i].BBox, i)
		}
	}
	t.snap.Store(snap)
	t.log.Debug("hit index rebuilt",
		observability.Int("spans", len(pageSpans(page))),
		observability.Int("lines", len(lines)),
		observability.Float64(observability.MetricIndexBuild, time.Since(start).Seconds()))
}

func pageSpans(page *model.PageSpans) []model.TextSpanMetrics {
	if page == nil {
		return nil
	}
	return page.Spans
}

// HitTest classifies the content under the device-space point p.
func (t *Tester) HitTest(p coords.Point) Hit {
	snap := t.snap.Load()
	if snap == nil || snap.page == nil {
		return Hit{Kind: HitNone}
	}

	if s := snap.spanAt(p); s != nil {
		hit := Hit{Kind: HitSpan, SpanID: s.ID, LineID: snap.lineOf(s.ID)}
		if idx, frac, ok := glyphUnder(s, p); ok {
			hit.Kind = HitCharacter
			hit.CharIndex = idx
			hit.CharFrac = frac
		}
		return hit
	}

	for li := range snap.lines {
		line := &snap.lines[li]
		if !line.BBox.Contains(p) {
			continue
		}
		if before, after, ok := snap.gapAt(line, p); ok {
			return Hit{
				Kind:   HitInterSpanGap,
				LineID: line.ID,
				Before: before,
				After:  after,
			}
		}
		return Hit{Kind: HitLine, LineID: line.ID}
	}
	return Hit{Kind: HitNone}
}

// SpansInRect returns the ids of all spans whose box intersects r, in
// page emission order.
func (t *Tester) SpansInRect(r coords.Rect) []model.SpanID {
	snap := t.snap.Load()
	if snap == nil || snap.tree == nil {
		return nil
	}
	idxs := snap.tree.query(r)
	sort.Ints(idxs)
	out := make([]model.SpanID, 0, len(idxs))
	for _, i := range idxs {
		out = append(out, snap.page.Spans[i].ID)
	}
	return out
}

// NearestSpan returns the span whose box center is closest to p, and
// false on an empty page.
func (t *Tester) NearestSpan(p coords.Point) (model.SpanID, bool) {
	snap := t.snap.Load()
	if snap == nil || snap.page == nil || len(snap.page.Spans) == 0 {
		return "", false
	}
	var best model.SpanID
	bestD := 0.0
	for i := range snap.page.Spans {
		s := &snap.page.Spans[i]
		c := s.BBox.Center()
		dx, dy := c.X-p.X, c.Y-p.Y
		d := dx*dx + dy*dy
		if i == 0 || d < bestD {
			best, bestD = s.ID, d
		}
	}
	return best, true
}

func (s *snapshot) spanAt(p coords.Point) *model.TextSpanMetrics {
	if s.tree == nil {
		return nil
	}
	probe := coords.Rect{LLX: p.X, LLY: p.Y, URX: p.X, URY: p.Y}
	idxs := s.tree.query(probe)
	sort.Ints(idxs)
	// Later spans paint above earlier ones; prefer the topmost.
	for i := len(idxs) - 1; i >= 0; i-- {
		cand := &s.page.Spans[idxs[i]]
		if cand.BBox.Contains(p) {
			return cand
		}
	}
	return nil
}

func (s *snapshot) lineOf(id model.SpanID) model.LineID {
	for i := range s.lines {
		for _, sid := range s.lines[i].SpanIDs {
			if sid == id {
				return s.lines[i].ID
			}
		}
	}
	return ""
}

// gapAt reports the neighboring spans when p falls in the horizontal gap
// between two consecutive spans of the line.
func (s *snapshot) gapAt(line *model.TextLine, p coords.Point) (before, after model.SpanID, ok bool) {
	spans := line.Spans(s.page)
	for i := 0; i+1 < len(spans); i++ {
		left, right := spans[i], spans[i+1]
		if p.X >= left.BBox.URX && p.X <= right.BBox.LLX {
			return left.ID, right.ID, true
		}
	}
	return "", "", false
}

// glyphUnder maps a device point into the span's text space and
// interpolates the glyph under it.
func glyphUnder(s *model.TextSpanMetrics, p coords.Point) (index int, frac float64, ok bool) {
	trm := s.TextMatrix.Mul(s.CTM)
	inv, err := trm.Inverse()
	if err != nil {
		return 0, 0, false
	}
	local := inv.Transform(p)
	idx, f := s.GlyphAt(local.X)
	if idx < 0 {
		return 0, 0, false
	}
	return idx, f, true
}
