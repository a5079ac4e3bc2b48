package layout

import (
	"math"
	"testing"

	"github.com/Oriol-1/modificador-pdf/coords"
	"github.com/Oriol-1/modificador-pdf/model"
)

// addSpan appends a span at (x, y) with uniform half-em advances.
func addSpan(page *model.PageSpans, text string, x, y, size float64) model.SpanID {
	widths := make([]float64, 0, len(text))
	for range text {
		widths = append(widths, 0.5*size)
	}
	return addSpanWidths(page, text, x, y, size, widths)
}

func addSpanWidths(page *model.PageSpans, text string, x, y, size float64, widths []float64) model.SpanID {
	s := model.TextSpanMetrics{
		ID:              model.NewSpanID(page.PageIndex, len(page.Spans)),
		Text:            text,
		PageIndex:       page.PageIndex,
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
	return s.ID
}

func TestLinesGroupByBaselineTolerance(t *testing.T) {
	page := &model.PageSpans{PageIndex: 0}
	addSpan(page, "first", 72, 100.0, 12)
	addSpan(page, "wobble", 140, 100.3, 12)
	addSpan(page, "second", 72, 105.0, 12)

	lines := NewAggregator(Config{}).Lines(page)
	if len(lines) != 2 {
		t.Fatalf("got %d lines, want 2", len(lines))
	}
	// Top of page first.
	if lines[0].Baseline < lines[1].Baseline {
		t.Errorf("lines not top-first: %g then %g", lines[0].Baseline, lines[1].Baseline)
	}
	if len(lines[0].SpanIDs) != 1 || lines[0].Spans(page)[0].Text != "second" {
		t.Errorf("top line spans = %v", lines[0].SpanIDs)
	}
	if len(lines[1].SpanIDs) != 2 {
		t.Errorf("wobble line has %d spans, want 2", len(lines[1].SpanIDs))
	}
	if lines[0].ID != "line-0-0" || lines[1].ID != "line-0-1" {
		t.Errorf("ids = %q, %q", lines[0].ID, lines[1].ID)
	}
}

func TestLineTextInsertsWordGaps(t *testing.T) {
	page := &model.PageSpans{PageIndex: 0}
	// "AB" ends at x=112; 4pt of pen travel to "CD" is a word gap at 12pt.
	addSpan(page, "AB", 100, 700, 12)
	addSpan(page, "CD", 116, 700, 12)
	// Second line: 0.5pt is kerning, not a gap.
	addSpan(page, "EF", 100, 680, 12)
	addSpan(page, "GH", 112.5, 680, 12)

	lines := NewAggregator(Config{}).Lines(page)
	if len(lines) != 2 {
		t.Fatalf("got %d lines", len(lines))
	}
	if lines[0].Text != "AB CD" {
		t.Errorf("gap line text = %q", lines[0].Text)
	}
	if lines[1].Text != "EFGH" {
		t.Errorf("kern line text = %q", lines[1].Text)
	}
}

func TestVirtualTabInLineText(t *testing.T) {
	page := &model.PageSpans{PageIndex: 0}
	// Average advance is 6pt; a 30pt gap crosses the 4x threshold.
	addSpan(page, "key", 100, 700, 12)
	addSpan(page, "value", 148, 700, 12)

	agg := NewAggregator(Config{})
	lines := agg.Lines(page)
	if lines[0].Text != "key\tvalue" {
		t.Errorf("text = %q", lines[0].Text)
	}

	a := NewSpaceMapper(SpaceConfig{}).AnalyzeLine(&lines[0], page)
	if a.TabCount() != 1 {
		t.Errorf("TabCount = %d, want 1", a.TabCount())
	}
	if len(a.Spaces) != 1 || a.Spaces[0].Type != model.SpaceVirtualTab || !a.Spaces[0].InterSpan {
		t.Errorf("spaces = %+v", a.Spaces)
	}
}

func TestAnalyzeLineRealSpaces(t *testing.T) {
	page := &model.PageSpans{PageIndex: 0}
	addSpanWidths(page, "a b", 100, 700, 12, []float64{6, 3, 6})
	lines := NewAggregator(Config{}).Lines(page)
	a := NewSpaceMapper(SpaceConfig{}).AnalyzeLine(&lines[0], page)

	if len(a.Spaces) != 1 {
		t.Fatalf("got %d spaces", len(a.Spaces))
	}
	s := a.Spaces[0]
	if s.Type != model.SpaceReal || s.InterSpan {
		t.Errorf("space = %+v", s)
	}
	if s.CharIndex != 1 {
		t.Errorf("charIndex = %d", s.CharIndex)
	}
	if math.Abs(s.Width-3) > 1e-9 {
		t.Errorf("width = %g", s.Width)
	}
	if math.Abs(s.XStart-106) > 1e-9 {
		t.Errorf("xStart = %g", s.XStart)
	}
	if len(a.WordBoundaries) != 1 {
		t.Fatalf("got %d boundaries", len(a.WordBoundaries))
	}
	wb := a.WordBoundaries[0]
	if wb.WordBefore != "a" || wb.WordAfter != "b" {
		t.Errorf("boundary words = %q / %q", wb.WordBefore, wb.WordAfter)
	}
}

func TestReconstructMatchesLineText(t *testing.T) {
	page := &model.PageSpans{PageIndex: 0}
	addSpan(page, "left", 100, 700, 12)
	addSpan(page, "right", 160, 700, 12)
	agg := NewAggregator(Config{})
	lines := agg.Lines(page)
	got := NewSpaceMapper(SpaceConfig{}).ReconstructWithSpaces(&lines[0], page)
	if got != lines[0].Text {
		t.Errorf("reconstruction %q != line text %q", got, lines[0].Text)
	}
}

func TestPreserveSpacingForEdit(t *testing.T) {
	a := &model.SpaceAnalysis{
		Spaces: []model.SpaceInfo{
			{Type: model.SpaceReal, Width: 3},
			{Type: model.SpaceVirtualTab, Width: 30},
		},
		AverageSpaceWidth: 3,
	}
	m := NewSpaceMapper(SpaceConfig{})

	widths := m.PreserveSpacingForEdit(a, "new text\there")
	want := []float64{3, 30}
	if len(widths) != len(want) {
		t.Fatalf("got %d widths", len(widths))
	}
	for i := range want {
		if math.Abs(widths[i]-want[i]) > 1e-9 {
			t.Errorf("width[%d] = %g, want %g", i, widths[i], want[i])
		}
	}

	// A surplus space falls back to the average.
	widths = m.PreserveSpacingForEdit(a, "a b c d")
	if len(widths) != 3 {
		t.Fatalf("got %d widths", len(widths))
	}
	if math.Abs(widths[2]-3) > 1e-9 {
		t.Errorf("surplus width = %g, want average 3", widths[2])
	}
}

func TestParagraphBreakOnVerticalGap(t *testing.T) {
	page := &model.PageSpans{PageIndex: 0}
	addSpan(page, "one", 72, 700, 12)
	addSpan(page, "two", 72, 686, 12)
	addSpan(page, "three", 72, 672, 12)
	addSpan(page, "apart", 72, 642, 12)

	agg := NewAggregator(Config{})
	lines := agg.Lines(page)
	paras := agg.Paragraphs(page, lines)
	if len(paras) != 2 {
		t.Fatalf("got %d paragraphs, want 2", len(paras))
	}
	if len(paras[0].LineIDs) != 3 || len(paras[1].LineIDs) != 1 {
		t.Errorf("grouping = %d + %d lines", len(paras[0].LineIDs), len(paras[1].LineIDs))
	}
	if paras[0].ID != "para-0-0" {
		t.Errorf("id = %q", paras[0].ID)
	}
	// Back-references are set on the lines.
	if lines[0].ParagraphID != paras[0].ID || lines[3].ParagraphID != paras[1].ID {
		t.Errorf("paragraph back-references missing")
	}
	if paras[0].SpacingMode != model.SpacingSingle {
		t.Errorf("spacing mode = %v", paras[0].SpacingMode)
	}
}

func TestHeadingDetection(t *testing.T) {
	page := &model.PageSpans{PageIndex: 0}
	addSpan(page, "Title", 72, 720, 18)
	addSpan(page, "body body", 72, 690, 12)
	addSpan(page, "more body", 72, 676, 12)

	agg := NewAggregator(Config{})
	lines := agg.Lines(page)
	paras := agg.Paragraphs(page, lines)
	if len(paras) != 2 {
		t.Fatalf("got %d paragraphs", len(paras))
	}
	if paras[0].Type != model.ParagraphHeading {
		t.Errorf("type = %v", paras[0].Type)
	}
	if paras[0].HeadingLevel != 2 {
		t.Errorf("level = %d", paras[0].HeadingLevel)
	}
	if paras[1].Type != model.ParagraphNormal {
		t.Errorf("body type = %v", paras[1].Type)
	}
}

func TestListItemDetection(t *testing.T) {
	page := &model.PageSpans{PageIndex: 0}
	addSpan(page, "• first item", 72, 700, 12)

	agg := NewAggregator(Config{})
	paras := agg.Paragraphs(page, agg.Lines(page))
	if paras[0].Type != model.ParagraphListItem {
		t.Fatalf("type = %v", paras[0].Type)
	}
	if paras[0].ListMarker != "•" {
		t.Errorf("marker = %q", paras[0].ListMarker)
	}

	page2 := &model.PageSpans{PageIndex: 0}
	addSpan(page2, "12. numbered", 72, 700, 12)
	paras = agg.Paragraphs(page2, agg.Lines(page2))
	if paras[0].Type != model.ParagraphListItem || paras[0].ListMarker != "12." {
		t.Errorf("numbered item = %v %q", paras[0].Type, paras[0].ListMarker)
	}
}

func TestParagraphBreakOnIndent(t *testing.T) {
	page := &model.PageSpans{PageIndex: 0}
	addSpan(page, "paragraph one continues", 72, 700, 12)
	addSpan(page, "on the margin", 72, 686, 12)
	addSpan(page, "new paragraph indented", 92, 672, 12)

	agg := NewAggregator(Config{})
	paras := agg.Paragraphs(page, agg.Lines(page))
	if len(paras) != 2 {
		t.Fatalf("got %d paragraphs, want 2", len(paras))
	}
	if math.Abs(paras[1].FirstLineIndent-20) > 1e-9 {
		t.Errorf("first line indent = %g", paras[1].FirstLineIndent)
	}
}

func TestCenteredLineAlignment(t *testing.T) {
	page := &model.PageSpans{PageIndex: 0}
	addSpanWidths(page, "full width line", 0, 700, 12, []float64{200})
	addSpanWidths(page, "also full width", 0, 672, 12, []float64{200})
	addSpanWidths(page, "mid", 80, 686, 12, []float64{40})

	lines := NewAggregator(Config{}).Lines(page)
	var center *model.TextLine
	for i := range lines {
		if lines[i].Text == "mid" {
			center = &lines[i]
		}
	}
	if center == nil {
		t.Fatal("centered line lost")
	}
	if center.Alignment != model.AlignCenter {
		t.Errorf("alignment = %v", center.Alignment)
	}
}

func TestBaselineGrid(t *testing.T) {
	page := &model.PageSpans{PageIndex: 0}
	addSpan(page, "l1", 72, 700, 12)
	addSpan(page, "l2", 72, 686, 12)
	addSpan(page, "l3", 72, 672, 12)

	lines := NewAggregator(Config{}).Lines(page)
	tr := NewBaselineTracker(BaselineConfig{})
	a := tr.AnalyzePage(0, lines)

	if math.Abs(a.AverageLeading-14) > 1e-9 {
		t.Errorf("avg leading = %g", a.AverageLeading)
	}
	if !a.RegularGrid {
		t.Errorf("uniform page not detected as a grid")
	}
	if got := tr.SnapToGrid(a, 687.2); got != 686 {
		t.Errorf("SnapToGrid = %g", got)
	}
}

func TestDetectLeading(t *testing.T) {
	tr := NewBaselineTracker(BaselineConfig{})
	a := &model.TextLine{Baseline: 700, DominantSize: 12}
	b := &model.TextLine{Baseline: 686, DominantSize: 12}
	if got := tr.DetectLeading(a, b); math.Abs(got-14) > 1e-9 {
		t.Errorf("measured leading = %g, want 14", got)
	}
	// Coincident baselines fall back to the larger size times the
	// standard line height.
	if got := tr.DetectLeading(a, &model.TextLine{Baseline: 700, DominantSize: 10}); math.Abs(got-14.4) > 1e-9 {
		t.Errorf("fallback leading = %g, want 14.4", got)
	}
	if got := tr.DetectLeading(&model.TextLine{DominantSize: 10}, nil); math.Abs(got-12) > 1e-9 {
		t.Errorf("single-line leading = %g, want 12", got)
	}
}

func TestCalculateNewPosition(t *testing.T) {
	tr := NewBaselineTracker(BaselineConfig{})
	grid := &model.BaselineAnalysis{RegularGrid: true}

	// A regular grid pins the baseline regardless of the height change.
	if got := tr.CalculateNewPosition(grid, 700, 3); got != 700 {
		t.Errorf("grid position = %g, want 700", got)
	}
	// Off grid the line keeps its top edge: the baseline rises by the
	// ascent share of the lost height.
	if got := tr.CalculateNewPosition(nil, 700, 3); math.Abs(got-702.4) > 1e-9 {
		t.Errorf("off-grid position = %g, want 702.4", got)
	}
	if got := tr.CalculateNewPosition(&model.BaselineAnalysis{}, 700, 3); math.Abs(got-702.4) > 1e-9 {
		t.Errorf("irregular position = %g, want 702.4", got)
	}
	if got := tr.CalculateNewPosition(nil, 700, 0); got != 700 {
		t.Errorf("unchanged height moved the baseline to %g", got)
	}
}

func TestSpaceAnalysisSurvivesRebuild(t *testing.T) {
	page := &model.PageSpans{PageIndex: 0}
	addSpan(page, "AB", 100, 700, 12)
	addSpan(page, "CD", 116, 700, 12) // 4pt positional word gap

	m := NewSpaceMapper(SpaceConfig{})
	lines := NewAggregator(Config{}).Lines(page)
	before := m.AnalyzeLine(&lines[0], page)
	text := m.ReconstructWithSpaces(&lines[0], page)
	if text != "AB CD" {
		t.Fatalf("reconstructed text = %q", text)
	}
	if len(before.Spaces) != 1 || !before.Spaces[0].InterSpan {
		t.Fatalf("spaces before rebuild = %+v", before.Spaces)
	}

	// Rewrite the line as one span whose space glyph carries the measured
	// gap, the shape an edit produces, and analyze it again.
	rebuilt := &model.PageSpans{PageIndex: 0}
	widths := []float64{6, 6, before.Spaces[0].Width, 6, 6}
	addSpanWidths(rebuilt, text, 100, 700, 12, widths)
	lines = NewAggregator(Config{}).Lines(rebuilt)
	after := m.AnalyzeLine(&lines[0], rebuilt)

	if got := m.ReconstructWithSpaces(&lines[0], rebuilt); got != text {
		t.Errorf("rebuilt text = %q, want %q", got, text)
	}
	if len(after.Spaces) != 1 {
		t.Fatalf("spaces after rebuild = %+v", after.Spaces)
	}
	if math.Abs(after.Spaces[0].Width-before.Spaces[0].Width) > 1e-9 {
		t.Errorf("space width %g, want %g", after.Spaces[0].Width, before.Spaces[0].Width)
	}
	if after.Spaces[0].CharIndex != before.Spaces[0].CharIndex {
		t.Errorf("space index %d, want %d", after.Spaces[0].CharIndex, before.Spaces[0].CharIndex)
	}
	if len(after.WordBoundaries) != 1 ||
		after.WordBoundaries[0].WordBefore != before.WordBoundaries[0].WordBefore ||
		after.WordBoundaries[0].WordAfter != before.WordBoundaries[0].WordAfter {
		t.Errorf("boundaries after rebuild = %+v, want %+v", after.WordBoundaries, before.WordBoundaries)
	}
}

func TestParagraphBreaksInGrid(t *testing.T) {
	page := &model.PageSpans{PageIndex: 0}
	addSpan(page, "a", 72, 700, 12)
	addSpan(page, "b", 72, 686, 12)
	addSpan(page, "c", 72, 672, 12)
	addSpan(page, "d", 72, 630, 12) // 42pt jump

	lines := NewAggregator(Config{}).Lines(page)
	a := NewBaselineTracker(BaselineConfig{}).AnalyzePage(0, lines)
	if len(a.ParagraphBreaks) != 1 || a.ParagraphBreaks[0] != 3 {
		t.Errorf("paragraph breaks = %v", a.ParagraphBreaks)
	}
}

func TestDirectionDetection(t *testing.T) {
	if got := detectDirection("hello"); got != model.DirectionLTR {
		t.Errorf("latin = %v", got)
	}
	if got := detectDirection("שלום"); got != model.DirectionRTL {
		t.Errorf("hebrew = %v", got)
	}
	if got := detectDirection("abc של"); got != model.DirectionMixed {
		t.Errorf("mixed = %v", got)
	}
	if got := detectDirection("123 .,"); got != model.DirectionNeutral {
		t.Errorf("neutral = %v", got)
	}
}
