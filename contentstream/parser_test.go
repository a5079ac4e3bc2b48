package contentstream

import (
	"context"
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/Oriol-1/modificador-pdf/model"
)

func testFonts() map[string]*model.FontInfo {
	widths := make(map[byte]float64)
	for c := byte(0x20); c < 0x7f; c++ {
		widths[c] = 500
	}
	return map[string]*model.FontInfo{
		"F1": {
			Name:      "F1",
			BaseFont:  "Helvetica",
			Subtype:   "Type1",
			Widths:    widths,
			Embedding: model.NotEmbedded,
		},
		"F2": {
			Name:      "F2",
			BaseFont:  "ABCDEF+Garamond-Italic",
			Subtype:   "TrueType",
			Flags:     model.FontFlagItalic,
			Widths:    widths,
			Embedding: model.SubsetEmbedded,
		},
	}
}

func parsePage(t *testing.T, stream string) *model.PageSpans {
	t.Helper()
	p := NewProcessor(DefaultConfig())
	page, err := p.Process(context.Background(), []byte(stream), 0, testFonts())
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	return page
}

func approx(t *testing.T, name string, got, want float64) {
	t.Helper()
	if math.Abs(got-want) > 1e-6 {
		t.Errorf("%s = %g, want %g", name, got, want)
	}
}

func hasDiag(page *model.PageSpans, kind model.DiagnosticKind) bool {
	for _, d := range page.Diagnostics {
		if d.Kind == kind {
			return true
		}
	}
	return false
}

func TestSimpleShow(t *testing.T) {
	page := parsePage(t, "BT /F1 12 Tf 100 700 Td (Hello) Tj ET")
	if len(page.Spans) != 1 {
		t.Fatalf("got %d spans, want 1", len(page.Spans))
	}
	s := page.Spans[0]
	if s.Text != "Hello" {
		t.Errorf("text = %q", s.Text)
	}
	if s.ID != "span-0-0" {
		t.Errorf("id = %q", s.ID)
	}
	if s.FontName != "Helvetica" || s.FontFamily != "Helvetica" {
		t.Errorf("font = %q / %q", s.FontName, s.FontFamily)
	}
	approx(t, "origin.x", s.Origin.X, 100)
	approx(t, "baseline", s.BaselineY, 700)
	// 5 glyphs at 500/1000 of 12pt.
	approx(t, "width", s.Width(), 30)
	approx(t, "bbox.urx", s.BBox.URX, 130)
	approx(t, "bbox.lly", s.BBox.LLY, 700-12*model.DescentRatio)
	approx(t, "bbox.ury", s.BBox.URY, 700+12*model.AscentRatio)
	if len(page.Diagnostics) != 0 {
		t.Errorf("unexpected diagnostics: %+v", page.Diagnostics)
	}
}

func TestParseIsIdempotent(t *testing.T) {
	stream := "BT /F1 12 Tf 1 0 0 1 72 720 Tm (One) Tj 0 -14 Td (Two) Tj ET " +
		"BT /F2 9 Tf 300 400 Td [(ker) -40 (ned) -400 (apart)] TJ ET"
	first := parsePage(t, stream)
	second := parsePage(t, stream)
	if diff := cmp.Diff(first.Spans, second.Spans); diff != "" {
		t.Errorf("repeated parse differs (-first +second):\n%s", diff)
	}
	if diff := cmp.Diff(first.Diagnostics, second.Diagnostics); diff != "" {
		t.Errorf("diagnostics differ (-first +second):\n%s", diff)
	}
}

func TestKerningFoldsIntoRun(t *testing.T) {
	page := parsePage(t, "BT /F1 12 Tf 100 700 Td [(AB) -50 (CD)] TJ ET")
	if len(page.Spans) != 1 {
		t.Fatalf("got %d spans, want 1", len(page.Spans))
	}
	s := page.Spans[0]
	if s.Text != "ABCD" {
		t.Errorf("text = %q", s.Text)
	}
	// Four 6pt advances plus the 0.6pt kern folded into the second glyph.
	approx(t, "width", s.Width(), 24.6)
	approx(t, "glyph[1]", s.GlyphWidths[1], 6.6)
}

func TestLargeKernSplitsWords(t *testing.T) {
	page := parsePage(t, "BT /F1 12 Tf 100 700 Td [(AB) -300 (CD)] TJ ET")
	if len(page.Spans) != 2 {
		t.Fatalf("got %d spans, want 2", len(page.Spans))
	}
	a, b := page.Spans[0], page.Spans[1]
	if a.Text != "AB" || b.Text != "CD" {
		t.Fatalf("texts = %q, %q", a.Text, b.Text)
	}
	// Second run starts after AB (12pt) plus the 3.6pt gap.
	approx(t, "second origin", b.Origin.X, 115.6)
	approx(t, "both baselines", b.BaselineY, a.BaselineY)
}

func TestSaveRestoreCTM(t *testing.T) {
	page := parsePage(t, "q 2 0 0 2 0 0 cm BT /F1 12 Tf 50 50 Td (A) Tj ET Q "+
		"BT /F1 12 Tf 50 50 Td (B) Tj ET")
	if len(page.Spans) != 2 {
		t.Fatalf("got %d spans, want 2", len(page.Spans))
	}
	scaled, plain := page.Spans[0], page.Spans[1]
	approx(t, "scaled width", scaled.BBox.Width(), 12)
	approx(t, "scaled origin", scaled.Origin.X, 100)
	approx(t, "plain width", plain.BBox.Width(), 6)
	approx(t, "plain origin", plain.Origin.X, 50)
	if hasDiag(page, model.DiagUnbalancedState) {
		t.Errorf("balanced stream produced unbalanced-state diagnostic")
	}
}

func TestRestoreUnderflow(t *testing.T) {
	page := parsePage(t, "Q BT /F1 12 Tf (A) Tj ET")
	if !hasDiag(page, model.DiagUnbalancedState) {
		t.Errorf("missing unbalanced-state diagnostic")
	}
	if len(page.Spans) != 1 {
		t.Errorf("parsing did not continue past the bad restore: %d spans", len(page.Spans))
	}
}

func TestDanglingSaveReported(t *testing.T) {
	page := parsePage(t, "q q BT /F1 12 Tf (A) Tj ET Q")
	if !hasDiag(page, model.DiagUnbalancedState) {
		t.Errorf("missing unbalanced-state diagnostic for unmatched save")
	}
}

func TestNumericFallbackKeepsPrevious(t *testing.T) {
	page := parsePage(t, "BT /F1 12 Tf 3 Tc (x) Tc 100 700 Td (ab) Tj ET")
	if !hasDiag(page, model.DiagNumericFallback) {
		t.Fatalf("missing numeric-fallback diagnostic")
	}
	if len(page.Spans) != 1 {
		t.Fatalf("got %d spans, want 1", len(page.Spans))
	}
	// Char spacing stays at the last good value.
	approx(t, "charSpacing", page.Spans[0].CharSpacing, 3)
	approx(t, "width", page.Spans[0].Width(), 2*(6+3))
}

func TestWordSpacingOnSpaceByte(t *testing.T) {
	page := parsePage(t, "BT /F1 10 Tf 4 Tw 0 0 Td (a b) Tj ET")
	s := page.Spans[0]
	if len(s.GlyphWidths) != 3 {
		t.Fatalf("got %d glyph widths", len(s.GlyphWidths))
	}
	approx(t, "letter", s.GlyphWidths[0], 5)
	approx(t, "space", s.GlyphWidths[1], 9)
	approx(t, "letter", s.GlyphWidths[2], 5)
}

func TestHorizontalScale(t *testing.T) {
	page := parsePage(t, "BT /F1 12 Tf 50 Tz 0 0 Td (AB) Tj ET")
	s := page.Spans[0]
	approx(t, "width", s.Width(), 6)
	approx(t, "hscale", s.HorizontalScale, 50)
}

func TestQuoteAdvancesLine(t *testing.T) {
	page := parsePage(t, "BT /F1 12 Tf 14 TL 100 700 Td (first) Tj (second) ' ET")
	if len(page.Spans) != 2 {
		t.Fatalf("got %d spans, want 2", len(page.Spans))
	}
	second := page.Spans[1]
	approx(t, "x back to line start", second.Origin.X, 100)
	approx(t, "baseline dropped by leading", second.BaselineY, 686)
}

func TestDoubleQuoteSetsSpacing(t *testing.T) {
	page := parsePage(t, "BT /F1 12 Tf 14 TL 100 700 Td 2 1 (a b) \" ET")
	s := page.Spans[0]
	approx(t, "wordSpacing", s.WordSpacing, 2)
	approx(t, "charSpacing", s.CharSpacing, 1)
	approx(t, "baseline", s.BaselineY, 686)
}

func TestTDUpdatesLeading(t *testing.T) {
	page := parsePage(t, "BT /F1 12 Tf 100 700 Td (a) Tj 0 -16 TD (b) Tj (c) ' ET")
	if len(page.Spans) != 3 {
		t.Fatalf("got %d spans, want 3", len(page.Spans))
	}
	approx(t, "TD moved baseline", page.Spans[1].BaselineY, 684)
	approx(t, "' used TD leading", page.Spans[2].BaselineY, 668)
}

func TestUnresolvedFontDegrades(t *testing.T) {
	page := parsePage(t, "BT /Missing 10 Tf 0 0 Td (ok) Tj ET")
	if !hasDiag(page, model.DiagUnresolvedFont) {
		t.Fatalf("missing unresolved-font diagnostic")
	}
	if len(page.Spans) != 1 {
		t.Fatalf("got %d spans, want 1", len(page.Spans))
	}
	s := page.Spans[0]
	if s.FontName != "Missing" {
		t.Errorf("fontName = %q", s.FontName)
	}
	if s.Confidence >= 1 {
		t.Errorf("confidence = %g, want reduced", s.Confidence)
	}
	// Fallback half-em widths.
	approx(t, "width", s.Width(), 10)
}

func TestSubsetFontMetadata(t *testing.T) {
	page := parsePage(t, "BT /F2 9 Tf 0 0 Td (x) Tj ET")
	s := page.Spans[0]
	if !s.IsSubset {
		t.Errorf("IsSubset = false")
	}
	if s.FontFamily != "Garamond-Italic" {
		t.Errorf("fontFamily = %q", s.FontFamily)
	}
	if s.Embedding != model.SubsetEmbedded {
		t.Errorf("embedding = %v", s.Embedding)
	}
	if v, known := s.Italic.Bool(); !known || !v {
		t.Errorf("italic = %v, want yes", s.Italic)
	}
}

func TestColorsCaptured(t *testing.T) {
	page := parsePage(t, "1 0 0 rg 0 0.5 0 RG BT /F1 12 Tf (x) Tj ET")
	s := page.Spans[0]
	if s.FillColor != "#ff0000" {
		t.Errorf("fill = %q", s.FillColor)
	}
	if s.StrokeColor != "#008000" {
		t.Errorf("stroke = %q", s.StrokeColor)
	}
}

func TestCMYKColor(t *testing.T) {
	page := parsePage(t, "0 1 1 0 k BT /F1 12 Tf (x) Tj ET")
	if got := page.Spans[0].FillColor; got != "#ff0000" {
		t.Errorf("fill = %q", got)
	}
}

func TestRiseMarksSuperscript(t *testing.T) {
	page := parsePage(t, "BT /F1 12 Tf 100 700 Td 3 Ts (2) Tj ET")
	s := page.Spans[0]
	if !s.IsSuperscript || s.IsSubscript {
		t.Errorf("rise flags = %v/%v", s.IsSuperscript, s.IsSubscript)
	}
	approx(t, "baseline lifted", s.BaselineY, 703)
}

func TestRenderModeCarried(t *testing.T) {
	page := parsePage(t, "BT /F1 12 Tf 3 Tr (hidden) Tj ET")
	s := page.Spans[0]
	if s.RenderMode != model.RenderInvisible {
		t.Errorf("renderMode = %v", s.RenderMode)
	}
	if s.RenderMode.Visible() {
		t.Errorf("invisible mode reports visible")
	}
}

func TestUnknownOperatorsSkipped(t *testing.T) {
	page := parsePage(t, "/GS1 gs 0.5 w BT /F1 12 Tf (a) Tj XY12 (b) Tj ET")
	if len(page.Spans) != 2 {
		t.Fatalf("got %d spans, want 2", len(page.Spans))
	}
}

func TestMarkedContentDictSkipped(t *testing.T) {
	page := parsePage(t, "/Span <</ActualText (hi)>> BDC BT /F1 12 Tf (a) Tj ET EMC")
	if len(page.Spans) != 1 {
		t.Fatalf("got %d spans, want 1", len(page.Spans))
	}
	if page.Spans[0].Text != "a" {
		t.Errorf("text = %q", page.Spans[0].Text)
	}
}

func TestBTResetsTextMatrix(t *testing.T) {
	page := parsePage(t, "BT /F1 12 Tf 100 700 Td (a) Tj ET BT (b) Tj ET")
	if len(page.Spans) != 2 {
		t.Fatalf("got %d spans, want 2", len(page.Spans))
	}
	approx(t, "new text object at origin", page.Spans[1].Origin.X, 0)
	approx(t, "new text object baseline", page.Spans[1].BaselineY, 0)
}

func TestEmptyShowEmitsNothing(t *testing.T) {
	page := parsePage(t, "BT /F1 12 Tf () Tj [] TJ ET")
	if len(page.Spans) != 0 {
		t.Errorf("got %d spans, want 0", len(page.Spans))
	}
}

func TestCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	p := NewProcessor(DefaultConfig())
	if _, err := p.Process(ctx, []byte("BT ET"), 0, nil); err == nil {
		t.Fatalf("expected context error")
	}
}
