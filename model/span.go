package model

import (
	"fmt"

	"github.com/Oriol-1/modificador-pdf/coords"
)

// Fraction of the font size assumed above and below the baseline when the
// font program does not supply exact vertical metrics. The 0.8/0.2 split
// matches the metrics of the standard 14 fonts closely enough for hit
// testing and overlay sizing.
const (
	AscentRatio  = 0.8
	DescentRatio = 0.2
)

// SpanID identifies a span within its page result set.
type SpanID string

// TextSpanMetrics is the complete typographic record of one contiguous
// glyph run with unchanged style. It is produced once by the parser and
// treated as immutable by analysis; only the editor replaces spans, and it
// does so wholesale.
//
// BBox is always derived from the matrices and glyph widths via DeriveBBox
// and is never set independently, so it cannot drift from the geometry
// that produced it.
type TextSpanMetrics struct {
	ID        SpanID `json:"id"`
	Text      string `json:"text"`
	PageIndex int    `json:"pageIndex"`

	BBox      coords.Rect  `json:"bbox"`
	Origin    coords.Point `json:"origin"`
	BaselineY float64      `json:"baselineY"`

	// FontName is the raw declared name; FontFamily is the subset-decoded
	// name when a subset tag was present, otherwise equal to FontName.
	FontName   string          `json:"fontName"`
	FontFamily string          `json:"fontFamily"`
	FontSize   float64         `json:"fontSize"`
	Embedding  EmbeddingStatus `json:"embedding"`
	IsSubset   bool            `json:"isSubset"`

	FillColor   string     `json:"fillColor"`
	StrokeColor string     `json:"strokeColor,omitempty"`
	RenderMode  RenderMode `json:"renderMode"`

	CTM             coords.Matrix `json:"ctm"`
	TextMatrix      coords.Matrix `json:"textMatrix"`
	HorizontalScale float64       `json:"horizontalScale"`
	RotationDeg     float64       `json:"rotationDeg"`

	CharSpacing float64   `json:"charSpacing"`
	WordSpacing float64   `json:"wordSpacing"`
	// GlyphWidths holds the advance of each glyph in text space units,
	// spacing included, in text order.
	GlyphWidths []float64 `json:"glyphWidths"`
	Rise        float64   `json:"rise"`

	Bold          Tristate `json:"bold"`
	Italic        Tristate `json:"italic"`
	IsSuperscript bool     `json:"isSuperscript"`
	IsSubscript   bool     `json:"isSubscript"`

	WasFallback  bool    `json:"wasFallback"`
	FallbackFrom string  `json:"fallbackFrom,omitempty"`
	Confidence   float64 `json:"confidence"`
}

// NewSpanID builds the deterministic identifier for the n-th span emitted
// on a page. Determinism keeps repeated parses of the same bytes
// byte-for-byte identical.
func NewSpanID(pageIndex, seq int) SpanID {
	return SpanID(fmt.Sprintf("span-%d-%d", pageIndex, seq))
}

// Width returns the total advance of the run in text space.
func (s *TextSpanMetrics) Width() float64 {
	var w float64
	for _, g := range s.GlyphWidths {
		w += g
	}
	return w
}

// DeriveBBox recomputes the bounding box and dependent geometry from the
// matrices, glyph widths, size and rise. It is called at construction and
// must be called again if any of those inputs change.
func (s *TextSpanMetrics) DeriveBBox() {
	trm := s.TextMatrix.Mul(s.CTM)
	width := s.Width()
	asc := s.FontSize * AscentRatio
	desc := s.FontSize * DescentRatio
	// Text-space rectangle around the run, baseline at y=0, shifted by rise.
	local := coords.Rect{
		LLX: 0,
		LLY: s.Rise - desc,
		URX: width,
		URY: s.Rise + asc,
	}
	s.BBox = trm.TransformRect(local)
	origin := trm.Transform(coords.Point{X: 0, Y: s.Rise})
	s.Origin = origin
	s.BaselineY = origin.Y
	s.RotationDeg = trm.RotationDegrees()
}

// GlyphAt returns the index of the glyph whose advance covers the text
// space offset x from the span origin, and the fraction consumed within
// it. Returns -1 when x is outside the run.
func (s *TextSpanMetrics) GlyphAt(x float64) (index int, frac float64) {
	if x < 0 {
		return -1, 0
	}
	pos := 0.0
	for i, w := range s.GlyphWidths {
		if x < pos+w || (w == 0 && x == pos) {
			if w <= 0 {
				return i, 0
			}
			return i, (x - pos) / w
		}
		pos += w
	}
	return -1, 0
}

// DiagnosticKind classifies a non-fatal parse problem.
type DiagnosticKind int

const (
	DiagMalformedOperator DiagnosticKind = iota
	DiagNumericFallback
	DiagUnresolvedFont
	DiagUnbalancedState
)

func (k DiagnosticKind) String() string {
	switch k {
	case DiagMalformedOperator:
		return "malformed-operator"
	case DiagNumericFallback:
		return "numeric-fallback"
	case DiagUnresolvedFont:
		return "unresolved-font"
	case DiagUnbalancedState:
		return "unbalanced-state"
	default:
		return "unknown"
	}
}

// Diagnostic is a non-fatal note accumulated during a parse pass. A
// malformed stream degrades the analysis, it never blocks it.
type Diagnostic struct {
	Kind     DiagnosticKind `json:"kind"`
	Operator string         `json:"operator,omitempty"`
	Offset   int64          `json:"offset"`
	Message  string         `json:"message"`
}

// PageSpans is the page-scoped result set that owns all spans parsed from
// one content stream. Lines and paragraphs reference into it by SpanID.
type PageSpans struct {
	PageIndex   int               `json:"pageIndex"`
	Spans       []TextSpanMetrics `json:"spans"`
	Diagnostics []Diagnostic      `json:"diagnostics,omitempty"`

	byID map[SpanID]int
}

// Span returns the span with the given id, or nil.
func (p *PageSpans) Span(id SpanID) *TextSpanMetrics {
	if p.byID == nil {
		p.reindex()
	}
	i, ok := p.byID[id]
	if !ok {
		return nil
	}
	return &p.Spans[i]
}

// Append adds a span to the result set.
func (p *PageSpans) Append(s TextSpanMetrics) {
	p.Spans = append(p.Spans, s)
	p.byID = nil
}

// Replace swaps the span with the same ID for s. It reports whether the
// span existed.
func (p *PageSpans) Replace(s TextSpanMetrics) bool {
	if p.byID == nil {
		p.reindex()
	}
	i, ok := p.byID[s.ID]
	if !ok {
		return false
	}
	p.Spans[i] = s
	return true
}

func (p *PageSpans) reindex() {
	p.byID = make(map[SpanID]int, len(p.Spans))
	for i := range p.Spans {
		p.byID[p.Spans[i].ID] = i
	}
}
