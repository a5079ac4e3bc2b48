package model

import (
	"fmt"

	"github.com/Oriol-1/modificador-pdf/coords"
)

// LineID identifies a line within a page.
type LineID string

// ParagraphID identifies a paragraph within a page.
type ParagraphID string

// NewLineID builds the deterministic identifier for the n-th line on a page.
func NewLineID(pageIndex, seq int) LineID {
	return LineID(fmt.Sprintf("line-%d-%d", pageIndex, seq))
}

// NewParagraphID builds the deterministic identifier for the n-th
// paragraph on a page.
func NewParagraphID(pageIndex, seq int) ParagraphID {
	return ParagraphID(fmt.Sprintf("para-%d-%d", pageIndex, seq))
}

// Alignment is the guessed horizontal alignment of a line or paragraph.
type Alignment int

const (
	AlignUnknown Alignment = iota
	AlignLeft
	AlignCenter
	AlignRight
	AlignJustified
)

func (a Alignment) String() string {
	switch a {
	case AlignLeft:
		return "left"
	case AlignCenter:
		return "center"
	case AlignRight:
		return "right"
	case AlignJustified:
		return "justified"
	default:
		return "unknown"
	}
}

// Direction is the reading direction of a span or line.
type Direction int

const (
	DirectionNeutral Direction = iota
	DirectionLTR
	DirectionRTL
	DirectionMixed
)

func (d Direction) String() string {
	switch d {
	case DirectionLTR:
		return "ltr"
	case DirectionRTL:
		return "rtl"
	case DirectionMixed:
		return "mixed"
	default:
		return "neutral"
	}
}

// TextLine is an ordered set of spans sharing one baseline within
// tolerance. It references spans by identifier only; the spans stay owned
// by the page result set.
type TextLine struct {
	ID        LineID  `json:"id"`
	PageIndex int     `json:"pageIndex"`
	Index     int     `json:"index"`
	SpanIDs   []SpanID `json:"spanIds"`

	BBox     coords.Rect `json:"bbox"`
	Baseline float64     `json:"baseline"`
	Ascent   float64     `json:"ascent"`
	Descent  float64     `json:"descent"`

	Alignment Alignment `json:"alignment"`
	Direction Direction `json:"direction"`

	// ParagraphID is a weak back-reference to the owning paragraph;
	// empty until paragraph aggregation runs.
	ParagraphID ParagraphID `json:"paragraphId,omitempty"`

	// Text is the line content assembled in reading order, with virtual
	// gaps already rendered as spaces.
	Text string `json:"text"`

	DominantFont string  `json:"dominantFont"`
	DominantSize float64 `json:"dominantSize"`
	Indentation  float64 `json:"indentation"`
}

// Spans resolves the line's span ids against the owning result set,
// skipping ids that no longer resolve.
func (l *TextLine) Spans(page *PageSpans) []*TextSpanMetrics {
	out := make([]*TextSpanMetrics, 0, len(l.SpanIDs))
	for _, id := range l.SpanIDs {
		if s := page.Span(id); s != nil {
			out = append(out, s)
		}
	}
	return out
}

// ParagraphType classifies a paragraph.
type ParagraphType int

const (
	ParagraphNormal ParagraphType = iota
	ParagraphHeading
	ParagraphListItem
)

func (t ParagraphType) String() string {
	switch t {
	case ParagraphHeading:
		return "heading"
	case ParagraphListItem:
		return "list-item"
	default:
		return "normal"
	}
}

// LineSpacingMode describes how a paragraph spaces its lines.
type LineSpacingMode int

const (
	SpacingUnknown LineSpacingMode = iota
	SpacingSingle
	SpacingOnePointFive
	SpacingDouble
	SpacingCustom
)

func (m LineSpacingMode) String() string {
	switch m {
	case SpacingSingle:
		return "single"
	case SpacingOnePointFive:
		return "1.5"
	case SpacingDouble:
		return "double"
	case SpacingCustom:
		return "custom"
	default:
		return "unknown"
	}
}

// TextParagraph is an ordered set of lines with a consistent left margin
// and spacing signature.
type TextParagraph struct {
	ID        ParagraphID `json:"id"`
	PageIndex int         `json:"pageIndex"`
	LineIDs   []LineID    `json:"lineIds"`

	BBox            coords.Rect     `json:"bbox"`
	FirstLineIndent float64         `json:"firstLineIndent"`
	LeftMargin      float64         `json:"leftMargin"`
	RightMargin     float64         `json:"rightMargin"`
	DominantFont    string          `json:"dominantFont"`
	DominantSize    float64         `json:"dominantSize"`
	Type            ParagraphType   `json:"type"`
	HeadingLevel    int             `json:"headingLevel,omitempty"`
	ListMarker      string          `json:"listMarker,omitempty"`
	LineSpacing     float64         `json:"lineSpacing"`
	SpacingMode     LineSpacingMode `json:"spacingMode"`
}
