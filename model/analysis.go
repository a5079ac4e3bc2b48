package model

// SpaceType classifies an inter-glyph or inter-span gap.
type SpaceType int

const (
	// SpaceReal is an actual space character present in the text.
	SpaceReal SpaceType = iota
	// SpaceWordGap is a positional gap wide enough to read as a word break.
	SpaceWordGap
	// SpaceVirtualTab is a gap so wide it stands in for a tab stop.
	SpaceVirtualTab
)

func (t SpaceType) String() string {
	switch t {
	case SpaceReal:
		return "real"
	case SpaceWordGap:
		return "word-gap"
	case SpaceVirtualTab:
		return "virtual-tab"
	default:
		return "unknown"
	}
}

// SpaceInfo describes one classified gap on a line.
type SpaceInfo struct {
	Type   SpaceType `json:"type"`
	XStart float64   `json:"xStart"`
	XEnd   float64   `json:"xEnd"`
	Width  float64   `json:"width"`
	// CharIndex is the rune position of the gap in the line's assembled text.
	CharIndex int `json:"charIndex"`
	// SpanIndex is the index of the span preceding the gap.
	SpanIndex int `json:"spanIndex"`
	// InterSpan marks gaps between spans rather than inside one.
	InterSpan bool `json:"interSpan"`
}

// WordBoundary marks a detected word break on a line.
type WordBoundary struct {
	XPosition  float64 `json:"xPosition"`
	CharIndex  int     `json:"charIndex"`
	WordBefore string  `json:"wordBefore"`
	WordAfter  string  `json:"wordAfter"`
	SpaceWidth float64 `json:"spaceWidth"`
}

// SpaceAnalysis is the derived, non-owning spacing result for one line.
// It is recomputed on demand and never mutated in place.
type SpaceAnalysis struct {
	LineID            LineID         `json:"lineId"`
	Spaces            []SpaceInfo    `json:"spaces"`
	WordBoundaries    []WordBoundary `json:"wordBoundaries"`
	AverageSpaceWidth float64        `json:"averageSpaceWidth"`
	SpaceVariance     float64        `json:"spaceVariance"`
	AverageAdvance    float64        `json:"averageAdvance"`
	Consistent        bool           `json:"consistent"`
}

// TabCount returns the number of virtual tabs found.
func (a *SpaceAnalysis) TabCount() int {
	n := 0
	for _, s := range a.Spaces {
		if s.Type == SpaceVirtualTab {
			n++
		}
	}
	return n
}

// BaselineInfo is one tracked baseline on a page.
type BaselineInfo struct {
	LineID LineID  `json:"lineId"`
	Y      float64 `json:"y"`
	// LeadingFromPrev is the baseline-to-baseline distance from the line
	// above, zero for the first line.
	LeadingFromPrev float64 `json:"leadingFromPrev"`
	FontSize        float64 `json:"fontSize"`
}

// BaselineAnalysis is the derived per-page baseline grid. Recomputed on
// demand, never mutated in place.
type BaselineAnalysis struct {
	PageIndex       int            `json:"pageIndex"`
	Baselines       []BaselineInfo `json:"baselines"`
	AverageLeading  float64        `json:"averageLeading"`
	LeadingVariance float64        `json:"leadingVariance"`
	// RegularGrid is true when the leading variance is small enough to
	// treat the page as set on a fixed baseline grid.
	RegularGrid bool `json:"regularGrid"`
	// ParagraphBreaks lists indices into Baselines where the leading jump
	// suggests a paragraph boundary.
	ParagraphBreaks []int `json:"paragraphBreaks,omitempty"`
}
