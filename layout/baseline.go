package layout

import (
	"math"

	"github.com/Oriol-1/modificador-pdf/model"
)

// lineHeightRatio is the leading over font size assumed when a page
// carries too few lines to measure its own.
const lineHeightRatio = 1.2

// BaselineConfig tunes baseline grid detection.
type BaselineConfig struct {
	// GridRelativeDeviation is the largest relative standard deviation of
	// the page's leadings at which the page still counts as set on a
	// regular grid.
	GridRelativeDeviation float64
	// ParagraphLeadingRatio is the multiple of the average leading at
	// which a baseline gap is recorded as a paragraph break.
	ParagraphLeadingRatio float64
}

// DefaultBaselineConfig returns the production thresholds.
func DefaultBaselineConfig() BaselineConfig {
	return BaselineConfig{GridRelativeDeviation: 0.15, ParagraphLeadingRatio: 1.5}
}

// BaselineTracker measures the vertical rhythm of a page so that inserted
// or rewritten lines can be placed exactly on it.
type BaselineTracker struct {
	cfg BaselineConfig
}

func NewBaselineTracker(cfg BaselineConfig) *BaselineTracker {
	def := DefaultBaselineConfig()
	if cfg.GridRelativeDeviation <= 0 {
		cfg.GridRelativeDeviation = def.GridRelativeDeviation
	}
	if cfg.ParagraphLeadingRatio <= 0 {
		cfg.ParagraphLeadingRatio = def.ParagraphLeadingRatio
	}
	return &BaselineTracker{cfg: cfg}
}

// AnalyzePage derives the baseline grid from the page's lines. Lines must
// be in top-to-bottom order, as produced by the aggregator.
func (t *BaselineTracker) AnalyzePage(pageIndex int, lines []model.TextLine) *model.BaselineAnalysis {
	a := &model.BaselineAnalysis{PageIndex: pageIndex}
	for i, l := range lines {
		info := model.BaselineInfo{
			LineID:   l.ID,
			Y:        l.Baseline,
			FontSize: l.DominantSize,
		}
		if i > 0 {
			info.LeadingFromPrev = lines[i-1].Baseline - l.Baseline
		}
		a.Baselines = append(a.Baselines, info)
	}

	var leadings []float64
	for i, b := range a.Baselines {
		if i > 0 && b.LeadingFromPrev > 0 {
			leadings = append(leadings, b.LeadingFromPrev)
		}
	}
	if len(leadings) == 0 {
		return a
	}
	var sum float64
	for _, l := range leadings {
		sum += l
	}
	a.AverageLeading = sum / float64(len(leadings))
	for _, l := range leadings {
		d := l - a.AverageLeading
		a.LeadingVariance += d * d
	}
	a.LeadingVariance /= float64(len(leadings))

	if a.AverageLeading > 0 {
		relDev := math.Sqrt(a.LeadingVariance) / a.AverageLeading
		a.RegularGrid = relDev <= t.cfg.GridRelativeDeviation
	}
	for i, b := range a.Baselines {
		if i == 0 {
			continue
		}
		if b.LeadingFromPrev > a.AverageLeading*t.cfg.ParagraphLeadingRatio {
			a.ParagraphBreaks = append(a.ParagraphBreaks, i)
		}
	}
	return a
}

// DetectLeading returns the leading between two adjacent lines: the
// measured baseline distance when both lines exist, otherwise the
// standard ratio of the dominant size involved.
func (t *BaselineTracker) DetectLeading(a, b *model.TextLine) float64 {
	if a != nil && b != nil {
		if d := absf(a.Baseline - b.Baseline); d > 0 {
			return d
		}
	}
	var size float64
	if a != nil {
		size = a.DominantSize
	}
	if b != nil && b.DominantSize > size {
		size = b.DominantSize
	}
	return size * lineHeightRatio
}

// SnapToGrid returns the existing baseline closest to y. On pages without
// a regular grid y comes back unchanged; snapping to an irregular layout
// would move text for no benefit.
func (t *BaselineTracker) SnapToGrid(a *model.BaselineAnalysis, y float64) float64 {
	if a == nil || !a.RegularGrid || len(a.Baselines) == 0 {
		return y
	}
	best := a.Baselines[0].Y
	bestD := absf(y - best)
	for _, b := range a.Baselines[1:] {
		if d := absf(y - b.Y); d < bestD {
			best, bestD = b.Y, d
		}
	}
	return best
}

// CalculateNewPosition returns the baseline for a line whose height
// changed by heightDelta (positive when the line got shorter, as after a
// size-reduced rewrite). On a regular grid the baseline holds its
// position so the page rhythm survives the edit; off grid the line keeps
// its top edge instead, shifting the baseline by the ascent share of the
// lost height so reduced text does not float above its neighbors.
func (t *BaselineTracker) CalculateNewPosition(a *model.BaselineAnalysis, originalBaseline, heightDelta float64) float64 {
	if heightDelta == 0 {
		return originalBaseline
	}
	if a != nil && a.RegularGrid {
		return originalBaseline
	}
	return originalBaseline + heightDelta*model.AscentRatio
}
