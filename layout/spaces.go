package layout

import (
	"math"
	"strings"

	"github.com/Oriol-1/modificador-pdf/model"
)

// SpaceConfig tunes gap classification.
type SpaceConfig struct {
	// WordGapRatio is the fraction of the dominant font size an
	// inter-span gap must reach to read as a word break.
	WordGapRatio float64
	// VirtualTabRatio is the multiple of the average glyph advance at
	// which a gap reads as a tab stop rather than a word break.
	VirtualTabRatio float64
}

// DefaultSpaceConfig returns the production thresholds.
func DefaultSpaceConfig() SpaceConfig {
	return SpaceConfig{WordGapRatio: 0.25, VirtualTabRatio: 4.0}
}

// SpaceMapper classifies the gaps on a line: real space characters,
// positional word gaps painted by pen movement alone, and the extreme
// gaps that stand in for tab stops. Columnar layouts depend on those
// gaps, so edits must reproduce them exactly; the mapper is what makes
// that possible.
type SpaceMapper struct {
	cfg SpaceConfig
}

func NewSpaceMapper(cfg SpaceConfig) *SpaceMapper {
	def := DefaultSpaceConfig()
	if cfg.WordGapRatio <= 0 {
		cfg.WordGapRatio = def.WordGapRatio
	}
	if cfg.VirtualTabRatio <= 0 {
		cfg.VirtualTabRatio = def.VirtualTabRatio
	}
	return &SpaceMapper{cfg: cfg}
}

// glyphRun is one span flattened to device-space glyph positions along
// the line axis.
type glyphRun struct {
	span   *model.TextSpanMetrics
	runes  []rune
	x      []float64 // device x of each glyph's left edge
	adv    []float64 // device advance of each glyph
	startX float64
	endX   float64
}

func flatten(s *model.TextSpanMetrics) glyphRun {
	runes := []rune(s.Text)
	run := glyphRun{span: s, runes: runes, startX: s.BBox.LLX, endX: s.BBox.URX}
	// Device scale along the x axis; falls back to 1 on degenerate spans.
	scale := 1.0
	if w := s.Width(); w > 0 {
		scale = s.BBox.Width() / w
	}
	x := s.BBox.LLX
	for i := range runes {
		adv := 0.0
		if i < len(s.GlyphWidths) {
			adv = s.GlyphWidths[i] * scale
		}
		run.x = append(run.x, x)
		run.adv = append(run.adv, adv)
		x += adv
	}
	return run
}

// AnalyzeLine classifies every gap on the line. The returned analysis is
// derived data; callers recompute it after any edit.
func (m *SpaceMapper) AnalyzeLine(line *model.TextLine, page *model.PageSpans) *model.SpaceAnalysis {
	spans := line.Spans(page)
	a := &model.SpaceAnalysis{LineID: line.ID}
	if len(spans) == 0 {
		return a
	}

	runs := make([]glyphRun, len(spans))
	for i, s := range spans {
		runs[i] = flatten(s)
	}
	avgAdvance := averageAdvance(runs)
	a.AverageAdvance = avgAdvance
	wordGapMin := line.DominantSize * m.cfg.WordGapRatio
	if wordGapMin <= 0 {
		wordGapMin = avgAdvance
	}
	tabMin := avgAdvance * m.cfg.VirtualTabRatio

	var text strings.Builder
	charIndex := 0
	for si, run := range runs {
		for gi, r := range run.runes {
			if isSpaceRune(r) {
				width := run.adv[gi]
				info := model.SpaceInfo{
					Type:      model.SpaceReal,
					XStart:    run.x[gi],
					XEnd:      run.x[gi] + width,
					Width:     width,
					CharIndex: charIndex,
					SpanIndex: si,
				}
				if tabMin > 0 && width >= tabMin {
					info.Type = model.SpaceVirtualTab
				}
				a.Spaces = append(a.Spaces, info)
			}
			text.WriteRune(r)
			charIndex++
		}
		if si == len(runs)-1 {
			continue
		}
		gap := runs[si+1].startX - run.endX
		if gap < wordGapMin {
			continue
		}
		info := model.SpaceInfo{
			Type:      model.SpaceWordGap,
			XStart:    run.endX,
			XEnd:      runs[si+1].startX,
			Width:     gap,
			CharIndex: charIndex,
			SpanIndex: si,
			InterSpan: true,
		}
		ch := ' '
		if tabMin > 0 && gap >= tabMin {
			info.Type = model.SpaceVirtualTab
			ch = '\t'
		}
		a.Spaces = append(a.Spaces, info)
		text.WriteRune(ch)
		charIndex++
	}

	assembled := text.String()
	a.WordBoundaries = boundaries(assembled, a.Spaces)
	a.AverageSpaceWidth, a.SpaceVariance = spaceStats(a.Spaces)
	a.Consistent = a.SpaceVariance <= (0.25*a.AverageSpaceWidth)*(0.25*a.AverageSpaceWidth)
	return a
}

// ReconstructWithSpaces assembles the line's visible text with word gaps
// rendered as spaces and tab-width gaps as tabs.
func (m *SpaceMapper) ReconstructWithSpaces(line *model.TextLine, page *model.PageSpans) string {
	return m.assembleText(line.Spans(page), line.DominantSize)
}

// assembleText is the shared text assembly used by both the mapper and
// line aggregation, so line text and space analysis always agree on
// character indices.
func (m *SpaceMapper) assembleText(spans []*model.TextSpanMetrics, dominantSize float64) string {
	if len(spans) == 0 {
		return ""
	}
	runs := make([]glyphRun, len(spans))
	for i, s := range spans {
		runs[i] = flatten(s)
	}
	avgAdvance := averageAdvance(runs)
	wordGapMin := dominantSize * m.cfg.WordGapRatio
	if wordGapMin <= 0 {
		wordGapMin = avgAdvance
	}
	tabMin := avgAdvance * m.cfg.VirtualTabRatio

	var b strings.Builder
	for i, run := range runs {
		b.WriteString(run.span.Text)
		if i == len(runs)-1 {
			continue
		}
		gap := runs[i+1].startX - run.endX
		switch {
		case tabMin > 0 && gap >= tabMin:
			b.WriteByte('\t')
		case gap >= wordGapMin:
			b.WriteByte(' ')
		}
	}
	return b.String()
}

// PreserveSpacingForEdit maps the spaces of replacement text onto the
// measured widths of the original gaps, in order. Surplus spaces in the
// new text get the line's average space width, so columns to the right
// of the edit keep their positions when the space count is unchanged.
func (m *SpaceMapper) PreserveSpacingForEdit(a *model.SpaceAnalysis, newText string) []float64 {
	avg := a.AverageSpaceWidth
	if avg <= 0 {
		avg = averageSpaceOf(a)
	}
	var widths []float64
	next := 0
	for _, r := range newText {
		if !isSpaceRune(r) {
			continue
		}
		if next < len(a.Spaces) {
			widths = append(widths, a.Spaces[next].Width)
			next++
			continue
		}
		widths = append(widths, avg)
	}
	return widths
}

func averageSpaceOf(a *model.SpaceAnalysis) float64 {
	if len(a.Spaces) == 0 {
		return 0
	}
	var sum float64
	for _, s := range a.Spaces {
		sum += s.Width
	}
	return sum / float64(len(a.Spaces))
}

func averageAdvance(runs []glyphRun) float64 {
	var sum float64
	n := 0
	for _, run := range runs {
		for gi, adv := range run.adv {
			if adv <= 0 || isSpaceRune(run.runes[gi]) {
				continue
			}
			sum += adv
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}

func spaceStats(spaces []model.SpaceInfo) (mean, variance float64) {
	measured := make([]float64, 0, len(spaces))
	for _, s := range spaces {
		if s.Type == model.SpaceVirtualTab {
			continue
		}
		measured = append(measured, s.Width)
	}
	if len(measured) == 0 {
		return 0, 0
	}
	for _, w := range measured {
		mean += w
	}
	mean /= float64(len(measured))
	for _, w := range measured {
		d := w - mean
		variance += d * d
	}
	variance /= float64(len(measured))
	if math.IsNaN(variance) {
		variance = 0
	}
	return mean, variance
}

func boundaries(text string, spaces []model.SpaceInfo) []model.WordBoundary {
	runes := []rune(text)
	var out []model.WordBoundary
	for _, s := range spaces {
		wb := model.WordBoundary{
			XPosition:  s.XStart,
			CharIndex:  s.CharIndex,
			SpaceWidth: s.Width,
		}
		wb.WordBefore = wordBefore(runes, s.CharIndex)
		wb.WordAfter = wordAfter(runes, s.CharIndex)
		out = append(out, wb)
	}
	return out
}

func wordBefore(runes []rune, idx int) string {
	end := idx
	if end > len(runes) {
		end = len(runes)
	}
	start := end
	for start > 0 && !isSpaceRune(runes[start-1]) {
		start--
	}
	return string(runes[start:end])
}

func wordAfter(runes []rune, idx int) string {
	start := idx + 1
	if start >= len(runes) {
		return ""
	}
	end := start
	for end < len(runes) && !isSpaceRune(runes[end]) {
		end++
	}
	return string(runes[start:end])
}
