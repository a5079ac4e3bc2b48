// Package layout reconstructs the visual structure a content stream only
// implies: which spans sit on one line, which lines form a paragraph,
// where the word breaks are, and what baseline grid the page is set on.
// Everything here is derived and non-owning; spans stay in their page
// result set and are referenced by identifier.
package layout

import (
	"sort"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/bidi"

	"github.com/Oriol-1/modificador-pdf/model"
	"github.com/Oriol-1/modificador-pdf/observability"
)

// Config tunes the aggregation heuristics.
type Config struct {
	// BaselineToleranceRatio scales the smaller font size involved when
	// deciding whether two spans share a baseline.
	BaselineToleranceRatio float64
	// HeadingSizeRatio is the dominant-size multiple over the page body
	// size at which a paragraph reads as a heading.
	HeadingSizeRatio float64
	// IndentThreshold is the horizontal offset, in text space units, at
	// which an indentation change signals a paragraph boundary.
	IndentThreshold float64
	// ParagraphLeadingRatio is the multiple of the running leading at
	// which a vertical gap signals a paragraph boundary.
	ParagraphLeadingRatio float64

	Logger observability.Logger
}

// DefaultConfig returns the production aggregation defaults.
func DefaultConfig() Config {
	return Config{
		BaselineToleranceRatio: 0.2,
		HeadingSizeRatio:       1.2,
		IndentThreshold:        10.0,
		ParagraphLeadingRatio:  1.5,
	}
}

// Aggregator groups spans into lines and lines into paragraphs.
type Aggregator struct {
	cfg    Config
	log    observability.Logger
	spaces *SpaceMapper
}

// NewAggregator returns an Aggregator with the given configuration; zero
// fields fall back to the defaults.
func NewAggregator(cfg Config) *Aggregator {
	def := DefaultConfig()
	if cfg.BaselineToleranceRatio <= 0 {
		cfg.BaselineToleranceRatio = def.BaselineToleranceRatio
	}
	if cfg.HeadingSizeRatio <= 0 {
		cfg.HeadingSizeRatio = def.HeadingSizeRatio
	}
	if cfg.IndentThreshold <= 0 {
		cfg.IndentThreshold = def.IndentThreshold
	}
	if cfg.ParagraphLeadingRatio <= 0 {
		cfg.ParagraphLeadingRatio = def.ParagraphLeadingRatio
	}
	if cfg.Logger == nil {
		cfg.Logger = observability.NopLogger{}
	}
	return &Aggregator{
		cfg:    cfg,
		log:    cfg.Logger,
		spaces: NewSpaceMapper(SpaceConfig{}),
	}
}

// lineCluster accumulates spans believed to share a baseline.
type lineCluster struct {
	spans    []*model.TextSpanMetrics
	baseline float64 // running mean
	minSize  float64
}

func (c *lineCluster) accepts(s *model.TextSpanMetrics, ratio float64) bool {
	size := c.minSize
	if s.FontSize > 0 && s.FontSize < size {
		size = s.FontSize
	}
	tol := size * ratio
	if tol <= 0 {
		tol = 1
	}
	d := s.BaselineY - c.baseline
	if d < 0 {
		d = -d
	}
	return d <= tol
}

func (c *lineCluster) add(s *model.TextSpanMetrics) {
	c.spans = append(c.spans, s)
	n := float64(len(c.spans))
	c.baseline += (s.BaselineY - c.baseline) / n
	if s.FontSize > 0 && (c.minSize == 0 || s.FontSize < c.minSize) {
		c.minSize = s.FontSize
	}
}

// Lines groups the page's spans into baseline-ordered lines. Span order
// within a line is left to right; line order is top of page first. Line
// identifiers are deterministic for a given parse result.
func (a *Aggregator) Lines(page *model.PageSpans) []model.TextLine {
	if len(page.Spans) == 0 {
		return nil
	}
	spans := make([]*model.TextSpanMetrics, 0, len(page.Spans))
	for i := range page.Spans {
		spans = append(spans, &page.Spans[i])
	}
	sort.SliceStable(spans, func(i, j int) bool {
		return spans[i].BaselineY > spans[j].BaselineY
	})

	var clusters []*lineCluster
	for _, s := range spans {
		last := len(clusters) - 1
		if last >= 0 && clusters[last].accepts(s, a.cfg.BaselineToleranceRatio) {
			clusters[last].add(s)
			continue
		}
		c := &lineCluster{}
		c.add(s)
		clusters = append(clusters, c)
	}

	lines := make([]model.TextLine, 0, len(clusters))
	for i, c := range clusters {
		sort.SliceStable(c.spans, func(x, y int) bool {
			return c.spans[x].Origin.X < c.spans[y].Origin.X
		})
		lines = append(lines, a.buildLine(page, c, i))
	}

	left := contentLeft(lines)
	for i := range lines {
		lines[i].Indentation = lines[i].BBox.LLX - left
	}
	a.annotateAlignment(lines)
	a.log.Debug("lines aggregated",
		observability.Int("page", page.PageIndex),
		observability.Int(observability.MetricLineCount, len(lines)))
	return lines
}

func (a *Aggregator) buildLine(page *model.PageSpans, c *lineCluster, index int) model.TextLine {
	line := model.TextLine{
		ID:        model.NewLineID(page.PageIndex, index),
		PageIndex: page.PageIndex,
		Index:     index,
		Baseline:  c.baseline,
	}
	sizeWeight := map[float64]float64{}
	fontWeight := map[string]float64{}
	for i, s := range c.spans {
		line.SpanIDs = append(line.SpanIDs, s.ID)
		if i == 0 {
			line.BBox = s.BBox
		} else {
			line.BBox = line.BBox.Union(s.BBox)
		}
		w := s.Width()
		sizeWeight[s.FontSize] += w
		fontWeight[s.FontFamily] += w
	}
	line.DominantSize = heaviestSize(sizeWeight)
	line.DominantFont = heaviestFont(fontWeight)
	line.Ascent = line.DominantSize * model.AscentRatio
	line.Descent = line.DominantSize * model.DescentRatio
	line.Text = a.spaces.assembleText(c.spans, line.DominantSize)
	line.Direction = detectDirection(line.Text)
	return line
}

func heaviestSize(weights map[float64]float64) float64 {
	var best, bestW float64
	for size, w := range weights {
		if w > bestW || (w == bestW && size > best) {
			best, bestW = size, w
		}
	}
	return best
}

func heaviestFont(weights map[string]float64) string {
	var best string
	var bestW float64
	for font, w := range weights {
		if w > bestW || (w == bestW && font < best) {
			best, bestW = font, w
		}
	}
	return best
}

func contentLeft(lines []model.TextLine) float64 {
	left := 0.0
	for i, l := range lines {
		if i == 0 || l.BBox.LLX < left {
			left = l.BBox.LLX
		}
	}
	return left
}

// annotateAlignment guesses per-line alignment from the content bounds of
// the whole page. Single-line pages carry too little signal and stay
// unknown.
func (a *Aggregator) annotateAlignment(lines []model.TextLine) {
	if len(lines) < 2 {
		return
	}
	var left, right float64
	for i, l := range lines {
		if i == 0 {
			left, right = l.BBox.LLX, l.BBox.URX
			continue
		}
		if l.BBox.LLX < left {
			left = l.BBox.LLX
		}
		if l.BBox.URX > right {
			right = l.BBox.URX
		}
	}
	for i := range lines {
		l := &lines[i]
		tol := l.DominantSize
		if tol <= 0 {
			tol = 6
		}
		atLeft := l.BBox.LLX-left <= tol
		atRight := right-l.BBox.URX <= tol
		centered := !atLeft && !atRight &&
			absf((l.BBox.LLX-left)-(right-l.BBox.URX)) <= tol
		switch {
		case atLeft && atRight:
			l.Alignment = model.AlignJustified
		case atLeft:
			l.Alignment = model.AlignLeft
		case atRight:
			l.Alignment = model.AlignRight
		case centered:
			l.Alignment = model.AlignCenter
		default:
			l.Alignment = model.AlignLeft
		}
	}
}

// Paragraphs groups consecutive lines into paragraphs using vertical
// spacing, size changes and indentation shifts as boundaries, then
// classifies each paragraph. Lines gain their back-reference in place.
func (a *Aggregator) Paragraphs(page *model.PageSpans, lines []model.TextLine) []model.TextParagraph {
	if len(lines) == 0 {
		return nil
	}
	bodySize := medianSize(lines)

	var groups [][]int
	current := []int{0}
	for i := 1; i < len(lines); i++ {
		if a.breaksParagraph(lines, current, i, bodySize) {
			groups = append(groups, current)
			current = []int{i}
			continue
		}
		current = append(current, i)
	}
	groups = append(groups, current)

	paras := make([]model.TextParagraph, 0, len(groups))
	for seq, g := range groups {
		p := a.buildParagraph(page, lines, g, seq, bodySize)
		for _, li := range g {
			lines[li].ParagraphID = p.ID
		}
		paras = append(paras, p)
	}
	return paras
}

func (a *Aggregator) breaksParagraph(lines []model.TextLine, current []int, next int, bodySize float64) bool {
	prev := lines[current[len(current)-1]]
	cand := lines[next]

	// Vertical gap well past the running leading.
	leading := prev.Baseline - cand.Baseline
	expected := prev.DominantSize * lineHeightRatio
	if len(current) >= 2 {
		first := lines[current[0]]
		expected = (first.Baseline - prev.Baseline) / float64(len(current)-1)
	}
	if expected > 0 && leading > expected*a.cfg.ParagraphLeadingRatio {
		return true
	}

	// Size jump in either direction reads as a structure change.
	if prev.DominantSize > 0 && cand.DominantSize > 0 {
		ratio := cand.DominantSize / prev.DominantSize
		if ratio >= a.cfg.HeadingSizeRatio || ratio <= 1/a.cfg.HeadingSizeRatio {
			return true
		}
	}

	// A fresh first-line indent.
	if cand.Indentation-prev.Indentation > a.cfg.IndentThreshold {
		return true
	}
	// A return to the margin after indented continuation lines.
	if prev.Indentation-cand.Indentation > a.cfg.IndentThreshold && len(current) >= 2 {
		return true
	}
	_ = bodySize
	return false
}

func (a *Aggregator) buildParagraph(page *model.PageSpans, lines []model.TextLine, group []int, seq int, bodySize float64) model.TextParagraph {
	p := model.TextParagraph{
		ID:        model.NewParagraphID(page.PageIndex, seq),
		PageIndex: page.PageIndex,
	}
	sizeWeight := map[float64]float64{}
	fontWeight := map[string]float64{}
	for i, li := range group {
		l := lines[li]
		p.LineIDs = append(p.LineIDs, l.ID)
		if i == 0 {
			p.BBox = l.BBox
		} else {
			p.BBox = p.BBox.Union(l.BBox)
		}
		sizeWeight[l.DominantSize] += l.BBox.Width()
		fontWeight[l.DominantFont] += l.BBox.Width()
	}
	p.DominantSize = heaviestSize(sizeWeight)
	p.DominantFont = heaviestFont(fontWeight)

	first := lines[group[0]]
	p.FirstLineIndent = first.Indentation
	p.LeftMargin = p.BBox.LLX
	p.RightMargin = p.BBox.URX
	if len(group) > 1 {
		rest := p.BBox
		rest.LLX = lines[group[1]].BBox.LLX
		for _, li := range group[1:] {
			if lines[li].BBox.LLX < rest.LLX {
				rest.LLX = lines[li].BBox.LLX
			}
		}
		p.FirstLineIndent = first.BBox.LLX - rest.LLX
		p.LeftMargin = rest.LLX
	}

	if len(group) > 1 {
		span := lines[group[0]].Baseline - lines[group[len(group)-1]].Baseline
		p.LineSpacing = span / float64(len(group)-1)
	} else if p.DominantSize > 0 {
		p.LineSpacing = p.DominantSize * lineHeightRatio
	}
	p.SpacingMode = classifySpacing(p.LineSpacing, p.DominantSize)

	a.classifyParagraph(&p, lines, group, bodySize)
	return p
}

func classifySpacing(leading, size float64) model.LineSpacingMode {
	if leading <= 0 || size <= 0 {
		return model.SpacingUnknown
	}
	ratio := leading / size
	switch {
	case ratio <= 1.3:
		return model.SpacingSingle
	case ratio <= 1.7:
		return model.SpacingOnePointFive
	case ratio <= 2.3:
		return model.SpacingDouble
	default:
		return model.SpacingCustom
	}
}

var listMarkers = []string{"•", "◦", "▪", "-", "–", "*"}

func (a *Aggregator) classifyParagraph(p *model.TextParagraph, lines []model.TextLine, group []int, bodySize float64) {
	text := strings.TrimSpace(lines[group[0]].Text)

	if marker := listMarkerOf(text); marker != "" {
		p.Type = model.ParagraphListItem
		p.ListMarker = marker
		return
	}
	if bodySize > 0 && p.DominantSize >= bodySize*a.cfg.HeadingSizeRatio {
		p.Type = model.ParagraphHeading
		ratio := p.DominantSize / bodySize
		switch {
		case ratio >= 1.8:
			p.HeadingLevel = 1
		case ratio >= 1.5:
			p.HeadingLevel = 2
		default:
			p.HeadingLevel = 3
		}
		return
	}
	p.Type = model.ParagraphNormal
}

func listMarkerOf(text string) string {
	for _, m := range listMarkers {
		if strings.HasPrefix(text, m+" ") {
			return m
		}
	}
	// Numbered items: digits followed by '.' or ')'.
	i := 0
	for i < len(text) && text[i] >= '0' && text[i] <= '9' {
		i++
	}
	if i > 0 && i < len(text) && (text[i] == '.' || text[i] == ')') {
		if i+1 < len(text) && text[i+1] == ' ' {
			return text[:i+1]
		}
	}
	return ""
}

func medianSize(lines []model.TextLine) float64 {
	sizes := make([]float64, 0, len(lines))
	for _, l := range lines {
		if l.DominantSize > 0 {
			sizes = append(sizes, l.DominantSize)
		}
	}
	if len(sizes) == 0 {
		return 0
	}
	sort.Float64s(sizes)
	return sizes[len(sizes)/2]
}

// detectDirection classifies the reading direction of text using the
// Unicode bidirectional classes.
func detectDirection(text string) model.Direction {
	var ltr, rtl int
	for len(text) > 0 {
		props, size := bidi.LookupString(text)
		if size == 0 {
			break
		}
		switch props.Class() {
		case bidi.L:
			ltr++
		case bidi.R, bidi.AL:
			rtl++
		}
		text = text[size:]
	}
	switch {
	case ltr > 0 && rtl > 0:
		return model.DirectionMixed
	case rtl > 0:
		return model.DirectionRTL
	case ltr > 0:
		return model.DirectionLTR
	default:
		return model.DirectionNeutral
	}
}

func absf(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

func isSpaceRune(r rune) bool { return unicode.IsSpace(r) }
