package editor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/Oriol-1/modificador-pdf/coords"
	"github.com/Oriol-1/modificador-pdf/fonts"
	"github.com/Oriol-1/modificador-pdf/hittest"
	"github.com/Oriol-1/modificador-pdf/layout"
	"github.com/Oriol-1/modificador-pdf/model"
	"github.com/Oriol-1/modificador-pdf/observability"
)

// Config tunes a Rewriter.
type Config struct {
	Layout layout.Config
	// Fonts carries the fit and style thresholds; zero fields fall back
	// to the fonts defaults.
	Fonts  fonts.Config
	Logger observability.Logger
	Tracer observability.Tracer
}

// Rewriter owns the editable state of one page: the span set, its layout
// and hit index, the overlay stack and the change log. A per-page mutex
// serializes edits; a second edit on the same page starts only after the
// first reaches a terminal state.
type Rewriter struct {
	log    observability.Logger
	tracer observability.Tracer

	page     *model.PageSpans
	resolver *fonts.Resolver
	measurer *fonts.Measurer
	fit      fonts.Config
	agg      *layout.Aggregator
	tracker  *layout.BaselineTracker
	tester   *hittest.Tester

	mu       sync.Mutex
	lines    []model.TextLine
	overlays overlayStack
	changes  []model.ChangeRecord
	// origSizes remembers each span's size before its first edit; the
	// size-reduction floor is validated against these, not the current
	// size, so repeated edits cannot shrink a span step by step.
	origSizes map[model.SpanID]float64
	seq       int
}

// NewRewriter builds the editable view of a parsed page. fontSet is the
// same resource-name map the parser ran with. Span weight and slant are
// annotated up front so later edits rarely face an unknown style.
func NewRewriter(cfg Config, page *model.PageSpans, fontSet map[string]*model.FontInfo) *Rewriter {
	log := cfg.Logger
	if log == nil {
		log = observability.NopLogger{}
	}
	tracer := cfg.Tracer
	if tracer == nil {
		tracer = observability.NopTracer()
	}
	resolver := fonts.NewResolver(cfg.Fonts, fontSet, log)
	rw := &Rewriter{
		log:       log,
		tracer:    tracer,
		page:      page,
		resolver:  resolver,
		measurer:  fonts.NewMeasurer(log),
		fit:       resolver.Fit(),
		agg:       layout.NewAggregator(cfg.Layout),
		tracker:   layout.NewBaselineTracker(layout.BaselineConfig{}),
		tester:    hittest.NewTester(log),
		origSizes: make(map[model.SpanID]float64),
	}
	for i := range page.Spans {
		rw.resolver.DetectFont(&page.Spans[i])
	}
	rw.lines = rw.agg.Lines(page)
	rw.tester.Rebuild(page, rw.lines)
	return rw
}

// Lines returns the current line aggregation.
func (rw *Rewriter) Lines() []model.TextLine {
	rw.mu.Lock()
	defer rw.mu.Unlock()
	return rw.lines
}

// HitTester returns the page's hit tester. It is safe for concurrent use
// and always reflects the last committed state.
func (rw *Rewriter) HitTester() *hittest.Tester { return rw.tester }

// Changes returns the committed change records in commit order.
func (rw *Rewriter) Changes() []model.ChangeRecord {
	rw.mu.Lock()
	defer rw.mu.Unlock()
	out := make([]model.ChangeRecord, len(rw.changes))
	copy(out, rw.changes)
	return out
}

// Overlays returns the painted overlay layers, bottom first.
func (rw *Rewriter) Overlays() []OverlayLayer {
	rw.mu.Lock()
	defer rw.mu.Unlock()
	out := make([]OverlayLayer, len(rw.overlays.layers))
	copy(out, rw.overlays.layers)
	return out
}

// Edit is one in-flight text replacement. It holds the page lock until
// it reaches a terminal state via Commit or Abandon.
type Edit struct {
	rw     *Rewriter
	state  State
	done   bool
	spanID model.SpanID
	intent StyleIntent

	newText   string
	finalText string
	res       fonts.Resolution
	origSize  float64
	baseSize  float64 // size before the span's first edit
	fontSize  float64
	tracking  float64
	options   []FitOption
	chosen    *FitOption
	warnings  []string
}

// ReplaceText starts an edit of the given span. It blocks while another
// edit on this page is in flight. On success the edit is validated and
// ready to commit; an *OverflowError returns the edit too, parked until
// the caller picks one of the offered fit options. Any other error
// terminates the edit with no side effects.
func (rw *Rewriter) ReplaceText(ctx context.Context, spanID model.SpanID, newText string, intent StyleIntent) (*Edit, error) {
	ctx, span := rw.tracer.StartSpan(ctx, "editor.validate")
	defer span.Finish()
	start := time.Now()
	defer func() {
		rw.log.Debug("edit validated",
			observability.String("span", string(spanID)),
			observability.Float64(observability.MetricEditValidate, time.Since(start).Seconds()))
	}()

	rw.mu.Lock()
	e := &Edit{
		rw:     rw,
		state:  StateValidating,
		spanID: spanID,
		intent: intent,
		newText: newText,
	}
	err := e.validate(ctx)
	if err == nil {
		return e, nil
	}
	var overflow *OverflowError
	if errors.As(err, &overflow) {
		if len(overflow.Options) == 0 {
			// Nothing can make this fit; there is no choice to park for.
			e.finish(StateRejected)
			return nil, err
		}
		span.SetTag("options", len(overflow.Options))
		return e, err
	}
	span.SetError(err)
	e.finish(StateRejected)
	return nil, err
}

func (e *Edit) validate(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	rw := e.rw
	target := rw.page.Span(e.spanID)
	if target == nil {
		return errors.Wrapf(ErrSpanNotFound, "%s", e.spanID)
	}

	if e.intent.Bold.IsKnown() && target.Bold == model.Unknown && !e.intent.ForceStyle {
		return ErrAmbiguousStyle
	}
	if e.intent.Italic.IsKnown() && target.Italic == model.Unknown && !e.intent.ForceStyle {
		return ErrAmbiguousStyle
	}

	e.res = rw.resolver.Resolve(target.FontName)
	e.origSize = target.FontSize
	e.fontSize = target.FontSize
	if e.intent.FontSize > 0 {
		e.fontSize = e.intent.FontSize
	}
	base, seen := rw.origSizes[e.spanID]
	if !seen {
		base = target.FontSize
		rw.origSizes[e.spanID] = base
	}
	e.baseSize = base
	e.finalText = e.newText

	available := target.Width()
	m := rw.measurer.Measure(e.newText, e.res.Font, e.fontSize)
	required := m.Width
	// The old line's measured height is what the region was laid out
	// for; a grown intent size must not overrun it.
	availableH := rw.measurer.Measure(target.Text, e.res.Font, e.origSize).Height
	tooTall := m.Height > availableH
	if required <= available && !tooTall {
		return nil
	}

	// Tracking and clipping shed width only; they cannot help an edit
	// that is too tall.
	if !tooTall {
		if pct, ok := rw.fit.ReduceTracking(required, available); ok {
			e.options = append(e.options, FitOption{
				Kind:                 FitReduceTracking,
				TrackingReductionPct: pct,
			})
		}
	}
	if size, ok := rw.fit.ReduceSize(required, available, e.fontSize, e.baseSize); ok {
		if tooTall {
			h, hok := rw.fit.ReduceSize(m.Height, availableH, e.fontSize, e.baseSize)
			if !hok {
				ok = false
			} else if h < size {
				size = h
			}
		}
		if ok {
			e.options = append(e.options, FitOption{Kind: FitReduceSize, NewFontSize: size})
		}
	}
	if !tooTall {
		e.options = append(e.options, FitOption{
			Kind:        FitClipWithEllipsis,
			ClippedText: e.clipToFit(available),
		})
	}
	return &OverflowError{
		SpanID:          e.spanID,
		Required:        required,
		Available:       available,
		RequiredHeight:  m.Height,
		AvailableHeight: availableH,
		Options:         e.options,
	}
}

const ellipsis = "…"

func (e *Edit) clipToFit(available float64) string {
	runes := []rune(e.newText)
	for n := len(runes); n > 0; n-- {
		cand := string(runes[:n]) + ellipsis
		if e.rw.measurer.Measure(cand, e.res.Font, e.fontSize).Width <= available {
			return cand
		}
	}
	return ellipsis
}

// State reports the edit's lifecycle position.
func (e *Edit) State() State { return e.state }

// Options returns the fit options offered by validation, best first.
// Empty when the text fit naturally.
func (e *Edit) Options() []FitOption { return e.options }

// Choose applies one of the offered fit options. Required before Commit
// on an overflowing edit.
func (e *Edit) Choose(opt FitOption) error {
	if e.state != StateValidating || len(e.options) == 0 {
		return ErrBadState
	}
	switch opt.Kind {
	case FitReduceTracking:
		e.tracking = opt.TrackingReductionPct
	case FitReduceSize:
		if opt.NewFontSize <= 0 {
			return errors.Wrap(ErrBadState, "size option without a size")
		}
		e.fontSize = opt.NewFontSize
	case FitClipWithEllipsis:
		if opt.ClippedText == "" {
			return errors.Wrap(ErrBadState, "clip option without text")
		}
		e.finalText = opt.ClippedText
	default:
		return errors.Wrapf(ErrBadState, "unknown fit option %d", opt.Kind)
	}
	e.chosen = &opt
	return nil
}

// Abandon terminates the edit with no side effects and releases the page.
func (e *Edit) Abandon() {
	if e.done {
		return
	}
	e.finish(StateRejected)
}

// finish moves to a terminal state and releases the page lock once.
func (e *Edit) finish(s State) {
	e.state = s
	if !e.done {
		e.done = true
		e.rw.mu.Unlock()
	}
}

// Commit applies the edit. The returned record is the one appended to
// the page's change log. On any failure the page, overlay stack and hit
// index are left exactly as they were and the edit ends Rejected.
func (e *Edit) Commit(ctx context.Context) (model.ChangeRecord, error) {
	if e.done || e.state != StateValidating {
		return model.ChangeRecord{}, ErrBadState
	}
	if len(e.options) > 0 && e.chosen == nil {
		return model.ChangeRecord{}, ErrChoiceRequired
	}
	e.state = StateCommitting

	rw := e.rw
	_, span := rw.tracer.StartSpan(ctx, "editor.commit")
	defer span.Finish()
	start := time.Now()

	target := rw.page.Span(e.spanID)
	if target == nil {
		e.finish(StateRejected)
		return model.ChangeRecord{}, errors.Wrap(ErrCommitFailed, "span disappeared")
	}
	old := *target

	strategy := e.pickStrategy(&old)
	boldStrategy := model.BoldNone
	if e.intent.Bold == model.Yes && old.Bold != model.Yes {
		boldStrategy = rw.fit.HandleBold(e.res)
		if boldStrategy == model.BoldWarning {
			e.warnings = append(e.warnings, "bold emphasis approximated without a bold font")
		}
	}

	next := e.buildSpan(&old)
	if e.fontSize < old.FontSize {
		e.reposition(&old, &next)
	}

	var layer *OverlayLayer
	if strategy == model.StrategyOverlay {
		l := rw.overlays.push(next.ID, next.BBox)
		layer = &l
	}

	// The last moment failure can still be honored cleanly.
	if err := ctx.Err(); err != nil {
		if layer != nil {
			rw.overlays.pop()
		}
		e.finish(StateRejected)
		return model.ChangeRecord{}, errors.Wrap(ErrCommitFailed, err.Error())
	}
	if !rw.page.Replace(next) {
		if layer != nil {
			rw.overlays.pop()
		}
		e.finish(StateRejected)
		return model.ChangeRecord{}, errors.Wrap(ErrCommitFailed, "span replacement refused")
	}

	record := model.ChangeRecord{
		ID:           fmt.Sprintf("change-%d-%d", rw.page.PageIndex, rw.seq),
		PageIndex:    rw.page.PageIndex,
		SpanID:       e.spanID,
		CreatedAt:    time.Now().UTC(),
		OldText:      old.Text,
		NewText:      next.Text,
		FontUsed:     next.FontName,
		WasFallback:  e.res.WasFallback,
		Strategy:     strategy,
		BoldStrategy: boldStrategy,
		Warnings:     e.warnings,
	}
	record.TrackingAdjustmentPct = e.tracking
	if e.fontSize != e.origSize && e.origSize > 0 {
		record.SizeAdjustmentPct = (1 - e.fontSize/e.origSize) * 100
	}
	rw.seq++
	rw.changes = append(rw.changes, record)

	rw.lines = rw.agg.Lines(rw.page)
	rw.tester.Rebuild(rw.page, rw.lines)

	rw.log.Info("edit committed",
		observability.String("span", string(e.spanID)),
		observability.String("strategy", strategy.String()),
		observability.Int("page", rw.page.PageIndex),
		observability.Float64(observability.MetricEditCommit, time.Since(start).Seconds()))
	e.finish(StateCommitted)
	return record, nil
}

// pickStrategy decides overlay versus substitution. Substitution rewrites
// the original show operator and is only safe when the span's font is not
// a subset, or the subset demonstrably covers every glyph of the new
// text. A fallback font always overlays; the original operator could not
// reference it.
func (e *Edit) pickStrategy(old *model.TextSpanMetrics) model.EditStrategy {
	if e.res.WasFallback {
		return model.StrategyOverlay
	}
	if old.Embedding != model.SubsetEmbedded {
		return model.StrategySubstitution
	}
	for _, r := range e.finalText {
		if r > 0xff || !e.res.Font.HasGlyph(byte(r)) {
			return model.StrategyOverlay
		}
	}
	return model.StrategySubstitution
}

// reposition moves a size-reduced span to the baseline the page's
// vertical rhythm calls for. The span's bbox height tracks its size, so
// the height delta is the size delta. The shift is applied in device
// space, sandwiched between the CTM and its inverse; a singular CTM
// leaves the baseline alone.
func (e *Edit) reposition(old, next *model.TextSpanMetrics) {
	rw := e.rw
	grid := rw.tracker.AnalyzePage(rw.page.PageIndex, rw.lines)
	delta := old.FontSize - e.fontSize
	baseline := rw.tracker.CalculateNewPosition(grid, old.BaselineY, delta)
	if baseline == old.BaselineY {
		return
	}
	inv, err := old.CTM.Inverse()
	if err != nil {
		return
	}
	shift := coords.Translate(0, baseline-old.BaselineY)
	next.TextMatrix = next.TextMatrix.Mul(old.CTM).Mul(shift).Mul(inv)
	next.DeriveBBox()
}

// buildSpan assembles the replacement span: same identity and position,
// new text and style. Glyph advances shared with the old text keep their
// measured widths so the untouched part of the run does not shift.
func (e *Edit) buildSpan(old *model.TextSpanMetrics) model.TextSpanMetrics {
	next := *old
	next.Text = e.finalText
	next.FontSize = e.fontSize

	oldRunes := []rune(old.Text)
	scale := 1.0
	if e.tracking > 0 {
		scale = 1 / (1 + e.tracking/100)
	}
	sizeRatio := 1.0
	if e.origSize > 0 {
		sizeRatio = e.fontSize / e.origSize
	}

	widths := make([]float64, 0, len(e.finalText))
	i := 0
	for _, r := range e.finalText {
		var w float64
		switch {
		case i < len(oldRunes) && r == oldRunes[i] && i < len(old.GlyphWidths):
			w = old.GlyphWidths[i] * sizeRatio
		case r <= 0xff:
			w = e.res.Font.GlyphWidth(byte(r)) / 1000 * e.fontSize
		default:
			w = 0.5 * e.fontSize
		}
		widths = append(widths, w*scale)
		i++
	}
	next.GlyphWidths = widths

	if e.res.WasFallback {
		next.FontName = e.res.Font.BaseFont
		next.FontFamily = model.StripSubsetTag(e.res.Font.BaseFont)
		next.WasFallback = true
		next.FallbackFrom = e.res.FallbackFrom
	}
	if e.intent.Bold.IsKnown() {
		next.Bold = e.intent.Bold
	}
	if e.intent.Italic.IsKnown() {
		next.Italic = e.intent.Italic
	}
	if e.intent.Color != "" {
		next.FillColor = e.intent.Color
	}
	next.DeriveBBox()
	return next
}
