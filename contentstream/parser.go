// Package contentstream interprets the operator stream of one page and
// reconstructs the typographic structure of its text: every show operator,
// combined with the text state in effect, yields immutable span records
// with full geometry.
//
// The parser is tolerant by design. Malformed operators are skipped, bad
// numeric operands fall back to the previous state value, and both are
// recorded as diagnostics on the page result; a damaged stream degrades
// the analysis but never aborts it.
package contentstream

import (
	"context"
	"fmt"
	"io"
	"math"
	"time"

	"github.com/pkg/errors"

	"github.com/Oriol-1/modificador-pdf/coords"
	"github.com/Oriol-1/modificador-pdf/model"
	"github.com/Oriol-1/modificador-pdf/observability"
	"github.com/Oriol-1/modificador-pdf/scanner"
)

// Config tunes a Processor.
type Config struct {
	// WordGapAdjustment is the magnitude, in thousandths of an em, at
	// which a negative TJ kerning adjustment reads as a word gap and
	// splits the current run. Tuned empirically; most producers emit word
	// gaps in the -200..-600 range.
	WordGapAdjustment float64
	// MaxStringLength caps decoded show strings.
	MaxStringLength int

	Logger observability.Logger
	Tracer observability.Tracer
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{WordGapAdjustment: 200}
}

// Processor parses content streams. A Processor is stateless across calls;
// each Process call owns its state for the duration of the pass and
// discards it, so one Processor may serve concurrent page workers.
type Processor struct {
	cfg    Config
	log    observability.Logger
	tracer observability.Tracer
}

// NewProcessor returns a Processor with the given configuration.
func NewProcessor(cfg Config) *Processor {
	if cfg.WordGapAdjustment <= 0 {
		cfg.WordGapAdjustment = 200
	}
	log := cfg.Logger
	if log == nil {
		log = observability.NopLogger{}
	}
	tracer := cfg.Tracer
	if tracer == nil {
		tracer = observability.NopTracer()
	}
	return &Processor{cfg: cfg, log: log, tracer: tracer}
}

// Process interprets stream and returns the page's span result set.
// fonts maps Tf resource names to the font metadata supplied by the
// document-access collaborator; missing entries degrade to fallback
// widths and a diagnostic, never an error.
func (p *Processor) Process(ctx context.Context, stream []byte, pageIndex int, fonts map[string]*model.FontInfo) (*model.PageSpans, error) {
	ctx, span := p.tracer.StartSpan(ctx, "contentstream.process")
	defer span.Finish()
	span.SetTag("page", pageIndex)
	start := time.Now()

	run := &parseRun{
		proc:  p,
		page:  &model.PageSpans{PageIndex: pageIndex},
		fonts: fonts,
		gs:    NewGraphicsState(),
	}
	sc := scanner.New(stream, scanner.Config{
		MaxStringLength: p.cfg.MaxStringLength,
		Page:            pageIndex,
	})

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		op, err := run.nextOperand(sc)
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Wrap(err, "contentstream: tokenize")
		}
		if op.tok.Type == scanner.TokenOperator {
			run.execute(op.tok)
			run.operands = run.operands[:0]
			continue
		}
		run.operands = append(run.operands, op)
	}
	if len(run.operands) > 0 {
		run.diag(model.DiagMalformedOperator, "", run.lastOffset,
			fmt.Sprintf("%d dangling operands at end of stream", len(run.operands)))
	}
	if run.stack.depth() > 0 {
		run.diag(model.DiagUnbalancedState, "q", run.lastOffset,
			fmt.Sprintf("%d unmatched saves at end of stream", run.stack.depth()))
	}

	p.log.Debug("content stream parsed",
		observability.Int("page", pageIndex),
		observability.Int(observability.MetricSpanCount, len(run.page.Spans)),
		observability.Int(observability.MetricDiagCount, len(run.page.Diagnostics)),
		observability.Float64(observability.MetricParseTime, time.Since(start).Seconds()))
	return run.page, nil
}

// operand is one value waiting for its operator: a scalar token or a
// collected array.
type operand struct {
	tok scanner.Token
	arr []scanner.Token
}

// parseRun owns all mutable state of one Process call.
type parseRun struct {
	proc     *Processor
	page     *model.PageSpans
	fonts    map[string]*model.FontInfo
	gs       GraphicsState
	stack    stateStack
	operands []operand
	inText   bool
	seq      int

	lastOffset int64
}

func (r *parseRun) diag(kind model.DiagnosticKind, operator string, offset int64, msg string) {
	r.page.Diagnostics = append(r.page.Diagnostics, model.Diagnostic{
		Kind:     kind,
		Operator: operator,
		Offset:   offset,
		Message:  msg,
	})
}

// nextOperand reads one operand or operator, collecting arrays whole and
// skipping dictionaries (marked-content property lists carry nothing the
// text model needs).
func (r *parseRun) nextOperand(sc *scanner.Scanner) (operand, error) {
	tok, err := sc.Next()
	if err != nil {
		return operand{}, err
	}
	r.lastOffset = tok.Pos
	switch tok.Type {
	case scanner.TokenArrayOpen:
		var arr []scanner.Token
		for {
			el, err := sc.Next()
			if err == io.EOF {
				r.diag(model.DiagMalformedOperator, "[", tok.Pos, "unterminated array")
				return operand{tok: tok, arr: arr}, nil
			}
			if err != nil {
				return operand{}, err
			}
			if el.Type == scanner.TokenArrayClose {
				return operand{tok: tok, arr: arr}, nil
			}
			arr = append(arr, el)
		}
	case scanner.TokenDictOpen:
		depth := 1
		for depth > 0 {
			el, err := sc.Next()
			if err == io.EOF {
				r.diag(model.DiagMalformedOperator, "<<", tok.Pos, "unterminated dictionary")
				break
			}
			if err != nil {
				return operand{}, err
			}
			switch el.Type {
			case scanner.TokenDictOpen:
				depth++
			case scanner.TokenDictClose:
				depth--
			}
		}
		return operand{tok: tok}, nil
	}
	return operand{tok: tok}, nil
}

// num returns the i-th operand (counted from the end of the operand list,
// so "last two" works regardless of junk earlier) as a float. On failure
// it returns prev and records the numeric-fallback diagnostic required
// for tolerant parsing.
func (r *parseRun) num(opName string, fromEnd int, prev float64) float64 {
	idx := len(r.operands) - 1 - fromEnd
	if idx < 0 {
		r.diag(model.DiagNumericFallback, opName, r.lastOffset,
			fmt.Sprintf("missing operand %d, keeping previous value %g", fromEnd, prev))
		return prev
	}
	tok := r.operands[idx].tok
	if tok.Type != scanner.TokenNumber || math.IsNaN(tok.Num) || math.IsInf(tok.Num, 0) {
		r.diag(model.DiagNumericFallback, opName, tok.Pos,
			fmt.Sprintf("operand %q is not a finite number, keeping previous value %g", tok.Str, prev))
		return prev
	}
	return tok.Num
}

func (r *parseRun) matrixOperands(opName string) (coords.Matrix, bool) {
	if len(r.operands) < 6 {
		r.diag(model.DiagMalformedOperator, opName, r.lastOffset,
			fmt.Sprintf("%s needs 6 operands, got %d", opName, len(r.operands)))
		return coords.Matrix{}, false
	}
	var m coords.Matrix
	for i := 0; i < 6; i++ {
		m[i] = r.num(opName, 5-i, 0)
	}
	return m, true
}

// graphics operators the text engine recognizes but has no use for; they
// consume their operands without diagnostics.
var ignoredOperators = map[string]bool{
	"w": true, "J": true, "j": true, "M": true, "d": true, "ri": true,
	"i": true, "gs": true, "m": true, "l": true, "c": true, "v": true,
	"y": true, "h": true, "re": true, "S": true, "s": true, "f": true,
	"F": true, "f*": true, "B": true, "B*": true, "b": true, "b*": true,
	"n": true, "W": true, "W*": true, "Do": true, "sh": true,
	"BMC": true, "BDC": true, "EMC": true, "MP": true, "DP": true,
	"cs": true, "CS": true, "sc": true, "SC": true, "scn": true, "SCN": true,
	"BI": true, "ID": true, "EI": true, "d0": true, "d1": true,
	"BX": true, "EX": true,
}

func (r *parseRun) execute(tok scanner.Token) {
	ts := &r.gs.Text
	switch tok.Str {
	case "q":
		r.stack.push(r.gs)
	case "Q":
		gs, ok := r.stack.pop()
		if !ok {
			r.diag(model.DiagUnbalancedState, "Q", tok.Pos, "restore without matching save")
			return
		}
		r.gs = gs
	case "cm":
		if m, ok := r.matrixOperands("cm"); ok {
			r.gs.CTM = m.Mul(r.gs.CTM)
		}

	case "g":
		v := r.num("g", 0, 0)
		r.gs.FillColor = grayHex(v)
	case "G":
		v := r.num("G", 0, 0)
		r.gs.StrokeColor = grayHex(v)
	case "rg":
		r.gs.FillColor = rgbHex(r.num("rg", 2, 0), r.num("rg", 1, 0), r.num("rg", 0, 0))
	case "RG":
		r.gs.StrokeColor = rgbHex(r.num("RG", 2, 0), r.num("RG", 1, 0), r.num("RG", 0, 0))
	case "k":
		r.gs.FillColor = cmykHex(r.num("k", 3, 0), r.num("k", 2, 0), r.num("k", 1, 0), r.num("k", 0, 0))
	case "K":
		r.gs.StrokeColor = cmykHex(r.num("K", 3, 0), r.num("K", 2, 0), r.num("K", 1, 0), r.num("K", 0, 0))

	case "BT":
		if r.inText {
			r.diag(model.DiagUnbalancedState, "BT", tok.Pos, "nested text object")
		}
		r.inText = true
		ts.BeginText()
	case "ET":
		if !r.inText {
			r.diag(model.DiagUnbalancedState, "ET", tok.Pos, "ET without BT")
		}
		r.inText = false

	case "Tc":
		ts.CharSpacing = r.num("Tc", 0, ts.CharSpacing)
	case "Tw":
		ts.WordSpacing = r.num("Tw", 0, ts.WordSpacing)
	case "Tz":
		ts.HorizontalScale = r.num("Tz", 0, ts.HorizontalScale)
	case "TL":
		ts.Leading = r.num("TL", 0, ts.Leading)
	case "Ts":
		ts.Rise = r.num("Ts", 0, ts.Rise)
	case "Tr":
		mode := int(r.num("Tr", 0, float64(ts.RenderMode)))
		if mode < int(model.RenderFill) || mode > int(model.RenderClip) {
			r.diag(model.DiagMalformedOperator, "Tr", tok.Pos,
				fmt.Sprintf("render mode %d out of range", mode))
			return
		}
		ts.RenderMode = model.RenderMode(mode)
	case "Tf":
		r.setFont(tok)

	case "Td":
		ty := r.num("Td", 0, 0)
		tx := r.num("Td", 1, 0)
		ts.NextLine(tx, ty)
	case "TD":
		ty := r.num("TD", 0, 0)
		tx := r.num("TD", 1, 0)
		ts.Leading = -ty
		ts.NextLine(tx, ty)
	case "Tm":
		if m, ok := r.matrixOperands("Tm"); ok {
			ts.TextLineMatrix = m
			ts.TextMatrix = m
		}
	case "T*":
		ts.NextLine(0, -ts.Leading)

	case "Tj":
		r.showFromOperand(tok)
	case "'":
		ts.NextLine(0, -ts.Leading)
		r.showFromOperand(tok)
	case "\"":
		// aw ac string "
		ts.WordSpacing = r.num("\"", 2, ts.WordSpacing)
		ts.CharSpacing = r.num("\"", 1, ts.CharSpacing)
		ts.NextLine(0, -ts.Leading)
		r.showFromOperand(tok)
	case "TJ":
		r.showArray(tok)

	default:
		if !ignoredOperators[tok.Str] {
			r.proc.log.Debug("skipping unknown operator",
				observability.String("operator", tok.Str),
				observability.Int("page", r.page.PageIndex))
		}
	}
}

func (r *parseRun) setFont(tok scanner.Token) {
	if len(r.operands) < 2 {
		r.diag(model.DiagMalformedOperator, "Tf", tok.Pos, "Tf needs a name and a size")
		return
	}
	nameOp := r.operands[len(r.operands)-2].tok
	if nameOp.Type != scanner.TokenName {
		r.diag(model.DiagMalformedOperator, "Tf", nameOp.Pos, "Tf font operand is not a name")
		return
	}
	ts := &r.gs.Text
	ts.FontSize = r.num("Tf", 0, ts.FontSize)
	ts.FontName = nameOp.Str
	ts.Font = r.fonts[nameOp.Str]
	if ts.Font == nil {
		r.diag(model.DiagUnresolvedFont, "Tf", nameOp.Pos,
			fmt.Sprintf("no metadata for font resource %q", nameOp.Str))
	}
}

func (r *parseRun) showFromOperand(tok scanner.Token) {
	if len(r.operands) == 0 {
		r.diag(model.DiagMalformedOperator, tok.Str, tok.Pos, "show operator without a string")
		return
	}
	strOp := r.operands[len(r.operands)-1].tok
	if strOp.Type != scanner.TokenString {
		r.diag(model.DiagMalformedOperator, tok.Str, strOp.Pos, "show operand is not a string")
		return
	}
	rb := r.newRunBuilder()
	r.appendGlyphs(rb, strOp.Bytes)
	r.flush(rb)
}

// showArray executes a TJ operator. Positive pen travel from string
// elements and small kerning adjustments stay inside one span; a negative
// adjustment at or beyond the configured word-gap magnitude splits the
// run, because such gaps are word breaks painted by positioning alone.
func (r *parseRun) showArray(tok scanner.Token) {
	if len(r.operands) == 0 {
		r.diag(model.DiagMalformedOperator, "TJ", tok.Pos, "TJ without an array")
		return
	}
	arrOp := r.operands[len(r.operands)-1]
	if arrOp.tok.Type != scanner.TokenArrayOpen {
		r.diag(model.DiagMalformedOperator, "TJ", arrOp.tok.Pos, "TJ operand is not an array")
		return
	}
	ts := &r.gs.Text
	rb := r.newRunBuilder()
	for _, el := range arrOp.arr {
		switch el.Type {
		case scanner.TokenString:
			r.appendGlyphs(rb, el.Bytes)
		case scanner.TokenNumber:
			adj := el.Num
			tx := -adj / 1000 * ts.FontSize * ts.HorizontalScale / 100
			if adj <= -r.proc.cfg.WordGapAdjustment {
				r.flush(rb)
				ts.TextMatrix = coords.Translate(tx, 0).Mul(ts.TextMatrix)
				rb = r.newRunBuilder()
				continue
			}
			// Small adjustment: fold into the previous glyph's advance so
			// the span geometry stays derivable from its width list.
			ts.TextMatrix = coords.Translate(tx, 0).Mul(ts.TextMatrix)
			if n := len(rb.widths); n > 0 {
				rb.widths[n-1] += tx
			} else {
				rb.start = ts.TextMatrix
			}
		default:
			r.diag(model.DiagMalformedOperator, "TJ", el.Pos,
				fmt.Sprintf("unexpected %v in TJ array", el.Type))
		}
	}
	r.flush(rb)
}

// runBuilder accumulates one contiguous same-style glyph run.
type runBuilder struct {
	start  coords.Matrix // text matrix at the run's first glyph
	text   []rune
	widths []float64
}

func (r *parseRun) newRunBuilder() *runBuilder {
	return &runBuilder{start: r.gs.Text.TextMatrix}
}

// appendGlyphs decodes raw string bytes through the current font and
// advances the pen one glyph at a time.
func (r *parseRun) appendGlyphs(rb *runBuilder, raw []byte) {
	ts := &r.gs.Text
	for _, code := range raw {
		w0 := ts.Font.GlyphWidth(code)
		tx := w0/1000*ts.FontSize + ts.CharSpacing
		if code == ' ' {
			tx += ts.WordSpacing
		}
		tx *= ts.HorizontalScale / 100
		rb.text = append(rb.text, decodeByte(code))
		rb.widths = append(rb.widths, tx)
		ts.TextMatrix = coords.Translate(tx, 0).Mul(ts.TextMatrix)
	}
}

// flush emits the pending run as a span. Empty runs emit nothing.
func (r *parseRun) flush(rb *runBuilder) {
	if len(rb.text) == 0 {
		return
	}
	ts := r.gs.Text
	span := model.TextSpanMetrics{
		ID:              model.NewSpanID(r.page.PageIndex, r.seq),
		Text:            string(rb.text),
		PageIndex:       r.page.PageIndex,
		FontName:        ts.FontName,
		FontFamily:      ts.FontName,
		FontSize:        ts.FontSize,
		FillColor:       r.gs.FillColor,
		StrokeColor:     r.gs.StrokeColor,
		RenderMode:      ts.RenderMode,
		CTM:             r.gs.CTM,
		TextMatrix:      rb.start,
		HorizontalScale: ts.HorizontalScale,
		CharSpacing:     ts.CharSpacing,
		WordSpacing:     ts.WordSpacing,
		GlyphWidths:     rb.widths,
		Rise:            ts.Rise,
		IsSuperscript:   ts.Rise > 0,
		IsSubscript:     ts.Rise < 0,
		Confidence:      1,
	}
	if ts.Font != nil {
		span.FontName = ts.Font.BaseFont
		span.FontFamily = model.StripSubsetTag(ts.Font.BaseFont)
		span.IsSubset = model.IsSubsetTagged(ts.Font.BaseFont)
		span.Embedding = ts.Font.Embedding
		if flags := ts.Font.Flags; flags != 0 {
			span.Italic = model.Definite(flags&model.FontFlagItalic != 0)
		}
	} else {
		span.Confidence = 0.5
	}
	span.DeriveBBox()
	r.page.Append(span)
	r.seq++
}

// decodeByte maps a single-byte code to a rune. Simple fonts in western
// documents are WinAnsi or close to it; Latin-1 is the deterministic
// approximation used when the collaborator supplies no ToUnicode data.
func decodeByte(b byte) rune { return rune(b) }

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func grayHex(v float64) string {
	c := int(clamp01(v)*255 + 0.5)
	return fmt.Sprintf("#%02x%02x%02x", c, c, c)
}

func rgbHex(r, g, b float64) string {
	return fmt.Sprintf("#%02x%02x%02x",
		int(clamp01(r)*255+0.5), int(clamp01(g)*255+0.5), int(clamp01(b)*255+0.5))
}

func cmykHex(c, m, y, k float64) string {
	r := (1 - clamp01(c)) * (1 - clamp01(k))
	g := (1 - clamp01(m)) * (1 - clamp01(k))
	b := (1 - clamp01(y)) * (1 - clamp01(k))
	return rgbHex(r, g, b)
}
