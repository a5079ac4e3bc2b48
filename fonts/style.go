package fonts

import (
	"strings"

	"github.com/Oriol-1/modificador-pdf/model"
)

var boldIndicators = []string{"bold", "heavy", "black", "demi", "semi"}

func nameIndicatesBold(norm string) bool {
	for _, ind := range boldIndicators {
		if strings.Contains(norm, ind) {
			return true
		}
	}
	return strings.HasSuffix(norm, "-b") || strings.HasSuffix(norm, "_b")
}

func nameIndicatesItalic(norm string) bool {
	return strings.Contains(norm, "italic") || strings.Contains(norm, "oblique") ||
		strings.HasSuffix(norm, "-i") || strings.HasSuffix(norm, "_i")
}

// DetectPossibleBold infers the weight of a font. Signals in order of
// authority: the descriptor's ForceBold flag, weight words in the name,
// and average advance exceeding the half-em norm by BoldWidthExcess.
// A heuristic never contradicts an explicit flag. Only the width signal
// can answer No; a name without weight words is not evidence of a
// regular cut, so without a width table the answer stays Unknown and
// callers cannot mistake ignorance for a definite weight.
func (c Config) DetectPossibleBold(f *model.FontInfo) model.Tristate {
	if f == nil {
		return model.Unknown
	}
	if f.Flags&model.FontFlagForceBold != 0 {
		return model.Yes
	}
	if f.BaseFont != "" && nameIndicatesBold(model.NormalizeFontName(f.BaseFont)) {
		return model.Yes
	}
	if avg, ok := averageWidth(f); ok {
		return model.Definite(avg > 500*c.BoldWidthExcess)
	}
	return model.Unknown
}

// DetectPossibleItalic infers slant from the descriptor flag and the name.
func DetectPossibleItalic(f *model.FontInfo) model.Tristate {
	if f == nil {
		return model.Unknown
	}
	if f.Flags&model.FontFlagItalic != 0 {
		return model.Yes
	}
	if f.BaseFont != "" {
		return model.Definite(nameIndicatesItalic(model.NormalizeFontName(f.BaseFont)))
	}
	return model.Unknown
}

func averageWidth(f *model.FontInfo) (float64, bool) {
	if len(f.Widths) == 0 {
		return 0, false
	}
	var sum float64
	n := 0
	for _, w := range f.Widths {
		if w <= 0 {
			continue
		}
		sum += w
		n++
	}
	if n == 0 {
		return 0, false
	}
	return sum / float64(n), true
}

// AnnotateStyle fills a span's weight and slant fields from its font
// metadata, leaving explicit values already set by the parser alone.
func (c Config) AnnotateStyle(span *model.TextSpanMetrics, f *model.FontInfo) {
	if span.Bold == model.Unknown {
		span.Bold = c.DetectPossibleBold(f)
	}
	if span.Italic == model.Unknown {
		span.Italic = DetectPossibleItalic(f)
	}
}

// HandleBold decides how a bold request is honored when rewriting with
// the given resolution. An exact bold cut of a standard fallback gives
// BoldExact; a document font without one degrades to stroke-emphasis
// approximation; a font that cannot even approximate gets the visual
// change anyway plus a warning in the change record.
func (c Config) HandleBold(res Resolution) model.BoldStrategy {
	f := res.Font
	if f == nil {
		return model.BoldWarning
	}
	if c.DetectPossibleBold(f) == model.Yes {
		// Already bold, nothing to synthesize.
		return model.BoldNone
	}
	if res.WasFallback || f.Embedding == model.NotEmbedded {
		// Standard fonts have real bold cuts.
		if styledVariant(SmartFallback(f.BaseFont), true, false) != f.BaseFont {
			return model.BoldExact
		}
	}
	if f.Embedding == model.FullyEmbedded {
		return model.BoldApproximate
	}
	return model.BoldWarning
}
