// Package fonts resolves the fonts named by content streams into usable
// metadata, substitutes standard fonts when a document font cannot be
// used for new text, infers weight and slant style, and measures
// candidate replacement text.
package fonts

import (
	"strings"
	"sync"

	"github.com/Oriol-1/modificador-pdf/model"
	"github.com/Oriol-1/modificador-pdf/observability"
)

// Resolution is the outcome of resolving one font reference.
type Resolution struct {
	Font *model.FontInfo
	// WasFallback is set when the requested font could not be used and a
	// standard font was substituted. FallbackFrom then holds the
	// original request.
	WasFallback  bool
	FallbackFrom string
}

// Resolver maps font references to metadata for one document. It keeps no
// global state; every document gets its own instance so concurrent
// documents cannot poison each other's caches.
type Resolver struct {
	cfg Config
	log observability.Logger

	mu      sync.RWMutex
	byName  map[string]*model.FontInfo // resource name (Tf operand)
	byBase  map[string]*model.FontInfo // normalized BaseFont
	cache   map[string]Resolution
	missing int
}

// NewResolver builds a resolver over the document's font set. fonts is
// keyed by resource name; the resolver additionally indexes by normalized
// base name so lookups by family succeed. Zero cfg fields fall back to
// the defaults.
func NewResolver(cfg Config, fonts map[string]*model.FontInfo, log observability.Logger) *Resolver {
	def := DefaultConfig()
	if cfg.MaxTrackingReductionPct <= 0 {
		cfg.MaxTrackingReductionPct = def.MaxTrackingReductionPct
	}
	if cfg.MinSizeRatio <= 0 {
		cfg.MinSizeRatio = def.MinSizeRatio
	}
	if cfg.BoldWidthExcess <= 0 {
		cfg.BoldWidthExcess = def.BoldWidthExcess
	}
	if log == nil {
		log = observability.NopLogger{}
	}
	r := &Resolver{
		cfg:    cfg,
		log:    log,
		byName: make(map[string]*model.FontInfo, len(fonts)),
		byBase: make(map[string]*model.FontInfo, len(fonts)),
		cache:  make(map[string]Resolution),
	}
	for name, f := range fonts {
		if f == nil {
			continue
		}
		r.byName[name] = f
		if f.BaseFont != "" {
			r.byBase[model.NormalizeFontName(f.BaseFont)] = f
		}
	}
	return r
}

// Resolve returns the document font for name, trying the resource name
// first and the normalized base name second. A miss falls back to a
// standard font and is reported as such, never as an error.
func (r *Resolver) Resolve(name string) Resolution {
	r.mu.RLock()
	if res, ok := r.cache[name]; ok {
		r.mu.RUnlock()
		return res
	}
	r.mu.RUnlock()

	res := r.resolveUncached(name)

	r.mu.Lock()
	r.cache[name] = res
	if res.WasFallback {
		r.missing++
		r.log.Debug("fallback tally",
			observability.Int(observability.MetricFallbackCount, r.missing))
	}
	r.mu.Unlock()
	return res
}

func (r *Resolver) resolveUncached(name string) Resolution {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if f, ok := r.byName[name]; ok {
		return Resolution{Font: f}
	}
	if f, ok := r.byBase[model.NormalizeFontName(name)]; ok {
		return Resolution{Font: f}
	}
	base := SmartFallback(name)
	r.log.Debug("font fallback",
		observability.String("requested", name),
		observability.String("fallback", base))
	return Resolution{
		Font:         StandardFont(base),
		WasFallback:  true,
		FallbackFrom: name,
	}
}

// Fit returns the fit thresholds the resolver was built with.
func (r *Resolver) Fit() Config { return r.cfg }

// DetectFont resolves the font behind a span and annotates the span's
// weight and slant from the document metadata. A fallback resolution
// says nothing about the glyphs actually on the page, so it leaves the
// style fields untouched. Never errors.
func (r *Resolver) DetectFont(span *model.TextSpanMetrics) Resolution {
	res := r.Resolve(span.FontName)
	if !res.WasFallback {
		r.cfg.AnnotateStyle(span, res.Font)
	}
	return res
}

// FallbackCount reports how many distinct references fell back so far.
func (r *Resolver) FallbackCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.missing
}

// Families frequently declared by office and web tooling, mapped to the
// standard font that renders closest to them.
var fallbackFamilies = map[string]string{
	"arial":             "Helvetica",
	"arialmt":           "Helvetica",
	"helvetica":         "Helvetica",
	"helveticaneue":     "Helvetica",
	"verdana":           "Helvetica",
	"tahoma":            "Helvetica",
	"calibri":           "Helvetica",
	"segoeui":           "Helvetica",
	"liberationsans":    "Helvetica",
	"dejavusans":        "Helvetica",
	"times":             "Times-Roman",
	"timesroman":        "Times-Roman",
	"timesnewroman":     "Times-Roman",
	"timesnewromanpsmt": "Times-Roman",
	"georgia":           "Times-Roman",
	"garamond":          "Times-Roman",
	"cambria":           "Times-Roman",
	"bookantiqua":       "Times-Roman",
	"liberationserif":   "Times-Roman",
	"courier":           "Courier",
	"couriernew":        "Courier",
	"couriernewpsmt":    "Courier",
	"consolas":          "Courier",
	"monaco":            "Courier",
	"menlo":             "Courier",
	"liberationmono":    "Courier",
	"symbol":            "Symbol",
	"zapfdingbats":      "ZapfDingbats",
}

// SmartFallback maps an arbitrary font name to the best standard font,
// preserving declared weight and slant in the variant name. Resolution
// order: exact family match, family prefix match, serif/mono keywords,
// Helvetica as the final default.
func SmartFallback(name string) string {
	norm := model.NormalizeFontName(name)
	family := strings.SplitN(norm, ",", 2)[0]
	family = strings.SplitN(family, "-", 2)[0]
	family = strings.SplitN(family, "_", 2)[0]

	base, ok := fallbackFamilies[family]
	if !ok {
		for known, std := range fallbackFamilies {
			if strings.HasPrefix(norm, known) {
				base, ok = std, true
				break
			}
		}
	}
	if !ok {
		switch {
		case strings.Contains(norm, "mono") || strings.Contains(norm, "courier"):
			base = "Courier"
		case strings.Contains(norm, "serif") && !strings.Contains(norm, "sans"):
			base = "Times-Roman"
		default:
			base = "Helvetica"
		}
	}
	if base == "Symbol" || base == "ZapfDingbats" {
		return base
	}
	return styledVariant(base, nameIndicatesBold(norm), nameIndicatesItalic(norm))
}

func styledVariant(base string, bold, italic bool) string {
	if !bold && !italic {
		return base
	}
	switch base {
	case "Helvetica", "Courier":
		switch {
		case bold && italic:
			return base + "-BoldOblique"
		case bold:
			return base + "-Bold"
		default:
			return base + "-Oblique"
		}
	case "Times-Roman":
		switch {
		case bold && italic:
			return "Times-BoldItalic"
		case bold:
			return "Times-Bold"
		default:
			return "Times-Italic"
		}
	}
	return base
}

// StandardFont returns synthetic metadata for one of the standard 14
// fonts. Widths are the uniform half-em estimate; exact standard metrics
// are the measurement backend's job, these exist so geometry stays
// plausible when a fallback is in play.
func StandardFont(base string) *model.FontInfo {
	f := &model.FontInfo{
		Name:         base,
		BaseFont:     base,
		Subtype:      "Type1",
		Embedding:    model.NotEmbedded,
		DefaultWidth: 500,
	}
	norm := model.NormalizeFontName(base)
	if strings.Contains(norm, "bold") {
		f.Flags |= model.FontFlagForceBold
	}
	if strings.Contains(norm, "italic") || strings.Contains(norm, "oblique") {
		f.Flags |= model.FontFlagItalic
	}
	if strings.HasPrefix(norm, "courier") {
		f.Flags |= model.FontFlagFixedPitch
	}
	if strings.HasPrefix(norm, "times") {
		f.Flags |= model.FontFlagSerif
	}
	return f
}
