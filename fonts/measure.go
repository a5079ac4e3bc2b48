package fonts

import (
	"bytes"
	"sync"
	"unicode"

	"github.com/go-text/typesetting/di"
	gofont "github.com/go-text/typesetting/font"
	"github.com/go-text/typesetting/language"
	"github.com/go-text/typesetting/shaping"
	"github.com/pkg/errors"
	"golang.org/x/image/math/fixed"

	"github.com/Oriol-1/modificador-pdf/model"
	"github.com/Oriol-1/modificador-pdf/observability"
)

// Measurement is the footprint of a piece of text at a given size, in
// text space units. Exact is set when a real font program produced it;
// estimated measurements must leave generous validation margins.
type Measurement struct {
	Width  float64
	Height float64
	Exact  bool
}

// Backend measures text against a font.
type Backend interface {
	Name() string
	Measure(text string, f *model.FontInfo, size float64) (Measurement, error)
}

// lineHeightRatio is the assumed line height over font size when the
// font supplies no vertical metrics.
const lineHeightRatio = 1.2

// estimateCharWidth is the per-character width assumption of the
// estimation backend, as a fraction of the font size.
const estimateCharWidth = 0.5

// EstimateBackend measures with fixed per-character assumptions. It never
// fails, making it the terminal fallback of every measurement chain.
type EstimateBackend struct{}

func (EstimateBackend) Name() string { return "estimate" }

func (EstimateBackend) Measure(text string, _ *model.FontInfo, size float64) (Measurement, error) {
	n := 0
	for range text {
		n++
	}
	return Measurement{
		Width:  float64(n) * estimateCharWidth * size,
		Height: lineHeightRatio * size,
	}, nil
}

// ShaperBackend measures by shaping the text with the font's embedded
// program. Parsed faces are cached per font.
type ShaperBackend struct {
	mu    sync.Mutex
	faces map[*model.FontInfo]*gofont.Face
}

func NewShaperBackend() *ShaperBackend {
	return &ShaperBackend{faces: make(map[*model.FontInfo]*gofont.Face)}
}

func (b *ShaperBackend) Name() string { return "shaper" }

func (b *ShaperBackend) face(f *model.FontInfo) (*gofont.Face, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if face, ok := b.faces[f]; ok {
		return face, nil
	}
	face, err := gofont.ParseTTF(bytes.NewReader(f.Program))
	if err != nil {
		return nil, errors.Wrapf(err, "fonts: parse program of %s", f.BaseFont)
	}
	b.faces[f] = face
	return face, nil
}

func (b *ShaperBackend) Measure(text string, f *model.FontInfo, size float64) (Measurement, error) {
	if f == nil || len(f.Program) == 0 {
		return Measurement{}, errors.New("fonts: no embedded program to shape with")
	}
	face, err := b.face(f)
	if err != nil {
		return Measurement{}, err
	}

	runes := []rune(text)
	shaper := &shaping.HarfbuzzShaper{}
	// Shape at a 1000-unit em so advances come out in glyph space.
	input := shaping.Input{
		Text:      runes,
		RunStart:  0,
		RunEnd:    len(runes),
		Direction: scriptDirection(detectScript(runes)),
		Face:      face,
		Size:      fixed.Int26_6(1000 * 64),
		Script:    detectScript(runes),
		Language:  language.DefaultLanguage(),
	}
	output := shaper.Shape(input)

	var advance float64
	for _, g := range output.Glyphs {
		advance += float64(g.XAdvance) / 64.0
	}
	return Measurement{
		Width:  advance / 1000 * size,
		Height: lineHeightRatio * size,
		Exact:  true,
	}, nil
}

// MeasureWithWidths measures single-byte text against the font's declared
// width table. It reports false when the text contains characters outside
// the single-byte range or the font has no widths.
func MeasureWithWidths(text string, f *model.FontInfo, size float64) (Measurement, bool) {
	if f == nil || len(f.Widths) == 0 {
		return Measurement{}, false
	}
	var w float64
	for _, r := range text {
		if r > 0xff {
			return Measurement{}, false
		}
		w += f.GlyphWidth(byte(r)) / 1000 * size
	}
	return Measurement{Width: w, Height: lineHeightRatio * size, Exact: true}, true
}

// Measurer chains measurement fidelity: shape the embedded program when
// there is one, fall back to the declared width table, and estimate as
// the last resort. It never fails.
type Measurer struct {
	shaper *ShaperBackend
	log    observability.Logger
}

func NewMeasurer(log observability.Logger) *Measurer {
	if log == nil {
		log = observability.NopLogger{}
	}
	return &Measurer{shaper: NewShaperBackend(), log: log}
}

func (m *Measurer) Measure(text string, f *model.FontInfo, size float64) Measurement {
	if f != nil && len(f.Program) > 0 {
		meas, err := m.shaper.Measure(text, f, size)
		if err == nil {
			return meas
		}
		m.log.Debug("shaping failed, degrading measurement",
			observability.String("font", f.BaseFont),
			observability.Error("error", err))
	}
	if meas, ok := MeasureWithWidths(text, f, size); ok {
		return meas
	}
	meas, _ := EstimateBackend{}.Measure(text, f, size)
	return meas
}

func scriptDirection(script language.Script) di.Direction {
	switch script {
	case language.Arabic, language.Hebrew, language.Syriac, language.Thaana, language.Nko:
		return di.DirectionRTL
	default:
		return di.DirectionLTR
	}
}

func detectScript(runes []rune) language.Script {
	counts := make(map[language.Script]int)
	maxCount := 0
	best := language.Latin
	for _, r := range runes {
		s := scriptFromRune(r)
		if s == language.Unknown {
			continue
		}
		counts[s]++
		if counts[s] > maxCount {
			maxCount = counts[s]
			best = s
		}
	}
	return best
}

func scriptFromRune(r rune) language.Script {
	switch {
	case unicode.Is(unicode.Latin, r):
		return language.Latin
	case unicode.Is(unicode.Arabic, r):
		return language.Arabic
	case unicode.Is(unicode.Hebrew, r):
		return language.Hebrew
	case unicode.Is(unicode.Cyrillic, r):
		return language.Cyrillic
	case unicode.Is(unicode.Greek, r):
		return language.Greek
	case unicode.Is(unicode.Han, r):
		return language.Han
	case unicode.Is(unicode.Hiragana, r):
		return language.Hiragana
	case unicode.Is(unicode.Katakana, r):
		return language.Katakana
	case unicode.Is(unicode.Hangul, r):
		return language.Hangul
	case unicode.Is(unicode.Thai, r):
		return language.Thai
	case unicode.Is(unicode.Devanagari, r):
		return language.Devanagari
	}
	return language.Unknown
}
