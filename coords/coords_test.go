package coords

import (
	"math"
	"testing"

	"github.com/pkg/errors"
)

func matrixNear(t *testing.T, got, want Matrix) {
	t.Helper()
	for i := range got {
		if math.Abs(got[i]-want[i]) > 1e-9 {
			t.Fatalf("matrix mismatch at [%d]: got %v want %v", i, got, want)
		}
	}
}

func TestMulOrder(t *testing.T) {
	// Scale then translate must place the scaled point at the offset.
	m := Scale(2, 2).Mul(Translate(10, 5))
	p := m.Transform(Point{X: 1, Y: 1})
	if p.X != 12 || p.Y != 7 {
		t.Fatalf("got %+v, want (12, 7)", p)
	}
}

func TestInverseRoundTrip(t *testing.T) {
	m := Translate(3, -2).Mul(Rotate(math.Pi / 6)).Mul(Scale(2, 0.5))
	inv, err := m.Inverse()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	matrixNear(t, m.Mul(inv), Identity())
}

func TestInverseSingular(t *testing.T) {
	m := Matrix{0, 0, 0, 0, 4, 4}
	if !m.IsDegenerate() {
		t.Fatal("expected degenerate matrix")
	}
	if _, err := m.Inverse(); !errors.Is(err, ErrSingular) {
		t.Fatalf("expected ErrSingular, got %v", err)
	}
}

func TestDecompose(t *testing.T) {
	m := Scale(3, 2).Mul(Rotate(math.Pi / 4)).Mul(Translate(7, 8))
	d := m.Decompose()
	if math.Abs(d.ScaleX-3) > 1e-9 || math.Abs(d.ScaleY-2) > 1e-9 {
		t.Errorf("scale: got (%v, %v), want (3, 2)", d.ScaleX, d.ScaleY)
	}
	if math.Abs(d.RotationDeg-45) > 1e-9 {
		t.Errorf("rotation: got %v, want 45", d.RotationDeg)
	}
	if d.TranslateX != 7 || d.TranslateY != 8 {
		t.Errorf("translation: got (%v, %v), want (7, 8)", d.TranslateX, d.TranslateY)
	}
}

func TestKind(t *testing.T) {
	cases := []struct {
		name string
		m    Matrix
		want Kind
	}{
		{"identity", Identity(), KindIdentity},
		{"translation", Translate(5, 5), KindTranslation},
		{"scale", Scale(2, 3), KindScale},
		{"rotation", Rotate(1.1), KindRotation},
		{"general", Skew(0.3, 0), KindGeneral},
	}
	for _, tc := range cases {
		if got := tc.m.Kind(); got != tc.want {
			t.Errorf("%s: got %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestRotateAround(t *testing.T) {
	// Rotating the center point must leave it in place.
	m := RotateAround(math.Pi/2, 10, 10)
	p := m.Transform(Point{X: 10, Y: 10})
	if math.Abs(p.X-10) > 1e-9 || math.Abs(p.Y-10) > 1e-9 {
		t.Fatalf("center moved: %+v", p)
	}
	// A point to the right of center ends up above it.
	p = m.Transform(Point{X: 11, Y: 10})
	if math.Abs(p.X-10) > 1e-9 || math.Abs(p.Y-11) > 1e-9 {
		t.Fatalf("got %+v, want (10, 11)", p)
	}
}

func TestTransformRect(t *testing.T) {
	r := Rect{LLX: 0, LLY: 0, URX: 10, URY: 5}
	got := Rotate(math.Pi / 2).TransformRect(r)
	want := Rect{LLX: -5, LLY: 0, URX: 0, URY: 10}
	if math.Abs(got.LLX-want.LLX) > 1e-9 || math.Abs(got.URY-want.URY) > 1e-9 {
		t.Fatalf("got %+v, want %+v", got, want)
	}
}

func TestRectOps(t *testing.T) {
	a := Rect{0, 0, 10, 10}
	b := Rect{5, 5, 15, 15}
	if !a.Intersects(b) {
		t.Error("expected intersection")
	}
	u := a.Union(b)
	if u != (Rect{0, 0, 15, 15}) {
		t.Errorf("union: got %+v", u)
	}
	if !a.Contains(Point{10, 10}) {
		t.Error("boundary point should be contained")
	}
	if a.ContainsRect(b) {
		t.Error("a should not contain b")
	}
	if !u.ContainsRect(a) || !u.ContainsRect(b) {
		t.Error("union should contain both inputs")
	}
}
