// Package coords implements the 2D affine transformations used throughout
// the text engine. A PDF transformation matrix is the 3x3 matrix
//
//	[a b 0]
//	[c d 0]
//	[e f 1]
//
// stored as its six free scalars. Matrices are immutable value types;
// every operation returns a new matrix.
package coords

import (
	"math"

	"github.com/pkg/errors"
)

// ErrSingular is returned by Inverse when the matrix determinant is
// effectively zero and no inverse exists.
var ErrSingular = errors.New("coords: singular matrix")

const epsilon = 1e-10

// Matrix holds the six scalars [a b c d e f] of an affine transform.
type Matrix [6]float64

// Identity returns the identity transform.
func Identity() Matrix { return Matrix{1, 0, 0, 1, 0, 0} }

// Translate returns a pure translation by (tx, ty).
func Translate(tx, ty float64) Matrix { return Matrix{1, 0, 0, 1, tx, ty} }

// Scale returns a pure scale by (sx, sy).
func Scale(sx, sy float64) Matrix { return Matrix{sx, 0, 0, sy, 0, 0} }

// Rotate returns a rotation by angle radians, counterclockwise positive.
func Rotate(angle float64) Matrix {
	c := math.Cos(angle)
	s := math.Sin(angle)
	return Matrix{c, s, -s, c, 0, 0}
}

// RotateAround returns a rotation by angle radians about the point (cx, cy).
func RotateAround(angle, cx, cy float64) Matrix {
	c := math.Cos(angle)
	s := math.Sin(angle)
	return Matrix{c, s, -s, c, cx - cx*c + cy*s, cy - cx*s - cy*c}
}

// Skew returns a shear transform from the two skew angles in radians.
func Skew(ax, ay float64) Matrix {
	return Matrix{1, math.Tan(ay), math.Tan(ax), 1, 0, 0}
}

// Mul returns m*o, the transform that applies m first and then o.
// This follows the PDF convention where the row vector is on the left.
func (m Matrix) Mul(o Matrix) Matrix {
	return Matrix{
		m[0]*o[0] + m[1]*o[2],
		m[0]*o[1] + m[1]*o[3],
		m[2]*o[0] + m[3]*o[2],
		m[2]*o[1] + m[3]*o[3],
		m[4]*o[0] + m[5]*o[2] + o[4],
		m[4]*o[1] + m[5]*o[3] + o[5],
	}
}

// Det returns the determinant of the linear part.
func (m Matrix) Det() float64 { return m[0]*m[3] - m[1]*m[2] }

// IsDegenerate reports whether the matrix collapses the plane, i.e. the
// determinant is effectively zero.
func (m Matrix) IsDegenerate() bool { return math.Abs(m.Det()) < epsilon }

// Inverse returns the inverse transform, or ErrSingular when m is degenerate.
func (m Matrix) Inverse() (Matrix, error) {
	det := m.Det()
	if math.Abs(det) < epsilon {
		return Matrix{}, ErrSingular
	}
	return Matrix{
		m[3] / det,
		-m[1] / det,
		-m[2] / det,
		m[0] / det,
		(m[2]*m[5] - m[3]*m[4]) / det,
		(m[1]*m[4] - m[0]*m[5]) / det,
	}, nil
}

// Transform maps p through the matrix.
func (m Matrix) Transform(p Point) Point {
	return Point{
		X: m[0]*p.X + m[2]*p.Y + m[4],
		Y: m[1]*p.X + m[3]*p.Y + m[5],
	}
}

// TransformRect maps all four corners of r and returns their axis-aligned
// bounding rectangle.
func (m Matrix) TransformRect(r Rect) Rect {
	p1 := m.Transform(Point{r.LLX, r.LLY})
	p2 := m.Transform(Point{r.URX, r.LLY})
	p3 := m.Transform(Point{r.LLX, r.URY})
	p4 := m.Transform(Point{r.URX, r.URY})
	return RectFromPoints(p1, p2, p3, p4)
}

// IsIdentity reports whether m is the identity transform within epsilon.
func (m Matrix) IsIdentity() bool {
	return m.ApproxEqual(Identity())
}

// ApproxEqual reports element-wise equality within epsilon.
func (m Matrix) ApproxEqual(o Matrix) bool {
	for i := range m {
		if math.Abs(m[i]-o[i]) >= epsilon {
			return false
		}
	}
	return true
}

// Kind classifies a transform. The classification is used for logging and
// for deciding whether span geometry needs the general code path.
type Kind int

const (
	KindIdentity Kind = iota
	KindTranslation
	KindScale
	KindRotation
	KindGeneral
)

func (k Kind) String() string {
	switch k {
	case KindIdentity:
		return "identity"
	case KindTranslation:
		return "translation"
	case KindScale:
		return "scale"
	case KindRotation:
		return "rotation"
	default:
		return "general"
	}
}

// Kind returns the classification of m.
func (m Matrix) Kind() Kind {
	linearIdentity := math.Abs(m[0]-1) < epsilon && math.Abs(m[3]-1) < epsilon &&
		math.Abs(m[1]) < epsilon && math.Abs(m[2]) < epsilon
	switch {
	case linearIdentity && math.Abs(m[4]) < epsilon && math.Abs(m[5]) < epsilon:
		return KindIdentity
	case linearIdentity:
		return KindTranslation
	case math.Abs(m[1]) < epsilon && math.Abs(m[2]) < epsilon:
		return KindScale
	}
	// A rotation keeps both columns unit length and orthogonal.
	sx := math.Hypot(m[0], m[1])
	sy := math.Hypot(m[2], m[3])
	dot := m[0]*m[2] + m[1]*m[3]
	if math.Abs(sx-1) < 1e-6 && math.Abs(sy-1) < 1e-6 && math.Abs(dot) < 1e-6 {
		return KindRotation
	}
	return KindGeneral
}

// Decomposed holds the scale, rotation and translation recovered from a
// matrix.
type Decomposed struct {
	ScaleX      float64
	ScaleY      float64
	RotationDeg float64
	TranslateX  float64
	TranslateY  float64
}

// Decompose splits m into scale, rotation and translation components.
// For degenerate matrices the scales come back zero.
func (m Matrix) Decompose() Decomposed {
	sx := math.Hypot(m[0], m[1])
	rot := math.Atan2(m[1], m[0])
	// Remove the rotation from the second column to recover the Y scale.
	sy := m[3]*math.Cos(rot) - m[2]*math.Sin(rot)
	return Decomposed{
		ScaleX:      sx,
		ScaleY:      sy,
		RotationDeg: rot * 180 / math.Pi,
		TranslateX:  m[4],
		TranslateY:  m[5],
	}
}

// RotationDegrees returns just the rotation component in degrees.
func (m Matrix) RotationDegrees() float64 {
	return math.Atan2(m[1], m[0]) * 180 / math.Pi
}

// Point is a location in page space.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Rect is an axis-aligned rectangle in page space, lower-left to upper-right.
type Rect struct {
	LLX float64 `json:"llx"`
	LLY float64 `json:"lly"`
	URX float64 `json:"urx"`
	URY float64 `json:"ury"`
}

// RectFromPoints returns the axis-aligned bounding rectangle of the points.
func RectFromPoints(pts ...Point) Rect {
	if len(pts) == 0 {
		return Rect{}
	}
	r := Rect{LLX: pts[0].X, LLY: pts[0].Y, URX: pts[0].X, URY: pts[0].Y}
	for _, p := range pts[1:] {
		r.LLX = math.Min(r.LLX, p.X)
		r.LLY = math.Min(r.LLY, p.Y)
		r.URX = math.Max(r.URX, p.X)
		r.URY = math.Max(r.URY, p.Y)
	}
	return r
}

// Width returns the horizontal extent of r.
func (r Rect) Width() float64 { return r.URX - r.LLX }

// Height returns the vertical extent of r.
func (r Rect) Height() float64 { return r.URY - r.LLY }

// IsEmpty reports whether r has no area.
func (r Rect) IsEmpty() bool { return r.URX <= r.LLX || r.URY <= r.LLY }

// Contains reports whether p lies inside r (inclusive).
func (r Rect) Contains(p Point) bool {
	return p.X >= r.LLX && p.X <= r.URX && p.Y >= r.LLY && p.Y <= r.URY
}

// ContainsRect reports whether inner lies fully inside r.
func (r Rect) ContainsRect(inner Rect) bool {
	return inner.LLX >= r.LLX && inner.URX <= r.URX &&
		inner.LLY >= r.LLY && inner.URY <= r.URY
}

// Intersects reports whether r and o share any area or edge.
func (r Rect) Intersects(o Rect) bool {
	return !(o.LLX > r.URX || o.URX < r.LLX || o.LLY > r.URY || o.URY < r.LLY)
}

// Union returns the smallest rectangle covering both r and o.
func (r Rect) Union(o Rect) Rect {
	if r.IsEmpty() {
		return o
	}
	if o.IsEmpty() {
		return r
	}
	return Rect{
		LLX: math.Min(r.LLX, o.LLX),
		LLY: math.Min(r.LLY, o.LLY),
		URX: math.Max(r.URX, o.URX),
		URY: math.Max(r.URY, o.URY),
	}
}

// Center returns the midpoint of r.
func (r Rect) Center() Point {
	return Point{X: (r.LLX + r.URX) / 2, Y: (r.LLY + r.URY) / 2}
}
