// Package geometry provides the fixed drawing tables for the bodygraph:
// gate positions, channel curves, center outlines and the body silhouette.
// All coordinates live in one 234×320 logical canvas; embedders scale it.
package geometry

import (
	"math"
	"strconv"
	"strings"
)

// Logical canvas size.
const (
	Width  = 234.0
	Height = 320.0
)

// Point is a position in canvas units.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Add returns p + q.
func (p Point) Add(q Point) Point { return Point{X: p.X + q.X, Y: p.Y + q.Y} }

// Sub returns p - q.
func (p Point) Sub(q Point) Point { return Point{X: p.X - q.X, Y: p.Y - q.Y} }

// Scale returns p * k.
func (p Point) Scale(k float64) Point { return Point{X: p.X * k, Y: p.Y * k} }

// Lerp interpolates between p and q.
func Lerp(p, q Point, t float64) Point {
	return Point{X: p.X + (q.X-p.X)*t, Y: p.Y + (q.Y-p.Y)*t}
}

// Dist returns the euclidean distance between p and q.
func Dist(p, q Point) float64 {
	return math.Hypot(q.X-p.X, q.Y-p.Y)
}

// Normal returns the unit vector perpendicular to p→q, or the zero point
// when p and q coincide.
func Normal(p, q Point) Point {
	d := Dist(p, q)
	if d == 0 {
		return Point{}
	}
	return Point{X: -(q.Y - p.Y) / d, Y: (q.X - p.X) / d}
}

// Quad is a quadratic Bézier curve. Straight segments carry their control
// point at the midpoint.
type Quad struct {
	P0 Point `json:"p0"`
	C  Point `json:"c"`
	P1 Point `json:"p1"`
}

// Split cuts q at t = 0.5 (de Casteljau) into two halves.
func (q Quad) Split() (Quad, Quad) {
	a := Lerp(q.P0, q.C, 0.5)
	b := Lerp(q.C, q.P1, 0.5)
	m := Lerp(a, b, 0.5)
	return Quad{P0: q.P0, C: a, P1: m}, Quad{P0: m, C: b, P1: q.P1}
}

// Reverse returns the same curve traversed from P1 to P0.
func (q Quad) Reverse() Quad {
	return Quad{P0: q.P1, C: q.C, P1: q.P0}
}

// Straight reports whether the control point sits on the chord.
func (q Quad) Straight() bool {
	n := Normal(q.P0, q.P1)
	off := q.C.Sub(q.P0)
	return math.Abs(off.X*n.X+off.Y*n.Y) < 1e-9
}

// PathData renders the curve as SVG path data.
func (q Quad) PathData() string {
	var b strings.Builder
	b.WriteString("M")
	writePoint(&b, q.P0)
	if q.Straight() {
		b.WriteString(" L")
	} else {
		b.WriteString(" Q")
		writePoint(&b, q.C)
		b.WriteString(" ")
	}
	writePoint(&b, q.P1)
	return b.String()
}

// Ribbon returns a closed quadrilateral of the given width around the
// chord of q. Short gates are drawn with it instead of a stroke.
func Ribbon(q Quad, width float64) string {
	n := Normal(q.P0, q.P1).Scale(width / 2)
	return Polygon([]Point{q.P0.Add(n), q.P1.Add(n), q.P1.Sub(n), q.P0.Sub(n)})
}

// Polygon renders a closed polygon as SVG path data.
func Polygon(pts []Point) string {
	var b strings.Builder
	for i, p := range pts {
		if i == 0 {
			b.WriteString("M")
		} else {
			b.WriteString(" L")
		}
		writePoint(&b, p)
	}
	b.WriteString(" Z")
	return b.String()
}

// Num formats a coordinate rounded to two decimals, with no trailing zeros,
// so identical geometry always serialises to identical bytes.
func Num(v float64) string {
	r := math.Round(v*100) / 100
	if r == 0 {
		r = 0 // normalise -0
	}
	return strconv.FormatFloat(r, 'f', -1, 64)
}

func writePoint(b *strings.Builder, p Point) {
	b.WriteString(Num(p.X))
	b.WriteString(" ")
	b.WriteString(Num(p.Y))
}
