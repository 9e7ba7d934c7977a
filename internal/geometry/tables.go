package geometry

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"slices"

	"github.com/talgya/bodygraph/internal/bodygraph"
)

// gateCoords are the marker centers of the 64 gates.
var gateCoords = map[bodygraph.Gate]Point{
	// Head
	64: {105, 42}, 61: {117, 42}, 63: {129, 42},
	// Ajna
	47: {105, 55}, 24: {117, 55}, 4: {129, 55},
	17: {107, 80}, 43: {117, 89}, 11: {127, 80},
	// Throat
	62: {105, 105}, 23: {117, 105}, 56: {129, 105},
	16: {97, 115}, 20: {97, 129},
	35: {137, 112}, 12: {137, 122}, 45: {137, 132},
	31: {105, 139}, 8: {117, 139}, 33: {129, 139},
	// G
	1: {117, 156}, 7: {109, 164}, 13: {125, 164},
	10: {95, 178}, 25: {139, 178},
	15: {109, 192}, 2: {117, 200}, 46: {125, 192},
	// Heart
	21: {170, 192}, 51: {156, 200}, 26: {160, 208}, 40: {174, 212},
	// Spleen
	48: {18, 218}, 57: {28, 224}, 44: {40, 232}, 50: {52, 239},
	32: {48, 251}, 28: {36, 259}, 18: {22, 268},
	// Solar Plexus
	36: {216, 218}, 22: {206, 224}, 37: {194, 232}, 6: {182, 239},
	49: {186, 251}, 55: {198, 259}, 30: {212, 268},
	// Sacral
	5: {105, 231}, 14: {117, 231}, 29: {129, 231},
	34: {97, 240}, 27: {97, 256}, 59: {137, 248},
	42: {105, 263}, 3: {117, 263}, 9: {129, 263},
	// Root
	53: {105, 279}, 60: {117, 279}, 52: {129, 279},
	54: {97, 288}, 38: {97, 298}, 58: {97, 308},
	19: {137, 288}, 39: {137, 298}, 41: {137, 308},
}

// channelControls bends the channels that would otherwise cross a center.
// Channels not listed are straight.
var channelControls = map[bodygraph.Channel]Point{
	{A: 10, B: 20}: {88, 152},
	{A: 10, B: 34}: {82, 210},
	{A: 10, B: 57}: {60, 186},
	{A: 12, B: 22}: {186, 140},
	{A: 16, B: 48}: {36, 130},
	{A: 18, B: 58}: {40, 300},
	{A: 19, B: 49}: {158, 262},
	{A: 20, B: 34}: {72, 186},
	{A: 20, B: 57}: {48, 150},
	{A: 21, B: 45}: {162, 150},
	{A: 26, B: 44}: {100, 222},
	{A: 28, B: 38}: {62, 286},
	{A: 30, B: 41}: {194, 300},
	{A: 32, B: 54}: {76, 262},
	{A: 34, B: 57}: {62, 244},
	{A: 35, B: 36}: {198, 126},
	{A: 39, B: 55}: {172, 286},
}

// centerShapes are the nine center outlines as closed polygons.
var centerShapes = map[bodygraph.CenterID][]Point{
	bodygraph.CenterHead:        {{117, 6}, {145, 46}, {89, 46}},
	bodygraph.CenterAjna:        {{89, 51}, {145, 51}, {117, 93}},
	bodygraph.CenterThroat:      {{94, 101}, {140, 101}, {140, 143}, {94, 143}},
	bodygraph.CenterG:           {{117, 151}, {144, 178}, {117, 205}, {90, 178}},
	bodygraph.CenterHeart:       {{151, 200}, {179, 186}, {178, 217}},
	bodygraph.CenterSpleen:      {{12, 212}, {62, 244}, {12, 276}},
	bodygraph.CenterSolarPlexus: {{222, 212}, {222, 276}, {172, 244}},
	bodygraph.CenterSacral:      {{94, 227}, {140, 227}, {140, 267}, {94, 267}},
	bodygraph.CenterRoot:        {{94, 275}, {140, 275}, {140, 312}, {94, 312}},
}

// bodyOutline is the decorative silhouette drawn between channels and centers.
const bodyOutline = "M117 1 C99 1 85 13 85 30 C85 42 91 50 99 55 L99 97 " +
	"C70 101 44 114 34 140 L8 204 C2 222 3 286 9 298 L58 318 L176 318 " +
	"L225 298 C231 286 232 222 226 204 L200 140 C190 114 164 101 135 97 " +
	"L135 55 C143 50 149 42 149 30 C149 13 135 1 117 1 Z"

// Table bundles the geometry lookups the compositor needs.
type Table struct {
	Gates   map[bodygraph.Gate]Point
	Paths   map[bodygraph.Channel]Quad
	Centers map[bodygraph.CenterID]string
	Outline string
}

var defaultTable = buildTable()

// Default returns the process-wide geometry table. It is shared and must
// not be modified; use Clone for a private copy.
func Default() *Table {
	return defaultTable
}

func buildTable() *Table {
	t := &Table{
		Gates:   make(map[bodygraph.Gate]Point, len(gateCoords)),
		Paths:   make(map[bodygraph.Channel]Quad, bodygraph.ChannelCount),
		Centers: make(map[bodygraph.CenterID]string, len(centerShapes)),
		Outline: bodyOutline,
	}
	for g, p := range gateCoords {
		t.Gates[g] = p
	}
	for _, ci := range bodygraph.Channels() {
		a, okA := gateCoords[ci.A]
		b, okB := gateCoords[ci.B]
		if !okA || !okB {
			continue
		}
		c, ok := channelControls[ci.Channel]
		if !ok {
			c = Lerp(a, b, 0.5)
		}
		t.Paths[ci.Channel] = Quad{P0: a, C: c, P1: b}
	}
	for id, pts := range centerShapes {
		t.Centers[id] = Polygon(pts)
	}
	return t
}

// Clone returns a deep copy of t.
func (t *Table) Clone() *Table {
	c := &Table{
		Gates:   make(map[bodygraph.Gate]Point, len(t.Gates)),
		Paths:   make(map[bodygraph.Channel]Quad, len(t.Paths)),
		Centers: make(map[bodygraph.CenterID]string, len(t.Centers)),
		Outline: t.Outline,
	}
	for k, v := range t.Gates {
		c.Gates[k] = v
	}
	for k, v := range t.Paths {
		c.Paths[k] = v
	}
	for k, v := range t.Centers {
		c.Centers[k] = v
	}
	return c
}

// Gate returns the marker position of g.
func (t *Table) Gate(g bodygraph.Gate) (Point, bool) {
	p, ok := t.Gates[g]
	return p, ok
}

// Channel returns the curve of ch, oriented from ch.A to ch.B.
func (t *Table) Channel(ch bodygraph.Channel) (Quad, bool) {
	q, ok := t.Paths[bodygraph.NewChannel(ch.A, ch.B)]
	return q, ok
}

// Half returns the half of ch that starts at gate g and ends at the
// channel midpoint.
func (t *Table) Half(ch bodygraph.Channel, g bodygraph.Gate) (Quad, bool) {
	if !ch.Contains(g) {
		return Quad{}, false
	}
	if _, ok := t.Gates[g]; !ok {
		return Quad{}, false
	}
	q, ok := t.Channel(ch)
	if !ok {
		return Quad{}, false
	}
	first, second := q.Split()
	if g == bodygraph.NewChannel(ch.A, ch.B).A {
		return first, true
	}
	return second.Reverse(), true
}

// Center returns the outline path data of c.
func (t *Table) Center(c bodygraph.CenterID) (string, bool) {
	d, ok := t.Centers[c]
	return d, ok
}

// Version returns a short digest of the table contents. It changes whenever
// any coordinate or shape changes and is used to invalidate cached renders.
func (t *Table) Version() string {
	h := sha256.New()

	gates := make([]bodygraph.Gate, 0, len(t.Gates))
	for g := range t.Gates {
		gates = append(gates, g)
	}
	slices.Sort(gates)
	for _, g := range gates {
		p := t.Gates[g]
		fmt.Fprintf(h, "g%d:%s,%s;", g, Num(p.X), Num(p.Y))
	}

	for _, ci := range bodygraph.Channels() {
		if q, ok := t.Paths[ci.Channel]; ok {
			fmt.Fprintf(h, "c%s:%s;", ci.Key(), q.PathData())
		}
	}
	for _, c := range bodygraph.AllCenters {
		fmt.Fprintf(h, "z%s:%s;", c, t.Centers[c])
	}
	h.Write([]byte(t.Outline))
	return hex.EncodeToString(h.Sum(nil))[:16]
}
