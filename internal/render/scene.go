package render

import (
	"fmt"
	"slices"

	"github.com/talgya/bodygraph/internal/bodygraph"
	"github.com/talgya/bodygraph/internal/geometry"
)

// Layer orders draw operations; later layers draw over earlier ones.
type Layer uint8

const (
	LayerBase    Layer = iota // Every channel, inactive style
	LayerActive               // Active channels and gate halves
	LayerOutline              // Body silhouette
	LayerCenters              // Nine center shapes
	LayerMarkers              // 64 gate markers and labels
)

var layerNames = [...]string{"base", "active", "outline", "centers", "markers"}

func (l Layer) String() string {
	if int(l) < len(layerNames) {
		return layerNames[l]
	}
	return "unknown"
}

// MarshalText implements encoding.TextMarshaler.
func (l Layer) MarshalText() ([]byte, error) {
	return []byte(l.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (l *Layer) UnmarshalText(text []byte) error {
	i := slices.Index(layerNames[:], string(text))
	if i < 0 {
		return fmt.Errorf("unknown layer %q", text)
	}
	*l = Layer(i)
	return nil
}

// Kind is the primitive an Op draws.
type Kind string

const (
	KindPath   Kind = "path"
	KindCircle Kind = "circle"
	KindText   Kind = "text"
)

// Role tags what an Op represents so consumers can pick elements out of
// the flat list without parsing ids.
type Role string

const (
	RoleBaseChannel Role = "base-channel"
	RoleChannel     Role = "channel"   // Completed single-source channel, one path
	RoleGateHalf    Role = "gate-half" // One gate's half of a channel
	RoleOutline     Role = "outline"
	RoleCenter      Role = "center"
	RoleMarker      Role = "marker"
	RoleLabel       Role = "label"
)

// Style carries the presentation attributes of an Op. Zero values mean
// "attribute not set".
type Style struct {
	Fill        string  `json:"fill,omitempty"`
	Stroke      string  `json:"stroke,omitempty"`
	StrokeWidth float64 `json:"stroke_width,omitempty"`
	Opacity     float64 `json:"opacity,omitempty"`
	Filter      string  `json:"filter,omitempty"`
	LineCap     string  `json:"line_cap,omitempty"`
	FontSize    float64 `json:"font_size,omitempty"`
	FontFamily  string  `json:"font_family,omitempty"`
	FontWeight  string  `json:"font_weight,omitempty"`
}

// Op is one draw instruction.
type Op struct {
	Layer  Layer           `json:"layer"`
	Role   Role            `json:"role"`
	Kind   Kind            `json:"kind"`
	ID     string          `json:"id"`
	D      string          `json:"d,omitempty"`
	CX     float64         `json:"cx,omitempty"`
	CY     float64         `json:"cy,omitempty"`
	R      float64         `json:"r,omitempty"`
	X      float64         `json:"x,omitempty"`
	Y      float64         `json:"y,omitempty"`
	Text   string          `json:"text,omitempty"`
	Offset *geometry.Point `json:"offset,omitempty"`

	Gate    bodygraph.Gate   `json:"gate,omitempty"`
	Channel string           `json:"channel,omitempty"`
	Center  string           `json:"center,omitempty"`
	Source  bodygraph.Source `json:"source,omitempty"`
	Defined bool             `json:"defined,omitempty"`

	Style Style `json:"style"`
}

// Filter is a glow definition referenced by Style.Filter.
type Filter struct {
	ID    string  `json:"id"`
	Color string  `json:"color"`
	Blur  float64 `json:"blur"`
}

// Scene is the compositor output: an ordered list of draw operations in
// the logical canvas.
type Scene struct {
	Width      float64  `json:"width"`
	Height     float64  `json:"height"`
	Background string   `json:"background,omitempty"`
	FontFamily string   `json:"font_family,omitempty"`
	Filters    []Filter `json:"filters"`
	Ops        []Op     `json:"ops"`
}

// Counts tallies ops by role.
func (s Scene) Counts() map[Role]int {
	out := make(map[Role]int)
	for _, op := range s.Ops {
		out[op.Role]++
	}
	return out
}

// Find returns the ops with the given role, in draw order.
func (s Scene) Find(role Role) []Op {
	var out []Op
	for _, op := range s.Ops {
		if op.Role == role {
			out = append(out, op)
		}
	}
	return out
}
