// Package render turns a resolved chart into an ordered vector scene.
// Composition is a pure function of the resolution, the geometry table
// and the theme; a Compositor can be shared across goroutines.
package render

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/talgya/bodygraph/internal/bodygraph"
	"github.com/talgya/bodygraph/internal/geometry"
)

// Glow filter ids, one per source.
const (
	GlowPersonality = "glow-personality"
	GlowDesign      = "glow-design"
	GlowBoth        = "glow-both"
)

// Compositor draws bodygraph scenes.
type Compositor struct {
	Geometry *geometry.Table
	Theme    Theme
}

// New returns a compositor over the default geometry.
func New(theme Theme) *Compositor {
	return &Compositor{Geometry: geometry.Default(), Theme: theme}
}

// Version digests the geometry table and the theme. Two compositors with
// the same version produce identical scenes for every input.
func (c *Compositor) Version() string {
	theme, _ := json.Marshal(c.Theme)
	sum := sha256.Sum256(append([]byte(c.Geometry.Version()+"\n"), theme...))
	return hex.EncodeToString(sum[:8])
}

// Compose builds the scene for res. Layers are emitted in fixed order:
// base channels, active overlays, body outline, centers, gate markers.
func (c *Compositor) Compose(res bodygraph.Resolution) Scene {
	scene := Scene{
		Width:      geometry.Width,
		Height:     geometry.Height,
		Background: c.Theme.Background,
		FontFamily: c.Theme.FontFamily,
		Filters: []Filter{
			{ID: GlowPersonality, Color: c.Theme.Personality.Glow, Blur: c.Theme.GlowBlur},
			{ID: GlowDesign, Color: c.Theme.Design.Glow, Blur: c.Theme.GlowBlur},
			{ID: GlowBoth, Color: c.Theme.Both.Glow, Blur: c.Theme.GlowBlur},
		},
	}

	channels := bodygraph.Channels()
	c.baseLayer(&scene, channels)
	c.activeLayer(&scene, channels, res.Activations)
	scene.Ops = append(scene.Ops, Op{
		Layer: LayerOutline,
		Role:  RoleOutline,
		Kind:  KindPath,
		ID:    "outline",
		D:     c.Geometry.Outline,
		Style: Style{Fill: "none", Stroke: c.Theme.Outline, StrokeWidth: 1},
	})
	c.centerLayer(&scene, res)
	c.markerLayer(&scene, res.Activations)
	return scene
}

func (c *Compositor) baseLayer(scene *Scene, channels []bodygraph.ChannelInfo) {
	for _, ci := range channels {
		q, ok := c.Geometry.Channel(ci.Channel)
		if !ok {
			slog.Debug("no geometry for channel", "channel", ci.Key())
			continue
		}
		scene.Ops = append(scene.Ops, Op{
			Layer:   LayerBase,
			Role:    RoleBaseChannel,
			Kind:    KindPath,
			ID:      "base-" + ci.Key(),
			D:       q.PathData(),
			Channel: ci.Key(),
			Style: Style{
				Fill:        "none",
				Stroke:      c.Theme.InactiveChannel,
				StrokeWidth: c.Theme.BaseWidth,
				LineCap:     "round",
			},
		})
	}
}

// activeLayer walks the channel table once. A channel with both gates
// active is complete: a single shared source draws one path, anything else
// draws each gate's half in its own color. A channel with one active gate
// draws that gate's half at hanging width.
func (c *Compositor) activeLayer(scene *Scene, channels []bodygraph.ChannelInfo, acts bodygraph.Activations) {
	for _, ci := range channels {
		a, b := acts.Source(ci.A), acts.Source(ci.B)
		switch {
		case a != bodygraph.SourceNone && b != bodygraph.SourceNone:
			style := bodygraph.ChannelStyleOf(a, b)
			if !style.Mixed {
				c.fullChannel(scene, ci, style.Source)
				continue
			}
			c.gateHalf(scene, ci, ci.A, a, c.Theme.CompleteWidth)
			c.gateHalf(scene, ci, ci.B, b, c.Theme.CompleteWidth)
		case a != bodygraph.SourceNone:
			c.gateHalf(scene, ci, ci.A, a, c.Theme.HangingWidth)
		case b != bodygraph.SourceNone:
			c.gateHalf(scene, ci, ci.B, b, c.Theme.HangingWidth)
		}
	}
}

func (c *Compositor) fullChannel(scene *Scene, ci bodygraph.ChannelInfo, src bodygraph.Source) {
	q, ok := c.Geometry.Channel(ci.Channel)
	if !ok {
		slog.Debug("no geometry for channel", "channel", ci.Key())
		return
	}
	_, okA := c.Geometry.Gate(ci.A)
	_, okB := c.Geometry.Gate(ci.B)
	if !okA || !okB {
		// Draw the half that still has a position.
		slog.Debug("no geometry for channel gate", "channel", ci.Key())
		c.gateHalf(scene, ci, ci.A, src, c.Theme.CompleteWidth)
		c.gateHalf(scene, ci, ci.B, src, c.Theme.CompleteWidth)
		return
	}
	short := bodygraph.IsShortGate(ci.A) && bodygraph.IsShortGate(ci.B)
	op := c.strokeOrRibbon(q, short, c.Theme.Colors(src).Line, c.Theme.CompleteWidth, glowFor(src))
	op.Layer = LayerActive
	op.Role = RoleChannel
	op.ID = "channel-" + ci.Key()
	op.Channel = ci.Key()
	op.Source = src
	scene.Ops = append(scene.Ops, op)
}

// gateHalf draws gate g's half of the channel. A "both" gate is drawn twice,
// once per single-source color, shifted apart perpendicular to the channel
// so both colors stay visible.
func (c *Compositor) gateHalf(scene *Scene, ci bodygraph.ChannelInfo, g bodygraph.Gate, src bodygraph.Source, width float64) {
	q, ok := c.Geometry.Half(ci.Channel, g)
	if !ok {
		slog.Debug("no geometry for gate", "gate", int(g), "channel", ci.Key())
		return
	}
	short := bodygraph.IsShortGate(g)
	id := fmt.Sprintf("gate-%d-%s", g, ci.Key())

	if src != bodygraph.SourceBoth {
		op := c.strokeOrRibbon(q, short, c.Theme.Colors(src).Line, width, glowFor(src))
		op.Layer = LayerActive
		op.Role = RoleGateHalf
		op.ID = id
		op.Gate = g
		op.Channel = ci.Key()
		op.Source = src
		scene.Ops = append(scene.Ops, op)
		return
	}

	n := geometry.Normal(q.P0, q.P1).Scale(c.Theme.BothOffset)
	copies := []struct {
		suffix string
		color  string
		offset geometry.Point
	}{
		{"-personality", c.Theme.Personality.Line, n},
		{"-design", c.Theme.Design.Line, n.Scale(-1)},
	}
	for _, cp := range copies {
		op := c.strokeOrRibbon(q, short, cp.color, width, GlowBoth)
		op.Layer = LayerActive
		op.Role = RoleGateHalf
		op.ID = id + cp.suffix
		op.Gate = g
		op.Channel = ci.Key()
		op.Source = bodygraph.SourceBoth
		off := geometry.Point{X: roundOffset(cp.offset.X), Y: roundOffset(cp.offset.Y)}
		op.Offset = &off
		scene.Ops = append(scene.Ops, op)
	}
}

// strokeOrRibbon returns a stroked path for long geometry and a filled
// ribbon for short geometry.
func (c *Compositor) strokeOrRibbon(q geometry.Quad, short bool, color string, width float64, filter string) Op {
	if short {
		return Op{
			Kind:  KindPath,
			D:     geometry.Ribbon(q, width),
			Style: Style{Fill: color, Filter: filter},
		}
	}
	return Op{
		Kind: KindPath,
		D:    q.PathData(),
		Style: Style{
			Fill:        "none",
			Stroke:      color,
			StrokeWidth: width,
			LineCap:     "round",
			Filter:      filter,
		},
	}
}

func (c *Compositor) centerLayer(scene *Scene, res bodygraph.Resolution) {
	for _, id := range bodygraph.AllCenters {
		d, ok := c.Geometry.Center(id)
		if !ok {
			slog.Debug("no geometry for center", "center", id.String())
			continue
		}
		defined := res.IsDefined(id)
		style := Style{Fill: c.Theme.UndefinedCenterFill, Stroke: c.Theme.UndefinedCenterStroke, StrokeWidth: 1}
		if defined {
			style = Style{Fill: c.Theme.DefinedCenterFill, Stroke: c.Theme.DefinedCenterStroke, StrokeWidth: 1}
		}
		scene.Ops = append(scene.Ops, Op{
			Layer:   LayerCenters,
			Role:    RoleCenter,
			Kind:    KindPath,
			ID:      "center-" + id.String(),
			D:       d,
			Center:  id.String(),
			Defined: defined,
			Style:   style,
		})
	}
}

func (c *Compositor) markerLayer(scene *Scene, acts bodygraph.Activations) {
	for g := bodygraph.MinGate; g <= bodygraph.MaxGate; g++ {
		p, ok := c.Geometry.Gate(g)
		if !ok {
			slog.Debug("no geometry for gate marker", "gate", int(g))
			continue
		}
		src := acts.Source(g)
		colors := c.Theme.Colors(src)
		label := strconv.Itoa(int(g))

		scene.Ops = append(scene.Ops,
			Op{
				Layer:  LayerMarkers,
				Role:   RoleMarker,
				Kind:   KindCircle,
				ID:     "marker-" + label,
				CX:     p.X,
				CY:     p.Y,
				R:      c.Theme.MarkerRadius,
				Gate:   g,
				Source: src,
				Style: Style{
					Fill:        colors.MarkerFill,
					Stroke:      colors.MarkerStroke,
					StrokeWidth: 0.5,
					Filter:      glowFor(src),
				},
			},
			Op{
				Layer:  LayerMarkers,
				Role:   RoleLabel,
				Kind:   KindText,
				ID:     "label-" + label,
				X:      p.X,
				Y:      p.Y,
				Text:   label,
				Gate:   g,
				Source: src,
				Style: Style{
					Fill:       colors.MarkerText,
					FontSize:   c.Theme.LabelSize,
					FontWeight: labelWeight(src),
				},
			},
		)
	}
}

func glowFor(s bodygraph.Source) string {
	switch s {
	case bodygraph.SourcePersonality:
		return GlowPersonality
	case bodygraph.SourceDesign:
		return GlowDesign
	case bodygraph.SourceBoth:
		return GlowBoth
	}
	return ""
}

func labelWeight(s bodygraph.Source) string {
	if s.Active() {
		return "bold"
	}
	return ""
}

func roundOffset(v float64) float64 {
	f, _ := strconv.ParseFloat(geometry.Num(v), 64)
	return f
}
