package api

import (
	"github.com/talgya/bodygraph/internal/bodygraph"
	"github.com/talgya/bodygraph/internal/geometry"
)

// Reference is the static bodygraph tables as served by the API and dumped
// by the CLI.
type Reference struct {
	GeometryVersion string       `json:"geometry_version"`
	Width           float64      `json:"width"`
	Height          float64      `json:"height"`
	Gates           []GateRef    `json:"gates"`
	Channels        []ChannelRef `json:"channels"`
	Centers         []CenterRef  `json:"centers"`
	Outline         string       `json:"outline"`
}

// GateRef describes one gate.
type GateRef struct {
	Gate     bodygraph.Gate     `json:"gate"`
	Center   bodygraph.CenterID `json:"center"`
	X        float64            `json:"x"`
	Y        float64            `json:"y"`
	Short    bool               `json:"short"`
	Partners []bodygraph.Gate   `json:"partners"`
}

// ChannelRef describes one channel.
type ChannelRef struct {
	Key     string                `json:"key"`
	A       bodygraph.Gate        `json:"a"`
	B       bodygraph.Gate        `json:"b"`
	Name    string                `json:"name"`
	Centers [2]bodygraph.CenterID `json:"centers"`
	Path    string                `json:"path,omitempty"`
}

// CenterRef describes one center.
type CenterRef struct {
	ID      bodygraph.CenterID `json:"id"`
	Aliases []string           `json:"aliases"`
	Gates   []bodygraph.Gate   `json:"gates"`
	Shape   string             `json:"shape,omitempty"`
}

// BuildReference collects the lookup tables. Gates missing from t keep a
// zero coordinate.
func BuildReference(t *geometry.Table) Reference {
	ref := Reference{
		GeometryVersion: t.Version(),
		Width:           geometry.Width,
		Height:          geometry.Height,
		Outline:         t.Outline,
	}

	for g := bodygraph.MinGate; g <= bodygraph.MaxGate; g++ {
		center, _ := bodygraph.CenterOf(g)
		p, _ := t.Gate(g)
		ref.Gates = append(ref.Gates, GateRef{
			Gate:     g,
			Center:   center,
			X:        p.X,
			Y:        p.Y,
			Short:    bodygraph.IsShortGate(g),
			Partners: bodygraph.Partners(g),
		})
	}

	for _, ci := range bodygraph.Channels() {
		from, to := ci.Centers()
		cr := ChannelRef{
			Key:     ci.Key(),
			A:       ci.A,
			B:       ci.B,
			Name:    ci.Name,
			Centers: [2]bodygraph.CenterID{from, to},
		}
		if q, ok := t.Channel(ci.Channel); ok {
			cr.Path = q.PathData()
		}
		ref.Channels = append(ref.Channels, cr)
	}

	for _, c := range bodygraph.AllCenters {
		shape, _ := t.Center(c)
		ref.Centers = append(ref.Centers, CenterRef{
			ID:      c,
			Aliases: bodygraph.Aliases(c),
			Gates:   bodygraph.GatesOf(c),
			Shape:   shape,
		})
	}
	return ref
}
