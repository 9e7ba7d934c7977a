package render

import (
	"encoding/json"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/talgya/bodygraph/internal/bodygraph"
	"github.com/talgya/bodygraph/internal/geometry"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func compose(t *testing.T, acts map[string]any, centers []string) Scene {
	t.Helper()
	res := bodygraph.Resolve(bodygraph.Chart{GateActivations: acts, DefinedCenters: centers})
	return New(DefaultTheme()).Compose(res)
}

func opsFor(s Scene, role Role, pred func(Op) bool) []Op {
	var out []Op
	for _, op := range s.Find(role) {
		if pred(op) {
			out = append(out, op)
		}
	}
	return out
}

func TestDefaultThemeValid(t *testing.T) {
	require.NoError(t, DefaultTheme().Validate())

	th := DefaultTheme()
	th.HangingWidth = th.CompleteWidth
	assert.Error(t, th.Validate())

	th = DefaultTheme()
	th.Design.Line = ""
	assert.Error(t, th.Validate())

	th = DefaultTheme()
	th.Both.MarkerStroke = ""
	assert.EqualError(t, th.Validate(), "theme.both.marker_stroke is required")

	th = DefaultTheme()
	th.Personality.MarkerText = " "
	assert.EqualError(t, th.Validate(), "theme.personality.marker_text is required")
}

func TestThemeValidateReportsFirstMissing(t *testing.T) {
	th := DefaultTheme()
	th.Outline = ""
	th.Design.Glow = ""
	th.InactiveChannel = ""
	for i := 0; i < 50; i++ {
		assert.EqualError(t, th.Validate(), "theme.inactive_channel is required")
	}
}

func TestBaseLayerTotality(t *testing.T) {
	for name, acts := range map[string]map[string]any{
		"empty":  {},
		"nil":    nil,
		"sparse": {"1": "personality"},
		"dense":  {"10": "both", "20": "design", "34": "personality", "57": "both", "64": "design", "47": "personality"},
	} {
		t.Run(name, func(t *testing.T) {
			s := compose(t, acts, []string{})
			counts := s.Counts()
			assert.Equal(t, 36, counts[RoleBaseChannel])
			assert.Equal(t, 64, counts[RoleMarker])
			assert.Equal(t, 64, counts[RoleLabel])
			assert.Equal(t, 9, counts[RoleCenter])
			assert.Equal(t, 1, counts[RoleOutline])
		})
	}
}

func TestLayerOrder(t *testing.T) {
	s := compose(t, map[string]any{"1": "personality", "8": "design", "64": "both"}, []string{"G"})
	require.NotEmpty(t, s.Ops)
	for i := 1; i < len(s.Ops); i++ {
		assert.LessOrEqual(t, s.Ops[i-1].Layer, s.Ops[i].Layer, "op %d (%s) before op %d (%s)", i-1, s.Ops[i-1].ID, i, s.Ops[i].ID)
	}
	assert.Equal(t, LayerBase, s.Ops[0].Layer)
	assert.Equal(t, LayerMarkers, s.Ops[len(s.Ops)-1].Layer)
}

func TestEndToEndScene(t *testing.T) {
	th := DefaultTheme()
	s := compose(t, map[string]any{"1": "personality", "8": "personality"}, []string{"G", "Throat"})

	active := opsFor(s, RoleChannel, func(Op) bool { return true })
	require.Len(t, active, 1)
	ch := active[0]
	assert.Equal(t, "1-8", ch.Channel)
	assert.Equal(t, bodygraph.SourcePersonality, ch.Source)
	assert.Equal(t, th.Personality.Line, ch.Style.Stroke)
	assert.Equal(t, th.CompleteWidth, ch.Style.StrokeWidth)
	assert.Equal(t, GlowPersonality, ch.Style.Filter)
	assert.Empty(t, s.Find(RoleGateHalf))

	for _, op := range s.Find(RoleCenter) {
		want := op.Center == "G" || op.Center == "Throat"
		assert.Equal(t, want, op.Defined, op.Center)
		if want {
			assert.Equal(t, th.DefinedCenterFill, op.Style.Fill)
		} else {
			assert.Equal(t, th.UndefinedCenterFill, op.Style.Fill)
		}
	}

	activeMarkers, inactiveMarkers := 0, 0
	for _, op := range s.Find(RoleMarker) {
		switch op.Gate {
		case 1, 8:
			activeMarkers++
			assert.Equal(t, th.Personality.MarkerFill, op.Style.Fill)
			assert.Equal(t, GlowPersonality, op.Style.Filter)
		default:
			inactiveMarkers++
			assert.Equal(t, th.InactiveMarkerFill, op.Style.Fill)
			assert.Empty(t, op.Style.Filter)
		}
	}
	assert.Equal(t, 2, activeMarkers)
	assert.Equal(t, 62, inactiveMarkers)
}

func TestMixedChannelDrawsTwoColors(t *testing.T) {
	th := DefaultTheme()
	s := compose(t, map[string]any{"1": "personality", "8": "design"}, nil)

	assert.Empty(t, s.Find(RoleChannel), "mixed channel must not collapse into one path")
	halves := s.Find(RoleGateHalf)
	require.Len(t, halves, 2)

	byGate := map[bodygraph.Gate]Op{}
	for _, h := range halves {
		byGate[h.Gate] = h
		assert.Equal(t, th.CompleteWidth, h.Style.StrokeWidth)
		assert.Equal(t, "1-8", h.Channel)
	}
	assert.Equal(t, th.Personality.Line, byGate[1].Style.Stroke)
	assert.Equal(t, th.Design.Line, byGate[8].Style.Stroke)
	assert.Equal(t, GlowDesign, byGate[8].Style.Filter)
	assert.NotEqual(t, byGate[1].D, byGate[8].D)
}

func TestHangingGateThinner(t *testing.T) {
	th := DefaultTheme()
	s := compose(t, map[string]any{"1": "design"}, nil)

	halves := s.Find(RoleGateHalf)
	require.Len(t, halves, 1)
	assert.Equal(t, bodygraph.Gate(1), halves[0].Gate)
	assert.Equal(t, th.HangingWidth, halves[0].Style.StrokeWidth)
	assert.Less(t, halves[0].Style.StrokeWidth, th.CompleteWidth)
}

func TestBothSourceShortGate(t *testing.T) {
	th := DefaultTheme()
	s := compose(t, map[string]any{"64": "both"}, nil)

	halves := s.Find(RoleGateHalf)
	require.Len(t, halves, 2)
	first, second := halves[0], halves[1]
	assert.Equal(t, first.D, second.D, "copies share geometry")
	require.NotNil(t, first.Offset)
	require.NotNil(t, second.Offset)
	assert.NotEqual(t, *first.Offset, *second.Offset)
	assert.Equal(t, first.Offset.X, -second.Offset.X)

	// Short gates are filled shapes, not strokes.
	assert.Equal(t, th.Personality.Line, first.Style.Fill)
	assert.Equal(t, th.Design.Line, second.Style.Fill)
	assert.Zero(t, first.Style.StrokeWidth)
	assert.Contains(t, first.D, "Z")
	assert.Equal(t, GlowBoth, first.Style.Filter)

	markers := opsFor(s, RoleMarker, func(op Op) bool { return op.Gate == 64 })
	require.Len(t, markers, 1)
	assert.Equal(t, th.Both.MarkerFill, markers[0].Style.Fill)
	assert.Equal(t, th.Both.MarkerStroke, markers[0].Style.Stroke)
	assert.Equal(t, GlowBoth, markers[0].Style.Filter)
}

func TestBothGateInCompleteChannel(t *testing.T) {
	th := DefaultTheme()
	s := compose(t, map[string]any{"25": "both", "51": "personality"}, nil)

	halves := s.Find(RoleGateHalf)
	require.Len(t, halves, 3)
	for _, h := range halves {
		assert.Equal(t, th.CompleteWidth, h.Style.StrokeWidth)
	}
	both := opsFor(s, RoleGateHalf, func(op Op) bool { return op.Gate == 25 })
	require.Len(t, both, 2)
	assert.Equal(t, th.Personality.Line, both[0].Style.Stroke)
	assert.Equal(t, th.Design.Line, both[1].Style.Stroke)
}

func TestShortCompleteChannelIsFilled(t *testing.T) {
	s := compose(t, map[string]any{"47": "design", "64": "design"}, nil)
	ch := s.Find(RoleChannel)
	require.Len(t, ch, 1)
	assert.Equal(t, "47-64", ch[0].Channel)
	assert.Equal(t, DefaultTheme().Design.Line, ch[0].Style.Fill)
	assert.Empty(t, ch[0].Style.Stroke)
}

func TestIntegrationGateHangsOnEveryChannel(t *testing.T) {
	s := compose(t, map[string]any{"10": "personality", "20": "personality"}, nil)
	assert.Len(t, s.Find(RoleChannel), 1)
	hanging := s.Find(RoleGateHalf)
	// 10 toward 34 and 57, 20 toward 34 and 57.
	assert.Len(t, hanging, 4)
}

func TestMissingGeometrySkipped(t *testing.T) {
	c := New(DefaultTheme())
	c.Geometry = c.Geometry.Clone()
	delete(c.Geometry.Gates, 8)

	res := bodygraph.Resolve(bodygraph.Chart{GateActivations: map[string]any{"1": "personality", "8": "design"}})
	s := c.Compose(res)

	assert.Equal(t, 63, s.Counts()[RoleMarker])
	halves := s.Find(RoleGateHalf)
	require.Len(t, halves, 1)
	assert.Equal(t, bodygraph.Gate(1), halves[0].Gate)
}

func TestMissingGeometrySameSource(t *testing.T) {
	c := New(DefaultTheme())
	c.Geometry = c.Geometry.Clone()
	delete(c.Geometry.Gates, 8)

	res := bodygraph.Resolve(bodygraph.Chart{GateActivations: map[string]any{"1": "personality", "8": "personality"}})
	require.Equal(t, []bodygraph.Channel{{A: 1, B: 8}}, res.Channels)
	s := c.Compose(res)

	assert.Empty(t, s.Find(RoleChannel))
	assert.Equal(t, 63, s.Counts()[RoleMarker])
	halves := s.Find(RoleGateHalf)
	require.Len(t, halves, 1)
	assert.Equal(t, bodygraph.Gate(1), halves[0].Gate)
	assert.Equal(t, bodygraph.SourcePersonality, halves[0].Source)
	assert.Equal(t, c.Theme.CompleteWidth, halves[0].Style.StrokeWidth)
	assert.Equal(t, GlowPersonality, halves[0].Style.Filter)
}

func TestComposeDeterministic(t *testing.T) {
	acts := map[string]any{"1": "personality", "8": "design", "10": "both", "20": "design", "34": "personality", "64": "both", "47": "design"}
	first := compose(t, acts, []string{"Emotional", "G"})
	second := compose(t, acts, []string{"Emotional", "G"})
	if diff := cmp.Diff(first, second); diff != "" {
		t.Fatalf("Compose not deterministic (-first +second):\n%s", diff)
	}

	a, err := json.Marshal(first)
	require.NoError(t, err)
	b, err := json.Marshal(second)
	require.NoError(t, err)
	assert.Equal(t, string(a), string(b))
}

func TestComposeConcurrent(t *testing.T) {
	c := New(DefaultTheme())
	res := bodygraph.Resolve(bodygraph.Chart{
		GateActivations: map[string]any{"1": "personality", "8": "both", "34": "design", "57": "design"},
		DefinedCenters:  []string{"Sacral", "Spleen"},
	})
	want := c.Compose(res)

	var wg sync.WaitGroup
	results := make([]Scene, 16)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = c.Compose(res)
		}(i)
	}
	wg.Wait()

	for i, got := range results {
		if diff := cmp.Diff(want, got); diff != "" {
			t.Errorf("goroutine %d diverged (-want +got):\n%s", i, diff)
		}
	}
}

func TestCompositorVersion(t *testing.T) {
	a := New(DefaultTheme())
	b := New(DefaultTheme())
	assert.Equal(t, a.Version(), b.Version())
	assert.Len(t, a.Version(), 16)

	theme := DefaultTheme()
	theme.Design.Line = "#00FF00"
	assert.NotEqual(t, a.Version(), New(theme).Version())

	moved := New(DefaultTheme())
	moved.Geometry = moved.Geometry.Clone()
	moved.Geometry.Gates[1] = geometry.Point{X: 1, Y: 1}
	assert.NotEqual(t, a.Version(), moved.Version())
}
