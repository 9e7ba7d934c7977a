package bodygraph

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateTables(t *testing.T) {
	require.NoError(t, ValidateTables())
	assert.Equal(t, 36, ChannelCount)
}

func TestPartnersSymmetric(t *testing.T) {
	for g := MinGate; g <= MaxGate; g++ {
		ps := Partners(g)
		require.NotEmpty(t, ps, "gate %d", g)
		for _, p := range ps {
			assert.Contains(t, Partners(p), g, "partner %d of gate %d", p, g)
		}
	}
	assert.Equal(t, []Gate{20, 34, 57}, Partners(10))
	assert.Equal(t, []Gate{8}, Partners(1))
}

func TestResolveActiveChannels(t *testing.T) {
	tests := []struct {
		name string
		acts Activations
		want []Channel
	}{
		{
			name: "empty",
			acts: Activations{},
			want: []Channel{},
		},
		{
			name: "single pair",
			acts: Activations{1: SourcePersonality, 8: SourcePersonality},
			want: []Channel{{1, 8}},
		},
		{
			name: "hanging only",
			acts: Activations{1: SourcePersonality, 2: SourceDesign},
			want: []Channel{},
		},
		{
			name: "integration gates",
			acts: Activations{10: SourceDesign, 20: SourcePersonality, 34: SourceBoth, 57: SourceDesign},
			want: []Channel{{10, 20}, {10, 34}, {10, 57}, {20, 34}, {20, 57}, {34, 57}},
		},
		{
			name: "out of range ignored",
			acts: Activations{9999: SourcePersonality, 1: SourcePersonality, 0: SourceDesign, -8: SourceDesign},
			want: []Channel{},
		},
		{
			name: "inactive source ignored",
			acts: Activations{1: SourceNone, 8: SourcePersonality},
			want: []Channel{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ResolveActiveChannels(tt.acts)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("ResolveActiveChannels() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestResolveActiveChannelsSymmetry(t *testing.T) {
	for _, ci := range Channels() {
		for _, acts := range []Activations{
			{ci.A: SourcePersonality, ci.B: SourceDesign},
			{ci.B: SourcePersonality, ci.A: SourceDesign},
		} {
			got := ResolveActiveChannels(acts)
			require.Len(t, got, 1, "channel %s", ci.Key())
			assert.Equal(t, ci.Channel, got[0])
		}
		only := ResolveActiveChannels(Activations{ci.A: SourceBoth})
		assert.Empty(t, only, "channel %s with one gate", ci.Key())
	}
}

func TestResolveIdempotent(t *testing.T) {
	chart := Chart{
		GateActivations: map[string]any{"1": "personality", "8": "design", "34": "both", "57": "personality", "13": "design"},
		DefinedCenters:  []string{"G", "Throat", "Emotional"},
	}
	first := Resolve(chart)
	second := Resolve(chart)
	if diff := cmp.Diff(first, second); diff != "" {
		t.Errorf("Resolve not idempotent (-first +second):\n%s", diff)
	}
}

func TestParseActivations(t *testing.T) {
	acts, dropped := ParseActivations(map[string]any{
		"1":    "personality",
		"8":    "Design",
		"13":   " both ",
		"14":   "conscious",
		"9999": "personality",
		"x":    "design",
		"20":   42.0,
		"21":   "sideways",
	})
	assert.Equal(t, Activations{1: SourcePersonality, 8: SourceDesign, 13: SourceBoth, 14: SourcePersonality}, acts)
	assert.Equal(t, 4, dropped)
}

func TestParseActivationsCanonicalKeys(t *testing.T) {
	var logs bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(&logs, &slog.HandlerOptions{Level: slog.LevelDebug})))
	t.Cleanup(func() { slog.SetDefault(prev) })

	acts, dropped := ParseActivations(map[string]any{
		"1":   "personality",
		"01":  "design",
		" 1":  "design",
		"+1":  "design",
		"1 ":  "design",
		"x":   "design",
		"0":   "design",
		"-0":  "design",
		"8":   "personality",
		"064": "both",
	})
	assert.Equal(t, Activations{1: SourcePersonality, 8: SourcePersonality}, acts)
	assert.Equal(t, 8, dropped)

	out := logs.String()
	assert.Contains(t, out, `reason="gate not a number"`)
	assert.Contains(t, out, `reason="gate not in canonical form"`)
	assert.Contains(t, out, `reason="gate out of range"`)
}

func TestResolveStableAcrossCalls(t *testing.T) {
	chart := Chart{GateActivations: map[string]any{"1": "personality", "01": "design", "8": "personality", "+8": "both"}}
	want := Resolve(chart)
	require.Equal(t, []Channel{{1, 8}}, want.Channels)
	assert.Equal(t, ChannelStyle{Source: SourcePersonality}, ChannelStyleOf(want.Activations.Source(1), want.Activations.Source(8)))

	for i := 0; i < 200; i++ {
		got := Resolve(chart)
		if diff := cmp.Diff(want, got); diff != "" {
			t.Fatalf("call %d differs (-want +got):\n%s", i, diff)
		}
	}
}

func TestOutOfRangeResilience(t *testing.T) {
	res := Resolve(Chart{GateActivations: map[string]any{"9999": "personality", "1": "personality"}})
	assert.Empty(t, res.Channels)
	assert.Equal(t, []Gate{1}, res.Hanging)
	assert.NotContains(t, res.Activations, Gate(9999))
	assert.Equal(t, 1, res.Dropped)
}

func TestNormalizeDefinedCenters(t *testing.T) {
	for _, name := range []string{"Solar Plexus", "SolarPlexus", "Emotional", "SP", "solar_plexus"} {
		assert.Equal(t, []CenterID{CenterSolarPlexus}, NormalizeDefinedCenters([]string{name}), name)
	}

	got := NormalizeDefinedCenters([]string{"Root", "ego", "Throat", "throat", "Crown", "Pineal", ""})
	assert.Equal(t, []CenterID{CenterHead, CenterThroat, CenterHeart, CenterRoot}, got)
	assert.Empty(t, NormalizeDefinedCenters(nil))
}

func TestBuildAliasIndexRejectsDuplicates(t *testing.T) {
	var table [numCenters][]string
	table[CenterHeart] = []string{"Will"}
	table[CenterSacral] = []string{"will"}
	_, err := buildAliasIndex(table)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Heart")
}

func TestDeriveDefinedCenters(t *testing.T) {
	got := DeriveDefinedCenters([]Channel{{1, 8}, {34, 57}})
	assert.Equal(t, []CenterID{CenterThroat, CenterG, CenterSpleen, CenterSacral}, got)
}

func TestResolveCentersDerivedOnlyWhenMissing(t *testing.T) {
	acts := map[string]any{"1": "personality", "8": "personality"}

	derived := Resolve(Chart{GateActivations: acts})
	assert.True(t, derived.CentersDerived)
	assert.Equal(t, []CenterID{CenterThroat, CenterG}, derived.Centers)

	empty := Resolve(Chart{GateActivations: acts, DefinedCenters: []string{}})
	assert.False(t, empty.CentersDerived)
	assert.Empty(t, empty.Centers)
}

func TestEndToEndResolution(t *testing.T) {
	res := Resolve(Chart{
		GateActivations: map[string]any{"1": "personality", "8": "personality"},
		DefinedCenters:  []string{"G", "Throat"},
	})
	assert.Equal(t, []Channel{{1, 8}}, res.Channels)
	assert.Equal(t, []CenterID{CenterThroat, CenterG}, res.Centers)
	assert.Empty(t, res.Hanging)
	assert.True(t, res.Complete(Channel{8, 1}))
	assert.True(t, res.IsDefined(CenterG))
	assert.False(t, res.IsDefined(CenterRoot))
}

func TestChannelStyleOf(t *testing.T) {
	tests := []struct {
		a, b Source
		want ChannelStyle
	}{
		{SourcePersonality, SourcePersonality, ChannelStyle{Source: SourcePersonality}},
		{SourceDesign, SourceDesign, ChannelStyle{Source: SourceDesign}},
		{SourcePersonality, SourceDesign, ChannelStyle{Mixed: true}},
		{SourceBoth, SourceBoth, ChannelStyle{Mixed: true}},
		{SourceBoth, SourceDesign, ChannelStyle{Mixed: true}},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ChannelStyleOf(tt.a, tt.b), "%s/%s", tt.a, tt.b)
	}
}

func TestCenterMembership(t *testing.T) {
	total := 0
	for _, c := range AllCenters {
		total += len(GatesOf(c))
	}
	assert.Equal(t, 64, total)

	c, ok := CenterOf(1)
	require.True(t, ok)
	assert.Equal(t, CenterG, c)

	_, ok = CenterOf(65)
	assert.False(t, ok)
}

func TestShortGatesPairUp(t *testing.T) {
	assert.True(t, IsShortGate(64))
	assert.True(t, IsShortGate(47))
	assert.False(t, IsShortGate(1))
	assert.False(t, IsShortGate(10))
}

func TestTextRoundTrip(t *testing.T) {
	var got struct {
		Source  Source     `json:"source"`
		Centers []CenterID `json:"centers"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"source":"Unconscious","centers":["Emotional","g","Root"]}`), &got))
	assert.Equal(t, SourceDesign, got.Source)
	assert.Equal(t, []CenterID{CenterSolarPlexus, CenterG, CenterRoot}, got.Centers)

	out, err := json.Marshal(got)
	require.NoError(t, err)
	assert.JSONEq(t, `{"source":"design","centers":["SolarPlexus","G","Root"]}`, string(out))

	assert.Error(t, json.Unmarshal([]byte(`{"source":"green"}`), &got))
	assert.Error(t, json.Unmarshal([]byte(`{"centers":["Liver"]}`), &got))
}
