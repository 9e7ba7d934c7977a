// Package bodygraph holds the fixed gate, channel and center tables and
// resolves a chart's gate activations into completed channels and defined
// centers. Everything here is a pure function over package-level tables
// built once at init.
package bodygraph

import (
	"fmt"
	"strings"
)

// Gate identifies one of the 64 gates.
type Gate int

// Gate domain bounds.
const (
	MinGate Gate = 1
	MaxGate Gate = 64
)

// Valid reports whether g lies in [1..64].
func (g Gate) Valid() bool {
	return g >= MinGate && g <= MaxGate
}

// Source records which calculation activated a gate.
type Source uint8

const (
	SourceNone        Source = iota // Inactive
	SourcePersonality               // Conscious, calculated at the birth instant
	SourceDesign                    // Unconscious, calculated ~88° of solar arc earlier
	SourceBoth                      // Activated independently by both calculations
)

var sourceNames = [...]string{"none", "personality", "design", "both"}

// String returns the wire name of the source.
func (s Source) String() string {
	if int(s) < len(sourceNames) {
		return sourceNames[s]
	}
	return fmt.Sprintf("source(%d)", s)
}

// Active reports whether s is one of the three activating sources.
func (s Source) Active() bool {
	return s >= SourcePersonality && s <= SourceBoth
}

// MarshalText implements encoding.TextMarshaler.
func (s Source) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler. It accepts the same
// names as ParseSource.
func (s *Source) UnmarshalText(text []byte) error {
	v, ok := ParseSource(string(text))
	if !ok {
		return fmt.Errorf("unknown activation source %q", text)
	}
	*s = v
	return nil
}

// sourceSynonyms covers the names older chart payloads used.
var sourceSynonyms = map[string]Source{
	"personality": SourcePersonality,
	"conscious":   SourcePersonality,
	"black":       SourcePersonality,
	"design":      SourceDesign,
	"unconscious": SourceDesign,
	"red":         SourceDesign,
	"both":        SourceBoth,
	"mixed":       SourceBoth,
}

// ParseSource maps a wire value to a Source. Unknown values return false.
func ParseSource(v string) (Source, bool) {
	s, ok := sourceSynonyms[strings.ToLower(strings.TrimSpace(v))]
	return s, ok
}

// Activations maps each active gate to its source. Absent gates are inactive.
// Values are treated as immutable once built.
type Activations map[Gate]Source

// Source returns the activation source for g, or SourceNone.
func (a Activations) Source(g Gate) Source {
	if !g.Valid() {
		return SourceNone
	}
	s := a[g]
	if !s.Active() {
		return SourceNone
	}
	return s
}

// Has reports whether g is active.
func (a Activations) Has(g Gate) bool {
	return a.Source(g) != SourceNone
}

// Channel is an unordered gate pair stored with A < B.
type Channel struct {
	A Gate `json:"a"`
	B Gate `json:"b"`
}

// NewChannel returns the canonical form of the pair {g, p}.
func NewChannel(g, p Gate) Channel {
	if p < g {
		g, p = p, g
	}
	return Channel{A: g, B: p}
}

// Key returns the "A-B" label used in scene ids and the API.
func (c Channel) Key() string {
	return fmt.Sprintf("%d-%d", c.A, c.B)
}

// Other returns the partner of g in the channel.
func (c Channel) Other(g Gate) Gate {
	if g == c.A {
		return c.B
	}
	return c.A
}

// Contains reports whether g is one end of the channel.
func (c Channel) Contains(g Gate) bool {
	return g == c.A || g == c.B
}

// ChannelStyle classifies how a completed channel is colored.
type ChannelStyle struct {
	Mixed  bool   // Two color passes, one per gate
	Source Source // Shared source when not mixed
}

// ChannelStyleOf decides the styling for a channel whose gates carry a and b.
// A single style requires both gates to share one non-"both" source.
func ChannelStyleOf(a, b Source) ChannelStyle {
	if a == b && a != SourceBoth && a.Active() {
		return ChannelStyle{Source: a}
	}
	return ChannelStyle{Mixed: true}
}
