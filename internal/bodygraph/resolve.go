package bodygraph

import (
	"log/slog"
	"slices"
	"strconv"
)

// Chart is the wire input supplied by the chart-calculation service.
// GateActivations is kept loosely typed so malformed entries can be
// dropped one at a time instead of failing the whole document.
type Chart struct {
	GateActivations map[string]any `json:"gateActivations"`
	DefinedCenters  []string       `json:"definedCenters"`
}

// Resolution is the resolver's output and the compositor's input.
type Resolution struct {
	Activations    Activations `json:"-"`
	Channels       []Channel   `json:"channels"`
	Centers        []CenterID  `json:"centers"`
	Hanging        []Gate      `json:"hanging"`
	CentersDerived bool        `json:"centers_derived"`
	Dropped        int         `json:"dropped"`
}

// ParseActivations converts the wire mapping into Activations. Keys must be
// the plain decimal form of a gate in [1..64] ("7", not "07" or " 7"), so
// no two keys can name the same gate. Other keys and values that are not a
// known source are dropped. The second return value counts dropped entries.
func ParseActivations(raw map[string]any) (Activations, int) {
	acts := make(Activations, len(raw))
	dropped := 0
	for key, val := range raw {
		n, err := strconv.Atoi(key)
		if err != nil {
			slog.Debug("dropping activation", "gate", key, "reason", "gate not a number")
			dropped++
			continue
		}
		if strconv.Itoa(n) != key {
			slog.Debug("dropping activation", "gate", key, "reason", "gate not in canonical form")
			dropped++
			continue
		}
		if !Gate(n).Valid() {
			slog.Debug("dropping activation", "gate", key, "reason", "gate out of range")
			dropped++
			continue
		}
		str, ok := val.(string)
		if !ok {
			slog.Debug("dropping activation", "gate", n, "reason", "source not a string")
			dropped++
			continue
		}
		src, ok := ParseSource(str)
		if !ok {
			slog.Debug("dropping activation", "gate", n, "source", str, "reason", "unknown source")
			dropped++
			continue
		}
		acts[Gate(n)] = src
	}
	return acts, dropped
}

// ResolveActiveChannels returns every channel whose two gates are both
// active, sorted by (A, B). Each channel appears once.
func ResolveActiveChannels(acts Activations) []Channel {
	set := make(map[Channel]struct{})
	for g := range acts {
		if !acts.Has(g) {
			continue
		}
		for _, p := range partners[g] {
			if acts.Has(p) {
				set[NewChannel(g, p)] = struct{}{}
			}
		}
	}
	out := make([]Channel, 0, len(set))
	for c := range set {
		out = append(out, c)
	}
	slices.SortFunc(out, compareChannels)
	return out
}

func compareChannels(a, b Channel) int {
	if a.A != b.A {
		return int(a.A) - int(b.A)
	}
	return int(a.B) - int(b.B)
}

// NormalizeDefinedCenters maps free-text center names onto canonical ids.
// Unrecognised names are dropped; the result is in canonical order with
// no duplicates.
func NormalizeDefinedCenters(raw []string) []CenterID {
	var found [numCenters]bool
	for _, name := range raw {
		c, ok := LookupCenter(name)
		if !ok {
			slog.Debug("dropping unknown center alias", "name", name)
			continue
		}
		found[c] = true
	}
	return collectCenters(found)
}

// DeriveDefinedCenters marks every center touched by an active channel.
func DeriveDefinedCenters(channels []Channel) []CenterID {
	var found [numCenters]bool
	for _, ch := range channels {
		if c, ok := CenterOf(ch.A); ok {
			found[c] = true
		}
		if c, ok := CenterOf(ch.B); ok {
			found[c] = true
		}
	}
	return collectCenters(found)
}

func collectCenters(found [numCenters]bool) []CenterID {
	out := make([]CenterID, 0, numCenters)
	for _, c := range AllCenters {
		if found[c] {
			out = append(out, c)
		}
	}
	return out
}

// HangingGates returns active gates that have no active partner, ascending.
func HangingGates(acts Activations) []Gate {
	var out []Gate
	for g := range acts {
		if !acts.Has(g) {
			continue
		}
		hanging := true
		for _, p := range partners[g] {
			if acts.Has(p) {
				hanging = false
				break
			}
		}
		if hanging {
			out = append(out, g)
		}
	}
	slices.Sort(out)
	return out
}

// Resolve runs the full resolver pass over a chart. When the chart carries
// no center list at all (nil), centers are derived from the channels.
func Resolve(chart Chart) Resolution {
	acts, dropped := ParseActivations(chart.GateActivations)
	return ResolveActivations(acts, chart.DefinedCenters, dropped)
}

// ResolveActivations is Resolve for callers that already hold parsed
// activations.
func ResolveActivations(acts Activations, definedCenters []string, dropped int) Resolution {
	clean := make(Activations, len(acts))
	for g, s := range acts {
		if g.Valid() && s.Active() {
			clean[g] = s
		} else {
			dropped++
		}
	}

	res := Resolution{
		Activations: clean,
		Channels:    ResolveActiveChannels(clean),
		Hanging:     HangingGates(clean),
		Dropped:     dropped,
	}
	if definedCenters == nil {
		res.Centers = DeriveDefinedCenters(res.Channels)
		res.CentersDerived = true
	} else {
		res.Centers = NormalizeDefinedCenters(definedCenters)
	}
	return res
}

// IsDefined reports whether c is in the resolution's center set.
func (r Resolution) IsDefined(c CenterID) bool {
	return slices.Contains(r.Centers, c)
}

// Complete reports whether ch is among the resolved channels.
func (r Resolution) Complete(ch Channel) bool {
	_, found := slices.BinarySearchFunc(r.Channels, NewChannel(ch.A, ch.B), compareChannels)
	return found
}
