package bodygraph

import (
	"fmt"
	"slices"
)

// ChannelInfo describes one entry of the fixed channel table.
type ChannelInfo struct {
	Channel
	Name string
}

// channelTable holds the 36 channels in canonical order.
var channelTable = [...]ChannelInfo{
	{Channel{1, 8}, "Inspiration"},
	{Channel{2, 14}, "The Beat"},
	{Channel{3, 60}, "Mutation"},
	{Channel{4, 63}, "Logic"},
	{Channel{5, 15}, "Rhythm"},
	{Channel{6, 59}, "Mating"},
	{Channel{7, 31}, "The Alpha"},
	{Channel{9, 52}, "Concentration"},
	{Channel{10, 20}, "Awakening"},
	{Channel{10, 34}, "Exploration"},
	{Channel{10, 57}, "Perfected Form"},
	{Channel{11, 56}, "Curiosity"},
	{Channel{12, 22}, "Openness"},
	{Channel{13, 33}, "The Prodigal"},
	{Channel{16, 48}, "The Wavelength"},
	{Channel{17, 62}, "Acceptance"},
	{Channel{18, 58}, "Judgment"},
	{Channel{19, 49}, "Synthesis"},
	{Channel{20, 34}, "Charisma"},
	{Channel{20, 57}, "The Brainwave"},
	{Channel{21, 45}, "Money"},
	{Channel{23, 43}, "Structuring"},
	{Channel{24, 61}, "Awareness"},
	{Channel{25, 51}, "Initiation"},
	{Channel{26, 44}, "Surrender"},
	{Channel{27, 50}, "Preservation"},
	{Channel{28, 38}, "Struggle"},
	{Channel{29, 46}, "Discovery"},
	{Channel{30, 41}, "Recognition"},
	{Channel{32, 54}, "Transformation"},
	{Channel{34, 57}, "Power"},
	{Channel{35, 36}, "Transitoriness"},
	{Channel{37, 40}, "Community"},
	{Channel{39, 55}, "Emoting"},
	{Channel{42, 53}, "Maturation"},
	{Channel{47, 64}, "Abstraction"},
}

// ChannelCount is the size of the channel table.
const ChannelCount = len(channelTable)

// shortGates are drawn as filled shapes because their connecting geometry
// is too short for a visible stroke. Head–Ajna, Ajna–Throat and Sacral–Root.
var shortGates = map[Gate]bool{
	64: true, 47: true, 61: true, 24: true, 63: true, 4: true,
	17: true, 62: true, 43: true, 23: true, 11: true, 56: true,
	42: true, 53: true, 3: true, 60: true, 9: true, 52: true,
}

// Derived at init, read-only afterwards.
var (
	partners     map[Gate][]Gate
	channelIndex map[Channel]int
	centerByGate map[Gate]CenterID
	aliasIndex   map[string]CenterID
)

func init() {
	var err error
	aliasIndex, err = buildAliasIndex(centerAliases)
	if err != nil {
		panic("bodygraph: " + err.Error())
	}

	centerByGate = make(map[Gate]CenterID, int(MaxGate))
	for c, gates := range gateCenters {
		for _, g := range gates {
			centerByGate[g] = c
		}
	}

	partners = make(map[Gate][]Gate)
	channelIndex = make(map[Channel]int, ChannelCount)
	for i, ci := range channelTable {
		partners[ci.A] = append(partners[ci.A], ci.B)
		partners[ci.B] = append(partners[ci.B], ci.A)
		channelIndex[ci.Channel] = i
	}
	for g := range partners {
		slices.Sort(partners[g])
	}

	if err := ValidateTables(); err != nil {
		panic("bodygraph: " + err.Error())
	}
}

// Channels returns a copy of the channel table in canonical order.
func Channels() []ChannelInfo {
	out := make([]ChannelInfo, len(channelTable))
	copy(out, channelTable[:])
	return out
}

// LookupChannel returns the table entry for c.
func LookupChannel(c Channel) (ChannelInfo, bool) {
	i, ok := channelIndex[NewChannel(c.A, c.B)]
	if !ok {
		return ChannelInfo{}, false
	}
	return channelTable[i], true
}

// Centers returns the two centers joined by the channel.
func (ci ChannelInfo) Centers() (CenterID, CenterID) {
	from, _ := CenterOf(ci.A)
	to, _ := CenterOf(ci.B)
	return from, to
}

// Partners returns the gates hard-wired to g. Gates 10, 20, 34 and 57
// each have three partners; every other gate has exactly one.
func Partners(g Gate) []Gate {
	p := partners[g]
	out := make([]Gate, len(p))
	copy(out, p)
	return out
}

// IsShortGate reports whether g is rendered as a filled shape.
func IsShortGate(g Gate) bool {
	return shortGates[g]
}

// ValidateTables checks the static tables for internal consistency:
// canonical channel order, symmetric partners, full gate coverage and
// unambiguous center membership.
func ValidateTables() error {
	for i, ci := range channelTable {
		if !ci.A.Valid() || !ci.B.Valid() || ci.A >= ci.B {
			return fmt.Errorf("channel %d (%s): not canonical", i, ci.Key())
		}
		if i > 0 {
			prev := channelTable[i-1]
			if prev.A > ci.A || (prev.A == ci.A && prev.B >= ci.B) {
				return fmt.Errorf("channel %s out of order after %s", ci.Key(), prev.Key())
			}
		}
		from, _ := CenterOf(ci.A)
		to, _ := CenterOf(ci.B)
		if from == to {
			return fmt.Errorf("channel %s joins %s to itself", ci.Key(), from)
		}
	}

	for g, ps := range partners {
		for _, p := range ps {
			if !slices.Contains(partners[p], g) {
				return fmt.Errorf("gate %d lists partner %d but not the reverse", g, p)
			}
		}
	}

	seen := make(map[Gate]CenterID)
	for c, gates := range gateCenters {
		for _, g := range gates {
			if prev, ok := seen[g]; ok {
				return fmt.Errorf("gate %d in both %s and %s", g, prev, c)
			}
			seen[g] = c
		}
	}
	for g := MinGate; g <= MaxGate; g++ {
		if _, ok := seen[g]; !ok {
			return fmt.Errorf("gate %d has no center", g)
		}
		if len(partners[g]) == 0 {
			return fmt.Errorf("gate %d is in no channel", g)
		}
	}

	for g := range shortGates {
		if len(partners[g]) != 1 {
			return fmt.Errorf("short gate %d must have exactly one partner", g)
		}
		if !shortGates[partners[g][0]] {
			return fmt.Errorf("short gate %d has long partner %d", g, partners[g][0])
		}
	}
	return nil
}
