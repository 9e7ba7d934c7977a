package bodygraph

import (
	"fmt"
	"strings"
)

// CenterID names one of the nine energy centers.
type CenterID uint8

const (
	CenterHead CenterID = iota
	CenterAjna
	CenterThroat
	CenterG
	CenterHeart
	CenterSpleen
	CenterSolarPlexus
	CenterSacral
	CenterRoot
	numCenters
)

// AllCenters lists the centers in canonical (top to bottom) order.
var AllCenters = [numCenters]CenterID{
	CenterHead, CenterAjna, CenterThroat, CenterG, CenterHeart,
	CenterSpleen, CenterSolarPlexus, CenterSacral, CenterRoot,
}

var centerNames = [numCenters]string{
	"Head", "Ajna", "Throat", "G", "Heart", "Spleen", "SolarPlexus", "Sacral", "Root",
}

// String returns the canonical center name.
func (c CenterID) String() string {
	if c < numCenters {
		return centerNames[c]
	}
	return fmt.Sprintf("center(%d)", c)
}

// MarshalText implements encoding.TextMarshaler.
func (c CenterID) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler. Any alias is accepted.
func (c *CenterID) UnmarshalText(text []byte) error {
	v, ok := LookupCenter(string(text))
	if !ok {
		return fmt.Errorf("unknown center %q", text)
	}
	*c = v
	return nil
}

// LookupCenter resolves a center name or alias.
func LookupCenter(name string) (CenterID, bool) {
	c, ok := aliasIndex[foldAlias(name)]
	return c, ok
}

// centerAliases lists accepted spellings per center. Matching is done on
// the folded form (see foldAlias), so case and separators don't matter.
var centerAliases = [numCenters][]string{
	CenterHead:        {"Head", "Crown", "Head Center"},
	CenterAjna:        {"Ajna", "Mind", "Ajna Center"},
	CenterThroat:      {"Throat", "Throat Center"},
	CenterG:           {"G", "G Center", "Self", "Identity", "G/Self"},
	CenterHeart:       {"Heart", "Ego", "Will", "Will Power", "Heart Center"},
	CenterSpleen:      {"Spleen", "Splenic", "Spleen Center"},
	CenterSolarPlexus: {"Solar Plexus", "SolarPlexus", "Emotional", "Emotions", "SP", "Solar Plexus Center"},
	CenterSacral:      {"Sacral", "Sacral Center"},
	CenterRoot:        {"Root", "Root Center"},
}

// Aliases returns the accepted spellings of c.
func Aliases(c CenterID) []string {
	if c >= numCenters {
		return nil
	}
	out := make([]string, len(centerAliases[c]))
	copy(out, centerAliases[c])
	return out
}

func foldAlias(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(strings.TrimSpace(s)) {
		switch r {
		case ' ', '_', '-', '\t':
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// buildAliasIndex compiles the alias table. An alias listed under two
// centers is a table error and is reported rather than resolved.
func buildAliasIndex(table [numCenters][]string) (map[string]CenterID, error) {
	idx := make(map[string]CenterID)
	for _, c := range AllCenters {
		for _, alias := range table[c] {
			key := foldAlias(alias)
			if key == "" {
				return nil, fmt.Errorf("center %s: empty alias", c)
			}
			if prev, ok := idx[key]; ok && prev != c {
				return nil, fmt.Errorf("alias %q listed under both %s and %s", alias, prev, c)
			}
			idx[key] = c
		}
	}
	return idx, nil
}

// gateCenters places every gate in its center.
var gateCenters = map[CenterID][]Gate{
	CenterHead:        {64, 61, 63},
	CenterAjna:        {47, 24, 4, 17, 43, 11},
	CenterThroat:      {62, 23, 56, 16, 20, 35, 12, 45, 31, 8, 33},
	CenterG:           {1, 7, 13, 10, 25, 15, 2, 46},
	CenterHeart:       {21, 51, 26, 40},
	CenterSpleen:      {48, 57, 44, 50, 32, 28, 18},
	CenterSolarPlexus: {36, 22, 37, 6, 49, 55, 30},
	CenterSacral:      {5, 14, 29, 34, 27, 59, 42, 3, 9},
	CenterRoot:        {53, 60, 52, 54, 38, 58, 19, 39, 41},
}

// CenterOf returns the center that gate g belongs to.
func CenterOf(g Gate) (CenterID, bool) {
	if !g.Valid() {
		return 0, false
	}
	c, ok := centerByGate[g]
	return c, ok
}

// GatesOf returns the gates of center c.
func GatesOf(c CenterID) []Gate {
	gates := gateCenters[c]
	out := make([]Gate, len(gates))
	copy(out, gates)
	return out
}
