package render

import (
	"fmt"
	"strings"

	"github.com/talgya/bodygraph/internal/bodygraph"
)

// SourceColors styles everything activated by one source.
type SourceColors struct {
	Line         string `yaml:"line" json:"line"`                   // Channel stroke / short gate fill
	Glow         string `yaml:"glow" json:"glow"`                   // Glow flood color
	MarkerFill   string `yaml:"marker_fill" json:"marker_fill"`     // Gate marker fill
	MarkerStroke string `yaml:"marker_stroke" json:"marker_stroke"` // Gate marker outline
	MarkerText   string `yaml:"marker_text" json:"marker_text"`     // Gate number color
}

// Theme holds every color and width the compositor uses.
type Theme struct {
	Background string `yaml:"background" json:"background"` // Empty = transparent

	InactiveChannel      string `yaml:"inactive_channel" json:"inactive_channel"`
	InactiveMarkerFill   string `yaml:"inactive_marker_fill" json:"inactive_marker_fill"`
	InactiveMarkerStroke string `yaml:"inactive_marker_stroke" json:"inactive_marker_stroke"`
	InactiveMarkerText   string `yaml:"inactive_marker_text" json:"inactive_marker_text"`

	Personality SourceColors `yaml:"personality" json:"personality"`
	Design      SourceColors `yaml:"design" json:"design"`
	Both        SourceColors `yaml:"both" json:"both"` // Line unused: both draws the two single colors

	DefinedCenterFill     string `yaml:"defined_center_fill" json:"defined_center_fill"`
	DefinedCenterStroke   string `yaml:"defined_center_stroke" json:"defined_center_stroke"`
	UndefinedCenterFill   string `yaml:"undefined_center_fill" json:"undefined_center_fill"`
	UndefinedCenterStroke string `yaml:"undefined_center_stroke" json:"undefined_center_stroke"`
	Outline               string `yaml:"outline" json:"outline"`

	BaseWidth     float64 `yaml:"base_width" json:"base_width"`         // Inactive channel stroke
	CompleteWidth float64 `yaml:"complete_width" json:"complete_width"` // Completed channel stroke
	HangingWidth  float64 `yaml:"hanging_width" json:"hanging_width"`   // Gate without active partner
	BothOffset    float64 `yaml:"both_offset" json:"both_offset"`       // Perpendicular shift of each "both" copy
	GlowBlur      float64 `yaml:"glow_blur" json:"glow_blur"`           // Gaussian std deviation
	MarkerRadius  float64 `yaml:"marker_radius" json:"marker_radius"`
	LabelSize     float64 `yaml:"label_size" json:"label_size"`
	FontFamily    string  `yaml:"font_family" json:"font_family"`
}

// DefaultTheme returns the stock palette: near-black personality, red design.
func DefaultTheme() Theme {
	return Theme{
		InactiveChannel:      "#E5E1DA",
		InactiveMarkerFill:   "#FAF8F5",
		InactiveMarkerStroke: "#C9C3B8",
		InactiveMarkerText:   "#8A8378",
		Personality: SourceColors{
			Line:         "#1F1B24",
			Glow:         "#6B5B95",
			MarkerFill:   "#1F1B24",
			MarkerStroke: "#0B090D",
			MarkerText:   "#FFFFFF",
		},
		Design: SourceColors{
			Line:         "#C0392B",
			Glow:         "#E74C3C",
			MarkerFill:   "#C0392B",
			MarkerStroke: "#8E2A20",
			MarkerText:   "#FFFFFF",
		},
		Both: SourceColors{
			Glow:         "#A23E6E",
			MarkerFill:   "#7A2E52",
			MarkerStroke: "#1F1B24",
			MarkerText:   "#FFE9F2",
		},
		DefinedCenterFill:     "#D4A65A",
		DefinedCenterStroke:   "#8C6A2F",
		UndefinedCenterFill:   "#FFFFFF",
		UndefinedCenterStroke: "#B8B0A2",
		Outline:               "#D9D3C8",
		BaseWidth:             2.2,
		CompleteWidth:         3.2,
		HangingWidth:          2.4,
		BothOffset:            0.8,
		GlowBlur:              1.2,
		MarkerRadius:          4.2,
		LabelSize:             4.4,
		FontFamily:            "Helvetica, Arial, sans-serif",
	}
}

// Colors returns the palette entry for a source.
func (t Theme) Colors(s bodygraph.Source) SourceColors {
	switch s {
	case bodygraph.SourcePersonality:
		return t.Personality
	case bodygraph.SourceDesign:
		return t.Design
	case bodygraph.SourceBoth:
		return t.Both
	}
	return SourceColors{
		Line:         t.InactiveChannel,
		MarkerFill:   t.InactiveMarkerFill,
		MarkerStroke: t.InactiveMarkerStroke,
		MarkerText:   t.InactiveMarkerText,
	}
}

// Validate checks that all colors are set and the width ordering holds
// (a hanging gate must draw thinner than a completed channel).
func (t Theme) Validate() error {
	colors := []struct {
		name, value string
	}{
		{"inactive_channel", t.InactiveChannel},
		{"inactive_marker_fill", t.InactiveMarkerFill},
		{"inactive_marker_stroke", t.InactiveMarkerStroke},
		{"inactive_marker_text", t.InactiveMarkerText},
		{"personality.line", t.Personality.Line},
		{"personality.glow", t.Personality.Glow},
		{"personality.marker_fill", t.Personality.MarkerFill},
		{"personality.marker_stroke", t.Personality.MarkerStroke},
		{"personality.marker_text", t.Personality.MarkerText},
		{"design.line", t.Design.Line},
		{"design.glow", t.Design.Glow},
		{"design.marker_fill", t.Design.MarkerFill},
		{"design.marker_stroke", t.Design.MarkerStroke},
		{"design.marker_text", t.Design.MarkerText},
		{"both.glow", t.Both.Glow},
		{"both.marker_fill", t.Both.MarkerFill},
		{"both.marker_stroke", t.Both.MarkerStroke},
		{"both.marker_text", t.Both.MarkerText},
		{"defined_center_fill", t.DefinedCenterFill},
		{"undefined_center_fill", t.UndefinedCenterFill},
		{"outline", t.Outline},
	}
	for _, c := range colors {
		if strings.TrimSpace(c.value) == "" {
			return fmt.Errorf("theme.%s is required", c.name)
		}
	}
	if t.BaseWidth <= 0 || t.CompleteWidth <= 0 || t.HangingWidth <= 0 {
		return fmt.Errorf("theme widths must be positive")
	}
	if t.HangingWidth >= t.CompleteWidth {
		return fmt.Errorf("theme.hanging_width (%v) must be less than complete_width (%v)", t.HangingWidth, t.CompleteWidth)
	}
	if t.BothOffset < 0 || t.GlowBlur < 0 {
		return fmt.Errorf("theme.both_offset and glow_blur must not be negative")
	}
	if t.MarkerRadius <= 0 || t.LabelSize <= 0 {
		return fmt.Errorf("theme.marker_radius and label_size must be positive")
	}
	return nil
}
