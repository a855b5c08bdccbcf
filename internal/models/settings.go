package models

import "encoding/json"

// Color is one of the fixed theme colors
type Color string

const (
	ColorBlue   Color = "blue"
	ColorGreen  Color = "green"
	ColorPurple Color = "purple"
	ColorOrange Color = "orange"
)

var palette = map[Color]string{
	ColorBlue:   "#3b82f6",
	ColorGreen:  "#10b981",
	ColorPurple: "#8b5cf6",
	ColorOrange: "#f97316",
}

// Colors lists the palette in display order
func Colors() []Color {
	return []Color{ColorBlue, ColorGreen, ColorPurple, ColorOrange}
}

// Valid reports whether c is part of the palette
func (c Color) Valid() bool {
	_, ok := palette[c]
	return ok
}

// Hex returns the CSS value for the color, falling back to blue
func (c Color) Hex() string {
	if hex, ok := palette[c]; ok {
		return hex
	}
	return palette[ColorBlue]
}

// Settings are per-profile application preferences
type Settings struct {
	SoundEnabled bool  `json:"soundEnabled"`
	PrimaryColor Color `json:"primaryColor"`
}

// DefaultSettings returns the settings used when nothing is stored
func DefaultSettings() Settings {
	return Settings{
		SoundEnabled: true,
		PrimaryColor: ColorBlue,
	}
}

// MergeSettings decodes raw over the defaults. Missing fields keep the
// default, unknown fields are ignored, an unknown color falls back to blue.
func MergeSettings(raw []byte) (Settings, error) {
	s := DefaultSettings()
	if len(raw) == 0 {
		return s, nil
	}
	var stored struct {
		SoundEnabled *bool  `json:"soundEnabled"`
		PrimaryColor *Color `json:"primaryColor"`
	}
	if err := json.Unmarshal(raw, &stored); err != nil {
		return s, err
	}
	if stored.SoundEnabled != nil {
		s.SoundEnabled = *stored.SoundEnabled
	}
	if stored.PrimaryColor != nil && stored.PrimaryColor.Valid() {
		s.PrimaryColor = *stored.PrimaryColor
	}
	return s, nil
}
