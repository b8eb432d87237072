package theme

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
)

type Theme struct {
	Palette *Palette
	Symbols Symbols
}

type Symbols struct {
	// Beat LED
	LEDOn    rune // ● lit
	LEDOff   rune // ○ dark
	LEDUndef rune // · never toggled

	// Strip chart points
	PLLPoint  rune // • PLL estimate
	MeasPoint rune // × block-averaged measurement
	Overlap   rune // ◆ both on the same cell

	Sep rune // │ header separator
}

func New(palette *Palette) *Theme {
	if palette == nil {
		palette = DefaultPalette()
	}
	return &Theme{
		Palette: palette,
		Symbols: Symbols{
			LEDOn:    '●',
			LEDOff:   '○',
			LEDUndef: '·',

			PLLPoint:  '•',
			MeasPoint: '×',
			Overlap:   '◆',

			Sep: '│',
		},
	}
}

// Color roles mapped to palette positions (0-1)
const (
	RoleBG      = 0.0  // deep blue
	RoleSurface = 0.1  // slate
	RoleMuted   = 0.2  // grey violet
	RoleFG      = 0.45 // light grey
	RolePLL     = 0.55 // blue
	RoleMeas    = 0.67 // red
	RoleSuccess = 0.78 // green
	RoleWarning = 0.89 // orange
	RoleAccent  = 1.0  // yellow
)

// Style helpers

func (t *Theme) BG() lipgloss.Color {
	return rgbToLipgloss(t.Palette.Lookup(RoleBG))
}

func (t *Theme) FG() lipgloss.Color {
	return rgbToLipgloss(t.Palette.Lookup(RoleFG))
}

func (t *Theme) Accent() lipgloss.Color {
	return rgbToLipgloss(t.Palette.Lookup(RoleAccent))
}

func (t *Theme) Muted() lipgloss.Color {
	return rgbToLipgloss(t.Palette.Lookup(RoleMuted))
}

// PLL is the chart color of the PLL series
func (t *Theme) PLL() lipgloss.Color {
	return rgbToLipgloss(t.Palette.Lookup(RolePLL))
}

// Meas is the chart color of the measured series
func (t *Theme) Meas() lipgloss.Color {
	return rgbToLipgloss(t.Palette.Lookup(RoleMeas))
}

func (t *Theme) Warning() lipgloss.Color {
	return rgbToLipgloss(t.Palette.Lookup(RoleWarning))
}

func (t *Theme) Success() lipgloss.Color {
	return rgbToLipgloss(t.Palette.Lookup(RoleSuccess))
}

// Color returns lipgloss color for any normalized value 0-1
func (t *Theme) Color(norm float64) lipgloss.Color {
	return rgbToLipgloss(t.Palette.Lookup(norm))
}

func rgbToLipgloss(c RGB) lipgloss.Color {
	return lipgloss.Color(fmt.Sprintf("#%02x%02x%02x", c[0], c[1], c[2]))
}
