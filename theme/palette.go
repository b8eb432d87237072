package theme

import (
	"bufio"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

type RGB [3]uint8

type Palette struct {
	Name   string
	Colors []RGB
}

// DefaultPalette is a dark-to-bright ramp used when no GPL file is configured
func DefaultPalette() *Palette {
	return &Palette{
		Name: "midiclock",
		Colors: []RGB{
			{0x0d, 0x08, 0x87}, // deep blue
			{0x2a, 0x23, 0x5c}, // slate
			{0x5c, 0x5a, 0x7a}, // grey violet
			{0x9c, 0x17, 0x9e}, // purple
			{0xc8, 0xc8, 0xd8}, // light grey
			{0x3f, 0x9b, 0xf5}, // blue
			{0xed, 0x4a, 0x4a}, // red
			{0x8b, 0xd3, 0x5a}, // green
			{0xfb, 0x9f, 0x3a}, // orange
			{0xf0, 0xf9, 0x21}, // yellow
		},
	}
}

func LoadGPL(path string) (*Palette, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "palette")
	}
	defer f.Close()

	p, err := ParseGPL(f)
	if err != nil {
		return nil, errors.Wrap(err, path)
	}
	return p, nil
}

// ParseGPL reads a GIMP palette. Header keys other than Name are ignored;
// a color row with a component outside 0..255 is an error.
func ParseGPL(r io.Reader) (*Palette, error) {
	p := &Palette{}
	sc := bufio.NewScanner(r)

	for n := 1; sc.Scan(); n++ {
		line := strings.TrimSpace(sc.Text())
		key, value, header := strings.Cut(line, ":")
		header = header && !startsWithDigit(key)

		switch {
		case line == "", strings.HasPrefix(line, "#"):
		case n == 1 && strings.HasPrefix(line, "GIMP"):
		case header:
			if key == "Name" {
				p.Name = strings.TrimSpace(value)
			}
		default:
			c, err := parseRow(line)
			if err != nil {
				return nil, errors.Wrapf(err, "palette line %d", n)
			}
			p.Colors = append(p.Colors, c)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, errors.Wrap(err, "palette")
	}
	if len(p.Colors) == 0 {
		return nil, errors.New("palette: no colors")
	}
	return p, nil
}

// parseRow reads "R G B [name]".
func parseRow(line string) (RGB, error) {
	var c RGB
	fields := strings.Fields(line)
	if len(fields) < len(c) {
		return c, errors.Errorf("want R G B, got %q", line)
	}
	for i := range c {
		v, err := strconv.ParseUint(fields[i], 10, 8)
		if err != nil {
			return c, errors.Errorf("component %q", fields[i])
		}
		c[i] = uint8(v)
	}
	return c, nil
}

func startsWithDigit(s string) bool {
	return s != "" && s[0] >= '0' && s[0] <= '9'
}

// LoadOrDefault loads path, falling back to DefaultPalette when path is empty
// or unreadable. The error reports why the fallback was taken.
func LoadOrDefault(path string) (*Palette, error) {
	if path == "" {
		return DefaultPalette(), nil
	}
	p, err := LoadGPL(path)
	if err != nil {
		return DefaultPalette(), err
	}
	return p, nil
}

// Lookup returns interpolated color for normalized value 0-1
func (p *Palette) Lookup(norm float64) RGB {
	if norm <= 0 {
		return p.Colors[0]
	}
	if norm >= 1 {
		return p.Colors[len(p.Colors)-1]
	}

	// Find the two colors to interpolate between
	pos := norm * float64(len(p.Colors)-1)
	i := int(pos)
	frac := pos - float64(i)

	c0 := p.Colors[i]
	c1 := p.Colors[i+1]

	return RGB{
		lerp(c0[0], c1[0], frac),
		lerp(c0[1], c1[1], frac),
		lerp(c0[2], c1[2], frac),
	}
}

func lerp(a, b uint8, t float64) uint8 {
	return uint8(float64(a)*(1-t) + float64(b)*t)
}

// Index returns color at specific index (no interpolation)
func (p *Palette) Index(i int) RGB {
	if i < 0 {
		return p.Colors[0]
	}
	if i >= len(p.Colors) {
		return p.Colors[len(p.Colors)-1]
	}
	return p.Colors[i]
}
