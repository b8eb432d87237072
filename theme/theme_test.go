package theme

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const sampleGPL = `GIMP Palette
Name: test
Columns: 2
# comment
  0   0   0	black
255 255 255	white
`

func TestParseGPL(t *testing.T) {
	p, err := ParseGPL(strings.NewReader(sampleGPL))
	if err != nil {
		t.Fatal(err)
	}
	if p.Name != "test" || len(p.Colors) != 2 {
		t.Fatalf("parsed %q with %d colors", p.Name, len(p.Colors))
	}
	if got := p.Lookup(0.5); got != (RGB{127, 127, 127}) {
		t.Errorf("Lookup(0.5) = %v", got)
	}
	if p.Lookup(-1) != p.Colors[0] || p.Lookup(2) != p.Colors[1] {
		t.Error("Lookup does not clamp")
	}
	if p.Index(5) != p.Colors[1] || p.Index(-1) != p.Colors[0] {
		t.Error("Index does not clamp")
	}
}

func TestParseGPLEmpty(t *testing.T) {
	if _, err := ParseGPL(strings.NewReader("GIMP Palette\nName: none\n")); err == nil {
		t.Error("palette without colors accepted")
	}
}

func TestParseGPLBadRows(t *testing.T) {
	tests := []struct {
		name, row, want string
	}{
		{"out of range", "256 0 0 too red", "line 3"},
		{"short row", "12 34", "line 3"},
		{"not a number", "red green blue", "line 3"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := "GIMP Palette\nName: bad\n" + tt.row + "\n"
			_, err := ParseGPL(strings.NewReader(in))
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("err = %v, want mention of %s", err, tt.want)
			}
		})
	}
}

func TestLoadOrDefault(t *testing.T) {
	p, err := LoadOrDefault("")
	if err != nil || p.Name != "midiclock" {
		t.Errorf("empty path: %v %v", p.Name, err)
	}

	p, err = LoadOrDefault(filepath.Join(t.TempDir(), "missing.gpl"))
	if err == nil || p == nil || len(p.Colors) == 0 {
		t.Error("missing file should fall back with an error")
	}

	path := filepath.Join(t.TempDir(), "ok.gpl")
	os.WriteFile(path, []byte(sampleGPL), 0644)
	p, err = LoadOrDefault(path)
	if err != nil || p.Name != "test" {
		t.Errorf("load: %v %v", p, err)
	}
}

func TestThemeColors(t *testing.T) {
	th := New(nil)
	if th.PLL() == th.Meas() {
		t.Error("chart series share a color")
	}
	if string(th.BG()) != "#0d0887" || string(th.Accent()) != "#f0f921" {
		t.Errorf("bg %s accent %s", th.BG(), th.Accent())
	}
}
