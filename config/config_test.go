package config

import (
	"os"
	"path/filepath"
	"testing"

	"go-midiclock/tempo"
)

func TestDefaultConfigValid(t *testing.T) {
	if err := DefaultConfig().Validate(); err != nil {
		t.Fatal(err)
	}
}

// The configured counter must hold every settable tempo to 0.01 BPM once
// converted to a tick period and back.
func TestDefaultFrequencyKeepsTempo(t *testing.T) {
	hz := DefaultConfig().Clock.FrequencyHz
	for s := uint32(100); s <= tempo.MaxSBPM; s++ {
		sbpm := uint16(s)
		ticks := tempo.SBPMToTicks(sbpm, hz)
		back := tempo.TicksToSBPM(ticks, hz)
		if d := int(back) - int(sbpm); d < -1 || d > 1 {
			t.Fatalf("%d Hz: %d -> %d ticks -> %d", hz, sbpm, ticks, back)
		}
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"pll k", func(c *Config) { c.PLL.K = 0 }},
		{"pll tracking", func(c *Config) { c.PLL.TrackingGain = 0 }},
		{"rx depth", func(c *Config) { c.Queue.RxDepth = 0 }},
		{"line depth", func(c *Config) { c.Queue.LineDepth = -1 }},
		{"block size", func(c *Config) { c.Clock.BlockAverageSize = 0 }},
		{"repeat limit", func(c *Config) { c.Encoder.RepeatLimit = 0 }},
		{"frequency", func(c *Config) { c.Clock.FrequencyHz = 0 }},
		{"kind", func(c *Config) { c.Serial.Kind = "usb" }},
		{"baud", func(c *Config) { c.Serial.Baud = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := DefaultConfig()
			tt.mutate(c)
			if err := c.Validate(); err == nil {
				t.Error("invalid config accepted")
			}
		})
	}
}

func TestLoadMissingReturnsDefaults(t *testing.T) {
	c, err := LoadFrom(filepath.Join(t.TempDir(), "nope.json"))
	if err != nil {
		t.Fatal(err)
	}
	if c.Serial.Baud != 31250 || c.Clock.BlockAverageSize != 48 {
		t.Errorf("not defaults: %+v", c)
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "config.json")
	c := DefaultConfig()
	c.Serial.Port = "/dev/ttyUSB0"
	c.Encoder.RunningStatus = false
	c.UI.LastSBPM = 9000
	if err := c.SaveTo(path); err != nil {
		t.Fatal(err)
	}

	got, err := LoadFrom(path)
	if err != nil {
		t.Fatal(err)
	}
	if got.Serial.Port != "/dev/ttyUSB0" || got.Encoder.RunningStatus || got.UI.LastSBPM != 9000 {
		t.Errorf("round trip lost values: %+v", got)
	}
}

func TestLoadPartialKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(`{"serial":{"port":"COM3","baud":31250},"pll":{"k":8}}`), 0644); err != nil {
		t.Fatal(err)
	}
	c, err := LoadFrom(path)
	if err != nil {
		t.Fatal(err)
	}
	if c.Serial.Port != "COM3" || c.PLL.K != 8 {
		t.Errorf("file values not applied: %+v", c)
	}
	if c.PLL.Gain != 4 || c.Queue.RxDepth != 32 || !c.Encoder.RunningStatus {
		t.Errorf("defaults lost: %+v", c)
	}
}

func TestLoadRejectsBadFile(t *testing.T) {
	dir := t.TempDir()
	bad := filepath.Join(dir, "bad.json")
	os.WriteFile(bad, []byte("{"), 0644)
	if _, err := LoadFrom(bad); err == nil {
		t.Error("broken JSON accepted")
	}

	invalid := filepath.Join(dir, "invalid.json")
	os.WriteFile(invalid, []byte(`{"queue":{"rxDepth":0}}`), 0644)
	if _, err := LoadFrom(invalid); err == nil {
		t.Error("invalid values accepted")
	}
}
