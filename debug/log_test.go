package debug

import (
	"bytes"
	"strings"
	"testing"
)

func TestLogWritesCategory(t *testing.T) {
	var buf bytes.Buffer
	EnableWriter(&buf)
	defer Disable()

	Log("clock", "armed %d ticks", 20833)
	out := buf.String()
	if !strings.Contains(out, "cat=clock") || !strings.Contains(out, "armed 20833 ticks") {
		t.Errorf("log line = %q", out)
	}
}

func TestDisabledIsSilent(t *testing.T) {
	var buf bytes.Buffer
	EnableWriter(&buf)
	Disable()
	Log("rx", "dropped")
	if buf.Len() != 0 {
		t.Errorf("wrote %q while disabled", buf.String())
	}
	if Enabled() {
		t.Error("Enabled() after Disable")
	}
}

func TestLogEvery(t *testing.T) {
	var buf bytes.Buffer
	EnableWriter(&buf)
	defer Disable()

	for i := 0; i < 10; i++ {
		LogEvery(5, "tx", "tick")
	}
	if n := strings.Count(buf.String(), "every 5"); n != 2 {
		t.Errorf("logged %d times, want 2:\n%s", n, buf.String())
	}
}

func TestSetLevel(t *testing.T) {
	var buf bytes.Buffer
	EnableWriter(&buf)
	defer func() {
		SetLevel("debug")
		Disable()
	}()

	if err := SetLevel("warn"); err != nil {
		t.Fatal(err)
	}
	Log("pll", "quiet")
	Warn("pll", "loud")
	if strings.Contains(buf.String(), "quiet") || !strings.Contains(buf.String(), "loud") {
		t.Errorf("output = %q", buf.String())
	}
	if err := SetLevel("chatty"); err == nil {
		t.Error("bad level accepted")
	}
}

func TestFields(t *testing.T) {
	var buf bytes.Buffer
	EnableWriter(&buf)
	defer Disable()

	Fields("engine", "clock started", map[string]any{"sbpm": 12000})
	out := buf.String()
	if !strings.Contains(out, "sbpm=12000") || !strings.Contains(out, "cat=engine") {
		t.Errorf("log line = %q", out)
	}
}
