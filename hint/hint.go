// Package hint carries an external tempo hint (a heart rate) to the clock
// generator.
package hint

import (
	"bufio"
	"context"
	"encoding/hex"
	"io"
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/pkg/errors"

	"go-midiclock/debug"
	"go-midiclock/tempo"
)

// MaxBPM is the largest hint that still fits the scaled BPM range.
const MaxBPM = tempo.MaxSBPM / tempo.BPMScale

// flagUint16 marks a 16-bit heart rate value in a Heart Rate Measurement.
const flagUint16 = 0x01

// ParseHeartRate decodes a BLE Heart Rate Measurement payload: a flags byte
// followed by the rate as uint8, or as little-endian uint16 when bit 0 of the
// flags is set.
func ParseHeartRate(payload []byte) (bpm uint16, ok bool) {
	if len(payload) < 2 {
		return 0, false
	}
	if payload[0]&flagUint16 == 0 {
		return uint16(payload[1]), true
	}
	if len(payload) < 3 {
		return 0, false
	}
	return uint16(payload[1]) | uint16(payload[2])<<8, true
}

// Hint is the latest heart rate. It is written by one producer and read by
// the engine; the most recent value wins.
type Hint struct {
	bpm       atomic.Uint32
	connected atomic.Bool
	updates   atomic.Uint64
}

// Set stores a new rate and marks the source connected. Rates above MaxBPM
// saturate.
func (h *Hint) Set(bpm uint16) {
	if bpm > MaxBPM {
		bpm = MaxBPM
	}
	h.bpm.Store(uint32(bpm))
	h.connected.Store(true)
	h.updates.Add(1)
}

// BPM is the last rate, 0 when nothing arrived yet.
func (h *Hint) BPM() uint16 { return uint16(h.bpm.Load()) }

// SBPM is BPM scaled by 100.
func (h *Hint) SBPM() uint16 { return tempo.BPMToSBPM(h.BPM()) }

func (h *Hint) Connected() bool { return h.connected.Load() }

// SetConnected records the link state. The last rate is kept on disconnect.
func (h *Hint) SetConnected(c bool) { h.connected.Store(c) }

// Updates counts calls to Set.
func (h *Hint) Updates() uint64 { return h.updates.Load() }

// ParseLine understands a decimal rate ("72") or a raw measurement payload
// in hex ("hrm 00 48" or "hrm 014800").
func ParseLine(line string) (uint16, error) {
	line = strings.TrimSpace(line)
	if rest, ok := strings.CutPrefix(line, "hrm "); ok {
		b, err := hex.DecodeString(strings.ReplaceAll(rest, " ", ""))
		if err != nil {
			return 0, errors.Wrapf(err, "hint: bad payload %q", rest)
		}
		bpm, ok := ParseHeartRate(b)
		if !ok {
			return 0, errors.Errorf("hint: short payload %q", rest)
		}
		return bpm, nil
	}
	v, err := strconv.ParseUint(line, 10, 16)
	if err != nil {
		return 0, errors.Wrapf(err, "hint: bad rate %q", line)
	}
	return uint16(v), nil
}

// ReadLines feeds one rate per line from r into h until r ends or ctx is
// done. Blank lines and lines starting with '#' are skipped; bad lines are
// logged and skipped. The source is marked disconnected on return.
//
// A blocked Read is not interrupted by ctx; close r to stop early.
func ReadLines(ctx context.Context, r io.Reader, h *Hint) error {
	defer h.SetConnected(false)

	sc := bufio.NewScanner(r)
	for sc.Scan() {
		if ctx.Err() != nil {
			return nil
		}
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		bpm, err := ParseLine(line)
		if err != nil {
			debug.Log("hint", "%v", err)
			continue
		}
		h.Set(bpm)
		debug.Log("hint", "heart rate %d BPM", bpm)
	}
	if err := sc.Err(); err != nil {
		return errors.Wrap(err, "hint: read")
	}
	return nil
}
