package tempo

import "fmt"

// Scaled BPM (sbpm) is tempo × 100 held in an integer, so 12000 is 120.00 BPM.
const (
	BPMScale    = 100
	USPerSecond = 1_000_000
	PPQN        = 24

	// MaxSBPM is the largest representable scaled BPM (655.35 BPM).
	MaxSBPM = 65535

	// usPerMinuteScaled is one minute in µs times BPMScale.
	usPerMinuteScaled = 60 * USPerSecond * BPMScale

	// ScaledBPMNumerator turns the duration of one 24 ppqn tick in µs into
	// scaled BPM: sbpm = 250_000_000 / us_per_tick.
	ScaledBPMNumerator = usPerMinuteScaled / PPQN
)

// SBPMToUSInterval returns the length of one quarter note in µs.
func SBPMToUSInterval(sbpm uint16) uint32 {
	if sbpm == 0 {
		return 0
	}
	return uint32(uint64(usPerMinuteScaled) / uint64(sbpm))
}

// USIntervalToSBPM converts the duration of one 24 ppqn tick in µs to scaled
// BPM. Intervals too short for the uint16 range saturate at MaxSBPM.
func USIntervalToSBPM(usPerTick uint32) uint16 {
	if usPerTick == 0 {
		return 0
	}
	return clampSBPM(ScaledBPMNumerator / uint64(usPerTick))
}

// SBPMToTicks returns hardware counter ticks per 24 ppqn tick at clockHz.
// Evaluated in 64 bits so truncation happens once, at the end.
func SBPMToTicks(sbpm uint16, clockHz uint32) uint32 {
	if sbpm == 0 || clockHz == 0 {
		return 0
	}
	num := uint64(clockHz) * ScaledBPMNumerator
	return uint32(num / (uint64(sbpm) * USPerSecond))
}

// TicksToSBPM is the inverse of SBPMToTicks.
func TicksToSBPM(ticks, clockHz uint32) uint16 {
	if ticks == 0 || clockHz == 0 {
		return 0
	}
	num := uint64(clockHz) * ScaledBPMNumerator
	return clampSBPM(num / (uint64(ticks) * USPerSecond))
}

// USIntervalTo24PQN converts a quarter-note interval to the µs of a single
// 24 ppqn tick.
func USIntervalTo24PQN(interval uint32) uint32 {
	return interval / PPQN
}

// PQN24ToUSInterval converts a 24 ppqn tick in µs back to a quarter note.
func PQN24ToUSInterval(pqn24 uint32) uint32 {
	return pqn24 * PPQN
}

// SBPMTo24PQN returns the µs of a single 24 ppqn tick.
func SBPMTo24PQN(sbpm uint16) uint32 {
	if sbpm == 0 {
		return 0
	}
	return uint32(ScaledBPMNumerator / uint64(sbpm))
}

// PQN24ToSBPM converts µs per 24 ppqn tick to scaled BPM.
func PQN24ToSBPM(pqn24 uint32) uint16 {
	return USIntervalToSBPM(pqn24)
}

// BPMToSBPM scales an integer BPM, saturating at MaxSBPM.
func BPMToSBPM(bpm uint16) uint16 {
	return clampSBPM(uint64(bpm) * BPMScale)
}

// FormatSBPM renders scaled BPM as "xxx.yy".
func FormatSBPM(sbpm uint16) string {
	return fmt.Sprintf("%d.%02d", sbpm/BPMScale, sbpm%BPMScale)
}

func clampSBPM(v uint64) uint16 {
	if v > MaxSBPM {
		return MaxSBPM
	}
	return uint16(v)
}
