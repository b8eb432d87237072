package tempo

// DefaultBlockAverageSize holds two quarter notes of 24 ppqn intervals.
const DefaultBlockAverageSize = 48

// BlockAverage is a fixed-size moving average over raw tick intervals.
// Once full, each new sample overwrites the oldest one.
type BlockAverage struct {
	buf   []uint32
	sum   uint64
	index int
	count int
}

// NewBlockAverage creates an average over n samples (DefaultBlockAverageSize
// when n <= 0).
func NewBlockAverage(n int) *BlockAverage {
	if n <= 0 {
		n = DefaultBlockAverageSize
	}
	return &BlockAverage{buf: make([]uint32, n)}
}

// Add records a sample in O(1).
func (b *BlockAverage) Add(sample uint32) {
	if b.count < len(b.buf) {
		b.buf[b.count] = sample
		b.sum += uint64(sample)
		b.count++
		return
	}

	b.sum -= uint64(b.buf[b.index])
	b.buf[b.index] = sample
	b.sum += uint64(sample)

	b.index++
	if b.index >= len(b.buf) {
		b.index = 0
	}
}

// Average returns the mean of the live samples, or 0 when empty.
func (b *BlockAverage) Average() uint32 {
	if b.count == 0 {
		return 0
	}
	return uint32(b.sum / uint64(b.count))
}

func (b *BlockAverage) Count() int { return b.count }
func (b *BlockAverage) Size() int  { return len(b.buf) }
func (b *BlockAverage) Sum() uint64 { return b.sum }

// Full reports whether every slot holds a live sample.
func (b *BlockAverage) Full() bool { return b.count == len(b.buf) }

// Reset drops all samples without reallocating.
func (b *BlockAverage) Reset() {
	for i := range b.buf {
		b.buf[i] = 0
	}
	b.sum = 0
	b.index = 0
	b.count = 0
}
