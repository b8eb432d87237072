package tempo

import "testing"

func liveSum(b *BlockAverage) uint64 {
	var s uint64
	for i := 0; i < b.count; i++ {
		s += uint64(b.buf[i])
	}
	return s
}

func TestBlockAverageEmpty(t *testing.T) {
	b := NewBlockAverage(0)
	if b.Size() != DefaultBlockAverageSize {
		t.Fatalf("size = %d, want %d", b.Size(), DefaultBlockAverageSize)
	}
	if b.Average() != 0 {
		t.Errorf("empty average = %d, want 0", b.Average())
	}
}

func TestBlockAverageConstant(t *testing.T) {
	b := NewBlockAverage(DefaultBlockAverageSize)
	for i := 0; i < DefaultBlockAverageSize; i++ {
		if b.Full() {
			t.Fatalf("full after %d samples", i)
		}
		b.Add(20833)
	}
	if !b.Full() {
		t.Fatal("not full after 48 samples")
	}
	if got := b.Average(); got != 20833 {
		t.Errorf("average = %d, want 20833", got)
	}

	// 49th sample overwrites the oldest
	b.Add(1000)
	if b.Count() != DefaultBlockAverageSize {
		t.Errorf("count = %d, want %d", b.Count(), DefaultBlockAverageSize)
	}
	if b.buf[0] != 1000 {
		t.Errorf("oldest slot = %d, want 1000", b.buf[0])
	}
	if b.Sum() != liveSum(b) {
		t.Errorf("sum = %d, recomputed %d", b.Sum(), liveSum(b))
	}
	want := uint32((uint64(20833)*47 + 1000) / 48)
	if got := b.Average(); got != want {
		t.Errorf("average = %d, want %d", got, want)
	}
}

func TestBlockAverageWraps(t *testing.T) {
	b := NewBlockAverage(4)
	for i := uint32(1); i <= 11; i++ {
		b.Add(i * 10)
		if b.Sum() != liveSum(b) {
			t.Fatalf("after %d: sum %d != %d", i, b.Sum(), liveSum(b))
		}
	}
	// live samples are 80, 90, 100, 110
	if got := b.Average(); got != 95 {
		t.Errorf("average = %d, want 95", got)
	}
}

func TestBlockAveragePartial(t *testing.T) {
	b := NewBlockAverage(8)
	b.Add(10)
	b.Add(21)
	if got := b.Average(); got != 15 {
		t.Errorf("average = %d, want 15", got)
	}
	b.Reset()
	if b.Count() != 0 || b.Sum() != 0 || b.Average() != 0 {
		t.Errorf("reset left count=%d sum=%d", b.Count(), b.Sum())
	}
}
