package dmx

import (
	"bytes"
	"errors"
	"sync"
	"testing"
)

func TestUniverseSetAndSnapshot(t *testing.T) {
	u := NewUniverse()
	if err := u.Set(1, 255); err != nil {
		t.Fatalf("set channel 1: %v", err)
	}
	if err := u.Set(512, 7); err != nil {
		t.Fatalf("set channel 512: %v", err)
	}
	snap := u.Snapshot()
	if snap[0] != 255 {
		t.Fatalf("channel 1 = %d, want 255", snap[0])
	}
	if snap[511] != 7 {
		t.Fatalf("channel 512 = %d, want 7", snap[511])
	}
	for i := 1; i < 511; i++ {
		if snap[i] != 0 {
			t.Fatalf("channel %d = %d, want 0", i+1, snap[i])
		}
	}
}

func TestUniverseSetOutOfRange(t *testing.T) {
	u := NewUniverse()
	for _, channel := range []int{0, -1, 513, 1 << 16} {
		err := u.Set(channel, 1)
		if !errors.Is(err, ErrChannelOutOfRange) {
			t.Fatalf("channel %d: expected ErrChannelOutOfRange, got %v", channel, err)
		}
	}
}

func TestUniverseSetAllPrefix(t *testing.T) {
	u := NewUniverse()
	if err := u.Set(10, 99); err != nil {
		t.Fatalf("seed channel 10: %v", err)
	}
	if err := u.SetAll([]byte{1, 2, 3}); err != nil {
		t.Fatalf("set all: %v", err)
	}
	snap := u.Snapshot()
	if snap[0] != 1 || snap[1] != 2 || snap[2] != 3 {
		t.Fatalf("prefix = %v, want [1 2 3]", snap[:3])
	}
	if snap[9] != 99 {
		t.Fatalf("channel 10 = %d, want 99 (beyond prefix must be untouched)", snap[9])
	}
}

func TestUniverseSetAllBounds(t *testing.T) {
	u := NewUniverse()
	if err := u.SetAll(make([]byte, UniverseSize)); err != nil {
		t.Fatalf("full universe write: %v", err)
	}
	err := u.SetAll(make([]byte, UniverseSize+1))
	if !errors.Is(err, ErrLengthMismatch) {
		t.Fatalf("expected ErrLengthMismatch, got %v", err)
	}
}

func TestUniverseStartCode(t *testing.T) {
	u := NewUniverse()
	if got := u.StartCode(); got != 0 {
		t.Fatalf("default start code = %d, want 0", got)
	}
	u.SetStartCode(0x17)
	if got := u.StartCode(); got != 0x17 {
		t.Fatalf("start code = %#x, want 0x17", got)
	}
}

// Two producers each bulk-write a uniform pattern; a snapshot must never
// contain a partially applied SetAll.
func TestUniverseSnapshotNeverTorn(t *testing.T) {
	u := NewUniverse()
	patternA := bytes.Repeat([]byte{0xAA}, UniverseSize)
	patternB := bytes.Repeat([]byte{0x55}, UniverseSize)
	if err := u.SetAll(patternA); err != nil {
		t.Fatalf("seed: %v", err)
	}

	stop := make(chan struct{})
	var wg sync.WaitGroup
	for _, pattern := range [][]byte{patternA, patternB} {
		wg.Add(1)
		go func(p []byte) {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				if err := u.SetAll(p); err != nil {
					t.Errorf("set all: %v", err)
					return
				}
			}
		}(pattern)
	}

	for i := 0; i < 1000; i++ {
		snap := u.Snapshot()
		first := snap[0]
		if first != 0xAA && first != 0x55 {
			t.Fatalf("unexpected byte %#x in snapshot", first)
		}
		for j, b := range snap {
			if b != first {
				t.Fatalf("torn snapshot at channel %d: %#x then %#x", j+1, first, b)
			}
		}
	}
	close(stop)
	wg.Wait()
}
