package ringbuffer

import (
	"testing"

	"github.com/thermoquad/cbusnode/frame"
)

func mkFrame(b byte) frame.Frame {
	return frame.New(frame.Encode(frame.DefaultPriority, 1), false, false, []byte{b})
}

func TestOverflowOverwritesOldest(t *testing.T) {
	buf := New(4)
	for i := byte(1); i <= 6; i++ {
		buf.Put(mkFrame(i))
	}

	if buf.Size() != 4 {
		t.Fatalf("Size() = %d, want 4", buf.Size())
	}
	if buf.Overflows() != 2 {
		t.Fatalf("Overflows() = %d, want 2", buf.Overflows())
	}
	if buf.HighWaterMark() != 4 {
		t.Fatalf("HighWaterMark() = %d, want 4", buf.HighWaterMark())
	}

	want := []byte{3, 4, 5, 6}
	for _, w := range want {
		f, err := buf.Get()
		if err != nil {
			t.Fatalf("Get() error: %v", err)
		}
		if f.Data()[0] != w {
			t.Errorf("Get() = %d, want %d", f.Data()[0], w)
		}
	}
}

func TestPutsGetsSizeOverflowsInvariant(t *testing.T) {
	buf := New(3)
	ops := []bool{true, true, true, true, false, true, true, false, false, true, true, true, true}
	for _, isPut := range ops {
		if isPut {
			buf.Put(mkFrame(1))
		} else {
			_, _ = buf.Get()
		}
		if buf.Puts() != buf.Gets()+uint64(buf.Size())+buf.Overflows() {
			t.Fatalf("invariant broken: puts=%d gets=%d size=%d overflows=%d",
				buf.Puts(), buf.Gets(), buf.Size(), buf.Overflows())
		}
	}
}

func TestEmptyGetReturnsError(t *testing.T) {
	buf := New(2)
	if _, err := buf.Get(); err != ErrEmpty {
		t.Fatalf("Get() on empty buffer: err = %v, want ErrEmpty", err)
	}
}

func TestFullEmptyInvariants(t *testing.T) {
	buf := New(2)
	if !buf.Empty() {
		t.Fatal("new buffer should be empty")
	}
	buf.Put(mkFrame(1))
	buf.Put(mkFrame(2))
	if !buf.Full() {
		t.Fatal("buffer at capacity should be full")
	}
	if buf.Available() != 0 {
		t.Fatalf("Available() = %d, want 0", buf.Available())
	}
}

func TestClearResetsSizeNotCounters(t *testing.T) {
	buf := New(2)
	buf.Put(mkFrame(1))
	buf.Put(mkFrame(2))
	buf.Clear()
	if !buf.Empty() {
		t.Fatal("buffer should be empty after Clear")
	}
	if buf.Puts() != 2 {
		t.Fatalf("Puts() after Clear = %d, want 2 (counters survive Clear)", buf.Puts())
	}
}
