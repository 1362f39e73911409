package orbitalvk

import "testing"

func TestIsPowerOfTwo(t *testing.T) {
	for _, value := range []uint32{1, 2, 1024, 1 << 31} {
		if !isPowerOfTwo(value) {
			t.Errorf("isPowerOfTwo(%d) = false", value)
		}
	}
	for _, value := range []uint32{0, 3, 1000, 1<<31 + 1} {
		if isPowerOfTwo(value) {
			t.Errorf("isPowerOfTwo(%d) = true", value)
		}
	}
}

func TestIsAligned(t *testing.T) {
	if !isAligned(0x1000, 256) || !isAligned(0, 4) {
		t.Error("isAligned rejected an aligned address")
	}
	if isAligned(0x1004, 256) || isAligned(3, 4) {
		t.Error("isAligned accepted a misaligned address")
	}
}

func TestSafeString(t *testing.T) {
	if got := safeString("VK_KHR_surface"); got != "VK_KHR_surface\x00" {
		t.Errorf("safeString: %q not null terminated", got)
	}
	//Already terminated strings pass through unchanged
	if got := safeString("VK_KHR_surface\x00"); got != "VK_KHR_surface\x00" {
		t.Errorf("safeString: %q double terminated", got)
	}
	if got := safeString(""); got != "\x00" {
		t.Errorf("safeString: empty string gave %q", got)
	}
}

func TestSpin(t *testing.T) {
	calls := 0
	if !spin(10, func() bool { calls++; return calls == 3 }) {
		t.Error("spin: condition held within the budget but reported exhausted")
	}
	if calls != 3 {
		t.Errorf("spin: polled %d times, want 3", calls)
	}
	if spin(10, func() bool { return false }) {
		t.Error("spin: exhausted budget reported success")
	}
}
