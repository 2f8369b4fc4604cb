package regcache

import "testing"

func TestStoreAndWord(t *testing.T) {
	c := New()
	c.Store("tcp", 1, 100, 0xABCD)
	if got := c.Word("tcp", 1, 100); got != 0xABCD {
		t.Errorf("expected 0xABCD, got 0x%04X", got)
	}
	if c.Word("tcp", 1, 101) != 0 {
		t.Error("expected unscanned address to read 0")
	}
}

func TestStoreSetsChangedOnlyOnDifference(t *testing.T) {
	c := New()
	c.Store("tcp", 1, 0, 5)
	c.ClearRange("tcp", 1, 0, 1)
	if c.ChangedInRange("tcp", 1, 0, 1) {
		t.Fatal("expected changed flag cleared")
	}

	c.Store("tcp", 1, 0, 5) // same value again
	if c.ChangedInRange("tcp", 1, 0, 1) {
		t.Error("expected no change flag for an identical value")
	}

	c.Store("tcp", 1, 0, 6)
	if !c.ChangedInRange("tcp", 1, 0, 1) {
		t.Error("expected change flag after a differing value")
	}
}

func TestBitAccessor(t *testing.T) {
	c := New()
	// bit 17 lives in word base+1, bit index 1
	c.StoreBlock("tcp", 1, 0, []uint16{0x0000, 0x0002})
	if !c.Bit("tcp", 1, 0, 17) {
		t.Error("expected bit 17 to be set")
	}
	if c.Bit("tcp", 1, 0, 16) {
		t.Error("expected bit 16 to be clear")
	}
}

func TestFloat32LowAddressIsHighWord(t *testing.T) {
	c := New()
	// 123.45 as IEEE-754: 0x42F6E666 -> high word 0x42F6, low word 0xE666
	c.StoreBlock("rtu", 3, 100, []uint16{0x42F6, 0xE666})
	got := c.Float32("rtu", 3, 100)
	if got < 123.449 || got > 123.451 {
		t.Errorf("expected ~123.45, got %v", got)
	}
}
