package core

import "testing"

func TestConstRegistersIgnoreWrites(t *testing.T) {
	r := NewRegisters()
	if got := r.Observe(RegTF); got != 0x1337 {
		t.Fatalf("TF = %#x, want 0x1337", got)
	}
	r.Set(RegTF, 0xbeef)
	if got := r.Observe(RegTF); got != 0x1337 {
		t.Fatalf("TF after write = %#x, want unchanged 0x1337", got)
	}
	if got := r.Observe(RegZR); got != 0 {
		t.Fatalf("ZR = %#x, want 0", got)
	}
	r.Set(RegZR, 42)
	if got := r.Observe(RegZR); got != 0 {
		t.Fatalf("ZR after write = %#x, want unchanged 0", got)
	}
}

func TestCounterRegisterPostIncrements(t *testing.T) {
	r := NewRegisters()
	r.Set(RegCT, 5)
	if got := r.Observe(RegCT); got != 5 {
		t.Fatalf("first observe = %d, want 5", got)
	}
	if got := r.Observe(RegCT); got != 6 {
		t.Fatalf("second observe = %d, want 6", got)
	}
	if got := r.Internal(RegCT); got != 7 {
		t.Fatalf("internal after two observes = %d, want 7", got)
	}
}

func TestCounterRegisterWraps(t *testing.T) {
	r := NewRegisters()
	r.Set(RegCT, 0xffff)
	if got := r.Observe(RegCT); got != 0xffff {
		t.Fatalf("observe = %#x, want 0xffff", got)
	}
	if got := r.Internal(RegCT); got != 0 {
		t.Fatalf("internal after wraparound = %#x, want 0", got)
	}
}

func TestBitRevRegister(t *testing.T) {
	r := NewRegisters()
	r.Set(RegRE, 0x0001)
	if got := r.Observe(RegRE); got != 0x8000 {
		t.Fatalf("observe = %#x, want 0x8000", got)
	}
	if got := r.Internal(RegRE); got != 0x0001 {
		t.Fatalf("internal = %#x, want unchanged 0x0001", got)
	}
}

func TestGeneralRegisterRoundTrip(t *testing.T) {
	r := NewRegisters()
	r.Set(RegAX, 0x1234)
	if got := r.Observe(RegAX); got != 0x1234 {
		t.Fatalf("observe = %#x, want 0x1234", got)
	}
	if got := r.Internal(RegAX); got != 0x1234 {
		t.Fatalf("internal = %#x, want 0x1234", got)
	}
}

func TestCloneSeedsFromInternalValues(t *testing.T) {
	r := NewRegisters()
	r.Set(RegCT, 10)
	r.Observe(RegCT) // advance internal to 11 without affecting the clone below
	clone := r.Clone()
	if got := clone.Internal(RegCT); got != r.Internal(RegCT) {
		t.Fatalf("clone CT internal = %d, want %d", got, r.Internal(RegCT))
	}
}

func TestRegisterNameFromNibbleMasksHighBits(t *testing.T) {
	if got := RegisterNameFromNibble(0xf3); got != RegisterNameFromNibble(0x03) {
		t.Fatalf("high nibble leaked into register selection: %v != %v", got, RegisterNameFromNibble(0x03))
	}
}
