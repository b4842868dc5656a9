package domain

import "testing"

func TestHierarchyRankOrder(t *testing.T) {
	if !(LevelStrategic.Rank() < LevelTactical.Rank() && LevelTactical.Rank() < LevelOperational.Rank()) {
		t.Fatalf("rank order broken: strategic=%d tactical=%d operational=%d",
			LevelStrategic.Rank(), LevelTactical.Rank(), LevelOperational.Rank())
	}
}

func TestHierarchyUnknownIsLeastPrivileged(t *testing.T) {
	unknown := HierarchyLevel("regional")
	if unknown.Known() {
		t.Error("unrecognized level should not be Known")
	}
	for _, known := range []HierarchyLevel{LevelStrategic, LevelTactical, LevelOperational} {
		if unknown.Rank() <= known.Rank() {
			t.Errorf("unknown level ranks at %d, should sort below %s (%d)", unknown.Rank(), known, known.Rank())
		}
		if unknown.Sufficient(known) {
			t.Errorf("unknown level should never satisfy a %s requirement", known)
		}
	}
}

func TestHierarchySufficient(t *testing.T) {
	tests := []struct {
		have, need HierarchyLevel
		want       bool
	}{
		{LevelStrategic, LevelStrategic, true},
		{LevelStrategic, LevelOperational, true},
		{LevelTactical, LevelStrategic, false},
		{LevelTactical, LevelTactical, true},
		{LevelTactical, LevelOperational, true},
		{LevelOperational, LevelStrategic, false},
		{LevelOperational, LevelTactical, false},
		{LevelOperational, LevelOperational, true},
	}
	for _, tt := range tests {
		if got := tt.have.Sufficient(tt.need); got != tt.want {
			t.Errorf("Sufficient(%s, %s) = %v, want %v", tt.have, tt.need, got, tt.want)
		}
	}
}

func TestAccessGrantHasFlag(t *testing.T) {
	g := &AccessGrant{Services: map[string]bool{"wellness": true, "finance": false}}
	if !g.HasFlag("wellness") {
		t.Error("enabled flag should report true")
	}
	if g.HasFlag("finance") {
		t.Error("explicitly false flag should report false")
	}
	if g.HasFlag("admissions") {
		t.Error("absent key should default to false")
	}

	var nilGrant *AccessGrant
	if nilGrant.HasFlag("wellness") {
		t.Error("nil grant should report false for every key")
	}
}
