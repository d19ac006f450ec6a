package domain_test

import (
	"testing"
	"time"

	"github.com/geoflux/insarpipe/internal/domain"
)

const preciseOrbitName = "S1A_OPER_AUX_POEORB_OPOD_20260110T120000_V20251219T225942_20251221T005942.EOF"

// Test: the product tier is read from the filename tag.
func TestOrbitTypeFromFilename(t *testing.T) {
	cases := []struct {
		name string
		want domain.OrbitType
	}{
		{preciseOrbitName, domain.OrbitPrecise},
		{"S1A_OPER_AUX_RESORB_OPOD_20251220T100000_V20251220T041941_20251220T073711.EOF", domain.OrbitRestituted},
		{"not-an-orbit-file.txt", ""},
	}
	for _, tc := range cases {
		if got := domain.OrbitTypeFromFilename(tc.name); got != tc.want {
			t.Errorf("OrbitTypeFromFilename(%q) = %q, want %q", tc.name, got, tc.want)
		}
	}
}

// Test: the validity window is parsed from the V-tagged token pair.
func TestParseOrbitValidity(t *testing.T) {
	from, to, err := domain.ParseOrbitValidity(preciseOrbitName)
	if err != nil {
		t.Fatalf("ParseOrbitValidity: %v", err)
	}

	wantFrom := time.Date(2025, 12, 19, 22, 59, 42, 0, time.UTC)
	wantTo := time.Date(2025, 12, 21, 0, 59, 42, 0, time.UTC)
	if !from.Equal(wantFrom) {
		t.Errorf("from = %v, want %v", from, wantFrom)
	}
	if !to.Equal(wantTo) {
		t.Errorf("to = %v, want %v", to, wantTo)
	}

	if _, _, err := domain.ParseOrbitValidity("S1A_OPER_AUX_POEORB.EOF"); err == nil {
		t.Error("expected error for a name without a validity window")
	}
}

// Test: the validity window is inclusive on both ends.
func TestOrbitFile_Covers(t *testing.T) {
	o := &domain.OrbitFile{
		ValidFrom: time.Date(2025, 12, 19, 22, 59, 42, 0, time.UTC),
		ValidTo:   time.Date(2025, 12, 21, 0, 59, 42, 0, time.UTC),
	}

	if !o.Covers(time.Date(2025, 12, 20, 6, 12, 44, 0, time.UTC)) {
		t.Error("expected interior instant covered")
	}
	if !o.Covers(o.ValidFrom) || !o.Covers(o.ValidTo) {
		t.Error("expected window endpoints covered")
	}
	if o.Covers(o.ValidFrom.Add(-time.Second)) {
		t.Error("expected instant before window rejected")
	}
	if o.Covers(o.ValidTo.Add(time.Second)) {
		t.Error("expected instant after window rejected")
	}
}
