package archive

import (
	"errors"
	"testing"
)

func TestParseFrame(t *testing.T) {
	tests := []struct {
		in   string
		want Frame
	}{
		{in: "lsrk", want: FrameLSRK},
		{in: "LSR", want: FrameLSRK},
		{in: " TOPO ", want: FrameTOPO},
		{in: "SOURCE", want: FrameSOURCE},
		{in: "barycent", want: FrameBARY},
	}

	for _, tt := range tests {
		got, err := ParseFrame(tt.in)
		if err != nil {
			t.Fatalf("ParseFrame(%q): %v", tt.in, err)
		}
		if got != tt.want {
			t.Fatalf("ParseFrame(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}

	if _, err := ParseFrame("galactic-ish"); !errors.Is(err, ErrUnknownFrame) {
		t.Fatalf("expected ErrUnknownFrame, got %v", err)
	}
}

func TestAverageableBasis(t *testing.T) {
	tests := []struct {
		name string
		corr []Stokes
		want Basis
	}{
		{name: "linear2", corr: []Stokes{StokesXX, StokesYY}, want: BasisLinear},
		{name: "circular4", corr: []Stokes{StokesRR, StokesRL, StokesLR, StokesLL}, want: BasisCircular},
		{name: "single", corr: []Stokes{StokesXX}, want: BasisOther},
		{name: "mixed", corr: []Stokes{StokesXX, StokesLL}, want: BasisOther},
		{name: "stokes", corr: []Stokes{StokesI, StokesQ, StokesU, StokesV}, want: BasisOther},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := AverageableBasis(tt.corr); got != tt.want {
				t.Fatalf("AverageableBasis = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestColumnSet(t *testing.T) {
	s := Columns(ColData, ColWeightSpectrum)
	if !s.Has(ColData) || s.Has(ColModel) {
		t.Fatalf("unexpected membership %v", s)
	}
	if s.String() != "DATA,WEIGHT_SPECTRUM" {
		t.Fatalf("String() = %q", s.String())
	}
	if s.Without(ColData).Has(ColData) {
		t.Fatal("Without did not remove")
	}

	if c, ok := ParseColumn("corrected"); !ok || c != ColCorrected {
		t.Fatalf("ParseColumn(corrected) = %v, %v", c, ok)
	}
}
