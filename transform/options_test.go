package transform

import (
	"errors"
	"math"
	"slices"
	"testing"

	"github.com/cwbudde/algo-mstransform/archive"
	"github.com/cwbudde/algo-mstransform/fault"
	"github.com/cwbudde/algo-mstransform/grid"
	"github.com/cwbudde/algo-mstransform/pipeline"
)

func TestParseOptionsDefaults(t *testing.T) {
	o, err := ParseOptions(nil)
	if err != nil {
		t.Fatal(err)
	}

	if o.DataColumn != "CORRECTED" || !o.Reindex || o.NSpw != 1 {
		t.Fatalf("defaults = %+v", o)
	}
	if !math.IsNaN(o.Regrid.Start) || o.Regrid.Mode != grid.DefaultRegrid().Mode {
		t.Fatalf("regrid defaults = %+v", o.Regrid)
	}
	if o.PhaseCenter != nil || o.Opacity != nil || len(o.Unknown) != 0 {
		t.Fatalf("unexpected optional settings: %+v", o)
	}
}

func TestParseOptions(t *testing.T) {
	tests := []struct {
		name  string
		in    map[string]any
		check func(Options) bool
	}{
		{"chanbin string", map[string]any{"chanaverage": true, "chanbin": "2, 4"},
			func(o Options) bool { return o.ChanAverage && slices.Equal(o.ChanBin, []int{2, 4}) }},
		{"chanbin scalar", map[string]any{"chanbin": 3},
			func(o Options) bool { return slices.Equal(o.ChanBin, []int{3}) }},
		{"chanbin list", map[string]any{"chanbin": []any{2, "3"}},
			func(o Options) bool { return slices.Equal(o.ChanBin, []int{2, 3}) }},
		{"case-insensitive keys", map[string]any{"SPW": "0:1~2", "Field": "FA"},
			func(o Options) bool { return o.Selection.Spw == "0:1~2" && o.Selection.Field == "FA" }},
		{"taql filter", map[string]any{"taql": "ANTENNA1 == 0"},
			func(o Options) bool { return o.Selection.Filter == "ANTENNA1 == 0" }},
		{"bool strings", map[string]any{"combinespws": "true", "reindex": "false"},
			func(o Options) bool { return o.CombineSpws && !o.Reindex }},
		{"nil keeps default", map[string]any{"datacolumn": nil},
			func(o Options) bool { return o.DataColumn == "CORRECTED" }},
		{"timebin minutes", map[string]any{"timeaverage": true, "timebin": "2min"},
			func(o Options) bool { return o.TimeAverage && o.TimeBin == 120 }},
		{"timebin seconds", map[string]any{"timebin": 30},
			func(o Options) bool { return o.TimeBin == 30 }},
		{"timespan", map[string]any{"timespan": "scan,state"},
			func(o Options) bool { return len(o.TimeSpan) == 2 }},
		{"maxuvwdistance km", map[string]any{"maxuvwdistance": "1.5km"},
			func(o Options) bool { return o.MaxUVWDistance == 1500 }},
		{"restfreq", map[string]any{"restfreq": "1.42GHz"},
			func(o Options) bool { return math.Abs(o.Regrid.RestFreq-1.42e9) < 1e-3 }},
		{"velocity start", map[string]any{"mode": "velocity", "start": "-10km/s", "width": "2 km/s"},
			func(o Options) bool {
				return o.Regrid.Mode == grid.ModeVelocity && o.Regrid.Start == -1e4 && o.Regrid.Width == 2e3
			}},
		{"empty start", map[string]any{"start": ""},
			func(o Options) bool { return math.IsNaN(o.Regrid.Start) }},
		{"outframe", map[string]any{"regridms": true, "outframe": "lsrk"},
			func(o Options) bool { return o.RegridMS && o.Regrid.OutFrame == archive.FrameLSRK }},
		{"phasecenter field", map[string]any{"phasecenter": "2"},
			func(o Options) bool { return o.PhaseCenter != nil && o.PhaseCenter.Field == 2 && o.PhaseCenter.Direction == nil }},
		{"phasecenter direction", map[string]any{"phasecenter": "J2000 12h30m00s -30d00m00s"},
			func(o Options) bool {
				d := o.PhaseCenter.Direction
				return o.PhaseCenter.Field == -1 && d != nil &&
					math.Abs(d.Lon-12.5*math.Pi/12) < 1e-12 && math.Abs(d.Lat+math.Pi/6) < 1e-12
			}},
		{"offsets", map[string]any{"dx": 1.5, "dy": 0},
			func(o Options) bool {
				return o.PhaseCenter != nil && o.PhaseCenter.Field == -1 && o.PhaseCenter.DX == 1.5 && o.PhaseCenter.DY == 0
			}},
		{"zero offsets", map[string]any{"dx": 0, "dy": 0},
			func(o Options) bool { return o.PhaseCenter == nil }},
		{"callib path", map[string]any{"callib": " gains.toml "},
			func(o Options) bool { return o.CalLib == "gains.toml" && o.CalRecord == nil }},
		{"callib record", map[string]any{"callib": map[string]any{"gain": []any{}}},
			func(o Options) bool { _, ok := o.CalRecord["gain"]; return ok && o.CalLib == "" }},
		{"polaveragemode", map[string]any{"polaverage": true, "polaveragemode": "Stokes"},
			func(o Options) bool { return o.PolAverage && o.PolAverageMode == pipeline.PolAverageStokes }},
		{"opacity scalar", map[string]any{"opacity": 0.1},
			func(o Options) bool { return len(o.Opacity) == 1 && o.Opacity[allWindows] == 0.1 }},
		{"opacity list", map[string]any{"opacity": []any{0.1, 0.2}},
			func(o Options) bool { return len(o.Opacity) == 2 && o.Opacity[1] == 0.2 }},
		{"opacity map", map[string]any{"opacity": map[string]any{"3": 0.3}},
			func(o Options) bool { return len(o.Opacity) == 1 && o.Opacity[3] == 0.3 }},
		{"unknown keys", map[string]any{"bogus": 1, "Extra": "x"},
			func(o Options) bool { return slices.Equal(o.Unknown, []string{"Extra", "bogus"}) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o, err := ParseOptions(tt.in)
			if err != nil {
				t.Fatalf("ParseOptions(%v): %v", tt.in, err)
			}
			if !tt.check(o) {
				t.Fatalf("ParseOptions(%v) = %+v", tt.in, o)
			}
		})
	}
}

func TestParseOptionsErrors(t *testing.T) {
	tests := []struct {
		name string
		in   map[string]any
		want error
	}{
		{"zero chanbin", map[string]any{"chanbin": 0}, ErrOptionType},
		{"bad chanbin", map[string]any{"chanbin": "2,x"}, ErrOptionType},
		{"bad quantity", map[string]any{"restfreq": "lots"}, ErrQuantity},
		{"bad direction", map[string]any{"phasecenter": "J2000 1 2 3"}, ErrDirection},
		{"latitude range", map[string]any{"phasecenter": "100deg 95deg"}, ErrDirection},
		{"timeaverage without bin", map[string]any{"timeaverage": true}, pipeline.ErrTimeBin},
		{"bad opacity window", map[string]any{"opacity": map[string]any{"x": 1}}, ErrOptionType},
		{"bad nspw", map[string]any{"nspw": 0}, nil},
		{"negative fitorder", map[string]any{"douvcontsub": true, "fitorder": -1}, nil},
		{"bad mode", map[string]any{"mode": "sideways"}, nil},
		{"bad bool", map[string]any{"hanning": "perhaps"}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseOptions(tt.in)
			if err == nil {
				t.Fatalf("ParseOptions(%v) succeeded", tt.in)
			}
			if !fault.Is(err, fault.KindConfiguration) {
				t.Fatalf("kind = %v, want configuration: %v", fault.KindOf(err), err)
			}
			if tt.want != nil && !errors.Is(err, tt.want) {
				t.Fatalf("err = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestParseAngle(t *testing.T) {
	tests := []struct {
		in    string
		hours bool
		want  float64
	}{
		{"1.5", true, 1.5},
		{"0.25rad", false, 0.25},
		{"90deg", false, math.Pi / 2},
		{"6h00m00s", true, math.Pi / 2},
		{"06:00:00", true, math.Pi / 2},
		{"-45:30:00", false, -45.5 * math.Pi / 180},
		{"-10d30m", false, -10.5 * math.Pi / 180},
	}

	for _, tt := range tests {
		got, err := parseAngle(tt.in, tt.hours)
		if err != nil {
			t.Fatalf("parseAngle(%q): %v", tt.in, err)
		}
		if math.Abs(got-tt.want) > 1e-12 {
			t.Fatalf("parseAngle(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestKeysSorted(t *testing.T) {
	keys := Keys()
	if !slices.IsSorted(keys) {
		t.Fatal("keys not sorted")
	}
	for _, k := range []string{"vis", "chanbin", "polaverage", "timebin", "usewtspectrum"} {
		if !slices.Contains(keys, k) {
			t.Fatalf("missing key %q", k)
		}
	}
}
