package selection

import (
	"testing"

	"github.com/cwbudde/algo-mstransform/archive"
	"github.com/cwbudde/algo-mstransform/fault"
	"github.com/cwbudde/algo-mstransform/internal/testutil"
)

func fixture() *archive.Archive {
	return testutil.NewArchive(testutil.ArchiveSpec{
		Spws: []archive.SpectralWindow{
			testutil.UniformSpw("lo", 8, 1.0e9, 1e6),
			testutil.UniformSpw("hi", 8, 1.1e9, 1e6),
			testutil.UniformSpw("line", 16, 1.2e9, 0.5e6),
		},
		Pols: [][]archive.Stokes{
			{archive.StokesXX, archive.StokesYY},
			{archive.StokesXX, archive.StokesXY, archive.StokesYX, archive.StokesYY},
		},
		DDIs:     [][2]int{{0, 0}, {1, 0}, {2, 1}},
		Antennas: 4,
		Times:    3,
		Fields:   3,
	})
}

func resolve(t *testing.T, c Criteria, opts ...Option) *Resolution {
	t.Helper()
	a := fixture()
	keys, _ := a.Keys()
	res, err := NewResolver(opts...).Resolve(c, a.Tables, keys)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	return res
}

func TestMergeRanges(t *testing.T) {
	tests := []struct {
		name string
		in   []ChannelRange
		want []ChannelRange
	}{
		{"disjoint", []ChannelRange{{4, 6, 1}, {0, 1, 1}}, []ChannelRange{{0, 1, 1}, {4, 6, 1}}},
		{"overlap", []ChannelRange{{0, 4, 1}, {3, 7, 1}}, []ChannelRange{{0, 7, 1}}},
		{"strided", []ChannelRange{{0, 8, 2}}, []ChannelRange{{0, 8, 2}}},
		{"adjacent", []ChannelRange{{0, 2, 1}, {3, 5, 1}}, []ChannelRange{{0, 5, 1}}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := MergeRanges(tc.in)
			if len(got) != len(tc.want) {
				t.Fatalf("got %v, want %v", got, tc.want)
			}
			for i := range got {
				if got[i] != tc.want[i] {
					t.Fatalf("got %v, want %v", got, tc.want)
				}
			}
		})
	}
}

func TestSelectedChannelCountIsSummedWidth(t *testing.T) {
	res := resolve(t, Criteria{Spw: "0:0~2;5~6,2:0~15^4"})

	if got := res.SelectedChannels(0); got != 5 {
		t.Fatalf("spw 0 channels = %d, want 5", got)
	}
	if got := res.SelectedChannels(2); got != 4 {
		t.Fatalf("spw 2 channels = %d, want 4", got)
	}
	if got := res.ChannelIndices(2); len(got) != 4 || got[3] != 12 {
		t.Fatalf("spw 2 indices = %v", got)
	}
}

func TestDenseMapsWhenReindexing(t *testing.T) {
	res := resolve(t, Criteria{Spw: "1,2", Field: "1~2"})

	for _, m := range []IndexMap{res.Maps.Spw, res.Maps.DataDescription, res.Maps.Field} {
		ids := m.IDs()
		seen := make(map[int]bool)
		for _, old := range ids {
			n, ok := m.Lookup(old)
			if !ok || n < 0 || n >= m.Len() || seen[n] {
				t.Fatalf("%v: %d -> %d not dense/bijective", m.Kind(), old, n)
			}
			seen[n] = true
		}
	}

	if _, ok := res.Maps.Spw.Lookup(0); ok {
		t.Fatal("spw 0 must be dropped")
	}
	if n, _ := res.Maps.Spw.Lookup(2); n != 1 {
		t.Fatalf("spw 2 -> %d, want 1", n)
	}
}

func TestIdentityMapsWithoutReindex(t *testing.T) {
	res := resolve(t, Criteria{Spw: "1,2"}, WithReindex(false))

	for _, old := range []int{1, 2} {
		if n, ok := res.Maps.Spw.Lookup(old); !ok || n != old {
			t.Fatalf("spw %d -> %d, %v", old, n, ok)
		}
	}
	if !res.Maps.DataDescription.Identity() {
		t.Fatal("ddi map must be identity")
	}
}

func TestDDIStartOffset(t *testing.T) {
	res := resolve(t, Criteria{}, WithDDIStart(5))
	if n, _ := res.Maps.DataDescription.Lookup(0); n != 5 {
		t.Fatalf("ddi 0 -> %d, want 5", n)
	}
}

func TestCorrelationAndSpwIntersect(t *testing.T) {
	// XY exists only in setup 1, which only spw 2 uses.
	res := resolve(t, Criteria{Correlation: "XY"})
	if len(res.DDIs) != 1 || res.DDIs[0] != 2 {
		t.Fatalf("DDIs = %v, want [2]", res.DDIs)
	}
	if idx, ok := res.CorrelationIndices(1); !ok || len(idx) != 1 || idx[0] != 1 {
		t.Fatalf("setup 1 indices = %v", idx)
	}

	a := fixture()
	keys, _ := a.Keys()
	_, err := NewResolver().Resolve(Criteria{Spw: "0", Correlation: "XY"}, a.Tables, keys)
	if !fault.Is(err, fault.KindSelection) {
		t.Fatalf("expected selection failure, got %v", err)
	}
}

func TestPartiallyUnmatchedIsNotFatal(t *testing.T) {
	res := resolve(t, Criteria{Field: "0,FZZ"})
	if res.Maps.Field.Len() != 1 {
		t.Fatalf("fields = %v", res.Maps.Field.IDs())
	}
}

func TestNothingMatchedIsFatal(t *testing.T) {
	a := fixture()
	keys, _ := a.Keys()
	for _, c := range []Criteria{{Field: "9"}, {Spw: "nope"}, {Scan: "42"}} {
		if _, err := NewResolver().Resolve(c, a.Tables, keys); !fault.Is(err, fault.KindSelection) {
			t.Fatalf("%+v: expected selection failure, got %v", c, err)
		}
	}
}

func TestRowFilter(t *testing.T) {
	a := fixture()
	keys, _ := a.Keys()
	t0 := keys[0].Time

	res, err := NewResolver().Resolve(Criteria{
		Antenna:   "0&1,2&&3",
		TimeRange: ">" + "4800000000",
		Filter:    "SCAN_NUMBER == 1 && FIELD_ID <= 1",
	}, a.Tables, keys)
	if err != nil {
		t.Fatal(err)
	}

	accepted := 0
	for _, k := range keys {
		if !res.Filter.Accept(k) {
			continue
		}
		accepted++
		if k.FieldID > 1 || k.Time < t0 {
			t.Fatalf("accepted %+v", k)
		}
		ok := (k.Antenna1 == 0 && k.Antenna2 == 1) || (k.Antenna1 == 2 && k.Antenna2 == 3)
		if !ok {
			t.Fatalf("accepted baseline %d-%d", k.Antenna1, k.Antenna2)
		}
	}

	// 2 baselines x 3 ddis x 2 times with field <= 1
	if accepted != 12 {
		t.Fatalf("accepted = %d, want 12", accepted)
	}
}

func TestBaselineNegation(t *testing.T) {
	p, err := ExprParser{}.Parse(KindAntenna, "!0", &Metadata{Tables: fixture().Tables})
	if err != nil {
		t.Fatal(err)
	}
	if p.Baselines.Accept(0, 2) {
		t.Fatal("baseline 0-2 must be excluded")
	}
	if !p.Baselines.Accept(1, 2) {
		t.Fatal("baseline 1-2 must be kept")
	}
}

func TestParseRanges(t *testing.T) {
	p, err := ExprParser{}.Parse(KindUVRange, "500~2km", &Metadata{})
	if err != nil {
		t.Fatal(err)
	}
	if p.Ranges[0] != [2]float64{500, 2000} {
		t.Fatalf("uv range = %v", p.Ranges[0])
	}

	p, err = ExprParser{}.Parse(KindTime, "1858/11/18/00:00:00~1858/11/18/00:01:00", &Metadata{})
	if err != nil {
		t.Fatal(err)
	}
	if p.Ranges[0] != [2]float64{86400, 86460} {
		t.Fatalf("time range = %v", p.Ranges[0])
	}
}

func TestSyntaxErrorIsConfigurationFailure(t *testing.T) {
	a := fixture()
	keys, _ := a.Keys()
	_, err := NewResolver().Resolve(Criteria{Filter: "BOGUS > 1"}, a.Tables, keys)
	if !fault.Is(err, fault.KindConfiguration) {
		t.Fatalf("expected configuration failure, got %v", err)
	}
}

func TestCriteriaEmpty(t *testing.T) {
	cases := []struct {
		c    Criteria
		want bool
	}{
		{Criteria{}, true},
		{Criteria{Spw: "all", Field: " "}, true},
		{Criteria{Spw: "0:1~2"}, false},
		{Criteria{Filter: "ANTENNA1 == 0"}, false},
	}
	for _, tc := range cases {
		if got := tc.c.Empty(); got != tc.want {
			t.Fatalf("%+v.Empty() = %v, want %v", tc.c, got, tc.want)
		}
	}
}
