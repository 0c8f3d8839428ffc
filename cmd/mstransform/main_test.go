package main

import (
	"bytes"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"gopkg.in/yaml.v3"

	"github.com/cwbudde/algo-mstransform/archive"
	"github.com/cwbudde/algo-mstransform/archive/sqlstore"
	"github.com/cwbudde/algo-mstransform/fault"
	"github.com/cwbudde/algo-mstransform/internal/testutil"
	"github.com/cwbudde/algo-mstransform/transform"
)

func TestExitCode(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{errors.New("plain"), 1},
		{fault.Configuration("op", "bad"), 2},
		{fault.Selection("op", "empty"), 3},
		{fault.Structural("op", "limit"), 4},
		{fault.IO("op", errors.New("disk"), "write"), 5},
	}

	for _, tt := range tests {
		if got := exitCode(tt.err); got != tt.want {
			t.Fatalf("exitCode(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}

func TestPlanReport(t *testing.T) {
	a := testutil.NewArchive(testutil.ArchiveSpec{
		Spws: []archive.SpectralWindow{
			testutil.UniformSpw("lo", 4, 1.000e9, 1e6),
			testutil.UniformSpw("hi", 4, 1.004e9, 1e6),
		},
	})
	opts, err := transform.ParseOptions(map[string]any{"datacolumn": "data", "combinespws": true, "nspw": 2})
	if err != nil {
		t.Fatal(err)
	}
	m := transform.New(opts)
	if err := m.Setup(a, archive.New(nil, 0)); err != nil {
		t.Fatal(err)
	}

	r := newPlanReport(m)
	if len(r.Windows) != 1 || r.Windows[0].OutChannels != 8 {
		t.Fatalf("windows = %+v", r.Windows)
	}
	if len(r.Outputs) != 2 || r.Outputs[1].Start != 4 || r.Outputs[1].NChan != 4 {
		t.Fatalf("outputs = %+v", r.Outputs)
	}
	if len(r.DDIs[0]) != 2 {
		t.Fatalf("data descriptions = %v", r.DDIs)
	}
	if len(r.Maps) != 7 || r.Maps[0].Table != "SPECTRAL_WINDOW" || len(r.Maps[0].IDs) != 2 {
		t.Fatalf("index maps = %+v", r.Maps)
	}

	out, err := yaml.Marshal(r)
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"strategy:", "selected_spws:", "output_channels: 8", "table: SPECTRAL_WINDOW"} {
		if !strings.Contains(string(out), want) {
			t.Fatalf("yaml lacks %q:\n%s", want, out)
		}
	}
}

func TestRunAndInspect(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "in.db")
	out := filepath.Join(dir, "out.db")

	s, err := sqlstore.Create(in)
	if err != nil {
		t.Fatal(err)
	}
	fixture := testutil.NewArchive(testutil.ArchiveSpec{
		Spws:     []archive.SpectralWindow{testutil.UniformSpw("a", 8, 1e9, 1e6)},
		Antennas: 3,
	})
	if err := s.Import(fixture); err != nil {
		t.Fatal(err)
	}
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}

	var stdout bytes.Buffer
	rootCmd.SetOut(&stdout)
	rootCmd.SetErr(&bytes.Buffer{})

	rootCmd.SetArgs([]string{"run", "-q", "--vis", in, "--outputvis", out, "--datacolumn", "data",
		"--chanaverage", "--set", "chanbin=2"})
	if err := rootCmd.Execute(); err != nil {
		t.Fatalf("run: %v", err)
	}
	if !strings.Contains(stdout.String(), "3 rows written") {
		t.Fatalf("run output: %q", stdout.String())
	}

	stdout.Reset()
	rootCmd.SetArgs([]string{"inspect", "-q", "--history", out})
	if err := rootCmd.Execute(); err != nil {
		t.Fatalf("inspect: %v", err)
	}
	got := stdout.String()
	for _, want := range []string{"rows", "mstransform", "chanbin=[2]"} {
		if !strings.Contains(got, want) {
			t.Fatalf("inspect output lacks %q:\n%s", want, got)
		}
	}
}
