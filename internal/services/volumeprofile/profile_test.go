package volumeprofile

import (
	"errors"
	"math"
	"testing"
	"time"

	"LevelScope/internal/domain/models"
)

var t0 = time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)

func bar(i int, low, high, close, volume float64) models.Bar {
	return models.Bar{
		Time:   t0.Add(time.Duration(i) * time.Minute),
		Open:   close,
		High:   high,
		Low:    low,
		Close:  close,
		Volume: volume,
	}
}

func sum(xs []float64) float64 {
	var s float64
	for _, x := range xs {
		s += x
	}
	return s
}

func TestComputeRejectsEmptyInput(t *testing.T) {
	if _, err := Compute(nil, Options{}); !errors.Is(err, models.ErrNoBars) {
		t.Fatalf("expected ErrNoBars, got %v", err)
	}
}

func TestComputeCloseModeConservesVolume(t *testing.T) {
	bars := []models.Bar{
		bar(0, 100, 101, 100.5, 12),
		bar(1, 100.2, 103, 102.9, 40),
		bar(2, 101, 104, 103, 7),
		bar(3, 103, 110, 110, 3),
		bar(4, 104, 106, 105.5, 25),
	}
	p, err := Compute(bars, Options{Bins: 10})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(p.Edges) != 11 || len(p.Centers) != 10 || len(p.Volume) != 10 {
		t.Fatalf("unexpected shape edges=%d centers=%d volume=%d", len(p.Edges), len(p.Centers), len(p.Volume))
	}
	if got := sum(p.RawVolume); got != 87 {
		t.Fatalf("raw volume sum = %v, want 87", got)
	}
	// close exactly on the upper edge falls in the last bin
	if p.RawVolume[9] != 3 {
		t.Fatalf("last bin = %v, want 3", p.RawVolume[9])
	}
	// close exactly on an interior edge belongs to the bin it opens
	if p.RawVolume[3] != 7 {
		t.Fatalf("bin 3 = %v, want 7", p.RawVolume[3])
	}
	if got := sum(p.Volume); math.Abs(got-87) > 1e-9 {
		t.Fatalf("smoothed volume sum = %v, want 87", got)
	}
}

func TestComputeDistributedModeSplitsEvenly(t *testing.T) {
	bars := []models.Bar{
		bar(0, 100, 110, 105, 0),
		bar(1, 102.5, 104.5, 103, 30),
	}
	p, err := Compute(bars, Options{Bins: 10, Mode: ModeDistributed})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for i, v := range p.RawVolume {
		want := 0.0
		if i >= 2 && i <= 4 {
			want = 10
		}
		if v != want {
			t.Fatalf("bin %d = %v, want %v", i, v, want)
		}
	}
}

func TestComputeDegenerateRange(t *testing.T) {
	bars := []models.Bar{bar(0, 50, 50, 50, 9)}
	p, err := Compute(bars, Options{Bins: 5})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for i := 1; i < len(p.Edges); i++ {
		if p.Edges[i] <= p.Edges[i-1] {
			t.Fatalf("edges not strictly increasing at %d: %v", i, p.Edges)
		}
	}
	if sum(p.RawVolume) != 9 {
		t.Fatalf("raw volume sum = %v, want 9", sum(p.RawVolume))
	}
	for _, v := range p.Volume {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			t.Fatalf("non-finite smoothed volume: %v", p.Volume)
		}
	}
}

func TestSigmaFor(t *testing.T) {
	cases := map[int]float64{10: 1, 120: 1, 140: 1, 160: 2, 400: 5}
	for n, want := range cases {
		if got := SigmaFor(n); got != want {
			t.Fatalf("SigmaFor(%d) = %v, want %v", n, got, want)
		}
	}
}

func TestSmoothMirrorsBoundaries(t *testing.T) {
	in := []float64{0, 0, 0, 0, 0, 0, 0, 0, 0, 10}
	out := Smooth(in, 1)
	if math.Abs(sum(out)-10) > 1e-9 {
		t.Fatalf("mass not conserved: %v", sum(out))
	}
	if out[9] <= out[8] || out[8] <= out[7] {
		t.Fatalf("expected monotone rise toward the spike: %v", out)
	}
	// a constant signal is unchanged by a normalized kernel with mirrored ends
	flat := Smooth([]float64{3, 3, 3, 3}, 1)
	for _, v := range flat {
		if math.Abs(v-3) > 1e-12 {
			t.Fatalf("constant signal changed: %v", flat)
		}
	}
}

func TestFindPeaksInteriorOnly(t *testing.T) {
	volume := []float64{5, 1, 3, 2, 4, 4, 1, 6}
	centers := []float64{0, 1, 2, 3, 4, 5, 6, 7}
	peaks := FindPeaks(volume, centers, 0)
	if len(peaks) != 1 || peaks[0].Price != 2 || peaks[0].Volume != 3 {
		t.Fatalf("unexpected peaks %+v", peaks)
	}
}

func TestFindPeaksTopN(t *testing.T) {
	volume := []float64{0, 3, 0, 5, 0, 2, 0}
	centers := []float64{10, 11, 12, 13, 14, 15, 16}
	peaks := FindPeaks(volume, centers, 2)
	if len(peaks) != 2 {
		t.Fatalf("expected 2 peaks, got %d", len(peaks))
	}
	if peaks[0].Price != 13 || peaks[1].Price != 11 {
		t.Fatalf("unexpected order %+v", peaks)
	}
}

func TestZones(t *testing.T) {
	p := &models.VolumeProfile{
		Edges:   []float64{0.5, 1.5, 2.5, 3.5, 4.5, 5.5, 6.5, 7.5, 8.5},
		Centers: []float64{1, 2, 3, 4, 5, 6, 7, 8},
		Volume:  []float64{0, 7, 10, 6, 0, 0, 8, 1},
	}
	zones := Zones(p, DefaultZoneCutoff)
	want := []models.Zone{{Low: 1.5, High: 4.5}, {Low: 6.5, High: 7.5}}
	if len(zones) != len(want) {
		t.Fatalf("expected %d zones, got %+v", len(want), zones)
	}
	for i := range want {
		if zones[i] != want[i] {
			t.Fatalf("zone %d = %+v, want %+v", i, zones[i], want[i])
		}
	}
}

func TestZonesTrailingRunAndEmptyProfile(t *testing.T) {
	p := &models.VolumeProfile{
		Edges:   []float64{0, 1, 2, 3},
		Centers: []float64{0.5, 1.5, 2.5},
		Volume:  []float64{1, 9, 10},
	}
	zones := Zones(p, 0.6)
	if len(zones) != 1 || zones[0].Low != 1 || zones[0].High != 3 {
		t.Fatalf("unexpected zones %+v", zones)
	}

	p.Volume = []float64{0, 0, 0}
	if zones := Zones(p, 0.6); zones != nil {
		t.Fatalf("expected no zones for an empty profile, got %+v", zones)
	}
}
