// Package volumeprofile builds price-binned volume histograms and extracts
// peaks and high-volume zones from them.
package volumeprofile

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"LevelScope/internal/domain/models"
)

type Mode string

const (
	// ModeClose assigns a bar's whole volume to the bin holding its close.
	ModeClose Mode = "close"
	// ModeDistributed spreads a bar's volume evenly over the bins its range covers.
	ModeDistributed Mode = "distributed"
)

const (
	DefaultBins = 120
	minBinWidth = 1e-9
)

var ErrInvalidBins = errors.New("bin count must be positive")

type Options struct {
	Bins int
	Mode Mode
}

func (o Options) withDefaults() Options {
	if o.Bins == 0 {
		o.Bins = DefaultBins
	}
	if o.Mode == "" {
		o.Mode = ModeClose
	}
	return o
}

// Compute builds a smoothed volume profile over [min low, max high] of bars.
func Compute(bars []models.Bar, opts Options) (*models.VolumeProfile, error) {
	opts = opts.withDefaults()
	if len(bars) == 0 {
		return nil, models.ErrNoBars
	}
	if opts.Bins < 1 {
		return nil, fmt.Errorf("compute profile: %w", ErrInvalidBins)
	}

	lo, hi := priceRange(bars)
	edges, centers := binEdges(lo, hi, opts.Bins)
	raw := make([]float64, opts.Bins)

	switch opts.Mode {
	case ModeClose:
		for _, b := range bars {
			raw[closeBin(edges, b.Close)] += b.Volume
		}
	case ModeDistributed:
		for _, b := range bars {
			from, to := rangeBins(edges, b.Low, b.High)
			share := b.Volume / float64(to-from+1)
			for i := from; i <= to; i++ {
				raw[i] += share
			}
		}
	default:
		return nil, fmt.Errorf("compute profile: unknown mode %q", opts.Mode)
	}

	return &models.VolumeProfile{
		Edges:     edges,
		Centers:   centers,
		Volume:    Smooth(raw, SigmaFor(opts.Bins)),
		RawVolume: raw,
	}, nil
}

func priceRange(bars []models.Bar) (float64, float64) {
	lo, hi := bars[0].Low, bars[0].High
	for _, b := range bars[1:] {
		lo = math.Min(lo, b.Low)
		hi = math.Max(hi, b.High)
	}
	return lo, hi
}

// binEdges returns n+1 equally spaced edges and the n bin midpoints.
// Spacing never drops below minBinWidth, so a zero range still yields usable bins.
func binEdges(lo, hi float64, n int) ([]float64, []float64) {
	width := (hi - lo) / float64(n)
	floored := width < minBinWidth
	if floored {
		width = minBinWidth
	}

	edges := make([]float64, n+1)
	for i := range edges {
		edges[i] = lo + float64(i)*width
	}
	if !floored {
		edges[n] = hi
	}

	centers := make([]float64, n)
	for i := range centers {
		centers[i] = (edges[i] + edges[i+1]) / 2
	}
	return edges, centers
}

// closeBin is the index of the last edge <= price, clipped to the bin range.
func closeBin(edges []float64, price float64) int {
	idx := sort.Search(len(edges), func(i int) bool { return edges[i] > price }) - 1
	return clip(idx, len(edges)-2)
}

func rangeBins(edges []float64, low, high float64) (int, int) {
	n := len(edges) - 1
	from := clip(sort.SearchFloat64s(edges, low)-1, n-1)
	to := clip(sort.SearchFloat64s(edges, high)-1, n-1)
	if to < from {
		to = from
	}
	return from, to
}

func clip(i, hi int) int {
	if i < 0 {
		return 0
	}
	if i > hi {
		return hi
	}
	return i
}
