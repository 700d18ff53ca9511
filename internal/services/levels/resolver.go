// Package levels turns reference zones and per-session peaks into a
// deduplicated list of support/resistance levels.
package levels

import (
	"math"
	"sort"

	"LevelScope/internal/domain/models"
	"LevelScope/internal/services/volumeprofile"
)

const mergeWeightFloor = 1e-6

type Options struct {
	// ZoneCutoff is the fraction of peak reference volume a bin needs to join a zone.
	ZoneCutoff float64
	// ZoneTolerance widens zones by price*ZoneTolerance when matching peaks.
	ZoneTolerance float64
	MergeRelative float64
	MergeAbsolute float64
}

func DefaultOptions() Options {
	return Options{
		ZoneCutoff:    volumeprofile.DefaultZoneCutoff,
		ZoneTolerance: 0.002,
		MergeRelative: 0.0005,
		MergeAbsolute: 0.5,
	}
}

// Resolve keeps session peaks that fall inside a reference high-volume zone and
// merges the survivors into a price-sorted level list.
func Resolve(reference *models.VolumeProfile, sessions []models.SessionPeaks, opts Options) []models.Level {
	zones := volumeprofile.Zones(reference, opts.ZoneCutoff)
	if len(zones) == 0 {
		return nil
	}

	var candidates []models.Level
	for _, s := range sessions {
		for _, p := range s.Peaks {
			zone, ok := matchZone(zones, p.Price, p.Price*opts.ZoneTolerance)
			if !ok {
				continue
			}
			candidates = append(candidates, models.Level{
				Price:   p.Price,
				Session: s.Session,
				Volume:  p.Volume,
				Zone:    zone,
				Touches: 1,
			})
		}
	}
	return Merge(candidates, opts)
}

func matchZone(zones []models.Zone, price, tol float64) (models.Zone, bool) {
	for _, z := range zones {
		if z.Contains(price, tol) {
			return z, true
		}
	}
	return models.Zone{}, false
}

// Merge sorts levels by price and folds each one into the previous kept level
// when they are within max(prev*MergeRelative, MergeAbsolute). The merged price is
// volume weighted. Merging an already merged list changes nothing.
func Merge(levels []models.Level, opts Options) []models.Level {
	if len(levels) == 0 {
		return nil
	}
	sorted := make([]models.Level, len(levels))
	copy(sorted, levels)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Price < sorted[j].Price })

	merged := []models.Level{sorted[0]}
	for _, lv := range sorted[1:] {
		prev := &merged[len(merged)-1]
		tol := math.Max(prev.Price*opts.MergeRelative, opts.MergeAbsolute)
		if math.Abs(lv.Price-prev.Price) > tol {
			merged = append(merged, lv)
			continue
		}
		volume := prev.Volume + lv.Volume
		prev.Price = (prev.Price*prev.Volume + lv.Price*lv.Volume) / (volume + mergeWeightFloor)
		prev.Volume = volume
		prev.Touches += lv.Touches
	}
	return merged
}
