package volumeprofile

import (
	"sort"

	"LevelScope/internal/domain/models"
)

// FindPeaks returns interior bins strictly greater than both neighbours,
// ordered by descending volume and cut to topN (topN <= 0 keeps all).
func FindPeaks(volume, centers []float64, topN int) []models.Peak {
	var peaks []models.Peak
	for i := 1; i < len(volume)-1 && i < len(centers); i++ {
		if volume[i] > volume[i-1] && volume[i] > volume[i+1] {
			peaks = append(peaks, models.Peak{Price: centers[i], Volume: volume[i]})
		}
	}

	sort.SliceStable(peaks, func(a, b int) bool { return peaks[a].Volume > peaks[b].Volume })
	if topN > 0 && len(peaks) > topN {
		peaks = peaks[:topN]
	}
	return peaks
}

// Peaks is FindPeaks over a profile's smoothed volume.
func Peaks(p *models.VolumeProfile, topN int) []models.Peak {
	return FindPeaks(p.Volume, p.Centers, topN)
}
