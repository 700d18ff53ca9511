package volumeprofile

import "LevelScope/internal/domain/models"

const DefaultZoneCutoff = 0.6

// Zones groups adjacent bins with volume >= cutoff*max into price intervals,
// each widened by half a bin on both sides. Zones come out in ascending price order.
func Zones(p *models.VolumeProfile, cutoff float64) []models.Zone {
	if p == nil || p.Bins() == 0 {
		return nil
	}
	top := p.MaxVolume()
	if top <= 0 {
		return nil
	}

	threshold := top * cutoff
	half := p.BinWidth() / 2

	var zones []models.Zone
	start := -1
	for i, v := range p.Volume {
		if v >= threshold {
			if start < 0 {
				start = i
			}
			continue
		}
		if start >= 0 {
			zones = append(zones, models.Zone{Low: p.Centers[start] - half, High: p.Centers[i-1] + half})
			start = -1
		}
	}
	if start >= 0 {
		zones = append(zones, models.Zone{Low: p.Centers[start] - half, High: p.Centers[len(p.Volume)-1] + half})
	}
	return zones
}
