package models

// VolumeProfile is a histogram of traded volume over price bins.
// Volume is smoothed; RawVolume holds the pre-smoothing histogram.
type VolumeProfile struct {
	Edges     []float64 `json:"edges"`
	Centers   []float64 `json:"centers"`
	Volume    []float64 `json:"volume"`
	RawVolume []float64 `json:"raw_volume,omitempty"`
}

func (p *VolumeProfile) Bins() int { return len(p.Centers) }

func (p *VolumeProfile) BinWidth() float64 {
	if len(p.Edges) < 2 {
		return 0
	}
	return p.Edges[1] - p.Edges[0]
}

func (p *VolumeProfile) MaxVolume() float64 {
	top := 0.0
	for i, v := range p.Volume {
		if i == 0 || v > top {
			top = v
		}
	}
	return top
}

// Peak is a local maximum of a profile.
type Peak struct {
	Price  float64 `json:"price"`
	Volume float64 `json:"volume"`
}

// SessionPeaks groups the peaks of one session profile.
type SessionPeaks struct {
	Session string `json:"session"`
	Peaks   []Peak `json:"peaks"`
}

// Zone is a contiguous high-volume price interval.
type Zone struct {
	Low  float64 `json:"low"`
	High float64 `json:"high"`
}

// Contains reports whether price lies within the zone widened by tol on each side.
func (z Zone) Contains(price, tol float64) bool {
	return price >= z.Low-tol && price <= z.High+tol
}

// Level is a price where a session peak agrees with a reference zone.
type Level struct {
	Price   float64 `json:"price"`
	Session string  `json:"session"`
	Volume  float64 `json:"volume"`
	Zone    Zone    `json:"zone"`
	Touches int     `json:"touches"`
}
