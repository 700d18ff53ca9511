package volumeprofile

import "math"

const truncate = 4.0

// SigmaFor is the smoothing width used for an n-bin profile.
func SigmaFor(n int) float64 {
	if s := n / 80; s > 1 {
		return float64(s)
	}
	return 1
}

// Smooth applies a normalized Gaussian filter truncated at 4 sigma.
// Samples beyond the ends are mirrored about the boundary (d c b a | a b c d | d c b a).
func Smooth(values []float64, sigma float64) []float64 {
	n := len(values)
	out := make([]float64, n)
	if n == 0 {
		return out
	}
	if sigma <= 0 {
		copy(out, values)
		return out
	}

	kernel := gaussianKernel(sigma)
	radius := len(kernel) / 2
	for i := 0; i < n; i++ {
		var acc float64
		for k, w := range kernel {
			acc += w * values[reflect(i+k-radius, n)]
		}
		out[i] = acc
	}
	return out
}

func gaussianKernel(sigma float64) []float64 {
	radius := int(truncate*sigma + 0.5)
	kernel := make([]float64, 2*radius+1)
	var sum float64
	for i := -radius; i <= radius; i++ {
		w := math.Exp(-0.5 * float64(i*i) / (sigma * sigma))
		kernel[i+radius] = w
		sum += w
	}
	for i := range kernel {
		kernel[i] /= sum
	}
	return kernel
}

func reflect(i, n int) int {
	period := 2 * n
	i %= period
	if i < 0 {
		i += period
	}
	if i >= n {
		i = period - 1 - i
	}
	return i
}
