package features

import "math"

// hzToMel converts frequency to the HTK mel scale.
func hzToMel(hz float64) float64 {
	return 2595 * math.Log10(1+hz/700)
}

func melToHz(mel float64) float64 {
	return 700 * (math.Pow(10, mel/2595) - 1)
}

// periodicHann returns a periodic Hann window of length n.
func periodicHann(n int) []float64 {
	window := make([]float64, n)
	for i := range window {
		window[i] = 0.5 * (1 - math.Cos(2*math.Pi*float64(i)/float64(n)))
	}
	return window
}

// melFilter is one triangular filter stored as its non-zero span.
type melFilter struct {
	start   int
	weights []float64
}

// apply returns the filter-weighted sum of a power spectrum.
func (f melFilter) apply(power []float64) float64 {
	var sum float64
	for i, w := range f.weights {
		sum += w * power[f.start+i]
	}
	return sum
}

// melFilterbank returns numFilters triangular filters over the fftSize/2+1
// spectrum bins, spaced evenly on the mel scale from 0 Hz to Nyquist.
// Weights are evaluated at bin centre frequencies.
func melFilterbank(numFilters, fftSize, sampleRate int) []melFilter {
	numBins := fftSize/2 + 1
	nyquist := float64(sampleRate) / 2

	lowMel := hzToMel(0)
	highMel := hzToMel(nyquist)

	hzPoints := make([]float64, numFilters+2)
	for i := range hzPoints {
		hzPoints[i] = melToHz(lowMel + float64(i)*(highMel-lowMel)/float64(numFilters+1))
	}

	binHz := float64(sampleRate) / float64(fftSize)

	filters := make([]melFilter, numFilters)
	for i := range filters {
		left, center, right := hzPoints[i], hzPoints[i+1], hzPoints[i+2]

		start := -1
		var weights []float64
		for j := range numBins {
			f := float64(j) * binHz
			var w float64
			switch {
			case f > left && f <= center:
				w = (f - left) / (center - left)
			case f > center && f < right:
				w = (right - f) / (right - center)
			}
			if w == 0 {
				if start >= 0 {
					break
				}
				continue
			}
			if start < 0 {
				start = j
			}
			weights = append(weights, w)
		}
		filters[i] = melFilter{start: max(start, 0), weights: weights}
	}

	return filters
}

// powerToDB converts power values in place to decibels relative to 1.0,
// flooring at amin and clamping to topDB below the maximum. topDB <= 0
// disables the clamp.
func powerToDB(values []float64, topDB float64) {
	const amin = 1e-10

	maxDB := math.Inf(-1)
	for i, v := range values {
		values[i] = 10 * math.Log10(math.Max(amin, v))
		maxDB = math.Max(maxDB, values[i])
	}

	if topDB <= 0 {
		return
	}
	floor := maxDB - topDB
	for i, v := range values {
		if v < floor {
			values[i] = floor
		}
	}
}

// dctMatrix returns the orthonormal DCT-II basis truncated to numCoeffs rows.
func dctMatrix(numCoeffs, n int) [][]float64 {
	basis := make([][]float64, numCoeffs)
	for k := range basis {
		basis[k] = make([]float64, n)
		scale := math.Sqrt(2 / float64(n))
		if k == 0 {
			scale = math.Sqrt(1 / float64(n))
		}
		for i := range n {
			basis[k][i] = scale * math.Cos(math.Pi/float64(n)*(float64(i)+0.5)*float64(k))
		}
	}
	return basis
}
