package audio

import "math"

// RMS computes the root-mean-square energy of float samples. Used for the
// live input level meter and for verifying mix content in tests.
func RMS(samples []float32) float32 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range samples {
		sum += float64(s) * float64(s)
	}
	return float32(math.Sqrt(sum / float64(len(samples))))
}

// RMSInt16 computes the RMS energy of int16 samples normalized to [-1, 1].
func RMSInt16(samples []int16) float32 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range samples {
		f := float64(s) / 32768.0
		sum += f * f
	}
	return float32(math.Sqrt(sum / float64(len(samples))))
}
