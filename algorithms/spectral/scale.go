package spectral

import (
	"math"
)

// Default decibel range of a byte-scaled analyser spectrum
const (
	DefaultMinDecibels = -100.0
	DefaultMaxDecibels = -10.0
)

// DecibelsToLinear converts a dBFS magnitude spectrum to linear amplitude
// (amp = 10^(db/20)). -Inf and NaN bins map to 0.
func DecibelsToLinear(db []float64) []float64 {
	linear := make([]float64, len(db))
	for i, v := range db {
		if math.IsNaN(v) || math.IsInf(v, -1) {
			continue
		}
		linear[i] = math.Pow(10, v/20.0)
	}
	return linear
}

// LinearToDecibels is the inverse of DecibelsToLinear; zero maps to -Inf
func LinearToDecibels(linear []float64) []float64 {
	db := make([]float64, len(linear))
	for i, v := range linear {
		if v <= 0 {
			db[i] = math.Inf(-1)
			continue
		}
		db[i] = 20.0 * math.Log10(v)
	}
	return db
}

// BytesToLinear converts a 0-255 spectrum, where 0 maps to minDB and 255 to
// maxDB, into linear amplitude. Byte 0 is treated as silence.
func BytesToLinear(data []uint8, minDB, maxDB float64) []float64 {
	linear := make([]float64, len(data))
	span := maxDB - minDB

	for i, v := range data {
		if v == 0 {
			continue
		}
		db := minDB + float64(v)/255.0*span
		linear[i] = math.Pow(10, db/20.0)
	}
	return linear
}
