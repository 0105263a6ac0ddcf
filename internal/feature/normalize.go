package feature

// Clamp bounds v to [lo, hi].
func Clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// RVolNorm maps relative volume to [0, 1]. Volume at or below baseline maps
// to 0; ceiling multiples above baseline map to 1.
func RVolNorm(rvol, ceiling float64) float64 {
	if ceiling <= 0 {
		return 0
	}
	return Clamp(rvol-1, 0, ceiling) / ceiling
}

// RSNorm maps relative strength to [0, 1]: -scale maps to 0, zero to 0.5,
// +scale to 1.
func RSNorm(rs, scale float64) float64 {
	if scale <= 0 {
		return 0.5
	}
	return (Clamp(rs/scale, -1, 1) + 1) / 2
}
