package packet

import "math"

func doubleBits(v float64) uint64 { return math.Float64bits(v) }
func bitsDouble(v uint64) float64 { return math.Float64frombits(v) }
