package estimators

// Filter is an exponential moving-average filter: v_{k+1} = v_k + alpha*(x -
// v_k) (spec.md §4.1).
type Filter struct {
	Alpha    float64
	value    float64
	hasValue bool
}

func NewFilter(alpha float64) *Filter {
	return &Filter{Alpha: alpha}
}

func (f *Filter) NewValue(x float64) float64 {
	if !f.hasValue {
		f.value = x
		f.hasValue = true
		return f.value
	}
	f.value = f.value + f.Alpha*(x-f.value)
	return f.value
}

func (f *Filter) Value() float64  { return f.value }
func (f *Filter) HasValue() bool  { return f.hasValue }
func (f *Filter) Reset()          { f.value = 0; f.hasValue = false }

// VariationFilter tracks both a smoothed value and a smoothed variation
// (mean absolute deviation) via a second coefficient, the way jitter
// estimators commonly do (RFC 3550 §6.4.1-style).
type VariationFilter struct {
	value    Filter
	variation Filter
}

func NewVariationFilter(alphaValue, alphaVariation float64) *VariationFilter {
	return &VariationFilter{
		value:     Filter{Alpha: alphaValue},
		variation: Filter{Alpha: alphaVariation, hasValue: true},
	}
}

func (v *VariationFilter) NewValue(x float64) (value, variation float64) {
	prev := v.value.value
	hadValue := v.value.hasValue
	value = v.value.NewValue(x)
	if hadValue {
		diff := x - prev
		if diff < 0 {
			diff = -diff
		}
		variation = v.variation.NewValue(diff)
	}
	return value, variation
}

func (v *VariationFilter) Value() float64     { return v.value.Value() }
func (v *VariationFilter) Variation() float64 { return v.variation.Value() }
