package deviation

import (
	"math"

	"github.com/jpedrorock/cultivo-standalone-sub001/internal/cultivation"
)

// MarginResult is the outcome of the alert margin check
type MarginResult struct {
	Measured  bool
	Exceeded  bool
	Ideal     float64
	Deviation float64
	Margin    float64
}

// CheckMargin compares value with the midpoint of r. The reading exceeds its
// margin when |value - ideal| > margin. Missing value, range or margin leave
// the result unmeasured.
func CheckMargin(value *float64, r cultivation.Range, margin *float64) MarginResult {
	if value == nil || margin == nil {
		return MarginResult{}
	}
	ideal, ok := r.Midpoint()
	if !ok {
		return MarginResult{}
	}

	deviation := math.Abs(*value - ideal)
	return MarginResult{
		Measured:  true,
		Exceeded:  deviation > *margin,
		Ideal:     ideal,
		Deviation: deviation,
		Margin:    *margin,
	}
}
