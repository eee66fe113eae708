// Package deviation classifies observed readings against ideal ranges.
//
// Two policies live here and are deliberately unrelated: Classify answers
// "how does this reading look next to its band" for display, CheckMargin
// answers "should this reading raise an alert".
package deviation

import "github.com/jpedrorock/cultivo-standalone-sub001/internal/cultivation"

// Status is the display classification of a reading
type Status string

const (
	Unmeasured Status = "UNMEASURED"
	Valid      Status = "VALID"
	Warning    Status = "WARNING"
	Invalid    Status = "INVALID"
)

// Tolerance is the relative near-miss band around [min, max]
const Tolerance = 0.10

// Classify places value against r: inside the range is Valid, inside
// [min*(1-Tolerance), max*(1+Tolerance)] is Warning, anything else Invalid.
func Classify(value *float64, r cultivation.Range) Status {
	if value == nil || !r.Complete() {
		return Unmeasured
	}

	v, min, max := *value, *r.Min, *r.Max
	if v >= min && v <= max {
		return Valid
	}
	if v >= min*(1-Tolerance) && v <= max*(1+Tolerance) {
		return Warning
	}
	return Invalid
}
