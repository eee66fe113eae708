package deviation

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/jpedrorock/cultivo-standalone-sub001/internal/cultivation"
)

func f(v float64) *float64 { return &v }

func TestClassify(t *testing.T) {
	r := cultivation.NewRange(20, 26)

	tests := []struct {
		name  string
		value *float64
		want  Status
	}{
		{"inside", f(23), Valid},
		{"at min", f(20), Valid},
		{"at max", f(26), Valid},
		{"just below band", f(19), Warning},
		{"near miss low", f(18.5), Warning},
		{"near miss high", f(28.5), Warning},
		{"far below", f(17.9), Invalid},
		{"far above", f(29), Invalid},
		{"unmeasured", nil, Unmeasured},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.value, r))
		})
	}
}

func TestClassify_IncompleteRange(t *testing.T) {
	assert.Equal(t, Unmeasured, Classify(f(10), cultivation.Range{Min: f(5)}))
	assert.Equal(t, Unmeasured, Classify(f(10), cultivation.Range{}))
}

func TestCheckMargin(t *testing.T) {
	r := cultivation.NewRange(22, 26)

	res := CheckMargin(f(27.5), r, f(2))
	assert.True(t, res.Measured)
	assert.True(t, res.Exceeded)
	assert.Equal(t, 24.0, res.Ideal)
	assert.Equal(t, 3.5, res.Deviation)
	assert.Equal(t, 2.0, res.Margin)

	// Exactly at the margin is not exceeded
	assert.False(t, CheckMargin(f(26), r, f(2)).Exceeded)

	// Inside the display band can still be outside a tight margin
	res = CheckMargin(f(25.5), r, f(1))
	assert.True(t, res.Exceeded)
	assert.Equal(t, Valid, Classify(f(25.5), r))
}

func TestCheckMargin_Unmeasured(t *testing.T) {
	r := cultivation.NewRange(22, 26)
	assert.False(t, CheckMargin(nil, r, f(2)).Measured)
	assert.False(t, CheckMargin(f(30), r, nil).Measured)
	assert.False(t, CheckMargin(f(30), cultivation.Range{Max: f(26)}, f(2)).Measured)
}
