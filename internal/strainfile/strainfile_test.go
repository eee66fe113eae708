package strainfile

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jpedrorock/cultivo-standalone-sub001/internal/cultivation"
)

const blueDream = `
strains:
  - name: Blue Dream
    vega_weeks: 4
    flora_weeks: 8
    targets:
      - phase: VEGA
        week: 1
        temp: {min: 20, max: 26}
        rh: {min: 60, max: 70}
        ppfd: {min: 300, max: 500}
        photoperiod: "18/6"
      - phase: FLORA
        week: 8
        temp: {min: 20, max: 24}
        ph: {min: 6.0}
        photoperiod: "12/12"
`

func TestParse(t *testing.T) {
	f, err := Parse([]byte(blueDream))
	require.NoError(t, err)
	require.Len(t, f.Strains, 1)

	s := f.Strains[0]
	assert.Equal(t, cultivation.Strain{Name: "Blue Dream", VegaWeeks: 4, FloraWeeks: 8}, s.Strain())
	require.Len(t, s.Targets, 2)

	vega, err := s.Targets[0].WeeklyTarget()
	require.NoError(t, err)
	assert.Equal(t, cultivation.PhaseVega, vega.Phase)
	require.True(t, vega.Temp.Complete())
	assert.Equal(t, 20.0, *vega.Temp.Min)
	assert.Equal(t, 26.0, *vega.Temp.Max)
	assert.False(t, vega.EC.Complete())

	flora, err := s.Targets[1].WeeklyTarget()
	require.NoError(t, err)
	assert.Equal(t, 8, flora.Week)
	require.NotNil(t, flora.PH.Min)
	assert.Nil(t, flora.PH.Max)
	assert.Equal(t, "12/12", flora.Photoperiod)
}

func TestParse_WeekBeyondDeclaredDuration(t *testing.T) {
	doc := `
strains:
  - name: Short
    vega_weeks: 2
    flora_weeks: 6
    targets:
      - phase: FLORA
        week: 7
`
	_, err := Parse([]byte(doc))
	assert.ErrorIs(t, err, cultivation.ErrWeekOutOfRange)
}

func TestParse_ReportsEveryProblem(t *testing.T) {
	doc := `
strains:
  - name: ""
    vega_weeks: 2
    flora_weeks: 6
  - name: Dup
    vega_weeks: 2
    flora_weeks: 6
    targets:
      - phase: HARVEST
        week: 1
      - phase: VEGA
        week: 1
      - phase: VEGA
        week: 1
`
	_, err := Parse([]byte(doc))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "strains[0]")
	assert.Contains(t, err.Error(), "unknown phase")
	assert.Contains(t, err.Error(), "duplicate VEGA week 1")
}

func TestParse_Empty(t *testing.T) {
	_, err := Parse([]byte("strains: []\n"))
	assert.Error(t, err)

	_, err = Parse([]byte("strains: [oops"))
	assert.Error(t, err)
}
