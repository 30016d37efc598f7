package gaze

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckIntegrity_Pass(t *testing.T) {
	t.Parallel()

	phases := []string{"stare", "pursuit"}
	windows := []PhaseWindow{window("stare", 0, 1), window("pursuit", 2, 3)}
	segs := []Segment{
		{Phase: "stare", X: []float64{1}, Y: []float64{1}},
		{Phase: "pursuit", X: []float64{1, 2}, Y: []float64{1, 2}},
	}
	assert.NoError(t, CheckIntegrity(phases, windows, segs, nil))
}

func TestCheckIntegrity_MissingMarkers(t *testing.T) {
	t.Parallel()

	mi, err := BuildMarkerIndex(markers("stare", 0.0, "stare_end", 1.0))
	require.NoError(t, err)
	phases := []string{"stare", "pursuit"}
	windows, errs := mi.ResolveAll(phases)
	segs := []Segment{{Phase: "stare", X: []float64{1}, Y: []float64{1}}}

	err = CheckIntegrity(phases, windows, segs, errs)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMissingMarkers)
	assert.ErrorIs(t, err, ErrPhaseCount)
	assert.NotErrorIs(t, err, ErrEmptySegment)

	var missing *MissingMarkerError
	require.True(t, errors.As(err, &missing))
	assert.Equal(t, "pursuit", missing.Label)

	var ie *IntegrityError
	require.True(t, errors.As(err, &ie))
	assert.Equal(t, []string{"pursuit"}, ie.Phases())
	assert.Contains(t, ie.Error(), "missing_markers[pursuit]")
}

func TestCheckIntegrity_EmptySegment(t *testing.T) {
	t.Parallel()

	phases := []string{"stare", "jump"}
	windows := []PhaseWindow{window("stare", 0, 1), window("jump", 2, 2.01)}
	segs := []Segment{
		{Phase: "stare", X: []float64{1}, Y: []float64{1}},
		{Phase: "jump"},
	}

	err := CheckIntegrity(phases, windows, segs, map[string]error{})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrEmptySegment)
	assert.NotErrorIs(t, err, ErrMissingMarkers)
	assert.NotErrorIs(t, err, ErrPhaseCount)

	var ie *IntegrityError
	require.True(t, errors.As(err, &ie))
	require.Len(t, ie.Failures, 1)
	assert.Equal(t, IntegrityFailure{Phase: "jump", Check: CheckEmptySegment}, ie.Failures[0])
}

func TestCheckIntegrity_OutOfOrder(t *testing.T) {
	t.Parallel()

	errs := map[string]error{"vor": &OutOfOrderError{Phase: "vor", Start: 2, End: 1}}
	err := CheckIntegrity([]string{"vor"}, nil, nil, errs)
	assert.ErrorIs(t, err, ErrOutOfOrder)
	assert.ErrorIs(t, err, ErrPhaseCount)

	var ooo *OutOfOrderError
	assert.True(t, errors.As(err, &ooo))
}

func TestCheckIntegrity_PhaseCountOnly(t *testing.T) {
	t.Parallel()

	err := CheckIntegrity([]string{"stare", "vor"}, []PhaseWindow{window("stare", 0, 1)},
		[]Segment{{Phase: "stare", X: []float64{1}, Y: []float64{1}}}, nil)
	var ie *IntegrityError
	require.True(t, errors.As(err, &ie))
	require.Len(t, ie.Failures, 1)
	assert.Equal(t, CheckPhaseCount, ie.Failures[0].Check)
	assert.Empty(t, ie.Phases())
}
