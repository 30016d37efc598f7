package synth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarkers(t *testing.T) {
	t.Parallel()

	st := Markers(Spec{Phases: []string{"stare", "jump"}, Start: 10, PhaseDuration: 5, Gap: 1})
	require.NoError(t, st.Validate())
	assert.Equal(t, []float64{10, 11, 16, 17, 22}, st.Timestamps)
	labels := make([]string, st.Len())
	for i := range labels {
		labels[i] = st.Label(i)
	}
	assert.Equal(t, []string{BeginLabel, "stare", "stare_end", "jump", "jump_end"}, labels)
}

func TestGaze(t *testing.T) {
	t.Parallel()

	spec := Spec{Phases: []string{"stare"}, Start: 0, PhaseDuration: 2, Gap: 1, Rate: 10}
	st := Gaze(spec)
	require.NoError(t, st.Validate())
	assert.Equal(t, 41, st.Len())
	assert.Equal(t, 10.0, st.SampleRate())
	for _, row := range st.Values {
		require.Len(t, row, 3)
		assert.Equal(t, []float64{1, 0.5, 0.5}, row)
	}
}

func TestGaze_SeedIsDeterministic(t *testing.T) {
	t.Parallel()

	a := Gaze(Spec{Noise: 0.01, Seed: 7})
	b := Gaze(Spec{Noise: 0.01, Seed: 7})
	c := Gaze(Spec{Noise: 0.01, Seed: 8})
	assert.Equal(t, a.Values, b.Values)
	assert.NotEqual(t, a.Values, c.Values)
}

func TestMotion(t *testing.T) {
	t.Parallel()

	x, y := Motion("jump", 0.1)
	assert.Equal(t, [2]float64{0.3, 0.5}, [2]float64{x, y})
	x, _ = Motion("jump", 0.6)
	assert.Equal(t, 0.7, x)
	x, y = Motion("unknown", 3)
	assert.Equal(t, [2]float64{0.5, 0.5}, [2]float64{x, y})
	x, _ = Motion("pursuit", 0.625)
	assert.InDelta(t, 0.8, x, 1e-12)
}

func TestSession(t *testing.T) {
	t.Parallel()

	set, err := Session("synthetic", DefaultSpec())
	require.NoError(t, err)
	assert.Equal(t, []string{"Stimulus_Markers", "TobiiGaze"}, set.Names())
	assert.Equal(t, "synthetic", set.Source())
}
