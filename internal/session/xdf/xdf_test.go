package xdf

import (
	"bytes"
	"errors"
	"math"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/gaze.report/internal/session"
)

func sampleStreams() []session.Stream {
	return []session.Stream{
		{
			Name:       "Stimulus_Markers",
			Type:       "Markers",
			Timestamps: []float64{10.0, 11.0, 12.0},
			Labels:     [][]string{{"stimulus_begin"}, {"stare"}, {"stare_end"}},
		},
		{
			Name:         "TobiiGaze",
			Type:         "Gaze",
			ChannelCount: 3,
			NominalRate:  4,
			Timestamps:   []float64{10.0, 10.25, 10.5, 10.75, 11.0},
			Values: [][]float64{
				{1, 0.50, 0.40},
				{1, 0.51, 0.41},
				{0.9, 0.52, 0.42},
				{1, 0.53, 0.43},
				{1, 0.54, 0.44},
			},
		},
	}
}

func TestRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteSession(&buf, sampleStreams()...))

	set, err := Read(&buf, "mem.xdf")
	require.NoError(t, err)
	assert.Equal(t, []string{"Stimulus_Markers", "TobiiGaze"}, set.Names())

	markers, err := set.Stream("Stimulus_Markers")
	require.NoError(t, err)
	assert.True(t, markers.IsText())
	assert.Equal(t, []float64{10, 11, 12}, markers.Timestamps)
	assert.Equal(t, "stare_end", markers.Label(2))
	assert.Equal(t, 0.0, markers.EffectiveRate)

	gaze, err := set.Stream("TobiiGaze")
	require.NoError(t, err)
	assert.Equal(t, sampleStreams()[1].Values, gaze.Values)
	assert.Equal(t, "Gaze", gaze.Type)
	assert.Equal(t, 3, gaze.ChannelCount)
	assert.InDelta(t, 4.0, gaze.EffectiveRate, 1e-9)
}

func TestCreateAndOpen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pt_001.xdf")
	require.NoError(t, Create(path, sampleStreams()...))

	set, err := Open(path)
	require.NoError(t, err)
	assert.Equal(t, path, set.Source())
}

func TestOpen_MissingFile(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "nope.xdf"))
	var le *session.LoadError
	require.True(t, errors.As(err, &le))
	assert.Contains(t, le.Path, "nope.xdf")
}

func TestRead_BadMagic(t *testing.T) {
	_, err := Read(bytes.NewReader([]byte("CSV:1,2,3")), "bad.xdf")
	var le *session.LoadError
	require.True(t, errors.As(err, &le))
	assert.ErrorContains(t, err, "bad magic")
}

func TestRead_Float32AndBackfilledTimestamps(t *testing.T) {
	var buf bytes.Buffer
	w, err := NewWriter(&buf)
	require.NoError(t, err)
	require.NoError(t, w.WriteStreamHeader(7, StreamInfo{
		Name: "pupil_capture", Type: "Gaze", ChannelCount: 3, NominalRate: 10, ChannelFormat: FormatFloat32,
	}))
	ts := []float64{1.0, math.NaN(), math.NaN(), 1.3}
	values := [][]float64{{1, 0.1, 0.2}, {1, 0.2, 0.3}, {1, 0.3, 0.4}, {1, 0.4, 0.5}}
	require.NoError(t, w.WriteNumericSamples(7, ts, values))

	set, err := Read(&buf, "f32.xdf")
	require.NoError(t, err)
	st, err := set.Stream("pupil_capture")
	require.NoError(t, err)
	require.Equal(t, 4, st.Len())
	assert.InDeltaSlice(t, []float64{1.0, 1.1, 1.2, 1.3}, st.Timestamps, 1e-9)
	assert.InDelta(t, 0.3, st.Values[2][1], 1e-6)
}

func TestRead_ClockOffsets(t *testing.T) {
	tests := []struct {
		name    string
		offsets [][2]float64
		want    []float64
	}{
		{"none", nil, []float64{0, 5, 10}},
		{"constant", [][2]float64{{0, 2}}, []float64{2, 7, 12}},
		{"linear drift", [][2]float64{{0, 1}, {10, 2}}, []float64{1, 6.5, 12}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var buf bytes.Buffer
			w, err := NewWriter(&buf)
			require.NoError(t, err)
			require.NoError(t, w.WriteStreamHeader(1, StreamInfo{
				Name: "m", ChannelCount: 1, ChannelFormat: FormatString,
			}))
			require.NoError(t, w.WriteStringSamples(1, []float64{0, 5, 10}, [][]string{{"a"}, {"b"}, {"c"}}))
			for _, o := range tc.offsets {
				require.NoError(t, w.WriteClockOffset(1, o[0], o[1]))
			}

			set, err := Read(&buf, "clock.xdf")
			require.NoError(t, err)
			st, err := set.Stream("m")
			require.NoError(t, err)
			assert.InDeltaSlice(t, tc.want, st.Timestamps, 1e-9)
		})
	}
}

func TestRead_DropsNonIncreasingSamples(t *testing.T) {
	var buf bytes.Buffer
	w, err := NewWriter(&buf)
	require.NoError(t, err)
	require.NoError(t, w.WriteStreamHeader(1, StreamInfo{
		Name: "g", ChannelCount: 1, NominalRate: 100, ChannelFormat: FormatDouble,
	}))
	require.NoError(t, w.WriteNumericSamples(1, []float64{1, 2, 2, 1.5, 3}, [][]float64{{1}, {2}, {3}, {4}, {5}}))

	set, err := Read(&buf, "dup.xdf")
	require.NoError(t, err)
	st, err := set.Stream("g")
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 2, 3}, st.Timestamps)
	assert.Equal(t, [][]float64{{1}, {2}, {5}}, st.Values)
}

func TestRead_TruncatedKeepsCompleteChunks(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteSession(&buf, sampleStreams()...))
	full := buf.Bytes()

	// Cut into the final footer chunk.
	set, err := Read(bytes.NewReader(full[:len(full)-5]), "cut.xdf")
	require.NoError(t, err)
	gaze, err := set.Stream("TobiiGaze")
	require.NoError(t, err)
	assert.Equal(t, 5, gaze.Len())
}

func TestRead_SamplesBeforeHeader(t *testing.T) {
	var buf bytes.Buffer
	w, err := NewWriter(&buf)
	require.NoError(t, err)
	require.NoError(t, w.WriteStreamHeader(1, StreamInfo{Name: "g", ChannelCount: 1, ChannelFormat: FormatDouble}))
	// Re-address the chunk to an undeclared stream id.
	w.streams[2] = w.streams[1]
	require.NoError(t, w.WriteNumericSamples(2, []float64{1}, [][]float64{{1}}))

	_, err = Read(&buf, "orphan.xdf")
	assert.ErrorContains(t, err, "before its header")
}

func TestWriter_UnsupportedFormat(t *testing.T) {
	w, err := NewWriter(&bytes.Buffer{})
	require.NoError(t, err)
	err = w.WriteStreamHeader(1, StreamInfo{Name: "g", ChannelCount: 1, ChannelFormat: "complex128"})
	assert.ErrorContains(t, err, "unsupported channel format")
}

func TestVarLen(t *testing.T) {
	for _, n := range []uint64{0, 200, 70000, 1 << 40} {
		b := appendVarLen(nil, n)
		got, err := readVarLen(bytes.NewReader(b))
		require.NoError(t, err)
		assert.Equal(t, n, got)
	}

	_, err := readVarLen(bytes.NewReader([]byte{3, 0, 0, 0}))
	assert.ErrorIs(t, err, errBadLengthWidth)
}

func TestEncodeDecodeIntegers(t *testing.T) {
	for _, format := range []string{FormatInt8, FormatInt16, FormatInt32, FormatInt64} {
		size, err := valueSize(format)
		require.NoError(t, err)
		b := make([]byte, size)
		encodeValue(format, b, -42)
		assert.Equal(t, -42.0, decodeValue(format, b), format)
	}
}
