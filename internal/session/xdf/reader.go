package xdf

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"

	"gonum.org/v1/gonum/stat"

	"github.com/banshee-data/gaze.report/internal/session"
)

// stream accumulates the chunks belonging to one stream id.
type stream struct {
	id     uint32
	info   StreamInfo
	seen   bool
	width  int
	ts     []float64
	values [][]float64
	labels [][]string
	lastTS float64

	offsetTimes  []float64
	offsetValues []float64
}

// Open loads the XDF file at path. Any failure is reported as a
// *session.LoadError carrying the path.
func Open(path string) (*session.Set, error) {
	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		return nil, &session.LoadError{Path: path, Err: err}
	}
	defer f.Close()

	set, err := Read(bufio.NewReader(f), path)
	if err != nil {
		var le *session.LoadError
		if errors.As(err, &le) {
			return nil, err
		}
		return nil, &session.LoadError{Path: path, Err: err}
	}
	return set, nil
}

// Read decodes an XDF byte stream. source is recorded as the set's Source.
// A file truncated mid-chunk keeps every complete chunk read so far.
func Read(r io.Reader, source string) (*session.Set, error) {
	var head [len(magic)]byte
	if _, err := io.ReadFull(r, head[:]); err != nil {
		return nil, &session.LoadError{Path: source, Err: fmt.Errorf("read magic: %w", err)}
	}
	if string(head[:]) != magic {
		return nil, &session.LoadError{Path: source, Err: fmt.Errorf("bad magic %q", head[:])}
	}

	streams := make(map[uint32]*stream)
	var order []uint32
	get := func(id uint32) *stream {
		s, ok := streams[id]
		if !ok {
			s = &stream{id: id}
			streams[id] = s
			order = append(order, id)
		}
		return s
	}

	chunks := 0
	for {
		tag, body, err := readChunk(r)
		if err == io.EOF {
			break
		}
		if errors.Is(err, io.ErrUnexpectedEOF) {
			opsf("%s: truncated after %d chunks, keeping data read so far", source, chunks)
			break
		}
		if err != nil {
			return nil, &session.LoadError{Path: source, Err: fmt.Errorf("chunk %d: %w", chunks, err)}
		}
		chunks++
		tracef("%s: chunk %d tag=%d len=%d", source, chunks, tag, len(body))

		if err := handleChunk(tag, body, get); err != nil {
			return nil, &session.LoadError{Path: source, Err: fmt.Errorf("chunk %d (tag %d): %w", chunks, tag, err)}
		}
	}

	out := make([]session.Stream, 0, len(order))
	for _, id := range order {
		s := streams[id]
		if !s.seen {
			opsf("%s: samples for stream %d without a header, skipping", source, id)
			continue
		}
		out = append(out, s.finish(source))
	}

	set, err := session.NewSet(source, out...)
	if err != nil {
		return nil, &session.LoadError{Path: source, Err: err}
	}
	diagf("%s: loaded %d streams from %d chunks", source, len(out), chunks)
	return set, nil
}

func readChunk(r io.Reader) (uint16, []byte, error) {
	n, err := readVarLen(r)
	if err != nil {
		return 0, nil, err
	}
	if n < 2 || n > maxChunkLen {
		return 0, nil, fmt.Errorf("chunk length %d out of range", n)
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return 0, nil, err
	}
	return binary.LittleEndian.Uint16(buf[:2]), buf[2:], nil
}

func handleChunk(tag uint16, body []byte, get func(uint32) *stream) error {
	switch tag {
	case tagFileHeader, tagBoundary:
		return nil
	}

	if len(body) < 4 {
		return fmt.Errorf("short chunk body (%d bytes)", len(body))
	}
	id := binary.LittleEndian.Uint32(body[:4])
	rest := body[4:]
	s := get(id)

	switch tag {
	case tagStreamHeader:
		return s.parseHeader(rest)
	case tagSamples:
		if !s.seen {
			return fmt.Errorf("samples for stream %d before its header", id)
		}
		return s.parseSamples(bytes.NewReader(rest))
	case tagClockOffset:
		if len(rest) < 16 {
			return fmt.Errorf("short clock offset chunk")
		}
		s.offsetTimes = append(s.offsetTimes, decodeValue(FormatDouble, rest[:8]))
		s.offsetValues = append(s.offsetValues, decodeValue(FormatDouble, rest[8:16]))
		return nil
	case tagStreamFooter:
		var footer streamFooter
		if err := xml.Unmarshal(rest, &footer); err != nil {
			opsf("stream %d: unreadable footer: %v", id, err)
		}
		return nil
	}
	tracef("ignoring unknown chunk tag %d", tag)
	return nil
}

func (s *stream) parseHeader(b []byte) error {
	if err := xml.Unmarshal(b, &s.info); err != nil {
		return fmt.Errorf("stream %d header: %w", s.id, err)
	}
	if s.info.ChannelCount < 1 {
		return fmt.Errorf("stream %d (%s): channel_count %d", s.id, s.info.Name, s.info.ChannelCount)
	}
	if s.info.ChannelFormat != FormatString {
		w, err := valueSize(s.info.ChannelFormat)
		if err != nil {
			return fmt.Errorf("stream %d (%s): %w", s.id, s.info.Name, err)
		}
		s.width = w
	}
	s.seen = true
	return nil
}

func (s *stream) parseSamples(r *bytes.Reader) error {
	count, err := readVarLen(r)
	if err != nil {
		return fmt.Errorf("sample count: %w", err)
	}
	channels := s.info.ChannelCount
	var tsBuf [8]byte
	for i := uint64(0); i < count; i++ {
		var flag [1]byte
		if _, err := io.ReadFull(r, flag[:]); err != nil {
			return fmt.Errorf("sample %d timestamp flag: %w", i, err)
		}
		ts := s.lastTS
		switch flag[0] {
		case 8:
			if _, err := io.ReadFull(r, tsBuf[:]); err != nil {
				return fmt.Errorf("sample %d timestamp: %w", i, err)
			}
			ts = decodeValue(FormatDouble, tsBuf[:])
		case 0:
			if s.info.NominalRate > 0 {
				ts += 1 / s.info.NominalRate
			}
		default:
			return fmt.Errorf("sample %d: timestamp width %d", i, flag[0])
		}
		s.lastTS = ts

		if s.info.ChannelFormat == FormatString {
			row := make([]string, channels)
			for c := range row {
				n, err := readVarLen(r)
				if err != nil {
					return fmt.Errorf("sample %d channel %d length: %w", i, c, err)
				}
				if n > uint64(r.Len()) {
					return fmt.Errorf("sample %d channel %d: string length %d exceeds chunk", i, c, n)
				}
				str := make([]byte, n)
				if _, err := io.ReadFull(r, str); err != nil {
					return err
				}
				row[c] = string(str)
			}
			s.labels = append(s.labels, row)
		} else {
			raw := make([]byte, channels*s.width)
			if _, err := io.ReadFull(r, raw); err != nil {
				return fmt.Errorf("sample %d values: %w", i, err)
			}
			row := make([]float64, channels)
			for c := range row {
				row[c] = decodeValue(s.info.ChannelFormat, raw[c*s.width:])
			}
			s.values = append(s.values, row)
		}
		s.ts = append(s.ts, ts)
	}
	return nil
}

// finish applies clock correction and drops samples whose timestamps do not
// strictly increase.
func (s *stream) finish(source string) session.Stream {
	s.syncClock()

	out := session.Stream{
		Name:         s.info.Name,
		Type:         s.info.Type,
		ChannelCount: s.info.ChannelCount,
		NominalRate:  s.info.NominalRate,
	}
	text := s.info.ChannelFormat == FormatString
	if text {
		out.Labels = make([][]string, 0, len(s.ts))
	} else {
		out.Values = make([][]float64, 0, len(s.ts))
	}
	out.Timestamps = make([]float64, 0, len(s.ts))

	dropped := 0
	for i, ts := range s.ts {
		if n := len(out.Timestamps); n > 0 && !(ts > out.Timestamps[n-1]) {
			dropped++
			continue
		}
		out.Timestamps = append(out.Timestamps, ts)
		if text {
			out.Labels = append(out.Labels, s.labels[i])
		} else {
			out.Values = append(out.Values, s.values[i])
		}
	}
	if dropped > 0 {
		opsf("%s: stream %q dropped %d non-increasing samples", source, out.Name, dropped)
	}
	if out.NominalRate > 0 {
		out.EffectiveRate = session.EstimateRate(out.Timestamps)
	}
	diagf("%s: stream %q type=%q channels=%d samples=%d nominal=%.3fHz effective=%.3fHz",
		source, out.Name, out.Type, out.ChannelCount, len(out.Timestamps), out.NominalRate, out.EffectiveRate)
	return out
}

// syncClock maps timestamps onto the recorder clock using the recorded
// clock offsets. Two or more offsets are fitted with a least-squares line
// over collection time; a single offset is applied as a constant.
func (s *stream) syncClock() {
	switch len(s.offsetTimes) {
	case 0:
		return
	case 1:
		for i := range s.ts {
			s.ts[i] += s.offsetValues[0]
		}
		return
	}
	alpha, beta := stat.LinearRegression(s.offsetTimes, s.offsetValues, nil, false)
	if math.IsNaN(alpha) || math.IsNaN(beta) {
		// All offsets collected at the same instant.
		alpha, beta = stat.Mean(s.offsetValues, nil), 0
	}
	for i, ts := range s.ts {
		s.ts[i] = ts + alpha + beta*ts
	}
}
