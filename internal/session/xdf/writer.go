package xdf

import (
	"bufio"
	"encoding/binary"
	"encoding/xml"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"

	"github.com/banshee-data/gaze.report/internal/session"
)

// Writer emits XDF chunks. Errors are sticky: after the first failure every
// call returns the same error.
type Writer struct {
	w       io.Writer
	err     error
	streams map[uint32]StreamInfo
}

// NewWriter writes the magic and file header to w.
func NewWriter(w io.Writer) (*Writer, error) {
	xw := &Writer{w: w, streams: make(map[uint32]StreamInfo)}
	if _, err := io.WriteString(w, magic); err != nil {
		return nil, err
	}
	hdr, err := xml.Marshal(fileHeader{Version: "1.0"})
	if err != nil {
		return nil, err
	}
	if err := xw.chunk(tagFileHeader, append([]byte(xml.Header), hdr...)); err != nil {
		return nil, err
	}
	return xw, nil
}

func (xw *Writer) chunk(tag uint16, body []byte) error {
	if xw.err != nil {
		return xw.err
	}
	buf := appendVarLen(nil, uint64(len(body)+2))
	buf = binary.LittleEndian.AppendUint16(buf, tag)
	buf = append(buf, body...)
	_, xw.err = xw.w.Write(buf)
	return xw.err
}

func streamBody(id uint32) []byte {
	return binary.LittleEndian.AppendUint32(nil, id)
}

// WriteStreamHeader declares a stream. It must precede the stream's samples.
func (xw *Writer) WriteStreamHeader(id uint32, info StreamInfo) error {
	if info.ChannelFormat != FormatString {
		if _, err := valueSize(info.ChannelFormat); err != nil {
			return err
		}
	}
	b, err := xml.Marshal(info)
	if err != nil {
		return err
	}
	xw.streams[id] = info
	return xw.chunk(tagStreamHeader, append(streamBody(id), append([]byte(xml.Header), b...)...))
}

// WriteNumericSamples writes one samples chunk for a numeric stream. A NaN
// timestamp is written as "no timestamp" and the reader back-fills it from
// the nominal rate.
func (xw *Writer) WriteNumericSamples(id uint32, ts []float64, values [][]float64) error {
	info, ok := xw.streams[id]
	if !ok {
		return fmt.Errorf("stream %d has no header", id)
	}
	if info.ChannelFormat == FormatString {
		return fmt.Errorf("stream %d (%s) is a string stream", id, info.Name)
	}
	if len(ts) != len(values) {
		return fmt.Errorf("stream %d: %d timestamps for %d samples", id, len(ts), len(values))
	}
	width, _ := valueSize(info.ChannelFormat)

	body := appendVarLen(streamBody(id), uint64(len(ts)))
	val := make([]byte, width)
	for i, t := range ts {
		body = appendTimestamp(body, t)
		if len(values[i]) != info.ChannelCount {
			return fmt.Errorf("stream %d sample %d: %d channels, want %d", id, i, len(values[i]), info.ChannelCount)
		}
		for _, v := range values[i] {
			encodeValue(info.ChannelFormat, val, v)
			body = append(body, val...)
		}
	}
	return xw.chunk(tagSamples, body)
}

// WriteStringSamples writes one samples chunk for a string stream.
func (xw *Writer) WriteStringSamples(id uint32, ts []float64, labels [][]string) error {
	info, ok := xw.streams[id]
	if !ok {
		return fmt.Errorf("stream %d has no header", id)
	}
	if info.ChannelFormat != FormatString {
		return fmt.Errorf("stream %d (%s) is not a string stream", id, info.Name)
	}
	if len(ts) != len(labels) {
		return fmt.Errorf("stream %d: %d timestamps for %d samples", id, len(ts), len(labels))
	}

	body := appendVarLen(streamBody(id), uint64(len(ts)))
	for i, t := range ts {
		body = appendTimestamp(body, t)
		if len(labels[i]) != info.ChannelCount {
			return fmt.Errorf("stream %d sample %d: %d channels, want %d", id, i, len(labels[i]), info.ChannelCount)
		}
		for _, s := range labels[i] {
			body = appendVarLen(body, uint64(len(s)))
			body = append(body, s...)
		}
	}
	return xw.chunk(tagSamples, body)
}

// WriteClockOffset records the offset between the stream's clock and the
// recorder clock measured at collectionTime.
func (xw *Writer) WriteClockOffset(id uint32, collectionTime, offset float64) error {
	body := streamBody(id)
	body = binary.LittleEndian.AppendUint64(body, math.Float64bits(collectionTime))
	body = binary.LittleEndian.AppendUint64(body, math.Float64bits(offset))
	return xw.chunk(tagClockOffset, body)
}

// WriteStreamFooter closes a stream with its summary.
func (xw *Writer) WriteStreamFooter(id uint32, first, last float64, count int) error {
	b, err := xml.Marshal(streamFooter{FirstTimestamp: first, LastTimestamp: last, SampleCount: count})
	if err != nil {
		return err
	}
	return xw.chunk(tagStreamFooter, append(streamBody(id), append([]byte(xml.Header), b...)...))
}

func appendTimestamp(b []byte, t float64) []byte {
	if math.IsNaN(t) {
		return append(b, 0)
	}
	b = append(b, 8)
	return binary.LittleEndian.AppendUint64(b, math.Float64bits(t))
}

// WriteSession writes every stream of the given slice as a complete XDF
// file: numeric streams as double64, string streams as string.
func WriteSession(w io.Writer, streams ...session.Stream) error {
	xw, err := NewWriter(w)
	if err != nil {
		return err
	}
	for i, st := range streams {
		id := uint32(i + 1)
		info := StreamInfo{
			Name:         st.Name,
			Type:         st.Type,
			ChannelCount: st.ChannelCount,
			NominalRate:  st.NominalRate,
		}
		if st.IsText() {
			info.ChannelFormat = FormatString
			if info.ChannelCount == 0 {
				info.ChannelCount = 1
			}
		} else {
			info.ChannelFormat = FormatDouble
			if info.ChannelCount == 0 && len(st.Values) > 0 {
				info.ChannelCount = len(st.Values[0])
			}
		}
		if err := xw.WriteStreamHeader(id, info); err != nil {
			return fmt.Errorf("stream %q header: %w", st.Name, err)
		}
		if st.IsText() {
			err = xw.WriteStringSamples(id, st.Timestamps, st.Labels)
		} else {
			err = xw.WriteNumericSamples(id, st.Timestamps, st.Values)
		}
		if err != nil {
			return fmt.Errorf("stream %q samples: %w", st.Name, err)
		}
		if n := len(st.Timestamps); n > 0 {
			if err := xw.WriteStreamFooter(id, st.Timestamps[0], st.Timestamps[n-1], n); err != nil {
				return err
			}
		}
	}
	return nil
}

// Create writes the streams to a new file at path.
func Create(path string, streams ...session.Stream) error {
	f, err := os.Create(filepath.Clean(path))
	if err != nil {
		return err
	}
	bw := bufio.NewWriter(f)
	if err := WriteSession(bw, streams...); err != nil {
		f.Close()
		return err
	}
	if err := bw.Flush(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
