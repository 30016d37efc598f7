// Package xdf reads and writes sessions stored in the Extensible Data Format
// used by Lab Streaming Layer recorders. Each file interleaves chunks for
// any number of streams; Open returns them as a session.Set with timestamps
// mapped onto the recorder's clock.
package xdf

import (
	"encoding/binary"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"math"
)

const magic = "XDF:"

// Chunk tags.
const (
	tagFileHeader   uint16 = 1
	tagStreamHeader uint16 = 2
	tagSamples      uint16 = 3
	tagClockOffset  uint16 = 4
	tagBoundary     uint16 = 5
	tagStreamFooter uint16 = 6
)

// Channel formats.
const (
	FormatString  = "string"
	FormatFloat32 = "float32"
	FormatDouble  = "double64"
	FormatInt8    = "int8"
	FormatInt16   = "int16"
	FormatInt32   = "int32"
	FormatInt64   = "int64"
)

// maxChunkLen bounds a single chunk so a corrupt length prefix cannot make
// the reader allocate arbitrary memory.
const maxChunkLen = 1 << 30

// StreamInfo is the XML stream header.
type StreamInfo struct {
	XMLName       xml.Name `xml:"info"`
	Name          string   `xml:"name"`
	Type          string   `xml:"type"`
	ChannelCount  int      `xml:"channel_count"`
	NominalRate   float64  `xml:"nominal_srate"`
	ChannelFormat string   `xml:"channel_format"`
	SourceID      string   `xml:"source_id,omitempty"`
}

type fileHeader struct {
	XMLName xml.Name `xml:"info"`
	Version string   `xml:"version"`
}

type streamFooter struct {
	XMLName        xml.Name `xml:"info"`
	FirstTimestamp float64  `xml:"first_timestamp"`
	LastTimestamp  float64  `xml:"last_timestamp"`
	SampleCount    int      `xml:"sample_count"`
}

var errBadLengthWidth = errors.New("invalid length width")

// valueSize returns the encoded size of one numeric channel value.
func valueSize(format string) (int, error) {
	switch format {
	case FormatInt8:
		return 1, nil
	case FormatInt16:
		return 2, nil
	case FormatFloat32, FormatInt32:
		return 4, nil
	case FormatDouble, FormatInt64:
		return 8, nil
	}
	return 0, fmt.Errorf("unsupported channel format %q", format)
}

func decodeValue(format string, b []byte) float64 {
	switch format {
	case FormatInt8:
		return float64(int8(b[0]))
	case FormatInt16:
		return float64(int16(binary.LittleEndian.Uint16(b)))
	case FormatInt32:
		return float64(int32(binary.LittleEndian.Uint32(b)))
	case FormatInt64:
		return float64(int64(binary.LittleEndian.Uint64(b)))
	case FormatFloat32:
		return float64(math.Float32frombits(binary.LittleEndian.Uint32(b)))
	default:
		return math.Float64frombits(binary.LittleEndian.Uint64(b))
	}
}

func encodeValue(format string, b []byte, v float64) {
	switch format {
	case FormatInt8:
		b[0] = byte(int8(v))
	case FormatInt16:
		binary.LittleEndian.PutUint16(b, uint16(int16(v)))
	case FormatInt32:
		binary.LittleEndian.PutUint32(b, uint32(int32(v)))
	case FormatInt64:
		binary.LittleEndian.PutUint64(b, uint64(int64(v)))
	case FormatFloat32:
		binary.LittleEndian.PutUint32(b, math.Float32bits(float32(v)))
	default:
		binary.LittleEndian.PutUint64(b, math.Float64bits(v))
	}
}

// readVarLen reads a variable-width length: one byte giving the width (1, 4
// or 8) followed by the little-endian value.
func readVarLen(r io.Reader) (uint64, error) {
	var width [1]byte
	if _, err := io.ReadFull(r, width[:]); err != nil {
		return 0, err
	}
	var buf [8]byte
	switch width[0] {
	case 1:
		if _, err := io.ReadFull(r, buf[:1]); err != nil {
			return 0, err
		}
		return uint64(buf[0]), nil
	case 4:
		if _, err := io.ReadFull(r, buf[:4]); err != nil {
			return 0, err
		}
		return uint64(binary.LittleEndian.Uint32(buf[:4])), nil
	case 8:
		if _, err := io.ReadFull(r, buf[:8]); err != nil {
			return 0, err
		}
		return binary.LittleEndian.Uint64(buf[:8]), nil
	}
	return 0, fmt.Errorf("%w: %d", errBadLengthWidth, width[0])
}

// appendVarLen appends n using the narrowest width that fits.
func appendVarLen(b []byte, n uint64) []byte {
	switch {
	case n <= math.MaxUint8:
		return append(b, 1, byte(n))
	case n <= math.MaxUint32:
		b = append(b, 4)
		return binary.LittleEndian.AppendUint32(b, uint32(n))
	default:
		b = append(b, 8)
		return binary.LittleEndian.AppendUint64(b, n)
	}
}
