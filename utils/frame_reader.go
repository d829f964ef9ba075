package utils

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

const rawPrefix = "RAW:"

// maxLineLength bounds a buffered line; longer lines are dropped unparsed.
const maxLineLength = 4096

// ParseRawLine extracts the 8 sensor readings from one line of the vehicle's
// debug stream ("  RAW: 1469 1064 716 332 346 604 998 1344") or from a replay
// file (the same eight values, comma or space separated).
//
// ok is false for lines that carry no frame. A line with the RAW prefix but
// the wrong number of readings is an error.
func ParseRawLine(line string) (samples [SensorChannels]float64, ok bool, err error) {
	s := strings.TrimSpace(line)
	if s == "" || strings.HasPrefix(s, "#") {
		return samples, false, nil
	}

	tagged := false
	if i := strings.Index(s, rawPrefix); i >= 0 {
		s = s[i+len(rawPrefix):]
		tagged = true
	}

	fields := strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t' || r == ';'
	})
	if len(fields) != SensorChannels {
		if tagged {
			return samples, false, fmt.Errorf("raw line has %d readings, want %d", len(fields), SensorChannels)
		}
		return samples, false, nil
	}
	for i, f := range fields {
		v, perr := strconv.ParseFloat(f, 64)
		if perr != nil {
			if tagged {
				return samples, false, fmt.Errorf("raw line reading %d: %w", i, perr)
			}
			return samples, false, nil
		}
		samples[i] = v
	}
	return samples, true, nil
}

// TextFrameReader pulls sensor frames out of a line-oriented byte stream.
// Reads that return no data (a serial port read timeout) are retried until
// the context ends.
type TextFrameReader struct {
	r       io.Reader
	buf     []byte
	pending []byte
	eof     bool
	skipped int
	// discarding is set while the tail of an oversized line is dropped
	discarding bool
}

func NewTextFrameReader(r io.Reader) *TextFrameReader {
	return &TextFrameReader{r: r, buf: make([]byte, 512)}
}

// Skipped returns how many non-frame lines were discarded so far.
func (t *TextFrameReader) Skipped() int {
	return t.skipped
}

// ReadFrame returns the next frame, io.EOF at the end of the stream, or the
// parse error of a malformed RAW line (the reader stays usable).
func (t *TextFrameReader) ReadFrame(ctx context.Context) ([SensorChannels]float64, error) {
	for {
		if err := ctx.Err(); err != nil {
			return [SensorChannels]float64{}, err
		}

		if line, ok := t.nextLine(); ok {
			if t.discarding {
				t.discarding = false
				continue
			}
			samples, isFrame, err := ParseRawLine(line)
			if err != nil {
				return samples, err
			}
			if isFrame {
				return samples, nil
			}
			t.skipped++
			continue
		}
		if t.eof {
			return [SensorChannels]float64{}, io.EOF
		}

		n, err := t.r.Read(t.buf)
		t.pending = append(t.pending, t.buf[:n]...)
		if len(t.pending) > maxLineLength && bytes.IndexByte(t.pending, '\n') < 0 {
			if !t.discarding {
				t.skipped++
			}
			t.discarding = true
			t.pending = t.pending[:0]
		}
		if errors.Is(err, io.EOF) {
			t.eof = true
		} else if err != nil {
			return [SensorChannels]float64{}, err
		}
	}
}

func (t *TextFrameReader) nextLine() (string, bool) {
	if i := bytes.IndexByte(t.pending, '\n'); i >= 0 {
		line := string(t.pending[:i])
		t.pending = t.pending[i+1:]
		return line, true
	}
	if t.eof && len(t.pending) > 0 {
		line := string(t.pending)
		t.pending = nil
		return line, true
	}
	return "", false
}
