package utils

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRawLine(t *testing.T) {
	want := [SensorChannels]float64{1469, 1064, 716, 332, 346, 604, 998, 1344}

	cases := []struct {
		name    string
		line    string
		ok      bool
		wantErr bool
	}{
		{"debug stream", "  RAW: 1469 1064 716 332 346 604 998 1344", true, false},
		{"prefixed debug", "[12.345] RAW:1469 1064 716 332 346 604 998 1344\r", true, false},
		{"csv", "1469,1064,716,332,346,604,998,1344", true, false},
		{"tabs", "1469\t1064\t716\t332\t346\t604\t998\t1344", true, false},
		{"blank", "   ", false, false},
		{"comment", "# 1469,1064,716,332,346,604,998,1344", false, false},
		{"other log", "Position: -9.06 Output: 9.06", false, false},
		{"short untagged", "1,2,3", false, false},
		{"short raw", "RAW: 1 2 3", false, true},
		{"bad raw", "RAW: 1 2 3 4 5 6 7 x", false, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok, err := ParseRawLine(tc.line)
			if tc.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.ok, ok)
			if tc.ok {
				assert.Equal(t, want, got)
			}
		})
	}
}

// chunkReader hands out fixed chunks; an empty chunk is a read timeout.
type chunkReader struct {
	chunks []string
}

func (c *chunkReader) Read(p []byte) (int, error) {
	if len(c.chunks) == 0 {
		return 0, io.EOF
	}
	n := copy(p, c.chunks[0])
	c.chunks[0] = c.chunks[0][n:]
	if c.chunks[0] == "" {
		c.chunks = c.chunks[1:]
	}
	return n, nil
}

func TestTextFrameReader(t *testing.T) {
	r := NewTextFrameReader(&chunkReader{chunks: []string{
		"boot\nRAW: 1 2 3 4",
		"",
		" 5 6 7 8\nmode: white\n",
		"",
		"9,10,11,12,13,14,15,16",
	}})
	ctx := context.Background()

	f, err := r.ReadFrame(ctx)
	require.NoError(t, err)
	assert.Equal(t, [SensorChannels]float64{1, 2, 3, 4, 5, 6, 7, 8}, f)

	f, err = r.ReadFrame(ctx)
	require.NoError(t, err)
	assert.Equal(t, [SensorChannels]float64{9, 10, 11, 12, 13, 14, 15, 16}, f, "final line without newline")

	_, err = r.ReadFrame(ctx)
	assert.ErrorIs(t, err, io.EOF)
	assert.Equal(t, 2, r.Skipped())
}

func TestTextFrameReaderMalformedLineIsRecoverable(t *testing.T) {
	r := NewTextFrameReader(strings.NewReader("RAW: 1 2\nRAW: 8 7 6 5 4 3 2 1\n"))

	_, err := r.ReadFrame(context.Background())
	require.Error(t, err)

	f, err := r.ReadFrame(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 8.0, f[0])
}

func TestTextFrameReaderHonoursContext(t *testing.T) {
	r := NewTextFrameReader(&chunkReader{chunks: []string{"RAW: 1 2 3 4 5 6 7 8\n"}})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := r.ReadFrame(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestTextFrameReaderDropsOversizedLine(t *testing.T) {
	noise := strings.Repeat("x", 3000)
	r := NewTextFrameReader(&chunkReader{chunks: []string{
		noise, noise, noise, "tail of the noise\n",
		"RAW: 1 2 3 4 5 6 7 8\n",
	}})

	f, err := r.ReadFrame(context.Background())
	require.NoError(t, err)
	assert.Equal(t, [SensorChannels]float64{1, 2, 3, 4, 5, 6, 7, 8}, f)
	assert.Equal(t, 1, r.Skipped())
	assert.LessOrEqual(t, cap(r.pending), 2*maxLineLength)

	_, err = r.ReadFrame(context.Background())
	assert.ErrorIs(t, err, io.EOF)
}
