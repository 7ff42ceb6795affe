package detect

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetectBOM(t *testing.T) {
	assert.Equal(t, UTF8, Detect([]byte{0xEF, 0xBB, 0xBF, 'h', 'i'}))
	assert.Equal(t, UTF16LE, Detect([]byte{0xFF, 0xFE, 'h', 0}))
	assert.Equal(t, UTF16BE, Detect([]byte{0xFE, 0xFF, 0, 'h'}))
	assert.Equal(t, UTF32LE, Detect([]byte{0xFF, 0xFE, 0, 0, 'h', 0, 0, 0}))
}

func TestDetectPlainASCIIFallsBackToUTF8(t *testing.T) {
	assert.Equal(t, UTF8, Detect([]byte("line one\nline two\n")))
}

func TestTerminatorStrides(t *testing.T) {
	assert.Equal(t, LineTerminator{Width: 1, IndexWithinUnit: 0}, Terminator(UTF8))
	assert.Equal(t, LineTerminator{Width: 2, IndexWithinUnit: 0}, Terminator(UTF16LE))
	assert.Equal(t, LineTerminator{Width: 2, IndexWithinUnit: 1}, Terminator(UTF16BE))
	assert.Equal(t, LineTerminator{Width: 4, IndexWithinUnit: 3}, Terminator(UTF32BE))
}

func TestDecoderRoundTrip(t *testing.T) {
	dec, err := Decoder(UTF16LE)
	require.NoError(t, err)
	out, err := dec.Bytes([]byte("h\x00i\x00"))
	require.NoError(t, err)
	assert.Equal(t, "hi", string(out))
}

func TestDecoderUnknownEncoding(t *testing.T) {
	_, err := Decoder(Encoding("bogus"))
	assert.Error(t, err)
}
