package trace

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPromptRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prompt.txt")
	pw, err := CreatePrompt(path)
	require.NoError(t, err)
	for _, b := range []uint8{1, 0, 0, 3} {
		require.NoError(t, pw.Write(b))
	}
	require.NoError(t, pw.Close())

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "1\n0\n0\n1\n", string(raw))

	got, err := ReadPrompt(bytes.NewReader(raw))
	require.NoError(t, err)
	assert.Equal(t, []uint8{1, 0, 0, 1}, got)
}

func TestCarrierFormat(t *testing.T) {
	var buf bytes.Buffer
	cw := NewCarrierWriter(&buf)
	require.NoError(t, cw.Write(IQ{I: -2, Q: 1}))
	require.NoError(t, cw.Write(IQ{I: 1, Q: 2}))
	require.NoError(t, cw.Close())
	assert.Equal(t, "-2 1\n1 2\n", buf.String())

	got, err := ReadCarrier(strings.NewReader("-2 1\n\n 1   2 \n"))
	require.NoError(t, err)
	assert.Equal(t, []IQ{{-2, 1}, {1, 2}}, got)
}

func TestReadersRejectMalformedLines(t *testing.T) {
	_, err := ReadPrompt(strings.NewReader("1\n2\n"))
	assert.EqualError(t, err, `line 2: invalid prompt sample "2"`)

	_, err = ReadCarrier(strings.NewReader("1 2 3\n"))
	assert.EqualError(t, err, "line 1: expected 2 fields, got 3")

	_, err = ReadCarrier(strings.NewReader("1 x\n"))
	assert.ErrorContains(t, err, "line 1: invalid Q")

	_, err = ReadPrompt(nil)
	assert.Error(t, err)
}
