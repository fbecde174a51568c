package main

import (
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gps-correlator/internal/ifsample"
	"gps-correlator/internal/mixer"
	"gps-correlator/internal/trace"
)

const scenario = `duration: 2ms
noise_sigma: 0
satellites:
  - prn: 9
    keyframes:
      - amplitude: 2
`

func TestGenerate_WritesSamplesAndTraces(t *testing.T) {
	dir := t.TempDir()
	scn := filepath.Join(dir, "scn.yaml")
	require.NoError(t, os.WriteFile(scn, []byte(scenario), 0o644))

	opts := options{
		Scenario:     scn,
		Out:          filepath.Join(dir, "if.bin"),
		PromptTrace:  filepath.Join(dir, "prompt.txt"),
		CarrierTrace: filepath.Join(dir, "carrier.txt"),
	}
	require.NoError(t, generate(opts, log.New(io.Discard)))

	r, err := ifsample.Open(opts.Out, ifsample.Options{})
	require.NoError(t, err)
	defer r.Close()
	require.Equal(t, 2*16368, r.Len())

	pf, err := os.Open(opts.PromptTrace)
	require.NoError(t, err)
	defer pf.Close()
	prompt, err := trace.ReadPrompt(pf)
	require.NoError(t, err)

	cf, err := os.Open(opts.CarrierTrace)
	require.NoError(t, err)
	defer cf.Close()
	carrier, err := trace.ReadCarrier(cf)
	require.NoError(t, err)

	require.Len(t, prompt, r.Len())
	require.Len(t, carrier, r.Len())

	// Noiseless: each sample's sign is the chip times the in-phase carrier.
	samples := make([]mixer.Sample, r.Len())
	n, err := r.ReadSamples(samples)
	require.NoError(t, err)
	require.Equal(t, r.Len(), n)
	for i, s := range samples {
		want := uint8(0)
		if (prompt[i] == 1) == (carrier[i].I > 0) {
			want = 1
		}
		assert.Equal(t, want, s.Sign, "sample %d", i)
	}
}

func TestGenerate_RequiresFlags(t *testing.T) {
	assert.EqualError(t, generate(options{Out: "x"}, log.New(io.Discard)), "--scenario is required")
	assert.EqualError(t, generate(options{Scenario: "x"}, log.New(io.Discard)), "--out is required")
}
