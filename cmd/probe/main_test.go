package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/wav"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testRate = 8000

func writeSilence(t *testing.T, frames int) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "silence.wav")
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	format := beep.Format{SampleRate: testRate, NumChannels: 2, Precision: 2}
	require.NoError(t, wav.Encode(f, beep.Take(frames, beep.Silence(-1)), format))
	return path
}

func TestProbe(t *testing.T) {
	path := writeSilence(t, 2*testRate)

	var out bytes.Buffer
	err := probe(&out, path, options{decode: true, mode: "accurate"})
	require.NoError(t, err)

	got := out.String()
	assert.Contains(t, got, "codec      WAV")
	assert.Contains(t, got, "8 kHz, 2 ch, 2 bytes/sample")
	assert.Contains(t, got, "16,000 frames (2s)")
	assert.Contains(t, got, "tolerance  0 frames")
	assert.Contains(t, got, "decoded    16,000 frames")
}

func TestProbe_Seek(t *testing.T) {
	path := writeSilence(t, 2*testRate)

	var out bytes.Buffer
	require.NoError(t, probe(&out, path, options{seek: 500_000_000, mode: "accurate"}))
	assert.Contains(t, out.String(), "-> frame 4,000 (off by 0)")
}

func TestProbe_Errors(t *testing.T) {
	var out bytes.Buffer
	assert.Error(t, probe(&out, filepath.Join(t.TempDir(), "missing.wav"), options{mode: "accurate"}))

	text := filepath.Join(t.TempDir(), "notes.txt")
	require.NoError(t, os.WriteFile(text, []byte("not audio"), 0o644))
	assert.Error(t, probe(&out, text, options{mode: "accurate"}))

	assert.Error(t, probe(&out, writeSilence(t, 100), options{mode: "sloppy"}))
}

func TestCmd_ReportsFailures(t *testing.T) {
	var out bytes.Buffer
	cmd := newCmd(&out)
	cmd.SetArgs([]string{writeSilence(t, 100), filepath.Join(t.TempDir(), "missing.wav")})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Equal(t, "1 of 2 files failed", err.Error())
	assert.Contains(t, out.String(), "missing.wav:")
}
