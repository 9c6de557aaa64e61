package media

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"dlvideo/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// verifyRunner answers codec and duration probes and simulates the transcoder.
type verifyRunner struct {
	codec      string
	duration   string
	failFfmpeg bool
	ffmpegRuns int
}

func (v *verifyRunner) Run(_ context.Context, _ time.Duration, bin string, args ...string) ([]byte, error) {
	if strings.Contains(bin, "ffprobe") {
		for _, a := range args {
			if a == "stream=codec_name" {
				return []byte(v.codec + "\n"), nil
			}
		}
		return []byte(v.duration + "\n"), nil
	}

	v.ffmpegRuns++
	if v.failFfmpeg {
		return nil, errors.New("encoder crashed")
	}
	out := args[len(args)-1]
	return nil, os.WriteFile(out, []byte("h264"), 0644)
}

func testVerifier(runner Runner) *Verifier {
	cfg := &model.MediaConfig{
		FFmpegBin:      "ffmpeg",
		FFprobeBin:     "ffprobe",
		ReencodeScale:  3,
		ReencodeMinSec: 60,
		ReencodeMaxSec: 600,
	}
	return NewVerifier(cfg, NewFileProbe(cfg, runner), runner)
}

func writeTestVideo(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "video.mp4")
	require.NoError(t, os.WriteFile(path, []byte("av1 payload"), 0644))
	return path
}

func TestEnsureCompatibleLeavesGoodCodecAlone(t *testing.T) {
	runner := &verifyRunner{codec: "h264", duration: "100"}
	verifier := testVerifier(runner)
	path := writeTestVideo(t)

	converted, warn := verifier.EnsureCompatible(context.Background(), path)
	assert.False(t, converted)
	assert.NoError(t, warn)
	assert.Zero(t, runner.ffmpegRuns)
}

func TestEnsureCompatibleConvertsAv1(t *testing.T) {
	runner := &verifyRunner{codec: "av1", duration: "100"}
	verifier := testVerifier(runner)
	path := writeTestVideo(t)

	converted, warn := verifier.EnsureCompatible(context.Background(), path)
	assert.True(t, converted)
	assert.NoError(t, warn)
	assert.Equal(t, 1, runner.ffmpegRuns)

	// The converted file replaced the original in place.
	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "h264", string(raw))
	assert.NoFileExists(t, path+".convert.mp4")
}

func TestEnsureCompatibleFailureIsNonFatal(t *testing.T) {
	runner := &verifyRunner{codec: "av01", duration: "100", failFfmpeg: true}
	verifier := testVerifier(runner)
	path := writeTestVideo(t)

	converted, warn := verifier.EnsureCompatible(context.Background(), path)
	assert.False(t, converted)
	require.Error(t, warn)
	assert.Contains(t, warn.Error(), "delivering original")

	// The original file survives the failed attempt.
	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "av1 payload", string(raw))
}

func TestReencodeTimeoutClamps(t *testing.T) {
	verifier := testVerifier(&verifyRunner{})

	tests := []struct {
		name     string
		duration float64
		want     time.Duration
	}{
		{"short clip hits the floor", 10, 60 * time.Second},
		{"long clip hits the ceiling", 10000, 600 * time.Second},
		{"mid-range scales linearly", 100, 300 * time.Second},
		{"unknown duration uses the floor", 0, 60 * time.Second},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, verifier.reencodeTimeout(tc.duration))
		})
	}
}

func TestReencodeTimeoutHonorsConfiguredScale(t *testing.T) {
	cfg := &model.MediaConfig{
		FFmpegBin:      "ffmpeg",
		FFprobeBin:     "ffprobe",
		ReencodeScale:  5,
		ReencodeMinSec: 60,
		ReencodeMaxSec: 600,
	}
	runner := &verifyRunner{}
	verifier := NewVerifier(cfg, NewFileProbe(cfg, runner), runner)

	assert.Equal(t, 150*time.Second, verifier.reencodeTimeout(30))
}
