package media

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"dlvideo/internal/model"
	"dlvideo/pkg/logger"

	"go.uber.org/zap"
)

// incompatibleCodecs are video codecs with poor playback support that get
// re-encoded to H.264 after a successful download.
var incompatibleCodecs = map[string]bool{
	"av1":  true,
	"av01": true,
}

// Verifier probes a produced video file and re-encodes it in place when the
// codec is known to play badly. Failures here are non-fatal: the original
// file is still delivered.
type Verifier struct {
	cfg    *model.MediaConfig
	probe  *FileProbe
	runner Runner
}

// NewVerifier creates a new compatibility verifier
func NewVerifier(cfg *model.MediaConfig, probe *FileProbe, runner Runner) *Verifier {
	return &Verifier{cfg: cfg, probe: probe, runner: runner}
}

// EnsureCompatible checks the primary video codec of path and converts it to
// H.264 when needed. It returns whether a conversion happened and a non-fatal
// warning when the check or conversion could not complete.
func (v *Verifier) EnsureCompatible(ctx context.Context, path string) (bool, error) {
	codec, err := v.probe.VideoCodec(ctx, path)
	if err != nil {
		return false, fmt.Errorf("compatibility check skipped: %w", err)
	}

	if !incompatibleCodecs[strings.ToLower(codec)] {
		return false, nil
	}

	duration, err := v.probe.Duration(ctx, path)
	if err != nil {
		duration = 0
	}
	timeout := v.reencodeTimeout(duration)

	logger.Logger.Info("Re-encoding incompatible codec",
		zap.String("codec", codec),
		zap.String("path", path),
		zap.Duration("timeout", timeout))

	tmpPath := path + ".convert.mp4"
	_, err = v.runner.Run(ctx, timeout, v.cfg.FFmpegBin,
		"-y",
		"-i", path,
		"-c:v", "libx264", "-preset", "fast", "-crf", "23",
		"-c:a", "copy",
		"-movflags", "+faststart",
		tmpPath)
	if err != nil {
		os.Remove(tmpPath)
		return false, fmt.Errorf("re-encode of %s failed, delivering original: %w", codec, err)
	}

	// Same-directory rename keeps the swap atomic; on failure the original
	// stays in place untouched.
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return false, fmt.Errorf("replacing converted file failed: %w", err)
	}
	return true, nil
}

// reencodeTimeout scales linearly with the probed duration, clamped between
// the configured minimum and maximum bounds.
func (v *Verifier) reencodeTimeout(durationSec float64) time.Duration {
	scaled := int(durationSec * float64(v.cfg.ReencodeScale))
	if scaled < v.cfg.ReencodeMinSec {
		scaled = v.cfg.ReencodeMinSec
	}
	if scaled > v.cfg.ReencodeMaxSec {
		scaled = v.cfg.ReencodeMaxSec
	}
	return time.Duration(scaled) * time.Second
}
