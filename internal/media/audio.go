package media

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"dlvideo/internal/model"
	"dlvideo/pkg/logger"

	"go.uber.org/zap"
)

// codecSpec maps a logical codec name to its encoder and rate defaults.
// Lossless targets carry no bitrate or quality flags at all.
type codecSpec struct {
	encoder        string
	defaultBitrate int // kbit/s
	ext            string
	lossless       bool
}

var audioCodecs = map[string]codecSpec{
	"mp3":  {encoder: "libmp3lame", defaultBitrate: 192, ext: "mp3"},
	"aac":  {encoder: "aac", defaultBitrate: 192, ext: "m4a"},
	"m4a":  {encoder: "aac", defaultBitrate: 192, ext: "m4a"},
	"opus": {encoder: "libopus", defaultBitrate: 128, ext: "opus"},
	"ogg":  {encoder: "libvorbis", defaultBitrate: 160, ext: "ogg"},
	"flac": {encoder: "flac", ext: "flac", lossless: true},
	"wav":  {encoder: "pcm_s16le", ext: "wav", lossless: true},
}

// OutputExt returns the container extension for a logical codec name.
func OutputExt(codec string) string {
	if spec, ok := audioCodecs[strings.ToLower(codec)]; ok {
		return spec.ext
	}
	return "mp3"
}

// OutputExtFor resolves the output container for an edit of srcPath. Copy
// mode keeps the source container, since the bitstream passes through
// unchanged and would not survive a container swap.
func OutputExtFor(codec, srcPath string) string {
	if strings.EqualFold(codec, "copy") {
		if ext := strings.TrimPrefix(filepath.Ext(srcPath), "."); ext != "" {
			return ext
		}
	}
	return OutputExt(codec)
}

// Processor applies trim, fade, cut and codec conversion to audio files.
type Processor struct {
	cfg    *model.MediaConfig
	probe  *FileProbe
	runner Runner
}

// NewProcessor creates a new audio processor
func NewProcessor(cfg *model.MediaConfig, probe *FileProbe, runner Runner) *Processor {
	return &Processor{cfg: cfg, probe: probe, runner: runner}
}

// Process runs the edit described by opts against inPath and writes outPath.
// Video inputs have their audio extracted first (-vn drops the video stream).
func (p *Processor) Process(ctx context.Context, inPath, outPath string, opts *model.AudioEditOptions) error {
	if err := opts.Validate(); err != nil {
		return err
	}

	duration, err := p.probe.Duration(ctx, inPath)
	if err != nil {
		logger.Logger.Warn("Duration probe failed, fades will cover the whole clip", zap.Error(err))
		duration = 0
	}

	args := BuildAudioArgs(inPath, outPath, opts, duration)

	logger.Logger.Info("Processing audio",
		zap.String("input", inPath),
		zap.String("output", outPath),
		zap.String("codec", opts.Codec),
		zap.Float64("duration", duration))

	timeout := time.Duration(p.cfg.AudioTimeout) * time.Second
	if _, err := p.runner.Run(ctx, timeout, p.cfg.FFmpegBin, args...); err != nil {
		os.Remove(outPath)
		return fmt.Errorf("audio processing failed: %w", err)
	}
	return nil
}

// BuildAudioArgs assembles the full transcoder argument list for an edit.
// Exported so the graph construction is testable without a transcoder binary.
func BuildAudioArgs(inPath, outPath string, opts *model.AudioEditOptions, totalDur float64) []string {
	args := []string{"-y"}

	if opts.Codec == "copy" {
		// Validation guarantees no filters are combined with copy mode.
		return append(args, "-i", inPath, "-vn", "-c:a", "copy", outPath)
	}

	useSeek := opts.HasTrim() && !opts.HasFade() && !opts.CutMiddle
	if useSeek {
		// Container-level seek is cheaper than a filter trim and is safe when
		// no fade needs a zero-based timeline.
		if opts.TrimStart > 0 {
			args = append(args, "-ss", formatSeconds(opts.TrimStart))
		}
		if opts.TrimEnd > 0 {
			args = append(args, "-to", formatSeconds(opts.TrimEnd))
		}
	}

	args = append(args, "-i", inPath, "-vn")

	if opts.CutMiddle {
		graph, outLabel := buildCutMiddleGraph(opts, totalDur)
		args = append(args, "-filter_complex", graph, "-map", outLabel)
	} else if chain := buildFilterChain(opts, totalDur); chain != "" {
		args = append(args, "-af", chain)
	}

	args = append(args, codecArgs(opts)...)
	return append(args, outPath)
}

// buildFilterChain handles the non-cut path: filter-graph trim when a fade
// needs a zero-based timeline, then fades, then volume.
func buildFilterChain(opts *model.AudioEditOptions, totalDur float64) string {
	var filters []string

	if opts.HasTrim() && opts.HasFade() {
		// Fade positions are relative to the trimmed duration, so the trim
		// must happen in the graph and timestamps must restart at zero.
		trim := "atrim=start=" + formatSeconds(opts.TrimStart)
		if opts.TrimEnd > 0 {
			trim += ":end=" + formatSeconds(opts.TrimEnd)
		}
		filters = append(filters, trim, "asetpts=PTS-STARTPTS")
	}

	if opts.FadeIn {
		filters = append(filters, fmt.Sprintf("afade=t=in:st=0:d=%s", formatSeconds(opts.FadeInDuration)))
	}
	if opts.FadeOut {
		eff := EffectiveDuration(opts, totalDur)
		st := FadeOutStart(eff, opts.FadeOutDuration)
		filters = append(filters, fmt.Sprintf("afade=t=out:st=%s:d=%s",
			formatSeconds(st), formatSeconds(opts.FadeOutDuration)))
	}

	if v := volumeFilter(opts); v != "" {
		filters = append(filters, v)
	}

	return strings.Join(filters, ",")
}

// buildCutMiddleGraph splits the input into a head and a tail segment around
// the cut range and rejoins them. With crossfade enabled the head fades out
// and the tail fades in across the join, so the output duration stays equal
// to the input minus the cut range.
func buildCutMiddleGraph(opts *model.AudioEditOptions, totalDur float64) (graph string, outLabel string) {
	head := fmt.Sprintf("[0:a]atrim=start=0:end=%s,asetpts=PTS-STARTPTS", formatSeconds(opts.CutMiddleStart))
	tail := fmt.Sprintf("[0:a]atrim=start=%s,asetpts=PTS-STARTPTS", formatSeconds(opts.CutMiddleEnd))

	if opts.Crossfade {
		fadeStart := FadeOutStart(opts.CutMiddleStart, opts.CrossfadeDuration)
		head += fmt.Sprintf(",afade=t=out:st=%s:d=%s",
			formatSeconds(fadeStart), formatSeconds(opts.CrossfadeDuration))
		tail += fmt.Sprintf(",afade=t=in:st=0:d=%s", formatSeconds(opts.CrossfadeDuration))
	}

	graph = head + "[head];" + tail + "[tail];[head][tail]concat=n=2:v=0:a=1[joined]"
	outLabel = "[joined]"

	if v := volumeFilter(opts); v != "" {
		graph += ";[joined]" + v + "[out]"
		outLabel = "[out]"
	}
	return graph, outLabel
}

// EffectiveDuration is the post-edit duration fade positions are computed
// against. Returns 0 when the input duration is unknown.
func EffectiveDuration(opts *model.AudioEditOptions, totalDur float64) float64 {
	if totalDur <= 0 {
		return 0
	}
	if opts.CutMiddle {
		return totalDur - (opts.CutMiddleEnd - opts.CutMiddleStart)
	}
	end := totalDur
	if opts.TrimEnd > 0 && opts.TrimEnd < totalDur {
		end = opts.TrimEnd
	}
	eff := end - opts.TrimStart
	if eff < 0 {
		return 0
	}
	return eff
}

// FadeOutStart places a fade-out so it ends exactly at the effective
// duration. When the clip is shorter than the fade, or its length is
// unknown, the whole remaining audio is faded instead.
func FadeOutStart(effectiveDur, fadeDur float64) float64 {
	start := effectiveDur - fadeDur
	if start < 0 {
		return 0
	}
	return start
}

// CutMiddleOutputDuration is the expected length of a cut-middle edit.
func CutMiddleOutputDuration(totalDur, cutStart, cutEnd float64) float64 {
	return totalDur - (cutEnd - cutStart)
}

func volumeFilter(opts *model.AudioEditOptions) string {
	if opts.VolumePercent == 0 || opts.VolumePercent == 100 {
		return ""
	}
	return fmt.Sprintf("volume=%s", formatSeconds(opts.VolumePercent/100))
}

// codecArgs maps the logical codec to encoder flags. User bitrate or quality
// overrides the default; lossless targets skip rate flags entirely.
func codecArgs(opts *model.AudioEditOptions) []string {
	spec, ok := audioCodecs[strings.ToLower(opts.Codec)]
	if !ok {
		spec = audioCodecs["mp3"]
	}

	args := []string{"-c:a", spec.encoder}
	if !spec.lossless {
		if opts.Quality > 0 && spec.encoder == "libmp3lame" {
			args = append(args, "-q:a", fmt.Sprintf("%d", opts.Quality))
		} else {
			bitrate := spec.defaultBitrate
			if opts.Bitrate > 0 {
				bitrate = opts.Bitrate
			}
			args = append(args, "-b:a", fmt.Sprintf("%dk", bitrate))
		}
	}
	if opts.Channels > 0 {
		args = append(args, "-ac", fmt.Sprintf("%d", opts.Channels))
	}
	if opts.SampleRate > 0 {
		args = append(args, "-ar", fmt.Sprintf("%d", opts.SampleRate))
	}
	return args
}

// formatSeconds trims trailing zeros so filter strings stay readable.
func formatSeconds(v float64) string {
	s := fmt.Sprintf("%.3f", v)
	s = strings.TrimRight(s, "0")
	return strings.TrimRight(s, ".")
}
