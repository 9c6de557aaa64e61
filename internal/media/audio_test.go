package media

import (
	"strings"
	"testing"

	"dlvideo/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFadeOutStart(t *testing.T) {
	tests := []struct {
		name    string
		effDur  float64
		fadeDur float64
		want    float64
	}{
		{"fade fits inside clip", 30, 3, 27},
		{"fade longer than clip covers it whole", 2, 3, 0},
		{"unknown duration covers whole clip", 0, 5, 0},
		{"fade exactly clip length", 3, 3, 0},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, FadeOutStart(tc.effDur, tc.fadeDur))
		})
	}
}

func TestEffectiveDuration(t *testing.T) {
	trimmed := &model.AudioEditOptions{TrimStart: 10, TrimEnd: 40}
	assert.Equal(t, 30.0, EffectiveDuration(trimmed, 60))

	openEnd := &model.AudioEditOptions{TrimStart: 10}
	assert.Equal(t, 50.0, EffectiveDuration(openEnd, 60))

	cut := &model.AudioEditOptions{CutMiddle: true, CutMiddleStart: 20, CutMiddleEnd: 40}
	assert.Equal(t, 40.0, EffectiveDuration(cut, 60))

	unknown := &model.AudioEditOptions{TrimStart: 10}
	assert.Equal(t, 0.0, EffectiveDuration(unknown, 0))
}

func TestCutMiddleOutputDuration(t *testing.T) {
	// Cutting [20,40] out of 60s must leave exactly 40s regardless of
	// crossfade settings.
	assert.Equal(t, 40.0, CutMiddleOutputDuration(60, 20, 40))
}

func TestBuildAudioArgsCopyMode(t *testing.T) {
	opts := &model.AudioEditOptions{Codec: "copy"}
	args := BuildAudioArgs("in.m4a", "out.m4a", opts, 0)

	assert.Equal(t, []string{"-y", "-i", "in.m4a", "-vn", "-c:a", "copy", "out.m4a"}, args)
}

func TestBuildAudioArgsSeekTrimWithoutFade(t *testing.T) {
	opts := &model.AudioEditOptions{Codec: "mp3", TrimStart: 5, TrimEnd: 25}
	args := BuildAudioArgs("in.wav", "out.mp3", opts, 60)
	joined := strings.Join(args, " ")

	// Trim without a fade uses container-level seeking, not the filter graph.
	assert.Contains(t, joined, "-ss 5")
	assert.Contains(t, joined, "-to 25")
	assert.NotContains(t, joined, "-af")
	assert.NotContains(t, joined, "atrim")
}

func TestBuildAudioArgsTrimWithFadeUsesFilterGraph(t *testing.T) {
	opts := &model.AudioEditOptions{
		Codec:           "mp3",
		TrimStart:       10,
		TrimEnd:         40,
		FadeOut:         true,
		FadeOutDuration: 3,
	}
	args := BuildAudioArgs("in.wav", "out.mp3", opts, 60)
	joined := strings.Join(args, " ")

	assert.NotContains(t, joined, "-ss")
	require.Contains(t, joined, "-af")
	// The trimmed clip is 30s, so the fade-out starts at 27s of the
	// zero-based timeline.
	assert.Contains(t, joined, "atrim=start=10:end=40")
	assert.Contains(t, joined, "asetpts=PTS-STARTPTS")
	assert.Contains(t, joined, "afade=t=out:st=27:d=3")
}

func TestBuildAudioArgsFadeLongerThanClip(t *testing.T) {
	opts := &model.AudioEditOptions{Codec: "mp3", FadeOut: true, FadeOutDuration: 3}
	args := BuildAudioArgs("in.wav", "out.mp3", opts, 2)
	joined := strings.Join(args, " ")

	// A 3s fade on a 2s clip fades the whole clip from zero.
	assert.Contains(t, joined, "afade=t=out:st=0:d=3")
}

func TestBuildCutMiddleGraph(t *testing.T) {
	opts := &model.AudioEditOptions{
		Codec:          "mp3",
		CutMiddle:      true,
		CutMiddleStart: 20,
		CutMiddleEnd:   40,
	}
	graph, outLabel := buildCutMiddleGraph(opts, 60)

	assert.Equal(t, "[joined]", outLabel)
	assert.Contains(t, graph, "atrim=start=0:end=20")
	assert.Contains(t, graph, "atrim=start=40")
	assert.Contains(t, graph, "concat=n=2:v=0:a=1[joined]")
	assert.NotContains(t, graph, "afade")
}

func TestBuildCutMiddleGraphWithCrossfade(t *testing.T) {
	opts := &model.AudioEditOptions{
		Codec:             "mp3",
		CutMiddle:         true,
		CutMiddleStart:    20,
		CutMiddleEnd:      40,
		Crossfade:         true,
		CrossfadeDuration: 2,
	}
	graph, _ := buildCutMiddleGraph(opts, 60)

	// The head fades out into the join and the tail fades in from it; the
	// output stays exactly input minus the cut range.
	assert.Contains(t, graph, "afade=t=out:st=18:d=2")
	assert.Contains(t, graph, "afade=t=in:st=0:d=2")
	assert.Contains(t, graph, "concat=n=2:v=0:a=1")
}

func TestBuildCutMiddleGraphWithVolume(t *testing.T) {
	opts := &model.AudioEditOptions{
		Codec:          "mp3",
		CutMiddle:      true,
		CutMiddleStart: 10,
		CutMiddleEnd:   20,
		VolumePercent:  50,
	}
	graph, outLabel := buildCutMiddleGraph(opts, 60)

	assert.Equal(t, "[out]", outLabel)
	assert.Contains(t, graph, "[joined]volume=0.5[out]")
}

func TestCodecArgs(t *testing.T) {
	tests := []struct {
		name string
		opts model.AudioEditOptions
		want []string
	}{
		{"mp3 default bitrate", model.AudioEditOptions{Codec: "mp3"}, []string{"-c:a", "libmp3lame", "-b:a", "192k"}},
		{"mp3 vbr quality", model.AudioEditOptions{Codec: "mp3", Quality: 2}, []string{"-c:a", "libmp3lame", "-q:a", "2"}},
		{"aac custom bitrate", model.AudioEditOptions{Codec: "aac", Bitrate: 256}, []string{"-c:a", "aac", "-b:a", "256k"}},
		{"opus default", model.AudioEditOptions{Codec: "opus"}, []string{"-c:a", "libopus", "-b:a", "128k"}},
		{"flac lossless skips rate flags", model.AudioEditOptions{Codec: "flac"}, []string{"-c:a", "flac"}},
		{"wav lossless", model.AudioEditOptions{Codec: "wav"}, []string{"-c:a", "pcm_s16le"}},
		{"unknown falls back to mp3", model.AudioEditOptions{Codec: "xyz"}, []string{"-c:a", "libmp3lame", "-b:a", "192k"}},
		{"channels and sample rate", model.AudioEditOptions{Codec: "flac", Channels: 2, SampleRate: 48000}, []string{"-c:a", "flac", "-ac", "2", "-ar", "48000"}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, codecArgs(&tc.opts))
		})
	}
}

func TestOutputExt(t *testing.T) {
	assert.Equal(t, "mp3", OutputExt("mp3"))
	assert.Equal(t, "m4a", OutputExt("aac"))
	assert.Equal(t, "opus", OutputExt("OPUS"))
	assert.Equal(t, "mp3", OutputExt("unknown"))
}

func TestOutputExtForCopyKeepsSourceContainer(t *testing.T) {
	assert.Equal(t, "m4a", OutputExtFor("copy", "/tmp/in.m4a"))
	assert.Equal(t, "opus", OutputExtFor("copy", "/tmp/in.opus"))
	assert.Equal(t, "webm", OutputExtFor("COPY", "/tmp/in.webm"))
	// No source extension leaves nothing to preserve.
	assert.Equal(t, "mp3", OutputExtFor("copy", "/tmp/in"))
	// Transcodes ignore the source container entirely.
	assert.Equal(t, "m4a", OutputExtFor("aac", "/tmp/in.webm"))
	assert.Equal(t, "mp3", OutputExtFor("mp3", "/tmp/in.opus"))
}

func TestFormatSeconds(t *testing.T) {
	assert.Equal(t, "5", formatSeconds(5))
	assert.Equal(t, "2.5", formatSeconds(2.5))
	assert.Equal(t, "0.125", formatSeconds(0.125))
}

func TestValidateCopyWithFilters(t *testing.T) {
	opts := &model.AudioEditOptions{Codec: "copy", FadeIn: true, FadeInDuration: 2}
	assert.ErrorIs(t, opts.Validate(), model.ErrCopyWithFilters)

	trim := &model.AudioEditOptions{Codec: "copy", TrimStart: 5}
	assert.ErrorIs(t, trim.Validate(), model.ErrCopyWithFilters)

	plain := &model.AudioEditOptions{Codec: "copy"}
	assert.NoError(t, plain.Validate())
}

func TestValidateCutMiddleBounds(t *testing.T) {
	missingEnd := &model.AudioEditOptions{Codec: "mp3", CutMiddle: true, CutMiddleStart: 10}
	assert.Error(t, missingEnd.Validate())

	inverted := &model.AudioEditOptions{Codec: "mp3", CutMiddle: true, CutMiddleStart: 40, CutMiddleEnd: 20}
	assert.Error(t, inverted.Validate())

	valid := &model.AudioEditOptions{Codec: "mp3", CutMiddle: true, CutMiddleStart: 20, CutMiddleEnd: 40}
	assert.NoError(t, valid.Validate())
}
