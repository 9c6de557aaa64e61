package model

import (
	"errors"
	"fmt"
)

// AudioEditOptions are the user-supplied processing parameters for an audio edit.
// Durations and positions are in seconds.
type AudioEditOptions struct {
	Codec      string  `json:"codec"`   // mp3, aac, opus, flac, wav, copy
	Bitrate    int     `json:"bitrate"` // kbit/s, 0 means codec default
	Quality    int     `json:"quality"` // VBR quality, -1 means unset
	Channels   int     `json:"channels"`
	SampleRate int     `json:"sample_rate"`
	TrimStart  float64 `json:"trim_start"`
	TrimEnd    float64 `json:"trim_end"` // 0 means end of input

	FadeIn          bool    `json:"fade_in"`
	FadeInDuration  float64 `json:"fade_in_duration"`
	FadeOut         bool    `json:"fade_out"`
	FadeOutDuration float64 `json:"fade_out_duration"`

	CutMiddle      bool    `json:"cut_middle"`
	CutMiddleStart float64 `json:"cut_middle_start"`
	CutMiddleEnd   float64 `json:"cut_middle_end"`

	Crossfade         bool    `json:"crossfade"`
	CrossfadeDuration float64 `json:"crossfade_duration"`

	VolumePercent float64 `json:"volume_percent"` // 100 or 0 means unchanged
}

// ErrCopyWithFilters is returned when "copy" mode is combined with options
// that require re-encoding.
var ErrCopyWithFilters = errors.New("codec 'copy' cannot be combined with trim, fade, cut or volume options")

// HasTrim reports whether an ordinary trim range is set.
func (o *AudioEditOptions) HasTrim() bool {
	return o.TrimStart > 0 || o.TrimEnd > 0
}

// HasFade reports whether any fade is requested.
func (o *AudioEditOptions) HasFade() bool {
	return o.FadeIn || o.FadeOut
}

// RequiresReencode reports whether any requested option forces decoding the
// audio bitstream.
func (o *AudioEditOptions) RequiresReencode() bool {
	return o.HasTrim() || o.HasFade() || o.CutMiddle ||
		(o.VolumePercent != 0 && o.VolumePercent != 100) ||
		o.Channels > 0 || o.SampleRate > 0
}

// Validate checks the options for internal consistency before a filter graph
// is built from them.
func (o *AudioEditOptions) Validate() error {
	if o.Codec == "copy" && o.RequiresReencode() {
		return ErrCopyWithFilters
	}
	if o.CutMiddle {
		if o.CutMiddleStart <= 0 || o.CutMiddleEnd <= 0 {
			return errors.New("cut middle requires both a start and an end position")
		}
		if o.CutMiddleEnd <= o.CutMiddleStart {
			return fmt.Errorf("cut middle end (%.2fs) must be after start (%.2fs)", o.CutMiddleEnd, o.CutMiddleStart)
		}
	}
	if o.TrimEnd > 0 && o.TrimEnd <= o.TrimStart {
		return fmt.Errorf("trim end (%.2fs) must be after trim start (%.2fs)", o.TrimEnd, o.TrimStart)
	}
	if o.FadeIn && o.FadeInDuration <= 0 {
		return errors.New("fade in requires a positive duration")
	}
	if o.FadeOut && o.FadeOutDuration <= 0 {
		return errors.New("fade out requires a positive duration")
	}
	if o.Crossfade && o.CrossfadeDuration <= 0 {
		return errors.New("crossfade requires a positive duration")
	}
	if o.VolumePercent < 0 {
		return errors.New("volume percent cannot be negative")
	}
	return nil
}
