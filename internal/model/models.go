package model

import "fmt"

// StreamDescriptor is one encoding option exposed by the source for a URL.
// Produced fresh per probe call, never persisted.
type StreamDescriptor struct {
	ID         string  `json:"format_id"`
	Container  string  `json:"ext"`
	VideoCodec string  `json:"vcodec"` // "none" for audio-only streams
	AudioCodec string  `json:"acodec"` // "none" for video-only streams
	Height     int     `json:"height,omitempty"`
	Width      int     `json:"width,omitempty"`
	Fps        float64 `json:"fps,omitempty"`
	Bitrate    float64 `json:"tbr,omitempty"` // kbit/s as reported by the extractor
	Filesize   int64   `json:"filesize,omitempty"`
}

// HasVideo reports whether the stream carries a video bitstream.
func (d StreamDescriptor) HasVideo() bool {
	return d.VideoCodec != "" && d.VideoCodec != "none"
}

// HasAudio reports whether the stream carries an audio bitstream.
func (d StreamDescriptor) HasAudio() bool {
	return d.AudioCodec != "" && d.AudioCodec != "none"
}

// SourceInfo is the probed metadata for a media URL.
type SourceInfo struct {
	Title     string  `json:"title"`
	Thumbnail string  `json:"thumbnail,omitempty"`
	Duration  float64 `json:"duration,omitempty"`
	Source    string  `json:"source"`
}

// FormatSummary is the user-facing view of one downloadable format.
type FormatSummary struct {
	FormatID   string `json:"format_id"`
	Quality    string `json:"quality"`
	Resolution string `json:"resolution,omitempty"`
	Fps        int    `json:"fps,omitempty"`
	Filesize   string `json:"filesize"`
	Ext        string `json:"ext"`
	VideoCodec string `json:"vcodec,omitempty"`
	AudioCodec string `json:"acodec,omitempty"`
	HasAudio   bool   `json:"has_audio"`
}

// AnalyzeRequest asks for the available formats of a media URL.
type AnalyzeRequest struct {
	URL string `json:"url" binding:"required"`
}

// AnalyzeResponse is the probed source metadata plus its format list.
type AnalyzeResponse struct {
	Title     string          `json:"title"`
	Thumbnail string          `json:"thumbnail,omitempty"`
	Duration  int             `json:"duration,omitempty"`
	Source    string          `json:"source"`
	Formats   []FormatSummary `json:"formats"`
}

// DownloadRequest starts a background download task.
type DownloadRequest struct {
	URL          string            `json:"url" binding:"required"`
	FormatID     string            `json:"format_id" binding:"required"`
	DownloadType string            `json:"download_type"` // "video" (default) or "audio"
	AudioOptions *AudioEditOptions `json:"audio_options,omitempty"`
}

// DownloadAccepted is returned immediately when a task is queued.
type DownloadAccepted struct {
	TaskID string `json:"task_id"`
	Status string `json:"status"`
}

// TaskStatusResponse is what the status polling endpoints return.
type TaskStatusResponse struct {
	Ready       bool    `json:"ready"`
	Progress    float64 `json:"progress"`
	Status      string  `json:"status"`
	Message     string  `json:"message,omitempty"`
	DownloadURL string  `json:"download_url,omitempty"`
}

// ProcessAudioRequest starts a background edit of an uploaded file.
type ProcessAudioRequest struct {
	AudioID string           `json:"audio_id" binding:"required"`
	Options AudioEditOptions `json:"options"`
}

// UploadAccepted identifies an uploaded file for later processing.
type UploadAccepted struct {
	AudioID  string `json:"audio_id"`
	Filename string `json:"filename"`
}

// ErrorResponse represents an API error
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Code    int    `json:"code"`
}

// FormatFilesize renders a byte count the way the format picker displays it.
func FormatFilesize(size int64) string {
	if size <= 0 {
		return "Unknown"
	}
	units := []string{"B", "KB", "MB", "GB"}
	v := float64(size)
	for _, unit := range units {
		if v < 1024.0 {
			return fmt.Sprintf("%.1f %s", v, unit)
		}
		v /= 1024.0
	}
	return fmt.Sprintf("%.1f TB", v)
}
