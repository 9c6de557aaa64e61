package media

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"dlvideo/internal/model"
	"dlvideo/pkg/logger"

	"go.uber.org/zap"
)

// Prober resolves a media URL into the list of stream descriptors the source
// exposes. The extractor binary is treated as a black box: JSON in, JSON out.
type Prober struct {
	cfg    *model.MediaConfig
	runner Runner
}

// NewProber creates a new prober
func NewProber(cfg *model.MediaConfig, runner Runner) *Prober {
	return &Prober{cfg: cfg, runner: runner}
}

// extractorDocument is the subset of the extractor's JSON dump we consume.
type extractorDocument struct {
	Title        string              `json:"title"`
	Thumbnail    string              `json:"thumbnail"`
	Duration     float64             `json:"duration"`
	ExtractorKey string              `json:"extractor_key"`
	Formats      []extractorFormat   `json:"formats"`
}

type extractorFormat struct {
	FormatID string   `json:"format_id"`
	Ext      string   `json:"ext"`
	Vcodec   string   `json:"vcodec"`
	Acodec   string   `json:"acodec"`
	Height   *float64 `json:"height"`
	Width    *float64 `json:"width"`
	Fps      *float64 `json:"fps"`
	Tbr      *float64 `json:"tbr"`
	Filesize *float64 `json:"filesize"`
}

// Probe runs the extractor against the URL and maps its format list.
func (p *Prober) Probe(ctx context.Context, mediaURL string) ([]model.StreamDescriptor, *model.SourceInfo, error) {
	timeout := time.Duration(p.cfg.ProbeTimeout) * time.Second

	out, err := p.runner.Run(ctx, timeout, p.cfg.ExtractorBin,
		"-J", "--no-warnings", "--no-playlist", mediaURL)
	if err != nil {
		return nil, nil, fmt.Errorf("probe failed: %w", err)
	}

	var doc extractorDocument
	if err := json.Unmarshal(out, &doc); err != nil {
		return nil, nil, fmt.Errorf("probe returned unparseable metadata: %w", err)
	}

	descs := make([]model.StreamDescriptor, 0, len(doc.Formats))
	for _, f := range doc.Formats {
		if f.FormatID == "" || f.Ext == "" {
			continue
		}
		d := model.StreamDescriptor{
			ID:         f.FormatID,
			Container:  f.Ext,
			VideoCodec: normalizeCodec(f.Vcodec),
			AudioCodec: normalizeCodec(f.Acodec),
		}
		if f.Height != nil {
			d.Height = int(*f.Height)
		}
		if f.Width != nil {
			d.Width = int(*f.Width)
		}
		if f.Fps != nil {
			d.Fps = *f.Fps
		}
		if f.Tbr != nil {
			d.Bitrate = *f.Tbr
		}
		if f.Filesize != nil {
			d.Filesize = int64(*f.Filesize)
		}
		descs = append(descs, d)
	}

	info := &model.SourceInfo{
		Title:     doc.Title,
		Thumbnail: doc.Thumbnail,
		Duration:  doc.Duration,
		Source:    doc.ExtractorKey,
	}
	if info.Title == "" {
		info.Title = "Unknown"
	}
	if info.Source == "" {
		info.Source = "Unknown"
	}

	logger.Logger.Info("Probe completed",
		zap.String("title", info.Title),
		zap.String("source", info.Source),
		zap.Int("streams", len(descs)))

	return descs, info, nil
}

func normalizeCodec(codec string) string {
	if codec == "" {
		return "none"
	}
	return codec
}

// FileProbe inspects local media files through ffprobe.
type FileProbe struct {
	cfg    *model.MediaConfig
	runner Runner
}

// NewFileProbe creates a new file probe
func NewFileProbe(cfg *model.MediaConfig, runner Runner) *FileProbe {
	return &FileProbe{cfg: cfg, runner: runner}
}

// VideoCodec returns the codec name of the primary video stream.
func (fp *FileProbe) VideoCodec(ctx context.Context, path string) (string, error) {
	out, err := fp.runner.Run(ctx, 30*time.Second, fp.cfg.FFprobeBin,
		"-v", "error",
		"-select_streams", "v:0",
		"-show_entries", "stream=codec_name",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path)
	if err != nil {
		return "", fmt.Errorf("codec probe failed: %w", err)
	}
	return strings.TrimSpace(string(out)), nil
}

// Duration returns the container duration in seconds, or 0 when unknown.
func (fp *FileProbe) Duration(ctx context.Context, path string) (float64, error) {
	out, err := fp.runner.Run(ctx, 30*time.Second, fp.cfg.FFprobeBin,
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path)
	if err != nil {
		return 0, fmt.Errorf("duration probe failed: %w", err)
	}
	dur, err := strconv.ParseFloat(strings.TrimSpace(string(out)), 64)
	if err != nil {
		return 0, nil
	}
	return dur, nil
}
