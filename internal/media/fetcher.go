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

// Progress receives task progress updates from the engine. Implementations
// are single-writer: only the background job owning a task calls this.
type Progress interface {
	Update(progress float64, status string, message string)
}

// copyContainers are video containers whose bitstream can be placed in an
// mp4 output without re-encoding.
var copyContainers = map[string]bool{
	"mp4": true,
	"m4v": true,
	"mov": true,
}

// Engine executes candidate strategies in order until one produces a file.
type Engine struct {
	cfg    *model.MediaConfig
	runner Runner
}

// NewEngine creates a new fetch-and-merge engine
func NewEngine(cfg *model.MediaConfig, runner Runner) *Engine {
	return &Engine{cfg: cfg, runner: runner}
}

// Run tries candidates strictly in resolver order and writes the output next
// to outStem on the first success. It returns the produced path and the
// number of candidates attempted; the error is non-nil only after every
// candidate has failed, and carries the last captured diagnostic.
func (e *Engine) Run(ctx context.Context, mediaURL string, kind DownloadKind, candidates []CandidateStrategy, workDir, outStem string, report Progress) (string, int, error) {
	if len(candidates) == 0 {
		return "", 0, ErrNoStreams
	}

	var lastErr error
	for i, cand := range candidates {
		report.Update(0, "downloading", fmt.Sprintf("Trying %s", cand.Description))

		outPath, err := e.attempt(ctx, mediaURL, kind, cand, workDir, outStem, report)
		if err == nil {
			report.Update(100, "processing", "Download complete")
			logger.Logger.Info("Candidate succeeded",
				zap.String("spec", cand.FormatSpec),
				zap.Int("attempt", i+1))
			return outPath, i + 1, nil
		}

		lastErr = err
		logger.Logger.Warn("Candidate failed, advancing to next",
			zap.String("spec", cand.FormatSpec),
			zap.Int("attempt", i+1),
			zap.Int("remaining", len(candidates)-i-1),
			zap.Error(err))
	}

	return "", len(candidates), fmt.Errorf("all %d candidates failed: %w", len(candidates), lastErr)
}

func (e *Engine) attempt(ctx context.Context, mediaURL string, kind DownloadKind, cand CandidateStrategy, workDir, outStem string, report Progress) (string, error) {
	tmpDir, err := os.MkdirTemp(workDir, "attempt-*")
	if err != nil {
		return "", fmt.Errorf("creating attempt dir: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	if cand.MergeNeeded {
		outPath := outStem + ".mp4"
		if err := e.fetchAndMerge(ctx, mediaURL, cand, tmpDir, outPath, report); err != nil {
			return "", err
		}
		return outPath, nil
	}
	return e.fetchSingle(ctx, mediaURL, kind, cand.FormatSpec, tmpDir, outStem, report)
}

// fetchAndMerge downloads the video and audio halves separately and muxes
// them into one mp4. Raw streams never outlive the attempt directory.
func (e *Engine) fetchAndMerge(ctx context.Context, mediaURL string, cand CandidateStrategy, tmpDir, outPath string, report Progress) error {
	videoPath, err := e.fetchStream(ctx, mediaURL, cand.VideoID, tmpDir, "video")
	if err != nil {
		return fmt.Errorf("video stream %s: %w", cand.VideoID, err)
	}
	report.Update(10, "downloading", "Video stream downloaded")

	audioPath, err := e.fetchStream(ctx, mediaURL, cand.AudioID, tmpDir, "audio")
	if err != nil {
		return fmt.Errorf("audio stream %s: %w", cand.AudioID, err)
	}
	report.Update(40, "downloading", "Audio stream downloaded")

	report.Update(70, "processing", "Merging streams")
	if err := e.mux(ctx, videoPath, audioPath, outPath); err != nil {
		os.Remove(outPath)
		return err
	}
	return nil
}

// fetchStream downloads one raw stream, preserving the source-reported
// extension via the extractor's output template.
func (e *Engine) fetchStream(ctx context.Context, mediaURL, formatID, tmpDir, stem string) (string, error) {
	template := filepath.Join(tmpDir, stem+".%(ext)s")
	timeout := time.Duration(e.cfg.FetchTimeout) * time.Second

	_, err := e.runner.Run(ctx, timeout, e.cfg.ExtractorBin,
		"-f", formatID,
		"-o", template,
		"--no-playlist",
		"--no-warnings",
		mediaURL)
	if err != nil {
		return "", err
	}

	matches, globErr := filepath.Glob(filepath.Join(tmpDir, stem+".*"))
	if globErr != nil || len(matches) == 0 {
		return "", fmt.Errorf("fetched stream not found in %s", tmpDir)
	}
	return matches[0], nil
}

// mux combines the raw streams. The video bitstream is copied when its
// container is already mp4-family, re-encoded otherwise; audio is always
// transcoded to AAC so it survives the container change.
func (e *Engine) mux(ctx context.Context, videoPath, audioPath, outPath string) error {
	args := []string{
		"-y",
		"-i", videoPath,
		"-i", audioPath,
	}

	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(videoPath)), ".")
	if copyContainers[ext] {
		args = append(args, "-c:v", "copy")
	} else {
		args = append(args, "-c:v", "libx264", "-preset", "fast", "-crf", "23")
	}

	args = append(args,
		"-c:a", "aac",
		"-b:a", "192k",
		"-movflags", "+faststart",
		outPath,
	)

	timeout := time.Duration(e.cfg.FetchTimeout) * time.Second
	if _, err := e.runner.Run(ctx, timeout, e.cfg.FFmpegBin, args...); err != nil {
		return fmt.Errorf("mux failed: %w", err)
	}
	return nil
}

// fetchSingle downloads one pre-muxed stream. Video downloads are normalized
// into an mp4 container; audio downloads keep the source extension for the
// post-processor to convert.
func (e *Engine) fetchSingle(ctx context.Context, mediaURL string, kind DownloadKind, formatSpec, tmpDir, outStem string, report Progress) (string, error) {
	template := filepath.Join(tmpDir, "media.%(ext)s")
	timeout := time.Duration(e.cfg.FetchTimeout) * time.Second

	_, err := e.runner.Run(ctx, timeout, e.cfg.ExtractorBin,
		"-f", formatSpec,
		"-o", template,
		"--no-playlist",
		"--no-warnings",
		mediaURL)
	if err != nil {
		return "", err
	}
	report.Update(40, "downloading", "Stream downloaded")

	matches, globErr := filepath.Glob(filepath.Join(tmpDir, "media.*"))
	if globErr != nil || len(matches) == 0 {
		return "", fmt.Errorf("fetched stream not found in %s", tmpDir)
	}
	fetched := matches[0]

	report.Update(70, "processing", "Finalizing container")

	if kind == KindAudio {
		outPath := outStem + filepath.Ext(fetched)
		if err := os.Rename(fetched, outPath); err != nil {
			return "", fmt.Errorf("moving output: %w", err)
		}
		return outPath, nil
	}

	outPath := outStem + ".mp4"
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(fetched)), ".")
	if copyContainers[ext] {
		if err := os.Rename(fetched, outPath); err != nil {
			return "", fmt.Errorf("moving output: %w", err)
		}
		return outPath, nil
	}

	args := []string{
		"-y", "-i", fetched,
		"-c:v", "libx264", "-preset", "fast", "-crf", "23",
		"-c:a", "aac", "-b:a", "192k",
		"-movflags", "+faststart",
		outPath,
	}
	if _, err := e.runner.Run(ctx, timeout, e.cfg.FFmpegBin, args...); err != nil {
		os.Remove(outPath)
		return "", fmt.Errorf("remux failed: %w", err)
	}
	return outPath, nil
}
