package service

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"dlvideo/internal/media"
	"dlvideo/internal/model"
	"dlvideo/internal/storage"
	"dlvideo/internal/task"
	"dlvideo/pkg/logger"
	"dlvideo/pkg/validator"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const maxFilenameLen = 120

// DownloadService turns a download request into a background task: probe,
// resolve, fetch, then verify or post-process depending on the kind.
type DownloadService struct {
	cfg      *model.Config
	prober   *media.Prober
	engine   *media.Engine
	verifier *media.Verifier
	audio    *media.Processor
	registry *task.Registry
	pool     *task.Pool
	storage  *storage.Manager
	quota    *QuotaService
}

// NewDownloadService creates a new download service
func NewDownloadService(
	cfg *model.Config,
	prober *media.Prober,
	engine *media.Engine,
	verifier *media.Verifier,
	audio *media.Processor,
	registry *task.Registry,
	pool *task.Pool,
	sm *storage.Manager,
	quota *QuotaService,
) *DownloadService {
	return &DownloadService{
		cfg:      cfg,
		prober:   prober,
		engine:   engine,
		verifier: verifier,
		audio:    audio,
		registry: registry,
		pool:     pool,
		storage:  sm,
		quota:    quota,
	}
}

// Analyze probes a URL and builds the user-facing format list.
func (s *DownloadService) Analyze(ctx context.Context, mediaURL string) (*model.AnalyzeResponse, error) {
	var descs []model.StreamDescriptor
	var info *model.SourceInfo

	err := s.pool.Do(ctx, func(ctx context.Context) error {
		var probeErr error
		descs, info, probeErr = s.prober.Probe(ctx, mediaURL)
		return probeErr
	})
	if err != nil {
		return nil, err
	}

	return &model.AnalyzeResponse{
		Title:     info.Title,
		Thumbnail: info.Thumbnail,
		Duration:  int(info.Duration),
		Source:    info.Source,
		Formats:   summarizeFormats(descs),
	}, nil
}

// summarizeFormats keeps one entry per quality label, best first, capped at
// ten entries the way the format picker displays them.
func summarizeFormats(descs []model.StreamDescriptor) []model.FormatSummary {
	seen := make(map[string]bool)
	summaries := []model.FormatSummary{}

	sorted := make([]model.StreamDescriptor, len(descs))
	copy(sorted, descs)
	media.RankForDisplay(sorted)

	for _, d := range sorted {
		if !d.HasVideo() || d.Height == 0 {
			continue
		}

		quality := fmt.Sprintf("%dp", d.Height)
		if d.Fps > 30 {
			quality += fmt.Sprintf(" %dfps", int(d.Fps))
		}
		if seen[quality] {
			continue
		}
		seen[quality] = true

		summaries = append(summaries, model.FormatSummary{
			FormatID:   d.ID,
			Quality:    quality,
			Resolution: fmt.Sprintf("%dx%d", d.Width, d.Height),
			Fps:        int(d.Fps),
			Filesize:   model.FormatFilesize(d.Filesize),
			Ext:        d.Container,
			VideoCodec: d.VideoCodec,
			AudioCodec: d.AudioCodec,
			HasAudio:   d.HasAudio(),
		})
		if len(summaries) == 10 {
			break
		}
	}
	return summaries
}

// Start queues a download task and returns its id immediately.
func (s *DownloadService) Start(req *model.DownloadRequest, username string) string {
	taskID := uuid.NewString()
	kind := media.KindVideo
	if req.DownloadType == string(media.KindAudio) {
		kind = media.KindAudio
	}

	s.registry.Create(taskID, req.URL, string(kind))
	s.pool.Submit(taskID, func(ctx context.Context) {
		s.run(ctx, taskID, req, kind, username)
	})

	logger.Logger.Info("Download task queued",
		zap.String("task_id", taskID),
		zap.String("url", req.URL),
		zap.String("kind", string(kind)),
		zap.String("username", username))
	return taskID
}

// run is the one background unit of work for a task id; it is the only
// writer of that task's registry entry.
func (s *DownloadService) run(ctx context.Context, taskID string, req *model.DownloadRequest, kind media.DownloadKind, username string) {
	report := s.registry.Reporter(taskID)
	report.Update(0, task.StatusDownloading, "Resolving source streams")

	descs, info, err := s.prober.Probe(ctx, req.URL)
	if err != nil {
		s.fail(taskID, err)
		return
	}

	candidates, err := media.ResolveCandidates(req.FormatID, kind, descs)
	if err != nil {
		s.fail(taskID, err)
		return
	}

	workDir, err := s.storage.TaskDir(taskID)
	if err != nil {
		s.fail(taskID, err)
		return
	}

	outPath, attempts, err := s.engine.Run(ctx, req.URL, kind, candidates, workDir, s.storage.DownloadStem(taskID), report)
	if err != nil {
		s.fail(taskID, err)
		return
	}

	warning := ""
	if kind == media.KindVideo {
		converted, warn := s.verifier.EnsureCompatible(ctx, outPath)
		if warn != nil {
			// Non-fatal: the unconverted file is still delivered.
			warning = warn.Error()
			logger.Logger.Warn("Compatibility step incomplete",
				zap.String("task_id", taskID), zap.Error(warn))
		} else if converted {
			logger.Logger.Info("File re-encoded for compatibility", zap.String("task_id", taskID))
		}
	} else {
		opts := req.AudioOptions
		if opts == nil {
			opts = &model.AudioEditOptions{Codec: "mp3"}
		}
		processed := s.storage.DownloadStem(taskID) + "-out." + media.OutputExtFor(opts.Codec, outPath)
		if err := s.audio.Process(ctx, outPath, processed, opts); err != nil {
			s.fail(taskID, err)
			return
		}
		os.Remove(outPath)
		outPath = processed
	}

	stat, err := os.Stat(outPath)
	if err != nil {
		s.fail(taskID, fmt.Errorf("produced file missing: %w", err))
		return
	}
	if !s.storage.ValidateFileSize(stat.Size()) {
		os.Remove(outPath)
		s.fail(taskID, fmt.Errorf("file exceeds the %dMB size limit", s.cfg.Storage.MaxVideoSizeMB))
		return
	}

	filename := validator.SanitizeFilename(info.Title)
	if filename == "" {
		filename = taskID
	}
	filename = validator.TruncateFilename(filename, maxFilenameLen) + filepath.Ext(outPath)

	s.storage.Track(taskID, &storage.ServedFile{
		Filename: filename,
		FilePath: outPath,
		Size:     stat.Size(),
	})
	s.quota.Charge(username, stat.Size())

	message := fmt.Sprintf("Completed after %d attempt(s)", attempts)
	if warning != "" {
		message += "; " + warning
	}
	s.registry.Update(taskID, func(t *task.Task) {
		t.Progress = 100
		t.Status = task.StatusCompleted
		t.Message = message
		t.FilePath = outPath
		t.Filename = filename
	})

	logger.Logger.Info("Download task completed",
		zap.String("task_id", taskID),
		zap.String("file", filename),
		zap.Int("attempts", attempts),
		zap.Int64("size", stat.Size()))
}

func (s *DownloadService) fail(taskID string, err error) {
	logger.Logger.Error("Download task failed", zap.String("task_id", taskID), zap.Error(err))
	s.registry.Update(taskID, func(t *task.Task) {
		t.Status = task.StatusFailed
		t.Message = err.Error()
	})
}

// Cleanup removes a task's artifacts and registry entry.
func (s *DownloadService) Cleanup(taskID string) {
	s.storage.Remove(taskID)
	s.registry.Delete(taskID)
}
