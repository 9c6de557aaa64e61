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

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// AudioService runs edits against user-uploaded audio or video files.
type AudioService struct {
	cfg      *model.Config
	audio    *media.Processor
	registry *task.Registry
	pool     *task.Pool
	storage  *storage.Manager
}

// NewAudioService creates a new audio service
func NewAudioService(cfg *model.Config, audio *media.Processor, registry *task.Registry, pool *task.Pool, sm *storage.Manager) *AudioService {
	return &AudioService{
		cfg:      cfg,
		audio:    audio,
		registry: registry,
		pool:     pool,
		storage:  sm,
	}
}

// RegisterUpload reserves an id and the target path for an uploaded file.
func (s *AudioService) RegisterUpload(originalName string) (uploadID, path string) {
	uploadID = uuid.NewString()
	ext := filepath.Ext(originalName)
	if ext == "" {
		ext = ".bin"
	}
	return uploadID, s.storage.UploadPath(uploadID, ext)
}

// FindUpload locates a previously uploaded file by id.
func (s *AudioService) FindUpload(uploadID string) (string, error) {
	matches, err := filepath.Glob(s.storage.UploadPath(uploadID, ".*"))
	if err != nil || len(matches) == 0 {
		return "", fmt.Errorf("upload %s not found", uploadID)
	}
	return matches[0], nil
}

// Start queues an edit of an uploaded file and returns the task id. Options
// are validated before any background work begins.
func (s *AudioService) Start(uploadID string, opts *model.AudioEditOptions) (string, error) {
	if err := opts.Validate(); err != nil {
		return "", err
	}

	inPath, err := s.FindUpload(uploadID)
	if err != nil {
		return "", err
	}

	taskID := uuid.NewString()
	s.registry.Create(taskID, uploadID, string(media.KindAudio))
	s.pool.Submit(taskID, func(ctx context.Context) {
		s.run(ctx, taskID, inPath, opts)
	})

	logger.Logger.Info("Audio edit queued",
		zap.String("task_id", taskID),
		zap.String("upload_id", uploadID),
		zap.String("codec", opts.Codec))
	return taskID, nil
}

func (s *AudioService) run(ctx context.Context, taskID, inPath string, opts *model.AudioEditOptions) {
	report := s.registry.Reporter(taskID)
	report.Update(10, task.StatusProcessing, "Processing audio")

	outPath := s.storage.DownloadStem(taskID) + "." + media.OutputExtFor(opts.Codec, inPath)

	if err := s.audio.Process(ctx, inPath, outPath, opts); err != nil {
		logger.Logger.Error("Audio edit failed", zap.String("task_id", taskID), zap.Error(err))
		s.registry.Update(taskID, func(t *task.Task) {
			t.Status = task.StatusFailed
			t.Message = err.Error()
		})
		return
	}

	stat, err := os.Stat(outPath)
	if err != nil {
		s.registry.Update(taskID, func(t *task.Task) {
			t.Status = task.StatusFailed
			t.Message = "processed file missing"
		})
		return
	}

	filename := filepath.Base(outPath)
	s.storage.Track(taskID, &storage.ServedFile{
		Filename: filename,
		FilePath: outPath,
		Size:     stat.Size(),
	})

	s.registry.Update(taskID, func(t *task.Task) {
		t.Progress = 100
		t.Status = task.StatusCompleted
		t.Message = "Audio processing complete"
		t.FilePath = outPath
		t.Filename = filename
	})
}

// Cleanup removes an edit task's artifacts and registry entry.
func (s *AudioService) Cleanup(taskID string) {
	s.storage.Remove(taskID)
	s.registry.Delete(taskID)
}

// RemoveUpload deletes an uploaded source file.
func (s *AudioService) RemoveUpload(uploadID string) {
	if path, err := s.FindUpload(uploadID); err == nil {
		os.Remove(path)
	}
}
