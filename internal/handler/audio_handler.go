package handler

import (
	"net/http"
	"path/filepath"
	"strings"

	"dlvideo/internal/model"
	"dlvideo/internal/service"
	"dlvideo/internal/storage"
	"dlvideo/internal/task"
	"dlvideo/pkg/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// uploadExts are the file extensions accepted for audio editing. Video
// containers are allowed; the audio track is extracted during processing.
var uploadExts = map[string]bool{
	".mp3": true, ".m4a": true, ".aac": true, ".opus": true, ".ogg": true,
	".oga": true, ".flac": true, ".wav": true, ".wma": true,
	".mp4": true, ".mkv": true, ".webm": true, ".mov": true, ".m4v": true,
}

// AudioHandler handles audio upload and edit requests
type AudioHandler struct {
	audioService *service.AudioService
	registry     *task.Registry
	storage      *storage.Manager
	cfg          *model.Config
}

// NewAudioHandler creates a new audio handler
func NewAudioHandler(as *service.AudioService, cfg *model.Config, registry *task.Registry, sm *storage.Manager) *AudioHandler {
	return &AudioHandler{
		audioService: as,
		registry:     registry,
		storage:      sm,
		cfg:          cfg,
	}
}

// Upload handles POST /api/audio/upload
func (h *AudioHandler) Upload(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{
			Error:   "invalid_request",
			Message: "A file field is required",
			Code:    http.StatusBadRequest,
		})
		return
	}

	ext := strings.ToLower(filepath.Ext(fileHeader.Filename))
	if !uploadExts[ext] {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{
			Error:   "unsupported_type",
			Message: "Unsupported file type: " + ext,
			Code:    http.StatusBadRequest,
		})
		return
	}

	if !h.storage.ValidateFileSize(fileHeader.Size) {
		c.JSON(http.StatusRequestEntityTooLarge, model.ErrorResponse{
			Error:   "file_too_large",
			Message: "Uploaded file exceeds the size limit",
			Code:    http.StatusRequestEntityTooLarge,
		})
		return
	}

	uploadID, path := h.audioService.RegisterUpload(fileHeader.Filename)
	if err := c.SaveUploadedFile(fileHeader, path); err != nil {
		logger.Logger.Error("Upload save failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, model.ErrorResponse{
			Error:   "upload_failed",
			Message: "Could not store the uploaded file",
			Code:    http.StatusInternalServerError,
		})
		return
	}

	logger.Logger.Info("File uploaded",
		zap.String("upload_id", uploadID),
		zap.String("filename", fileHeader.Filename),
		zap.Int64("size", fileHeader.Size))
	c.JSON(http.StatusOK, model.UploadAccepted{
		AudioID:  uploadID,
		Filename: fileHeader.Filename,
	})
}

// Process handles POST /api/audio/process
func (h *AudioHandler) Process(c *gin.Context) {
	var req model.ProcessAudioRequest

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{
			Error:   "invalid_request",
			Message: "Invalid request format",
			Code:    http.StatusBadRequest,
		})
		return
	}

	taskID, err := h.audioService.Start(req.AudioID, &req.Options)
	if err != nil {
		logger.Logger.Warn("Audio edit rejected",
			zap.String("audio_id", req.AudioID), zap.Error(err))
		c.JSON(http.StatusBadRequest, model.ErrorResponse{
			Error:   "invalid_options",
			Message: err.Error(),
			Code:    http.StatusBadRequest,
		})
		return
	}

	c.JSON(http.StatusAccepted, model.DownloadAccepted{
		TaskID: taskID,
		Status: task.StatusQueued,
	})
}

// Status handles GET /api/audio/status/:id
func (h *AudioHandler) Status(c *gin.Context) {
	taskID := c.Param("id")

	t, ok := h.registry.Get(taskID)
	if !ok {
		c.JSON(http.StatusNotFound, model.ErrorResponse{
			Error:   "not_found",
			Message: "Unknown task",
			Code:    http.StatusNotFound,
		})
		return
	}

	resp := model.TaskStatusResponse{
		Ready:    t.Ready(),
		Progress: t.Progress,
		Status:   t.Status,
		Message:  t.Message,
	}
	if t.Status == task.StatusCompleted {
		resp.DownloadURL = "/api/audio/download/" + taskID
	}
	c.JSON(http.StatusOK, resp)
}

// GetFile handles GET /api/audio/download/:id
func (h *AudioHandler) GetFile(c *gin.Context) {
	serveTrackedFile(c, h.storage, c.Param("id"))
}

// Cleanup handles DELETE /api/audio/cleanup/:id
func (h *AudioHandler) Cleanup(c *gin.Context) {
	taskID := c.Param("id")
	h.audioService.Cleanup(taskID)
	c.JSON(http.StatusOK, gin.H{"status": "cleaned"})
}

// DeleteUpload handles DELETE /api/audio/upload/:id
func (h *AudioHandler) DeleteUpload(c *gin.Context) {
	h.audioService.RemoveUpload(c.Param("id"))
	c.JSON(http.StatusOK, gin.H{"status": "removed"})
}
