package handler

import (
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"

	"dlvideo/internal/model"
	"dlvideo/internal/service"
	"dlvideo/internal/storage"
	"dlvideo/internal/task"
	"dlvideo/pkg/logger"
	"dlvideo/pkg/middleware"
	"dlvideo/pkg/validator"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// DownloadHandler handles analyze and download requests
type DownloadHandler struct {
	downloadService *service.DownloadService
	quotaService    *service.QuotaService
	registry        *task.Registry
	storage         *storage.Manager
	cfg             *model.Config
}

// NewDownloadHandler creates a new download handler
func NewDownloadHandler(ds *service.DownloadService, cfg *model.Config, qs *service.QuotaService, registry *task.Registry, sm *storage.Manager) *DownloadHandler {
	return &DownloadHandler{
		downloadService: ds,
		quotaService:    qs,
		registry:        registry,
		storage:         sm,
		cfg:             cfg,
	}
}

// Analyze handles POST /api/analyze
func (h *DownloadHandler) Analyze(c *gin.Context) {
	var req model.AnalyzeRequest

	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Logger.Warn("Invalid analyze request", zap.Error(err))
		c.JSON(http.StatusBadRequest, model.ErrorResponse{
			Error:   "invalid_request",
			Message: "A media URL is required",
			Code:    http.StatusBadRequest,
		})
		return
	}

	if !validator.ValidateURL(req.URL, h.cfg.Security.AllowedDomains) {
		logger.Logger.Warn("Invalid URL domain", zap.String("url", req.URL))
		c.JSON(http.StatusBadRequest, model.ErrorResponse{
			Error:   "invalid_domain",
			Message: "URL domain is not allowed",
			Code:    http.StatusBadRequest,
		})
		return
	}

	info, err := h.downloadService.Analyze(c.Request.Context(), req.URL)
	if err != nil {
		logger.Logger.Error("Analyze failed", zap.Error(err), zap.String("url", req.URL))
		c.JSON(http.StatusInternalServerError, model.ErrorResponse{
			Error:   "analyze_failed",
			Message: "Failed to fetch media information",
			Code:    http.StatusInternalServerError,
		})
		return
	}

	c.JSON(http.StatusOK, info)
}

// StartDownload handles POST /api/download
func (h *DownloadHandler) StartDownload(c *gin.Context) {
	var req model.DownloadRequest

	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Logger.Warn("Invalid download request", zap.Error(err))
		c.JSON(http.StatusBadRequest, model.ErrorResponse{
			Error:   "invalid_request",
			Message: "Invalid request format",
			Code:    http.StatusBadRequest,
		})
		return
	}

	if !validator.ValidateURL(req.URL, h.cfg.Security.AllowedDomains) {
		logger.Logger.Warn("Invalid URL domain", zap.String("url", req.URL))
		c.JSON(http.StatusBadRequest, model.ErrorResponse{
			Error:   "invalid_domain",
			Message: "URL domain is not allowed",
			Code:    http.StatusBadRequest,
		})
		return
	}

	if !validator.ValidateFormatID(req.FormatID) {
		logger.Logger.Warn("Invalid format ID", zap.String("format_id", req.FormatID))
		c.JSON(http.StatusBadRequest, model.ErrorResponse{
			Error:   "invalid_format",
			Message: "Invalid format ID",
			Code:    http.StatusBadRequest,
		})
		return
	}

	if req.AudioOptions != nil {
		if err := req.AudioOptions.Validate(); err != nil {
			c.JSON(http.StatusBadRequest, model.ErrorResponse{
				Error:   "invalid_audio_options",
				Message: err.Error(),
				Code:    http.StatusBadRequest,
			})
			return
		}
	}

	username := ""
	if info := middleware.CurrentUser(c); info != nil {
		username = info.Username
	}

	if h.cfg.Quota.Enabled {
		allowed, _ := h.quotaService.Allowed(username)
		if !allowed {
			logger.Logger.Warn("Quota exhausted", zap.String("username", username))
			c.JSON(http.StatusPaymentRequired, model.ErrorResponse{
				Error:   "quota_exhausted",
				Message: "Daily download quota exhausted. Please try again after quota reset.",
				Code:    http.StatusPaymentRequired,
			})
			return
		}
	}

	taskID := h.downloadService.Start(&req, username)
	c.JSON(http.StatusAccepted, model.DownloadAccepted{
		TaskID: taskID,
		Status: task.StatusQueued,
	})
}

// Status handles GET /api/download/status/:id
func (h *DownloadHandler) Status(c *gin.Context) {
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
		resp.DownloadURL = "/api/download/file/" + taskID
	}
	c.JSON(http.StatusOK, resp)
}

// GetFile handles GET /api/download/file/:id
func (h *DownloadHandler) GetFile(c *gin.Context) {
	serveTrackedFile(c, h.storage, c.Param("id"))
}

// Cleanup handles DELETE /api/download/cleanup/:id
func (h *DownloadHandler) Cleanup(c *gin.Context) {
	taskID := c.Param("id")
	h.downloadService.Cleanup(taskID)
	c.JSON(http.StatusOK, gin.H{"status": "cleaned"})
}

// QuotaInfo handles GET /api/quota
func (h *DownloadHandler) QuotaInfo(c *gin.Context) {
	username := ""
	if info := middleware.CurrentUser(c); info != nil {
		username = info.Username
	}
	c.JSON(http.StatusOK, h.quotaService.Info(username))
}

// HealthCheck handles GET /api/health
func (h *DownloadHandler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": "media-downloader",
	})
}

// serveTrackedFile streams a tracked artifact, honoring an optional custom
// filename from the query string.
func serveTrackedFile(c *gin.Context, sm *storage.Manager, id string) {
	if id == "" {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{
			Error:   "invalid_id",
			Message: "File ID is required",
			Code:    http.StatusBadRequest,
		})
		return
	}

	file := sm.GetFile(id)
	if file == nil {
		logger.Logger.Warn("File not found", zap.String("file_id", id))
		c.JSON(http.StatusNotFound, model.ErrorResponse{
			Error:   "not_found",
			Message: "File not found or has expired",
			Code:    http.StatusNotFound,
		})
		return
	}

	if _, err := os.Stat(file.FilePath); err != nil {
		logger.Logger.Warn("File does not exist", zap.String("path", file.FilePath))
		c.JSON(http.StatusNotFound, model.ErrorResponse{
			Error:   "not_found",
			Message: "File no longer available",
			Code:    http.StatusNotFound,
		})
		return
	}

	filename := file.Filename
	if custom := c.Query("custom_filename"); custom != "" {
		// A custom name keeps the real file's extension.
		custom = validator.SanitizeFilename(custom)
		if custom != "" {
			if dot := strings.LastIndex(file.Filename, "."); dot >= 0 {
				custom += file.Filename[dot:]
			}
			filename = custom
		}
	}

	c.Header("Content-Disposition", buildContentDispositionHeader(filename))
	c.Header("Content-Type", "application/octet-stream")
	c.File(file.FilePath)

	logger.Logger.Info("File downloaded by user",
		zap.String("file_id", id),
		zap.String("filename", filename))
}

// buildContentDispositionHeader builds a proper Content-Disposition header
// with RFC 5987 encoding for unicode and special characters
func buildContentDispositionHeader(filename string) string {
	needsEncoding := false
	for _, r := range filename {
		if r > 127 || r == '"' || r == '\\' || r == ';' || r == ',' {
			needsEncoding = true
			break
		}
	}
	if strings.ContainsAny(filename, " \t\n\r") {
		needsEncoding = true
	}

	if !needsEncoding {
		return fmt.Sprintf(`attachment; filename="%s"`, filename)
	}

	// RFC 5987: filename*=UTF-8''<percent-encoded-filename>
	return fmt.Sprintf(`attachment; filename*=UTF-8''%s`, url.QueryEscape(filename))
}
