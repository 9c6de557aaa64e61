package storage

import (
	"os"
	"path/filepath"
	"sync"
	"time"

	"dlvideo/internal/model"
	"dlvideo/pkg/logger"

	"go.uber.org/zap"
)

// ServedFile tracks one artifact being served to users, for TTL cleanup.
type ServedFile struct {
	ID        string
	Filename  string
	FilePath  string
	Size      int64
	CreatedAt time.Time
	ExpiresAt time.Time
}

// Manager owns the download, upload and scratch directories and the TTL
// cleanup of everything in them.
type Manager struct {
	cfg      *model.StorageConfig
	files    map[string]*ServedFile
	mu       sync.RWMutex
	quitChan chan bool
}

// NewManager creates a new storage manager
func NewManager(cfg *model.StorageConfig) *Manager {
	return &Manager{
		cfg:      cfg,
		files:    make(map[string]*ServedFile),
		quitChan: make(chan bool),
	}
}

// EnsureDirs creates the working directories.
func (m *Manager) EnsureDirs() error {
	for _, dir := range []string{m.cfg.DownloadDir, m.cfg.UploadDir, m.cfg.WorkDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}
	return nil
}

// Start starts the cleanup routine
func (m *Manager) Start() {
	go m.cleanupRoutine()
}

// Stop stops the cleanup routine
func (m *Manager) Stop() {
	select {
	case m.quitChan <- true:
	default:
	}
}

// SweepStale removes artifacts older than the configured age from all owned
// directories. Run at process start to bound disk usage left behind by
// interrupted prior runs.
func (m *Manager) SweepStale() {
	maxAge := time.Duration(m.cfg.SweepMaxAge) * time.Second
	cutoff := time.Now().Add(-maxAge)
	removed := 0

	for _, dir := range []string{m.cfg.WorkDir, m.cfg.DownloadDir, m.cfg.UploadDir} {
		entries, err := os.ReadDir(dir)
		if err != nil {
			continue
		}
		for _, entry := range entries {
			info, err := entry.Info()
			if err != nil {
				continue
			}
			if info.ModTime().After(cutoff) {
				continue
			}
			path := filepath.Join(dir, entry.Name())
			if err := os.RemoveAll(path); err != nil {
				logger.Logger.Warn("Startup sweep could not remove entry",
					zap.String("path", path), zap.Error(err))
				continue
			}
			removed++
		}
	}

	if removed > 0 {
		logger.Logger.Info("Startup sweep completed", zap.Int("removed", removed))
	}
}

// TaskDir returns (and creates) the scratch directory for one task.
func (m *Manager) TaskDir(taskID string) (string, error) {
	dir := filepath.Join(m.cfg.WorkDir, taskID)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", err
	}
	return dir, nil
}

// DownloadStem returns the extensionless output path for a task's final file.
func (m *Manager) DownloadStem(taskID string) string {
	return filepath.Join(m.cfg.DownloadDir, taskID)
}

// UploadPath returns the path for an uploaded file.
func (m *Manager) UploadPath(uploadID, ext string) string {
	return filepath.Join(m.cfg.UploadDir, uploadID+ext)
}

// Track registers a produced file for serving and TTL cleanup.
func (m *Manager) Track(id string, file *ServedFile) {
	file.ID = id
	file.CreatedAt = time.Now()
	file.ExpiresAt = time.Now().Add(time.Duration(m.cfg.FileTTLSeconds) * time.Second)

	m.mu.Lock()
	m.files[id] = file
	m.mu.Unlock()

	logger.Logger.Info("File tracked",
		zap.String("id", id),
		zap.String("filename", file.Filename))
}

// GetFile gets tracked file info by ID
func (m *Manager) GetFile(id string) *ServedFile {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.files[id]
}

// Remove deletes a tracked file and its scratch directory.
func (m *Manager) Remove(id string) {
	m.mu.Lock()
	file := m.files[id]
	delete(m.files, id)
	m.mu.Unlock()

	if file != nil {
		if err := os.Remove(file.FilePath); err != nil && !os.IsNotExist(err) {
			logger.Logger.Warn("Could not remove served file",
				zap.String("path", file.FilePath), zap.Error(err))
		}
	}
	os.RemoveAll(filepath.Join(m.cfg.WorkDir, id))
}

// ValidateFileSize checks if file size is within limits
func (m *Manager) ValidateFileSize(sizeBytes int64) bool {
	maxSizeBytes := int64(m.cfg.MaxVideoSizeMB) * 1024 * 1024
	return sizeBytes <= maxSizeBytes
}

// cleanupRoutine periodically removes expired files
func (m *Manager) cleanupRoutine() {
	ticker := time.NewTicker(time.Duration(m.cfg.CleanupInterval) * time.Second)
	defer ticker.Stop()

	logger.Logger.Info("Storage cleanup routine started",
		zap.Int("cleanup_interval_seconds", m.cfg.CleanupInterval),
		zap.Int("file_ttl_seconds", m.cfg.FileTTLSeconds))

	for {
		select {
		case <-m.quitChan:
			logger.Logger.Info("Storage cleanup routine stopped")
			return
		case <-ticker.C:
			m.cleanupExpiredFiles()
		}
	}
}

// cleanupExpiredFiles removes files that have expired
func (m *Manager) cleanupExpiredFiles() {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	deletedCount := 0
	var deletedIds []string

	for id, file := range m.files {
		if !now.After(file.ExpiresAt) {
			continue
		}
		if err := os.Remove(file.FilePath); err != nil && !os.IsNotExist(err) {
			logger.Logger.Error("Failed to remove file",
				zap.String("id", id),
				zap.String("path", file.FilePath),
				zap.Error(err))
		} else {
			deletedCount++
		}
		os.RemoveAll(filepath.Join(m.cfg.WorkDir, id))
		deletedIds = append(deletedIds, id)
	}

	for _, id := range deletedIds {
		delete(m.files, id)
	}

	if deletedCount > 0 {
		logger.Logger.Info("Storage cleanup completed",
			zap.Int("deleted_count", deletedCount),
			zap.Int("remaining_tracked_files", len(m.files)))
	}
}
