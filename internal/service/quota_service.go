package service

import (
	"sync"
	"time"

	"dlvideo/internal/model"
	"dlvideo/pkg/logger"

	"go.uber.org/zap"
)

// QuotaEntry tracks daily download usage for one user.
type QuotaEntry struct {
	Username   string
	UsedMB     int64
	ResetTime  time.Time
	LastUpdate time.Time
}

// QuotaService enforces the per-user daily download quota. Usage is charged
// when a download task completes, against the produced file size.
type QuotaService struct {
	cfg      *model.QuotaConfig
	quotas   map[string]*QuotaEntry
	mu       sync.RWMutex
	quitChan chan bool
}

// NewQuotaService creates a new quota service
func NewQuotaService(cfg *model.QuotaConfig) *QuotaService {
	service := &QuotaService{
		cfg:      cfg,
		quotas:   make(map[string]*QuotaEntry),
		quitChan: make(chan bool),
	}

	if cfg.Enabled {
		go service.resetRoutine()
	}

	return service
}

// Allowed reports whether the user still has quota left, and how much.
func (qs *QuotaService) Allowed(username string) (bool, int64) {
	if !qs.cfg.Enabled {
		return true, qs.cfg.DailyLimitMB
	}

	qs.mu.Lock()
	defer qs.mu.Unlock()

	entry := qs.entryLocked(username)
	remaining := qs.cfg.DailyLimitMB - entry.UsedMB
	if remaining <= 0 {
		return false, 0
	}
	return true, remaining
}

// Charge records usage for a completed download.
func (qs *QuotaService) Charge(username string, sizeBytes int64) {
	if !qs.cfg.Enabled {
		return
	}

	sizeMB := sizeBytes / (1024 * 1024)
	if sizeBytes%(1024*1024) > 0 {
		sizeMB++
	}

	qs.mu.Lock()
	defer qs.mu.Unlock()

	entry := qs.entryLocked(username)
	entry.UsedMB += sizeMB
	entry.LastUpdate = time.Now()

	logger.Logger.Debug("Quota charged",
		zap.String("username", username),
		zap.Int64("size_mb", sizeMB),
		zap.Int64("used_mb", entry.UsedMB),
		zap.Int64("limit_mb", qs.cfg.DailyLimitMB))
}

// Info returns current usage for a user.
func (qs *QuotaService) Info(username string) map[string]interface{} {
	if !qs.cfg.Enabled {
		return map[string]interface{}{"enabled": false}
	}

	qs.mu.Lock()
	defer qs.mu.Unlock()

	entry := qs.entryLocked(username)
	remaining := qs.cfg.DailyLimitMB - entry.UsedMB
	if remaining < 0 {
		remaining = 0
	}

	return map[string]interface{}{
		"enabled":      true,
		"used_mb":      entry.UsedMB,
		"limit_mb":     qs.cfg.DailyLimitMB,
		"remaining_mb": remaining,
		"reset_time":   entry.ResetTime,
	}
}

// entryLocked fetches or creates the entry and applies a pending reset.
func (qs *QuotaService) entryLocked(username string) *QuotaEntry {
	entry, exists := qs.quotas[username]
	if !exists {
		entry = &QuotaEntry{
			Username:   username,
			ResetTime:  qs.calculateResetTime(),
			LastUpdate: time.Now(),
		}
		qs.quotas[username] = entry
	}

	if time.Now().After(entry.ResetTime) {
		entry.UsedMB = 0
		entry.ResetTime = qs.calculateResetTime()
		entry.LastUpdate = time.Now()
	}
	return entry
}

// calculateResetTime calculates next reset time based on config
func (qs *QuotaService) calculateResetTime() time.Time {
	now := time.Now()
	resetTime := time.Date(now.Year(), now.Month(), now.Day(), qs.cfg.ResetHour, qs.cfg.ResetMinute, 0, 0, now.Location())
	if resetTime.Before(now) {
		resetTime = resetTime.AddDate(0, 0, 1)
	}
	return resetTime
}

// resetRoutine periodically applies pending quota resets.
func (qs *QuotaService) resetRoutine() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-qs.quitChan:
			logger.Logger.Info("Quota service stopped")
			return
		case <-ticker.C:
			qs.mu.Lock()
			now := time.Now()
			for _, entry := range qs.quotas {
				if now.After(entry.ResetTime) {
					entry.UsedMB = 0
					entry.ResetTime = qs.calculateResetTime()
					entry.LastUpdate = now
				}
			}
			qs.mu.Unlock()
		}
	}
}

// Stop stops the quota service
func (qs *QuotaService) Stop() {
	if qs.cfg.Enabled {
		qs.quitChan <- true
	}
}
