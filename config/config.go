package config

import (
	"os"
	"strconv"
	"strings"

	"dlvideo/internal/model"

	"github.com/joho/godotenv"
)

// Load loads configuration from environment variables
func Load() *model.Config {
	godotenv.Load()

	return &model.Config{
		Server: model.ServerConfig{
			Port:    getEnvInt("SERVER_PORT", 8080),
			Host:    getEnvStr("SERVER_HOST", "0.0.0.0"),
			Timeout: getEnvInt("SERVER_TIMEOUT", 300),
		},
		Storage: model.StorageConfig{
			DownloadDir:     getEnvStr("DOWNLOAD_DIR", "./downloads"),
			UploadDir:       getEnvStr("UPLOAD_DIR", "./uploads"),
			WorkDir:         getEnvStr("WORK_DIR", "./work"),
			MaxVideoSizeMB:  getEnvInt("MAX_VIDEO_SIZE_MB", 2048),
			CleanupInterval: getEnvInt("STORAGE_CLEANUP_INTERVAL", 3600),
			FileTTLSeconds:  getEnvInt("FILE_TTL_SECONDS", 86400),
			SweepMaxAge:     getEnvInt("SWEEP_MAX_AGE_SECONDS", 86400),
		},
		Media: model.MediaConfig{
			ExtractorBin:   getEnvStr("EXTRACTOR_BIN", "yt-dlp"),
			FFmpegBin:      getEnvStr("FFMPEG_BIN", "ffmpeg"),
			FFprobeBin:     getEnvStr("FFPROBE_BIN", "ffprobe"),
			ProbeTimeout:   getEnvInt("PROBE_TIMEOUT", 60),
			FetchTimeout:   getEnvInt("FETCH_TIMEOUT", 600),
			AudioTimeout:   getEnvInt("AUDIO_TIMEOUT", 300),
			ReencodeScale:  getEnvInt("REENCODE_SCALE_FACTOR", 3),
			ReencodeMinSec: getEnvInt("REENCODE_MIN_SECONDS", 120),
			ReencodeMaxSec: getEnvInt("REENCODE_MAX_SECONDS", 1800),
		},
		Worker: model.WorkerConfig{
			PoolSize: getEnvInt("WORKER_POOL_SIZE", 4),
		},
		Auth: model.AuthConfig{
			DataFile:           getEnvStr("AUTH_DATA_FILE", "./data/users.json"),
			SessionExpiryHours: getEnvInt("SESSION_EXPIRY_HOURS", 24),
			MaxLoginAttempts:   getEnvInt("MAX_LOGIN_ATTEMPTS", 5),
			LockoutMinutes:     getEnvInt("LOCKOUT_MINUTES", 15),
		},
		Logging: model.LoggingConfig{
			Level:        getEnvStr("LOG_LEVEL", "info"),
			FilePath:     getEnvStr("LOG_FILE", "./log/app.log"),
			RotationSize: getEnvInt64("LOG_ROTATION_SIZE", 104857600),
			MaxBackups:   getEnvInt("LOG_MAX_BACKUPS", 3),
			MaxAge:       getEnvInt("LOG_MAX_AGE", 7),
		},
		Security: model.SecurityConfig{
			AllowedDomains: splitDomains(getEnvStr("ALLOWED_DOMAINS", "")),
			RequestTimeout: getEnvInt("REQUEST_TIMEOUT", 60),
			CookieSecure:   getEnvBool("COOKIE_SECURE", false),
		},
		Quota: model.QuotaConfig{
			Enabled:      getEnvBool("QUOTA_ENABLED", false),
			DailyLimitMB: getEnvInt64("QUOTA_DAILY_LIMIT_MB", 5000),
			ResetHour:    getEnvInt("QUOTA_RESET_HOUR", 0),
			ResetMinute:  getEnvInt("QUOTA_RESET_MINUTE", 0),
		},
		RateLimit: model.RateLimitConfig{
			Enabled:           getEnvBool("RATELIMIT_ENABLED", true),
			RequestsPerMinute: getEnvInt("RATELIMIT_REQUESTS_PER_MINUTE", 60),
			BurstSize:         getEnvInt("RATELIMIT_BURST_SIZE", 10),
			CleanupInterval:   getEnvInt("RATELIMIT_CLEANUP_INTERVAL", 1800),
		},
	}
}

// splitDomains parses the allow-list; an empty value means any domain.
func splitDomains(domainsStr string) []string {
	if strings.TrimSpace(domainsStr) == "" {
		return nil
	}
	var domains []string
	for _, d := range strings.Split(domainsStr, ",") {
		d = strings.TrimSpace(d)
		if d != "" {
			domains = append(domains, d)
		}
	}
	return domains
}

func getEnvStr(key, defaultVal string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	valStr := getEnvStr(key, "")
	if val, err := strconv.Atoi(valStr); err == nil {
		return val
	}
	return defaultVal
}

func getEnvInt64(key string, defaultVal int64) int64 {
	valStr := getEnvStr(key, "")
	if val, err := strconv.ParseInt(valStr, 10, 64); err == nil {
		return val
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	valStr := strings.ToLower(getEnvStr(key, ""))
	if valStr == "true" || valStr == "1" || valStr == "yes" {
		return true
	}
	if valStr == "false" || valStr == "0" || valStr == "no" {
		return false
	}
	return defaultVal
}
