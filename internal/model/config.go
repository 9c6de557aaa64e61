package model

// Config holds application configuration
type Config struct {
	Server    ServerConfig
	Storage   StorageConfig
	Media     MediaConfig
	Worker    WorkerConfig
	Auth      AuthConfig
	Logging   LoggingConfig
	Security  SecurityConfig
	Quota     QuotaConfig
	RateLimit RateLimitConfig
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Port    int
	Host    string
	Timeout int // seconds
}

// StorageConfig holds storage configuration
type StorageConfig struct {
	DownloadDir     string
	UploadDir       string
	WorkDir         string
	MaxVideoSizeMB  int
	CleanupInterval int // seconds
	FileTTLSeconds  int // Time to live for downloaded files
	SweepMaxAge     int // seconds; startup sweep removes artifacts older than this
}

// MediaConfig holds extractor and transcoder configuration
type MediaConfig struct {
	ExtractorBin   string // yt-dlp compatible binary
	FFmpegBin      string
	FFprobeBin     string
	ProbeTimeout   int // seconds, metadata extraction
	FetchTimeout   int // seconds, per stream download
	AudioTimeout   int // seconds, audio filter transcodes
	ReencodeScale  int // timeout seconds granted per second of input
	ReencodeMinSec int // lower clamp for duration-scaled re-encodes
	ReencodeMaxSec int // upper clamp
}

// WorkerConfig holds background worker pool configuration
type WorkerConfig struct {
	PoolSize int
}

// AuthConfig holds authentication configuration
type AuthConfig struct {
	DataFile           string
	SessionExpiryHours int
	MaxLoginAttempts   int
	LockoutMinutes     int
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level        string
	FilePath     string
	RotationSize int64 // bytes
	MaxBackups   int
	MaxAge       int // days
}

// SecurityConfig holds security configuration
type SecurityConfig struct {
	AllowedDomains []string
	RequestTimeout int // seconds
	CookieSecure   bool
}

// QuotaConfig holds per-user download quota configuration
type QuotaConfig struct {
	Enabled      bool
	DailyLimitMB int64 // Daily quota limit in MB per user
	ResetHour    int   // Hour (0-23) to reset quota (midnight = 0)
	ResetMinute  int   // Minute (0-59) to reset quota
}

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	Enabled           bool
	RequestsPerMinute int // Max requests per minute per IP
	BurstSize         int // Max burst size
	CleanupInterval   int // Interval in seconds to clean up old entries
}
