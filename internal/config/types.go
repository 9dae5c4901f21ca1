package config

import (
	"time"
)

// Config holds all application configuration.
type Config struct {
	// Core settings
	Environment    string
	ServiceName    string
	LogLevel       string
	JSONLogs       bool
	MetricsAdapter string // "stdout", "prometheus"

	// Overall wall-clock budget for one invocation. On expiry, in-flight
	// catalog entries are left in their last durable state for a later run
	// to requeue as stale.
	RunTimeout time.Duration

	// Component configurations
	Database   DatabaseConfig
	Storage    StorageConfig
	SFTP       SFTPConfig
	Downloader DownloaderConfig
	RateFeed   RateFeedConfig
	Tagging    TaggingConfig
}

// DatabaseConfig holds Postgres connection settings.
type DatabaseConfig struct {
	Host         string
	Port         int
	Database     string
	Username     string
	Password     string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
}

// StorageConfig holds object-storage sink settings.
type StorageConfig struct {
	Bucket     string
	MaxRetries int
	Timeout    time.Duration

	S3 S3Config
}

// S3Config holds S3-specific configuration.
type S3Config struct {
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	Endpoint        string // for MinIO or S3-compatible services
}

// SFTPConfig holds the remote disclosure server connection settings.
// Credentials are a static username/password pair rotated out-of-band.
type SFTPConfig struct {
	Host            string
	Port            int
	Username        string
	Password        string
	RootDir         string
	MaxListDepth    int
	ConnectTimeout  time.Duration
	TransferTimeout time.Duration
}

// DownloaderConfig bounds the batch transfer behavior.
type DownloaderConfig struct {
	// Reconnect after this many files even without a failure.
	BatchSize int

	// Per-file transfer attempts before the entry is marked error.
	MaxRetries int

	// Exponential backoff between attempts.
	InitialBackoff    time.Duration
	MaxBackoff        time.Duration
	BackoffMultiplier float64

	// Transfers above this size spill through a temp file instead of memory.
	LargeFileThreshold int64

	// Entries stuck in downloading/processing longer than this are
	// requeued as pending by the next run.
	StaleClaimAge time.Duration
}

// RateFeedConfig holds the external reference-rate feed settings.
type RateFeedConfig struct {
	APIKey  string
	BaseURL string
	// Series identifier for the reference mortgage rate.
	RateSeries string
	Timeout    time.Duration
	MaxRetries int
}

// TaggingConfig holds tag-engine run settings. Calibration (thresholds,
// score tables, weights) lives in a separate YAML file so it can be
// recalibrated without redeployment.
type TaggingConfig struct {
	CalibrationPath string
	BatchSize       int
	// Used when the rate feed has no observations yet.
	FallbackRate float64
}
