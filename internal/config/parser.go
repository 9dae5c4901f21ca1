package config

// parse reads configuration from environment variables
func parse() (*Config, error) {
	cfg := &Config{
		// Core
		Environment:    getEnv("ENVIRONMENT", "local"),
		ServiceName:    getEnv("SERVICE_NAME", "disclosure-ingest"),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		JSONLogs:       getBool("LOG_JSON", false),
		MetricsAdapter: getEnv("ADAPTER_METRICS", "stdout"),
		RunTimeout:     getDuration("RUN_TIMEOUT", "55m"),

		// Database configuration
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getInt("DB_PORT", 5432),
			Database: getEnv("DB_NAME", "postgres"),
			Username: getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", ""),
			SSLMode:  getEnv("DB_SSL_MODE", "disable"),

			// Connection pool
			MaxOpenConns: getInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns: getInt("DB_MAX_IDLE_CONNS", 5),
		},

		// Storage configuration
		Storage: StorageConfig{
			Bucket:     getEnv("STORAGE_BUCKET", "disclosure-raw-data"),
			MaxRetries: getInt("STORAGE_MAX_RETRIES", 3),
			Timeout:    getDuration("STORAGE_TIMEOUT", "5m"),
			S3: S3Config{
				Region:          getEnv("AWS_REGION", "us-east-2"),
				AccessKeyID:     getEnv("AWS_ACCESS_KEY_ID", ""),
				SecretAccessKey: getEnv("AWS_SECRET_ACCESS_KEY", ""),
				Endpoint:        getEnv("S3_ENDPOINT", ""),
			},
		},

		// Remote disclosure server
		SFTP: SFTPConfig{
			Host:            getEnv("SFTP_HOST", ""),
			Port:            getInt("SFTP_PORT", 22),
			Username:        getEnv("SFTP_USERNAME", ""),
			Password:        getEnv("SFTP_PASSWORD", ""),
			RootDir:         getEnv("SFTP_ROOT_DIR", "/"),
			MaxListDepth:    getInt("SFTP_MAX_LIST_DEPTH", 5),
			ConnectTimeout:  getDuration("SFTP_CONNECT_TIMEOUT", "60s"),
			TransferTimeout: getDuration("SFTP_TRANSFER_TIMEOUT", "5m"),
		},

		// Batch downloader
		Downloader: DownloaderConfig{
			BatchSize:          getInt("DOWNLOAD_BATCH_SIZE", 50),
			MaxRetries:         getInt("DOWNLOAD_MAX_RETRIES", 3),
			InitialBackoff:     getDuration("DOWNLOAD_INITIAL_BACKOFF", "5s"),
			MaxBackoff:         getDuration("DOWNLOAD_MAX_BACKOFF", "60s"),
			BackoffMultiplier:  getFloat64("DOWNLOAD_BACKOFF_MULTIPLIER", 2.0),
			LargeFileThreshold: getInt64("DOWNLOAD_LARGE_FILE_THRESHOLD", 50*1024*1024),
			StaleClaimAge:      getDuration("DOWNLOAD_STALE_CLAIM_AGE", "2h"),
		},

		// Reference-rate feed
		RateFeed: RateFeedConfig{
			APIKey:     getEnv("RATEFEED_API_KEY", ""),
			BaseURL:    getEnv("RATEFEED_BASE_URL", "https://api.stlouisfed.org/fred"),
			RateSeries: getEnv("RATEFEED_RATE_SERIES", "MORTGAGE30US"),
			Timeout:    getDuration("RATEFEED_TIMEOUT", "30s"),
			MaxRetries: getInt("RATEFEED_MAX_RETRIES", 3),
		},

		// Tag engine
		Tagging: TaggingConfig{
			CalibrationPath: getEnv("TAGGING_CALIBRATION_PATH", ""),
			BatchSize:       getInt("TAGGING_BATCH_SIZE", 1000),
			FallbackRate:    getFloat64("TAGGING_FALLBACK_RATE", 6.5),
		},
	}

	return cfg, nil
}
