package config

import (
	"fmt"
	"strings"
)

// Validate validates the entire configuration. A validation failure is a
// configuration error: fatal for the whole invocation, no partial progress.
func (c *Config) Validate() error {
	var errs []string

	if c.ServiceName == "" {
		errs = append(errs, "SERVICE_NAME is required")
	}

	switch c.MetricsAdapter {
	case "", "stdout", "prometheus":
	default:
		errs = append(errs, fmt.Sprintf("invalid metrics adapter: %s", c.MetricsAdapter))
	}

	if err := c.Database.Validate(); err != nil {
		errs = append(errs, err.Error())
	}
	if err := c.Downloader.Validate(); err != nil {
		errs = append(errs, err.Error())
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}
	return nil
}

// Validate validates database configuration
func (c *DatabaseConfig) Validate() error {
	if c.Host == "" {
		return fmt.Errorf("DB_HOST is required")
	}
	if c.Database == "" {
		return fmt.Errorf("DB_NAME is required")
	}
	if c.Username == "" {
		return fmt.Errorf("DB_USER is required")
	}
	return nil
}

// Validate validates downloader configuration
func (c *DownloaderConfig) Validate() error {
	if c.BatchSize <= 0 {
		return fmt.Errorf("DOWNLOAD_BATCH_SIZE must be positive")
	}
	if c.MaxRetries <= 0 {
		return fmt.Errorf("DOWNLOAD_MAX_RETRIES must be positive")
	}
	if c.BackoffMultiplier < 1 {
		return fmt.Errorf("DOWNLOAD_BACKOFF_MULTIPLIER must be >= 1")
	}
	if c.StaleClaimAge <= 0 {
		return fmt.Errorf("DOWNLOAD_STALE_CLAIM_AGE must be positive")
	}
	return nil
}

// Validate checks the remote server credentials. Called only by binaries
// that actually open the connection, so parse-only and tag-only jobs can run
// without them.
func (c *SFTPConfig) Validate() error {
	var errs []string
	if c.Host == "" {
		errs = append(errs, "SFTP_HOST is required")
	}
	if c.Username == "" {
		errs = append(errs, "SFTP_USERNAME is required")
	}
	if c.Password == "" {
		errs = append(errs, "SFTP_PASSWORD is required")
	}
	if len(errs) > 0 {
		return fmt.Errorf("sftp configuration errors: %s", strings.Join(errs, "; "))
	}
	return nil
}

// Validate checks the rate-feed settings for binaries that pull the feed.
func (c *RateFeedConfig) Validate() error {
	if c.APIKey == "" {
		return fmt.Errorf("RATEFEED_API_KEY is required")
	}
	if c.BaseURL == "" {
		return fmt.Errorf("RATEFEED_BASE_URL is required")
	}
	return nil
}
