// Package s3 implements the object-storage sink on AWS S3 or any
// S3-compatible endpoint.
package s3

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/anaishowland/oasive-db-sub000/internal/config"
	"github.com/anaishowland/oasive-db-sub000/internal/observability"
	"github.com/anaishowland/oasive-db-sub000/internal/storage"
)

type client struct {
	s3Client *s3.Client
	bucket   string
	logger   observability.Logger
	metrics  observability.Metrics
}

// New creates a new S3 storage client and verifies the configured bucket
// exists, creating it when absent.
func New(cfg *config.StorageConfig, logger observability.Logger, metrics observability.Metrics) (storage.ObjectStorage, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("storage bucket is required")
	}

	awsCfg, err := buildAWSConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to build AWS config: %w", err)
	}

	s3Client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.S3.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.S3.Endpoint)
		}
		o.UsePathStyle = true
	})

	c := &client{
		s3Client: s3Client,
		bucket:   cfg.Bucket,
		logger:   observability.Scoped(logger, "storage.s3"),
		metrics:  metrics,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := c.ensureBucketExists(ctx); err != nil {
		c.logger.Error("Failed to verify bucket existence", "error", err, "bucket", cfg.Bucket)
		return nil, fmt.Errorf("failed to verify bucket existence: %w", err)
	}

	c.logger.Info("S3 client initialized successfully", "bucket", cfg.Bucket, "region", cfg.S3.Region)
	return c, nil
}

// Put stores an object in S3.
func (c *client) Put(ctx context.Context, key string, reader io.Reader, metadata storage.ObjectMetadata) error {
	start := time.Now()

	buf := &bytes.Buffer{}
	bytesRead, err := io.Copy(buf, reader)
	if err != nil {
		c.logger.Error("Failed to read content", "error", err, "key", key)
		c.metrics.IncrementCounter("s3.put.errors", map[string]string{"error_type": "read_error"})
		return fmt.Errorf("failed to read content: %w", err)
	}

	input := &s3.PutObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(key),
		Body:   bytes.NewReader(buf.Bytes()),
	}
	if metadata.ContentType != "" {
		input.ContentType = aws.String(metadata.ContentType)
	}

	_, err = c.s3Client.PutObject(ctx, input)
	if err != nil {
		c.logger.Error("Failed to put object", "error", err, "key", key)
		c.metrics.IncrementCounter("s3.put.errors", map[string]string{"error_type": "s3_error"})
		return fmt.Errorf("failed to put object: %w", err)
	}

	duration := time.Since(start)
	c.logger.Info("Object stored successfully",
		"key", key,
		"size_bytes", bytesRead,
		"duration_ms", duration.Milliseconds())

	c.metrics.IncrementCounter("s3.put.success", nil)
	c.metrics.RecordHistogram("s3.put.duration_ms", float64(duration.Milliseconds()), nil)
	c.metrics.RecordHistogram("s3.put.size_bytes", float64(bytesRead), nil)

	return nil
}

// Get retrieves an object from S3.
func (c *client) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	start := time.Now()

	result, err := c.s3Client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNotFoundError(err) {
			c.metrics.IncrementCounter("s3.get.not_found", nil)
			return nil, storage.ErrObjectNotFound
		}
		c.logger.Error("Failed to get object", "error", err, "key", key)
		c.metrics.IncrementCounter("s3.get.errors", nil)
		return nil, fmt.Errorf("failed to get object: %w", err)
	}

	c.metrics.IncrementCounter("s3.get.success", nil)
	c.metrics.RecordHistogram("s3.get.duration_ms", float64(time.Since(start).Milliseconds()), nil)

	return result.Body, nil
}

// Exists checks if an object exists in S3.
func (c *client) Exists(ctx context.Context, key string) (bool, error) {
	_, err := c.s3Client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNotFoundError(err) {
			return false, nil
		}
		c.logger.Error("Failed to check object existence", "error", err, "key", key)
		c.metrics.IncrementCounter("s3.exists.errors", nil)
		return false, fmt.Errorf("failed to check object existence: %w", err)
	}
	return true, nil
}

// List returns objects under the given prefix.
func (c *client) List(ctx context.Context, prefix string) ([]storage.ObjectInfo, error) {
	start := time.Now()

	input := &s3.ListObjectsV2Input{
		Bucket: aws.String(c.bucket),
	}
	if prefix != "" {
		input.Prefix = aws.String(prefix)
	}

	var objects []storage.ObjectInfo
	paginator := s3.NewListObjectsV2Paginator(c.s3Client, input)

	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			c.logger.Error("Failed to list objects", "error", err, "prefix", prefix)
			c.metrics.IncrementCounter("s3.list.errors", nil)
			return nil, fmt.Errorf("failed to list objects: %w", err)
		}

		for _, obj := range page.Contents {
			objects = append(objects, storage.ObjectInfo{
				Key:          aws.ToString(obj.Key),
				Size:         aws.ToInt64(obj.Size),
				LastModified: aws.ToTime(obj.LastModified),
				ETag:         aws.ToString(obj.ETag),
			})
		}
	}

	c.metrics.IncrementCounter("s3.list.success", nil)
	c.metrics.RecordHistogram("s3.list.duration_ms", float64(time.Since(start).Milliseconds()), nil)

	return objects, nil
}

func (c *client) ensureBucketExists(ctx context.Context) error {
	_, err := c.s3Client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(c.bucket),
	})
	if err != nil {
		var nse *s3types.NotFound
		if errors.As(err, &nse) {
			c.logger.Info("Bucket does not exist, attempting to create", "bucket", c.bucket)
			return c.createBucket(ctx)
		}
		return fmt.Errorf("failed to check bucket existence: %w", err)
	}
	return nil
}

func (c *client) createBucket(ctx context.Context) error {
	_, err := c.s3Client.CreateBucket(ctx, &s3.CreateBucketInput{
		Bucket: aws.String(c.bucket),
	})
	if err != nil {
		var bae *s3types.BucketAlreadyExists
		var baoyb *s3types.BucketAlreadyOwnedByYou
		if errors.As(err, &bae) || errors.As(err, &baoyb) {
			return nil
		}
		return fmt.Errorf("failed to create bucket: %w", err)
	}
	return nil
}

func buildAWSConfig(cfg *config.StorageConfig) (aws.Config, error) {
	var optFns []func(*awsconfig.LoadOptions) error

	if cfg.S3.Region != "" {
		optFns = append(optFns, awsconfig.WithRegion(cfg.S3.Region))
	}

	if cfg.S3.AccessKeyID != "" && cfg.S3.SecretAccessKey != "" {
		optFns = append(optFns, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(
				cfg.S3.AccessKeyID,
				cfg.S3.SecretAccessKey,
				"",
			),
		))
	}

	optFns = append(optFns, awsconfig.WithRetryMaxAttempts(cfg.MaxRetries))
	optFns = append(optFns, awsconfig.WithHTTPClient(&http.Client{
		Timeout: cfg.Timeout,
	}))

	return awsconfig.LoadDefaultConfig(context.Background(), optFns...)
}

func isNotFoundError(err error) bool {
	var nsk *s3types.NoSuchKey
	var nse *s3types.NotFound
	return errors.As(err, &nsk) || errors.As(err, &nse)
}
