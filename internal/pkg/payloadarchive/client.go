package payloadarchive

import (
	"bytes"
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/gofiber/fiber/v2/log"
)

// Client mirrors raw webhook payloads to S3-compatible storage for forensics.
// Archived objects are immutable; an event re-delivered with the same id
// simply overwrites the identical bytes.
type Client struct {
	s3Client *s3.Client
	config   *Config
}

// NewClient creates a new payload archive client
func NewClient(cfg *Config) (*Client, error) {
	if !cfg.IsEnabled() {
		return nil, fmt.Errorf("webhook payload archive is disabled")
	}

	// Create AWS config
	awsConfig, err := config.LoadDefaultConfig(context.TODO(),
		config.WithRegion(cfg.Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKeyID,
			cfg.SecretAccessKey,
			"",
		)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	// Create S3 client
	s3Client := s3.NewFromConfig(awsConfig, func(o *s3.Options) {
		if cfg.EndpointURL != "" {
			o.BaseEndpoint = aws.String(cfg.EndpointURL)
			// Backblaze B2 specific settings
			o.UsePathStyle = true   // Force path-style URLs for B2
			o.UseAccelerate = false // Disable transfer acceleration
		}
	})

	client := &Client{
		s3Client: s3Client,
		config:   cfg,
	}

	// Test connection
	if err := client.testConnection(); err != nil {
		return nil, fmt.Errorf("failed to connect to S3: %w", err)
	}

	log.Infof("[PayloadArchive] Successfully initialized S3 client for bucket: %s", cfg.GetBucketName())
	return client, nil
}

// NewFromEnv builds an archive client from the environment. Returns (nil, nil)
// when the archive is not enabled, so callers can wire it conditionally.
func NewFromEnv() (*Client, error) {
	cfg, err := LoadConfig()
	if err != nil {
		return nil, err
	}
	if !cfg.IsEnabled() {
		return nil, nil
	}
	return NewClient(cfg)
}

// testConnection tests the S3 connection by checking if the bucket exists
func (c *Client) testConnection() error {
	ctx := context.Background()
	bucketName := c.config.GetBucketName()

	_, err := c.s3Client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(bucketName),
	})

	if err != nil {
		// If bucket doesn't exist, try to create it (for development)
		if GetAppEnv() != "prod" {
			log.Warnf("[PayloadArchive] Bucket %s not found, attempting to create it", bucketName)
			return c.createBucket(bucketName)
		}
		return fmt.Errorf("bucket %s not accessible: %w", bucketName, err)
	}

	return nil
}

// createBucket creates a new S3 bucket (dev/staging only)
func (c *Client) createBucket(bucketName string) error {
	ctx := context.Background()

	input := &s3.CreateBucketInput{
		Bucket: aws.String(bucketName),
	}

	// For AWS regions other than us-east-1, we need to specify the location constraint
	// For Backblaze B2, we don't set the LocationConstraint
	if c.config.EndpointURL == "" && c.config.Region != "us-east-1" {
		input.CreateBucketConfiguration = &types.CreateBucketConfiguration{
			LocationConstraint: types.BucketLocationConstraint(c.config.Region),
		}
	}

	_, err := c.s3Client.CreateBucket(ctx, input)
	if err != nil {
		return fmt.Errorf("failed to create bucket %s: %w", bucketName, err)
	}

	log.Infof("[PayloadArchive] Successfully created bucket: %s", bucketName)
	return nil
}

// ArchivePayload stores one raw webhook payload under its event key.
func (c *Client) ArchivePayload(ctx context.Context, source, eventID string, payload []byte) error {
	bucketName := c.config.GetBucketName()
	objectKey := c.config.GetObjectKey(source, eventID)

	_, err := c.s3Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(bucketName),
		Key:         aws.String(objectKey),
		Body:        bytes.NewReader(payload),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("failed to archive payload to s3://%s/%s: %w", bucketName, objectKey, err)
	}

	log.Debugf("[PayloadArchive] Archived payload: s3://%s/%s (%d bytes)", bucketName, objectKey, len(payload))
	return nil
}
