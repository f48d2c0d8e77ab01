package s3

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/slackmgr/types"
)

// API is the subset of the S3 API used by [Client].
type API interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// Client downloads objects to local files and deletes them on request.
type Client struct {
	client      API
	awsCfg      *aws.Config
	opts        *Options
	logger      types.Logger
	initialized bool
}

// New creates a Client. Call [Client.Init] before use.
func New(awsCfg *aws.Config, logger types.Logger, opts ...Option) *Client {
	options := newOptions()

	for _, o := range opts {
		o(options)
	}

	return &Client{
		awsCfg: awsCfg,
		opts:   options,
		logger: logger.WithField("plugin", "s3"),
	}
}

// Init validates the options and creates the underlying S3 client. It is
// idempotent and returns the receiver for chaining.
func (c *Client) Init() (*Client, error) {
	if c.initialized {
		return c, nil
	}

	if err := c.opts.validate(); err != nil {
		return nil, fmt.Errorf("invalid S3 options: %w", err)
	}

	if c.opts.s3API != nil {
		c.client = c.opts.s3API
	} else {
		c.client = s3.NewFromConfig(*c.awsCfg, func(o *s3.Options) {
			if c.opts.baseEndpoint != "" {
				o.BaseEndpoint = aws.String(c.opts.baseEndpoint)
			}
			o.UsePathStyle = c.opts.usePathStyle
		})
	}

	c.initialized = true

	return c, nil
}

// Download streams bucket/key into the file at path, creating its directory
// if needed and truncating any previous content.
func (c *Client) Download(ctx context.Context, bucket, key, path string) error {
	if !c.initialized {
		return errors.New("S3 client not initialized")
	}

	logger := c.logger.WithField("bucket", bucket).WithField("key", key)

	out, err := c.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("failed to get s3://%s/%s: %w", bucket, key, err)
	}
	defer out.Body.Close()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", path, err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}

	n, err := io.Copy(f, out.Body)
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}

	if err != nil {
		return fmt.Errorf("failed to download s3://%s/%s: %w", bucket, key, err)
	}

	logger.WithField("bytes", n).WithField("path", path).Debug("S3 object downloaded")

	return nil
}

// Delete removes bucket/key.
func (c *Client) Delete(ctx context.Context, bucket, key string) error {
	if !c.initialized {
		return errors.New("S3 client not initialized")
	}

	if _, err := c.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	}); err != nil {
		return fmt.Errorf("failed to delete s3://%s/%s: %w", bucket, key, err)
	}

	c.logger.WithField("bucket", bucket).WithField("key", key).Debug("S3 object deleted")

	return nil
}
