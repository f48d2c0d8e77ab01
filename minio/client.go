// Package minio downloads and deletes notified objects on S3-compatible
// object stores (MinIO, Ceph RGW, ...) using the MinIO client.
package minio

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/slackmgr/types"
)

// API is the subset of *minio.Client used by [Client].
type API interface {
	FGetObject(ctx context.Context, bucketName, objectName, filePath string, opts minio.GetObjectOptions) error
	RemoveObject(ctx context.Context, bucketName, objectName string, opts minio.RemoveObjectOptions) error
}

// Option is a functional option for configuring a [Client].
type Option func(*Options)

// Options holds the configuration for a [Client].
type Options struct {
	useSSL          bool
	region          string
	accessKeyID     string
	secretAccessKey string
	sessionToken    string
	api             API
}

func newOptions() *Options {
	return &Options{useSSL: true}
}

func (o *Options) validate() error {
	if (o.accessKeyID == "") != (o.secretAccessKey == "") {
		return errors.New("access key ID and secret access key must be set together")
	}

	return nil
}

// WithSSL selects HTTPS (the default) or plain HTTP.
func WithSSL(enabled bool) Option {
	return func(o *Options) {
		o.useSSL = enabled
	}
}

// WithRegion sets the bucket region, skipping region discovery.
func WithRegion(region string) Option {
	return func(o *Options) {
		o.region = region
	}
}

// WithStaticCredentials sets an explicit key pair. Without it credentials
// are read from the AWS and MinIO environment variables, the shared AWS
// credentials file and finally the instance metadata service.
func WithStaticCredentials(accessKeyID, secretAccessKey, sessionToken string) Option {
	return func(o *Options) {
		o.accessKeyID = accessKeyID
		o.secretAccessKey = secretAccessKey
		o.sessionToken = sessionToken
	}
}

// WithAPI sets a custom [API] implementation for tests.
func WithAPI(api API) Option {
	return func(o *Options) {
		o.api = api
	}
}

// Client downloads objects to local files and deletes them on request.
// It is safe for concurrent use after Init.
type Client struct {
	client      API
	endpoint    string
	opts        *Options
	logger      types.Logger
	initialized bool
}

// New creates a Client for the store at endpoint ("host:port").
func New(endpoint string, logger types.Logger, opts ...Option) *Client {
	options := newOptions()

	for _, o := range opts {
		o(options)
	}

	return &Client{
		endpoint: endpoint,
		opts:     options,
		logger:   logger.WithField("plugin", "minio").WithField("endpoint", endpoint),
	}
}

// Init validates the options and creates the MinIO client.
func (c *Client) Init() (*Client, error) {
	if c.initialized {
		return c, nil
	}

	if c.endpoint == "" {
		return nil, errors.New("object store endpoint cannot be empty")
	}

	if err := c.opts.validate(); err != nil {
		return nil, fmt.Errorf("invalid MinIO options: %w", err)
	}

	if c.opts.api != nil {
		c.client = c.opts.api
	} else {
		client, err := minio.New(c.endpoint, &minio.Options{
			Creds:  c.credentials(),
			Secure: c.opts.useSSL,
			Region: c.opts.region,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create MinIO client: %w", err)
		}

		c.client = client
	}

	c.initialized = true

	return c, nil
}

func (c *Client) credentials() *credentials.Credentials {
	if c.opts.accessKeyID != "" {
		return credentials.NewStaticV4(c.opts.accessKeyID, c.opts.secretAccessKey, c.opts.sessionToken)
	}

	return credentials.NewChainCredentials([]credentials.Provider{
		&credentials.EnvAWS{},
		&credentials.EnvMinio{},
		&credentials.FileAWSCredentials{},
		&credentials.IAM{Client: &http.Client{Transport: http.DefaultTransport}},
	})
}

// Download writes bucket/key to the file at path.
func (c *Client) Download(ctx context.Context, bucket, key, path string) error {
	if !c.initialized {
		return errors.New("MinIO client not initialized")
	}

	if err := c.client.FGetObject(ctx, bucket, key, path, minio.GetObjectOptions{}); err != nil {
		return fmt.Errorf("failed to download %s/%s: %w", bucket, key, err)
	}

	c.logger.WithField("bucket", bucket).WithField("key", key).Debug("Object downloaded")

	return nil
}

// Delete removes bucket/key.
func (c *Client) Delete(ctx context.Context, bucket, key string) error {
	if !c.initialized {
		return errors.New("MinIO client not initialized")
	}

	if err := c.client.RemoveObject(ctx, bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("failed to delete %s/%s: %w", bucket, key, err)
	}

	c.logger.WithField("bucket", bucket).WithField("key", key).Debug("Object deleted")

	return nil
}
