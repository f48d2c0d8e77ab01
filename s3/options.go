package s3

import (
	"errors"
	"net/url"
)

// Option is a functional option for configuring a [Client].
type Option func(*Options)

// Options holds the configuration for a [Client].
type Options struct {
	baseEndpoint string
	usePathStyle bool
	s3API        API
}

func newOptions() *Options {
	return &Options{}
}

func (o *Options) validate() error {
	if o.baseEndpoint != "" {
		u, err := url.Parse(o.baseEndpoint)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return errors.New("S3 base endpoint must be an absolute URL")
		}
	}

	return nil
}

// WithBaseEndpoint sends requests to endpoint instead of the regional AWS
// endpoint, e.g. for VPC endpoints or LocalStack.
func WithBaseEndpoint(endpoint string) Option {
	return func(o *Options) {
		o.baseEndpoint = endpoint
	}
}

// WithUsePathStyle addresses buckets as a path segment rather than a
// subdomain.
func WithUsePathStyle(enabled bool) Option {
	return func(o *Options) {
		o.usePathStyle = enabled
	}
}

// WithAPI sets a custom [API] implementation. This is useful for injecting
// mocks in tests.
func WithAPI(api API) Option {
	return func(o *Options) {
		o.s3API = api
	}
}
