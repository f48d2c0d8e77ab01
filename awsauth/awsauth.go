// Package awsauth builds the AWS configuration shared by the queue and
// object store clients.
//
// Credentials are resolved in a fixed order: an explicit static key pair,
// then an assumed role (obtained through STS with the default credential
// chain), then the default credential chain itself.
package awsauth

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/credentials/stscreds"
	"github.com/aws/aws-sdk-go-v2/service/sts"
)

// DefaultRoleSessionName is used when a role ARN is set without a session name.
const DefaultRoleSessionName = "s3ingest"

// Source names the credential source selected by [Credentials.Source].
type Source string

const (
	SourceStatic  Source = "static"
	SourceRole    Source = "assume_role"
	SourceDefault Source = "default_chain"
)

// Credentials holds the configured credential settings. All fields are
// optional.
type Credentials struct {
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	SessionToken    string
	RoleARN         string
	RoleSessionName string
}

// Source returns the credential source Load will use.
func (c Credentials) Source() Source {
	switch {
	case c.AccessKeyID != "" && c.SecretAccessKey != "":
		return SourceStatic
	case c.RoleARN != "":
		return SourceRole
	default:
		return SourceDefault
	}
}

func (c Credentials) validate() error {
	if (c.AccessKeyID == "") != (c.SecretAccessKey == "") {
		return errors.New("access key ID and secret access key must be set together")
	}

	return nil
}

// Load returns an AWS config using the credentials selected by c.Source.
func Load(ctx context.Context, c Credentials) (aws.Config, error) {
	if err := c.validate(); err != nil {
		return aws.Config{}, err
	}

	var loadOpts []func(*config.LoadOptions) error

	if c.Region != "" {
		loadOpts = append(loadOpts, config.WithRegion(c.Region))
	}

	if c.Source() == SourceStatic {
		loadOpts = append(loadOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(c.AccessKeyID, c.SecretAccessKey, c.SessionToken),
		))
	}

	cfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return aws.Config{}, fmt.Errorf("failed to load AWS config: %w", err)
	}

	if c.Source() == SourceRole {
		cfg.Credentials = assumeRoleProvider(sts.NewFromConfig(cfg), c.RoleARN, c.RoleSessionName)
	}

	return cfg, nil
}

func assumeRoleProvider(client stscreds.AssumeRoleAPIClient, roleARN, sessionName string) *aws.CredentialsCache {
	if sessionName == "" {
		sessionName = DefaultRoleSessionName
	}

	provider := stscreds.NewAssumeRoleProvider(client, roleARN, func(o *stscreds.AssumeRoleOptions) {
		o.RoleSessionName = sessionName
	})

	return aws.NewCredentialsCache(provider)
}
