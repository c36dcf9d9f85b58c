// Package aws stores named attribute keys in AWS Secrets Manager.
//
// Keys are base64 encoded into the secret string at "encattr/{ref}/key".
package aws

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager/types"
	"github.com/hengadev/encattr"
)

// secretsManagerClient is the subset of the Secrets Manager API used here, so tests can mock it.
type secretsManagerClient interface {
	CreateSecret(ctx context.Context, params *secretsmanager.CreateSecretInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.CreateSecretOutput, error)
	GetSecretValue(ctx context.Context, params *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error)
	PutSecretValue(ctx context.Context, params *secretsmanager.PutSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.PutSecretValueOutput, error)
	DescribeSecret(ctx context.Context, params *secretsmanager.DescribeSecretInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.DescribeSecretOutput, error)
}

// SecretsManagerStore implements encattr.SecretManagementService using AWS Secrets Manager.
type SecretsManagerStore struct {
	client secretsManagerClient
	region string
}

// NewSecretsManagerStore creates a store from cfg.
//
//	store, err := aws.NewSecretsManagerStore(ctx, aws.Config{Region: "us-east-1"})
//	resolver, err := encattr.NewSecretKeyResolver(store)
func NewSecretsManagerStore(ctx context.Context, cfg Config) (*SecretsManagerStore, error) {
	awsConfig := aws.Config{}
	if cfg.AWSConfig != nil {
		awsConfig = *cfg.AWSConfig
	} else {
		var opts []func(*config.LoadOptions) error
		if cfg.Region != "" {
			opts = append(opts, config.WithRegion(cfg.Region))
		}
		var err error
		awsConfig, err = config.LoadDefaultConfig(ctx, opts...)
		if err != nil {
			return nil, fmt.Errorf("%w: failed to load AWS config: %w", encattr.ErrSecretStorageUnavailable, err)
		}
	}

	return &SecretsManagerStore{
		client: secretsmanager.NewFromConfig(awsConfig),
		region: awsConfig.Region,
	}, nil
}

// GetStoragePath returns the secret name for ref, "encattr/{ref}/key".
func (s *SecretsManagerStore) GetStoragePath(ref string) string {
	return fmt.Sprintf(encattr.AWSKeyPathTemplate, ref)
}

// StoreKey creates the secret for ref or puts a new version of it.
func (s *SecretsManagerStore) StoreKey(ctx context.Context, ref string, key []byte) error {
	if len(key) == 0 {
		return fmt.Errorf("%w: key for %q cannot be empty", encattr.ErrInvalidConfiguration, ref)
	}

	name := s.GetStoragePath(ref)
	encoded := base64.StdEncoding.EncodeToString(key)

	exists, err := s.KeyExists(ctx, ref)
	if err != nil {
		return err
	}

	if exists {
		_, err = s.client.PutSecretValue(ctx, &secretsmanager.PutSecretValueInput{
			SecretId:     aws.String(name),
			SecretString: aws.String(encoded),
		})
		if err != nil {
			return fmt.Errorf("%w: failed to update key in Secrets Manager: %w",
				encattr.ErrSecretStorageUnavailable, err)
		}
		return nil
	}

	_, err = s.client.CreateSecret(ctx, &secretsmanager.CreateSecretInput{
		Name:         aws.String(name),
		Description:  aws.String(fmt.Sprintf("encattr attribute key %s", ref)),
		SecretString: aws.String(encoded),
	})
	if err != nil {
		return fmt.Errorf("%w: failed to create key in Secrets Manager: %w",
			encattr.ErrSecretStorageUnavailable, err)
	}
	return nil
}

// GetKey reads and decodes the key stored for ref.
func (s *SecretsManagerStore) GetKey(ctx context.Context, ref string) ([]byte, error) {
	result, err := s.client.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId: aws.String(s.GetStoragePath(ref)),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: failed to get key from Secrets Manager: %w",
			encattr.ErrSecretStorageUnavailable, err)
	}
	if result.SecretString == nil {
		return nil, fmt.Errorf("%w: key not found for reference: %s",
			encattr.ErrSecretStorageUnavailable, ref)
	}

	key, err := base64.StdEncoding.DecodeString(*result.SecretString)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to decode key %s: %w",
			encattr.ErrSecretStorageUnavailable, ref, err)
	}
	return key, nil
}

// KeyExists reports whether the secret for ref exists. A missing secret is not an error.
func (s *SecretsManagerStore) KeyExists(ctx context.Context, ref string) (bool, error) {
	_, err := s.client.DescribeSecret(ctx, &secretsmanager.DescribeSecretInput{
		SecretId: aws.String(s.GetStoragePath(ref)),
	})
	if err != nil {
		var notFound *types.ResourceNotFoundException
		if errors.As(err, &notFound) {
			return false, nil
		}
		return false, fmt.Errorf("%w: failed to check if key exists: %w",
			encattr.ErrSecretStorageUnavailable, err)
	}
	return true, nil
}

// Region returns the AWS region this Secrets Manager store is configured for.
func (s *SecretsManagerStore) Region() string {
	return s.region
}

var _ encattr.SecretManagementService = (*SecretsManagerStore)(nil)
