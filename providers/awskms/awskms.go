// Package awskms wraps attribute data keys with AWS Key Management Service.
//
// KMSService implements encattr.KeyManagementService and is meant to back an
// encattr.Keyring:
//
//	kms, err := awskms.New(ctx, awskms.Config{Region: "eu-west-1"})
//	keyring, err := encattr.NewKeyring(ctx, kms, "alias/users-kek", ".encattr/keys.db")
package awskms

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/kms"
	"github.com/aws/aws-sdk-go-v2/service/kms/types"
	"github.com/hengadev/encattr"
)

const aliasPrefix = "alias/"

// kmsClient is the subset of the KMS API used here, so tests can mock it.
type kmsClient interface {
	DescribeKey(ctx context.Context, params *kms.DescribeKeyInput, optFns ...func(*kms.Options)) (*kms.DescribeKeyOutput, error)
	CreateKey(ctx context.Context, params *kms.CreateKeyInput, optFns ...func(*kms.Options)) (*kms.CreateKeyOutput, error)
	Encrypt(ctx context.Context, params *kms.EncryptInput, optFns ...func(*kms.Options)) (*kms.EncryptOutput, error)
	Decrypt(ctx context.Context, params *kms.DecryptInput, optFns ...func(*kms.Options)) (*kms.DecryptOutput, error)
}

// KMSService implements encattr.KeyManagementService using AWS KMS.
type KMSService struct {
	client kmsClient
	region string
}

// Config holds configuration for AWS KMS service.
type Config struct {
	// Region is the AWS region. Empty falls back to AWS_REGION or the shared config.
	Region string

	// AWSConfig, when set, is used as is and Region is ignored.
	AWSConfig *aws.Config
}

// New creates a KMS service from cfg.
func New(ctx context.Context, cfg Config) (*KMSService, error) {
	awsConfig, err := loadAWSConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return &KMSService{
		client: kms.NewFromConfig(awsConfig),
		region: awsConfig.Region,
	}, nil
}

func loadAWSConfig(ctx context.Context, cfg Config) (aws.Config, error) {
	if cfg.AWSConfig != nil {
		return *cfg.AWSConfig, nil
	}
	var opts []func(*config.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, config.WithRegion(cfg.Region))
	}
	awsConfig, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return aws.Config{}, fmt.Errorf("%w: failed to load AWS config: %w", encattr.ErrKMSUnavailable, err)
	}
	return awsConfig, nil
}

// GetKeyID resolves alias to a key ID. The "alias/" prefix is added when missing.
func (k *KMSService) GetKeyID(ctx context.Context, alias string) (string, error) {
	if alias == "" {
		return "", fmt.Errorf("%w: alias cannot be empty", encattr.ErrInvalidConfiguration)
	}
	if !strings.HasPrefix(alias, aliasPrefix) {
		alias = aliasPrefix + alias
	}

	result, err := k.client.DescribeKey(ctx, &kms.DescribeKeyInput{KeyId: aws.String(alias)})
	if err != nil {
		return "", fmt.Errorf("%w: failed to describe KMS key %s: %w", encattr.ErrKMSUnavailable, alias, err)
	}
	if result.KeyMetadata == nil || result.KeyMetadata.KeyId == nil {
		return "", fmt.Errorf("%w: no key metadata returned for alias %s", encattr.ErrKMSUnavailable, alias)
	}
	return *result.KeyMetadata.KeyId, nil
}

// CreateKey creates a symmetric encrypt/decrypt key. Aliases are managed
// outside this package.
func (k *KMSService) CreateKey(ctx context.Context, description string) (string, error) {
	result, err := k.client.CreateKey(ctx, &kms.CreateKeyInput{
		Description: aws.String(description),
		KeyUsage:    types.KeyUsageTypeEncryptDecrypt,
		KeySpec:     types.KeySpecSymmetricDefault,
		MultiRegion: aws.Bool(false),
	})
	if err != nil {
		return "", fmt.Errorf("%w: failed to create KMS key: %w", encattr.ErrKMSUnavailable, err)
	}
	if result.KeyMetadata == nil || result.KeyMetadata.KeyId == nil {
		return "", fmt.Errorf("%w: no key metadata returned after creation", encattr.ErrKMSUnavailable)
	}
	return *result.KeyMetadata.KeyId, nil
}

// EncryptDEK wraps a data key. The ciphertext blob is returned base64 encoded.
func (k *KMSService) EncryptDEK(ctx context.Context, keyID string, plaintext []byte) ([]byte, error) {
	if len(plaintext) == 0 {
		return nil, fmt.Errorf("%w: plaintext cannot be empty", encattr.ErrEncryptionFailed)
	}

	result, err := k.client.Encrypt(ctx, &kms.EncryptInput{
		KeyId:     aws.String(keyID),
		Plaintext: plaintext,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: failed to encrypt DEK with KMS key %s: %w", encattr.ErrEncryptionFailed, keyID, err)
	}
	if result.CiphertextBlob == nil {
		return nil, fmt.Errorf("%w: no ciphertext returned from KMS", encattr.ErrEncryptionFailed)
	}
	return []byte(base64.StdEncoding.EncodeToString(result.CiphertextBlob)), nil
}

// DecryptDEK unwraps a data key produced by EncryptDEK. keyID may be empty since
// the ciphertext blob names its key.
func (k *KMSService) DecryptDEK(ctx context.Context, keyID string, ciphertext []byte) ([]byte, error) {
	if len(ciphertext) == 0 {
		return nil, fmt.Errorf("%w: ciphertext cannot be empty", encattr.ErrDecryptionFailed)
	}
	blob, err := base64.StdEncoding.DecodeString(string(ciphertext))
	if err != nil {
		return nil, fmt.Errorf("%w: failed to decode ciphertext: %w", encattr.ErrDecryptionFailed, err)
	}

	input := &kms.DecryptInput{CiphertextBlob: blob}
	if keyID != "" {
		input.KeyId = aws.String(keyID)
	}
	result, err := k.client.Decrypt(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to decrypt DEK: %w", encattr.ErrDecryptionFailed, err)
	}
	if result.Plaintext == nil {
		return nil, fmt.Errorf("%w: no plaintext returned from KMS", encattr.ErrDecryptionFailed)
	}
	return result.Plaintext, nil
}

// Region returns the AWS region this KMS service is configured for.
func (k *KMSService) Region() string {
	return k.region
}

var _ encattr.KeyManagementService = (*KMSService)(nil)
