package awskms

import (
	"context"
	"encoding/base64"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/kms"
	"github.com/aws/aws-sdk-go-v2/service/kms/types"
	"github.com/hengadev/encattr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockKMSClient struct {
	mock.Mock
}

func (m *mockKMSClient) DescribeKey(ctx context.Context, params *kms.DescribeKeyInput, optFns ...func(*kms.Options)) (*kms.DescribeKeyOutput, error) {
	args := m.Called(ctx, params)
	out, _ := args.Get(0).(*kms.DescribeKeyOutput)
	return out, args.Error(1)
}

func (m *mockKMSClient) CreateKey(ctx context.Context, params *kms.CreateKeyInput, optFns ...func(*kms.Options)) (*kms.CreateKeyOutput, error) {
	args := m.Called(ctx, params)
	out, _ := args.Get(0).(*kms.CreateKeyOutput)
	return out, args.Error(1)
}

func (m *mockKMSClient) Encrypt(ctx context.Context, params *kms.EncryptInput, optFns ...func(*kms.Options)) (*kms.EncryptOutput, error) {
	args := m.Called(ctx, params)
	out, _ := args.Get(0).(*kms.EncryptOutput)
	return out, args.Error(1)
}

func (m *mockKMSClient) Decrypt(ctx context.Context, params *kms.DecryptInput, optFns ...func(*kms.Options)) (*kms.DecryptOutput, error) {
	args := m.Called(ctx, params)
	out, _ := args.Get(0).(*kms.DecryptOutput)
	return out, args.Error(1)
}

func newTestService(client *mockKMSClient) *KMSService {
	return &KMSService{client: client, region: "eu-west-1"}
}

func TestNewWithCustomConfig(t *testing.T) {
	svc, err := New(context.Background(), Config{AWSConfig: &aws.Config{Region: "eu-west-1"}})
	require.NoError(t, err)
	assert.Equal(t, "eu-west-1", svc.Region())
	assert.NotNil(t, svc.client)
}

func TestGetKeyID(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name      string
		alias     string
		wantAlias string
	}{
		{"adds prefix", "users-kek", "alias/users-kek"},
		{"keeps prefix", "alias/users-kek", "alias/users-kek"},
		{"short alias", "kek", "alias/kek"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := &mockKMSClient{}
			client.On("DescribeKey", ctx, mock.MatchedBy(func(in *kms.DescribeKeyInput) bool {
				return aws.ToString(in.KeyId) == tt.wantAlias
			})).Return(&kms.DescribeKeyOutput{KeyMetadata: &types.KeyMetadata{KeyId: aws.String("key-123")}}, nil)

			id, err := newTestService(client).GetKeyID(ctx, tt.alias)
			require.NoError(t, err)
			assert.Equal(t, "key-123", id)
			client.AssertExpectations(t)
		})
	}
}

func TestGetKeyIDErrors(t *testing.T) {
	ctx := context.Background()

	_, err := newTestService(&mockKMSClient{}).GetKeyID(ctx, "")
	assert.ErrorIs(t, err, encattr.ErrInvalidConfiguration)

	client := &mockKMSClient{}
	client.On("DescribeKey", ctx, mock.Anything).Return(nil, errors.New("NotFoundException")).Once()
	client.On("DescribeKey", ctx, mock.Anything).Return(&kms.DescribeKeyOutput{}, nil).Once()
	svc := newTestService(client)

	_, err = svc.GetKeyID(ctx, "missing")
	assert.ErrorIs(t, err, encattr.ErrKMSUnavailable)
	assert.True(t, encattr.IsRetryableError(err))

	_, err = svc.GetKeyID(ctx, "no-metadata")
	assert.ErrorIs(t, err, encattr.ErrKMSUnavailable)
}

func TestCreateKey(t *testing.T) {
	ctx := context.Background()
	client := &mockKMSClient{}
	client.On("CreateKey", ctx, mock.MatchedBy(func(in *kms.CreateKeyInput) bool {
		return aws.ToString(in.Description) == "users-kek" &&
			in.KeyUsage == types.KeyUsageTypeEncryptDecrypt &&
			in.KeySpec == types.KeySpecSymmetricDefault
	})).Return(&kms.CreateKeyOutput{KeyMetadata: &types.KeyMetadata{KeyId: aws.String("new-key")}}, nil)

	id, err := newTestService(client).CreateKey(ctx, "users-kek")
	require.NoError(t, err)
	assert.Equal(t, "new-key", id)

	failing := &mockKMSClient{}
	failing.On("CreateKey", ctx, mock.Anything).Return(nil, errors.New("LimitExceededException"))
	_, err = newTestService(failing).CreateKey(ctx, "users-kek")
	assert.ErrorIs(t, err, encattr.ErrKMSUnavailable)
}

func TestEncryptDecryptDEK(t *testing.T) {
	ctx := context.Background()
	dek := []byte("0123456789abcdef0123456789abcdef")
	blob := []byte("kms-ciphertext-blob")

	client := &mockKMSClient{}
	client.On("Encrypt", ctx, mock.MatchedBy(func(in *kms.EncryptInput) bool {
		return aws.ToString(in.KeyId) == "key-123" && string(in.Plaintext) == string(dek)
	})).Return(&kms.EncryptOutput{CiphertextBlob: blob}, nil)
	client.On("Decrypt", ctx, mock.MatchedBy(func(in *kms.DecryptInput) bool {
		return string(in.CiphertextBlob) == string(blob) && aws.ToString(in.KeyId) == "key-123"
	})).Return(&kms.DecryptOutput{Plaintext: dek}, nil)
	svc := newTestService(client)

	wrapped, err := svc.EncryptDEK(ctx, "key-123", dek)
	require.NoError(t, err)
	assert.Equal(t, base64.StdEncoding.EncodeToString(blob), string(wrapped))

	plain, err := svc.DecryptDEK(ctx, "key-123", wrapped)
	require.NoError(t, err)
	assert.Equal(t, dek, plain)
	client.AssertExpectations(t)
}

func TestEncryptDecryptDEKErrors(t *testing.T) {
	ctx := context.Background()

	svc := newTestService(&mockKMSClient{})
	_, err := svc.EncryptDEK(ctx, "key-123", nil)
	assert.ErrorIs(t, err, encattr.ErrEncryptionFailed)
	_, err = svc.DecryptDEK(ctx, "key-123", nil)
	assert.ErrorIs(t, err, encattr.ErrDecryptionFailed)
	_, err = svc.DecryptDEK(ctx, "key-123", []byte("not base64!"))
	assert.ErrorIs(t, err, encattr.ErrDecryptionFailed)

	client := &mockKMSClient{}
	client.On("Encrypt", ctx, mock.Anything).Return(&kms.EncryptOutput{}, nil)
	client.On("Decrypt", ctx, mock.Anything).Return(nil, errors.New("InvalidCiphertextException"))
	svc = newTestService(client)

	_, err = svc.EncryptDEK(ctx, "key-123", []byte("dek"))
	assert.ErrorIs(t, err, encattr.ErrEncryptionFailed)
	_, err = svc.DecryptDEK(ctx, "", []byte(base64.StdEncoding.EncodeToString([]byte("blob"))))
	assert.ErrorIs(t, err, encattr.ErrDecryptionFailed)
	assert.True(t, encattr.IsOperationError(err))
}
