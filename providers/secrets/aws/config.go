package aws

import "github.com/aws/aws-sdk-go-v2/aws"

// Config selects the AWS account and region holding the keys.
type Config struct {
	// Region is the AWS region. Empty falls back to AWS_REGION or the shared config.
	Region string

	// AWSConfig, when set, is used as is and Region is ignored.
	AWSConfig *aws.Config
}
