package validation

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/nijaru/vidsum/errors"
)

var (
	bucketNamePattern = regexp.MustCompile(`^[a-z0-9][a-z0-9.-]{1,61}[a-z0-9]$`)
	roleARNPattern    = regexp.MustCompile(`^arn:aws[a-z-]*:iam::\d{12}:role/[\w+=,.@/-]+$`)
	jobNamePattern    = regexp.MustCompile(`^[a-zA-Z0-9](-*[a-zA-Z0-9+\-.])*$`)
	accountIDPattern  = regexp.MustCompile(`^\d{12}$`)
)

// ValidateBucketName checks the S3 bucket naming rules that matter before
// any request is made.
func ValidateBucketName(bucket string) error {
	const op = "validation.ValidateBucketName"

	if bucket == "" {
		return errors.Configuration(op, nil, "bucket is required")
	}
	if !bucketNamePattern.MatchString(bucket) || strings.Contains(bucket, "..") {
		return errors.Configuration(op, nil, fmt.Sprintf("invalid bucket name %q", bucket))
	}
	return nil
}

// ParseS3URI splits s3://bucket/key into its parts. The key may be empty
// or a prefix ending in "/".
func ParseS3URI(uri string) (bucket, key string, err error) {
	const op = "validation.ParseS3URI"

	if uri == "" {
		return "", "", errors.Configuration(op, nil, "S3 URI is required")
	}

	parsed, perr := url.Parse(uri)
	if perr != nil {
		return "", "", errors.Configuration(op, perr, "invalid S3 URI format")
	}
	if parsed.Scheme != "s3" {
		return "", "", errors.Configuration(op, nil, fmt.Sprintf("S3 URI must use s3:// scheme: %q", uri))
	}
	if err := ValidateBucketName(parsed.Host); err != nil {
		return "", "", err
	}

	return parsed.Host, strings.TrimPrefix(parsed.Path, "/"), nil
}

func ValidateRoleARN(arn string) error {
	const op = "validation.ValidateRoleARN"

	if arn == "" {
		return errors.Configuration(op, nil, "service role ARN is required")
	}
	if !roleARNPattern.MatchString(arn) {
		return errors.Configuration(op, nil, fmt.Sprintf("invalid IAM role ARN %q", arn))
	}
	return nil
}

func ValidateModelID(modelID string) error {
	const op = "validation.ValidateModelID"

	if strings.TrimSpace(modelID) == "" {
		return errors.Configuration(op, nil, "model identifier is required")
	}
	if strings.ContainsAny(modelID, " \t\n") {
		return errors.Configuration(op, nil, fmt.Sprintf("invalid model identifier %q", modelID))
	}
	return nil
}

// ValidateJobName enforces the batch service's job name pattern and
// length limit.
func ValidateJobName(name string) error {
	const op = "validation.ValidateJobName"

	if name == "" || len(name) > 63 {
		return errors.Configuration(op, nil, "job name must be 1-63 characters")
	}
	if !jobNamePattern.MatchString(name) {
		return errors.Configuration(op, nil, fmt.Sprintf("invalid job name %q", name))
	}
	return nil
}

// ValidateAccountID accepts an empty owner since it is optional.
func ValidateAccountID(id string) error {
	const op = "validation.ValidateAccountID"

	if id == "" || accountIDPattern.MatchString(id) {
		return nil
	}
	return errors.Configuration(op, nil, fmt.Sprintf("invalid AWS account id %q", id))
}
