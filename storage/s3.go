package storage

import (
	"context"
	"fmt"
	"io"
	"iter"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	pkgerrors "github.com/pkg/errors"

	"github.com/nijaru/vidsum/errors"
	"github.com/nijaru/vidsum/models"
)

// S3API is the subset of the S3 client the store uses.
type S3API interface {
	s3.ListObjectsV2APIClient
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

type S3Store struct {
	client   S3API
	pageSize int32
}

func NewS3Store(client S3API) *S3Store {
	return &S3Store{
		client:   client,
		pageSize: 1000,
	}
}

func NewS3StoreFromConfig(awsCfg aws.Config) *S3Store {
	return NewS3Store(s3.NewFromConfig(awsCfg))
}

// Objects lists keys under prefix that end in suffix, one page at a time.
// Each range over the returned sequence starts a fresh listing. A listing
// error is yielded once and ends the sequence.
func (s *S3Store) Objects(ctx context.Context, bucket, prefix, suffix string) iter.Seq2[models.ResourceRef, error] {
	const op = "S3Store.Objects"
	suffix = strings.ToLower(suffix)

	return func(yield func(models.ResourceRef, error) bool) {
		paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
			Bucket:  aws.String(bucket),
			Prefix:  aws.String(prefix),
			MaxKeys: aws.Int32(s.pageSize),
		})

		for paginator.HasMorePages() {
			page, err := paginator.NextPage(ctx)
			if err != nil {
				msg := fmt.Sprintf("failed to list s3://%s/%s", bucket, prefix)
				yield(models.ResourceRef{}, errors.Transport(op, pkgerrors.Wrap(err, "list objects"), msg))
				return
			}

			for _, obj := range page.Contents {
				key := aws.ToString(obj.Key)
				if key == "" || strings.HasSuffix(key, "/") {
					continue
				}
				if suffix != "" && !strings.HasSuffix(strings.ToLower(key), suffix) {
					continue
				}

				ref := models.ResourceRef{
					Bucket: bucket,
					Key:    key,
					Size:   aws.ToInt64(obj.Size),
				}
				if !yield(ref, nil) {
					return
				}
			}
		}
	}
}

// Collect drains a listing into a slice, stopping at the first error.
func Collect(seq iter.Seq2[models.ResourceRef, error]) ([]models.ResourceRef, error) {
	var refs []models.ResourceRef
	for ref, err := range seq {
		if err != nil {
			return nil, err
		}
		refs = append(refs, ref)
	}
	return refs, nil
}

func (s *S3Store) Upload(ctx context.Context, bucket, key string, body io.Reader, contentType string) error {
	const op = "S3Store.Upload"

	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(bucket),
		Key:         aws.String(key),
		Body:        body,
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return errors.Transport(op, pkgerrors.Wrap(err, "put object"), fmt.Sprintf("failed to upload s3://%s/%s", bucket, key))
	}

	return nil
}

// Open returns the object body. The caller must close it.
func (s *S3Store) Open(ctx context.Context, bucket, key string) (io.ReadCloser, error) {
	const op = "S3Store.Open"

	result, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, errors.Transport(op, pkgerrors.Wrap(err, "get object"), fmt.Sprintf("failed to download s3://%s/%s", bucket, key))
	}

	return result.Body, nil
}

// Download copies the object into local storage under its base name and
// returns the local path.
func (s *S3Store) Download(ctx context.Context, ref models.ResourceRef, local *LocalStore) (string, error) {
	body, err := s.Open(ctx, ref.Bucket, ref.Key)
	if err != nil {
		return "", err
	}
	defer body.Close()

	return local.Save(ref.Name(), body)
}
