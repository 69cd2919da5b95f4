// Package storagetest provides an in-memory S3 for tests.
package storagetest

import (
	"bytes"
	"context"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

type FakeS3 struct {
	mu      sync.Mutex
	objects map[string]map[string][]byte

	// PageSize caps keys per listing page; zero means the request's MaxKeys.
	PageSize int32

	ListErr error
	PutErr  error
	GetErr  error

	ListCalls int
	PutCalls  int
	GetCalls  int
}

func NewFakeS3() *FakeS3 {
	return &FakeS3{objects: make(map[string]map[string][]byte)}
}

func (f *FakeS3) Put(bucket, key string, data []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.objects[bucket] == nil {
		f.objects[bucket] = make(map[string][]byte)
	}
	f.objects[bucket][key] = data
}

func (f *FakeS3) Object(bucket, key string) ([]byte, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	data, ok := f.objects[bucket][key]
	return data, ok
}

func (f *FakeS3) ListObjectsV2(ctx context.Context, in *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.ListCalls++
	if f.ListErr != nil {
		return nil, f.ListErr
	}

	prefix := aws.ToString(in.Prefix)
	after := aws.ToString(in.ContinuationToken)

	var keys []string
	for key := range f.objects[aws.ToString(in.Bucket)] {
		if strings.HasPrefix(key, prefix) && key > after {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)

	limit := f.PageSize
	if limit <= 0 {
		limit = aws.ToInt32(in.MaxKeys)
	}
	if limit <= 0 {
		limit = 1000
	}

	out := &s3.ListObjectsV2Output{IsTruncated: aws.Bool(false)}
	if int32(len(keys)) > limit {
		keys = keys[:limit]
		out.IsTruncated = aws.Bool(true)
		out.NextContinuationToken = aws.String(keys[len(keys)-1])
	}

	for _, key := range keys {
		out.Contents = append(out.Contents, types.Object{
			Key:          aws.String(key),
			Size:         aws.Int64(int64(len(f.objects[aws.ToString(in.Bucket)][key]))),
			LastModified: aws.Time(time.Now()),
		})
	}
	out.KeyCount = aws.Int32(int32(len(out.Contents)))

	return out, nil
}

func (f *FakeS3) PutObject(ctx context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.mu.Lock()
	f.PutCalls++
	putErr := f.PutErr
	f.mu.Unlock()

	if putErr != nil {
		return nil, putErr
	}

	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.Put(aws.ToString(in.Bucket), aws.ToString(in.Key), data)

	return &s3.PutObjectOutput{}, nil
}

func (f *FakeS3) GetObject(ctx context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.GetCalls++
	if f.GetErr != nil {
		return nil, f.GetErr
	}

	data, ok := f.objects[aws.ToString(in.Bucket)][aws.ToString(in.Key)]
	if !ok {
		return nil, &types.NoSuchKey{Message: aws.String("The specified key does not exist.")}
	}

	return &s3.GetObjectOutput{
		Body:          io.NopCloser(bytes.NewReader(data)),
		ContentLength: aws.Int64(int64(len(data))),
	}, nil
}
