package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/kozaktomas/sketch-match/internal/apperr"
	"github.com/kozaktomas/sketch-match/internal/metrics"
)

// S3API is the subset of the S3 client used by S3Store.
type S3API interface {
	s3.ListObjectsV2APIClient
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// S3Store is an ObjectStore backed by an S3 bucket.
type S3Store struct {
	client S3API
	bucket string
}

// NewS3Store creates a store for bucket.
func NewS3Store(client S3API, bucket string) *S3Store {
	return &S3Store{client: client, bucket: bucket}
}

// Bucket returns the bucket name.
func (s *S3Store) Bucket() string {
	return s.bucket
}

// ListObjects pages through every key under prefix and keeps the image keys.
func (s *S3Store) ListObjects(ctx context.Context, prefix string) (keys []string, err error) {
	start := time.Now()
	defer func() { metrics.ObserveCall("s3", "list_objects", start, err) }()

	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(prefix),
	})

	keys = []string{}
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, apperr.Transport("storage.list_objects", fmt.Errorf("could not list %s/%s: %w", s.bucket, prefix, err))
		}
		for _, obj := range page.Contents {
			key := aws.ToString(obj.Key)
			if IsImageKey(key) {
				keys = append(keys, key)
			}
		}
	}
	return keys, nil
}

// PutObject uploads data under key. There is no overwrite protection.
func (s *S3Store) PutObject(ctx context.Context, key string, data []byte, contentType string) (err error) {
	start := time.Now()
	defer func() { metrics.ObserveCall("s3", "put_object", start, err) }()

	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
		ContentType:   aws.String(contentType),
	})
	if err != nil {
		return apperr.Transport("storage.put_object", fmt.Errorf("could not upload %s: %w", key, err))
	}
	return nil
}

// GetObject downloads an object. A missing key wraps ErrNotFound.
func (s *S3Store) GetObject(ctx context.Context, key string) (data []byte, contentType string, err error) {
	start := time.Now()
	defer func() { metrics.ObserveCall("s3", "get_object", start, err) }()

	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var noSuchKey *types.NoSuchKey
		if errors.As(err, &noSuchKey) {
			return nil, "", apperr.Transport("storage.get_object", fmt.Errorf("%w: %s", ErrNotFound, key))
		}
		return nil, "", apperr.Transport("storage.get_object", fmt.Errorf("could not download %s: %w", key, err))
	}
	defer out.Body.Close()

	data, err = io.ReadAll(out.Body)
	if err != nil {
		return nil, "", apperr.Transport("storage.get_object", fmt.Errorf("could not read %s: %w", key, err))
	}
	return data, aws.ToString(out.ContentType), nil
}
