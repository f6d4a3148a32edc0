// Package objectstore retrieves uploaded archives from the S3 upload
// bucket.
//
// The AWS SDK client sits behind the narrow S3API interface so tests can
// substitute a double without network access.
package objectstore

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// Sentinel errors for object retrieval. Check with errors.Is().
var (
	// ErrObjectNotFound is returned when the bucket or key does not exist.
	ErrObjectNotFound = errors.New("objectstore: object not found")

	// ErrUnavailable is returned for transport-level or service failures.
	ErrUnavailable = errors.New("objectstore: storage unavailable")
)

// S3API is the subset of the AWS S3 client used by this package.
type S3API interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// Store reads objects from a single upload bucket.
type Store struct {
	api    S3API
	bucket string
}

// New constructs a Store over an existing S3 client implementation.
func New(api S3API, bucket string) *Store {
	return &Store{api: api, bucket: bucket}
}

// NewFromConfig constructs a Store backed by a real AWS S3 client using
// the default credential chain.
func NewFromConfig(ctx context.Context, region, bucket string) (*Store, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("loading AWS configuration: %w", err)
	}

	return New(s3.NewFromConfig(cfg), bucket), nil
}

// Fetch downloads the object at key and returns its full content.
func (s *Store) Fetch(ctx context.Context, key string) ([]byte, error) {
	if key == "" {
		return nil, fmt.Errorf("%w: empty object key", ErrObjectNotFound)
	}

	out, err := s.api.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, s.classify(key, err)
	}
	defer func() { _ = out.Body.Close() }()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: reading object %s/%s: %s", ErrUnavailable, s.bucket, key, err)
	}

	return data, nil
}

// classify maps AWS SDK failures onto the package sentinels.
func (s *Store) classify(key string, err error) error {
	var noKey *types.NoSuchKey
	var noBucket *types.NoSuchBucket
	if errors.As(err, &noKey) || errors.As(err, &noBucket) {
		return fmt.Errorf("%w: %s/%s", ErrObjectNotFound, s.bucket, key)
	}

	return fmt.Errorf("%w: fetching %s/%s: %s", ErrUnavailable, s.bucket, key, err)
}
