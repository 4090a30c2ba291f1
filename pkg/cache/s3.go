package cache

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// S3API is the subset of the S3 client used by S3Store.
type S3API interface {
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
	s3.ListObjectsV2APIClient
}

// S3Store keeps one JSON envelope per entry as an object under a prefix.
type S3Store struct {
	client S3API
	bucket string
	prefix string
}

var _ Store = (*S3Store)(nil)

// OpenS3Store builds a store from the default AWS configuration chain.
func OpenS3Store(ctx context.Context, bucket, prefix string) (*S3Store, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("cache: load AWS config: %w", err)
	}
	return NewS3Store(s3.NewFromConfig(cfg), bucket, prefix)
}

// NewS3Store wraps an existing client.
func NewS3Store(client S3API, bucket, prefix string) (*S3Store, error) {
	if client == nil {
		return nil, errors.New("cache: s3 client cannot be nil")
	}
	if bucket == "" {
		return nil, errors.New("cache: s3 bucket is required")
	}
	return &S3Store{client: client, bucket: bucket, prefix: strings.Trim(prefix, "/")}, nil
}

func (s *S3Store) Get(ctx context.Context, key string) (*Entry, error) {
	e, err := s.read(ctx, s.objectKey(key))
	if err != nil {
		return nil, err
	}
	if e.Key != key {
		return nil, ErrNotFound
	}
	return e, nil
}

func (s *S3Store) Set(ctx context.Context, e *Entry) error {
	data, err := encodeEnvelope(e)
	if err != nil {
		return fmt.Errorf("cache: encode %s: %w", e.Key, err)
	}
	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(s.objectKey(e.Key)),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("cache: s3 put %s: %w", e.Key, err)
	}
	return nil
}

func (s *S3Store) Delete(ctx context.Context, key string) error {
	return s.deleteObject(ctx, s.objectKey(key))
}

func (s *S3Store) Purge(ctx context.Context, now time.Time) (int, error) {
	keys, err := s.list(ctx)
	if err != nil {
		return 0, err
	}
	var n int
	for _, k := range keys {
		e, err := s.read(ctx, k)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err == nil && !e.Expired(now) {
			continue
		}
		if s.deleteObject(ctx, k) == nil {
			n++
		}
	}
	return n, nil
}

func (s *S3Store) Clear(ctx context.Context) error {
	keys, err := s.list(ctx)
	if err != nil {
		return err
	}
	for _, k := range keys {
		if err := s.deleteObject(ctx, k); err != nil {
			return err
		}
	}
	return nil
}

func (s *S3Store) Close() error { return nil }

// read fetches and decodes one object. Undecodable objects are reported as
// errors other than ErrNotFound.
func (s *S3Store) read(ctx context.Context, objectKey string) (*Entry, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(objectKey),
	})
	if err != nil {
		var nsk *types.NoSuchKey
		if errors.As(err, &nsk) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("cache: s3 get %s: %w", objectKey, err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("cache: s3 read %s: %w", objectKey, err)
	}
	e, err := decodeEnvelope(data)
	if err != nil {
		return nil, fmt.Errorf("cache: decode %s: %w", objectKey, err)
	}
	return e, nil
}

func (s *S3Store) deleteObject(ctx context.Context, objectKey string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(objectKey),
	})
	if err != nil {
		return fmt.Errorf("cache: s3 delete %s: %w", objectKey, err)
	}
	return nil
}

func (s *S3Store) list(ctx context.Context) ([]string, error) {
	input := &s3.ListObjectsV2Input{Bucket: aws.String(s.bucket)}
	if s.prefix != "" {
		input.Prefix = aws.String(s.prefix + "/")
	}
	var keys []string
	p := s3.NewListObjectsV2Paginator(s.client, input)
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("cache: s3 list: %w", err)
		}
		for _, obj := range page.Contents {
			if obj.Key != nil && strings.HasSuffix(*obj.Key, fileSuffix) {
				keys = append(keys, *obj.Key)
			}
		}
	}
	return keys, nil
}

func (s *S3Store) objectKey(key string) string {
	name := sanitizeKey(key) + fileSuffix
	if s.prefix == "" {
		return name
	}
	return path.Join(s.prefix, name)
}
