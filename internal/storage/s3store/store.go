// Package s3store implements storage.Storage on S3-compatible object storage.
package s3store

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"

	"productsnap/internal/storage"
)

// Scheme prefixes every locator this store issues: s3://bucket/key.
const Scheme = "s3://"

type objectAPI interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

type presignAPI interface {
	PresignGetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
}

// Options configures New. Endpoint and static keys are for MinIO or R2 style
// deployments; leave them empty to use the default AWS credential chain.
type Options struct {
	Endpoint  string
	Region    string
	Bucket    string
	AccessKey string
	SecretKey string
}

type Store struct {
	client  objectAPI
	presign presignAPI
	bucket  string
}

func New(ctx context.Context, opts Options) (*Store, error) {
	if strings.TrimSpace(opts.Bucket) == "" {
		return nil, fmt.Errorf("s3 bucket is required")
	}

	loadOpts := []func(*awsconfig.LoadOptions) error{}
	if opts.Region != "" {
		loadOpts = append(loadOpts, awsconfig.WithRegion(opts.Region))
	}
	if opts.AccessKey != "" && opts.SecretKey != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(opts.AccessKey, opts.SecretKey, ""),
		))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
			o.UsePathStyle = true
		}
	})
	return newStore(client, s3.NewPresignClient(client), opts.Bucket), nil
}

func newStore(client objectAPI, presign presignAPI, bucket string) *Store {
	return &Store{client: client, presign: presign, bucket: strings.TrimSpace(bucket)}
}

func (s *Store) UploadBytes(ctx context.Context, data []byte, filename, contentType, folder string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	key := storage.NewKey(folder, filename)
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:               aws.String(s.bucket),
		Key:                  aws.String(key),
		Body:                 bytes.NewReader(data),
		ContentLength:        aws.Int64(int64(len(data))),
		ContentType:          aws.String(contentType),
		ServerSideEncryption: s3types.ServerSideEncryptionAes256,
	})
	if err != nil {
		return "", fmt.Errorf("s3 put object bucket=%s key=%s: %w", s.bucket, key, err)
	}
	return Scheme + s.bucket + "/" + key, nil
}

func (s *Store) Download(ctx context.Context, locator string) ([]byte, error) {
	bucket, key, ok := ParseLocator(locator)
	if !ok {
		return nil, nil
	}
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var missing *s3types.NoSuchKey
		if errors.As(err, &missing) {
			return nil, nil
		}
		return nil, fmt.Errorf("s3 get object bucket=%s key=%s: %w", bucket, key, err)
	}
	defer out.Body.Close()
	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("s3 read object bucket=%s key=%s: %w", bucket, key, err)
	}
	return data, nil
}

// Delete is idempotent on S3; a successful call reports true even when the
// key did not exist.
func (s *Store) Delete(ctx context.Context, locator string) (bool, error) {
	bucket, key, ok := ParseLocator(locator)
	if !ok {
		return false, nil
	}
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return false, fmt.Errorf("s3 delete object bucket=%s key=%s: %w", bucket, key, err)
	}
	return true, nil
}

func (s *Store) SignedURL(ctx context.Context, locator string, ttl time.Duration) (string, error) {
	bucket, key, ok := ParseLocator(locator)
	if !ok {
		return "", fmt.Errorf("s3store: foreign locator %q", locator)
	}
	req, err := s.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(ttl))
	if err != nil {
		return "", fmt.Errorf("s3 presign bucket=%s key=%s: %w", bucket, key, err)
	}
	return req.URL, nil
}

// ParseLocator splits s3://bucket/key.
func ParseLocator(locator string) (bucket, key string, ok bool) {
	if !strings.HasPrefix(locator, Scheme) {
		return "", "", false
	}
	rest := strings.TrimPrefix(locator, Scheme)
	bucket, key, found := strings.Cut(rest, "/")
	if !found || bucket == "" || key == "" {
		return "", "", false
	}
	return bucket, key, true
}

var _ storage.Storage = (*Store)(nil)
