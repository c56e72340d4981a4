// Package s3 stores media in an S3-compatible bucket (AWS S3 or MinIO).
package s3

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"

	"github.com/vidtube/backend/internal/storage"
	"github.com/vidtube/backend/pkg/breaker"
	"github.com/vidtube/backend/pkg/httpclient"
)

// API is the subset of *s3.Client used here.
type API interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
	HeadBucket(ctx context.Context, in *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
}

// Config configures the bucket connection.
type Config struct {
	Endpoint        string
	Region          string
	Bucket          string
	AccessKeyID     string
	SecretAccessKey string
	// PublicURL is the base for object URLs. Defaults to Endpoint/Bucket.
	PublicURL    string
	UsePathStyle bool
	// Timeout bounds every call to the bucket.
	Timeout time.Duration
}

func (c Config) publicBase() string {
	if c.PublicURL != "" {
		return strings.TrimRight(c.PublicURL, "/")
	}
	return strings.TrimRight(c.Endpoint, "/") + "/" + c.Bucket
}

// Storage implements storage.Storage on top of S3.
type Storage struct {
	api     API
	cfg     Config
	breaker *breaker.Breaker
	logger  *slog.Logger
}

// New builds an S3 client with static credentials and a custom endpoint.
// The SDK owns the transport so settings such as AWS_CA_BUNDLE still apply;
// httpCfg only tunes its pooling and timeouts.
func New(ctx context.Context, cfg Config, httpCfg httpclient.Config, cb *breaker.Breaker, logger *slog.Logger) (*Storage, error) {
	httpClient := awshttp.NewBuildableClient().
		WithTimeout(httpCfg.Timeout).
		WithTransportOptions(func(tr *http.Transport) {
			httpclient.ConfigureTransport(tr, httpCfg)
		})

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKeyID,
			cfg.SecretAccessKey,
			"",
		)),
		awsconfig.WithHTTPClient(httpClient),
	)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.UsePathStyle
	})

	return NewWithAPI(client, cfg, cb, logger), nil
}

// NewWithAPI wraps an existing client.
func NewWithAPI(api API, cfg Config, cb *breaker.Breaker, logger *slog.Logger) *Storage {
	return &Storage{api: api, cfg: cfg, breaker: cb, logger: logger}
}

func (s *Storage) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.cfg.Timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.cfg.Timeout)
}

// Upload puts the object under a fresh key and returns its public URL.
func (s *Storage) Upload(ctx context.Context, in *storage.UploadInput) (*storage.UploadResult, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	key := storage.NewKey(in.Folder, in.FileName)
	put := &s3.PutObjectInput{
		Bucket: aws.String(s.cfg.Bucket),
		Key:    aws.String(key),
		Body:   in.Body,
	}
	if in.ContentType != "" {
		put.ContentType = aws.String(in.ContentType)
	}
	if in.Size > 0 {
		put.ContentLength = aws.Int64(in.Size)
	}

	start := time.Now()
	_, err := breaker.Do(ctx, s.breaker, func(ctx context.Context) (*s3.PutObjectOutput, error) {
		return s.api.PutObject(ctx, put)
	})
	if err != nil {
		s.logger.WarnContext(ctx, "media upload failed",
			slog.String("key", key),
			slog.String("code", errorCode(err)),
		)
		return nil, fmt.Errorf("put object %s: %w", key, err)
	}

	s.logger.InfoContext(ctx, "media uploaded",
		slog.String("key", key),
		slog.Int64("size", in.Size),
		slog.Duration("duration", time.Since(start)),
	)

	return &storage.UploadResult{Key: key, URL: s.cfg.publicBase() + "/" + key}, nil
}

// Delete removes the object. A key that is already gone counts as deleted.
func (s *Storage) Delete(ctx context.Context, key string) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	_, err := breaker.Do(ctx, s.breaker, func(ctx context.Context) (*s3.DeleteObjectOutput, error) {
		out, err := s.api.DeleteObject(ctx, &s3.DeleteObjectInput{
			Bucket: aws.String(s.cfg.Bucket),
			Key:    aws.String(key),
		})
		if err != nil && errorCode(err) == "NoSuchKey" {
			return &s3.DeleteObjectOutput{}, nil
		}
		return out, err
	})
	if err != nil {
		return fmt.Errorf("delete object %s: %w", key, err)
	}
	return nil
}

// errorCode returns the S3 error code carried by err, or "" for transport
// and other non-API failures.
func errorCode(err error) string {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		return apiErr.ErrorCode()
	}
	return ""
}

// KeyFromURL maps a URL produced by Upload back to its key.
func (s *Storage) KeyFromURL(url string) string {
	return storage.KeyFromBase(s.cfg.publicBase(), url)
}

// Ping checks that the bucket is reachable. It is used as a health check.
func (s *Storage) Ping(ctx context.Context) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	_, err := s.api.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(s.cfg.Bucket)})
	if err != nil {
		return fmt.Errorf("head bucket %s: %w", s.cfg.Bucket, err)
	}
	return nil
}
