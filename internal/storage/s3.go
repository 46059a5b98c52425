package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/oldrefery/summit-backend-sub001/internal/config"
	"github.com/oldrefery/summit-backend-sub001/internal/metrics"
	"github.com/oldrefery/summit-backend-sub001/internal/models"
)

// s3API is the subset of *s3.Client used by the artifact store
type s3API interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// S3ArtifactStore keeps published version artifacts in an S3 bucket
type S3ArtifactStore struct {
	client        s3API
	logger        *slog.Logger
	metrics       *metrics.Metrics
	bucket        string
	prefix        string
	region        string
	endpoint      string
	publicBaseURL string
	timeout       time.Duration
}

// NewS3ArtifactStore loads the default AWS configuration and builds a client
// for cfg.Bucket
func NewS3ArtifactStore(ctx context.Context, cfg config.StorageConfig, m *metrics.Metrics, logger *slog.Logger) (*S3ArtifactStore, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("s3 artifacts: bucket not set")
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("s3 artifacts: load default AWS config: %w", err)
	}
	if cfg.Region != "" {
		awsCfg.Region = cfg.Region
	}

	client := s3.NewFromConfig(awsCfg, clientOptions(cfg))

	return newS3ArtifactStore(client, cfg, awsCfg.Region, m, logger), nil
}

// clientOptions configures the S3 client. Requests are never retried: a
// failed upload, download or delete is reported to the caller as is.
func clientOptions(cfg config.StorageConfig) func(*s3.Options) {
	return func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.UsePathStyle
		o.Retryer = aws.NopRetryer{}
	}
}

func newS3ArtifactStore(client s3API, cfg config.StorageConfig, region string, m *metrics.Metrics, logger *slog.Logger) *S3ArtifactStore {
	prefix := strings.Trim(cfg.Prefix, "/")
	if prefix != "" {
		prefix += "/"
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 60 * time.Second
	}
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}

	return &S3ArtifactStore{
		client:        client,
		logger:        logger.With(slog.String("component", "artifacts")),
		metrics:       m,
		bucket:        cfg.Bucket,
		prefix:        prefix,
		region:        region,
		endpoint:      strings.TrimSuffix(cfg.Endpoint, "/"),
		publicBaseURL: strings.TrimSuffix(cfg.PublicBaseURL, "/"),
		timeout:       timeout,
	}
}

func (s *S3ArtifactStore) opContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.timeout)
}

func (s *S3ArtifactStore) fullKey(key string) string {
	return s.prefix + strings.TrimPrefix(key, "/")
}

// Put uploads body under key and returns the public URL of the object
func (s *S3ArtifactStore) Put(ctx context.Context, key string, body []byte) (string, error) {
	ctx, cancel := s.opContext(ctx)
	defer cancel()

	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(s.fullKey(key)),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		s.metrics.ArtifactOp("put", false)
		s.logger.Error("s3 put failed", slog.String("key", key), slog.String("error", err.Error()))
		return "", fmt.Errorf("%w: put %s: %v", models.ErrArtifactStorage, key, err)
	}

	s.metrics.ArtifactOp("put", true)
	s.logger.Info("s3 put ok", slog.String("key", key), slog.Int("bytes", len(body)))
	return s.URL(key), nil
}

// Get downloads the object stored under key
func (s *S3ArtifactStore) Get(ctx context.Context, key string) ([]byte, error) {
	ctx, cancel := s.opContext(ctx)
	defer cancel()

	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.fullKey(key)),
	})
	if err != nil {
		s.metrics.ArtifactOp("get", false)
		if isS3NotFound(err) {
			return nil, fmt.Errorf("%w: artifact %s", models.ErrNotFound, key)
		}
		s.logger.Error("s3 get failed", slog.String("key", key), slog.String("error", err.Error()))
		return nil, fmt.Errorf("%w: get %s: %v", models.ErrArtifactStorage, key, err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		s.metrics.ArtifactOp("get", false)
		return nil, fmt.Errorf("%w: read %s: %v", models.ErrArtifactStorage, key, err)
	}

	s.metrics.ArtifactOp("get", true)
	return data, nil
}

// Delete removes the object under key. A missing object is not an error.
func (s *S3ArtifactStore) Delete(ctx context.Context, key string) error {
	ctx, cancel := s.opContext(ctx)
	defer cancel()

	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.fullKey(key)),
	})
	if err != nil && !isS3NotFound(err) {
		s.metrics.ArtifactOp("delete", false)
		s.logger.Error("s3 delete failed", slog.String("key", key), slog.String("error", err.Error()))
		return fmt.Errorf("%w: delete %s: %v", models.ErrArtifactStorage, key, err)
	}

	s.metrics.ArtifactOp("delete", true)
	return nil
}

// URL returns the address clients download the artifact from
func (s *S3ArtifactStore) URL(key string) string {
	full := s.fullKey(key)
	escaped := (&url.URL{Path: full}).EscapedPath()

	switch {
	case s.publicBaseURL != "":
		return s.publicBaseURL + "/" + escaped
	case s.endpoint != "":
		return s.endpoint + "/" + s.bucket + "/" + escaped
	default:
		return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", s.bucket, s.region, escaped)
	}
}

func isS3NotFound(err error) bool {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) && apiErr.ErrorCode() == "NoSuchKey" {
		return true
	}
	var noSuchKey *s3types.NoSuchKey
	return errors.As(err, &noSuchKey)
}
