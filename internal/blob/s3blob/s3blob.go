// Package s3blob stores snapshot images in an S3 bucket.
package s3blob

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/OCAP2/tacmap/internal/blob"
	"github.com/OCAP2/tacmap/internal/config"
	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// ErrNoBucket is returned when the configuration names no bucket.
var ErrNoBucket = errors.New("s3 bucket not configured")

// PutObjectAPI is the subset of the S3 client used here.
type PutObjectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Store uploads to one bucket under a key prefix.
type Store struct {
	client PutObjectAPI
	cfg    config.S3BlobConfig
	now    func() time.Time
}

// New loads AWS credentials from the default chain, or from the static keys
// when both are configured, and creates a store.
func New(ctx context.Context, cfg config.S3BlobConfig) (*Store, error) {
	if cfg.Bucket == "" {
		return nil, ErrNoBucket
	}

	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.Region)}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, "")))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})
	return NewWithClient(client, cfg), nil
}

// NewWithClient creates a store over an existing client.
func NewWithClient(client PutObjectAPI, cfg config.S3BlobConfig) *Store {
	return &Store{client: client, cfg: cfg, now: time.Now}
}

// Store uploads data and returns its public URL.
func (s *Store) Store(ctx context.Context, missionID string, data []byte, contentType string) (string, error) {
	if s.cfg.Bucket == "" {
		return "", ErrNoBucket
	}
	key, err := blob.ObjectKey(s.cfg.Prefix, missionID, contentType, s.now())
	if err != nil {
		return "", err
	}

	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.cfg.Bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentType:   aws.String(contentType),
		ContentLength: aws.Int64(int64(len(data))),
		Metadata:      map[string]string{"mission-id": missionID},
	})
	if err != nil {
		return "", fmt.Errorf("put object %s: %w", key, err)
	}
	return s.publicURL(key), nil
}

func (s *Store) publicURL(key string) string {
	switch {
	case s.cfg.PublicBaseURL != "":
		return blob.PublicURL(s.cfg.PublicBaseURL, key)
	case s.cfg.Endpoint != "":
		return blob.PublicURL(s.cfg.Endpoint, s.cfg.Bucket+"/"+key)
	default:
		return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", s.cfg.Bucket, s.cfg.Region, key)
	}
}
