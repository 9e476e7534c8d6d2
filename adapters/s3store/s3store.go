// Package s3store backs avatar storage with Amazon S3 or any
// compatible API such as MinIO.
package s3store

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	accounts "github.com/goliatone/go-accounts"
)

// Config carries the bucket coordinates. AccessKey and SecretKey are
// optional, the default AWS credential chain is used when they are
// empty. Endpoint is for S3 compatible servers.
type Config struct {
	Bucket    string
	Region    string
	Endpoint  string
	AccessKey string
	SecretKey string
	// SignTTL bounds the presigned GET URLs handed back to clients.
	SignTTL time.Duration
}

type Store struct {
	client  *s3.Client
	presign *s3.PresignClient
	bucket  string
	signTTL time.Duration
}

var _ accounts.FileStorage = (*Store)(nil)

func New(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("s3store: bucket is required")
	}

	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}
	if cfg.AccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("s3store: load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	ttl := cfg.SignTTL
	if ttl == 0 {
		ttl = 15 * time.Minute
	}

	return &Store{
		client:  client,
		presign: s3.NewPresignClient(client),
		bucket:  cfg.Bucket,
		signTTL: ttl,
	}, nil
}

func (s *Store) MoveToSignedLocation(ctx context.Context, src io.Reader, destName string) (string, string, error) {
	// PutObject needs a seekable body for signing
	data, err := io.ReadAll(src)
	if err != nil {
		return "", "", fmt.Errorf("s3store: read source: %w", err)
	}

	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(destName),
		Body:   bytes.NewReader(data),
	})
	if err != nil {
		return "", "", fmt.Errorf("s3store: put object: %w", err)
	}

	req, err := s.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(destName),
	}, s3.WithPresignExpires(s.signTTL))
	if err != nil {
		return "", "", fmt.Errorf("s3store: presign object: %w", err)
	}

	return destName, req.URL, nil
}

func (s *Store) Delete(ctx context.Context, path string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(path),
	})
	if err != nil {
		return fmt.Errorf("s3store: delete object: %w", err)
	}
	return nil
}
