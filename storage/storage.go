// Package storage publishes signed documents to an S3 compatible bucket and
// hands out time limited download links.
package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	"github.com/hm-edu/remotesign/config"
	"github.com/hm-edu/remotesign/models"
)

const (
	KeyPrefix    = "signed_documents/"
	KeyTimestamp = "20060102_150405"
	URLExpiry    = time.Hour
	ContentType  = "application/pdf"
)

type objectPutter interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

type urlPresigner interface {
	PresignGetObject(ctx context.Context, in *s3.GetObjectInput, opts ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
}

type Publisher struct {
	bucket  string
	put     objectPutter
	presign urlPresigner
	now     func() time.Time
}

// NewPublisher builds an S3 client for the configured bucket using static
// credentials.
func NewPublisher(ctx context.Context, cfg config.Spaces) (*Publisher, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("spaces.bucket is required")
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load object storage config: %w", err)
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(endpointURL(cfg.Endpoint))
		}
		o.UsePathStyle = cfg.PathStyle
	})
	return &Publisher{
		bucket:  cfg.Bucket,
		put:     client,
		presign: s3.NewPresignClient(client),
		now:     time.Now,
	}, nil
}

func endpointURL(endpoint string) string {
	if strings.Contains(endpoint, "://") {
		return endpoint
	}
	return "https://" + endpoint
}

// Key returns the object key for a document uploaded at now.
func Key(now time.Time, filename string) string {
	name := strings.ReplaceAll(strings.TrimSpace(filename), "/", "_")
	if name == "" {
		name = models.DefaultDocument
	}
	return KeyPrefix + now.UTC().Format(KeyTimestamp) + "_" + name
}

// Publish uploads a signed document as a private object and returns a
// presigned download link. Failures are reported in the result.
func (p *Publisher) Publish(ctx context.Context, data []byte, filename string) models.UploadResult {
	key := Key(p.now(), filename)
	_, err := p.put.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(p.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
		ContentType:   aws.String(ContentType),
		ACL:           types.ObjectCannedACLPrivate,
	})
	if err != nil {
		slog.Error("Upload failed", slog.String("bucket", p.bucket), slog.String("key", key), slog.Any("error", err))
		return models.UploadResult{Success: false, Error: describe("upload", err)}
	}
	url, err := p.PresignedURL(ctx, key)
	if err != nil {
		slog.Error("Presigning failed", slog.String("key", key), slog.Any("error", err))
		return models.UploadResult{Success: false, Key: key, Error: describe("presign", err)}
	}
	slog.Info("Signed document published", slog.String("bucket", p.bucket), slog.String("key", key), slog.Int("bytes", len(data)))
	return models.UploadResult{
		Success:   true,
		Key:       key,
		SignedURL: url,
		ExpiresIn: int(URLExpiry.Seconds()),
	}
}

// PresignedURL returns a GET link for key valid for URLExpiry.
func (p *Publisher) PresignedURL(ctx context.Context, key string) (string, error) {
	req, err := p.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(p.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(URLExpiry))
	if err != nil {
		return "", err
	}
	return req.URL, nil
}

func describe(step string, err error) string {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		return fmt.Sprintf("%s failed: %s: %s", step, apiErr.ErrorCode(), apiErr.ErrorMessage())
	}
	return fmt.Sprintf("%s failed: %v", step, err)
}
