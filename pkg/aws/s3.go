package aws

import (
	"context"
	"fmt"
	"io"
	"time"

	sdkaws "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3Store uploads product media to a bucket and hands out presigned PUT
// URLs for direct browser uploads.
type S3Store struct {
	client    *s3.Client
	uploader  *manager.Uploader
	presigner *s3.PresignClient
	bucket    string
	publicURL string
}

// NewS3Store builds a store for bucket. publicURL is the base used to build
// object URLs; when empty the virtual-hosted S3 URL is used.
func NewS3Store(cfg sdkaws.Config, bucket, publicURL string) *S3Store {
	client := s3.NewFromConfig(cfg)
	if publicURL == "" {
		publicURL = fmt.Sprintf("https://%s.s3.%s.amazonaws.com", bucket, cfg.Region)
	}
	return &S3Store{
		client:    client,
		uploader:  manager.NewUploader(client),
		presigner: s3.NewPresignClient(client),
		bucket:    bucket,
		publicURL: publicURL,
	}
}

// Put uploads body under key and returns its public URL. The body is
// streamed in parts, so its length need not be known.
func (s *S3Store) Put(ctx context.Context, key, contentType string, body io.Reader) (string, error) {
	input := &s3.PutObjectInput{
		Bucket: sdkaws.String(s.bucket),
		Key:    sdkaws.String(key),
		Body:   body,
	}
	if contentType != "" {
		input.ContentType = sdkaws.String(contentType)
	}
	if _, err := s.uploader.Upload(ctx, input); err != nil {
		return "", fmt.Errorf("failed to put object %s: %w", key, err)
	}
	return s.URL(key), nil
}

func (s *S3Store) URL(key string) string {
	return s.publicURL + "/" + key
}

// PresignPut returns a presigned PUT URL for key plus the headers the
// client must send with it.
func (s *S3Store) PresignPut(ctx context.Context, key, contentType string, expiry time.Duration) (string, map[string]string, error) {
	input := &s3.PutObjectInput{
		Bucket: sdkaws.String(s.bucket),
		Key:    sdkaws.String(key),
	}
	if contentType != "" {
		input.ContentType = sdkaws.String(contentType)
	}

	presigned, err := s.presigner.PresignPutObject(ctx, input, func(o *s3.PresignOptions) {
		o.Expires = expiry
	})
	if err != nil {
		return "", nil, fmt.Errorf("failed to presign put object: %w", err)
	}

	headers := make(map[string]string, len(presigned.SignedHeader))
	for k, v := range presigned.SignedHeader {
		if len(v) > 0 {
			headers[k] = v[0]
		}
	}
	return presigned.URL, headers, nil
}
