package aws

import (
	"context"
	"fmt"
	"time"

	sdkaws "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// UploadPresigner issues presigned PUT URLs for direct browser uploads.
type UploadPresigner interface {
	PresignPut(ctx context.Context, bucket, key, contentType string, expiry time.Duration) (string, map[string]string, error)
}

type S3Presigner struct {
	presigner *s3.PresignClient
}

// NewS3Presigner builds a presign client; path-style addressing is forced when
// a custom endpoint is configured.
func NewS3Presigner(cfg sdkaws.Config) *S3Presigner {
	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if CustomEndpoint() != "" {
			o.UsePathStyle = true
		}
	})
	return &S3Presigner{presigner: s3.NewPresignClient(client)}
}

// PresignPut generates a presigned PUT URL for the provided bucket/key.
func (p *S3Presigner) PresignPut(ctx context.Context, bucket, key, contentType string, expiry time.Duration) (string, map[string]string, error) {
	input := &s3.PutObjectInput{
		Bucket: sdkaws.String(bucket),
		Key:    sdkaws.String(key),
	}
	if contentType != "" {
		input.ContentType = sdkaws.String(contentType)
	}

	presigned, err := p.presigner.PresignPutObject(ctx, input, func(o *s3.PresignOptions) {
		o.Expires = expiry
	})
	if err != nil {
		return "", nil, fmt.Errorf("failed to presign put object: %w", err)
	}

	headers := make(map[string]string)
	for k, v := range presigned.SignedHeader {
		if len(v) > 0 {
			headers[k] = v[0]
		}
	}
	return presigned.URL, headers, nil
}
