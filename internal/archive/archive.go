// Package archive stores committed plans as JSON objects for later audit.
package archive

import (
	"bytes"
	"context"
	"fmt"
	"path"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

type Sink interface {
	Put(ctx context.Context, key string, data []byte) error
}

// PlanKey is the object key of a committed plan.
func PlanKey(tenant, planID string) string {
	return path.Join("plans", tenant, planID+".json")
}

// putter is the subset of the S3 client the sink needs.
type putter interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

type S3Sink struct {
	client putter
	bucket string
}

// NewS3Sink loads the default AWS configuration. A non-empty endpoint enables
// path-style addressing for MinIO and similar servers.
func NewS3Sink(ctx context.Context, bucket, region, endpoint string) (*S3Sink, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}
	var opts []func(*s3.Options)
	if endpoint != "" {
		opts = append(opts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(endpoint)
			o.UsePathStyle = true
		})
	}
	return &S3Sink{client: s3.NewFromConfig(cfg, opts...), bucket: bucket}, nil
}

func (s *S3Sink) Put(ctx context.Context, key string, data []byte) error {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("s3 put %s: %w", key, err)
	}
	return nil
}

type Noop struct{}

func (Noop) Put(context.Context, string, []byte) error { return nil }
