package repository

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/aws/aws-sdk-go-v2/aws"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"quakescope/internal/config"
)

// objectClient is the subset of *s3.Client the object backend needs.
type objectClient interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

type objectBackend struct {
	client objectClient
	bucket string
	key    string
}

// NewObjectBackend builds an S3-compatible client (AWS, R2, MinIO) and stores
// the collection as one object.
func NewObjectBackend(ctx context.Context, cfg *config.Config) (RegistrationBackend, error) {
	if cfg.S3Bucket == "" || cfg.S3ObjectKey == "" {
		return nil, fmt.Errorf("missing S3 configuration: S3_BUCKET and S3_OBJECT_KEY are required")
	}

	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.S3Region),
	}
	if cfg.S3AccessKeyID != "" && cfg.S3SecretAccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.S3AccessKeyID, cfg.S3SecretAccessKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.S3Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.S3Endpoint)
			o.UsePathStyle = true
		}
	})

	return newObjectBackend(client, cfg.S3Bucket, cfg.S3ObjectKey), nil
}

func newObjectBackend(client objectClient, bucket, key string) *objectBackend {
	return &objectBackend{client: client, bucket: bucket, key: key}
}

func (b *objectBackend) Read(ctx context.Context) ([]byte, error) {
	out, err := b.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(b.key),
	})
	if isObjectMissing(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get object %s: %w", b.key, err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("read object %s: %w", b.key, err)
	}
	return data, nil
}

func (b *objectBackend) Write(ctx context.Context, data []byte) error {
	_, err := b.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(b.bucket),
		Key:         aws.String(b.key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("put object %s: %w", b.key, err)
	}
	return nil
}

// isObjectMissing treats NoSuchKey and bare 404s as an empty collection.
// Some S3-compatible stores answer a missing key with a 404 and no error code.
func isObjectMissing(err error) bool {
	if err == nil {
		return false
	}
	var noKey *types.NoSuchKey
	if errors.As(err, &noKey) {
		return true
	}
	var respErr *awshttp.ResponseError
	if errors.As(err, &respErr) && respErr.HTTPStatusCode() == http.StatusNotFound {
		return true
	}
	return false
}
