package objectstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
)

// S3Config configures an S3-compatible bucket. The bucket host's interop
// endpoint (storage.googleapis.com by default) accepts the same API.
type S3Config struct {
	Bucket    string
	Host      string
	Endpoint  string
	Region    string
	AccessKey string
	SecretKey string
}

// S3Backend stores objects in an S3-compatible bucket.
type S3Backend struct {
	api    s3iface.S3API
	bucket string
	host   string
}

// NewS3Backend opens a session against cfg.Endpoint.
func NewS3Backend(cfg S3Config) (*S3Backend, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("s3 backend: bucket is required")
	}
	awsCfg := &aws.Config{
		Region:           aws.String(cfg.Region),
		S3ForcePathStyle: aws.Bool(true),
	}
	if cfg.Endpoint != "" {
		awsCfg.Endpoint = aws.String(cfg.Endpoint)
	}
	if cfg.AccessKey != "" {
		awsCfg.Credentials = credentials.NewStaticCredentials(cfg.AccessKey, cfg.SecretKey, "")
	}
	sess, err := session.NewSession(awsCfg)
	if err != nil {
		return nil, fmt.Errorf("s3 backend: new session: %w", err)
	}
	return NewS3BackendWithAPI(s3.New(sess), cfg.Bucket, cfg.Host), nil
}

// NewS3BackendWithAPI builds a backend around an existing client.
func NewS3BackendWithAPI(api s3iface.S3API, bucket, host string) *S3Backend {
	host = strings.TrimSuffix(strings.TrimPrefix(strings.TrimPrefix(host, "https://"), "http://"), "/")
	if host == "" {
		host = "storage.googleapis.com"
	}
	return &S3Backend{api: api, bucket: bucket, host: host}
}

func (b *S3Backend) Put(ctx context.Context, key, contentType string, data []byte) error {
	_, err := b.api.PutObjectWithContext(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(b.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
		ContentType:   aws.String(contentType),
	})
	return describe(err)
}

func (b *S3Backend) MakePublic(ctx context.Context, key string) error {
	_, err := b.api.PutObjectAclWithContext(ctx, &s3.PutObjectAclInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(key),
		ACL:    aws.String(s3.ObjectCannedACLPublicRead),
	})
	return describe(err)
}

func (b *S3Backend) PublicURL(key string) string {
	return joinURL("https://"+b.host+"/"+b.bucket, key)
}

func (b *S3Backend) Delete(ctx context.Context, key string) error {
	_, err := b.api.DeleteObjectWithContext(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(key),
	})
	var aerr awserr.Error
	if errors.As(err, &aerr) && aerr.Code() == s3.ErrCodeNoSuchKey {
		return nil
	}
	return describe(err)
}

// describe flattens awserr values into code and message so callers can log
// them without the SDK's multi-line formatting.
func describe(err error) error {
	if err == nil {
		return nil
	}
	var aerr awserr.Error
	if errors.As(err, &aerr) {
		return fmt.Errorf("%s: %s: %w", aerr.Code(), aerr.Message(), err)
	}
	return err
}
