// storage/s3.go
package storage

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

const defaultS3Region = "us-east-1"

// S3Storage 通过 S3 兼容协议访问存储桶 (Supabase 的 /storage/v1/s3 或任意 S3 服务)
type S3Storage struct {
	client    *s3.Client
	presigner *s3.PresignClient
	bucket    string
	publicURL string
}

func NewS3Storage(config ClientConfig) (*S3Storage, error) {
	if config.URL == "" {
		return nil, fmt.Errorf("S3 endpoint 未配置")
	}
	region := config.Region
	if region == "" {
		region = defaultS3Region
	}
	accessKeyID := config.AccessKeyID
	if accessKeyID == "" {
		return nil, fmt.Errorf("S3 access key id 未配置")
	}

	cfg, err := awsconfig.LoadDefaultConfig(context.TODO(),
		awsconfig.WithRegion(region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(accessKeyID, config.APIKey, "")),
	)
	if err != nil {
		return nil, fmt.Errorf("无法加载 S3 配置: %w", err)
	}
	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(config.URL)
		o.UsePathStyle = config.UsePathStyle
	})

	publicURL := config.PublicBaseURL
	if publicURL == "" {
		publicURL = strings.TrimSuffix(config.URL, "/") + "/" + config.Bucket
	}
	slog.Info("使用 S3 对象存储", "endpoint", config.URL, "bucket", config.Bucket)
	return &S3Storage{
		client:    client,
		presigner: s3.NewPresignClient(client),
		bucket:    config.Bucket,
		publicURL: strings.TrimSuffix(publicURL, "/"),
	}, nil
}

func (s *S3Storage) Upload(ctx context.Context, key string, data []byte, opts UploadOptions) error {
	contentLength := int64(len(data))
	input := &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentLength: &contentLength,
	}
	if opts.CacheControl != "" {
		input.CacheControl = aws.String(opts.CacheControl)
	}
	if opts.ContentType != "" {
		input.ContentType = aws.String(opts.ContentType)
	}
	if !opts.Upsert {
		input.IfNoneMatch = aws.String("*")
	}
	if _, err := s.client.PutObject(ctx, input); err != nil {
		return fmt.Errorf("S3 存储上传对象失败: %w", err)
	}
	return nil
}

func (s *S3Storage) Remove(ctx context.Context, keys []string) error {
	if len(keys) == 0 {
		return nil
	}
	objects := make([]types.ObjectIdentifier, 0, len(keys))
	for _, key := range keys {
		objects = append(objects, types.ObjectIdentifier{Key: aws.String(key)})
	}
	output, err := s.client.DeleteObjects(ctx, &s3.DeleteObjectsInput{
		Bucket: aws.String(s.bucket),
		Delete: &types.Delete{Objects: objects, Quiet: aws.Bool(true)},
	})
	if err != nil {
		return fmt.Errorf("S3 存储删除对象失败: %w", err)
	}
	for _, e := range output.Errors {
		// 对象本就不存在时视为删除成功
		if aws.ToString(e.Code) == "NoSuchKey" {
			continue
		}
		return fmt.Errorf("S3 存储删除对象失败 %s: %s", aws.ToString(e.Key), aws.ToString(e.Message))
	}
	return nil
}

func (s *S3Storage) PublicURL(key string) string {
	return s.publicURL + "/" + key
}

func (s *S3Storage) SignedURL(ctx context.Context, key string, expiry time.Duration) (string, error) {
	req, err := s.presigner.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(expiry))
	if err != nil {
		return "", fmt.Errorf("S3 存储签名失败: %w", err)
	}
	return req.URL, nil
}
