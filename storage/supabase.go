// storage/supabase.go
package storage

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	storage_go "github.com/supabase-community/storage-go"
)

// SupabaseStorage 通过 Supabase Storage REST API 访问存储桶
//
// storage-go 在上传时会改写客户端共享的请求头 (content-type, cache-control,
// x-upsert), 因此每次上传都使用独立的客户端; client 只用于 JSON 请求,
// 其请求头在构造后不再修改。
type SupabaseStorage struct {
	client  *storage_go.Client
	url     string
	apiKey  string
	headers map[string]string
	bucket  string
}

func NewSupabaseStorage(config ClientConfig) (*SupabaseStorage, error) {
	if config.URL == "" {
		return nil, fmt.Errorf("Supabase storage 地址未配置")
	}
	headers := map[string]string{"apikey": config.APIKey}
	for k, v := range config.Extra {
		if s, ok := v.(string); ok {
			headers[k] = s
		}
	}
	// 显式配置的 headers 优先于透传选项
	for k, v := range config.Headers {
		headers[k] = v
	}
	url := strings.TrimSuffix(config.URL, "/")
	slog.Info("使用 Supabase 对象存储", "url", config.URL, "bucket", config.Bucket)
	return &SupabaseStorage{
		client:  storage_go.NewClient(url, config.APIKey, headers),
		url:     url,
		apiKey:  config.APIKey,
		headers: headers,
		bucket:  config.Bucket,
	}, nil
}

func (s *SupabaseStorage) uploadClient() *storage_go.Client {
	return storage_go.NewClient(s.url, s.apiKey, s.headers)
}

// Upload 使用一次性客户端上传对象。
// storage-go 没有 context 接口, 本后端的 Upload/Remove/SignedURL 不响应 ctx 取消。
func (s *SupabaseStorage) Upload(ctx context.Context, key string, data []byte, opts UploadOptions) error {
	fileOptions := storage_go.FileOptions{Upsert: &opts.Upsert}
	if opts.CacheControl != "" {
		fileOptions.CacheControl = &opts.CacheControl
	}
	if opts.ContentType != "" {
		fileOptions.ContentType = &opts.ContentType
	}
	if _, err := s.uploadClient().UploadFile(s.bucket, key, bytes.NewReader(data), fileOptions); err != nil {
		return fmt.Errorf("Supabase 存储上传对象失败: %w", err)
	}
	return nil
}

func (s *SupabaseStorage) Remove(ctx context.Context, keys []string) error {
	if len(keys) == 0 {
		return nil
	}
	if _, err := s.client.RemoveFile(s.bucket, keys); err != nil {
		return fmt.Errorf("Supabase 存储删除对象失败: %w", err)
	}
	return nil
}

func (s *SupabaseStorage) PublicURL(key string) string {
	return s.client.GetPublicUrl(s.bucket, key).SignedURL
}

func (s *SupabaseStorage) SignedURL(ctx context.Context, key string, expiry time.Duration) (string, error) {
	resp, err := s.client.CreateSignedUrl(s.bucket, key, int(expiry/time.Second))
	if err != nil {
		return "", fmt.Errorf("Supabase 存储签名失败: %w", err)
	}
	return resp.SignedURL, nil
}
