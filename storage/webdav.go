// storage/webdav.go
package storage

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path"
	"strings"
	"time"

	"github.com/studio-b12/gowebdav"
)

type WebDAVStorage struct {
	client    *gowebdav.Client
	publicURL string
}

// NewWebDAVStorage 以 AccessKeyID 作为用户名, APIKey 作为密码连接服务器
func NewWebDAVStorage(config ClientConfig) (*WebDAVStorage, error) {
	client := gowebdav.NewClient(config.URL, config.AccessKeyID, config.APIKey)
	for k, v := range config.Headers {
		client.SetHeader(k, v)
	}

	// 检查连接和认证
	if err := client.Connect(); err != nil {
		if strings.Contains(err.Error(), fmt.Sprintf("%d", http.StatusUnauthorized)) {
			return nil, fmt.Errorf("WebDAV 认证失败 (401 Unauthorized): 请检查用户名和密码: %w", err)
		}
		return nil, fmt.Errorf("WebDAV 服务器连接失败 at %s: %w", config.URL, err)
	}

	publicURL := config.PublicBaseURL
	if publicURL == "" {
		publicURL = config.URL
	}
	slog.Info("使用 WebDAV 存储", "url", config.URL)
	return &WebDAVStorage{client: client, publicURL: strings.TrimSuffix(publicURL, "/")}, nil
}

func (w *WebDAVStorage) Upload(ctx context.Context, key string, data []byte, opts UploadOptions) error {
	if !opts.Upsert {
		if _, err := w.client.Stat(key); err == nil {
			return fmt.Errorf("WebDAV 存储写入失败: %s 已存在", key)
		}
	}
	if dir := path.Dir(key); dir != "." {
		if err := w.client.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("WebDAV 存储创建目录失败: %w", err)
		}
	}
	if err := w.client.Write(key, data, 0644); err != nil {
		return fmt.Errorf("WebDAV 存储写入失败: %w", err)
	}
	return nil
}

func (w *WebDAVStorage) Remove(ctx context.Context, keys []string) error {
	for _, key := range keys {
		err := w.client.Remove(key)
		if err != nil && !os.IsNotExist(err) && !gowebdav.IsErrNotFound(err) {
			return fmt.Errorf("WebDAV 存储删除文件失败: %w", err)
		}
	}
	return nil
}

func (w *WebDAVStorage) PublicURL(key string) string {
	return w.publicURL + "/" + key
}

func (w *WebDAVStorage) SignedURL(ctx context.Context, key string, expiry time.Duration) (string, error) {
	return "", ErrSigningUnsupported
}
