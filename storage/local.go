// storage/local.go
package storage

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// LocalStorage 把对象写到本地目录，仅用于开发环境
type LocalStorage struct {
	basePath  string
	publicURL string
}

func NewLocalStorage(config ClientConfig) (*LocalStorage, error) {
	if config.URL == "" {
		return nil, fmt.Errorf("本地存储目录未配置")
	}
	if err := os.MkdirAll(config.URL, os.ModePerm); err != nil {
		return nil, fmt.Errorf("无法创建本地存储目录 %s: %w", config.URL, err)
	}
	publicURL := config.PublicBaseURL
	if publicURL == "" {
		publicURL = "/uploads"
	}
	slog.Info("使用本地文件存储", "path", config.URL)
	return &LocalStorage{basePath: config.URL, publicURL: strings.TrimSuffix(publicURL, "/")}, nil
}

func (l *LocalStorage) fullPath(key string) string {
	return filepath.Join(l.basePath, filepath.FromSlash(key))
}

func (l *LocalStorage) Upload(ctx context.Context, key string, data []byte, opts UploadOptions) (err error) {
	path := l.fullPath(key)
	if err := os.MkdirAll(filepath.Dir(path), os.ModePerm); err != nil {
		return fmt.Errorf("本地存储创建目录失败: %w", err)
	}
	flags := os.O_WRONLY | os.O_CREATE | os.O_TRUNC
	if !opts.Upsert {
		flags = os.O_WRONLY | os.O_CREATE | os.O_EXCL
	}
	file, err := os.OpenFile(path, flags, 0o644)
	if err != nil {
		return fmt.Errorf("本地存储创建文件失败: %w", err)
	}
	defer func() {
		if closeErr := file.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("本地存储关闭文件失败: %w", closeErr)
		}
	}()

	if _, err := file.Write(data); err != nil {
		return fmt.Errorf("本地存储写入文件失败: %w", err)
	}
	return nil
}

func (l *LocalStorage) Remove(ctx context.Context, keys []string) error {
	for _, key := range keys {
		err := os.Remove(l.fullPath(key))
		// 如果文件已经不存在，我们不认为这是一个错误
		if err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("本地存储删除文件失败: %w", err)
		}
	}
	return nil
}

func (l *LocalStorage) PublicURL(key string) string {
	return l.publicURL + "/" + key
}

func (l *LocalStorage) SignedURL(ctx context.Context, key string, expiry time.Duration) (string, error) {
	return "", ErrSigningUnsupported
}

// BasePath 返回存储目录，供宿主挂载静态文件服务
func (l *LocalStorage) BasePath() string {
	return l.basePath
}
