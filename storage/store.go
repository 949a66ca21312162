// storage/store.go
package storage

import (
	"context"
	"errors"
	"time"
)

// ErrSigningUnsupported 表示该存储后端无法签发临时访问地址
var ErrSigningUnsupported = errors.New("存储后端不支持签名地址")

// UploadOptions 是一次对象上传附带的参数
type UploadOptions struct {
	CacheControl string
	ContentType  string
	// Upsert 为 true 时覆盖同名对象
	Upsert bool
}

// ObjectStore 定义了所有对象存储后端必须实现的接口
type ObjectStore interface {
	// Upload 将 data 写入 key
	Upload(ctx context.Context, key string, data []byte, opts UploadOptions) error

	// Remove 删除一组对象
	Remove(ctx context.Context, keys []string) error

	// PublicURL 返回对象的公开访问地址，不发起网络请求
	PublicURL(key string) string

	// SignedURL 返回在 expiry 内有效的临时访问地址
	SignedURL(ctx context.Context, key string, expiry time.Duration) (string, error)
}

// ClientConfig 是转发给存储客户端构造函数的配置。
// 只包含客户端需要的字段，适配器自己消费的选项不会出现在这里。
type ClientConfig struct {
	// URL 是服务端地址: supabase 为 storage 根地址, s3 为 endpoint, webdav 为根地址, local 为目录
	URL    string
	APIKey string
	Bucket string

	// PublicBaseURL 用于拼接公开地址，为空时由各后端自行推导
	PublicBaseURL string

	AccessKeyID  string
	Region       string
	UsePathStyle bool
	Headers      map[string]string

	// Extra 是未识别的透传选项
	Extra map[string]any
}
