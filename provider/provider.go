// provider/provider.go
package provider

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"time"

	"supaupload/storage"
)

const (
	// Name 是宿主用来识别该 provider 的名称
	Name        = "supabase"
	DisplayName = "Supabase Storage"

	cacheControl  = "public, max-age=31536000, immutable"
	signedURLLife = 60 * time.Second
)

// File 是宿主传入的文件描述。Upload 会原地修改 Hash、URL 和 Buffer。
type File struct {
	Name   string
	Ext    string
	Path   string
	Hash   string
	Buffer []byte
	Mime   string
	URL    string
}

// UploadParams 是宿主附带的上传参数
type UploadParams struct {
	// CacheControl 非空时覆盖默认的缓存策略
	CacheControl string
}

type SignedURL struct {
	URL string `json:"url"`
}

// Provider 把宿主的 upload / delete / isPrivate / getSignedUrl 转换为对象存储调用。
// 构造后只读，可并发使用。
type Provider struct {
	store     storage.ObjectStore
	bucket    string
	directory string
}

// New 解析配置并创建对应的存储后端
func New(cfg Config) (*Provider, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	store, err := storage.New(cfg.Options.Backend, cfg.clientConfig())
	if err != nil {
		return nil, err
	}
	return NewWithStore(cfg, store), nil
}

// NewWithStore 使用已创建好的存储后端，不校验连接参数
func NewWithStore(cfg Config, store storage.ObjectStore) *Provider {
	return &Provider{
		store:     store,
		bucket:    cfg.bucket(),
		directory: resolveDirectory(cfg.Directory, cfg.Options.DynamicDirectory, time.Now()),
	}
}

func (p *Provider) Bucket() string    { return p.bucket }
func (p *Provider) Directory() string { return p.directory }

// Store 返回底层存储后端
func (p *Provider) Store() storage.ObjectStore { return p.store }

// Upload 上传文件并返回对象路径。
// 成功后 file.URL 为公开地址，file.Buffer 被清空；失败时不设置 URL。
func (p *Provider) Upload(ctx context.Context, file *File, params UploadParams) (string, error) {
	sum := md5.Sum([]byte(file.Hash))
	file.Hash = hex.EncodeToString(sum[:])

	key := FileKey(p.directory, file)

	cc := cacheControl
	if params.CacheControl != "" {
		cc = params.CacheControl
	}
	err := p.store.Upload(ctx, key, file.Buffer, storage.UploadOptions{
		CacheControl: cc,
		ContentType:  file.Mime,
		Upsert:       true,
	})
	if err != nil {
		return "", &Error{Op: "upload", Key: key, Err: err}
	}

	file.URL = p.store.PublicURL(key)
	file.Buffer = nil
	return key, nil
}

// Delete 删除文件对应的对象，删除失败时返回错误
func (p *Provider) Delete(ctx context.Context, file *File) error {
	key := FileKey(p.directory, file)
	if err := p.store.Remove(ctx, []string{key}); err != nil {
		return &Error{Op: "delete", Key: key, Err: err}
	}
	return nil
}

// IsPrivate 总是返回 true: 宿主需要通过签名地址访问对象
func (p *Provider) IsPrivate() bool {
	return true
}

// SignedURL 返回 60 秒内有效的访问地址
func (p *Provider) SignedURL(ctx context.Context, file *File) (*SignedURL, error) {
	key := FileKey(p.directory, file)
	url, err := p.store.SignedURL(ctx, key, signedURLLife)
	if err != nil {
		return nil, &Error{Op: "sign", Key: key, Err: err}
	}
	return &SignedURL{URL: url}, nil
}
