// storage/factory.go
package storage

import (
	"fmt"
	"strings"
)

const (
	KindSupabase = "supabase"
	KindS3       = "s3"
	KindWebDAV   = "webdav"
	KindLocal    = "local"
)

// New 根据类型创建存储后端，空类型视为 supabase
func New(kind string, config ClientConfig) (ObjectStore, error) {
	switch strings.ToLower(kind) {
	case "", KindSupabase:
		return NewSupabaseStorage(config)
	case KindS3:
		return NewS3Storage(config)
	case KindWebDAV:
		return NewWebDAVStorage(config)
	case KindLocal:
		return NewLocalStorage(config)
	default:
		return nil, fmt.Errorf("不支持的存储类型: %s", kind)
	}
}
