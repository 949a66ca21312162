// provider/errors.go
package provider

import "errors"

var (
	ErrMissingAPIURL = errors.New("apiUrl 未配置")
	ErrMissingAPIKey = errors.New("apiKey 未配置")
)

// Error 包装存储客户端返回的错误，不区分错误种类
type Error struct {
	Op  string
	Key string
	Err error
}

func (e *Error) Error() string {
	return e.Op + " " + e.Key + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error { return e.Err }
