// backend/scanner.go
package main

import (
	"bytes"
	"log/slog"
	"strings"
	"time"

	"github.com/dutchcoders/go-clamd"
)

type ClamdScanner struct {
	client *clamd.Clamd
}

// NewScanner 创建一个新的 ClamdScanner 实例。
// 它会尝试连接到 clamd 守护进程，并在连接失败时进行多次重试。
func NewScanner(clamdAddress string) (*ClamdScanner, error) {
	if clamdAddress == "" {
		slog.Warn("ClamdSocket 未配置，上传文件将不做病毒扫描。")
		return &ClamdScanner{client: nil}, nil
	}

	const maxRetries = 5
	const retryDelay = 5 * time.Second

	var c *clamd.Clamd
	var err error

	for i := 1; i <= maxRetries; i++ {
		c = clamd.NewClamd(clamdAddress)
		err = c.Ping()
		if err == nil {
			slog.Info("成功连接到 clamd 守护进程", "address", clamdAddress, "attempt", i)
			return &ClamdScanner{client: c}, nil
		}

		slog.Warn("无法连接到 clamd 守护进程", "attempt", i, "maxAttempts", maxRetries, "address", clamdAddress, "error", err)

		if i < maxRetries {
			time.Sleep(retryDelay)
		}
	}

	slog.Error("最终无法连接到 clamd，所有重试均失败", "maxAttempts", maxRetries)
	return nil, err
}

// ScanBytes 通过 INSTREAM 扫描内存中的文件内容
func (s *ClamdScanner) ScanBytes(name string, data []byte) (string, string) {
	if s == nil || s.client == nil {
		return ScanStatusSkipped, "扫描器未初始化"
	}

	response, err := s.client.ScanStream(bytes.NewReader(data), make(chan bool))
	if err != nil {
		slog.Error("Clamd 扫描通信出错", "component", "clamd", "name", name, "error", err)
		return ScanStatusError, "Clamd扫描通信失败"
	}

	status, result := ScanStatusClean, "文件安全"
	// 需要读完整个 channel，否则 go-clamd 的读取协程会阻塞
	for r := range response {
		slog.Debug("收到 Clamd 响应", "component", "clamd", "rawResponse", r.Raw)
		if status != ScanStatusClean {
			continue
		}
		switch r.Status {
		case clamd.RES_FOUND:
			virusName := strings.TrimSuffix(strings.TrimPrefix(r.Raw, "stream: "), " FOUND")
			slog.Warn("危险! 文件发现病毒", "component", "clamd", "name", name, "virus", virusName)
			status, result = ScanStatusInfected, virusName
		case clamd.RES_ERROR, clamd.RES_PARSE_ERROR:
			slog.Error("Clamd 扫描时发生错误", "component", "clamd", "details", r.Raw)
			status, result = ScanStatusError, r.Raw
		}
	}
	return status, result
}
