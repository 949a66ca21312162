// backend/handlers.go
package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"path"
	"path/filepath"
	"strings"
	"unicode"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"supaupload/provider"
	"supaupload/storage"
)

type MediaHandler struct {
	DB       *gorm.DB
	Scanner  *ClamdScanner
	Provider *provider.Provider
}

// uploadError 携带应返回给客户端的状态码
type uploadError struct {
	status  int
	message string
	err     error
}

func (e *uploadError) Error() string { return e.message }

func (h *MediaHandler) HandleUpload(c *gin.Context) {
	// --- 应用上传大小限制 ---
	maxUploadBytes := AppConfig.MaxUploadSizeMB * 1024 * 1024
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxUploadBytes)

	form, err := c.MultipartForm()
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"message": fmt.Sprintf("文件超过大小限制 (%d MB)", AppConfig.MaxUploadSizeMB)})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"message": "无效的上传请求: " + err.Error()})
		return
	}
	headers := form.File["files"]
	if len(headers) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"message": "缺少上传文件 (files)"})
		return
	}
	folder, ok := cleanFolder(c.PostForm("path"))
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"message": "无效的目录 (path)"})
		return
	}

	created := make([]Media, 0, len(headers))
	for _, fh := range headers {
		media, err := h.uploadOne(c, fh, folder)
		if err != nil {
			var ue *uploadError
			if !errors.As(err, &ue) {
				ue = &uploadError{status: http.StatusInternalServerError, message: "服务器内部错误", err: err}
			}
			slog.Error("上传失败", "clientIP", c.ClientIP(), "filename", fh.Filename, "error", ue.err)
			c.JSON(ue.status, gin.H{"message": ue.message, "uploaded": created})
			return
		}
		created = append(created, *media)
	}
	c.JSON(http.StatusCreated, created)
}

func (h *MediaHandler) uploadOne(c *gin.Context, fh *multipart.FileHeader, folder string) (*Media, error) {
	src, err := fh.Open()
	if err != nil {
		return nil, err
	}
	data, err := io.ReadAll(src)
	src.Close()
	if err != nil {
		return nil, err
	}

	name := filepath.Base(fh.Filename)
	scanStatus, scanResult := ScanStatusSkipped, "扫描器不可用，已跳过"
	if h.Scanner != nil {
		scanStatus, scanResult = h.Scanner.ScanBytes(name, data)
		if scanStatus == ScanStatusInfected {
			return nil, &uploadError{status: http.StatusUnprocessableEntity, message: "文件包含病毒: " + scanResult, err: errors.New(scanResult)}
		}
	}

	mime := fh.Header.Get("Content-Type")
	if mime == "" {
		mime = "application/octet-stream"
	}
	file := &provider.File{
		Name:   name,
		Ext:    strings.ToLower(filepath.Ext(name)),
		Path:   folder,
		Hash:   generateHash(name),
		Buffer: data,
		Mime:   mime,
	}

	key, err := h.Provider.Upload(c.Request.Context(), file, provider.UploadParams{})
	if err != nil {
		return nil, &uploadError{status: http.StatusBadGateway, message: "无法保存文件到对象存储", err: err}
	}

	media := &Media{
		ID:         uuid.NewString(),
		Name:       file.Name,
		Ext:        file.Ext,
		Path:       file.Path,
		Hash:       file.Hash,
		Mime:       file.Mime,
		SizeBytes:  int64(len(data)),
		URL:        file.URL,
		StorageKey: key,
		Provider:   provider.Name,
		ScanStatus: scanStatus,
		ScanResult: scanResult,
	}
	if err := h.DB.Create(media).Error; err != nil {
		// 清理已上传的对象
		if delErr := h.Provider.Delete(c.Request.Context(), file); delErr != nil {
			slog.Error("清理对象失败", "key", key, "error", delErr)
		}
		return nil, &uploadError{status: http.StatusInternalServerError, message: "无法保存文件记录", err: err}
	}
	slog.Info("上传成功", "clientIP", c.ClientIP(), "id", media.ID, "key", key, "scanStatus", scanStatus)
	return media, nil
}

func (h *MediaHandler) findMedia(c *gin.Context) (*Media, bool) {
	var media Media
	err := h.DB.Where("id = ? AND delete_pending = ?", c.Param("id"), false).First(&media).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"message": "文件不存在"})
		} else {
			slog.Error("查询文件记录失败", "id", c.Param("id"), "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"message": "查询文件记录失败"})
		}
		return nil, false
	}
	return &media, true
}

func (h *MediaHandler) HandleGetMedia(c *gin.Context) {
	media, ok := h.findMedia(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, media)
}

func (h *MediaHandler) HandleDeleteMedia(c *gin.Context) {
	media, ok := h.findMedia(c)
	if !ok {
		return
	}

	if err := h.Provider.Delete(c.Request.Context(), media.File()); err != nil {
		slog.Error("删除对象失败，交给后台任务重试", "id", media.ID, "key", media.StorageKey, "error", err)
		if dbErr := h.DB.Model(media).Update("delete_pending", true).Error; dbErr != nil {
			slog.Error("标记待删除失败", "id", media.ID, "error", dbErr)
			c.JSON(http.StatusInternalServerError, gin.H{"message": "删除失败"})
			return
		}
		c.JSON(http.StatusAccepted, gin.H{"id": media.ID, "message": "对象删除失败，已安排重试"})
		return
	}

	if err := h.DB.Delete(&Media{}, "id = ?", media.ID).Error; err != nil {
		slog.Error("删除数据库记录失败", "id", media.ID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"message": "删除数据库记录失败"})
		return
	}
	slog.Info("文件已删除", "id", media.ID, "key", media.StorageKey)
	c.JSON(http.StatusOK, gin.H{"id": media.ID})
}

func (h *MediaHandler) HandleSignedURL(c *gin.Context) {
	media, ok := h.findMedia(c)
	if !ok {
		return
	}
	signed, err := h.Provider.SignedURL(c.Request.Context(), media.File())
	if err != nil {
		if errors.Is(err, storage.ErrSigningUnsupported) {
			c.JSON(http.StatusNotImplemented, gin.H{"message": "当前存储后端不支持签名地址"})
			return
		}
		slog.Error("生成签名地址失败", "id", media.ID, "error", err)
		c.JSON(http.StatusBadGateway, gin.H{"message": "无法生成签名地址"})
		return
	}
	c.JSON(http.StatusOK, signed)
}

func (h *MediaHandler) HandleProviderInfo(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"provider":  provider.Name,
		"name":      provider.DisplayName,
		"private":   h.Provider.IsPrivate(),
		"bucket":    h.Provider.Bucket(),
		"directory": h.Provider.Directory(),
	})
}

// cleanFolder 规范化宿主目录，拒绝跳出根目录的路径
func cleanFolder(raw string) (string, bool) {
	raw = strings.Trim(strings.TrimSpace(raw), "/")
	if raw == "" {
		return "", true
	}
	for _, seg := range strings.Split(raw, "/") {
		if seg == ".." {
			return "", false
		}
	}
	cleaned := path.Clean(raw)
	if cleaned == "." {
		return "", true
	}
	return cleaned, true
}

// generateHash 生成 "<名称>_<随机串>" 形式的文件哈希
func generateHash(name string) string {
	base := strings.TrimSuffix(name, filepath.Ext(name))
	var b strings.Builder
	for _, r := range strings.ToLower(base) {
		switch {
		case r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)):
			b.WriteRune(r)
		case b.Len() > 0 && !strings.HasSuffix(b.String(), "_"):
			b.WriteByte('_')
		}
	}
	slug := strings.TrimSuffix(b.String(), "_")
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:10]
	if slug == "" {
		return suffix
	}
	return slug + "_" + suffix
}
