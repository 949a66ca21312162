// backend/database.go
package main

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"supaupload/provider"
)

const (
	ScanStatusClean    = "clean"
	ScanStatusInfected = "infected"
	ScanStatusError    = "error"
	ScanStatusSkipped  = "skipped"
)

// Media 是宿主侧的媒体记录。Hash 保存 Upload 之后的值，删除和签名时据此重新计算对象路径。
type Media struct {
	ID         string    `gorm:"primaryKey" json:"id"`
	Name       string    `gorm:"size:255" json:"name"`
	Ext        string    `gorm:"size:32" json:"ext"`
	Path       string    `gorm:"size:255" json:"path,omitempty"`
	Hash       string    `gorm:"size:64" json:"hash"`
	Mime       string    `gorm:"size:128" json:"mime"`
	SizeBytes  int64     `gorm:"not null" json:"sizeBytes"`
	URL        string    `gorm:"size:1024" json:"url"`
	StorageKey string    `gorm:"size:1024" json:"storageKey"`
	Provider   string    `gorm:"size:32" json:"provider"`
	ScanStatus string    `gorm:"default:'skipped';index" json:"scanStatus"`
	ScanResult string    `gorm:"size:255" json:"scanResult,omitempty"`
	// DeletePending 表示对象删除失败，等待后台任务重试
	DeletePending bool      `gorm:"default:false;index" json:"-"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// File 还原出 provider 需要的文件描述
func (m *Media) File() *provider.File {
	return &provider.File{
		Name: m.Name,
		Ext:  m.Ext,
		Path: m.Path,
		Hash: m.Hash,
		Mime: m.Mime,
		URL:  m.URL,
	}
}

// --- 数据库连接 ---
func ConnectDatabase(config DBConfig) (*gorm.DB, error) {
	var dialector gorm.Dialector

	dbType := strings.ToLower(config.Type)
	dsn := config.DSN

	switch dbType {
	case "sqlite":
		// 确保 WAL 模式开启
		dialector = sqlite.Open(dsn + "?_journal_mode=WAL")
	case "mysql":
		// 示例 DSN: "user:pass@tcp(127.0.0.1:3306)/dbname?charset=utf8mb4&parseTime=True&loc=Local"
		dialector = mysql.Open(dsn)
	case "postgres":
		// 示例 DSN: "host=localhost user=gorm password=gorm dbname=gorm port=5432 sslmode=disable"
		dialector = postgres.Open(dsn)
	default:
		return nil, fmt.Errorf("不支持的数据库类型: %s", dbType)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("无法连接数据库 (%s): %w", dbType, err)
	}

	if err := db.AutoMigrate(&Media{}); err != nil {
		return nil, fmt.Errorf("无法迁移数据库: %w", err)
	}

	slog.Info("成功连接到数据库", "type", dbType)
	return db, nil
}
