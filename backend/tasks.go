// backend/tasks.go
package main

import (
	"context"
	"log/slog"
	"time"

	"gorm.io/gorm"

	"supaupload/provider"
)

const pendingDeleteBatchSize = 100

// RetryPendingDeletesTask 定期重试删除失败的对象，ctx 取消时退出
func RetryPendingDeletesTask(ctx context.Context, db *gorm.DB, p *provider.Provider, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	// 首次运行前先执行一次
	sweepPendingDeletes(ctx, db, p)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			sweepPendingDeletes(ctx, db, p)
		}
	}
}

// sweepPendingDeletes 处理一批待删除记录，返回成功删除的数量。
// 每轮只处理一批，持续失败的记录留到下一轮。
func sweepPendingDeletes(ctx context.Context, db *gorm.DB, p *provider.Provider) int {
	var pending []Media
	result := db.Where("delete_pending = ?", true).
		Order("updated_at asc").Limit(pendingDeleteBatchSize).Find(&pending)
	if result.Error != nil {
		slog.Error("重试删除任务错误: 查询批次失败", "error", result.Error)
		return 0
	}
	if len(pending) == 0 {
		return 0
	}

	deleted := 0
	for _, media := range pending {
		if err := p.Delete(ctx, media.File()); err != nil {
			slog.Warn("重试删除对象仍然失败", "id", media.ID, "key", media.StorageKey, "error", err)
			// 更新时间，让其它记录先被处理
			db.Model(&Media{}).Where("id = ?", media.ID).Update("updated_at", time.Now())
			continue
		}
		if err := db.Delete(&Media{}, "id = ?", media.ID).Error; err != nil {
			slog.Error("重试删除任务错误: 删除数据库记录失败", "id", media.ID, "error", err)
			continue
		}
		deleted++
	}

	slog.Info("本轮重试删除完成", "pending", len(pending), "deleted", deleted)
	return deleted
}
