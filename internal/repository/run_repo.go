package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/weibaohui/goalagent/backend/internal/model"
	"gorm.io/gorm"
)

type runRepository struct {
	db *gorm.DB
}

func NewRunRepository(db *gorm.DB) RunRepository {
	return &runRepository{db: db}
}

func (r *runRepository) Create(ctx context.Context, record *model.RunRecord) error {
	return r.db.WithContext(ctx).Create(record).Error
}

func (r *runRepository) GetByRunID(ctx context.Context, runID string) (*model.RunRecord, error) {
	var record model.RunRecord
	err := r.db.WithContext(ctx).Where("run_id = ?", runID).First(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &record, nil
}

// List 按创建时间倒序返回最近的运行记录
func (r *runRepository) List(ctx context.Context, limit int) ([]model.RunRecord, error) {
	var records []model.RunRecord
	query := r.db.WithContext(ctx).Order("created_at DESC").Order("id DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	err := query.Find(&records).Error
	return records, err
}

func (r *runRepository) Save(ctx context.Context, record *model.RunRecord) error {
	return r.db.WithContext(ctx).Save(record).Error
}

// UpdatePhase 更新阶段与进度，记录不存在时返回 ErrNotFound
func (r *runRepository) UpdatePhase(ctx context.Context, runID, phase string, progress int) error {
	result := r.db.WithContext(ctx).Model(&model.RunRecord{}).
		Where("run_id = ?", runID).
		Updates(map[string]interface{}{
			"phase":    phase,
			"progress": progress,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// CleanupStale 把停留在 analyzing/executing 超过指定时间的记录标记为失败
// 用于进程重启后清理未结束的运行
func (r *runRepository) CleanupStale(ctx context.Context, timeout time.Duration) (int64, error) {
	cutoff := time.Now().Add(-timeout)
	result := r.db.WithContext(ctx).Model(&model.RunRecord{}).
		Where("phase IN ? AND updated_at <= ?", []string{"analyzing", "executing"}, cutoff).
		Updates(map[string]interface{}{
			"phase":     "failed",
			"error_msg": fmt.Sprintf("运行未结束（超过 %v），已自动标记为失败", timeout),
		})
	return result.RowsAffected, result.Error
}
