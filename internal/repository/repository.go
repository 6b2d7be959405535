package repository

import (
	"context"
	"errors"
	"time"

	"github.com/weibaohui/goalagent/backend/internal/model"
)

// ErrNotFound 记录不存在错误
var ErrNotFound = errors.New("record not found")

type RunRepository interface {
	Create(ctx context.Context, record *model.RunRecord) error
	GetByRunID(ctx context.Context, runID string) (*model.RunRecord, error)
	List(ctx context.Context, limit int) ([]model.RunRecord, error)
	Save(ctx context.Context, record *model.RunRecord) error
	UpdatePhase(ctx context.Context, runID, phase string, progress int) error
	CleanupStale(ctx context.Context, timeout time.Duration) (int64, error)
}
