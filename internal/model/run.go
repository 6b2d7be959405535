package model

import (
	"time"
)

// RunRecord 运行历史记录
type RunRecord struct {
	ID          uint       `json:"id" gorm:"primaryKey"`
	RunID       string     `json:"run_id" gorm:"size:64;uniqueIndex"` // UUID
	Goal        string     `json:"goal" gorm:"type:text;not null"`
	Workspace   string     `json:"space_key" gorm:"size:255;index"`
	Pages       string     `json:"pages" gorm:"type:text"`                 // JSON 数组
	Phase       string     `json:"phase" gorm:"size:50;default:analyzing"` // idle, analyzing, executing, completed, failed
	Progress    int        `json:"progress" gorm:"default:0"`              // 0-100
	Reasoning   string     `json:"reasoning" gorm:"type:text"`
	ToolsUsed   string     `json:"tools_used" gorm:"type:text"` // JSON 数组
	Answer      string     `json:"answer" gorm:"type:text"`     // JSON 格式的 AggregatedAnswer
	ErrorMsg    string     `json:"error_msg" gorm:"size:2000"`
	StartedAt   *time.Time `json:"started_at" gorm:"column:started_at"`
	CompletedAt *time.Time `json:"completed_at" gorm:"column:completed_at"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}
