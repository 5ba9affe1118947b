package entity

import (
	"time"

	"gorm.io/datatypes"
)

// Batch run lifecycle states.
const (
	BatchRunStatusRunning   = "running"
	BatchRunStatusCompleted = "completed"
	BatchRunStatusFailed    = "failed"
)

// SignalBatchRun records one scheduled sweep of the signal generator across
// the active universe. Stats carries per-run counters as JSON.
type SignalBatchRun struct {
	ID          uint           `gorm:"primaryKey" json:"id"`
	Date        time.Time      `gorm:"type:date;not null;index" json:"date"`
	Status      string         `gorm:"not null" json:"status"`
	TotalAssets int            `gorm:"not null;default:0" json:"total_assets"`
	Stats       datatypes.JSON `json:"stats"`
	StartedAt   time.Time      `gorm:"not null" json:"started_at"`
	FinishedAt  *time.Time     `json:"finished_at"`
	CreatedAt   time.Time      `gorm:"autoCreateTime" json:"created_at"`
}

func (SignalBatchRun) TableName() string {
	return "signal_batch_runs"
}
