package domain

import (
	"time"
)

type ShiftTemplate struct {
	ID            int64     `json:"id"`
	BranchID      int64     `json:"branchID"`
	BranchName    string    `json:"branchName"`
	Name          string    `json:"name"`
	StartTime     string    `json:"startTime"`     // HH:MM，不带时区
	EndTime       string    `json:"endTime"`       // 早于 StartTime 时表示跨夜班次
	FreeDayOfWeek int32     `json:"freeDayOfWeek"` // 1 表示周一，7 表示周日
	AnexoSigned   bool      `json:"anexoSigned"`
	CreatedAt     time.Time `json:"createdAt"`
	Version       int32     `json:"-"`
}

// KnownShift 是批量导入时用来匹配班次名称的精简记录
type KnownShift struct {
	ID         int64  `json:"id"`
	Name       string `json:"name"`
	BranchName string `json:"branchName"`
}
