package domain

import "time"

// AuditDetail 记录一次可约时间修改的前后状态，
// 其中位图以十六进制字符串的形式按日期存储。
type AuditDetail struct {
	EditedDates    []string          `json:"editedDates"`
	SkippedDates   []string          `json:"skippedDates"`
	HistoricalEdit bool              `json:"historicalEdit"`
	BeforeBits     map[string]string `json:"beforeBits"`
	AfterBits      map[string]string `json:"afterBits"`
}

type AuditLog struct {
	ID           int64       `json:"id"`
	InstructorID int64       `json:"instructorID"`
	Action       string      `json:"action"`
	WeekStart    time.Time   `json:"weekStart"`
	Detail       AuditDetail `json:"detail"`
	CreatedAt    time.Time   `json:"createdAt"`
}

const (
	AuditActionSaveWeek     = "save_week"
	AuditActionApplyPattern = "apply_pattern"
)
