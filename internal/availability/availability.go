// Package availability 实现教师可约时间的位图引擎：
// 按周读取和保存可约时间、按周模式批量应用到日期区间，
// 以及针对过去日期的编辑护栏策略。
package availability

import (
	"time"

	"github.com/lessonhub-dev/lesson-market/backend/internal/domain"
)

// Store 是可约时间的持久化接口，由 repository 实现。
// 写入方法必须保证参数中的所有行、审计日志和 outbox 事件
// 在同一个事务中落库，要么全部成功要么全部回滚。
type Store interface {
	GetWeekDays(instructorID int64, weekStart time.Time) (map[string]*domain.AvailabilityDay, error)
	ReplaceWeek(instructorID int64, weekStart time.Time, upserts []*domain.AvailabilityDay, deletes []time.Time, audit *domain.AuditLog, events []*domain.OutboxEvent) error
	BulkUpsertDays(instructorID int64, upserts []*domain.AvailabilityDay, audits []*domain.AuditLog, events []*domain.OutboxEvent) error
}

// BookingOracle 告知某位教师某一天是否存在不允许清除的预约。
// 引擎只把它当作不透明的是/否信号，不关心预约的具体字段。
type BookingOracle interface {
	HasBlockingBooking(instructorID int64, day time.Time) (bool, error)
}

// TimezoneResolver 解析教师所在的时区，用于计算护栏策略中的"今天"。
type TimezoneResolver interface {
	InstructorTimezone(instructorID int64) (*time.Location, error)
}

// Outcome 表示一次操作的结果类型，
// "跳过"（没有可做的事情）是成功的一种，不是错误。
type Outcome string

const (
	OutcomeApplied Outcome = "applied"
	OutcomeSkipped Outcome = "skipped"
)

// WeekView 是一周可约时间的读取结果，按 ISO 日期字符串组织窗口。
type WeekView struct {
	WeekStart string                     `json:"weekStart"`
	Windows   map[string][]domain.Window `json:"windows"`
	ETag      string                     `json:"-"`
}

// WeekSaveSummary 汇报一次整周保存的结果，
// 被跳过的日期会被逐一列出而不是抛错。
type WeekSaveSummary struct {
	Outcome        Outcome  `json:"outcome"`
	Message        string   `json:"message"`
	DaysWritten    int      `json:"daysWritten"`
	WindowsCreated int      `json:"windowsCreated"`
	EditedDates    []string `json:"editedDates"`
	SkippedDates   []string `json:"skippedDates"`
	ConflictDates  []string `json:"conflictDates"`
	HistoricalEdit bool     `json:"historicalEdit"`
}

// ApplySummary 汇报一次按周模式批量应用的结果。
type ApplySummary struct {
	Outcome              Outcome  `json:"outcome"`
	Message              string   `json:"message"`
	WeeksApplied         int      `json:"weeksApplied"`
	WeeksAffected        int      `json:"weeksAffected"`
	DaysWritten          int      `json:"daysWritten"`
	WindowsCreated       int      `json:"windowsCreated"`
	SkippedPastTargets   int      `json:"skippedPastTargets"`
	SkippedBookedTargets int      `json:"skippedBookedTargets"`
	SkippedDates         []string `json:"skippedDates"`
}
