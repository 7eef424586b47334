package domain

import "time"

// Window 表示一天内的一段连续可约时间，时间格式为 HH:MM:SS。
// 一天的结束用 24:00:00 表示。
type Window struct {
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
}

// AvailabilityDay 表示某位教师某一天的可约状态，
// bits 中每一位对应一天中的一个 15 分钟时段。
type AvailabilityDay struct {
	ID           int64     `json:"id"`
	InstructorID int64     `json:"instructorID"`
	Day          time.Time `json:"day"`
	Bits         []byte    `json:"-"`
	CreatedAt    time.Time `json:"createdAt"`
	Version      int32     `json:"-"`
}
