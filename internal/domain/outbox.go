package domain

import (
	"encoding/json"
	"time"
)

// OutboxEvent 是随业务写入在同一个事务中落库的事件记录，
// 由 outbox worker 异步读取并发布到消息队列。
type OutboxEvent struct {
	ID          int64           `json:"id"`
	Topic       string          `json:"topic"`
	Payload     json.RawMessage `json:"payload"`
	CreatedAt   time.Time       `json:"createdAt"`
	PublishedAt *time.Time      `json:"publishedAt"`
}

const (
	TopicAvailabilityDayChanged = "availability.day_changed"
	TopicBookingCreated         = "booking.created"
	TopicBookingCancelled       = "booking.cancelled"
)

type AvailabilityDayChangedPayload struct {
	InstructorID int64  `json:"instructorID"`
	Day          string `json:"day"`
}
