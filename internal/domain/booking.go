package domain

import "time"

type BookingStatus string

const (
	BookingStatusConfirmed BookingStatus = "已确认"
	BookingStatusCompleted BookingStatus = "已完成"
	BookingStatusCancelled BookingStatus = "已取消"
)

type Booking struct {
	ID           int64         `json:"id"`
	StudentID    int64         `json:"studentID"`
	InstructorID int64         `json:"instructorID"`
	Day          time.Time     `json:"day"`
	StartTime    string        `json:"startTime"`
	EndTime      string        `json:"endTime"`
	Status       BookingStatus `json:"status"`
	CreatedAt    time.Time     `json:"createdAt"`
	Version      int32         `json:"-"`
}
