package handler

import (
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/lessonhub-dev/lesson-market/backend/internal/bitset"
	"github.com/lessonhub-dev/lesson-market/backend/internal/domain"
	"github.com/lessonhub-dev/lesson-market/backend/internal/utils"
)

func (h *Handler) CreateBooking(w http.ResponseWriter, r *http.Request) {
	studentID, err := strconv.ParseInt(r.Context().Value(SubCtxKey).(string), 10, 64)
	if err != nil {
		h.internalServerError(w, r, err)
		return
	}

	var req struct {
		InstructorID int64  `json:"instructorID" validate:"required"`
		Day          string `json:"day" validate:"required,datetime=2006-01-02"`
		StartTime    string `json:"startTime" validate:"required"`
		EndTime      string `json:"endTime" validate:"required"`
	}

	if err := h.readJSON(r, &req); err != nil {
		h.badRequest(w, r, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.badRequest(w, r, err)
		return
	}

	if err := utils.ValidateBookingTime(req.StartTime, req.EndTime); err != nil {
		h.badRequest(w, r, err)
		return
	}

	instructor, err := h.repository.GetUserByID(req.InstructorID)
	if err != nil {
		switch {
		case errors.Is(err, sql.ErrNoRows):
			h.errorResponse(w, r, "教师不存在")
		default:
			h.internalServerError(w, r, err)
		}
		return
	}
	if instructor.Role != domain.RoleInstructor {
		h.errorResponse(w, r, "该用户不是教师")
		return
	}

	day, _ := time.ParseInLocation("2006-01-02", req.Day, time.UTC)

	// 不允许预约过去的日期，"今天"按教师所在时区计算
	loc, err := h.repository.InstructorTimezone(instructor.ID)
	if err != nil {
		h.internalServerError(w, r, err)
		return
	}
	now := time.Now().In(loc)
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	if day.Before(today) {
		h.errorResponse(w, r, "不能预约过去的日期")
		return
	}

	// 预约的时间段必须完全落在教师开放的可约时间内
	reqBits, err := bitset.FromWindows([]domain.Window{{StartTime: req.StartTime, EndTime: req.EndTime}})
	if err != nil {
		h.badRequest(w, r, err)
		return
	}

	availDay, err := h.repository.GetDay(instructor.ID, day)
	if err != nil {
		switch {
		case errors.Is(err, sql.ErrNoRows):
			h.errorResponse(w, r, "该教师当天没有开放可约时间")
		default:
			h.internalServerError(w, r, err)
		}
		return
	}

	dayBits, err := bitset.FromBytes(availDay.Bits)
	if err != nil {
		h.internalServerError(w, r, err)
		return
	}
	if reqBits.ClearsAnyOf(dayBits) {
		h.errorResponse(w, r, "所选时间段不在教师的可约时间内")
		return
	}

	overlapping, err := h.repository.HasOverlappingBooking(instructor.ID, day, req.StartTime, req.EndTime)
	if err != nil {
		h.internalServerError(w, r, err)
		return
	}
	if overlapping {
		h.errorResponse(w, r, "所选时间段已被其他学员预约")
		return
	}

	booking := &domain.Booking{
		StudentID:    studentID,
		InstructorID: instructor.ID,
		Day:          day,
		StartTime:    req.StartTime,
		EndTime:      req.EndTime,
		Status:       domain.BookingStatusConfirmed,
	}

	payload, _ := json.Marshal(booking)
	event := &domain.OutboxEvent{
		Topic:   domain.TopicBookingCreated,
		Payload: payload,
	}

	if err := h.repository.CreateBooking(booking, event); err != nil {
		h.internalServerError(w, r, err)
		return
	}

	// 邮件通知教师有新预约
	if err := h.publishMailMessage(domain.MailMessage{
		Type: "booking_created",
		To:   instructor.Email,
		Data: domain.BookingCreatedMailData{
			FullName:       instructor.FullName,
			InstructorName: instructor.FullName,
			Day:            req.Day,
			StartTime:      req.StartTime,
			EndTime:        req.EndTime,
		},
	}); err != nil {
		h.internalServerError(w, r, err)
		return
	}

	h.successResponse(w, r, "预约成功", booking)
}

func (h *Handler) GetBooking(w http.ResponseWriter, r *http.Request) {
	booking := r.Context().Value(BookingCtx).(*domain.Booking)

	if !h.canOperateBooking(r, booking) {
		h.errorResponse(w, r, "权限不足")
		return
	}

	h.successResponse(w, r, "获取预约成功", booking)
}

func (h *Handler) CancelBooking(w http.ResponseWriter, r *http.Request) {
	booking := r.Context().Value(BookingCtx).(*domain.Booking)

	if !h.canOperateBooking(r, booking) {
		h.errorResponse(w, r, "权限不足")
		return
	}

	// 同一个预约同一时刻只允许一个取消操作在处理
	release, acquired := h.bookingLock.Acquire(r.Context(), booking.ID)
	if !acquired {
		h.errorResponse(w, r, "该预约正在处理中，请稍后重试")
		return
	}
	defer release()

	if booking.Status != domain.BookingStatusConfirmed {
		h.errorResponse(w, r, "只有已确认的预约才可以取消")
		return
	}

	booking.Status = domain.BookingStatusCancelled

	payload, _ := json.Marshal(booking)
	event := &domain.OutboxEvent{
		Topic:   domain.TopicBookingCancelled,
		Payload: payload,
	}

	if err := h.repository.UpdateBookingStatus(booking, event); err != nil {
		switch {
		case errors.Is(err, sql.ErrNoRows):
			h.errorResponse(w, r, "预约已被其他操作修改，请刷新后重试")
		default:
			h.internalServerError(w, r, err)
		}
		return
	}

	// 邮件通知教师预约被取消
	instructor, err := h.repository.GetUserByID(booking.InstructorID)
	if err == nil {
		_ = h.publishMailMessage(domain.MailMessage{
			Type: "booking_cancelled",
			To:   instructor.Email,
			Data: domain.BookingCancelledMailData{
				FullName:       instructor.FullName,
				InstructorName: instructor.FullName,
				Day:            booking.Day.Format("2006-01-02"),
				StartTime:      booking.StartTime,
				EndTime:        booking.EndTime,
			},
		})
	}

	h.successResponse(w, r, "预约取消成功", booking)
}

// canOperateBooking 只允许预约的学员本人、对应教师或管理员访问预约
func (h *Handler) canOperateBooking(r *http.Request, booking *domain.Booking) bool {
	role := domain.Role(r.Context().Value(RoleCtxKey).(string))
	if role == domain.RoleAdmin {
		return true
	}

	sub, err := strconv.ParseInt(r.Context().Value(SubCtxKey).(string), 10, 64)
	if err != nil {
		return false
	}

	return sub == booking.StudentID || sub == booking.InstructorID
}
