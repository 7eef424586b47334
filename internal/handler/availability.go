package handler

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/lessonhub-dev/lesson-market/backend/internal/domain"
)

func (h *Handler) GetAvailabilityWeek(w http.ResponseWriter, r *http.Request) {
	instructor := r.Context().Value(InstructorCtx).(*domain.User)

	weekStart, err := time.ParseInLocation("2006-01-02", chi.URLParam(r, "weekStart"), time.UTC)
	if err != nil {
		h.errorResponse(w, r, "周起始日期格式错误，应为 YYYY-MM-DD")
		return
	}

	view, err := h.availability.GetWeek(instructor.ID, weekStart)
	if err != nil {
		h.errorResponse(w, r, err.Error())
		return
	}

	// 客户端带着上次的 ETag 来问，没变化就不用重传了
	etag := fmt.Sprintf("%q", view.ETag)
	if r.Header.Get("If-None-Match") == etag {
		w.WriteHeader(http.StatusNotModified)
		return
	}

	w.Header().Set("ETag", etag)
	h.successResponse(w, r, "获取可约时间成功", view)
}

func (h *Handler) SaveAvailabilityWeek(w http.ResponseWriter, r *http.Request) {
	instructor := r.Context().Value(InstructorCtx).(*domain.User)

	weekStart, err := time.ParseInLocation("2006-01-02", chi.URLParam(r, "weekStart"), time.UTC)
	if err != nil {
		h.errorResponse(w, r, "周起始日期格式错误，应为 YYYY-MM-DD")
		return
	}

	var req struct {
		Windows       map[string][]domain.Window `json:"windows" validate:"required"`
		ClearExisting bool                       `json:"clearExisting"`
	}

	if err := h.readJSON(r, &req); err != nil {
		h.badRequest(w, r, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.badRequest(w, r, err)
		return
	}

	summary, err := h.availability.SaveWeek(instructor.ID, weekStart, req.Windows, req.ClearExisting)
	if err != nil {
		h.errorResponse(w, r, err.Error())
		return
	}

	h.successResponse(w, r, summary.Message, summary)
}

func (h *Handler) ApplyAvailabilityPattern(w http.ResponseWriter, r *http.Request) {
	instructor := r.Context().Value(InstructorCtx).(*domain.User)

	var req struct {
		SourceWeekStart string `json:"sourceWeekStart" validate:"required,datetime=2006-01-02"`
		TargetStart     string `json:"targetStart" validate:"required,datetime=2006-01-02"`
		TargetEnd       string `json:"targetEnd" validate:"required,datetime=2006-01-02"`
	}

	if err := h.readJSON(r, &req); err != nil {
		h.badRequest(w, r, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.badRequest(w, r, err)
		return
	}

	sourceWeekStart, _ := time.ParseInLocation("2006-01-02", req.SourceWeekStart, time.UTC)
	targetStart, _ := time.ParseInLocation("2006-01-02", req.TargetStart, time.UTC)
	targetEnd, _ := time.ParseInLocation("2006-01-02", req.TargetEnd, time.UTC)

	summary, err := h.availability.ApplyPatternToRange(instructor.ID, sourceWeekStart, targetStart, targetEnd)
	if err != nil {
		h.errorResponse(w, r, err.Error())
		return
	}

	h.successResponse(w, r, summary.Message, summary)
}

func (h *Handler) GetAvailabilityAuditLogs(w http.ResponseWriter, r *http.Request) {
	instructor := r.Context().Value(InstructorCtx).(*domain.User)

	logs, err := h.repository.GetAuditLogsByInstructorID(instructor.ID)
	if err != nil {
		h.internalServerError(w, r, err)
		return
	}

	h.successResponse(w, r, "获取审计日志成功", logs)
}
