package repository

import (
	"context"
	"time"

	"github.com/lessonhub-dev/lesson-market/backend/internal/domain"
)

func (r *Repository) CreateBooking(booking *domain.Booking, event *domain.OutboxEvent) error {
	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(r.cfg.Database.TransactionTimeout)*time.Second)
	defer cancel()

	tx, err := r.dbpool.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback()
	}()

	query := `
		INSERT INTO bookings (student_id, instructor_id, day, start_time, end_time, status)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at, version
	`

	args := []any{booking.StudentID, booking.InstructorID, booking.Day, booking.StartTime, booking.EndTime, booking.Status}
	if err := tx.QueryRowContext(ctx, query, args...).Scan(&booking.ID, &booking.CreatedAt, &booking.Version); err != nil {
		return err
	}

	if err := insertOutboxEventsTx(ctx, tx, []*domain.OutboxEvent{event}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return err
	}

	return nil
}

func (r *Repository) GetBookingByID(id int64) (*domain.Booking, error) {
	query := `
		SELECT student_id, instructor_id, day, start_time, end_time, status, created_at, version
		FROM bookings WHERE id = $1
	`

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(r.cfg.Database.QueryTimeout)*time.Second)
	defer cancel()

	booking := &domain.Booking{
		ID: id,
	}

	dst := []any{&booking.StudentID, &booking.InstructorID, &booking.Day, &booking.StartTime, &booking.EndTime, &booking.Status, &booking.CreatedAt, &booking.Version}
	if err := r.dbpool.QueryRowContext(ctx, query, id).Scan(dst...); err != nil {
		return nil, err
	}

	return booking, nil
}

func (r *Repository) UpdateBookingStatus(booking *domain.Booking, event *domain.OutboxEvent) error {
	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(r.cfg.Database.TransactionTimeout)*time.Second)
	defer cancel()

	tx, err := r.dbpool.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback()
	}()

	query := `
		UPDATE bookings
		SET status = $1, version = version + 1
		WHERE id = $2 AND version = $3
		RETURNING version
	`

	if err := tx.QueryRowContext(ctx, query, booking.Status, booking.ID, booking.Version).Scan(&booking.Version); err != nil {
		return err
	}

	if err := insertOutboxEventsTx(ctx, tx, []*domain.OutboxEvent{event}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return err
	}

	return nil
}

// HasBlockingBooking 实现可约时间引擎的预约冲突接口：
// 已确认或已完成的预约阻止对应日期的时段被清除。
func (r *Repository) HasBlockingBooking(instructorID int64, day time.Time) (bool, error) {
	isExists := false

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(r.cfg.Database.QueryTimeout)*time.Second)
	defer cancel()

	query := `
		SELECT EXISTS (
			SELECT 1 FROM bookings
			WHERE instructor_id = $1 AND day = $2 AND status IN ('已确认', '已完成')
		)
	`
	if err := r.dbpool.QueryRowContext(ctx, query, instructorID, day).Scan(&isExists); err != nil {
		return false, err
	}

	return isExists, nil
}

// HasOverlappingBooking 检查某个时间段是否与该教师当天已有的有效预约重叠。
func (r *Repository) HasOverlappingBooking(instructorID int64, day time.Time, startTime, endTime string) (bool, error) {
	isExists := false

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(r.cfg.Database.QueryTimeout)*time.Second)
	defer cancel()

	query := `
		SELECT EXISTS (
			SELECT 1 FROM bookings
			WHERE instructor_id = $1 AND day = $2
				AND status IN ('已确认', '已完成')
				AND start_time < $4 AND end_time > $3
		)
	`
	if err := r.dbpool.QueryRowContext(ctx, query, instructorID, day, startTime, endTime).Scan(&isExists); err != nil {
		return false, err
	}

	return isExists, nil
}
