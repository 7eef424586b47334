package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/lessonhub-dev/lesson-market/backend/internal/domain"
)

func (r *Repository) GetWeekDays(instructorID int64, weekStart time.Time) (map[string]*domain.AvailabilityDay, error) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(r.cfg.Database.QueryTimeout)*time.Second)
	defer cancel()

	query := `
		SELECT id, day, bits, created_at, version
		FROM availability_days
		WHERE instructor_id = $1 AND day >= $2 AND day < $3
		ORDER BY day
	`

	rows, err := r.dbpool.QueryContext(ctx, query, instructorID, weekStart, weekStart.AddDate(0, 0, 7))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	days := make(map[string]*domain.AvailabilityDay)
	for rows.Next() {
		day := &domain.AvailabilityDay{
			InstructorID: instructorID,
		}
		dst := []any{&day.ID, &day.Day, &day.Bits, &day.CreatedAt, &day.Version}
		if err := rows.Scan(dst...); err != nil {
			return nil, err
		}
		days[day.Day.Format("2006-01-02")] = day
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return days, nil
}

func (r *Repository) GetDay(instructorID int64, day time.Time) (*domain.AvailabilityDay, error) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(r.cfg.Database.QueryTimeout)*time.Second)
	defer cancel()

	query := `
		SELECT id, bits, created_at, version
		FROM availability_days
		WHERE instructor_id = $1 AND day = $2
	`

	result := &domain.AvailabilityDay{
		InstructorID: instructorID,
		Day:          day,
	}

	dst := []any{&result.ID, &result.Bits, &result.CreatedAt, &result.Version}
	if err := r.dbpool.QueryRowContext(ctx, query, instructorID, day).Scan(dst...); err != nil {
		return nil, err
	}

	return result, nil
}

// ReplaceWeek 在一个事务中完成整周替换：删除被清空的日期、
// 写入新的日期行、落审计日志和 outbox 事件。
// 任何一步失败都回滚，读取方永远不会看到半个星期的状态。
func (r *Repository) ReplaceWeek(instructorID int64, weekStart time.Time, upserts []*domain.AvailabilityDay, deletes []time.Time, audit *domain.AuditLog, events []*domain.OutboxEvent) error {
	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(r.cfg.Database.TransactionTimeout)*time.Second)
	defer cancel()

	tx, err := r.dbpool.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback()
	}()

	for _, day := range deletes {
		query := `DELETE FROM availability_days WHERE instructor_id = $1 AND day = $2`
		if _, err := tx.ExecContext(ctx, query, instructorID, day); err != nil {
			return err
		}
	}

	for _, day := range upserts {
		if err := upsertDayTx(ctx, tx, day); err != nil {
			return err
		}
	}

	if err := insertAuditLogTx(ctx, tx, audit); err != nil {
		return err
	}

	if err := insertOutboxEventsTx(ctx, tx, events); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return err
	}

	return nil
}

// BulkUpsertDays 批量写入日期行，和审计日志、outbox 事件共用一个事务。
func (r *Repository) BulkUpsertDays(instructorID int64, upserts []*domain.AvailabilityDay, audits []*domain.AuditLog, events []*domain.OutboxEvent) error {
	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(r.cfg.Database.TransactionTimeout)*time.Second)
	defer cancel()

	tx, err := r.dbpool.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback()
	}()

	for _, day := range upserts {
		if err := upsertDayTx(ctx, tx, day); err != nil {
			return err
		}
	}

	for _, audit := range audits {
		if err := insertAuditLogTx(ctx, tx, audit); err != nil {
			return err
		}
	}

	if err := insertOutboxEventsTx(ctx, tx, events); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return err
	}

	return nil
}

func upsertDayTx(ctx context.Context, tx *sql.Tx, day *domain.AvailabilityDay) error {
	query := `
		INSERT INTO availability_days (instructor_id, day, bits)
		VALUES ($1, $2, $3)
		ON CONFLICT (instructor_id, day) DO UPDATE
		SET bits = EXCLUDED.bits, version = availability_days.version + 1
		RETURNING id, created_at, version
	`
	return tx.QueryRowContext(ctx, query, day.InstructorID, day.Day, day.Bits).Scan(&day.ID, &day.CreatedAt, &day.Version)
}

func insertAuditLogTx(ctx context.Context, tx *sql.Tx, audit *domain.AuditLog) error {
	detail, err := json.Marshal(audit.Detail)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO audit_logs (instructor_id, action, week_start, detail)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at
	`
	return tx.QueryRowContext(ctx, query, audit.InstructorID, audit.Action, audit.WeekStart, detail).Scan(&audit.ID, &audit.CreatedAt)
}

func insertOutboxEventsTx(ctx context.Context, tx *sql.Tx, events []*domain.OutboxEvent) error {
	for _, event := range events {
		query := `
			INSERT INTO event_outbox (topic, payload)
			VALUES ($1, $2)
			RETURNING id, created_at
		`
		if err := tx.QueryRowContext(ctx, query, event.Topic, []byte(event.Payload)).Scan(&event.ID, &event.CreatedAt); err != nil {
			return err
		}
	}
	return nil
}
