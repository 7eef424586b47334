package repository

import (
	"context"
	"encoding/json"
	"time"

	"github.com/lessonhub-dev/lesson-market/backend/internal/domain"
)

func (r *Repository) GetAuditLogsByInstructorID(instructorID int64) ([]*domain.AuditLog, error) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(r.cfg.Database.QueryTimeout)*time.Second)
	defer cancel()

	query := `
		SELECT id, action, week_start, detail, created_at
		FROM audit_logs
		WHERE instructor_id = $1
		ORDER BY id DESC
	`

	rows, err := r.dbpool.QueryContext(ctx, query, instructorID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	logs := make([]*domain.AuditLog, 0)
	for rows.Next() {
		log := &domain.AuditLog{
			InstructorID: instructorID,
		}

		var detail []byte
		if err := rows.Scan(&log.ID, &log.Action, &log.WeekStart, &detail, &log.CreatedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(detail, &log.Detail); err != nil {
			return nil, err
		}

		logs = append(logs, log)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return logs, nil
}
