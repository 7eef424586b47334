package repository

import (
	"context"
	"time"

	"github.com/lessonhub-dev/lesson-market/backend/internal/domain"
)

// GetUnpublishedEvents 按写入顺序返回还没有发布的 outbox 事件。
func (r *Repository) GetUnpublishedEvents(limit int) ([]*domain.OutboxEvent, error) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(r.cfg.Database.QueryTimeout)*time.Second)
	defer cancel()

	query := `
		SELECT id, topic, payload, created_at
		FROM event_outbox
		WHERE published_at IS NULL
		ORDER BY id
		LIMIT $1
	`

	rows, err := r.dbpool.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	events := make([]*domain.OutboxEvent, 0)
	for rows.Next() {
		event := &domain.OutboxEvent{}
		if err := rows.Scan(&event.ID, &event.Topic, &event.Payload, &event.CreatedAt); err != nil {
			return nil, err
		}
		events = append(events, event)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return events, nil
}

func (r *Repository) MarkEventPublished(id int64) error {
	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(r.cfg.Database.QueryTimeout)*time.Second)
	defer cancel()

	query := `UPDATE event_outbox SET published_at = now() WHERE id = $1`

	_, err := r.dbpool.ExecContext(ctx, query, id)
	if err != nil {
		return err
	}

	return nil
}
