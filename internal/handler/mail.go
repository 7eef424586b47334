package handler

import (
	"context"
	"encoding/json"
	"time"

	"github.com/lessonhub-dev/lesson-market/backend/internal/domain"
	amqp "github.com/rabbitmq/amqp091-go"
)

// publishMailMessage 把邮件消息发布到 email_queue，由 mail worker 消费
func (h *Handler) publishMailMessage(msg domain.MailMessage) error {
	mailData, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(h.config.RabbitMQ.PublishTimeout)*time.Second)
	defer cancel()

	return h.mailChannel.PublishWithContext(
		ctx,
		"",
		"email_queue",
		true,
		false,
		amqp.Publishing{
			ContentType: "application/json",
			Body:        mailData,
		},
	)
}
