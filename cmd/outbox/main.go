package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/lessonhub-dev/lesson-market/backend/internal/config"
	"github.com/lessonhub-dev/lesson-market/backend/internal/repository"
	amqp "github.com/rabbitmq/amqp091-go"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// outbox worker：轮询 event_outbox 表中未发布的事件，
// 逐条发布到 availability_events 队列后标记为已发布。
// 事件随业务写入在同一个事务中落库，因此不会丢失，最坏情况是重复发布。
func main() {
	/**********************************************
	 * 创建 logger
	 **********************************************/
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	/**********************************************
	 * 读取配置文件
	 **********************************************/
	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Error("无法读取配置文件", slog.String("error", err.Error()))
		return
	}

	/**********************************************
	 * 连接数据库
	 **********************************************/
	dbpool, err := sql.Open("pgx", cfg.Database.DSN)
	if err != nil {
		logger.Error("无法创建数据库连接池", "error", err)
		return
	}
	defer dbpool.Close()

	dbpool.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	dbpool.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	dbpool.SetConnMaxIdleTime(time.Duration(cfg.Database.MaxIdleTime) * time.Second)

	pingCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.Database.ConnectTimeout)*time.Second)
	defer cancel()

	if err := dbpool.PingContext(pingCtx); err != nil {
		logger.Error("无法连接到数据库", "error", err)
		return
	}

	repo := repository.NewRepository(cfg, dbpool)

	/**********************************************
	 * 连接 RabbitMQ
	 **********************************************/
	conn, err := amqp.Dial(cfg.RabbitMQ.DSN)
	if err != nil {
		logger.Error("无法连接到 RabbitMQ", slog.String("error", err.Error()))
		return
	}
	defer conn.Close()

	ch, err := conn.Channel()
	if err != nil {
		logger.Error("无法创建通道", slog.String("error", err.Error()))
		return
	}
	defer ch.Close()

	// 声明队列
	_, err = ch.QueueDeclare(
		"availability_events",
		true,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		logger.Error("无法声明队列", slog.String("error", err.Error()))
		return
	}

	// 监听 CTRL+C
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	ctx, cancel := context.WithCancel(context.Background())
	wg := sync.WaitGroup{}

	wg.Add(1)
	go func() {
		defer wg.Done()

		ticker := time.NewTicker(time.Duration(cfg.Outbox.PollInterval) * time.Second)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				relayEvents(ctx, cfg, repo, ch)
			}
		}
	}()

	logger.Info("outbox worker 已启动...（按 CTRL+C 退出）")
	<-sigChan

	slog.Info("正在关闭 outbox worker...")
	cancel()
	wg.Wait()
	slog.Info("outbox worker 已成功关闭")
}

func relayEvents(ctx context.Context, cfg *config.Config, repo *repository.Repository, ch *amqp.Channel) {
	events, err := repo.GetUnpublishedEvents(cfg.Outbox.BatchSize)
	if err != nil {
		slog.Error("读取未发布事件失败", "error", err)
		return
	}

	for _, event := range events {
		body, err := json.Marshal(event)
		if err != nil {
			slog.Error("事件序列化失败", "id", event.ID, "error", err)
			continue
		}

		publishCtx, cancel := context.WithTimeout(ctx, time.Duration(cfg.RabbitMQ.PublishTimeout)*time.Second)
		err = ch.PublishWithContext(
			publishCtx,
			"",
			"availability_events",
			true,
			false,
			amqp.Publishing{
				ContentType: "application/json",
				Body:        body,
			},
		)
		cancel()
		if err != nil {
			// 发布失败就留在表里，下一轮重试
			slog.Error("事件发布失败", "id", event.ID, "error", err)
			return
		}

		if err := repo.MarkEventPublished(event.ID); err != nil {
			slog.Error("标记事件已发布失败", "id", event.ID, "error", err)
			return
		}

		slog.Info("已发布事件", "id", event.ID, "topic", event.Topic)
	}
}
