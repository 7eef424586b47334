package main

import (
	"context"
	"database/sql"
	"flag"
	"log/slog"
	"os"
	"time"

	"github.com/lessonhub-dev/lesson-market/backend/internal/availability"
	"github.com/lessonhub-dev/lesson-market/backend/internal/config"
	"github.com/lessonhub-dev/lesson-market/backend/internal/repository"
	"github.com/lessonhub-dev/lesson-market/backend/internal/seed"

	_ "github.com/jackc/pgx/v5/stdlib"
)

func main() {
	var instructorsNum int
	var studentsNum int

	flag.IntVar(&instructorsNum, "instructors", 5, "要插入的随机教师数量")
	flag.IntVar(&studentsNum, "students", 10, "要插入的随机学员数量")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// 读取配置文件
	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Error("无法读取配置文件", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 创建数据库连接池
	dbpool, err := sql.Open("pgx", cfg.Database.DSN)
	if err != nil {
		logger.Error("无法创建数据库连接池", "error", err)
		return
	}
	defer dbpool.Close()

	dbpool.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	dbpool.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	dbpool.SetConnMaxIdleTime(time.Duration(cfg.Database.MaxIdleTime) * time.Second)

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.Database.ConnectTimeout)*time.Second)
	defer cancel()

	// sql.Open 只是创建数据库连接池对象，并不会立即连接到数据库，因此需要显式地 ping 一下
	if err := dbpool.PingContext(ctx); err != nil {
		logger.Error("无法连接到数据库", "error", err)
		return
	}

	// 创建 repository 和可约时间引擎
	repo := repository.NewRepository(cfg, dbpool)
	svc := availability.NewService(cfg, repo, repo, repo)

	if instructorsNum <= 0 || studentsNum <= 0 {
		slog.Error("请输入合法的教师和学员数量")
		return
	}

	seed.SeedDemoData(cfg, repo, svc, instructorsNum, studentsNum)
}
