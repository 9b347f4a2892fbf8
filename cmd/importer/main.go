package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
	"github.com/sysu-ecnc-dev/fleet-calendar/backend/internal/config"
	"github.com/sysu-ecnc-dev/fleet-calendar/backend/internal/domain"
	"github.com/sysu-ecnc-dev/fleet-calendar/backend/internal/importer"
	"github.com/sysu-ecnc-dev/fleet-calendar/backend/internal/metrics"
	"github.com/sysu-ecnc-dev/fleet-calendar/backend/internal/repository"

	_ "github.com/jackc/pgx/v5/stdlib"
)

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

	pingCtx, pingCancel := context.WithTimeout(context.Background(), time.Duration(cfg.Database.ConnectTimeout)*time.Second)
	defer pingCancel()
	if err := dbpool.PingContext(pingCtx); err != nil {
		logger.Error("无法连接到数据库", "error", err)
		return
	}

	repo := repository.NewRepository(cfg, dbpool)

	/**********************************************
	 * 连接 redis
	 **********************************************/
	rdb := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port),
		Password: cfg.Redis.Password,
		DB:       0,
	})
	defer rdb.Close()

	/**********************************************
	 * 连接 RabbitMQ
	 **********************************************/
	conn, err := amqp.Dial(cfg.RabbitMQ.DSN)
	if err != nil {
		logger.Error("无法连接到 RabbitMQ", slog.String("error", err.Error()))
		return
	}
	defer conn.Close()

	// 创建通道
	ch, err := conn.Channel()
	if err != nil {
		logger.Error("无法创建通道", slog.String("error", err.Error()))
		return
	}
	defer ch.Close()

	// 声明导入队列和邮件队列
	for _, name := range []string{cfg.RabbitMQ.ImportQueue, cfg.RabbitMQ.EmailQueue} {
		if _, err := ch.QueueDeclare(
			name,  // 队列名称
			true,  // 是否持久化
			false, // 是否自动删除
			false, // 是否独占
			false, // 是否不等待
			nil,   // 额外参数
		); err != nil {
			logger.Error("无法声明队列", slog.String("queue", name), slog.String("error", err.Error()))
			return
		}
	}

	// 导入任务逐个处理，行与行之间本身就是顺序写入
	if err := ch.Qos(1, 0, false); err != nil {
		logger.Error("无法设置预取数量", slog.String("error", err.Error()))
		return
	}

	/**********************************************
	 * 创建导入器
	 **********************************************/
	m, err := metrics.New(nil)
	if err != nil {
		logger.Error("无法注册指标", "error", err)
		return
	}
	im, err := importer.New(repo, m)
	if err != nil {
		logger.Error("无法创建导入器", "error", err)
		return
	}
	progress := importer.NewProgressStore(rdb, time.Duration(cfg.Redis.ImportProgressTTL)*time.Second)
	worker := importer.NewWorker(im, repo, progress, ch, cfg.RabbitMQ.EmailQueue, time.Duration(cfg.RabbitMQ.PublishTimeout)*time.Second)

	// 监听 CTRL+C
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	// 消费消息
	msgs, err := ch.Consume(
		cfg.RabbitMQ.ImportQueue,
		"",
		false, // 手动确认，任务完成后才 Ack
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		logger.Error("无法消费消息", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 用于关闭 goroutine 的上下文
	ctx, cancel := context.WithCancel(context.Background())
	wg := sync.WaitGroup{}

	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					logger.Error("消息通道已关闭")
					return
				}

				job := domain.ImportJob{}
				if err := json.Unmarshal(msg.Body, &job); err != nil {
					logger.Error("导入任务反序列化失败", slog.String("error", err.Error()))
					_ = msg.Nack(false, false)
					continue
				}
				logger.Info("收到导入任务", slog.String("job", job.ID), slog.Int("rows", len(job.Rows)))

				if _, err := worker.Process(ctx, &job); err != nil {
					logger.Error("导入任务执行失败", slog.String("job", job.ID), slog.String("error", err.Error()))
					_ = msg.Nack(false, ctx.Err() == nil) // 退出时中断的任务不重新入队
					continue
				}

				// 确认消息
				_ = msg.Ack(false)
			}
		}
	}()

	// 等待 CTRL+C 信号
	logger.Info("等待导入任务...（按 CTRL+C 退出）")
	<-sigChan

	// 优雅退出
	slog.Info("正在关闭 importer worker...")
	cancel()
	wg.Wait()
	slog.Info("importer worker 已成功关闭")
}
