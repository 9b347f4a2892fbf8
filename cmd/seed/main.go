package main

import (
	"context"
	"database/sql"
	"flag"
	"log/slog"
	"os"
	"time"

	"github.com/sysu-ecnc-dev/fleet-calendar/backend/internal/config"
	"github.com/sysu-ecnc-dev/fleet-calendar/backend/internal/importer"
	"github.com/sysu-ecnc-dev/fleet-calendar/backend/internal/repository"
	"github.com/sysu-ecnc-dev/fleet-calendar/backend/internal/seed"

	_ "github.com/jackc/pgx/v5/stdlib"
)

func main() {
	var (
		op        int
		vehicles  int
		templates int
		days      int
		file      string
	)

	flag.IntVar(&op, "op", 0, "要执行的操作 (1: 插入随机车队数据, 2: 通过导入器导入 CSV 文件)")
	flag.IntVar(&vehicles, "vehicles", 50, "随机生成的车辆数量")
	flag.IntVar(&templates, "templates", 3, "每个分部随机生成的班次模板数量")
	flag.IntVar(&days, "days", 60, "随机分配和状态覆盖分布的天数")
	flag.StringVar(&file, "file", "", "要导入的 CSV 文件路径")
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

	pingCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.Database.ConnectTimeout)*time.Second)
	defer cancel()

	if err := dbpool.PingContext(pingCtx); err != nil {
		logger.Error("无法连接到数据库", "error", err)
		return
	}

	repo := repository.NewRepository(cfg, dbpool)
	ctx := context.Background()

	// 执行操作
	switch op {
	case 0:
		slog.Error("未指定操作")
	case 1:
		opts := seed.RandomOptions{Vehicles: vehicles, TemplatesPerBranch: templates, Days: days}
		if err := seed.SeedRandom(ctx, repo, opts); err != nil {
			slog.Error("插入随机数据失败", "error", err)
		}
	case 2:
		if file == "" {
			slog.Error("请使用 -file 指定 CSV 文件")
			return
		}
		im, err := importer.New(repo, nil)
		if err != nil {
			slog.Error("无法创建导入器", "error", err)
			return
		}
		if _, err := seed.ImportCSV(ctx, file, repo, im); err != nil {
			slog.Error("导入 CSV 文件失败", "error", err)
		}
	default:
		slog.Error("指定的操作非法")
	}
}
