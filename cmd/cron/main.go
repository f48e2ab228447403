package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"payment-service/internal/biz"
	"payment-service/internal/conf"

	"github.com/gaoyong06/go-pkg/logger"
	"github.com/go-kratos/kratos/v2/config"
	"github.com/go-kratos/kratos/v2/config/env"
	"github.com/go-kratos/kratos/v2/config/file"
	"github.com/go-kratos/kratos/v2/log"
	"github.com/robfig/cron/v3"
	_ "go.uber.org/automaxprocs"
)

const (
	defaultExpireSpec = "0 */5 * * * *"
	expireBatchSize   = 500
)

var (
	flagconf string
)

// CronApp Cron 应用结构
type CronApp struct {
	orderUsecase *biz.OrderUseCase
}

// expirePending 取消超时未支付订单
func (a *CronApp) expirePending(ctx context.Context, logHelper *log.Helper) int {
	count, err := a.orderUsecase.ExpirePending(ctx, expireBatchSize)
	if err != nil {
		logHelper.Errorf("[CRON] Error expiring pending orders: %v", err)
		return 0
	}
	if count > 0 {
		logHelper.Infof("[CRON] Expired pending orders: count=%d", count)
	}
	return count
}

func init() {
	flag.StringVar(&flagconf, "conf", "../../configs/config.yaml", "config path, eg: -conf config.yaml")
}

func main() {
	flag.Parse()

	// 初始化配置
	c := config.New(
		config.WithSource(
			// PAYMENT_DEVICE_SECRET 等环境变量用于替换配置中的 ${DEVICE_SECRET} 占位符
			env.NewSource("PAYMENT_"),
			file.NewSource(flagconf),
		),
	)
	defer c.Close()

	if err := c.Load(); err != nil {
		panic(err)
	}

	var bc conf.Bootstrap
	if err := c.Scan(&bc); err != nil {
		panic(err)
	}

	// 初始化日志 (使用 go-pkg/logger)
	logConfig := &logger.Config{
		Level:         "info",
		Format:        "json",
		Output:        "stdout",
		FilePath:      "logs/payment-cron.log",
		MaxSize:       100,
		MaxAge:        30,
		MaxBackups:    10,
		Compress:      true,
		EnableConsole: true,
	}
	if bc.Log != nil && bc.Log.Level != "" {
		logConfig.Level = bc.Log.Level
	}

	loggerInstance := logger.NewLogger(logConfig)

	// 添加基本字段
	loggerInstance = log.With(loggerInstance,
		"ts", log.DefaultTimestamp,
		"caller", log.DefaultCaller,
		"service.name", "payment-cron",
	)

	logHelper := log.NewHelper(loggerInstance)

	// 初始化应用
	app, cleanup, err := wireApp(&bc, loggerInstance)
	if err != nil {
		panic(err)
	}
	defer cleanup()

	spec := defaultExpireSpec
	if bc.Cron != nil && bc.Cron.ExpirePendingSpec != "" {
		spec = bc.Cron.ExpirePendingSpec
	}

	// 创建定时任务调度器（支持秒级调度）
	cronScheduler := cron.New(cron.WithSeconds())

	// 过期待支付订单
	_, err = cronScheduler.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()
		app.expirePending(ctx, logHelper)
	})
	if err != nil {
		logHelper.Errorf("Failed to add expire pending job: %v", err)
	}

	// 启动定时任务
	cronScheduler.Start()
	logHelper.Info("========================================")
	logHelper.Info("Cron jobs started successfully")
	logHelper.Info("Scheduled jobs:")
	logHelper.Infof("  - Expire pending orders: %s", spec)
	logHelper.Info("========================================")

	// 优雅退出
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logHelper.Info("Shutting down gracefully...")

	// 停止定时任务
	ctx := cronScheduler.Stop()
	select {
	case <-ctx.Done():
		logHelper.Info("Cron jobs stopped gracefully")
	case <-time.After(5 * time.Second):
		logHelper.Info("Cron jobs forced to stop after timeout")
	}
}
