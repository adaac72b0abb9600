package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"trade-gate/internal/config"
	"trade-gate/internal/exchange"
	"trade-gate/internal/journal"
	"trade-gate/internal/log"
	"trade-gate/internal/store"
)

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "", "配置文件路径，默认使用 configs/config.yaml")
	flag.Parse()

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "加载配置失败: %v\n", err)
		os.Exit(1)
	}

	logger, err := log.NewLogger(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "初始化日志失败: %v\n", err)
		os.Exit(1)
	}
	defer func(logger *zap.Logger) {
		_ = logger.Sync()
	}(logger)

	var recorder *journal.Recorder
	if cfg.Journal.Enabled {
		journalStore, err := store.Open(cfg.Journal)
		if err != nil {
			logger.Error("初始化流水存储失败", zap.Error(err))
			os.Exit(1)
		}
		defer func() {
			if closeErr := journalStore.Close(); closeErr != nil {
				logger.Warn("关闭流水存储失败", zap.Error(closeErr))
			}
		}()

		recorder, err = journal.NewRecorder(journalStore, logger)
		if err != nil {
			logger.Error("初始化订单流水失败", zap.Error(err))
			os.Exit(1)
		}
	}

	manager, err := exchange.NewManager(cfg, logger, exchange.Options{
		Credentials: envCredentials(),
		Journal:     recorder,
	})
	if err != nil {
		logger.Error("初始化交易入口失败", zap.Error(err))
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := manager.TestConnection(ctx); err != nil {
		logger.Error("交易所连接校验失败", zap.Error(err))
		os.Exit(1)
	}

	balances, err := manager.FetchBalance(ctx)
	if err != nil {
		logger.Error("获取账户余额失败", zap.Error(err))
		os.Exit(1)
	}

	for asset, balance := range balances {
		logger.Info("账户余额",
			zap.String("asset", asset),
			zap.String("free", balance.Free.String()),
			zap.String("used", balance.Used.String()),
			zap.String("total", balance.Total.String()),
		)
	}

	logger.Info("连接校验完成",
		zap.String("mode", string(manager.Mode())),
		zap.Int("assets", len(balances)),
	)
}

// envCredentials 优先使用环境变量中的 API 凭据，未设置时返回 nil 让配置接管。
func envCredentials() exchange.CredentialProvider {
	apiKey := os.Getenv("TRADEGATE_API_KEY")
	apiSecret := os.Getenv("TRADEGATE_API_SECRET")
	if apiKey == "" || apiSecret == "" {
		return nil
	}
	return func() (string, string, error) {
		return apiKey, apiSecret, nil
	}
}
