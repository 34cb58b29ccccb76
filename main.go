package main

import (
	"imposter-room-be/internal/api/http"
	"imposter-room-be/internal/catalog"
	"imposter-room-be/internal/config"
	"imposter-room-be/internal/logger"
	"imposter-room-be/internal/service"
	"imposter-room-be/internal/state"

	"go.uber.org/zap"
)

func main() {
	// 加载配置
	cfg, err := config.InitConfig()
	if err != nil {
		panic(err)
	}

	// 初始化日志器
	logger.InitLogger(cfg.LogLevel)
	defer logger.Sync()

	// 加载种子数据
	cat, err := catalog.Load(cfg.SeedDir)
	if err != nil {
		zap.L().Fatal("加载种子数据失败", zap.String("seed_dir", cfg.SeedDir), zap.Error(err))
	}

	tokens, err := service.NewHostTokenIssuer(cfg.HostTokenSecret)
	if err != nil {
		zap.L().Fatal("初始化房主令牌失败", zap.Error(err))
	}
	if cfg.HostTokenSecret == "" {
		zap.L().Warn("未配置 host_token_secret，使用随机密钥，重启后房主令牌失效")
	}

	roomSvc, err := service.NewRoomService(
		cat,
		service.WithHostTokens(tokens),
		service.WithIdleTimeout(cfg.RoomIdleTimeout),
		service.WithSweepInterval(cfg.SweepInterval),
		service.WithPushBuffer(cfg.PushBufferSize),
	)
	if err != nil {
		zap.L().Fatal("初始化房间服务失败", zap.Error(err))
	}
	defer roomSvc.Close()

	// 组装应用状态
	appState := state.NewAppState(cfg, cat, roomSvc)

	// 启动服务器
	if err := http.RunServer(appState); err != nil {
		zap.L().Error("服务器异常退出", zap.Error(err))
	}
}
