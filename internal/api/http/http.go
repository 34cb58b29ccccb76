package http

import (
	"context"
	"time"

	"imposter-room-be/internal/api/http/websocket"
	"imposter-room-be/internal/state"

	"github.com/kataras/iris/v12"
	"go.uber.org/zap"
)

// NewApp 组装所有路由，测试中直接使用返回的应用
func NewApp(appState *state.AppState) *iris.Application {
	app := iris.Default()
	app.Logger().SetLevel(appState.Cfg.LogLevel)

	app.UseRouter(cors(appState.Cfg.CORSAllowedOrigin))

	app.Get("/healthz", Health())

	api := app.Party("/api/v1")

	api.Get("/catalog/categories", ListCategories(appState))

	api.Post("/rooms", CreateRoom(appState))

	rooms := api.Party("/rooms/{code}")
	{
		rooms.Get("/", GetLobby(appState))
		rooms.Patch("/rules", UpdateRules(appState))
		rooms.Post("/join", JoinRoom(appState))
		rooms.Post("/leave", LeaveRoom(appState))
		rooms.Post("/host-token", IssueHostToken(appState))
		rooms.Post("/ready", ToggleReady(appState))
		rooms.Post("/abort", Abort(appState))

		rooms.Post("/rounds", StartRound(appState))
		rooms.Get("/round", GetRound(appState))
		rooms.Get("/round/assignment", GetAssignment(appState))
		rooms.Post("/round/questions", DrawQuestion(appState))
		rooms.Post("/round/guesses", SubmitGuess(appState))

		rooms.Get("/locations", ListLocations(appState))
		rooms.Get("/qr", ShareQR(appState))

		rooms.Get("/ws", websocket.RoomChannel(appState))
	}

	return app
}

func RunServer(appState *state.AppState) error {
	app := NewApp(appState)

	iris.RegisterOnInterrupt(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		zap.L().Info("收到中断信号，正在关闭服务器")
		app.Shutdown(ctx)
	})

	zap.L().Info("服务器启动", zap.String("addr", appState.Cfg.Addr()))

	return app.Listen(
		appState.Cfg.Addr(),
		iris.WithoutInterruptHandler,
		iris.WithoutServerError(iris.ErrServerClosed),
	)
}

func Health() iris.Handler {
	return func(ctx iris.Context) {
		ctx.JSON(iris.Map{"status": "ok"})
	}
}

// cors 允许浏览器端跨域访问，预检请求直接返回 204
func cors(allowedOrigin string) iris.Handler {
	return func(ctx iris.Context) {
		ctx.Header("Access-Control-Allow-Origin", allowedOrigin)
		ctx.Header("Access-Control-Allow-Methods", "GET, POST, PATCH, OPTIONS")
		ctx.Header("Access-Control-Allow-Headers", "Content-Type, X-Host-Token, X-Player-Token")

		if ctx.Method() == iris.MethodOptions {
			ctx.StatusCode(iris.StatusNoContent)
			ctx.StopExecution()
			return
		}

		ctx.Next()
	}
}
