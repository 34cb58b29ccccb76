package http

import (
	"fmt"
	"strings"

	"imposter-room-be/internal/api/http/httperr"
	"imposter-room-be/internal/state"

	"github.com/kataras/iris/v12"
	"github.com/skip2/go-qrcode"
)

const qrSize = 320

func joinURL(baseURL, code string) string {
	return fmt.Sprintf("%s/join/%s", strings.TrimRight(baseURL, "/"), code)
}

// ShareQR 生成加入房间链接的二维码 PNG
func ShareQR(appState *state.AppState) iris.Handler {
	return func(ctx iris.Context) {
		lobby, err := appState.RoomSvc.Lobby(roomCode(ctx))
		if err != nil {
			httperr.Write(ctx, err)
			return
		}

		png, err := qrcode.Encode(joinURL(appState.Cfg.PublicBaseURL, lobby.Code), qrcode.Medium, qrSize)
		if err != nil {
			httperr.Write(ctx, fmt.Errorf("生成二维码失败: %w", err))
			return
		}

		ctx.ContentType("image/png")
		ctx.Header("Cache-Control", "no-store")
		ctx.Write(png)
	}
}
