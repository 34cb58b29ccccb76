package http

import (
	"errors"
	"io"

	"imposter-room-be/internal/api/http/httperr"
	"imposter-room-be/internal/service/dto"
	"imposter-room-be/internal/state"

	"github.com/kataras/iris/v12"
)

const (
	hostTokenHeader   = "X-Host-Token"
	playerTokenHeader = "X-Player-Token"
)

// readOptionalJSON 读取请求体，空请求体视为空请求。
// 房主操作可以只在请求头里携带令牌而不带请求体。
func readOptionalJSON(ctx iris.Context, out any) error {
	if ctx.GetContentLength() == 0 {
		return nil
	}
	if err := ctx.ReadJSON(out); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// hostToken 优先使用请求体里的令牌，其次使用请求头
func hostToken(ctx iris.Context, fromBody string) string {
	if fromBody != "" {
		return fromBody
	}
	return ctx.GetHeader(hostTokenHeader)
}

// playerToken 优先使用请求头，其次使用查询参数
func playerToken(ctx iris.Context) string {
	if token := ctx.GetHeader(playerTokenHeader); token != "" {
		return token
	}
	return ctx.URLParam("player_token")
}

func roomCode(ctx iris.Context) string {
	return ctx.Params().Get("code")
}

func CreateRoom(appState *state.AppState) iris.Handler {
	return func(ctx iris.Context) {
		var req dto.CreateRoomRequest

		if err := ctx.ReadJSON(&req); err != nil {
			httperr.BadBody(ctx, err)
			return
		}

		resp, err := appState.RoomSvc.CreateRoom(req)
		if err != nil {
			httperr.Write(ctx, err)
			return
		}

		ctx.StatusCode(iris.StatusCreated)
		ctx.JSON(resp)
	}
}

func GetLobby(appState *state.AppState) iris.Handler {
	return func(ctx iris.Context) {
		resp, err := appState.RoomSvc.Lobby(roomCode(ctx))
		if err != nil {
			httperr.Write(ctx, err)
			return
		}

		ctx.JSON(resp)
	}
}

func UpdateRules(appState *state.AppState) iris.Handler {
	return func(ctx iris.Context) {
		var req dto.UpdateRulesRequest

		if err := readOptionalJSON(ctx, &req); err != nil {
			httperr.BadBody(ctx, err)
			return
		}

		resp, err := appState.RoomSvc.UpdateRules(roomCode(ctx), hostToken(ctx, req.HostToken), req.Rules)
		if err != nil {
			httperr.Write(ctx, err)
			return
		}

		ctx.JSON(resp)
	}
}

func JoinRoom(appState *state.AppState) iris.Handler {
	return func(ctx iris.Context) {
		var req dto.JoinRoomRequest

		if err := ctx.ReadJSON(&req); err != nil {
			httperr.BadBody(ctx, err)
			return
		}

		resp, err := appState.RoomSvc.JoinRoom(roomCode(ctx), req)
		if err != nil {
			httperr.Write(ctx, err)
			return
		}

		ctx.JSON(resp)
	}
}

func LeaveRoom(appState *state.AppState) iris.Handler {
	return func(ctx iris.Context) {
		var req dto.PlayerRequest

		if err := ctx.ReadJSON(&req); err != nil {
			httperr.BadBody(ctx, err)
			return
		}

		resp, err := appState.RoomSvc.LeaveRoom(roomCode(ctx), req.PlayerID)
		if err != nil {
			httperr.Write(ctx, err)
			return
		}

		ctx.JSON(resp)
	}
}

func IssueHostToken(appState *state.AppState) iris.Handler {
	return func(ctx iris.Context) {
		var req dto.HostTokenRequest

		if err := readOptionalJSON(ctx, &req); err != nil {
			httperr.BadBody(ctx, err)
			return
		}
		if req.PlayerToken == "" {
			req.PlayerToken = playerToken(ctx)
		}

		resp, err := appState.RoomSvc.IssueHostToken(roomCode(ctx), req.PlayerToken)
		if err != nil {
			httperr.Write(ctx, err)
			return
		}

		ctx.JSON(resp)
	}
}

func ToggleReady(appState *state.AppState) iris.Handler {
	return func(ctx iris.Context) {
		var req dto.PlayerRequest

		if err := ctx.ReadJSON(&req); err != nil {
			httperr.BadBody(ctx, err)
			return
		}

		resp, err := appState.RoomSvc.ToggleReady(roomCode(ctx), req.PlayerID)
		if err != nil {
			httperr.Write(ctx, err)
			return
		}

		ctx.JSON(resp)
	}
}

func Abort(appState *state.AppState) iris.Handler {
	return func(ctx iris.Context) {
		var req dto.AbortRequest

		if err := readOptionalJSON(ctx, &req); err != nil {
			httperr.BadBody(ctx, err)
			return
		}

		resp, err := appState.RoomSvc.Abort(roomCode(ctx), hostToken(ctx, req.HostToken), req.Scope)
		if err != nil {
			httperr.Write(ctx, err)
			return
		}

		ctx.JSON(resp)
	}
}
