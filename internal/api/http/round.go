package http

import (
	"imposter-room-be/internal/api/http/httperr"
	"imposter-room-be/internal/service/dto"
	"imposter-room-be/internal/state"

	"github.com/kataras/iris/v12"
)

func StartRound(appState *state.AppState) iris.Handler {
	return func(ctx iris.Context) {
		var req dto.HostRequest

		if err := readOptionalJSON(ctx, &req); err != nil {
			httperr.BadBody(ctx, err)
			return
		}

		resp, err := appState.RoomSvc.StartRound(roomCode(ctx), hostToken(ctx, req.HostToken))
		if err != nil {
			httperr.Write(ctx, err)
			return
		}

		ctx.StatusCode(iris.StatusCreated)
		ctx.JSON(resp)
	}
}

func GetRound(appState *state.AppState) iris.Handler {
	return func(ctx iris.Context) {
		resp, err := appState.RoomSvc.Round(roomCode(ctx))
		if err != nil {
			httperr.Write(ctx, err)
			return
		}

		ctx.JSON(resp)
	}
}

// GetAssignment 只返回玩家令牌持有者本人的秘密信息
func GetAssignment(appState *state.AppState) iris.Handler {
	return func(ctx iris.Context) {
		resp, err := appState.RoomSvc.Assignment(roomCode(ctx), playerToken(ctx))
		if err != nil {
			httperr.Write(ctx, err)
			return
		}

		ctx.JSON(resp)
	}
}

func DrawQuestion(appState *state.AppState) iris.Handler {
	return func(ctx iris.Context) {
		var req dto.DrawQuestionRequest

		if err := readOptionalJSON(ctx, &req); err != nil {
			httperr.BadBody(ctx, err)
			return
		}
		if req.PlayerID == "" {
			req.HostToken = hostToken(ctx, req.HostToken)
		}

		resp, err := appState.RoomSvc.DrawQuestion(roomCode(ctx), req)
		if err != nil {
			httperr.Write(ctx, err)
			return
		}

		ctx.JSON(resp)
	}
}

func SubmitGuess(appState *state.AppState) iris.Handler {
	return func(ctx iris.Context) {
		var req dto.GuessRequest

		if err := ctx.ReadJSON(&req); err != nil {
			httperr.BadBody(ctx, err)
			return
		}

		resp, err := appState.RoomSvc.SubmitGuess(roomCode(ctx), req)
		if err != nil {
			httperr.Write(ctx, err)
			return
		}

		ctx.JSON(resp)
	}
}
