package http

import (
	"imposter-room-be/internal/api/http/httperr"
	"imposter-room-be/internal/service/dto"
	"imposter-room-be/internal/state"

	"github.com/kataras/iris/v12"
)

func ListCategories(appState *state.AppState) iris.Handler {
	return func(ctx iris.Context) {
		ctx.JSON(dto.CategoriesResponse{
			Categories: appState.Catalog.Categories(),
		})
	}
}

// ListLocations 返回本局的地点池，首回合开始前为空
func ListLocations(appState *state.AppState) iris.Handler {
	return func(ctx iris.Context) {
		resp, err := appState.RoomSvc.Locations(roomCode(ctx))
		if err != nil {
			httperr.Write(ctx, err)
			return
		}

		ctx.JSON(resp)
	}
}
