package state

import (
	"imposter-room-be/internal/catalog"
	"imposter-room-be/internal/config"
	"imposter-room-be/internal/service"
)

type AppState struct {
	Cfg     *config.AppConfig
	Catalog *catalog.Catalog
	RoomSvc *service.RoomService
}

func NewAppState(
	cfg *config.AppConfig,
	cat *catalog.Catalog,
	roomSvc *service.RoomService,
) *AppState {
	return &AppState{
		Cfg:     cfg,
		Catalog: cat,
		RoomSvc: roomSvc,
	}
}
