package game

import (
	"errors"
	"fmt"
)

// 错误分类，调用方通过 errors.Is 判断
var (
	ErrValidation   = errors.New("参数无效")
	ErrNotFound     = errors.New("资源不存在")
	ErrUnauthorized = errors.New("无权执行该操作")
	ErrInvalidPhase = errors.New("当前阶段不允许该操作")
	ErrConflict     = errors.New("操作冲突")
	ErrExhausted    = errors.New("可用资源已耗尽")
)

var (
	ErrRoomNotFound     = fmt.Errorf("%w: 房间不存在", ErrNotFound)
	ErrPlayerNotFound   = fmt.Errorf("%w: 玩家不存在", ErrNotFound)
	ErrLocationNotFound = fmt.Errorf("%w: 地点不存在", ErrNotFound)

	ErrRoomFull        = fmt.Errorf("%w: 房间已满", ErrConflict)
	ErrAlreadyResolved = fmt.Errorf("%w: 本回合已经结算", ErrConflict)

	ErrNoQuestionsAvailable = fmt.Errorf("%w: 没有可抽取的问题", ErrExhausted)

	ErrRoomClosed = fmt.Errorf("%w: 房间已关闭", ErrInvalidPhase)
	ErrNoRound    = fmt.Errorf("%w: 当前没有回合", ErrInvalidPhase)

	ErrNotHost = fmt.Errorf("%w: 只有房主可以执行该操作", ErrUnauthorized)
)

var kinds = []error{
	ErrValidation,
	ErrNotFound,
	ErrUnauthorized,
	ErrInvalidPhase,
	ErrConflict,
	ErrExhausted,
}

// KindOf 返回 err 所属的错误分类，不属于任何分类时返回 nil
func KindOf(err error) error {
	for _, kind := range kinds {
		if errors.Is(err, kind) {
			return kind
		}
	}
	return nil
}

func validationf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}
