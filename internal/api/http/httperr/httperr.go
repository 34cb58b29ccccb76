// Package httperr 把业务错误分类映射为 HTTP 状态码和统一的错误响应体
package httperr

import (
	"errors"

	"imposter-room-be/internal/service/dto"
	"imposter-room-be/internal/service/game"

	"github.com/kataras/iris/v12"
	"go.uber.org/zap"
)

const (
	CODE_VALIDATION    = "validation"
	CODE_NOT_FOUND     = "not_found"
	CODE_UNAUTHORIZED  = "unauthorized"
	CODE_INVALID_PHASE = "invalid_phase"
	CODE_CONFLICT      = "conflict"
	CODE_EXHAUSTED     = "exhausted"
	CODE_INTERNAL      = "internal"
)

// Classify 返回错误对应的状态码与错误码
func Classify(err error) (int, string) {
	switch {
	case errors.Is(err, game.ErrValidation):
		return iris.StatusBadRequest, CODE_VALIDATION
	case errors.Is(err, game.ErrNotFound):
		return iris.StatusNotFound, CODE_NOT_FOUND
	case errors.Is(err, game.ErrUnauthorized):
		return iris.StatusForbidden, CODE_UNAUTHORIZED
	case errors.Is(err, game.ErrInvalidPhase):
		return iris.StatusConflict, CODE_INVALID_PHASE
	case errors.Is(err, game.ErrConflict):
		return iris.StatusConflict, CODE_CONFLICT
	case errors.Is(err, game.ErrExhausted):
		return iris.StatusConflict, CODE_EXHAUSTED
	default:
		return iris.StatusInternalServerError, CODE_INTERNAL
	}
}

func Write(ctx iris.Context, err error) {
	status, code := Classify(err)

	message := err.Error()
	if status == iris.StatusInternalServerError {
		zap.L().Error(
			"请求处理失败",
			zap.String("path", ctx.Path()),
			zap.String("client_ip", ctx.RemoteAddr()),
			zap.Error(err),
		)
		message = "服务器内部错误"
	} else {
		zap.L().Debug(
			"请求被拒绝",
			zap.String("path", ctx.Path()),
			zap.String("code", code),
			zap.Error(err),
		)
	}

	ctx.StatusCode(status)
	ctx.JSON(dto.ErrorResponse{
		Error: dto.ErrorBody{Code: code, Message: message},
	})
}

// BadBody 用于请求体无法解析的情况
func BadBody(ctx iris.Context, err error) {
	ctx.StatusCode(iris.StatusBadRequest)
	ctx.JSON(dto.ErrorResponse{
		Error: dto.ErrorBody{Code: CODE_VALIDATION, Message: "请求参数无效: " + err.Error()},
	})
}
