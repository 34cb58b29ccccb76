package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"imposter-room-be/internal/service/dto"
	"imposter-room-be/internal/service/game"
)

// APIError 是服务端返回的业务错误，可以用 errors.Is 与 game 包中的错误分类比较
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s (%d): %s", e.Code, e.Status, e.Message)
}

var codeKinds = map[string]error{
	"validation":    game.ErrValidation,
	"not_found":     game.ErrNotFound,
	"unauthorized":  game.ErrUnauthorized,
	"invalid_phase": game.ErrInvalidPhase,
	"conflict":      game.ErrConflict,
	"exhausted":     game.ErrExhausted,
}

func (e *APIError) Is(target error) bool {
	kind, ok := codeKinds[e.Code]
	return ok && kind == target
}

// API 是房间 REST 接口的薄封装
type API struct {
	baseURL string
	http    *http.Client
}

func NewAPI(baseURL string, hc *http.Client) *API {
	if hc == nil {
		hc = http.DefaultClient
	}
	return &API{baseURL: strings.TrimRight(baseURL, "/"), http: hc}
}

func (a *API) roomPath(code, suffix string) string {
	return "/api/v1/rooms/" + url.PathEscape(code) + suffix
}

func (a *API) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, a.baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := a.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	if resp.StatusCode >= http.StatusBadRequest {
		var errResp dto.ErrorResponse
		if err := json.Unmarshal(data, &errResp); err != nil || errResp.Error.Code == "" {
			return &APIError{Status: resp.StatusCode, Code: "internal", Message: strings.TrimSpace(string(data))}
		}
		return &APIError{Status: resp.StatusCode, Code: errResp.Error.Code, Message: errResp.Error.Message}
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("解析响应失败: %w", err)
	}
	return nil
}

func (a *API) CreateRoom(ctx context.Context, req dto.CreateRoomRequest) (dto.CreateRoomResponse, error) {
	var resp dto.CreateRoomResponse
	err := a.do(ctx, http.MethodPost, "/api/v1/rooms", req, &resp)
	return resp, err
}

func (a *API) JoinRoom(ctx context.Context, code, name string) (dto.JoinRoomResponse, error) {
	var resp dto.JoinRoomResponse
	err := a.do(ctx, http.MethodPost, a.roomPath(code, "/join"), dto.JoinRoomRequest{PlayerName: name}, &resp)
	return resp, err
}

func (a *API) LeaveRoom(ctx context.Context, code, playerID string) (dto.LeaveRoomResponse, error) {
	var resp dto.LeaveRoomResponse
	err := a.do(ctx, http.MethodPost, a.roomPath(code, "/leave"), dto.PlayerRequest{PlayerID: playerID}, &resp)
	return resp, err
}

func (a *API) HostToken(ctx context.Context, code, playerToken string) (dto.HostTokenResponse, error) {
	var resp dto.HostTokenResponse
	err := a.do(ctx, http.MethodPost, a.roomPath(code, "/host-token"), dto.HostTokenRequest{PlayerToken: playerToken}, &resp)
	return resp, err
}

func (a *API) Lobby(ctx context.Context, code string) (dto.LobbySnapshot, error) {
	var resp dto.LobbySnapshot
	err := a.do(ctx, http.MethodGet, a.roomPath(code, ""), nil, &resp)
	return resp, err
}

func (a *API) Round(ctx context.Context, code string) (dto.RoundResponse, error) {
	var resp dto.RoundResponse
	err := a.do(ctx, http.MethodGet, a.roomPath(code, "/round"), nil, &resp)
	return resp, err
}

func (a *API) Assignment(ctx context.Context, code, playerToken string) (game.Assignment, error) {
	var resp game.Assignment
	path := a.roomPath(code, "/round/assignment?player_token="+url.QueryEscape(playerToken))
	err := a.do(ctx, http.MethodGet, path, nil, &resp)
	return resp, err
}

func (a *API) ToggleReady(ctx context.Context, code, playerID string) (dto.LobbySnapshot, error) {
	var resp dto.LobbySnapshot
	err := a.do(ctx, http.MethodPost, a.roomPath(code, "/ready"), dto.PlayerRequest{PlayerID: playerID}, &resp)
	return resp, err
}

func (a *API) UpdateRules(ctx context.Context, code, token string, patch game.RulesPatch) (dto.LobbySnapshot, error) {
	var resp dto.LobbySnapshot
	err := a.do(ctx, http.MethodPatch, a.roomPath(code, "/rules"), dto.UpdateRulesRequest{HostToken: token, Rules: patch}, &resp)
	return resp, err
}

func (a *API) StartRound(ctx context.Context, code, token string) (dto.RoundState, error) {
	var resp dto.RoundState
	err := a.do(ctx, http.MethodPost, a.roomPath(code, "/rounds"), dto.HostRequest{HostToken: token}, &resp)
	return resp, err
}

func (a *API) DrawQuestion(ctx context.Context, code string, req dto.DrawQuestionRequest) (dto.DrawQuestionResponse, error) {
	var resp dto.DrawQuestionResponse
	err := a.do(ctx, http.MethodPost, a.roomPath(code, "/round/questions"), req, &resp)
	return resp, err
}

func (a *API) SubmitGuess(ctx context.Context, code string, req dto.GuessRequest) (dto.GuessResponse, error) {
	var resp dto.GuessResponse
	err := a.do(ctx, http.MethodPost, a.roomPath(code, "/round/guesses"), req, &resp)
	return resp, err
}

func (a *API) Abort(ctx context.Context, code, token, scope string) (dto.LobbySnapshot, error) {
	var resp dto.LobbySnapshot
	err := a.do(ctx, http.MethodPost, a.roomPath(code, "/abort"), dto.AbortRequest{HostToken: token, Scope: scope}, &resp)
	return resp, err
}

// IsRetryable 判断错误是否属于传输层错误（而非业务错误）
func IsRetryable(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Status >= http.StatusInternalServerError
	}
	return err != nil
}

// wsURL 把 http(s) 基础地址转换为推送通道地址
func (a *API) wsURL(code, playerID string) string {
	base := a.baseURL
	switch {
	case strings.HasPrefix(base, "https://"):
		base = "wss://" + strings.TrimPrefix(base, "https://")
	case strings.HasPrefix(base, "http://"):
		base = "ws://" + strings.TrimPrefix(base, "http://")
	}
	return base + a.roomPath(code, "/ws?player_id="+url.QueryEscape(playerID))
}
