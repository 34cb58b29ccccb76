package client

import (
	"context"
	"errors"
	"net"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	apihttp "imposter-room-be/internal/api/http"
	"imposter-room-be/internal/catalog"
	"imposter-room-be/internal/config"
	"imposter-room-be/internal/service"
	"imposter-room-be/internal/state"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

const waitFor = 5 * time.Second
const tick = 10 * time.Millisecond

func testServer(t *testing.T) *httptest.Server {
	t.Helper()

	cat, err := catalog.Load("../../data")
	require.NoError(t, err)

	roomSvc, err := service.NewRoomService(cat, service.WithSweepInterval(0))
	require.NoError(t, err)
	t.Cleanup(roomSvc.Close)

	cfg := &config.AppConfig{
		Host:              "127.0.0.1",
		Port:              8080,
		LogLevel:          "error",
		PublicBaseURL:     "http://example.test",
		CORSAllowedOrigin: "*",
		HeartbeatInterval: time.Second,
		HeartbeatTimeout:  3 * time.Second,
		PushBufferSize:    32,
	}

	app := apihttp.NewApp(state.NewAppState(cfg, cat, roomSvc))
	require.NoError(t, app.Build())

	srv := httptest.NewServer(app)
	t.Cleanup(srv.Close)

	return srv
}

// gate 控制推送连接能否建立，并记录同时存活的连接数
type gate struct {
	mu      sync.Mutex
	blocked bool
	dials   int
	open    int
	maxOpen int
	conns   []*trackedConn
}

type trackedConn struct {
	net.Conn
	g    *gate
	once sync.Once
}

func (c *trackedConn) Close() error {
	c.once.Do(func() {
		c.g.mu.Lock()
		c.g.open--
		c.g.mu.Unlock()
	})
	return c.Conn.Close()
}

func (g *gate) dialer() *websocket.Dialer {
	return &websocket.Dialer{
		HandshakeTimeout: time.Second,
		NetDialContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
			g.mu.Lock()
			g.dials++
			blocked := g.blocked
			g.mu.Unlock()

			if blocked {
				return nil, errors.New("network unreachable")
			}

			var d net.Dialer
			c, err := d.DialContext(ctx, network, addr)
			if err != nil {
				return nil, err
			}

			tc := &trackedConn{Conn: c, g: g}
			g.mu.Lock()
			g.open++
			g.maxOpen = max(g.maxOpen, g.open)
			g.conns = append(g.conns, tc)
			g.mu.Unlock()
			return tc, nil
		},
	}
}

func (g *gate) setBlocked(blocked bool) {
	g.mu.Lock()
	g.blocked = blocked
	g.mu.Unlock()
}

// cut 模拟网络中断：禁止新连接并关闭已有连接
func (g *gate) cut() {
	g.mu.Lock()
	g.blocked = true
	conns := g.conns
	g.conns = nil
	g.mu.Unlock()

	for _, c := range conns {
		c.Close()
	}
}

func (g *gate) stats() (dials, maxOpen int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.dials, g.maxOpen
}

func fastOptions(g *gate) []Option {
	return []Option{
		WithDialer(g.dialer()),
		WithBackoff(5*time.Millisecond, 20*time.Millisecond, 1000),
		WithPollInterval(time.Hour),
		WithHeartbeat(time.Hour, 5*time.Second),
	}
}

func startSession(t *testing.T, baseURL, code, playerID, token string, opts ...Option) *Session {
	t.Helper()

	s := NewSession(baseURL, code, playerID, token, opts...)
	s.Start(context.Background())
	t.Cleanup(s.Close)
	return s
}

func waitConnected(t *testing.T, s *Session) {
	t.Helper()
	require.Eventually(t, func() bool {
		return s.Status().State == StateConnected
	}, waitFor, tick)
}

// waitVersion 等待会话追上服务器的版本号
func waitVersion(t *testing.T, s *Session, api *API, code string) {
	t.Helper()
	require.Eventually(t, func() bool {
		lobby, err := api.Lobby(context.Background(), code)
		if err != nil {
			return false
		}
		return s.Version() == lobby.Version
	}, waitFor, tick)
}
