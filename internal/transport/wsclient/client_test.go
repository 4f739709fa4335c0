package wsclient

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/charging-platform/charge-station-simulator/internal/logger"
)

var testUpgrader = websocket.Upgrader{
	Subprotocols:    []string{"ocpp1.6", "ocpp2.0.1"},
	CheckOrigin:     func(r *http.Request) bool { return true },
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New(&logger.Config{Level: "error", Format: "json", Output: "stderr"})
	require.NoError(t, err)
	return log
}

// echoServer 建一个回显CSMS：收到什么原样发回
func echoServer(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := testUpgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			mt, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			if err := conn.WriteMessage(mt, data); err != nil {
				return
			}
		}
	}))
}

func wsURL(server *httptest.Server) string {
	return "ws" + strings.TrimPrefix(server.URL, "http")
}

func TestDialAndEcho(t *testing.T) {
	server := echoServer(t)
	defer server.Close()

	client, err := Dial(context.Background(), Options{
		URL:         wsURL(server) + "/SIM-CP-001",
		Subprotocol: "ocpp1.6",
	}, testLogger(t))
	require.NoError(t, err)
	defer client.Close()

	require.NoError(t, client.Send([]byte(`[2,"m1","Heartbeat",{}]`)))

	select {
	case data := <-client.Received():
		assert.Equal(t, `[2,"m1","Heartbeat",{}]`, string(data))
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for echo")
	}
}

func TestDialSubprotocolMismatch(t *testing.T) {
	// 服务端不声明任何子协议，协商结果为空
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		plain := websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}
		conn, err := plain.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		conn.ReadMessage()
	}))
	defer server.Close()

	_, err := Dial(context.Background(), Options{
		URL:         wsURL(server),
		Subprotocol: "ocpp1.6",
	}, testLogger(t))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "subprotocol")
}

func TestDialBasicAuth(t *testing.T) {
	var gotUser, gotPassword string
	var gotOK bool
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUser, gotPassword, gotOK = r.BasicAuth()
		conn, err := testUpgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		conn.ReadMessage()
	}))
	defer server.Close()

	t.Run("凭据来自配置", func(t *testing.T) {
		client, err := Dial(context.Background(), Options{
			URL:               wsURL(server),
			Subprotocol:       "ocpp1.6",
			BasicAuthUser:     "SIM-CP-001",
			BasicAuthPassword: "secret",
		}, testLogger(t))
		require.NoError(t, err)
		client.Close()

		require.True(t, gotOK)
		assert.Equal(t, "SIM-CP-001", gotUser)
		assert.Equal(t, "secret", gotPassword)
	})

	t.Run("凭据内嵌在URL中", func(t *testing.T) {
		raw := wsURL(server)
		withCreds := strings.Replace(raw, "ws://", "ws://station:pw@", 1)
		client, err := Dial(context.Background(), Options{
			URL:         withCreds,
			Subprotocol: "ocpp1.6",
		}, testLogger(t))
		require.NoError(t, err)
		client.Close()

		require.True(t, gotOK)
		assert.Equal(t, "station", gotUser)
		assert.Equal(t, "pw", gotPassword)
	})
}

func TestSendOrdering(t *testing.T) {
	received := make(chan string, 32)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := testUpgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			received <- string(data)
		}
	}))
	defer server.Close()

	client, err := Dial(context.Background(), Options{
		URL:         wsURL(server),
		Subprotocol: "ocpp1.6",
	}, testLogger(t))
	require.NoError(t, err)
	defer client.Close()

	// 先入队的帧必须先上线
	for i := 0; i < 20; i++ {
		require.NoError(t, client.Send([]byte(fmt.Sprintf("frame-%02d", i))))
	}
	for i := 0; i < 20; i++ {
		select {
		case got := <-received:
			assert.Equal(t, fmt.Sprintf("frame-%02d", i), got)
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for frame %d", i)
		}
	}
}

func TestServerCloseSignalsDone(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := testUpgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		// 服务端立即正常关闭
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
		conn.Close()
	}))
	defer server.Close()

	client, err := Dial(context.Background(), Options{
		URL:         wsURL(server),
		Subprotocol: "ocpp1.6",
	}, testLogger(t))
	require.NoError(t, err)

	select {
	case <-client.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("done channel not closed after server close")
	}

	assert.NoError(t, client.Err()) // 正常关闭不算错误
	assert.ErrorIs(t, client.Send([]byte("late")), ErrClosed)
}

func TestClientPing(t *testing.T) {
	var pings int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := testUpgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		conn.SetPingHandler(func(appData string) error {
			atomic.AddInt64(&pings, 1)
			return conn.WriteControl(websocket.PongMessage, nil, time.Now().Add(time.Second))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer server.Close()

	client, err := Dial(context.Background(), Options{
		URL:          wsURL(server),
		Subprotocol:  "ocpp1.6",
		PingInterval: 20 * time.Millisecond,
	}, testLogger(t))
	require.NoError(t, err)
	defer client.Close()

	assert.Eventually(t, func() bool {
		return atomic.LoadInt64(&pings) >= 2
	}, 2*time.Second, 10*time.Millisecond)
}

func TestSetPingInterval(t *testing.T) {
	var pings int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := testUpgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		conn.SetPingHandler(func(appData string) error {
			atomic.AddInt64(&pings, 1)
			return conn.WriteControl(websocket.PongMessage, nil, time.Now().Add(time.Second))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer server.Close()

	// 拨号时不开ping，运行中热开启
	client, err := Dial(context.Background(), Options{
		URL:         wsURL(server),
		Subprotocol: "ocpp1.6",
	}, testLogger(t))
	require.NoError(t, err)
	defer client.Close()

	time.Sleep(50 * time.Millisecond)
	require.Zero(t, atomic.LoadInt64(&pings))

	client.SetPingInterval(20 * time.Millisecond)
	assert.Eventually(t, func() bool {
		return atomic.LoadInt64(&pings) >= 2
	}, 2*time.Second, 10*time.Millisecond)

	// 归零即停发
	client.SetPingInterval(0)
	time.Sleep(50 * time.Millisecond)
	base := atomic.LoadInt64(&pings)
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, base, atomic.LoadInt64(&pings))
}

func TestQueueLen(t *testing.T) {
	server := echoServer(t)
	defer server.Close()

	client, err := Dial(context.Background(), Options{
		URL:         wsURL(server),
		Subprotocol: "ocpp2.0.1",
		SendBuffer:  8,
	}, testLogger(t))
	require.NoError(t, err)
	defer client.Close()

	assert.Equal(t, 8, client.QueueCap())
	assert.LessOrEqual(t, client.QueueLen(), 8)
}
