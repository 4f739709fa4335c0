package wsclient

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/charging-platform/charge-station-simulator/internal/logger"
)

// ErrClosed 连接已关闭后继续发送时返回
var ErrClosed = errors.New("websocket connection closed")

const (
	defaultConnectTimeout = 30 * time.Second
	defaultWriteTimeout   = 10 * time.Second
	defaultSendBuffer     = 64
	defaultReceiveBuffer  = 64
	defaultMaxMessageSize = 1024 * 1024 // 1MB
)

// Options 拨号选项
type Options struct {
	URL               string        // 完整地址，已含站点ID路径后缀
	Subprotocol       string        // ocpp1.6 或 ocpp2.0.1
	ConnectTimeout    time.Duration
	WriteTimeout      time.Duration
	PingInterval      time.Duration // 0 禁用客户端ping
	BasicAuthUser     string
	BasicAuthPassword string
	TLSSkipVerify     bool
	SendBuffer        int
	MaxMessageSize    int64 // 入站单帧字节上限，0取默认1MB
}

// Client 一条到CSMS的WebSocket连接
// 所有写操作经 sendChan 由唯一的 sendRoutine 串行化，保证帧按入队顺序上线
type Client struct {
	conn     *websocket.Conn
	opts     Options
	sendChan chan []byte
	received chan []byte
	pingCh   chan time.Duration
	done     chan struct{}
	logger   *logger.Logger

	closeOnce sync.Once
	closeErr  error
	errMu     sync.Mutex
	wg        sync.WaitGroup
}

// Dial 建立WebSocket连接并完成子协议协商
// 服务端未回应请求的子协议时视为握手失败并立即关闭
func Dial(ctx context.Context, opts Options, log *logger.Logger) (*Client, error) {
	if opts.ConnectTimeout <= 0 {
		opts.ConnectTimeout = defaultConnectTimeout
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = defaultWriteTimeout
	}
	if opts.SendBuffer <= 0 {
		opts.SendBuffer = defaultSendBuffer
	}
	if opts.MaxMessageSize <= 0 {
		opts.MaxMessageSize = defaultMaxMessageSize
	}

	target, header, err := splitCredentials(opts)
	if err != nil {
		return nil, err
	}

	dialer := websocket.Dialer{
		HandshakeTimeout: opts.ConnectTimeout,
		Subprotocols:     []string{opts.Subprotocol},
	}
	if opts.TLSSkipVerify {
		dialer.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	}

	dialCtx, cancel := context.WithTimeout(ctx, opts.ConnectTimeout)
	defer cancel()

	conn, resp, err := dialer.DialContext(dialCtx, target, header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("failed to dial %s (HTTP %d): %w", target, resp.StatusCode, err)
		}
		return nil, fmt.Errorf("failed to dial %s: %w", target, err)
	}

	if conn.Subprotocol() != opts.Subprotocol {
		conn.Close()
		return nil, fmt.Errorf("subprotocol negotiation failed: requested %q, got %q",
			opts.Subprotocol, conn.Subprotocol())
	}
	conn.SetReadLimit(opts.MaxMessageSize)

	c := &Client{
		conn:     conn,
		opts:     opts,
		sendChan: make(chan []byte, opts.SendBuffer),
		received: make(chan []byte, defaultReceiveBuffer),
		pingCh:   make(chan time.Duration, 1),
		done:     make(chan struct{}),
		logger:   log.Component("wsclient"),
	}

	c.wg.Add(2)
	go c.sendRoutine()
	go c.receiveRoutine()

	c.logger.Debugf("WebSocket connection established: url=%s subprotocol=%s", target, conn.Subprotocol())
	return c, nil
}

// splitCredentials 把URL中的用户信息剥离成Basic认证头，配置项优先于URL内嵌凭据
func splitCredentials(opts Options) (string, http.Header, error) {
	parsed, err := url.Parse(opts.URL)
	if err != nil {
		return "", nil, fmt.Errorf("invalid websocket url %q: %w", opts.URL, err)
	}

	user, password := opts.BasicAuthUser, opts.BasicAuthPassword
	if parsed.User != nil {
		if user == "" {
			user = parsed.User.Username()
			if pw, ok := parsed.User.Password(); ok && password == "" {
				password = pw
			}
		}
		parsed.User = nil
	}

	header := http.Header{}
	if user != "" {
		req := &http.Request{Header: header}
		req.SetBasicAuth(user, password)
	}
	return parsed.String(), header, nil
}

// Send 把一帧排入发送队列，连接关闭后返回 ErrClosed
func (c *Client) Send(data []byte) error {
	select {
	case <-c.done:
		return ErrClosed
	default:
	}

	select {
	case c.sendChan <- data:
		return nil
	case <-c.done:
		return ErrClosed
	}
}

// Received 返回入站帧通道，连接关闭时通道关闭
func (c *Client) Received() <-chan []byte {
	return c.received
}

// Done 连接结束信号
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// Err 连接结束的原因，正常关闭为 nil
func (c *Client) Err() error {
	c.errMu.Lock()
	defer c.errMu.Unlock()
	if errors.Is(c.closeErr, ErrClosed) {
		return nil
	}
	return c.closeErr
}

// QueueLen 当前发送队列长度，供ATG背压判断
func (c *Client) QueueLen() int {
	return len(c.sendChan)
}

// QueueCap 发送队列容量
func (c *Client) QueueCap() int {
	return cap(c.sendChan)
}

// Close 优雅关闭：发送1000关闭帧后断开
func (c *Client) Close() error {
	c.shutdown(ErrClosed, true)
	c.wg.Wait()
	return nil
}

// shutdown 记录关闭原因并释放连接，可安全重复调用
func (c *Client) shutdown(cause error, graceful bool) {
	c.closeOnce.Do(func() {
		c.errMu.Lock()
		c.closeErr = cause
		c.errMu.Unlock()

		if graceful {
			deadline := time.Now().Add(c.opts.WriteTimeout)
			msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
			if err := c.conn.WriteControl(websocket.CloseMessage, msg, deadline); err != nil {
				c.logger.Debugf("Failed to send close frame: %v", err)
			}
		}

		close(c.done)
		c.conn.Close()
	})
}

// SetPingInterval 热更新ping周期，0禁用。下一个周期起生效。
func (c *Client) SetPingInterval(d time.Duration) {
	select {
	case c.pingCh <- d:
	case <-c.done:
	}
}

// sendRoutine 唯一的写协程，负责数据帧与ping帧
func (c *Client) sendRoutine() {
	defer c.wg.Done()

	var pingC <-chan time.Time
	var ticker *time.Ticker
	if c.opts.PingInterval > 0 {
		ticker = time.NewTicker(c.opts.PingInterval)
		pingC = ticker.C
	}
	defer func() {
		if ticker != nil {
			ticker.Stop()
		}
	}()

	for {
		select {
		case <-c.done:
			return
		case d := <-c.pingCh:
			if ticker != nil {
				ticker.Stop()
				ticker = nil
				pingC = nil
			}
			if d > 0 {
				ticker = time.NewTicker(d)
				pingC = ticker.C
			}
			c.logger.Debugf("Ping interval updated: interval=%s", d)
		case data := <-c.sendChan:
			c.conn.SetWriteDeadline(time.Now().Add(c.opts.WriteTimeout))
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				c.logger.Warnf("Failed to write message: %v", err)
				c.shutdown(err, false)
				return
			}
		case <-pingC:
			c.conn.SetWriteDeadline(time.Now().Add(c.opts.WriteTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.logger.Warnf("Failed to write ping: %v", err)
				c.shutdown(err, false)
				return
			}
		}
	}
}

// receiveRoutine 唯一的读协程，入站帧按到达顺序交付
func (c *Client) receiveRoutine() {
	defer c.wg.Done()
	defer close(c.received)

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.shutdown(ErrClosed, false)
			} else {
				c.shutdown(err, false)
			}
			return
		}

		select {
		case c.received <- data:
		case <-c.done:
			return
		}
	}
}
