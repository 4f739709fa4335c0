package station

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/charging-platform/charge-station-simulator/internal/domain/ocpp16"
	"github.com/charging-platform/charge-station-simulator/internal/domain/ocpp201"
	"github.com/charging-platform/charge-station-simulator/internal/domain/protocol"
	"github.com/charging-platform/charge-station-simulator/internal/domain/serialization"
)

var (
	// ErrCallTimeout 请求在超时窗口内没有等到CSMS应答
	ErrCallTimeout = errors.New("call timed out waiting for CSMS response")
	// ErrNotRegistered 站点尚未被CSMS接受，除BootNotification外禁止主动请求
	ErrNotRegistered = errors.New("station not registered with CSMS")
	// ErrStationStopped 站点已停止
	ErrStationStopped = errors.New("station stopped")
)

// CallFault CSMS以CallError拒绝了站点请求
type CallFault struct {
	MessageID   string
	Action      string
	Code        string
	Description string
	Details     json.RawMessage
}

// Error 实现error接口
func (f *CallFault) Error() string {
	return fmt.Sprintf("call %s rejected by CSMS: %s (%s)", f.Action, f.Code, f.Description)
}

// callOutcome 单次请求的终态：解码后的应答payload或错误
type callOutcome struct {
	payload interface{}
	err     error
}

// PendingRequest 已发出且等待CSMS应答的请求
type PendingRequest struct {
	MessageID    string
	Action       string
	ResponseChan chan callOutcome
	CreatedAt    time.Time
	Timeout      time.Duration
}

// pendingCalls 待应答请求表。读多写少用RWMutex，
// 清理协程由会话定时驱动，过期条目按超时失败。
type pendingCalls struct {
	mu       sync.RWMutex
	requests map[string]*PendingRequest
	version  protocol.Version
}

func newPendingCalls(version protocol.Version) *pendingCalls {
	return &pendingCalls{
		requests: make(map[string]*PendingRequest),
		version:  version,
	}
}

// Add 登记一个待应答请求
func (p *pendingCalls) Add(messageID, action string, timeout time.Duration) *PendingRequest {
	req := &PendingRequest{
		MessageID:    messageID,
		Action:       action,
		ResponseChan: make(chan callOutcome, 1),
		CreatedAt:    time.Now(),
		Timeout:      timeout,
	}
	p.mu.Lock()
	p.requests[messageID] = req
	p.mu.Unlock()
	return req
}

// Remove 撤销登记，调用方放弃等待时使用
func (p *pendingCalls) Remove(messageID string) {
	p.mu.Lock()
	delete(p.requests, messageID)
	p.mu.Unlock()
}

// Len 当前待应答请求数
func (p *pendingCalls) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.requests)
}

// Resolve 按messageId匹配CallResult并按action解码payload，
// 投递恰好一次。没有匹配的登记时返回false，调用方告警后丢弃。
func (p *pendingCalls) Resolve(frame *serialization.Frame) bool {
	p.mu.Lock()
	req, ok := p.requests[frame.MessageID]
	if ok {
		delete(p.requests, frame.MessageID)
	}
	p.mu.Unlock()
	if !ok {
		return false
	}

	payload, err := p.decodeResponse(req.Action, frame.Payload)
	outcome := callOutcome{payload: payload, err: err}
	select {
	case req.ResponseChan <- outcome:
	default:
	}
	return true
}

// Fail 按messageId匹配CallError，折算成CallFault投递
func (p *pendingCalls) Fail(frame *serialization.Frame) bool {
	p.mu.Lock()
	req, ok := p.requests[frame.MessageID]
	if ok {
		delete(p.requests, frame.MessageID)
	}
	p.mu.Unlock()
	if !ok {
		return false
	}

	fault := &CallFault{
		MessageID:   frame.MessageID,
		Action:      req.Action,
		Code:        frame.ErrorCode,
		Description: frame.ErrorDescription,
		Details:     frame.ErrorDetails,
	}
	select {
	case req.ResponseChan <- callOutcome{err: fault}:
	default:
	}
	return true
}

// FailAll 连接断开时让所有等待方立即失败
func (p *pendingCalls) FailAll(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for messageID, req := range p.requests {
		select {
		case req.ResponseChan <- callOutcome{err: err}:
		default:
		}
		delete(p.requests, messageID)
	}
}

// Expire 超时清理，返回被清理的条目数
func (p *pendingCalls) Expire(now time.Time) int {
	var expired []*PendingRequest

	p.mu.Lock()
	for messageID, req := range p.requests {
		if now.Sub(req.CreatedAt) > req.Timeout {
			expired = append(expired, req)
			delete(p.requests, messageID)
		}
	}
	p.mu.Unlock()

	for _, req := range expired {
		select {
		case req.ResponseChan <- callOutcome{err: ErrCallTimeout}:
		default:
		}
	}
	return len(expired)
}

// decodeResponse 按协议版本与action把应答payload解码成类型化结构。
// 词汇表外的action保留原始JSON。
func (p *pendingCalls) decodeResponse(action string, payload json.RawMessage) (interface{}, error) {
	var target interface{}
	var known bool
	switch p.version {
	case protocol.VersionOCPP201:
		target, known = ocpp201.NewResponsePayload(ocpp201.Action(action))
	default:
		target, known = ocpp16.NewResponsePayload(ocpp16.Action(action))
	}
	if !known {
		return payload, nil
	}
	if err := serialization.DecodePayload(payload, target); err != nil {
		return nil, fmt.Errorf("failed to decode %s response: %w", action, err)
	}
	return target, nil
}
