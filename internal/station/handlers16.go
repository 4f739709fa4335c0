package station

import (
	"context"
	"strconv"
	"strings"

	"github.com/charging-platform/charge-station-simulator/internal/domain/ocpp16"
	"github.com/charging-platform/charge-station-simulator/internal/domain/serialization"
)

// handlers16 OCPP 1.6 CSMS下行命令处理表。
// 与2.0.1同一纪律：处理函数不得同步发起出站Call。
func (s *Station) handlers16() map[string]handlerFunc {
	return map[string]handlerFunc{
		string(ocpp16.ActionGetConfiguration):       s.handleGetConfiguration,
		string(ocpp16.ActionChangeConfiguration):    s.handleChangeConfiguration,
		string(ocpp16.ActionReset):                  s.handleReset16,
		string(ocpp16.ActionRemoteStartTransaction): s.handleRemoteStart16,
		string(ocpp16.ActionRemoteStopTransaction):  s.handleRemoteStop16,
		string(ocpp16.ActionTriggerMessage):         s.handleTrigger16,
		string(ocpp16.ActionChangeAvailability):     s.handleChangeAvailability16,
		string(ocpp16.ActionClearCache):             s.handleClearCache16,
		string(ocpp16.ActionDataTransfer):           s.handleDataTransfer16,
		string(ocpp16.ActionUnlockConnector):        s.handleUnlock16,
	}
}

func (s *Station) handleGetConfiguration(ctx context.Context, frame *serialization.Frame) (interface{}, error) {
	var req ocpp16.GetConfigurationRequest
	if err := serialization.DecodePayload(frame.Payload, &req); err != nil {
		return nil, errFormation("invalid GetConfiguration payload: %v", err)
	}
	known, unknown := s.cfg16.KeyValues(req.Key)
	return &ocpp16.GetConfigurationResponse{
		ConfigurationKey: known,
		UnknownKey:       unknown,
	}, nil
}

func (s *Station) handleChangeConfiguration(ctx context.Context, frame *serialization.Frame) (interface{}, error) {
	var req ocpp16.ChangeConfigurationRequest
	if err := serialization.DecodePayload(frame.Payload, &req); err != nil {
		return nil, errFormation("invalid ChangeConfiguration payload: %v", err)
	}
	if req.Key == "" {
		return nil, errFormation("key must not be empty")
	}

	status := s.cfg16.Change(req.Key, req.Value)
	if status == ocpp16.ConfigurationStatusAccepted || status == ocpp16.ConfigurationStatusRebootRequired {
		s.applyConfigSideEffects16(req.Key, req.Value)
	}
	s.emit(s.events.CreateConfigurationChangedEvent(
		s.name, "", req.Key, req.Value, string(status), s.metadata()))
	return &ocpp16.ChangeConfigurationResponse{Status: status}, nil
}

// applyConfigSideEffects16 让已生效的配置立刻作用于运行中的会话
func (s *Station) applyConfigSideEffects16(key, value string) {
	switch {
	case strings.EqualFold(key, Key16HeartbeatInterval):
		if secs, err := strconv.Atoi(value); err == nil && secs > 0 {
			s.applyHeartbeatInterval(secs)
		}
	case strings.EqualFold(key, Key16WebSocketPingInterval):
		if secs, err := strconv.Atoi(value); err == nil && secs >= 0 {
			s.applyPingInterval(secs)
		}
	}
}

// handleReset16 1.6重置只有Hard/Soft两种，都走断开重连周期。
// Hard立即断，Soft同样先结束交易再断，区别只在停账原因。
func (s *Station) handleReset16(ctx context.Context, frame *serialization.Frame) (interface{}, error) {
	var req ocpp16.ResetRequest
	if err := serialization.DecodePayload(frame.Payload, &req); err != nil {
		return nil, errFormation("invalid Reset payload: %v", err)
	}

	var cause stopCause
	switch req.Type {
	case ocpp16.ResetTypeHard:
		cause = stopCauseHardReset
	case ocpp16.ResetTypeSoft:
		cause = stopCauseSoftReset
	default:
		return nil, errFormation("unknown reset type %q", req.Type)
	}

	// 重复的Reset请求等同于已在执行，仍然应答Accepted
	s.requestReboot(cause)
	return &ocpp16.ResetResponse{Status: ocpp16.ResetStatusAccepted}, nil
}

func (s *Station) handleRemoteStart16(ctx context.Context, frame *serialization.Frame) (interface{}, error) {
	var req ocpp16.RemoteStartTransactionRequest
	if err := serialization.DecodePayload(frame.Payload, &req); err != nil {
		return nil, errFormation("invalid RemoteStartTransaction payload: %v", err)
	}
	if req.IdTag == "" {
		return nil, errFormation("idTag must not be empty")
	}

	var c *Connector
	if req.ConnectorId != nil {
		target, ok := s.connector16(*req.ConnectorId)
		if !ok || !target.IsOperative() || target.HasTransaction() || target.Status() != ConnectorStateAvailable {
			return &ocpp16.RemoteStartTransactionResponse{Status: ocpp16.RemoteStartStopStatusRejected}, nil
		}
		c = target
	} else {
		c = s.pickConnector(nil)
	}
	if c == nil {
		return &ocpp16.RemoteStartTransactionResponse{Status: ocpp16.RemoteStartStopStatusRejected}, nil
	}

	idTag := req.IdTag
	if !s.spawnHandlerTask(func() {
		if s.remoteStartRequiresAuth16() {
			ok, err := s.authorize(ctx, idTag)
			if err != nil {
				s.log.Warnf("Remote start authorize failed: idTag=%s err=%v", idTag, err)
				return
			}
			if !ok {
				s.log.Infof("Remote start denied by authorization: idTag=%s", idTag)
				return
			}
		}
		if err := s.runTransaction(ctx, c, idTag, nil, true, 0); err != nil {
			s.log.Warnf("Remote start failed: connector=%d err=%v", c.ID(), err)
		}
	}) {
		return &ocpp16.RemoteStartTransactionResponse{Status: ocpp16.RemoteStartStopStatusRejected}, nil
	}
	return &ocpp16.RemoteStartTransactionResponse{Status: ocpp16.RemoteStartStopStatusAccepted}, nil
}

// remoteStartRequiresAuth16 AuthorizeRemoteTxRequests为true时，
// 远程启动前先发Authorize。取运行时键表的当前值，CSMS可改。
func (s *Station) remoteStartRequiresAuth16() bool {
	value, ok := s.cfg16.Value(Key16AuthorizeRemoteTxRequests)
	return ok && value == "true"
}

func (s *Station) handleRemoteStop16(ctx context.Context, frame *serialization.Frame) (interface{}, error) {
	var req ocpp16.RemoteStopTransactionRequest
	if err := serialization.DecodePayload(frame.Payload, &req); err != nil {
		return nil, errFormation("invalid RemoteStopTransaction payload: %v", err)
	}
	for _, c := range s.connectors {
		tx, ok := c.ActiveTransaction()
		if !ok || tx.ID16 != req.TransactionId {
			continue
		}
		if c.RequestStop(stopCauseRemote) {
			return &ocpp16.RemoteStopTransactionResponse{Status: ocpp16.RemoteStartStopStatusAccepted}, nil
		}
	}
	return &ocpp16.RemoteStopTransactionResponse{Status: ocpp16.RemoteStartStopStatusRejected}, nil
}

func (s *Station) handleTrigger16(ctx context.Context, frame *serialization.Frame) (interface{}, error) {
	var req ocpp16.TriggerMessageRequest
	if err := serialization.DecodePayload(frame.Payload, &req); err != nil {
		return nil, errFormation("invalid TriggerMessage payload: %v", err)
	}

	switch req.RequestedMessage {
	case ocpp16.MessageTriggerBootNotification:
		if !s.triggerBootNotification(ctx) {
			return &ocpp16.TriggerMessageResponse{Status: ocpp16.TriggerMessageStatusRejected}, nil
		}
		return &ocpp16.TriggerMessageResponse{Status: ocpp16.TriggerMessageStatusAccepted}, nil

	case ocpp16.MessageTriggerHeartbeat:
		if !s.spawnHandlerTask(func() { s.sendHeartbeat(ctx) }) {
			return &ocpp16.TriggerMessageResponse{Status: ocpp16.TriggerMessageStatusRejected}, nil
		}
		return &ocpp16.TriggerMessageResponse{Status: ocpp16.TriggerMessageStatusAccepted}, nil

	case ocpp16.MessageTriggerStatusNotification:
		targets, ok := s.matchConnectors16(req.ConnectorId)
		if !ok {
			return &ocpp16.TriggerMessageResponse{Status: ocpp16.TriggerMessageStatusRejected}, nil
		}
		if !s.spawnHandlerTask(func() {
			for _, c := range targets {
				s.notifyStatus(ctx, c)
			}
		}) {
			return &ocpp16.TriggerMessageResponse{Status: ocpp16.TriggerMessageStatusRejected}, nil
		}
		return &ocpp16.TriggerMessageResponse{Status: ocpp16.TriggerMessageStatusAccepted}, nil

	case ocpp16.MessageTriggerMeterValues:
		targets, ok := s.matchConnectors16(req.ConnectorId)
		if !ok {
			return &ocpp16.TriggerMessageResponse{Status: ocpp16.TriggerMessageStatusRejected}, nil
		}
		if !s.spawnHandlerTask(func() {
			for _, c := range targets {
				s.sendTriggeredMeterValues16(ctx, c)
			}
		}) {
			return &ocpp16.TriggerMessageResponse{Status: ocpp16.TriggerMessageStatusRejected}, nil
		}
		return &ocpp16.TriggerMessageResponse{Status: ocpp16.TriggerMessageStatusAccepted}, nil

	default:
		// 诊断与固件状态上报未建模
		return &ocpp16.TriggerMessageResponse{Status: ocpp16.TriggerMessageStatusNotImplemented}, nil
	}
}

// matchConnectors16 按TriggerMessage的connectorId选目标，nil表示全部。
// 第二个返回值为false表示指向了不存在的连接器。
func (s *Station) matchConnectors16(connectorID *int) ([]*Connector, bool) {
	if connectorID == nil {
		return s.connectors, true
	}
	c, ok := s.connector16(*connectorID)
	if !ok {
		return nil, false
	}
	return []*Connector{c}, true
}

// sendTriggeredMeterValues16 触发式电表上报，空闲连接器报当前累计电量
func (s *Station) sendTriggeredMeterValues16(ctx context.Context, c *Connector) {
	if c.HasTransaction() {
		s.sampleMeter(ctx, c)
		return
	}
	req := &ocpp16.MeterValuesRequest{
		ConnectorId: c.ID(),
		MeterValue:  []ocpp16.MeterValue{energyReading16(c.MeterWh(), ocpp16.ReadingContextTrigger)},
	}
	if _, err := s.doCall(ctx, string(ocpp16.ActionMeterValues), req); err != nil {
		s.log.Warnf("Triggered MeterValues failed: connector=%d err=%v", c.ID(), err)
	}
}

func (s *Station) handleChangeAvailability16(ctx context.Context, frame *serialization.Frame) (interface{}, error) {
	var req ocpp16.ChangeAvailabilityRequest
	if err := serialization.DecodePayload(frame.Payload, &req); err != nil {
		return nil, errFormation("invalid ChangeAvailability payload: %v", err)
	}

	var avail Availability
	switch req.Type {
	case ocpp16.AvailabilityTypeOperative:
		avail = AvailabilityOperative
	case ocpp16.AvailabilityTypeInoperative:
		avail = AvailabilityInoperative
	default:
		return nil, errFormation("unknown availability type %q", req.Type)
	}

	// connectorId为0作用于整站
	var targets []*Connector
	if req.ConnectorId == 0 {
		targets = s.connectors
	} else {
		c, ok := s.connector16(req.ConnectorId)
		if !ok {
			return &ocpp16.ChangeAvailabilityResponse{Status: ocpp16.AvailabilityStatusRejected}, nil
		}
		targets = []*Connector{c}
	}

	if s.applyAvailability(ctx, targets, avail) {
		return &ocpp16.ChangeAvailabilityResponse{Status: ocpp16.AvailabilityStatusScheduled}, nil
	}
	return &ocpp16.ChangeAvailabilityResponse{Status: ocpp16.AvailabilityStatusAccepted}, nil
}

func (s *Station) handleClearCache16(ctx context.Context, frame *serialization.Frame) (interface{}, error) {
	var req ocpp16.ClearCacheRequest
	if err := serialization.DecodePayload(frame.Payload, &req); err != nil {
		return nil, errFormation("invalid ClearCache payload: %v", err)
	}
	if !s.tpl.IsAuthCacheEnabled() {
		return &ocpp16.ClearCacheResponse{Status: ocpp16.ClearCacheStatusRejected}, nil
	}
	removed := s.authCache.Clear()
	s.log.Infof("Authorization cache cleared: entries=%d", removed)
	return &ocpp16.ClearCacheResponse{Status: ocpp16.ClearCacheStatusAccepted}, nil
}

func (s *Station) handleDataTransfer16(ctx context.Context, frame *serialization.Frame) (interface{}, error) {
	var req ocpp16.DataTransferRequest
	if err := serialization.DecodePayload(frame.Payload, &req); err != nil {
		return nil, errFormation("invalid DataTransfer payload: %v", err)
	}
	if req.VendorId != s.tpl.ChargePointVendor {
		return &ocpp16.DataTransferResponse{Status: ocpp16.DataTransferStatusUnknownVendorId}, nil
	}
	return &ocpp16.DataTransferResponse{Status: ocpp16.DataTransferStatusAccepted}, nil
}

// handleUnlock16 1.6解锁要求先结束进行中的交易再放缆
func (s *Station) handleUnlock16(ctx context.Context, frame *serialization.Frame) (interface{}, error) {
	var req ocpp16.UnlockConnectorRequest
	if err := serialization.DecodePayload(frame.Payload, &req); err != nil {
		return nil, errFormation("invalid UnlockConnector payload: %v", err)
	}
	c, ok := s.connector16(req.ConnectorId)
	if !ok {
		return &ocpp16.UnlockConnectorResponse{Status: ocpp16.UnlockStatusNotSupported}, nil
	}
	if c.HasTransaction() {
		c.RequestStop(stopCauseUnlock)
	}
	return &ocpp16.UnlockConnectorResponse{Status: ocpp16.UnlockStatusUnlocked}, nil
}
