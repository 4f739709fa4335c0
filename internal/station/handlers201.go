package station

import (
	"context"
	"strconv"

	"github.com/charging-platform/charge-station-simulator/internal/domain/ocpp201"
	"github.com/charging-platform/charge-station-simulator/internal/domain/serialization"
	"github.com/charging-platform/charge-station-simulator/internal/registry"
)

// handlers201 OCPP 2.0.1 CSMS下行命令处理表。
// 处理函数在读循环里执行，禁止同步发起出站Call，
// 需要走线的工作一律交给spawnHandlerTask。
func (s *Station) handlers201() map[string]handlerFunc {
	return map[string]handlerFunc{
		string(ocpp201.ActionGetVariables):            s.handleGetVariables,
		string(ocpp201.ActionSetVariables):            s.handleSetVariables,
		string(ocpp201.ActionGetBaseReport):           s.handleGetBaseReport,
		string(ocpp201.ActionReset):                   s.handleReset201,
		string(ocpp201.ActionRequestStartTransaction): s.handleRequestStart,
		string(ocpp201.ActionRequestStopTransaction):  s.handleRequestStop,
		string(ocpp201.ActionTriggerMessage):          s.handleTrigger201,
		string(ocpp201.ActionChangeAvailability):      s.handleChangeAvailability201,
		string(ocpp201.ActionClearCache):              s.handleClearCache201,
		string(ocpp201.ActionDataTransfer):            s.handleDataTransfer201,
		string(ocpp201.ActionUnlockConnector):         s.handleUnlock201,
	}
}

// itemsPerMessage 从设备模型读取分片上限，缺失或非法时用缺省值
func (s *Station) itemsPerMessage(instance string, fallback int) int {
	inst := instance
	value, ok := s.registry.Value(
		ocpp201.Component{Name: registry.ComponentDeviceDataCtrlr},
		ocpp201.Variable{Name: registry.VarItemsPerMessage, Instance: &inst},
	)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(value)
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}

func (s *Station) handleGetVariables(ctx context.Context, frame *serialization.Frame) (interface{}, error) {
	var req ocpp201.GetVariablesRequest
	if err := serialization.DecodePayload(frame.Payload, &req); err != nil {
		return nil, errFormation("invalid GetVariables payload: %v", err)
	}
	if len(req.GetVariableData) == 0 {
		return nil, &commandError{
			Code:        serialization.ErrorOccurrenceConstraintViolation,
			Description: "getVariableData must not be empty",
		}
	}
	if limit := s.itemsPerMessage(registry.InstanceGetVariables, 50); len(req.GetVariableData) > limit {
		return nil, &commandError{
			Code:        serialization.ErrorOccurrenceConstraintViolation,
			Description: "getVariableData exceeds ItemsPerMessage",
		}
	}

	results := make([]ocpp201.GetVariableResult, 0, len(req.GetVariableData))
	for _, item := range req.GetVariableData {
		result := ocpp201.GetVariableResult{
			AttributeType: item.AttributeType,
			Component:     item.Component,
			Variable:      item.Variable,
		}
		if item.AttributeType != nil && *item.AttributeType != ocpp201.AttributeTypeActual {
			result.AttributeStatus = ocpp201.GetVariableStatusNotSupportedAttributeType
			results = append(results, result)
			continue
		}
		value, status := s.registry.GetVariableValue(item.Component, item.Variable)
		result.AttributeStatus = status
		if status == ocpp201.GetVariableStatusAccepted {
			v := value
			result.AttributeValue = &v
		}
		results = append(results, result)
	}
	return &ocpp201.GetVariablesResponse{GetVariableResult: results}, nil
}

func (s *Station) handleSetVariables(ctx context.Context, frame *serialization.Frame) (interface{}, error) {
	var req ocpp201.SetVariablesRequest
	if err := serialization.DecodePayload(frame.Payload, &req); err != nil {
		return nil, errFormation("invalid SetVariables payload: %v", err)
	}
	if len(req.SetVariableData) == 0 {
		return nil, &commandError{
			Code:        serialization.ErrorOccurrenceConstraintViolation,
			Description: "setVariableData must not be empty",
		}
	}

	results := make([]ocpp201.SetVariableResult, 0, len(req.SetVariableData))
	for _, item := range req.SetVariableData {
		result := ocpp201.SetVariableResult{
			AttributeType: item.AttributeType,
			Component:     item.Component,
			Variable:      item.Variable,
		}
		if item.AttributeType != nil && *item.AttributeType != ocpp201.AttributeTypeActual {
			result.AttributeStatus = ocpp201.SetVariableStatusNotSupportedAttributeType
			results = append(results, result)
			continue
		}
		status := s.registry.SetVariableValue(item.Component, item.Variable, item.AttributeValue)
		result.AttributeStatus = status
		results = append(results, result)

		if status == ocpp201.SetVariableStatusAccepted {
			s.applyVariableSideEffects(item.Component, item.Variable, item.AttributeValue)
		}
		s.emit(s.events.CreateConfigurationChangedEvent(
			s.name, item.Component.Name, item.Variable.Name, item.AttributeValue, string(status), s.metadata()))
	}
	return &ocpp201.SetVariablesResponse{SetVariableResult: results}, nil
}

// applyVariableSideEffects 让已生效的配置立刻作用于运行中的会话
func (s *Station) applyVariableSideEffects(component ocpp201.Component, variable ocpp201.Variable, value string) {
	if component.Name != registry.ComponentOCPPCommCtrlr {
		return
	}
	switch variable.Name {
	case registry.VarHeartbeatInterval:
		if secs, err := strconv.Atoi(value); err == nil && secs > 0 {
			s.applyHeartbeatInterval(secs)
		}
	case registry.VarWebSocketPingInterval:
		if secs, err := strconv.Atoi(value); err == nil && secs >= 0 {
			s.applyPingInterval(secs)
		}
	}
}

func (s *Station) handleGetBaseReport(ctx context.Context, frame *serialization.Frame) (interface{}, error) {
	var req ocpp201.GetBaseReportRequest
	if err := serialization.DecodePayload(frame.Payload, &req); err != nil {
		return nil, errFormation("invalid GetBaseReport payload: %v", err)
	}
	switch req.ReportBase {
	case ocpp201.ReportBaseConfigurationInventory, ocpp201.ReportBaseFullInventory, ocpp201.ReportBaseSummaryInventory:
	default:
		return &ocpp201.GetBaseReportResponse{Status: ocpp201.GenericDeviceModelStatusNotSupported}, nil
	}

	entries := s.registry.ReportEntries(req.ReportBase)
	requestID := req.RequestId
	if !s.spawnHandlerTask(func() {
		s.sendReportChunks(ctx, requestID, entries)
	}) {
		return &ocpp201.GetBaseReportResponse{Status: ocpp201.GenericDeviceModelStatusRejected}, nil
	}
	return &ocpp201.GetBaseReportResponse{Status: ocpp201.GenericDeviceModelStatusAccepted}, nil
}

// sendReportChunks 按ItemsPerMessage分片推送NotifyReport，
// seqNo从0递增，最后一片tbc=false。空清单也要发一片空报文收尾。
func (s *Station) sendReportChunks(ctx context.Context, requestID int, entries []*registry.VariableMetadata) {
	chunk := s.itemsPerMessage(registry.InstanceGetReport, 100)

	if len(entries) == 0 {
		req := &ocpp201.NotifyReportRequest{
			RequestId:   requestID,
			GeneratedAt: ocpp201.Now(),
			SeqNo:       0,
		}
		if _, err := s.call(ctx, string(ocpp201.ActionNotifyReport), req); err != nil {
			s.log.Warnf("NotifyReport failed: requestId=%d err=%v", requestID, err)
		}
		return
	}

	seqNo := 0
	for start := 0; start < len(entries); start += chunk {
		end := start + chunk
		if end > len(entries) {
			end = len(entries)
		}
		data := make([]ocpp201.ReportData, 0, end-start)
		for _, meta := range entries[start:end] {
			data = append(data, meta.ReportData())
		}
		req := &ocpp201.NotifyReportRequest{
			RequestId:   requestID,
			GeneratedAt: ocpp201.Now(),
			ReportData:  data,
			Tbc:         end < len(entries),
			SeqNo:       seqNo,
		}
		if _, err := s.call(ctx, string(ocpp201.ActionNotifyReport), req); err != nil {
			s.log.Warnf("NotifyReport failed: requestId=%d seqNo=%d err=%v", requestID, seqNo, err)
			return
		}
		seqNo++
	}
	s.log.Infof("Device model report sent: requestId=%d entries=%d chunks=%d", requestID, len(entries), seqNo)
}

func (s *Station) handleReset201(ctx context.Context, frame *serialization.Frame) (interface{}, error) {
	var req ocpp201.ResetRequest
	if err := serialization.DecodePayload(frame.Payload, &req); err != nil {
		return nil, errFormation("invalid Reset payload: %v", err)
	}
	if req.Type != ocpp201.ResetTypeImmediate && req.Type != ocpp201.ResetTypeOnIdle {
		return nil, errFormation("unknown reset type %q", req.Type)
	}

	// EVSE级重置只结束该EVSE上的交易，不触发整站重启
	if req.EvseId != nil {
		return s.resetEvse(req.Type, *req.EvseId), nil
	}

	if s.resetInFlight() {
		return &ocpp201.ResetResponse{Status: ocpp201.ResetStatusRejected}, nil
	}

	if req.Type == ocpp201.ResetTypeOnIdle && len(s.activeTransactions()) > 0 {
		if !s.markReset(stopCauseImmediateReset) {
			return &ocpp201.ResetResponse{Status: ocpp201.ResetStatusRejected}, nil
		}
		if !s.spawnHandlerTask(func() { s.scheduleIdleReset(ctx) }) {
			s.clearReset()
			return &ocpp201.ResetResponse{Status: ocpp201.ResetStatusRejected}, nil
		}
		return &ocpp201.ResetResponse{Status: ocpp201.ResetStatusScheduled}, nil
	}

	if !s.requestReboot(stopCauseImmediateReset) {
		return &ocpp201.ResetResponse{Status: ocpp201.ResetStatusRejected}, nil
	}
	return &ocpp201.ResetResponse{Status: ocpp201.ResetStatusAccepted}, nil
}

func (s *Station) resetEvse(resetType ocpp201.ResetType, evseID int) *ocpp201.ResetResponse {
	var targets []*Connector
	for _, c := range s.connectors {
		if c.EvseID() == evseID {
			targets = append(targets, c)
		}
	}
	if len(targets) == 0 {
		return &ocpp201.ResetResponse{Status: ocpp201.ResetStatusRejected}
	}

	busy := false
	for _, c := range targets {
		if !c.HasTransaction() {
			continue
		}
		busy = true
		if resetType == ocpp201.ResetTypeImmediate {
			c.RequestStop(stopCauseImmediateReset)
		}
	}
	if resetType == ocpp201.ResetTypeOnIdle && busy {
		return &ocpp201.ResetResponse{Status: ocpp201.ResetStatusScheduled}
	}
	return &ocpp201.ResetResponse{Status: ocpp201.ResetStatusAccepted}
}

func (s *Station) handleRequestStart(ctx context.Context, frame *serialization.Frame) (interface{}, error) {
	var req ocpp201.RequestStartTransactionRequest
	if err := serialization.DecodePayload(frame.Payload, &req); err != nil {
		return nil, errFormation("invalid RequestStartTransaction payload: %v", err)
	}
	if req.IdToken.IdToken == "" {
		return nil, errFormation("idToken must not be empty")
	}

	c := s.pickConnector(req.EvseId)
	if c == nil {
		return &ocpp201.RequestStartTransactionResponse{Status: ocpp201.RequestStartStopStatusRejected}, nil
	}

	idTag := req.IdToken.IdToken
	remoteID := req.RemoteStartId
	if !s.spawnHandlerTask(func() {
		if s.remoteStartRequiresAuth() {
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
		if err := s.runTransaction(ctx, c, idTag, &remoteID, true, 0); err != nil {
			s.log.Warnf("Remote start failed: evse=%d connector=%d err=%v", c.EvseID(), c.ID(), err)
		}
	}) {
		return &ocpp201.RequestStartTransactionResponse{Status: ocpp201.RequestStartStopStatusRejected}, nil
	}
	return &ocpp201.RequestStartTransactionResponse{Status: ocpp201.RequestStartStopStatusAccepted}, nil
}

// pickConnector 选一个能开始充电的连接器。指定EVSE时只在该EVSE内找。
func (s *Station) pickConnector(evseID *int) *Connector {
	for _, c := range s.connectors {
		if evseID != nil && c.EvseID() != *evseID {
			continue
		}
		if !c.IsOperative() || c.HasTransaction() || c.Status() != ConnectorStateAvailable {
			continue
		}
		return c
	}
	return nil
}

// remoteStartRequiresAuth 设备模型AuthorizeRemoteStart为true时，
// 远程启动前先发Authorize
func (s *Station) remoteStartRequiresAuth() bool {
	value, ok := s.registry.Value(
		ocpp201.Component{Name: registry.ComponentAuthCtrlr},
		ocpp201.Variable{Name: registry.VarAuthorizeRemoteStart},
	)
	return ok && value == "true"
}

func (s *Station) handleRequestStop(ctx context.Context, frame *serialization.Frame) (interface{}, error) {
	var req ocpp201.RequestStopTransactionRequest
	if err := serialization.DecodePayload(frame.Payload, &req); err != nil {
		return nil, errFormation("invalid RequestStopTransaction payload: %v", err)
	}
	for _, c := range s.connectors {
		tx, ok := c.ActiveTransaction()
		if !ok || tx.ID != req.TransactionId {
			continue
		}
		if c.RequestStop(stopCauseRemote) {
			return &ocpp201.RequestStopTransactionResponse{Status: ocpp201.RequestStartStopStatusAccepted}, nil
		}
	}
	return &ocpp201.RequestStopTransactionResponse{Status: ocpp201.RequestStartStopStatusRejected}, nil
}

func (s *Station) handleTrigger201(ctx context.Context, frame *serialization.Frame) (interface{}, error) {
	var req ocpp201.TriggerMessageRequest
	if err := serialization.DecodePayload(frame.Payload, &req); err != nil {
		return nil, errFormation("invalid TriggerMessage payload: %v", err)
	}

	switch req.RequestedMessage {
	case ocpp201.MessageTriggerBootNotification:
		if !s.triggerBootNotification(ctx) {
			return &ocpp201.TriggerMessageResponse{Status: ocpp201.TriggerMessageStatusRejected}, nil
		}
		return &ocpp201.TriggerMessageResponse{Status: ocpp201.TriggerMessageStatusAccepted}, nil

	case ocpp201.MessageTriggerHeartbeat:
		if !s.spawnHandlerTask(func() { s.sendHeartbeat(ctx) }) {
			return &ocpp201.TriggerMessageResponse{Status: ocpp201.TriggerMessageStatusRejected}, nil
		}
		return &ocpp201.TriggerMessageResponse{Status: ocpp201.TriggerMessageStatusAccepted}, nil

	case ocpp201.MessageTriggerStatusNotification:
		targets := s.matchConnectors(req.Evse)
		if len(targets) == 0 {
			return &ocpp201.TriggerMessageResponse{Status: ocpp201.TriggerMessageStatusRejected}, nil
		}
		if !s.spawnHandlerTask(func() {
			for _, c := range targets {
				s.notifyStatus(ctx, c)
			}
		}) {
			return &ocpp201.TriggerMessageResponse{Status: ocpp201.TriggerMessageStatusRejected}, nil
		}
		return &ocpp201.TriggerMessageResponse{Status: ocpp201.TriggerMessageStatusAccepted}, nil

	case ocpp201.MessageTriggerMeterValues:
		targets := s.matchConnectors(req.Evse)
		if len(targets) == 0 {
			return &ocpp201.TriggerMessageResponse{Status: ocpp201.TriggerMessageStatusRejected}, nil
		}
		if !s.spawnHandlerTask(func() {
			for _, c := range targets {
				s.sendTriggeredMeterValues(ctx, c)
			}
		}) {
			return &ocpp201.TriggerMessageResponse{Status: ocpp201.TriggerMessageStatusRejected}, nil
		}
		return &ocpp201.TriggerMessageResponse{Status: ocpp201.TriggerMessageStatusAccepted}, nil

	case ocpp201.MessageTriggerTransactionEvent:
		var targets []*Connector
		for _, c := range s.matchConnectors(req.Evse) {
			if c.HasTransaction() {
				targets = append(targets, c)
			}
		}
		if len(targets) == 0 {
			return &ocpp201.TriggerMessageResponse{Status: ocpp201.TriggerMessageStatusRejected}, nil
		}
		if !s.spawnHandlerTask(func() {
			for _, c := range targets {
				s.sendTriggeredTransactionEvent(ctx, c)
			}
		}) {
			return &ocpp201.TriggerMessageResponse{Status: ocpp201.TriggerMessageStatusRejected}, nil
		}
		return &ocpp201.TriggerMessageResponse{Status: ocpp201.TriggerMessageStatusAccepted}, nil

	default:
		return &ocpp201.TriggerMessageResponse{Status: ocpp201.TriggerMessageStatusNotImplemented}, nil
	}
}

// triggerBootNotification 处理BootNotification触发。未注册时唤醒
// 重试循环即可，已接受时带Triggered原因重发一次。
func (s *Station) triggerBootNotification(ctx context.Context) bool {
	if !s.IsAccepted() {
		s.wakeBoot()
		return true
	}
	return s.spawnHandlerTask(func() {
		s.bootReason.Store(ocpp201.BootReasonTriggered)
		outcome, err := s.sendBootNotification(ctx)
		if err != nil {
			s.log.Warnf("Triggered BootNotification failed: %v", err)
			return
		}
		if outcome.status != string(ocpp201.RegistrationStatusAccepted) {
			s.log.Warnf("Triggered BootNotification answered %s, keeping accepted state", outcome.status)
			return
		}
		if outcome.interval > 0 {
			s.applyHeartbeatInterval(outcome.interval)
		}
	})
}

// matchConnectors 按TriggerMessage的EVSE过滤条件选连接器，nil表示全部
func (s *Station) matchConnectors(evse *ocpp201.EVSE) []*Connector {
	if evse == nil {
		return s.connectors
	}
	var out []*Connector
	for _, c := range s.connectors {
		if c.EvseID() != evse.Id {
			continue
		}
		if evse.ConnectorId != nil && c.ID() != *evse.ConnectorId {
			continue
		}
		out = append(out, c)
	}
	return out
}

// sendTriggeredMeterValues 触发式电表上报。有交易的连接器走正常采样，
// 空闲连接器单独上报当前累计电量。
func (s *Station) sendTriggeredMeterValues(ctx context.Context, c *Connector) {
	if c.HasTransaction() {
		s.sampleMeter(ctx, c)
		return
	}
	req := &ocpp201.MeterValuesRequest{
		EvseId:     c.EvseID(),
		MeterValue: []ocpp201.MeterValue{energyReading201(c.MeterWh(), ocpp201.ReadingContextTrigger)},
	}
	if _, err := s.doCall(ctx, string(ocpp201.ActionMeterValues), req); err != nil {
		s.log.Warnf("Triggered MeterValues failed: evse=%d err=%v", c.EvseID(), err)
	}
}

// sendTriggeredTransactionEvent 对进行中的交易补发一条Updated事件
func (s *Station) sendTriggeredTransactionEvent(ctx context.Context, c *Connector) {
	tx, ok := c.ActiveTransaction()
	if !ok {
		return
	}
	charging := ocpp201.ChargingStateCharging
	cid := c.ID()
	req := &ocpp201.TransactionEventRequest{
		EventType:     ocpp201.TransactionEventUpdated,
		Timestamp:     ocpp201.Now(),
		TriggerReason: ocpp201.TriggerReasonTrigger,
		SeqNo:         c.NextSeqNo(),
		TransactionInfo: ocpp201.TransactionInfo{
			TransactionId: tx.ID,
			ChargingState: &charging,
		},
		Evse: &ocpp201.EVSE{Id: c.EvseID(), ConnectorId: &cid},
	}
	if _, err := s.doCall(ctx, string(ocpp201.ActionTransactionEvent), req); err != nil {
		s.log.Warnf("Triggered TransactionEvent failed: tx=%s err=%v", tx.ID, err)
	}
}

func (s *Station) handleChangeAvailability201(ctx context.Context, frame *serialization.Frame) (interface{}, error) {
	var req ocpp201.ChangeAvailabilityRequest
	if err := serialization.DecodePayload(frame.Payload, &req); err != nil {
		return nil, errFormation("invalid ChangeAvailability payload: %v", err)
	}

	var avail Availability
	switch req.OperationalStatus {
	case ocpp201.OperationalStatusOperative:
		avail = AvailabilityOperative
	case ocpp201.OperationalStatusInoperative:
		avail = AvailabilityInoperative
	default:
		return nil, errFormation("unknown operational status %q", req.OperationalStatus)
	}

	targets := s.matchConnectors(req.Evse)
	if len(targets) == 0 {
		return &ocpp201.ChangeAvailabilityResponse{Status: ocpp201.ChangeAvailabilityStatusRejected}, nil
	}

	if s.applyAvailability(ctx, targets, avail) {
		return &ocpp201.ChangeAvailabilityResponse{Status: ocpp201.ChangeAvailabilityStatusScheduled}, nil
	}
	return &ocpp201.ChangeAvailabilityResponse{Status: ocpp201.ChangeAvailabilityStatusAccepted}, nil
}

// applyAvailability 空闲连接器立即改可用性，占用中的挂到交易结束后生效。
// 返回是否有延期的目标。
func (s *Station) applyAvailability(ctx context.Context, targets []*Connector, avail Availability) bool {
	scheduled := false
	var changed []*Connector
	for _, c := range targets {
		if c.HasTransaction() {
			s.deferAvailability(c, avail)
			scheduled = true
			continue
		}
		if c.SetAvailability(avail) {
			changed = append(changed, c)
		}
	}
	if len(changed) > 0 {
		state := ConnectorStateAvailable
		if avail == AvailabilityInoperative {
			state = ConnectorStateUnavailable
		}
		s.spawnHandlerTask(func() {
			for _, c := range changed {
				s.transitionConnector(ctx, c, state)
			}
		})
	}
	return scheduled
}

func (s *Station) handleClearCache201(ctx context.Context, frame *serialization.Frame) (interface{}, error) {
	var req ocpp201.ClearCacheRequest
	if err := serialization.DecodePayload(frame.Payload, &req); err != nil {
		return nil, errFormation("invalid ClearCache payload: %v", err)
	}
	if !s.tpl.IsAuthCacheEnabled() {
		return &ocpp201.ClearCacheResponse{Status: ocpp201.ClearCacheStatusRejected}, nil
	}
	removed := s.authCache.Clear()
	s.log.Infof("Authorization cache cleared: entries=%d", removed)
	return &ocpp201.ClearCacheResponse{Status: ocpp201.ClearCacheStatusAccepted}, nil
}

func (s *Station) handleDataTransfer201(ctx context.Context, frame *serialization.Frame) (interface{}, error) {
	var req ocpp201.DataTransferRequest
	if err := serialization.DecodePayload(frame.Payload, &req); err != nil {
		return nil, errFormation("invalid DataTransfer payload: %v", err)
	}
	if req.VendorId != s.tpl.ChargePointVendor {
		return &ocpp201.DataTransferResponse{Status: ocpp201.DataTransferStatusUnknownVendorId}, nil
	}
	return &ocpp201.DataTransferResponse{Status: ocpp201.DataTransferStatusAccepted}, nil
}

func (s *Station) handleUnlock201(ctx context.Context, frame *serialization.Frame) (interface{}, error) {
	var req ocpp201.UnlockConnectorRequest
	if err := serialization.DecodePayload(frame.Payload, &req); err != nil {
		return nil, errFormation("invalid UnlockConnector payload: %v", err)
	}
	c, ok := s.Connector(req.EvseId, req.ConnectorId)
	if !ok {
		return &ocpp201.UnlockConnectorResponse{Status: ocpp201.UnlockStatusUnknownConnector}, nil
	}
	// 2.0.1要求解锁不中断授权中的交易
	if c.HasTransaction() {
		return &ocpp201.UnlockConnectorResponse{Status: ocpp201.UnlockStatusOngoingAuthorizedTransaction}, nil
	}
	return &ocpp201.UnlockConnectorResponse{Status: ocpp201.UnlockStatusUnlocked}, nil
}
