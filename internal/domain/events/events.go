package events

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Event 统一业务事件接口
type Event interface {
	// GetID 获取事件ID
	GetID() string
	// GetType 获取事件类型
	GetType() EventType
	// GetStationID 获取站点ID
	GetStationID() string
	// GetTimestamp 获取事件时间戳
	GetTimestamp() time.Time
	// GetSeverity 获取事件严重程度
	GetSeverity() EventSeverity
	// GetMetadata 获取事件元数据
	GetMetadata() Metadata
	// GetPayload 获取事件载荷
	GetPayload() interface{}
	// ToJSON 序列化为JSON
	ToJSON() ([]byte, error)
}

// BaseEvent 基础事件结构
type BaseEvent struct {
	ID        string        `json:"id"`
	Type      EventType     `json:"type"`
	StationID string        `json:"station_id"`
	Timestamp time.Time     `json:"timestamp"`
	Severity  EventSeverity `json:"severity"`
	Metadata  Metadata      `json:"metadata"`
}

// GetID 实现Event接口
func (e *BaseEvent) GetID() string {
	return e.ID
}

// GetType 实现Event接口
func (e *BaseEvent) GetType() EventType {
	return e.Type
}

// GetStationID 实现Event接口
func (e *BaseEvent) GetStationID() string {
	return e.StationID
}

// GetTimestamp 实现Event接口
func (e *BaseEvent) GetTimestamp() time.Time {
	return e.Timestamp
}

// GetSeverity 实现Event接口
func (e *BaseEvent) GetSeverity() EventSeverity {
	return e.Severity
}

// GetMetadata 实现Event接口
func (e *BaseEvent) GetMetadata() Metadata {
	return e.Metadata
}

// NewBaseEvent 创建基础事件
func NewBaseEvent(eventType EventType, stationID string, severity EventSeverity, metadata Metadata) *BaseEvent {
	return &BaseEvent{
		ID:        uuid.New().String(),
		Type:      eventType,
		StationID: stationID,
		Timestamp: time.Now().UTC(),
		Severity:  severity,
		Metadata:  metadata,
	}
}

// StationConnectedEvent 站点连接事件
type StationConnectedEvent struct {
	*BaseEvent
	StationInfo StationInfo `json:"station_info"`
}

// GetPayload 实现Event接口
func (e *StationConnectedEvent) GetPayload() interface{} {
	return e.StationInfo
}

// ToJSON 实现Event接口
func (e *StationConnectedEvent) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// StationDisconnectedEvent 站点断开连接事件
type StationDisconnectedEvent struct {
	*BaseEvent
	Reason string `json:"reason"`
}

// GetPayload 实现Event接口
func (e *StationDisconnectedEvent) GetPayload() interface{} {
	return map[string]interface{}{
		"reason": e.Reason,
	}
}

// ToJSON 实现Event接口
func (e *StationDisconnectedEvent) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// StationRegisteredEvent 站点注册事件，BootNotification被CSMS接受后发出
type StationRegisteredEvent struct {
	*BaseEvent
	StationInfo StationInfo `json:"station_info"`
	Interval    int         `json:"interval"`
}

// GetPayload 实现Event接口
func (e *StationRegisteredEvent) GetPayload() interface{} {
	return map[string]interface{}{
		"station_info": e.StationInfo,
		"interval":     e.Interval,
	}
}

// ToJSON 实现Event接口
func (e *StationRegisteredEvent) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// StationRejectedEvent 站点注册被拒事件
type StationRejectedEvent struct {
	*BaseEvent
	Interval int `json:"interval"`
}

// GetPayload 实现Event接口
func (e *StationRejectedEvent) GetPayload() interface{} {
	return map[string]interface{}{
		"interval": e.Interval,
	}
}

// ToJSON 实现Event接口
func (e *StationRejectedEvent) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// StationPendingEvent 站点注册挂起事件，CSMS要求稍后重试
type StationPendingEvent struct {
	*BaseEvent
	Interval int `json:"interval"`
}

// GetPayload 实现Event接口
func (e *StationPendingEvent) GetPayload() interface{} {
	return map[string]interface{}{
		"interval": e.Interval,
	}
}

// ToJSON 实现Event接口
func (e *StationPendingEvent) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// StationStoppedEvent 站点停机事件
type StationStoppedEvent struct {
	*BaseEvent
	Reason string `json:"reason"`
}

// GetPayload 实现Event接口
func (e *StationStoppedEvent) GetPayload() interface{} {
	return map[string]interface{}{
		"reason": e.Reason,
	}
}

// ToJSON 实现Event接口
func (e *StationStoppedEvent) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// StationReconnectingEvent 站点重连事件
type StationReconnectingEvent struct {
	*BaseEvent
	Attempt   uint64        `json:"attempt"`
	NextDelay time.Duration `json:"next_delay"`
}

// GetPayload 实现Event接口
func (e *StationReconnectingEvent) GetPayload() interface{} {
	return map[string]interface{}{
		"attempt":    e.Attempt,
		"next_delay": e.NextDelay.String(),
	}
}

// ToJSON 实现Event接口
func (e *StationReconnectingEvent) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// ConnectorStatusChangedEvent 连接器状态变更事件
type ConnectorStatusChangedEvent struct {
	*BaseEvent
	ConnectorInfo  ConnectorInfo   `json:"connector_info"`
	PreviousStatus ConnectorStatus `json:"previous_status"`
}

// GetPayload 实现Event接口
func (e *ConnectorStatusChangedEvent) GetPayload() interface{} {
	return map[string]interface{}{
		"connector_info":  e.ConnectorInfo,
		"previous_status": e.PreviousStatus,
	}
}

// ToJSON 实现Event接口
func (e *ConnectorStatusChangedEvent) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// TransactionStartedEvent 交易开始事件
type TransactionStartedEvent struct {
	*BaseEvent
	TransactionInfo   TransactionInfo   `json:"transaction_info"`
	AuthorizationInfo AuthorizationInfo `json:"authorization_info"`
}

// GetPayload 实现Event接口
func (e *TransactionStartedEvent) GetPayload() interface{} {
	return map[string]interface{}{
		"transaction_info":   e.TransactionInfo,
		"authorization_info": e.AuthorizationInfo,
	}
}

// ToJSON 实现Event接口
func (e *TransactionStartedEvent) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// TransactionStoppedEvent 交易停止事件
type TransactionStoppedEvent struct {
	*BaseEvent
	TransactionInfo TransactionInfo    `json:"transaction_info"`
	MeterValues     []MeterValueSample `json:"meter_values,omitempty"`
}

// GetPayload 实现Event接口
func (e *TransactionStoppedEvent) GetPayload() interface{} {
	return map[string]interface{}{
		"transaction_info": e.TransactionInfo,
		"meter_values":     e.MeterValues,
	}
}

// ToJSON 实现Event接口
func (e *TransactionStoppedEvent) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// MeterValuesSampledEvent 电表采样事件
type MeterValuesSampledEvent struct {
	*BaseEvent
	EvseID        int                `json:"evse_id"`
	ConnectorID   int                `json:"connector_id"`
	TransactionID *string            `json:"transaction_id,omitempty"`
	MeterValues   []MeterValueSample `json:"meter_values"`
}

// GetPayload 实现Event接口
func (e *MeterValuesSampledEvent) GetPayload() interface{} {
	return map[string]interface{}{
		"evse_id":        e.EvseID,
		"connector_id":   e.ConnectorID,
		"transaction_id": e.TransactionID,
		"meter_values":   e.MeterValues,
	}
}

// ToJSON 实现Event接口
func (e *MeterValuesSampledEvent) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// AuthorizationResultEvent 授权结果事件
type AuthorizationResultEvent struct {
	*BaseEvent
	AuthorizationInfo AuthorizationInfo `json:"authorization_info"`
}

// GetPayload 实现Event接口
func (e *AuthorizationResultEvent) GetPayload() interface{} {
	return e.AuthorizationInfo
}

// ToJSON 实现Event接口
func (e *AuthorizationResultEvent) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// CommandReceivedEvent CSMS指令接收事件
type CommandReceivedEvent struct {
	*BaseEvent
	Command RemoteCommand `json:"command"`
}

// GetPayload 实现Event接口
func (e *CommandReceivedEvent) GetPayload() interface{} {
	return e.Command
}

// ToJSON 实现Event接口
func (e *CommandReceivedEvent) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// CommandExecutedEvent CSMS指令执行完成事件
type CommandExecutedEvent struct {
	*BaseEvent
	Command RemoteCommand `json:"command"`
}

// GetPayload 实现Event接口
func (e *CommandExecutedEvent) GetPayload() interface{} {
	return e.Command
}

// ToJSON 实现Event接口
func (e *CommandExecutedEvent) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// ConfigurationChangedEvent 配置变更事件，SetVariables/ChangeConfiguration生效后发出
type ConfigurationChangedEvent struct {
	*BaseEvent
	Component string `json:"component,omitempty"`
	Key       string `json:"key"`
	Value     string `json:"value"`
	Status    string `json:"status"`
}

// GetPayload 实现Event接口
func (e *ConfigurationChangedEvent) GetPayload() interface{} {
	return map[string]interface{}{
		"component": e.Component,
		"key":       e.Key,
		"value":     e.Value,
		"status":    e.Status,
	}
}

// ToJSON 实现Event接口
func (e *ConfigurationChangedEvent) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// ProtocolErrorEvent 协议错误事件
type ProtocolErrorEvent struct {
	*BaseEvent
	ErrorInfo       ErrorInfo   `json:"error_info"`
	OriginalMessage interface{} `json:"original_message,omitempty"`
}

// GetPayload 实现Event接口
func (e *ProtocolErrorEvent) GetPayload() interface{} {
	return map[string]interface{}{
		"error_info":       e.ErrorInfo,
		"original_message": e.OriginalMessage,
	}
}

// ToJSON 实现Event接口
func (e *ProtocolErrorEvent) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// CallTimeoutEvent 请求超时事件
type CallTimeoutEvent struct {
	*BaseEvent
	Action    string `json:"action"`
	MessageID string `json:"message_id"`
}

// GetPayload 实现Event接口
func (e *CallTimeoutEvent) GetPayload() interface{} {
	return map[string]interface{}{
		"action":     e.Action,
		"message_id": e.MessageID,
	}
}

// ToJSON 实现Event接口
func (e *CallTimeoutEvent) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// EventFactory 事件工厂
type EventFactory struct{}

// NewEventFactory 创建事件工厂
func NewEventFactory() *EventFactory {
	return &EventFactory{}
}

// CreateStationConnectedEvent 创建站点连接事件
func (f *EventFactory) CreateStationConnectedEvent(stationID string, info StationInfo, metadata Metadata) *StationConnectedEvent {
	return &StationConnectedEvent{
		BaseEvent:   NewBaseEvent(EventTypeStationConnected, stationID, EventSeverityInfo, metadata),
		StationInfo: info,
	}
}

// CreateStationDisconnectedEvent 创建站点断开事件
func (f *EventFactory) CreateStationDisconnectedEvent(stationID string, reason string, metadata Metadata) *StationDisconnectedEvent {
	return &StationDisconnectedEvent{
		BaseEvent: NewBaseEvent(EventTypeStationDisconnected, stationID, EventSeverityWarning, metadata),
		Reason:    reason,
	}
}

// CreateStationRegisteredEvent 创建站点注册事件
func (f *EventFactory) CreateStationRegisteredEvent(stationID string, info StationInfo, interval int, metadata Metadata) *StationRegisteredEvent {
	return &StationRegisteredEvent{
		BaseEvent:   NewBaseEvent(EventTypeStationRegistered, stationID, EventSeverityInfo, metadata),
		StationInfo: info,
		Interval:    interval,
	}
}

// CreateStationRejectedEvent 创建站点被拒事件
func (f *EventFactory) CreateStationRejectedEvent(stationID string, interval int, metadata Metadata) *StationRejectedEvent {
	return &StationRejectedEvent{
		BaseEvent: NewBaseEvent(EventTypeStationRejected, stationID, EventSeverityWarning, metadata),
		Interval:  interval,
	}
}

// CreateStationPendingEvent 创建站点挂起事件
func (f *EventFactory) CreateStationPendingEvent(stationID string, interval int, metadata Metadata) *StationPendingEvent {
	return &StationPendingEvent{
		BaseEvent: NewBaseEvent(EventTypeStationPending, stationID, EventSeverityInfo, metadata),
		Interval:  interval,
	}
}

// CreateStationStoppedEvent 创建站点停机事件
func (f *EventFactory) CreateStationStoppedEvent(stationID string, reason string, metadata Metadata) *StationStoppedEvent {
	return &StationStoppedEvent{
		BaseEvent: NewBaseEvent(EventTypeStationStopped, stationID, EventSeverityInfo, metadata),
		Reason:    reason,
	}
}

// CreateStationReconnectingEvent 创建站点重连事件
func (f *EventFactory) CreateStationReconnectingEvent(stationID string, attempt uint64, nextDelay time.Duration, metadata Metadata) *StationReconnectingEvent {
	return &StationReconnectingEvent{
		BaseEvent: NewBaseEvent(EventTypeStationReconnecting, stationID, EventSeverityWarning, metadata),
		Attempt:   attempt,
		NextDelay: nextDelay,
	}
}

// CreateMeterValuesSampledEvent 创建电表采样事件
func (f *EventFactory) CreateMeterValuesSampledEvent(stationID string, evseID, connectorID int, transactionID *string, samples []MeterValueSample, metadata Metadata) *MeterValuesSampledEvent {
	return &MeterValuesSampledEvent{
		BaseEvent:     NewBaseEvent(EventTypeMeterValuesSampled, stationID, EventSeverityInfo, metadata),
		EvseID:        evseID,
		ConnectorID:   connectorID,
		TransactionID: transactionID,
		MeterValues:   samples,
	}
}

// CreateAuthorizationResultEvent 创建授权结果事件
func (f *EventFactory) CreateAuthorizationResultEvent(stationID string, authInfo AuthorizationInfo, metadata Metadata) *AuthorizationResultEvent {
	eventType := EventTypeAuthorizationGranted
	severity := EventSeverityInfo
	if authInfo.Result != AuthorizationResultAccepted {
		eventType = EventTypeAuthorizationDenied
		severity = EventSeverityWarning
	}
	return &AuthorizationResultEvent{
		BaseEvent:         NewBaseEvent(eventType, stationID, severity, metadata),
		AuthorizationInfo: authInfo,
	}
}

// CreateConnectorStatusChangedEvent 创建连接器状态变更事件
func (f *EventFactory) CreateConnectorStatusChangedEvent(stationID string, connectorInfo ConnectorInfo, previousStatus ConnectorStatus, metadata Metadata) *ConnectorStatusChangedEvent {
	return &ConnectorStatusChangedEvent{
		BaseEvent:      NewBaseEvent(EventTypeConnectorStatusChanged, stationID, EventSeverityInfo, metadata),
		ConnectorInfo:  connectorInfo,
		PreviousStatus: previousStatus,
	}
}

// CreateTransactionStartedEvent 创建交易开始事件
func (f *EventFactory) CreateTransactionStartedEvent(stationID string, transactionInfo TransactionInfo, authInfo AuthorizationInfo, metadata Metadata) *TransactionStartedEvent {
	return &TransactionStartedEvent{
		BaseEvent:         NewBaseEvent(EventTypeTransactionStarted, stationID, EventSeverityInfo, metadata),
		TransactionInfo:   transactionInfo,
		AuthorizationInfo: authInfo,
	}
}

// CreateTransactionStoppedEvent 创建交易停止事件
func (f *EventFactory) CreateTransactionStoppedEvent(stationID string, transactionInfo TransactionInfo, meterValues []MeterValueSample, metadata Metadata) *TransactionStoppedEvent {
	return &TransactionStoppedEvent{
		BaseEvent:       NewBaseEvent(EventTypeTransactionStopped, stationID, EventSeverityInfo, metadata),
		TransactionInfo: transactionInfo,
		MeterValues:     meterValues,
	}
}

// CreateCommandReceivedEvent 创建指令接收事件
func (f *EventFactory) CreateCommandReceivedEvent(stationID string, command RemoteCommand, metadata Metadata) *CommandReceivedEvent {
	return &CommandReceivedEvent{
		BaseEvent: NewBaseEvent(EventTypeCommandReceived, stationID, EventSeverityInfo, metadata),
		Command:   command,
	}
}

// CreateCommandExecutedEvent 创建指令执行事件
func (f *EventFactory) CreateCommandExecutedEvent(stationID string, command RemoteCommand, metadata Metadata) *CommandExecutedEvent {
	severity := EventSeverityInfo
	if command.Status == CommandStatusFailed {
		severity = EventSeverityError
	}
	return &CommandExecutedEvent{
		BaseEvent: NewBaseEvent(EventTypeCommandExecuted, stationID, severity, metadata),
		Command:   command,
	}
}

// CreateConfigurationChangedEvent 创建配置变更事件
func (f *EventFactory) CreateConfigurationChangedEvent(stationID string, component, key, value, status string, metadata Metadata) *ConfigurationChangedEvent {
	return &ConfigurationChangedEvent{
		BaseEvent: NewBaseEvent(EventTypeConfigurationChanged, stationID, EventSeverityInfo, metadata),
		Component: component,
		Key:       key,
		Value:     value,
		Status:    status,
	}
}

// CreateProtocolErrorEvent 创建协议错误事件
func (f *EventFactory) CreateProtocolErrorEvent(stationID string, errorInfo ErrorInfo, originalMessage interface{}, metadata Metadata) *ProtocolErrorEvent {
	return &ProtocolErrorEvent{
		BaseEvent:       NewBaseEvent(EventTypeProtocolError, stationID, EventSeverityError, metadata),
		ErrorInfo:       errorInfo,
		OriginalMessage: originalMessage,
	}
}

// CreateCallTimeoutEvent 创建请求超时事件
func (f *EventFactory) CreateCallTimeoutEvent(stationID string, action string, messageID string, metadata Metadata) *CallTimeoutEvent {
	return &CallTimeoutEvent{
		BaseEvent: NewBaseEvent(EventTypeCallTimeout, stationID, EventSeverityWarning, metadata),
		Action:    action,
		MessageID: messageID,
	}
}
