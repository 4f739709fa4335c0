package events

import (
	"time"
)

// EventType 事件类型
type EventType string

const (
	// 站点生命周期事件
	EventTypeStationConnected    EventType = "station.connected"
	EventTypeStationDisconnected EventType = "station.disconnected"
	EventTypeStationRegistered   EventType = "station.registered"
	EventTypeStationPending      EventType = "station.pending"
	EventTypeStationRejected     EventType = "station.rejected"
	EventTypeStationStopped      EventType = "station.stopped"
	EventTypeStationReconnecting EventType = "station.reconnecting"

	// 连接器状态事件
	EventTypeConnectorStatusChanged EventType = "connector.status_changed"
	EventTypeStationHeartbeat       EventType = "station.heartbeat"

	// 交易事件
	EventTypeTransactionStarted EventType = "transaction.started"
	EventTypeTransactionStopped EventType = "transaction.stopped"
	EventTypeTransactionUpdated EventType = "transaction.updated"

	// 授权事件
	EventTypeAuthorizationRequested EventType = "authorization.requested"
	EventTypeAuthorizationGranted   EventType = "authorization.granted"
	EventTypeAuthorizationDenied    EventType = "authorization.denied"

	// 电表数据事件
	EventTypeMeterValuesSampled EventType = "meter_values.sampled"

	// 配置事件
	EventTypeConfigurationChanged EventType = "configuration.changed"

	// CSMS下发指令事件
	EventTypeCommandReceived EventType = "command.received"
	EventTypeCommandExecuted EventType = "command.executed"
	EventTypeCommandFailed   EventType = "command.failed"

	// 错误事件
	EventTypeProtocolError EventType = "protocol.error"
	EventTypeCallTimeout   EventType = "call.timeout"
)

// EventSeverity 事件严重程度
type EventSeverity string

const (
	EventSeverityInfo     EventSeverity = "info"
	EventSeverityWarning  EventSeverity = "warning"
	EventSeverityError    EventSeverity = "error"
	EventSeverityCritical EventSeverity = "critical"
)

// StationStatus 统一的站点状态
type StationStatus string

const (
	StationStatusOnline     StationStatus = "online"
	StationStatusOffline    StationStatus = "offline"
	StationStatusRegistered StationStatus = "registered"
	StationStatusPending    StationStatus = "pending"
	StationStatusRejected   StationStatus = "rejected"
)

// ConnectorStatus 统一的连接器状态，1.6与2.0.1状态都折算到这套词汇
type ConnectorStatus string

const (
	ConnectorStatusAvailable     ConnectorStatus = "available"
	ConnectorStatusPreparing     ConnectorStatus = "preparing"
	ConnectorStatusCharging      ConnectorStatus = "charging"
	ConnectorStatusSuspendedEVSE ConnectorStatus = "suspended_evse"
	ConnectorStatusSuspendedEV   ConnectorStatus = "suspended_ev"
	ConnectorStatusFinishing     ConnectorStatus = "finishing"
	ConnectorStatusReserved      ConnectorStatus = "reserved"
	ConnectorStatusUnavailable   ConnectorStatus = "unavailable"
	ConnectorStatusFaulted       ConnectorStatus = "faulted"
)

// TransactionStatus 统一的交易状态
type TransactionStatus string

const (
	TransactionStatusStarting TransactionStatus = "starting"
	TransactionStatusActive   TransactionStatus = "active"
	TransactionStatusStopping TransactionStatus = "stopping"
	TransactionStatusStopped  TransactionStatus = "stopped"
	TransactionStatusFaulted  TransactionStatus = "faulted"
)

// AuthorizationResult 统一的授权结果
type AuthorizationResult string

const (
	AuthorizationResultAccepted     AuthorizationResult = "accepted"
	AuthorizationResultBlocked      AuthorizationResult = "blocked"
	AuthorizationResultExpired      AuthorizationResult = "expired"
	AuthorizationResultInvalid      AuthorizationResult = "invalid"
	AuthorizationResultConcurrentTx AuthorizationResult = "concurrent_tx"
	AuthorizationResultUnknown      AuthorizationResult = "unknown"
)

// CommandStatus 指令执行状态
type CommandStatus string

const (
	CommandStatusPending   CommandStatus = "pending"
	CommandStatusExecuting CommandStatus = "executing"
	CommandStatusCompleted CommandStatus = "completed"
	CommandStatusFailed    CommandStatus = "failed"
	CommandStatusRejected  CommandStatus = "rejected"
)

// ErrorCode 统一错误代码
type ErrorCode string

const (
	ErrorCodeProtocolError        ErrorCode = "protocol_error"
	ErrorCodeFormatViolation      ErrorCode = "format_violation"
	ErrorCodePropertyConstraint   ErrorCode = "property_constraint"
	ErrorCodeOccurrenceConstraint ErrorCode = "occurrence_constraint"
	ErrorCodeTypeConstraint       ErrorCode = "type_constraint"
	ErrorCodeGenericError         ErrorCode = "generic_error"
	ErrorCodeInternalError        ErrorCode = "internal_error"
	ErrorCodeNotImplemented       ErrorCode = "not_implemented"
	ErrorCodeNotSupported         ErrorCode = "not_supported"
	ErrorCodeSecurityError        ErrorCode = "security_error"
	ErrorCodeCallTimeout          ErrorCode = "call_timeout"
)

// StationInfo 站点基本信息
type StationInfo struct {
	ID              string        `json:"id"`
	Vendor          string        `json:"vendor"`
	Model           string        `json:"model"`
	SerialNumber    *string       `json:"serial_number,omitempty"`
	FirmwareVersion *string       `json:"firmware_version,omitempty"`
	EvseCount       int           `json:"evse_count"`
	ConnectorCount  int           `json:"connector_count"`
	ProtocolVersion string        `json:"protocol_version"`
	Status          StationStatus `json:"status"`
	LastSeen        time.Time     `json:"last_seen"`
}

// ConnectorInfo 连接器信息
type ConnectorInfo struct {
	EvseID      int             `json:"evse_id"`
	ConnectorID int             `json:"connector_id"`
	StationID   string          `json:"station_id"`
	Status      ConnectorStatus `json:"status"`
	ErrorCode   *string         `json:"error_code,omitempty"`
}

// TransactionInfo 交易信息。1.6的整型交易号折算成十进制字符串，
// 与2.0.1站点生成的UUID共用一个字段。
type TransactionInfo struct {
	ID            string            `json:"id"`
	StationID     string            `json:"station_id"`
	EvseID        int               `json:"evse_id"`
	ConnectorID   int               `json:"connector_id"`
	IdTag         string            `json:"id_tag"`
	Status        TransactionStatus `json:"status"`
	StartTime     time.Time         `json:"start_time"`
	EndTime       *time.Time        `json:"end_time,omitempty"`
	MeterStart    int               `json:"meter_start"`
	MeterStop     *int              `json:"meter_stop,omitempty"`
	StopReason    *string           `json:"stop_reason,omitempty"`
	RemoteStartID *int              `json:"remote_start_id,omitempty"`
}

// MeterValueSample 统一的电表采样
type MeterValueSample struct {
	Measurand string    `json:"measurand"`
	Value     float64   `json:"value"`
	Unit      *string   `json:"unit,omitempty"`
	Phase     *string   `json:"phase,omitempty"`
	Context   *string   `json:"context,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// AuthorizationInfo 授权信息
type AuthorizationInfo struct {
	IdTag       string              `json:"id_tag"`
	Result      AuthorizationResult `json:"result"`
	ExpiryDate  *time.Time          `json:"expiry_date,omitempty"`
	ParentIdTag *string             `json:"parent_id_tag,omitempty"`
	FromCache   bool                `json:"from_cache"`
}

// RemoteCommand CSMS下发的指令
type RemoteCommand struct {
	ID           string                 `json:"id"`
	StationID    string                 `json:"station_id"`
	Action       string                 `json:"action"`
	Status       CommandStatus          `json:"status"`
	Parameters   map[string]interface{} `json:"parameters,omitempty"`
	ReceivedAt   time.Time              `json:"received_at"`
	CompletedAt  *time.Time             `json:"completed_at,omitempty"`
	ErrorCode    *string                `json:"error_code,omitempty"`
	ErrorMessage *string                `json:"error_message,omitempty"`
	Result       map[string]interface{} `json:"result,omitempty"`
}

// ErrorInfo 错误信息
type ErrorInfo struct {
	Code        ErrorCode              `json:"code"`
	Description string                 `json:"description"`
	Details     map[string]interface{} `json:"details,omitempty"`
	Timestamp   time.Time              `json:"timestamp"`
}

// Metadata 事件元数据
type Metadata struct {
	Source          string                 `json:"source"`                   // 事件源标识
	CorrelationID   *string                `json:"correlation_id,omitempty"` // 关联ID
	ProtocolVersion string                 `json:"protocol_version"`         // 协议版本
	MessageID       *string                `json:"message_id,omitempty"`     // 原始消息ID
	Custom          map[string]interface{} `json:"custom,omitempty"`         // 自定义字段
}
