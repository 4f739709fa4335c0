package ocpp201

// BootNotificationRequest 启动通知请求
type BootNotificationRequest struct {
	Reason          BootReason      `json:"reason" validate:"required"`
	ChargingStation ChargingStation `json:"chargingStation" validate:"required"`
}

// BootNotificationResponse 启动通知响应
type BootNotificationResponse struct {
	CurrentTime DateTime           `json:"currentTime" validate:"required"`
	Interval    int                `json:"interval" validate:"min=0"`
	Status      RegistrationStatus `json:"status" validate:"required"`
	StatusInfo  *StatusInfo        `json:"statusInfo,omitempty"`
}

// HeartbeatRequest 心跳请求
type HeartbeatRequest struct{}

// HeartbeatResponse 心跳响应
type HeartbeatResponse struct {
	CurrentTime DateTime `json:"currentTime" validate:"required"`
}

// StatusNotificationRequest 连接器状态通知请求
type StatusNotificationRequest struct {
	Timestamp       DateTime        `json:"timestamp" validate:"required"`
	ConnectorStatus ConnectorStatus `json:"connectorStatus" validate:"required"`
	EvseId          int             `json:"evseId" validate:"required,min=1"`
	ConnectorId     int             `json:"connectorId" validate:"required,min=1"`
}

// StatusNotificationResponse 状态通知响应
type StatusNotificationResponse struct{}

// AuthorizeRequest 授权请求
type AuthorizeRequest struct {
	IdToken IdToken `json:"idToken" validate:"required"`
}

// AuthorizeResponse 授权响应
type AuthorizeResponse struct {
	IdTokenInfo IdTokenInfo `json:"idTokenInfo" validate:"required"`
}

// TransactionEventRequest 交易事件请求
type TransactionEventRequest struct {
	EventType          TransactionEventType `json:"eventType" validate:"required"`
	Timestamp          DateTime             `json:"timestamp" validate:"required"`
	TriggerReason      TriggerReason        `json:"triggerReason" validate:"required"`
	SeqNo              int                  `json:"seqNo" validate:"min=0"`
	Offline            bool                 `json:"offline,omitempty"`
	NumberOfPhasesUsed *int                 `json:"numberOfPhasesUsed,omitempty"`
	TransactionInfo    TransactionInfo      `json:"transactionInfo" validate:"required"`
	IdToken            *IdToken             `json:"idToken,omitempty"`
	Evse               *EVSE                `json:"evse,omitempty"`
	MeterValue         []MeterValue         `json:"meterValue,omitempty"`
}

// TransactionEventResponse 交易事件响应
type TransactionEventResponse struct {
	TotalCost              *float64        `json:"totalCost,omitempty"`
	ChargingPriority       *int            `json:"chargingPriority,omitempty"`
	IdTokenInfo            *IdTokenInfo    `json:"idTokenInfo,omitempty"`
	UpdatedPersonalMessage *MessageContent `json:"updatedPersonalMessage,omitempty"`
}

// MeterValuesRequest 交易外采样上报请求
type MeterValuesRequest struct {
	EvseId     int          `json:"evseId" validate:"min=0"`
	MeterValue []MeterValue `json:"meterValue" validate:"required,min=1"`
}

// MeterValuesResponse 采样上报响应
type MeterValuesResponse struct{}

// NotifyReportRequest 设备模型报告分片请求
type NotifyReportRequest struct {
	RequestId   int          `json:"requestId"`
	GeneratedAt DateTime     `json:"generatedAt" validate:"required"`
	ReportData  []ReportData `json:"reportData,omitempty"`
	Tbc         bool         `json:"tbc,omitempty"`
	SeqNo       int          `json:"seqNo" validate:"min=0"`
}

// NotifyReportResponse 报告分片响应
type NotifyReportResponse struct{}

// GetVariablesRequest 批量读取变量请求
type GetVariablesRequest struct {
	GetVariableData []GetVariableData `json:"getVariableData" validate:"required,min=1"`
}

// GetVariableData 单项读取描述
type GetVariableData struct {
	AttributeType *AttributeType `json:"attributeType,omitempty"`
	Component     Component      `json:"component" validate:"required"`
	Variable      Variable       `json:"variable" validate:"required"`
}

// GetVariablesResponse 批量读取变量响应
type GetVariablesResponse struct {
	GetVariableResult []GetVariableResult `json:"getVariableResult" validate:"required,min=1"`
}

// GetVariableResult 单项读取结果
type GetVariableResult struct {
	AttributeStatus     GetVariableStatus `json:"attributeStatus" validate:"required"`
	AttributeType       *AttributeType    `json:"attributeType,omitempty"`
	AttributeValue      *string           `json:"attributeValue,omitempty" validate:"omitempty,max=2500"`
	Component           Component         `json:"component" validate:"required"`
	Variable            Variable          `json:"variable" validate:"required"`
	AttributeStatusInfo *StatusInfo       `json:"attributeStatusInfo,omitempty"`
}

// SetVariablesRequest 批量写入变量请求
type SetVariablesRequest struct {
	SetVariableData []SetVariableData `json:"setVariableData" validate:"required,min=1"`
}

// SetVariableData 单项写入描述
type SetVariableData struct {
	AttributeType  *AttributeType `json:"attributeType,omitempty"`
	AttributeValue string         `json:"attributeValue" validate:"max=2500"`
	Component      Component      `json:"component" validate:"required"`
	Variable       Variable       `json:"variable" validate:"required"`
}

// SetVariablesResponse 批量写入变量响应
type SetVariablesResponse struct {
	SetVariableResult []SetVariableResult `json:"setVariableResult" validate:"required,min=1"`
}

// SetVariableResult 单项写入结果
type SetVariableResult struct {
	AttributeType       *AttributeType    `json:"attributeType,omitempty"`
	AttributeStatus     SetVariableStatus `json:"attributeStatus" validate:"required"`
	Component           Component         `json:"component" validate:"required"`
	Variable            Variable          `json:"variable" validate:"required"`
	AttributeStatusInfo *StatusInfo       `json:"attributeStatusInfo,omitempty"`
}

// GetBaseReportRequest 设备模型基准报告请求
type GetBaseReportRequest struct {
	RequestId  int        `json:"requestId"`
	ReportBase ReportBase `json:"reportBase" validate:"required"`
}

// GetBaseReportResponse 基准报告受理响应
type GetBaseReportResponse struct {
	Status     GenericDeviceModelStatus `json:"status" validate:"required"`
	StatusInfo *StatusInfo              `json:"statusInfo,omitempty"`
}

// ResetRequest 重置请求，EvseId为空表示整站
type ResetRequest struct {
	Type   ResetType `json:"type" validate:"required"`
	EvseId *int      `json:"evseId,omitempty" validate:"omitempty,min=1"`
}

// ResetResponse 重置响应
type ResetResponse struct {
	Status     ResetStatus `json:"status" validate:"required"`
	StatusInfo *StatusInfo `json:"statusInfo,omitempty"`
}

// RequestStartTransactionRequest 远程启动交易请求
type RequestStartTransactionRequest struct {
	EvseId        *int    `json:"evseId,omitempty" validate:"omitempty,min=1"`
	RemoteStartId int     `json:"remoteStartId"`
	IdToken       IdToken `json:"idToken" validate:"required"`
}

// RequestStartTransactionResponse 远程启动交易响应
type RequestStartTransactionResponse struct {
	Status        RequestStartStopStatus `json:"status" validate:"required"`
	TransactionId *string                `json:"transactionId,omitempty" validate:"omitempty,max=36"`
	StatusInfo    *StatusInfo            `json:"statusInfo,omitempty"`
}

// RequestStopTransactionRequest 远程停止交易请求
type RequestStopTransactionRequest struct {
	TransactionId string `json:"transactionId" validate:"required,max=36"`
}

// RequestStopTransactionResponse 远程停止交易响应
type RequestStopTransactionResponse struct {
	Status     RequestStartStopStatus `json:"status" validate:"required"`
	StatusInfo *StatusInfo            `json:"statusInfo,omitempty"`
}

// TriggerMessageRequest 触发消息请求
type TriggerMessageRequest struct {
	RequestedMessage MessageTrigger `json:"requestedMessage" validate:"required"`
	Evse             *EVSE          `json:"evse,omitempty"`
}

// TriggerMessageResponse 触发消息响应
type TriggerMessageResponse struct {
	Status     TriggerMessageStatus `json:"status" validate:"required"`
	StatusInfo *StatusInfo          `json:"statusInfo,omitempty"`
}

// ChangeAvailabilityRequest 改变可用性请求，Evse为空表示整站
type ChangeAvailabilityRequest struct {
	OperationalStatus OperationalStatus `json:"operationalStatus" validate:"required"`
	Evse              *EVSE             `json:"evse,omitempty"`
}

// ChangeAvailabilityResponse 改变可用性响应
type ChangeAvailabilityResponse struct {
	Status     ChangeAvailabilityStatus `json:"status" validate:"required"`
	StatusInfo *StatusInfo              `json:"statusInfo,omitempty"`
}

// ClearCacheRequest 清除授权缓存请求
type ClearCacheRequest struct{}

// ClearCacheResponse 清除授权缓存响应
type ClearCacheResponse struct {
	Status     ClearCacheStatus `json:"status" validate:"required"`
	StatusInfo *StatusInfo      `json:"statusInfo,omitempty"`
}

// DataTransferRequest 数据传输请求
type DataTransferRequest struct {
	VendorId  string      `json:"vendorId" validate:"required,max=255"`
	MessageId *string     `json:"messageId,omitempty" validate:"omitempty,max=50"`
	Data      interface{} `json:"data,omitempty"`
}

// DataTransferResponse 数据传输响应
type DataTransferResponse struct {
	Status     DataTransferStatus `json:"status" validate:"required"`
	StatusInfo *StatusInfo        `json:"statusInfo,omitempty"`
	Data       interface{}        `json:"data,omitempty"`
}

// UnlockConnectorRequest 解锁连接器请求
type UnlockConnectorRequest struct {
	EvseId      int `json:"evseId" validate:"required,min=1"`
	ConnectorId int `json:"connectorId" validate:"required,min=1"`
}

// UnlockConnectorResponse 解锁连接器响应
type UnlockConnectorResponse struct {
	Status     UnlockStatus `json:"status" validate:"required"`
	StatusInfo *StatusInfo  `json:"statusInfo,omitempty"`
}
