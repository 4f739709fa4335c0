package ocpp201

import (
	"fmt"
	"time"
)

// Action OCPP 2.0.1 动作类型
type Action string

const (
	// 站点发起
	ActionAuthorize          Action = "Authorize"
	ActionBootNotification   Action = "BootNotification"
	ActionHeartbeat          Action = "Heartbeat"
	ActionMeterValues        Action = "MeterValues"
	ActionNotifyReport       Action = "NotifyReport"
	ActionStatusNotification Action = "StatusNotification"
	ActionTransactionEvent   Action = "TransactionEvent"

	// CSMS发起
	ActionChangeAvailability      Action = "ChangeAvailability"
	ActionClearCache              Action = "ClearCache"
	ActionDataTransfer            Action = "DataTransfer"
	ActionGetBaseReport           Action = "GetBaseReport"
	ActionGetReport               Action = "GetReport"
	ActionGetVariables            Action = "GetVariables"
	ActionRequestStartTransaction Action = "RequestStartTransaction"
	ActionRequestStopTransaction  Action = "RequestStopTransaction"
	ActionReset                   Action = "Reset"
	ActionSetChargingProfile      Action = "SetChargingProfile"
	ActionSetVariables            Action = "SetVariables"
	ActionTriggerMessage          Action = "TriggerMessage"
	ActionUnlockConnector         Action = "UnlockConnector"
)

// BootReason 启动原因
type BootReason string

const (
	BootReasonApplicationReset BootReason = "ApplicationReset"
	BootReasonFirmwareUpdate   BootReason = "FirmwareUpdate"
	BootReasonLocalReset       BootReason = "LocalReset"
	BootReasonPowerUp          BootReason = "PowerUp"
	BootReasonRemoteReset      BootReason = "RemoteReset"
	BootReasonScheduledReset   BootReason = "ScheduledReset"
	BootReasonTriggered        BootReason = "Triggered"
	BootReasonUnknown          BootReason = "Unknown"
	BootReasonWatchdog         BootReason = "Watchdog"
)

// RegistrationStatus BootNotification注册状态
type RegistrationStatus string

const (
	RegistrationStatusAccepted RegistrationStatus = "Accepted"
	RegistrationStatusPending  RegistrationStatus = "Pending"
	RegistrationStatusRejected RegistrationStatus = "Rejected"
)

// ConnectorStatus 连接器状态
type ConnectorStatus string

const (
	ConnectorStatusAvailable   ConnectorStatus = "Available"
	ConnectorStatusOccupied    ConnectorStatus = "Occupied"
	ConnectorStatusReserved    ConnectorStatus = "Reserved"
	ConnectorStatusUnavailable ConnectorStatus = "Unavailable"
	ConnectorStatusFaulted     ConnectorStatus = "Faulted"
)

// OperationalStatus ChangeAvailability目标状态
type OperationalStatus string

const (
	OperationalStatusInoperative OperationalStatus = "Inoperative"
	OperationalStatusOperative   OperationalStatus = "Operative"
)

// TransactionEventType 交易事件类型
type TransactionEventType string

const (
	TransactionEventStarted TransactionEventType = "Started"
	TransactionEventUpdated TransactionEventType = "Updated"
	TransactionEventEnded   TransactionEventType = "Ended"
)

// TriggerReason 交易事件触发原因
type TriggerReason string

const (
	TriggerReasonAuthorized        TriggerReason = "Authorized"
	TriggerReasonCablePluggedIn    TriggerReason = "CablePluggedIn"
	TriggerReasonChargingRateChanged TriggerReason = "ChargingRateChanged"
	TriggerReasonChargingStateChanged TriggerReason = "ChargingStateChanged"
	TriggerReasonDeauthorized      TriggerReason = "Deauthorized"
	TriggerReasonEnergyLimitReached TriggerReason = "EnergyLimitReached"
	TriggerReasonEVCommunicationLost TriggerReason = "EVCommunicationLost"
	TriggerReasonEVConnectTimeout  TriggerReason = "EVConnectTimeout"
	TriggerReasonMeterValueClock   TriggerReason = "MeterValueClock"
	TriggerReasonMeterValuePeriodic TriggerReason = "MeterValuePeriodic"
	TriggerReasonTimeLimitReached  TriggerReason = "TimeLimitReached"
	TriggerReasonTrigger           TriggerReason = "Trigger"
	TriggerReasonUnlockCommand     TriggerReason = "UnlockCommand"
	TriggerReasonStopAuthorized    TriggerReason = "StopAuthorized"
	TriggerReasonEVDeparted        TriggerReason = "EVDeparted"
	TriggerReasonEVDetected        TriggerReason = "EVDetected"
	TriggerReasonRemoteStop        TriggerReason = "RemoteStop"
	TriggerReasonRemoteStart       TriggerReason = "RemoteStart"
	TriggerReasonAbnormalCondition TriggerReason = "AbnormalCondition"
	TriggerReasonSignedDataReceived TriggerReason = "SignedDataReceived"
	TriggerReasonResetCommand      TriggerReason = "ResetCommand"
)

// ChargingState 充电状态
type ChargingState string

const (
	ChargingStateCharging      ChargingState = "Charging"
	ChargingStateEVConnected   ChargingState = "EVConnected"
	ChargingStateSuspendedEV   ChargingState = "SuspendedEV"
	ChargingStateSuspendedEVSE ChargingState = "SuspendedEVSE"
	ChargingStateIdle          ChargingState = "Idle"
)

// StoppedReason 交易结束原因
type StoppedReason string

const (
	StoppedReasonDeAuthorized   StoppedReason = "DeAuthorized"
	StoppedReasonEmergencyStop  StoppedReason = "EmergencyStop"
	StoppedReasonEnergyLimitReached StoppedReason = "EnergyLimitReached"
	StoppedReasonEVDisconnected StoppedReason = "EVDisconnected"
	StoppedReasonGroundFault    StoppedReason = "GroundFault"
	StoppedReasonImmediateReset StoppedReason = "ImmediateReset"
	StoppedReasonLocal          StoppedReason = "Local"
	StoppedReasonLocalOutOfCredit StoppedReason = "LocalOutOfCredit"
	StoppedReasonMasterPass     StoppedReason = "MasterPass"
	StoppedReasonOther          StoppedReason = "Other"
	StoppedReasonOvercurrentFault StoppedReason = "OvercurrentFault"
	StoppedReasonPowerLoss      StoppedReason = "PowerLoss"
	StoppedReasonPowerQuality   StoppedReason = "PowerQuality"
	StoppedReasonReboot         StoppedReason = "Reboot"
	StoppedReasonRemote         StoppedReason = "Remote"
	StoppedReasonSOCLimitReached StoppedReason = "SOCLimitReached"
	StoppedReasonStoppedByEV    StoppedReason = "StoppedByEV"
	StoppedReasonTimeLimitReached StoppedReason = "TimeLimitReached"
	StoppedReasonTimeout        StoppedReason = "Timeout"
)

// IdTokenType 令牌类型
type IdTokenType string

const (
	IdTokenTypeCentral         IdTokenType = "Central"
	IdTokenTypeEMAID           IdTokenType = "eMAID"
	IdTokenTypeISO14443        IdTokenType = "ISO14443"
	IdTokenTypeISO15693        IdTokenType = "ISO15693"
	IdTokenTypeKeyCode         IdTokenType = "KeyCode"
	IdTokenTypeLocal           IdTokenType = "Local"
	IdTokenTypeMacAddress      IdTokenType = "MacAddress"
	IdTokenTypeNoAuthorization IdTokenType = "NoAuthorization"
)

// AuthorizationStatus 授权结果
type AuthorizationStatus string

const (
	AuthorizationStatusAccepted     AuthorizationStatus = "Accepted"
	AuthorizationStatusBlocked      AuthorizationStatus = "Blocked"
	AuthorizationStatusConcurrentTx AuthorizationStatus = "ConcurrentTx"
	AuthorizationStatusExpired      AuthorizationStatus = "Expired"
	AuthorizationStatusInvalid      AuthorizationStatus = "Invalid"
	AuthorizationStatusNoCredit     AuthorizationStatus = "NoCredit"
	AuthorizationStatusNotAllowedTypeEVSE AuthorizationStatus = "NotAllowedTypeEVSE"
	AuthorizationStatusNotAtThisLocation  AuthorizationStatus = "NotAtThisLocation"
	AuthorizationStatusNotAtThisTime      AuthorizationStatus = "NotAtThisTime"
	AuthorizationStatusUnknown      AuthorizationStatus = "Unknown"
)

// ResetType 重置类型
type ResetType string

const (
	ResetTypeImmediate ResetType = "Immediate"
	ResetTypeOnIdle    ResetType = "OnIdle"
)

// ResetStatus 重置结果
type ResetStatus string

const (
	ResetStatusAccepted  ResetStatus = "Accepted"
	ResetStatusRejected  ResetStatus = "Rejected"
	ResetStatusScheduled ResetStatus = "Scheduled"
)

// ReportBase GetBaseReport报告基准
type ReportBase string

const (
	ReportBaseConfigurationInventory ReportBase = "ConfigurationInventory"
	ReportBaseFullInventory          ReportBase = "FullInventory"
	ReportBaseSummaryInventory       ReportBase = "SummaryInventory"
)

// GenericDeviceModelStatus GetBaseReport受理结果
type GenericDeviceModelStatus string

const (
	GenericDeviceModelStatusAccepted       GenericDeviceModelStatus = "Accepted"
	GenericDeviceModelStatusRejected       GenericDeviceModelStatus = "Rejected"
	GenericDeviceModelStatusNotSupported   GenericDeviceModelStatus = "NotSupported"
	GenericDeviceModelStatusEmptyResultSet GenericDeviceModelStatus = "EmptyResultSet"
)

// GetVariableStatus 单项读取结果
type GetVariableStatus string

const (
	GetVariableStatusAccepted         GetVariableStatus = "Accepted"
	GetVariableStatusRejected         GetVariableStatus = "Rejected"
	GetVariableStatusUnknownComponent GetVariableStatus = "UnknownComponent"
	GetVariableStatusUnknownVariable  GetVariableStatus = "UnknownVariable"
	GetVariableStatusNotSupportedAttributeType GetVariableStatus = "NotSupportedAttributeType"
)

// SetVariableStatus 单项写入结果
type SetVariableStatus string

const (
	SetVariableStatusAccepted         SetVariableStatus = "Accepted"
	SetVariableStatusRejected         SetVariableStatus = "Rejected"
	SetVariableStatusUnknownComponent SetVariableStatus = "UnknownComponent"
	SetVariableStatusUnknownVariable  SetVariableStatus = "UnknownVariable"
	SetVariableStatusNotSupportedAttributeType SetVariableStatus = "NotSupportedAttributeType"
	SetVariableStatusRebootRequired   SetVariableStatus = "RebootRequired"
)

// AttributeType 变量属性类型
type AttributeType string

const (
	AttributeTypeActual AttributeType = "Actual"
	AttributeTypeTarget AttributeType = "Target"
	AttributeTypeMinSet AttributeType = "MinSet"
	AttributeTypeMaxSet AttributeType = "MaxSet"
)

// Mutability 变量可变性
type Mutability string

const (
	MutabilityReadOnly  Mutability = "ReadOnly"
	MutabilityWriteOnly Mutability = "WriteOnly"
	MutabilityReadWrite Mutability = "ReadWrite"
)

// DataType 变量数据类型
type DataType string

const (
	DataTypeString       DataType = "string"
	DataTypeDecimal      DataType = "decimal"
	DataTypeInteger      DataType = "integer"
	DataTypeDateTime     DataType = "dateTime"
	DataTypeBoolean      DataType = "boolean"
	DataTypeOptionList   DataType = "OptionList"
	DataTypeSequenceList DataType = "SequenceList"
	DataTypeMemberList   DataType = "MemberList"
)

// MessageTrigger TriggerMessage可触发的消息
type MessageTrigger string

const (
	MessageTriggerBootNotification   MessageTrigger = "BootNotification"
	MessageTriggerHeartbeat          MessageTrigger = "Heartbeat"
	MessageTriggerLogStatusNotification MessageTrigger = "LogStatusNotification"
	MessageTriggerMeterValues        MessageTrigger = "MeterValues"
	MessageTriggerStatusNotification MessageTrigger = "StatusNotification"
	MessageTriggerTransactionEvent   MessageTrigger = "TransactionEvent"
	MessageTriggerSignChargingStationCertificate MessageTrigger = "SignChargingStationCertificate"
)

// TriggerMessageStatus TriggerMessage结果
type TriggerMessageStatus string

const (
	TriggerMessageStatusAccepted       TriggerMessageStatus = "Accepted"
	TriggerMessageStatusRejected       TriggerMessageStatus = "Rejected"
	TriggerMessageStatusNotImplemented TriggerMessageStatus = "NotImplemented"
)

// RequestStartStopStatus 远程启停结果
type RequestStartStopStatus string

const (
	RequestStartStopStatusAccepted RequestStartStopStatus = "Accepted"
	RequestStartStopStatusRejected RequestStartStopStatus = "Rejected"
)

// ChangeAvailabilityStatus 可用性变更结果
type ChangeAvailabilityStatus string

const (
	ChangeAvailabilityStatusAccepted  ChangeAvailabilityStatus = "Accepted"
	ChangeAvailabilityStatusRejected  ChangeAvailabilityStatus = "Rejected"
	ChangeAvailabilityStatusScheduled ChangeAvailabilityStatus = "Scheduled"
)

// ClearCacheStatus 清除缓存结果
type ClearCacheStatus string

const (
	ClearCacheStatusAccepted ClearCacheStatus = "Accepted"
	ClearCacheStatusRejected ClearCacheStatus = "Rejected"
)

// DataTransferStatus 数据传输结果
type DataTransferStatus string

const (
	DataTransferStatusAccepted         DataTransferStatus = "Accepted"
	DataTransferStatusRejected         DataTransferStatus = "Rejected"
	DataTransferStatusUnknownMessageId DataTransferStatus = "UnknownMessageId"
	DataTransferStatusUnknownVendorId  DataTransferStatus = "UnknownVendorId"
)

// UnlockStatus 解锁连接器结果
type UnlockStatus string

const (
	UnlockStatusUnlocked           UnlockStatus = "Unlocked"
	UnlockStatusUnlockFailed       UnlockStatus = "UnlockFailed"
	UnlockStatusOngoingAuthorizedTransaction UnlockStatus = "OngoingAuthorizedTransaction"
	UnlockStatusUnknownConnector   UnlockStatus = "UnknownConnector"
)

// Measurand 测量值类型
type Measurand string

const (
	MeasurandCurrentImport              Measurand = "Current.Import"
	MeasurandCurrentOffered             Measurand = "Current.Offered"
	MeasurandEnergyActiveImportRegister Measurand = "Energy.Active.Import.Register"
	MeasurandPowerActiveImport          Measurand = "Power.Active.Import"
	MeasurandPowerOffered               Measurand = "Power.Offered"
	MeasurandSoC                        Measurand = "SoC"
	MeasurandVoltage                    Measurand = "Voltage"
	MeasurandFrequency                  Measurand = "Frequency"
	MeasurandTemperature                Measurand = "Temperature"
)

// ReadingContext 读数上下文
type ReadingContext string

const (
	ReadingContextSamplePeriodic   ReadingContext = "Sample.Periodic"
	ReadingContextSampleClock      ReadingContext = "Sample.Clock"
	ReadingContextTransactionBegin ReadingContext = "Transaction.Begin"
	ReadingContextTransactionEnd   ReadingContext = "Transaction.End"
	ReadingContextTrigger          ReadingContext = "Trigger"
	ReadingContextOther            ReadingContext = "Other"
)

// Phase 相位
type Phase string

const (
	PhaseL1 Phase = "L1"
	PhaseL2 Phase = "L2"
	PhaseL3 Phase = "L3"
	PhaseN  Phase = "N"
)

// Location 测量位置
type Location string

const (
	LocationBody   Location = "Body"
	LocationCable  Location = "Cable"
	LocationEV     Location = "EV"
	LocationInlet  Location = "Inlet"
	LocationOutlet Location = "Outlet"
)

// DateTime 自定义时间类型，序列化为带毫秒的RFC3339
type DateTime struct {
	time.Time
}

// 2.0.1消息习惯携带毫秒精度时间戳
const dateTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// NewDateTime 由 time.Time 构造 DateTime
func NewDateTime(t time.Time) DateTime {
	return DateTime{Time: t}
}

// Now 当前UTC时间的 DateTime
func Now() DateTime {
	return DateTime{Time: time.Now().UTC()}
}

// MarshalJSON 实现JSON序列化
func (dt DateTime) MarshalJSON() ([]byte, error) {
	return []byte(`"` + dt.Time.Format(dateTimeFormat) + `"`), nil
}

// UnmarshalJSON 实现JSON反序列化
func (dt *DateTime) UnmarshalJSON(data []byte) error {
	str := string(data)
	if str == "null" {
		return nil
	}
	if len(str) < 2 || str[0] != '"' || str[len(str)-1] != '"' {
		return fmt.Errorf("datetime must be a JSON string, got %s", str)
	}
	str = str[1 : len(str)-1]
	t, err := time.Parse(time.RFC3339Nano, str)
	if err != nil {
		t, err = time.Parse(time.RFC3339, str)
		if err != nil {
			return err
		}
	}
	dt.Time = t
	return nil
}

// IdToken 授权令牌
type IdToken struct {
	IdToken        string           `json:"idToken" validate:"required,max=36"`
	Type           IdTokenType      `json:"type" validate:"required"`
	AdditionalInfo []AdditionalInfo `json:"additionalInfo,omitempty"`
}

// AdditionalInfo 令牌附加信息
type AdditionalInfo struct {
	AdditionalIdToken string `json:"additionalIdToken" validate:"required,max=36"`
	Type              string `json:"type" validate:"required,max=50"`
}

// IdTokenInfo 授权结果信息
type IdTokenInfo struct {
	Status              AuthorizationStatus `json:"status" validate:"required"`
	CacheExpiryDateTime *DateTime           `json:"cacheExpiryDateTime,omitempty"`
	ChargingPriority    *int                `json:"chargingPriority,omitempty"`
	GroupIdToken        *IdToken            `json:"groupIdToken,omitempty"`
	PersonalMessage     *MessageContent     `json:"personalMessage,omitempty"`
}

// Valid 令牌当前是否可用于启动交易
func (info *IdTokenInfo) Valid() bool {
	if info == nil {
		return false
	}
	if info.Status != AuthorizationStatusAccepted {
		return false
	}
	if info.CacheExpiryDateTime != nil && info.CacheExpiryDateTime.Before(time.Now()) {
		return false
	}
	return true
}

// MessageContent 显示信息内容
type MessageContent struct {
	Format   string `json:"format" validate:"required"`
	Language string `json:"language,omitempty"`
	Content  string `json:"content" validate:"required,max=512"`
}

// EVSE 供电设备标识
type EVSE struct {
	Id          int  `json:"id" validate:"required,min=1"`
	ConnectorId *int `json:"connectorId,omitempty" validate:"omitempty,min=1"`
}

// Component 设备模型组件
type Component struct {
	Name     string  `json:"name" validate:"required,max=50"`
	Instance *string `json:"instance,omitempty" validate:"omitempty,max=50"`
	EVSE     *EVSE   `json:"evse,omitempty"`
}

// Variable 设备模型变量
type Variable struct {
	Name     string  `json:"name" validate:"required,max=50"`
	Instance *string `json:"instance,omitempty" validate:"omitempty,max=50"`
}

// StatusInfo 状态补充说明
type StatusInfo struct {
	ReasonCode     string  `json:"reasonCode" validate:"required,max=20"`
	AdditionalInfo *string `json:"additionalInfo,omitempty" validate:"omitempty,max=512"`
}

// MeterValue 一次采样的读数集合
type MeterValue struct {
	Timestamp    DateTime       `json:"timestamp" validate:"required"`
	SampledValue []SampledValue `json:"sampledValue" validate:"required,min=1"`
}

// SampledValue 单个采样值，2.0.1中value为数值
type SampledValue struct {
	Value         float64        `json:"value"`
	Context       *ReadingContext `json:"context,omitempty"`
	Measurand     *Measurand      `json:"measurand,omitempty"`
	Phase         *Phase          `json:"phase,omitempty"`
	Location      *Location       `json:"location,omitempty"`
	UnitOfMeasure *UnitOfMeasure  `json:"unitOfMeasure,omitempty"`
}

// UnitOfMeasure 单位与倍率
type UnitOfMeasure struct {
	Unit       string `json:"unit,omitempty"`
	Multiplier int    `json:"multiplier,omitempty"`
}

// VariableAttribute 变量属性
type VariableAttribute struct {
	Type       *AttributeType `json:"type,omitempty"`
	Value      *string        `json:"value,omitempty" validate:"omitempty,max=2500"`
	Mutability *Mutability    `json:"mutability,omitempty"`
	Persistent bool           `json:"persistent,omitempty"`
	Constant   bool           `json:"constant,omitempty"`
}

// VariableCharacteristics 变量特征
type VariableCharacteristics struct {
	Unit               *string  `json:"unit,omitempty" validate:"omitempty,max=16"`
	DataType           DataType `json:"dataType" validate:"required"`
	MinLimit           *float64 `json:"minLimit,omitempty"`
	MaxLimit           *float64 `json:"maxLimit,omitempty"`
	ValuesList         *string  `json:"valuesList,omitempty" validate:"omitempty,max=1000"`
	SupportsMonitoring bool     `json:"supportsMonitoring"`
}

// ReportData NotifyReport中单个变量的报告项
type ReportData struct {
	Component               Component                `json:"component" validate:"required"`
	Variable                Variable                 `json:"variable" validate:"required"`
	VariableAttribute       []VariableAttribute      `json:"variableAttribute" validate:"required,min=1,max=4"`
	VariableCharacteristics *VariableCharacteristics `json:"variableCharacteristics,omitempty"`
}

// Modem 蜂窝模组信息
type Modem struct {
	Iccid *string `json:"iccid,omitempty" validate:"omitempty,max=20"`
	Imsi  *string `json:"imsi,omitempty" validate:"omitempty,max=20"`
}

// ChargingStation BootNotification站点描述
type ChargingStation struct {
	SerialNumber    *string `json:"serialNumber,omitempty" validate:"omitempty,max=25"`
	Model           string  `json:"model" validate:"required,max=20"`
	VendorName      string  `json:"vendorName" validate:"required,max=50"`
	FirmwareVersion *string `json:"firmwareVersion,omitempty" validate:"omitempty,max=50"`
	Modem           *Modem  `json:"modem,omitempty"`
}

// TransactionInfo 交易信息
type TransactionInfo struct {
	TransactionId     string         `json:"transactionId" validate:"required,max=36"`
	ChargingState     *ChargingState `json:"chargingState,omitempty"`
	TimeSpentCharging *int           `json:"timeSpentCharging,omitempty"`
	StoppedReason     *StoppedReason `json:"stoppedReason,omitempty"`
	RemoteStartId     *int           `json:"remoteStartId,omitempty"`
}
