package ocpp201

import "reflect"

// requestTypes 站点会收到的CSMS请求的payload类型表
var requestTypes = map[Action]reflect.Type{
	ActionGetVariables:            reflect.TypeOf(GetVariablesRequest{}),
	ActionSetVariables:            reflect.TypeOf(SetVariablesRequest{}),
	ActionGetBaseReport:           reflect.TypeOf(GetBaseReportRequest{}),
	ActionReset:                   reflect.TypeOf(ResetRequest{}),
	ActionRequestStartTransaction: reflect.TypeOf(RequestStartTransactionRequest{}),
	ActionRequestStopTransaction:  reflect.TypeOf(RequestStopTransactionRequest{}),
	ActionTriggerMessage:          reflect.TypeOf(TriggerMessageRequest{}),
	ActionChangeAvailability:      reflect.TypeOf(ChangeAvailabilityRequest{}),
	ActionClearCache:              reflect.TypeOf(ClearCacheRequest{}),
	ActionDataTransfer:            reflect.TypeOf(DataTransferRequest{}),
	ActionUnlockConnector:         reflect.TypeOf(UnlockConnectorRequest{}),
}

// responseTypes 站点发起的请求对应的CSMS响应payload类型表
var responseTypes = map[Action]reflect.Type{
	ActionBootNotification:   reflect.TypeOf(BootNotificationResponse{}),
	ActionHeartbeat:          reflect.TypeOf(HeartbeatResponse{}),
	ActionStatusNotification: reflect.TypeOf(StatusNotificationResponse{}),
	ActionAuthorize:          reflect.TypeOf(AuthorizeResponse{}),
	ActionTransactionEvent:   reflect.TypeOf(TransactionEventResponse{}),
	ActionMeterValues:        reflect.TypeOf(MeterValuesResponse{}),
	ActionNotifyReport:       reflect.TypeOf(NotifyReportResponse{}),
	ActionDataTransfer:       reflect.TypeOf(DataTransferResponse{}),
}

// NewRequestPayload 按动作创建请求payload实例，返回指针供反序列化
func NewRequestPayload(action Action) (interface{}, bool) {
	t, ok := requestTypes[action]
	if !ok {
		return nil, false
	}
	return reflect.New(t).Interface(), true
}

// NewResponsePayload 按动作创建响应payload实例，返回指针供反序列化
func NewResponsePayload(action Action) (interface{}, bool) {
	t, ok := responseTypes[action]
	if !ok {
		return nil, false
	}
	return reflect.New(t).Interface(), true
}

// IsKnownAction 动作是否属于OCPP 2.0.1词汇表
func IsKnownAction(action Action) bool {
	switch action {
	case ActionAuthorize, ActionBootNotification, ActionHeartbeat,
		ActionMeterValues, ActionNotifyReport, ActionStatusNotification,
		ActionTransactionEvent, ActionChangeAvailability, ActionClearCache,
		ActionDataTransfer, ActionGetBaseReport, ActionGetReport,
		ActionGetVariables, ActionRequestStartTransaction,
		ActionRequestStopTransaction, ActionReset, ActionSetChargingProfile,
		ActionSetVariables, ActionTriggerMessage, ActionUnlockConnector:
		return true
	}
	return false
}
