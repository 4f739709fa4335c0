package ocpp16

import "reflect"

// requestTypes 站点会收到的CSMS请求的payload类型表
var requestTypes = map[Action]reflect.Type{
	ActionReset:                  reflect.TypeOf(ResetRequest{}),
	ActionChangeAvailability:     reflect.TypeOf(ChangeAvailabilityRequest{}),
	ActionChangeConfiguration:    reflect.TypeOf(ChangeConfigurationRequest{}),
	ActionGetConfiguration:       reflect.TypeOf(GetConfigurationRequest{}),
	ActionClearCache:             reflect.TypeOf(ClearCacheRequest{}),
	ActionUnlockConnector:        reflect.TypeOf(UnlockConnectorRequest{}),
	ActionRemoteStartTransaction: reflect.TypeOf(RemoteStartTransactionRequest{}),
	ActionRemoteStopTransaction:  reflect.TypeOf(RemoteStopTransactionRequest{}),
	ActionTriggerMessage:         reflect.TypeOf(TriggerMessageRequest{}),
	ActionDataTransfer:           reflect.TypeOf(DataTransferRequest{}),
}

// responseTypes 站点发起的请求对应的CSMS响应payload类型表
var responseTypes = map[Action]reflect.Type{
	ActionBootNotification:   reflect.TypeOf(BootNotificationResponse{}),
	ActionHeartbeat:          reflect.TypeOf(HeartbeatResponse{}),
	ActionStatusNotification: reflect.TypeOf(StatusNotificationResponse{}),
	ActionAuthorize:          reflect.TypeOf(AuthorizeResponse{}),
	ActionStartTransaction:   reflect.TypeOf(StartTransactionResponse{}),
	ActionStopTransaction:    reflect.TypeOf(StopTransactionResponse{}),
	ActionMeterValues:        reflect.TypeOf(MeterValuesResponse{}),
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

// IsKnownAction 动作是否属于OCPP 1.6词汇表
func IsKnownAction(action Action) bool {
	switch action {
	case ActionAuthorize, ActionBootNotification, ActionChangeAvailability,
		ActionChangeConfiguration, ActionClearCache, ActionDataTransfer,
		ActionGetConfiguration, ActionHeartbeat, ActionMeterValues,
		ActionRemoteStartTransaction, ActionRemoteStopTransaction, ActionReset,
		ActionStartTransaction, ActionStatusNotification, ActionStopTransaction,
		ActionUnlockConnector, ActionGetDiagnostics,
		ActionDiagnosticsStatusNotification, ActionFirmwareStatusNotification,
		ActionUpdateFirmware, ActionGetLocalListVersion, ActionSendLocalList,
		ActionCancelReservation, ActionReserveNow, ActionClearChargingProfile,
		ActionGetCompositeSchedule, ActionSetChargingProfile, ActionTriggerMessage:
		return true
	}
	return false
}
