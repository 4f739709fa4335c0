package events

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBaseEvent_Implementation(t *testing.T) {
	metadata := Metadata{
		Source:          "test-simulator",
		ProtocolVersion: "ocpp1.6",
		MessageID:       stringPtr("test-msg-123"),
	}

	event := NewBaseEvent(EventTypeStationConnected, "CP001", EventSeverityInfo, metadata)

	// 测试基础字段
	assert.NotEmpty(t, event.GetID())
	assert.Equal(t, EventTypeStationConnected, event.GetType())
	assert.Equal(t, "CP001", event.GetStationID())
	assert.Equal(t, EventSeverityInfo, event.GetSeverity())
	assert.Equal(t, metadata, event.GetMetadata())
	assert.WithinDuration(t, time.Now(), event.GetTimestamp(), time.Second)
}

func TestStationConnectedEvent(t *testing.T) {
	stationInfo := StationInfo{
		ID:              "CP001",
		Vendor:          "TestVendor",
		Model:           "TestModel",
		SerialNumber:    stringPtr("SN123456"),
		FirmwareVersion: stringPtr("1.0.0"),
		EvseCount:       2,
		ConnectorCount:  2,
		ProtocolVersion: "ocpp1.6",
		Status:          StationStatusOnline,
		LastSeen:        time.Now().UTC(),
	}

	metadata := Metadata{
		Source:          "test-simulator",
		ProtocolVersion: "ocpp1.6",
	}

	factory := NewEventFactory()
	event := factory.CreateStationConnectedEvent("CP001", stationInfo, metadata)

	// 测试事件属性
	assert.Equal(t, EventTypeStationConnected, event.GetType())
	assert.Equal(t, "CP001", event.GetStationID())
	assert.Equal(t, EventSeverityInfo, event.GetSeverity())

	// 测试载荷
	payload := event.GetPayload()
	assert.Equal(t, stationInfo, payload)

	// 测试JSON序列化
	jsonData, err := event.ToJSON()
	require.NoError(t, err)

	// 测试JSON反序列化
	var decoded StationConnectedEvent
	err = json.Unmarshal(jsonData, &decoded)
	require.NoError(t, err)

	assert.Equal(t, event.GetID(), decoded.GetID())
	assert.Equal(t, event.GetType(), decoded.GetType())
	assert.Equal(t, event.StationInfo.ID, decoded.StationInfo.ID)
	assert.Equal(t, event.StationInfo.Vendor, decoded.StationInfo.Vendor)
}

func TestStationRegisteredEvent(t *testing.T) {
	metadata := Metadata{
		Source:          "test-simulator",
		ProtocolVersion: "ocpp2.0.1",
	}

	factory := NewEventFactory()
	event := factory.CreateStationRegisteredEvent("CP001", StationInfo{ID: "CP001", Status: StationStatusRegistered}, 300, metadata)

	assert.Equal(t, EventTypeStationRegistered, event.GetType())
	assert.Equal(t, 300, event.Interval)

	payload := event.GetPayload()
	payloadMap, ok := payload.(map[string]interface{})
	require.True(t, ok)
	assert.Contains(t, payloadMap, "station_info")
	assert.Contains(t, payloadMap, "interval")
}

func TestConnectorStatusChangedEvent(t *testing.T) {
	connectorInfo := ConnectorInfo{
		EvseID:      1,
		ConnectorID: 1,
		StationID:   "CP001",
		Status:      ConnectorStatusCharging,
	}

	metadata := Metadata{
		Source:          "test-simulator",
		ProtocolVersion: "ocpp1.6",
		CorrelationID:   stringPtr("corr-123"),
	}

	factory := NewEventFactory()
	event := factory.CreateConnectorStatusChangedEvent("CP001", connectorInfo, ConnectorStatusAvailable, metadata)

	// 测试事件属性
	assert.Equal(t, EventTypeConnectorStatusChanged, event.GetType())
	assert.Equal(t, "CP001", event.GetStationID())
	assert.Equal(t, ConnectorStatusAvailable, event.PreviousStatus)

	// 测试载荷
	payload := event.GetPayload()
	payloadMap, ok := payload.(map[string]interface{})
	require.True(t, ok)
	assert.Contains(t, payloadMap, "connector_info")
	assert.Contains(t, payloadMap, "previous_status")

	// 测试JSON序列化
	jsonData, err := event.ToJSON()
	require.NoError(t, err)
	assert.Contains(t, string(jsonData), "connector_info")
	assert.Contains(t, string(jsonData), "previous_status")
}

func TestTransactionStartedEvent(t *testing.T) {
	transactionInfo := TransactionInfo{
		ID:          "5e1c7c9e-0bc0-4c6a-a009-b86c3b1d9f41",
		StationID:   "CP001",
		EvseID:      1,
		ConnectorID: 1,
		IdTag:       "RFID123456",
		Status:      TransactionStatusActive,
		StartTime:   time.Now().UTC(),
		MeterStart:  1000,
	}

	authInfo := AuthorizationInfo{
		IdTag:      "RFID123456",
		Result:     AuthorizationResultAccepted,
		ExpiryDate: timePtr(time.Now().Add(24 * time.Hour)),
	}

	metadata := Metadata{
		Source:          "test-simulator",
		ProtocolVersion: "ocpp2.0.1",
	}

	factory := NewEventFactory()
	event := factory.CreateTransactionStartedEvent("CP001", transactionInfo, authInfo, metadata)

	// 测试事件属性
	assert.Equal(t, EventTypeTransactionStarted, event.GetType())
	assert.Equal(t, "CP001", event.GetStationID())

	// 测试载荷
	payload := event.GetPayload()
	payloadMap, ok := payload.(map[string]interface{})
	require.True(t, ok)
	assert.Contains(t, payloadMap, "transaction_info")
	assert.Contains(t, payloadMap, "authorization_info")

	// 测试JSON序列化
	jsonData, err := event.ToJSON()
	require.NoError(t, err)

	// 验证JSON结构
	var decoded map[string]interface{}
	err = json.Unmarshal(jsonData, &decoded)
	require.NoError(t, err)
	assert.Contains(t, decoded, "transaction_info")
	assert.Contains(t, decoded, "authorization_info")
}

func TestTransactionStoppedEvent(t *testing.T) {
	stopReason := "Local"
	meterStop := 4523
	endTime := time.Now().UTC()
	transactionInfo := TransactionInfo{
		ID:          "42",
		StationID:   "CP001",
		EvseID:      1,
		ConnectorID: 1,
		IdTag:       "RFID123456",
		Status:      TransactionStatusStopped,
		StartTime:   endTime.Add(-10 * time.Minute),
		EndTime:     &endTime,
		MeterStart:  1000,
		MeterStop:   &meterStop,
		StopReason:  &stopReason,
	}

	samples := []MeterValueSample{
		{
			Measurand: "Energy.Active.Import.Register",
			Value:     4523,
			Unit:      stringPtr("Wh"),
			Timestamp: endTime,
		},
	}

	factory := NewEventFactory()
	event := factory.CreateTransactionStoppedEvent("CP001", transactionInfo, samples, Metadata{Source: "test-simulator", ProtocolVersion: "ocpp1.6"})

	assert.Equal(t, EventTypeTransactionStopped, event.GetType())
	assert.Equal(t, "42", event.TransactionInfo.ID)
	require.NotNil(t, event.TransactionInfo.MeterStop)
	assert.Equal(t, 4523, *event.TransactionInfo.MeterStop)

	jsonData, err := event.ToJSON()
	require.NoError(t, err)
	assert.Contains(t, string(jsonData), "meter_values")
	assert.Contains(t, string(jsonData), "stop_reason")
}

func TestMeterValuesSampledEvent(t *testing.T) {
	meterValues := []MeterValueSample{
		{
			Measurand: "Energy.Active.Import.Register",
			Value:     1234.56,
			Unit:      stringPtr("Wh"),
			Timestamp: time.Now().UTC(),
		},
		{
			Measurand: "Power.Active.Import",
			Value:     7200,
			Unit:      stringPtr("W"),
			Phase:     stringPtr("L1"),
			Timestamp: time.Now().UTC(),
		},
	}

	metadata := Metadata{
		Source:          "test-simulator",
		ProtocolVersion: "ocpp1.6",
	}

	event := &MeterValuesSampledEvent{
		BaseEvent:     NewBaseEvent(EventTypeMeterValuesSampled, "CP001", EventSeverityInfo, metadata),
		EvseID:        1,
		ConnectorID:   1,
		TransactionID: stringPtr("12345"),
		MeterValues:   meterValues,
	}

	// 测试事件属性
	assert.Equal(t, EventTypeMeterValuesSampled, event.GetType())
	assert.Equal(t, "CP001", event.GetStationID())
	assert.Equal(t, 1, event.ConnectorID)
	assert.Equal(t, "12345", *event.TransactionID)

	// 测试载荷
	payload := event.GetPayload()
	payloadMap, ok := payload.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, 1, payloadMap["connector_id"])
	assert.Len(t, payloadMap["meter_values"], 2)

	// 测试JSON序列化
	jsonData, err := event.ToJSON()
	require.NoError(t, err)
	assert.Contains(t, string(jsonData), "meter_values")
}

func TestCommandEvents(t *testing.T) {
	metadata := Metadata{
		Source:          "test-simulator",
		ProtocolVersion: "ocpp2.0.1",
		MessageID:       stringPtr("msg-7"),
	}

	command := RemoteCommand{
		ID:         "cmd-1",
		StationID:  "CP001",
		Action:     "Reset",
		Status:     CommandStatusPending,
		Parameters: map[string]interface{}{"type": "OnIdle"},
		ReceivedAt: time.Now().UTC(),
	}

	factory := NewEventFactory()

	received := factory.CreateCommandReceivedEvent("CP001", command, metadata)
	assert.Equal(t, EventTypeCommandReceived, received.GetType())
	assert.Equal(t, EventSeverityInfo, received.GetSeverity())

	command.Status = CommandStatusFailed
	executed := factory.CreateCommandExecutedEvent("CP001", command, metadata)
	assert.Equal(t, EventTypeCommandExecuted, executed.GetType())
	// 执行失败的指令升级为error级
	assert.Equal(t, EventSeverityError, executed.GetSeverity())

	jsonData, err := executed.ToJSON()
	require.NoError(t, err)
	assert.Contains(t, string(jsonData), `"action":"Reset"`)
}

func TestProtocolErrorEvent(t *testing.T) {
	errorInfo := ErrorInfo{
		Code:        ErrorCodeProtocolError,
		Description: "Invalid message format",
		Details: map[string]interface{}{
			"field":    "messageTypeId",
			"expected": "2, 3, or 4",
			"actual":   "5",
		},
		Timestamp: time.Now().UTC(),
	}

	originalMessage := map[string]interface{}{
		"messageTypeId": 5,
		"messageId":     "invalid-msg",
	}

	metadata := Metadata{
		Source:          "test-simulator",
		ProtocolVersion: "ocpp1.6",
		MessageID:       stringPtr("invalid-msg"),
	}

	factory := NewEventFactory()
	event := factory.CreateProtocolErrorEvent("CP001", errorInfo, originalMessage, metadata)

	// 测试事件属性
	assert.Equal(t, EventTypeProtocolError, event.GetType())
	assert.Equal(t, "CP001", event.GetStationID())
	assert.Equal(t, EventSeverityError, event.GetSeverity())

	// 测试载荷
	payload := event.GetPayload()
	payloadMap, ok := payload.(map[string]interface{})
	require.True(t, ok)
	assert.Contains(t, payloadMap, "error_info")
	assert.Contains(t, payloadMap, "original_message")

	// 测试JSON序列化
	jsonData, err := event.ToJSON()
	require.NoError(t, err)
	assert.Contains(t, string(jsonData), "error_info")
	assert.Contains(t, string(jsonData), "original_message")
}

func TestEventInterface(t *testing.T) {
	// 测试所有事件类型都实现了Event接口
	var events []Event

	metadata := Metadata{
		Source:          "test-simulator",
		ProtocolVersion: "ocpp1.6",
	}

	factory := NewEventFactory()

	// 添加各种事件类型
	events = append(events, factory.CreateStationConnectedEvent("CP001", StationInfo{}, metadata))
	events = append(events, factory.CreateStationDisconnectedEvent("CP001", "read error", metadata))
	events = append(events, factory.CreateStationRegisteredEvent("CP001", StationInfo{}, 300, metadata))
	events = append(events, factory.CreateStationRejectedEvent("CP001", 60, metadata))
	events = append(events, factory.CreateConnectorStatusChangedEvent("CP001", ConnectorInfo{}, ConnectorStatusAvailable, metadata))
	events = append(events, factory.CreateTransactionStartedEvent("CP001", TransactionInfo{}, AuthorizationInfo{}, metadata))
	events = append(events, factory.CreateTransactionStoppedEvent("CP001", TransactionInfo{}, nil, metadata))
	events = append(events, factory.CreateCommandReceivedEvent("CP001", RemoteCommand{}, metadata))
	events = append(events, factory.CreateConfigurationChangedEvent("CP001", "OCPPCommCtrlr", "HeartbeatInterval", "60", "Accepted", metadata))
	events = append(events, factory.CreateProtocolErrorEvent("CP001", ErrorInfo{}, nil, metadata))
	events = append(events, factory.CreateCallTimeoutEvent("CP001", "Heartbeat", "msg-1", metadata))

	// 测试接口方法
	for i, event := range events {
		t.Run(string(event.GetType()), func(t *testing.T) {
			assert.NotEmpty(t, event.GetID(), "Event %d should have ID", i)
			assert.NotEmpty(t, event.GetType(), "Event %d should have type", i)
			assert.Equal(t, "CP001", event.GetStationID(), "Event %d should have station ID", i)
			assert.WithinDuration(t, time.Now(), event.GetTimestamp(), time.Second, "Event %d should have recent timestamp", i)
			assert.NotEmpty(t, event.GetSeverity(), "Event %d should have severity", i)

			// 测试JSON序列化
			jsonData, err := event.ToJSON()
			assert.NoError(t, err, "Event %d should serialize to JSON", i)
			assert.NotEmpty(t, jsonData, "Event %d JSON should not be empty", i)

			// 验证JSON是有效的
			var decoded map[string]interface{}
			err = json.Unmarshal(jsonData, &decoded)
			assert.NoError(t, err, "Event %d JSON should be valid", i)
		})
	}
}

func TestEventTypes(t *testing.T) {
	// 测试所有事件类型常量
	eventTypes := []EventType{
		EventTypeStationConnected,
		EventTypeStationDisconnected,
		EventTypeStationRegistered,
		EventTypeStationPending,
		EventTypeStationRejected,
		EventTypeConnectorStatusChanged,
		EventTypeTransactionStarted,
		EventTypeTransactionStopped,
		EventTypeMeterValuesSampled,
		EventTypeCommandReceived,
		EventTypeCommandExecuted,
		EventTypeProtocolError,
		EventTypeCallTimeout,
	}

	for _, eventType := range eventTypes {
		assert.NotEmpty(t, string(eventType), "Event type should not be empty")
		assert.Contains(t, string(eventType), ".", "Event type should contain namespace separator")
	}
}

// 辅助函数
func stringPtr(s string) *string {
	return &s
}

func timePtr(t time.Time) *time.Time {
	return &t
}
