package station

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/charging-platform/charge-station-simulator/internal/config"
	"github.com/charging-platform/charge-station-simulator/internal/domain/ocpp16"
	"github.com/charging-platform/charge-station-simulator/internal/domain/ocpp201"
	"github.com/charging-platform/charge-station-simulator/internal/domain/serialization"
	"github.com/charging-platform/charge-station-simulator/internal/logger"
	"github.com/charging-platform/charge-station-simulator/internal/registry"
	"github.com/charging-platform/charge-station-simulator/internal/template"
)

// commandStation 构造不连网的站点，测试直接调用命令处理函数。
// 处理函数派生的协程在nil客户端上发送会以未连接错误安全收场。
func commandStation(t *testing.T, version string, mutate func(*template.StationTemplate)) *Station {
	t.Helper()

	tpl := &template.StationTemplate{
		BaseName:           "CMD",
		ChargePointModel:   "SIM-75kW",
		ChargePointVendor:  "ChargingPlatform",
		OCPPVersion:        version,
		NumberOfConnectors: 2,
	}
	if mutate != nil {
		mutate(tpl)
	}

	log, err := logger.New(&logger.Config{Level: "error", Format: "json", Output: "stderr"})
	require.NoError(t, err)

	s, err := New(Options{
		Index:    1,
		Template: tpl,
		CSMS:     config.CSMSConfig{URL: "ws://localhost:9"},
		Log:      log,
	})
	require.NoError(t, err)
	return s
}

// commandFrame 手工构造一条CSMS下行Call帧
func commandFrame(t *testing.T, action string, payload interface{}) *serialization.Frame {
	t.Helper()
	raw, err := json.Marshal(payload)
	require.NoError(t, err)
	return &serialization.Frame{
		MessageType: serialization.MessageTypeCall,
		MessageID:   "csms-1",
		Action:      action,
		Payload:     raw,
	}
}

func requireCommandError(t *testing.T, err error, code string) {
	t.Helper()
	require.Error(t, err)
	var cmdErr *commandError
	require.ErrorAs(t, err, &cmdErr)
	assert.Equal(t, code, cmdErr.Code)
}

func TestHandleGetConfiguration16(t *testing.T) {
	ctx := context.Background()

	t.Run("不带键名返回全部配置", func(t *testing.T) {
		s := commandStation(t, "1.6", nil)
		resp, err := s.handleGetConfiguration(ctx, commandFrame(t, "GetConfiguration", &ocpp16.GetConfigurationRequest{}))
		require.NoError(t, err)

		out := resp.(*ocpp16.GetConfigurationResponse)
		assert.Len(t, out.ConfigurationKey, s.cfg16.Len())
		assert.Empty(t, out.UnknownKey)
	})

	t.Run("按键名过滤并回报未知键", func(t *testing.T) {
		s := commandStation(t, "1.6", nil)
		req := &ocpp16.GetConfigurationRequest{Key: []string{Key16HeartbeatInterval, "NoSuchKey"}}
		resp, err := s.handleGetConfiguration(ctx, commandFrame(t, "GetConfiguration", req))
		require.NoError(t, err)

		out := resp.(*ocpp16.GetConfigurationResponse)
		require.Len(t, out.ConfigurationKey, 1)
		assert.Equal(t, Key16HeartbeatInterval, out.ConfigurationKey[0].Key)
		require.NotNil(t, out.ConfigurationKey[0].Value)
		assert.Equal(t, "300", *out.ConfigurationKey[0].Value)
		assert.Equal(t, []string{"NoSuchKey"}, out.UnknownKey)
	})
}

func TestHandleChangeConfiguration16(t *testing.T) {
	ctx := context.Background()

	t.Run("心跳间隔写入后立即生效", func(t *testing.T) {
		s := commandStation(t, "1.6", nil)
		req := &ocpp16.ChangeConfigurationRequest{Key: Key16HeartbeatInterval, Value: "42"}
		resp, err := s.handleChangeConfiguration(ctx, commandFrame(t, "ChangeConfiguration", req))
		require.NoError(t, err)

		out := resp.(*ocpp16.ChangeConfigurationResponse)
		assert.Equal(t, ocpp16.ConfigurationStatusAccepted, out.Status)
		assert.Equal(t, 42*time.Second, s.heartbeatInterval())

		select {
		case d := <-s.heartbeatCh:
			assert.Equal(t, 42*time.Second, d)
		default:
			t.Fatal("expected heartbeat reschedule signal")
		}
	})

	t.Run("只读键拒绝写入", func(t *testing.T) {
		s := commandStation(t, "1.6", nil)
		req := &ocpp16.ChangeConfigurationRequest{Key: Key16NumberOfConnectors, Value: "8"}
		resp, err := s.handleChangeConfiguration(ctx, commandFrame(t, "ChangeConfiguration", req))
		require.NoError(t, err)
		assert.Equal(t, ocpp16.ConfigurationStatusRejected, resp.(*ocpp16.ChangeConfigurationResponse).Status)
	})

	t.Run("非法数值拒绝写入", func(t *testing.T) {
		s := commandStation(t, "1.6", nil)
		req := &ocpp16.ChangeConfigurationRequest{Key: Key16MeterValueSampleInterval, Value: "often"}
		resp, err := s.handleChangeConfiguration(ctx, commandFrame(t, "ChangeConfiguration", req))
		require.NoError(t, err)
		assert.Equal(t, ocpp16.ConfigurationStatusRejected, resp.(*ocpp16.ChangeConfigurationResponse).Status)
	})

	t.Run("未知键回报NotSupported", func(t *testing.T) {
		s := commandStation(t, "1.6", nil)
		req := &ocpp16.ChangeConfigurationRequest{Key: "VendorSpecialSauce", Value: "1"}
		resp, err := s.handleChangeConfiguration(ctx, commandFrame(t, "ChangeConfiguration", req))
		require.NoError(t, err)
		assert.Equal(t, ocpp16.ConfigurationStatusNotSupported, resp.(*ocpp16.ChangeConfigurationResponse).Status)
	})

	t.Run("空键名是格式错误", func(t *testing.T) {
		s := commandStation(t, "1.6", nil)
		req := &ocpp16.ChangeConfigurationRequest{Key: "", Value: "1"}
		_, err := s.handleChangeConfiguration(ctx, commandFrame(t, "ChangeConfiguration", req))
		requireCommandError(t, err, serialization.ErrorFormationViolation)
	})
}

func TestHandleReset16(t *testing.T) {
	ctx := context.Background()

	t.Run("软重置受理并标记在途", func(t *testing.T) {
		s := commandStation(t, "1.6", nil)
		resp, err := s.handleReset16(ctx, commandFrame(t, "Reset", &ocpp16.ResetRequest{Type: ocpp16.ResetTypeSoft}))
		require.NoError(t, err)
		assert.Equal(t, ocpp16.ResetStatusAccepted, resp.(*ocpp16.ResetResponse).Status)
		assert.True(t, s.resetInFlight())
	})

	t.Run("重复重置仍然受理", func(t *testing.T) {
		s := commandStation(t, "1.6", nil)
		_, err := s.handleReset16(ctx, commandFrame(t, "Reset", &ocpp16.ResetRequest{Type: ocpp16.ResetTypeSoft}))
		require.NoError(t, err)

		resp, err := s.handleReset16(ctx, commandFrame(t, "Reset", &ocpp16.ResetRequest{Type: ocpp16.ResetTypeHard}))
		require.NoError(t, err)
		assert.Equal(t, ocpp16.ResetStatusAccepted, resp.(*ocpp16.ResetResponse).Status)
	})

	t.Run("未知重置类型是格式错误", func(t *testing.T) {
		s := commandStation(t, "1.6", nil)
		_, err := s.handleReset16(ctx, commandFrame(t, "Reset", &ocpp16.ResetRequest{Type: "Gentle"}))
		requireCommandError(t, err, serialization.ErrorFormationViolation)
	})
}

func TestHandleRemoteStart16(t *testing.T) {
	ctx := context.Background()
	connectorID := func(n int) *int { return &n }

	t.Run("指定空闲连接器受理", func(t *testing.T) {
		s := commandStation(t, "1.6", nil)
		defer s.closeHandlerGate()

		req := &ocpp16.RemoteStartTransactionRequest{ConnectorId: connectorID(1), IdTag: "DRIVER01"}
		resp, err := s.handleRemoteStart16(ctx, commandFrame(t, "RemoteStartTransaction", req))
		require.NoError(t, err)
		assert.Equal(t, ocpp16.RemoteStartStopStatusAccepted, resp.(*ocpp16.RemoteStartTransactionResponse).Status)
	})

	t.Run("未知连接器被拒", func(t *testing.T) {
		s := commandStation(t, "1.6", nil)
		req := &ocpp16.RemoteStartTransactionRequest{ConnectorId: connectorID(9), IdTag: "DRIVER01"}
		resp, err := s.handleRemoteStart16(ctx, commandFrame(t, "RemoteStartTransaction", req))
		require.NoError(t, err)
		assert.Equal(t, ocpp16.RemoteStartStopStatusRejected, resp.(*ocpp16.RemoteStartTransactionResponse).Status)
	})

	t.Run("占用连接器被拒", func(t *testing.T) {
		s := commandStation(t, "1.6", nil)
		c, ok := s.connector16(1)
		require.True(t, ok)
		require.NoError(t, c.Begin(Transaction{ID: "7", ID16: 7, IdTag: "BUSY"}))

		req := &ocpp16.RemoteStartTransactionRequest{ConnectorId: connectorID(1), IdTag: "DRIVER01"}
		resp, err := s.handleRemoteStart16(ctx, commandFrame(t, "RemoteStartTransaction", req))
		require.NoError(t, err)
		assert.Equal(t, ocpp16.RemoteStartStopStatusRejected, resp.(*ocpp16.RemoteStartTransactionResponse).Status)
	})

	t.Run("停运连接器被拒", func(t *testing.T) {
		s := commandStation(t, "1.6", nil)
		c, ok := s.connector16(2)
		require.True(t, ok)
		c.SetAvailability(AvailabilityInoperative)

		req := &ocpp16.RemoteStartTransactionRequest{ConnectorId: connectorID(2), IdTag: "DRIVER01"}
		resp, err := s.handleRemoteStart16(ctx, commandFrame(t, "RemoteStartTransaction", req))
		require.NoError(t, err)
		assert.Equal(t, ocpp16.RemoteStartStopStatusRejected, resp.(*ocpp16.RemoteStartTransactionResponse).Status)
	})

	t.Run("不指定连接器时全部占用被拒", func(t *testing.T) {
		s := commandStation(t, "1.6", nil)
		for _, c := range s.Connectors() {
			require.NoError(t, c.Begin(Transaction{ID: "1", ID16: 1, IdTag: "BUSY"}))
		}
		req := &ocpp16.RemoteStartTransactionRequest{IdTag: "DRIVER01"}
		resp, err := s.handleRemoteStart16(ctx, commandFrame(t, "RemoteStartTransaction", req))
		require.NoError(t, err)
		assert.Equal(t, ocpp16.RemoteStartStopStatusRejected, resp.(*ocpp16.RemoteStartTransactionResponse).Status)
	})

	t.Run("空idTag是格式错误", func(t *testing.T) {
		s := commandStation(t, "1.6", nil)
		req := &ocpp16.RemoteStartTransactionRequest{IdTag: ""}
		_, err := s.handleRemoteStart16(ctx, commandFrame(t, "RemoteStartTransaction", req))
		requireCommandError(t, err, serialization.ErrorFormationViolation)
	})
}

func TestHandleRemoteStop16(t *testing.T) {
	ctx := context.Background()

	t.Run("命中交易号发出停止信号", func(t *testing.T) {
		s := commandStation(t, "1.6", nil)
		c, ok := s.connector16(1)
		require.True(t, ok)
		require.NoError(t, c.Begin(Transaction{IdTag: "DRIVER01"}))
		c.SetTransactionID16(777)

		req := &ocpp16.RemoteStopTransactionRequest{TransactionId: 777}
		resp, err := s.handleRemoteStop16(ctx, commandFrame(t, "RemoteStopTransaction", req))
		require.NoError(t, err)
		assert.Equal(t, ocpp16.RemoteStartStopStatusAccepted, resp.(*ocpp16.RemoteStopTransactionResponse).Status)

		select {
		case cause := <-c.stopSignal():
			assert.Equal(t, stopCauseRemote, cause)
		default:
			t.Fatal("expected a pending stop signal")
		}
	})

	t.Run("未知交易号被拒", func(t *testing.T) {
		s := commandStation(t, "1.6", nil)
		req := &ocpp16.RemoteStopTransactionRequest{TransactionId: 404}
		resp, err := s.handleRemoteStop16(ctx, commandFrame(t, "RemoteStopTransaction", req))
		require.NoError(t, err)
		assert.Equal(t, ocpp16.RemoteStartStopStatusRejected, resp.(*ocpp16.RemoteStopTransactionResponse).Status)
	})

	t.Run("停止信号未消费时重复停止被拒", func(t *testing.T) {
		s := commandStation(t, "1.6", nil)
		c, ok := s.connector16(1)
		require.True(t, ok)
		require.NoError(t, c.Begin(Transaction{IdTag: "DRIVER01"}))
		c.SetTransactionID16(777)

		req := &ocpp16.RemoteStopTransactionRequest{TransactionId: 777}
		_, err := s.handleRemoteStop16(ctx, commandFrame(t, "RemoteStopTransaction", req))
		require.NoError(t, err)

		resp, err := s.handleRemoteStop16(ctx, commandFrame(t, "RemoteStopTransaction", req))
		require.NoError(t, err)
		assert.Equal(t, ocpp16.RemoteStartStopStatusRejected, resp.(*ocpp16.RemoteStopTransactionResponse).Status)
	})
}

func TestHandleTrigger16(t *testing.T) {
	ctx := context.Background()
	connectorID := func(n int) *int { return &n }

	t.Run("未注册时触发Boot唤醒重试循环", func(t *testing.T) {
		s := commandStation(t, "1.6", nil)
		req := &ocpp16.TriggerMessageRequest{RequestedMessage: ocpp16.MessageTriggerBootNotification}
		resp, err := s.handleTrigger16(ctx, commandFrame(t, "TriggerMessage", req))
		require.NoError(t, err)
		assert.Equal(t, ocpp16.TriggerMessageStatusAccepted, resp.(*ocpp16.TriggerMessageResponse).Status)

		select {
		case <-s.bootWakeCh:
		default:
			t.Fatal("expected boot retry wake signal")
		}
	})

	t.Run("触发心跳受理", func(t *testing.T) {
		s := commandStation(t, "1.6", nil)
		defer s.closeHandlerGate()

		req := &ocpp16.TriggerMessageRequest{RequestedMessage: ocpp16.MessageTriggerHeartbeat}
		resp, err := s.handleTrigger16(ctx, commandFrame(t, "TriggerMessage", req))
		require.NoError(t, err)
		assert.Equal(t, ocpp16.TriggerMessageStatusAccepted, resp.(*ocpp16.TriggerMessageResponse).Status)
	})

	t.Run("指向未知连接器的状态触发被拒", func(t *testing.T) {
		s := commandStation(t, "1.6", nil)
		req := &ocpp16.TriggerMessageRequest{
			RequestedMessage: ocpp16.MessageTriggerStatusNotification,
			ConnectorId:      connectorID(9),
		}
		resp, err := s.handleTrigger16(ctx, commandFrame(t, "TriggerMessage", req))
		require.NoError(t, err)
		assert.Equal(t, ocpp16.TriggerMessageStatusRejected, resp.(*ocpp16.TriggerMessageResponse).Status)
	})

	t.Run("触发全部连接器电表上报受理", func(t *testing.T) {
		s := commandStation(t, "1.6", nil)
		defer s.closeHandlerGate()

		req := &ocpp16.TriggerMessageRequest{RequestedMessage: ocpp16.MessageTriggerMeterValues}
		resp, err := s.handleTrigger16(ctx, commandFrame(t, "TriggerMessage", req))
		require.NoError(t, err)
		assert.Equal(t, ocpp16.TriggerMessageStatusAccepted, resp.(*ocpp16.TriggerMessageResponse).Status)
	})

	t.Run("未建模的消息回报NotImplemented", func(t *testing.T) {
		s := commandStation(t, "1.6", nil)
		req := &ocpp16.TriggerMessageRequest{RequestedMessage: ocpp16.MessageTriggerDiagnosticsStatusNotification}
		resp, err := s.handleTrigger16(ctx, commandFrame(t, "TriggerMessage", req))
		require.NoError(t, err)
		assert.Equal(t, ocpp16.TriggerMessageStatusNotImplemented, resp.(*ocpp16.TriggerMessageResponse).Status)
	})

	t.Run("会话收尾后触发被拒", func(t *testing.T) {
		s := commandStation(t, "1.6", nil)
		s.closeHandlerGate()

		req := &ocpp16.TriggerMessageRequest{RequestedMessage: ocpp16.MessageTriggerHeartbeat}
		resp, err := s.handleTrigger16(ctx, commandFrame(t, "TriggerMessage", req))
		require.NoError(t, err)
		assert.Equal(t, ocpp16.TriggerMessageStatusRejected, resp.(*ocpp16.TriggerMessageResponse).Status)
	})
}

func TestHandleChangeAvailability16(t *testing.T) {
	ctx := context.Background()

	t.Run("空闲连接器立即停运", func(t *testing.T) {
		s := commandStation(t, "1.6", nil)
		req := &ocpp16.ChangeAvailabilityRequest{ConnectorId: 1, Type: ocpp16.AvailabilityTypeInoperative}
		resp, err := s.handleChangeAvailability16(ctx, commandFrame(t, "ChangeAvailability", req))
		require.NoError(t, err)
		assert.Equal(t, ocpp16.AvailabilityStatusAccepted, resp.(*ocpp16.ChangeAvailabilityResponse).Status)

		c, _ := s.connector16(1)
		assert.False(t, c.IsOperative())

		// 状态迁移在处理协程外完成，收口后再断言
		s.closeHandlerGate()
		assert.Equal(t, ConnectorStateUnavailable, c.Status())
	})

	t.Run("connectorId为0作用于整站", func(t *testing.T) {
		s := commandStation(t, "1.6", nil)
		req := &ocpp16.ChangeAvailabilityRequest{ConnectorId: 0, Type: ocpp16.AvailabilityTypeInoperative}
		resp, err := s.handleChangeAvailability16(ctx, commandFrame(t, "ChangeAvailability", req))
		require.NoError(t, err)
		assert.Equal(t, ocpp16.AvailabilityStatusAccepted, resp.(*ocpp16.ChangeAvailabilityResponse).Status)

		for _, c := range s.Connectors() {
			assert.False(t, c.IsOperative())
		}
		s.closeHandlerGate()
	})

	t.Run("占用连接器延期到交易结束", func(t *testing.T) {
		s := commandStation(t, "1.6", nil)
		c, ok := s.connector16(1)
		require.True(t, ok)
		require.NoError(t, c.Begin(Transaction{IdTag: "DRIVER01"}))

		req := &ocpp16.ChangeAvailabilityRequest{ConnectorId: 1, Type: ocpp16.AvailabilityTypeInoperative}
		resp, err := s.handleChangeAvailability16(ctx, commandFrame(t, "ChangeAvailability", req))
		require.NoError(t, err)
		assert.Equal(t, ocpp16.AvailabilityStatusScheduled, resp.(*ocpp16.ChangeAvailabilityResponse).Status)

		// 交易不中断，可用性变更挂起
		assert.True(t, c.IsOperative())
		avail, pending := s.takeDeferredAvailability(c)
		require.True(t, pending)
		assert.Equal(t, AvailabilityInoperative, avail)
	})

	t.Run("未知连接器被拒", func(t *testing.T) {
		s := commandStation(t, "1.6", nil)
		req := &ocpp16.ChangeAvailabilityRequest{ConnectorId: 9, Type: ocpp16.AvailabilityTypeOperative}
		resp, err := s.handleChangeAvailability16(ctx, commandFrame(t, "ChangeAvailability", req))
		require.NoError(t, err)
		assert.Equal(t, ocpp16.AvailabilityStatusRejected, resp.(*ocpp16.ChangeAvailabilityResponse).Status)
	})

	t.Run("非法类型是格式错误", func(t *testing.T) {
		s := commandStation(t, "1.6", nil)
		req := &ocpp16.ChangeAvailabilityRequest{ConnectorId: 1, Type: "Sometimes"}
		_, err := s.handleChangeAvailability16(ctx, commandFrame(t, "ChangeAvailability", req))
		requireCommandError(t, err, serialization.ErrorFormationViolation)
	})
}

func TestHandleClearCache16(t *testing.T) {
	ctx := context.Background()

	t.Run("缓存启用时清空受理", func(t *testing.T) {
		s := commandStation(t, "1.6", nil)
		resp, err := s.handleClearCache16(ctx, commandFrame(t, "ClearCache", &ocpp16.ClearCacheRequest{}))
		require.NoError(t, err)
		assert.Equal(t, ocpp16.ClearCacheStatusAccepted, resp.(*ocpp16.ClearCacheResponse).Status)
	})

	t.Run("模板禁用缓存时被拒", func(t *testing.T) {
		disabled := false
		s := commandStation(t, "1.6", func(tpl *template.StationTemplate) {
			tpl.AuthCacheEnabled = &disabled
		})
		resp, err := s.handleClearCache16(ctx, commandFrame(t, "ClearCache", &ocpp16.ClearCacheRequest{}))
		require.NoError(t, err)
		assert.Equal(t, ocpp16.ClearCacheStatusRejected, resp.(*ocpp16.ClearCacheResponse).Status)
	})
}

func TestHandleDataTransfer16(t *testing.T) {
	ctx := context.Background()
	s := commandStation(t, "1.6", nil)

	t.Run("厂商匹配受理", func(t *testing.T) {
		req := &ocpp16.DataTransferRequest{VendorId: "ChargingPlatform"}
		resp, err := s.handleDataTransfer16(ctx, commandFrame(t, "DataTransfer", req))
		require.NoError(t, err)
		assert.Equal(t, ocpp16.DataTransferStatusAccepted, resp.(*ocpp16.DataTransferResponse).Status)
	})

	t.Run("厂商不匹配回报UnknownVendorId", func(t *testing.T) {
		req := &ocpp16.DataTransferRequest{VendorId: "SomeoneElse"}
		resp, err := s.handleDataTransfer16(ctx, commandFrame(t, "DataTransfer", req))
		require.NoError(t, err)
		assert.Equal(t, ocpp16.DataTransferStatusUnknownVendorId, resp.(*ocpp16.DataTransferResponse).Status)
	})
}

func TestHandleUnlock16(t *testing.T) {
	ctx := context.Background()

	t.Run("未知连接器回报NotSupported", func(t *testing.T) {
		s := commandStation(t, "1.6", nil)
		req := &ocpp16.UnlockConnectorRequest{ConnectorId: 9}
		resp, err := s.handleUnlock16(ctx, commandFrame(t, "UnlockConnector", req))
		require.NoError(t, err)
		assert.Equal(t, ocpp16.UnlockStatusNotSupported, resp.(*ocpp16.UnlockConnectorResponse).Status)
	})

	t.Run("空闲连接器直接放缆", func(t *testing.T) {
		s := commandStation(t, "1.6", nil)
		req := &ocpp16.UnlockConnectorRequest{ConnectorId: 1}
		resp, err := s.handleUnlock16(ctx, commandFrame(t, "UnlockConnector", req))
		require.NoError(t, err)
		assert.Equal(t, ocpp16.UnlockStatusUnlocked, resp.(*ocpp16.UnlockConnectorResponse).Status)
	})

	t.Run("解锁先终止进行中的交易", func(t *testing.T) {
		s := commandStation(t, "1.6", nil)
		c, ok := s.connector16(1)
		require.True(t, ok)
		require.NoError(t, c.Begin(Transaction{IdTag: "DRIVER01"}))

		req := &ocpp16.UnlockConnectorRequest{ConnectorId: 1}
		resp, err := s.handleUnlock16(ctx, commandFrame(t, "UnlockConnector", req))
		require.NoError(t, err)
		assert.Equal(t, ocpp16.UnlockStatusUnlocked, resp.(*ocpp16.UnlockConnectorResponse).Status)

		select {
		case cause := <-c.stopSignal():
			assert.Equal(t, stopCauseUnlock, cause)
		default:
			t.Fatal("expected a pending stop signal")
		}
	})
}

func TestHandleGetVariables(t *testing.T) {
	ctx := context.Background()
	attr := func(a ocpp201.AttributeType) *ocpp201.AttributeType { return &a }

	t.Run("逐项回报读取结果", func(t *testing.T) {
		s := commandStation(t, "2.0.1", nil)
		req := &ocpp201.GetVariablesRequest{GetVariableData: []ocpp201.GetVariableData{
			{
				Component: ocpp201.Component{Name: registry.ComponentOCPPCommCtrlr},
				Variable:  ocpp201.Variable{Name: registry.VarHeartbeatInterval},
			},
			{
				Component: ocpp201.Component{Name: "BogusCtrlr"},
				Variable:  ocpp201.Variable{Name: "Anything"},
			},
			{
				Component: ocpp201.Component{Name: registry.ComponentOCPPCommCtrlr},
				Variable:  ocpp201.Variable{Name: "BogusVar"},
			},
			{
				Component: ocpp201.Component{Name: registry.ComponentSecurityCtrlr},
				Variable:  ocpp201.Variable{Name: registry.VarBasicAuthPassword},
			},
			{
				AttributeType: attr(ocpp201.AttributeTypeTarget),
				Component:     ocpp201.Component{Name: registry.ComponentOCPPCommCtrlr},
				Variable:      ocpp201.Variable{Name: registry.VarHeartbeatInterval},
			},
		}}

		resp, err := s.handleGetVariables(ctx, commandFrame(t, "GetVariables", req))
		require.NoError(t, err)
		results := resp.(*ocpp201.GetVariablesResponse).GetVariableResult
		require.Len(t, results, 5)

		assert.Equal(t, ocpp201.GetVariableStatusAccepted, results[0].AttributeStatus)
		require.NotNil(t, results[0].AttributeValue)
		assert.Equal(t, "300", *results[0].AttributeValue)

		assert.Equal(t, ocpp201.GetVariableStatusUnknownComponent, results[1].AttributeStatus)
		assert.Equal(t, ocpp201.GetVariableStatusUnknownVariable, results[2].AttributeStatus)

		// 密码类写专用变量不可读出
		assert.Equal(t, ocpp201.GetVariableStatusRejected, results[3].AttributeStatus)
		assert.Nil(t, results[3].AttributeValue)

		assert.Equal(t, ocpp201.GetVariableStatusNotSupportedAttributeType, results[4].AttributeStatus)
	})

	t.Run("空清单违反出现次数约束", func(t *testing.T) {
		s := commandStation(t, "2.0.1", nil)
		_, err := s.handleGetVariables(ctx, commandFrame(t, "GetVariables", &ocpp201.GetVariablesRequest{}))
		requireCommandError(t, err, serialization.ErrorOccurrenceConstraintViolation)
	})

	t.Run("超过ItemsPerMessage上限被拒", func(t *testing.T) {
		s := commandStation(t, "2.0.1", nil)
		items := make([]ocpp201.GetVariableData, 51)
		for i := range items {
			items[i] = ocpp201.GetVariableData{
				Component: ocpp201.Component{Name: registry.ComponentOCPPCommCtrlr},
				Variable:  ocpp201.Variable{Name: registry.VarHeartbeatInterval},
			}
		}
		req := &ocpp201.GetVariablesRequest{GetVariableData: items}
		_, err := s.handleGetVariables(ctx, commandFrame(t, "GetVariables", req))
		requireCommandError(t, err, serialization.ErrorOccurrenceConstraintViolation)
	})
}

func TestHandleSetVariables(t *testing.T) {
	ctx := context.Background()
	instance := func(name string) *string { return &name }

	t.Run("写入心跳间隔立即生效", func(t *testing.T) {
		s := commandStation(t, "2.0.1", nil)
		req := &ocpp201.SetVariablesRequest{SetVariableData: []ocpp201.SetVariableData{{
			AttributeValue: "120",
			Component:      ocpp201.Component{Name: registry.ComponentOCPPCommCtrlr},
			Variable:       ocpp201.Variable{Name: registry.VarHeartbeatInterval},
		}}}
		resp, err := s.handleSetVariables(ctx, commandFrame(t, "SetVariables", req))
		require.NoError(t, err)

		results := resp.(*ocpp201.SetVariablesResponse).SetVariableResult
		require.Len(t, results, 1)
		assert.Equal(t, ocpp201.SetVariableStatusAccepted, results[0].AttributeStatus)
		assert.Equal(t, 120*time.Second, s.heartbeatInterval())

		select {
		case d := <-s.heartbeatCh:
			assert.Equal(t, 120*time.Second, d)
		default:
			t.Fatal("expected heartbeat reschedule signal")
		}
	})

	t.Run("只读变量拒绝写入", func(t *testing.T) {
		s := commandStation(t, "2.0.1", nil)
		req := &ocpp201.SetVariablesRequest{SetVariableData: []ocpp201.SetVariableData{{
			AttributeValue: "10",
			Component:      ocpp201.Component{Name: registry.ComponentDeviceDataCtrlr},
			Variable:       ocpp201.Variable{Name: registry.VarItemsPerMessage, Instance: instance(registry.InstanceGetVariables)},
		}}}
		resp, err := s.handleSetVariables(ctx, commandFrame(t, "SetVariables", req))
		require.NoError(t, err)
		results := resp.(*ocpp201.SetVariablesResponse).SetVariableResult
		require.Len(t, results, 1)
		assert.Equal(t, ocpp201.SetVariableStatusRejected, results[0].AttributeStatus)
	})

	t.Run("非法取值拒绝写入", func(t *testing.T) {
		s := commandStation(t, "2.0.1", nil)
		req := &ocpp201.SetVariablesRequest{SetVariableData: []ocpp201.SetVariableData{{
			AttributeValue: "soon",
			Component:      ocpp201.Component{Name: registry.ComponentOCPPCommCtrlr},
			Variable:       ocpp201.Variable{Name: registry.VarHeartbeatInterval},
		}}}
		resp, err := s.handleSetVariables(ctx, commandFrame(t, "SetVariables", req))
		require.NoError(t, err)
		results := resp.(*ocpp201.SetVariablesResponse).SetVariableResult
		require.Len(t, results, 1)
		assert.Equal(t, ocpp201.SetVariableStatusRejected, results[0].AttributeStatus)
		assert.Equal(t, 300*time.Second, s.heartbeatInterval())
	})

	t.Run("网络连接配置写入后要求重启", func(t *testing.T) {
		s := commandStation(t, "2.0.1", nil)
		req := &ocpp201.SetVariablesRequest{SetVariableData: []ocpp201.SetVariableData{{
			AttributeValue: "2",
			Component:      ocpp201.Component{Name: registry.ComponentOCPPCommCtrlr},
			Variable:       ocpp201.Variable{Name: "NetworkConnectionProfiles"},
		}}}
		resp, err := s.handleSetVariables(ctx, commandFrame(t, "SetVariables", req))
		require.NoError(t, err)
		results := resp.(*ocpp201.SetVariablesResponse).SetVariableResult
		require.Len(t, results, 1)
		assert.Equal(t, ocpp201.SetVariableStatusRebootRequired, results[0].AttributeStatus)
	})

	t.Run("未知组件与未知变量逐项回报", func(t *testing.T) {
		s := commandStation(t, "2.0.1", nil)
		req := &ocpp201.SetVariablesRequest{SetVariableData: []ocpp201.SetVariableData{
			{
				AttributeValue: "1",
				Component:      ocpp201.Component{Name: "BogusCtrlr"},
				Variable:       ocpp201.Variable{Name: "Anything"},
			},
			{
				AttributeValue: "1",
				Component:      ocpp201.Component{Name: registry.ComponentOCPPCommCtrlr},
				Variable:       ocpp201.Variable{Name: "BogusVar"},
			},
		}}
		resp, err := s.handleSetVariables(ctx, commandFrame(t, "SetVariables", req))
		require.NoError(t, err)
		results := resp.(*ocpp201.SetVariablesResponse).SetVariableResult
		require.Len(t, results, 2)
		assert.Equal(t, ocpp201.SetVariableStatusUnknownComponent, results[0].AttributeStatus)
		assert.Equal(t, ocpp201.SetVariableStatusUnknownVariable, results[1].AttributeStatus)
	})

	t.Run("空清单违反出现次数约束", func(t *testing.T) {
		s := commandStation(t, "2.0.1", nil)
		_, err := s.handleSetVariables(ctx, commandFrame(t, "SetVariables", &ocpp201.SetVariablesRequest{}))
		requireCommandError(t, err, serialization.ErrorOccurrenceConstraintViolation)
	})
}

func TestHandleGetBaseReport(t *testing.T) {
	ctx := context.Background()

	t.Run("标准基准受理并派发上报任务", func(t *testing.T) {
		s := commandStation(t, "2.0.1", nil)
		defer s.closeHandlerGate()

		req := &ocpp201.GetBaseReportRequest{RequestId: 17, ReportBase: ocpp201.ReportBaseFullInventory}
		resp, err := s.handleGetBaseReport(ctx, commandFrame(t, "GetBaseReport", req))
		require.NoError(t, err)
		assert.Equal(t, ocpp201.GenericDeviceModelStatusAccepted, resp.(*ocpp201.GetBaseReportResponse).Status)
	})

	t.Run("未知基准回报NotSupported", func(t *testing.T) {
		s := commandStation(t, "2.0.1", nil)
		req := &ocpp201.GetBaseReportRequest{RequestId: 18, ReportBase: "VendorInventory"}
		resp, err := s.handleGetBaseReport(ctx, commandFrame(t, "GetBaseReport", req))
		require.NoError(t, err)
		assert.Equal(t, ocpp201.GenericDeviceModelStatusNotSupported, resp.(*ocpp201.GetBaseReportResponse).Status)
	})

	t.Run("会话收尾后被拒", func(t *testing.T) {
		s := commandStation(t, "2.0.1", nil)
		s.closeHandlerGate()

		req := &ocpp201.GetBaseReportRequest{RequestId: 19, ReportBase: ocpp201.ReportBaseSummaryInventory}
		resp, err := s.handleGetBaseReport(ctx, commandFrame(t, "GetBaseReport", req))
		require.NoError(t, err)
		assert.Equal(t, ocpp201.GenericDeviceModelStatusRejected, resp.(*ocpp201.GetBaseReportResponse).Status)
	})
}

func TestHandleReset201(t *testing.T) {
	evseID := func(n int) *int { return &n }

	t.Run("立即重置无交易时受理", func(t *testing.T) {
		s := commandStation(t, "2.0.1", nil)
		resp, err := s.handleReset201(context.Background(), commandFrame(t, "Reset", &ocpp201.ResetRequest{Type: ocpp201.ResetTypeImmediate}))
		require.NoError(t, err)
		assert.Equal(t, ocpp201.ResetStatusAccepted, resp.(*ocpp201.ResetResponse).Status)
		assert.True(t, s.resetInFlight())
	})

	t.Run("OnIdle带交易时排期", func(t *testing.T) {
		s := commandStation(t, "2.0.1", nil)
		ctx, cancel := context.WithCancel(context.Background())
		defer func() {
			cancel()
			s.closeHandlerGate()
		}()

		c, ok := s.Connector(1, 1)
		require.True(t, ok)
		require.NoError(t, c.Begin(Transaction{ID: "f6f2e7a0", IdTag: "DRIVER01"}))

		resp, err := s.handleReset201(ctx, commandFrame(t, "Reset", &ocpp201.ResetRequest{Type: ocpp201.ResetTypeOnIdle}))
		require.NoError(t, err)
		assert.Equal(t, ocpp201.ResetStatusScheduled, resp.(*ocpp201.ResetResponse).Status)
		assert.True(t, s.resetInFlight())

		// 排期重置不打断进行中的交易
		assert.True(t, c.HasTransaction())
	})

	t.Run("重置在途时再次请求被拒", func(t *testing.T) {
		s := commandStation(t, "2.0.1", nil)
		_, err := s.handleReset201(context.Background(), commandFrame(t, "Reset", &ocpp201.ResetRequest{Type: ocpp201.ResetTypeImmediate}))
		require.NoError(t, err)

		resp, err := s.handleReset201(context.Background(), commandFrame(t, "Reset", &ocpp201.ResetRequest{Type: ocpp201.ResetTypeImmediate}))
		require.NoError(t, err)
		assert.Equal(t, ocpp201.ResetStatusRejected, resp.(*ocpp201.ResetResponse).Status)
	})

	t.Run("EVSE级立即重置只停该EVSE的交易", func(t *testing.T) {
		s := commandStation(t, "2.0.1", nil)
		c, ok := s.Connector(1, 1)
		require.True(t, ok)
		require.NoError(t, c.Begin(Transaction{ID: "a77b1c02", IdTag: "DRIVER01"}))

		req := &ocpp201.ResetRequest{Type: ocpp201.ResetTypeImmediate, EvseId: evseID(1)}
		resp, err := s.handleReset201(context.Background(), commandFrame(t, "Reset", req))
		require.NoError(t, err)
		assert.Equal(t, ocpp201.ResetStatusAccepted, resp.(*ocpp201.ResetResponse).Status)

		// 不触发整站重启
		assert.False(t, s.resetInFlight())
		select {
		case cause := <-c.stopSignal():
			assert.Equal(t, stopCauseImmediateReset, cause)
		default:
			t.Fatal("expected a pending stop signal")
		}
	})

	t.Run("EVSE级OnIdle带交易时排期", func(t *testing.T) {
		s := commandStation(t, "2.0.1", nil)
		c, ok := s.Connector(2, 1)
		require.True(t, ok)
		require.NoError(t, c.Begin(Transaction{ID: "b2207f1e", IdTag: "DRIVER01"}))

		req := &ocpp201.ResetRequest{Type: ocpp201.ResetTypeOnIdle, EvseId: evseID(2)}
		resp, err := s.handleReset201(context.Background(), commandFrame(t, "Reset", req))
		require.NoError(t, err)
		assert.Equal(t, ocpp201.ResetStatusScheduled, resp.(*ocpp201.ResetResponse).Status)
		assert.True(t, c.HasTransaction())
	})

	t.Run("未知EVSE被拒", func(t *testing.T) {
		s := commandStation(t, "2.0.1", nil)
		req := &ocpp201.ResetRequest{Type: ocpp201.ResetTypeImmediate, EvseId: evseID(9)}
		resp, err := s.handleReset201(context.Background(), commandFrame(t, "Reset", req))
		require.NoError(t, err)
		assert.Equal(t, ocpp201.ResetStatusRejected, resp.(*ocpp201.ResetResponse).Status)
	})

	t.Run("未知重置类型是格式错误", func(t *testing.T) {
		s := commandStation(t, "2.0.1", nil)
		_, err := s.handleReset201(context.Background(), commandFrame(t, "Reset", &ocpp201.ResetRequest{Type: "Eventually"}))
		requireCommandError(t, err, serialization.ErrorFormationViolation)
	})
}

func TestHandleRequestStart201(t *testing.T) {
	ctx := context.Background()
	evseID := func(n int) *int { return &n }

	token := ocpp201.IdToken{IdToken: "DRIVER01", Type: ocpp201.IdTokenTypeISO14443}

	t.Run("不指定EVSE时挑选空闲连接器", func(t *testing.T) {
		s := commandStation(t, "2.0.1", nil)
		defer s.closeHandlerGate()

		req := &ocpp201.RequestStartTransactionRequest{RemoteStartId: 1001, IdToken: token}
		resp, err := s.handleRequestStart(ctx, commandFrame(t, "RequestStartTransaction", req))
		require.NoError(t, err)
		assert.Equal(t, ocpp201.RequestStartStopStatusAccepted, resp.(*ocpp201.RequestStartTransactionResponse).Status)
	})

	t.Run("指定占用EVSE被拒", func(t *testing.T) {
		s := commandStation(t, "2.0.1", nil)
		c, ok := s.Connector(1, 1)
		require.True(t, ok)
		require.NoError(t, c.Begin(Transaction{ID: "busy-1", IdTag: "BUSY"}))

		req := &ocpp201.RequestStartTransactionRequest{EvseId: evseID(1), RemoteStartId: 1002, IdToken: token}
		resp, err := s.handleRequestStart(ctx, commandFrame(t, "RequestStartTransaction", req))
		require.NoError(t, err)
		assert.Equal(t, ocpp201.RequestStartStopStatusRejected, resp.(*ocpp201.RequestStartTransactionResponse).Status)
	})

	t.Run("全部占用时被拒", func(t *testing.T) {
		s := commandStation(t, "2.0.1", nil)
		for _, c := range s.Connectors() {
			require.NoError(t, c.Begin(Transaction{ID: "busy", IdTag: "BUSY"}))
		}
		req := &ocpp201.RequestStartTransactionRequest{RemoteStartId: 1003, IdToken: token}
		resp, err := s.handleRequestStart(ctx, commandFrame(t, "RequestStartTransaction", req))
		require.NoError(t, err)
		assert.Equal(t, ocpp201.RequestStartStopStatusRejected, resp.(*ocpp201.RequestStartTransactionResponse).Status)
	})

	t.Run("空idToken是格式错误", func(t *testing.T) {
		s := commandStation(t, "2.0.1", nil)
		req := &ocpp201.RequestStartTransactionRequest{RemoteStartId: 1004}
		_, err := s.handleRequestStart(ctx, commandFrame(t, "RequestStartTransaction", req))
		requireCommandError(t, err, serialization.ErrorFormationViolation)
	})
}

func TestHandleRequestStop201(t *testing.T) {
	ctx := context.Background()

	t.Run("命中交易标识发出停止信号", func(t *testing.T) {
		s := commandStation(t, "2.0.1", nil)
		c, ok := s.Connector(1, 1)
		require.True(t, ok)
		require.NoError(t, c.Begin(Transaction{ID: "3c1de5b4", IdTag: "DRIVER01"}))

		req := &ocpp201.RequestStopTransactionRequest{TransactionId: "3c1de5b4"}
		resp, err := s.handleRequestStop(ctx, commandFrame(t, "RequestStopTransaction", req))
		require.NoError(t, err)
		assert.Equal(t, ocpp201.RequestStartStopStatusAccepted, resp.(*ocpp201.RequestStopTransactionResponse).Status)

		select {
		case cause := <-c.stopSignal():
			assert.Equal(t, stopCauseRemote, cause)
		default:
			t.Fatal("expected a pending stop signal")
		}
	})

	t.Run("未知交易标识被拒", func(t *testing.T) {
		s := commandStation(t, "2.0.1", nil)
		req := &ocpp201.RequestStopTransactionRequest{TransactionId: "nope"}
		resp, err := s.handleRequestStop(ctx, commandFrame(t, "RequestStopTransaction", req))
		require.NoError(t, err)
		assert.Equal(t, ocpp201.RequestStartStopStatusRejected, resp.(*ocpp201.RequestStopTransactionResponse).Status)
	})
}

func TestHandleTrigger201(t *testing.T) {
	ctx := context.Background()

	t.Run("交易事件触发要求有进行中的交易", func(t *testing.T) {
		s := commandStation(t, "2.0.1", nil)
		req := &ocpp201.TriggerMessageRequest{RequestedMessage: ocpp201.MessageTriggerTransactionEvent}
		resp, err := s.handleTrigger201(ctx, commandFrame(t, "TriggerMessage", req))
		require.NoError(t, err)
		assert.Equal(t, ocpp201.TriggerMessageStatusRejected, resp.(*ocpp201.TriggerMessageResponse).Status)

		c, ok := s.Connector(1, 1)
		require.True(t, ok)
		require.NoError(t, c.Begin(Transaction{ID: "0a194c7d", IdTag: "DRIVER01"}))

		resp, err = s.handleTrigger201(ctx, commandFrame(t, "TriggerMessage", req))
		require.NoError(t, err)
		assert.Equal(t, ocpp201.TriggerMessageStatusAccepted, resp.(*ocpp201.TriggerMessageResponse).Status)
		s.closeHandlerGate()
	})

	t.Run("按EVSE过滤状态上报目标", func(t *testing.T) {
		s := commandStation(t, "2.0.1", nil)
		defer s.closeHandlerGate()

		req := &ocpp201.TriggerMessageRequest{
			RequestedMessage: ocpp201.MessageTriggerStatusNotification,
			Evse:             &ocpp201.EVSE{Id: 1},
		}
		resp, err := s.handleTrigger201(ctx, commandFrame(t, "TriggerMessage", req))
		require.NoError(t, err)
		assert.Equal(t, ocpp201.TriggerMessageStatusAccepted, resp.(*ocpp201.TriggerMessageResponse).Status)

		req = &ocpp201.TriggerMessageRequest{
			RequestedMessage: ocpp201.MessageTriggerStatusNotification,
			Evse:             &ocpp201.EVSE{Id: 9},
		}
		resp, err = s.handleTrigger201(ctx, commandFrame(t, "TriggerMessage", req))
		require.NoError(t, err)
		assert.Equal(t, ocpp201.TriggerMessageStatusRejected, resp.(*ocpp201.TriggerMessageResponse).Status)
	})

	t.Run("未建模的消息回报NotImplemented", func(t *testing.T) {
		s := commandStation(t, "2.0.1", nil)
		req := &ocpp201.TriggerMessageRequest{RequestedMessage: ocpp201.MessageTriggerSignChargingStationCertificate}
		resp, err := s.handleTrigger201(ctx, commandFrame(t, "TriggerMessage", req))
		require.NoError(t, err)
		assert.Equal(t, ocpp201.TriggerMessageStatusNotImplemented, resp.(*ocpp201.TriggerMessageResponse).Status)
	})
}

func TestHandleChangeAvailability201(t *testing.T) {
	ctx := context.Background()

	t.Run("空闲EVSE立即停运", func(t *testing.T) {
		s := commandStation(t, "2.0.1", nil)
		req := &ocpp201.ChangeAvailabilityRequest{
			OperationalStatus: ocpp201.OperationalStatusInoperative,
			Evse:              &ocpp201.EVSE{Id: 1},
		}
		resp, err := s.handleChangeAvailability201(ctx, commandFrame(t, "ChangeAvailability", req))
		require.NoError(t, err)
		assert.Equal(t, ocpp201.ChangeAvailabilityStatusAccepted, resp.(*ocpp201.ChangeAvailabilityResponse).Status)

		c, _ := s.Connector(1, 1)
		assert.False(t, c.IsOperative())
		s.closeHandlerGate()
		assert.Equal(t, ConnectorStateUnavailable, c.Status())
	})

	t.Run("占用连接器延期到交易结束", func(t *testing.T) {
		s := commandStation(t, "2.0.1", nil)
		c, ok := s.Connector(1, 1)
		require.True(t, ok)
		require.NoError(t, c.Begin(Transaction{ID: "51d7a3fc", IdTag: "DRIVER01"}))

		req := &ocpp201.ChangeAvailabilityRequest{OperationalStatus: ocpp201.OperationalStatusInoperative}
		resp, err := s.handleChangeAvailability201(ctx, commandFrame(t, "ChangeAvailability", req))
		require.NoError(t, err)
		assert.Equal(t, ocpp201.ChangeAvailabilityStatusScheduled, resp.(*ocpp201.ChangeAvailabilityResponse).Status)

		avail, pending := s.takeDeferredAvailability(c)
		require.True(t, pending)
		assert.Equal(t, AvailabilityInoperative, avail)
		s.closeHandlerGate()
	})

	t.Run("未知EVSE被拒", func(t *testing.T) {
		s := commandStation(t, "2.0.1", nil)
		req := &ocpp201.ChangeAvailabilityRequest{
			OperationalStatus: ocpp201.OperationalStatusOperative,
			Evse:              &ocpp201.EVSE{Id: 9},
		}
		resp, err := s.handleChangeAvailability201(ctx, commandFrame(t, "ChangeAvailability", req))
		require.NoError(t, err)
		assert.Equal(t, ocpp201.ChangeAvailabilityStatusRejected, resp.(*ocpp201.ChangeAvailabilityResponse).Status)
	})

	t.Run("非法运营状态是格式错误", func(t *testing.T) {
		s := commandStation(t, "2.0.1", nil)
		req := &ocpp201.ChangeAvailabilityRequest{OperationalStatus: "HalfOpen"}
		_, err := s.handleChangeAvailability201(ctx, commandFrame(t, "ChangeAvailability", req))
		requireCommandError(t, err, serialization.ErrorFormationViolation)
	})
}

func TestHandleUnlock201(t *testing.T) {
	ctx := context.Background()

	t.Run("未知连接器回报UnknownConnector", func(t *testing.T) {
		s := commandStation(t, "2.0.1", nil)
		req := &ocpp201.UnlockConnectorRequest{EvseId: 9, ConnectorId: 1}
		resp, err := s.handleUnlock201(ctx, commandFrame(t, "UnlockConnector", req))
		require.NoError(t, err)
		assert.Equal(t, ocpp201.UnlockStatusUnknownConnector, resp.(*ocpp201.UnlockConnectorResponse).Status)
	})

	t.Run("交易进行中不放缆", func(t *testing.T) {
		s := commandStation(t, "2.0.1", nil)
		c, ok := s.Connector(1, 1)
		require.True(t, ok)
		require.NoError(t, c.Begin(Transaction{ID: "77e01ab9", IdTag: "DRIVER01"}))

		req := &ocpp201.UnlockConnectorRequest{EvseId: 1, ConnectorId: 1}
		resp, err := s.handleUnlock201(ctx, commandFrame(t, "UnlockConnector", req))
		require.NoError(t, err)
		assert.Equal(t, ocpp201.UnlockStatusOngoingAuthorizedTransaction, resp.(*ocpp201.UnlockConnectorResponse).Status)
		assert.True(t, c.HasTransaction())
	})

	t.Run("空闲连接器直接放缆", func(t *testing.T) {
		s := commandStation(t, "2.0.1", nil)
		req := &ocpp201.UnlockConnectorRequest{EvseId: 2, ConnectorId: 1}
		resp, err := s.handleUnlock201(ctx, commandFrame(t, "UnlockConnector", req))
		require.NoError(t, err)
		assert.Equal(t, ocpp201.UnlockStatusUnlocked, resp.(*ocpp201.UnlockConnectorResponse).Status)
	})
}

func TestHandleDataTransfer201(t *testing.T) {
	ctx := context.Background()
	s := commandStation(t, "2.0.1", nil)

	t.Run("厂商匹配受理", func(t *testing.T) {
		req := &ocpp201.DataTransferRequest{VendorId: "ChargingPlatform"}
		resp, err := s.handleDataTransfer201(ctx, commandFrame(t, "DataTransfer", req))
		require.NoError(t, err)
		assert.Equal(t, ocpp201.DataTransferStatusAccepted, resp.(*ocpp201.DataTransferResponse).Status)
	})

	t.Run("厂商不匹配回报UnknownVendorId", func(t *testing.T) {
		req := &ocpp201.DataTransferRequest{VendorId: "SomeoneElse"}
		resp, err := s.handleDataTransfer201(ctx, commandFrame(t, "DataTransfer", req))
		require.NoError(t, err)
		assert.Equal(t, ocpp201.DataTransferStatusUnknownVendorId, resp.(*ocpp201.DataTransferResponse).Status)
	})
}
