package registry

import (
	"strconv"

	"github.com/charging-platform/charge-station-simulator/internal/domain/ocpp201"
)

// 标准组件名
const (
	ComponentOCPPCommCtrlr    = "OCPPCommCtrlr"
	ComponentTxCtrlr          = "TxCtrlr"
	ComponentAuthCtrlr        = "AuthCtrlr"
	ComponentSampledDataCtrlr = "SampledDataCtrlr"
	ComponentAlignedDataCtrlr = "AlignedDataCtrlr"
	ComponentDeviceDataCtrlr  = "DeviceDataCtrlr"
	ComponentSecurityCtrlr    = "SecurityCtrlr"
	ComponentChargingStation  = "ChargingStation"
	ComponentEVSE             = "EVSE"
	ComponentConnector        = "Connector"
)

// 常用变量名
const (
	VarHeartbeatInterval     = "HeartbeatInterval"
	VarWebSocketPingInterval = "WebSocketPingInterval"
	VarMessageTimeout        = "MessageTimeout"
	VarTxUpdatedInterval     = "TxUpdatedInterval"
	VarTxUpdatedMeasurands   = "TxUpdatedMeasurands"
	VarItemsPerMessage       = "ItemsPerMessage"
	VarBytesPerMessage       = "BytesPerMessage"
	VarAvailabilityState     = "AvailabilityState"
	VarAvailable             = "Available"
	VarAuthorizeRemoteStart  = "AuthorizeRemoteStart"
	VarBasicAuthPassword     = "BasicAuthPassword"
)

// 变量instance名，DeviceDataCtrlr按请求类型区分上限
const (
	InstanceGetReport    = "GetReport"
	InstanceGetVariables = "GetVariables"
)

// measurandValues 采样控制器的可选measurand值域
const measurandValues = "Energy.Active.Import.Register,Power.Active.Import,SoC,Current.Import,Voltage,Frequency"

// availabilityStates 可用性状态值域
const availabilityStates = "Available,Occupied,Reserved,Unavailable,Faulted"

// SeedOptions 标准控制器的初始参数
type SeedOptions struct {
	HeartbeatInterval     int // 秒
	WebSocketPingInterval int // 秒
	MessageTimeout        int // 秒
	TxUpdatedInterval     int // 秒
	EvseCount             int
	ConnectorsPerEvse     int
	ItemsPerMessage       int     // GetBaseReport/GetReport分片大小
	BytesPerMessage       int     // 单条报文字节上限
	MaxPowerW             float64 // EVSE额定功率
	Identity              string  // 站点标识
	BasicAuthPassword     string
}

// DefaultSeedOptions 缺省参数
func DefaultSeedOptions() SeedOptions {
	return SeedOptions{
		HeartbeatInterval:     300,
		WebSocketPingInterval: 30,
		MessageTimeout:        30,
		TxUpdatedInterval:     60,
		EvseCount:             1,
		ConnectorsPerEvse:     1,
		ItemsPerMessage:       100,
		BytesPerMessage:       262144,
		MaxPowerW:             22000,
	}
}

// Seed 安装标准设备模型。模板可在Seed之后Register覆盖单个条目。
func (r *Registry) Seed(opts SeedOptions) {
	if opts.EvseCount <= 0 {
		opts.EvseCount = 1
	}
	if opts.ConnectorsPerEvse <= 0 {
		opts.ConnectorsPerEvse = 1
	}
	if opts.ItemsPerMessage <= 0 {
		opts.ItemsPerMessage = 100
	}
	if opts.BytesPerMessage <= 0 {
		opts.BytesPerMessage = 262144
	}

	// OCPPCommCtrlr
	r.Register(rw(ComponentOCPPCommCtrlr, VarHeartbeatInterval, strconv.Itoa(opts.HeartbeatInterval), ocpp201.DataTypeInteger).withUnit("s").withMin(0))
	r.Register(rw(ComponentOCPPCommCtrlr, VarWebSocketPingInterval, strconv.Itoa(opts.WebSocketPingInterval), ocpp201.DataTypeInteger).withUnit("s").withMin(0))
	r.Register(rw(ComponentOCPPCommCtrlr, VarMessageTimeout, strconv.Itoa(opts.MessageTimeout), ocpp201.DataTypeInteger).withUnit("s").withMin(1))
	r.Register(rw(ComponentOCPPCommCtrlr, "RetryBackOffRepeatTimes", "3", ocpp201.DataTypeInteger).withMin(0))
	r.Register(rw(ComponentOCPPCommCtrlr, "RetryBackOffRandomRange", "5", ocpp201.DataTypeInteger).withUnit("s").withMin(0))
	r.Register(rw(ComponentOCPPCommCtrlr, "RetryBackOffWaitMinimum", "1", ocpp201.DataTypeInteger).withUnit("s").withMin(0))
	r.Register(rw(ComponentOCPPCommCtrlr, "NetworkConnectionProfiles", "1", ocpp201.DataTypeSequenceList).withValues("1,2,3").withReboot())
	r.Register(rw(ComponentOCPPCommCtrlr, "OfflineThreshold", "60", ocpp201.DataTypeInteger).withUnit("s").withMin(0))

	// TxCtrlr
	r.Register(rw(ComponentTxCtrlr, "EVConnectionTimeOut", "120", ocpp201.DataTypeInteger).withUnit("s").withMin(0))
	r.Register(rw(ComponentTxCtrlr, "StopTxOnEVSideDisconnect", "true", ocpp201.DataTypeBoolean))
	r.Register(rw(ComponentTxCtrlr, "StopTxOnInvalidId", "true", ocpp201.DataTypeBoolean))
	r.Register(rw(ComponentTxCtrlr, "TxStartPoint", "PowerPathClosed", ocpp201.DataTypeMemberList).
		withValues("Authorized,DataSigned,EnergyTransfer,EVConnected,ParkingBayOccupancy,PowerPathClosed").withMaxElements(6))
	r.Register(rw(ComponentTxCtrlr, "TxStopPoint", "EVConnected", ocpp201.DataTypeMemberList).
		withValues("Authorized,DataSigned,EnergyTransfer,EVConnected,ParkingBayOccupancy,PowerPathClosed").withMaxElements(6))

	// AuthCtrlr
	r.Register(rw(ComponentAuthCtrlr, "Enabled", "true", ocpp201.DataTypeBoolean))
	r.Register(rw(ComponentAuthCtrlr, VarAuthorizeRemoteStart, "true", ocpp201.DataTypeBoolean))
	r.Register(rw(ComponentAuthCtrlr, "LocalAuthorizeOffline", "true", ocpp201.DataTypeBoolean))
	r.Register(rw(ComponentAuthCtrlr, "LocalPreAuthorize", "false", ocpp201.DataTypeBoolean))

	// SampledDataCtrlr
	r.Register(rw(ComponentSampledDataCtrlr, "Enabled", "true", ocpp201.DataTypeBoolean))
	r.Register(rw(ComponentSampledDataCtrlr, VarTxUpdatedInterval, strconv.Itoa(opts.TxUpdatedInterval), ocpp201.DataTypeInteger).withUnit("s").withMin(0))
	r.Register(rw(ComponentSampledDataCtrlr, VarTxUpdatedMeasurands, "Energy.Active.Import.Register,Power.Active.Import", ocpp201.DataTypeMemberList).
		withValues(measurandValues).withMaxElements(6))
	r.Register(rw(ComponentSampledDataCtrlr, "TxStartedMeasurands", "Energy.Active.Import.Register", ocpp201.DataTypeMemberList).
		withValues(measurandValues).withMaxElements(6))
	r.Register(rw(ComponentSampledDataCtrlr, "TxEndedMeasurands", "Energy.Active.Import.Register", ocpp201.DataTypeMemberList).
		withValues(measurandValues).withMaxElements(6))

	// AlignedDataCtrlr
	r.Register(rw(ComponentAlignedDataCtrlr, "Enabled", "false", ocpp201.DataTypeBoolean))
	r.Register(rw(ComponentAlignedDataCtrlr, "Interval", "900", ocpp201.DataTypeInteger).withUnit("s").withMin(0))
	r.Register(rw(ComponentAlignedDataCtrlr, "Measurands", "Energy.Active.Import.Register", ocpp201.DataTypeMemberList).
		withValues(measurandValues).withMaxElements(6))

	// DeviceDataCtrlr，按请求类型区分上限
	r.Register(ro(ComponentDeviceDataCtrlr, VarItemsPerMessage, strconv.Itoa(opts.ItemsPerMessage), ocpp201.DataTypeInteger).withInstance(InstanceGetReport))
	r.Register(ro(ComponentDeviceDataCtrlr, VarItemsPerMessage, "50", ocpp201.DataTypeInteger).withInstance(InstanceGetVariables))
	r.Register(ro(ComponentDeviceDataCtrlr, VarBytesPerMessage, strconv.Itoa(opts.BytesPerMessage), ocpp201.DataTypeInteger).withInstance(InstanceGetReport))
	r.Register(ro(ComponentDeviceDataCtrlr, VarBytesPerMessage, strconv.Itoa(opts.BytesPerMessage), ocpp201.DataTypeInteger).withInstance(InstanceGetVariables))

	// SecurityCtrlr
	r.Register(wo(ComponentSecurityCtrlr, VarBasicAuthPassword, opts.BasicAuthPassword, ocpp201.DataTypeString))
	r.Register(ro(ComponentSecurityCtrlr, "Identity", opts.Identity, ocpp201.DataTypeString))
	r.Register(rw(ComponentSecurityCtrlr, "OrganizationName", "ChargingPlatform", ocpp201.DataTypeString))
	r.Register(ro(ComponentSecurityCtrlr, "SecurityProfile", "1", ocpp201.DataTypeInteger))

	// ChargingStation
	r.Register(ro(ComponentChargingStation, VarAvailable, "true", ocpp201.DataTypeBoolean).withSummary())
	r.Register(ro(ComponentChargingStation, VarAvailabilityState, "Available", ocpp201.DataTypeOptionList).withValues(availabilityStates).withSummary())
	r.Register(ro(ComponentChargingStation, "SupplyPhases", "3", ocpp201.DataTypeInteger))

	// EVSE与Connector逐个注册
	for e := 1; e <= opts.EvseCount; e++ {
		evse := &ocpp201.EVSE{Id: e}
		r.Register(roAt(ComponentEVSE, evse, VarAvailable, "true", ocpp201.DataTypeBoolean).withSummary())
		r.Register(roAt(ComponentEVSE, evse, VarAvailabilityState, "Available", ocpp201.DataTypeOptionList).withValues(availabilityStates).withSummary())
		r.Register(roAt(ComponentEVSE, evse, "Power", "0", ocpp201.DataTypeDecimal).withUnit("W").withMax(opts.MaxPowerW))
		r.Register(roAt(ComponentEVSE, evse, "SupplyPhases", "3", ocpp201.DataTypeInteger))

		for c := 1; c <= opts.ConnectorsPerEvse; c++ {
			connectorID := c
			connector := &ocpp201.EVSE{Id: e, ConnectorId: &connectorID}
			r.Register(roAt(ComponentConnector, connector, VarAvailable, "true", ocpp201.DataTypeBoolean))
			r.Register(roAt(ComponentConnector, connector, VarAvailabilityState, "Available", ocpp201.DataTypeOptionList).withValues(availabilityStates))
			r.Register(roAt(ComponentConnector, connector, "ConnectorType", "cType2", ocpp201.DataTypeOptionList).withValues("cType2,sType2,cCCS1,cCCS2,cChaoJi"))
		}
	}
}

// 下面是seed专用的条目构造器

func newMeta(component string, evse *ocpp201.EVSE, variable, value string, dataType ocpp201.DataType, mutability ocpp201.Mutability) *VariableMetadata {
	return &VariableMetadata{
		Component:  ocpp201.Component{Name: component, EVSE: evse},
		Variable:   ocpp201.Variable{Name: variable},
		Value:      value,
		Mutability: mutability,
		Persistent: true,
		Characteristics: ocpp201.VariableCharacteristics{
			DataType: dataType,
		},
	}
}

func rw(component, variable, value string, dataType ocpp201.DataType) *VariableMetadata {
	return newMeta(component, nil, variable, value, dataType, ocpp201.MutabilityReadWrite)
}

func ro(component, variable, value string, dataType ocpp201.DataType) *VariableMetadata {
	m := newMeta(component, nil, variable, value, dataType, ocpp201.MutabilityReadOnly)
	m.Constant = false
	return m
}

func wo(component, variable, value string, dataType ocpp201.DataType) *VariableMetadata {
	return newMeta(component, nil, variable, value, dataType, ocpp201.MutabilityWriteOnly)
}

func roAt(component string, evse *ocpp201.EVSE, variable, value string, dataType ocpp201.DataType) *VariableMetadata {
	return newMeta(component, evse, variable, value, dataType, ocpp201.MutabilityReadOnly)
}

func (m *VariableMetadata) withUnit(unit string) *VariableMetadata {
	m.Characteristics.Unit = &unit
	return m
}

func (m *VariableMetadata) withMin(min float64) *VariableMetadata {
	m.Characteristics.MinLimit = &min
	return m
}

func (m *VariableMetadata) withMax(max float64) *VariableMetadata {
	m.Characteristics.MaxLimit = &max
	return m
}

func (m *VariableMetadata) withValues(csv string) *VariableMetadata {
	m.Characteristics.ValuesList = &csv
	return m
}

func (m *VariableMetadata) withMaxElements(n int) *VariableMetadata {
	m.MaxElements = n
	return m
}

func (m *VariableMetadata) withInstance(instance string) *VariableMetadata {
	m.Variable.Instance = &instance
	return m
}

func (m *VariableMetadata) withReboot() *VariableMetadata {
	m.RebootRequired = true
	return m
}

func (m *VariableMetadata) withSummary() *VariableMetadata {
	m.Summary = true
	return m
}
