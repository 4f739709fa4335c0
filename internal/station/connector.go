package station

import (
	"fmt"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/charging-platform/charge-station-simulator/internal/domain/events"
	"github.com/charging-platform/charge-station-simulator/internal/domain/ocpp16"
	"github.com/charging-platform/charge-station-simulator/internal/domain/ocpp201"
	"github.com/charging-platform/charge-station-simulator/internal/storage"
	"github.com/charging-platform/charge-station-simulator/internal/template"
)

// ConnectorState 连接器细粒度状态。内部统一用1.6词汇，
// 2.0.1上报时折算为粗粒度的五态。
type ConnectorState string

const (
	ConnectorStateAvailable     ConnectorState = "Available"
	ConnectorStatePreparing     ConnectorState = "Preparing"
	ConnectorStateCharging      ConnectorState = "Charging"
	ConnectorStateSuspendedEV   ConnectorState = "SuspendedEV"
	ConnectorStateSuspendedEVSE ConnectorState = "SuspendedEVSE"
	ConnectorStateFinishing     ConnectorState = "Finishing"
	ConnectorStateReserved      ConnectorState = "Reserved"
	ConnectorStateUnavailable   ConnectorState = "Unavailable"
	ConnectorStateFaulted       ConnectorState = "Faulted"
)

// Availability 可用性管理态，ChangeAvailability写入
type Availability string

const (
	AvailabilityOperative   Availability = "Operative"
	AvailabilityInoperative Availability = "Inoperative"
)

// stopCause 停止交易的原因，两个协议版本各取所需
type stopCause struct {
	reason16  ocpp16.Reason
	reason201 ocpp201.StoppedReason
}

var (
	stopCauseLocal          = stopCause{ocpp16.ReasonLocal, ocpp201.StoppedReasonLocal}
	stopCauseRemote         = stopCause{ocpp16.ReasonRemote, ocpp201.StoppedReasonRemote}
	stopCausePowerLoss      = stopCause{ocpp16.ReasonPowerLoss, ocpp201.StoppedReasonPowerLoss}
	stopCauseHardReset      = stopCause{ocpp16.ReasonHardReset, ocpp201.StoppedReasonImmediateReset}
	stopCauseSoftReset      = stopCause{ocpp16.ReasonSoftReset, ocpp201.StoppedReasonImmediateReset}
	stopCauseImmediateReset = stopCause{ocpp16.ReasonHardReset, ocpp201.StoppedReasonImmediateReset}
	stopCauseDeAuthorized   = stopCause{ocpp16.ReasonDeAuthorized, ocpp201.StoppedReasonDeAuthorized}
	stopCauseEVDisconnected = stopCause{ocpp16.ReasonEVDisconnected, ocpp201.StoppedReasonEVDisconnected}
	stopCauseUnlock         = stopCause{ocpp16.ReasonUnlockCommand, ocpp201.StoppedReasonEVDisconnected}
)

// Transaction 连接器上一笔交易的账面数据。
// 1.6的交易号由CSMS在StartTransaction.conf里分配，2.0.1由站点本地生成UUID，
// 两者都折算到字符串ID，1.6另存数值形式。
type Transaction struct {
	ID            string
	ID16          int
	IdTag         string
	StartedAt     time.Time
	MeterStart    float64
	SeqNo         int
	RemoteStartID *int
}

// Connector 单个连接器的运行时状态。所有读写经内部互斥量，
// ATG协程、远程指令处理协程和快照协程并发访问。
type Connector struct {
	mu sync.Mutex

	id     int
	evseID int // 1.6平铺布局时为0

	status       ConnectorState
	notified     ConnectorState // 最近一次StatusNotification上报的状态
	availability Availability

	txActive bool
	tx       Transaction
	stopCh   chan stopCause // 活动交易的停止信号，Begin时创建

	meterWh float64 // 累计电能表读数，交易内单调不减
	seqNo   int     // 2.0.1 TransactionEvent序号水位
}

func newConnector(evseID, id int, initial ConnectorState) *Connector {
	if initial == "" {
		initial = ConnectorStateAvailable
	}
	return &Connector{
		id:           id,
		evseID:       evseID,
		status:       initial,
		availability: AvailabilityOperative,
	}
}

// ID 连接器编号，同EVSE内从1开始
func (c *Connector) ID() int {
	return c.id
}

// EvseID 所属EVSE编号，1.6平铺布局为0
func (c *Connector) EvseID() int {
	return c.evseID
}

// Status 当前状态
func (c *Connector) Status() ConnectorState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// SetStatus 写入新状态，状态未变化时返回false。
// 调用方据此保证每次变化只上报一次StatusNotification。
func (c *Connector) SetStatus(st ConnectorState) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.status == st {
		return false
	}
	c.status = st
	return true
}

// MarkNotified 记录已上报的状态，启动后的全量补报也走这里
func (c *Connector) MarkNotified(st ConnectorState) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.notified = st
}

// Availability 当前可用性管理态
func (c *Connector) Availability() Availability {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.availability
}

// SetAvailability 写入可用性，返回是否变化
func (c *Connector) SetAvailability(a Availability) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.availability == a {
		return false
	}
	c.availability = a
	return true
}

// IsOperative 是否处于可运营态
func (c *Connector) IsOperative() bool {
	return c.Availability() == AvailabilityOperative
}

// Begin 在连接器上开始一笔交易。已有活动交易或不可用时拒绝，
// 保证单连接器同一时刻至多一笔交易。
func (c *Connector) Begin(tx Transaction) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.txActive {
		return fmt.Errorf("connector %d already has active transaction %s", c.id, c.tx.ID)
	}
	if c.availability != AvailabilityOperative {
		return fmt.Errorf("connector %d is inoperative", c.id)
	}
	tx.MeterStart = c.meterWh
	if tx.StartedAt.IsZero() {
		tx.StartedAt = time.Now().UTC()
	}
	c.txActive = true
	c.tx = tx
	c.stopCh = make(chan stopCause, 1)
	return nil
}

// ActiveTransaction 活动交易的副本
func (c *Connector) ActiveTransaction() (Transaction, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.tx, c.txActive
}

// HasTransaction 是否有活动交易
func (c *Connector) HasTransaction() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.txActive
}

// SetTransactionID16 回填CSMS分配的1.6交易号
func (c *Connector) SetTransactionID16(id int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.txActive {
		return
	}
	c.tx.ID16 = id
	c.tx.ID = strconv.Itoa(id)
}

// End 结束活动交易，返回账面数据与停止时读数
func (c *Connector) End() (Transaction, float64, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.txActive {
		return Transaction{}, c.meterWh, false
	}
	tx := c.tx
	c.txActive = false
	c.tx = Transaction{}
	c.stopCh = nil
	return tx, c.meterWh, true
}

// RequestStop 向活动交易发停止信号。无活动交易或已有未消费信号时返回false。
func (c *Connector) RequestStop(cause stopCause) bool {
	c.mu.Lock()
	ch := c.stopCh
	active := c.txActive
	c.mu.Unlock()
	if !active || ch == nil {
		return false
	}
	select {
	case ch <- cause:
		return true
	default:
		return false
	}
}

// stopSignal 活动交易的停止信号通道，交易外为nil
func (c *Connector) stopSignal() <-chan stopCause {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.txActive {
		return nil
	}
	return c.stopCh
}

// AddEnergy 累加电能读数，负增量按0处理以保持单调
func (c *Connector) AddEnergy(wh float64) float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	if wh > 0 {
		c.meterWh += wh
	}
	return c.meterWh
}

// MeterWh 当前累计读数
func (c *Connector) MeterWh() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.meterWh
}

// NextSeqNo 取下一个TransactionEvent序号
func (c *Connector) NextSeqNo() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := c.seqNo
	c.seqNo++
	return n
}

// Snapshot 导出落盘计数
func (c *Connector) Snapshot() storage.ConnectorSnapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return storage.ConnectorSnapshot{
		ID:           c.id,
		EvseID:       c.evseID,
		Availability: string(c.availability),
		MeterWh:      c.meterWh,
		SeqNo:        c.seqNo,
	}
}

// Restore 回填快照计数。声明性字段以模板为准，这里只恢复计数器与可用性。
func (c *Connector) Restore(snap storage.ConnectorSnapshot) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if snap.MeterWh > c.meterWh {
		c.meterWh = snap.MeterWh
	}
	if snap.SeqNo > c.seqNo {
		c.seqNo = snap.SeqNo
	}
	if snap.Availability == string(AvailabilityInoperative) {
		c.availability = AvailabilityInoperative
		c.status = ConnectorStateUnavailable
	}
}

// status201 折算为2.0.1的五态连接器状态
func (c ConnectorState) status201() ocpp201.ConnectorStatus {
	switch c {
	case ConnectorStateAvailable:
		return ocpp201.ConnectorStatusAvailable
	case ConnectorStatePreparing, ConnectorStateCharging,
		ConnectorStateSuspendedEV, ConnectorStateSuspendedEVSE, ConnectorStateFinishing:
		return ocpp201.ConnectorStatusOccupied
	case ConnectorStateReserved:
		return ocpp201.ConnectorStatusReserved
	case ConnectorStateFaulted:
		return ocpp201.ConnectorStatusFaulted
	default:
		return ocpp201.ConnectorStatusUnavailable
	}
}

// status16 1.6状态词汇与内部词汇同形
func (c ConnectorState) status16() ocpp16.ChargePointStatus {
	return ocpp16.ChargePointStatus(c)
}

// eventStatus 折算为事件流的统一词汇
func (c ConnectorState) eventStatus() events.ConnectorStatus {
	switch c {
	case ConnectorStateAvailable:
		return events.ConnectorStatusAvailable
	case ConnectorStatePreparing:
		return events.ConnectorStatusPreparing
	case ConnectorStateCharging:
		return events.ConnectorStatusCharging
	case ConnectorStateSuspendedEV:
		return events.ConnectorStatusSuspendedEV
	case ConnectorStateSuspendedEVSE:
		return events.ConnectorStatusSuspendedEVSE
	case ConnectorStateFinishing:
		return events.ConnectorStatusFinishing
	case ConnectorStateReserved:
		return events.ConnectorStatusReserved
	case ConnectorStateFaulted:
		return events.ConnectorStatusFaulted
	default:
		return events.ConnectorStatusUnavailable
	}
}

// buildConnectors 按模板展开连接器布局。
// 2.0.1优先按Evses分组；1.6或未给出EVSE布局时平铺为evseID=0的1..N。
// 2.0.1无Evses时每个连接器独占一个EVSE，连接器号恒为1。
func buildConnectors(tpl *template.StationTemplate, is201 bool) []*Connector {
	if len(tpl.Evses) > 0 {
		return buildFromEvses(tpl.Evses)
	}

	n := tpl.NumberOfConnectors
	out := make([]*Connector, 0, n)
	if len(tpl.Connectors) > 0 {
		for _, id := range sortedNumericKeys(tpl.Connectors) {
			if id == 0 {
				continue
			}
			ct := tpl.Connectors[strconv.Itoa(id)]
			out = append(out, connectorFromTemplate(ct, id, is201, len(out)+1))
		}
		return out
	}

	for i := 1; i <= n; i++ {
		out = append(out, connectorFromTemplate(template.ConnectorTemplate{}, i, is201, i))
	}
	return out
}

func connectorFromTemplate(ct template.ConnectorTemplate, id int, is201 bool, ordinal int) *Connector {
	evseID := 0
	connectorID := id
	if is201 {
		// 平铺布局折算到EVSE模型：每EVSE一个1号连接器
		evseID = ordinal
		connectorID = 1
	}
	c := newConnector(evseID, connectorID, ConnectorState(ct.Status))
	if Availability(ct.Availability) == AvailabilityInoperative {
		c.availability = AvailabilityInoperative
		c.status = ConnectorStateUnavailable
	}
	return c
}

func buildFromEvses(evses map[string]template.EvseTemplate) []*Connector {
	var out []*Connector
	for _, evseID := range sortedNumericKeysEvse(evses) {
		if evseID == 0 {
			continue
		}
		evse := evses[strconv.Itoa(evseID)]
		for _, connID := range sortedNumericKeys(evse.Connectors) {
			if connID == 0 {
				continue
			}
			ct := evse.Connectors[strconv.Itoa(connID)]
			c := newConnector(evseID, connID, ConnectorState(ct.Status))
			if Availability(ct.Availability) == AvailabilityInoperative {
				c.availability = AvailabilityInoperative
				c.status = ConnectorStateUnavailable
			}
			out = append(out, c)
		}
	}
	return out
}

func sortedNumericKeys(m map[string]template.ConnectorTemplate) []int {
	out := make([]int, 0, len(m))
	for k := range m {
		if id, err := strconv.Atoi(k); err == nil {
			out = append(out, id)
		}
	}
	sort.Ints(out)
	return out
}

func sortedNumericKeysEvse(m map[string]template.EvseTemplate) []int {
	out := make([]int, 0, len(m))
	for k := range m {
		if id, err := strconv.Atoi(k); err == nil {
			out = append(out, id)
		}
	}
	sort.Ints(out)
	return out
}
