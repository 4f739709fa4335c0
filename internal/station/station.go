package station

import (
	"context"
	cryptorand "crypto/rand"
	"encoding/binary"
	"fmt"
	"math/rand"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charging-platform/charge-station-simulator/internal/cache"
	"github.com/charging-platform/charge-station-simulator/internal/config"
	"github.com/charging-platform/charge-station-simulator/internal/domain/events"
	"github.com/charging-platform/charge-station-simulator/internal/domain/ocpp201"
	"github.com/charging-platform/charge-station-simulator/internal/domain/protocol"
	"github.com/charging-platform/charge-station-simulator/internal/domain/validation"
	"github.com/charging-platform/charge-station-simulator/internal/logger"
	"github.com/charging-platform/charge-station-simulator/internal/registry"
	"github.com/charging-platform/charge-station-simulator/internal/storage"
	"github.com/charging-platform/charge-station-simulator/internal/template"
	"github.com/charging-platform/charge-station-simulator/internal/transport/wsclient"
)

// RegistrationState 站点在CSMS侧的注册状态
type RegistrationState string

const (
	RegistrationBooting  RegistrationState = "Booting"
	RegistrationAccepted RegistrationState = "Accepted"
	RegistrationPending  RegistrationState = "Pending"
	RegistrationRejected RegistrationState = "Rejected"
)

const (
	// defaultHeartbeatSecs BootNotification前的心跳间隔初值
	defaultHeartbeatSecs = 300
	// defaultBootRetrySecs Pending/Rejected且CSMS未给interval时的重试间隔
	defaultBootRetrySecs = 60
	// resetIdlePollInterval OnIdle重置等待交易结束的轮询周期
	resetIdlePollInterval = 5 * time.Second
	// maxInboundBytes 入站单帧字节上限，超限帧只记日志不进解析
	maxInboundBytes = 1024 * 1024 // 1MB
)

// Options 构造一个模拟站点所需的依赖与派生参数
type Options struct {
	// Index 模板内实例序号，从1开始，参与站点命名与hashId派生
	Index    int
	Template *template.StationTemplate

	CSMS   config.CSMSConfig
	IdTags []string

	Log      *logger.Logger
	Store    storage.StationStore
	Events   chan<- events.Event
}

// Station 单个模拟充电站。聚合模板派生信息、按协议版本二选一的
// 配置键表或设备模型、连接器集合、授权缓存与自动交易生成器。
// 实现 worker.Element，由工作协程组托管生命周期。
type Station struct {
	name    string
	hashID  string
	version protocol.Version
	tpl     *template.StationTemplate
	url     string
	csms    config.CSMSConfig

	log       *logger.Logger
	events    *events.EventFactory
	eventCh   chan<- events.Event
	store     storage.StationStore
	validator *validation.Validator

	registry   *registry.Registry // 2.0.1 设备模型
	cfg16      *ConfigStore       // 1.6 配置键表
	connectors []*Connector
	pending    *pendingCalls
	authCache  *cache.AuthorizationCache
	idTags     []string
	atg        *generator

	handlers map[string]handlerFunc

	mu       sync.RWMutex
	client   *wsclient.Client
	regState RegistrationState

	callMu sync.Mutex // 同一时刻最多一个在途请求

	heartbeatCh chan time.Duration // 心跳间隔热更新信号
	hbKickCh    chan struct{}      // 主动请求后顺延心跳
	bootWakeCh  chan struct{}      // TriggerMessage(BootNotification)提前唤醒注册重试
	rebootCh    chan struct{}      // Reset处理器请求拆除当前会话

	// 处理器派生的交易协程，会话拆除前需全部退出
	bgMu     sync.Mutex
	bgWg     sync.WaitGroup
	bgClosed bool

	rngMu sync.Mutex
	rng   *rand.Rand

	txCounter  atomic.Int64
	bootReason atomic.Value // ocpp201.BootReason

	// resetCause 非空表示会话正在因重置而拆除，交易冲账取该原因
	resetMu      sync.Mutex
	resetCause   *stopCause
	resetPending bool

	// pendingAvail ChangeAvailability在交易结束后补生效的目标可用性
	availMu      sync.Mutex
	pendingAvail map[*Connector]Availability

	started  atomic.Bool
	stopOnce sync.Once
	stopCh   chan struct{}
	runDone  chan struct{}
}

// New 按模板与序号构造站点实例，不建立任何网络连接
func New(opts Options) (*Station, error) {
	tpl := opts.Template
	if tpl == nil {
		return nil, fmt.Errorf("station template is required")
	}
	version := tpl.Version()
	if version == "" {
		return nil, fmt.Errorf("unsupported ocpp version %q", tpl.OCPPVersion)
	}
	if opts.Index < 1 {
		return nil, fmt.Errorf("station index must be >= 1, got %d", opts.Index)
	}
	if opts.Log == nil {
		return nil, fmt.Errorf("logger is required")
	}

	name := tpl.StationName(opts.Index)
	base := tpl.SupervisionURL(opts.Index, opts.CSMS.URL)
	if base == "" {
		return nil, fmt.Errorf("no supervision url for station %s", name)
	}

	store := opts.Store
	if store == nil {
		store = storage.NopStore{}
	}
	idTags := opts.IdTags
	if len(idTags) == 0 {
		idTags = []string{template.DefaultIdTag}
	}

	s := &Station{
		name:         name,
		hashID:       tpl.HashID(opts.Index),
		version:      version,
		tpl:          tpl,
		url:          strings.TrimRight(base, "/") + "/" + name,
		csms:         opts.CSMS,
		log:          opts.Log.Station(name),
		events:       events.NewEventFactory(),
		eventCh:      opts.Events,
		store:        store,
		validator:    validation.NewValidator(),
		connectors:   buildConnectors(tpl, version.IsOCPP201()),
		pending:      newPendingCalls(version),
		authCache:    cache.NewAuthorizationCache(cache.DefaultPositiveTTL, cache.DefaultNegativeTTL),
		idTags:       idTags,
		regState:     RegistrationBooting,
		heartbeatCh:  make(chan time.Duration, 1),
		hbKickCh:     make(chan struct{}, 1),
		bootWakeCh:   make(chan struct{}, 1),
		rebootCh:     make(chan struct{}, 1),
		rng:          newSeededRand(),
		pendingAvail: make(map[*Connector]Availability),
		stopCh:       make(chan struct{}),
		runDone:      make(chan struct{}),
	}
	s.bootReason.Store(ocpp201.BootReasonPowerUp)

	pingSecs := int(opts.CSMS.PingInterval / time.Second)
	if version.IsOCPP201() {
		s.seedRegistry(pingSecs)
	} else {
		s.cfg16 = NewConfigStore()
		s.cfg16.Seed(tpl, defaultHeartbeatSecs, pingSecs, opts.CSMS.MessageRetries)
	}

	s.atg = newGenerator(s, tpl.AutomaticTransactionGenerator)
	if version.IsOCPP201() {
		s.handlers = s.handlers201()
	} else {
		s.handlers = s.handlers16()
	}
	return s, nil
}

// seedRegistry 安装标准设备模型并应用模板覆盖
func (s *Station) seedRegistry(pingSecs int) {
	s.registry = registry.NewRegistry()

	evseCount, perEvse := evseLayout(s.connectors)
	msgTimeout := int(s.csms.MessageTimeout / time.Second)
	if msgTimeout <= 0 {
		msgTimeout = 30
	}
	s.registry.Seed(registry.SeedOptions{
		HeartbeatInterval:     defaultHeartbeatSecs,
		WebSocketPingInterval: pingSecs,
		MessageTimeout:        msgTimeout,
		TxUpdatedInterval:     60,
		EvseCount:             evseCount,
		ConnectorsPerEvse:     perEvse,
		ItemsPerMessage:       100,
		BytesPerMessage:       262144,
		MaxPowerW:             s.tpl.PowerW(),
		Identity:              s.name,
		BasicAuthPassword:     s.csms.BasicAuthPassword,
	})

	s.applyTemplateModel()
}

// applyTemplateModel 模板行为开关落到设备模型。快照回填后会再次
// 执行，保证声明性配置始终以模板为准。
func (s *Station) applyTemplateModel() {
	_ = s.registry.SetValue(
		ocpp201.Component{Name: registry.ComponentAuthCtrlr},
		ocpp201.Variable{Name: registry.VarAuthorizeRemoteStart},
		boolValue(s.tpl.IsRemoteAuthorization()),
	)
	_ = s.registry.SetValue(
		ocpp201.Component{Name: registry.ComponentAuthCtrlr},
		ocpp201.Variable{Name: "Enabled"},
		boolValue(s.tpl.IsAuthCacheEnabled()),
	)
}

// evseLayout 连接器集合折算出的EVSE数量与单EVSE最大连接器数
func evseLayout(connectors []*Connector) (int, int) {
	perEvse := make(map[int]int)
	for _, c := range connectors {
		perEvse[c.EvseID()]++
	}
	max := 0
	for _, n := range perEvse {
		if n > max {
			max = n
		}
	}
	if len(perEvse) == 0 {
		return 1, 1
	}
	return len(perEvse), max
}

// newSeededRand 用加密熵播种的伪随机源，避免整批站点行为同步
func newSeededRand() *rand.Rand {
	var seed int64
	if err := binary.Read(cryptorand.Reader, binary.BigEndian, &seed); err != nil {
		seed = time.Now().UnixNano()
	}
	return rand.New(rand.NewSource(seed))
}

// ID 站点标识，实现 worker.Element
func (s *Station) ID() string {
	return s.name
}

// HashID 模板名与序号派生的稳定哈希标识
func (s *Station) HashID() string {
	return s.hashID
}

// Version 协议版本
func (s *Station) Version() protocol.Version {
	return s.version
}

// RegistrationStatus 当前注册状态
func (s *Station) RegistrationStatus() RegistrationState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.regState
}

// IsAccepted 是否已被CSMS接受
func (s *Station) IsAccepted() bool {
	return s.RegistrationStatus() == RegistrationAccepted
}

// Connectors 连接器集合
func (s *Station) Connectors() []*Connector {
	return s.connectors
}

// Connector 按连接器号查找，1.6平铺布局下evseID恒为0
func (s *Station) Connector(evseID, connectorID int) (*Connector, bool) {
	for _, c := range s.connectors {
		if c.EvseID() == evseID && c.ID() == connectorID {
			return c, true
		}
	}
	return nil, false
}

// connector16 1.6按平铺连接器号查找
func (s *Station) connector16(connectorID int) (*Connector, bool) {
	return s.Connector(0, connectorID)
}

// Registry 2.0.1设备模型，1.6站点返回nil
func (s *Station) Registry() *registry.Registry {
	return s.registry
}

// Configuration 1.6配置键表，2.0.1站点返回nil
func (s *Station) Configuration() *ConfigStore {
	return s.cfg16
}

// setRegistration 写注册状态并同步注册状态指标
func (s *Station) setRegistration(state RegistrationState) {
	s.mu.Lock()
	prev := s.regState
	s.regState = state
	s.mu.Unlock()
	if prev == state {
		return
	}
	if gauge, ok := registrationGauge(prev); ok {
		gauge.Dec()
	}
	if gauge, ok := registrationGauge(state); ok {
		gauge.Inc()
	}
}

// currentClient 当前会话的WebSocket连接，未连接时为nil
func (s *Station) currentClient() *wsclient.Client {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.client
}

func (s *Station) setClient(c *wsclient.Client) {
	s.mu.Lock()
	s.client = c
	s.mu.Unlock()
}

// sendQueueLen 出站队列当前深度，未连接时视为空
func (s *Station) sendQueueLen() int {
	if client := s.currentClient(); client != nil {
		return client.QueueLen()
	}
	return 0
}

// heartbeatInterval 当前生效的心跳间隔，按版本从配置键表或设备模型读取
func (s *Station) heartbeatInterval() time.Duration {
	secs := defaultHeartbeatSecs
	if s.version.IsOCPP201() {
		if raw, ok := s.registry.Value(
			ocpp201.Component{Name: registry.ComponentOCPPCommCtrlr},
			ocpp201.Variable{Name: registry.VarHeartbeatInterval},
		); ok {
			if n, err := strconv.Atoi(raw); err == nil && n > 0 {
				secs = n
			}
		}
	} else if raw, ok := s.cfg16.Value(Key16HeartbeatInterval); ok {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			secs = n
		}
	}
	return time.Duration(secs) * time.Second
}

// applyHeartbeatInterval 写入新的心跳间隔并通知心跳循环立即重排
func (s *Station) applyHeartbeatInterval(secs int) {
	if secs <= 0 {
		return
	}
	if s.version.IsOCPP201() {
		_ = s.registry.SetValue(
			ocpp201.Component{Name: registry.ComponentOCPPCommCtrlr},
			ocpp201.Variable{Name: registry.VarHeartbeatInterval},
			strconv.Itoa(secs),
		)
	} else {
		s.cfg16.Set(Key16HeartbeatInterval, strconv.Itoa(secs))
	}

	d := time.Duration(secs) * time.Second
	// 只保留最新的心跳重排信号
	select {
	case <-s.heartbeatCh:
	default:
	}
	select {
	case s.heartbeatCh <- d:
	default:
	}
}

// applyPingInterval 把新的ping周期推给当前连接。存储值重连时经
// pingInterval再次生效，断线期间的写入不会丢。
func (s *Station) applyPingInterval(secs int) {
	if secs < 0 {
		return
	}
	if client := s.currentClient(); client != nil {
		client.SetPingInterval(time.Duration(secs) * time.Second)
	}
}

// pingInterval 拨号用的ping周期：键表/设备模型的WebSocketPingInterval
// 优先，缺失或非法时回退CSMS连接配置
func (s *Station) pingInterval() time.Duration {
	var raw string
	var ok bool
	if s.version.IsOCPP201() {
		raw, ok = s.registry.Value(
			ocpp201.Component{Name: registry.ComponentOCPPCommCtrlr},
			ocpp201.Variable{Name: registry.VarWebSocketPingInterval},
		)
	} else {
		raw, ok = s.cfg16.Value(Key16WebSocketPingInterval)
	}
	if ok {
		if n, err := strconv.Atoi(raw); err == nil && n >= 0 {
			return time.Duration(n) * time.Second
		}
	}
	return s.csms.PingInterval
}

// sampleInterval 交易内电表采样间隔
func (s *Station) sampleInterval() time.Duration {
	secs := 60
	if s.version.IsOCPP201() {
		if raw, ok := s.registry.Value(
			ocpp201.Component{Name: registry.ComponentSampledDataCtrlr},
			ocpp201.Variable{Name: registry.VarTxUpdatedInterval},
		); ok {
			if n, err := strconv.Atoi(raw); err == nil && n > 0 {
				secs = n
			}
		}
	} else if raw, ok := s.cfg16.Value(Key16MeterValueSampleInterval); ok {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			secs = n
		}
	}
	return time.Duration(secs) * time.Second
}

// sampledMeasurands 交易内采样的measurand列表
func (s *Station) sampledMeasurands() []string {
	raw := ""
	if s.version.IsOCPP201() {
		raw, _ = s.registry.Value(
			ocpp201.Component{Name: registry.ComponentSampledDataCtrlr},
			ocpp201.Variable{Name: registry.VarTxUpdatedMeasurands},
		)
	} else {
		raw, _ = s.cfg16.Value(Key16MeterValuesSampledData)
	}
	var out []string
	for _, m := range strings.Split(raw, ",") {
		if m = strings.TrimSpace(m); m != "" {
			out = append(out, m)
		}
	}
	if len(out) == 0 {
		out = []string{"Energy.Active.Import.Register"}
	}
	return out
}

// transactionAttempts 交易类消息的总尝试次数（首发+重发）
func (s *Station) transactionAttempts() int {
	attempts := s.csms.MessageRetries + 1
	if !s.version.IsOCPP201() {
		if raw, ok := s.cfg16.Value(Key16TransactionMessageAttempts); ok {
			if n, err := strconv.Atoi(raw); err == nil && n > 0 {
				attempts = n
			}
		}
	}
	if attempts < 1 {
		attempts = 1
	}
	return attempts
}

// transactionRetryInterval 交易类消息重发前的等待
func (s *Station) transactionRetryInterval() time.Duration {
	secs := 60
	if !s.version.IsOCPP201() {
		if raw, ok := s.cfg16.Value(Key16TransactionMessageRetryInterval); ok {
			if n, err := strconv.Atoi(raw); err == nil && n >= 0 {
				secs = n
			}
		}
	}
	return time.Duration(secs) * time.Second
}

// float64n [0,1)均匀抽样，多个生成器协程共享同一个站点级随机源
func (s *Station) float64n() float64 {
	s.rngMu.Lock()
	defer s.rngMu.Unlock()
	return s.rng.Float64()
}

// jitter 以base为中心±spread比例的抖动值
func (s *Station) jitter(base, spread float64) float64 {
	return base * (1 - spread + 2*spread*s.float64n())
}

// metadata 事件元数据
func (s *Station) metadata() events.Metadata {
	return events.Metadata{
		Source:          "charge-station-simulator",
		ProtocolVersion: s.version.String(),
	}
}

// emit 把事件投递给车队事件通道，满时丢弃并告警
func (s *Station) emit(ev events.Event) {
	if s.eventCh == nil {
		return
	}
	select {
	case s.eventCh <- ev:
	default:
		s.log.Warnf("Event channel full, dropping event: type=%s", ev.GetType())
	}
}

// stationInfo 事件流用的站点概要
func (s *Station) stationInfo(status events.StationStatus) events.StationInfo {
	info := events.StationInfo{
		ID:              s.name,
		Vendor:          s.tpl.ChargePointVendor,
		Model:           s.tpl.ChargePointModel,
		ConnectorCount:  len(s.connectors),
		ProtocolVersion: s.version.String(),
		Status:          status,
		LastSeen:        time.Now().UTC(),
	}
	evseCount, _ := evseLayout(s.connectors)
	info.EvseCount = evseCount
	if s.tpl.ChargePointSerialNumber != "" {
		sn := s.tpl.ChargePointSerialNumber
		info.SerialNumber = &sn
	}
	if s.tpl.FirmwareVersion != "" {
		fw := s.tpl.FirmwareVersion
		info.FirmwareVersion = &fw
	}
	return info
}

// activeTransactions 活动交易所在的连接器
func (s *Station) activeTransactions() []*Connector {
	var out []*Connector
	for _, c := range s.connectors {
		if c.HasTransaction() {
			out = append(out, c)
		}
	}
	return out
}

// nextTxNumber 本地交易序号水位，跨重启单调
func (s *Station) nextTxNumber() int64 {
	return s.txCounter.Add(1)
}

// markReset 记录一次正在进行的重置，返回false表示已有重置在途
func (s *Station) markReset(cause stopCause) bool {
	s.resetMu.Lock()
	defer s.resetMu.Unlock()
	if s.resetPending {
		return false
	}
	s.resetPending = true
	s.resetCause = &cause
	return true
}

// resetInFlight 是否有重置在途
func (s *Station) resetInFlight() bool {
	s.resetMu.Lock()
	defer s.resetMu.Unlock()
	return s.resetPending
}

// clearReset 重置完成后清除在途标记
func (s *Station) clearReset() {
	s.resetMu.Lock()
	s.resetPending = false
	s.resetCause = nil
	s.resetMu.Unlock()
}

// terminationCause 会话异常拆除时活动交易的冲账原因:
// 重置在途取重置原因，主动停机为Local，其余视作掉电
func (s *Station) terminationCause() stopCause {
	s.resetMu.Lock()
	cause := s.resetCause
	s.resetMu.Unlock()
	if cause != nil {
		return *cause
	}
	select {
	case <-s.stopCh:
		return stopCauseLocal
	default:
		return stopCausePowerLoss
	}
}

// deferAvailability 登记交易结束后补生效的可用性目标
func (s *Station) deferAvailability(c *Connector, a Availability) {
	s.availMu.Lock()
	s.pendingAvail[c] = a
	s.availMu.Unlock()
}

// takeDeferredAvailability 取出并清除连接器的延迟可用性目标
func (s *Station) takeDeferredAvailability(c *Connector) (Availability, bool) {
	s.availMu.Lock()
	defer s.availMu.Unlock()
	a, ok := s.pendingAvail[c]
	if ok {
		delete(s.pendingAvail, c)
	}
	return a, ok
}
