package station

import (
	"strconv"
	"strings"
	"sync"

	"github.com/charging-platform/charge-station-simulator/internal/domain/ocpp16"
	"github.com/charging-platform/charge-station-simulator/internal/storage"
	"github.com/charging-platform/charge-station-simulator/internal/template"
)

// 1.6核心配置键名。键名查找大小写不敏感，上报时保留注册时的拼写。
const (
	Key16AuthorizeRemoteTxRequests   = "AuthorizeRemoteTxRequests"
	Key16AuthorizationCacheEnabled   = "AuthorizationCacheEnabled"
	Key16ClockAlignedDataInterval    = "ClockAlignedDataInterval"
	Key16ConnectionTimeOut           = "ConnectionTimeOut"
	Key16ConnectorPhaseRotation      = "ConnectorPhaseRotation"
	Key16GetConfigurationMaxKeys     = "GetConfigurationMaxKeys"
	Key16HeartbeatInterval           = "HeartbeatInterval"
	Key16LocalAuthorizeOffline       = "LocalAuthorizeOffline"
	Key16LocalPreAuthorize           = "LocalPreAuthorize"
	Key16MeterValuesSampledData      = "MeterValuesSampledData"
	Key16MeterValueSampleInterval    = "MeterValueSampleInterval"
	Key16NumberOfConnectors          = "NumberOfConnectors"
	Key16ResetRetries                = "ResetRetries"
	Key16StopTransactionOnEVSideDisconnect = "StopTransactionOnEVSideDisconnect"
	Key16StopTransactionOnInvalidId  = "StopTransactionOnInvalidId"
	Key16StopTxnSampledData          = "StopTxnSampledData"
	Key16SupportedFeatureProfiles    = "SupportedFeatureProfiles"
	Key16TransactionMessageAttempts  = "TransactionMessageAttempts"
	Key16TransactionMessageRetryInterval = "TransactionMessageRetryInterval"
	Key16UnlockConnectorOnEVSideDisconnect = "UnlockConnectorOnEVSideDisconnect"
	Key16WebSocketPingInterval       = "WebSocketPingInterval"
)

// 标准键的取值类别，ChangeConfiguration按此校验候选值
var (
	intKeys16 = map[string]struct{}{
		strings.ToLower(Key16ClockAlignedDataInterval):        {},
		strings.ToLower(Key16ConnectionTimeOut):               {},
		strings.ToLower(Key16GetConfigurationMaxKeys):         {},
		strings.ToLower(Key16HeartbeatInterval):               {},
		strings.ToLower(Key16MeterValueSampleInterval):        {},
		strings.ToLower(Key16NumberOfConnectors):              {},
		strings.ToLower(Key16ResetRetries):                    {},
		strings.ToLower(Key16TransactionMessageAttempts):      {},
		strings.ToLower(Key16TransactionMessageRetryInterval): {},
		strings.ToLower(Key16WebSocketPingInterval):           {},
	}
	boolKeys16 = map[string]struct{}{
		strings.ToLower(Key16AuthorizeRemoteTxRequests):              {},
		strings.ToLower(Key16AuthorizationCacheEnabled):              {},
		strings.ToLower(Key16LocalAuthorizeOffline):                  {},
		strings.ToLower(Key16LocalPreAuthorize):                      {},
		strings.ToLower(Key16StopTransactionOnEVSideDisconnect):      {},
		strings.ToLower(Key16StopTransactionOnInvalidId):             {},
		strings.ToLower(Key16UnlockConnectorOnEVSideDisconnect):      {},
	}
)

// ConfigKey 1.6配置键表中的单个条目
type ConfigKey struct {
	Key            string
	Value          string
	Readonly       bool
	RebootRequired bool

	// fromTemplate 模板声明的键在快照恢复时以模板值为准
	fromTemplate bool
}

// ConfigStore 1.6配置键表。查找大小写不敏感，
// GetConfiguration按注册顺序返回。
type ConfigStore struct {
	mu    sync.RWMutex
	keys  []*ConfigKey
	index map[string]*ConfigKey
}

// NewConfigStore 创建空配置键表
func NewConfigStore() *ConfigStore {
	return &ConfigStore{
		index: make(map[string]*ConfigKey),
	}
}

// Register 注册配置键。重名时替换条目并保持上报位置。
func (cs *ConfigStore) Register(k ConfigKey) {
	cs.mu.Lock()
	defer cs.mu.Unlock()

	entry := k
	lower := strings.ToLower(k.Key)
	if existing, ok := cs.index[lower]; ok {
		for i, e := range cs.keys {
			if e == existing {
				cs.keys[i] = &entry
				break
			}
		}
	} else {
		cs.keys = append(cs.keys, &entry)
	}
	cs.index[lower] = &entry
}

// Seed 安装1.6核心配置键，随后应用模板覆盖。
// 模板可以改写标准键，也可以添加新键（带readonly/reboot标记）。
func (cs *ConfigStore) Seed(tpl *template.StationTemplate, heartbeatSecs, pingSecs, messageRetries int) {
	cs.Register(ConfigKey{Key: Key16AuthorizeRemoteTxRequests, Value: boolValue(tpl.IsRemoteAuthorization())})
	cs.Register(ConfigKey{Key: Key16AuthorizationCacheEnabled, Value: boolValue(tpl.IsAuthCacheEnabled())})
	cs.Register(ConfigKey{Key: Key16ClockAlignedDataInterval, Value: "0"})
	cs.Register(ConfigKey{Key: Key16ConnectionTimeOut, Value: "120"})
	cs.Register(ConfigKey{Key: Key16ConnectorPhaseRotation, Value: "NotApplicable"})
	cs.Register(ConfigKey{Key: Key16GetConfigurationMaxKeys, Value: "128", Readonly: true})
	cs.Register(ConfigKey{Key: Key16HeartbeatInterval, Value: strconv.Itoa(heartbeatSecs)})
	cs.Register(ConfigKey{Key: Key16LocalAuthorizeOffline, Value: "true"})
	cs.Register(ConfigKey{Key: Key16LocalPreAuthorize, Value: "false"})
	cs.Register(ConfigKey{Key: Key16MeterValuesSampledData, Value: "Energy.Active.Import.Register"})
	cs.Register(ConfigKey{Key: Key16MeterValueSampleInterval, Value: "60"})
	cs.Register(ConfigKey{Key: Key16NumberOfConnectors, Value: strconv.Itoa(tpl.NumberOfConnectors), Readonly: true})
	cs.Register(ConfigKey{Key: Key16ResetRetries, Value: "1"})
	cs.Register(ConfigKey{Key: Key16StopTransactionOnEVSideDisconnect, Value: "true"})
	cs.Register(ConfigKey{Key: Key16StopTransactionOnInvalidId, Value: "true"})
	cs.Register(ConfigKey{Key: Key16StopTxnSampledData, Value: "Energy.Active.Import.Register"})
	cs.Register(ConfigKey{Key: Key16SupportedFeatureProfiles, Value: "Core,RemoteTrigger", Readonly: true})
	cs.Register(ConfigKey{Key: Key16TransactionMessageAttempts, Value: strconv.Itoa(messageRetries + 1)})
	cs.Register(ConfigKey{Key: Key16TransactionMessageRetryInterval, Value: "60"})
	cs.Register(ConfigKey{Key: Key16UnlockConnectorOnEVSideDisconnect, Value: "true"})
	cs.Register(ConfigKey{Key: Key16WebSocketPingInterval, Value: strconv.Itoa(pingSecs)})

	if tpl.Configuration == nil {
		return
	}
	for _, k := range tpl.Configuration.ConfigurationKey {
		cs.Register(ConfigKey{
			Key:            k.Key,
			Value:          k.Value,
			Readonly:       k.Readonly,
			RebootRequired: k.Reboot,
			fromTemplate:   true,
		})
	}
}

// Get 查找配置键，返回副本
func (cs *ConfigStore) Get(key string) (ConfigKey, bool) {
	cs.mu.RLock()
	defer cs.mu.RUnlock()
	entry, ok := cs.index[strings.ToLower(key)]
	if !ok {
		return ConfigKey{}, false
	}
	return *entry, true
}

// Value 读取配置键的值
func (cs *ConfigStore) Value(key string) (string, bool) {
	k, ok := cs.Get(key)
	if !ok {
		return "", false
	}
	return k.Value, true
}

// Set 直接写入值，不经决策表。内部状态同步与快照恢复使用。
// 未注册的键静默忽略。
func (cs *ConfigStore) Set(key, value string) {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	if entry, ok := cs.index[strings.ToLower(key)]; ok {
		entry.Value = value
	}
}

// Len 条目总数
func (cs *ConfigStore) Len() int {
	cs.mu.RLock()
	defer cs.mu.RUnlock()
	return len(cs.keys)
}

// All 按注册顺序返回全部条目副本
func (cs *ConfigStore) All() []ConfigKey {
	cs.mu.RLock()
	defer cs.mu.RUnlock()
	out := make([]ConfigKey, 0, len(cs.keys))
	for _, e := range cs.keys {
		out = append(out, *e)
	}
	return out
}

// Change ChangeConfiguration决策表:
// 未知键 → NotSupported；只读 → Rejected；值不合法 → Rejected；
// 需重启键 → 写入并返回RebootRequired；其余 → 写入并返回Accepted。
func (cs *ConfigStore) Change(key, value string) ocpp16.ConfigurationStatus {
	cs.mu.Lock()
	defer cs.mu.Unlock()

	entry, ok := cs.index[strings.ToLower(key)]
	if !ok {
		return ocpp16.ConfigurationStatusNotSupported
	}
	if entry.Readonly {
		return ocpp16.ConfigurationStatusRejected
	}
	if err := validateConfigValue16(key, value); err != nil {
		return ocpp16.ConfigurationStatusRejected
	}

	entry.Value = value
	if entry.RebootRequired {
		return ocpp16.ConfigurationStatusRebootRequired
	}
	return ocpp16.ConfigurationStatusAccepted
}

// validateConfigValue16 标准键的候选值校验。
// 整型键要求非负整数，布尔键要求true/false，其余键不限制。
func validateConfigValue16(key, value string) error {
	lower := strings.ToLower(key)
	if _, ok := intKeys16[lower]; ok {
		n, err := strconv.Atoi(value)
		if err != nil {
			return err
		}
		if n < 0 {
			return strconv.ErrRange
		}
		return nil
	}
	if _, ok := boolKeys16[lower]; ok {
		if value != "true" && value != "false" {
			return strconv.ErrSyntax
		}
	}
	return nil
}

// KeyValues GetConfiguration响应形态的条目列表。
// keys为空返回全部；否则按请求顺序拆分已知与未知。
func (cs *ConfigStore) KeyValues(keys []string) ([]ocpp16.KeyValue, []string) {
	cs.mu.RLock()
	defer cs.mu.RUnlock()

	if len(keys) == 0 {
		out := make([]ocpp16.KeyValue, 0, len(cs.keys))
		for _, e := range cs.keys {
			out = append(out, keyValueOf(e))
		}
		return out, nil
	}

	var known []ocpp16.KeyValue
	var unknown []string
	for _, key := range keys {
		if e, ok := cs.index[strings.ToLower(key)]; ok {
			known = append(known, keyValueOf(e))
		} else {
			unknown = append(unknown, key)
		}
	}
	return known, unknown
}

func keyValueOf(e *ConfigKey) ocpp16.KeyValue {
	value := e.Value
	return ocpp16.KeyValue{
		Key:      e.Key,
		Readonly: e.Readonly,
		Value:    &value,
	}
}

// Export 导出落盘形态
func (cs *ConfigStore) Export() []storage.ConfigurationKeySnapshot {
	cs.mu.RLock()
	defer cs.mu.RUnlock()
	out := make([]storage.ConfigurationKeySnapshot, 0, len(cs.keys))
	for _, e := range cs.keys {
		out = append(out, storage.ConfigurationKeySnapshot{
			Key:      e.Key,
			Value:    e.Value,
			Readonly: e.Readonly,
		})
	}
	return out
}

// Restore 回填快照值。模板声明的键与只读键保持现值，
// 其余已注册的键恢复快照里的运行时值。
func (cs *ConfigStore) Restore(snaps []storage.ConfigurationKeySnapshot) {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	for _, snap := range snaps {
		entry, ok := cs.index[strings.ToLower(snap.Key)]
		if !ok || entry.fromTemplate || entry.Readonly {
			continue
		}
		entry.Value = snap.Value
	}
}

func boolValue(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
