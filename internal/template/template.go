package template

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charging-platform/charge-station-simulator/internal/domain/protocol"
)

// StationTemplate 站点模板：一份JSON文档描述一类站点的静态属性与行为开关
// 同一模板按 stations[].count 展开为多个站点实例
type StationTemplate struct {
	BaseName                string `json:"baseName"`
	ChargePointModel        string `json:"chargePointModel"`
	ChargePointVendor       string `json:"chargePointVendor"`
	FirmwareVersion         string `json:"firmwareVersion,omitempty"`
	ChargePointSerialNumber string `json:"chargePointSerialNumber,omitempty"`
	MeterSerialNumber       string `json:"meterSerialNumber,omitempty"`
	MeterType               string `json:"meterType,omitempty"`
	ICCID                   string `json:"iccid,omitempty"`
	IMSI                    string `json:"imsi,omitempty"`

	OCPPVersion     string   `json:"ocppVersion,omitempty"`  // "1.6" 或 "2.0.1"，默认 1.6
	OCPPProtocol    string   `json:"ocppProtocol,omitempty"` // 仅支持 "json"
	SupervisionURLs []string `json:"supervisionUrls,omitempty"`

	// 电气额定值，驱动电表值模拟
	Power          float64 `json:"power,omitempty"`     // 额定功率
	PowerUnit      string  `json:"powerUnit,omitempty"` // "W" 或 "kW"，默认 W
	VoltageOut     float64 `json:"voltageOut,omitempty"`
	NumberOfPhases int     `json:"numberOfPhases,omitempty"`

	// 连接器拓扑：Evses 优先于 Connectors，均缺省时按 numberOfConnectors 展开
	NumberOfConnectors int                          `json:"numberOfConnectors,omitempty"`
	Connectors         map[string]ConnectorTemplate `json:"Connectors,omitempty"`
	Evses              map[string]EvseTemplate      `json:"Evses,omitempty"`

	Configuration                 *ConfigurationTemplate `json:"Configuration,omitempty"`
	AutomaticTransactionGenerator ATGTemplate            `json:"AutomaticTransactionGenerator"`

	AutoStart            *bool  `json:"autoStart,omitempty"`    // 默认 true
	AutoRegister         bool   `json:"autoRegister,omitempty"` // 本地预授权所有 idTag
	OCPPStrictCompliance bool   `json:"ocppStrictCompliance,omitempty"`
	RemoteAuthorization  *bool  `json:"remoteAuthorization,omitempty"` // 默认 true
	AuthCacheEnabled     *bool  `json:"authCacheEnabled,omitempty"`    // 默认 true
	IdTagsFile           string `json:"idTagsFile,omitempty"`

	StopTransactionsOnStopped *bool   `json:"stopTransactionsOnStopped,omitempty"` // 默认 true
	NotifyStatusOnStopped     *bool   `json:"notifyStatusOnStopped,omitempty"`     // 默认 true
	ResetTime                 float64 `json:"resetTime,omitempty"`                 // 重启停顿秒数，默认 5

	// 模板文件名（不含扩展名），加载时填充，参与站点命名与hashId派生
	Name string `json:"-"`
}

// ConnectorTemplate 单个连接器的模板属性
type ConnectorTemplate struct {
	Status       string `json:"status,omitempty"` // 初始状态，默认 Available
	Availability string `json:"availability,omitempty"`
}

// EvseTemplate EVSE层模板：一个EVSE拥有一组有序连接器
type EvseTemplate struct {
	Connectors map[string]ConnectorTemplate `json:"Connectors"`
}

// ConfigurationTemplate OCPP 1.6 配置键表的初始内容
type ConfigurationTemplate struct {
	ConfigurationKey []ConfigurationKeyTemplate `json:"configurationKey"`
}

// ConfigurationKeyTemplate 单个配置键：reboot 标记写入后需重启生效
type ConfigurationKeyTemplate struct {
	Key      string `json:"key"`
	Readonly bool   `json:"readonly,omitempty"`
	Value    string `json:"value"`
	Reboot   bool   `json:"reboot,omitempty"`
}

// ATGTemplate 自动交易生成器配置，时长字段单位为秒
type ATGTemplate struct {
	Enable                         bool    `json:"enable"`
	MinDuration                    float64 `json:"minDuration,omitempty"`
	MaxDuration                    float64 `json:"maxDuration,omitempty"`
	MinDelayBetweenTwoTransactions float64 `json:"minDelayBetweenTwoTransactions,omitempty"`
	MaxDelayBetweenTwoTransactions float64 `json:"maxDelayBetweenTwoTransactions,omitempty"`
	ProbabilityOfStart             float64 `json:"probabilityOfStart,omitempty"`
	StopAfterHours                 float64 `json:"stopAfterHours,omitempty"`
	StopAbsoluteDuration           bool    `json:"stopAbsoluteDuration,omitempty"`
	RequireAuthorize               bool    `json:"requireAuthorize,omitempty"`
	IdTagDistribution              string  `json:"idTagDistribution,omitempty"` // random, round-robin, connector-affinity
}

// Load 从文件读取站点模板，填充默认值并校验
func Load(path string) (*StationTemplate, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read template file %s: %w", path, err)
	}

	var tpl StationTemplate
	if err := json.Unmarshal(data, &tpl); err != nil {
		return nil, fmt.Errorf("failed to parse template file %s: %w", path, err)
	}

	tpl.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	tpl.applyDefaults()

	if err := tpl.Validate(); err != nil {
		return nil, fmt.Errorf("invalid template %s: %w", path, err)
	}
	return &tpl, nil
}

// applyDefaults 填充可省略字段的默认值
func (t *StationTemplate) applyDefaults() {
	if t.OCPPVersion == "" {
		t.OCPPVersion = "1.6"
	}
	if t.OCPPProtocol == "" {
		t.OCPPProtocol = "json"
	}
	if t.PowerUnit == "" {
		t.PowerUnit = "W"
	}
	if t.Power == 0 {
		t.Power = 22000
	}
	if t.VoltageOut == 0 {
		t.VoltageOut = 230
	}
	if t.NumberOfPhases == 0 {
		t.NumberOfPhases = 3
	}
	if t.NumberOfConnectors == 0 {
		switch {
		case len(t.Evses) > 0:
			// id "0" 为整站保留位，不计入连接器数
			n := 0
			for id, evse := range t.Evses {
				if id == "0" {
					continue
				}
				n += len(evse.Connectors)
			}
			t.NumberOfConnectors = n
		case len(t.Connectors) > 0:
			// id "0" 为整站保留位，不计入连接器数
			n := len(t.Connectors)
			if _, ok := t.Connectors["0"]; ok {
				n--
			}
			t.NumberOfConnectors = n
		default:
			t.NumberOfConnectors = 1
		}
	}

	atg := &t.AutomaticTransactionGenerator
	if atg.MinDuration == 0 {
		atg.MinDuration = 60
	}
	if atg.MaxDuration == 0 {
		atg.MaxDuration = 120
	}
	if atg.MinDelayBetweenTwoTransactions == 0 {
		atg.MinDelayBetweenTwoTransactions = 15
	}
	if atg.MaxDelayBetweenTwoTransactions == 0 {
		atg.MaxDelayBetweenTwoTransactions = 30
	}
	if atg.ProbabilityOfStart == 0 {
		atg.ProbabilityOfStart = 1
	}
	if atg.IdTagDistribution == "" {
		atg.IdTagDistribution = "round-robin"
	}
}

// Validate 校验模板的必填字段与取值范围
func (t *StationTemplate) Validate() error {
	if t.BaseName == "" {
		return fmt.Errorf("baseName is required")
	}
	if t.ChargePointModel == "" {
		return fmt.Errorf("chargePointModel is required")
	}
	if t.ChargePointVendor == "" {
		return fmt.Errorf("chargePointVendor is required")
	}
	if protocol.NormalizeVersion(t.OCPPVersion) == "" {
		return fmt.Errorf("unsupported ocppVersion %q", t.OCPPVersion)
	}
	if t.OCPPProtocol != "json" {
		return fmt.Errorf("unsupported ocppProtocol %q, only json is supported", t.OCPPProtocol)
	}
	for _, raw := range t.SupervisionURLs {
		if !strings.HasPrefix(raw, "ws://") && !strings.HasPrefix(raw, "wss://") {
			return fmt.Errorf("supervision url %q must use ws:// or wss:// scheme", raw)
		}
	}
	if t.NumberOfConnectors < 1 {
		return fmt.Errorf("numberOfConnectors must be >= 1")
	}
	switch t.PowerUnit {
	case "W", "kW":
	default:
		return fmt.Errorf("powerUnit must be W or kW, got %q", t.PowerUnit)
	}

	atg := &t.AutomaticTransactionGenerator
	if atg.ProbabilityOfStart < 0 || atg.ProbabilityOfStart > 1 {
		return fmt.Errorf("probabilityOfStart must be in [0,1], got %v", atg.ProbabilityOfStart)
	}
	if atg.MinDuration > atg.MaxDuration {
		return fmt.Errorf("minDuration %v exceeds maxDuration %v", atg.MinDuration, atg.MaxDuration)
	}
	if atg.MinDelayBetweenTwoTransactions > atg.MaxDelayBetweenTwoTransactions {
		return fmt.Errorf("minDelayBetweenTwoTransactions %v exceeds maxDelayBetweenTwoTransactions %v",
			atg.MinDelayBetweenTwoTransactions, atg.MaxDelayBetweenTwoTransactions)
	}
	switch atg.IdTagDistribution {
	case "random", "round-robin", "connector-affinity":
	default:
		return fmt.Errorf("idTagDistribution must be random, round-robin or connector-affinity, got %q", atg.IdTagDistribution)
	}
	return nil
}

// Version 返回归一化后的协议版本
func (t *StationTemplate) Version() protocol.Version {
	return protocol.NormalizeVersion(t.OCPPVersion)
}

// StationName 第index个实例的站点ID，index从1开始
func (t *StationTemplate) StationName(index int) string {
	return fmt.Sprintf("%s-%03d", t.BaseName, index)
}

// HashID 由模板名与实例序号派生的稳定哈希标识，重启后不变
func (t *StationTemplate) HashID(index int) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s%d", t.Name, index)))
	return strings.ToUpper(hex.EncodeToString(sum[:16]))
}

// SupervisionURL 第index个实例应连接的CSMS地址
// 模板给出多个supervisionUrls时按序号轮转分摊，未给出时回退到fallback
func (t *StationTemplate) SupervisionURL(index int, fallback string) string {
	if len(t.SupervisionURLs) == 0 {
		return fallback
	}
	return t.SupervisionURLs[(index-1)%len(t.SupervisionURLs)]
}

// IsAutoStart 站点是否随模拟器启动自动上线
func (t *StationTemplate) IsAutoStart() bool {
	return t.AutoStart == nil || *t.AutoStart
}

// IsRemoteAuthorization RemoteStartTransaction是否需要先行Authorize
func (t *StationTemplate) IsRemoteAuthorization() bool {
	return t.RemoteAuthorization == nil || *t.RemoteAuthorization
}

// IsAuthCacheEnabled 是否启用本地授权缓存
func (t *StationTemplate) IsAuthCacheEnabled() bool {
	return t.AuthCacheEnabled == nil || *t.AuthCacheEnabled
}

// IsStopTransactionsOnStopped 停站时是否补发StopTransaction
func (t *StationTemplate) IsStopTransactionsOnStopped() bool {
	return t.StopTransactionsOnStopped == nil || *t.StopTransactionsOnStopped
}

// IsNotifyStatusOnStopped 有序停站时是否向CSMS通告连接器不可用
func (t *StationTemplate) IsNotifyStatusOnStopped() bool {
	return t.NotifyStatusOnStopped == nil || *t.NotifyStatusOnStopped
}

// ResetPause 重置断开到重连之间的停顿，模拟真实重启耗时
func (t *StationTemplate) ResetPause() time.Duration {
	if t.ResetTime > 0 {
		return secondsToDuration(t.ResetTime)
	}
	return 5 * time.Second
}

// PowerW 额定功率，统一换算为瓦
func (t *StationTemplate) PowerW() float64 {
	if t.PowerUnit == "kW" {
		return t.Power * 1000
	}
	return t.Power
}

// MinChargeDuration 单次模拟交易的最短持续时间
func (a *ATGTemplate) MinChargeDuration() time.Duration {
	return secondsToDuration(a.MinDuration)
}

// MaxChargeDuration 单次模拟交易的最长持续时间
func (a *ATGTemplate) MaxChargeDuration() time.Duration {
	return secondsToDuration(a.MaxDuration)
}

// MinIdleDelay 两次交易之间的最短空闲时间
func (a *ATGTemplate) MinIdleDelay() time.Duration {
	return secondsToDuration(a.MinDelayBetweenTwoTransactions)
}

// MaxIdleDelay 两次交易之间的最长空闲时间
func (a *ATGTemplate) MaxIdleDelay() time.Duration {
	return secondsToDuration(a.MaxDelayBetweenTwoTransactions)
}

// StopAfter 生成器自动停止前的运行时长，0表示不自动停止
func (a *ATGTemplate) StopAfter() time.Duration {
	return time.Duration(a.StopAfterHours * float64(time.Hour))
}

func secondsToDuration(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}
