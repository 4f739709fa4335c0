package registry

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/charging-platform/charge-station-simulator/internal/domain/ocpp201"
)

var (
	// ErrNotFound 组件或变量不存在
	ErrNotFound = errors.New("variable not found")
	// ErrReadOnly 变量只读
	ErrReadOnly = errors.New("variable is read-only")
	// ErrWriteOnly 变量只写
	ErrWriteOnly = errors.New("variable is write-only")
)

// VariableMetadata 设备模型中单个变量的完整描述。
// Value是Actual属性的当前值，模拟器不区分Target/MinSet/MaxSet。
type VariableMetadata struct {
	Component       ocpp201.Component
	Variable        ocpp201.Variable
	Value           string
	Characteristics ocpp201.VariableCharacteristics
	Mutability      ocpp201.Mutability
	Persistent      bool
	Constant        bool
	// RebootRequired SetVariables写入后需要重启才生效
	RebootRequired bool
	// MaxElements 列表类型的元素个数上限，0表示不限制
	MaxElements int
	// ValueSize 值长度上限，0时取DefaultValueSize
	ValueSize int
	// Summary 是否纳入SummaryInventory报表
	Summary bool
}

// DefaultValueSize 变量值默认长度上限
const DefaultValueSize = 1000

// Registry 2.0.1设备模型变量注册表。注册顺序决定报表顺序。
type Registry struct {
	mu      sync.RWMutex
	entries []*VariableMetadata
	index   map[string]*VariableMetadata
}

// NewRegistry 创建空注册表
func NewRegistry() *Registry {
	return &Registry{
		index: make(map[string]*VariableMetadata),
	}
}

// entryKey 组件名与变量名大小写不敏感，instance与evse精确匹配
func entryKey(component ocpp201.Component, variable ocpp201.Variable) string {
	var b strings.Builder
	b.WriteString(strings.ToLower(component.Name))
	b.WriteByte('|')
	if component.Instance != nil {
		b.WriteString(*component.Instance)
	}
	b.WriteByte('|')
	if component.EVSE != nil {
		fmt.Fprintf(&b, "%d", component.EVSE.Id)
		if component.EVSE.ConnectorId != nil {
			fmt.Fprintf(&b, ".%d", *component.EVSE.ConnectorId)
		}
	}
	b.WriteByte('|')
	b.WriteString(strings.ToLower(variable.Name))
	b.WriteByte('|')
	if variable.Instance != nil {
		b.WriteString(*variable.Instance)
	}
	return b.String()
}

// Register 注册变量。同一(component,variable)再次注册时替换原条目，
// 保持其在报表中的位置。
func (r *Registry) Register(meta *VariableMetadata) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := entryKey(meta.Component, meta.Variable)
	if existing, ok := r.index[key]; ok {
		for i, e := range r.entries {
			if e == existing {
				r.entries[i] = meta
				break
			}
		}
	} else {
		r.entries = append(r.entries, meta)
	}
	r.index[key] = meta
}

// Lookup 查找变量。名字大小写不敏感，instance精确匹配，找不到返回(nil, false)。
func (r *Registry) Lookup(component ocpp201.Component, variable ocpp201.Variable) (*VariableMetadata, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	meta, ok := r.index[entryKey(component, variable)]
	return meta, ok
}

// ComponentKnown 组件是否注册过任一变量，用于区分UnknownComponent与UnknownVariable
func (r *Registry) ComponentKnown(component ocpp201.Component) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.componentKnownLocked(component)
}

// componentEqual 组件身份比较:名字大小写不敏感，instance与evse精确
func componentEqual(a, b ocpp201.Component) bool {
	if !strings.EqualFold(a.Name, b.Name) {
		return false
	}
	if (a.Instance == nil) != (b.Instance == nil) {
		return false
	}
	if a.Instance != nil && *a.Instance != *b.Instance {
		return false
	}
	if (a.EVSE == nil) != (b.EVSE == nil) {
		return false
	}
	if a.EVSE != nil {
		if a.EVSE.Id != b.EVSE.Id {
			return false
		}
		if (a.EVSE.ConnectorId == nil) != (b.EVSE.ConnectorId == nil) {
			return false
		}
		if a.EVSE.ConnectorId != nil && *a.EVSE.ConnectorId != *b.EVSE.ConnectorId {
			return false
		}
	}
	return true
}

// Value 读取Actual属性值
func (r *Registry) Value(component ocpp201.Component, variable ocpp201.Variable) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	meta, ok := r.index[entryKey(component, variable)]
	if !ok {
		return "", false
	}
	return meta.Value, true
}

// SetValue 写入Actual属性值。不做可写性与合法性检查，
// 这些约束在SetVariables处理器里执行，站点内部状态更新也走这里。
func (r *Registry) SetValue(component ocpp201.Component, variable ocpp201.Variable, value string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	meta, ok := r.index[entryKey(component, variable)]
	if !ok {
		return ErrNotFound
	}
	meta.Value = value
	return nil
}

// Len 条目总数
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// Entries 按注册顺序返回条目快照
func (r *Registry) Entries() []*VariableMetadata {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*VariableMetadata, len(r.entries))
	copy(out, r.entries)
	return out
}

// ReportEntries 按报表基准过滤条目:
// FullInventory全部，ConfigurationInventory只含可写变量，
// SummaryInventory只含标记为summary的条目。
func (r *Registry) ReportEntries(base ocpp201.ReportBase) []*VariableMetadata {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*VariableMetadata
	for _, meta := range r.entries {
		switch base {
		case ocpp201.ReportBaseConfigurationInventory:
			if meta.Mutability == ocpp201.MutabilityReadWrite || meta.Mutability == ocpp201.MutabilityWriteOnly {
				out = append(out, meta)
			}
		case ocpp201.ReportBaseSummaryInventory:
			if meta.Summary {
				out = append(out, meta)
			}
		default:
			out = append(out, meta)
		}
	}
	return out
}

// ReportData 把条目转成NotifyReport的报告项。
// WriteOnly变量的值永不回显。
func (m *VariableMetadata) ReportData() ocpp201.ReportData {
	attrType := ocpp201.AttributeTypeActual
	mutability := m.Mutability
	attr := ocpp201.VariableAttribute{
		Type:       &attrType,
		Mutability: &mutability,
		Persistent: m.Persistent,
		Constant:   m.Constant,
	}
	if m.Mutability != ocpp201.MutabilityWriteOnly {
		value := m.Value
		attr.Value = &value
	}

	characteristics := m.Characteristics
	return ocpp201.ReportData{
		Component:               m.Component,
		Variable:                m.Variable,
		VariableAttribute:       []ocpp201.VariableAttribute{attr},
		VariableCharacteristics: &characteristics,
	}
}

// GetVariableValue GetVariables用的读取入口，按OCPP状态码返回
func (r *Registry) GetVariableValue(component ocpp201.Component, variable ocpp201.Variable) (string, ocpp201.GetVariableStatus) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	meta, ok := r.index[entryKey(component, variable)]
	if !ok {
		if r.componentKnownLocked(component) {
			return "", ocpp201.GetVariableStatusUnknownVariable
		}
		return "", ocpp201.GetVariableStatusUnknownComponent
	}
	if meta.Mutability == ocpp201.MutabilityWriteOnly {
		return "", ocpp201.GetVariableStatusRejected
	}
	return meta.Value, ocpp201.GetVariableStatusAccepted
}

func (r *Registry) componentKnownLocked(component ocpp201.Component) bool {
	for _, e := range r.entries {
		if componentEqual(e.Component, component) {
			return true
		}
	}
	return false
}

// SetVariableValue SetVariables用的写入入口:
// 未知组件/变量 → 对应状态；只读 → Rejected；校验失败 → Rejected；
// 成功 → Accepted或RebootRequired。
func (r *Registry) SetVariableValue(component ocpp201.Component, variable ocpp201.Variable, value string) ocpp201.SetVariableStatus {
	r.mu.Lock()
	defer r.mu.Unlock()

	meta, ok := r.index[entryKey(component, variable)]
	if !ok {
		if r.componentKnownLocked(component) {
			return ocpp201.SetVariableStatusUnknownVariable
		}
		return ocpp201.SetVariableStatusUnknownComponent
	}
	if meta.Mutability == ocpp201.MutabilityReadOnly {
		return ocpp201.SetVariableStatusRejected
	}
	if err := meta.Validate(value); err != nil {
		return ocpp201.SetVariableStatusRejected
	}

	meta.Value = value
	if meta.RebootRequired {
		return ocpp201.SetVariableStatusRebootRequired
	}
	return ocpp201.SetVariableStatusAccepted
}
