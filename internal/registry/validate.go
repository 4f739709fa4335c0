package registry

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charging-platform/charge-station-simulator/internal/domain/ocpp201"
)

// Validate 按变量特征校验候选值。只做判定不做写入。
func (m *VariableMetadata) Validate(raw string) error {
	maxSize := m.ValueSize
	if maxSize <= 0 {
		maxSize = DefaultValueSize
	}
	if len(raw) > maxSize {
		return fmt.Errorf("value length %d exceeds limit %d", len(raw), maxSize)
	}

	switch m.Characteristics.DataType {
	case ocpp201.DataTypeString, "":
		return nil

	case ocpp201.DataTypeBoolean:
		if raw != "true" && raw != "false" {
			return fmt.Errorf("boolean value must be \"true\" or \"false\", got %q", raw)
		}
		return nil

	case ocpp201.DataTypeInteger:
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid integer value %q", raw)
		}
		return m.checkRange(float64(n))

	case ocpp201.DataTypeDecimal:
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return fmt.Errorf("invalid decimal value %q", raw)
		}
		return m.checkRange(f)

	case ocpp201.DataTypeDateTime:
		if _, err := time.Parse(time.RFC3339, raw); err != nil {
			if _, err := time.Parse(time.RFC3339Nano, raw); err != nil {
				return fmt.Errorf("invalid dateTime value %q", raw)
			}
		}
		return nil

	case ocpp201.DataTypeOptionList:
		if !m.inValuesList(raw) {
			return fmt.Errorf("value %q not in values list", raw)
		}
		return nil

	case ocpp201.DataTypeSequenceList:
		return m.validateList(raw, false)

	case ocpp201.DataTypeMemberList:
		return m.validateList(raw, true)

	default:
		return fmt.Errorf("unsupported data type %q", m.Characteristics.DataType)
	}
}

// checkRange MinLimit/MaxLimit闭区间检查
func (m *VariableMetadata) checkRange(v float64) error {
	if min := m.Characteristics.MinLimit; min != nil && v < *min {
		return fmt.Errorf("value %g below minimum %g", v, *min)
	}
	if max := m.Characteristics.MaxLimit; max != nil && v > *max {
		return fmt.Errorf("value %g above maximum %g", v, *max)
	}
	return nil
}

// valuesList 解析CSV值域，元素去除首尾空白
func (m *VariableMetadata) valuesList() []string {
	if m.Characteristics.ValuesList == nil || *m.Characteristics.ValuesList == "" {
		return nil
	}
	parts := strings.Split(*m.Characteristics.ValuesList, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		out = append(out, strings.TrimSpace(p))
	}
	return out
}

func (m *VariableMetadata) inValuesList(value string) bool {
	for _, allowed := range m.valuesList() {
		if value == allowed {
			return true
		}
	}
	return false
}

// validateList CSV列表校验。MemberList额外拒绝重复元素。
func (m *VariableMetadata) validateList(raw string, rejectDuplicates bool) error {
	if raw == "" {
		return nil
	}

	elements := strings.Split(raw, ",")
	if m.MaxElements > 0 && len(elements) > m.MaxElements {
		return fmt.Errorf("list has %d elements, maximum is %d", len(elements), m.MaxElements)
	}

	seen := make(map[string]struct{}, len(elements))
	for _, element := range elements {
		element = strings.TrimSpace(element)
		if element == "" {
			return fmt.Errorf("list contains empty element")
		}
		if !m.inValuesList(element) {
			return fmt.Errorf("element %q not in values list", element)
		}
		if rejectDuplicates {
			if _, dup := seen[element]; dup {
				return fmt.Errorf("duplicate element %q", element)
			}
			seen[element] = struct{}{}
		}
	}
	return nil
}
