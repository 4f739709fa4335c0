package registry

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/charging-platform/charge-station-simulator/internal/domain/ocpp201"
)

func TestValidate_String(t *testing.T) {
	meta := rw("Ctrlr", "Name", "", ocpp201.DataTypeString)

	// 空字符串对可写字符串变量合法
	assert.NoError(t, meta.Validate(""))
	assert.NoError(t, meta.Validate("any text value"))

	// 默认1000字符上限
	assert.NoError(t, meta.Validate(strings.Repeat("x", 1000)))
	assert.Error(t, meta.Validate(strings.Repeat("x", 1001)))

	// ValueSize覆盖默认上限
	meta.ValueSize = 10
	assert.NoError(t, meta.Validate("0123456789"))
	assert.Error(t, meta.Validate("01234567890"))
}

func TestValidate_Boolean(t *testing.T) {
	meta := rw("Ctrlr", "Enabled", "true", ocpp201.DataTypeBoolean)

	tests := []struct {
		value   string
		wantErr bool
	}{
		{"true", false},
		{"false", false},
		{"True", true},
		{"TRUE", true},
		{"1", true},
		{"0", true},
		{"yes", true},
		{"", true},
	}

	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			err := meta.Validate(tt.value)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidate_Integer(t *testing.T) {
	meta := rw("Ctrlr", "Interval", "300", ocpp201.DataTypeInteger).withMin(0).withMax(86400)

	tests := []struct {
		name    string
		value   string
		wantErr bool
	}{
		{"valid", "60", false},
		{"zero at minimum", "0", false},
		{"at maximum", "86400", false},
		{"below minimum", "-1", true},
		{"above maximum", "86401", true},
		{"not a number", "sixty", true},
		{"decimal not integer", "1.5", true},
		{"empty", "", true},
		{"overflow garbage", "99999999999999999999999999", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := meta.Validate(tt.value)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidate_Decimal(t *testing.T) {
	meta := rw("Ctrlr", "Power", "0", ocpp201.DataTypeDecimal).withMin(0).withMax(22000)

	assert.NoError(t, meta.Validate("11000.5"))
	assert.NoError(t, meta.Validate("0"))
	assert.NoError(t, meta.Validate("22000"))
	assert.Error(t, meta.Validate("-0.1"))
	assert.Error(t, meta.Validate("22000.01"))
	assert.Error(t, meta.Validate("eleven"))
}

func TestValidate_DateTime(t *testing.T) {
	meta := rw("Ctrlr", "NotBefore", "", ocpp201.DataTypeDateTime)

	assert.NoError(t, meta.Validate("2024-03-15T08:30:00Z"))
	assert.NoError(t, meta.Validate("2024-03-15T08:30:00.250Z"))
	assert.NoError(t, meta.Validate("2024-03-15T10:30:00+02:00"))
	assert.Error(t, meta.Validate("2024-03-15"))
	assert.Error(t, meta.Validate("yesterday"))
	assert.Error(t, meta.Validate(""))
}

func TestValidate_OptionList(t *testing.T) {
	meta := rw("Ctrlr", "Mode", "A", ocpp201.DataTypeOptionList).withValues("A,B,C")

	assert.NoError(t, meta.Validate("A"))
	assert.NoError(t, meta.Validate("C"))
	assert.Error(t, meta.Validate("D"))
	assert.Error(t, meta.Validate("a"), "values list comparison is case-sensitive")
	assert.Error(t, meta.Validate("A,B"), "option list takes a single value")
}

func TestValidate_SequenceList(t *testing.T) {
	meta := rw("Ctrlr", "Order", "1", ocpp201.DataTypeSequenceList).withValues("1,2,3")

	assert.NoError(t, meta.Validate("1,2,3"))
	assert.NoError(t, meta.Validate("3,1"))
	// SequenceList允许重复
	assert.NoError(t, meta.Validate("1,1,2"))
	assert.Error(t, meta.Validate("1,4"))
	assert.Error(t, meta.Validate("1,,2"))
}

func TestValidate_MemberList(t *testing.T) {
	meta := rw("Ctrlr", "Measurands", "", ocpp201.DataTypeMemberList).
		withValues("Energy.Active.Import.Register,Power.Active.Import,SoC").
		withMaxElements(2)

	assert.NoError(t, meta.Validate("Energy.Active.Import.Register"))
	assert.NoError(t, meta.Validate("Energy.Active.Import.Register,SoC"))
	// CSV元素允许空白
	assert.NoError(t, meta.Validate("Energy.Active.Import.Register, SoC"))

	// MemberList拒绝重复
	assert.Error(t, meta.Validate("SoC,SoC"))
	// 超出元素上限
	assert.Error(t, meta.Validate("Energy.Active.Import.Register,Power.Active.Import,SoC"))
	// 不在值域
	assert.Error(t, meta.Validate("Frequency"))
}

func TestValidate_EmptyList(t *testing.T) {
	meta := rw("Ctrlr", "Measurands", "", ocpp201.DataTypeMemberList).withValues("A,B")
	// 清空列表合法
	assert.NoError(t, meta.Validate(""))
}

func TestValidate_NeverPanics(t *testing.T) {
	// 缺失特征的条目也不会panic
	meta := &VariableMetadata{
		Component: ocpp201.Component{Name: "Ctrlr"},
		Variable:  ocpp201.Variable{Name: "Weird"},
	}
	assert.NotPanics(t, func() {
		_ = meta.Validate("anything")
	})

	// OptionList没有值域时一律拒绝
	noValues := rw("Ctrlr", "Mode", "", ocpp201.DataTypeOptionList)
	assert.Error(t, noValues.Validate("A"))
}
