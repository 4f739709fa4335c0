package template

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/charging-platform/charge-station-simulator/internal/domain/protocol"
)

// writeTemplate 写一个临时模板文件并返回路径
func writeTemplate(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad(t *testing.T) {
	t.Run("最小模板填充默认值", func(t *testing.T) {
		path := writeTemplate(t, "basic.json", `{
			"baseName": "SIM-CP",
			"chargePointModel": "Virtual-1",
			"chargePointVendor": "SimVendor",
			"AutomaticTransactionGenerator": {"enable": false}
		}`)

		tpl, err := Load(path)
		require.NoError(t, err)

		assert.Equal(t, "basic", tpl.Name)
		assert.Equal(t, protocol.VersionOCPP16, tpl.Version())
		assert.Equal(t, "json", tpl.OCPPProtocol)
		assert.Equal(t, 1, tpl.NumberOfConnectors)
		assert.Equal(t, 22000.0, tpl.PowerW())
		assert.True(t, tpl.IsAutoStart())
		assert.True(t, tpl.IsRemoteAuthorization())
		assert.True(t, tpl.IsAuthCacheEnabled())
		assert.True(t, tpl.IsStopTransactionsOnStopped())
		assert.True(t, tpl.IsNotifyStatusOnStopped())
		assert.Equal(t, 5*time.Second, tpl.ResetPause())

		atg := tpl.AutomaticTransactionGenerator
		assert.Equal(t, 60*time.Second, atg.MinChargeDuration())
		assert.Equal(t, 120*time.Second, atg.MaxChargeDuration())
		assert.Equal(t, 15*time.Second, atg.MinIdleDelay())
		assert.Equal(t, 30*time.Second, atg.MaxIdleDelay())
		assert.Equal(t, 1.0, atg.ProbabilityOfStart)
		assert.Equal(t, "round-robin", atg.IdTagDistribution)
		assert.Equal(t, time.Duration(0), atg.StopAfter())
	})

	t.Run("连接器表推导数量时剔除0号", func(t *testing.T) {
		path := writeTemplate(t, "connectors.json", `{
			"baseName": "SIM-CP",
			"chargePointModel": "Virtual-1",
			"chargePointVendor": "SimVendor",
			"Connectors": {
				"0": {},
				"1": {"status": "Available"},
				"2": {"status": "Available"}
			},
			"AutomaticTransactionGenerator": {"enable": true}
		}`)

		tpl, err := Load(path)
		require.NoError(t, err)
		assert.Equal(t, 2, tpl.NumberOfConnectors)
	})

	t.Run("EVSE布局推导数量", func(t *testing.T) {
		path := writeTemplate(t, "evses.json", `{
			"baseName": "SIM-CP",
			"chargePointModel": "Virtual-201",
			"chargePointVendor": "SimVendor",
			"ocppVersion": "2.0.1",
			"Evses": {
				"1": {"Connectors": {"1": {}}},
				"2": {"Connectors": {"1": {}, "2": {}}}
			},
			"AutomaticTransactionGenerator": {"enable": false}
		}`)

		tpl, err := Load(path)
		require.NoError(t, err)
		assert.Equal(t, protocol.VersionOCPP201, tpl.Version())
		assert.Equal(t, 3, tpl.NumberOfConnectors)
	})

	t.Run("kW功率换算为瓦", func(t *testing.T) {
		path := writeTemplate(t, "power.json", `{
			"baseName": "SIM-CP",
			"chargePointModel": "Virtual-1",
			"chargePointVendor": "SimVendor",
			"power": 11,
			"powerUnit": "kW",
			"AutomaticTransactionGenerator": {"enable": false}
		}`)

		tpl, err := Load(path)
		require.NoError(t, err)
		assert.Equal(t, 11000.0, tpl.PowerW())
	})

	t.Run("文件不存在", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "missing.json"))
		assert.Error(t, err)
	})

	t.Run("非法JSON", func(t *testing.T) {
		path := writeTemplate(t, "broken.json", `{not json`)
		_, err := Load(path)
		assert.Error(t, err)
	})
}

func TestValidate(t *testing.T) {
	// base 返回一个通过校验的模板，各用例在其上注入缺陷
	base := func() *StationTemplate {
		tpl := &StationTemplate{
			BaseName:          "SIM-CP",
			ChargePointModel:  "Virtual-1",
			ChargePointVendor: "SimVendor",
		}
		tpl.applyDefaults()
		return tpl
	}

	tests := []struct {
		name    string
		mutate  func(*StationTemplate)
		wantErr string
	}{
		{
			name:    "缺少baseName",
			mutate:  func(tpl *StationTemplate) { tpl.BaseName = "" },
			wantErr: "baseName",
		},
		{
			name:    "缺少chargePointModel",
			mutate:  func(tpl *StationTemplate) { tpl.ChargePointModel = "" },
			wantErr: "chargePointModel",
		},
		{
			name:    "缺少chargePointVendor",
			mutate:  func(tpl *StationTemplate) { tpl.ChargePointVendor = "" },
			wantErr: "chargePointVendor",
		},
		{
			name:    "不支持的协议版本",
			mutate:  func(tpl *StationTemplate) { tpl.OCPPVersion = "0.9" },
			wantErr: "ocppVersion",
		},
		{
			name:    "不支持的传输协议",
			mutate:  func(tpl *StationTemplate) { tpl.OCPPProtocol = "soap" },
			wantErr: "ocppProtocol",
		},
		{
			name:    "supervision地址非ws",
			mutate:  func(tpl *StationTemplate) { tpl.SupervisionURLs = []string{"http://csms"} },
			wantErr: "ws://",
		},
		{
			name:    "概率越界",
			mutate:  func(tpl *StationTemplate) { tpl.AutomaticTransactionGenerator.ProbabilityOfStart = 1.5 },
			wantErr: "probabilityOfStart",
		},
		{
			name: "时长区间颠倒",
			mutate: func(tpl *StationTemplate) {
				tpl.AutomaticTransactionGenerator.MinDuration = 300
				tpl.AutomaticTransactionGenerator.MaxDuration = 60
			},
			wantErr: "minDuration",
		},
		{
			name:    "未知的标签分配策略",
			mutate:  func(tpl *StationTemplate) { tpl.AutomaticTransactionGenerator.IdTagDistribution = "hash" },
			wantErr: "idTagDistribution",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tpl := base()
			tt.mutate(tpl)
			err := tpl.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestStationNaming(t *testing.T) {
	tpl := &StationTemplate{BaseName: "SIM-CP", Name: "basic"}

	t.Run("实例名按序号补零", func(t *testing.T) {
		assert.Equal(t, "SIM-CP-001", tpl.StationName(1))
		assert.Equal(t, "SIM-CP-042", tpl.StationName(42))
	})

	t.Run("hashId稳定且按序号区分", func(t *testing.T) {
		h1 := tpl.HashID(1)
		h2 := tpl.HashID(2)
		assert.Len(t, h1, 32)
		assert.NotEqual(t, h1, h2)
		assert.Equal(t, h1, tpl.HashID(1)) // 同一输入必须得到同一哈希
	})
}

func TestSupervisionURL(t *testing.T) {
	t.Run("未配置时回退默认地址", func(t *testing.T) {
		tpl := &StationTemplate{}
		assert.Equal(t, "ws://fallback", tpl.SupervisionURL(1, "ws://fallback"))
	})

	t.Run("多地址按序号轮转", func(t *testing.T) {
		tpl := &StationTemplate{SupervisionURLs: []string{"ws://a", "ws://b"}}
		assert.Equal(t, "ws://a", tpl.SupervisionURL(1, ""))
		assert.Equal(t, "ws://b", tpl.SupervisionURL(2, ""))
		assert.Equal(t, "ws://a", tpl.SupervisionURL(3, ""))
	})
}

func TestLoadIdTags(t *testing.T) {
	t.Run("正常池", func(t *testing.T) {
		path := writeTemplate(t, "idtags.json", `["TAG001", " TAG002 ", ""]`)
		tags, err := LoadIdTags(path)
		require.NoError(t, err)
		assert.Equal(t, []string{"TAG001", "TAG002"}, tags)
	})

	t.Run("空池报错", func(t *testing.T) {
		path := writeTemplate(t, "empty.json", `["", "  "]`)
		_, err := LoadIdTags(path)
		assert.Error(t, err)
	})

	t.Run("文件缺失", func(t *testing.T) {
		_, err := LoadIdTags(filepath.Join(t.TempDir(), "none.json"))
		assert.Error(t, err)
	})
}
