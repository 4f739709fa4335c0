package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/charging-platform/charge-station-simulator/internal/config"
)

// Snapshot 站点停机时序列化的持久状态，重启时据此恢复
// 声明性字段以模板为准，计数器类字段以快照为准
type Snapshot struct {
	StationID   string    `json:"station_id"`
	HashID      string    `json:"hash_id"`
	OCPPVersion string    `json:"ocpp_version"`
	BootStatus  string    `json:"boot_status,omitempty"`
	TxCounter   int64     `json:"tx_counter,omitempty"` // 1.6 本地事务号水位
	SavedAt     time.Time `json:"saved_at"`

	ConfigurationKeys []ConfigurationKeySnapshot `json:"configuration_keys,omitempty"` // 1.6 配置键表
	Variables         []VariableSnapshot         `json:"variables,omitempty"`          // 2.0.1 持久变量
	Connectors        []ConnectorSnapshot        `json:"connectors,omitempty"`
	ATG               *ATGSnapshot               `json:"atg,omitempty"`
}

// ConfigurationKeySnapshot 1.6 配置键的落盘形态
type ConfigurationKeySnapshot struct {
	Key      string `json:"key"`
	Value    string `json:"value"`
	Readonly bool   `json:"readonly,omitempty"`
}

// VariableSnapshot 2.0.1 持久变量的落盘形态
type VariableSnapshot struct {
	Component         string `json:"component"`
	ComponentInstance string `json:"component_instance,omitempty"`
	EvseID            int    `json:"evse_id,omitempty"`
	ConnectorID       int    `json:"connector_id,omitempty"`
	Variable          string `json:"variable"`
	VariableInstance  string `json:"variable_instance,omitempty"`
	Value             string `json:"value"`
}

// ConnectorSnapshot 连接器的持久计数
type ConnectorSnapshot struct {
	ID           int     `json:"id"`
	EvseID       int     `json:"evse_id,omitempty"`
	Availability string  `json:"availability,omitempty"`
	MeterWh      float64 `json:"meter_wh"`
	SeqNo        int     `json:"seq_no,omitempty"`
}

// ATGSnapshot 自动交易生成器的累计统计
type ATGSnapshot struct {
	StartedAt  time.Time              `json:"started_at,omitempty"`
	StopDate   time.Time              `json:"stop_date,omitempty"`
	Connectors []ATGConnectorSnapshot `json:"connectors,omitempty"`
}

// ATGConnectorSnapshot 单连接器生成器的累计统计与运行标记
type ATGConnectorSnapshot struct {
	ConnectorID               int       `json:"connector_id"`
	Running                   bool      `json:"running,omitempty"`
	AcceptedAuthorizeRequests int64     `json:"accepted_authorize_requests,omitempty"`
	RejectedAuthorizeRequests int64     `json:"rejected_authorize_requests,omitempty"`
	StartRequests             int64     `json:"start_requests"`
	AcceptedStartRequests     int64     `json:"accepted_start_requests"`
	RejectedStartRequests     int64     `json:"rejected_start_requests"`
	StopRequests              int64     `json:"stop_requests"`
	AcceptedStopRequests      int64     `json:"accepted_stop_requests,omitempty"`
	RejectedStopRequests      int64     `json:"rejected_stop_requests,omitempty"`
	SkippedConsecutive        int64     `json:"skipped_consecutive,omitempty"`
	SkippedTotal              int64     `json:"skipped_total,omitempty"`
	EnergyWh                  float64   `json:"energy_wh"`
	LastRunAt                 time.Time `json:"last_run_at,omitempty"`
	StoppedAt                 time.Time `json:"stopped_at,omitempty"`
}

// StationStore 定义站点快照存储的接口
type StationStore interface {
	// Save 写入或覆盖一个站点的快照
	Save(ctx context.Context, snapshot *Snapshot) error

	// Load 读取站点快照，不存在时返回 (nil, nil)
	Load(ctx context.Context, stationID string) (*Snapshot, error)

	// Delete 删除站点快照
	Delete(ctx context.Context, stationID string) error

	// Close 关闭与存储后端的连接
	Close() error
}

// NewStore 按配置创建快照存储，type为none时返回空实现
func NewStore(cfg config.StorageConfig) (StationStore, error) {
	switch cfg.Type {
	case "", "none":
		return NopStore{}, nil
	case "file":
		return NewFileStorage(cfg.FileDir)
	case "redis":
		return NewRedisStorage(cfg.Redis)
	default:
		return nil, fmt.Errorf("unknown storage type %q", cfg.Type)
	}
}

// NopStore 不落盘的空实现，storage.type=none 时使用
type NopStore struct{}

// Save 丢弃快照
func (NopStore) Save(ctx context.Context, snapshot *Snapshot) error { return nil }

// Load 始终返回未找到
func (NopStore) Load(ctx context.Context, stationID string) (*Snapshot, error) { return nil, nil }

// Delete 无操作
func (NopStore) Delete(ctx context.Context, stationID string) error { return nil }

// Close 无操作
func (NopStore) Close() error { return nil }
