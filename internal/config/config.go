package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config 模拟器配置结构
type Config struct {
	App        AppConfig            `mapstructure:"app"`
	CSMS       CSMSConfig           `mapstructure:"csms"`
	Worker     WorkerConfig         `mapstructure:"worker"`
	Stations   []StationGroupConfig `mapstructure:"stations"`
	Storage    StorageConfig        `mapstructure:"storage"`
	Kafka      KafkaConfig          `mapstructure:"kafka"`
	Log        LogConfig            `mapstructure:"log"`
	Monitoring MonitoringConfig     `mapstructure:"monitoring"`
}

// AppConfig 应用配置
type AppConfig struct {
	Name    string `mapstructure:"name"`
	Version string `mapstructure:"version"`
	Profile string `mapstructure:"profile"`
}

// CSMSConfig 中央系统连接配置
// URL 为 CSMS 的 WebSocket 入口，各站点在其后追加自己的站点 ID
type CSMSConfig struct {
	URL                   string        `mapstructure:"url"`
	ConnectTimeout        time.Duration `mapstructure:"connect_timeout"`
	MessageTimeout        time.Duration `mapstructure:"message_timeout"`
	MessageRetries        int           `mapstructure:"message_retries"`
	PingInterval          time.Duration `mapstructure:"ping_interval"`
	ReconnectInitialDelay time.Duration `mapstructure:"reconnect_initial_delay"`
	ReconnectMaxDelay     time.Duration `mapstructure:"reconnect_max_delay"`
	ReconnectMaxRetries   uint64        `mapstructure:"reconnect_max_retries"` // 0 表示无限重试
	QueueHighWater        int           `mapstructure:"queue_high_water"`      // 出站积压到该帧数时暂停生成交易
	QueueLowWater         int           `mapstructure:"queue_low_water"`       // 积压回落到该帧数以下时恢复
	BasicAuthUser         string        `mapstructure:"basic_auth_user"`
	BasicAuthPassword     string        `mapstructure:"basic_auth_password"`
	TLSSkipVerify         bool          `mapstructure:"tls_skip_verify"`
}

// WorkerConfig 工作协程组配置
type WorkerConfig struct {
	ProcessType       string        `mapstructure:"process_type"` // workerSet, fixedPool, dynamicPool
	ElementsPerWorker int           `mapstructure:"elements_per_worker"`
	PoolMinSize       int           `mapstructure:"pool_min_size"`
	PoolMaxSize       int           `mapstructure:"pool_max_size"`
	ElementAddDelay   time.Duration `mapstructure:"element_add_delay"`
	IdleTimeout       time.Duration `mapstructure:"idle_timeout"`
}

// StationGroupConfig 站点组配置：一个模板展开为 count 个站点实例
type StationGroupConfig struct {
	Template string `mapstructure:"template"`
	Count    int    `mapstructure:"count"`
}

// StorageConfig 站点快照存储配置
type StorageConfig struct {
	Type    string      `mapstructure:"type"` // none, file, redis
	FileDir string      `mapstructure:"file_dir"`
	Redis   RedisConfig `mapstructure:"redis"`
}

// RedisConfig Redis配置
type RedisConfig struct {
	Addr        string        `mapstructure:"addr"`
	Password    string        `mapstructure:"password"`
	DB          int           `mapstructure:"db"`
	SnapshotTTL time.Duration `mapstructure:"snapshot_ttl"`
	DialTimeout time.Duration `mapstructure:"dial_timeout"`
}

// KafkaConfig 车队事件导出配置，brokers 为空时禁用
type KafkaConfig struct {
	Brokers        []string      `mapstructure:"brokers"`
	Topic          string        `mapstructure:"topic"`
	FlushFrequency time.Duration `mapstructure:"flush_frequency"`
}

// LogConfig 日志配置
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
	Caller bool   `mapstructure:"caller"`
	Async  bool   `mapstructure:"async"`
}

// MonitoringConfig 监控配置
type MonitoringConfig struct {
	MetricsAddr     string `mapstructure:"metrics_addr"`
	HealthCheckPort int    `mapstructure:"health_check_port"`
}

// Load 加载配置：默认值 < 配置文件 < SIMULATOR_ 环境变量
func Load() (*Config, error) {
	viper.SetConfigName("simulator")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./configs")
	viper.AddConfigPath(".")
	if p := viper.GetString("config_path"); p != "" {
		viper.AddConfigPath(p)
	}

	viper.SetEnvPrefix("SIMULATOR")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		// 没有配置文件时允许纯默认值+环境变量运行
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// setDefaults 设置各配置组的默认值
func setDefaults() {
	viper.SetDefault("app.name", "charge-station-simulator")
	viper.SetDefault("app.version", "1.0.0")
	viper.SetDefault("app.profile", "dev")

	viper.SetDefault("csms.url", "ws://localhost:8080/ocpp")
	viper.SetDefault("csms.connect_timeout", "30s")
	viper.SetDefault("csms.message_timeout", "30s")
	viper.SetDefault("csms.message_retries", 0)
	viper.SetDefault("csms.ping_interval", "0s")
	viper.SetDefault("csms.reconnect_initial_delay", "1s")
	viper.SetDefault("csms.reconnect_max_delay", "60s")
	viper.SetDefault("csms.reconnect_max_retries", 0)
	viper.SetDefault("csms.queue_high_water", 48)
	viper.SetDefault("csms.queue_low_water", 16)
	viper.SetDefault("csms.tls_skip_verify", false)

	viper.SetDefault("worker.process_type", "workerSet")
	viper.SetDefault("worker.elements_per_worker", 1)
	viper.SetDefault("worker.pool_min_size", 4)
	viper.SetDefault("worker.pool_max_size", 16)
	viper.SetDefault("worker.element_add_delay", "0s")
	viper.SetDefault("worker.idle_timeout", "60s")

	viper.SetDefault("storage.type", "none")
	viper.SetDefault("storage.file_dir", "./state")
	viper.SetDefault("storage.redis.addr", "localhost:6379")
	viper.SetDefault("storage.redis.db", 0)
	viper.SetDefault("storage.redis.snapshot_ttl", "24h")
	viper.SetDefault("storage.redis.dial_timeout", "5s")

	viper.SetDefault("kafka.topic", "simulator-events")
	viper.SetDefault("kafka.flush_frequency", "500ms")

	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.format", "console")
	viper.SetDefault("log.output", "stdout")
	viper.SetDefault("log.caller", false)
	viper.SetDefault("log.async", false)

	viper.SetDefault("monitoring.metrics_addr", ":9464")
	viper.SetDefault("monitoring.health_check_port", 8081)
}

// Validate 校验配置的基本约束
func (c *Config) Validate() error {
	if c.CSMS.URL == "" {
		return fmt.Errorf("csms.url is required")
	}
	if !strings.HasPrefix(c.CSMS.URL, "ws://") && !strings.HasPrefix(c.CSMS.URL, "wss://") {
		return fmt.Errorf("csms.url must use ws:// or wss:// scheme, got %q", c.CSMS.URL)
	}
	if c.CSMS.QueueLowWater < 0 || c.CSMS.QueueHighWater < 0 {
		return fmt.Errorf("csms queue water marks must be >= 0")
	}
	if c.CSMS.QueueHighWater > 0 && c.CSMS.QueueLowWater >= c.CSMS.QueueHighWater {
		return fmt.Errorf("csms.queue_low_water must be below csms.queue_high_water")
	}

	switch c.Worker.ProcessType {
	case "workerSet", "fixedPool", "dynamicPool":
	default:
		return fmt.Errorf("worker.process_type must be workerSet, fixedPool or dynamicPool, got %q", c.Worker.ProcessType)
	}
	if c.Worker.ElementsPerWorker < 1 {
		return fmt.Errorf("worker.elements_per_worker must be >= 1")
	}
	if c.Worker.PoolMaxSize < 1 {
		return fmt.Errorf("worker.pool_max_size must be >= 1")
	}
	if c.Worker.PoolMinSize < 0 || c.Worker.PoolMinSize > c.Worker.PoolMaxSize {
		return fmt.Errorf("worker.pool_min_size must be in [0, pool_max_size]")
	}

	switch c.Storage.Type {
	case "none", "file", "redis":
	default:
		return fmt.Errorf("storage.type must be none, file or redis, got %q", c.Storage.Type)
	}

	for i, group := range c.Stations {
		if group.Template == "" {
			return fmt.Errorf("stations[%d].template is required", i)
		}
		if group.Count < 1 {
			return fmt.Errorf("stations[%d].count must be >= 1", i)
		}
	}
	return nil
}

// KafkaEnabled 是否启用 Kafka 事件导出
func (c *Config) KafkaEnabled() bool {
	return len(c.Kafka.Brokers) > 0
}

// GetMetricsAddr 获取监控地址
func (c *Config) GetMetricsAddr() string {
	return c.Monitoring.MetricsAddr
}

// GetHealthCheckAddr 获取健康检查地址
func (c *Config) GetHealthCheckAddr() string {
	return fmt.Sprintf(":%d", c.Monitoring.HealthCheckPort)
}

// IsDevelopment 是否为开发环境
func (c *Config) IsDevelopment() bool {
	return c.App.Profile == "dev" || c.App.Profile == "development"
}

// IsTest 是否为测试环境
func (c *Config) IsTest() bool {
	return c.App.Profile == "test"
}

// IsProduction 是否为生产环境
func (c *Config) IsProduction() bool {
	return c.App.Profile == "prod" || c.App.Profile == "production"
}
