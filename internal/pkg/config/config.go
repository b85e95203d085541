// internal/pkg/config/config.go
package config

import (
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

const defaultConfigFile = "configs/config.yaml"

// Config 是所有服务共享的配置结构，对应 configs/config.yaml
type Config struct {
	App       AppConfig       `yaml:"app"`
	Infra     InfraConfig     `yaml:"infra"`
	Lock      LockConfig      `yaml:"lock"`
	Inventory InventoryConfig `yaml:"inventory"`
	Order     OrderConfig     `yaml:"order"`
	Payment   PaymentConfig   `yaml:"payment"`
}

type AppConfig struct {
	LogLevel string `yaml:"log_level"`
}

type InfraConfig struct {
	Jaeger    JaegerConfig    `yaml:"jaeger"`
	Redis     RedisConfig     `yaml:"redis"`
	Kafka     KafkaConfig     `yaml:"kafka"`
	MySQL     MySQLConfig     `yaml:"mysql"`
	ZooKeeper ZooKeeperConfig `yaml:"zookeeper"`
	Nacos     NacosConfig     `yaml:"nacos"`
}

type JaegerConfig struct {
	Endpoint string `yaml:"endpoint"`
}

type RedisConfig struct {
	Addrs []string `yaml:"addrs"`
}

type KafkaConfig struct {
	Brokers       []string      `yaml:"brokers"`
	MaxRetries    int           `yaml:"max_retries"`
	RetryBackoff  time.Duration `yaml:"retry_backoff"`
	ConsumerGroup string        `yaml:"consumer_group"`
}

type MySQLConfig struct {
	DSN         string `yaml:"dsn"`
	AutoMigrate bool   `yaml:"auto_migrate"`
}

type ZooKeeperConfig struct {
	Servers        []string      `yaml:"servers"`
	SessionTimeout time.Duration `yaml:"session_timeout"`
}

type NacosConfig struct {
	ServerAddrs string `yaml:"server_addrs"` // 为空则不注册
	Namespace   string `yaml:"namespace"`
	Group       string `yaml:"group"`
}

// LockConfig 商品锁的默认参数
type LockConfig struct {
	Backend   string        `yaml:"backend"` // redis | zookeeper
	WaitTime  time.Duration `yaml:"wait_time"`
	LeaseTime time.Duration `yaml:"lease_time"`
}

type InventoryConfig struct {
	Mode              string        `yaml:"mode"` // local | remote，订单服务如何访问库存
	BaseURL           string        `yaml:"base_url"`
	ServiceName       string        `yaml:"service_name"`
	StoreWriteTimeout time.Duration `yaml:"store_write_timeout"`
	ReconcileInterval time.Duration `yaml:"reconcile_interval"`
	ReconcileChunk    int           `yaml:"reconcile_chunk"`
}

type OrderConfig struct {
	PaymentMode       string           `yaml:"payment_mode"`  // sync | event
	ShippingMode      string           `yaml:"shipping_mode"` // direct | event
	ProcessingTimeout time.Duration    `yaml:"processing_timeout"`
	CartBaseURL       string           `yaml:"cart_base_url"`
	MemberBaseURL     string           `yaml:"member_base_url"`
	Reconciler        ReconcilerConfig `yaml:"reconciler"`
}

// ReconcilerConfig 订单状态推进任务的参数
type ReconcilerConfig struct {
	Interval       time.Duration `yaml:"interval"`
	ChunkSize      int           `yaml:"chunk_size"`
	PendingTimeout time.Duration `yaml:"pending_timeout"`
	ShippingAfter  time.Duration `yaml:"shipping_after"`
	DeliveredAfter time.Duration `yaml:"delivered_after"`
	ConfirmAfter   time.Duration `yaml:"confirm_after"`
}

type PaymentConfig struct {
	Policy        string  `yaml:"policy"` // random | cel | approve_all
	FailureRate   float64 `yaml:"failure_rate"`
	CELExpression string  `yaml:"cel_expression"`
	// 非终态支付超过这个时间没有更新就由下一次投递接管
	StallTimeout time.Duration `yaml:"stall_timeout"`
}

// Default 返回一份可以直接在本地 docker-compose 环境运行的配置
func Default() *Config {
	return &Config{
		App: AppConfig{LogLevel: "info"},
		Infra: InfraConfig{
			Jaeger:    JaegerConfig{Endpoint: "http://localhost:14268/api/traces"},
			Redis:     RedisConfig{Addrs: []string{"localhost:6379"}},
			Kafka:     KafkaConfig{Brokers: []string{"localhost:9092"}, MaxRetries: 3, RetryBackoff: 500 * time.Millisecond},
			MySQL:     MySQLConfig{DSN: "root:root@tcp(localhost:3306)/stockflow?charset=utf8mb4&parseTime=True&loc=Local", AutoMigrate: true},
			ZooKeeper: ZooKeeperConfig{Servers: []string{"localhost:2181"}, SessionTimeout: 10 * time.Second},
			Nacos:     NacosConfig{Group: "DEFAULT_GROUP"},
		},
		Lock: LockConfig{Backend: "redis", WaitTime: 3 * time.Second, LeaseTime: 3 * time.Second},
		Inventory: InventoryConfig{
			Mode:              "local",
			ServiceName:       "inventory-service",
			StoreWriteTimeout: 5 * time.Second,
			ReconcileInterval: 24 * time.Hour,
			ReconcileChunk:    200,
		},
		Order: OrderConfig{
			PaymentMode:       "sync",
			ShippingMode:      "direct",
			ProcessingTimeout: 30 * time.Second,
			Reconciler: ReconcilerConfig{
				Interval:       time.Minute,
				ChunkSize:      100,
				PendingTimeout: 30 * time.Minute,
				ShippingAfter:  24 * time.Hour,
				DeliveredAfter: 48 * time.Hour,
				ConfirmAfter:   7 * 24 * time.Hour,
			},
		},
		Payment: PaymentConfig{Policy: "random", FailureRate: 0.2, StallTimeout: 2 * time.Second},
	}
}

// Load 读取 YAML 配置文件，并用环境变量覆盖基础设施地址。
// 文件不存在时使用默认配置。
func Load(path string) (*Config, error) {
	// 本地开发时允许用 .env 注入环境变量，文件不存在不是错误
	_ = godotenv.Load()

	if path == "" {
		path = getEnv("CONFIG_FILE", defaultConfigFile)
	}

	cfg := Default()
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, errors.Wrapf(err, "parse config file %s", path)
		}
	case os.IsNotExist(err):
	default:
		return nil, errors.Wrapf(err, "read config file %s", path)
	}

	applyEnv(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate 检查互斥选项的取值
func (c *Config) Validate() error {
	switch c.Lock.Backend {
	case "redis", "zookeeper":
	default:
		return errors.Errorf("unknown lock backend %q", c.Lock.Backend)
	}
	switch c.Order.PaymentMode {
	case "sync", "event":
	default:
		return errors.Errorf("unknown payment mode %q", c.Order.PaymentMode)
	}
	switch c.Order.ShippingMode {
	case "direct", "event":
	default:
		return errors.Errorf("unknown shipping mode %q", c.Order.ShippingMode)
	}
	switch c.Inventory.Mode {
	case "local", "remote":
	default:
		return errors.Errorf("unknown inventory mode %q", c.Inventory.Mode)
	}
	if c.Payment.FailureRate < 0 || c.Payment.FailureRate > 1 {
		return errors.Errorf("payment failure rate %v out of range [0,1]", c.Payment.FailureRate)
	}
	if c.Lock.WaitTime <= 0 || c.Lock.LeaseTime <= 0 {
		return errors.New("lock wait_time and lease_time must be positive")
	}
	return nil
}

func applyEnv(cfg *Config) {
	if v := getEnv("JAEGER_ENDPOINT", ""); v != "" {
		cfg.Infra.Jaeger.Endpoint = v
	}
	if v := getEnv("REDIS_ADDRS", ""); v != "" {
		cfg.Infra.Redis.Addrs = splitCSV(v)
	}
	if v := getEnv("KAFKA_BROKERS", ""); v != "" {
		cfg.Infra.Kafka.Brokers = splitCSV(v)
	}
	if v := getEnv("MYSQL_DSN", ""); v != "" {
		cfg.Infra.MySQL.DSN = v
	}
	if v := getEnv("ZK_SERVERS", ""); v != "" {
		cfg.Infra.ZooKeeper.Servers = splitCSV(v)
	}
	if v := getEnv("NACOS_SERVER_ADDRS", ""); v != "" {
		cfg.Infra.Nacos.ServerAddrs = v
	}
	if v := getEnv("NACOS_NAMESPACE", ""); v != "" {
		cfg.Infra.Nacos.Namespace = v
	}
	if v := getEnv("LOG_LEVEL", ""); v != "" {
		cfg.App.LogLevel = v
	}
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func splitCSV(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}
