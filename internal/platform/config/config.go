package config

import (
	"time"
)

// Config is the root configuration shared by cmd/server and cmd/dispatcher.
type Config struct {
	Server   Server         `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	Kafka    KafkaConfig    `yaml:"kafka"`
	Auth     AuthConfig     `yaml:"auth"`
	Dispatch DispatchConfig `yaml:"dispatch"`
	Users    UsersConfig    `yaml:"users"`
	Log      LogConfig      `yaml:"log"`
}

// Server captures HTTP server level configuration.
type Server struct {
	Addr            string        `yaml:"addr"             env:"JOINFLOW_ADDR"             env-default:":8080"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"JOINFLOW_SHUTDOWN_TIMEOUT" env-default:"10s"`
	RequestTimeout  time.Duration `yaml:"request_timeout"  env:"JOINFLOW_REQUEST_TIMEOUT"  env-default:"30s"`
}

// DatabaseConfig holds PostgreSQL connection settings.
// An empty DSN selects the in-memory stores.
type DatabaseConfig struct {
	DSN             string        `yaml:"dsn"                env:"DATABASE_DSN"`
	MaxOpenConns    int           `yaml:"max_open_conns"     env:"DATABASE_MAX_OPEN_CONNS"     env-default:"25"`
	MaxIdleConns    int           `yaml:"max_idle_conns"     env:"DATABASE_MAX_IDLE_CONNS"     env-default:"5"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"  env:"DATABASE_CONN_MAX_LIFETIME"  env-default:"1h"`
	ConnMaxIdleTime time.Duration `yaml:"conn_max_idle_time" env:"DATABASE_CONN_MAX_IDLE_TIME" env-default:"30m"`
	Migrate         bool          `yaml:"migrate"            env:"DATABASE_MIGRATE"            env-default:"true"`
}

// RedisConfig holds the Redis settings used by the Redis work queue.
type RedisConfig struct {
	URL          string        `yaml:"url"            env:"REDIS_URL"`
	PoolSize     int           `yaml:"pool_size"      env:"REDIS_POOL_SIZE"      env-default:"10"`
	MinIdleConns int           `yaml:"min_idle_conns" env:"REDIS_MIN_IDLE_CONNS" env-default:"2"`
	DialTimeout  time.Duration `yaml:"dial_timeout"   env:"REDIS_DIAL_TIMEOUT"   env-default:"5s"`
	ReadTimeout  time.Duration `yaml:"read_timeout"   env:"REDIS_READ_TIMEOUT"   env-default:"3s"`
	WriteTimeout time.Duration `yaml:"write_timeout"  env:"REDIS_WRITE_TIMEOUT"  env-default:"3s"`
	KeyPrefix    string        `yaml:"key_prefix"     env:"REDIS_KEY_PREFIX"     env-default:"joinflow"`
}

// KafkaConfig holds settings for the Kafka notifier.
type KafkaConfig struct {
	Brokers           string `yaml:"brokers"            env:"KAFKA_BROKERS"`
	NotificationTopic string `yaml:"notification_topic" env:"KAFKA_NOTIFICATION_TOPIC" env-default:"joinflow.notifications"`
	ClientID          string `yaml:"client_id"          env:"KAFKA_CLIENT_ID"          env-default:"joinflow"`
	Partitions        int32  `yaml:"partitions"         env:"KAFKA_PARTITIONS"         env-default:"3"`
	ReplicationFactor int16  `yaml:"replication_factor" env:"KAFKA_REPLICATION_FACTOR" env-default:"1"`
}

// AuthConfig holds bearer token settings for the HTTP API.
type AuthConfig struct {
	JWTSigningKey string        `yaml:"jwt_signing_key" env:"JWT_SIGNING_KEY" env-default:"dev-secret-key-change-in-production"`
	JWTIssuer     string        `yaml:"jwt_issuer"      env:"JWT_ISSUER"      env-default:"joinflow"`
	TokenTTL      time.Duration `yaml:"token_ttl"       env:"JWT_TOKEN_TTL"   env-default:"1h"`
}

// Queue backends.
const (
	QueueMemory = "memory"
	QueueRedis  = "redis"
)

// Notifier backends.
const (
	NotifierLog   = "log"
	NotifierKafka = "kafka"
)

// DispatchConfig controls the readiness scanner and delivery workers.
type DispatchConfig struct {
	ScanInterval      time.Duration `yaml:"scan_interval"      env:"DISPATCH_SCAN_INTERVAL"      env-default:"1m"`
	VisibilityTimeout time.Duration `yaml:"visibility_timeout" env:"DISPATCH_VISIBILITY_TIMEOUT" env-default:"5m"`
	ScanPageSize      int           `yaml:"scan_page_size"     env:"DISPATCH_SCAN_PAGE_SIZE"     env-default:"100"`
	InvitationBatch   int           `yaml:"invitation_batch"   env:"DISPATCH_INVITATION_BATCH"   env-default:"50"`
	WorkersPerFamily  int           `yaml:"workers_per_family" env:"DISPATCH_WORKERS_PER_FAMILY" env-default:"1"`
	QueueBackend      string        `yaml:"queue_backend"      env:"DISPATCH_QUEUE_BACKEND"      env-default:"memory"`
	NotifierBackend   string        `yaml:"notifier_backend"   env:"DISPATCH_NOTIFIER_BACKEND"   env-default:"log"`
	// Embedded runs the scanner and workers inside cmd/server. Always on
	// for in-memory stores, which cannot be shared across processes.
	Embedded bool `yaml:"embedded" env:"DISPATCH_EMBEDDED" env-default:"false"`
}

// UsersConfig controls the user approval flow.
type UsersConfig struct {
	RequireApproval bool     `yaml:"require_approval"  env:"USERS_REQUIRE_APPROVAL" env-default:"false"`
	SuperUserEmails []string `yaml:"super_user_emails" env:"USERS_SUPER_USER_EMAILS" env-separator:","`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `yaml:"level"  env:"LOG_LEVEL"  env-default:"info"`
	Format string `yaml:"format" env:"LOG_FORMAT" env-default:"json"`
}
