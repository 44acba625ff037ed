package config

import (
	"fmt"
)

// Validate performs business-rule validation on the loaded configuration.
func (c *Config) Validate() error {
	if c.Auth.JWTSigningKey == "" {
		return fmt.Errorf("auth.jwt_signing_key is required")
	}
	if err := c.Dispatch.validate(); err != nil {
		return fmt.Errorf("dispatch: %w", err)
	}
	if c.Dispatch.QueueBackend == QueueRedis && c.Redis.URL == "" {
		return fmt.Errorf("dispatch.queue_backend=redis requires redis.url")
	}
	if c.Dispatch.NotifierBackend == NotifierKafka && c.Kafka.Brokers == "" {
		return fmt.Errorf("dispatch.notifier_backend=kafka requires kafka.brokers")
	}
	return nil
}

func (d *DispatchConfig) validate() error {
	if d.ScanInterval <= 0 {
		return fmt.Errorf("scan_interval must be > 0 (got %s)", d.ScanInterval)
	}
	if d.VisibilityTimeout <= 0 {
		return fmt.Errorf("visibility_timeout must be > 0 (got %s)", d.VisibilityTimeout)
	}
	if d.ScanPageSize <= 0 {
		return fmt.Errorf("scan_page_size must be > 0 (got %d)", d.ScanPageSize)
	}
	if d.InvitationBatch <= 0 {
		return fmt.Errorf("invitation_batch must be > 0 (got %d)", d.InvitationBatch)
	}
	if d.WorkersPerFamily <= 0 {
		return fmt.Errorf("workers_per_family must be > 0 (got %d)", d.WorkersPerFamily)
	}
	switch d.QueueBackend {
	case QueueMemory, QueueRedis:
	default:
		return fmt.Errorf("unknown queue_backend %q", d.QueueBackend)
	}
	switch d.NotifierBackend {
	case NotifierLog, NotifierKafka:
	default:
		return fmt.Errorf("unknown notifier_backend %q", d.NotifierBackend)
	}
	return nil
}
