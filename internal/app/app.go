// Package app wires configuration into stores, the work queue, the
// notifier and the dispatch pipeline for cmd/server and cmd/dispatcher.
package app

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"

	"joinflow/internal/activity"
	"joinflow/internal/dispatch"
	groupservice "joinflow/internal/group/service"
	groupstore "joinflow/internal/group/store"
	invitationservice "joinflow/internal/invitation/service"
	invitationstore "joinflow/internal/invitation/store"
	jrservice "joinflow/internal/joinrequest/service"
	jrstore "joinflow/internal/joinrequest/store"
	"joinflow/internal/notify"
	"joinflow/internal/platform/config"
	"joinflow/internal/platform/kafka"
	"joinflow/internal/platform/postgres"
	"joinflow/internal/platform/queue"
	"joinflow/internal/platform/redis"
	userservice "joinflow/internal/user/service"
	userstore "joinflow/internal/user/store"
	txcontext "joinflow/pkg/platform/tx"
)

// UserStore is what both the user service and the workers need.
type UserStore interface {
	userservice.Store
	dispatch.UserStore
}

// InvitationStore is what both the invitation service and the dispatcher need.
type InvitationStore interface {
	invitationservice.Store
	dispatch.InvitationStore
}

// JoinRequestStore is what both the join request service and the workers need.
type JoinRequestStore interface {
	jrservice.Store
	dispatch.JoinRequestFinder
}

// TxRunner is implemented by txcontext.Runner and txcontext.NoTx.
type TxRunner interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// Stores holds one implementation of every store. DB is nil for the
// in-memory variant.
type Stores struct {
	DB           *sql.DB
	Tx           TxRunner
	Activities   activity.Store
	Users        UserStore
	Groups       groupservice.Store
	Invitations  InvitationStore
	JoinRequests JoinRequestStore
}

// OpenStores connects to Postgres when a DSN is configured and falls back to
// process-local stores otherwise.
func OpenStores(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Stores, error) {
	db, err := postgres.Open(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}
	if db == nil {
		logger.Warn("no database configured, using in-memory stores")
		return &Stores{
			Tx:           txcontext.NoTx{},
			Activities:   activity.NewStore(nil, cfg.Dispatch.ScanPageSize),
			Users:        userstore.NewInMemory(),
			Groups:       groupstore.NewInMemory(),
			Invitations:  invitationstore.NewInMemory(),
			JoinRequests: jrstore.NewInMemory(),
		}, nil
	}
	if cfg.Database.Migrate {
		if err := postgres.Migrate(ctx, db, logger); err != nil {
			db.Close()
			return nil, err
		}
	}
	return &Stores{
		DB:           db,
		Tx:           txcontext.NewRunner(db),
		Activities:   activity.NewStore(db, cfg.Dispatch.ScanPageSize),
		Users:        userstore.NewPostgres(db),
		Groups:       groupstore.NewPostgres(db),
		Invitations:  invitationstore.NewPostgres(db),
		JoinRequests: jrstore.NewPostgres(db),
	}, nil
}

// Close releases the database pool, if any.
func (s *Stores) Close() error {
	if s.DB == nil {
		return nil
	}
	return s.DB.Close()
}

// WorkQueue is a queue.Queue that may hold a connection.
type WorkQueue struct {
	queue.Queue
	ping  func(ctx context.Context) error
	close func() error
}

// Ping checks the backend connection. The memory queue is always reachable.
func (q *WorkQueue) Ping(ctx context.Context) error {
	if q.ping == nil {
		return nil
	}
	return q.ping(ctx)
}

func (q *WorkQueue) Close() error {
	if q.close == nil {
		return nil
	}
	return q.close()
}

// OpenQueue builds the configured work queue backend.
func OpenQueue(ctx context.Context, cfg *config.Config) (*WorkQueue, error) {
	switch cfg.Dispatch.QueueBackend {
	case config.QueueRedis:
		client, err := redis.New(ctx, cfg.Redis)
		if err != nil {
			return nil, err
		}
		if client == nil {
			return nil, fmt.Errorf("redis queue requires redis.url")
		}
		q := queue.NewRedis(client.Client, client.Key("queue"), cfg.Dispatch.VisibilityTimeout)
		return &WorkQueue{Queue: q, ping: client.Health, close: client.Close}, nil
	default:
		return &WorkQueue{Queue: queue.NewMemory(cfg.Dispatch.VisibilityTimeout)}, nil
	}
}

// SharedQueue reports whether the queue can be reached from another process.
func SharedQueue(cfg *config.Config) bool {
	return cfg.Dispatch.QueueBackend == config.QueueRedis
}

// OpenNotifier builds the configured notifier. The returned close func is
// never nil.
func OpenNotifier(ctx context.Context, cfg *config.Config, logger *slog.Logger) (notify.Notifier, func(), error) {
	switch cfg.Dispatch.NotifierBackend {
	case config.NotifierKafka:
		client, err := kafka.NewClient(cfg.Kafka.Brokers, cfg.Kafka.ClientID)
		if err != nil {
			return nil, nil, err
		}
		if err := kafka.Ping(ctx, client); err != nil {
			client.Close()
			return nil, nil, err
		}
		if err := kafka.EnsureTopic(ctx, client, cfg.Kafka.NotificationTopic, cfg.Kafka.Partitions, cfg.Kafka.ReplicationFactor); err != nil {
			client.Close()
			return nil, nil, err
		}
		logger.Info("publishing notifications to kafka", "topic", cfg.Kafka.NotificationTopic)
		return notify.NewKafkaNotifier(client, cfg.Kafka.NotificationTopic), client.Close, nil
	default:
		return notify.NewLogNotifier(logger), func() {}, nil
	}
}

// NewPipeline builds the dispatch pipeline over stores. Metrics are
// registered on reg.
func NewPipeline(cfg *config.Config, stores *Stores, q queue.Queue, notifier notify.Notifier, logger *slog.Logger, reg prometheus.Registerer) *dispatch.Pipeline {
	groups := groupservice.New(stores.Groups, stores.Activities, stores.Tx, logger)
	return dispatch.NewPipeline(dispatch.Deps{
		Activities:  stores.Activities,
		Requests:    stores.JoinRequests,
		Groups:      groups,
		Users:       stores.Users,
		Invitations: stores.Invitations,
		Tx:          stores.Tx,
	}, q, notifier, dispatch.PipelineConfig{
		ScanInterval:     cfg.Dispatch.ScanInterval,
		WorkersPerFamily: cfg.Dispatch.WorkersPerFamily,
		InvitationBatch:  cfg.Dispatch.InvitationBatch,
	}, logger, dispatch.NewMetrics(reg))
}
