package main

import (
	"context"
	"time"

	"go.uber.org/zap"

	hostingapp "github.com/tffhost/backend/internal/application/hosting"
	nodeapp "github.com/tffhost/backend/internal/application/node"
	"github.com/tffhost/backend/internal/domain/integration"
	"github.com/tffhost/backend/internal/domain/shared"
	"github.com/tffhost/backend/internal/infrastructure/config"
	"github.com/tffhost/backend/internal/infrastructure/scheduler"
	"github.com/tffhost/backend/internal/infrastructure/storage"
)

// Names of the periodic jobs, as used by the job endpoints
const (
	jobNodeStatusCheck  = "node_status_check"
	jobOnlineOrderCheck = "online_order_check"
)

// periodicJobs returns the jobs run by the scheduler
func periodicJobs(cfg config.SchedulerConfig, nodes *nodeapp.Service, orders *hostingapp.Service, log *zap.Logger) []scheduler.Job {
	return []scheduler.Job{
		{
			Name:     jobNodeStatusCheck,
			Schedule: cfg.NodeCheckSchedule,
			Run: func(ctx context.Context, now time.Time) error {
				res, err := nodes.CheckNodeStatuses(ctx, now)
				if err != nil {
					return err
				}
				log.Info("Node statuses checked",
					zap.Int("checked", res.Checked),
					zap.Int("notifications", res.Notifications),
					zap.Int("created", res.Created),
					zap.Int("failed", res.Failed),
					zap.Int("stat_points", res.StatPoints),
				)
				return nil
			},
		},
		{
			Name:     jobOnlineOrderCheck,
			Schedule: cfg.OnlineCheckSchedule,
			Run: func(ctx context.Context, now time.Time) error {
				res, err := orders.CheckOnlineOrders(ctx, now)
				if err != nil {
					return err
				}
				log.Info("Shipped orders checked",
					zap.Int("checked", res.Checked),
					zap.Int("arrived", res.Arrived),
					zap.Int("failed", res.Failed),
				)
				return nil
			},
		},
	}
}

// newDocumentStore uses S3 when a bucket is configured. Development setups without
// object storage keep documents in memory.
func newDocumentStore(cfg *config.Config, log *zap.Logger) integration.DocumentStore {
	if cfg.Storage.Bucket == "" {
		if cfg.App.Env == "production" {
			log.Fatal("storage.bucket is required in production")
		}
		log.Warn("No storage bucket configured, documents are kept in memory")
		return storage.NewMemoryDocumentStore("http://localhost:" + cfg.App.Port + "/documents")
	}

	store, err := storage.NewS3DocumentStore(&cfg.Storage, storage.WithLogger(log))
	if err != nil {
		log.Fatal("Document store", zap.Error(err))
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := store.EnsureBucket(ctx); err != nil {
		log.Fatal("Document bucket", zap.Error(err))
	}
	return store
}

func idempotencyConfig(ttl time.Duration) shared.IdempotencyConfig {
	cfg := shared.DefaultIdempotencyConfig()
	if ttl > 0 {
		cfg.TTL = ttl
	}
	return cfg
}
