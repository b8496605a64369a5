package quail

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	backend "github.com/redis/go-redis/v9"

	"github.com/quailbot/quail/internal/logging"
	"github.com/quailbot/quail/pkg/adapters/memory"
	redisadapter "github.com/quailbot/quail/pkg/adapters/redis"
	"github.com/quailbot/quail/pkg/adapters/sqlite"
	"github.com/quailbot/quail/pkg/flow"
	"github.com/quailbot/quail/pkg/persist"
	"github.com/quailbot/quail/pkg/persist/middleware"
	"github.com/quailbot/quail/pkg/ports"
)

// Options describes one process's persistence composition. The only storage
// decision is RedisURL: set it and conversational state lives in Redis,
// shared across replicas; leave it empty and state stays in process memory.
type Options struct {
	// RedisURL selects the remote light backend when non-empty.
	RedisURL string

	// RedisKeyPrefix namespaces session keys. Default "quail:session:".
	RedisKeyPrefix string

	// RedisLockPrefix namespaces distributed lock keys. Default "quail:".
	RedisLockPrefix string

	// DatabaseDSN locates the durable relational store, e.g. "file:quail.db".
	DatabaseDSN string

	// SessionTTL expires idle conversational state. Zero disables expiry.
	SessionTTL time.Duration

	// EncryptionKey, when 32 bytes long, enables AES-256-GCM encryption of
	// session values at rest.
	EncryptionKey []byte

	// Registry receives light-store metrics when non-nil.
	Registry *prometheus.Registry

	// Logger for lifecycle events. Defaults to a no-op logger.
	Logger *slog.Logger
}

// App is a fully composed and initialized persistence core. Hand App.Manager
// (or App.Flow) to every component that needs session state; construct
// exactly one App per process.
type App struct {
	Manager *persist.Manager
	Flow    *flow.Store
}

// Open builds the light backend selected by opts, the durable factory, and
// the persistence session manager, then runs the Initialize handshake.
// A handshake failure aborts startup: no partially-initialized App is ever
// returned.
func Open(ctx context.Context, opts Options) (*App, error) {
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNop()
	}

	if opts.DatabaseDSN == "" {
		return nil, fmt.Errorf("database DSN is required")
	}

	var (
		light  ports.LightStore
		locker ports.Locker
	)
	if opts.RedisURL != "" {
		ropts, err := backend.ParseURL(opts.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("invalid redis url: %w", err)
		}
		client := backend.NewClient(ropts)

		storeOpts := []redisadapter.Option{}
		if opts.RedisKeyPrefix != "" {
			storeOpts = append(storeOpts, redisadapter.WithPrefix(opts.RedisKeyPrefix))
		}
		light = redisadapter.NewFromClient(client, storeOpts...)

		lockPrefix := opts.RedisLockPrefix
		if lockPrefix == "" {
			lockPrefix = "quail:"
		}
		locker = redisadapter.NewLocker(client, lockPrefix)
		logger.Info("light backend: redis")
	} else {
		light = memory.New()
		locker = memory.NewLocker()
		logger.Info("light backend: in-process memory")
	}

	var mws []middleware.Middleware
	if opts.Registry != nil {
		mws = append(mws, middleware.NewInstrumentation(middleware.NewMetrics(opts.Registry)))
	}
	if len(opts.EncryptionKey) > 0 {
		if len(opts.EncryptionKey) != 32 {
			_ = light.Close()
			return nil, fmt.Errorf("encryption key must be 32 bytes, got %d", len(opts.EncryptionKey))
		}
		mws = append(mws, middleware.NewEncryption(middleware.EncryptionConfig{
			ActiveKey: opts.EncryptionKey,
		}))
	}
	light = middleware.Chain(light, mws...)

	factory, err := sqlite.Open(opts.DatabaseDSN)
	if err != nil {
		_ = light.Close()
		return nil, err
	}

	manager := persist.NewManager(light, factory,
		persist.WithLogger(logger),
		persist.WithLocker(locker),
	)
	if err := manager.Initialize(ctx); err != nil {
		_ = manager.Close()
		return nil, err
	}

	return &App{
		Manager: manager,
		Flow:    flow.NewStore(manager, flow.WithTTL(opts.SessionTTL)),
	}, nil
}

// Close tears both backends down: light first, then durable. Idempotent.
func (a *App) Close() error {
	return a.Manager.Close()
}
