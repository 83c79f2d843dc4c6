// Package control wires the security engine to its storage, host, sinks and
// servers.
package control

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/vietddude/walletguard/internal/api"
	"github.com/vietddude/walletguard/internal/core/config"
	"github.com/vietddude/walletguard/internal/core/worker"
	"github.com/vietddude/walletguard/internal/emitter"
	"github.com/vietddude/walletguard/internal/infra/chain"
	"github.com/vietddude/walletguard/internal/infra/chain/evm"
	"github.com/vietddude/walletguard/internal/infra/chain/sim"
	redisclient "github.com/vietddude/walletguard/internal/infra/redis"
	"github.com/vietddude/walletguard/internal/infra/rpc"
	"github.com/vietddude/walletguard/internal/infra/rpc/routing"
	"github.com/vietddude/walletguard/internal/infra/storage"
	badgerstore "github.com/vietddude/walletguard/internal/infra/storage/badger"
	"github.com/vietddude/walletguard/internal/infra/storage/memory"
	"github.com/vietddude/walletguard/internal/infra/storage/postgres"
	"github.com/vietddude/walletguard/internal/metrics"
	"github.com/vietddude/walletguard/internal/security/engine"
	"github.com/vietddude/walletguard/internal/security/policy"
)

// servingPollInterval is how often the gRPC health status follows the pause flag.
const servingPollInterval = 5 * time.Second

// Guard is the running service: engine, persistence, sinks and servers.
type Guard struct {
	cfg    *config.AppConfig
	engine *engine.Engine
	store  storage.Store
	db     *postgres.DB
	badger *badgerstore.Store
	redis  *redisclient.Client
	rpc    *rpc.Client
	sink   *emitter.Fanout

	apiServer   *api.Server
	grpcServer  *grpc.Server
	grpcHealth  *health.Server
	snapshotter *worker.Snapshotter
	pruner      *worker.Pruner

	cancel context.CancelFunc
	group  *errgroup.Group
	log    *slog.Logger
}

// NewGuard builds every component and restores the latest snapshot.
func NewGuard(ctx context.Context, cfg *config.AppConfig) (*Guard, error) {
	g := &Guard{cfg: cfg, log: slog.Default()}
	if err := g.build(ctx); err != nil {
		_ = g.close()
		return nil, err
	}
	return g, nil
}

func (g *Guard) build(ctx context.Context) error {
	cfg := g.cfg

	// 1. Storage
	if err := g.openStorage(ctx); err != nil {
		return err
	}

	// 2. Sinks
	sinks := []emitter.Emitter{
		emitter.NewLogEmitter(g.log),
		emitter.NewStorageEmitter(g.store.Events()),
	}
	if cfg.Redis.URL != "" {
		client, err := redisclient.NewClient(cfg.Redis)
		if err != nil {
			return fmt.Errorf("failed to init redis: %w", err)
		}
		g.redis = client
		sinks = append(sinks, emitter.NewStreamEmitter(g.redis))
		g.log.Info("Publishing events to Redis stream", "stream", g.redis.Stream())
	}
	g.sink = emitter.NewFanout(sinks...)

	// 3. Host and engine
	engCfg, err := g.engineConfig()
	if err != nil {
		return err
	}
	if g.engine, err = engine.New(engCfg); err != nil {
		return err
	}
	if err := g.restore(ctx); err != nil {
		return err
	}
	if err := g.bootstrapAdmin(ctx); err != nil {
		return err
	}

	// 4. Servers and workers
	var components []api.Component
	if g.db != nil {
		components = append(components, api.Component{Name: "postgres", Check: g.db.Health})
	}
	if g.redis != nil {
		components = append(components, api.Component{Name: "redis", Check: g.redis.Ping})
	}
	g.apiServer = api.NewServer(g.engine, g.store.Events(), api.NewHealthMonitor(g.engine, components...), api.Config{
		Port:        cfg.Server.Port,
		RateLimit:   cfg.Server.RateLimit,
		Burst:       cfg.Server.Burst,
		AuthWindow:  cfg.Server.AuthWindow,
		CORSOrigins: cfg.Server.CORSOrigins,
	})
	if cfg.Server.GRPCPort > 0 {
		g.grpcHealth = health.NewServer()
		g.grpcServer = grpc.NewServer()
		healthpb.RegisterHealthServer(g.grpcServer, g.grpcHealth)
	}
	g.snapshotter = worker.NewSnapshotter(cfg.Worker.SnapshotInterval, g.engine, g.store.Snapshots())
	if cfg.Worker.EventRetention > 0 {
		g.pruner = worker.NewPruner(cfg.Worker.EventRetention, g.store.Events())
	}
	return nil
}

// Engine returns the wired engine.
func (g *Guard) Engine() *engine.Engine { return g.engine }

func (g *Guard) openStorage(ctx context.Context) error {
	switch {
	case g.cfg.Database.URL != "":
		db, err := postgres.NewDB(ctx, g.cfg.Database)
		if err != nil {
			return fmt.Errorf("failed to init db: %w", err)
		}
		g.db, g.store = db, db
		if err := postgres.Migrate(ctx, db.DB.DB, "up"); err != nil {
			return fmt.Errorf("failed to migrate db: %w", err)
		}
		g.log.Info("Using PostgreSQL storage")
	case g.cfg.Badger.Path != "" || g.cfg.Badger.InMemory:
		store, err := badgerstore.Open(g.cfg.Badger)
		if err != nil {
			return err
		}
		g.badger, g.store = store, store
		g.log.Info("Using Badger storage", "path", g.cfg.Badger.Path)
	default:
		g.store = memory.NewMemoryStorage()
		g.log.Info("Using Memory storage")
	}
	return nil
}

func (g *Guard) engineConfig() (engine.Config, error) {
	profiles, err := g.cfg.Engine.Profiles()
	if err != nil {
		return engine.Config{}, err
	}
	pol, err := policy.New(profiles)
	if err != nil {
		return engine.Config{}, err
	}

	book := sim.New()
	for _, addr := range config.Addresses(g.cfg.Engine.Contracts) {
		book.RegisterContract(addr, nil)
	}

	cfg := engine.Config{
		Self:     common.HexToAddress(g.cfg.Engine.Self),
		Policy:   pol,
		Oracle:   book,
		Host:     book,
		Tokens:   book,
		Sink:     g.sink,
		Observer: metrics.Observer{},
		Faucet:   book,
	}

	mode, err := chain.ParseMode(g.cfg.Engine.Host)
	if err != nil {
		return engine.Config{}, err
	}
	if mode == chain.ModeEVM {
		g.rpc, err = rpc.Dial(g.cfg.Engine.RPCURLs, g.cfg.Engine.RPCTimeout, routing.DefaultRetryConfig)
		if err != nil {
			return engine.Config{}, err
		}
		oracle, err := evm.NewOracle(g.rpc, g.cfg.Engine.CodeCacheSize)
		if err != nil {
			return engine.Config{}, err
		}
		host := chain.Compose(oracle, book)
		cfg.Oracle, cfg.Host, cfg.Tokens = host, host, host
	}
	g.log.Info("Engine host configured", "mode", mode, "contracts", len(g.cfg.Engine.Contracts))
	return cfg, nil
}

func (g *Guard) restore(ctx context.Context) error {
	snap, err := g.store.Snapshots().Latest(ctx)
	if errors.Is(err, storage.ErrSnapshotNotFound) {
		g.log.Info("No snapshot found, starting empty")
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to load snapshot: %w", err)
	}
	if err := g.engine.Restore(snap); err != nil {
		return fmt.Errorf("failed to restore snapshot: %w", err)
	}
	g.log.Info("Restored engine state", "taken_at", snap.TakenAt, "wallets", len(snap.Wallets))
	return nil
}

// bootstrapAdmin initializes a fresh engine with the configured admin.
func (g *Guard) bootstrapAdmin(ctx context.Context) error {
	if g.cfg.Engine.Admin == "" || g.engine.Stats().Initialized {
		return nil
	}
	admin := common.HexToAddress(g.cfg.Engine.Admin)
	if _, err := g.engine.Initialize(ctx, admin, admin); err != nil {
		return fmt.Errorf("failed to initialize engine: %w", err)
	}
	g.log.Info("Engine initialized", "admin", admin)
	return nil
}

// Start starts the servers and background workers.
func (g *Guard) Start(ctx context.Context) error {
	ctx, g.cancel = context.WithCancel(ctx)
	g.group, ctx = errgroup.WithContext(ctx)

	g.group.Go(func() error {
		g.log.Info("API server listening", "port", g.cfg.Server.Port)
		if err := g.apiServer.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("api server: %w", err)
		}
		return nil
	})

	if g.grpcServer != nil {
		lis, err := net.Listen("tcp", fmt.Sprintf(":%d", g.cfg.Server.GRPCPort))
		if err != nil {
			return fmt.Errorf("grpc listen: %w", err)
		}
		g.group.Go(func() error {
			g.log.Info("gRPC health server listening", "port", g.cfg.Server.GRPCPort)
			return g.grpcServer.Serve(lis)
		})
		g.group.Go(func() error {
			g.followPause(ctx)
			return nil
		})
	}

	if g.db != nil {
		g.db.StartMetricsCollector(ctx)
	}
	if g.badger != nil {
		g.group.Go(func() error {
			if err := g.badger.RunGC(ctx, g.cfg.Worker.GCInterval); !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		})
	}

	g.group.Go(func() error {
		g.snapshotter.Start(ctx)
		return nil
	})
	if g.pruner != nil {
		g.group.Go(func() error {
			g.pruner.Start(ctx)
			return nil
		})
	}
	return nil
}

// followPause reports NOT_SERVING over gRPC health while the engine is paused.
func (g *Guard) followPause(ctx context.Context) {
	ticker := time.NewTicker(servingPollInterval)
	defer ticker.Stop()

	for {
		status := healthpb.HealthCheckResponse_SERVING
		if g.engine.Paused() {
			status = healthpb.HealthCheckResponse_NOT_SERVING
		}
		g.grpcHealth.SetServingStatus("", status)

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// Wait blocks until a server or worker fails or the guard stops.
func (g *Guard) Wait() error {
	if g.group == nil {
		return nil
	}
	return g.group.Wait()
}

// Stop shuts the servers down, lets workers write their final state and
// releases every connection.
func (g *Guard) Stop(ctx context.Context) error {
	g.log.Info("Stopping guard...")

	var errs []error
	if err := g.apiServer.Stop(ctx); err != nil {
		errs = append(errs, fmt.Errorf("api server: %w", err))
	}
	if g.grpcServer != nil {
		g.grpcHealth.Shutdown()
		g.grpcServer.GracefulStop()
	}
	if g.cancel != nil {
		g.cancel()
	}
	if err := g.Wait(); err != nil {
		errs = append(errs, err)
	}
	if err := g.close(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (g *Guard) close() error {
	var errs []error
	if g.sink != nil {
		// Closes the redis client through its stream emitter.
		if err := g.sink.Close(); err != nil {
			errs = append(errs, err)
		}
	} else if g.redis != nil {
		errs = append(errs, g.redis.Close())
	}
	if g.rpc != nil {
		errs = append(errs, g.rpc.Close())
	}
	if g.store != nil {
		errs = append(errs, g.store.Close())
	}
	return errors.Join(errs...)
}
