// Package control wires the storage, RPC and indexing layers together and
// manages their lifecycle.
package control

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/tranvu/ledgersync/internal/core/checkpoint"
	"github.com/tranvu/ledgersync/internal/core/config"
	"github.com/tranvu/ledgersync/internal/core/domain"
	"github.com/tranvu/ledgersync/internal/indexing/indexer"
	"github.com/tranvu/ledgersync/internal/indexing/scanner"
	"github.com/tranvu/ledgersync/internal/indexing/sink"
	redisclient "github.com/tranvu/ledgersync/internal/infra/redis"
	"github.com/tranvu/ledgersync/internal/infra/rpc"
	"github.com/tranvu/ledgersync/internal/infra/storage/postgres"
)

// Engine is the main application struct that manages the sync lifecycle.
type Engine struct {
	cfg         *config.AppConfig
	db          *postgres.DB
	redisClient *redisclient.Client
	syncer      *indexer.Syncer
	opsServer   *http.Server
	log         *slog.Logger
}

// NewEngine creates an engine with all dependencies initialized: it connects
// to Postgres, runs migrations, connects to Redis when configured, and builds
// one scan source per configured contract concern.
func NewEngine(ctx context.Context, cfg *config.AppConfig) (*Engine, error) {
	log := slog.Default()

	// 1. Storage
	db, err := postgres.NewDB(ctx, cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to init db: %w", err)
	}
	if err := db.Migrate(); err != nil {
		db.Close()
		return nil, err
	}
	log.Info("connected to postgres")

	// 2. Redis status cache (optional)
	var redisClient *redisclient.Client
	var cache indexer.StatusCache
	if cfg.Redis.URL != "" {
		redisClient, err = redisclient.NewClient(cfg.Redis)
		if err != nil {
			log.Warn("failed to connect to redis, status cache disabled", "error", err)
		} else {
			cache = redisClient
			log.Info("connected to redis")
		}
	}

	// 3. Chain access
	client := rpc.NewFailoverClient(cfg.RPC.Failover, postgres.NewNodeRepo(db), cfg.RPC.Endpoint)
	fetcher := scanner.NewFetcher(client)

	// 4. Scan sources
	sources := buildSources(cfg.Sources)
	if len(sources) == 0 {
		log.Warn("no scan sources configured")
	}

	syncer := indexer.NewSyncer(indexer.Config{
		Fetcher:     fetcher,
		Store:       db,
		Checkpoints: checkpoint.NewManager(postgres.NewCheckpointRepo(db)),
		Cache:       cache,
		Sources:     sources,
		MaxWindow:   cfg.Sync.MaxWindow,
		Interval:    cfg.Sync.PollInterval,
		Logger:      log,
	})

	return &Engine{
		cfg:         cfg,
		db:          db,
		redisClient: redisClient,
		syncer:      syncer,
		opsServer:   newOpsServer(cfg.Server.Port, db),
		log:         log,
	}, nil
}

// buildSources expands the source configuration into scan sources. Each
// exchange yields an order source and an agreement source; each token a
// transfer source; each approval pair an approval source reading either the
// escrow contract or the token contract.
func buildSources(cfg config.SourcesConfig) []indexer.Source {
	var sources []indexer.Source

	for _, ex := range cfg.Exchanges {
		contract := scanner.NewExchangeContract(ex.Address)
		sources = append(sources,
			indexer.Source{
				Key:        domain.OrderSourceKey(ex.Address),
				Contract:   contract,
				Kinds:      []domain.EventKind{domain.EventNewOrder, domain.EventCancelOrder},
				Sink:       sink.NewOrderSink(),
				StartBlock: ex.StartBlock,
			},
			indexer.Source{
				Key:      domain.AgreementSourceKey(ex.Address),
				Contract: contract,
				Kinds: []domain.EventKind{
					domain.EventAgree, domain.EventSettlementOK, domain.EventSettlementNG,
				},
				Sink:       sink.NewOrderSink(),
				StartBlock: ex.StartBlock,
			},
		)
	}

	for _, tk := range cfg.Tokens {
		contract := scanner.NewTokenContract(tk.Address)
		if tk.Legacy {
			contract = scanner.NewLegacyTokenContract(tk.Address)
		}
		sources = append(sources, indexer.Source{
			Key:        domain.TransferSourceKey(tk.Address),
			Contract:   contract,
			Kinds:      []domain.EventKind{domain.EventTransfer},
			Sink:       sink.NewTransferSink(),
			StartBlock: tk.StartBlock,
		})
	}

	for _, ap := range cfg.Approvals {
		contract := scanner.NewTokenContract(ap.Token)
		if ap.Exchange != "" {
			contract = scanner.NewEscrowContract(ap.Exchange)
		}
		sources = append(sources, indexer.Source{
			Key:      domain.ApprovalSourceKey(ap.Token, ap.Exchange),
			Contract: contract,
			Kinds: []domain.EventKind{
				domain.EventApplyForTransfer, domain.EventCancelTransfer,
				domain.EventEscrowFinished, domain.EventApproveTransfer,
			},
			Sink:       sink.NewApprovalSink(ap.Token, ap.Exchange),
			StartBlock: ap.StartBlock,
		})
	}

	return sources
}

// newOpsServer builds the operational HTTP listener: liveness and metrics.
func newOpsServer(port int, db *postgres.DB) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := db.Health(ctx); err != nil {
			http.Error(w, "database unavailable", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	return &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
}

// Start runs the ops server and the sync loop. It blocks until the context is
// canceled or either component fails.
func (e *Engine) Start(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		e.log.Info("ops server listening", "addr", e.opsServer.Addr)
		if err := e.opsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("ops server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		return e.syncer.Start(ctx)
	})

	return g.Wait()
}

// Stop shuts the engine down: the sync loop first so no transaction is cut
// off mid-commit, then the ops server and connections.
func (e *Engine) Stop(ctx context.Context) error {
	e.log.Info("stopping engine")

	e.syncer.Stop()

	if e.redisClient != nil {
		if err := e.redisClient.Close(); err != nil {
			e.log.Warn("failed to close redis", "error", err)
		}
	}

	shutdownErr := e.opsServer.Shutdown(ctx)
	if err := e.db.Close(); err != nil {
		e.log.Warn("failed to close db", "error", err)
	}
	return shutdownErr
}
