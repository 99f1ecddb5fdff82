package main

import (
	"context"
	_ "embed"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/LouYuanbo1/catalogsync/internal/config"
	"github.com/LouYuanbo1/catalogsync/internal/domain/model"
	"github.com/LouYuanbo1/catalogsync/internal/infra/crawler/chrome"
	"github.com/LouYuanbo1/catalogsync/internal/infra/crawler/collector"
	"github.com/LouYuanbo1/catalogsync/internal/infra/embedding"
	"github.com/LouYuanbo1/catalogsync/internal/infra/llm"
	"github.com/LouYuanbo1/catalogsync/internal/infra/persistence/es"
	"github.com/LouYuanbo1/catalogsync/internal/infra/persistence/memory"
	"github.com/LouYuanbo1/catalogsync/internal/infra/persistence/postgres"
	"github.com/LouYuanbo1/catalogsync/internal/logger"
	"github.com/LouYuanbo1/catalogsync/internal/metrics"
	"github.com/LouYuanbo1/catalogsync/internal/scheduler"
	"github.com/LouYuanbo1/catalogsync/internal/server"
	"github.com/LouYuanbo1/catalogsync/internal/service/catalog"
	"github.com/LouYuanbo1/catalogsync/internal/service/crawler"
	"github.com/LouYuanbo1/catalogsync/internal/service/extract"
	"golang.org/x/sync/errgroup"
)

// appconfig/appconfig.json is embedded at build time; every key can be
// overridden with a CATALOGSYNC_* environment variable.
//
//go:embed appconfig/appconfig.json
var appConfig []byte

func main() {
	cfg, err := config.ParseConfig(appConfig)
	if err != nil {
		log.Fatalf("parse config: %v", err)
	}

	appLog, err := logger.New(cfg.Logger)
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer func() { _ = appLog.Sync() }()
	appLog = appLog.With("app", cfg.App.Name, "env", cfg.App.Environment)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, appLog); err != nil {
		appLog.Error("catalogsync exited with error", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, appLog logger.Interface) error {
	store, closeStore, err := initStore(ctx, cfg, appLog)
	if err != nil {
		return err
	}
	defer closeStore()

	enrichers, err := initEnrichers(ctx, cfg, appLog)
	if err != nil {
		return err
	}

	syncer := catalog.NewSyncer(store, appLog,
		catalog.WithEnrichers(enrichers...),
		catalog.WithRetry(cfg.Store.MaxRetries, cfg.Store.RetryBackoff),
		catalog.WithRequestTimeout(cfg.Store.RequestTimeout),
	)

	launcher, err := chrome.NewLauncher(cfg.Browser, appLog)
	if err != nil {
		return err
	}

	m := metrics.New()
	driverOpts := []crawler.DriverOption{crawler.WithObserver(m)}
	if cfg.Crawl.Sitemap.Enabled {
		var collectorOpts []collector.Option
		if cfg.Crawl.Sitemap.UserAgent != "" {
			collectorOpts = append(collectorOpts, collector.WithUserAgent(cfg.Crawl.Sitemap.UserAgent))
		}
		seeds, err := collector.InitSitemapCollector(cfg.Crawl.CollectionLinkPattern, appLog, collectorOpts...)
		if err != nil {
			return err
		}
		driverOpts = append(driverOpts, crawler.WithSeedSource(seeds))
	}

	driver, err := crawler.NewDriver(cfg.Crawl, launcher, extract.New(appLog), syncer, appLog, driverOpts...)
	if err != nil {
		return err
	}

	svcCtx, cancelRuns := context.WithCancel(ctx)
	defer cancelRuns()
	svcOpts := []crawler.ServiceOption{crawler.WithSizeReporter(m)}
	if counter, ok := store.(catalog.Counter); ok {
		svcOpts = append(svcOpts, crawler.WithCatalogCounter(counter))
	}
	svc := crawler.NewService(svcCtx, driver, appLog, svcOpts...)
	httpServer := server.New(cfg.Server.Address, svc, m.Registry, appLog)

	var sched *scheduler.Scheduler
	if cfg.Server.CronSchedule != "" {
		if sched, err = scheduler.New(cfg.Server.CronSchedule, svc, appLog); err != nil {
			return err
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return httpServer.Run(gctx) })
	if sched != nil {
		g.Go(func() error { return sched.Run(gctx) })
	}

	err = g.Wait()
	// wind down an in-flight run before the store is closed
	cancelRuns()
	svc.Wait()
	return err
}

func initStore(ctx context.Context, cfg *config.Config, appLog logger.Interface) (catalog.Store, func(), error) {
	switch cfg.Store.Backend {
	case "elasticsearch":
		client, err := es.InitTypedEsClient[*model.CatalogEntry](cfg, appLog)
		if err != nil {
			return nil, nil, fmt.Errorf("init elasticsearch client: %w", err)
		}
		if err := client.CreateIndexWithMapping(ctx); err != nil {
			return nil, nil, fmt.Errorf("create index %s: %w", client.Index(), err)
		}
		return es.NewCatalogStore(client), func() {}, nil
	case "postgres":
		db, err := postgres.Connect(ctx, cfg)
		if err != nil {
			return nil, nil, err
		}
		store := postgres.NewCatalogStore(db)
		if err := store.EnsureSchema(ctx); err != nil {
			_ = db.Close()
			return nil, nil, err
		}
		return store, func() { _ = db.Close() }, nil
	default:
		appLog.Warn("using in-memory catalog store, entries are lost on exit")
		return memory.New(), func() {}, nil
	}
}

func initEnrichers(ctx context.Context, cfg *config.Config, appLog logger.Interface) ([]catalog.Enricher, error) {
	var enrichers []catalog.Enricher
	if cfg.Embedder.Enabled {
		embedder, err := embedding.InitEmbedder(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("init embedder: %w", err)
		}
		enrichers = append(enrichers, catalog.NewEmbeddingEnricher(embedder))
		appLog.Info("embedding enrichment enabled", "model", cfg.Embedder.Model)
	}
	if cfg.LLM.Enabled {
		chat, err := llm.InitLLM(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("init llm: %w", err)
		}
		classifier, err := llm.NewClassifier(ctx, chat.Model())
		if err != nil {
			return nil, err
		}
		enrichers = append(enrichers, catalog.NewTagEnricher(classifier))
		appLog.Info("tag enrichment enabled", "model", cfg.LLM.Model)
	}
	return enrichers, nil
}
