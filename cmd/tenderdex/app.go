package main

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/tenderdex/internal/config"
	dbRedis "github.com/kailas-cloud/tenderdex/internal/db/redis"
	"github.com/kailas-cloud/tenderdex/internal/domain"
	"github.com/kailas-cloud/tenderdex/internal/domain/search/calibration"
	logpkg "github.com/kailas-cloud/tenderdex/internal/logger"
	"github.com/kailas-cloud/tenderdex/internal/metrics"
	"github.com/kailas-cloud/tenderdex/internal/repository/deadletter"
	"github.com/kailas-cloud/tenderdex/internal/repository/embcache"
	"github.com/kailas-cloud/tenderdex/internal/repository/table"
	tenderrepo "github.com/kailas-cloud/tenderdex/internal/repository/tender"
	"github.com/kailas-cloud/tenderdex/internal/taxonomy"
	langchainLLM "github.com/kailas-cloud/tenderdex/internal/transport/langchain"
	openaiEmb "github.com/kailas-cloud/tenderdex/internal/transport/openai"
	"github.com/kailas-cloud/tenderdex/internal/usecase/classifier"
	embeddinguc "github.com/kailas-cloud/tenderdex/internal/usecase/embedding"
	"github.com/kailas-cloud/tenderdex/internal/usecase/enrichment"
	"github.com/kailas-cloud/tenderdex/internal/usecase/indexer"
	"github.com/kailas-cloud/tenderdex/internal/usecase/ingest"
	"github.com/kailas-cloud/tenderdex/internal/usecase/intent"
	searchuc "github.com/kailas-cloud/tenderdex/internal/usecase/search"
)

// app is the composition root shared by all commands. Components are built lazily
// so a command only pays for (and only needs config for) what it uses.
type app struct {
	env      string
	cfg      config.Config
	logger   *zap.Logger
	store    *dbRedis.Store
	repo     *tenderrepo.Repo
	taxonomy *taxonomy.Holder

	// Base providers are kept for health checks; the decorated chains hide them.
	docBase    *openaiEmb.Embedder
	completers map[string]domain.Completer

	closers []func()
}

// newApp loads config, connects to the store and verifies the index model lock.
func newApp(ctx context.Context) (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	logger, err := logpkg.NewLogger(flagEnv, cfg.Logging.Level)
	if err != nil {
		return nil, fmt.Errorf("create logger: %w", err)
	}

	a := &app{
		env:        flagEnv,
		cfg:        cfg,
		logger:     logger,
		completers: make(map[string]domain.Completer),
	}
	a.closers = append(a.closers, func() { _ = logger.Sync() })

	metrics.Register()

	// Valkey speaks the same RESP and FT.* surface, so both drivers share the rueidis store.
	store, err := dbRedis.NewStore(dbRedis.Config{
		Addrs:      cfg.Database.Addrs,
		Password:   cfg.Database.Password,
		ClientName: "tenderdex",
	})
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("create %s store: %w", cfg.Database.Driver, err)
	}
	a.store = store
	a.closers = append(a.closers, store.Close)

	if err := store.WaitForReady(ctx, time.Duration(cfg.Database.ReadinessTimeout)*time.Second); err != nil {
		a.Close()
		return nil, fmt.Errorf("database not ready: %w", err)
	}
	logger.Debug("Connected to database",
		zap.String("driver", cfg.Database.Driver), zap.Strings("addrs", cfg.Database.Addrs))

	vec := cfg.Embedding.Vectorizer
	a.repo = tenderrepo.New(store, tenderrepo.Config{
		KeyPrefix:  cfg.Storage.KeyPrefix,
		IndexName:  cfg.Index.Name,
		Model:      vec.Model,
		Dimensions: vec.Dimensions,
		HNSW: tenderrepo.HNSWConfig{
			M:           cfg.Index.HNSWM,
			EFConstruct: cfg.Index.HNSWEFConstruct,
		},
	})
	if err := a.repo.EnsureIndex(ctx); err != nil {
		a.Close()
		return nil, fmt.Errorf("ensure index: %w", err)
	}

	tax := taxonomy.Default()
	if cfg.Taxonomy.Path != "" {
		if tax, err = taxonomy.Load(cfg.Taxonomy.Path); err != nil {
			a.Close()
			return nil, fmt.Errorf("load taxonomy: %w", err)
		}
	}
	a.taxonomy = taxonomy.NewHolder(tax)

	return a, nil
}

// Close releases resources in reverse order of acquisition.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

// watchTaxonomy hot-reloads the taxonomy file until ctx is done, when configured.
func (a *app) watchTaxonomy(ctx context.Context) {
	if a.cfg.Taxonomy.Path == "" || !a.cfg.Taxonomy.Watch {
		return
	}
	go func() {
		if err := taxonomy.Watch(ctx, a.cfg.Taxonomy.Path, a.taxonomy, a.logger); err != nil {
			a.logger.Warn("Taxonomy watcher stopped", zap.Error(err))
		}
	}()
}

// documentEmbedder assembles OpenAI -> Instrumented -> Instruction. Documents are unique,
// so the cache would only cost a round trip per text.
func (a *app) documentEmbedder() domain.Embedder {
	vec := a.cfg.Embedding.Vectorizer
	base := a.baseEmbedder()
	a.docBase = base
	return a.decorate(base, vec.DocumentInstruction)
}

// queryEmbedder assembles OpenAI -> Cached -> Instrumented -> Instruction.
// The instruction prefix is outermost so the cache key includes it.
func (a *app) queryEmbedder() domain.Embedder {
	vec := a.cfg.Embedding.Vectorizer
	var embedder domain.Embedder = a.baseEmbedder()
	if !vec.DisableQueryCache {
		embedder = embcache.New(embedder, a.store, embcache.Options{
			KeyPrefix: a.cfg.Storage.KeyPrefix,
			Model:     vec.Model,
			TTL:       time.Duration(vec.QueryCacheTTLSec) * time.Second,
		}, metrics.EmbeddingCacheTotal, a.logger)
	}
	return a.decorate(embedder, vec.QueryInstruction)
}

func (a *app) baseEmbedder() *openaiEmb.Embedder {
	vec := a.cfg.Embedding.Vectorizer
	prov := a.cfg.Embedding.Providers[vec.Provider]
	return openaiEmb.NewEmbedder(&openaiEmb.Config{
		APIKey:     prov.APIKey,
		BaseURL:    prov.BaseURL,
		Model:      vec.Model,
		Dimensions: vec.Dimensions,
		Provider:   vec.Provider,
		Logger:     a.logger,
	})
}

func (a *app) decorate(inner domain.Embedder, instruction string) domain.Embedder {
	vec := a.cfg.Embedding.Vectorizer
	var embedder domain.Embedder = embeddinguc.NewInstrumentedEmbedder(inner, embeddinguc.Options{
		Provider:   vec.Provider,
		Model:      vec.Model,
		Dimensions: vec.Dimensions,
		BatchSize:  vec.BatchSize,
	}, a.logger)
	if instruction != "" {
		embedder = domain.NewInstructionEmbedder(embedder, instruction)
	}
	return embedder
}

// completer returns the completion client for model, built once per model.
func (a *app) completer(model string) (domain.Completer, error) {
	if c, ok := a.completers[model]; ok {
		return c, nil
	}

	prov := a.cfg.Embedding.Providers[a.cfg.Classifier.Provider]
	var c domain.Completer
	switch a.cfg.Classifier.Client {
	case config.ClientLangChain:
		lc, err := langchainLLM.NewCompleter(&langchainLLM.Config{
			APIKey:  prov.APIKey,
			BaseURL: prov.BaseURL,
			Model:   model,
			Logger:  a.logger,
		})
		if err != nil {
			return nil, fmt.Errorf("create langchain completer: %w", err)
		}
		c = lc
	default:
		c = openaiEmb.NewCompleter(&openaiEmb.CompleterConfig{
			APIKey:  prov.APIKey,
			BaseURL: prov.BaseURL,
			Model:   model,
			Logger:  a.logger,
		})
	}
	a.completers[model] = c
	return c, nil
}

func (a *app) classifier() (*classifier.Gateway, error) {
	cc := a.cfg.Classifier
	c, err := a.completer(cc.Model)
	if err != nil {
		return nil, err
	}
	return classifier.New(c, a.taxonomy, classifier.Options{
		MinTextLength:     cc.MinTextLength,
		KeywordGateLength: cc.KeywordGateLength,
		MaxTags:           cc.MaxTags,
		Temperature:       cc.Temperature,
		Timeout:           time.Duration(cc.TimeoutSec) * time.Second,
		RequestsPerSecond: cc.RequestsPerSecond,
		Burst:             cc.Burst,
		CacheContext:      cc.CacheContext,
		CacheTTL:          time.Duration(cc.CacheTTLSec) * time.Second,
	}, a.logger), nil
}

// orchestrator wires the table reader, enrichment driver, indexer and dead-letter ledger.
func (a *app) orchestrator() (*ingest.Orchestrator, error) {
	in := a.cfg.Input
	reader, err := table.NewReader(in.Path, in.Delimiter)
	if err != nil {
		return nil, fmt.Errorf("open input table: %w", err)
	}

	gw, err := a.classifier()
	if err != nil {
		return nil, err
	}

	ic := a.cfg.Ingest
	driver := enrichment.New(reader, gw, enrichment.Options{
		Columns:      in.Columns,
		SubBatchSize: ic.SubBatchSize,
		Concurrency:  ic.Concurrency,
	}, a.logger)

	loader := indexer.New(a.documentEmbedder(), a.repo, indexer.Options{
		BatchSize: a.cfg.Index.BatchSize,
		Columns:   in.Columns,
	}, a.logger)

	// A nil *Ledger inside the interface would not compare equal to nil.
	var ledger ingest.DeadLetters
	policy := ingest.FailurePolicy(ic.OnChunkFailure)
	if policy == ingest.FailureDeadLetter {
		l, err := deadletter.Open(ic.DeadLetterPath)
		if err != nil {
			return nil, fmt.Errorf("open dead-letter ledger: %w", err)
		}
		a.closers = append(a.closers, func() { _ = l.Close() })
		ledger = l
	}

	return ingest.New(driver, loader, reader, ledger, ingest.Options{
		WorkDir:        ic.WorkDir,
		ChunkSize:      ic.ChunkSize,
		OnChunkFailure: policy,
	}, a.logger), nil
}

func (a *app) searchEngine() (*searchuc.Engine, error) {
	ic := a.cfg.Intent
	c, err := a.completer(ic.Model)
	if err != nil {
		return nil, err
	}
	analyzer := intent.New(c, a.taxonomy, intent.Options{
		Timeout:           time.Duration(ic.TimeoutSec) * time.Second,
		RequestsPerSecond: a.cfg.Classifier.RequestsPerSecond,
		Burst:             a.cfg.Classifier.Burst,
	}, a.logger)

	sc := a.cfg.Search
	anchors := make([]calibration.Anchor, len(sc.Calibration))
	for i, ca := range sc.Calibration {
		anchors[i] = calibration.Anchor{Distance: ca.Distance, Score: ca.Score}
	}
	curve, err := calibration.NewCurve(anchors)
	if err != nil {
		return nil, fmt.Errorf("build calibration curve: %w", err)
	}

	return searchuc.New(a.repo, a.queryEmbedder(), analyzer, searchuc.Options{
		DefaultLimit:    sc.DefaultLimit,
		MaxLimit:        sc.MaxLimit,
		OverfetchFactor: sc.OverfetchFactor,
		Curve:           curve,
	}, a.logger), nil
}

// withApp runs fn against a fully connected app and closes it afterwards.
func withApp(ctx context.Context, fn func(a *app) error) error {
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(a)
}
