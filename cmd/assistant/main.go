// cmd/assistant/main.go
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"library-assistant/internal/chat"
	"library-assistant/internal/chat/answer"
	"library-assistant/internal/chat/classify"
	"library-assistant/internal/chat/filter"
	"library-assistant/internal/chat/query"
	"library-assistant/internal/chat/render"
	"library-assistant/internal/common/config"
	"library-assistant/internal/common/database"
	"library-assistant/internal/common/logger"
	"library-assistant/internal/common/observability"
	"library-assistant/internal/repl"
	"library-assistant/internal/schema"
)

func main() {
	// Load validates credentials up front; a missing Supabase URL or LLM
	// key fails here, not deep inside a turn.
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	defer zapLog.Sync()
	log := logger.NewZapAdapter(zapLog)

	store, err := newStore(cfg)
	if err != nil {
		log.Error("failed to connect to database", map[string]interface{}{"error": err.Error()})
		os.Exit(1)
	}
	defer store.Close()

	cache := newCache(cfg, log)
	if cache != nil {
		defer cache.Close()
	}

	obs := observability.New(cfg.App.Name)
	defer obs.Shutdown()

	if cfg.Metrics.Enabled {
		go serveMetrics(cfg.Metrics.Address, log)
	}

	tables, err := loadSchema(cfg, store, log)
	if err != nil {
		log.Error("schema mapping invalid", map[string]interface{}{"error": err.Error()})
		os.Exit(1)
	}

	assistant := chat.NewAssistant(
		classify.NewClassifier(log),
		classify.NewExtractor(log),
		filter.NewBuilder(tables),
		query.NewExecutor(store, cacheOrNil(cache), tables, query.Options{
			RelatedBooks: cfg.Pipeline.RelatedBooks,
			RelatedLoans: cfg.Pipeline.RelatedLoans,
			CacheTTL:     time.Duration(cfg.Pipeline.CacheTTL) * time.Second,
		}, log),
		render.NewRenderer(cfg.Pipeline.RenderedLimit),
		answer.NewGenerator(cfg.LLM, log),
		obs,
		log,
	)

	loop := repl.New(assistant, os.Stdin, os.Stdout,
		config.GetDuration(cfg.Pipeline.TurnTimeout), log)

	log.Info("assistant started", map[string]interface{}{
		"driver": cfg.Database.Driver,
		"model":  cfg.LLM.Model,
	})

	if err := loop.Run(context.Background()); err != nil {
		log.Error("repl terminated", map[string]interface{}{"error": err.Error()})
		os.Exit(1)
	}
}

// newStore picks the Store implementation from config: the Supabase REST
// surface by default, direct Postgres when configured.
func newStore(cfg *config.Config) (query.Store, error) {
	if cfg.Database.Driver == "postgres" {
		client, err := database.NewPostgres(cfg.Database.Postgres)
		if err != nil {
			return nil, err
		}
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := client.Ping(ctx); err != nil {
			return nil, err
		}
		return client, nil
	}
	return database.NewPostgREST(cfg.Database.Supabase), nil
}

// newCache connects Redis when an address is configured. A dead cache is
// not fatal; the executor works without one.
func newCache(cfg *config.Config, log logger.Logger) *database.RedisClient {
	if cfg.Database.Redis.Address == "" {
		return nil
	}
	cache, err := database.NewRedis(cfg.Database.Redis)
	if err != nil {
		log.Warn("redis unavailable, caching disabled", map[string]interface{}{"error": err.Error()})
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := cache.Ping(ctx); err != nil {
		log.Warn("redis unreachable, caching disabled", map[string]interface{}{"error": err.Error()})
		cache.Close()
		return nil
	}
	return cache
}

// cacheOrNil avoids handing the executor a typed nil inside the interface.
func cacheOrNil(cache *database.RedisClient) query.Cache {
	if cache == nil {
		return nil
	}
	return cache
}

// loadSchema reads the versioned table mapping and pins one table per
// entity, probing the store once at startup when enabled.
func loadSchema(cfg *config.Config, store query.Store, log logger.Logger) (*schema.Resolved, error) {
	mapping, err := schema.Load(cfg.Schema.MappingPath)
	if err != nil {
		return nil, err
	}
	if !cfg.Schema.ProbeOnStartup {
		return schema.Static(mapping), nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return schema.Resolve(ctx, mapping, store, log), nil
}

func serveMetrics(address string, log logger.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	})

	log.Info("metrics endpoint listening", map[string]interface{}{"address": address})
	if err := http.ListenAndServe(address, mux); err != nil {
		log.Warn("metrics endpoint failed", map[string]interface{}{"error": err.Error()})
	}
}
