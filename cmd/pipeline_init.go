package main

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/dispatch-cli/internal/pipeline"
	"github.com/sells-group/dispatch-cli/internal/store"
	"github.com/sells-group/dispatch-cli/pkg/geocode"
)

// pipelineEnv holds the initialized store, geocode client, and pipeline
// shared by the ingest/invoice/serve commands.
type pipelineEnv struct {
	Store    store.Store
	Client   geocode.Client
	Pipeline *pipeline.Pipeline
}

// Close releases resources held by the pipeline environment.
func (pe *pipelineEnv) Close() {
	if pe.Store != nil {
		_ = pe.Store.Close()
	}
}

func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		dsn := cfg.Store.DatabaseURL
		if dsn == "" {
			dsn = "dispatch.db"
		}
		return store.NewSQLite(dsn)
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, &cfg.Store.Pool)
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

// initGeocode builds the routing API client backed by the store's durable
// cache. An empty API key still works offline: cache hits and source-supplied
// distances carry the run.
func initGeocode(st store.Store) geocode.Client {
	return geocode.NewORSClient(cfg.Geocode.APIKey,
		geocode.WithBaseURL(cfg.Geocode.BaseURL),
		geocode.WithCache(st),
		geocode.WithConcurrency(cfg.Geocode.Concurrency),
		geocode.WithRateLimit(cfg.Geocode.RateRPS),
		geocode.WithTimeout(cfg.Geocode.Timeout()),
		geocode.WithRetry(cfg.Geocode.Retry()),
	)
}

// initPipeline sets up the store and geocode client and builds the Pipeline.
// Callers should defer env.Close().
func initPipeline(ctx context.Context, mode string) (*pipelineEnv, error) {
	if err := cfg.Validate(mode); err != nil {
		return nil, err
	}

	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}

	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}

	client := initGeocode(st)
	return &pipelineEnv{
		Store:    st,
		Client:   client,
		Pipeline: pipeline.New(cfg, st, client),
	}, nil
}
