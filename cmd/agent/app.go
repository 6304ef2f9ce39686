package main

import (
	"context"
	"fmt"
	"io"

	"github.com/chris/dayplan/config"
	"github.com/chris/dayplan/internal/agent"
	"github.com/chris/dayplan/internal/auth"
	"github.com/chris/dayplan/internal/db"
	"github.com/chris/dayplan/internal/llm"
	"github.com/chris/dayplan/internal/logstore"
	"github.com/chris/dayplan/internal/metrics"
	"github.com/chris/dayplan/internal/prompt"
	"github.com/chris/dayplan/internal/stats"
	"github.com/chris/dayplan/internal/telemetry"
	"github.com/chris/dayplan/internal/tools"
)

// app is everything a command needs, wired once from the environment.
type app struct {
	cfg      *config.Config
	db       *db.DB
	log      *telemetry.Logger
	metrics  *metrics.Metrics
	resolver *auth.Resolver
	agent    *agent.Agent

	closers []io.Closer
}

// openDB loads config and opens the database only; user management needs
// nothing else.
func openDB() (*config.Config, *db.DB, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	database, err := db.Open(cfg.DatabasePath)
	if err != nil {
		return nil, nil, fmt.Errorf("opening database: %w", err)
	}
	return cfg, database, nil
}

func setup(ctx context.Context) (*app, error) {
	cfg, database, err := openDB()
	if err != nil {
		return nil, err
	}
	a := &app{cfg: cfg, db: database, closers: []io.Closer{database}}

	var store telemetry.Store = logstore.NewSQLite(database)
	if cfg.LogStoreDSN != "" {
		pg, err := logstore.OpenPostgres(ctx, cfg.LogStoreDSN)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.closers = append(a.closers, pg)
		store = pg
	}

	level, err := telemetry.ParseLevel(cfg.LogLevel)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.log = telemetry.New(telemetry.Options{
		Enabled: cfg.LoggingEnabled,
		Persist: cfg.DBLoggingEnabled,
		Verbose: cfg.VerboseLogging,
		Level:   level,
		Pretty:  cfg.LogPretty,
		Service: "dayplan",
	}, store)
	a.metrics = metrics.New()
	a.resolver = auth.NewResolver(database)

	client, err := llm.NewClient(llm.ProviderConfig{
		Provider:  cfg.LLMProvider,
		APIKey:    cfg.APIKey(),
		AuthToken: cfg.AnthropicToken,
		Model:     cfg.LLMModel,
		BaseURL:   cfg.OllamaBaseURL,
		MaxTokens: cfg.MaxOutputTokens,
	})
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("creating LLM client: %w", err)
	}

	statsProvider := stats.NewProvider(database)
	executor := tools.NewExecutor(tools.Builtin(), tools.Deps{Repo: database, Stats: statsProvider}, a.log)
	a.agent = agent.New(client, executor, database, statsProvider, a.log, a.metrics, agent.Options{
		MaxToolRounds:    cfg.MaxToolRounds,
		TurnTimeout:      cfg.TurnTimeout,
		MaxContextTokens: cfg.MaxContextTokens,
		IncludeExamples:  cfg.IncludeExamples,
		Pricing:          llm.Pricing{InputCentsPerMillion: cfg.InputPriceCents, OutputCentsPerMillion: cfg.OutputPriceCents},
		Temporal:         prompt.TemporalProvider{DefaultTimezone: cfg.DefaultTimezone, DefaultLocale: cfg.DefaultLocale},
	})
	return a, nil
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i].Close()
	}
}
