package main

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/procure-cli/internal/cost"
	"github.com/sells-group/procure-cli/internal/discovery"
	"github.com/sells-group/procure-cli/internal/docstore"
	"github.com/sells-group/procure-cli/internal/engine"
	"github.com/sells-group/procure-cli/internal/harvest"
	"github.com/sells-group/procure-cli/internal/navigator"
	"github.com/sells-group/procure-cli/internal/pattern"
	"github.com/sells-group/procure-cli/internal/policy"
	"github.com/sells-group/procure-cli/internal/portal"
	"github.com/sells-group/procure-cli/internal/store"
	"github.com/sells-group/procure-cli/internal/vault"
	"github.com/sells-group/procure-cli/pkg/anthropic"
)

func initStore(ctx context.Context) (store.Store, error) {
	var st store.Store
	var err error
	switch cfg.Store.Driver {
	case "sqlite":
		dsn := cfg.Store.DatabaseURL
		if dsn == "" {
			dsn = "procure.db"
		}
		st, err = store.NewSQLite(dsn)
	case "postgres":
		st, err = store.NewPostgres(ctx, cfg.Store.DatabaseURL)
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		st.Close() //nolint:errcheck
		return nil, err
	}
	return st, nil
}

// harvestEnv bundles everything a harvest run needs.
type harvestEnv struct {
	store        store.Store
	nav          navigator.Navigator
	vault        *vault.Vault
	orchestrator *harvest.Orchestrator
}

func (e *harvestEnv) Close() {
	if e.nav != nil {
		_ = e.nav.Close()
	}
	if e.store != nil {
		_ = e.store.Close()
	}
}

// initHarvest wires the full attempt pipeline: store, browser, vault,
// classifier, pattern library, discovery agent, engine, orchestrator.
func initHarvest(ctx context.Context) (*harvestEnv, error) {
	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}

	nav, err := navigator.NewRod(cfg.Navigator)
	if err != nil {
		st.Close() //nolint:errcheck
		return nil, err
	}

	vlt, err := vault.New(ctx, st, cfg.Vault)
	if err != nil {
		nav.Close() //nolint:errcheck
		st.Close()  //nolint:errcheck
		return nil, err
	}

	pol, err := policy.Load(cfg.Policy.Path)
	if err != nil {
		nav.Close() //nolint:errcheck
		st.Close()  //nolint:errcheck
		return nil, err
	}

	analyzer, err := initAnalyzer()
	if err != nil {
		nav.Close() //nolint:errcheck
		st.Close()  //nolint:errcheck
		return nil, err
	}

	classifier := portal.NewClassifier(st, nav)
	library := pattern.NewLibrary(st)
	sampler := discovery.NewSampler(cfg.Discovery)
	agent := discovery.NewAgent(sampler, analyzer, nav, st, cfg.Discovery)
	downloader := docstore.NewDownloader(cfg.Docs)
	calc := cost.NewCalculator(cost.DefaultRates())
	verifier := vault.NewVerifier(vlt, nav)

	eng := engine.New(
		st, classifier, vlt, verifier, library, agent, nav, downloader, pol, calc,
		engine.Options{
			PatternMinRate:        cfg.Harvest.PatternMinRate,
			KeywordMatchThreshold: cfg.Portal.KeywordMatchThreshold,
		},
	)

	return &harvestEnv{
		store:        st,
		nav:          nav,
		vault:        vlt,
		orchestrator: harvest.NewOrchestrator(st, eng, cfg.Harvest),
	}, nil
}

func initAnalyzer() (discovery.Analyzer, error) {
	switch cfg.Discovery.Analyzer {
	case "claude":
		if cfg.Anthropic.Key == "" {
			return nil, eris.New("anthropic API key is required for the claude analyzer (PROCURE_ANTHROPIC_KEY)")
		}
		return discovery.NewClaudeAnalyzer(anthropic.NewClient(cfg.Anthropic.Key), cfg.Anthropic), nil
	case "", "heuristic":
		return discovery.NewHeuristicAnalyzer(), nil
	default:
		return nil, eris.Errorf("unknown analyzer: %s", cfg.Discovery.Analyzer)
	}
}
