package main

import (
	"context"
	"os"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/leadgen-cli/internal/agent"
	"github.com/sells-group/leadgen-cli/internal/ai"
	"github.com/sells-group/leadgen-cli/internal/browser"
	"github.com/sells-group/leadgen-cli/internal/db"
	"github.com/sells-group/leadgen-cli/internal/enrich"
	"github.com/sells-group/leadgen-cli/internal/extract"
	"github.com/sells-group/leadgen-cli/internal/joblog"
	"github.com/sells-group/leadgen-cli/internal/normalize"
	"github.com/sells-group/leadgen-cli/internal/pipeline"
	"github.com/sells-group/leadgen-cli/internal/resilience"
	"github.com/sells-group/leadgen-cli/internal/search"
	"github.com/sells-group/leadgen-cli/internal/serp"
	"github.com/sells-group/leadgen-cli/internal/store"
	anthropicpkg "github.com/sells-group/leadgen-cli/pkg/anthropic"
	"github.com/sells-group/leadgen-cli/pkg/chatcompletion"
	"github.com/sells-group/leadgen-cli/pkg/google"
	"github.com/sells-group/leadgen-cli/pkg/jina"
	"github.com/sells-group/leadgen-cli/pkg/notion"
	sfpkg "github.com/sells-group/leadgen-cli/pkg/salesforce"
)

// closeTimeout bounds the final job log flush.
const closeTimeout = 10 * time.Second

// env holds the store, clients, and stage orchestrators shared by commands.
type env struct {
	Store  store.Store
	Logs   *joblog.Sink
	AI     *ai.Service
	Runner *pipeline.Runner

	mirror *joblog.KafkaMirror
}

// Close flushes the job log and releases the store.
func (e *env) Close() {
	if e.Logs != nil {
		ctx, cancel := context.WithTimeout(context.Background(), closeTimeout)
		if err := e.Logs.Close(ctx); err != nil {
			zap.L().Warn("job log close failed", zap.Error(err))
		}
		cancel()
	}
	if e.mirror != nil {
		if err := e.mirror.Close(); err != nil {
			zap.L().Warn("kafka mirror close failed", zap.Error(err))
		}
	}
	if e.Store != nil {
		_ = e.Store.Close()
	}
}

// initStore opens the configured backend and applies migrations.
func initStore(ctx context.Context) (store.Store, error) {
	if err := cfg.Validate("store"); err != nil {
		return nil, err
	}

	var (
		st  store.Store
		err error
	)
	switch cfg.Store.Driver {
	case "memory":
		st = store.NewMemory()
	case "sqlite":
		st, err = store.NewSQLite(cfg.Store.DatabaseURL)
	case "postgres":
		st, err = store.NewPostgres(ctx, cfg.Store.DatabaseURL, db.PoolConfig{
			MaxConns: cfg.Store.MaxConns,
			MinConns: cfg.Store.MinConns,
		})
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
	if err != nil {
		return nil, err
	}

	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}
	return st, nil
}

// initAI builds the enrichment service over the configured completion
// backend. An unconfigured backend yields a service that answers with
// fallbacks.
func initAI() *ai.Service {
	var completer ai.Completer
	switch cfg.AI.Provider {
	case "anthropic":
		if cfg.Anthropic.Key == "" {
			zap.L().Warn("anthropic.key not set, AI operations use fallbacks")
			break
		}
		completer = ai.NewAnthropicCompleter(anthropicpkg.NewClient(cfg.Anthropic.Key), cfg.Anthropic.Model, cfg.Anthropic.MaxTokens)
	case "chat":
		if cfg.Chat.Key == "" {
			zap.L().Warn("chat.key not set, AI operations use fallbacks")
			break
		}
		opts := []chatcompletion.Option{chatcompletion.WithModel(cfg.Chat.Model)}
		if cfg.Chat.BaseURL != "" {
			opts = append(opts, chatcompletion.WithBaseURL(cfg.Chat.BaseURL))
		}
		if cfg.Chat.Deployment != "" {
			opts = append(opts, chatcompletion.WithAzure(cfg.Chat.Deployment, cfg.Chat.APIVersion))
		}
		completer = ai.NewChatCompleter(chatcompletion.NewClient(cfg.Chat.Key, opts...), cfg.Chat.Model)
	default:
		zap.L().Info("ai provider disabled, AI operations use fallbacks", zap.String("provider", cfg.AI.Provider))
	}

	breaker := resilience.NewBreaker("ai", cfg.AI.BreakerThreshold, time.Duration(cfg.AI.BreakerResetSecs)*time.Second)
	return ai.NewService(completer,
		ai.WithBreaker(breaker),
		ai.WithIndustryClassifier(normalize.NewIndustryClassifier(cfg.Industries)),
	)
}

// initProvider builds the configured web search provider.
func initProvider(f browser.Fetcher) (search.Provider, error) {
	var g google.Client
	if cfg.Google.Key != "" && cfg.Google.CX != "" {
		var opts []google.Option
		if cfg.Google.BaseURL != "" {
			opts = append(opts, google.WithBaseURL(cfg.Google.BaseURL))
		}
		g = google.NewClient(cfg.Google.Key, cfg.Google.CX, opts...)
	}

	var j jina.Client
	if cfg.Jina.Key != "" {
		var opts []jina.Option
		if cfg.Jina.SearchBaseURL != "" {
			opts = append(opts, jina.WithSearchBaseURL(cfg.Jina.SearchBaseURL))
		}
		j = jina.NewClient(cfg.Jina.Key, opts...)
	}

	return search.New(cfg.Search.Provider, search.Deps{Fetcher: f, Google: g, Jina: j})
}

// initEnv wires the store, job log, AI service, and every stage runner.
// Callers should defer env.Close().
func initEnv(ctx context.Context) (*env, error) {
	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}
	e := &env{Store: st}

	var sinkOpts []joblog.Option
	if len(cfg.Kafka.Brokers) > 0 {
		e.mirror = joblog.NewKafkaMirror(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		sinkOpts = append(sinkOpts, joblog.WithMirror(e.mirror))
		zap.L().Info("mirroring job logs to kafka", zap.Strings("brokers", cfg.Kafka.Brokers), zap.String("topic", cfg.Kafka.Topic))
	}
	e.Logs = joblog.NewSink(st, joblog.Config{
		Buffer:        cfg.JobLog.Buffer,
		BatchSize:     cfg.JobLog.BatchSize,
		FlushInterval: time.Duration(cfg.JobLog.FlushMS) * time.Millisecond,
	}, sinkOpts...)

	e.AI = initAI()
	scorer := normalize.NewScorer(cfg.Scoring.Weights())
	industries := normalize.NewIndustryClassifier(cfg.Industries)

	chrome := browser.New(browser.Config{
		ChromePath: cfg.Browser.ChromePath,
		Headless:   cfg.Browser.Headless,
		NavTimeout: time.Duration(cfg.Browser.NavTimeoutSecs) * time.Second,
		Settle:     time.Duration(cfg.Browser.SettleMS) * time.Millisecond,
		UserAgent:  cfg.Browser.UserAgent,
	})

	provider, err := initProvider(chrome)
	if err != nil {
		e.Close()
		return nil, err
	}
	extractor := extract.NewBrowserExtractor(chrome, extract.NewParser(cfg.Fingerprints, scorer))

	deps := pipeline.Deps{
		Jobs: st,
		SERP: serp.New(st, provider, e.AI, e.Logs, serp.Config{
			QueryDelay: cfg.Search.QueryDelay(),
			MaxQueries: cfg.Search.MaxQueries,
			MaxResults: cfg.Search.MaxResults,
			Templates:  cfg.Search.Templates,
		}),
		Enrich: enrich.New(st, extractor, e.AI, e.Logs, enrich.Config{
			Delay:          cfg.Enrich.Delay(),
			MaxEnrichments: cfg.Enrich.MaxEnrichments,
		}, enrich.WithScorer(scorer), enrich.WithIndustryClassifier(industries)),
		Logs: e.Logs,
	}

	// The agent drives tool use directly and needs an Anthropic key.
	if cfg.Anthropic.Key != "" {
		deps.Agent = agent.New(agent.Deps{
			Repo:      st,
			Client:    anthropicpkg.NewClient(cfg.Anthropic.Key),
			Provider:  provider,
			Extractor: extractor,
			AI:        e.AI,
			Logs:      e.Logs,
			Scorer:    scorer,
		}, agent.Config{
			Model:         cfg.Anthropic.AgentModel,
			MaxTokens:     cfg.Anthropic.MaxTokens,
			MaxIterations: cfg.Agent.MaxIterations,
			MaxCompanies:  cfg.Agent.MaxCompanies,
		})
	} else {
		zap.L().Debug("anthropic.key not set, agent stage disabled")
	}

	e.Runner = pipeline.New(deps)
	return e, nil
}

func initNotion() (notion.Client, error) {
	if err := cfg.Validate("notion"); err != nil {
		return nil, err
	}
	return notion.NewClient(cfg.Notion.Token), nil
}

func initSalesforce() (sfpkg.Client, error) {
	if err := cfg.Validate("salesforce"); err != nil {
		return nil, err
	}

	pemData, err := os.ReadFile(cfg.Salesforce.KeyPath)
	if err != nil {
		return nil, eris.Wrap(err, "read salesforce JWT private key")
	}

	return sfpkg.Connect(sfpkg.JWTConfig{
		LoginURL: cfg.Salesforce.LoginURL,
		Username: cfg.Salesforce.Username,
		ClientID: cfg.Salesforce.ClientID,
		KeyPEM:   pemData,
	})
}
