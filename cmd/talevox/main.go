// Command talevox is the main entry point for the Talevox NPC interaction server.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	anyllmlib "github.com/mozilla-ai/any-llm-go"
	"golang.org/x/sync/errgroup"

	"github.com/talevox/talevox/internal/config"
	"github.com/talevox/talevox/internal/conversation"
	"github.com/talevox/talevox/internal/health"
	"github.com/talevox/talevox/internal/history"
	"github.com/talevox/talevox/internal/observe"
	"github.com/talevox/talevox/internal/persona"
	"github.com/talevox/talevox/internal/resilience"
	"github.com/talevox/talevox/internal/server"
	"github.com/talevox/talevox/pkg/provider/llm"
	"github.com/talevox/talevox/pkg/provider/llm/anyllm"
	llmopenai "github.com/talevox/talevox/pkg/provider/llm/openai"
	"github.com/talevox/talevox/pkg/provider/stt"
	sttopenai "github.com/talevox/talevox/pkg/provider/stt/openai"
	"github.com/talevox/talevox/pkg/provider/stt/whisper"
	"github.com/talevox/talevox/pkg/provider/tts"
	"github.com/talevox/talevox/pkg/provider/tts/coqui"
	"github.com/talevox/talevox/pkg/provider/tts/elevenlabs"
)

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	flag.Parse()

	// ── Load configuration ────────────────────────────────────────────────────
	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "talevox: config file %q not found — copy configs/example.yaml to get started\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "talevox: %v\n", err)
		}
		return 1
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	logger := newLogger(cfg.Server.LogLevel)
	slog.SetDefault(logger)

	slog.Info("talevox starting",
		"config", *configPath,
		"listen_addr", cfg.Server.ListenAddr,
		"log_level", cfg.Server.LogLevel,
	)

	// ── Signal context ────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Telemetry ─────────────────────────────────────────────────────────────
	otelShutdown, err := observe.InitProvider(ctx, observe.ProviderConfig{
		ServiceName: "talevox",
	})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := otelShutdown(shutdownCtx); err != nil {
			slog.Warn("telemetry shutdown error", "err", err)
		}
	}()

	// ── Provider registry ─────────────────────────────────────────────────────
	reg := config.NewRegistry()
	registerBuiltinProviders(reg)

	// ── Instantiate providers ─────────────────────────────────────────────────
	providers, err := buildProviders(cfg, reg)
	if err != nil {
		slog.Error("failed to build providers", "err", err)
		return 1
	}

	// ── Stores ────────────────────────────────────────────────────────────────
	stores, err := buildStores(ctx, cfg)
	if err != nil {
		slog.Error("failed to initialise storage", "err", err)
		return 1
	}
	defer stores.Close()

	if cfg.Storage.SeedDemoData {
		if err := seedDemoData(ctx, stores.Personas, stores.Histories, cfg.Conversation.DefaultVoiceID); err != nil {
			slog.Warn("seed demo data failed", "err", err)
		}
	}

	// ── Pipeline ──────────────────────────────────────────────────────────────
	pipeline := conversation.NewPipeline(
		providers.Recognizer,
		providers.Generator,
		providers.Synthesizer,
		stores.Personas,
		stores.Histories,
		conversation.WithLogger(logger),
		conversation.WithHistoryWindow(cfg.Conversation.HistoryWindow),
		conversation.WithDefaultVoice(tts.VoiceProfile{ID: cfg.Conversation.DefaultVoiceID}),
		conversation.WithDefaultLanguage(cfg.Conversation.DefaultLanguage),
		conversation.WithStageTimeout(cfg.Conversation.StageTimeout.Std()),
	)

	// ── HTTP server ───────────────────────────────────────────────────────────
	srvCfg := server.Config{ListenAddr: cfg.Server.ListenAddr}
	if cfg.Server.TLS != nil {
		srvCfg.CertFile = cfg.Server.TLS.CertFile
		srvCfg.KeyFile = cfg.Server.TLS.KeyFile
	}
	srv := server.New(srvCfg, pipeline, stores.Personas, stores.Histories,
		health.New(stores.Checkers...), observe.DefaultMetrics(), logger)

	printStartupSummary(cfg)
	slog.Info("server ready — press Ctrl+C to shut down")

	g, gctx := errgroup.WithContext(ctx)
	g.Go(srv.Run)
	g.Go(func() error {
		<-gctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()

		slog.Info("shutdown signal received, stopping…")
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("run error", "err", err)
		return 1
	}
	slog.Info("goodbye")
	return 0
}

// ── Provider wiring ───────────────────────────────────────────────────────────

// providerSet holds the three pipeline providers built from configuration.
type providerSet struct {
	Recognizer  stt.Provider
	Generator   llm.Provider
	Synthesizer tts.Provider
}

// registerBuiltinProviders wires all built-in provider factories into reg.
// Each factory receives a config.ProviderEntry and constructs the appropriate
// provider from the real implementation packages.
func registerBuiltinProviders(reg *config.Registry) {
	// ── Recognizers ───────────────────────────────────────────────────────────

	reg.RegisterRecognizer("openai", func(entry config.ProviderEntry) (stt.Provider, error) {
		var opts []sttopenai.Option
		if entry.BaseURL != "" {
			opts = append(opts, sttopenai.WithBaseURL(entry.BaseURL))
		}
		return sttopenai.New(entry.APIKey, entry.Model, opts...)
	})

	// whisper is a local whisper.cpp server; it uses BaseURL for the address,
	// not an API key.
	reg.RegisterRecognizer("whisper", func(entry config.ProviderEntry) (stt.Provider, error) {
		var opts []whisper.Option
		if entry.Model != "" {
			opts = append(opts, whisper.WithModel(entry.Model))
		}
		return whisper.New(entry.BaseURL, opts...)
	})

	// ── Generators ────────────────────────────────────────────────────────────

	reg.RegisterGenerator("openai", func(entry config.ProviderEntry) (llm.Provider, error) {
		var opts []llmopenai.Option
		if entry.BaseURL != "" {
			opts = append(opts, llmopenai.WithBaseURL(entry.BaseURL))
		}
		return llmopenai.New(entry.APIKey, entry.Model, opts...)
	})

	// The remaining generation backends share one adapter: optional APIKey +
	// optional BaseURL.
	for _, providerName := range []string{
		"anthropic", "gemini", "deepseek", "mistral", "groq",
		"llamacpp", "llamafile",
	} {
		reg.RegisterGenerator(providerName, func(entry config.ProviderEntry) (llm.Provider, error) {
			var opts []anyllmlib.Option
			if entry.APIKey != "" {
				opts = append(opts, anyllmlib.WithAPIKey(entry.APIKey))
			}
			if entry.BaseURL != "" {
				opts = append(opts, anyllmlib.WithBaseURL(entry.BaseURL))
			}
			return anyllm.New(providerName, entry.Model, opts...)
		})
	}

	reg.RegisterGenerator("ollama", func(entry config.ProviderEntry) (llm.Provider, error) {
		var opts []anyllmlib.Option
		if entry.BaseURL != "" {
			opts = append(opts, anyllmlib.WithBaseURL(entry.BaseURL))
		}
		return anyllm.NewOllama(entry.Model, opts...)
	})

	// ── Synthesizers ──────────────────────────────────────────────────────────

	reg.RegisterSynthesizer("elevenlabs", func(entry config.ProviderEntry) (tts.Provider, error) {
		var opts []elevenlabs.Option
		if entry.Model != "" {
			opts = append(opts, elevenlabs.WithModel(entry.Model))
		}
		if outputFmt := optString(entry.Options, "output_format"); outputFmt != "" {
			opts = append(opts, elevenlabs.WithOutputFormat(outputFmt))
		}
		return elevenlabs.New(entry.APIKey, opts...)
	})

	reg.RegisterSynthesizer("coqui", func(entry config.ProviderEntry) (tts.Provider, error) {
		var opts []coqui.Option
		if lang := optString(entry.Options, "language"); lang != "" {
			opts = append(opts, coqui.WithLanguage(lang))
		}
		if mode := optString(entry.Options, "api_mode"); mode != "" {
			opts = append(opts, coqui.WithAPIMode(coqui.APIMode(mode)))
		}
		return coqui.New(entry.BaseURL, opts...), nil
	})
}

// buildProviders instantiates the providers named in cfg using the registry.
// The generator and synthesizer are mandatory; the recognizer is optional and
// its absence restricts the server to text-mode interactions.
func buildProviders(cfg *config.Config, reg *config.Registry) (*providerSet, error) {
	ps := &providerSet{}

	// Each provider runs behind its own circuit breaker so a flapping backend
	// sheds load quickly instead of queueing doomed calls.
	fbCfg := resilience.FallbackConfig{Logger: slog.Default()}

	if name := cfg.Providers.Recognizer.Name; name != "" {
		p, err := reg.CreateRecognizer(cfg.Providers.Recognizer)
		if err != nil {
			return nil, fmt.Errorf("create recognizer %q: %w", name, err)
		}
		ps.Recognizer = resilience.NewRecognizerFallback(p, name, fbCfg)
		slog.Info("provider created", "kind", "recognizer", "name", name)
	} else {
		slog.Warn("no recognizer configured — audio-mode requests will be rejected")
	}

	gen, err := reg.CreateGenerator(cfg.Providers.Generator)
	if err != nil {
		return nil, fmt.Errorf("create generator %q: %w", cfg.Providers.Generator.Name, err)
	}
	ps.Generator = resilience.NewGeneratorFallback(gen, cfg.Providers.Generator.Name, fbCfg)
	slog.Info("provider created", "kind", "generator", "name", cfg.Providers.Generator.Name)

	syn, err := reg.CreateSynthesizer(cfg.Providers.Synthesizer)
	if err != nil {
		return nil, fmt.Errorf("create synthesizer %q: %w", cfg.Providers.Synthesizer.Name, err)
	}
	ps.Synthesizer = resilience.NewSynthesizerFallback(syn, cfg.Providers.Synthesizer.Name, fbCfg)
	slog.Info("provider created", "kind", "synthesizer", "name", cfg.Providers.Synthesizer.Name)

	return ps, nil
}

// ── Storage wiring ────────────────────────────────────────────────────────────

// storeSet holds the stores plus their readiness checkers and cleanup.
type storeSet struct {
	Personas  persona.Store
	Histories history.Store
	Checkers  []health.Checker

	pool *pgxpool.Pool
}

// Close releases the database pool, if any.
func (s *storeSet) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// buildStores creates the persona and history stores for the configured
// backend and runs migrations for the postgres one.
func buildStores(ctx context.Context, cfg *config.Config) (*storeSet, error) {
	if cfg.Storage.Backend != config.StoragePostgres {
		slog.Info("using in-memory stores — data will not survive a restart")
		return &storeSet{
			Personas:  persona.NewMemStore(),
			Histories: history.NewMemStore(),
		}, nil
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.Storage.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create postgres pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	personas := persona.NewPostgresStore(pool)
	if err := personas.Migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	histories := history.NewPostgresStore(pool)
	if err := histories.Migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return &storeSet{
		Personas:  personas,
		Histories: histories,
		Checkers:  []health.Checker{health.DatabaseChecker(pool)},
		pool:      pool,
	}, nil
}

// seedDemoData inserts one demo NPC and player unless they already exist,
// giving a fresh deployment something to talk to.
func seedDemoData(ctx context.Context, personas persona.Store, histories history.Store, voiceID string) error {
	err := personas.Create(ctx, &persona.Persona{
		ID:          "npc_test",
		Description: "A woman who runs a clothing store. She is very attentive and curious about the people around her.",
		VoiceID:     voiceID,
	})
	if err != nil && !errors.Is(err, persona.ErrAlreadyExists) {
		return err
	}

	err = histories.CreatePlayer(ctx, "player_test")
	if err != nil && !errors.Is(err, history.ErrPlayerExists) {
		return err
	}

	slog.Info("demo data seeded", "npc", "npc_test", "player", "player_test")
	return nil
}

// ── Startup summary ───────────────────────────────────────────────────────────

func printStartupSummary(cfg *config.Config) {
	fmt.Println("╔═══════════════════════════════════════╗")
	fmt.Println("║         Talevox — startup summary     ║")
	fmt.Println("╠═══════════════════════════════════════╣")
	printProvider("Recognizer", cfg.Providers.Recognizer.Name, cfg.Providers.Recognizer.Model)
	printProvider("Generator", cfg.Providers.Generator.Name, cfg.Providers.Generator.Model)
	printProvider("Synthesizer", cfg.Providers.Synthesizer.Name, cfg.Providers.Synthesizer.Model)
	backend := cfg.Storage.Backend
	if backend == "" {
		backend = config.StorageMemory
	}
	fmt.Printf("║  Storage         : %-19s ║\n", backend)
	if cfg.Server.ListenAddr != "" {
		fmt.Printf("║  Listen addr     : %-19s ║\n", cfg.Server.ListenAddr)
	}
	fmt.Println("╚═══════════════════════════════════════╝")
}

func printProvider(kind, name, model string) {
	value := name
	if value == "" {
		value = "(not configured)"
	} else if model != "" {
		value = name + " / " + model
	}
	if len(value) > 19 {
		value = value[:16] + "…"
	}
	fmt.Printf("║  %-12s    : %-19s ║\n", kind, value)
}

// ── Logger ─────────────────────────────────────────────────────────────────────

func newLogger(level config.LogLevel) *slog.Logger {
	var lvl slog.Level
	switch level {
	case config.LogDebug:
		lvl = slog.LevelDebug
	case config.LogWarn:
		lvl = slog.LevelWarn
	case config.LogError:
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}

// ── Helpers ───────────────────────────────────────────────────────────────────

// optString extracts a string value from a provider Options map[string]any.
// Returns "" if the map is nil, the key is absent, or the value is not a string.
func optString(opts map[string]any, key string) string {
	if opts == nil {
		return ""
	}
	v, ok := opts[key]
	if !ok {
		return ""
	}
	s, ok := v.(string)
	if !ok {
		return ""
	}
	return s
}
