// Command orchestrator runs the constitutional multi-agent build
// pipeline as an HTTP service: the Conductor, Artifact Ledger, Envelope
// Runtime, Agent Host, Repair sub-loop and Completion Auditor wired
// together behind the eight operations spec.md §6 exposes.
package main

import (
	"context"
	"crypto/ed25519"
	"database/sql"
	"encoding/hex"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"
	_ "modernc.org/sqlite"

	"github.com/IlyasuSeidu/forge-sub004/configs"
	"github.com/IlyasuSeidu/forge-sub004/pkg/agentbody"
	"github.com/IlyasuSeidu/forge-sub004/pkg/agenthost"
	"github.com/IlyasuSeidu/forge-sub004/pkg/approval"
	"github.com/IlyasuSeidu/forge-sub004/pkg/auth"
	"github.com/IlyasuSeidu/forge-sub004/pkg/blobstore"
	"github.com/IlyasuSeidu/forge-sub004/pkg/completion"
	"github.com/IlyasuSeidu/forge-sub004/pkg/conductor"
	"github.com/IlyasuSeidu/forge-sub004/pkg/config"
	"github.com/IlyasuSeidu/forge-sub004/pkg/contracts"
	"github.com/IlyasuSeidu/forge-sub004/pkg/crypto"
	"github.com/IlyasuSeidu/forge-sub004/pkg/envelope"
	"github.com/IlyasuSeidu/forge-sub004/pkg/eventlog"
	"github.com/IlyasuSeidu/forge-sub004/pkg/ledger"
	"github.com/IlyasuSeidu/forge-sub004/pkg/llmprovider"
	"github.com/IlyasuSeidu/forge-sub004/pkg/observability"
	"github.com/IlyasuSeidu/forge-sub004/pkg/repair"
	"github.com/IlyasuSeidu/forge-sub004/pkg/workspace"
)

// firstAgentPerPhase maps a phase to the first envelope declared against
// it in configs/envelopes.yaml. It feeds the Conductor's advisory
// next_action only; phases with more than one required artifact type
// still need the operator to invoke the remaining agent names directly
// through POST /v1/requests/{id}/agents/{agent}/run.
var firstAgentPerPhase = conductor.PhaseAgent{
	contracts.PhaseIdea:              "intent-agent",
	contracts.PhaseBasePromptReady:   "base-prompt-agent",
	contracts.PhasePlanning:          "master-plan-agent",
	contracts.PhaseScreensDefined:    "screen-index-agent",
	contracts.PhaseFlowsDefined:      "user-role-agent",
	contracts.PhaseDesignsReady:      "visual-expansion-agent",
	contracts.PhaseRulesLocked:       "project-rules-agent",
	contracts.PhaseBuildPromptsReady: "build-prompt-agent",
	contracts.PhaseBuilding:          "execution-plan-agent",
	contracts.PhaseVerifying:         "verification-result-agent",
	contracts.PhaseVerificationFailed: "repair-plan-agent",
}

func main() {
	cfg := config.Load()
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	obs, err := observability.New(ctx, observability.DefaultConfig())
	if err != nil {
		log.Fatalf("observability: %v", err)
	}
	defer func() { _ = obs.Shutdown(context.Background()) }()

	lg, db, closeDB := mustLedger(ctx, cfg)
	if closeDB != nil {
		defer closeDB()
	}

	events := eventlog.NewInMemory()
	store := mustConductorStore(ctx, db)
	locker := mustLocker(cfg)
	machine := conductor.New(store, locker, events, firstAgentPerPhase)

	registry := envelope.NewRegistry()
	envelopeDoc := configs.DefaultEnvelopes
	if custom, readErr := os.ReadFile(filepath.Join(cfg.DataDir, "envelopes.yaml")); readErr == nil {
		envelopeDoc = custom
	}
	if err := envelope.LoadRegistryFromYAML(registry, envelopeDoc); err != nil {
		log.Fatalf("load envelope registry: %v", err)
	}
	if err := registry.ValidateAgainstPhases(); err != nil {
		log.Fatalf("envelope registry: %v", err)
	}
	runtime := envelope.NewRuntime(registry)

	host := agenthost.New(machine, runtime, lg, events)
	auditor := completion.NewAuditor(runtime, lg, events)

	fs, err := workspace.NewLocalFS(filepath.Join(cfg.DataDir, "workspace"))
	if err != nil {
		log.Fatalf("workspace: %v", err)
	}
	repairAgent := repair.NewAgent(fs)

	provider := mustLLMProvider(cfg)

	signer, err := loadOrGenerateSigner(cfg.DataDir)
	if err != nil {
		log.Fatalf("signer: %v", err)
	}
	issuer := approval.NewIssuer(signer)

	repairSigner, err := signer.DeriveSigner("repair-execution-log", "repair-log")
	if err != nil {
		log.Fatalf("derive repair log signer: %v", err)
	}

	jwtValidator := auth.NewJWTValidator([]byte(cfg.JWTSecret))

	api := &server{
		cfg:          cfg,
		logger:       logger,
		obs:          obs,
		machine:      machine,
		ledger:       lg,
		events:       events,
		registry:     registry,
		runtime:      runtime,
		host:         host,
		auditor:      auditor,
		repairAgent:  repairAgent,
		provider:     provider,
		issuer:       issuer,
		repairSigner: repairSigner,
	}

	mux := http.NewServeMux()
	api.routes(mux)

	limiter := auth.NewRateLimiter(20, 40)

	var handler http.Handler = mux
	handler = auth.NewMiddleware(jwtValidator)(handler)
	handler = limiter.Middleware(handler)
	handler = auth.CorrelationIDMiddleware(handler)

	httpServer := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("orchestrator listening", "port", cfg.Port, "shadow_mode", cfg.ShadowMode)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", "error", err)
	}
}

// mustLedger opens a Postgres connection when DATABASE_URL is set, or
// falls back to lite mode: a local SQLite file under DataDir. Either way
// the SQL ledger is wrapped in a content-addressed blobstore.Store. It
// also returns the raw *sql.DB (nil if lite mode itself fell back to a
// pure in-memory ledger) so the Conductor's state store can share the
// same connection, and an optional close function for that connection.
func mustLedger(ctx context.Context, cfg *config.Config) (ledger.Ledger, *sql.DB, func()) {
	var (
		db  *sql.DB
		err error
	)
	if cfg.DatabaseURL != "" {
		db, err = sql.Open("postgres", cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("connect to postgres: %v", err)
		}
		if err := db.PingContext(ctx); err != nil {
			log.Fatalf("ping postgres: %v", err)
		}
		slog.Info("connected to postgres ledger")
	} else {
		if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
			log.Fatalf("data dir: %v", err)
		}
		dbPath := filepath.Join(cfg.DataDir, "orchestrator.db")
		db, err = sql.Open("sqlite", dbPath)
		if err != nil {
			slog.Warn("sqlite unavailable, falling back to in-memory ledger", "error", err)
			return ledger.NewInMemory(), nil, nil
		}
		slog.Info("running in lite mode", "db_path", dbPath)
	}

	sqlLedger := ledger.NewSQL(db)
	if err := sqlLedger.Init(ctx); err != nil {
		log.Fatalf("init ledger schema: %v", err)
	}
	blobs, err := blobstore.NewStoreFromEnv(ctx)
	if err != nil {
		log.Fatalf("blob store: %v", err)
	}
	return ledger.NewBlobBacked(sqlLedger, blobs), db, func() { _ = db.Close() }
}

// mustConductorStore shares the ledger's *sql.DB when one is open, so the
// Conductor's phase state persists across restarts the same way approved
// artifacts do. A nil db (lite mode fell back to an in-memory ledger)
// gets a pure in-memory conductor store to match.
func mustConductorStore(ctx context.Context, db *sql.DB) conductor.StateStore {
	if db == nil {
		return conductor.NewMemoryStore()
	}
	store := conductor.NewSQLStore(db)
	if err := store.Init(ctx); err != nil {
		log.Fatalf("init conductor schema: %v", err)
	}
	return store
}

// mustLocker returns a RedisLocker when REDIS_URL is configured (the
// multi-node path, per spec.md's note that the Conductor lock must be
// distributed once more than one orchestrator instance is running), and
// an InProcessLocker otherwise.
func mustLocker(cfg *config.Config) conductor.Locker {
	if cfg.RedisURL == "" {
		return conductor.NewInProcessLocker()
	}
	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		log.Fatalf("parse REDIS_URL: %v", err)
	}
	client := redis.NewClient(opts)
	return conductor.NewRedisLocker(client, 30)
}

// mustLLMProvider returns a deterministic stub in shadow mode, or a real
// OpenAI-compatible client against cfg.LLMServiceURL otherwise.
func mustLLMProvider(cfg *config.Config) llmprovider.Provider {
	if cfg.ShadowMode {
		return llmprovider.Func(func(ctx context.Context, req llmprovider.Request) (*llmprovider.Response, error) {
			return &llmprovider.Response{Content: fmt.Sprintf("{\"shadow_mode\":true,\"system\":%q}", req.SystemPrompt)}, nil
		})
	}
	return llmprovider.NewOpenAICompatible(cfg.LLMServiceURL, cfg.LLMAPIKey, cfg.LLMModel)
}

func loadOrGenerateSigner(dataDir string) (*crypto.Ed25519Signer, error) {
	keyPath := filepath.Join(dataDir, "approval_root.key")
	if raw, err := os.ReadFile(keyPath); err == nil {
		seed, err := hex.DecodeString(string(raw))
		if err != nil {
			return nil, fmt.Errorf("invalid approval_root.key: %w", err)
		}
		priv := ed25519.NewKeyFromSeed(seed)
		return crypto.NewEd25519SignerFromKey(priv, "approval-root"), nil
	}

	signer, err := crypto.NewEd25519Signer("approval-root")
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, err
	}
	return signer, os.WriteFile(keyPath, []byte(hex.EncodeToString(signer.Seed())), 0o600)
}

// agentBody resolves the agenthost.Body for an envelope, sized to the
// agent's deterministic scope.
func agentBody(provider llmprovider.Provider, env *contracts.Envelope) agenthost.Body {
	temperature := 0.7
	if env.Scope.Deterministic {
		temperature = env.Scope.MaxTemperature
	}
	systemPrompt := fmt.Sprintf("You are the %s. Produce exactly one %s artifact from the given inputs.", env.Name, env.Produces)
	return agentbody.Generic(provider, systemPrompt, temperature)
}
