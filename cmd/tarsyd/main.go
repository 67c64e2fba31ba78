// tarsyd runs the agent runtime server: HTTP/SSE API, background
// subscriber-expiry and orphan-recovery sweeps, backed by PostgreSQL.
package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"github.com/codeready-toolchain/tarsy-agent-runtime/pkg/api"
	"github.com/codeready-toolchain/tarsy-agent-runtime/pkg/browser"
	"github.com/codeready-toolchain/tarsy-agent-runtime/pkg/cleanup"
	"github.com/codeready-toolchain/tarsy-agent-runtime/pkg/config"
	"github.com/codeready-toolchain/tarsy-agent-runtime/pkg/database"
	"github.com/codeready-toolchain/tarsy-agent-runtime/pkg/events"
	"github.com/codeready-toolchain/tarsy-agent-runtime/pkg/llm"
	"github.com/codeready-toolchain/tarsy-agent-runtime/pkg/masking"
	"github.com/codeready-toolchain/tarsy-agent-runtime/pkg/runtime"
	"github.com/codeready-toolchain/tarsy-agent-runtime/pkg/sandbox"
	"github.com/codeready-toolchain/tarsy-agent-runtime/pkg/search"
	"github.com/codeready-toolchain/tarsy-agent-runtime/pkg/store"
)

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// orphanScanInterval is how often the background orphan sweep runs,
// separate from the one-shot startup pass CleanupOrphans always does
// first.
const orphanScanInterval = 2 * time.Minute

func main() {
	configDir := flag.String("config-dir",
		getEnv("CONFIG_DIR", "./deploy/config"),
		"Path to configuration directory")
	flag.Parse()

	envPath := filepath.Join(*configDir, ".env")
	if err := godotenv.Load(envPath); err != nil {
		log.Printf("Warning: could not load %s: %v", envPath, err)
		log.Printf("Continuing with existing environment variables...")
	} else {
		log.Printf("Loaded environment from %s", envPath)
	}

	httpPort := getEnv("HTTP_PORT", "8080")
	gin.SetMode(getEnv("GIN_MODE", "debug"))

	ctx := context.Background()

	loaded, err := config.Initialize(ctx, *configDir)
	if err != nil {
		log.Fatalf("failed to initialize configuration: %v", err)
	}
	cfg := loaded.Config

	st, closeStore := mustOpenStore(ctx)
	defer closeStore()

	reg := events.NewRegistry(st)
	masker := masking.NewService(cfg.Masking)

	llmClient, err := mustOpenLLMClient()
	if err != nil {
		log.Fatalf("failed to connect to LLM gateway: %v", err)
	}

	rt := runtime.New(
		st,
		reg,
		sandbox.NewMemoryFactory(),
		browser.NewMemoryFactory(),
		llmClient,
		search.NewStubEngine(),
		masker,
		&cfg.Runtime,
		&cfg.Events,
	)

	cleaner := cleanup.New(st, rt, reg, &cfg.Events, orphanScanInterval)
	if n, err := cleaner.CleanupOrphans(ctx); err != nil {
		log.Fatalf("startup orphan recovery failed: %v", err)
	} else if n > 0 {
		slog.Warn("recovered orphaned agents at startup", "count", n)
	}
	cleaner.Start(ctx)
	defer cleaner.Stop()

	srv := api.NewServer(rt, st, reg, cleaner, &cfg.Events)

	log.Printf("tarsyd listening on :%s", httpPort)
	if err := srv.Run(":" + httpPort); err != nil {
		log.Fatalf("server exited: %v", err)
	}
}

// mustOpenStore opens the PostgreSQL-backed Store, applying migrations
// first via database.NewClient. STORE_BACKEND=memory swaps in an
// in-memory Store for local development, skipping the database
// connection entirely.
func mustOpenStore(ctx context.Context) (store.Store, func()) {
	if getEnv("STORE_BACKEND", "postgres") == "memory" {
		log.Println("STORE_BACKEND=memory: using in-memory store, nothing persists across restarts")
		return store.NewMemory(), func() {}
	}

	dbCfg, err := database.LoadConfigFromEnv()
	if err != nil {
		log.Fatalf("failed to load database config: %v", err)
	}

	dbClient, err := database.NewClient(ctx, dbCfg)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}
	log.Println("connected to PostgreSQL and applied migrations")

	pgStore, err := store.NewPostgres(ctx, dbCfg.DSN())
	if err != nil {
		_ = dbClient.Close()
		log.Fatalf("failed to open store: %v", err)
	}

	return pgStore, func() { _ = dbClient.Close() }
}

// mustOpenLLMClient dials the LLM gateway named by LLM_GATEWAY_ADDR. An
// unset address falls back to a stub client so tarsyd can run without a
// live gateway in local development.
func mustOpenLLMClient() (llm.Client, error) {
	addr := os.Getenv("LLM_GATEWAY_ADDR")
	if addr == "" {
		log.Println("LLM_GATEWAY_ADDR unset: using stub LLM client")
		return llm.NewStubClient(), nil
	}
	return llm.NewGRPCClient(addr)
}
