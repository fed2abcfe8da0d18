// Command contextcore is a small demonstration binary: it loads the module
// configuration, stores a few memories, assembles a prompt from a context
// store, and prints the result.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/promptmesh/contextcore/config"
	"github.com/promptmesh/contextcore/contextstore"
	"github.com/promptmesh/contextcore/embedding"
	"github.com/promptmesh/contextcore/memory"
	"github.com/promptmesh/contextcore/tokenizer"
)

func main() {
	configPath := flag.String("config", "", "path to YAML configuration")
	query := flag.String("query", "what music should I put on?", "retrieval query")
	flag.Parse()

	if err := run(*configPath, *query); err != nil {
		fmt.Fprintf(os.Stderr, "contextcore: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath, query string) error {
	cfg, err := config.NewLoader().WithConfigPath(configPath).Load()
	if err != nil {
		return err
	}

	logger := cfg.Log.NewLogger()
	defer func() { _ = logger.Sync() }()

	tokenizer.RegisterOpenAITokenizers()
	memory.RegisterDefaultBackends()

	records, err := memory.OpenBackend(cfg.MemoryBackend, logger)
	if err != nil {
		return err
	}
	defer func() { _ = records.Close() }()

	emb := embedding.NewHashEmbedder(0)
	index := memory.NewInMemoryIndex(emb.Dims())
	mem, err := memory.NewStore(cfg.Memory, emb, index, records, logger)
	if err != nil {
		return err
	}

	ctx := context.Background()
	if err := mem.LoadIndex(ctx); err != nil {
		return err
	}

	if _, err := mem.StorePreference(ctx, "demo-user", "likes jazz in the evening", 0, nil); err != nil {
		return err
	}
	if _, err := mem.StoreInteraction(ctx, "demo-user",
		"remember that I dislike interruptions during focus time",
		"Understood, I will keep sessions uninterrupted.", 0, nil); err != nil {
		return err
	}

	store := contextstore.New(cfg.Context, logger)
	store.AddSystem("You are a focused personal assistant.", nil)
	store.AddUser(query, nil)
	for _, rec := range mem.RetrieveRelevant(ctx, query, memory.RetrieveOptions{}) {
		store.AddMemoryRecord(*rec)
	}
	store.AddEnvironment("local demo session", nil)

	prompt := store.BuildPrompt(
		"{system_context}\n\nRelevant memories:\n{memory_context}\n\nUser:\n{user_context}\n\n(total cost: {token_count} units)",
		nil)
	fmt.Println(prompt)

	summary := store.Summary()
	logger.Info("context summary",
		zap.Int("items", summary.TotalItems),
		zap.Int("cost_units", summary.TotalCost))

	stats, err := mem.Stats(ctx)
	if err != nil {
		return err
	}
	logger.Info("memory stats",
		zap.Int("records", stats.TotalRecords),
		zap.Any("by_type", stats.ByType))
	return nil
}
