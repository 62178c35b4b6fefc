package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/kadirpekel/argus/pkg/agent"
	"github.com/kadirpekel/argus/pkg/browser"
	"github.com/kadirpekel/argus/pkg/config"
	"github.com/kadirpekel/argus/pkg/embedders"
	"github.com/kadirpekel/argus/pkg/knowledge"
	"github.com/kadirpekel/argus/pkg/llms"
	"github.com/kadirpekel/argus/pkg/memory"
	"github.com/kadirpekel/argus/pkg/server"
	"github.com/kadirpekel/argus/pkg/store"
	"github.com/kadirpekel/argus/pkg/vector"
)

// closeGroup collects cleanup functions and runs them in reverse order.
type closeGroup []func()

func (g closeGroup) close() {
	for i := len(g) - 1; i >= 0; i-- {
		g[i]()
	}
}

// loadConfig resolves the effective configuration: the given file when set,
// zero-config from the environment otherwise. The loader is nil in
// zero-config mode.
func loadConfig(ctx context.Context, path string, zero config.ZeroConfigOptions) (*config.Config, *config.Loader, error) {
	if path != "" {
		cfg, loader, err := config.LoadConfigFile(ctx, path)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to load config: %w", err)
		}
		slog.Info("Loaded configuration", "path", path)
		return cfg, loader, nil
	}

	cfg := config.ZeroConfig(zero)
	if llm, err := cfg.AgentLLM(); err == nil {
		slog.Info("Using zero-config mode", "provider", llm.Provider, "model", llm.Model)
	}
	return cfg, nil, nil
}

// buildAgent assembles one complete agent: a fresh driver, the configured
// LLM client (or the fallback planner when noLLM is set), and a memory
// manager with persistence and recall wired per config. The returned
// release closes everything the agent owns.
func buildAgent(ctx context.Context, cfg *config.Config, noLLM bool) (*agent.Agent, func(), error) {
	var closers closeGroup

	driver := browser.NewChromeDriver(&cfg.Browser)
	closers = append(closers, func() {
		if err := driver.Close(); err != nil {
			slog.Warn("Browser close failed", "error", err)
		}
	})

	var llm llms.LLMClient
	opts := []agent.Option{agent.WithConfig(cfg)}
	if noLLM {
		opts = append(opts, agent.WithPlanner(agent.NewFallbackPlanner()))
	} else {
		llmCfg, err := cfg.AgentLLM()
		if err != nil {
			closers.close()
			return nil, nil, err
		}
		llm, err = llms.New(llmCfg)
		if err != nil {
			closers.close()
			return nil, nil, fmt.Errorf("failed to create llm client: %w", err)
		}
	}

	mem, memClosers, err := buildMemory(ctx, cfg)
	if err != nil {
		closers.close()
		return nil, nil, err
	}
	closers = append(closers, memClosers...)
	opts = append(opts, agent.WithMemory(mem))

	ag, err := agent.New(driver, llm, opts...)
	if err != nil {
		closers.close()
		return nil, nil, err
	}
	return ag, closers.close, nil
}

// buildMemory assembles the memory manager: episode and skill persistence
// when a store backend is configured, vector-backed recall when enabled.
// Failures loading persisted state are downgraded to warnings; the manager
// starts empty instead.
func buildMemory(ctx context.Context, cfg *config.Config) (*memory.Manager, closeGroup, error) {
	var closers closeGroup
	var opts []memory.Option

	st, err := store.New(&cfg.Store, cfg.Databases[cfg.Store.Database])
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open store: %w", err)
	}
	if st != nil {
		opts = append(opts, memory.WithEpisodeStore(st), memory.WithSkillStore(st))
		closers = append(closers, func() {
			if err := st.Close(); err != nil {
				slog.Warn("Store close failed", "error", err)
			}
		})
	}

	if cfg.Memory.Recall.Enabled {
		rec, closeRec, err := buildRecaller(cfg, cfg.Memory.Recall.Embedder, cfg.Memory.Recall.Vector, cfg.Memory.Recall.Collection)
		if err != nil {
			closers.close()
			return nil, nil, err
		}
		opts = append(opts, memory.WithRecaller(rec))
		closers = append(closers, closeRec)
	}

	m, err := memory.NewManager(&cfg.Memory, opts...)
	if err != nil {
		closers.close()
		return nil, nil, err
	}
	if err := m.Load(ctx); err != nil {
		slog.Warn("Failed to load persistent memory", "error", err)
	}
	return m, closers, nil
}

// buildRecaller pairs a named embedder with a named vector store over one
// collection.
func buildRecaller(cfg *config.Config, embedderName, vectorName, collection string) (*vector.Recaller, func(), error) {
	emb, err := embedders.New(cfg.Embedders[embedderName])
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create embedder %q: %w", embedderName, err)
	}
	vp, err := vector.New(cfg.Vectors[vectorName])
	if err != nil {
		_ = emb.Close()
		return nil, nil, fmt.Errorf("failed to create vector store %q: %w", vectorName, err)
	}
	rec, err := vector.NewRecaller(vp, emb, collection)
	if err != nil {
		_ = emb.Close()
		_ = vp.Close()
		return nil, nil, err
	}
	cleanup := func() {
		if err := vp.Close(); err != nil {
			slog.Warn("Vector store close failed", "error", err)
		}
		_ = emb.Close()
	}
	return rec, cleanup, nil
}

// buildSeeder assembles the knowledge seeder against the given manager,
// attaching a vector index when the knowledge section names one.
func buildSeeder(cfg *config.Config, mem *memory.Manager) (*knowledge.Seeder, closeGroup, error) {
	var closers closeGroup
	var opts []knowledge.SeederOption

	if cfg.Knowledge.Embedder != "" && cfg.Knowledge.Vector != "" {
		rec, closeRec, err := buildRecaller(cfg, cfg.Knowledge.Embedder, cfg.Knowledge.Vector, cfg.Knowledge.Collection)
		if err != nil {
			return nil, nil, err
		}
		opts = append(opts, knowledge.WithRecaller(rec))
		closers = append(closers, closeRec)
	}

	seeder, err := knowledge.NewSeeder(&cfg.Knowledge, mem, opts...)
	if err != nil {
		closers.close()
		return nil, nil, err
	}
	return seeder, closers, nil
}

// seedKnowledge indexes configured document sources in the background.
// Seeds land in a manager of their own and persist through the vector
// index; live agents pick them up via recall, never by shared mutation.
func seedKnowledge(ctx context.Context, cfg *config.Config) {
	if len(cfg.Knowledge.Sources) == 0 {
		return
	}
	if cfg.Knowledge.Embedder == "" || cfg.Knowledge.Vector == "" {
		slog.Warn("Knowledge sources configured without a vector index; skipping startup seeding")
		return
	}

	mem, err := memory.NewManager(&cfg.Memory)
	if err != nil {
		slog.Warn("Knowledge seeding skipped", "error", err)
		return
	}
	seeder, closers, err := buildSeeder(cfg, mem)
	if err != nil {
		slog.Warn("Knowledge seeding skipped", "error", err)
		return
	}

	go func() {
		defer closers.close()
		res, err := seeder.SeedAll(ctx)
		if err != nil {
			slog.Warn("Knowledge seeding failed", "error", err)
			return
		}
		slog.Info("Knowledge seeded",
			"files", res.Files,
			"entries", res.Entries,
			"skipped", res.Skipped)
	}()
}

// agentFactory hands the server a fresh agent per run. Each run gets its
// own driver and memory manager; a per-run step cap applies to a copy of
// the config.
func agentFactory(cfg *config.Config) server.AgentFactory {
	return func(ctx context.Context, maxSteps int) (*agent.Agent, func(), error) {
		runCfg := *cfg
		if maxSteps > 0 {
			runCfg.Agent.MaxSteps = maxSteps
		}
		return buildAgent(ctx, &runCfg, false)
	}
}
