package main

import (
	"github.com/sells-group/extraction-service/internal/agent"
	"github.com/sells-group/extraction-service/internal/config"
	"github.com/sells-group/extraction-service/internal/orchestrator"
	"github.com/sells-group/extraction-service/internal/resilience"
	"github.com/sells-group/extraction-service/internal/session"
	"github.com/sells-group/extraction-service/pkg/anthropic"
	"github.com/sells-group/extraction-service/pkg/reader"
)

// newOrchestrator wires the real collaborators behind the pipeline:
// reader proxy, Anthropic client, and the two agents.
func newOrchestrator(cfg *config.Config, store *session.Store, notify orchestrator.Notifier) *orchestrator.Orchestrator {
	rc := reader.NewClient(cfg.Reader.Key,
		reader.WithBaseURL(cfg.Reader.BaseURL),
		reader.WithRateLimit(cfg.Reader.RateRPS, cfg.Reader.RateBurst),
	)
	llm := anthropic.NewClient(cfg.Anthropic.Key)

	agentCfg := agent.Config{
		Model:         cfg.Anthropic.Model,
		MaxTokens:     cfg.Anthropic.MaxTokens,
		MaxPages:      cfg.Extraction.MaxPages,
		PageCharLimit: cfg.Extraction.PageCharLimit,
		Retry: resilience.Policy{
			MaxAttempts:    cfg.Retry.MaxAttempts,
			InitialBackoff: cfg.Retry.InitialBackoff(),
		},
	}

	return orchestrator.New(
		store,
		agent.NewDiscovery(rc, llm, agentCfg),
		agent.NewExtraction(rc, llm, agentCfg),
		notify,
		orchestrator.Config{
			MaxConcurrency: cfg.Extraction.MaxConcurrency,
			StartDelay:     cfg.Extraction.StartDelay(),
		},
	)
}
