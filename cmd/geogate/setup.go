package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/rs/zerolog/log"

	"github.com/geogate/geogate/audit"
	"github.com/geogate/geogate/classifier"
	"github.com/geogate/geogate/config"
	"github.com/geogate/geogate/corpus"
	"github.com/geogate/geogate/llm"
	"github.com/geogate/geogate/normalize"
	"github.com/geogate/geogate/pipeline"
	"github.com/geogate/geogate/policy"
	"github.com/geogate/geogate/storage"
)

// app bundles the wired components behind the CLI commands.
type app struct {
	cfg        *config.Config
	classifier *classifier.Classifier
	corpus     *corpus.Store
	store      *storage.Store
	auditLog   *audit.Log
	policies   *policy.Engine
}

func loadConfig() (*config.Config, error) {
	if configPath == "" {
		return config.Default(), nil
	}
	return config.LoadConfig(configPath)
}

// newApp wires a classifier from configuration. A missing model key is
// not fatal: the pipeline degrades every call to REVIEW instead.
func newApp(ctx context.Context) (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	corpusStore, err := corpus.OpenStore(cfg.Corpus)
	if err != nil {
		return nil, fmt.Errorf("corpus load failed: %w", err)
	}

	glossary := normalize.Glossary{}
	if cfg.Glossary != "" {
		if g, err := normalize.LoadGlossary(cfg.Glossary); err == nil {
			glossary = g
		} else {
			log.Warn().Err(err).Str("path", cfg.Glossary).Msg("glossary not loaded")
		}
	}

	var client llm.Client
	if c, err := llm.NewOpenAIClient(); err == nil {
		client = c
	} else if errors.Is(err, llm.ErrUnavailable) {
		log.Warn().Msg("no model access configured, classifications degrade to REVIEW")
	} else {
		return nil, err
	}

	pipe := pipeline.New(client, pipeline.Options{
		ArbiterRuns: cfg.Pipeline.ArbiterRuns,
		Temperature: cfg.Model.Temperature,
		MaxTokens:   cfg.Model.MaxTokens,
		CallTimeout: cfg.Pipeline.CallTimeout,
	})

	auditLog, err := audit.Open(cfg.AuditDir)
	if err != nil {
		return nil, fmt.Errorf("audit log open failed: %w", err)
	}

	store := storage.NewStore(cfg.Database)

	engine := policy.NewEngine()
	for _, path := range cfg.Policies {
		code, err := os.ReadFile(path) // #nosec G304 -- path is intentional user input
		if err != nil {
			log.Warn().Err(err).Str("path", path).Msg("policy not loaded")
			continue
		}
		if err := engine.LoadPolicy(ctx, path, string(code)); err != nil {
			log.Warn().Err(err).Str("path", path).Msg("policy compile failed")
		}
	}

	return &app{
		cfg: cfg,
		classifier: classifier.New(corpusStore, glossary, pipe, auditLog,
			classifier.WithStore(store),
			classifier.WithTopK(cfg.Pipeline.TopK),
		),
		corpus:   corpusStore,
		store:    store,
		auditLog: auditLog,
		policies: engine,
	}, nil
}

func (a *app) close() {
	if err := a.auditLog.Close(); err != nil {
		log.Error().Err(err).Msg("audit log close failed")
	}
}
