package main

import (
    "context"
    "net/http"
    "os"
    "os/signal"
    "syscall"

    "github.com/joho/godotenv"
    "github.com/rs/zerolog/log"

    "github.com/local/airenamer/internal/ai"
    cfgpkg "github.com/local/airenamer/internal/config"
    "github.com/local/airenamer/internal/extract"
    "github.com/local/airenamer/internal/filetype"
    logpkg "github.com/local/airenamer/internal/logger"
    "github.com/local/airenamer/internal/metrics"
    "github.com/local/airenamer/internal/namegen"
    "github.com/local/airenamer/internal/organizer"
    "github.com/local/airenamer/internal/pipeline"
    "github.com/local/airenamer/internal/progress"
    "github.com/local/airenamer/internal/retry"
    "github.com/local/airenamer/internal/sanitize"
)

func main() {
    _ = godotenv.Load()
    cfg := cfgpkg.FromEnv()

    // Init logging
    _ = logpkg.Init(logpkg.Options{
        Level: cfg.Logging.Level,
        Pretty: cfg.Logging.Pretty,
        File: cfg.Logging.File,
        MaxSizeMB: cfg.Logging.MaxSizeMB,
        MaxBackups: cfg.Logging.MaxBackups,
        MaxAgeDays: cfg.Logging.MaxAgeDays,
        Compress: cfg.Logging.Compress,
        SendToAxiom: cfg.Axiom.Send && cfg.Axiom.APIKey != "",
        AxiomAPIKey: cfg.Axiom.APIKey,
        AxiomOrgID: cfg.Axiom.OrgID,
        AxiomDataset: cfg.Axiom.Dataset,
        AxiomFlush: cfg.Axiom.FlushInterval,
    })
    defer logpkg.Close()

    errLog, err := logpkg.NewErrorLog(cfg.Logging.ErrorFile)
    if err != nil {
        log.Fatal().Err(err).Msg("failed to open error log")
    }

    metrics.Init()

    // Optional metrics listener
    if cfg.Metrics.Addr != "" {
        mux := http.NewServeMux()
        mux.Handle("/metrics", metrics.Handler())
        go func() {
            log.Info().Str("addr", cfg.Metrics.Addr).Msg("metrics listener started")
            if err := http.ListenAndServe(cfg.Metrics.Addr, mux); err != nil && err != http.ErrServerClosed {
                log.Error().Err(err).Msg("metrics listener error")
            }
        }()
    }

    // Provider selection
    var client ai.Client
    var model string
    switch cfg.Providers.Engine {
    case "anthropic":
        client = ai.NewAnthropicClient()
        model = cfg.Providers.AnthropicModel
    default:
        client = ai.NewOpenAIClient()
        model = cfg.Providers.OpenAIModel
    }
    log.Info().Str("provider", client.Name()).Str("model", model).Msg("AI provider selected")

    policy := retry.New(cfg.Retry.MaxAttempts, cfg.Retry.BaseDelay)

    p := pipeline.New(cfg, pipeline.Dependencies{
        Detector:  filetype.New(),
        Extractor: extract.New(cfg.Extraction),
        Generator: namegen.New(client, policy, model, cfg.Providers.RequestTimeout),
        Sanitizer: sanitize.New(cfg.Sanitize.MaxNameLength),
        Organizer: organizer.New(cfg.Move.MaxAttempts, cfg.Move.RetryDelay),
        Tracker:   progress.New(cfg.Paths.ProgressFile),
        ErrorLog:  errLog,
    })

    // SIGINT/SIGTERM stops after the in-flight file
    ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
    defer stop()

    sum, err := p.Run(ctx)
    if err != nil {
        log.Error().Err(err).Msg("batch could not start")
        logpkg.Close()
        os.Exit(1)
    }

    log.Info().
        Int("processed", sum.Processed).
        Int("failed", sum.Failed).
        Int("skipped", sum.Skipped).
        Msg("done")
}
