package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/mrsingh-rishi/articulate/config"
	"github.com/mrsingh-rishi/articulate/events"
	"github.com/mrsingh-rishi/articulate/feedback"
	"github.com/mrsingh-rishi/articulate/llm"
	"github.com/mrsingh-rishi/articulate/logging"
	"github.com/mrsingh-rishi/articulate/metrics"
	"github.com/mrsingh-rishi/articulate/pipeline"
	"github.com/mrsingh-rishi/articulate/progress"
	"github.com/mrsingh-rishi/articulate/server"
	"github.com/mrsingh-rishi/articulate/session"
	"github.com/mrsingh-rishi/articulate/stt"
	"github.com/mrsingh-rishi/articulate/telemetry"
	"github.com/mrsingh-rishi/articulate/workers"
)

func main() {
	configPath := flag.String("config", "", "path to YAML config file")
	flag.Parse()

	// Load .env if present
	if err := godotenv.Load(); err != nil {
		log.Debug().Msg("No .env file found, falling back to environment variables")
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}
	logger := logging.Init(cfg.Logging, cfg.ServiceName)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.Setup(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("telemetry setup failed")
	}

	transcriber, completer, err := providers(cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("provider setup failed")
	}
	scorer, err := feedback.NewScorer(completer, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("scorer setup failed")
	}

	publisher := events.New(&events.Config{
		Brokers: cfg.Kafka.Brokers,
		Topic:   cfg.Kafka.Topic,
		Enabled: cfg.Kafka.Enabled,
	}, metrics.Default, logger)

	p, err := pipeline.New(transcriber, scorer, publisher, metrics.Default, pipeline.Config{
		TempDir: cfg.Pipeline.TempDir,
		Timeout: time.Duration(cfg.Pipeline.TimeoutMS) * time.Millisecond,
	}, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("pipeline setup failed")
	}

	worker, err := workers.NewFeedbackWorker(p, cfg.Pipeline.Workers, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("worker setup failed")
	}
	worker.Start()

	sessions := session.NewRegistry(time.Duration(cfg.Session.TTLMinutes)*time.Minute, cfg.Session.MaxReports, metrics.Default, logger)
	go sessions.Run(ctx, time.Minute)

	srv := server.New(cfg, worker, sessions, progress.NewHub(metrics.Default), logger)
	go func() {
		if err := srv.Listen(cfg.Addr()); err != nil {
			logger.Error().Err(err).Msg("HTTP server stopped")
			stop()
		}
	}()
	srv.SetReady(true)

	<-ctx.Done()
	logger.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn().Err(err).Msg("HTTP shutdown")
	}
	worker.Stop()
	if err := publisher.Close(); err != nil {
		logger.Warn().Err(err).Msg("Kafka publisher close")
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		logger.Warn().Err(err).Msg("telemetry shutdown")
	}
}

func providers(cfg config.Config, logger zerolog.Logger) (stt.Transcriber, llm.Completer, error) {
	var (
		transcriber stt.Transcriber
		completer   llm.Completer
	)
	client := llm.NewAPIClient(cfg.OpenAI)

	switch cfg.STT.Provider {
	case "mock":
		logger.Warn().Msg("using mock transcriber")
		transcriber = stt.NewMockTranscriber()
	default:
		w, err := stt.NewWhisperTranscriber(client, cfg.OpenAI.TranscriptionModel, logger)
		if err != nil {
			return nil, nil, err
		}
		transcriber = w
	}

	switch cfg.LLM.Provider {
	case "mock":
		logger.Warn().Msg("using mock feedback model")
		completer = llm.NewMockCompleter()
	default:
		c, err := llm.NewOpenAIClient(client, cfg.OpenAI.FeedbackModel, cfg.OpenAI.JSONMode, logger)
		if err != nil {
			return nil, nil, err
		}
		completer = c
	}
	return transcriber, completer, nil
}
