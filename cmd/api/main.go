package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"studio/internal/http/handlers"
	"studio/internal/http/httpapi"
	"studio/internal/infra"
	"studio/internal/pipeline"
	"studio/internal/providers/genai"
	"studio/internal/session"
)

func main() {
	// .env is optional
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)

	if cfg.GeminiAPIKey == "" {
		logger.Warn().Msg("GEMINI_API_KEY is not set; every generation call will fail until it is configured")
	}

	client := genai.NewClient(genai.Options{
		APIKey:          cfg.GeminiAPIKey,
		BaseURL:         cfg.GeminiBaseURL,
		TextModel:       cfg.GeminiTextModel,
		ImageModel:      cfg.GeminiImageModel,
		VideoModel:      cfg.VeoModel,
		PollInterval:    cfg.VideoPollInterval,
		PollMaxAttempts: cfg.VideoPollMaxAttempts,
		Logger:          &logger,
	})

	orch := pipeline.New(client, logger, pipeline.Options{
		SceneImageInterval: cfg.SceneImageInterval,
		SceneImageBurst:    cfg.SceneImageBurst,
	})

	sessions := session.NewStore(cfg.SessionTTL)
	app := handlers.NewApp(cfg, logger, sessions, orch)
	router := httpapi.NewRouter(app)
	server := infra.NewHTTPServer(cfg, router)

	go func() {
		logger.Info().Msgf("API listening on :%s", cfg.Port)
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPIdleTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("failed to shutdown server")
	}
	logger.Info().Msg("server stopped")
}
