package main

import (
	"fmt"
	"os"

	"plate-service/internal/auth"
	"plate-service/internal/client"
	"plate-service/internal/config"
	"plate-service/internal/db"
	httphandler "plate-service/internal/http"
	"plate-service/internal/http/middleware"
	"plate-service/internal/logger"
	"plate-service/internal/plate"
	"plate-service/internal/repository"
	"plate-service/internal/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	appLogger := logger.New(cfg.Environment)

	database, err := db.New(cfg, appLogger)
	if err != nil {
		appLogger.Fatal().Err(err).Msg("failed to connect database")
	}

	if cfg.OCR.ServiceURL == "" {
		appLogger.Warn().Msg("OCR_SERVICE_URL not set, image recognition will fail; /plates/read still works")
	}

	postRepo := repository.NewPlatePostRepository(database)
	ocrClient := client.NewOCRClient(cfg)
	reader := plate.NewReader(plate.NewScorer(cfg.ScoringConfig()))
	plateService := service.NewPlateService(postRepo, ocrClient, reader, cfg.Plate.CommunityLimit, appLogger)

	tokenParser := auth.NewParser(cfg.Auth.AccessSecret)

	handler := httphandler.NewHandler(plateService, cfg.HTTP.UploadMaxBytes, appLogger)
	authMiddleware := middleware.Auth(tokenParser)
	router := httphandler.NewRouter(handler, authMiddleware, cfg.Environment, cfg.HTTP.AllowedOrigins...)

	addr := fmt.Sprintf("%s:%d", cfg.HTTP.Host, cfg.HTTP.Port)
	appLogger.Info().
		Str("addr", addr).
		Int("plate_shapes", len(cfg.ScoringConfig().Shapes)).
		Msg("starting plate service")

	if err := router.Run(addr); err != nil {
		appLogger.Error().Err(err).Msg("failed to start server")
		os.Exit(1)
	}
}
