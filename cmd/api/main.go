package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"shaggydog/internal/adapter/repo"
	"shaggydog/internal/http/handlers"
	httpapi "shaggydog/internal/http/httpapi"
	"shaggydog/internal/imagegen"
	"shaggydog/internal/infra"
	"shaggydog/internal/infra/credentials"
	"shaggydog/internal/infra/geoip"
	"shaggydog/internal/providers/openai"
	"shaggydog/internal/providers/replicate"
	"shaggydog/internal/runstate"
	"shaggydog/internal/storage"
)

func main() {
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)

	ctx := context.Background()
	dbpool, err := infra.NewDBPool(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect database")
	}
	defer dbpool.Close()

	sqlRunner := infra.NewSQLRunner(dbpool, logger)
	if err := infra.EnsureSchema(ctx, sqlRunner); err != nil {
		logger.Fatal().Err(err).Msg("failed to ensure schema")
	}
	credentials.NewStore(sqlRunner).FillConfig(ctx, cfg, logger)

	store, err := storage.NewFileStore(cfg.UploadDir)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to prepare upload dir")
	}

	tracker := newTracker(ctx, cfg, logger)

	onFallback := func(provider string) func(string, error) {
		return func(reason string, err error) {
			logger.Debug().Err(err).Str("provider", provider).Str("reason", reason).Msg("provider fallback")
		}
	}
	providerHTTP := &http.Client{Timeout: cfg.ProviderTimeout}
	openaiClient := openai.NewClient(openai.Options{
		APIKey:       cfg.OpenAIAPIKey,
		BaseURL:      cfg.OpenAIBaseURL,
		Organization: cfg.OpenAIOrg,
		VisionModel:  cfg.OpenAIVisionModel,
		ImageModel:   cfg.OpenAIImageModel,
		EditModels:   cfg.OpenAIEditModels,
		HTTPClient:   providerHTTP,
		Logger:       &logger,
		OnFallback:   onFallback("openai"),
	})
	if !openaiClient.HasCredentials() {
		logger.Warn().Msg("OPENAI_API_KEY not set; breed defaults and template prompts only")
	}

	opts := imagegen.Options{
		Vision:             openaiClient,
		Images:             openaiClient,
		Editor:             openaiClient,
		Store:              store,
		Downloader:         imagegen.NewHTTPDownloader(store, nil, &logger),
		Tracker:            tracker,
		LocalBlendFallback: cfg.LocalBlendFallback,
		Logger:             &logger,
	}
	if cfg.ReplicateAPIToken != "" {
		opts.Swapper = replicate.NewClient(replicate.Options{
			APIToken:   cfg.ReplicateAPIToken,
			BaseURL:    cfg.ReplicateBaseURL,
			HTTPClient: providerHTTP,
			Logger:     &logger,
			OnFallback: onFallback("replicate"),
		})
	}

	imageSets := repo.NewImageSetRepository(sqlRunner)
	runner := imagegen.NewRunner(imageSets, imagegen.NewOrchestrator(opts), store, &logger)

	resolver, err := geoip.NewResolver(cfg.GeoIPDBPath)
	if err != nil {
		logger.Warn().Err(err).Msg("geoip disabled")
	}
	defer func() {
		_ = resolver.Close()
	}()

	app := &handlers.App{
		Config:     cfg,
		Logger:     logger,
		Repo:       imageSets,
		Store:      store,
		Runner:     runner,
		Classifier: imagegen.NewBreedClassifier(openaiClient, &logger),
	}
	router := httpapi.NewRouter(app, httpapi.RouterOptions{
		JWTSecret:      cfg.JWTSecret,
		AllowedOrigins: cfg.CORSAllowedOrigins,
		UploadsPerMin:  cfg.RateLimitPerMin,
		CountryLookup:  resolver.Lookup(),
		Logger:         logger,
	})

	server := infra.NewHTTPServer(cfg, router, logger)

	go func() {
		logger.Info().Str("addr", server.Addr()).Str("upload_dir", store.BasePath()).Msg("API listening")
		if err := server.Start(); err != nil {
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
	if n := runner.InFlight(); n > 0 {
		logger.Info().Int64("in_flight", n).Msg("waiting for transformations")
	}
	if err := runner.Wait(shutdownCtx); err != nil {
		logger.Warn().Err(err).Int64("in_flight", runner.InFlight()).Msg("transformations still running at exit")
	}
	logger.Info().Msg("server stopped")
}

func newTracker(ctx context.Context, cfg *infra.Config, logger zerolog.Logger) runstate.Tracker {
	client, err := infra.NewRedisClient(ctx, cfg)
	if err != nil {
		logger.Warn().Err(err).Msg("redis unavailable, tracking run state in memory")
		return runstate.NewMemoryTracker(cfg.RunStateTTL)
	}
	if client == nil {
		return runstate.NewMemoryTracker(cfg.RunStateTTL)
	}
	logger.Info().Str("addr", cfg.RedisAddr).Dur("ttl", cfg.RunStateTTL).Msg("tracking run state in redis")
	return runstate.NewRedisTracker(client, cfg.RunStateTTL)
}
