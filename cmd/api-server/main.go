package main

import (
	"context"
	"errors"
	"flag"
	"net"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"keplerhub/internal/auth"
	"keplerhub/internal/catalog"
	"keplerhub/internal/classifier"
	"keplerhub/internal/events"
	"keplerhub/internal/grpcserver"
	"keplerhub/internal/lightcurve"
	"keplerhub/internal/mast"
	"keplerhub/internal/server"
	"keplerhub/internal/telemetry"
	"keplerhub/pkg/database"
	"keplerhub/pkg/utils"
)

func main() {
	configPath := flag.String("config", "", "YAML config file (defaults to $KEPLERHUB_CONFIG)")
	flag.Parse()

	cfg, err := utils.LoadConfig(*configPath)
	logger := utils.NewLogger(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		logger.Fatal().Err(err).Msg("load config failed")
	}
	gin.SetMode(gin.ReleaseMode)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.Open(database.DefaultConfig())
	if err != nil {
		logger.Fatal().Err(err).Msg("open catalog db failed")
	}
	defer db.Close()

	repo, analytics, err := catalog.Load(ctx, db, cfg.Catalog.CSVPath)
	if err != nil {
		logger.Fatal().Err(err).Str("csv", cfg.Catalog.CSVPath).Msg("load catalog failed")
	}
	logger.Info().Int("total_candidates", analytics.Statistics.TotalCandidates).Msg("catalog loaded")

	model, err := classifier.LoadModel(cfg.Model.Path)
	if err != nil {
		// keep serving the catalog and light curves; inference answers 503
		logger.Warn().Err(err).Str("path", cfg.Model.Path).Msg("classifier model not loaded")
	}

	tel, err := telemetry.NewPrometheusProvider()
	if err != nil {
		logger.Fatal().Err(err).Msg("telemetry setup failed")
	}

	hub := events.NewHub(logger)

	archive := mast.NewClient(cfg.LightCurve.ArchiveURL)
	archive.Logger = utils.Component(logger, "mast")

	resolver := lightcurve.NewResolver(
		lightcurve.Config{
			CacheDir: cfg.LightCurve.CacheDir,
			Timeout:  cfg.LightCurve.Timeout(),
			Mission:  cfg.LightCurve.Mission,
		},
		archive,
		lightcurve.WithLogger(logger),
		lightcurve.WithNotifier(server.Notifier(hub)),
		lightcurve.WithRecorder(tel.Metrics),
	)

	tokenSvc := auth.TokenService{
		Secret:   []byte(cfg.Auth.JWTSecret),
		Issuer:   cfg.Auth.JWTIssuer,
		Duration: cfg.Auth.JWTDuration,
	}
	keys := auth.KeyVerifier{Hash: cfg.Auth.AdminKeyHash}
	if !keys.Enabled() {
		logger.Warn().Msg("no admin key hash configured, /admin is disabled")
	}

	jobs := server.NewJobs(resolver, hub, cfg.LightCurve.PrecacheWorkers, logger)

	router := server.NewRouter(server.Deps{
		Logger:         logger,
		Resolver:       resolver,
		Catalog:        catalog.NewHandler(repo, analytics),
		Classifier:     classifier.NewHandler(model, cfg.Model.MetricsPath),
		Auth:           auth.NewHandler(keys, tokenSvc, auth.NewRevocations()),
		Hub:            hub,
		Jobs:           jobs,
		Telemetry:      tel,
		DB:             db,
		AllowedOrigins: cfg.AllowedOrigins,
		DefaultTargets: cfg.LightCurve.PrecacheTargets,
		BaseContext:    ctx,
	})

	httpSrv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	grpcSrv := grpcserver.NewServer(logger)
	grpcLn, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		logger.Fatal().Err(err).Str("addr", cfg.GRPCAddr).Msg("grpc listen failed")
	}
	grpcSrv.SetServing(grpcserver.ServiceCatalog, true)
	grpcSrv.SetServing(grpcserver.ServiceLightCurve, true)
	grpcSrv.SetServing(grpcserver.ServiceClassifier, model != nil)

	errCh := make(chan error, 2)
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := grpcSrv.Serve(grpcLn); err != nil {
			errCh <- err
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		logger.Info().Str("addr", cfg.HTTPAddr).Msg("HTTP API server listening")
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	// start-up pre-warm runs beside the server; failures are only logged
	wg.Add(1)
	go func() {
		defer wg.Done()
		precache(ctx, resolver, cfg.LightCurve.PrecacheTargets, cfg.LightCurve.PrecacheWorkers, logger)
	}()

	select {
	case <-ctx.Done():
		logger.Info().Msg("shutdown signal received")
	case err := <-errCh:
		logger.Error().Err(err).Msg("server error")
	}
	stop()

	logger.Info().Msg("shutting down servers")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("http shutdown error")
	}
	grpcSrv.Stop(shutdownCtx)
	hub.Close()
	jobs.Wait()
	wg.Wait()

	if err := tel.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("telemetry shutdown error")
	}
	logger.Info().Msg("servers stopped")
}

func precache(ctx context.Context, r *lightcurve.Resolver, targets []string, workers int, logger zerolog.Logger) {
	if len(targets) == 0 {
		return
	}
	logger.Info().Strs("targets", targets).Msg("pre-caching light curves")
	lightcurve.Prewarm(ctx, r, targets, workers, logger)
}
