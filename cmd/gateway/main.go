package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"parts-inventory/config"
	"parts-inventory/internal/gateway/clients"
	"parts-inventory/internal/gateway/handlers"
	"parts-inventory/internal/query"
	parts "parts-inventory/internal/services/parts/handler"
)

var (
	// Global flags
	verbose    bool
	apiBaseURL string
	addr       string
	envelope   string
)

var rootCmd = &cobra.Command{
	Use:   "gateway",
	Short: "Parts inventory gateway",
	Long: `gateway serves the parts inventory pages as JSON over HTTP.

Reads go through an in-memory cache in front of the remote parts API;
successful writes invalidate the affected reads, across instances when
REDIS_HOST is set.`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.LoadConfig()
		if cmd.Flags().Changed("api-base-url") {
			cfg.API.BaseURL = apiBaseURL
		}
		if cmd.Flags().Changed("addr") {
			cfg.Gateway.Addr = addr
		}
		if cmd.Flags().Changed("envelope") {
			cfg.API.Envelope = envelope
		}
		cfg.Log.Verbose = verbose

		logger, err := config.NewLogger(cfg.Log)
		if err != nil {
			return err
		}
		defer func() { _ = logger.Sync() }()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return run(ctx, cfg, logger)
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.Flags().StringVar(&apiBaseURL, "api-base-url", "", "Parts API base URL (or set PARTS_API_BASE_URL)")
	rootCmd.Flags().StringVar(&addr, "addr", "", "Listen address (or set GATEWAY_ADDR)")
	rootCmd.Flags().StringVar(&envelope, "envelope", "", "Response envelope: auto, bare, data or paginated (or set PARTS_API_ENVELOPE)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

type redisPinger struct {
	rdb *redis.Client
}

func (p redisPinger) Ping(ctx context.Context) error {
	return p.rdb.Ping(ctx).Err()
}

func run(ctx context.Context, cfg config.Config, logger *zap.Logger) error {
	mode, err := clients.ParseEnvelopeMode(cfg.API.Envelope)
	if err != nil {
		return err
	}
	partsClient, err := clients.NewPartsClient(clients.Config{
		BaseURL:  cfg.API.BaseURL,
		Timeout:  cfg.API.Timeout,
		Envelope: mode,
		Logger:   logger.Named("parts-api"),
	})
	if err != nil {
		return err
	}

	cache := query.New(query.WithLogger(logger.Named("cache")))
	defer cache.Close()

	opts := []parts.Option{
		parts.WithLogger(logger.Named("parts")),
		parts.WithListStaleTime(cfg.API.ListStaleTime),
	}

	deps := routerDeps{
		cache:       cache,
		upstream:    partsClient,
		rateLimit:   cfg.Gateway.RateLimit,
		corsOrigins: cfg.Gateway.CORSOrigins,
		logger:      logger,
	}

	listenCtx, stopListening := context.WithCancel(ctx)
	listenDone := make(chan struct{})
	if cfg.Redis.Enabled() {
		rdb, err := config.NewRedisClient(ctx, cfg.Redis)
		if err != nil {
			stopListening()
			return err
		}
		defer rdb.Close()
		logger.Info("Redis connected", zap.String("addr", cfg.Redis.Addr()))

		broadcaster := query.NewBroadcaster(rdb, cfg.Redis.Channel, logger.Named("invalidation"))
		opts = append(opts, parts.WithPublisher(broadcaster))
		deps.redis = redisPinger{rdb}

		go func() {
			defer close(listenDone)
			if err := broadcaster.Listen(listenCtx, cache); err != nil {
				logger.Error("Invalidation listener stopped", zap.Error(err))
			}
		}()
	} else {
		close(listenDone)
		logger.Info("REDIS_HOST not set, cache invalidation stays local")
	}
	defer func() {
		stopListening()
		<-listenDone
	}()

	deps.parts = handlers.NewPartsHTTPHandler(parts.NewPartsHandler(partsClient, cache, opts...), logger.Named("http"))

	if !verbose {
		gin.SetMode(gin.ReleaseMode)
	}
	r, err := setupRouter(deps)
	if err != nil {
		return err
	}

	// Open watch streams end when shutdown starts.
	streams, closeStreams := context.WithCancel(context.WithoutCancel(ctx))
	defer closeStreams()
	srv := &http.Server{
		Addr:              cfg.Gateway.Addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return streams },
	}
	srv.RegisterOnShutdown(closeStreams)

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Starting server",
			zap.String("addr", cfg.Gateway.Addr),
			zap.String("parts_api", partsClient.BaseURL()),
		)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("failed to start server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("Shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down server: %w", err)
	}
	return nil
}
