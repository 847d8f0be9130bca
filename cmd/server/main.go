package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"cessation-pipeline/internal/api"
	"cessation-pipeline/internal/config"
	"cessation-pipeline/internal/logging"
	"cessation-pipeline/internal/metrics"
	"cessation-pipeline/internal/pipeline"
)

// bootstrap loads the config and builds the logger; failures here happen
// before any logger exists and go to stderr.
func bootstrap(path string) (config.Config, *zap.Logger, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return cfg, nil, err
	}
	log, err := logging.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return cfg, nil, err
	}
	return cfg, log, nil
}

func fail(stderr io.Writer, err error) {
	fmt.Fprintf(stderr, "server: %v\n", err)
}

func main() {
	configPath := flag.String("config", "", "path to pipeline yaml")
	flag.Parse()

	cfg, log, err := bootstrap(*configPath)
	if err != nil {
		fail(os.Stderr, err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	recorder := metrics.NewRecorder()
	rt, err := pipeline.Setup(ctx, cfg, recorder, log)
	if err != nil {
		log.Fatal("server: setup pipeline", zap.Error(err))
	}
	defer func() { _ = rt.Close() }()

	handler := api.NewHandler(rt.Pipeline, rt.Store, rt.Ledger, log)

	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.Server.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("cessation pipeline is running"))
	})
	r.Method(http.MethodGet, "/metrics", recorder.Handler())
	handler.RegisterRoutes(r)

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("server: listening", zap.String("addr", cfg.Server.Addr), zap.Strings("cors_origins", cfg.Server.AllowedOrigins))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("server: shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	if err := g.Wait(); err != nil {
		log.Error("server: stopped with error", zap.Error(err))
		os.Exit(1)
	}
}
