package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"voxelmesh.ai/internal/catalogs"
	"voxelmesh.ai/internal/persistence/indexdb"
	persistlog "voxelmesh.ai/internal/persistence/log"
	"voxelmesh.ai/internal/transport/observer"
	"voxelmesh.ai/internal/tuning"
	"voxelmesh.ai/internal/world"
)

func main() {
	var (
		addr       = flag.String("addr", ":8080", "http listen address")
		configDir  = flag.String("configs", "./configs", "config directory")
		dataDir    = flag.String("data", "./data", "runtime data directory")
		tuningPath = flag.String("tuning", "", "path to tuning.yaml (default: <configs>/tuning.yaml)")
		seed       = flag.Int64("seed", 0, "override tuning seed (0 keeps the configured seed)")
		radius     = flag.Int("radius", 0, "override world_radius_chunks (0 keeps the configured radius)")
		disableDB  = flag.Bool("disable_db", false, "disable the sqlite mesh build index")
		disableLog = flag.Bool("disable_build_log", false, "disable the jsonl build log")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[server] ", log.LstdFlags|log.Lmicroseconds)

	cats, err := catalogs.Load(*configDir)
	if err != nil {
		logger.Fatalf("load catalogs: %v", err)
	}

	tp := strings.TrimSpace(*tuningPath)
	if tp == "" {
		tp = filepath.Join(*configDir, "tuning.yaml")
	}
	tune, found, err := tuning.LoadOrDefault(tp)
	if err != nil {
		logger.Fatalf("load tuning: %v", err)
	}
	if !found {
		logger.Printf("tuning not found (%s); using defaults", tp)
	}
	if *seed != 0 {
		tune.Seed = *seed
	}
	if *radius > 0 {
		tune.WorldRadiusChunks = *radius
	}

	opts := []world.Option{world.WithLogger(logger)}

	var idx *indexdb.SQLiteIndex
	if !*disableDB {
		idx, err = indexdb.OpenSQLite(filepath.Join(*dataDir, "index", "meshes.sqlite"))
		if err != nil {
			logger.Fatalf("open index: %v", err)
		}
		defer idx.Close()
		if err := idx.UpsertCatalogs(*configDir, cats, tune); err != nil {
			logger.Printf("index: upsert catalogs: %v", err)
		}
		opts = append(opts, world.WithListener(idx.Listener()))
		logger.Printf("index run_id=%s", idx.RunID())
	}

	var buildLog *persistlog.RebuildLogger
	if !*disableLog {
		buildLog = persistlog.NewRebuildLogger(*dataDir)
		defer buildLog.Close()
		opts = append(opts, world.WithListener(buildLog.Listener()))
	}

	m, err := world.New(tune, cats, opts...)
	if err != nil {
		logger.Fatalf("world: %v", err)
	}
	start := time.Now()
	m.Generate()
	logger.Printf("world ready in %s: %+v", time.Since(start).Round(time.Millisecond), m.Metrics())

	obs := observer.NewServer(m, logger)
	mux := newMux(m, obs, idx, buildLog, logger)

	srv := &http.Server{
		Addr:              *addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, cancel := signalContext()
	defer cancel()
	go func() {
		<-ctx.Done()
		ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel2()
		_ = srv.Shutdown(ctx2)
	}()

	logger.Printf("listening on %s", *addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatalf("ListenAndServe: %v", err)
	}
}

func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	ch := make(chan os.Signal, 2)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-ch
		cancel()
	}()
	return ctx, cancel
}
