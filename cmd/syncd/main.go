package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/juju/clock"
	_ "modernc.org/sqlite"

	"tabletalk/internal/adapters/connectivity"
	"tabletalk/internal/adapters/events"
	web "tabletalk/internal/adapters/http"
	"tabletalk/internal/adapters/remote"
	"tabletalk/internal/adapters/storage"
	feedcacheStore "tabletalk/internal/adapters/storage/feedcache"
	queueStore "tabletalk/internal/adapters/storage/queue"
	"tabletalk/internal/application/orchestrators"
	"tabletalk/internal/domain/feed"
)

// version is set at build time via -ldflags "-X main.version=..."
var version = "dev"

func main() {
	dbPath := envOrDefault("TABLETALK_DB", "tabletalk.db")
	db, err := storage.Open(dbPath)
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}
	defer db.Close()

	log.Println("Database initialized successfully!")

	queue := queueStore.NewSQLiteStore(db)
	feedCache := feedcacheStore.NewSQLiteStore(db, 0)

	// Remote endpoint: real HTTP client when configured, noop otherwise so
	// local bring-up drains the queue instead of wedging it.
	var client remote.Client
	if endpoint := os.Getenv("TABLETALK_ENDPOINT"); endpoint != "" {
		client = remote.NewHTTPClient(endpoint)
		log.Printf("Remote endpoint configured (%s)", endpoint)
	} else {
		client = remote.NewNoopClient()
		log.Println("Remote endpoint configured (noop — set TABLETALK_ENDPOINT for real delivery)")
	}

	hub := events.NewHub()
	logger := slog.Default()

	probeInterval := durationOrDefault("TABLETALK_PROBE_INTERVAL", connectivity.DefaultInterval)
	monitor := connectivity.NewMonitor(client, hub, clock.WallClock, logger, probeInterval)

	executor := orchestrators.NewSyncExecutor(queue, client, hub)
	syncInterval := durationOrDefault("TABLETALK_SYNC_INTERVAL", time.Minute)
	scheduler := orchestrators.NewScheduler(executor, orchestrators.ForegroundRegistrar{}, clock.WallClock, syncInterval)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	unsub := scheduler.OnConnectivityChanged(hub)
	defer unsub()
	go scheduler.Run(ctx)
	go monitor.Run(ctx)

	loadFeed := func(ctx context.Context, limit, offset int) ([]feed.CachedPost, bool, error) {
		result, err := orchestrators.ExecuteLoadFeed(ctx, orchestrators.LoadFeedInput{
			Limit:  limit,
			Offset: offset,
		}, orchestrators.LoadFeedDeps{
			Client: client,
			Cache:  feedCache,
			Online: monitor.IsOnline,
		})
		if err != nil {
			return nil, false, err
		}
		return result.Posts, result.FromCache, nil
	}

	mux := web.NewMux(&web.Handlers{
		Queue:     queue,
		Scheduler: scheduler,
		Online:    monitor.IsOnline,
		LoadFeed:  loadFeed,
		Dispatch: &orchestrators.DispatchActionDeps{
			Client: client,
			Online: monitor.IsOnline,
			Enqueue: orchestrators.EnqueueActionDeps{
				Queue:       queue,
				Hub:         hub,
				RequestSync: scheduler.RequestSync,
			},
		},
	})

	addr := envOrDefault("TABLETALK_ADDR", ":8090")
	server := &http.Server{Addr: addr, Handler: mux}
	go func() {
		log.Printf("tabletalk syncd %s starting on %s (schema=%d)", version, addr, storage.LatestSchemaVersion())
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	<-ctx.Done()
	log.Println("Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Shutdown error: %v", err)
	}
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func durationOrDefault(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		log.Fatalf("invalid %s: %v", key, err)
	}
	return d
}
