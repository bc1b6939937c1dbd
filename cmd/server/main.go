package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ai-band/orchestrator/internal/api"
	"github.com/ai-band/orchestrator/internal/config"
	"github.com/ai-band/orchestrator/internal/files"
	"github.com/ai-band/orchestrator/internal/generator"
	"github.com/ai-band/orchestrator/internal/hub"
	"github.com/ai-band/orchestrator/internal/session"
	"github.com/ai-band/orchestrator/internal/watch"
	"github.com/ai-band/orchestrator/internal/ws"
)

func main() {
	configPath := flag.String("config", "config.yaml", "Path to config file")
	port := flag.Int("port", 0, "Override server port")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Fatalf("Failed to load config: %v", err)
		}
		log.Printf("No config file at %s, using defaults", *configPath)
		cfg = config.Default()
	}
	if *port > 0 {
		cfg.Server.Port = *port
	}

	if err := os.MkdirAll(cfg.Artifacts.Dir, 0o755); err != nil {
		log.Fatalf("Failed to create artifacts dir: %v", err)
	}

	registry := session.NewRegistry(cfg.Hub.HeartbeatWindow)
	h := hub.New(registry, cfg.Artifacts.Dir, cfg.Hub.CallbackTimeout)
	gen := generator.NewMock(cfg.Artifacts.Dir, 500*time.Millisecond)
	gateway := ws.NewGateway(registry, gen)
	manager := files.NewManager(cfg.Artifacts.Dir, cfg.Artifacts.Extension)

	bridge := watch.New(cfg.Artifacts.Extension, h)
	if err := bridge.Start(cfg.Artifacts.Dir); err != nil {
		// Not fatal; the hub runs without artifact announcements until the
		// watch is retried.
		log.Printf("File watch setup failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go manager.RunCleanup(ctx, cfg.Artifacts.CleanupInterval, cfg.Artifacts.CleanupMaxAge)

	server := api.NewServer(registry, h, gateway, gen, manager, cfg.Server.AuthToken)
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: server.Routes(),
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("Orchestrator listening on %s", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		log.Fatalf("Server error: %v", err)
	case <-sigCh:
	}

	log.Println("Shutting down...")
	cancel()

	// Stop accepting, close live sockets, stop the watch, then wait for
	// in-flight generations and broadcasts to drain.
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("HTTP shutdown: %v", err)
	}
	gateway.Close()
	bridge.Stop()
	h.Wait()
	log.Println("Shutdown complete")
}
