package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/xiaot623/gogo/await/internal/agents"
	"github.com/xiaot623/gogo/await/internal/config"
	"github.com/xiaot623/gogo/await/internal/policy"
	store "github.com/xiaot623/gogo/await/internal/repository"
	"github.com/xiaot623/gogo/await/internal/runtime"
	"github.com/xiaot623/gogo/await/internal/service"
	httpserver "github.com/xiaot623/gogo/await/internal/transport/http"
	"github.com/xiaot623/gogo/await/internal/transport/rpc"
	"github.com/xiaot623/gogo/await/internal/transport/ws"
)

func main() {
	// Load configuration
	cfg := config.Load()

	log.Printf("Starting await service...")
	log.Printf("HTTP Port: %d", cfg.HTTPPort)
	log.Printf("RPC Address: %s", cfg.RPCAddr)
	log.Printf("Database: %s", cfg.DatabaseURL)
	log.Printf("Resume mode: %s", cfg.ResumeMode)

	// Initialize store
	db, err := store.NewSQLiteStore(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to initialize store: %v", err)
	}
	defer db.Close()

	// Initialize agents
	registry := runtime.NewRegistry()
	if err := agents.RegisterBuiltins(registry); err != nil {
		log.Fatalf("Failed to register agents: %v", err)
	}
	controller := runtime.NewController(registry, runtime.WithStore(db))

	// Initialize policy engine
	ctx, stop := context.WithCancel(context.Background())
	defer stop()
	policyEngine, err := policy.NewEngineFromFile(ctx, cfg.ResumePolicyFile)
	if err != nil {
		log.Fatalf("Failed to initialize policy engine: %v", err)
	}

	// Initialize service
	svc := service.New(db, controller, cfg, policyEngine)
	if _, err := svc.RecoverRuns(ctx); err != nil {
		log.Fatalf("Failed to recover runs: %v", err)
	}
	go svc.RunMonitor(ctx)

	server := httpserver.NewServer(svc, ws.NewServer(cfg, svc))

	go func() {
		addr := fmt.Sprintf(":%d", cfg.HTTPPort)
		if err := server.Start(addr); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start HTTP server: %v", err)
		}
	}()
	log.Printf("HTTP API started on port %d", cfg.HTTPPort)

	var rpcServer *rpc.Server
	if cfg.RPCAddr != "" {
		rpcServer, err = rpc.NewServer(svc)
		if err != nil {
			log.Fatalf("Failed to initialize RPC server: %v", err)
		}
		go func() {
			if err := rpcServer.Start(cfg.RPCAddr); err != nil {
				log.Fatalf("Failed to start RPC server: %v", err)
			}
		}()
		log.Printf("RPC server started on %s", cfg.RPCAddr)
	}

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down await service...")
	stop()

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Failed to shutdown HTTP server gracefully: %v", err)
	}
	if rpcServer != nil {
		if err := rpcServer.Shutdown(shutdownCtx); err != nil {
			log.Printf("Failed to shutdown RPC server gracefully: %v", err)
		}
	}
	svc.Wait()

	log.Println("Await service stopped")
}
