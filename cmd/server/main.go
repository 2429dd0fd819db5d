package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver
	"github.com/redis/go-redis/v9"

	"github.com/ignite/playbook-engine/internal/api"
	"github.com/ignite/playbook-engine/internal/config"
	"github.com/ignite/playbook-engine/internal/customer"
	"github.com/ignite/playbook-engine/internal/engine"
	"github.com/ignite/playbook-engine/internal/lab"
	"github.com/ignite/playbook-engine/internal/playbook"
)

// checkPortAvailable verifies that the target port is not already in use.
// This prevents confusion from stale processes occupying the port.
func checkPortAvailable(host string, port int) error {
	addr := fmt.Sprintf("%s:%d", host, port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("port %d is already in use (addr %s): %v\n"+
			"  Hint: Run 'lsof -i :%d' to find the blocking process", port, addr, err, port)
	}
	ln.Close()
	return nil
}

func main() {
	log.Println("Playbook Engine API server starting")

	cfg, err := config.LoadFromEnv("config/config.yaml")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if os.Getenv("DATABASE_URL") != "" {
		log.Println("[config] DATABASE_URL env override active")
	}

	host := cfg.Server.GetHost()
	if err := checkPortAvailable(host, cfg.Server.Port); err != nil {
		log.Fatalf("Pre-flight check FAILED: %v", err)
	}
	log.Printf("Pre-flight check passed: port %d is available", cfg.Server.Port)

	db, err := sql.Open("postgres", cfg.Database.URL)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	db.SetConnMaxLifetime(time.Duration(cfg.Database.ConnMaxLifetime) * time.Minute)

	pingCtx, cancelPing := context.WithTimeout(context.Background(), 5*time.Second)
	if err := db.PingContext(pingCtx); err != nil {
		log.Fatalf("Database unreachable: %v", err)
	}
	cancelPing()
	log.Println("[db] connected")

	var redisClient *redis.Client
	if cfg.Redis.Enabled {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := redisClient.Ping(context.Background()).Err(); err != nil {
			log.Printf("[redis] unreachable, falling back to in-process cooldowns: %v", err)
			redisClient = nil
		} else {
			log.Printf("[redis] connected (%s)", cfg.Redis.Addr)
		}
	}

	if cfg.Engine.SeedDefaults {
		seedCtx, cancelSeed := context.WithTimeout(context.Background(), 10*time.Second)
		playbook.NewStore(db, cfg.Engine.DefaultOrgID).SeedDefaults(seedCtx)
		cancelSeed()
	}

	labSvc := lab.NewService(
		func(orgID string) engine.PlaybookSource { return playbook.NewStore(db, orgID) },
		customer.NewStore(db, cfg.Engine.DefaultOrgID),
	)

	handlers := api.NewHandlers(
		func(orgID string) *playbook.Store { return playbook.NewStore(db, orgID) },
		labSvc,
		cfg.Engine.DefaultOrgID,
	)
	handlers.SetDB(db)
	if redisClient != nil {
		handlers.SetRedis(redisClient)
	}

	router := api.SetupRoutes(handlers, cfg.Server.AllowedOrigins)

	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("[server] listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("[server] shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("[server] forced shutdown: %v", err)
	}
	db.Close()
	if redisClient != nil {
		redisClient.Close()
	}
	log.Println("[server] stopped")
}
