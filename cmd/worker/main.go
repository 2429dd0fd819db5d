package main

import (
	"context"
	"database/sql"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/google/uuid"
	_ "github.com/lib/pq" // PostgreSQL driver
	"github.com/redis/go-redis/v9"

	"github.com/ignite/playbook-engine/internal/config"
	"github.com/ignite/playbook-engine/internal/customer"
	"github.com/ignite/playbook-engine/internal/dispatch"
	"github.com/ignite/playbook-engine/internal/engine"
	"github.com/ignite/playbook-engine/internal/pkg/distlock"
	"github.com/ignite/playbook-engine/internal/playbook"
	"github.com/ignite/playbook-engine/internal/queue"
)

func main() {
	log.Println("Playbook Engine signal worker starting")

	cfg, err := config.LoadFromEnv("config/config.yaml")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if !cfg.Queue.Enabled || cfg.Queue.URL == "" {
		log.Fatal("Signal queue is not configured; set SIGNAL_QUEUE_URL or queue.url")
	}

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
		}
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(),
		awsconfig.WithRegion(cfg.Queue.Region))
	if err != nil {
		log.Fatalf("Failed to load AWS config: %v", err)
	}
	sqsClient := sqs.NewFromConfig(awsCfg)

	var dispatcher engine.ActionDispatcher = dispatch.LogDispatcher{}
	if cfg.Dispatch.SlackEnabled {
		dispatcher = dispatch.New(dispatch.NewSlackNotifier(cfg.Dispatch.Timeout(), cfg.Dispatch.DefaultChannel))
		log.Println("[dispatch] slack notifications enabled")
	}

	cache := &orchestratorCache{
		byOrg:       make(map[string]*engine.Orchestrator),
		db:          db,
		redis:       redisClient,
		dispatcher:  dispatcher,
		lockRetries: cfg.Engine.ScheduleRetries,
	}

	ctx, cancel := context.WithCancel(context.Background())
	consumer := queue.NewConsumer(sqsClient, cfg.Queue.URL, cache.Get,
		cfg.Queue.WaitTimeSeconds, cfg.Queue.MaxMessages, cfg.Engine.EvaluationTimeout())
	consumer.Start(ctx)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("[worker] shutting down...")

	consumer.Stop()
	cancel()
	db.Close()
	if redisClient != nil {
		redisClient.Close()
	}
	log.Println("[worker] stopped")
}

// orchestratorCache builds one live orchestrator per tenant, sharing the
// database and Redis handles across all of them.
type orchestratorCache struct {
	mu          sync.Mutex
	byOrg       map[string]*engine.Orchestrator
	db          *sql.DB
	redis       *redis.Client
	dispatcher  engine.ActionDispatcher
	lockRetries int
}

func (c *orchestratorCache) Get(orgID string) *engine.Orchestrator {
	c.mu.Lock()
	defer c.mu.Unlock()
	if orch, ok := c.byOrg[orgID]; ok {
		return orch
	}

	clock := engine.SystemClock{}
	runs := engine.NewPostgresRunStore(c.db, orgID)

	var cooldowns engine.CooldownStore
	if c.redis != nil {
		cooldowns = engine.NewRedisCooldownStore(c.redis, orgID)
	} else {
		cooldowns = engine.NewMemoryCooldownStore()
	}

	resolver := engine.NewResolver(cooldowns, runs, clock)
	scheduler := engine.NewScheduler(runs, cooldowns, clock, c.dispatcher)
	orch := engine.NewOrchestrator(
		playbook.NewStore(c.db, orgID),
		customer.NewStore(c.db, orgID),
		resolver, scheduler, clock,
	)
	orch.SetLockFactory(func(customerID uuid.UUID) distlock.DistLock {
		return distlock.New(c.redis, c.db, "customer:"+orgID+":"+customerID.String(), 30*time.Second)
	})
	orch.SetLockRetries(c.lockRetries)

	c.byOrg[orgID] = orch
	return orch
}
