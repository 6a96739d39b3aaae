// cmd/worker-manager/main.go
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/zbc"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"grantmatch-workers/internal/aiprob"
	"grantmatch-workers/internal/common/aws"
	"grantmatch-workers/internal/common/camunda"
	"grantmatch-workers/internal/common/config"
	"grantmatch-workers/internal/common/database"
	"grantmatch-workers/internal/common/logger"
	"grantmatch-workers/internal/common/observability"
	"grantmatch-workers/internal/matching/dispatch"
	"grantmatch-workers/internal/notify"
	"grantmatch-workers/internal/store"

	mo "grantmatch-workers/internal/workers/matching/match-opportunity"
	rg "grantmatch-workers/internal/workers/matching/recommend-grants"
	sm "grantmatch-workers/internal/workers/matching/score-match"
)

// retryWithBackoff attempts to execute a function with exponential backoff
func retryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log *zap.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName),
				zap.Error(err),
				zap.Int("attempt", i+1),
				zap.Int("maxRetries", maxRetries),
				zap.Duration("nextRetryIn", delay),
			)
			time.Sleep(delay)
			delay *= 2
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

func main() {
	zapLog := logger.New("info", "console")
	defer zapLog.Sync()

	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting worker manager...")

	cfg, err := config.Load()
	if err != nil {
		zapLog.Fatal("config load failed", zap.Error(err))
	}

	obs := observability.New("worker-manager")
	defer obs.Shutdown()

	ctx := context.Background()

	// --- Init Zeebe Client with retry ---
	var camundaClient *camunda.Client
	err = retryWithBackoff(func() error {
		var err error
		camundaClient, err = camunda.NewClientWithConfig(&camunda.ClientConfig{
			GatewayAddress:         cfg.Camunda.BrokerAddress,
			UsePlaintextConnection: true,
			ConnectionTimeout:      time.Duration(cfg.Camunda.RequestTimeout) * time.Millisecond,
		})
		return err
	}, 10, 2*time.Second, zapLog, "Zeebe client initialization")

	if err != nil {
		zapLog.Fatal("zeebe client failed after retries", zap.Error(err))
	}
	zeebeClient := camundaClient.GetClient()
	zapLog.Info("Zeebe client connected successfully")

	// --- Init PostgreSQL with retry ---
	var pg *database.PostgresClient
	err = retryWithBackoff(func() error {
		var err error
		pg, err = database.NewPostgres(cfg.Database.Postgres)
		if err != nil {
			return err
		}
		return pg.Ping(ctx)
	}, 15, 2*time.Second, zapLog, "PostgreSQL connection")

	if err != nil {
		zapLog.Fatal("postgres failed after retries", zap.Error(err))
	}
	defer pg.Close()
	zapLog.Info("PostgreSQL connected successfully")

	// --- Init Elasticsearch with retry ---
	var esClient *database.ElasticsearchClient
	err = retryWithBackoff(func() error {
		var err error
		esClient, err = database.NewElasticsearch(cfg.Database.Elasticsearch)
		if err != nil {
			return err
		}
		return esClient.Ping()
	}, 15, 2*time.Second, zapLog, "Elasticsearch connection")

	if err != nil {
		zapLog.Fatal("elasticsearch failed after retries", zap.Error(err))
	}
	zapLog.Info("Elasticsearch connected successfully")

	// --- Init Redis with retry ---
	var redisClient *database.RedisClient
	err = retryWithBackoff(func() error {
		var err error
		redisClient, err = database.NewRedis(cfg.Database.Redis)
		if err != nil {
			return err
		}
		return redisClient.Ping(ctx)
	}, 10, 2*time.Second, zapLog, "Redis connection")

	if err != nil {
		zapLog.Fatal("redis failed after retries", zap.Error(err))
	}
	defer redisClient.Close()
	zapLog.Info("Redis connected successfully")

	// --- Init AWS Notification Clients ---
	var sesClient notify.SESService
	var snsClient notify.SNSService
	if cfg.Notifications.Email.Enabled {
		client, err := aws.NewSESClient(ctx, cfg.Notifications.AWS.Region)
		if err != nil {
			zapLog.Fatal("ses client failed", zap.Error(err))
		}
		sesClient = client
	}
	if cfg.Notifications.SMS.Enabled {
		client, err := aws.NewSNSClient(ctx, cfg.Notifications.AWS.Region)
		if err != nil {
			zapLog.Fatal("sns client failed", zap.Error(err))
		}
		snsClient = client
	}

	// --- Assemble Stores and Matching Engine ---
	pgStore := store.NewPostgresStore(pg.DB)
	profileStore := store.NewCachedProfileStore(
		pgStore,
		redisClient.Client,
		time.Duration(cfg.Matching.ProfileCacheTTL)*time.Second,
		log,
	)
	dedupeLog := store.NewRedisDedupeLog(
		redisClient.Client,
		time.Duration(cfg.Matching.DedupeTTL)*time.Second,
	)
	searcher := store.NewESOpportunitySearcher(
		esClient.Client,
		cfg.Database.Elasticsearch.OpportunityIndex,
		pgStore,
		log,
	)

	aiProvider := aiprob.NewClient(
		cfg.AIProvider.BaseURL,
		time.Duration(cfg.AIProvider.Timeout)*time.Millisecond,
		log,
	)

	notifier := notify.NewNotifier(cfg.Notifications, sesClient, snsClient, dedupeLog, log)

	dispatcher := dispatch.NewDispatcher(
		dispatch.Config{
			NotifyThreshold: cfg.Matching.NotifyThreshold,
			WorkerPoolSize:  cfg.Matching.WorkerPoolSize,
			UnitTimeout:     time.Duration(cfg.Matching.UnitTimeout) * time.Millisecond,
			RecommendLimit:  cfg.Matching.RecommendLimit,
		},
		profileStore, pgStore, pgStore, pgStore, searcher, aiProvider, notifier, log,
	)

	// --- Register Workers ---
	var workers []*camunda.CamundaWorker

	if cfg.Workers[mo.TaskType].Enabled {
		handler := mo.NewHandler(
			&mo.Config{
				Timeout: time.Duration(cfg.Workers[mo.TaskType].Timeout) * time.Millisecond,
			},
			dispatcher, log,
		)
		workers = append(workers, registerWorker(zeebeClient, mo.TaskType, cfg.Workers[mo.TaskType], handler, zapLog))
	}

	if cfg.Workers[rg.TaskType].Enabled {
		handler := rg.NewHandler(
			&rg.Config{
				Timeout:      time.Duration(cfg.Workers[rg.TaskType].Timeout) * time.Millisecond,
				DefaultLimit: cfg.Matching.RecommendLimit,
			},
			dispatcher, log,
		)
		workers = append(workers, registerWorker(zeebeClient, rg.TaskType, cfg.Workers[rg.TaskType], handler, zapLog))
	}

	if cfg.Workers[sm.TaskType].Enabled {
		handler := sm.NewHandler(
			&sm.Config{
				Timeout: time.Duration(cfg.Workers[sm.TaskType].Timeout) * time.Millisecond,
			},
			dispatcher, log,
		)
		workers = append(workers, registerWorker(zeebeClient, sm.TaskType, cfg.Workers[sm.TaskType], handler, zapLog))
	}

	zapLog.Info("All matching workers registered successfully", zap.Int("count", len(workers)))

	// --- Health & Metrics Server ---
	go func() {
		http.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusOK)
			json.NewEncoder(w).Encode(map[string]string{
				"status": "healthy",
				"time":   time.Now().Format(time.RFC3339),
			})
		})
		http.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			if err := camundaClient.HealthCheck(r.Context()); err != nil {
				w.WriteHeader(http.StatusServiceUnavailable)
				json.NewEncoder(w).Encode(map[string]string{
					"status": "not ready",
					"error":  err.Error(),
				})
				return
			}
			w.WriteHeader(http.StatusOK)
			json.NewEncoder(w).Encode(map[string]string{
				"status": "ready",
				"time":   time.Now().Format(time.RFC3339),
			})
		})
		http.Handle("/metrics", promhttp.Handler())
		zapLog.Info("Health/Metrics server listening on :8080")
		if err := http.ListenAndServe(":8080", nil); err != nil {
			zapLog.Error("Health/Metrics server failed", zap.Error(err))
		}
	}()

	// --- Graceful Shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	zapLog.Info("Shutdown signal received, stopping workers...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	for _, w := range workers {
		w.Stop(shutdownCtx)
	}

	if err := camundaClient.Close(); err != nil {
		zapLog.Error("Error closing Zeebe client", zap.Error(err))
	}

	zapLog.Info("Worker manager stopped gracefully")
}

func registerWorker(client zbc.Client, taskType string, wcfg config.WorkerConfig, handler camunda.JobHandler, log *zap.Logger) *camunda.CamundaWorker {
	w := camunda.NewWorker(
		client,
		taskType,
		wcfg.MaxJobsActive,
		time.Duration(wcfg.Timeout)*time.Millisecond,
		handler,
		log,
	)
	w.Start()
	return w
}
