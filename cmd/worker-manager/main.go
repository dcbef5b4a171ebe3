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

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/camunda/zeebe/clients/go/v8/pkg/zbc"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"mednote-workers/internal/common/azure"
	"mednote-workers/internal/common/camunda"
	"mednote-workers/internal/common/config"
	"mednote-workers/internal/common/database"
	"mednote-workers/internal/common/logger"
	"mednote-workers/internal/common/observability"
	"mednote-workers/pkg/registry"

	// Intake Workers (2)
	bnr "mednote-workers/internal/workers/intake/build-note-response"
	vnr "mednote-workers/internal/workers/intake/validate-note-request"

	// Document Workers (1)
	edt "mednote-workers/internal/workers/document/extract-document-text"

	// Clinical Analysis Workers (3)
	ahe "mednote-workers/internal/workers/clinical/analyze-health-entities"
	cfb "mednote-workers/internal/workers/clinical/compact-fhir-bundle"
	rbe "mednote-workers/internal/workers/clinical/rule-based-extract"

	// Summary Workers (2)
	dca "mednote-workers/internal/workers/summary/detect-critical-alerts"
	scn "mednote-workers/internal/workers/summary/summarize-clinical-note"

	// Records Workers (3)
	cnr "mednote-workers/internal/workers/records/create-note-record"
	ics "mednote-workers/internal/workers/records/index-clinical-summary"
	qcr "mednote-workers/internal/workers/records/query-clinical-records"

	// Notification Workers (1)
	san "mednote-workers/internal/workers/notify/send-alert-notification"
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
			ConnectionTimeout:      10 * time.Second,
			RequestTimeout:         config.GetDuration(cfg.Camunda.RequestTimeout),
		})
		return err
	}, 10, 2*time.Second, zapLog, "Zeebe client initialization")

	if err != nil {
		zapLog.Fatal("zeebe client failed after retries", zap.Error(err))
	}
	defer camundaClient.Close()
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
	var redis *database.RedisClient
	err = retryWithBackoff(func() error {
		var err error
		redis, err = database.NewRedis(cfg.Database.Redis)
		if err != nil {
			return err
		}
		return redis.Ping(ctx)
	}, 10, 2*time.Second, zapLog, "Redis connection")

	if err != nil {
		zapLog.Fatal("redis failed after retries", zap.Error(err))
	}
	defer redis.Close()
	zapLog.Info("Redis connected successfully")

	// --- Init Azure Service Clients ---
	docIntelClient := azure.NewDocumentIntelligenceClient(cfg.Azure.DocumentIntelligence, log)
	languageClient := azure.NewLanguageClient(cfg.Azure.Language, log)
	openaiClient := azure.NewOpenAIClient(cfg.Azure.OpenAI, log)

	zapLog.Info("Azure service clients initialized")

	// --- Activity Registry (informational at startup) ---
	if cfg.Registry.Path != "" {
		if reg, err := registry.LoadRegistry(cfg.Registry.Path); err != nil {
			zapLog.Warn("activity registry not loaded", zap.Error(err))
		} else {
			zapLog.Info("activity registry loaded",
				zap.String("version", reg.Version),
				zap.Int("activities", len(reg.Activities)),
			)
		}
	}

	// --- START: Register ALL 12 Workers ---
	var jobWorkers []*camunda.Worker

	// --- 1. Intake Workers (2) ---
	vnrHandler, err := vnr.NewHandler(vnr.HandlerOptions{
		AppConfig: cfg,
		Camunda:   camundaClient,
		Logger:    log,
	})
	if err != nil {
		zapLog.Fatal("failed to create validate-note-request handler", zap.Error(err))
	}
	if err := vnrHandler.Register(); err != nil {
		zapLog.Fatal("failed to register validate-note-request worker", zap.Error(err))
	}

	if cfg.Workers[bnr.TaskType].Enabled {
		handler := bnr.NewHandler(
			&bnr.Config{
				Timeout:    config.GetDuration(cfg.Workers[bnr.TaskType].Timeout),
				AppVersion: cfg.App.Version,
			},
			&buildNoteResponseLoggerAdapter{log},
		)
		jobWorkers = append(jobWorkers, startWorker(zeebeClient, bnr.TaskType, cfg.Workers[bnr.TaskType], handler.Handle, zapLog))
	}

	// --- 2. Document Workers (1) ---
	if cfg.Workers[edt.TaskType].Enabled {
		handler := edt.NewHandler(
			&edt.Config{
				Timeout:      config.GetDuration(cfg.Workers[edt.TaskType].Timeout),
				CacheEnabled: true,
				CacheTTL:     24 * time.Hour,
			},
			docIntelClient,
			redis,
			&extractDocumentTextLoggerAdapter{log},
		)
		jobWorkers = append(jobWorkers, startWorker(zeebeClient, edt.TaskType, cfg.Workers[edt.TaskType], handler.Handle, zapLog))
	}

	// --- 3. Clinical Analysis Workers (3) ---
	if cfg.Workers[ahe.TaskType].Enabled {
		handler := ahe.NewHandler(
			&ahe.Config{
				Timeout:       config.GetDuration(cfg.Workers[ahe.TaskType].Timeout),
				MaxChunkChars: 120_000,
				BatchSize:     25,
				Language:      "en",
			},
			languageClient,
			&analyzeHealthEntitiesLoggerAdapter{log},
		)
		jobWorkers = append(jobWorkers, startWorker(zeebeClient, ahe.TaskType, cfg.Workers[ahe.TaskType], handler.Handle, zapLog))
	}

	if cfg.Workers[rbe.TaskType].Enabled {
		handler := rbe.NewHandler(
			&rbe.Config{
				Timeout: config.GetDuration(cfg.Workers[rbe.TaskType].Timeout),
			},
			&ruleBasedExtractLoggerAdapter{log},
		)
		jobWorkers = append(jobWorkers, startWorker(zeebeClient, rbe.TaskType, cfg.Workers[rbe.TaskType], handler.Handle, zapLog))
	}

	if cfg.Workers[cfb.TaskType].Enabled {
		handler := cfb.NewHandler(
			&cfb.Config{
				Timeout: config.GetDuration(cfg.Workers[cfb.TaskType].Timeout),
			},
			&compactFHIRBundleLoggerAdapter{log},
		)
		jobWorkers = append(jobWorkers, startWorker(zeebeClient, cfb.TaskType, cfg.Workers[cfb.TaskType], handler.Handle, zapLog))
	}

	// --- 4. Summary Workers (2) ---
	if cfg.Workers[dca.TaskType].Enabled {
		handler := dca.NewHandler(
			&dca.Config{
				Timeout: config.GetDuration(cfg.Workers[dca.TaskType].Timeout),
			},
			&detectCriticalAlertsLoggerAdapter{log},
		)
		jobWorkers = append(jobWorkers, startWorker(zeebeClient, dca.TaskType, cfg.Workers[dca.TaskType], handler.Handle, zapLog))
	}

	if cfg.Workers[scn.TaskType].Enabled {
		handler := scn.NewHandler(
			&scn.Config{
				Timeout: config.GetDuration(cfg.Workers[scn.TaskType].Timeout),
			},
			openaiClient,
			&summarizeClinicalNoteLoggerAdapter{log},
		)
		jobWorkers = append(jobWorkers, startWorker(zeebeClient, scn.TaskType, cfg.Workers[scn.TaskType], handler.Handle, zapLog))
	}

	// --- 5. Records Workers (3) ---
	if cfg.Workers[cnr.TaskType].Enabled {
		handler := cnr.NewHandler(
			&cnr.Config{
				Timeout: config.GetDuration(cfg.Workers[cnr.TaskType].Timeout),
			},
			pg.DB,
			&createNoteRecordLoggerAdapter{log},
		)
		jobWorkers = append(jobWorkers, startWorker(zeebeClient, cnr.TaskType, cfg.Workers[cnr.TaskType], handler.Handle, zapLog))
	}

	if cfg.Workers[ics.TaskType].Enabled {
		handler := ics.NewHandler(
			&ics.Config{
				Timeout:   config.GetDuration(cfg.Workers[ics.TaskType].Timeout),
				IndexName: "clinical-summaries",
			},
			esClient.Client,
			&indexClinicalSummaryLoggerAdapter{log},
		)
		jobWorkers = append(jobWorkers, startWorker(zeebeClient, ics.TaskType, cfg.Workers[ics.TaskType], handler.Handle, zapLog))
	}

	if cfg.Workers[qcr.TaskType].Enabled {
		handler := qcr.NewHandler(
			&qcr.Config{
				Timeout:    config.GetDuration(cfg.Workers[qcr.TaskType].Timeout),
				IndexName:  "clinical-summaries",
				MaxResults: 20,
			},
			esClient.Client,
			&queryClinicalRecordsLoggerAdapter{log},
		)
		jobWorkers = append(jobWorkers, startWorker(zeebeClient, qcr.TaskType, cfg.Workers[qcr.TaskType], handler.Handle, zapLog))
	}

	// --- 6. Notification Workers (1) ---
	if cfg.Workers[san.TaskType].Enabled {
		handler, err := san.NewHandler(
			&san.Config{
				EmailEnabled: cfg.Notifications.Email.Enabled,
				SMSEnabled:   cfg.Notifications.SMS.Enabled,
				FromEmail:    cfg.Notifications.Email.FromEmail,
				AWSRegion:    cfg.Notifications.AWS.Region,
				Timeout:      config.GetDuration(cfg.Workers[san.TaskType].Timeout),
			},
			pg.DB,
			&sendAlertNotificationLoggerAdapter{log},
		)
		if err != nil {
			zapLog.Fatal("failed to create send-alert-notification handler", zap.Error(err))
		}
		jobWorkers = append(jobWorkers, startWorker(zeebeClient, san.TaskType, cfg.Workers[san.TaskType], handler.Handle, zapLog))
	}

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
					"time":   time.Now().Format(time.RFC3339),
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

	vnrHandler.Close()
	for _, w := range jobWorkers {
		if w != nil {
			w.Close()
		}
	}

	zapLog.Info("Worker manager stopped gracefully")
}

// Logger adapters for workers that declare their own Logger interfaces
type buildNoteResponseLoggerAdapter struct {
	logger.Logger
}

func (a *buildNoteResponseLoggerAdapter) With(fields map[string]interface{}) bnr.Logger {
	return &buildNoteResponseLoggerAdapter{a.Logger.With(fields)}
}

type extractDocumentTextLoggerAdapter struct {
	logger.Logger
}

func (a *extractDocumentTextLoggerAdapter) With(fields map[string]interface{}) edt.Logger {
	return &extractDocumentTextLoggerAdapter{a.Logger.With(fields)}
}

type analyzeHealthEntitiesLoggerAdapter struct {
	logger.Logger
}

func (a *analyzeHealthEntitiesLoggerAdapter) With(fields map[string]interface{}) ahe.Logger {
	return &analyzeHealthEntitiesLoggerAdapter{a.Logger.With(fields)}
}

type ruleBasedExtractLoggerAdapter struct {
	logger.Logger
}

func (a *ruleBasedExtractLoggerAdapter) With(fields map[string]interface{}) rbe.Logger {
	return &ruleBasedExtractLoggerAdapter{a.Logger.With(fields)}
}

type compactFHIRBundleLoggerAdapter struct {
	logger.Logger
}

func (a *compactFHIRBundleLoggerAdapter) With(fields map[string]interface{}) cfb.Logger {
	return &compactFHIRBundleLoggerAdapter{a.Logger.With(fields)}
}

type detectCriticalAlertsLoggerAdapter struct {
	logger.Logger
}

func (a *detectCriticalAlertsLoggerAdapter) With(fields map[string]interface{}) dca.Logger {
	return &detectCriticalAlertsLoggerAdapter{a.Logger.With(fields)}
}

type summarizeClinicalNoteLoggerAdapter struct {
	logger.Logger
}

func (a *summarizeClinicalNoteLoggerAdapter) With(fields map[string]interface{}) scn.Logger {
	return &summarizeClinicalNoteLoggerAdapter{a.Logger.With(fields)}
}

type createNoteRecordLoggerAdapter struct {
	logger.Logger
}

func (a *createNoteRecordLoggerAdapter) With(fields map[string]interface{}) cnr.Logger {
	return &createNoteRecordLoggerAdapter{a.Logger.With(fields)}
}

type indexClinicalSummaryLoggerAdapter struct {
	logger.Logger
}

func (a *indexClinicalSummaryLoggerAdapter) With(fields map[string]interface{}) ics.Logger {
	return &indexClinicalSummaryLoggerAdapter{a.Logger.With(fields)}
}

type queryClinicalRecordsLoggerAdapter struct {
	logger.Logger
}

func (a *queryClinicalRecordsLoggerAdapter) With(fields map[string]interface{}) qcr.Logger {
	return &queryClinicalRecordsLoggerAdapter{a.Logger.With(fields)}
}

type sendAlertNotificationLoggerAdapter struct {
	logger.Logger
}

func (a *sendAlertNotificationLoggerAdapter) With(fields map[string]interface{}) san.Logger {
	return &sendAlertNotificationLoggerAdapter{a.Logger.With(fields)}
}

func startWorker(client zbc.Client, taskType string, wcfg config.WorkerConfig, handlerFunc func(worker.JobClient, entities.Job), log *zap.Logger) *camunda.Worker {
	if !wcfg.Enabled {
		log.Info("worker disabled", zap.String("taskType", taskType))
		return nil
	}

	return camunda.NewWorker(
		client,
		taskType,
		wcfg.MaxJobsActive,
		time.Duration(wcfg.Timeout)*time.Millisecond,
		handlerFunc,
		log,
	)
}
