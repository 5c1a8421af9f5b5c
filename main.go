package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"strconv"
	"time"

	actualsapp "mars-dashboards/internal/actuals/application"
	actualsrepo "mars-dashboards/internal/actuals/infrastructure/postgres"
	actualshttp "mars-dashboards/internal/actuals/interfaces/http"
	"mars-dashboards/internal/audit"
	"mars-dashboards/internal/auth"
	contractsapp "mars-dashboards/internal/contracts/application"
	contractsrepo "mars-dashboards/internal/contracts/infrastructure/postgres"
	contractshttp "mars-dashboards/internal/contracts/interfaces/http"
	"mars-dashboards/internal/observability/metrics"
	profitapp "mars-dashboards/internal/profitability/application"
	profithttp "mars-dashboards/internal/profitability/interfaces/http"
	reconcileapp "mars-dashboards/internal/reconcile/application"
	reconcilerepo "mars-dashboards/internal/reconcile/infrastructure/postgres"
	reconcilehttp "mars-dashboards/internal/reconcile/interfaces/http"
	reconcilemetrics "mars-dashboards/internal/reconcile/metrics"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	cfg := loadConfig()
	logger := log.New(os.Stdout, "", log.LstdFlags)

	db, err := sql.Open("pgx", cfg.DatabaseURL)
	if err != nil {
		logger.Fatalf("db open error: %v", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		logger.Fatalf("db ping error: %v", err)
	}

	metrics.Init(db, logger)
	auditRepo := audit.NewRepository(db)

	engineCfg, err := reconcileapp.LoadConfig()
	if err != nil {
		logger.Fatalf("reconcile config error: %v", err)
	}

	lineRepo := reconcilerepo.NewLineRepository(db, reconcilerepo.WithAccountFilter(engineCfg.Accounts))
	reportRepo := reconcilerepo.NewReportRepository(db)
	actualsRepo := actualsrepo.NewActualsRepository(db)

	runner, err := reconcileapp.NewRunner(lineRepo, actualsRepo, reportRepo, engineCfg, reconcilemetrics.New(), logger)
	if err != nil {
		logger.Fatalf("reconcile runner error: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	scheduler := reconcileapp.NewScheduler(runner, cfg.TenantID, engineCfg.Schedule.DailyAt, logger)
	go scheduler.Start(ctx)

	importer, err := actualsapp.NewImporter(actualsRepo, actualsapp.DefaultColumnMap(), logger)
	if err != nil {
		logger.Fatalf("actuals importer error: %v", err)
	}

	profitService, err := profitapp.NewService(lineRepo, engineCfg.Rules, engineCfg.Accounts, logger)
	if err != nil {
		logger.Fatalf("profitability service error: %v", err)
	}

	contractsStore, err := contractsrepo.NewContractsRepository(db)
	if err != nil {
		logger.Fatalf("contracts repository error: %v", err)
	}
	contractsService, err := contractsapp.NewService(contractsStore, contractsapp.DefaultColumnMap(), cfg.ContractMismatchPct, logger)
	if err != nil {
		logger.Fatalf("contracts service error: %v", err)
	}

	reconcileHandler, err := reconcilehttp.NewHandler(runner, reportRepo, cfg.TenantID, auditRepo)
	if err != nil {
		logger.Fatalf("reconcile handler error: %v", err)
	}
	actualsHandler, err := actualshttp.NewHandler(importer, cfg.TenantID, auditRepo)
	if err != nil {
		logger.Fatalf("actuals handler error: %v", err)
	}
	profitHandler, err := profithttp.NewHandler(profitService)
	if err != nil {
		logger.Fatalf("profitability handler error: %v", err)
	}
	contractsHandler, err := contractshttp.NewHandler(contractsService, cfg.TenantID, auditRepo)
	if err != nil {
		logger.Fatalf("contracts handler error: %v", err)
	}

	authPolicy := auth.NewDefaultPolicy([]string{"/healthz"}, []string{"/metrics"})
	authMiddleware := auth.NewMiddleware([]byte(cfg.JWTSecret), authPolicy)

	mux := http.NewServeMux()
	mux.Handle("/api/v1/reconcile/run", reconcileHandler)
	mux.Handle("/api/v1/reconcile/reports", reconcileHandler)
	mux.Handle("/api/v1/reconcile/reports/", reconcileHandler)
	mux.Handle("/api/v1/exports/", reconcileHandler)
	mux.Handle("/api/v1/profitability", profitHandler)
	mux.Handle("/api/v1/actuals/import", actualsHandler)
	mux.Handle("/api/v1/contracts/reconcile", contractsHandler)
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	server := &http.Server{Addr: cfg.HTTPAddr, Handler: loggingMiddleware(authMiddleware.Wrap(mux), logger)}
	logger.Printf("http listening on %s", cfg.HTTPAddr)
	logger.Fatal(server.ListenAndServe())
}

type config struct {
	DatabaseURL         string
	HTTPAddr            string
	TenantID            string
	JWTSecret           string
	ContractMismatchPct float64
}

func loadConfig() config {
	cfg := config{
		DatabaseURL:         getenvDefault("DATABASE_URL", getenvDefault("PG_DSN", "")),
		HTTPAddr:            getenvDefault("HTTP_ADDR", ":8080"),
		TenantID:            getenvDefault("TENANT_ID", "tenant-demo"),
		JWTSecret:           getenvDefault("AUTH_JWT_SECRET", getenvDefault("JWT_SECRET", "")),
		ContractMismatchPct: getenvFloatDefault("CONTRACT_MISMATCH_PCT", 5),
	}
	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL or PG_DSN is required")
	}
	if cfg.JWTSecret == "" {
		log.Fatal("AUTH_JWT_SECRET is required")
	}
	return cfg
}

func getenvDefault(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func getenvFloatDefault(key string, fallback float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fallback
	}
	return parsed
}

func loggingMiddleware(next http.Handler, logger *log.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		resp := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(resp, r)
		logger.Printf("http %s %s %d %s", r.Method, r.URL.Path, resp.status, time.Since(start))
		metrics.ObserveRequest(r.URL.Path, strconv.Itoa(resp.status/100*100), time.Since(start))
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}
