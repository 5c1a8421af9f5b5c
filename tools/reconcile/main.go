package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	actualsrepo "mars-dashboards/internal/actuals/infrastructure/postgres"
	reconcileapp "mars-dashboards/internal/reconcile/application"
	reconcilerepo "mars-dashboards/internal/reconcile/infrastructure/postgres"
	"mars-dashboards/internal/reconcile/interfaces"
)

type config struct {
	dbURL    string
	tenantID string
	year     int
	outDir   string
	save     bool
}

func main() {
	cfg, err := parseFlags()
	if err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(2)
	}

	db, err := sql.Open("pgx", cfg.dbURL)
	if err != nil {
		fmt.Fprintln(os.Stderr, "db open:", err)
		os.Exit(2)
	}
	defer db.Close()

	engineCfg, err := reconcileapp.LoadConfig()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(2)
	}

	lineRepo := reconcilerepo.NewLineRepository(db, reconcilerepo.WithAccountFilter(engineCfg.Accounts))
	reportRepo := reconcilerepo.NewReportRepository(db)
	actualsRepo := actualsrepo.NewActualsRepository(db)

	runner, err := reconcileapp.NewRunner(lineRepo, actualsRepo, reportRepo, engineCfg, nil, nil)
	if err != nil {
		fmt.Fprintln(os.Stderr, "runner:", err)
		os.Exit(2)
	}

	ctx := context.Background()
	var result *reconcileapp.RunResult
	if cfg.save {
		stored, run, err := runner.Run(ctx, cfg.tenantID, cfg.year, nil)
		if err != nil {
			fmt.Fprintln(os.Stderr, "run:", err)
			os.Exit(1)
		}
		result = run
		fmt.Printf("report %s saved to %s\n\n", stored.ID, stored.Location)
	} else {
		run, _, err := runner.Preview(ctx, cfg.year, nil)
		if err != nil {
			fmt.Fprintln(os.Stderr, "run:", err)
			os.Exit(1)
		}
		result = run
	}

	fmt.Print(interfaces.FormatConsoleTable(result))

	if cfg.outDir != "" {
		if err := writeCSV(ctx, runner, cfg.outDir, cfg.year); err != nil {
			fmt.Fprintln(os.Stderr, "write csv:", err)
			os.Exit(1)
		}
	}
}

func writeCSV(ctx context.Context, runner *reconcileapp.Runner, outDir string, year int) error {
	_, report, err := runner.Preview(ctx, year, nil)
	if err != nil {
		return err
	}
	payload, err := interfaces.BuildVariancesCSV(report)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return err
	}
	path := filepath.Join(outDir, "variances.csv")
	if err := os.WriteFile(path, payload, 0o644); err != nil {
		return err
	}
	fmt.Printf("\nvariance table written to %s\n", path)
	return nil
}

func parseFlags() (config, error) {
	var cfg config
	flag.StringVar(&cfg.dbURL, "db", getenvDefault("DATABASE_URL", getenvDefault("PG_DSN", "")), "Postgres DSN")
	flag.StringVar(&cfg.tenantID, "tenant", getenvDefault("TENANT_ID", "tenant-demo"), "tenant id")
	flag.IntVar(&cfg.year, "year", time.Now().UTC().Year(), "fiscal year to reconcile")
	flag.StringVar(&cfg.outDir, "out", "", "optional directory for the variance CSV")
	flag.BoolVar(&cfg.save, "save", false, "persist report artifacts and the report row")
	flag.Parse()

	if cfg.dbURL == "" {
		return cfg, errors.New("missing --db or DATABASE_URL/PG_DSN")
	}
	if cfg.year < 2000 || cfg.year > 2200 {
		return cfg, errors.New("year out of range: " + strconv.Itoa(cfg.year))
	}
	return cfg, nil
}

func getenvDefault(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}
