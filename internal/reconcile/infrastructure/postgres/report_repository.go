package postgres

import (
	"context"
	"database/sql"
	"errors"

	"mars-dashboards/internal/reconcile/application"
	reconcile "mars-dashboards/internal/reconcile/domain"
)

// ReportRepository persists reconciliation report rows.
type ReportRepository struct {
	db *sql.DB
}

// NewReportRepository constructs a ReportRepository.
func NewReportRepository(db *sql.DB) *ReportRepository {
	return &ReportRepository{db: db}
}

// CreateReport inserts a generated report row.
func (r *ReportRepository) CreateReport(ctx context.Context, report *application.StoredReport) error {
	if r == nil || r.db == nil {
		return errors.New("report repo: nil db")
	}
	if report == nil {
		return errors.New("report repo: nil report")
	}

	_, err := r.db.ExecContext(ctx, `
INSERT INTO reconciliation_reports (
	id, tenant_id, year, status, location, summary,
	high_count, medium_count, no_data_count, created_at
) VALUES (
	$1,$2,$3,$4,$5,$6,$7,$8,$9,$10
)`, report.ID, report.TenantID, report.Year, report.Status, report.Location,
		[]byte(report.Summary), report.HighCount, report.MediumCount, report.NoDataCount, report.CreatedAt)
	return err
}

// GetReport loads one report row by id.
func (r *ReportRepository) GetReport(ctx context.Context, id string) (*application.StoredReport, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("report repo: nil db")
	}

	var report application.StoredReport
	err := r.db.QueryRowContext(ctx, `
SELECT id, tenant_id, year, status, location, summary,
	high_count, medium_count, no_data_count, created_at
FROM reconciliation_reports
WHERE id = $1`, id).Scan(
		&report.ID,
		&report.TenantID,
		&report.Year,
		&report.Status,
		&report.Location,
		&report.Summary,
		&report.HighCount,
		&report.MediumCount,
		&report.NoDataCount,
		&report.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, reconcile.ErrReportNotFound
	}
	if err != nil {
		return nil, err
	}
	report.CreatedAt = report.CreatedAt.UTC()
	return &report, nil
}

// ListReports returns the most recent reports for a tenant.
func (r *ReportRepository) ListReports(ctx context.Context, tenantID string, limit int) ([]*application.StoredReport, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("report repo: nil db")
	}
	if limit <= 0 {
		limit = 50
	}

	rows, err := r.db.QueryContext(ctx, `
SELECT id, tenant_id, year, status, location, summary,
	high_count, medium_count, no_data_count, created_at
FROM reconciliation_reports
WHERE tenant_id = $1
ORDER BY created_at DESC
LIMIT $2`, tenantID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []*application.StoredReport
	for rows.Next() {
		var report application.StoredReport
		if err := rows.Scan(
			&report.ID,
			&report.TenantID,
			&report.Year,
			&report.Status,
			&report.Location,
			&report.Summary,
			&report.HighCount,
			&report.MediumCount,
			&report.NoDataCount,
			&report.CreatedAt,
		); err != nil {
			return nil, err
		}
		report.CreatedAt = report.CreatedAt.UTC()
		result = append(result, &report)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}
