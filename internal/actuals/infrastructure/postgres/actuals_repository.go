package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	reconcile "mars-dashboards/internal/reconcile/domain"
)

// ActualsRepository persists spreadsheet-imported reference actuals.
type ActualsRepository struct {
	db *sql.DB
}

// NewActualsRepository constructs an ActualsRepository.
func NewActualsRepository(db *sql.DB) *ActualsRepository {
	return &ActualsRepository{db: db}
}

// ListActuals loads all reference actuals for a year.
func (r *ActualsRepository) ListActuals(ctx context.Context, year int) ([]reconcile.ReferenceActual, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("actuals repo: nil db")
	}

	rows, err := r.db.QueryContext(ctx, `
SELECT project_id, year, month, revenue, cost
FROM excel_actuals
WHERE year = $1
ORDER BY project_id ASC, month ASC`, year)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []reconcile.ReferenceActual
	for rows.Next() {
		var (
			projectID string
			rowYear   int
			month     int
			revenue   sql.NullFloat64
			cost      sql.NullFloat64
		)
		if err := rows.Scan(&projectID, &rowYear, &month, &revenue, &cost); err != nil {
			return nil, err
		}
		result = append(result, reconcile.ReferenceActual{
			EntityKey: reconcile.EntityKey(projectID),
			Year:      rowYear,
			Month:     month,
			Revenue:   reconcile.MoneyFromFloat(revenue.Float64),
			Cost:      reconcile.MoneyFromFloat(cost.Float64),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// UpsertActuals writes imported actuals, replacing any existing row for the
// same project/year/month. Returns the number of rows written.
func (r *ActualsRepository) UpsertActuals(ctx context.Context, actuals []reconcile.ReferenceActual) (int, error) {
	if r == nil || r.db == nil {
		return 0, errors.New("actuals repo: nil db")
	}
	if len(actuals) == 0 {
		return 0, nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback() }()

	now := time.Now().UTC()
	written := 0
	for _, actual := range actuals {
		if actual.EntityKey == "" {
			continue
		}
		revenue, _ := actual.Revenue.Float64()
		cost, _ := actual.Cost.Float64()
		_, err := tx.ExecContext(ctx, `
INSERT INTO excel_actuals (project_id, year, month, revenue, cost, imported_at)
VALUES ($1,$2,$3,$4,$5,$6)
ON CONFLICT (project_id, year, month)
DO UPDATE SET revenue = EXCLUDED.revenue, cost = EXCLUDED.cost, imported_at = EXCLUDED.imported_at`,
			string(actual.EntityKey), actual.Year, actual.Month, revenue, cost, now)
		if err != nil {
			return 0, err
		}
		written++
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return written, nil
}
