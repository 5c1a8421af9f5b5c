package postgres

import (
	"context"
	"database/sql"
	"errors"

	contracts "mars-dashboards/internal/contracts/domain"
	reconcile "mars-dashboards/internal/reconcile/domain"
)

// ContractsRepository reads the contract system of record.
type ContractsRepository struct {
	db *sql.DB
}

// NewContractsRepository constructs a ContractsRepository.
func NewContractsRepository(db *sql.DB) (*ContractsRepository, error) {
	if db == nil {
		return nil, errors.New("contracts repository: nil db")
	}
	return &ContractsRepository{db: db}, nil
}

// ListContracts returns every contract in the store.
func (r *ContractsRepository) ListContracts(ctx context.Context) ([]contracts.Contract, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT id, name, COALESCE(value, 0)
FROM contracts
ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []contracts.Contract
	for rows.Next() {
		var (
			id    string
			name  sql.NullString
			value sql.NullFloat64
		)
		if err := rows.Scan(&id, &name, &value); err != nil {
			return nil, err
		}
		out = append(out, contracts.Contract{
			ID:    id,
			Name:  name.String,
			Value: reconcile.MoneyFromFloat(value.Float64),
		})
	}
	return out, rows.Err()
}
