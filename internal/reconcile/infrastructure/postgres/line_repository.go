package postgres

import (
	"context"
	"database/sql"
	"errors"

	reconcile "mars-dashboards/internal/reconcile/domain"
)

// LineRepository reads mirrored ERP transaction lines and WO/SO linkage from
// the sync tables.
type LineRepository struct {
	db       *sql.DB
	accounts reconcile.AccountFilter
}

// LineRepositoryOption configures a LineRepository.
type LineRepositoryOption func(*LineRepository)

// WithAccountFilter overrides the revenue account range used for linkage
// line counts.
func WithAccountFilter(filter reconcile.AccountFilter) LineRepositoryOption {
	return func(r *LineRepository) { r.accounts = filter }
}

// NewLineRepository constructs a LineRepository.
func NewLineRepository(db *sql.DB, opts ...LineRepositoryOption) *LineRepository {
	repo := &LineRepository{db: db, accounts: reconcile.DefaultAccountFilter()}
	for _, opt := range opts {
		opt(repo)
	}
	return repo
}

// ListLines loads all mirrored transaction lines for a year, keyed by
// project. Null numeric columns coerce to zero before the engine sees them.
func (r *LineRepository) ListLines(ctx context.Context, year int) ([]reconcile.TransactionLine, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("line repo: nil db")
	}

	rows, err := r.db.QueryContext(ctx, `
SELECT
	project_id,
	item_name,
	item_type,
	quantity,
	line_cost,
	unit_cost,
	amount,
	account_number,
	item_id IS NOT NULL AND item_id <> ''
FROM netsuite_transaction_lines
WHERE date_part('year', trandate) = $1
ORDER BY project_id ASC`, year)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []reconcile.TransactionLine
	for rows.Next() {
		var (
			projectID     string
			itemName      sql.NullString
			itemType      sql.NullString
			quantity      sql.NullFloat64
			lineCost      sql.NullFloat64
			unitCost      sql.NullFloat64
			amount        sql.NullFloat64
			accountNumber sql.NullString
			hasItem       bool
		)
		if err := rows.Scan(
			&projectID,
			&itemName,
			&itemType,
			&quantity,
			&lineCost,
			&unitCost,
			&amount,
			&accountNumber,
			&hasItem,
		); err != nil {
			return nil, err
		}
		result = append(result, reconcile.TransactionLine{
			EntityKey:     reconcile.EntityKey(projectID),
			ItemName:      itemName.String,
			ItemType:      reconcile.ItemType(itemType.String),
			Quantity:      reconcile.MoneyFromFloat(quantity.Float64),
			LineCost:      reconcile.MoneyFromFloat(lineCost.Float64),
			UnitCost:      reconcile.MoneyFromFloat(unitCost.Float64),
			Amount:        reconcile.MoneyFromFloat(amount.Float64),
			AccountNumber: accountNumber.String,
			HasItem:       hasItem,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// LinkageFor materializes WO/SO linkage state for the given entities so the
// reporter's pre-checks run without I/O.
func (r *LineRepository) LinkageFor(ctx context.Context, keys []reconcile.EntityKey) (map[reconcile.EntityKey]reconcile.Linkage, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("line repo: nil db")
	}

	result := make(map[reconcile.EntityKey]reconcile.Linkage, len(keys))
	for _, key := range keys {
		link, err := r.linkageForKey(ctx, key)
		if err != nil {
			return nil, err
		}
		result[key] = link
	}
	return result, nil
}

func (r *LineRepository) linkageForKey(ctx context.Context, key reconcile.EntityKey) (reconcile.Linkage, error) {
	var link reconcile.Linkage

	rows, err := r.db.QueryContext(ctx, `
SELECT wo_number
FROM project_work_orders
WHERE project_id = $1
ORDER BY wo_number ASC`, string(key))
	if err != nil {
		return link, err
	}
	for rows.Next() {
		var woNumber string
		if err := rows.Scan(&woNumber); err != nil {
			rows.Close()
			return link, err
		}
		link.WorkOrders = append(link.WorkOrders, woNumber)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return link, err
	}
	rows.Close()

	for _, woNumber := range link.WorkOrders {
		var createdFrom sql.NullString
		err := r.db.QueryRowContext(ctx, `
SELECT created_from_so
FROM netsuite_work_orders
WHERE tran_id = $1`, woNumber).Scan(&createdFrom)
		if errors.Is(err, sql.ErrNoRows) {
			continue
		}
		if err != nil {
			return link, err
		}
		link.MirroredOrders = append(link.MirroredOrders, woNumber)
		if link.SalesOrder == "" && createdFrom.Valid {
			link.SalesOrder = createdFrom.String
		}
	}

	if link.SalesOrder == "" {
		return link, nil
	}

	err = r.db.QueryRowContext(ctx, `
SELECT EXISTS (SELECT 1 FROM netsuite_sales_orders WHERE tran_id = $1)`, link.SalesOrder).Scan(&link.SalesOrderFound)
	if err != nil {
		return link, err
	}
	if !link.SalesOrderFound {
		return link, nil
	}

	count, err := r.revenueLineCount(ctx, link.SalesOrder)
	if err != nil {
		return link, err
	}
	link.RevenueLineCount = count
	return link, nil
}

func (r *LineRepository) revenueLineCount(ctx context.Context, salesOrder string) (int, error) {
	prefixes := r.accounts.RevenuePrefixes
	if len(prefixes) == 0 {
		prefixes = reconcile.DefaultAccountFilter().RevenuePrefixes
	}

	var count int
	for _, prefix := range prefixes {
		var partial int
		err := r.db.QueryRowContext(ctx, `
SELECT COUNT(*)
FROM netsuite_transaction_lines
WHERE order_tran_id = $1
	AND account_number LIKE $2 || '%'`, salesOrder, prefix).Scan(&partial)
		if err != nil {
			return 0, err
		}
		count += partial
	}
	return count, nil
}
