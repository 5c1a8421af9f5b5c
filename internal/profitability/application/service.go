package application

import (
	"context"
	"fmt"
	"log"
	"sort"

	"github.com/shopspring/decimal"

	reconcile "mars-dashboards/internal/reconcile/domain"
)

// LineSource loads mirrored ERP transaction lines for one year.
type LineSource interface {
	ListLines(ctx context.Context, year int) ([]reconcile.TransactionLine, error)
}

// ProjectProfit is the margin view of one project.
type ProjectProfit struct {
	Project     reconcile.EntityKey `json:"project"`
	Revenue     decimal.Decimal     `json:"revenue"`
	Cost        decimal.Decimal     `json:"cost"`
	GrossProfit decimal.Decimal     `json:"grossProfit"`
	GPMPct      decimal.Decimal     `json:"gpmPct"`
	LineCount   int                 `json:"lineCount"`
	// Suspect marks margins outside [0,100]%, which point at booking
	// errors rather than genuinely unprofitable work.
	Suspect bool `json:"suspect"`
}

// Service computes per-project profitability from mirrored transaction lines
// using the same attribution rules as reconciliation runs.
type Service struct {
	lines    LineSource
	selector *reconcile.Selector
	accounts reconcile.AccountFilter
	logger   *log.Logger
}

// NewService constructs a Service.
func NewService(lines LineSource, rules reconcile.RuleConfig, accounts reconcile.AccountFilter, logger *log.Logger) (*Service, error) {
	if lines == nil {
		return nil, fmt.Errorf("profitability service: nil line source")
	}
	return &Service{
		lines:    lines,
		selector: reconcile.NewSelector(rules),
		accounts: accounts,
		logger:   logger,
	}, nil
}

var hundred = decimal.NewFromInt(100)

// Profitability returns the margin view of every project with activity in the
// year, sorted by project key.
func (s *Service) Profitability(ctx context.Context, year int) ([]ProjectProfit, error) {
	if year < 2000 || year > 2200 {
		return nil, reconcile.ErrInvalidPeriod
	}
	lines, err := s.lines.ListLines(ctx, year)
	if err != nil {
		return nil, err
	}

	keyFn := func(line reconcile.TransactionLine) reconcile.EntityKey { return line.EntityKey }
	costs, err := reconcile.Aggregate(s.selector, lines, keyFn)
	if err != nil {
		return nil, err
	}
	revenues, err := reconcile.AggregateRevenue(lines, keyFn, s.accounts)
	if err != nil {
		return nil, err
	}

	keys := make([]reconcile.EntityKey, 0, len(costs))
	seen := make(map[reconcile.EntityKey]struct{}, len(costs))
	for key := range costs {
		keys = append(keys, key)
		seen[key] = struct{}{}
	}
	for key := range revenues {
		if _, ok := seen[key]; !ok {
			keys = append(keys, key)
		}
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })

	profits := make([]ProjectProfit, 0, len(keys))
	for _, key := range keys {
		revenue := revenues[key].NettedRevenue
		cost := costs[key].Cost
		profit := ProjectProfit{
			Project:     key,
			Revenue:     revenue,
			Cost:        cost,
			GrossProfit: revenue.Sub(cost),
			LineCount:   costs[key].LineCount + revenues[key].RevenueLineCount,
		}
		if revenue.Sign() > 0 {
			profit.GPMPct = revenue.Sub(cost).Div(revenue).Mul(hundred)
			profit.Suspect = profit.GPMPct.Sign() < 0 || profit.GPMPct.GreaterThan(hundred)
		} else if cost.Sign() != 0 {
			profit.Suspect = true
		}
		profits = append(profits, profit)
	}
	if s.logger != nil {
		s.logger.Printf("profitability_computed year=%d projects=%d", year, len(profits))
	}
	return profits, nil
}
