package reconcile

import (
	"strings"

	"github.com/shopspring/decimal"
)

// EntityTotal accumulates the selected costs of all lines sharing one key.
type EntityTotal struct {
	Cost      decimal.Decimal
	LineCount int
}

// Aggregate sums selector-valued costs per entity key. Pure and
// order-independent: summation is commutative, so chunking or reordering the
// input cannot change the totals.
func Aggregate(selector *Selector, lines []TransactionLine, keyFn KeyFunc) (map[EntityKey]EntityTotal, error) {
	if selector == nil {
		return nil, ErrNilSelector
	}
	if keyFn == nil {
		return nil, ErrNilKeyFunc
	}
	totals := make(map[EntityKey]EntityTotal)
	for _, line := range lines {
		key := keyFn(line)
		total := totals[key]
		total.Cost = total.Cost.Add(selector.SelectLineCost(line))
		total.LineCount++
		totals[key] = total
	}
	return totals, nil
}

// AccountFilter restricts revenue aggregation to a fixed account-number
// range, expressed as code prefixes (the source books project revenue on
// 410x/411x accounts).
type AccountFilter struct {
	RevenuePrefixes []string `yaml:"revenue_prefixes"`
}

// DefaultAccountFilter returns the revenue account range of the source ERP.
func DefaultAccountFilter() AccountFilter {
	return AccountFilter{RevenuePrefixes: []string{"410", "411"}}
}

// Matches reports whether the account number falls in the revenue range. An
// empty prefix list matches everything.
func (f AccountFilter) Matches(accountNumber string) bool {
	if len(f.RevenuePrefixes) == 0 {
		return true
	}
	for _, prefix := range f.RevenuePrefixes {
		if strings.HasPrefix(accountNumber, prefix) {
			return true
		}
	}
	return false
}

// accountBucket tracks per-account state needed for credit netting.
type accountBucket struct {
	revenue        decimal.Decimal
	largestCredit  decimal.Decimal
	matchedRevenue bool
	lineCount      int
}

// RevenueTotal is the netted revenue of one entity plus the credit detail
// that produced it.
type RevenueTotal struct {
	// Revenue is the gross revenue: sum of |amount| over negative-amount
	// lines on revenue accounts.
	Revenue decimal.Decimal
	// NettedRevenue is Revenue after subtracting, per account, the single
	// largest positive-amount credit when that account also has a matched
	// (item-linked) revenue line.
	NettedRevenue decimal.Decimal
	// CreditsNetted is the total amount subtracted by netting.
	CreditsNetted decimal.Decimal
	// RevenueLineCount counts revenue-range lines, used by the linkage
	// pre-check for sales orders with no matching lines.
	RevenueLineCount int
}

// AggregateRevenue sums revenue per entity under the ERP sign convention and
// applies single-largest-credit netting per account. Only the one largest
// credit on an account is netted; multiple smaller credits are ignored, a
// documented quirk of the source books rather than general credit matching.
func AggregateRevenue(lines []TransactionLine, keyFn KeyFunc, filter AccountFilter) (map[EntityKey]RevenueTotal, error) {
	if keyFn == nil {
		return nil, ErrNilKeyFunc
	}
	signs := SignConvention{}
	buckets := make(map[EntityKey]map[string]*accountBucket)

	for _, line := range lines {
		if !filter.Matches(line.AccountNumber) {
			continue
		}
		key := keyFn(line)
		accounts := buckets[key]
		if accounts == nil {
			accounts = make(map[string]*accountBucket)
			buckets[key] = accounts
		}
		bucket := accounts[line.AccountNumber]
		if bucket == nil {
			bucket = &accountBucket{}
			accounts[line.AccountNumber] = bucket
		}
		bucket.lineCount++

		switch {
		case signs.IsRevenueLine(line):
			bucket.revenue = bucket.revenue.Add(line.Amount.Abs())
			if line.HasItem {
				bucket.matchedRevenue = true
			}
		case signs.IsCreditLine(line):
			if line.Amount.GreaterThan(bucket.largestCredit) {
				bucket.largestCredit = line.Amount
			}
		}
	}

	totals := make(map[EntityKey]RevenueTotal, len(buckets))
	for key, accounts := range buckets {
		var total RevenueTotal
		for _, bucket := range accounts {
			total.Revenue = total.Revenue.Add(bucket.revenue)
			total.RevenueLineCount += bucket.lineCount
			if bucket.matchedRevenue && bucket.largestCredit.Sign() > 0 {
				total.CreditsNetted = total.CreditsNetted.Add(bucket.largestCredit)
			}
		}
		total.NettedRevenue = total.Revenue.Sub(total.CreditsNetted)
		totals[key] = total
	}
	return totals, nil
}
