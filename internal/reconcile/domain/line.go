package reconcile

import (
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

// ItemType is the ERP accounting classification of a transaction line item.
type ItemType string

const (
	ItemTypeInvtPart    ItemType = "InvtPart"
	ItemTypeNonInvtPart ItemType = "NonInvtPart"
	ItemTypeAssembly    ItemType = "Assembly"
	ItemTypeOthCharge   ItemType = "OthCharge"
	ItemTypeShipItem    ItemType = "ShipItem"
	ItemTypeService     ItemType = "Service"
)

// TransactionLine is one accounting line of a work order or sales order as
// mirrored from the ERP. Numeric fields are already coerced: a null or NaN
// value in the source row becomes zero (see MoneyFromFloat).
type TransactionLine struct {
	ItemName      string
	ItemType      ItemType
	Quantity      decimal.Decimal
	LineCost      decimal.Decimal
	UnitCost      decimal.Decimal
	Amount        decimal.Decimal
	AccountNumber string
	HasItem       bool
	EntityKey     EntityKey
}

// EntityKey identifies the aggregation target of a line: a project, a
// customer+year pair, a distributor location.
type EntityKey string

// KeyFunc maps a line to its aggregation key.
type KeyFunc func(TransactionLine) EntityKey

// MoneyFromFloat converts a raw float from the sync layer into a decimal,
// treating NaN and infinities as zero. The engine never sees an undefined
// numeric value.
func MoneyFromFloat(value float64) decimal.Decimal {
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return decimal.Zero
	}
	return decimal.NewFromFloat(value)
}

// SignConvention names the ERP sign quirks so callers do not scatter raw
// amount comparisons: revenue postings carry a negative amount, a positive
// amount on a revenue account is a credit or adjustment, not revenue.
type SignConvention struct{}

// IsRevenueLine reports whether the line books revenue under the ERP
// convention (negative amount).
func (SignConvention) IsRevenueLine(line TransactionLine) bool {
	return line.Amount.Sign() < 0
}

// IsCreditLine reports whether the line is a credit or adjustment posting
// (positive amount on a revenue account).
func (SignConvention) IsCreditLine(line TransactionLine) bool {
	return line.Amount.Sign() > 0
}

// ContainsAnyFold reports whether the lower-cased haystack contains any of
// the given keywords.
func ContainsAnyFold(haystack string, keywords []string) bool {
	lowered := strings.ToLower(haystack)
	for _, keyword := range keywords {
		if keyword == "" {
			continue
		}
		if strings.Contains(lowered, strings.ToLower(keyword)) {
			return true
		}
	}
	return false
}
