package contracts

import (
	"regexp"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
)

// Contract is a named agreement with a dollar value, from either the CRM
// export sheet or the contract store.
type Contract struct {
	ID               string          `json:"id,omitempty"`
	Name             string          `json:"name"`
	Value            decimal.Decimal `json:"value"`
	OpportunityCount int             `json:"opportunityCount,omitempty"`
}

// nameSuffixes are legal forms, org qualifiers, and deal annotations stripped
// before matching. Longer variants come before their prefixes so ", inc."
// wins over " inc".
var nameSuffixes = []string{
	", inc.", ", inc", " inc.", " inc",
	", llc", " llc", ", ltd", " ltd",
	" corporation", " corp", " company", " co.",
	", city of", " city of", ", town of", " town of",
	" department", " dept", " utilities", " utility",
	" water district", " water division", " water works", " waterworks",
	" water & sewer", " water and sewer",
	" renewal", " license",
}

var (
	trailingParens   = regexp.MustCompile(`\s*\([^)]*\)\s*$`)
	trailingBrackets = regexp.MustCompile(`\s*\[[^\]]*\]\s*$`)
)

// NormalizeName reduces a company name to its matching form: lower case, legal
// suffixes removed, trailing parenthetical or bracketed annotations dropped,
// whitespace collapsed.
func NormalizeName(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	for _, suffix := range nameSuffixes {
		name = strings.ReplaceAll(name, suffix, "")
	}
	name = trailingParens.ReplaceAllString(name, "")
	name = trailingBrackets.ReplaceAllString(name, "")
	return strings.Join(strings.Fields(name), " ")
}

// MatchedContract pairs one contract found on both sides.
type MatchedContract struct {
	Name       string          `json:"name"`
	SheetValue decimal.Decimal `json:"sheetValue"`
	StoreValue decimal.Decimal `json:"storeValue"`
	DiffPct    float64         `json:"diffPct"`
	Mismatch   bool            `json:"mismatch"`
}

// ReconcileResult buckets the comparison of sheet contracts against store
// contracts.
type ReconcileResult struct {
	Matched      []MatchedContract `json:"matched"`
	OnlyInSheet  []Contract        `json:"onlyInSheet"`
	OnlyInStore  []Contract        `json:"onlyInStore"`
	SheetTotal   decimal.Decimal   `json:"sheetTotal"`
	StoreTotal   decimal.Decimal   `json:"storeTotal"`
	MissingValue decimal.Decimal   `json:"missingValue"`
	Mismatches   int               `json:"mismatches"`
}

// Reconcile compares the two contract sets by normalized name. A matched pair
// whose values differ by more than mismatchPct percent (against the larger
// value) is flagged; pairs where either side is zero are never flagged since
// a zero usually means the value was not entered yet.
func Reconcile(sheet, store []Contract, mismatchPct float64) ReconcileResult {
	sheetByName := indexByNormalizedName(sheet)
	storeByName := indexByNormalizedName(store)

	var result ReconcileResult
	for _, contract := range sheet {
		result.SheetTotal = result.SheetTotal.Add(contract.Value)
	}
	for _, contract := range store {
		result.StoreTotal = result.StoreTotal.Add(contract.Value)
	}

	for _, name := range sortedKeys(sheetByName) {
		sheetContract := sheetByName[name]
		storeContract, ok := storeByName[name]
		if !ok {
			result.OnlyInSheet = append(result.OnlyInSheet, sheetContract)
			result.MissingValue = result.MissingValue.Add(sheetContract.Value)
			continue
		}
		matched := MatchedContract{
			Name:       sheetContract.Name,
			SheetValue: sheetContract.Value,
			StoreValue: storeContract.Value,
		}
		if sheetContract.Value.Sign() > 0 && storeContract.Value.Sign() > 0 {
			larger := decimal.Max(sheetContract.Value, storeContract.Value)
			matched.DiffPct = sheetContract.Value.Sub(storeContract.Value).Abs().
				Div(larger).Mul(decimal.NewFromInt(100)).InexactFloat64()
			matched.Mismatch = matched.DiffPct > mismatchPct
		}
		if matched.Mismatch {
			result.Mismatches++
		}
		result.Matched = append(result.Matched, matched)
	}

	for _, name := range sortedKeys(storeByName) {
		if _, ok := sheetByName[name]; !ok {
			result.OnlyInStore = append(result.OnlyInStore, storeByName[name])
		}
	}
	return result
}

func indexByNormalizedName(contracts []Contract) map[string]Contract {
	indexed := make(map[string]Contract, len(contracts))
	for _, contract := range contracts {
		name := NormalizeName(contract.Name)
		if name == "" {
			continue
		}
		if existing, ok := indexed[name]; ok {
			existing.Value = existing.Value.Add(contract.Value)
			existing.OpportunityCount += contract.OpportunityCount
			indexed[name] = existing
			continue
		}
		indexed[name] = contract
	}
	return indexed
}

func sortedKeys(m map[string]Contract) []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
