package extraction

import (
	"regexp"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/billscan/invoice-extraction/internal/models"
)

// itemVocabulary holds words that commonly appear in legitimate invoice
// line descriptions. A case-insensitive substring hit raises the
// description sub-score.
var itemVocabulary = []string{
	"Fee", "Service", "Product", "Item", "Transaction", "Basic",
	"Additional", "Change", "User", "Account", "Guide", "Pos", "View",
}

var (
	// Descriptions that are bare numbers or 1-3 letter fragments are
	// usually OCR noise, not real line items.
	reSuspiciousDesc = regexp.MustCompile(`^(?:\d+|[A-Z]{1,3}|[a-z]{1,3})$`)
	reUnitSuffix     = regexp.MustCompile(`(?i)[\s\-]*(?:per\s+unit|each)\s*$`)

	consistencyTolerance = decimal.NewFromFloat(0.01) // 1% of amount
)

// reconcileLineItem clamps negatives, derives whichever of quantity, unit
// price and amount is missing when the other two are known, and cleans the
// description. Derived amounts are never negative by construction.
func reconcileLineItem(item *models.LineItem) {
	if item.Quantity.IsNegative() {
		item.Quantity = decimal.Zero
	}
	if item.UnitPrice.IsNegative() {
		item.UnitPrice = decimal.Zero
	}
	if item.Amount.IsNegative() {
		item.Amount = decimal.Zero
	}

	switch {
	case item.Amount.IsZero() && item.Quantity.IsPositive() && item.UnitPrice.IsPositive():
		item.Amount = item.Quantity.Mul(item.UnitPrice)
	case item.UnitPrice.IsZero() && item.Quantity.IsPositive() && item.Amount.IsPositive():
		item.UnitPrice = item.Amount.Div(item.Quantity)
	case item.Quantity.IsZero() && item.UnitPrice.IsPositive() && item.Amount.IsPositive():
		item.Quantity = item.Amount.Div(item.UnitPrice)
	}

	item.Description = cleanDescription(item.Description)
}

// cleanDescription strips trailing "per unit"/"each" suffixes and
// collapses whitespace.
func cleanDescription(desc string) string {
	desc = reUnitSuffix.ReplaceAllString(desc, "")
	desc = reWhitespace.ReplaceAllString(desc, " ")
	return strings.TrimSpace(desc)
}

// scoreLineItem computes the weighted plausibility blend for one line
// item. Each sub-score contributes with its fixed weight only when the
// underlying field is present; the consistency check adds a flat bonus or
// penalty on top. Result is in [0,1], 0 when nothing was scorable.
func scoreLineItem(item *models.LineItem) float64 {
	var numerator, weight float64

	if desc := strings.TrimSpace(item.Description); desc != "" {
		numerator += 0.3 * descriptionScore(desc)
		weight += 0.3
	}
	if item.Quantity.IsPositive() {
		numerator += 0.2 * quantityScore(item.Quantity)
		weight += 0.2
	}
	if item.UnitPrice.IsPositive() {
		numerator += 0.2 * unitPriceScore(item.UnitPrice)
		weight += 0.2
	}
	if item.Amount.IsPositive() {
		numerator += 0.3 * amountScore(item.Amount)
		weight += 0.3
	}

	if item.Quantity.IsPositive() && item.UnitPrice.IsPositive() && item.Amount.IsPositive() {
		weight += 0.1
		if amountConsistent(item) {
			numerator += 0.1
		} else {
			numerator -= 0.1
		}
	}

	if weight == 0 {
		return 0
	}
	return clamp01(numerator / weight)
}

// amountConsistent reports whether quantity × unit price lands within 1%
// of the stated amount.
func amountConsistent(item *models.LineItem) bool {
	computed := item.Quantity.Mul(item.UnitPrice)
	diff := computed.Sub(item.Amount).Abs()
	return diff.LessThanOrEqual(item.Amount.Mul(consistencyTolerance))
}

func descriptionScore(desc string) float64 {
	score := 0.5
	lower := strings.ToLower(desc)
	for _, word := range itemVocabulary {
		if strings.Contains(lower, strings.ToLower(word)) {
			score += 0.3
			break
		}
	}
	if n := len(desc); n >= 5 && n <= 100 {
		score += 0.2
	}
	if reSuspiciousDesc.MatchString(desc) {
		score -= 0.4
	}
	return clamp01(score)
}

func quantityScore(q decimal.Decimal) float64 {
	score := 0.5
	if inRange(q, 0.01, 1000) {
		score += 0.3
	}
	if q.GreaterThan(decimal.NewFromInt(10000)) {
		score -= 0.4
	}
	if q.Equal(q.Truncate(0)) {
		score += 0.2
	}
	return clamp01(score)
}

func unitPriceScore(p decimal.Decimal) float64 {
	score := 0.5
	if inRange(p, 0.01, 10000) {
		score += 0.3
	}
	if p.GreaterThan(decimal.NewFromInt(100000)) {
		score -= 0.4
	}
	if hasTwoDecimals(p) {
		score += 0.2
	}
	return clamp01(score)
}

func amountScore(a decimal.Decimal) float64 {
	score := 0.5
	if inRange(a, 0.01, 100000) {
		score += 0.3
	}
	if a.GreaterThan(decimal.NewFromInt(1000000)) {
		score -= 0.4
	}
	if hasTwoDecimals(a) {
		score += 0.2
	}
	return clamp01(score)
}

func inRange(v decimal.Decimal, lo, hi float64) bool {
	return v.GreaterThanOrEqual(decimal.NewFromFloat(lo)) &&
		v.LessThanOrEqual(decimal.NewFromFloat(hi))
}

// hasTwoDecimals reports whether v needs exactly two decimal places, i.e.
// 12.34 qualifies while 12.3 and 12 do not.
func hasTwoDecimals(v decimal.Decimal) bool {
	return v.Equal(v.Round(2)) && !v.Equal(v.Round(1))
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
