package extraction

import (
	"github.com/shopspring/decimal"

	"github.com/billscan/invoice-extraction/internal/models"
)

// fieldWeights is the fixed importance table behind OverallConfidence.
// The keys and values are part of the output contract; changing them
// changes every score downstream consumers have calibrated against.
var fieldWeights = map[string]float64{
	models.FieldInvoiceNumber:  1.0,
	models.FieldInvoiceDate:    0.9,
	models.FieldDueDate:        0.8,
	models.FieldTotalAmount:    1.0,
	models.FieldSubtotal:       0.9,
	models.FieldTaxAmount:      0.9,
	models.FieldVendorName:     1.0,
	models.FieldVendorTaxID:    0.9,
	models.FieldCustomerName:   0.8,
	models.FieldCustomerNumber: 0.7,
}

// currencyDecimals returns the canonical decimal precision for an ISO 4217
// code. Yen has none, the three-decimal dinar/rial family has three,
// everything else two.
func currencyDecimals(code string) int32 {
	switch code {
	case "JPY":
		return 0
	case "BHD", "KWD", "OMR":
		return 3
	default:
		return 2
	}
}

// finalize applies currency-precision rounding to the monetary fields,
// backfills a confidence score for every weighted field the upstream
// extractor did not score, and derives OverallConfidence as the weighted
// mean over the scored fields.
func (p *Pipeline) finalize(result *models.ExtractionResult) {
	decimals := currencyDecimals(result.Currency)
	result.InvoiceValue = result.InvoiceValue.Round(decimals)
	result.Subtotal = result.Subtotal.Round(decimals)
	result.TaxAmount = result.TaxAmount.Round(decimals)
	result.TotalAmount = result.TotalAmount.Round(decimals)

	for field := range fieldWeights {
		result.SetConfidence(field, p.defaultConfidence(result, field))
	}

	result.OverallConfidence = p.overallConfidence(result.FieldConfidenceScores)
	result.ProcessedAt = p.now()

	p.logger.Info("extraction finalized",
		"id", result.ID,
		"overall_confidence", result.OverallConfidence,
		"processed", result.Processed)
}

// overallConfidence is the weighted mean over the scored fields that
// appear in the weight table. Scores for unknown field names are ignored;
// no weighted fields at all yields 0.
func (p *Pipeline) overallConfidence(scores map[string]float64) float64 {
	var weighted, total float64
	for field, score := range scores {
		w, ok := p.weights[field]
		if !ok {
			continue
		}
		weighted += score * w
		total += w
	}
	if total == 0 {
		return 0
	}
	return clamp01(weighted / total)
}

// defaultConfidence is the backfill heuristic for fields the extractor did
// not score itself: 0 for a missing value, otherwise a modest presence
// score nudged by how well-formed the value looks. Deliberately simple.
func (p *Pipeline) defaultConfidence(result *models.ExtractionResult, field string) float64 {
	switch field {
	case models.FieldInvoiceNumber:
		if result.InvoiceNumber == "" {
			return 0
		}
		if n := len(result.InvoiceNumber); n >= 3 && n <= 20 {
			return 0.8
		}
		return 0.6
	case models.FieldInvoiceDate:
		if result.InvoiceDate.IsZero() {
			return 0
		}
		return 0.8
	case models.FieldDueDate:
		if result.DueDate.IsZero() {
			return 0
		}
		return 0.8
	case models.FieldTotalAmount:
		return amountPresenceScore(result.TotalAmount)
	case models.FieldSubtotal:
		return amountPresenceScore(result.Subtotal)
	case models.FieldTaxAmount:
		return amountPresenceScore(result.TaxAmount)
	case models.FieldVendorName:
		return namePresenceScore(result.VendorName)
	case models.FieldCustomerName:
		return namePresenceScore(result.CustomerName)
	case models.FieldVendorTaxID:
		if result.VendorTaxID == "" {
			return 0
		}
		if n := len(result.VendorTaxID); n >= 8 && n <= 15 {
			return 0.8
		}
		return 0.6
	case models.FieldCustomerNumber:
		if result.CustomerNumber == "" {
			return 0
		}
		return 0.7
	}
	return 0
}

func amountPresenceScore(v decimal.Decimal) float64 {
	if v.IsZero() {
		return 0
	}
	if v.IsPositive() {
		return 0.75
	}
	return 0.4
}

func namePresenceScore(name string) float64 {
	switch {
	case name == "":
		return 0
	case len(name) >= 3:
		return 0.7
	default:
		return 0.5
	}
}
