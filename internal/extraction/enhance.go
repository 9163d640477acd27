package extraction

import (
	"regexp"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/billscan/invoice-extraction/internal/models"
)

// reconcileTolerance is the relative tolerance when comparing the sum of
// line items against the stated total.
var reconcileTolerance = decimal.NewFromFloat(0.01)

// enhance fills gaps the extractor left, never overwriting values that are
// already present: dates from the raw text, the total from subtotal + tax,
// a best-effort vendor tax id, and derived line-item values. It ends with
// a log-only reconciliation of the line-item sum against the total.
func (p *Pipeline) enhance(result *models.ExtractionResult) {
	searchText := cleanOCRText(result.RawText)

	if result.InvoiceDate.IsZero() {
		if t, ok := p.dates.Extract(searchText, hintInvoiceDate); ok {
			result.InvoiceDate = t
			p.logger.Debug("invoice date recovered from text",
				"id", result.ID, "date", t.Format("2006-01-02"))
		}
	}
	if result.DueDate.IsZero() {
		if t, ok := p.dates.Extract(searchText, hintDueDate); ok {
			result.DueDate = t
			p.logger.Debug("due date recovered from text",
				"id", result.ID, "date", t.Format("2006-01-02"))
		}
	}

	if result.TotalAmount.IsZero() && !result.Subtotal.IsZero() && !result.TaxAmount.IsZero() {
		result.TotalAmount = result.Subtotal.Add(result.TaxAmount)
	}

	if result.VendorTaxID == "" {
		result.VendorTaxID = extractTaxID(searchText)
	}

	for i := range result.LineItems {
		item := &result.LineItems[i]
		reconcileLineItem(item)
		if item.Confidence == 0 {
			item.Confidence = scoreLineItem(item)
		}
	}

	p.reconcileTotal(result)
}

// reconcileTotal compares the line-item sum against the stated total with
// a 1% tolerance. A mismatch is a warning signal only: OCR drops line
// items often enough that this must never block processing.
func (p *Pipeline) reconcileTotal(result *models.ExtractionResult) {
	if result.TotalAmount.IsZero() || len(result.LineItems) == 0 {
		return
	}
	sum := decimal.Zero
	for _, item := range result.LineItems {
		sum = sum.Add(item.Amount)
	}
	tolerance := result.TotalAmount.Mul(reconcileTolerance).Abs()
	if sum.Sub(result.TotalAmount).Abs().GreaterThan(tolerance) {
		p.logger.Warn("line item sum does not match total",
			"id", result.ID,
			"line_item_sum", sum.String(),
			"total", result.TotalAmount.String())
	}
}

// taxIDPatterns match labeled tax identifiers in OCR text. The capture is
// the identifier itself; surrounding separators are cleaned afterwards.
var taxIDPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\bVAT(?:\s*(?:No|Number|Reg))?\.?\s*[:#]?\s*([A-Z]{2}[\d\s\-]{7,14}\d)`),
	regexp.MustCompile(`(?i)\b(?:Tax\s*ID|TIN|EIN|RNC)\s*(?:No\.?|Number)?\s*[:#]?\s*(\d[\d\s\-]{6,14}\d)`),
}

// extractTaxID scans the text for a labeled tax identifier. Best-effort:
// returns "" when nothing convincing is found, and callers must accept
// that.
func extractTaxID(text string) string {
	for _, re := range taxIDPatterns {
		if m := re.FindStringSubmatch(text); m != nil {
			return cleanTaxID(m[1])
		}
	}
	return ""
}

// cleanTaxID keeps letters and digits only, uppercased.
func cleanTaxID(id string) string {
	var b strings.Builder
	for _, r := range id {
		if (r >= '0' && r <= '9') || (r >= 'A' && r <= 'Z') || (r >= 'a' && r <= 'z') {
			b.WriteRune(r)
		}
	}
	return strings.ToUpper(b.String())
}
