package extraction

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/billscan/invoice-extraction/internal/models"
)

// totalTolerance is the absolute tolerance when comparing the stated total
// against subtotal + tax. One cent, regardless of currency.
var totalTolerance = decimal.NewFromFloat(0.01)

// validate runs every business rule independently and joins the findings
// into ErrorMessage. Findings are not exceptions: all four stages still run
// on a result that failed validation, it just comes out with
// Processed=false so the caller can route it to manual entry.
func (p *Pipeline) validate(result *models.ExtractionResult) {
	var errs []string

	errs = p.checkRequiredFields(result, errs)
	errs = p.checkDates(result, errs)
	errs = p.checkTotals(result, errs)

	if len(errs) > 0 {
		result.ErrorMessage = strings.Join(errs, "; ")
		result.Processed = false
		p.logger.Warn("extraction failed validation",
			"id", result.ID, "findings", len(errs))
		return
	}
	result.Processed = true
}

func (p *Pipeline) checkRequiredFields(result *models.ExtractionResult, errs []string) []string {
	if result.InvoiceNumber == "" {
		errs = append(errs, "Invoice number is missing")
	}
	if result.InvoiceDate.IsZero() {
		errs = append(errs, "Invoice date is missing")
	}
	if !result.HasTotals() {
		errs = append(errs, "Invoice amount is missing")
	}
	if result.VendorName == "" {
		errs = append(errs, "Vendor name is missing")
	}
	return errs
}

func (p *Pipeline) checkDates(result *models.ExtractionResult, errs []string) []string {
	// Normalize already shifted future dates back a year, so this only
	// fires for dates still more than a year out after the shift.
	if !result.InvoiceDate.IsZero() && result.InvoiceDate.After(p.now()) {
		errs = append(errs, "Invoice date is in the future")
	}
	if !result.DueDate.IsZero() && !result.InvoiceDate.IsZero() &&
		result.DueDate.Before(result.InvoiceDate) {
		errs = append(errs, "Due date is before invoice date")
	}
	return errs
}

func (p *Pipeline) checkTotals(result *models.ExtractionResult, errs []string) []string {
	if result.Subtotal.IsZero() || result.TaxAmount.IsZero() || result.TotalAmount.IsZero() {
		return errs
	}
	expected := result.Subtotal.Add(result.TaxAmount)
	diff := expected.Sub(result.TotalAmount).Abs()
	if diff.GreaterThan(totalTolerance) {
		errs = append(errs, "Total amount does not match subtotal + tax")
	}
	return errs
}
