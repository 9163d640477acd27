package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Canonical field names used in FieldConfidenceScores and the pipeline's
// weight table. These names are part of the output contract.
const (
	FieldInvoiceNumber  = "invoice_number"
	FieldInvoiceDate    = "invoice_date"
	FieldDueDate        = "due_date"
	FieldTotalAmount    = "total_amount"
	FieldSubtotal       = "subtotal"
	FieldTaxAmount      = "tax_amount"
	FieldVendorName     = "vendor_name"
	FieldVendorTaxID    = "vendor_tax_id"
	FieldCustomerName   = "customer_name"
	FieldCustomerNumber = "customer_number"
)

// ExtractionResult is the working record for one invoice document. The
// upstream OCR/AI extractor fills in whatever it could read; the pipeline
// normalizes, validates, enhances and scores it. A zero value in any field
// means the extractor did not find it.
type ExtractionResult struct {
	ID uuid.UUID `json:"id,omitempty"`

	InvoiceNumber string    `json:"invoiceNumber,omitempty"`
	InvoiceDate   time.Time `json:"invoiceDate,omitzero"`
	DueDate       time.Time `json:"dueDate,omitzero"`

	Subtotal    decimal.Decimal `json:"subtotal,omitempty"`
	TaxAmount   decimal.Decimal `json:"taxAmount,omitempty"`
	TotalAmount decimal.Decimal `json:"totalAmount,omitempty"`
	// InvoiceValue is a legacy alternate total kept for older upstream
	// extractors that report a single amount.
	InvoiceValue decimal.Decimal `json:"invoiceValue,omitempty"`

	Currency string `json:"currency,omitempty"` // ISO 4217 code

	VendorName     string `json:"vendorName,omitempty"`
	VendorTaxID    string `json:"vendorTaxId,omitempty"`
	CustomerName   string `json:"customerName,omitempty"`
	CustomerNumber string `json:"customerNumber,omitempty"`

	// RawText is the complete OCR text of the document.
	RawText string `json:"rawText,omitempty"`

	LineItems []LineItem `json:"lineItems,omitempty"`

	// FieldConfidenceScores maps field name -> confidence in [0,1].
	// Entries set by the upstream extractor are never overwritten.
	FieldConfidenceScores map[string]float64 `json:"fieldConfidenceScores,omitempty"`

	// OverallConfidence is derived from FieldConfidenceScores during
	// finalization; no other stage sets it.
	OverallConfidence float64 `json:"overallConfidence"`

	ErrorMessage string    `json:"errorMessage,omitempty"`
	Processed    bool      `json:"processed"`
	ProcessedAt  time.Time `json:"processedAt,omitzero"`
}

// LineItem is a single invoice line. Quantity, unit price and amount are
// never negative once the pipeline has run; Confidence of 0 means the item
// has not been scored yet.
type LineItem struct {
	Description string          `json:"description,omitempty"`
	Quantity    decimal.Decimal `json:"quantity,omitempty"`
	UnitPrice   decimal.Decimal `json:"unitPrice,omitempty"`
	Amount      decimal.Decimal `json:"amount,omitempty"`
	Confidence  float64         `json:"confidence,omitempty"`
}

// HasTotals reports whether at least one of the total fields was extracted.
func (r *ExtractionResult) HasTotals() bool {
	return !r.TotalAmount.IsZero() || !r.InvoiceValue.IsZero()
}

// SetConfidence records a confidence score for a field unless one is
// already present. Scores are populated progressively and never reset.
func (r *ExtractionResult) SetConfidence(field string, score float64) {
	if r.FieldConfidenceScores == nil {
		r.FieldConfidenceScores = make(map[string]float64)
	}
	if _, ok := r.FieldConfidenceScores[field]; !ok {
		r.FieldConfidenceScores[field] = score
	}
}
