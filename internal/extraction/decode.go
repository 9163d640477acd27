package extraction

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/billscan/invoice-extraction/internal/models"
)

// rawResult mirrors the loosely typed JSON produced by upstream OCR/AI
// extractors. Numbers arrive as floats, strings with thousands separators
// or nulls depending on the extractor, so every numeric field decodes into
// interface{} and is coerced afterwards. Alternate key names from older
// extractor versions are tolerated.
type rawResult struct {
	ID             string      `json:"id"`
	InvoiceNumber  string      `json:"invoiceNumber"`
	Number         string      `json:"number"` // alternate key
	InvoiceDate    string      `json:"invoiceDate"`
	DueDate        string      `json:"dueDate"`
	Subtotal       interface{} `json:"subtotal"`
	TaxAmount      interface{} `json:"taxAmount"`
	Tax            interface{} `json:"tax"` // alternate key
	TotalAmount    interface{} `json:"totalAmount"`
	Total          interface{} `json:"total"` // alternate key
	InvoiceValue   interface{} `json:"invoiceValue"`
	Currency       string      `json:"currency"`
	VendorName     string      `json:"vendorName"`
	Vendor         string      `json:"vendor"` // alternate key
	VendorTaxID    string      `json:"vendorTaxId"`
	CustomerName   string      `json:"customerName"`
	CustomerNumber string      `json:"customerNumber"`
	RawText        string      `json:"rawText"`

	LineItems []rawLineItem `json:"lineItems"`
	Items     []rawLineItem `json:"items"` // alternate key

	FieldConfidenceScores map[string]float64 `json:"fieldConfidenceScores"`
}

type rawLineItem struct {
	Description string      `json:"description"`
	Name        string      `json:"name"` // alternate key
	Quantity    interface{} `json:"quantity"`
	UnitPrice   interface{} `json:"unitPrice"`
	Price       interface{} `json:"price"` // alternate key
	Amount      interface{} `json:"amount"`
	Confidence  float64     `json:"confidence"`
}

// DecodeResult turns an upstream extractor payload into an
// ExtractionResult ready for Process. The payload may be wrapped in
// markdown code fences (LLM extractors do that despite instructions).
// Missing fields decode to zero values, which the pipeline treats as "not
// extracted"; only malformed JSON is an error.
func DecodeResult(data []byte) (*models.ExtractionResult, error) {
	cleaned := strings.TrimSpace(string(data))
	fence := "```"
	cleaned = strings.ReplaceAll(cleaned, fence+"json", "")
	cleaned = strings.ReplaceAll(cleaned, fence, "")
	cleaned = strings.TrimSpace(cleaned)

	var raw rawResult
	if err := json.Unmarshal([]byte(cleaned), &raw); err != nil {
		return nil, fmt.Errorf("decode extraction payload: %w", err)
	}

	result := &models.ExtractionResult{
		InvoiceNumber:         firstNonEmpty(raw.InvoiceNumber, raw.Number),
		InvoiceDate:           parsePayloadDate(raw.InvoiceDate),
		DueDate:               parsePayloadDate(raw.DueDate),
		Subtotal:              coerceDecimal(raw.Subtotal),
		TaxAmount:             coerceDecimal(firstNonNil(raw.TaxAmount, raw.Tax)),
		TotalAmount:           coerceDecimal(firstNonNil(raw.TotalAmount, raw.Total)),
		InvoiceValue:          coerceDecimal(raw.InvoiceValue),
		Currency:              raw.Currency,
		VendorName:            firstNonEmpty(raw.VendorName, raw.Vendor),
		VendorTaxID:           raw.VendorTaxID,
		CustomerName:          raw.CustomerName,
		CustomerNumber:        raw.CustomerNumber,
		RawText:               raw.RawText,
		FieldConfidenceScores: raw.FieldConfidenceScores,
	}

	if id, err := uuid.Parse(raw.ID); err == nil {
		result.ID = id
	} else {
		result.ID = uuid.New()
	}

	items := raw.LineItems
	if len(items) == 0 {
		items = raw.Items
	}
	result.LineItems = make([]models.LineItem, len(items))
	for i, item := range items {
		result.LineItems[i] = models.LineItem{
			Description: firstNonEmpty(item.Description, item.Name),
			Quantity:    coerceDecimal(item.Quantity),
			UnitPrice:   coerceDecimal(firstNonNil(item.UnitPrice, item.Price)),
			Amount:      coerceDecimal(item.Amount),
			Confidence:  item.Confidence,
		}
	}

	return result, nil
}

// payloadDateFormats are tried in order when decoding date strings from
// upstream payloads.
var payloadDateFormats = []string{
	"2006-01-02",
	"2006-01-02T15:04:05Z07:00",
	"02/01/2006",
	"02-01-2006",
	"2006/01/02",
	"01/02/2006",
}

func parsePayloadDate(s string) time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}
	}
	for _, format := range payloadDateFormats {
		if t, err := time.Parse(format, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

// coerceDecimal turns whatever a payload carried for an amount into a
// decimal. Amounts show up as JSON numbers, bare strings, or strings with
// thousands separators ("3,965.34"); anything unparseable becomes zero,
// which later stages read as "not extracted".
func coerceDecimal(v interface{}) decimal.Decimal {
	var s string
	switch val := v.(type) {
	case float64:
		return decimal.NewFromFloat(val)
	case int:
		return decimal.NewFromInt(int64(val))
	case int64:
		return decimal.NewFromInt(val)
	case json.Number:
		s = string(val)
	case string:
		s = strings.ReplaceAll(val, ",", "")
	default:
		return decimal.Zero
	}
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return decimal.Zero
	}
	return d
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

func firstNonNil(values ...interface{}) interface{} {
	for _, v := range values {
		if v != nil {
			return v
		}
	}
	return nil
}
