package extraction

import (
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/billscan/invoice-extraction/internal/models"
)

func newTestPipeline() *Pipeline {
	p := NewPipeline(slog.New(slog.NewTextHandler(io.Discard, nil)))
	p.now = func() time.Time { return testNow }
	p.dates.now = p.now
	return p
}

// validResult builds a result that passes every validation rule.
func validResult() *models.ExtractionResult {
	return &models.ExtractionResult{
		ID:             uuid.New(),
		InvoiceNumber:  "00123-A",
		InvoiceDate:    date(2024, time.March, 1),
		DueDate:        date(2024, time.March, 31),
		Subtotal:       dec("100.00"),
		TaxAmount:      dec("10.00"),
		TotalAmount:    dec("110.00"),
		InvoiceValue:   dec("110.00"),
		Currency:       "USD",
		VendorName:     "Acme",
		VendorTaxID:    "123456789",
		CustomerName:   "Globex",
		CustomerNumber: "CUST-7",
	}
}

func TestNormalizeInvoiceNumber(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"INV# 00123-A", "00123-A"},
		{"Invoice No: 42", "42"},
		{"INVOICE 2024-001", "2024-001"},
		{"# A-77", "A-77"},
		{"NUM.55", "55"},
		{"00123-A", "00123-A"},
		{"INV 2024/001", "2024001"},
		{"  RE-9 ", "RE-9"},
		{"", ""},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, normalizeInvoiceNumber(tt.in), "input %q", tt.in)
	}
}

func TestNormalizeCompanyName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Acme Corp", "Acme"},
		{"Acme Corporation", "Acme"},
		{"Widgets, LLC", "Widgets"},
		{"Initech Inc.", "Initech"},
		{"Globex   Trading  Ltd", "Globex Trading"},
		{"Cisco", "Cisco"}, // trailing "co" inside a word is not a suffix
		{"  Stark Industries  ", "Stark Industries"},
		{"", ""},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, normalizeCompanyName(tt.in), "input %q", tt.in)
	}
}

func TestNormalizeShiftsFutureDatesBackOneYear(t *testing.T) {
	p := newTestPipeline()
	result := validResult()
	result.InvoiceDate = date(2025, time.June, 10)
	result.DueDate = date(2025, time.July, 10)

	p.normalize(result)

	assert.Equal(t, date(2024, time.June, 10), result.InvoiceDate)
	assert.Equal(t, date(2024, time.July, 10), result.DueDate)
}

func TestValidateScenarios(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*models.ExtractionResult)
		wantError string
	}{
		{
			name:   "clean result has no findings",
			mutate: func(r *models.ExtractionResult) {},
		},
		{
			name: "missing invoice number",
			mutate: func(r *models.ExtractionResult) {
				r.InvoiceNumber = ""
			},
			wantError: "Invoice number is missing",
		},
		{
			name: "missing invoice date",
			mutate: func(r *models.ExtractionResult) {
				r.InvoiceDate = time.Time{}
			},
			wantError: "Invoice date is missing",
		},
		{
			name: "missing both totals",
			mutate: func(r *models.ExtractionResult) {
				r.TotalAmount = dec("0")
				r.InvoiceValue = dec("0")
			},
			wantError: "Invoice amount is missing",
		},
		{
			name: "missing vendor name",
			mutate: func(r *models.ExtractionResult) {
				r.VendorName = ""
			},
			wantError: "Vendor name is missing",
		},
		{
			name: "due date before invoice date",
			mutate: func(r *models.ExtractionResult) {
				r.DueDate = r.InvoiceDate.AddDate(0, 0, -1)
			},
			wantError: "Due date is before invoice date",
		},
		{
			name: "totals mismatch beyond tolerance",
			mutate: func(r *models.ExtractionResult) {
				r.TotalAmount = dec("115.00")
				r.InvoiceValue = dec("115.00")
			},
			wantError: "Total amount does not match subtotal + tax",
		},
		{
			name: "one cent difference is tolerated",
			mutate: func(r *models.ExtractionResult) {
				r.TotalAmount = dec("110.01")
				r.InvoiceValue = dec("110.01")
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newTestPipeline()
			result := validResult()
			tt.mutate(result)

			p.Process(result)

			if tt.wantError == "" {
				assert.True(t, result.Processed)
				assert.Empty(t, result.ErrorMessage)
			} else {
				assert.False(t, result.Processed)
				assert.Contains(t, result.ErrorMessage, tt.wantError)
			}
		})
	}
}

func TestValidateJoinsFindings(t *testing.T) {
	p := newTestPipeline()
	result := &models.ExtractionResult{}

	p.Process(result)

	assert.False(t, result.Processed)
	findings := strings.Split(result.ErrorMessage, "; ")
	assert.Len(t, findings, 4) // number, date, amount, vendor
}

// A date still in the future after the one-year normalize shift is a
// validation finding.
func TestValidateFutureDateAfterShift(t *testing.T) {
	p := newTestPipeline()
	result := validResult()
	result.InvoiceDate = date(2026, time.August, 1) // shifts to 2025-08-01
	result.DueDate = time.Time{}

	p.Process(result)

	assert.Contains(t, result.ErrorMessage, "Invoice date is in the future")
	assert.Equal(t, date(2025, time.August, 1), result.InvoiceDate)
}

func TestEnhanceFillsInvoiceDateFromText(t *testing.T) {
	p := newTestPipeline()
	result := validResult()
	result.InvoiceDate = time.Time{}
	result.DueDate = time.Time{}
	result.RawText = "ACME Ltd\nInvoice Date: 2024-03-15\nPayment due 2024-04-14\nTotal 110.00"

	p.Process(result)

	assert.Equal(t, date(2024, time.March, 15), result.InvoiceDate)
	assert.Equal(t, date(2024, time.April, 14), result.DueDate)
}

func TestEnhanceKeepsExistingDates(t *testing.T) {
	p := newTestPipeline()
	result := validResult()
	result.RawText = "Invoice Date: 2023-01-01"

	p.Process(result)

	assert.Equal(t, date(2024, time.March, 1), result.InvoiceDate)
}

func TestEnhanceDerivesTotalFromSubtotalAndTax(t *testing.T) {
	p := newTestPipeline()
	result := validResult()
	result.TotalAmount = dec("0")
	result.InvoiceValue = dec("0")

	p.Process(result)

	assert.True(t, result.TotalAmount.Equal(dec("110")),
		"total = %s", result.TotalAmount)
}

func TestEnhanceExtractsVendorTaxID(t *testing.T) {
	tests := []struct {
		name string
		text string
		want string
	}{
		{"vat number", "VAT No: GB123456789", "GB123456789"},
		{"tax id with dashes", "Tax ID: 12-3456789", "123456789"},
		{"rnc label", "RNC: 1-31-04793-9", "131047939"},
		{"nothing found", "no identifiers here", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newTestPipeline()
			result := validResult()
			result.VendorTaxID = ""
			result.RawText = tt.text

			p.Process(result)

			assert.Equal(t, tt.want, result.VendorTaxID)
		})
	}
}

// Scenario: a line item missing its quantity gets it derived, and the
// consistency bonus shows up in its confidence.
func TestProcessReconcilesLineItems(t *testing.T) {
	p := newTestPipeline()
	result := validResult()
	result.TotalAmount = dec("500.00")
	result.InvoiceValue = dec("500.00")
	result.Subtotal = dec("0")
	result.TaxAmount = dec("0")
	result.LineItems = []models.LineItem{
		{Description: "Consulting Service", UnitPrice: dec("100.00"), Amount: dec("500.00")},
	}

	p.Process(result)

	item := result.LineItems[0]
	require.True(t, item.Quantity.Equal(dec("5")), "quantity = %s", item.Quantity)
	assert.InDelta(t, 1.0/1.1, item.Confidence, 1e-9)
}

func TestProcessKeepsPresetLineItemConfidence(t *testing.T) {
	p := newTestPipeline()
	result := validResult()
	result.LineItems = []models.LineItem{
		{Description: "Prescored", Quantity: dec("1"), UnitPrice: dec("110.00"),
			Amount: dec("110.00"), Confidence: 0.42},
	}

	p.Process(result)

	assert.Equal(t, 0.42, result.LineItems[0].Confidence)
}

// A line-item sum far off the stated total is a warning signal only. OCR
// drops rows often enough that the document must still finalize cleanly.
func TestProcessLineItemSumMismatchDoesNotBlock(t *testing.T) {
	p := newTestPipeline()
	result := validResult()
	result.LineItems = []models.LineItem{
		{Description: "Partial Capture", Quantity: dec("1"),
			UnitPrice: dec("40.00"), Amount: dec("40.00")},
	}

	p.Process(result)

	assert.True(t, result.Processed)
	assert.Empty(t, result.ErrorMessage)
	assert.False(t, result.ProcessedAt.IsZero())
	assert.Greater(t, result.OverallConfidence, 0.0)
	assert.True(t, result.TotalAmount.Equal(dec("110.00")), "total = %s", result.TotalAmount)
}

func TestFinalizeCurrencyRounding(t *testing.T) {
	tests := []struct {
		name     string
		currency string
		value    string
		want     string
	}{
		{"default two decimals", "QAR", "12.3456", "12.35"},
		{"usd two decimals", "USD", "99.999", "100"},
		{"yen zero decimals", "JPY", "1234.56", "1235"},
		{"dinar three decimals", "BHD", "12.34", "12.34"},
		{"unknown currency falls back to two", "", "5.678", "5.68"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newTestPipeline()
			result := validResult()
			result.Currency = tt.currency
			result.InvoiceValue = dec(tt.value)

			p.Process(result)

			assert.True(t, result.InvoiceValue.Equal(dec(tt.want)),
				"invoice value = %s, want %s", result.InvoiceValue, tt.want)
		})
	}
}

// Rounding law: after finalize every monetary field equals itself rounded
// to the currency's canonical precision.
func TestFinalizeRoundingLaw(t *testing.T) {
	for _, currency := range []string{"USD", "JPY", "BHD", "KWD", "OMR", "EUR"} {
		p := newTestPipeline()
		result := validResult()
		result.Currency = currency

		p.Process(result)

		precision := currencyDecimals(currency)
		for field, v := range map[string]interface{ String() string }{
			"invoiceValue": result.InvoiceValue,
			"subtotal":     result.Subtotal,
			"taxAmount":    result.TaxAmount,
			"totalAmount":  result.TotalAmount,
		} {
			d := dec(v.String())
			assert.True(t, d.Equal(d.Round(precision)),
				"%s %s = %s not at precision %d", currency, field, d, precision)
		}
	}
}

func TestCurrencyDecimals(t *testing.T) {
	assert.EqualValues(t, 0, currencyDecimals("JPY"))
	assert.EqualValues(t, 3, currencyDecimals("BHD"))
	assert.EqualValues(t, 3, currencyDecimals("KWD"))
	assert.EqualValues(t, 3, currencyDecimals("OMR"))
	assert.EqualValues(t, 2, currencyDecimals("USD"))
	assert.EqualValues(t, 2, currencyDecimals(""))
}

func TestFinalizeBackfillsAllWeightedFields(t *testing.T) {
	p := newTestPipeline()
	result := &models.ExtractionResult{}

	p.Process(result)

	require.Len(t, result.FieldConfidenceScores, len(fieldWeights))
	for field := range fieldWeights {
		assert.Contains(t, result.FieldConfidenceScores, field)
	}
	// An empty document backfills to all-zero scores.
	assert.Zero(t, result.OverallConfidence)
}

func TestFinalizeKeepsUpstreamScores(t *testing.T) {
	p := newTestPipeline()
	result := validResult()
	result.FieldConfidenceScores = map[string]float64{
		models.FieldInvoiceNumber: 0.33,
	}

	p.Process(result)

	assert.Equal(t, 0.33, result.FieldConfidenceScores[models.FieldInvoiceNumber])
}

func TestOverallConfidenceWeightedMean(t *testing.T) {
	p := newTestPipeline()

	got := p.overallConfidence(map[string]float64{
		models.FieldInvoiceNumber: 1.0, // weight 1.0
		models.FieldInvoiceDate:   0.5, // weight 0.9
	})
	assert.InDelta(t, (1.0+0.45)/1.9, got, 1e-9)

	assert.Zero(t, p.overallConfidence(nil))
	assert.Zero(t, p.overallConfidence(map[string]float64{"unknown_field": 0.9}))
}

func TestOverallConfidenceBounds(t *testing.T) {
	p := newTestPipeline()

	all := func(score float64) map[string]float64 {
		scores := make(map[string]float64, len(fieldWeights))
		for field := range fieldWeights {
			scores[field] = score
		}
		return scores
	}

	assert.InDelta(t, 1.0, p.overallConfidence(all(1.0)), 1e-9)
	assert.Zero(t, p.overallConfidence(all(0)))

	for _, score := range []float64{0.1, 0.37, 0.5, 0.99} {
		got := p.overallConfidence(all(score))
		assert.GreaterOrEqual(t, got, 0.0)
		assert.LessOrEqual(t, got, 1.0)
	}
}

// Processing a clean, fully scored result twice must not change anything.
func TestProcessIdempotentOnCleanInput(t *testing.T) {
	p := newTestPipeline()
	result := validResult()
	result.LineItems = []models.LineItem{
		{Description: "Consulting Service", Quantity: dec("1"),
			UnitPrice: dec("110.00"), Amount: dec("110.00"), Confidence: 0.9},
	}
	result.FieldConfidenceScores = map[string]float64{
		models.FieldInvoiceNumber:  0.9,
		models.FieldInvoiceDate:    0.8,
		models.FieldDueDate:        0.8,
		models.FieldTotalAmount:    0.9,
		models.FieldSubtotal:       0.9,
		models.FieldTaxAmount:      0.9,
		models.FieldVendorName:     0.7,
		models.FieldVendorTaxID:    0.8,
		models.FieldCustomerName:   0.7,
		models.FieldCustomerNumber: 0.7,
	}

	p.Process(result)
	first := *result
	firstOverall := result.OverallConfidence

	p.Process(result)

	assert.Equal(t, first.InvoiceNumber, result.InvoiceNumber)
	assert.Equal(t, first.VendorName, result.VendorName)
	assert.Equal(t, first.CustomerName, result.CustomerName)
	assert.Equal(t, first.InvoiceDate, result.InvoiceDate)
	assert.Equal(t, first.DueDate, result.DueDate)
	assert.True(t, first.Subtotal.Equal(result.Subtotal))
	assert.True(t, first.TaxAmount.Equal(result.TaxAmount))
	assert.True(t, first.TotalAmount.Equal(result.TotalAmount))
	assert.True(t, first.InvoiceValue.Equal(result.InvoiceValue))
	assert.Equal(t, firstOverall, result.OverallConfidence)
	assert.True(t, result.Processed)
}

// The pipeline shares no mutable state, so concurrent Process calls on
// distinct results are safe.
func TestProcessConcurrent(t *testing.T) {
	p := newTestPipeline()

	done := make(chan *models.ExtractionResult, 8)
	for i := 0; i < 8; i++ {
		go func() {
			result := validResult()
			result.RawText = "Invoice Date: 2024-03-15"
			done <- p.Process(result)
		}()
	}
	for i := 0; i < 8; i++ {
		result := <-done
		assert.True(t, result.Processed)
		assert.Greater(t, result.OverallConfidence, 0.0)
	}
}
