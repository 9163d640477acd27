package extraction

import (
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/billscan/invoice-extraction/internal/models"
)

// Context hints used when searching the raw text for dates the extractor
// missed. Each hint is a case-insensitive alternation of labels that
// typically sit next to the date on an invoice.
const (
	hintInvoiceDate = `invoice date|date|issued|created`
	hintDueDate     = `due date|payment due|pay by|expires|valid until`
)

// Pipeline turns a raw extraction result into a normalized, validated and
// confidence-scored one. It holds only immutable tables and compiled
// expressions, so a single instance may be shared across goroutines.
type Pipeline struct {
	logger  *slog.Logger
	dates   *DateExtractor
	weights map[string]float64
	now     func() time.Time
}

// NewPipeline creates a pipeline with the fixed field-weight table.
func NewPipeline(logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		logger:  logger,
		dates:   NewDateExtractor(),
		weights: fieldWeights,
		now:     time.Now,
	}
}

// Process runs the four stages in fixed order over one result. The stages
// always all run, even when an earlier one found problems; validation
// findings end up in ErrorMessage rather than stopping the flow. The
// returned pointer is the argument, mutated in place.
func (p *Pipeline) Process(result *models.ExtractionResult) *models.ExtractionResult {
	p.normalize(result)
	p.validate(result)
	p.enhance(result)
	p.finalize(result)
	return result
}

var (
	// Leading invoice-number boilerplate: INV/INVOICE/NO/NUM tokens or a
	// bare "#", each followed by separator characters.
	reInvoiceNumPrefix = regexp.MustCompile(`(?i)^(?:(?:INVOICE|INV|NUM|NO)\b|#)[\s:#.\-]*`)
	reInvoiceNumJunk   = regexp.MustCompile(`[^\w-]`)

	// Trailing legal-entity suffixes on company names.
	reLegalSuffix = regexp.MustCompile(`(?i)[\s,.]*\b(?:CORPORATION|COMPANY|CORP|LLC|LTD|INC|CO)\.?\s*$`)
	reWhitespace  = regexp.MustCompile(`\s+`)
)

// normalize trims and canonicalizes the scalar fields. Dates that sit in
// the future are treated as an OCR century/year misread and shifted back
// exactly one year rather than rejected. Amounts get a provisional 2dp
// rounding here; currency-specific precision is applied in finalize.
func (p *Pipeline) normalize(result *models.ExtractionResult) {
	now := p.now()

	result.InvoiceNumber = normalizeInvoiceNumber(result.InvoiceNumber)
	result.VendorName = normalizeCompanyName(result.VendorName)
	result.CustomerName = normalizeCompanyName(result.CustomerName)
	result.Currency = strings.ToUpper(strings.TrimSpace(result.Currency))

	if !result.InvoiceDate.IsZero() && result.InvoiceDate.After(now) {
		result.InvoiceDate = result.InvoiceDate.AddDate(-1, 0, 0)
	}
	if !result.DueDate.IsZero() && result.DueDate.After(now) {
		result.DueDate = result.DueDate.AddDate(-1, 0, 0)
	}

	result.Subtotal = result.Subtotal.Round(2)
	result.TaxAmount = result.TaxAmount.Round(2)
	result.TotalAmount = result.TotalAmount.Round(2)
	result.InvoiceValue = result.InvoiceValue.Round(2)
}

// normalizeInvoiceNumber strips leading label tokens ("INV# ", "No: ", ...)
// and every character that is not a word character or hyphen.
func normalizeInvoiceNumber(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return ""
	}
	for {
		stripped := reInvoiceNumPrefix.ReplaceAllString(value, "")
		if stripped == value {
			break
		}
		value = stripped
	}
	return reInvoiceNumJunk.ReplaceAllString(value, "")
}

// normalizeCompanyName drops a trailing legal-entity suffix and collapses
// internal whitespace.
func normalizeCompanyName(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return ""
	}
	value = reLegalSuffix.ReplaceAllString(value, "")
	value = reWhitespace.ReplaceAllString(value, " ")
	return strings.TrimSpace(value)
}
