package export

import (
	"fmt"
	"strings"

	"github.com/paydesk/settlement-engine/internal/application/port"
	"github.com/paydesk/settlement-engine/internal/domain/entity"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

const (
	slipSheet    = "Salary Slip"
	receiptSheet = "Receipt"
	dateLayout   = "2006-01-02"
)

// XLSXRenderer renders salary slips and payment receipts as spreadsheets
type XLSXRenderer struct {
	bankName string
	logger   *zap.Logger
}

// NewXLSXRenderer creates a renderer that stamps bankName on every document
func NewXLSXRenderer(bankName string, logger *zap.Logger) *XLSXRenderer {
	return &XLSXRenderer{bankName: bankName, logger: logger}
}

// Extension returns the file extension of rendered documents
func (r *XLSXRenderer) Extension() string {
	return ".xlsx"
}

// RenderSlip renders one salary slip
func (r *XLSXRenderer) RenderSlip(detail *entity.SalarySlipDetail) ([]byte, error) {
	if detail == nil || detail.Slip == nil {
		return nil, fmt.Errorf("slip detail is required")
	}

	f, err := r.newWorkbook(slipSheet)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	slip := detail.Slip
	rows := [][2]interface{}{
		{"Bank", r.bankName},
		{"Salary Slip", fmt.Sprintf("#%d", slip.ID)},
		{"Period", slip.Period},
		{"Organization", detail.OrganizationName},
		{"Payee", detail.PayeeName},
		{"Email", detail.PayeeEmail},
		{"Role", roleLabel(slip.PayeeType)},
		{"Department", detail.Department},
		{"Bank Account", detail.BankAccountNo},
		{"Gross Salary", money(detail.GrossSalary)},
		{"Deductions", money(detail.Deductions)},
		{"Net Amount", money(detail.NetAmount)},
		{"Amount in Words", AmountInWords(detail.NetAmount)},
		{"Generated", slip.GeneratedAt.Format(dateLayout)},
	}
	r.fill(f, slipSheet, rows)

	return r.write(f)
}

// RenderReceipt renders one vendor payment receipt
func (r *XLSXRenderer) RenderReceipt(doc *port.ReceiptDocument) ([]byte, error) {
	if doc == nil || doc.Receipt == nil {
		return nil, fmt.Errorf("receipt is required")
	}

	f, err := r.newWorkbook(receiptSheet)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	receipt := doc.Receipt
	rows := [][2]interface{}{
		{"Bank", r.bankName},
		{"Receipt", fmt.Sprintf("#%d", receipt.ID)},
		{"Bank Reference", receipt.BankReference},
		{"Status", receipt.Status},
		{"Payer", doc.OrganizationName},
		{"Payee", doc.VendorName},
	}
	if doc.Request != nil {
		rows = append(rows, [2]interface{}{"Invoice Reference", doc.Request.InvoiceReference})
	}
	rows = append(rows,
		[2]interface{}{"Amount", money(receipt.Amount)},
		[2]interface{}{"Amount in Words", AmountInWords(receipt.Amount)},
		[2]interface{}{"Date", receipt.CreatedAt.Format(dateLayout)},
	)
	r.fill(f, receiptSheet, rows)

	return r.write(f)
}

func (r *XLSXRenderer) newWorkbook(sheet string) (*excelize.File, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to name sheet: %w", err)
	}
	if err := f.SetColWidth(sheet, "A", "A", 20); err != nil {
		r.logger.Warn("Failed to set column width", zap.Error(err))
	}
	if err := f.SetColWidth(sheet, "B", "B", 48); err != nil {
		r.logger.Warn("Failed to set column width", zap.Error(err))
	}
	return f, nil
}

func (r *XLSXRenderer) fill(f *excelize.File, sheet string, rows [][2]interface{}) {
	for i, row := range rows {
		r.setCell(f, sheet, fmt.Sprintf("A%d", i+1), row[0])
		r.setCell(f, sheet, fmt.Sprintf("B%d", i+1), row[1])
	}
}

// setCell logs instead of failing so one bad cell does not lose the document
func (r *XLSXRenderer) setCell(f *excelize.File, sheet, cell string, value interface{}) {
	if err := f.SetCellValue(sheet, cell, value); err != nil {
		r.logger.Warn("Failed to set cell value",
			zap.String("sheet", sheet),
			zap.String("cell", cell),
			zap.Error(err))
	}
}

func (r *XLSXRenderer) write(f *excelize.File) ([]byte, error) {
	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

// roleLabel turns ORG_ADMIN into "Org Admin"
func roleLabel(payeeType string) string {
	words := strings.Split(strings.ToLower(payeeType), "_")
	for i, w := range words {
		if w != "" {
			words[i] = strings.ToUpper(w[:1]) + w[1:]
		}
	}
	return strings.Join(words, " ")
}

func money(d decimal.Decimal) string {
	return d.StringFixed(2)
}

var (
	smallNumbers = []string{
		"Zero", "One", "Two", "Three", "Four", "Five", "Six", "Seven", "Eight", "Nine",
		"Ten", "Eleven", "Twelve", "Thirteen", "Fourteen", "Fifteen", "Sixteen",
		"Seventeen", "Eighteen", "Nineteen",
	}
	tens   = []string{"", "", "Twenty", "Thirty", "Forty", "Fifty", "Sixty", "Seventy", "Eighty", "Ninety"}
	scales = []string{"", "Thousand", "Million", "Billion", "Trillion"}
)

// AmountInWords spells a monetary amount, e.g. 1250.5 becomes
// "One Thousand Two Hundred Fifty and 50/100"
func AmountInWords(amount decimal.Decimal) string {
	amount = amount.Abs().Round(2)
	whole := amount.Truncate(0)
	cents := amount.Sub(whole).Shift(2).IntPart()
	return fmt.Sprintf("%s and %02d/100", wholeInWords(whole.IntPart()), cents)
}

func wholeInWords(n int64) string {
	if n == 0 {
		return smallNumbers[0]
	}

	var parts []string
	for scale := 0; n > 0 && scale < len(scales); scale++ {
		chunk := n % 1000
		n /= 1000
		if chunk == 0 {
			continue
		}
		words := hundredsInWords(chunk)
		if scales[scale] != "" {
			words += " " + scales[scale]
		}
		parts = append([]string{words}, parts...)
	}
	return strings.Join(parts, " ")
}

func hundredsInWords(n int64) string {
	var words []string
	if n >= 100 {
		words = append(words, smallNumbers[n/100], "Hundred")
		n %= 100
	}
	switch {
	case n >= 20:
		words = append(words, tens[n/10])
		if n%10 != 0 {
			words = append(words, smallNumbers[n%10])
		}
	case n > 0:
		words = append(words, smallNumbers[n])
	}
	return strings.Join(words, " ")
}

var _ port.DocumentRenderer = (*XLSXRenderer)(nil)
