package export

import (
	"bytes"
	"testing"
	"time"

	"github.com/paydesk/settlement-engine/internal/application/port"
	"github.com/paydesk/settlement-engine/internal/domain/entity"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

func TestAmountInWords(t *testing.T) {
	tests := []struct {
		name   string
		amount string
		want   string
	}{
		{"zero amount", "0", "Zero and 00/100"},
		{"teens", "13", "Thirteen and 00/100"},
		{"hundreds with cents", "123.56", "One Hundred Twenty Three and 56/100"},
		{"thousands", "1250.5", "One Thousand Two Hundred Fifty and 50/100"},
		{"skips empty chunks", "1000005", "One Million Five and 00/100"},
		{"salary", "10000", "Ten Thousand and 00/100"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := AmountInWords(decimal.RequireFromString(tt.amount))
			if got != tt.want {
				t.Errorf("AmountInWords() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRoleLabel(t *testing.T) {
	assert.Equal(t, "Org Admin", roleLabel("ORG_ADMIN"))
	assert.Equal(t, "Employee", roleLabel("EMPLOYEE"))
}

func readCells(t *testing.T, content []byte, sheet string) map[string]string {
	t.Helper()
	f, err := excelize.OpenReader(bytes.NewReader(content))
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(sheet)
	require.NoError(t, err)

	cells := make(map[string]string)
	for _, row := range rows {
		if len(row) >= 2 {
			cells[row[0]] = row[1]
		}
	}
	return cells
}

func TestXLSXRenderer_RenderSlip(t *testing.T) {
	r := NewXLSXRenderer("First Bank", zap.NewNop())
	detail := &entity.SalarySlipDetail{
		Slip: &entity.SalarySlip{
			ID:          9,
			PayeeType:   entity.PayeeTypeEmployee,
			Period:      "2024-05",
			NetAmount:   decimal.NewFromInt(8500),
			GeneratedAt: time.Date(2024, 5, 31, 10, 0, 0, 0, time.UTC),
		},
		PayeeName:        "Ann",
		OrganizationName: "Globex",
		GrossSalary:      decimal.NewFromInt(10000),
		Deductions:       decimal.NewFromInt(1500),
		NetAmount:        decimal.NewFromInt(8500),
	}

	content, err := r.RenderSlip(detail)
	require.NoError(t, err)
	assert.Equal(t, ".xlsx", r.Extension())

	cells := readCells(t, content, slipSheet)
	assert.Equal(t, "First Bank", cells["Bank"])
	assert.Equal(t, "2024-05", cells["Period"])
	assert.Equal(t, "Ann", cells["Payee"])
	assert.Equal(t, "10000.00", cells["Gross Salary"])
	assert.Equal(t, "1500.00", cells["Deductions"])
	assert.Equal(t, "8500.00", cells["Net Amount"])
	assert.Equal(t, "2024-05-31", cells["Generated"])

	_, err = r.RenderSlip(&entity.SalarySlipDetail{})
	assert.Error(t, err)
}

func TestXLSXRenderer_RenderReceipt(t *testing.T) {
	r := NewXLSXRenderer("First Bank", zap.NewNop())
	doc := &port.ReceiptDocument{
		Receipt: &entity.PaymentReceipt{
			ID:            4,
			Amount:        decimal.NewFromInt(100000),
			BankReference: "BNK-ABCDEF123456",
			Status:        entity.ReceiptStatusPaid,
			CreatedAt:     time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC),
		},
		Request:          &entity.PaymentRequest{InvoiceReference: "INV-2024-001"},
		VendorName:       "Office Supplies",
		OrganizationName: "Acme Corp",
	}

	content, err := r.RenderReceipt(doc)
	require.NoError(t, err)

	cells := readCells(t, content, receiptSheet)
	assert.Equal(t, "BNK-ABCDEF123456", cells["Bank Reference"])
	assert.Equal(t, "Acme Corp", cells["Payer"])
	assert.Equal(t, "Office Supplies", cells["Payee"])
	assert.Equal(t, "INV-2024-001", cells["Invoice Reference"])
	assert.Equal(t, "100000.00", cells["Amount"])
	assert.Equal(t, "One Hundred Thousand and 00/100", cells["Amount in Words"])

	_, err = r.RenderReceipt(nil)
	assert.Error(t, err)
}
