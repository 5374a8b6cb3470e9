package export

import (
	"bytes"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/josh-kwaku/rentledger/internal/domain"
)

func TestBuildLedgerStatementXLSX(t *testing.T) {
	tenantID := uuid.New()
	created := time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)
	st := Statement{
		TenantID:   tenantID,
		TenantName: "Alice Smith",
		Entries: []domain.LedgerEntry{
			{Seq: 1, Type: domain.EntryTypeRent, Amount: decimal.RequireFromString("1200"), Balance: decimal.RequireFromString("1200"),
				Description: "Monthly rent - March 2024", Period: "2024-03", CreatedAt: created},
			{Seq: 2, Type: domain.EntryTypePayment, Amount: decimal.RequireFromString("-750.5"), Balance: decimal.RequireFromString("449.5"),
				Description: "Payment via check", Period: "2024-03", CreatedAt: created.AddDate(0, 0, 4)},
		},
		Balance:     decimal.RequireFromString("449.5"),
		ChainValid:  true,
		GeneratedAt: time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC),
	}

	out, err := BuildLedgerStatementXLSX(st)
	require.NoError(t, err)
	require.NotEmpty(t, out)

	f, err := excelize.OpenReader(bytes.NewReader(out))
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{summarySheet, entriesSheet}, f.GetSheetList())

	name, err := f.GetCellValue(summarySheet, "B2")
	require.NoError(t, err)
	assert.Equal(t, "Alice Smith", name)

	chain, err := f.GetCellValue(summarySheet, "B7")
	require.NoError(t, err)
	assert.Equal(t, "valid", chain)

	rows, err := f.GetRows(entriesSheet, excelize.Options{RawCellValue: true})
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, entryHeaders, rows[0])
	assert.Equal(t, "Monthly rent - March 2024", rows[1][4])
	assert.Equal(t, "PAYMENT", rows[2][3])
	assert.Equal(t, "-750.5", rows[2][5])
	assert.Equal(t, "2024-03-05", rows[2][1])

	assert.Equal(t, "ledger-"+tenantID.String()+"-20240331.xlsx", st.Filename())
}

func TestBuildLedgerStatementXLSX_Empty(t *testing.T) {
	out, err := BuildLedgerStatementXLSX(Statement{TenantID: uuid.New(), ChainValid: false, GeneratedAt: time.Now()})
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(out))
	require.NoError(t, err)
	defer f.Close()

	chain, err := f.GetCellValue(summarySheet, "B7")
	require.NoError(t, err)
	assert.Equal(t, "BROKEN", chain)

	rows, err := f.GetRows(entriesSheet)
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}
