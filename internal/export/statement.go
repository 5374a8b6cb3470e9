// Package export renders tenant ledgers as downloadable spreadsheets.
package export

import (
	"bytes"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"github.com/josh-kwaku/rentledger/internal/domain"
)

const (
	summarySheet = "Summary"
	entriesSheet = "Entries"

	// builtin number format "0.00"
	twoDecimals = 2
)

type Statement struct {
	TenantID    uuid.UUID
	TenantName  string
	Entries     []domain.LedgerEntry
	Balance     decimal.Decimal
	ChainValid  bool
	GeneratedAt time.Time
}

// Filename is the attachment name offered for the statement download.
func (s Statement) Filename() string {
	return fmt.Sprintf("ledger-%s-%s.xlsx", s.TenantID, s.GeneratedAt.Format("20060102"))
}

var entryHeaders = []string{"Seq", "Date", "Period", "Type", "Description", "Amount", "Balance"}

// BuildLedgerStatementXLSX writes a summary sheet and one row per ledger entry
// in seq order.
func BuildLedgerStatementXLSX(st Statement) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", summarySheet); err != nil {
		return nil, fmt.Errorf("BuildLedgerStatementXLSX: %w", err)
	}
	if _, err := f.NewSheet(entriesSheet); err != nil {
		return nil, fmt.Errorf("BuildLedgerStatementXLSX: %w", err)
	}
	amountStyle, err := f.NewStyle(&excelize.Style{NumFmt: twoDecimals})
	if err != nil {
		return nil, fmt.Errorf("BuildLedgerStatementXLSX: style: %w", err)
	}

	chain := "valid"
	if !st.ChainValid {
		chain = "BROKEN"
	}
	summary := [][2]any{
		{"Tenant Ledger Statement", nil},
		{"Tenant", st.TenantName},
		{"Tenant ID", st.TenantID.String()},
		{"Generated", st.GeneratedAt.UTC().Format(time.RFC3339)},
		{"Entries", len(st.Entries)},
		{"Balance", st.Balance.InexactFloat64()},
		{"Balance chain", chain},
	}
	for i, row := range summary {
		r := i + 1
		_ = f.SetCellValue(summarySheet, fmt.Sprintf("A%d", r), row[0])
		if row[1] != nil {
			_ = f.SetCellValue(summarySheet, fmt.Sprintf("B%d", r), row[1])
		}
	}
	_ = f.SetCellStyle(summarySheet, "B6", "B6", amountStyle)

	for i, h := range entryHeaders {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(entriesSheet, cell, h)
	}
	for i, e := range st.Entries {
		row := i + 2
		_ = f.SetCellValue(entriesSheet, fmt.Sprintf("A%d", row), e.Seq)
		_ = f.SetCellValue(entriesSheet, fmt.Sprintf("B%d", row), e.CreatedAt.UTC().Format("2006-01-02"))
		_ = f.SetCellValue(entriesSheet, fmt.Sprintf("C%d", row), e.Period)
		_ = f.SetCellValue(entriesSheet, fmt.Sprintf("D%d", row), string(e.Type))
		_ = f.SetCellValue(entriesSheet, fmt.Sprintf("E%d", row), e.Description)
		_ = f.SetCellValue(entriesSheet, fmt.Sprintf("F%d", row), e.Amount.InexactFloat64())
		_ = f.SetCellValue(entriesSheet, fmt.Sprintf("G%d", row), e.Balance.InexactFloat64())
	}
	if n := len(st.Entries); n > 0 {
		_ = f.SetCellStyle(entriesSheet, "F2", fmt.Sprintf("G%d", n+1), amountStyle)
	}
	_ = f.SetColWidth(entriesSheet, "E", "E", 48)

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, fmt.Errorf("BuildLedgerStatementXLSX: write: %w", err)
	}
	return buf.Bytes(), nil
}
